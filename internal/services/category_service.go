package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/textutil"
)

const (
	UncategorizedName = "Uncategorized"
	ImportedIcon      = "📁"
	ImportedColor     = "#808080"
)

// CategoryStore is the category storage used by CategoryService.
type CategoryStore interface {
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	GetCategory(ctx context.Context, id string) (core.Category, error)
	GetCategoryByName(ctx context.Context, name string, typ core.TransactionType) (core.Category, error)
	ListCategories(ctx context.Context, typ core.TransactionType) ([]core.Category, error)
	UpdateCategory(ctx context.Context, c core.Category) (core.Category, error)
	DeleteCategory(ctx context.Context, id string) error
}

type CategoryPatch struct {
	Name  *string               `json:"name"`
	Icon  *string               `json:"icon"`
	Color *string               `json:"color"`
	Type  *core.TransactionType `json:"type"`
}

// CategoryService manages categories. Single-category reads are served from
// an LRU cache keyed by id and by (type, name).
type CategoryService struct {
	store CategoryStore
	cache cache.Cache[core.Category]
}

func NewCategoryService(store CategoryStore, c cache.Cache[core.Category]) *CategoryService {
	if c == nil {
		c = cache.NewLRUCache[core.Category](256, 10*time.Minute)
	}
	return &CategoryService{store: store, cache: c}
}

func nameKey(name string, typ core.TransactionType) string {
	return "name:" + string(typ) + ":" + name
}

func (s *CategoryService) remember(c core.Category) {
	s.cache.Set("id:"+c.ID, c)
	s.cache.Set(nameKey(c.Name, c.Type), c)
}

func (s *CategoryService) forget(c core.Category) {
	s.cache.Delete("id:" + c.ID)
	s.cache.Delete(nameKey(c.Name, c.Type))
}

func (s *CategoryService) Create(ctx context.Context, c core.Category) (core.Category, error) {
	c.ID = ""
	c.Name = textutil.SanitizeText(c.Name)
	c.Icon = strings.TrimSpace(c.Icon)
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	created, err := s.store.CreateCategory(ctx, c)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	s.remember(created)
	return created, nil
}

func (s *CategoryService) Get(ctx context.Context, id string) (core.Category, error) {
	if c, ok := s.cache.Get("id:" + id); ok {
		return c, nil
	}
	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return core.Category{}, err
	}
	s.remember(c)
	return c, nil
}

// List returns all categories, optionally only those of typ.
func (s *CategoryService) List(ctx context.Context, typ core.TransactionType) ([]core.Category, error) {
	if typ != "" && !typ.Valid() {
		return nil, core.Invalid("type", "must be income or expense")
	}
	items, err := s.store.ListCategories(ctx, typ)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if items == nil {
		items = []core.Category{}
	}
	return items, nil
}

func (s *CategoryService) Update(ctx context.Context, id string, patch CategoryPatch) (core.Category, error) {
	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return core.Category{}, err
	}
	before := c

	if patch.Name != nil {
		c.Name = textutil.SanitizeText(*patch.Name)
	}
	if patch.Icon != nil {
		c.Icon = strings.TrimSpace(*patch.Icon)
	}
	if patch.Color != nil {
		c.Color = *patch.Color
	}
	if patch.Type != nil {
		c.Type = *patch.Type
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	updated, err := s.store.UpdateCategory(ctx, c)
	if err != nil {
		return core.Category{}, fmt.Errorf("update category %s: %w", id, err)
	}
	s.forget(before)
	s.remember(updated)
	return updated, nil
}

// Delete removes a category. It fails with ErrConflict while transactions
// or templates still reference it.
func (s *CategoryService) Delete(ctx context.Context, id string) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.forget(c)
	return nil
}

// Resolve returns the category named name for typ, creating it with the
// import defaults if it does not exist yet. An empty name resolves to
// Uncategorized.
func (s *CategoryService) Resolve(ctx context.Context, name string, typ core.TransactionType) (core.Category, error) {
	name = textutil.Truncate(textutil.SanitizeText(name), 100)
	if name == "" {
		name = UncategorizedName
	}
	if c, ok := s.cache.Get(nameKey(name, typ)); ok {
		return c, nil
	}

	c, err := s.store.GetCategoryByName(ctx, name, typ)
	if err == nil {
		s.remember(c)
		return c, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return core.Category{}, err
	}

	created, err := s.Create(ctx, core.Category{Name: name, Icon: ImportedIcon, Color: ImportedColor, Type: typ})
	if errors.Is(err, core.ErrConflict) {
		// Lost a race with a concurrent import; the row exists now.
		return s.store.GetCategoryByName(ctx, name, typ)
	}
	if err != nil {
		return core.Category{}, err
	}
	slog.InfoContext(ctx, "Auto-created category",
		"category_id", created.ID,
		"name", created.Name,
		"type", created.Type)
	return created, nil
}
