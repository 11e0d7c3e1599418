package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResponseBuilder_JSON(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/v1/categories/1").
		JSON(map[string]int{"n": 1}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Header().Get("Location") != "/api/v1/categories/1" {
		t.Errorf("Location header missing")
	}
	if w.Body.String() != `{"n":1}` {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestResponseBuilder_NoContent(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().Status(http.StatusNoContent).JSON(map[string]string{"ignored": "x"}).Write(w)

	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Errorf("got %d %q, want empty 204", w.Code, w.Body.String())
	}
}

func TestResponseBuilder_Raw(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().Raw("text/csv; charset=utf-8", []byte("a,b\n")).Write(w)

	if w.Header().Get("Content-Type") != "text/csv; charset=utf-8" || w.Body.String() != "a,b\n" {
		t.Errorf("unexpected raw response %q %q", w.Header().Get("Content-Type"), w.Body.String())
	}
}

func TestResponseBuilder_Unencodable(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().JSON(map[string]any{"f": func() {}}).Write(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want 500", w.Code)
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name     string
		builder  *ResponseBuilder
		wantCode int
		wantBody string
	}{
		{"BadRequest", BadRequestError("bad"), http.StatusBadRequest, `{"detail":"bad"}`},
		{"Unprocessable", UnprocessableEntityError("amount: must be positive"), http.StatusUnprocessableEntity, `{"detail":"amount: must be positive"}`},
		{"NotFound", NotFoundError("missing"), http.StatusNotFound, `{"detail":"missing"}`},
		{"Conflict", ConflictError("dup"), http.StatusConflict, `{"detail":"dup"}`},
		{"Internal", InternalServerError("boom"), http.StatusInternalServerError, `{"detail":"boom"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)

			if w.Code != tt.wantCode {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantCode)
			}
			if w.Body.String() != tt.wantBody {
				t.Errorf("Body = %q, want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestMethodNotAllowedError(t *testing.T) {
	w := httptest.NewRecorder()
	MethodNotAllowedError("GET, POST").Write(w)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
	if got := w.Header().Get("Allow"); got != "GET, POST" {
		t.Errorf("Allow header = %q, want %q", got, "GET, POST")
	}
}
