package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/middleware/trace"
)

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrValidation), errors.Is(err, core.ErrInvalidFrequency):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrConflict), errors.Is(err, core.ErrConcurrentUpdate):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func errorType(status int) string {
	switch status {
	case http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge:
		return applog.ErrorTypeValidation
	case http.StatusNotFound:
		return applog.ErrorTypeNotFound
	case http.StatusConflict:
		return applog.ErrorTypeConflict
	default:
		return applog.ErrorTypeInternal
	}
}

// respondError writes {"detail": ...}. Server errors are logged and their
// detail is not exposed to the client.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		fields := applog.NewFields().
			WithRequestID(trace.GetRequestID(r.Context())).
			WithErrorType(errorType(status))
		s.structured.LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, r.Method+" "+r.URL.Path, fields)
		InternalServerError("internal server error").Write(w)
		return
	}
	applog.FromContext(r.Context()).DebugContext(r.Context(), "Request rejected",
		applog.FieldStatusCode, status,
		applog.FieldErrorType, errorType(status),
		applog.FieldError, err)
	ErrorResponse(status, err.Error()).Write(w)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	NewResponse().Status(status).JSON(v).Write(w)
}

func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}
