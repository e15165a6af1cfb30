package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"expenses-api/internal/auth"
	"expenses-api/internal/expenses"
	"expenses-api/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// Context key type to avoid collisions.
type contextKey string

const (
	// UserContextKey is the context key for the authenticated user.
	UserContextKey contextKey = "user"
	// ClaimsContextKey is the context key for the verified token claims.
	ClaimsContextKey contextKey = "claims"
)

// Error codes written in the "error" field of failed responses.
const (
	CodeValidation        = "validation_error"
	CodeNotFound          = "not_found"
	CodeForbidden         = "forbidden"
	CodeForbiddenCategory = "forbidden_category"
	CodeMissingToken      = "missing_token"
	CodeInvalidToken      = "invalid_token"
	CodeExpiredToken      = "expired_token"
	CodeBadCredentials    = "invalid_credentials"
	CodeMethodNotAllowed  = "method_not_allowed"
	CodeInternal          = "internal_error"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	svc      *expenses.Service
	tokens   *auth.Tokens
	validate *validator.Validate
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(svc *expenses.Service, tokens *auth.Tokens) *Handlers {
	return &Handlers{svc: svc, tokens: tokens, validate: newValidator()}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// GetUserFromContext retrieves the authenticated user from request context.
func GetUserFromContext(r *http.Request) *models.User {
	if user, ok := r.Context().Value(UserContextKey).(*models.User); ok {
		return user
	}
	return nil
}

func getClaimsFromContext(r *http.Request) *auth.Claims {
	if claims, ok := r.Context().Value(ClaimsContextKey).(*auth.Claims); ok {
		return claims
	}
	return nil
}

// AuthMiddleware requires a valid bearer token and puts the token's user into the context.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
			writeError(w, http.StatusUnauthorized, CodeMissingToken, nil)
			return
		}

		claims, err := h.tokens.Authenticate(r.Context(), strings.TrimSpace(token))
		switch {
		case errors.Is(err, auth.ErrExpiredToken):
			writeError(w, http.StatusUnauthorized, CodeExpiredToken, nil)
			return
		case errors.Is(err, auth.ErrInvalidToken):
			writeError(w, http.StatusUnauthorized, CodeInvalidToken, nil)
			return
		case err != nil:
			h.fail(w, r, err)
			return
		}

		userID, err := claims.UserID()
		if err != nil {
			writeError(w, http.StatusUnauthorized, CodeInvalidToken, nil)
			return
		}
		user, err := h.svc.User(r.Context(), userID)
		if errors.Is(err, expenses.ErrNotFound) {
			// The user was deleted after the token was issued.
			writeError(w, http.StatusUnauthorized, CodeInvalidToken, nil)
			return
		} else if err != nil {
			h.fail(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		ctx = context.WithValue(ctx, ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Health reports whether the service and its storage are reachable.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ping(r.Context()); err != nil {
		slog.Warn("storage unreachable", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Index describes the API.
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"project":       "Expenses API",
		"global_policy": h.svc.Policy(),
		"try":           []string{"/auth/register", "/auth/login", "/category", "/record"},
	})
}

// NotFound answers unknown routes.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, CodeNotFound, nil)
}

// MethodNotAllowed answers known routes called with the wrong method.
func (h *Handlers) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, nil)
}

// fail maps a service error onto an HTTP error response.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, expenses.ErrNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, nil)
	case errors.Is(err, expenses.ErrForbiddenCategory):
		writeError(w, http.StatusBadRequest, CodeForbiddenCategory, nil)
	case errors.Is(err, expenses.ErrForbidden):
		writeError(w, http.StatusForbidden, CodeForbidden, nil)
	case errors.Is(err, expenses.ErrEmptyName):
		writeError(w, http.StatusBadRequest, CodeValidation, fieldErrors{"name": {"Name must not be empty."}})
	case errors.Is(err, expenses.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, CodeValidation, fieldErrors{"amount": {"Must be between 0 and 999999999999.99."}})
	case errors.Is(err, auth.ErrPasswordTooLong):
		writeError(w, http.StatusBadRequest, CodeValidation, fieldErrors{"password": {err.Error()}})
	case errors.Is(err, expenses.ErrDuplicateName):
		writeError(w, http.StatusBadRequest, CodeValidation, fieldErrors{
			"name": {"User with this name already exists"},
		})
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, nil)
	}
}

// fieldErrors maps a JSON field name to its validation messages.
type fieldErrors map[string][]string

type errorResponse struct {
	Error   string      `json:"error"`
	Details fieldErrors `json:"details,omitempty"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

func newList[T any](items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Total: len(items)}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code string, details fieldErrors) {
	writeJSON(w, status, errorResponse{Error: code, Details: details})
}

// decode reads a JSON body into dst and validates it. On failure it writes
// the error response and returns false.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	// An empty body decodes as {} so that required fields are reported.
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, CodeValidation, fieldErrors{"body": {err.Error()}})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, validationDetails(err))
		return false
	}
	return true
}

func validationDetails(err error) fieldErrors {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fieldErrors{"body": {err.Error()}}
	}
	details := make(fieldErrors, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = append(details[fe.Field()], validationMessage(fe))
	}
	return details
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Missing data for required field."
	case "max":
		return "Longer than maximum length " + fe.Param() + "."
	case "gte":
		return "Must be greater than or equal to " + fe.Param() + "."
	case "lt":
		return "Must be less than " + fe.Param() + "."
	default:
		return "Invalid value."
	}
}

// pathID parses the {id} URL parameter. Malformed ids are treated as unknown routes.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, CodeNotFound, nil)
		return 0, false
	}
	return id, true
}

// queryID parses an optional integer query parameter.
func queryID(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
