package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"relay/infrastructure"
	"relay/internal/api"
	"relay/internal/user"
)

type contextKey string

const identityContextKey contextKey = "identity"

// Identity is the resolved caller attached to the request context by the
// auth middleware.
type Identity struct {
	UserID   string
	Username string
	Email    string
}

// IdentityFromContext returns the authenticated identity, or nil when the
// request was not authenticated.
func IdentityFromContext(ctx context.Context) *Identity {
	id, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok {
		return nil
	}
	return id
}

// Middleware resolves bearer tokens into identities.
type Middleware struct {
	tokens *TokenManager
	users  user.Repository
}

// NewMiddleware creates the auth middleware.
func NewMiddleware(tokens *TokenManager, users user.Repository) *Middleware {
	return &Middleware{tokens: tokens, users: users}
}

// resolve verifies the bearer token and confirms the user still exists.
func (m *Middleware) resolve(r *http.Request) (*Identity, string, error) {
	token := ExtractBearer(r.Header.Get("Authorization"))
	if token == "" {
		return nil, "MISSING_TOKEN", infrastructure.ErrMissingToken
	}

	claims, err := m.tokens.Verify(token)
	if err != nil {
		return nil, "INVALID_TOKEN", err
	}

	if _, err := m.users.FindByID(r.Context(), claims.UserID); err != nil {
		if errors.Is(err, infrastructure.ErrUserNotFound) {
			return nil, "USER_NOT_FOUND", infrastructure.ErrInvalidToken
		}
		return nil, "INTERNAL_ERROR", err
	}

	return &Identity{
		UserID:   claims.UserID,
		Username: claims.Username,
		Email:    claims.Email,
	}, "", nil
}

// RequireAuth rejects requests without a valid token and attaches the
// resolved identity to the request context.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, code, err := m.resolve(r)
		if err != nil {
			api.Error(w, infrastructure.StatusCode(err), err.Error(), code)
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// OptionalAuth resolves an identity when a valid token is present and
// continues unauthenticated otherwise.
func (m *Middleware) OptionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if identity, _, err := m.resolve(r); err == nil {
			r = r.WithContext(context.WithValue(r.Context(), identityContextKey, identity))
		}
		next.ServeHTTP(w, r)
	}
}

// RequireOwnership compares the authenticated identity against the user id
// found under field in the path variables or the query string.
func (m *Middleware) RequireOwnership(field string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := IdentityFromContext(r.Context())
		if identity == nil {
			api.Error(w, http.StatusUnauthorized, "Authentication required", "NOT_AUTHENTICATED")
			return
		}

		resourceUserID := mux.Vars(r)[field]
		if resourceUserID == "" {
			resourceUserID = r.URL.Query().Get(field)
		}
		if resourceUserID == "" {
			api.Error(w, http.StatusBadRequest, field+" is required", "MISSING_RESOURCE_USER_ID")
			return
		}

		if identity.UserID != resourceUserID {
			api.Error(w, http.StatusForbidden,
				"Access denied. You can only access your own resources.", "ACCESS_DENIED")
			return
		}

		next.ServeHTTP(w, r)
	}
}
