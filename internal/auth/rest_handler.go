package auth

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"relay/infrastructure"
	"relay/internal/api"
	"relay/internal/user"
)

// Handler exposes the auth endpoints.
type Handler struct {
	service  *Service
	users    user.Repository
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewHandler creates the auth HTTP handler.
func NewHandler(service *Service, users user.Repository, logger zerolog.Logger) *Handler {
	return &Handler{
		service:  service,
		users:    users,
		validate: validator.New(),
		logger:   logger,
	}
}

// RegisterRoutes mounts the auth endpoints on the router.
func RegisterRoutes(r *mux.Router, h *Handler, m *Middleware, passwordLimiter *RateLimiter) {
	r.HandleFunc("/auth/register", h.Register).Methods("POST")
	r.HandleFunc("/auth/login", h.Login).Methods("POST")
	r.HandleFunc("/auth/logout", m.RequireAuth(h.Logout)).Methods("POST")
	r.HandleFunc("/auth/verify", m.RequireAuth(h.Verify)).Methods("GET")
	r.HandleFunc("/auth/profile", m.RequireAuth(h.Profile)).Methods("GET")
	r.HandleFunc("/auth/change-password",
		m.RequireAuth(passwordLimiter.LimitByUser(h.ChangePassword))).Methods("PUT")
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var reg user.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body", "VALIDATION_ERROR")
		return
	}
	if err := h.validate.Struct(reg); err != nil {
		api.Error(w, http.StatusBadRequest, "Username, email, and password are required", "VALIDATION_ERROR")
		return
	}

	u, token, err := h.service.Register(r.Context(), reg)
	if err != nil {
		h.fail(w, err, "registration failed")
		return
	}

	api.OK(w, http.StatusCreated, "User registered successfully", map[string]any{
		"user":  u.ToPublic(),
		"token": token,
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body", "VALIDATION_ERROR")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.Error(w, http.StatusBadRequest, "Email and password are required", "VALIDATION_ERROR")
		return
	}

	u, token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, err, "login failed")
		return
	}

	api.OK(w, http.StatusOK, "Login successful", map[string]any{
		"user":  u.ToPublic(),
		"token": token,
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())

	if err := h.service.Logout(r.Context(), identity.UserID); err != nil {
		h.fail(w, err, "logout failed")
		return
	}

	api.OK(w, http.StatusOK, "Logout successful", nil)
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())

	api.OK(w, http.StatusOK, "Token is valid", map[string]string{
		"userId":   identity.UserID,
		"username": identity.Username,
		"email":    identity.Email,
	})
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())

	u, err := h.users.FindByID(r.Context(), identity.UserID)
	if err != nil {
		h.fail(w, err, "profile lookup failed")
		return
	}

	api.OK(w, http.StatusOK, "", u.ToPublic())
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body", "VALIDATION_ERROR")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.Error(w, http.StatusBadRequest,
			"Current password and new password are required", "VALIDATION_ERROR")
		return
	}

	if err := h.service.ChangePassword(r.Context(), identity.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		h.fail(w, err, "password change failed")
		return
	}

	api.OK(w, http.StatusOK, "Password changed successfully", nil)
}

func (h *Handler) fail(w http.ResponseWriter, err error, context string) {
	status := infrastructure.StatusCode(err)
	if status == http.StatusInternalServerError {
		h.logger.Error().Err(err).Msg(context)
		api.Error(w, status, "Internal server error", "INTERNAL_ERROR")
		return
	}
	api.Error(w, status, err.Error(), "")
}
