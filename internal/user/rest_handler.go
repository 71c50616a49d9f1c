package user

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"relay/config"
	"relay/infrastructure"
	"relay/internal/api"
)

// Handler exposes the user endpoints.
type Handler struct {
	users      Repository
	validate   *validator.Validate
	logger     zerolog.Logger
	bcryptCost int
}

// NewHandler creates the user HTTP handler.
func NewHandler(cfg *config.Config, users Repository, logger zerolog.Logger) *Handler {
	return &Handler{
		users:      users,
		validate:   validator.New(),
		logger:     logger,
		bcryptCost: cfg.BcryptCost,
	}
}

// RegisterRoutes mounts the user endpoints on the router.
func RegisterRoutes(r *mux.Router, h *Handler) {
	r.HandleFunc("/users", h.List).Methods("GET")
	r.HandleFunc("/users", h.Create).Methods("POST")
	r.HandleFunc("/users/{id}", h.Get).Methods("GET")
	r.HandleFunc("/users/{id}/status", h.UpdateStatus).Methods("PATCH")
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.FindAll(r.Context())
	if err != nil {
		h.fail(w, err, "list users failed")
		return
	}

	public := make([]Public, 0, len(users))
	for _, u := range users {
		public = append(public, u.ToPublic())
	}
	api.OK(w, http.StatusOK, "", public)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.FindByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err, "get user failed")
		return
	}
	api.OK(w, http.StatusOK, "", u.ToPublic())
}

// Create is the unauthenticated alternative to /auth/register. It applies
// the same entity validation but issues no token.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var reg Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body", "VALIDATION_ERROR")
		return
	}
	if err := h.validate.Struct(reg); err != nil {
		api.Error(w, http.StatusBadRequest, "Username, email, and password are required", "VALIDATION_ERROR")
		return
	}

	candidate := &User{Username: reg.Username, Email: reg.Email}
	if !candidate.IsValidUsername() || !candidate.IsValidEmail() {
		api.Error(w, http.StatusBadRequest, "Invalid username or email format", "VALIDATION_ERROR")
		return
	}

	if taken, err := h.users.Exists(r.Context(), reg.Email); err != nil {
		h.fail(w, err, "create user failed")
		return
	} else if taken {
		h.fail(w, infrastructure.ErrEmailTaken, "")
		return
	}

	u, err := NewFromRegistration(reg, h.bcryptCost)
	if err != nil {
		h.fail(w, err, "create user failed")
		return
	}
	if err := h.users.Create(r.Context(), u); err != nil {
		h.fail(w, err, "create user failed")
		return
	}

	api.OK(w, http.StatusCreated, "User created successfully", u.ToPublic())
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IsOnline *bool `json:"isOnline"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IsOnline == nil {
		api.Error(w, http.StatusBadRequest, "isOnline is required", "VALIDATION_ERROR")
		return
	}

	u, err := h.users.UpdateOnlineStatus(r.Context(), mux.Vars(r)["id"], *req.IsOnline)
	if err != nil {
		h.fail(w, err, "update status failed")
		return
	}

	api.OK(w, http.StatusOK, "Status updated", u.ToPublic())
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
