package message

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"relay/infrastructure"
	"relay/internal/api"
	"relay/internal/auth"
)

// CreateRequest is the payload for POST /messages. Addressing must name a
// recipient or a room, never both.
type CreateRequest struct {
	ToUser  string `json:"toUser,omitempty"`
	Room    string `json:"roomFromMessage,omitempty"`
	Message string `json:"message" validate:"required,max=1000"`
	Type    string `json:"messageType,omitempty"`
	ReplyTo string `json:"replyTo,omitempty"`
}

// EditRequest is the payload for PUT /messages/{id}.
type EditRequest struct {
	Message string `json:"message" validate:"required,max=1000"`
}

// Handler exposes the message endpoints.
type Handler struct {
	messages Repository
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewHandler creates the message HTTP handler.
func NewHandler(messages Repository, logger zerolog.Logger) *Handler {
	return &Handler{messages: messages, validate: validator.New(), logger: logger}
}

// RegisterRoutes mounts the message endpoints on the router.
func RegisterRoutes(r *mux.Router, h *Handler, m *auth.Middleware) {
	r.HandleFunc("/messages", m.RequireAuth(h.Create)).Methods("POST")
	r.HandleFunc("/messages/search", m.OptionalAuth(h.Search)).Methods("GET")
	r.HandleFunc("/messages/conversation/{userA}/{userB}", m.RequireAuth(h.Conversation)).Methods("GET")
	r.HandleFunc("/messages/room/{roomId}", m.OptionalAuth(h.RoomMessages)).Methods("GET")
	r.HandleFunc("/messages/user/{userId}",
		m.RequireAuth(m.RequireOwnership("userId", h.UserMessages))).Methods("GET")
	r.HandleFunc("/messages/user/{userId}/conversations",
		m.RequireAuth(m.RequireOwnership("userId", h.RecentConversations))).Methods("GET")
	r.HandleFunc("/messages/user/{userId}/stats",
		m.RequireAuth(m.RequireOwnership("userId", h.UserStats))).Methods("GET")
	r.HandleFunc("/messages/{id}", m.OptionalAuth(h.Get)).Methods("GET")
	r.HandleFunc("/messages/{id}", m.RequireAuth(h.Update)).Methods("PUT")
	r.HandleFunc("/messages/{id}", m.RequireAuth(h.Delete)).Methods("DELETE")
	r.HandleFunc("/messages/{messageId}/replies", m.OptionalAuth(h.Replies)).Methods("GET")
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body", "VALIDATION_ERROR")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.Error(w, http.StatusBadRequest, "message is a required field", "VALIDATION_ERROR")
		return
	}
	if req.ToUser == "" && req.Room == "" {
		api.Error(w, http.StatusBadRequest,
			"Either toUser or roomFromMessage must be provided", "VALIDATION_ERROR")
		return
	}
	if req.ToUser != "" && req.Room != "" {
		api.Error(w, http.StatusBadRequest,
			"toUser and roomFromMessage are mutually exclusive", "VALIDATION_ERROR")
		return
	}

	var msg *Message
	switch {
	case req.ReplyTo != "":
		msg = NewReply(identity.UserID, req.ReplyTo, req.Message, req.ToUser, req.Room)
	case req.ToUser != "":
		msg = NewDirect(identity.UserID, req.ToUser, req.Message)
	default:
		msg = NewRoom(identity.UserID, req.Room, req.Message)
	}
	if req.Type != "" {
		msg.Type = Type(req.Type)
	}

	if !msg.IsValidForSending() {
		api.Error(w, http.StatusBadRequest, "Message is not valid for sending", "VALIDATION_ERROR")
		return
	}

	if err := h.messages.Create(r.Context(), msg); err != nil {
		h.fail(w, err, "create message failed")
		return
	}

	api.OK(w, http.StatusCreated, "Message created successfully", msg)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	msg, err := h.messages.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err, "get message failed")
		return
	}
	api.OK(w, http.StatusOK, "", msg)
}

func (h *Handler) Conversation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	limit, offset := pageParams(r, 50)

	page, err := h.messages.Conversation(r.Context(), vars["userA"], vars["userB"], limit, offset)
	if err != nil {
		h.fail(w, err, "conversation lookup failed")
		return
	}

	h.respondPage(w, page, limit, offset)
}

func (h *Handler) RoomMessages(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r, 50)

	page, err := h.messages.RoomMessages(r.Context(), mux.Vars(r)["roomId"], limit, offset)
	if err != nil {
		h.fail(w, err, "room messages lookup failed")
		return
	}

	h.respondPage(w, page, limit, offset)
}

func (h *Handler) UserMessages(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r, 50)

	page, err := h.messages.UserMessages(r.Context(), mux.Vars(r)["userId"], limit, offset)
	if err != nil {
		h.fail(w, err, "user messages lookup failed")
		return
	}

	h.respondPage(w, page, limit, offset)
}

func (h *Handler) RecentConversations(w http.ResponseWriter, r *http.Request) {
	limit, _ := pageParams(r, 10)

	msgs, err := h.messages.RecentConversations(r.Context(), mux.Vars(r)["userId"], limit)
	if err != nil {
		h.fail(w, err, "recent conversations lookup failed")
		return
	}

	api.OK(w, http.StatusOK, "", map[string]any{"conversations": msgs})
}

func (h *Handler) UserStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.messages.UserStats(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		h.fail(w, err, "user stats lookup failed")
		return
	}
	api.OK(w, http.StatusOK, "", stats)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())

	var req EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body", "VALIDATION_ERROR")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.Error(w, http.StatusBadRequest, "message is a required field", "VALIDATION_ERROR")
		return
	}

	msg, err := h.messages.Update(r.Context(), mux.Vars(r)["id"], identity.UserID, req.Message)
	if err != nil {
		h.fail(w, err, "update message failed")
		return
	}

	api.OK(w, http.StatusOK, "Message updated successfully", msg)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())

	if err := h.messages.Delete(r.Context(), mux.Vars(r)["id"], identity.UserID); err != nil {
		h.fail(w, err, "delete message failed")
		return
	}

	api.OK(w, http.StatusOK, "Message deleted successfully", nil)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("q")
	if text == "" {
		api.Error(w, http.StatusBadRequest, "q is a required query parameter", "VALIDATION_ERROR")
		return
	}
	limit, _ := pageParams(r, 20)

	var userID string
	if identity := auth.IdentityFromContext(r.Context()); identity != nil {
		userID = identity.UserID
	}

	msgs, err := h.messages.Search(r.Context(), text, userID, limit)
	if err != nil {
		h.fail(w, err, "search failed")
		return
	}

	api.OK(w, http.StatusOK, "", map[string]any{"messages": msgs})
}

func (h *Handler) Replies(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.messages.Replies(r.Context(), mux.Vars(r)["messageId"])
	if err != nil {
		h.fail(w, err, "replies lookup failed")
		return
	}
	api.OK(w, http.StatusOK, "", map[string]any{"messages": msgs})
}

func (h *Handler) respondPage(w http.ResponseWriter, page *Page, limit, offset int) {
	api.OK(w, http.StatusOK, "", map[string]any{
		"messages": page.Messages,
		"pagination": api.Pagination{
			Limit:   limit,
			Offset:  offset,
			Total:   page.Total,
			HasMore: page.HasMore(offset),
		},
	})
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

func pageParams(r *http.Request, defaultLimit int) (limit, offset int) {
	limit = defaultLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
