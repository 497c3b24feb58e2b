package transport

import (
	"net/http"

	"marketplace/internal/middleware"
	"marketplace/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// PostMessageRequest represents a new chat message
type PostMessageRequest struct {
	Content string `json:"content" validate:"max=5000"`
}

// ConversationHandler serves buyer/seller messaging
type ConversationHandler struct {
	conversations service.ConversationService
	logger        *zap.Logger
}

// NewConversationHandler creates a new ConversationHandler
func NewConversationHandler(conversations service.ConversationService, logger *zap.Logger) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, logger: logger}
}

func (h *ConversationHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/api/items/{id}/conversations", h.Start)
		r.Get("/api/conversations", h.Inbox)
		r.Get("/api/conversations/{id}/messages", h.ListMessages)
		r.Post("/api/conversations/{id}/messages", h.PostMessage)
	})
}

// Start opens the caller's conversation about an item
func (h *ConversationHandler) Start(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	itemID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	conv, err := h.conversations.Start(r.Context(), identity.ID, itemID)
	if err != nil {
		respondServiceError(w, h.logger, err, "start conversation")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, conv)
}

func (h *ConversationHandler) Inbox(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}

	conversations, err := h.conversations.Inbox(r.Context(), identity.ID)
	if err != nil {
		respondServiceError(w, h.logger, err, "list conversations")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, conversations)
}

func (h *ConversationHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	convID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	messages, err := h.conversations.ListVisible(r.Context(), convID, identity)
	if err != nil {
		respondServiceError(w, h.logger, err, "list messages")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, messages)
}

func (h *ConversationHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	convID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req PostMessageRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	msg, err := h.conversations.Post(r.Context(), convID, identity.ID, req.Content)
	if err != nil {
		respondServiceError(w, h.logger, err, "post message")
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, msg)
}
