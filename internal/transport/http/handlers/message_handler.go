package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/vedran77/pulsefeed/internal/domain"
	"github.com/vedran77/pulsefeed/internal/service"
	"github.com/vedran77/pulsefeed/internal/transport/http/middleware"
	"github.com/vedran77/pulsefeed/pkg/validator"
	"go.uber.org/zap"
)

type MessageHandler struct {
	messageService *service.MessageService
	logger         *zap.Logger
}

func NewMessageHandler(messageService *service.MessageService, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{messageService: messageService, logger: logger}
}

// List serves GET /api/v1/conversations/{id}[/{before}] as a bare JSON
// array, oldest first.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")
	if errs := validator.ValidateConversationID(conversationID); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	limit := service.DefaultPageSize
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = min(l, service.MaxPageSize)
		}
	}

	messages, err := h.messageService.List(r.Context(), conversationID, r.PathValue("before"), limit)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCursor):
			writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid before cursor")
		default:
			h.logger.Error("list messages", zap.String("conversation_id", conversationID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")

	var input service.SendMessageInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	errs := validator.ValidateConversationID(conversationID)
	for field, message := range validator.ValidateMessage(input.Content) {
		errs.Add(field, message)
	}
	if errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	var sender *domain.User
	if user, ok := middleware.GetUser(r.Context()); ok {
		sender = &user
	}

	msg, err := h.messageService.Send(r.Context(), sender, conversationID, input)
	if err != nil {
		h.logger.Error("send message", zap.String("conversation_id", conversationID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}
