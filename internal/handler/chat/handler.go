package chat

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/taloschat/talos/internal/model/chat"
	"github.com/taloschat/talos/internal/ollama"
	chatService "github.com/taloschat/talos/internal/service/chat"
	"github.com/taloschat/talos/pkg/utils"
)

// Handler exposes conversation, message and turn operations over HTTP.
type Handler struct {
	chatSvc *chatService.Service
}

// New creates the chat handler.
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes mounts the conversation and message routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/conversations", h.handleCreateConversation)
	r.Get("/conversations", h.handleListConversations)
	r.Delete("/conversations/{conversationID}", h.handleDeleteConversation)
	r.Patch("/conversations/{conversationID}", h.handleRenameConversation)
	r.Get("/conversations/{conversationID}/messages", h.handleGetMessages)
	r.Post("/conversations/{conversationID}/messages", h.handleAddMessage)
	r.Post("/conversations/{conversationID}/send", h.handleSendTurn)
	r.Post("/conversations/{conversationID}/regenerate", h.handleRegenerateTurn)
	r.Post("/conversations/{conversationID}/truncate", h.handleTruncate)
	r.Patch("/messages/{messageID}", h.handleUpdateMessage)
}

func (h *Handler) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title string `json:"title"`
		Model string `json:"model"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conv, err := h.chatSvc.CreateConversation(r.Context(), payload.Title, payload.Model)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, conv)
}

func (h *Handler) handleListConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.chatSvc.ListConversations(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, conversations)
}

func (h *Handler) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	if err := h.chatSvc.DeleteConversation(r.Context(), conversationID); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRenameConversation(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title string `json:"title"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conversationID := chi.URLParam(r, "conversationID")
	if err := h.chatSvc.RenameConversation(r.Context(), conversationID, payload.Title); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	messages, err := h.chatSvc.GetMessages(r.Context(), conversationID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, messages)
}

func (h *Handler) handleAddMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	role, err := chat.ParseRole(payload.Role)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	conversationID := chi.URLParam(r, "conversationID")
	msg, err := h.chatSvc.AddMessage(r.Context(), conversationID, role, payload.Content)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, msg)
}

func (h *Handler) handleSendTurn(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Content string `json:"content"`
		Model   string `json:"model"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conversationID := chi.URLParam(r, "conversationID")
	reply, err := h.chatSvc.SendTurn(r.Context(), conversationID, payload.Content, payload.Model)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func (h *Handler) handleRegenerateTurn(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Model string `json:"model"`
	}

	// An empty body means "regenerate with the conversation's model".
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conversationID := chi.URLParam(r, "conversationID")
	reply, err := h.chatSvc.RegenerateTurn(r.Context(), conversationID, payload.Model)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func (h *Handler) handleTruncate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AfterMessageID string `json:"afterMessageId"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conversationID := chi.URLParam(r, "conversationID")
	if err := h.chatSvc.TruncateAfter(r.Context(), conversationID, payload.AfterMessageID); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUpdateMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Content string `json:"content"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	messageID := chi.URLParam(r, "messageID")
	if err := h.chatSvc.UpdateMessageContent(r.Context(), messageID, payload.Content); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respondServiceError maps service and client error kinds to statuses:
// validation 400, missing conversation 404, unreachable endpoint 503,
// bad upstream answers 502, storage and everything else 500.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrConversationNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chatService.ErrConversationRequired),
		errors.Is(err, chatService.ErrMessageRequired),
		errors.Is(err, chatService.ErrContentRequired),
		errors.Is(err, chatService.ErrTitleRequired),
		errors.Is(err, chatService.ErrModelRequired):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ollama.ErrUnavailable):
		utils.RespondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, ollama.ErrService),
		errors.Is(err, ollama.ErrProtocol),
		errors.Is(err, ollama.ErrEmptyResponse):
		utils.RespondError(w, http.StatusBadGateway, err.Error())
	default:
		log.Error().Err(err).Msg("chat operation failed")
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}
