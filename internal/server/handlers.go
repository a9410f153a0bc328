package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/diogo/chathist/internal/errors"
	"github.com/diogo/chathist/internal/models"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// UpdateTitleRequest is the PATCH /chats/{id} body.
type UpdateTitleRequest struct {
	Title string `json:"title"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err string, message string) {
	writeJSON(w, status, ErrorResponse{Error: err, Message: message})
}

// writeStoreError maps the error taxonomy onto status codes.
func (s *Server) writeStoreError(w http.ResponseWriter, op string, err error) {
	switch {
	case apierrors.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case apierrors.IsValidation(err):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		s.logger.Error().Err(err).Str("op", op).Msg("store operation failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to "+op)
	}
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	userID := q.Get("user")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "user is required")
		return
	}

	limit := models.DefaultPageSize
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = n
	}

	cursor := q.Get("cursor")
	if cursor != "" && !models.IsValidChatID(cursor) {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed cursor")
		return
	}

	page, err := s.store.FetchPage(r.Context(), userID, cursor, limit)
	if err != nil {
		s.writeStoreError(w, "list chats", err)
		return
	}
	if page.Chats == nil {
		page.Chats = []models.Chat{}
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) chatID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !models.IsValidChatID(id) {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed chat ID")
		return "", false
	}
	return id, true
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	id, ok := s.chatID(w, r)
	if !ok {
		return
	}

	chat, err := s.store.GetChat(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, "get chat", err)
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	id, ok := s.chatID(w, r)
	if !ok {
		return
	}

	if err := s.store.DeleteChat(r.Context(), id); err != nil {
		s.writeStoreError(w, "delete chat", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateTitle(w http.ResponseWriter, r *http.Request) {
	id, ok := s.chatID(w, r)
	if !ok {
		return
	}

	var req UpdateTitleRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "body must be {\"title\": string}")
		return
	}

	chat, err := s.store.UpdateTitle(r.Context(), id, req.Title)
	if err != nil {
		s.writeStoreError(w, "update title", err)
		return
	}
	if chat == nil {
		writeError(w, http.StatusNotFound, "not_found", apierrors.NewNotFoundError("chat", id).Error())
		return
	}
	writeJSON(w, http.StatusOK, chat)
}
