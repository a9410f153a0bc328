package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/diogo/chathist/internal/models"
	"github.com/diogo/chathist/internal/store"
)

func newTestServer(t *testing.T, cfg Config) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(store.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return New(cfg, st), st
}

func seedChats(t *testing.T, st *store.Store, userID string, n int) []models.Chat {
	t.Helper()
	base := time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)
	var chats []models.Chat
	for i := 0; i < n; i++ {
		c, err := st.CreateChat(context.Background(), store.NewChat{
			UserID:    userID,
			Title:     "chat",
			CreatedAt: base.Add(-time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		chats = append(chats, *c)
	}
	return chats
}

func do(t *testing.T, s *Server, method, target, body string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for _, m := range mutate {
		m(req)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, Config{Token: "secret"})
	w := do(t, s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestListChatsPaginates(t *testing.T) {
	s, st := newTestServer(t, Config{})
	chats := seedChats(t, st, "u1", 3)

	w := do(t, s, http.MethodGet, "/api/v1/chats?user=u1&limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)

	var page models.Page
	require.NoError(t, json.NewDecoder(w.Body).Decode(&page))
	require.True(t, page.HasMore)
	require.Len(t, page.Chats, 2)
	require.Equal(t, chats[0].ID, page.Chats[0].ID)

	w = do(t, s, http.MethodGet, "/api/v1/chats?user=u1&limit=2&cursor="+page.LastID(), "")
	require.Equal(t, http.StatusOK, w.Code)
	page = models.Page{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&page))
	require.False(t, page.HasMore)
	require.Len(t, page.Chats, 1)
	require.Equal(t, chats[2].ID, page.Chats[0].ID)
}

func TestListChatsEmptyIsArray(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	w := do(t, s, http.MethodGet, "/api/v1/chats?user=nobody", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"chats":[],"hasMore":false}`, w.Body.String())
}

func TestListChatsValidation(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"missing user", "/api/v1/chats", http.StatusBadRequest},
		{"bad limit", "/api/v1/chats?user=u1&limit=zero", http.StatusBadRequest},
		{"negative limit", "/api/v1/chats?user=u1&limit=-1", http.StatusBadRequest},
		{"malformed cursor", "/api/v1/chats?user=u1&cursor=a%20b", http.StatusBadRequest},
		{"unknown cursor", "/api/v1/chats?user=u1&cursor=gone", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodGet, tt.target, "")
			require.Equal(t, tt.status, w.Code)
		})
	}
}

func TestGetChat(t *testing.T) {
	s, st := newTestServer(t, Config{})
	chat := seedChats(t, st, "u1", 1)[0]
	_, err := st.AddMessage(context.Background(), chat.ID, "user", "hello")
	require.NoError(t, err)

	w := do(t, s, http.MethodGet, "/api/v1/chats/"+chat.ID, "")
	require.Equal(t, http.StatusOK, w.Code)

	var got models.Chat
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	require.Equal(t, chat.ID, got.ID)
	require.Len(t, got.Messages, 1)

	w = do(t, s, http.MethodGet, "/api/v1/chats/missing", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "not_found", decodeError(t, w).Error)
}

func TestDeleteChat(t *testing.T) {
	s, st := newTestServer(t, Config{})
	chat := seedChats(t, st, "u1", 1)[0]

	w := do(t, s, http.MethodDelete, "/api/v1/chats/"+chat.ID, "")
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, s, http.MethodDelete, "/api/v1/chats/"+chat.ID, "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateTitle(t *testing.T) {
	s, st := newTestServer(t, Config{})
	chat := seedChats(t, st, "u1", 1)[0]

	w := do(t, s, http.MethodPatch, "/api/v1/chats/"+chat.ID, `{"title":"  Renamed "}`)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.Chat
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	require.Equal(t, "Renamed", got.Title)

	w = do(t, s, http.MethodPatch, "/api/v1/chats/"+chat.ID, `{"title":"   "}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Title cannot be empty", decodeError(t, w).Message)

	w = do(t, s, http.MethodPatch, "/api/v1/chats/"+chat.ID, `not json`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPatch, "/api/v1/chats/missing", `{"title":"x"}`)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuth(t *testing.T) {
	s, st := newTestServer(t, Config{Token: "secret"})
	seedChats(t, st, "u1", 1)

	w := do(t, s, http.MethodGet, "/api/v1/chats?user=u1", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, s, http.MethodGet, "/api/v1/chats?user=u1", "", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "wrong"})
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, s, http.MethodGet, "/api/v1/chats?user=u1", "", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "secret"})
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, http.MethodGet, "/api/v1/chats?user=u1", "", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer secret")
	})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit(t *testing.T) {
	s, _ := newTestServer(t, Config{RatePerSecond: 0.001, Burst: 2})

	for i := 0; i < 2; i++ {
		w := do(t, s, http.MethodGet, "/health", "")
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := do(t, s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "1", w.Header().Get("Retry-After"))
	require.Equal(t, "rate_limit_exceeded", decodeError(t, w).Error)

	other := do(t, s, http.MethodGet, "/health", "", func(r *http.Request) {
		r.Header.Set("X-Real-IP", "10.0.0.9")
	})
	require.Equal(t, http.StatusOK, other.Code)
}
