package api

import (
	"time"

	"github.com/tidwall/gjson"

	apierrors "github.com/diogo/chathist/internal/errors"
	"github.com/diogo/chathist/internal/models"
)

// parsePage extracts a page of chats from a list response.
func parsePage(body []byte) (*models.Page, error) {
	if !gjson.ValidBytes(body) {
		return nil, apierrors.NewParseError("response is not valid JSON", "")
	}
	root := gjson.ParseBytes(body)

	chats := root.Get(PathChats)
	if !chats.IsArray() {
		return nil, apierrors.NewParseError("missing chats array", PathChats)
	}

	page := &models.Page{HasMore: root.Get(PathHasMore).Bool()}
	var parseErr error
	chats.ForEach(func(_, value gjson.Result) bool {
		chat, err := parseChat(value)
		if err != nil {
			parseErr = err
			return false
		}
		page.Chats = append(page.Chats, chat)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return page, nil
}

// parseChatBody extracts a single chat object.
func parseChatBody(body []byte) (*models.Chat, error) {
	if !gjson.ValidBytes(body) {
		return nil, apierrors.NewParseError("response is not valid JSON", "")
	}
	chat, err := parseChat(gjson.ParseBytes(body))
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func parseChat(r gjson.Result) (models.Chat, error) {
	if !r.IsObject() {
		return models.Chat{}, apierrors.NewParseError("chat is not an object", "")
	}

	id := r.Get(PathChatID).String()
	if !models.IsValidChatID(id) {
		return models.Chat{}, apierrors.NewParseError("invalid chat id", PathChatID)
	}

	createdAt, err := parseTime(r.Get(PathChatCreatedAt))
	if err != nil {
		return models.Chat{}, apierrors.NewParseError("invalid timestamp for chat "+id, PathChatCreatedAt)
	}

	chat := models.Chat{
		ID:         id,
		Title:      r.Get(PathChatTitle).String(),
		CreatedAt:  createdAt,
		UserID:     r.Get(PathChatUserID).String(),
		Visibility: models.Visibility(r.Get(PathChatVisibility).String()),
	}
	if !chat.Visibility.Valid() {
		chat.Visibility = models.VisibilityPrivate
	}

	r.Get(PathChatMessages).ForEach(func(_, m gjson.Result) bool {
		msgAt, _ := parseTime(m.Get(PathMsgCreatedAt))
		chat.Messages = append(chat.Messages, models.Message{
			Role:      m.Get(PathMsgRole).String(),
			Content:   m.Get(PathMsgContent).String(),
			CreatedAt: msgAt,
		})
		return true
	})

	return chat, nil
}

// parseTime accepts RFC 3339 strings and Unix milliseconds.
func parseTime(r gjson.Result) (time.Time, error) {
	if r.Type == gjson.Number {
		return time.UnixMilli(r.Int()).UTC(), nil
	}
	return time.Parse(time.RFC3339Nano, r.String())
}
