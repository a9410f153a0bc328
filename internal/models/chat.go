// Package models contains the data types shared by the chat history packages.
package models

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	apierrors "github.com/diogo/chathist/internal/errors"
)

const (
	// MaxTitleLength is the longest title, in characters, the service accepts.
	MaxTitleLength = 100

	// UntitledPlaceholder is displayed in place of an empty title.
	UntitledPlaceholder = "Untitled Conversation"

	// DefaultPageSize is the number of chats requested per page.
	DefaultPageSize = 20
)

// Visibility controls who can open a chat.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// String returns the string representation of the visibility
func (v Visibility) String() string {
	return string(v)
}

// Valid reports whether v is one of the known visibilities
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// ParseVisibility parses a visibility name, case-insensitively
func ParseVisibility(s string) (Visibility, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "public":
		return VisibilityPublic, nil
	case "private", "":
		return VisibilityPrivate, nil
	default:
		return "", apierrors.NewValidationError("visibility", "must be public or private")
	}
}

// Chat is a conversation record owned by the external store.
// ID, CreatedAt and UserID never change; Title and Visibility may.
type Chat struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	CreatedAt  time.Time  `json:"createdAt"`
	UserID     string     `json:"userId"`
	Visibility Visibility `json:"visibility"`

	// Messages is only populated when the full conversation was requested.
	Messages []Message `json:"messages,omitempty"`
}

// DisplayTitle returns the title, or the placeholder when it is empty
func (c Chat) DisplayTitle() string {
	if strings.TrimSpace(c.Title) == "" {
		return UntitledPlaceholder
	}
	return c.Title
}

// IsPublic reports whether the chat is publicly visible
func (c Chat) IsPublic() bool {
	return c.Visibility == VisibilityPublic
}

// Page is one slice of a user's chat list, in store order.
type Page struct {
	Chats   []Chat `json:"chats"`
	HasMore bool   `json:"hasMore"`
}

// LastID returns the identifier of the last chat in the page, or "" if empty
func (p Page) LastID() string {
	if len(p.Chats) == 0 {
		return ""
	}
	return p.Chats[len(p.Chats)-1].ID
}

var chatIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// IsValidChatID reports whether id has the shape of a chat identifier
func IsValidChatID(id string) bool {
	return chatIDPattern.MatchString(id)
}

// NormalizeTitle trims a user-entered title and checks it against the
// service limits. The returned error is a ValidationError.
func NormalizeTitle(title string) (string, error) {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return "", apierrors.NewValidationError("", "Title cannot be empty")
	}
	if utf8.RuneCountInString(trimmed) > MaxTitleLength {
		return "", apierrors.NewValidationError("", "Title is too long (max 100 characters)")
	}
	return trimmed, nil
}
