package history

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	apierrors "github.com/diogo/chathist/internal/errors"
	"github.com/diogo/chathist/internal/models"
)

// DefaultResolveLimit caps how many chats a reference is resolved against.
const DefaultResolveLimit = 500

// Lister is the subset of the chat service the resolver needs
type Lister interface {
	FetchPage(ctx context.Context, userID, cursor string, limit int) (*models.Page, error)
}

// Resolver resolves user-friendly references to chat IDs
type Resolver struct {
	lister   Lister
	userID   string
	pageSize int
	limit    int
}

// NewResolver creates a new reference resolver for the chats owned by userID
func NewResolver(lister Lister, userID string) *Resolver {
	return &Resolver{
		lister:   lister,
		userID:   userID,
		pageSize: models.DefaultPageSize,
		limit:    DefaultResolveLimit,
	}
}

// WithLimit changes how many chats are scanned (0 keeps the default)
func (r *Resolver) WithLimit(limit int) *Resolver {
	if limit > 0 {
		r.limit = limit
	}
	return r
}

// List walks the pages of the user's chats, newest first, up to the limit.
func (r *Resolver) List(ctx context.Context) ([]models.Chat, error) {
	var (
		chats  []models.Chat
		cursor string
	)
	seen := make(map[string]struct{})

	for len(chats) < r.limit {
		page, err := r.lister.FetchPage(ctx, r.userID, cursor, r.pageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to list chats: %w", err)
		}
		if page == nil || len(page.Chats) == 0 {
			break
		}
		for _, c := range page.Chats {
			if _, dup := seen[c.ID]; dup {
				continue
			}
			seen[c.ID] = struct{}{}
			chats = append(chats, c)
		}
		if !page.HasMore {
			break
		}
		cursor = page.LastID()
	}

	if len(chats) > r.limit {
		chats = chats[:r.limit]
	}
	return chats, nil
}

// Resolve converts a user-friendly reference to a chat ID
//
// Supported references:
//   - "@last" - most recently created chat
//   - "@first" - oldest chat
//   - "1", "2", "3" - by index (1-based, newest first)
//   - exact chat ID
//   - "substring" - case-insensitive match on title (error if several match)
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	chat, err := r.ResolveChat(ctx, ref)
	if err != nil {
		return "", err
	}
	return chat.ID, nil
}

// ResolveChat is like Resolve but returns the listed chat
func (r *Resolver) ResolveChat(ctx context.Context, ref string) (models.Chat, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return models.Chat{}, apierrors.NewValidationError("reference", "empty reference")
	}

	chats, err := r.List(ctx)
	if err != nil {
		return models.Chat{}, err
	}
	if len(chats) == 0 {
		return models.Chat{}, apierrors.NewNotFoundError("chat", ref)
	}

	return Match(chats, ref)
}

// Match resolves ref against an already listed slice of chats.
func Match(chats []models.Chat, ref string) (models.Chat, error) {
	switch strings.ToLower(ref) {
	case "@last":
		return chats[0], nil
	case "@first":
		return chats[len(chats)-1], nil
	}

	if index, err := strconv.Atoi(ref); err == nil {
		if index < 1 || index > len(chats) {
			return models.Chat{}, apierrors.NewValidationError("reference",
				fmt.Sprintf("index %d out of range (1-%d)", index, len(chats)))
		}
		return chats[index-1], nil
	}

	if models.IsValidChatID(ref) {
		for _, c := range chats {
			if c.ID == ref {
				return c, nil
			}
		}
	}

	refLower := strings.ToLower(ref)
	var matches []models.Chat
	for _, c := range chats {
		if strings.Contains(strings.ToLower(c.Title), refLower) {
			matches = append(matches, c)
		}
	}

	switch len(matches) {
	case 0:
		return models.Chat{}, apierrors.NewNotFoundError("chat", ref)
	case 1:
		return matches[0], nil
	default:
		var titles []string
		for _, m := range matches {
			titles = append(titles, fmt.Sprintf("'%s'", m.DisplayTitle()))
		}
		return models.Chat{}, apierrors.NewValidationError("reference",
			fmt.Sprintf("multiple chats match '%s': %s. Use the ID or be more specific",
				ref, strings.Join(titles, ", ")))
	}
}

// ListAliases returns information about supported references
func ListAliases() string {
	return `Supported references:
  @last          Most recently created chat
  @first         Oldest chat
  1, 2, 3        By index (1-based, from most recent)
  <id>           Exact chat ID
  "text"         Search by title substring`
}
