package store

import (
	"context"
	"fmt"
	"time"

	"github.com/diogo/chathist/internal/models"
)

var seedTopics = []string{
	"Refactor the billing worker",
	"Trip ideas for Lisbon",
	"Explain Go generics",
	"SQL index tuning",
	"Birthday gift brainstorm",
	"Kubernetes liveness probes",
	"Weekly meal plan",
	"Rust vs Go for CLIs",
	"Draft a cover letter",
	"Debug flaky integration test",
	"Sourdough starter schedule",
	"Summarize the Q3 report",
}

// seedAges spreads sample chats across every history bucket.
var seedAges = []time.Duration{
	10 * time.Minute,
	3 * time.Hour,
	26 * time.Hour,
	50 * time.Hour,
	4 * 24 * time.Hour,
	8 * 24 * time.Hour,
	12 * 24 * time.Hour,
	20 * 24 * time.Hour,
	40 * 24 * time.Hour,
	90 * 24 * time.Hour,
	200 * 24 * time.Hour,
	400 * 24 * time.Hour,
}

// Seed creates n sample chats for userID with ages relative to now.
// Every third chat is public and each one gets a short exchange.
func (s *Store) Seed(ctx context.Context, userID string, n int, now time.Time) ([]models.Chat, error) {
	chats := make([]models.Chat, 0, n)
	for i := 0; i < n; i++ {
		title := seedTopics[i%len(seedTopics)]
		if i >= len(seedTopics) {
			title = fmt.Sprintf("%s (%d)", title, i/len(seedTopics)+1)
		}
		age := seedAges[i%len(seedAges)] + time.Duration(i/len(seedAges))*time.Minute

		visibility := models.VisibilityPrivate
		if i%3 == 2 {
			visibility = models.VisibilityPublic
		}

		chat, err := s.CreateChat(ctx, NewChat{
			UserID:     userID,
			Title:      title,
			Visibility: visibility,
			CreatedAt:  now.Add(-age),
		})
		if err != nil {
			return chats, err
		}
		if _, err := s.AddMessage(ctx, chat.ID, "user", "Help me with: "+title); err != nil {
			return chats, err
		}
		if _, err := s.AddMessage(ctx, chat.ID, "assistant", "Sure. Here is a starting point for "+title+"."); err != nil {
			return chats, err
		}
		chats = append(chats, *chat)
	}
	return chats, nil
}
