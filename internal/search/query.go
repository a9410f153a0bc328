package search

import (
	"strings"
	"time"

	"github.com/diogo/chathist/internal/history"
	"github.com/diogo/chathist/internal/models"
)

// Predicate decides whether a chat is part of the filtered list.
type Predicate func(models.Chat) bool

// All matches every chat
func All(models.Chat) bool { return true }

type prefixRule struct {
	prefix string
	keep   func(c models.Chat, now time.Time) bool
}

// Prefixes are tried in order and are case-sensitive. The text after a
// matched prefix is fuzzy matched against the title, untrimmed.
var prefixRules = []prefixRule{
	{"public:", func(c models.Chat, _ time.Time) bool { return c.Visibility == models.VisibilityPublic }},
	{"private:", func(c models.Chat, _ time.Time) bool { return c.Visibility == models.VisibilityPrivate }},
	{"today:", func(c models.Chat, now time.Time) bool { return history.IsToday(c.CreatedAt, now) }},
	{"week:", func(c models.Chat, now time.Time) bool { return history.IsThisWeek(c.CreatedAt, now) }},
	{"month:", func(c models.Chat, now time.Time) bool { return history.IsThisMonth(c.CreatedAt, now) }},
}

const datePrefix = "date:"

// Compile turns query and mode into a predicate. Dates are interpreted in
// now's location and the predicate is pure, so the same inputs always select
// the same chats.
func Compile(query string, mode Mode, now time.Time) Predicate {
	if query == "" {
		return All
	}

	for _, rule := range prefixRules {
		if strings.HasPrefix(query, rule.prefix) {
			rest := query[len(rule.prefix):]
			keep := rule.keep
			return func(c models.Chat) bool {
				return keep(c, now) && FuzzyMatch(rest, c.Title)
			}
		}
	}

	if strings.HasPrefix(query, datePrefix) {
		return dateMatcher(strings.TrimSpace(query[len(datePrefix):]), now)
	}

	switch mode {
	case ModeTitle:
		return func(c models.Chat) bool {
			return FuzzyMatch(query, c.Title)
		}
	case ModeDate:
		if day, ok := ParseDateQuery(strings.TrimSpace(query), now.Location()); ok {
			return sameDay(day)
		}
		return func(c models.Chat) bool {
			return FuzzyMatch(query, history.FormatDate(c.CreatedAt, now))
		}
	case ModeVisibility:
		return func(c models.Chat) bool {
			return FuzzyMatch(query, c.Visibility.String())
		}
	default:
		return func(c models.Chat) bool {
			return FuzzyMatch(query, c.Title) ||
				FuzzyMatch(query, c.Visibility.String()) ||
				FuzzyMatch(query, history.FormatDate(c.CreatedAt, now))
		}
	}
}

func dateMatcher(text string, now time.Time) Predicate {
	if day, ok := ParseDateQuery(text, now.Location()); ok {
		return sameDay(day)
	}
	return func(c models.Chat) bool {
		return FuzzyMatch(text, history.FormatDate(c.CreatedAt, now))
	}
}

func sameDay(day time.Time) Predicate {
	return func(c models.Chat) bool {
		return history.SameDay(c.CreatedAt, day)
	}
}

// Filter returns the chats accepted by p, in their original order.
func Filter(chats []models.Chat, p Predicate) []models.Chat {
	if p == nil {
		p = All
	}
	out := make([]models.Chat, 0, len(chats))
	for _, c := range chats {
		if p(c) {
			out = append(out, c)
		}
	}
	return out
}

// Apply is Filter(chats, Compile(query, mode, now)).
func Apply(chats []models.Chat, query string, mode Mode, now time.Time) []models.Chat {
	return Filter(chats, Compile(query, mode, now))
}
