package search

import (
	"fmt"
	"strings"
)

// Mode selects which chat field an unprefixed query is matched against.
type Mode string

const (
	ModeAll        Mode = "all"
	ModeTitle      Mode = "title"
	ModeDate       Mode = "date"
	ModeVisibility Mode = "visibility"
)

// Modes lists the modes in cycling order
var Modes = []Mode{ModeAll, ModeTitle, ModeDate, ModeVisibility}

// Next returns the mode after m in the cycle all → title → date → visibility
func (m Mode) Next() Mode {
	for i, mode := range Modes {
		if mode == m {
			return Modes[(i+1)%len(Modes)]
		}
	}
	return ModeAll
}

// Label returns the short name shown on the mode badge
func (m Mode) Label() string {
	switch m {
	case ModeTitle:
		return "Title"
	case ModeDate:
		return "Date"
	case ModeVisibility:
		return "Visibility"
	default:
		return "All"
	}
}

// Placeholder returns the search input hint for the mode
func (m Mode) Placeholder() string {
	switch m {
	case ModeTitle:
		return "Search by title..."
	case ModeDate:
		return "Search by date (DD/MM/YY)..."
	case ModeVisibility:
		return "Search by visibility (public/private)..."
	default:
		return "Search chats... (public:, private:, today:, week:, month:, date:)"
	}
}

// NextMode is a convenience for m.Next()
func NextMode(m Mode) Mode {
	return m.Next()
}

// ParseMode parses a mode name; the empty string is ModeAll
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAll:
		return ModeAll, nil
	case ModeTitle:
		return ModeTitle, nil
	case ModeDate:
		return ModeDate, nil
	case ModeVisibility:
		return ModeVisibility, nil
	default:
		return "", fmt.Errorf("unknown search mode %q (want all, title, date or visibility)", s)
	}
}
