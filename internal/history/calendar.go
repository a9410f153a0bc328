// Package history groups and labels conversations by when they were created.
package history

import "time"

// DateLayout is the fixed day/month/year layout used wherever a chat date is
// rendered as text, including the text the search matches dates against.
const DateLayout = "02/01/2006"

// FormatDate renders t in the location of ref using DateLayout.
func FormatDate(t time.Time, ref time.Time) string {
	return t.In(ref.Location()).Format(DateLayout)
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartOfWeek returns midnight of the Monday that begins t's ISO week.
func StartOfWeek(t time.Time) time.Time {
	day := StartOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.AddDate(0, 0, -offset)
}

// SameDay reports whether a and b fall on the same calendar day in b's location.
func SameDay(a, b time.Time) bool {
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// IsToday reports whether t falls on now's calendar day.
func IsToday(t, now time.Time) bool {
	return SameDay(t, now)
}

// IsYesterday reports whether t falls on the calendar day before now.
func IsYesterday(t, now time.Time) bool {
	return SameDay(t, now.AddDate(0, 0, -1))
}

// IsThisWeek reports whether t falls in now's ISO week (Monday start).
func IsThisWeek(t, now time.Time) bool {
	return StartOfWeek(t.In(now.Location())).Equal(StartOfWeek(now))
}

// IsThisMonth reports whether t falls in now's calendar month.
func IsThisMonth(t, now time.Time) bool {
	t = t.In(now.Location())
	return t.Year() == now.Year() && t.Month() == now.Month()
}
