package history

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultTimeCacheTTL is how long a formatted label is reused.
	DefaultTimeCacheTTL = 30 * time.Second

	// DefaultTimeCacheSize bounds the number of memoized labels.
	DefaultTimeCacheSize = 1000
)

// FormatCompact renders the age of t relative to now in its smallest
// sensible unit: "42s ago", "5m ago", "3h ago", "2d ago", "1w ago", "4mo ago", "2y ago".
// Timestamps in the future are reported as "0s ago".
func FormatCompact(t, now time.Time) string {
	seconds := int64(now.Sub(t) / time.Second)
	if seconds < 0 {
		seconds = 0
	}
	if seconds < 60 {
		return fmt.Sprintf("%ds ago", seconds)
	}

	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm ago", minutes)
	}

	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%dh ago", hours)
	}

	days := hours / 24
	if days < 7 {
		return fmt.Sprintf("%dd ago", days)
	}

	weeks := days / 7
	if weeks < 4 {
		return fmt.Sprintf("%dw ago", weeks)
	}

	months := monthsBetween(t, now)
	if months < 12 {
		return fmt.Sprintf("%dmo ago", months)
	}

	return fmt.Sprintf("%dy ago", months/12)
}

// monthsBetween counts the full calendar months from t to now.
func monthsBetween(t, now time.Time) int {
	t = t.In(now.Location())
	months := (now.Year()-t.Year())*12 + int(now.Month()-t.Month())
	if months > 0 && t.AddDate(0, months, 0).After(now) {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// TimeFormatter memoizes FormatCompact per timestamp. Labels are reused for
// the cache TTL of wall-clock time, and the least recently used entry is
// evicted once the cache is full.
type TimeFormatter struct {
	mu       sync.Mutex
	now      func() time.Time
	ttl      time.Duration
	capacity int
	order    *list.List
	entries  map[int64]*list.Element
}

type timeCacheEntry struct {
	key        int64
	label      string
	computedAt time.Time
}

// TimeFormatterOption configures a TimeFormatter
type TimeFormatterOption func(*TimeFormatter)

// WithClock replaces the wall clock (used by tests)
func WithClock(now func() time.Time) TimeFormatterOption {
	return func(f *TimeFormatter) {
		f.now = now
	}
}

// WithCacheTTL sets how long a label stays valid
func WithCacheTTL(ttl time.Duration) TimeFormatterOption {
	return func(f *TimeFormatter) {
		f.ttl = ttl
	}
}

// WithCacheSize sets the maximum number of cached labels
func WithCacheSize(size int) TimeFormatterOption {
	return func(f *TimeFormatter) {
		f.capacity = size
	}
}

// NewTimeFormatter creates a TimeFormatter with a 30s TTL and 1000 entries
func NewTimeFormatter(opts ...TimeFormatterOption) *TimeFormatter {
	f := &TimeFormatter{
		now:      time.Now,
		ttl:      DefaultTimeCacheTTL,
		capacity: DefaultTimeCacheSize,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.capacity <= 0 {
		f.capacity = DefaultTimeCacheSize
	}
	f.order = list.New()
	f.entries = make(map[int64]*list.Element, f.capacity)
	return f
}

// Format returns the compact relative label for t
func (f *TimeFormatter) Format(t time.Time) string {
	now := f.now()
	key := t.UnixMilli()

	f.mu.Lock()
	defer f.mu.Unlock()

	if elem, ok := f.entries[key]; ok {
		entry := elem.Value.(*timeCacheEntry)
		if now.Sub(entry.computedAt) < f.ttl {
			f.order.MoveToFront(elem)
			return entry.label
		}
		entry.label = FormatCompact(t, now)
		entry.computedAt = now
		f.order.MoveToFront(elem)
		return entry.label
	}

	entry := &timeCacheEntry{
		key:        key,
		label:      FormatCompact(t, now),
		computedAt: now,
	}
	f.entries[key] = f.order.PushFront(entry)

	for f.order.Len() > f.capacity {
		last := f.order.Back()
		if last == nil {
			break
		}
		f.order.Remove(last)
		delete(f.entries, last.Value.(*timeCacheEntry).key)
	}

	return entry.label
}

// Len returns the number of cached labels
func (f *TimeFormatter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.order.Len()
}

// Clear drops every cached label
func (f *TimeFormatter) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.order.Init()
	f.entries = make(map[int64]*list.Element, f.capacity)
}
