package history

import (
	"time"

	"github.com/diogo/chathist/internal/models"
)

// Bucket identifies one of the fixed time windows chats are grouped into.
type Bucket int

const (
	BucketToday Bucket = iota
	BucketYesterday
	BucketThisWeek
	BucketLastWeek
	BucketThisMonth
	BucketOlder
)

// AllBuckets lists the buckets in display order
var AllBuckets = []Bucket{
	BucketToday,
	BucketYesterday,
	BucketThisWeek,
	BucketLastWeek,
	BucketThisMonth,
	BucketOlder,
}

// Label returns the group heading for the bucket
func (b Bucket) Label() string {
	switch b {
	case BucketToday:
		return "Today"
	case BucketYesterday:
		return "Yesterday"
	case BucketThisWeek:
		return "This Week"
	case BucketLastWeek:
		return "Last Week"
	case BucketThisMonth:
		return "This Month"
	default:
		return "Older"
	}
}

// Buckets is a partition of a chat list by creation date.
type Buckets struct {
	Today     []models.Chat
	Yesterday []models.Chat
	ThisWeek  []models.Chat
	LastWeek  []models.Chat
	ThisMonth []models.Chat
	Older     []models.Chat
}

// Group is a labelled, non-empty bucket
type Group struct {
	Bucket Bucket
	Label  string
	Chats  []models.Chat
}

// Get returns the chats in bucket b
func (bs Buckets) Get(b Bucket) []models.Chat {
	switch b {
	case BucketToday:
		return bs.Today
	case BucketYesterday:
		return bs.Yesterday
	case BucketThisWeek:
		return bs.ThisWeek
	case BucketLastWeek:
		return bs.LastWeek
	case BucketThisMonth:
		return bs.ThisMonth
	default:
		return bs.Older
	}
}

// Len returns the total number of chats across all buckets
func (bs Buckets) Len() int {
	n := 0
	for _, b := range AllBuckets {
		n += len(bs.Get(b))
	}
	return n
}

// Groups returns the non-empty buckets in display order
func (bs Buckets) Groups() []Group {
	var groups []Group
	for _, b := range AllBuckets {
		chats := bs.Get(b)
		if len(chats) == 0 {
			continue
		}
		groups = append(groups, Group{Bucket: b, Label: b.Label(), Chats: chats})
	}
	return groups
}

// Classify returns the bucket createdAt belongs to relative to now.
// The checks run in priority order because the windows overlap: a chat from
// yesterday is usually also in this week, and "last week" is a rolling seven
// days that excludes the current calendar week.
func Classify(createdAt, now time.Time) Bucket {
	switch {
	case IsToday(createdAt, now):
		return BucketToday
	case IsYesterday(createdAt, now):
		return BucketYesterday
	case IsThisWeek(createdAt, now):
		return BucketThisWeek
	case !createdAt.Before(now.AddDate(0, 0, -7)):
		return BucketLastWeek
	case IsThisMonth(createdAt, now):
		return BucketThisMonth
	default:
		return BucketOlder
	}
}

// Categorize partitions chats into buckets, keeping input order within each.
func Categorize(chats []models.Chat, now time.Time) Buckets {
	var bs Buckets
	for _, chat := range chats {
		switch Classify(chat.CreatedAt, now) {
		case BucketToday:
			bs.Today = append(bs.Today, chat)
		case BucketYesterday:
			bs.Yesterday = append(bs.Yesterday, chat)
		case BucketThisWeek:
			bs.ThisWeek = append(bs.ThisWeek, chat)
		case BucketLastWeek:
			bs.LastWeek = append(bs.LastWeek, chat)
		case BucketThisMonth:
			bs.ThisMonth = append(bs.ThisMonth, chat)
		default:
			bs.Older = append(bs.Older, chat)
		}
	}
	return bs
}
