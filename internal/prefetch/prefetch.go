// Package prefetch fetches full conversations in the background so that
// opening or previewing a chat from the history list is instant.
package prefetch

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/diogo/chathist/internal/logging"
	"github.com/diogo/chathist/internal/models"
)

const (
	DefaultEager      = 10
	DefaultLazy       = 10
	DefaultRate       = 5 // fetches per second
	DefaultBurst      = 2
	DefaultQueueSize  = 64
	DefaultCacheSize  = 100
	DefaultGetTimeout = 10 * time.Second
)

// Getter loads a full conversation.
type Getter interface {
	GetChat(ctx context.Context, id string) (*models.Chat, error)
}

// Priority of a queued fetch
type Priority int

const (
	PriorityHigh Priority = iota
	PriorityLow
)

// Prefetcher runs a single worker that drains the high priority queue before
// the low priority one. Failures are logged at debug level and otherwise
// ignored; nothing here ever reports an error to the caller.
type Prefetcher struct {
	getter  Getter
	limiter *rate.Limiter
	logger  zerolog.Logger

	eager, lazy int
	queueSize   int
	cacheSize   int
	timeout     time.Duration

	high chan string
	low  chan string

	mu     sync.Mutex
	queued map[string]struct{}
	cache  map[string]*list.Element
	order  *list.List

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Option configures a Prefetcher
type Option func(*Prefetcher)

// WithCounts sets how many chats Warm queues at high and low priority
func WithCounts(eager, lazy int) Option {
	return func(p *Prefetcher) {
		p.eager, p.lazy = eager, lazy
	}
}

// WithRate limits fetches to r per second with the given burst
func WithRate(r rate.Limit, burst int) Option {
	return func(p *Prefetcher) {
		p.limiter = rate.NewLimiter(r, burst)
	}
}

// WithQueueSize bounds each priority queue
func WithQueueSize(n int) Option {
	return func(p *Prefetcher) {
		if n > 0 {
			p.queueSize = n
		}
	}
}

// WithCacheSize bounds the number of cached conversations
func WithCacheSize(n int) Option {
	return func(p *Prefetcher) {
		if n > 0 {
			p.cacheSize = n
		}
	}
}

// WithLogger sets the prefetcher's logger
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Prefetcher) {
		p.logger = logger
	}
}

// New creates a Prefetcher and starts its worker. Call Close to stop it.
func New(getter Getter, opts ...Option) *Prefetcher {
	p := &Prefetcher{
		getter:    getter,
		limiter:   rate.NewLimiter(rate.Limit(DefaultRate), DefaultBurst),
		logger:    logging.Component("prefetch"),
		eager:     DefaultEager,
		lazy:      DefaultLazy,
		queueSize: DefaultQueueSize,
		cacheSize: DefaultCacheSize,
		timeout:   DefaultGetTimeout,
		queued:    make(map[string]struct{}),
		cache:     make(map[string]*list.Element),
		order:     list.New(),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.high = make(chan string, p.queueSize)
	p.low = make(chan string, p.queueSize)
	p.ctx, p.cancel = context.WithCancel(context.Background())

	go p.run()
	return p
}

// Warm queues the first eager IDs at high priority and the next lazy IDs at
// low priority.
func (p *Prefetcher) Warm(ids []string) {
	for i, id := range ids {
		switch {
		case i < p.eager:
			p.Enqueue(id, PriorityHigh)
		case i < p.eager+p.lazy:
			p.Enqueue(id, PriorityLow)
		default:
			return
		}
	}
}

// Hover queues id at high priority.
func (p *Prefetcher) Hover(id string) {
	p.Enqueue(id, PriorityHigh)
}

// Focus queues id at high priority.
func (p *Prefetcher) Focus(id string) {
	p.Enqueue(id, PriorityHigh)
}

// Enqueue schedules a fetch of id. IDs already cached or queued are skipped,
// and the request is dropped when the queue is full. It never blocks.
func (p *Prefetcher) Enqueue(id string, prio Priority) bool {
	if id == "" || p.ctx.Err() != nil {
		return false
	}

	p.mu.Lock()
	if _, ok := p.cache[id]; ok {
		p.mu.Unlock()
		return false
	}
	if _, ok := p.queued[id]; ok {
		p.mu.Unlock()
		return false
	}
	p.queued[id] = struct{}{}
	p.mu.Unlock()

	q := p.low
	if prio == PriorityHigh {
		q = p.high
	}

	select {
	case q <- id:
		return true
	default:
		p.mu.Lock()
		delete(p.queued, id)
		p.mu.Unlock()
		p.logger.Debug().Str("chat_id", id).Msg("prefetch queue full, dropping")
		return false
	}
}

// Cached returns the prefetched conversation for id
func (p *Prefetcher) Cached(id string) (*models.Chat, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	elem, ok := p.cache[id]
	if !ok {
		return nil, false
	}
	p.order.MoveToFront(elem)
	return elem.Value.(*models.Chat), true
}

// Put stores a conversation fetched elsewhere
func (p *Prefetcher) Put(chat *models.Chat) {
	if chat == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.putLocked(chat)
}

func (p *Prefetcher) putLocked(chat *models.Chat) {
	if elem, ok := p.cache[chat.ID]; ok {
		elem.Value = chat
		p.order.MoveToFront(elem)
		return
	}
	p.cache[chat.ID] = p.order.PushFront(chat)
	for p.order.Len() > p.cacheSize {
		last := p.order.Back()
		p.order.Remove(last)
		delete(p.cache, last.Value.(*models.Chat).ID)
	}
}

// Forget drops cached conversations, e.g. after they were deleted. Fetches
// of these IDs that are queued or in flight are discarded.
func (p *Prefetcher) Forget(ids ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		delete(p.queued, id)
		if elem, ok := p.cache[id]; ok {
			p.order.Remove(elem)
			delete(p.cache, id)
		}
	}
}

// PatchTitle updates the title of a cached conversation
func (p *Prefetcher) PatchTitle(id, title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if elem, ok := p.cache[id]; ok {
		updated := *elem.Value.(*models.Chat)
		updated.Title = title
		elem.Value = &updated
	}
}

// Len returns the number of cached conversations
func (p *Prefetcher) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.order.Len()
}

// Close stops the worker and waits for it to exit. Queued fetches are dropped.
func (p *Prefetcher) Close() {
	p.once.Do(func() {
		p.cancel()
		<-p.done
	})
}

func (p *Prefetcher) run() {
	defer close(p.done)

	for {
		// drain high priority first
		select {
		case <-p.ctx.Done():
			return
		case id := <-p.high:
			p.fetch(id)
			continue
		default:
		}

		select {
		case <-p.ctx.Done():
			return
		case id := <-p.high:
			p.fetch(id)
		case id := <-p.low:
			p.fetch(id)
		}
	}
}

func (p *Prefetcher) fetch(id string) {
	defer func() {
		p.mu.Lock()
		delete(p.queued, id)
		p.mu.Unlock()
	}()

	p.mu.Lock()
	_, queued := p.queued[id]
	_, cached := p.cache[id]
	p.mu.Unlock()
	if !queued || cached {
		return
	}
	if err := p.limiter.Wait(p.ctx); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	chat, err := p.getter.GetChat(ctx, id)
	if err != nil {
		p.logger.Debug().Err(err).Str("chat_id", id).Msg("prefetch failed")
		return
	}
	if chat == nil {
		return
	}

	p.mu.Lock()
	if _, ok := p.queued[id]; !ok {
		// forgotten while in flight
		p.mu.Unlock()
		return
	}
	p.putLocked(chat)
	p.mu.Unlock()
	p.logger.Debug().Str("chat_id", id).Int("messages", len(chat.Messages)).Msg("prefetched chat")
}
