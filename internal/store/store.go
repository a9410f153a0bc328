// Package store is a SQLite implementation of the chat service: keyset
// paginated listing, delete, rename and full conversation reads.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	apierrors "github.com/diogo/chathist/internal/errors"
	"github.com/diogo/chathist/internal/events"
	"github.com/diogo/chathist/internal/logging"
	"github.com/diogo/chathist/internal/models"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// MaxPageSize caps the limit accepted by FetchPage.
const MaxPageSize = 100

// Store is safe for concurrent use.
type Store struct {
	db     *sql.DB
	bus    events.Bus
	now    func() time.Time
	logger zerolog.Logger
}

// Option configures a Store
type Option func(*Store)

// WithBus publishes change events on bus
func WithBus(bus events.Bus) Option {
	return func(s *Store) {
		s.bus = bus
	}
}

// WithClock replaces the clock used for new records
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string, opts ...Option) (*Store, error) {
	var dsn string
	if path == MemoryPath {
		dsn = "file::memory:?_pragma=foreign_keys(ON)"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open chat database: %w", err)
	}
	if path == MemoryPath {
		// every connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to chat database: %w", err)
	}

	s := &Store{
		db:     db,
		now:    time.Now,
		logger: logging.Component("store"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS chats (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			visibility TEXT NOT NULL DEFAULT 'private',
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			chat_id TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS chats_user_created_idx ON chats(user_id, created_at DESC, id DESC)`,
		`CREATE INDEX IF NOT EXISTS messages_chat_idx ON messages(chat_id, created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize chat schema: %w", err)
		}
	}
	return nil
}

func (s *Store) publish(ctx context.Context, typ events.Type, userID string, ids ...string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, events.NewEvent(typ, userID, ids...))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChat(row rowScanner) (models.Chat, error) {
	var (
		c          models.Chat
		visibility string
		createdAt  int64
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Title, &visibility, &createdAt); err != nil {
		return models.Chat{}, err
	}
	c.Visibility = models.Visibility(visibility)
	c.CreatedAt = time.Unix(0, createdAt).UTC()
	return c, nil
}

const chatColumns = `id, user_id, title, visibility, created_at`

// FetchPage returns up to limit of userID's chats, newest first, starting
// after the chat with ID cursor. An unknown cursor is a NotFoundError.
func (s *Store) FetchPage(ctx context.Context, userID, cursor string, limit int) (*models.Page, error) {
	if limit <= 0 {
		limit = models.DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	var (
		rows *sql.Rows
		err  error
	)
	if cursor == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+chatColumns+` FROM chats
			WHERE user_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?`, userID, limit+1)
	} else {
		var cursorAt int64
		err = s.db.QueryRowContext(ctx,
			`SELECT created_at FROM chats WHERE id = ? AND user_id = ?`, cursor, userID).Scan(&cursorAt)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierrors.NewNotFoundError("cursor", cursor)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve cursor: %w", err)
		}
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+chatColumns+` FROM chats
			WHERE user_id = ? AND (created_at < ? OR (created_at = ? AND id < ?))
			ORDER BY created_at DESC, id DESC
			LIMIT ?`, userID, cursorAt, cursorAt, cursor, limit+1)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer rows.Close()

	page := &models.Page{Chats: make([]models.Chat, 0, limit)}
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		page.Chats = append(page.Chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}

	if len(page.Chats) > limit {
		page.Chats = page.Chats[:limit]
		page.HasMore = true
	}
	return page, nil
}

// DeleteChat removes a chat and its messages.
func (s *Store) DeleteChat(ctx context.Context, id string) error {
	var userID string
	err := s.db.QueryRowContext(ctx, `DELETE FROM chats WHERE id = ? RETURNING user_id`, id).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return apierrors.NewNotFoundError("chat", id)
	}
	if err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}

	s.logger.Debug().Str("chat_id", id).Msg("chat deleted")
	s.publish(ctx, events.TypeChatDeleted, userID, id)
	return nil
}

// UpdateTitle renames a chat and returns it, or nil if it does not exist.
func (s *Store) UpdateTitle(ctx context.Context, id, title string) (*models.Chat, error) {
	title, err := models.NormalizeTitle(title)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`UPDATE chats SET title = ? WHERE id = ? RETURNING `+chatColumns, title, id)
	chat, err := scanChat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update title: %w", err)
	}

	s.publish(ctx, events.TypeChatRenamed, chat.UserID, id)
	return &chat, nil
}

// SetVisibility changes who can open a chat.
func (s *Store) SetVisibility(ctx context.Context, id string, visibility models.Visibility) error {
	if !visibility.Valid() {
		return apierrors.NewValidationError("visibility", "must be public or private")
	}
	res, err := s.db.ExecContext(ctx, `UPDATE chats SET visibility = ? WHERE id = ?`, visibility.String(), id)
	if err != nil {
		return fmt.Errorf("failed to update visibility: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apierrors.NewNotFoundError("chat", id)
	}
	return nil
}

// GetChat returns a chat with all its messages in order.
func (s *Store) GetChat(ctx context.Context, id string) (*models.Chat, error) {
	chat, err := scanChat(s.db.QueryRowContext(ctx,
		`SELECT `+chatColumns+` FROM chats WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierrors.NewNotFoundError("chat", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, created_at FROM messages
		WHERE chat_id = ?
		ORDER BY created_at ASC, rowid ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			msg       models.Message
			createdAt int64
		)
		if err := rows.Scan(&msg.Role, &msg.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.CreatedAt = time.Unix(0, createdAt).UTC()
		chat.Messages = append(chat.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	return &chat, nil
}

// NewChat describes a chat to create.
type NewChat struct {
	UserID     string
	Title      string
	Visibility models.Visibility
	CreatedAt  time.Time // zero = now
}

// CreateChat inserts a chat with a generated ID.
func (s *Store) CreateChat(ctx context.Context, in NewChat) (*models.Chat, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return nil, apierrors.NewValidationError("user", "user ID is required")
	}
	if in.Visibility == "" {
		in.Visibility = models.VisibilityPrivate
	}
	if !in.Visibility.Valid() {
		return nil, apierrors.NewValidationError("visibility", "must be public or private")
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = s.now()
	}
	title := strings.TrimSpace(in.Title)
	if title != "" {
		var err error
		if title, err = models.NormalizeTitle(title); err != nil {
			return nil, err
		}
	}

	chat := models.Chat{
		ID:         uuid.NewString(),
		UserID:     in.UserID,
		Title:      title,
		Visibility: in.Visibility,
		CreatedAt:  in.CreatedAt.UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (`+chatColumns+`) VALUES (?, ?, ?, ?, ?)`,
		chat.ID, chat.UserID, chat.Title, chat.Visibility.String(), chat.CreatedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}

	s.publish(ctx, events.TypeChatCreated, chat.UserID, chat.ID)
	return &chat, nil
}

// AddMessage appends a message to a chat.
func (s *Store) AddMessage(ctx context.Context, chatID, role, content string) (*models.Message, error) {
	if role != "user" && role != "assistant" {
		return nil, apierrors.NewValidationError("role", "must be user or assistant")
	}
	msg := models.Message{Role: role, Content: content, CreatedAt: s.now().UTC()}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, chat_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), chatID, role, content, msg.CreatedAt.UnixNano())
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY") {
			return nil, apierrors.NewNotFoundError("chat", chatID)
		}
		return nil, fmt.Errorf("failed to add message: %w", err)
	}
	return &msg, nil
}

// CountChats returns how many chats userID owns.
func (s *Store) CountChats(ctx context.Context, userID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chats WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chats: %w", err)
	}
	return n, nil
}

// ClearAll deletes every chat owned by userID and returns how many there were.
func (s *Store) ClearAll(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear chats: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.publish(ctx, events.TypeChatsInvalidated, userID)
	}
	return n, nil
}
