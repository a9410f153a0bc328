package history

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/diogo/chathist/internal/models"
)

// ExportFormat represents the format for exporting chats
type ExportFormat string

const (
	ExportFormatMarkdown ExportFormat = "markdown"
	ExportFormatJSON     ExportFormat = "json"
)

// ParseExportFormat maps a flag value or file extension to an ExportFormat
func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "", "md", "markdown":
		return ExportFormatMarkdown, nil
	case "json":
		return ExportFormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", s)
	}
}

// ExportOptions configures how chats are exported
type ExportOptions struct {
	Format          ExportFormat
	IncludeMetadata bool // Include owner and visibility
}

// DefaultExportOptions returns sensible defaults for export
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		Format:          ExportFormatMarkdown,
		IncludeMetadata: false,
	}
}

// Export renders chat in the format selected by opts
func Export(chat models.Chat, opts ExportOptions) ([]byte, error) {
	if opts.Format == ExportFormatJSON {
		return ExportJSON(chat, opts)
	}
	return []byte(ExportMarkdown(chat, opts)), nil
}

// ExportMarkdown renders a chat and its messages as Markdown
func ExportMarkdown(chat models.Chat, opts ExportOptions) string {
	var sb strings.Builder

	sb.WriteString("# ")
	sb.WriteString(chat.DisplayTitle())
	sb.WriteString("\n\n")

	sb.WriteString("**Created:** ")
	sb.WriteString(chat.CreatedAt.Format("2006-01-02 15:04:05"))
	sb.WriteString("\n")
	if opts.IncludeMetadata {
		sb.WriteString("**Visibility:** ")
		sb.WriteString(chat.Visibility.String())
		sb.WriteString("\n")
		sb.WriteString("**Owner:** ")
		sb.WriteString(chat.UserID)
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("**Messages:** %d", len(chat.Messages)))
	sb.WriteString("\n\n---\n\n")

	for i, msg := range chat.Messages {
		role := "User"
		if msg.IsAssistant() {
			role = "Assistant"
		}

		sb.WriteString("## ")
		sb.WriteString(role)
		if !msg.CreatedAt.IsZero() {
			sb.WriteString(" (")
			sb.WriteString(msg.CreatedAt.Format("15:04:05"))
			sb.WriteString(")")
		}
		sb.WriteString("\n\n")

		sb.WriteString(msg.Content)
		sb.WriteString("\n")

		if i < len(chat.Messages)-1 {
			sb.WriteString("\n---\n\n")
		}
	}

	return sb.String()
}

// ExportJSON renders a chat and its messages as indented JSON
func ExportJSON(chat models.Chat, opts ExportOptions) ([]byte, error) {
	type exportMessage struct {
		Role      string    `json:"role"`
		Content   string    `json:"content"`
		CreatedAt time.Time `json:"created_at"`
	}

	type exportChat struct {
		ID         string          `json:"id"`
		Title      string          `json:"title"`
		CreatedAt  time.Time       `json:"created_at"`
		UserID     string          `json:"user_id,omitempty"`
		Visibility string          `json:"visibility,omitempty"`
		Messages   []exportMessage `json:"messages"`
	}

	export := exportChat{
		ID:        chat.ID,
		Title:     chat.Title,
		CreatedAt: chat.CreatedAt,
		Messages:  make([]exportMessage, len(chat.Messages)),
	}

	if opts.IncludeMetadata {
		export.UserID = chat.UserID
		export.Visibility = chat.Visibility.String()
	}

	for i, msg := range chat.Messages {
		export.Messages[i] = exportMessage{
			Role:      msg.Role,
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
		}
	}

	return json.MarshalIndent(export, "", "  ")
}

// ExtractSnippet returns up to maxLen bytes of content centred on the first
// case-insensitive occurrence of query, with ellipses where it was cut.
func ExtractSnippet(content, query string, maxLen int) string {
	contentLower := strings.ToLower(content)
	queryLower := strings.ToLower(query)

	idx := strings.Index(contentLower, queryLower)
	if idx == -1 || len(contentLower) != len(content) {
		if len(content) > maxLen {
			return truncateRunes(content, maxLen) + "..."
		}
		return content
	}

	half := maxLen / 2
	start := idx - half
	end := idx + len(query) + half

	if start < 0 {
		start = 0
		end = maxLen
	}
	if end > len(content) {
		end = len(content)
		start = end - maxLen
		if start < 0 {
			start = 0
		}
	}

	start, end = runeBoundary(content, start), runeBoundary(content, end)
	snippet := content[start:end]

	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(content) {
		snippet = snippet + "..."
	}

	return snippet
}

func runeBoundary(s string, i int) int {
	for i > 0 && i < len(s) && !isRuneStart(s[i]) {
		i--
	}
	return i
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

func truncateRunes(s string, maxBytes int) string {
	return s[:runeBoundary(s, maxBytes)]
}
