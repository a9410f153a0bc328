package render

import (
	"fmt"
	"strings"

	"github.com/diogo/chathist/internal/history"
	"github.com/diogo/chathist/internal/models"
)

// DefaultPreviewMessages is how many messages the dialog preview shows.
const DefaultPreviewMessages = 4

// previewContentLimit caps each message in a preview, in bytes.
const previewContentLimit = 600

// Conversation renders a full chat as styled terminal output.
func Conversation(chat models.Chat, opts Options) (string, error) {
	md := history.ExportMarkdown(chat, history.ExportOptions{IncludeMetadata: true})
	return Markdown(md, opts)
}

// PreviewMarkdown builds the markdown shown beside the list: the first
// maxMessages messages, each cut to a short excerpt around query.
func PreviewMarkdown(chat models.Chat, query string, maxMessages int) string {
	if maxMessages <= 0 {
		maxMessages = DefaultPreviewMessages
	}

	var sb strings.Builder
	sb.WriteString("### ")
	sb.WriteString(chat.DisplayTitle())
	sb.WriteString("\n\n")

	if len(chat.Messages) == 0 {
		sb.WriteString("_No messages_\n")
		return sb.String()
	}

	shown := chat.Messages
	if len(shown) > maxMessages {
		shown = shown[:maxMessages]
	}
	for _, msg := range shown {
		role := "You"
		if msg.IsAssistant() {
			role = "Assistant"
		}
		fmt.Fprintf(&sb, "**%s:** %s\n\n", role, history.ExtractSnippet(msg.Content, query, previewContentLimit))
	}
	if rest := len(chat.Messages) - len(shown); rest > 0 {
		fmt.Fprintf(&sb, "_…and %d more_\n", rest)
	}
	return sb.String()
}

// Preview renders PreviewMarkdown, falling back to the raw markdown if the
// renderer fails.
func Preview(chat models.Chat, query string, opts Options) string {
	md := PreviewMarkdown(chat, query, DefaultPreviewMessages)
	out, err := Markdown(md, opts)
	if err != nil {
		return md
	}
	return out
}
