// Package api provides the HTTP client for a hosted chat history service.
package api

// Endpoints, relative to the service base URL.
const (
	EndpointChats = "/api/v1/chats"
)

// GJSON paths for extracting values from service responses.
const (
	PathChats   = "chats"
	PathHasMore = "hasMore"
	PathMessage = "message"

	// Chat object paths
	PathChatID         = "id"
	PathChatTitle      = "title"
	PathChatCreatedAt  = "createdAt"
	PathChatUserID     = "userId"
	PathChatVisibility = "visibility"
	PathChatMessages   = "messages"

	// Message object paths
	PathMsgRole      = "role"
	PathMsgContent   = "content"
	PathMsgCreatedAt = "createdAt"
)

// DefaultHeaders returns the headers sent with every request
func DefaultHeaders() map[string]string {
	return map[string]string{
		"Accept":          "application/json",
		"Accept-Language": "en-US,en;q=0.9",
		"User-Agent":      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
		"Sec-Fetch-Site":  "same-origin",
		"Sec-Fetch-Mode":  "cors",
		"Sec-Fetch-Dest":  "empty",
	}
}
