package core

import "time"

const (
	AppName          = "FactBot"
	AppUserAgent     = "FactBot-Agent/0.1"
	AppRepositoryURL = "https://github.com/sandevgo/factbot"
	AppVersion       = "0.1.0"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// AnonymousUID is the placeholder identity some clients send instead of an empty uid.
const AnonymousUID = "demo"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is what a model backend returns for one call.
// Cost is in USD and only set when the backend reports it.
type Completion struct {
	Content string
	Cost    *float64
	Usage   *TokenUsage
}

type EvidenceItem struct {
	Title   string `json:"title,omitempty"`
	Link    string `json:"link,omitempty"`
	Snippet string `json:"snippet,omitempty"`
	Image   string `json:"image,omitempty"`
}

// ConversationTurn is handed back to callers so they can persist it themselves.
type ConversationTurn struct {
	ID        string         `json:"id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	ModelID   string         `json:"model_id"`
	Evidence  []EvidenceItem `json:"evidence,omitempty"`
}

func IsAnonymous(uid string) bool {
	return uid == "" || uid == AnonymousUID
}
