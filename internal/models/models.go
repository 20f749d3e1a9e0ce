package models

import (
	"strings"
	"time"
)

// Turn roles as stored in the conversation log and sent to the model.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ThreadID identifies one channel-scoped conversation. For a top-level
// message the thread timestamp is the message's own timestamp.
type ThreadID struct {
	ChannelID string `json:"channel_id"`
	ThreadTS  string `json:"thread_ts"`
}

// Turn is one role-tagged message in a thread's history
type Turn struct {
	Thread    ThreadID  `json:"thread"`
	Role      string    `json:"role"`
	UserName  string    `json:"user_name,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// TurnRequest is the normalized inbound event the orchestrator consumes,
// resolved once at the platform boundary.
type TurnRequest struct {
	RequestID string
	Thread    ThreadID
	MessageTS string
	UserID    string
	Text      string

	// ImageURL is an authenticated download URL for an attached image,
	// empty when the message carries none.
	ImageURL  string
	ImageMime string
}

// ToolCall is one capability invocation requested by the model.
// Arguments is the raw JSON argument object as the model emitted it.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolResult answers exactly one ToolCall. Content is always text: binary
// artifacts are side-effected elsewhere and acknowledged here in prose.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Content    string `json:"content"`
}

// ChannelSetting is an optional per-channel override of the default model.
type ChannelSetting struct {
	ChannelID string    `json:"channel_id"`
	Model     string    `json:"model"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ModerationVerdict is the classification of one user utterance.
// It is consumed once and never persisted.
type ModerationVerdict struct {
	Flagged    bool
	Categories []string
}

// SelfHarm reports whether any flagged category is self-harm related.
// Category-specific messaging takes precedence over the generic policy
// reply when both could apply.
func (v ModerationVerdict) SelfHarm() bool {
	for _, c := range v.Categories {
		if strings.HasPrefix(c, "self-harm") {
			return true
		}
	}
	return false
}
