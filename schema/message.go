package schema

import "encoding/json"

// MessageKind is the top-level category of an engine message.
type MessageKind string

const (
	// KindSay is output the engine produced on its own.
	KindSay MessageKind = "say"
	// KindAsk is a question or approval request from the engine.
	KindAsk MessageKind = "ask"
)

// Subkind refines a message kind.
type Subkind string

const (
	// SubkindText is plain assistant text.
	SubkindText Subkind = "text"
	// SubkindReasoning is model reasoning output.
	SubkindReasoning Subkind = "reasoning"
	// SubkindTask echoes the task text.
	SubkindTask Subkind = "task"
	// SubkindAPIRequestStarted marks an API request.
	SubkindAPIRequestStarted Subkind = "api_req_started"
	// SubkindTool describes a tool use.
	SubkindTool Subkind = "tool"
	// SubkindCommand is a command the engine wants to run.
	SubkindCommand Subkind = "command"
	// SubkindCommandOutput is output from a command.
	SubkindCommandOutput Subkind = "command_output"
	// SubkindFollowup is a follow-up question.
	SubkindFollowup Subkind = "followup"
	// SubkindPlanModeRespond is a plan-mode reply.
	SubkindPlanModeRespond Subkind = "plan_mode_respond"
	// SubkindError is an engine-side error.
	SubkindError Subkind = "error"
	// SubkindCompletionResult is the terminal result of a task.
	SubkindCompletionResult Subkind = "completion_result"
)

// Message is one decoded engine message.
// Text and Partial are optional on the wire; nil means absent.
type Message struct {
	Kind      MessageKind
	Subkind   Subkind
	Text      *string
	Partial   *bool
	Index     int
	Timestamp int64
}

// TextValue returns the text, or "" when absent.
func (m Message) TextValue() string {
	if m.Text == nil {
		return ""
	}
	return *m.Text
}

// HasText reports whether the text field was present.
func (m Message) HasText() bool {
	return m.Text != nil
}

// IsPartial reports whether the message is still streaming. Absent means false.
func (m Message) IsPartial() bool {
	return m.Partial != nil && *m.Partial
}

// Snapshot is one decoded state update.
type Snapshot struct {
	Mode     Mode
	Messages []Message
	Raw      json.RawMessage
}

// StatePayload is the engine's state JSON as sent on the wire.
type StatePayload struct {
	Mode     *string       `json:"mode,omitempty"`
	Messages []WireMessage `json:"clineMessages"`
}

// WireMessage is a single entry of StatePayload.Messages.
type WireMessage struct {
	Type                     string  `json:"type"`
	Say                      *string `json:"say,omitempty"`
	Ask                      *string `json:"ask,omitempty"`
	Text                     *string `json:"text,omitempty"`
	Partial                  *bool   `json:"partial,omitempty"`
	ConversationHistoryIndex *int    `json:"conversationHistoryIndex,omitempty"`
	Timestamp                int64   `json:"ts,omitempty"`
}

// StringPtr returns a pointer to value.
func StringPtr(value string) *string {
	return &value
}

// BoolPtr returns a pointer to value.
func BoolPtr(value bool) *bool {
	return &value
}

// IntPtr returns a pointer to value.
func IntPtr(value int) *int {
	return &value
}
