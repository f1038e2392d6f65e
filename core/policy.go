package core

import "pkt.systems/taskstream/schema"

// ShouldDisplay decides whether a new message is surfaced. Partial messages
// are held back until final, except the empty say/text message that opens a
// streaming text block.
func ShouldDisplay(msg schema.Message) bool {
	if !msg.IsPartial() {
		return true
	}
	return IsStreamStart(msg)
}

// IsStreamStart reports whether msg is the placeholder for a new streaming
// text block.
func IsStreamStart(msg schema.Message) bool {
	return msg.Kind == schema.KindSay &&
		msg.Subkind == schema.SubkindText &&
		msg.HasText() && msg.TextValue() == ""
}

// IsCompletion reports whether msg is the task's terminal result.
func IsCompletion(msg schema.Message) bool {
	return msg.Subkind == schema.SubkindCompletionResult
}
