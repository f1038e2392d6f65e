package format

import (
	"encoding/json"
	"fmt"
	"strings"

	"pkt.systems/taskstream/core"
	"pkt.systems/taskstream/schema"
)

// StreamStartMarker is printed when the engine opens a new text block.
const StreamStartMarker = "..."

// PlainRenderer formats surfaced engine messages as plain text lines.
type PlainRenderer struct{}

// NewPlainRenderer returns a default plain-text renderer.
func NewPlainRenderer() *PlainRenderer {
	return &PlainRenderer{}
}

// FormatMessage converts a surfaced message into user-facing lines.
func (p *PlainRenderer) FormatMessage(msg schema.Message) []string {
	if core.IsStreamStart(msg) {
		return []string{StreamStartMarker}
	}
	text := msg.TextValue()
	switch msg.Subkind {
	case schema.SubkindAPIRequestStarted:
		return nil
	case schema.SubkindReasoning:
		return markLines("> ", splitLines(text))
	case schema.SubkindCommand:
		return formatCommand(text)
	case schema.SubkindCommandOutput:
		return splitLines(strings.TrimRight(text, "\n"))
	case schema.SubkindTool:
		return []string{formatTool(text)}
	case schema.SubkindFollowup, schema.SubkindPlanModeRespond:
		return markLines("? ", splitLines(formatQuestion(text)))
	case schema.SubkindError:
		if text == "" {
			return []string{"error: unknown"}
		}
		return markLines("error: ", splitLines(text))
	case schema.SubkindCompletionResult:
		return p.FormatCompletion(msg)
	default:
		return splitLines(text)
	}
}

// FormatCompletion renders the terminal result of a task.
func (p *PlainRenderer) FormatCompletion(msg schema.Message) []string {
	lines := []string{"result:"}
	return append(lines, splitLines(msg.TextValue())...)
}

// FormatError renders an error reported during the loop.
func (p *PlainRenderer) FormatError(err error) []string {
	if err == nil {
		return nil
	}
	return []string{fmt.Sprintf("warning: %v", err)}
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func markLines(marker string, lines []string) []string {
	if marker == "" || len(lines) == 0 {
		return lines
	}
	marked := make([]string, 0, len(lines))
	for _, line := range lines {
		marked = append(marked, marker+line)
	}
	return marked
}

func formatCommand(text string) []string {
	lines := splitLines(strings.TrimRight(text, "\n"))
	if len(lines) == 0 {
		return nil
	}
	lines[0] = "$ " + lines[0]
	return lines
}

func formatTool(text string) string {
	var payload struct {
		Tool string `json:"tool"`
		Path string `json:"path"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil || payload.Tool == "" {
		if text == "" {
			return "tool"
		}
		return "tool: " + text
	}
	if payload.Path == "" {
		return "tool: " + payload.Tool
	}
	return fmt.Sprintf("tool: %s %s", payload.Tool, payload.Path)
}

func formatQuestion(text string) string {
	var payload struct {
		Question string `json:"question"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return text
	}
	if payload.Question != "" {
		return payload.Question
	}
	if payload.Response != "" {
		return payload.Response
	}
	return text
}
