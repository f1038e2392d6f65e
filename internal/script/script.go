// Package script drives a fake engine from a YAML description of the state
// updates it should publish.
package script

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"pkt.systems/taskstream/schema"
)

// Script is a scripted engine run.
type Script struct {
	// TaskID is returned from new task calls. Empty generates a uuid.
	TaskID string `yaml:"task_id"`
	// InitialMode is the engine mode before any task or toggle. Defaults to plan.
	InitialMode string `yaml:"initial_mode"`
	// Hold keeps the state stream open after the last step until the
	// subscriber goes away.
	Hold bool `yaml:"hold"`
	// RejectToggles answers every mode toggle with false.
	RejectToggles bool `yaml:"reject_toggles"`
	Steps         []Step `yaml:"steps"`
}

// Step is one published state update.
type Step struct {
	// Mode overrides the reported mode. Empty reports the engine's current mode.
	Mode string `yaml:"mode"`
	// Raw is sent verbatim instead of an encoded payload.
	Raw string `yaml:"raw"`
	// Delay is waited before the update is sent.
	Delay    time.Duration `yaml:"delay"`
	Messages []Message     `yaml:"messages"`
}

// Message is a state message in wire shape.
type Message struct {
	Type    string  `yaml:"type"`
	Say     string  `yaml:"say"`
	Ask     string  `yaml:"ask"`
	Text    *string `yaml:"text"`
	Partial *bool   `yaml:"partial"`
	Index   *int    `yaml:"index"`
	TS      int64   `yaml:"ts"`
}

// Load reads and parses a script file.
func Load(path string) (Script, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Script{}, errors.New("script path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("read script %s: %w", path, err)
	}
	script, err := Parse(data)
	if err != nil {
		return Script{}, fmt.Errorf("script %s: %w", path, err)
	}
	return script, nil
}

// Parse decodes a YAML script and validates it.
func Parse(data []byte) (Script, error) {
	var script Script
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&script); err != nil {
		return Script{}, fmt.Errorf("parse script: %w", err)
	}
	if err := script.Validate(); err != nil {
		return Script{}, err
	}
	return script, nil
}

// Validate checks modes and message kinds.
func (s Script) Validate() error {
	if s.InitialMode != "" {
		if _, err := schema.ParseMode(s.InitialMode); err != nil {
			return fmt.Errorf("initial_mode: %w %q", err, s.InitialMode)
		}
	}
	for i, step := range s.Steps {
		if step.Delay < 0 {
			return fmt.Errorf("steps[%d].delay must not be negative", i)
		}
		if step.Raw != "" {
			if step.Mode != "" || len(step.Messages) > 0 {
				return fmt.Errorf("steps[%d]: raw cannot be combined with mode or messages", i)
			}
			continue
		}
		if step.Mode != "" {
			if _, err := schema.ParseMode(step.Mode); err != nil {
				return fmt.Errorf("steps[%d].mode: %w %q", i, err, step.Mode)
			}
		}
		for j, msg := range step.Messages {
			switch schema.MessageKind(msg.Type) {
			case schema.KindSay, schema.KindAsk:
			default:
				return fmt.Errorf("steps[%d].messages[%d].type must be say or ask, got %q", i, j, msg.Type)
			}
		}
	}
	return nil
}

func (m Message) wire() schema.WireMessage {
	out := schema.WireMessage{
		Type:                     m.Type,
		Text:                     m.Text,
		Partial:                  m.Partial,
		ConversationHistoryIndex: m.Index,
		Timestamp:                m.TS,
	}
	if m.Say != "" {
		out.Say = schema.StringPtr(m.Say)
	}
	if m.Ask != "" {
		out.Ask = schema.StringPtr(m.Ask)
	}
	return out
}
