package core

import (
	"bytes"
	"encoding/json"
	"fmt"

	"pkt.systems/taskstream/schema"
)

// DecodeSnapshot parses a raw state update. Failures are returned as
// *DecodeError.
func DecodeSnapshot(raw RawSnapshot) (schema.Snapshot, error) {
	data := bytes.TrimSpace(raw.StateJSON)
	if len(data) == 0 {
		return schema.Snapshot{}, newDecodeError(raw.StateJSON, fmt.Errorf("empty state payload"))
	}
	var payload schema.StatePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return schema.Snapshot{}, newDecodeError(raw.StateJSON, err)
	}
	if payload.Mode == nil {
		return schema.Snapshot{}, newDecodeError(raw.StateJSON, schema.ErrMissingMode)
	}
	mode, err := schema.ParseMode(*payload.Mode)
	if err != nil {
		return schema.Snapshot{}, newDecodeError(raw.StateJSON, fmt.Errorf("%w %q", err, *payload.Mode))
	}
	messages := make([]schema.Message, 0, len(payload.Messages))
	for i, wire := range payload.Messages {
		msg, err := decodeMessage(wire)
		if err != nil {
			return schema.Snapshot{}, newDecodeError(raw.StateJSON, fmt.Errorf("message %d: %w", i, err))
		}
		messages = append(messages, msg)
	}
	return schema.Snapshot{
		Mode:     mode,
		Messages: messages,
		Raw:      append(json.RawMessage(nil), data...),
	}, nil
}

func decodeMessage(wire schema.WireMessage) (schema.Message, error) {
	if wire.ConversationHistoryIndex == nil {
		return schema.Message{}, schema.ErrMissingIndex
	}
	kind := schema.MessageKind(wire.Type)
	var subkind *string
	switch kind {
	case schema.KindSay:
		subkind = wire.Say
	case schema.KindAsk:
		subkind = wire.Ask
	default:
		subkind = wire.Say
		if subkind == nil {
			subkind = wire.Ask
		}
	}
	msg := schema.Message{
		Kind:      kind,
		Text:      wire.Text,
		Partial:   wire.Partial,
		Index:     *wire.ConversationHistoryIndex,
		Timestamp: wire.Timestamp,
	}
	if subkind != nil {
		msg.Subkind = schema.Subkind(*subkind)
	}
	return msg, nil
}

// EncodeSnapshot renders a snapshot back into the engine's state JSON.
func EncodeSnapshot(snapshot schema.Snapshot) ([]byte, error) {
	mode := string(snapshot.Mode)
	payload := schema.StatePayload{Mode: &mode, Messages: make([]schema.WireMessage, 0, len(snapshot.Messages))}
	for _, msg := range snapshot.Messages {
		wire := schema.WireMessage{
			Type:                     string(msg.Kind),
			Text:                     msg.Text,
			Partial:                  msg.Partial,
			ConversationHistoryIndex: schema.IntPtr(msg.Index),
			Timestamp:                msg.Timestamp,
		}
		if msg.Subkind != "" {
			subkind := string(msg.Subkind)
			if msg.Kind == schema.KindAsk {
				wire.Ask = &subkind
			} else {
				wire.Say = &subkind
			}
		}
		payload.Messages = append(payload.Messages, wire)
	}
	return json.Marshal(payload)
}
