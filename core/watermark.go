package core

import (
	"math"

	"pkt.systems/taskstream/schema"
)

// WatermarkUnset is the value of a watermark that has not seen a message.
const WatermarkUnset = math.MinInt

// Watermark tracks the highest message index fully processed. Several
// messages may share an index, so it also remembers what was last evaluated
// at each position of the group sitting on the watermark.
type Watermark struct {
	index int
	group []fingerprint
}

type fingerprint struct {
	present bool
	kind    schema.MessageKind
	subkind schema.Subkind
	hasText bool
	text    string
	partial bool
}

func fingerprintOf(msg schema.Message) fingerprint {
	return fingerprint{
		present: true,
		kind:    msg.Kind,
		subkind: msg.Subkind,
		hasText: msg.HasText(),
		text:    msg.TextValue(),
		partial: msg.IsPartial(),
	}
}

// NewWatermark returns an unset watermark.
func NewWatermark() *Watermark {
	return &Watermark{index: WatermarkUnset}
}

// Value returns the current watermark index, or WatermarkUnset.
func (w *Watermark) Value() int {
	return w.index
}

// IsSet reports whether any message has been processed.
func (w *Watermark) IsSet() bool {
	return w.index != WatermarkUnset
}

// IsNew reports whether msg is at or above the watermark.
func (w *Watermark) IsNew(msg schema.Message) bool {
	return msg.Index >= w.index
}

// Redelivered reports whether msg, at the given position within its index
// group, is identical to what was already evaluated there.
func (w *Watermark) Redelivered(msg schema.Message, ordinal int) bool {
	if !w.IsSet() || msg.Index != w.index {
		return false
	}
	if ordinal < 0 || ordinal >= len(w.group) {
		return false
	}
	return w.group[ordinal] == fingerprintOf(msg)
}

// Advance settles the watermark on msg's index. It never moves backwards.
func (w *Watermark) Advance(msg schema.Message, ordinal int) {
	if msg.Index < w.index {
		return
	}
	if msg.Index > w.index {
		w.index = msg.Index
		w.group = w.group[:0]
	}
	if ordinal < 0 {
		return
	}
	for len(w.group) <= ordinal {
		w.group = append(w.group, fingerprint{})
	}
	w.group[ordinal] = fingerprintOf(msg)
}
