package schema

import "strings"

// Mode is the engine's operating posture for a task.
type Mode string

const (
	// ModePlan lets the engine discuss and plan without acting.
	ModePlan Mode = "plan"
	// ModeAct lets the engine edit files and run commands.
	ModeAct Mode = "act"
)

// ParseMode normalizes a mode string. Allowed values: plan, act.
func ParseMode(value string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "plan":
		return ModePlan, nil
	case "act":
		return ModeAct, nil
	default:
		return "", ErrInvalidMode
	}
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	return m == ModePlan || m == ModeAct
}

func (m Mode) String() string {
	return string(m)
}
