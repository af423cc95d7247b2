package engine

import (
	"github.com/duru-ai/converse/internal/policy"
	"github.com/duru-ai/converse/internal/session"
)

// Action is the validator's decision for a turn: one of the five kinds
// in models (ask_slot, ask_option_group, confirm_action, execute,
// answer) plus everything needed to render and log it.
type Action struct {
	Kind       string
	MessageKey string
	Vars       map[string]any
	UIHints    map[string]any

	// AskKey and Choices are set for clarification actions.
	AskKey  string
	Choices []string

	// Command is set for execute actions.
	Command *policy.Command

	// Reason is a diagnostic code, recorded in traces but never shown
	// to the user.
	Reason string
}

// statePatch is folded into session state by commit. Unset fields leave
// the state untouched, with one exception: slots replace the stored map
// wholesale so intentional drops stick.
type statePatch struct {
	domain     string
	intent     string
	lastAction string

	slots session.Slots

	pending      *session.PendingClarification
	clearPending bool

	confirmPending bool

	world map[string]string

	reason string
}
