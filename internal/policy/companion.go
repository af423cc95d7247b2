package policy

import "github.com/duru-ai/converse/internal/session"

// Companion is the open-ended chat domain. Every utterance is allowed;
// persona and verbosity live in domain preferences, not slots, so they
// survive topic changes.
type Companion struct{}

func NewCompanion() *Companion { return &Companion{} }

func (*Companion) Name() string { return "companion" }

func (*Companion) StickySlots() []string   { return nil }
func (*Companion) EpisodicSlots() []string { return []string{"topic_hint"} }

func (*Companion) Intents() []string {
	return []string{"general_chat", "fallback"}
}

func (*Companion) FallbackIntent() string { return "general_chat" }

func (*Companion) RequiredSlots(string) []string { return nil }

func (*Companion) UsesPendingClarification() bool { return false }

func (*Companion) CheckValidity(string, session.Slots, map[string]string, []string) CheckResult {
	return CheckResult{Outcome: ValidityOK}
}

func (*Companion) BuildCommand(intent string, slots session.Slots) Command {
	return Command{
		Type: "companion_chat",
		Params: map[string]any{
			"intent":     intent,
			"query":      slots.String("query"),
			"topic_hint": slots.String("topic_hint"),
		},
	}
}
