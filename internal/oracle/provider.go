// Package oracle wraps the external reasoning services the engine
// consults: NLU inference, follow-up classification and text generation.
// Every call site in the engine has a local fallback, so an oracle
// outage degrades a turn instead of failing it.
package oracle

import (
	"context"

	"github.com/duru-ai/converse/internal/policy"
	"github.com/duru-ai/converse/internal/session"
)

// StateSummary is the compact state projection sent to oracles. Raw slot
// values other than the previous topic are never included.
type StateSummary struct {
	TurnIndex  int      `json:"turn_index"`
	Domain     string   `json:"current_domain,omitempty"`
	Intent     string   `json:"active_intent,omitempty"`
	LastAction string   `json:"last_system_action,omitempty"`
	PrevTopic  string   `json:"prev_topic,omitempty"`
	SlotKeys   []string `json:"slot_keys,omitempty"`
}

// NLUResult is the canonical turn understanding, immutable once
// received. Slot shapes are normalized at this boundary so the engine
// only ever sees session.SlotValue.
type NLUResult struct {
	Domain           string
	Intent           string
	IntentConfidence float64
	Slots            session.Slots
}

// FollowupVerdict is the continuation oracle's answer.
type FollowupVerdict struct {
	IsFollowup bool
	Confidence float64
	Reason     string
}

// GenerationTask is a structured request to the generation oracle.
type GenerationTask struct {
	Kind      string         // "edu_answer", "edu_evaluate", "companion_chat", "surface_rewrite", ...
	Persona   string
	Verbosity string
	BaseText  string // surface_rewrite input
	Params    map[string]any
	History   []session.Turn
}

// NLU turns an utterance plus state summary into a candidate
// (domain, intent, slots) structure.
type NLU interface {
	Infer(ctx context.Context, utterance string, summary StateSummary, candidates []policy.Candidate) (*NLUResult, error)
}

// FollowupClassifier decides whether an utterance continues the prior
// exchange.
type FollowupClassifier interface {
	Classify(ctx context.Context, utterance string, summary StateSummary) (*FollowupVerdict, error)
}

// Generator produces natural-language replies and persona rewrites.
type Generator interface {
	Generate(ctx context.Context, task GenerationTask) (string, error)
}
