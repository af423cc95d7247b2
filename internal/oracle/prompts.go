package oracle

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/duru-ai/converse/internal/session"
)

const nluSystemPrompt = `You are an NLU router and slot extractor for a multi-domain assistant.
Choose the best (domain, intent) ONLY from the given candidates. Be conservative,
do not invent new domains or intents.

Respond with a single JSON object in exactly this format:
{
  "domain": "chosen_domain",
  "intent": "chosen_intent",
  "intent_confidence": 0.0,
  "slots": {
    "slot_name": {"value": "extracted value", "confidence": 0.0}
  }
}

Rules:
- Extract slots only for information actually present in the user message or state.
- For the "option_groups" slot, value is an array of {"group": "...", "value": "..."} objects.
- If unsure about a slot, omit it entirely. Never invent facts.`

const followupSystemPrompt = `You are a strict dialogue classifier.
Decide whether the user's message is a FOLLOW-UP to the previous context/topic.
Respond with JSON only: {"is_followup": boolean, "confidence": number, "reason": "string"}`

const surfaceRewritePrompt = `Rewrite the base reply so it matches the persona, keeping every fact
(item names, quantities, options, device states) exactly as given. Reply with the
rewritten sentence only, no quotes and no commentary.`

// personaPrompts maps persona keys onto generation system prompts. The
// default is the plain friendly assistant.
var personaPrompts = map[string]string{
	"friendly_helper":      "You are a warm, friendly assistant. Keep answers clear and polite.",
	"expert_professional":  "You are a formal, precise professional assistant. Be businesslike and exact.",
	"witty_rebel":          "You are a witty, slightly sarcastic friend. Stay playful but still helpful.",
	"empathetic_counselor": "You are an endlessly supportive counselor. Validate feelings first, then help.",
}

func personaPrompt(persona string) string {
	if p, ok := personaPrompts[persona]; ok {
		return p
	}
	return personaPrompts["friendly_helper"]
}

// taskPrompts maps generation task kinds onto system prompts.
var taskPrompts = map[string]string{
	"edu_answer":   "You are a tutor. Answer the question about the given topic at the learner's level. Be accurate and concise.",
	"edu_evaluate": "You are a tutor grading a student's answer. Point out what is right, what is wrong, and how to improve.",
	"edu_process":  "You are a writing assistant. Transform the given content as requested (summarize, rewrite, expand or translate).",
	"edu_practice": "You are a tutor. Create practice questions for the given topic at the requested difficulty.",
	"edu_chat":     "You are a friendly tutor making small talk with a learner. Keep it short and gently steer back to studying.",
	"companion_chat": "You are a conversational companion. Chat naturally about whatever the user brings up.",
}

func taskPrompt(kind string) string {
	if p, ok := taskPrompts[kind]; ok {
		return p
	}
	return taskPrompts["companion_chat"]
}

// extractJSON pulls the outermost JSON object out of a model reply that
// may carry stray prose around it.
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return content[start : end+1]
}

// rawNLUResponse matches the oracle wire shape before canonicalization.
type rawNLUResponse struct {
	Domain           string         `json:"domain"`
	Intent           string         `json:"intent"`
	IntentConfidence float64        `json:"intent_confidence"`
	Slots            map[string]any `json:"slots"`
}

// ParseNLUResponse decodes and canonicalizes an NLU oracle reply. Every
// slot shape the model may produce (bare scalars, {value, confidence}
// objects, {group, value} lists) collapses into session.SlotValue.
func ParseNLUResponse(content string) (*NLUResult, error) {
	jsonContent := extractJSON(content)
	if jsonContent == "" {
		return nil, fmt.Errorf("no JSON object found in NLU response")
	}

	var raw rawNLUResponse
	if err := json.Unmarshal([]byte(jsonContent), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse NLU response: %w", err)
	}

	return &NLUResult{
		Domain:           strings.ToLower(strings.TrimSpace(raw.Domain)),
		Intent:           strings.TrimSpace(raw.Intent),
		IntentConfidence: clamp01(raw.IntentConfidence),
		Slots:            CanonicalizeSlots(raw.Slots),
	}, nil
}

// CanonicalizeSlots collapses the oracle's polymorphic slot shapes into
// the engine's single canonical one. Empty values are dropped here so
// they can never overwrite carried state downstream.
func CanonicalizeSlots(raw map[string]any) session.Slots {
	out := session.Slots{}
	for name, v := range raw {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		value := v
		confidence := 0.5
		if m, ok := v.(map[string]any); ok {
			if inner, has := m["value"]; has {
				value = inner
				if c, ok := m["confidence"].(float64); ok {
					confidence = clamp01(c)
				}
			}
		}

		value = canonicalizeValue(value)
		if session.IsEmptyValue(value) {
			continue
		}
		out[name] = session.SlotValue{Value: value, Confidence: confidence}
	}
	return out
}

// canonicalizeValue flattens {group, value} pair lists into a plain map.
func canonicalizeValue(v any) any {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return v
	}

	groups := map[string]any{}
	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			return v // not a group list, leave the array as-is
		}
		g, _ := m["group"].(string)
		if g == "" {
			return v
		}
		if val, has := m["value"]; has && !session.IsEmptyValue(val) {
			groups[g] = val
		}
	}
	return groups
}

// ParseFollowupResponse decodes a continuation oracle reply.
func ParseFollowupResponse(content string) (*FollowupVerdict, error) {
	jsonContent := extractJSON(content)
	if jsonContent == "" {
		return nil, fmt.Errorf("no JSON object found in followup response")
	}

	var raw struct {
		IsFollowup bool    `json:"is_followup"`
		Confidence float64 `json:"confidence"`
		Reason     string  `json:"reason"`
	}
	if err := json.Unmarshal([]byte(jsonContent), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse followup response: %w", err)
	}

	return &FollowupVerdict{
		IsFollowup: raw.IsFollowup,
		Confidence: clamp01(raw.Confidence),
		Reason:     raw.Reason,
	}, nil
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
