package engine

import (
	"strings"

	"github.com/duru-ai/converse/internal/models"
	"github.com/duru-ai/converse/internal/oracle"
	"github.com/duru-ai/converse/internal/session"
)

// mergeTrace records how a turn's slot merge was decided, for logging.
type mergeTrace struct {
	Branch       string // "pending" | "policy" | "default"
	Followup     bool
	FollowupMeta FollowupMeta
	PolicyAction string // "resolved" | "abandoned" | "reask" | ""
	Dropped      []string
}

// Option-value aliases accepted when matching a clarification answer
// against the offered choices.
var choiceAliases = map[string]string{
	"cold":   "iced",
	"ice":    "iced",
	"icy":    "iced",
	"warm":   "hot",
	"heated": "hot",
}

// Phrases that signal the user moved on to a new request instead of
// answering the pending question.
var newRequestMarkers = []string{
	"order", "i want", "i'd like", "get me", "give me", "add",
	"instead", "never mind", "nevermind", "cancel",
}

func looksLikeNewRequest(utterance string) bool {
	msg := strings.ToLower(strings.TrimSpace(utterance))
	for _, m := range newRequestMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

func normalizeChoice(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// matchChoice maps free text onto one of the offered choices, tolerating
// case, extra words and common aliases. Empty result means no match.
func matchChoice(text string, choices []string) string {
	norm := normalizeChoice(text)
	if norm == "" {
		return ""
	}
	if alias, ok := choiceAliases[norm]; ok {
		norm = alias
	}
	for _, c := range choices {
		if normalizeChoice(c) == norm {
			return c
		}
	}
	// Token containment: "iced please" matches "iced".
	tokens := strings.Fields(norm)
	for _, c := range choices {
		cn := normalizeChoice(c)
		for _, t := range tokens {
			if alias, ok := choiceAliases[t]; ok {
				t = alias
			}
			if t == cn {
				return c
			}
		}
	}
	return ""
}

// resolvePendingValue extracts the answer to the pending question from
// the oracle slots or the raw utterance.
func resolvePendingValue(pending *session.PendingClarification, incoming session.Slots, utterance string) (any, bool) {
	// The oracle may have extracted the answer as the contested slot.
	if v, ok := incoming[pending.Key]; ok && !session.IsEmptyValue(v.Value) {
		if len(pending.Choices) == 0 {
			return v.Value, true
		}
		if s, isStr := v.Value.(string); isStr {
			if c := matchChoice(s, pending.Choices); c != "" {
				return c, true
			}
		}
	}
	// For option groups the value may arrive inside the option map.
	if pending.Kind == "option_group" {
		for _, v := range incoming {
			if m, ok := v.Value.(map[string]any); ok {
				if s, ok := m[pending.Key].(string); ok {
					if c := matchChoice(s, pending.Choices); c != "" {
						return c, true
					}
				}
			}
		}
	}
	// Fall back to the raw utterance.
	if len(pending.Choices) > 0 {
		if c := matchChoice(utterance, pending.Choices); c != "" {
			return c, true
		}
		return nil, false
	}
	// Free-text slot answers accept the raw utterance, but not when it
	// reads like a new request rather than an answer.
	if t := strings.TrimSpace(utterance); t != "" && !looksLikeNewRequest(t) {
		return t, true
	}
	return nil, false
}

// normalize merges the oracle's incoming slots with the stored slots
// under the active sub-protocol and returns the effective domain, intent
// and slot set for the rest of the turn. Pure with respect to state.
func (e *Engine) normalize(st *session.State, nlu *oracle.NLUResult, utterance string, followup bool, fmeta FollowupMeta) (string, string, session.Slots, mergeTrace) {
	domainName := nlu.Domain
	intent := nlu.Intent
	incoming := nlu.Slots.Prune()
	trace := mergeTrace{Followup: followup, FollowupMeta: fmeta}

	d, registered := e.registry.Get(st.CurrentDomain)

	// Pending-clarification sub-protocol: a question is outstanding and
	// the domain runs the ask/answer loop.
	pendingActive := st.Pending != nil && registered && d.UsesPendingClarification() &&
		(st.LastAction == models.ActionAskSlot || st.LastAction == models.ActionAskOptionGroup)

	if pendingActive {
		trace.Branch = "pending"
		// The question pins domain and intent regardless of what the
		// oracle guessed.
		domainName = st.CurrentDomain
		intent = st.ActiveIntent

		value, resolved := resolvePendingValue(st.Pending, incoming, utterance)
		if !resolved && looksLikeNewRequest(utterance) {
			// Abandoned: treat as a fresh request under the normal
			// protocol, discarding the snapshot.
			trace.PolicyAction = "abandoned"
			domainName = nlu.Domain
			intent = nlu.Intent
			merged := e.mergeByStickiness(st, domainName, incoming, utterance, followup, &trace)
			return domainName, intent, merged, trace
		}

		merged := st.Pending.Snapshot.Clone()
		if resolved {
			trace.PolicyAction = "resolved"
			if st.Pending.Kind == "option_group" {
				groups := merged.StringMap("option_groups")
				if s, ok := value.(string); ok {
					groups[st.Pending.Key] = s
				}
				gm := make(map[string]any, len(groups))
				for k, v := range groups {
					gm[k] = v
				}
				merged["option_groups"] = session.SlotValue{Value: gm, Confidence: 0.9}
			} else {
				merged[st.Pending.Key] = session.SlotValue{Value: value, Confidence: 0.9}
			}
			// Carry any other answers volunteered in the same breath.
			for k, v := range incoming {
				if k == st.Pending.Key {
					continue
				}
				if _, taken := merged[k]; !taken {
					merged[k] = v
				}
			}
		} else {
			// Unresolved but not a new request: keep the snapshot and
			// whatever else the oracle found, minus the contested key,
			// so the re-ask starts clean.
			trace.PolicyAction = "reask"
			for k, v := range incoming {
				if k == st.Pending.Key {
					trace.Dropped = append(trace.Dropped, k)
					continue
				}
				merged[k] = v
			}
		}
		return domainName, intent, merged.Prune(), trace
	}

	merged := e.mergeByStickiness(st, domainName, incoming, utterance, followup, &trace)
	return domainName, intent, merged, trace
}

// mergeByStickiness runs the sticky/episodic merge for a domain. Sticky
// slots persist until replaced; episodic slots survive only a follow-up
// turn; incoming empty values never overwrite stored ones.
func (e *Engine) mergeByStickiness(st *session.State, domainName string, incoming session.Slots, utterance string, followup bool, trace *mergeTrace) session.Slots {
	d, registered := e.registry.Get(domainName)
	merged := session.Slots{}

	if !registered || domainName != st.CurrentDomain {
		// Unregistered or switched domain: the stored slots belong to
		// another protocol, start from the incoming set alone.
		trace.Branch = "default"
		for k := range st.Slots {
			trace.Dropped = append(trace.Dropped, k)
		}
		return incoming.Prune()
	}

	trace.Branch = "policy"
	sticky := stringSet(d.StickySlots())
	episodic := stringSet(d.EpisodicSlots())

	for k, prior := range st.Slots {
		switch {
		case sticky[k]:
			merged[k] = prior
		case episodic[k]:
			if followup {
				merged[k] = prior
			} else {
				trace.Dropped = append(trace.Dropped, k)
			}
		default:
			merged[k] = prior
		}
	}

	for k, v := range incoming {
		if session.IsEmptyValue(v.Value) {
			continue
		}
		// Episodic values on a non-follow-up turn must be grounded in
		// the utterance; otherwise they are oracle carry-over echoes.
		if episodic[k] && !followup && !groundedInUtterance(v.Value, utterance) {
			trace.Dropped = append(trace.Dropped, k)
			continue
		}
		merged[k] = v
	}

	return merged.Prune()
}

// groundedInUtterance reports whether a slot value's text plausibly came
// from this utterance rather than being echoed from context.
func groundedInUtterance(value any, utterance string) bool {
	s, ok := value.(string)
	if !ok {
		return true
	}
	msg := strings.ToLower(utterance)
	val := strings.ToLower(strings.TrimSpace(s))
	if val == "" {
		return false
	}
	if strings.Contains(msg, val) {
		return true
	}
	for _, tok := range strings.Fields(val) {
		if len(tok) >= 2 && strings.Contains(msg, tok) {
			return true
		}
	}
	return false
}

func stringSet(keys []string) map[string]bool {
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		out[k] = true
	}
	return out
}
