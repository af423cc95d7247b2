package session

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HistoryLimit bounds the per-conversation turn history. Older turns are
// trimmed from the front.
const HistoryLimit = 30

// SlotValue is the single canonical slot shape. Whatever polymorphic form
// the NLU oracle returns is collapsed into this at the oracle boundary.
type SlotValue struct {
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Slots maps slot name to value. Empty values are pruned, never stored.
type Slots map[string]SlotValue

// PendingClarification marks the slot or option group the system is
// waiting on, along with the choices offered and a minimal slot snapshot
// to resume from.
type PendingClarification struct {
	Kind     string   `json:"kind"` // "slot" | "option_group"
	Key      string   `json:"key"`
	Choices  []string `json:"choices,omitempty"`
	Snapshot Slots    `json:"snapshot,omitempty"`
}

// Turn is one exchanged message in the bounded history.
type Turn struct {
	Role      string    `json:"role"` // "user" | "assistant"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// State is the full per-conversation document persisted in the store.
// The engine is the single writer during a turn; the store owns it
// between turns.
type State struct {
	ConversationID string                       `json:"conversation_id"`
	TurnIndex      int                          `json:"turn_index"`
	CurrentDomain  string                       `json:"current_domain,omitempty"`
	ActiveIntent   string                       `json:"active_intent,omitempty"`
	Slots          Slots                        `json:"slots"`
	Pending        *PendingClarification        `json:"pending_clarification,omitempty"`
	LastAction     string                       `json:"last_system_action,omitempty"`
	ConfirmPending bool                         `json:"confirm_pending,omitempty"`
	History        []Turn                       `json:"history"`
	Preferences    map[string]map[string]string `json:"domain_preferences,omitempty"`
	WorldStatus    map[string]string            `json:"world_status,omitempty"`
	CreatedAt      time.Time                    `json:"created_at"`
	UpdatedAt      time.Time                    `json:"updated_at"`
}

// New creates a fresh default state for a brand-new conversation.
func New() *State {
	now := time.Now().UTC()
	return &State{
		ConversationID: "conv_" + uuid.NewString(),
		TurnIndex:      0,
		Slots:          Slots{},
		History:        []Turn{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Clone returns a deep copy. Commit works on a copy so a cancelled turn
// never leaves a half-mutated state behind.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	out.Slots = s.Slots.Clone()
	if s.Pending != nil {
		p := *s.Pending
		p.Choices = append([]string(nil), s.Pending.Choices...)
		p.Snapshot = s.Pending.Snapshot.Clone()
		out.Pending = &p
	}
	out.History = append([]Turn(nil), s.History...)
	if s.Preferences != nil {
		out.Preferences = make(map[string]map[string]string, len(s.Preferences))
		for d, prefs := range s.Preferences {
			cp := make(map[string]string, len(prefs))
			for k, v := range prefs {
				cp[k] = v
			}
			out.Preferences[d] = cp
		}
	}
	if s.WorldStatus != nil {
		out.WorldStatus = make(map[string]string, len(s.WorldStatus))
		for k, v := range s.WorldStatus {
			out.WorldStatus[k] = v
		}
	}
	return &out
}

// AppendTurn appends to the bounded history, trimming from the front.
func (s *State) AppendTurn(role, text string, at time.Time) {
	s.History = append(s.History, Turn{Role: role, Text: text, Timestamp: at})
	if over := len(s.History) - HistoryLimit; over > 0 {
		s.History = s.History[over:]
	}
}

// SetPreference records a per-domain persistent preference.
func (s *State) SetPreference(domain, key, value string) {
	if value == "" {
		return
	}
	if s.Preferences == nil {
		s.Preferences = map[string]map[string]string{}
	}
	if s.Preferences[domain] == nil {
		s.Preferences[domain] = map[string]string{}
	}
	s.Preferences[domain][key] = value
}

// Preference reads a per-domain preference, or "" when unset.
func (s *State) Preference(domain, key string) string {
	if s.Preferences == nil {
		return ""
	}
	return s.Preferences[domain][key]
}

// Clone returns a shallow-value copy of the slot map.
func (sl Slots) Clone() Slots {
	out := make(Slots, len(sl))
	for k, v := range sl {
		out[k] = v
	}
	return out
}

// Value unwraps the raw value for a slot, or nil when absent.
func (sl Slots) Value(key string) any {
	v, ok := sl[key]
	if !ok {
		return nil
	}
	return v.Value
}

// String unwraps a slot as a trimmed string, or "" when absent or not a
// string.
func (sl Slots) String(key string) string {
	s, _ := sl.Value(key).(string)
	return strings.TrimSpace(s)
}

// Int unwraps a slot as an int, tolerating the float64 that JSON decoding
// produces.
func (sl Slots) Int(key string) (int, bool) {
	switch v := sl.Value(key).(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// StringMap unwraps a slot whose value is a map of strings, such as the
// kiosk option_groups slot.
func (sl Slots) StringMap(key string) map[string]string {
	out := map[string]string{}
	switch m := sl.Value(key).(type) {
	case map[string]string:
		for k, v := range m {
			out[k] = v
		}
	case map[string]any:
		for k, v := range m {
			if s, ok := v.(string); ok {
				out[k] = s
			}
		}
	}
	return out
}

// Keys returns the sorted key list for logging projections.
func (sl Slots) Keys() []string {
	out := make([]string, 0, len(sl))
	for k := range sl {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Prune drops entries whose value is empty. Empty values must never be
// persisted; absence is the only representation of "no value".
func (sl Slots) Prune() Slots {
	out := make(Slots, len(sl))
	for k, v := range sl {
		if IsEmptyValue(v.Value) {
			continue
		}
		out[k] = v
	}
	return out
}

// IsEmptyValue reports whether a slot value counts as "no value": nil,
// blank string, or empty collection.
func IsEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	case map[string]string:
		return len(t) == 0
	default:
		return false
	}
}
