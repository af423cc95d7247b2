package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duru-ai/converse/internal/models"
	"github.com/duru-ai/converse/internal/oracle"
	"github.com/duru-ai/converse/internal/session"
)

func pendingState(kind, key string, choices []string, snapshot session.Slots) *session.State {
	st := session.New()
	st.CurrentDomain = "kiosk"
	st.ActiveIntent = "add_item"
	st.Slots = snapshot.Clone()
	st.Pending = &session.PendingClarification{
		Kind: kind, Key: key, Choices: choices, Snapshot: snapshot,
	}
	if kind == "option_group" {
		st.LastAction = models.ActionAskOptionGroup
	} else {
		st.LastAction = models.ActionAskSlot
	}
	return st
}

func TestNormalizePendingAnswerPinsIntent(t *testing.T) {
	eng := newTestEngine(t, newMemStore(), nil)
	snapshot := session.Slots{"item_name": {Value: "Americano", Confidence: 0.9}}
	st := pendingState("option_group", "temperature", []string{"hot", "iced"}, snapshot)

	// The oracle misroutes the bare answer; the pending question wins.
	nlu := &oracle.NLUResult{Domain: "companion", Intent: "general_chat", Slots: session.Slots{}}

	domain, intent, merged, trace := eng.normalize(st, nlu, "iced please", true, FollowupMeta{})
	assert.Equal(t, "kiosk", domain)
	assert.Equal(t, "add_item", intent)
	assert.Equal(t, "pending", trace.Branch)
	assert.Equal(t, "resolved", trace.PolicyAction)
	assert.Equal(t, "Americano", merged.String("item_name"))
	assert.Equal(t, map[string]string{"temperature": "iced"}, merged.StringMap("option_groups"))
}

func TestNormalizePendingAnswerAliases(t *testing.T) {
	eng := newTestEngine(t, newMemStore(), nil)
	snapshot := session.Slots{"item_name": {Value: "Americano", Confidence: 0.9}}
	st := pendingState("option_group", "temperature", []string{"hot", "iced"}, snapshot)

	nlu := &oracle.NLUResult{Domain: "kiosk", Intent: "fallback", Slots: session.Slots{}}

	_, _, merged, trace := eng.normalize(st, nlu, "cold", true, FollowupMeta{})
	assert.Equal(t, "resolved", trace.PolicyAction)
	assert.Equal(t, "iced", merged.StringMap("option_groups")["temperature"])
}

func TestNormalizePendingSlotTakesUtterance(t *testing.T) {
	eng := newTestEngine(t, newMemStore(), nil)
	st := pendingState("slot", "item_name", nil, session.Slots{})

	nlu := &oracle.NLUResult{Domain: "kiosk", Intent: "fallback", Slots: session.Slots{}}

	_, _, merged, trace := eng.normalize(st, nlu, "Cheesecake", true, FollowupMeta{})
	assert.Equal(t, "resolved", trace.PolicyAction)
	assert.Equal(t, "Cheesecake", merged.String("item_name"))
}

func TestNormalizePendingAbandonedByNewRequest(t *testing.T) {
	eng := newTestEngine(t, newMemStore(), nil)
	snapshot := session.Slots{"item_name": {Value: "Americano", Confidence: 0.9}}
	st := pendingState("option_group", "temperature", []string{"hot", "iced"}, snapshot)

	nlu := &oracle.NLUResult{
		Domain: "kiosk",
		Intent: "add_item",
		Slots:  session.Slots{"item_name": {Value: "Cheesecake", Confidence: 0.9}},
	}

	domain, intent, merged, trace := eng.normalize(st, nlu, "never mind, get me a cheesecake instead", false, FollowupMeta{})
	assert.Equal(t, "abandoned", trace.PolicyAction)
	assert.Equal(t, "kiosk", domain)
	assert.Equal(t, "add_item", intent)
	assert.Equal(t, "Cheesecake", merged.String("item_name"))
	// The contested snapshot does not leak into the new request.
	assert.Empty(t, merged.StringMap("option_groups"))
}

func TestNormalizePendingFreeTextSlotNotHijackedByNewRequest(t *testing.T) {
	eng := newTestEngine(t, newMemStore(), nil)
	st := pendingState("slot", "item_name", nil, session.Slots{})

	nlu := &oracle.NLUResult{Domain: "kiosk", Intent: "cancel_order", Slots: session.Slots{}}

	// A cancellation while waiting on the item name must not become the
	// item name.
	_, intent, merged, trace := eng.normalize(st, nlu, "never mind, cancel my order", false, FollowupMeta{})
	assert.Equal(t, "abandoned", trace.PolicyAction)
	assert.Equal(t, "cancel_order", intent)
	assert.Empty(t, merged.String("item_name"))
}

func TestNormalizePendingUnresolvedReasks(t *testing.T) {
	eng := newTestEngine(t, newMemStore(), nil)
	snapshot := session.Slots{"item_name": {Value: "Americano", Confidence: 0.9}}
	st := pendingState("option_group", "temperature", []string{"hot", "iced"}, snapshot)

	// Oracle hallucinates an answer for the contested key; the utterance
	// matches no choice, so the hallucination is dropped and we re-ask.
	nlu := &oracle.NLUResult{
		Domain: "kiosk",
		Intent: "add_item",
		Slots:  session.Slots{"temperature": {Value: "lukewarm", Confidence: 0.4}},
	}

	_, _, merged, trace := eng.normalize(st, nlu, "hmm maybe", true, FollowupMeta{})
	assert.Equal(t, "reask", trace.PolicyAction)
	assert.Equal(t, "Americano", merged.String("item_name"))
	assert.Empty(t, merged.String("temperature"))
	assert.Contains(t, trace.Dropped, "temperature")
}

func TestNormalizeStickyCarriesEpisodicCuts(t *testing.T) {
	eng := newTestEngine(t, newMemStore(), nil)
	st := session.New()
	st.CurrentDomain = "education"
	st.Slots = session.Slots{
		"level": {Value: "beginner", Confidence: 0.9},
		"topic": {Value: "photosynthesis", Confidence: 0.9},
	}

	nlu := &oracle.NLUResult{Domain: "education", Intent: "ask_knowledge", Slots: session.Slots{
		"topic": {Value: "mitosis", Confidence: 0.9},
	}}

	_, _, merged, trace := eng.normalize(st, nlu, "explain mitosis", false, FollowupMeta{})
	assert.Equal(t, "policy", trace.Branch)
	assert.Equal(t, "beginner", merged.String("level"))
	assert.Equal(t, "mitosis", merged.String("topic"))
}

func TestNormalizeEpisodicCarriedOnFollowup(t *testing.T) {
	eng := newTestEngine(t, newMemStore(), nil)
	st := session.New()
	st.CurrentDomain = "education"
	st.Slots = session.Slots{"topic": {Value: "photosynthesis", Confidence: 0.9}}

	nlu := &oracle.NLUResult{Domain: "education", Intent: "ask_knowledge", Slots: session.Slots{}}

	_, _, merged, _ := eng.normalize(st, nlu, "why is it green?", true, FollowupMeta{})
	assert.Equal(t, "photosynthesis", merged.String("topic"))
}

func TestNormalizeUngroundedEpisodicDropped(t *testing.T) {
	eng := newTestEngine(t, newMemStore(), nil)
	st := session.New()
	st.CurrentDomain = "education"
	st.Slots = session.Slots{}

	// Oracle invents a topic not present in the utterance.
	nlu := &oracle.NLUResult{Domain: "education", Intent: "chitchat", Slots: session.Slots{
		"topic": {Value: "photosynthesis", Confidence: 0.5},
	}}

	_, _, merged, trace := eng.normalize(st, nlu, "let's take a break", false, FollowupMeta{})
	assert.Empty(t, merged.String("topic"))
	assert.Contains(t, trace.Dropped, "topic")
}

func TestNormalizeEmptyIncomingNeverOverwrites(t *testing.T) {
	eng := newTestEngine(t, newMemStore(), nil)
	st := session.New()
	st.CurrentDomain = "education"
	st.Slots = session.Slots{"level": {Value: "advanced", Confidence: 0.9}}

	nlu := &oracle.NLUResult{Domain: "education", Intent: "ask_knowledge", Slots: session.Slots{
		"level": {Value: "  ", Confidence: 0.9},
		"topic": {Value: "entropy", Confidence: 0.9},
	}}

	_, _, merged, _ := eng.normalize(st, nlu, "explain entropy", false, FollowupMeta{})
	assert.Equal(t, "advanced", merged.String("level"))
}

func TestNormalizeDomainSwitchDropsStoredSlots(t *testing.T) {
	eng := newTestEngine(t, newMemStore(), nil)
	st := session.New()
	st.CurrentDomain = "kiosk"
	st.Slots = session.Slots{"item_name": {Value: "Americano", Confidence: 0.9}}

	nlu := &oracle.NLUResult{Domain: "education", Intent: "ask_knowledge", Slots: session.Slots{
		"topic": {Value: "fractions", Confidence: 0.9},
	}}

	_, _, merged, trace := eng.normalize(st, nlu, "teach me fractions", false, FollowupMeta{})
	require.Equal(t, "default", trace.Branch)
	assert.Empty(t, merged.String("item_name"))
	assert.Equal(t, "fractions", merged.String("topic"))
}
