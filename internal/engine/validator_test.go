package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duru-ai/converse/internal/models"
	"github.com/duru-ai/converse/internal/oracle"
	"github.com/duru-ai/converse/internal/session"
)

func TestMissingRequiredSlotAsks(t *testing.T) {
	eng := newTestEngine(t, newMemStore(), nil)
	st := session.New()

	act, patch := eng.validate(context.Background(), "t", "kiosk", "add_item",
		session.Slots{}, kioskMeta("s"), st, "i want to order", nil)

	assert.Equal(t, models.ActionAskSlot, act.Kind)
	assert.Equal(t, "item_name", act.AskKey)
	require.NotNil(t, patch.pending)
	assert.Equal(t, "slot", patch.pending.Kind)
	assert.Equal(t, "item_name", patch.pending.Key)
}

func TestAskSlotWithoutPendingProtocol(t *testing.T) {
	eng := newTestEngine(t, newMemStore(), nil)
	st := session.New()

	// Education asks but never opens the clarification loop.
	act, patch := eng.validate(context.Background(), "t", "education", "evaluate_submission",
		session.Slots{}, models.Meta{ClientSessionID: "s", Mode: "edu"}, st, "grade my answer", nil)

	assert.Equal(t, models.ActionAskSlot, act.Kind)
	assert.Nil(t, patch.pending)
}

func TestUnroutableDomainAnswersGenerically(t *testing.T) {
	eng := newTestEngine(t, newMemStore(), nil)
	st := session.New()
	merged := session.Slots{"topic": {Value: "x", Confidence: 0.9}}

	act, patch := eng.validate(context.Background(), "t", "starship", "warp",
		merged, models.Meta{ClientSessionID: "s"}, st, "engage", nil)

	assert.Equal(t, models.ActionAnswer, act.Kind)
	assert.Equal(t, "fallback.generic", act.MessageKey)
	// Slots survive the unroutable turn.
	assert.Equal(t, "x", patch.slots.String("topic"))
}

func TestFallbackIntentAnswersInsteadOfExecuting(t *testing.T) {
	eng := newTestEngine(t, newMemStore(), nil)
	st := session.New()

	act, _ := eng.validate(context.Background(), "t", "kiosk", "fallback",
		session.Slots{}, kioskMeta("s"), st, "blorp", nil)

	assert.Equal(t, models.ActionAnswer, act.Kind)
	assert.Nil(t, act.Command)
}

func TestRecommendationAttachesSuggestions(t *testing.T) {
	store := newMemStore()
	o := &stubOracle{
		inferFn: func(string, oracle.StateSummary) (*oracle.NLUResult, error) {
			return nluResult("kiosk", "ask_recommendation", session.Slots{}), nil
		},
		classifyFn: func(string, oracle.StateSummary) (*oracle.FollowupVerdict, error) {
			return &oracle.FollowupVerdict{IsFollowup: false}, nil
		},
	}
	eng := newTestEngine(t, store, o)

	resp, err := eng.HandleTurn(context.Background(), models.TurnRequest{
		UserMessage: "what do you recommend?",
		Meta:        kioskMeta("sess-rec"),
	})
	require.NoError(t, err)

	assert.Equal(t, models.ActionExecute, resp.Reply.ActionType)
	params := resp.Reply.Payload["params"].(map[string]any)
	suggestions, ok := params["suggestions"].([]map[string]any)
	require.True(t, ok)
	assert.Len(t, suggestions, 2)
}
