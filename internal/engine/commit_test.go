package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duru-ai/converse/internal/models"
	"github.com/duru-ai/converse/internal/session"
)

func TestCommitReplacesSlotsWholesale(t *testing.T) {
	st := session.New()
	st.Slots = session.Slots{
		"item_name": {Value: "Americano", Confidence: 0.9},
		"notes":     {Value: "extra shot", Confidence: 0.9},
	}

	patch := statePatch{
		domain:     "kiosk",
		intent:     "add_item",
		lastAction: models.ActionAnswer,
		slots:      session.Slots{"item_name": {Value: "Latte", Confidence: 0.9}},
	}

	next := commit(st, patch, "a latte", "ok", time.Now())

	assert.Equal(t, "Latte", next.Slots.String("item_name"))
	// Not merged: dropped slots stay dropped.
	assert.Empty(t, next.Slots.String("notes"))
	// The input state is untouched.
	assert.Equal(t, "Americano", st.Slots.String("item_name"))
	assert.Zero(t, st.TurnIndex)
}

func TestCommitTurnIndexMonotonic(t *testing.T) {
	st := session.New()
	now := time.Now()

	next := commit(st, statePatch{slots: session.Slots{}}, "hi", "hello", now)
	assert.Equal(t, 1, next.TurnIndex)

	next = commit(next, statePatch{slots: session.Slots{}}, "hi again", "hello again", now)
	assert.Equal(t, 2, next.TurnIndex)
}

func TestCommitPendingLifecycle(t *testing.T) {
	st := session.New()
	pending := &session.PendingClarification{Kind: "slot", Key: "item_name"}

	next := commit(st, statePatch{slots: session.Slots{}, pending: pending}, "u", "a", time.Now())
	require.NotNil(t, next.Pending)
	assert.Equal(t, "item_name", next.Pending.Key)

	// No pending fields set: the outstanding question survives the turn.
	next = commit(next, statePatch{slots: session.Slots{}}, "u", "a", time.Now())
	require.NotNil(t, next.Pending)

	next = commit(next, statePatch{slots: session.Slots{}, clearPending: true}, "u", "a", time.Now())
	assert.Nil(t, next.Pending)
}

func TestCommitConfirmPendingAlwaysAssigned(t *testing.T) {
	st := session.New()
	st.ConfirmPending = true

	// A patch that does not re-request confirmation resets the flag.
	next := commit(st, statePatch{slots: session.Slots{}}, "u", "a", time.Now())
	assert.False(t, next.ConfirmPending)

	next = commit(st, statePatch{slots: session.Slots{}, confirmPending: true}, "u", "a", time.Now())
	assert.True(t, next.ConfirmPending)
}

func TestCommitAppendsBoundedHistory(t *testing.T) {
	st := session.New()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	next := commit(st, statePatch{slots: session.Slots{}}, "hello", "hi there", now)
	require.Len(t, next.History, 2)
	assert.Equal(t, "user", next.History[0].Role)
	assert.Equal(t, "assistant", next.History[1].Role)
	assert.Equal(t, now, next.UpdatedAt)
}
