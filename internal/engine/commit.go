package engine

import (
	"time"

	"github.com/duru-ai/converse/internal/session"
)

// commit folds a validated turn into a copy of the stored state. The
// original is untouched so a failed persist cannot corrupt the next
// read. Slots are replaced wholesale, not merged, so slot drops decided
// upstream actually stick.
func commit(st *session.State, patch statePatch, userMessage, replyText string, now time.Time) *session.State {
	next := st.Clone()
	next.TurnIndex++

	if patch.domain != "" {
		next.CurrentDomain = patch.domain
	}
	if patch.intent != "" {
		next.ActiveIntent = patch.intent
	}
	if patch.lastAction != "" {
		next.LastAction = patch.lastAction
	}

	next.Slots = patch.slots.Prune()

	if patch.clearPending {
		next.Pending = nil
	} else if patch.pending != nil {
		next.Pending = patch.pending
	}

	next.ConfirmPending = patch.confirmPending

	if patch.world != nil {
		next.WorldStatus = patch.world
	}

	next.AppendTurn("user", userMessage, now)
	next.AppendTurn("assistant", replyText, now)
	next.UpdatedAt = now

	return next
}
