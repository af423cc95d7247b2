package engine

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/duru-ai/converse/internal/metrics"
	"github.com/duru-ai/converse/internal/models"
	"github.com/duru-ai/converse/internal/session"
)

// followupThreshold is the heuristic score above which a turn counts as
// a follow-up.
const followupThreshold = 0.55

// FollowupMeta records which source decided and why, for traces.
type FollowupMeta struct {
	Provider   string         `json:"provider"` // "oracle" | "heuristic"
	Confidence float64        `json:"confidence,omitempty"`
	Score      float64        `json:"score,omitempty"`
	Reasons    map[string]any `json:"reasons,omitempty"`
	Threshold  float64        `json:"threshold,omitempty"`
}

// Discourse markers that open a continuation of the prior exchange.
var followupPrefixes = []string{
	"and", "also", "then", "so", "but", "what about", "how about",
	"about that", "that", "this", "it", "again", "one more", "plus",
	"no,", "yes", "yeah", "ok", "okay",
}

// Referential/demonstrative phrases anywhere in the utterance.
var referentialPattern = regexp.MustCompile(`\b(that one|this one|that|this|those|these|there|it)\b`)

func hasFollowupPrefix(msg string) bool {
	for _, p := range followupPrefixes {
		if msg == p || strings.HasPrefix(msg, p+" ") || strings.HasPrefix(msg, p+",") {
			return true
		}
	}
	return false
}

// heuristicFollowupScore accumulates the fallback score in [0, 1] from
// independent additive signals.
func heuristicFollowupScore(utterance string, st *session.State) (float64, map[string]any) {
	msg := strings.ToLower(strings.TrimSpace(utterance))
	reasons := map[string]any{}
	score := 0.0

	// A clarification answer is almost always a continuation. Dominant
	// signal by a wide margin.
	if st.LastAction == models.ActionAskSlot || st.LastAction == models.ActionAskOptionGroup ||
		st.LastAction == models.ActionConfirm || st.ConfirmPending {
		score += 0.65
		reasons["last_action_bonus"] = st.LastAction
	}

	// Short answers are typically direct responses, not new requests.
	if utf8.RuneCountInString(msg) <= 10 {
		score += 0.20
		reasons["short_msg_bonus"] = utf8.RuneCountInString(msg)
	}

	prefixed := hasFollowupPrefix(msg)
	if prefixed {
		score += 0.25
		reasons["followup_prefix"] = true
	}

	if referentialPattern.MatchString(msg) {
		score += 0.20
		reasons["referential"] = true
	}

	if prefixed && strings.HasSuffix(msg, "?") {
		score += 0.10
		reasons["question_like"] = true
	}

	if score > 1.0 {
		score = 1.0
	}
	return score, reasons
}

// classifyFollowup decides whether the turn continues the prior
// exchange. The continuation oracle wins when configured and reachable;
// any failure falls through to the heuristic. Pure apart from logging.
func (e *Engine) classifyFollowup(ctx context.Context, traceID, utterance string, st *session.State) (bool, FollowupMeta) {
	if e.followup != nil {
		verdict, err := e.followup.Classify(ctx, utterance, stateSummary(st))
		if err == nil {
			meta := FollowupMeta{Provider: "oracle", Confidence: verdict.Confidence}
			e.logger.Debug("followup classified",
				zap.String("trace_id", traceID),
				zap.String("provider", "oracle"),
				zap.Bool("is_followup", verdict.IsFollowup),
				zap.Float64("confidence", verdict.Confidence),
				zap.String("reason", verdict.Reason))
			return verdict.IsFollowup, meta
		}
		metrics.OracleFallbacks.WithLabelValues("followup").Inc()
		e.logger.Warn("followup oracle failed, using heuristic",
			zap.String("trace_id", traceID), zap.Error(err))
	}

	score, reasons := heuristicFollowupScore(utterance, st)
	meta := FollowupMeta{
		Provider:  "heuristic",
		Score:     score,
		Reasons:   reasons,
		Threshold: followupThreshold,
	}
	e.logger.Debug("followup classified",
		zap.String("trace_id", traceID),
		zap.String("provider", "heuristic"),
		zap.Float64("score", score),
		zap.Any("reasons", reasons))
	return score >= followupThreshold, meta
}
