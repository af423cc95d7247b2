// Package engine runs the per-turn dialogue pipeline: follow-up
// classification, context normalization, validation and the single
// state commit at the end of the turn.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/duru-ai/converse/internal/catalog"
	"github.com/duru-ai/converse/internal/metrics"
	"github.com/duru-ai/converse/internal/models"
	"github.com/duru-ai/converse/internal/oracle"
	"github.com/duru-ai/converse/internal/policy"
	"github.com/duru-ai/converse/internal/session"
)

// Engine orchestrates a turn. It is the only writer of session state;
// all collaborators are read-only from its point of view.
type Engine struct {
	store     session.Store
	registry  *policy.Registry
	catalog   catalog.Repo
	nlu       oracle.NLU
	followup  oracle.FollowupClassifier
	generator oracle.Generator
	logger    *zap.Logger
	now       func() time.Time
}

// Config wires the engine's collaborators. Store, Registry and Logger
// are required; the oracles and catalog are optional and their absence
// activates the local fallbacks.
type Config struct {
	Store     session.Store
	Registry  *policy.Registry
	Catalog   catalog.Repo
	NLU       oracle.NLU
	Followup  oracle.FollowupClassifier
	Generator oracle.Generator
	Logger    *zap.Logger
	Now       func() time.Time
}

// New validates the config and builds an engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("engine: store is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("engine: policy registry is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("engine: logger is required")
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{
		store:     cfg.Store,
		registry:  cfg.Registry,
		catalog:   cfg.Catalog,
		nlu:       cfg.NLU,
		followup:  cfg.Followup,
		generator: cfg.Generator,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}, nil
}

func newTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// stateSummary projects state into the compact oracle view. Slot values
// stay out of it apart from the previous topic.
func stateSummary(st *session.State) oracle.StateSummary {
	return oracle.StateSummary{
		TurnIndex:  st.TurnIndex,
		Domain:     st.CurrentDomain,
		Intent:     st.ActiveIntent,
		LastAction: st.LastAction,
		PrevTopic:  prevTopic(st.Slots),
		SlotKeys:   st.Slots.Keys(),
	}
}

// prevTopic picks the stored slot most useful as conversational anchor.
func prevTopic(slots session.Slots) string {
	for _, key := range []string{"topic", "topic_hint", "item_name", "destination", "query"} {
		if v := slots.String(key); v != "" {
			return v
		}
	}
	return ""
}

// HandleTurn runs the full pipeline for one utterance and returns the
// reply plus a value-free state snapshot. It never fails a turn for an
// oracle outage; only an unusable request or a cancelled context error
// out.
func (e *Engine) HandleTurn(ctx context.Context, req models.TurnRequest) (*models.TurnResponse, error) {
	traceID := newTraceID()
	utterance := strings.TrimSpace(req.UserMessage)
	if utterance == "" {
		return nil, fmt.Errorf("empty user_message")
	}
	scopeKey := req.Meta.ClientSessionID
	if scopeKey == "" {
		return nil, fmt.Errorf("empty client_session_id")
	}

	st := e.loadState(ctx, traceID, scopeKey)

	// Persona and verbosity are durable preferences, not slots.
	st.SetPreference("companion", "persona", req.Meta.Persona)
	st.SetPreference("companion", "verbosity", req.Meta.Verbosity)
	st.SetPreference("education", "user_level", req.Meta.UserLevel)

	isFollowup, fmeta := e.classifyFollowup(ctx, traceID, utterance, st)

	nluResult := e.infer(ctx, traceID, utterance, st, req.Meta)

	domainName, intent, merged, trace := e.normalize(st, nluResult, utterance, isFollowup, fmeta)

	// Education: the literal question always tracks the current turn,
	// whatever the oracle carried over. The profile level fills in when
	// no turn has stated one.
	if domainName == "education" {
		merged["question"] = session.SlotValue{Value: utterance, Confidence: 0.8}
		if merged.String("level") == "" {
			if lvl := st.Preference("education", "user_level"); lvl != "" {
				merged["level"] = session.SlotValue{Value: lvl, Confidence: 0.6}
			}
		}
	}

	world := st.WorldStatus
	if d, ok := e.registry.Get(domainName); ok {
		if sim, isSim := d.(policy.WorldSimulator); isSim {
			world = sim.SyncWorld(st.WorldStatus, req.Meta.VehicleStatus)
		}
	}

	act, patch := e.validate(ctx, traceID, domainName, intent, merged, req.Meta, st, utterance, world)

	reply := e.renderReply(ctx, traceID, act, st, req.Meta)

	// A cancelled request must not half-commit: drop the write and bail.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("turn cancelled before commit: %w", err)
	}

	next := commit(st, patch, utterance, reply.Text, e.now())

	if err := e.store.Set(ctx, scopeKey, next); err != nil {
		// The reply is still valid; the next turn just starts from the
		// previous state.
		e.logger.Error("failed to persist session state",
			zap.String("trace_id", traceID),
			zap.String("scope_key", scopeKey),
			zap.Error(err))
	}

	metrics.TurnsTotal.WithLabelValues(domainName, act.Kind).Inc()

	e.logger.Info("turn completed",
		zap.String("trace_id", traceID),
		zap.String("conversation_id", next.ConversationID),
		zap.Int("turn_index", next.TurnIndex),
		zap.String("domain", domainName),
		zap.String("intent", intent),
		zap.String("action", act.Kind),
		zap.String("merge_branch", trace.Branch),
		zap.Bool("followup", trace.Followup),
		zap.String("reason", act.Reason))

	return &models.TurnResponse{
		TraceID:        traceID,
		ConversationID: next.ConversationID,
		TurnIndex:      next.TurnIndex,
		Reply:          reply,
		State:          snapshot(next),
	}, nil
}

// loadState reads the stored state, degrading to a fresh default on a
// corrupt document or an unreachable store. Turn processing never fails
// on a read problem.
func (e *Engine) loadState(ctx context.Context, traceID, scopeKey string) *session.State {
	st, found, err := e.store.Get(ctx, scopeKey)
	switch {
	case err == nil && found:
		return st
	case err == nil:
		return session.New()
	case errors.Is(err, session.ErrBadDocument):
		metrics.StateResets.Inc()
		e.logger.Warn("stored state unparsable, resetting",
			zap.String("trace_id", traceID),
			zap.String("scope_key", scopeKey),
			zap.Error(err))
		return session.New()
	default:
		e.logger.Error("state load failed, degrading to fresh state",
			zap.String("trace_id", traceID),
			zap.String("scope_key", scopeKey),
			zap.Error(err))
		return session.New()
	}
}

// infer calls the NLU oracle, falling back to a mode-derived default
// when the oracle is missing or fails.
func (e *Engine) infer(ctx context.Context, traceID, utterance string, st *session.State, meta models.Meta) *oracle.NLUResult {
	candidates := e.registry.Candidates(meta.Mode)

	if e.nlu != nil {
		res, err := e.nlu.Infer(ctx, utterance, stateSummary(st), candidates)
		if err == nil && res != nil {
			return e.backfillRouting(res, st, meta)
		}
		metrics.OracleFallbacks.WithLabelValues("nlu").Inc()
		e.logger.Warn("nlu oracle failed, using mode fallback",
			zap.String("trace_id", traceID), zap.Error(err))
	}

	domainName := e.registry.ResolveMode(meta.Mode)
	fallback := &oracle.NLUResult{
		Domain:           domainName,
		IntentConfidence: 0.1,
		Slots:            session.Slots{},
	}
	if d, ok := e.registry.Get(domainName); ok {
		fallback.Intent = d.FallbackIntent()
	}
	switch domainName {
	case "education":
		fallback.Slots["question"] = session.SlotValue{Value: utterance, Confidence: 0.3}
	case "companion", "driving":
		fallback.Slots["query"] = session.SlotValue{Value: utterance, Confidence: 0.3}
	}
	return fallback
}

// backfillRouting fills empty domain/intent in an otherwise valid NLU
// reply from state, so a degenerate reply cannot unroute the turn and
// wipe carried slots through the domain-switch merge path.
func (e *Engine) backfillRouting(res *oracle.NLUResult, st *session.State, meta models.Meta) *oracle.NLUResult {
	if res.Domain == "" {
		res.Domain = st.CurrentDomain
	}
	if res.Domain == "" {
		res.Domain = e.registry.ResolveMode(meta.Mode)
	}
	if res.Intent == "" {
		if res.Domain == st.CurrentDomain && st.ActiveIntent != "" {
			res.Intent = st.ActiveIntent
		} else if d, ok := e.registry.Get(res.Domain); ok {
			res.Intent = d.FallbackIntent()
		}
	}
	return res
}

// Snapshot returns the value-free state projection for a scope key, for
// the read-only transport endpoint.
func (e *Engine) Snapshot(ctx context.Context, scopeKey string) (*models.StateSnapshot, error) {
	st, found, err := e.store.Get(ctx, scopeKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load session state: %w", err)
	}
	if !found {
		return nil, nil
	}
	snap := snapshot(st)
	return &snap, nil
}

func snapshot(st *session.State) models.StateSnapshot {
	snap := models.StateSnapshot{
		ConversationID: st.ConversationID,
		TurnIndex:      st.TurnIndex,
		Domain:         st.CurrentDomain,
		Intent:         st.ActiveIntent,
		SlotKeys:       st.Slots.Keys(),
		LastAction:     st.LastAction,
	}
	if st.Pending != nil {
		snap.PendingKey = st.Pending.Key
	}
	return snap
}
