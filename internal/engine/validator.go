package engine

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/duru-ai/converse/internal/catalog"
	"github.com/duru-ai/converse/internal/messages"
	"github.com/duru-ai/converse/internal/metrics"
	"github.com/duru-ai/converse/internal/models"
	"github.com/duru-ai/converse/internal/policy"
	"github.com/duru-ai/converse/internal/session"
)

// Affirmations accepted as "do it anyway" after a redundancy warning.
var affirmations = map[string]bool{
	"yes": true, "yeah": true, "yep": true, "sure": true,
	"do it": true, "go ahead": true, "ok": true, "okay": true,
	"please": true, "yes please": true,
}

func isAffirmation(utterance string) bool {
	msg := strings.ToLower(strings.TrimSpace(utterance))
	msg = strings.TrimRight(msg, ".!")
	return affirmations[msg]
}

// messageKeyOr returns key when a template exists for it, else fallback.
func messageKeyOr(key, fallback string) string {
	if messages.Has(key) {
		return key
	}
	return fallback
}

// validate runs the completeness, catalog and validity checks and
// decides the turn's action. The returned patch carries every state
// change the action implies; nothing is written here.
func (e *Engine) validate(ctx context.Context, traceID, domainName, intent string, merged session.Slots, meta models.Meta, st *session.State, utterance string, world map[string]string) (Action, statePatch) {
	patch := statePatch{
		domain: domainName,
		intent: intent,
		slots:  merged,
		world:  world,
	}

	d, ok := e.registry.Get(domainName)
	if !ok {
		patch.clearPending = true
		patch.lastAction = models.ActionAnswer
		patch.reason = "unroutable_domain"
		return Action{
			Kind:       models.ActionAnswer,
			MessageKey: "fallback.generic",
			Reason:     "unroutable_domain",
		}, patch
	}

	// Completeness: ask for the first missing required slot.
	for _, slot := range d.RequiredSlots(intent) {
		if _, present := merged[slot]; present {
			continue
		}
		if d.UsesPendingClarification() {
			patch.pending = &session.PendingClarification{
				Kind:     "slot",
				Key:      slot,
				Snapshot: merged.Clone(),
			}
		}
		patch.lastAction = models.ActionAskSlot
		patch.reason = "missing_slot:" + slot
		return Action{
			Kind:       models.ActionAskSlot,
			MessageKey: messageKeyOr("ask.slot."+slot, "ask.slot.generic"),
			Vars:       map[string]any{"slot": slot},
			AskKey:     slot,
			Reason:     "missing_slot",
		}, patch
	}

	// Catalog resolution for entity-bearing intents.
	if ca, isCatalog := d.(policy.CatalogAware); isCatalog && e.catalog != nil && containsString(ca.CatalogIntents(), intent) {
		act, done := e.resolveCatalog(ctx, traceID, ca, intent, merged, meta, &patch)
		if done {
			return act, patch
		}
	}

	// Domain validity against the world mirror.
	check := d.CheckValidity(intent, merged, world, meta.SupportedFeatures)
	switch check.Outcome {
	case policy.ValidityUnsupported:
		patch.clearPending = true
		patch.lastAction = models.ActionAnswer
		patch.reason = check.Reason
		return Action{
			Kind:       models.ActionAnswer,
			MessageKey: "answer.unsupported",
			Reason:     check.Reason,
		}, patch
	case policy.ValidityConflict:
		// A confirmed redundant request executes anyway.
		if !(st.ConfirmPending && isAffirmation(utterance)) {
			patch.confirmPending = true
			patch.lastAction = models.ActionConfirm
			patch.reason = check.Reason
			return Action{
				Kind:       models.ActionConfirm,
				MessageKey: messageKeyOr("confirm."+check.Reason, "confirm.generic"),
				Vars:       map[string]any{"reason": check.Reason},
				Reason:     check.Reason,
			}, patch
		}
	}

	// Execute.
	cmd := d.BuildCommand(intent, merged)
	if cmd.Type == "none" {
		patch.clearPending = true
		patch.lastAction = models.ActionAnswer
		patch.reason = "no_command"
		return Action{
			Kind:       models.ActionAnswer,
			MessageKey: "fallback.generic",
			Reason:     "no_command",
		}, patch
	}
	if cmd.Type == "recommend_menu" && e.catalog != nil {
		if ca, isCatalog := d.(policy.CatalogAware); isCatalog {
			if storeID, kioskType, scoped := ca.CatalogScope(meta); scoped {
				e.attachRecommendations(ctx, traceID, &cmd, storeID, kioskType, merged)
			}
		}
	}
	if sim, isSim := d.(policy.WorldSimulator); isSim {
		patch.world = sim.Simulate(world, intent, merged)
	}
	patch.clearPending = true
	patch.lastAction = intent
	patch.reason = "execute"

	vars := map[string]any{
		"item_name":   merged.String(entitySlotName(d)),
		"destination": merged.String("destination"),
		"poi_type":    merged.String("poi_type"),
		"info_type":   merged.String("info_type"),
		"part":        merged.String("target_part"),
		"action":      merged.String("action"),
		"topic":       merged.String("topic"),
		"options":     messages.OptionsSuffix(merged.StringMap("option_groups")),
	}
	if q, okQ := merged.Int("quantity"); okQ && q > 0 {
		vars["quantity"] = q
	} else {
		vars["quantity"] = 1
	}

	e.logger.Debug("turn validated for execute",
		zap.String("trace_id", traceID),
		zap.String("domain", domainName),
		zap.String("intent", intent),
		zap.String("command", cmd.Type))

	return Action{
		Kind:       models.ActionExecute,
		MessageKey: messageKeyOr("result."+domainName+"."+intent, messages.FallbackKey),
		Vars:       vars,
		Command:    &cmd,
		Reason:     "execute",
	}, patch
}

// resolveCatalog looks up the entity slot against the catalog, walking
// the recovery candidates on a miss, and checks the item's mandatory
// option groups. done=false means validation continues to the validity
// check.
func (e *Engine) resolveCatalog(ctx context.Context, traceID string, ca policy.CatalogAware, intent string, merged session.Slots, meta models.Meta, patch *statePatch) (Action, bool) {
	name := merged.String(ca.EntitySlot())
	if name == "" {
		return Action{}, false
	}

	storeID, kioskType, scoped := ca.CatalogScope(meta)
	if !scoped {
		patch.clearPending = true
		patch.lastAction = models.ActionAnswer
		patch.reason = "catalog_unscoped"
		return Action{
			Kind:       models.ActionAnswer,
			MessageKey: "answer.not_found",
			Vars:       map[string]any{"item_name": name},
			Reason:     "catalog_unscoped",
		}, true
	}

	item, err := e.catalog.GetItemByName(ctx, storeID, kioskType, name)
	if err != nil {
		e.logger.Warn("catalog lookup failed",
			zap.String("trace_id", traceID), zap.String("item", name), zap.Error(err))
		item = nil
	}
	if item == nil {
		for _, candidate := range catalog.RecoveryCandidates(name) {
			item, err = e.catalog.GetItemByName(ctx, storeID, kioskType, candidate)
			if err != nil {
				e.logger.Warn("catalog lookup failed",
					zap.String("trace_id", traceID), zap.String("item", candidate), zap.Error(err))
				item = nil
				continue
			}
			if item != nil {
				break
			}
		}
	}

	if item == nil {
		metrics.CatalogMisses.Inc()
		patch.clearPending = true
		patch.lastAction = models.ActionAnswer
		patch.reason = "item_not_found"
		return Action{
			Kind:       models.ActionAnswer,
			MessageKey: "answer.not_found",
			Vars:       map[string]any{"item_name": name},
			Reason:     "item_not_found",
		}, true
	}

	// Canonicalize the entity slot to the catalog name so downstream
	// commands and templates show the real item.
	merged[ca.EntitySlot()] = session.SlotValue{Value: item.Name, Confidence: 0.95}
	patch.slots = merged

	chosen := merged.StringMap(ca.OptionSlot())
	for _, group := range item.RequiredGroups() {
		if strings.TrimSpace(chosen[group]) != "" {
			continue
		}
		choices := item.OptionGroups[group]
		patch.pending = &session.PendingClarification{
			Kind:     "option_group",
			Key:      group,
			Choices:  append([]string(nil), choices...),
			Snapshot: merged.Clone(),
		}
		patch.lastAction = models.ActionAskOptionGroup
		patch.reason = "missing_option_group:" + group
		return Action{
			Kind:       models.ActionAskOptionGroup,
			MessageKey: messageKeyOr("ask.option_group."+group, "ask.option_group.generic"),
			Vars: map[string]any{
				"group":   group,
				"choices": strings.Join(choices, ", "),
			},
			AskKey:  group,
			Choices: append([]string(nil), choices...),
			Reason:  "missing_option_group",
		}, true
	}

	return Action{}, false
}

// attachRecommendations runs a filtered catalog search and folds the
// matching items into the command payload. A search failure leaves the
// command without suggestions instead of failing the turn.
func (e *Engine) attachRecommendations(ctx context.Context, traceID string, cmd *policy.Command, storeID, kioskType string, merged session.Slots) {
	budget, _ := merged.Int("budget_max")
	items, err := e.catalog.SearchItems(ctx, storeID, kioskType, catalog.SearchFilter{
		Category:    merged.String("category"),
		BudgetMax:   budget,
		Dietary:     merged.String("dietary"),
		Temperature: merged.String("temperature"),
		Limit:       5,
	})
	if err != nil {
		e.logger.Warn("catalog search failed",
			zap.String("trace_id", traceID), zap.Error(err))
		return
	}
	suggestions := make([]map[string]any, 0, len(items))
	for _, it := range items {
		suggestions = append(suggestions, map[string]any{
			"item_id": it.ItemID,
			"name":    it.Name,
			"price":   it.Price,
		})
	}
	cmd.Params["suggestions"] = suggestions
}

// entitySlotName reads the entity slot name when the domain is
// catalog-aware, else "item_name" as a harmless template default.
func entitySlotName(d policy.Domain) string {
	if ca, ok := d.(policy.CatalogAware); ok {
		return ca.EntitySlot()
	}
	return "item_name"
}

func containsString(xs []string, x string) bool {
	for _, s := range xs {
		if s == x {
			return true
		}
	}
	return false
}
