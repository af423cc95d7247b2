package engine

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/duru-ai/converse/internal/messages"
	"github.com/duru-ai/converse/internal/metrics"
	"github.com/duru-ai/converse/internal/models"
	"github.com/duru-ai/converse/internal/oracle"
	"github.com/duru-ai/converse/internal/session"
)

// Command types whose reply body is produced by the generation oracle
// rather than a template.
var generatedCommandTypes = map[string]string{
	"edu_task":       "",
	"companion_chat": "companion_chat",
	"assistant_chat": "companion_chat",
}

// renderReply turns an action into the outbound reply. Template
// rendering always succeeds; the generation oracle is best effort and
// degrades to the template text.
func (e *Engine) renderReply(ctx context.Context, traceID string, act Action, st *session.State, meta models.Meta) models.Reply {
	base := messages.Render(act.MessageKey, act.Vars)

	reply := models.Reply{
		ActionType: act.Kind,
		Text:       base,
		UIHints:    act.UIHints,
	}
	if len(act.Choices) > 0 {
		if reply.UIHints == nil {
			reply.UIHints = map[string]any{}
		}
		reply.UIHints["choices"] = append([]string(nil), act.Choices...)
	}

	if act.Kind != models.ActionExecute || act.Command == nil {
		return reply
	}

	reply.Payload = map[string]any{
		"type":   act.Command.Type,
		"params": act.Command.Params,
	}

	if e.generator == nil {
		return reply
	}

	persona := meta.Persona
	if persona == "" {
		persona = st.Preference("companion", "persona")
	}
	verbosity := meta.Verbosity
	if verbosity == "" {
		verbosity = st.Preference("companion", "verbosity")
	}

	if kind, generated := generatedKind(act.Command.Type, act.Command.Params); generated {
		text, err := e.generator.Generate(ctx, oracle.GenerationTask{
			Kind:      kind,
			Persona:   persona,
			Verbosity: verbosity,
			Params:    act.Command.Params,
			History:   st.History,
		})
		if err != nil || strings.TrimSpace(text) == "" {
			metrics.OracleFallbacks.WithLabelValues("generate").Inc()
			e.logger.Warn("generation oracle failed, using template",
				zap.String("trace_id", traceID), zap.Error(err))
			return reply
		}
		reply.Text = strings.TrimSpace(text)
		return reply
	}

	// Command results with a persona get a light surface rewrite of the
	// template text. The facts stay in the payload either way.
	if persona != "" {
		text, err := e.generator.Generate(ctx, oracle.GenerationTask{
			Kind:      "surface_rewrite",
			Persona:   persona,
			Verbosity: verbosity,
			BaseText:  base,
			Params:    act.Command.Params,
		})
		if err != nil || strings.TrimSpace(text) == "" {
			metrics.OracleFallbacks.WithLabelValues("rewrite").Inc()
			return reply
		}
		reply.Text = strings.TrimSpace(text)
	}
	return reply
}

// generatedKind resolves the generation task kind for a command type.
// edu_task carries its kind in params.
func generatedKind(cmdType string, params map[string]any) (string, bool) {
	kind, ok := generatedCommandTypes[cmdType]
	if !ok {
		return "", false
	}
	if cmdType == "edu_task" {
		if k, isStr := params["kind"].(string); isStr && k != "" {
			return k, true
		}
		return "edu_answer", true
	}
	return kind, true
}
