package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/duru-ai/converse/internal/policy"
)

// OpenAIOracle implements the NLU, follow-up and generation oracles on
// the OpenAI API via langchaingo. One instance serves all three; the
// model can differ per role.
type OpenAIOracle struct {
	nlu      llms.Model
	followup llms.Model
	answer   llms.Model
	timeout  time.Duration
}

// OpenAIConfig names the models per oracle role. Empty follow-up or
// answer models fall back to the NLU model.
type OpenAIConfig struct {
	APIKey        string
	NLUModel      string
	FollowupModel string
	AnswerModel   string
	Timeout       time.Duration
}

// NewOpenAIOracle builds the three model clients.
func NewOpenAIOracle(cfg OpenAIConfig) (*OpenAIOracle, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.FollowupModel == "" {
		cfg.FollowupModel = cfg.NLUModel
	}
	if cfg.AnswerModel == "" {
		cfg.AnswerModel = cfg.NLUModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}

	build := func(model string) (llms.Model, error) {
		return openai.New(openai.WithToken(cfg.APIKey), openai.WithModel(model))
	}

	nlu, err := build(cfg.NLUModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create NLU model client: %w", err)
	}
	followup, err := build(cfg.FollowupModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create followup model client: %w", err)
	}
	answer, err := build(cfg.AnswerModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create answer model client: %w", err)
	}

	return &OpenAIOracle{nlu: nlu, followup: followup, answer: answer, timeout: cfg.Timeout}, nil
}

func (o *OpenAIOracle) generate(ctx context.Context, model llms.Model, system, user string, opts ...llms.CallOption) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("model call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return resp.Choices[0].Content, nil
}

// Infer implements NLU.
func (o *OpenAIOracle) Infer(ctx context.Context, utterance string, summary StateSummary, candidates []policy.Candidate) (*NLUResult, error) {
	payload, err := json.Marshal(map[string]any{
		"user_message":  utterance,
		"state_summary": summary,
		"candidates":    candidates,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build NLU payload: %w", err)
	}

	content, err := o.generate(ctx, o.nlu, nluSystemPrompt, string(payload),
		llms.WithTemperature(0), llms.WithJSONMode(), llms.WithMaxTokens(800))
	if err != nil {
		return nil, err
	}
	return ParseNLUResponse(content)
}

// Classify implements FollowupClassifier.
func (o *OpenAIOracle) Classify(ctx context.Context, utterance string, summary StateSummary) (*FollowupVerdict, error) {
	payload, err := json.Marshal(map[string]any{
		"prev_topic":         summary.PrevTopic,
		"last_system_action": summary.LastAction,
		"user_message":       utterance,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build followup payload: %w", err)
	}

	content, err := o.generate(ctx, o.followup, followupSystemPrompt, string(payload),
		llms.WithTemperature(0), llms.WithJSONMode(), llms.WithMaxTokens(200))
	if err != nil {
		return nil, err
	}
	return ParseFollowupResponse(content)
}

// Generate implements Generator.
func (o *OpenAIOracle) Generate(ctx context.Context, task GenerationTask) (string, error) {
	if task.Kind == "surface_rewrite" {
		return o.surfaceRewrite(ctx, task)
	}

	system := taskPrompt(task.Kind)
	if task.Persona != "" {
		system = personaPrompt(task.Persona) + "\n" + system
	}
	if task.Verbosity == "brief" {
		system += "\nKeep the answer to one or two sentences."
	}

	payload, err := json.Marshal(map[string]any{
		"task":    task.Kind,
		"params":  task.Params,
		"history": formatHistory(task),
	})
	if err != nil {
		return "", fmt.Errorf("failed to build generation payload: %w", err)
	}

	return o.generate(ctx, o.answer, system, string(payload),
		llms.WithTemperature(0.7), llms.WithMaxTokens(700))
}

func (o *OpenAIOracle) surfaceRewrite(ctx context.Context, task GenerationTask) (string, error) {
	system := personaPrompt(task.Persona) + "\n" + surfaceRewritePrompt

	payload, err := json.Marshal(map[string]any{
		"base_text": task.BaseText,
		"facts":     task.Params,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build rewrite payload: %w", err)
	}

	return o.generate(ctx, o.answer, system, string(payload),
		llms.WithTemperature(0.5), llms.WithMaxTokens(300))
}

// formatHistory renders the bounded history in the prompt-friendly shape
// the answer model expects.
func formatHistory(task GenerationTask) []map[string]string {
	out := make([]map[string]string, 0, len(task.History))
	for _, turn := range task.History {
		out = append(out, map[string]string{"role": turn.Role, "text": turn.Text})
	}
	return out
}
