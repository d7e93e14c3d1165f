// package analysis provides the language-model capability behind sentiment
// scoring, code review feedback, and improvement suggestions. Every
// operation degrades to a neutral result when the client is disabled or the
// API call fails; callers never see an error.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/devkudos/ingest-service/internal/domain"
	"github.com/devkudos/ingest-service/pkg/logger/sl"
)

const (
	defaultModel = "gpt-4o-mini"

	// neutralSentiment is returned whenever a sentiment call cannot be
	// made or answered.
	neutralSentiment = 0.5

	maxPatchChars  = 2000
	maxPromptFiles = 20
)

// completionAPI is the slice of the OpenAI client the analyzer uses. Tests
// substitute a fake.
type completionAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Config struct {
	APIKey  string
	Model   string
	Enabled bool
}

type Analyzer struct {
	api     completionAPI
	model   string
	enabled bool
	log     *slog.Logger
}

func New(cfg Config, log *slog.Logger) *Analyzer {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	if !cfg.Enabled || cfg.APIKey == "" {
		log.Warn("analysis disabled, all operations return neutral results")

		return &Analyzer{model: model, enabled: false, log: log}
	}

	return &Analyzer{
		api:     openai.NewClient(cfg.APIKey),
		model:   model,
		enabled: true,
		log:     log,
	}
}

// newWithAPI wires a custom completion API. Used by tests.
func newWithAPI(api completionAPI, model string, log *slog.Logger) *Analyzer {
	return &Analyzer{api: api, model: model, enabled: true, log: log}
}

// AnalyzeSentiment scores the tone of a comment from 0 (hostile) to 1
// (supportive). Neutral 0.5 on empty input, disabled client, or failure.
func (a *Analyzer) AnalyzeSentiment(ctx context.Context, text string) float64 {
	const op = "internal.analysis.AnalyzeSentiment"

	if !a.enabled || strings.TrimSpace(text) == "" {
		return neutralSentiment
	}

	system := "You rate the sentiment of code review comments. " +
		"Respond with JSON: {\"score\": <number between 0 and 1>} " +
		"where 0 is hostile, 0.5 is neutral, 1 is supportive."

	raw, err := a.completeJSON(ctx, system, text)
	if err != nil {
		a.log.Warn("sentiment analysis degraded to neutral", slog.String("op", op), sl.Err(err))

		return neutralSentiment
	}

	var out struct {
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		a.log.Warn("sentiment response is not valid JSON", slog.String("op", op), sl.Err(err))

		return neutralSentiment
	}

	return clamp(out.Score, 0, 1)
}

// IsOffensiveContent reports whether a comment contains harassment or
// personal attacks. Degrades to false.
func (a *Analyzer) IsOffensiveContent(ctx context.Context, text string) bool {
	const op = "internal.analysis.IsOffensiveContent"

	if !a.enabled || strings.TrimSpace(text) == "" {
		return false
	}

	system := "You moderate code review comments. " +
		"Respond with JSON: {\"offensive\": <true|false>} " +
		"where true means the comment contains insults, harassment, or personal attacks."

	raw, err := a.completeJSON(ctx, system, text)
	if err != nil {
		a.log.Warn("moderation check degraded to false", slog.String("op", op), sl.Err(err))

		return false
	}

	var out struct {
		Offensive bool `json:"offensive"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		a.log.Warn("moderation response is not valid JSON", slog.String("op", op), sl.Err(err))

		return false
	}

	return out.Offensive
}

// AnalyzeCode reviews a changeset and returns feedback items plus a 0-100
// quality score. The second return value is false when no analysis could be
// made, letting callers skip the derived metric instead of storing a fake.
func (a *Analyzer) AnalyzeCode(ctx context.Context, title, description string, files []domain.PullRequestFile) (domain.CodeAnalysis, bool) {
	const op = "internal.analysis.AnalyzeCode"

	if !a.enabled || len(files) == 0 {
		return domain.CodeAnalysis{}, false
	}

	system := "You are a senior engineer reviewing a pull request diff. " +
		"Respond with JSON: {\"score\": <number 0-100 for overall code quality>, " +
		"\"feedback\": [{\"filename\": <string>, \"severity\": <\"info\"|\"warning\"|\"critical\">, \"comment\": <string>}], " +
		"\"metrics\": {<aspect name>: <number 0-100, or {\"score\": <number>, \"raw\": <number>, \"unit\": <string>, \"description\": <string>}>}}. " +
		"Keep feedback short and actionable."

	raw, err := a.completeJSON(ctx, system, buildDiffPrompt(title, description, files))
	if err != nil {
		a.log.Warn("code analysis unavailable", slog.String("op", op), sl.Err(err))

		return domain.CodeAnalysis{}, false
	}

	var out domain.CodeAnalysis
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		a.log.Warn("code analysis response is not valid JSON", slog.String("op", op), sl.Err(err))

		return domain.CodeAnalysis{}, false
	}

	out.Score = clamp(out.Score, 0, 100)

	return out, true
}

// GenerateActionItems turns a scored pull request into a short improvement
// plan for its author. The second return value is false when no plan could
// be generated.
func (a *Analyzer) GenerateActionItems(ctx context.Context, title string, scores domain.Scores, metrics []domain.PRMetric) (domain.ActionPlan, bool) {
	const op = "internal.analysis.GenerateActionItems"

	if !a.enabled {
		return domain.ActionPlan{}, false
	}

	system := "You coach software engineers based on pull request metrics. " +
		"Respond with JSON: {\"overall_recommendation\": <one sentence>, " +
		"\"action_items\": [<up to 3 short imperative strings>]}."

	raw, err := a.completeJSON(ctx, system, buildScorePrompt(title, scores, metrics))
	if err != nil {
		a.log.Warn("action item generation unavailable", slog.String("op", op), sl.Err(err))

		return domain.ActionPlan{}, false
	}

	var out domain.ActionPlan
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		a.log.Warn("action item response is not valid JSON", slog.String("op", op), sl.Err(err))

		return domain.ActionPlan{}, false
	}

	if out.OverallRecommendation == "" && len(out.ActionItems) == 0 {
		return domain.ActionPlan{}, false
	}

	return out, true
}

func (a *Analyzer) completeJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := a.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userPrompt,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
		MaxTokens:   2000,
	})
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// buildDiffPrompt renders the changeset with per-file patch truncation so
// oversized diffs stay within the model's context.
func buildDiffPrompt(title, description string, files []domain.PullRequestFile) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Title: %s\n", title)
	if description != "" {
		fmt.Fprintf(&b, "Description: %s\n", description)
	}

	for i, f := range files {
		if i >= maxPromptFiles {
			fmt.Fprintf(&b, "\n(%d more files omitted)\n", len(files)-maxPromptFiles)
			break
		}

		fmt.Fprintf(&b, "\n--- %s (%s, +%d/-%d)\n", f.Filename, f.Status, f.Additions, f.Deletions)

		patch := f.Patch
		if len(patch) > maxPatchChars {
			patch = patch[:maxPatchChars] + "\n...(truncated)"
		}
		b.WriteString(patch)
		b.WriteString("\n")
	}

	return b.String()
}

func buildScorePrompt(title string, scores domain.Scores, metrics []domain.PRMetric) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Pull request: %s\n", title)
	fmt.Fprintf(&b, "Scores: efficiency %.1f, wellness %.1f, quality %.1f, overall %.1f (all out of 100)\n",
		scores.Efficiency, scores.Wellness, scores.Quality, scores.Overall)

	if len(metrics) > 0 {
		b.WriteString("Metrics:\n")
		for _, m := range metrics {
			fmt.Fprintf(&b, "- %s/%s: %.1f (%s %s)\n", m.Category, m.Name, m.Value, trimFloat(m.RawValue), m.Unit)
		}
	}

	return b.String()
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")

	return strings.TrimRight(s, ".")
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}

	return v
}
