package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/codewatch-ai/revbot/pkg/domain"
)

// MessagesClient is the narrow slice of the Anthropic SDK this package
// depends on, so tests can substitute a fake without a live API key.
type MessagesClient interface {
	New(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
}

// AnthropicOptions configures AnthropicClient.
type AnthropicOptions struct {
	DefaultModel   anthropic.Model
	SmallModel     anthropic.Model
	MaxTokens      int64
	Temperature    float64
	ThinkingBudget int64
}

// AnthropicClient implements Classifier, FixProposer, and
// FunctionQuestioner against the Anthropic Messages API.
type AnthropicClient struct {
	messages     MessagesClient
	defaultModel anthropic.Model
	smallModel   anthropic.Model
	maxTokens    int64
	temperature  float64
}

// NewAnthropicClient builds a client against the live API using apiKey.
func NewAnthropicClient(apiKey string, opts AnthropicOptions) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llm: anthropic api key must not be empty")
	}
	if opts.DefaultModel == "" {
		return nil, fmt.Errorf("llm: anthropic default model must not be empty")
	}
	sdk := anthropic.NewClient(option.WithAPIKey(apiKey))
	return newAnthropicClient(&sdkMessagesAdapter{client: &sdk}, opts), nil
}

// newAnthropicClient builds a client against an injected MessagesClient,
// used by tests to avoid live API calls.
func newAnthropicClient(messages MessagesClient, opts AnthropicOptions) *AnthropicClient {
	small := opts.SmallModel
	if small == "" {
		small = opts.DefaultModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	return &AnthropicClient{
		messages:     messages,
		defaultModel: opts.DefaultModel,
		smallModel:   small,
		maxTokens:    maxTokens,
		temperature:  opts.Temperature,
	}
}

type sdkMessagesAdapter struct {
	client *anthropic.Client
}

func (a *sdkMessagesAdapter) New(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	return a.client.Messages.New(ctx, params)
}

func (c *AnthropicClient) complete(ctx context.Context, model anthropic.Model, prompt string) (string, error) {
	resp, err := c.messages.New(ctx, anthropic.MessageNewParams{
		Model:       model,
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(c.temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm: anthropic request: %w", err)
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

// extractJSON strips a fenced ```json ... ``` block if present, otherwise
// returns the input unchanged; model output is frequently wrapped in a
// markdown fence despite being asked not to.
func extractJSON(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return trimmed
	}
	lines = lines[1:]
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

type classifyResponse struct {
	Vulnerabilities []domain.Issue `json:"vulnerabilities"`
	SecurityIssues  []domain.Issue `json:"security_issues"`
	QualityIssues   []domain.Issue `json:"quality_issues"`
}

// Classify submits window to the default model and requests a JSON
// classification into the three issue lists, tagging every issue with
// window.Filename if the model omitted it.
func (c *AnthropicClient) Classify(ctx context.Context, window CodeWindow, build *domain.BuildResult) (ClassificationResult, error) {
	prompt := buildClassifyPrompt(window, build)
	text, err := c.complete(ctx, c.defaultModel, prompt)
	if err != nil {
		return ClassificationResult{}, err
	}

	var parsed classifyResponse
	if err := json.Unmarshal([]byte(extractJSON(text)), &parsed); err != nil {
		return ClassificationResult{}, fmt.Errorf("llm: parse classification response: %w", err)
	}

	tagFilename(parsed.Vulnerabilities, window.Filename)
	tagFilename(parsed.SecurityIssues, window.Filename)
	tagFilename(parsed.QualityIssues, window.Filename)

	return ClassificationResult{
		Vulnerabilities: parsed.Vulnerabilities,
		SecurityIssues:  parsed.SecurityIssues,
		QualityIssues:   parsed.QualityIssues,
	}, nil
}

func tagFilename(issues []domain.Issue, filename string) {
	for i := range issues {
		if issues[i].Filename == "" {
			issues[i].Filename = filename
		}
	}
}

func buildClassifyPrompt(window CodeWindow, build *domain.BuildResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Classify the following changes to %s into vulnerabilities, security_issues, and quality_issues. Respond with JSON only.\n\n", window.Filename)
	if build != nil {
		fmt.Fprintf(&sb, "Project kind: %s\n\n", build.ProjectKind)
	}
	for _, line := range window.Lines {
		fmt.Fprintf(&sb, "%d: %s\n", line.LineNumber, line.Content)
	}
	return sb.String()
}

// ProposeFix asks the default model for a minimal-change fix for issue,
// given the file's current content.
func (c *AnthropicClient) ProposeFix(ctx context.Context, issue domain.Issue, currentContent string) (domain.FixProposal, error) {
	prompt := fmt.Sprintf(
		"Issue in %s line %d (%s, severity %s): %s\n\nCurrent file content:\n%s\n\nRespond with JSON: {function_name, fix_summary, issue_type, confidence, start_line, end_line, old_code, new_code, explanation}.",
		issue.Filename, issue.Line, issue.Type, issue.Severity, issue.Description, currentContent,
	)
	text, err := c.complete(ctx, c.defaultModel, prompt)
	if err != nil {
		return domain.FixProposal{}, err
	}
	var proposal domain.FixProposal
	if err := json.Unmarshal([]byte(extractJSON(text)), &proposal); err != nil {
		return domain.FixProposal{}, fmt.Errorf("llm: parse fix proposal: %w", err)
	}
	return proposal, nil
}

type questionsResponse struct {
	Questions []struct {
		Index     int    `json:"index"`
		Spec      string `json:"spec"`
		Reasoning string `json:"reasoning"`
	} `json:"questions"`
}

// AskFunctions batches every candidate function into a single request and
// asks the small model for a spec + reasoning pair per function, matched
// back by index.
func (c *AnthropicClient) AskFunctions(ctx context.Context, functions []domain.ChangedFunction) ([]domain.FunctionQuestion, error) {
	if len(functions) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString("For each numbered function below, write a natural-language spec of what it must do and a short reasoning for why it warrants a test. Respond with JSON: {\"questions\":[{\"index\":N,\"spec\":...,\"reasoning\":...}]}.\n\n")
	for i, fn := range functions {
		fmt.Fprintf(&sb, "#%d %s (%s):\n%s\n\n", i, fn.FunctionName, fn.Filename, fn.Source)
	}

	text, err := c.complete(ctx, c.smallModel, sb.String())
	if err != nil {
		return nil, err
	}

	var parsed questionsResponse
	if err := json.Unmarshal([]byte(extractJSON(text)), &parsed); err != nil {
		return nil, fmt.Errorf("llm: parse function questions: %w", err)
	}

	out := make([]domain.FunctionQuestion, 0, len(parsed.Questions))
	for _, q := range parsed.Questions {
		if q.Index < 0 || q.Index >= len(functions) {
			continue
		}
		out = append(out, domain.FunctionQuestion{
			Function:  functions[q.Index],
			Spec:      q.Spec,
			Reasoning: q.Reasoning,
		})
	}
	return out, nil
}
