package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/codewatch-ai/revbot/pkg/domain"
)

// ChatClient is the narrow slice of the OpenAI SDK this package depends on.
type ChatClient interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// OpenAIClient implements TestGenerator against an OpenAI-compatible
// endpoint, typically a local LM-Studio-style server.
type OpenAIClient struct {
	chat  ChatClient
	model string
}

// NewOpenAIClient builds a client pointed at baseURL (e.g.
// "http://localhost:1234/v1"). apiKey may be a placeholder value for
// servers that don't enforce one.
func NewOpenAIClient(baseURL, apiKey, model string) (*OpenAIClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("llm: code model base url must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("llm: code model name must not be empty")
	}
	sdk := openai.NewClient(option.WithBaseURL(baseURL), option.WithAPIKey(apiKey))
	return &OpenAIClient{chat: &sdkChatAdapter{client: &sdk}, model: model}, nil
}

type sdkChatAdapter struct {
	client *openai.Client
}

func (a *sdkChatAdapter) New(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return a.client.Chat.Completions.New(ctx, params)
}

// GenerateTest asks the code model to write a test body satisfying
// question.Spec.
func (c *OpenAIClient) GenerateTest(ctx context.Context, question domain.FunctionQuestion) (domain.GeneratedTest, error) {
	prompt := buildTestGenerationPrompt(question)

	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return domain.GeneratedTest{}, fmt.Errorf("llm: code model request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.GeneratedTest{}, fmt.Errorf("llm: code model returned no choices")
	}

	source := stripCodeFence(resp.Choices[0].Message.Content)
	return domain.GeneratedTest{
		Question:    question,
		Source:      source,
		PrimaryCase: deriveTestName(source, question.Function.FunctionName),
		Confidence:  estimateConfidence(source),
	}, nil
}

func buildTestGenerationPrompt(question domain.FunctionQuestion) string {
	var sb strings.Builder
	fn := question.Function
	fmt.Fprintf(&sb, "Write a pytest test for the following function. Spec: %s\n\n", question.Spec)
	fmt.Fprintf(&sb, "File: %s\n%s\n\nRespond with only the test code, no explanation.", fn.Filename, fn.Source)
	return sb.String()
}

// stripCodeFence removes a ```python ... ``` or ``` ... ``` wrapper if the
// model added one despite being asked not to.
func stripCodeFence(text string) string {
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

// testDefPattern matches a pytest test-function definition line.
var testDefPattern = regexp.MustCompile(`(?m)^\s*def\s+(test_\w+)\s*\(`)

// deriveTestName scans source for the first `def test_...`, preferring one
// whose name contains functionName; falling back to the first test
// function found; falling back to a synthesized name.
func deriveTestName(source, functionName string) string {
	matches := testDefPattern.FindAllStringSubmatch(source, -1)
	if len(matches) == 0 {
		return "test_" + strings.TrimPrefix(functionName, "test_")
	}
	for _, m := range matches {
		if strings.Contains(m[1], functionName) {
			return m[1]
		}
	}
	return matches[0][1]
}

// estimateConfidence is a coarse heuristic: a generated body with at least
// one assertion and no obvious placeholder is scored higher.
func estimateConfidence(source string) int {
	score := 40
	if strings.Contains(source, "assert ") {
		score += 40
	}
	if strings.Contains(source, "def test_") {
		score += 10
	}
	if strings.Contains(strings.ToLower(source), "todo") || strings.Contains(strings.ToLower(source), "pass  #") {
		score -= 20
	}
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}
