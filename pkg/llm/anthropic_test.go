package llm

import (
	"context"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewatch-ai/revbot/pkg/domain"
)

type fakeMessagesClient struct {
	response string
	lastReq  anthropic.MessageNewParams
}

func (f *fakeMessagesClient) New(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	f.lastReq = params
	return &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: f.response},
		},
	}, nil
}

func TestAnthropicClient_ClassifyTagsMissingFilename(t *testing.T) {
	fake := &fakeMessagesClient{response: `{
		"vulnerabilities": [{"type": "sql_injection", "severity": "HIGH", "line": 10, "description": "unescaped input", "confidence": 90}],
		"security_issues": [],
		"quality_issues": []
	}`}
	client := newAnthropicClient(fake, AnthropicOptions{DefaultModel: "claude-sonnet-4-5"})

	result, err := client.Classify(context.Background(), CodeWindow{
		Filename: "app.py",
		Lines:    []domain.DiffLine{{LineNumber: 10, Content: "cursor.execute(q)"}},
	}, nil)

	require.NoError(t, err)
	require.Len(t, result.Vulnerabilities, 1)
	assert.Equal(t, "app.py", result.Vulnerabilities[0].Filename)
}

func TestAnthropicClient_ClassifyWrapsFencedJSON(t *testing.T) {
	fake := &fakeMessagesClient{response: "```json\n{\"vulnerabilities\":[],\"security_issues\":[],\"quality_issues\":[]}\n```"}
	client := newAnthropicClient(fake, AnthropicOptions{DefaultModel: "claude-sonnet-4-5"})

	result, err := client.Classify(context.Background(), CodeWindow{Filename: "x.py"}, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Vulnerabilities)
}

func TestAnthropicClient_AskFunctionsMatchesByIndex(t *testing.T) {
	fake := &fakeMessagesClient{response: `{"questions":[{"index":1,"spec":"doubles input","reasoning":"arithmetic"}]}`}
	client := newAnthropicClient(fake, AnthropicOptions{DefaultModel: "claude-sonnet-4-5", SmallModel: "claude-haiku-4-5"})

	functions := []domain.ChangedFunction{
		{FunctionName: "a"},
		{FunctionName: "double"},
	}
	questions, err := client.AskFunctions(context.Background(), functions)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, "double", questions[0].Function.FunctionName)
	assert.Equal(t, "doubles input", questions[0].Spec)
}

func TestAnthropicClient_AskFunctionsEmptyInputSkipsCall(t *testing.T) {
	fake := &fakeMessagesClient{}
	client := newAnthropicClient(fake, AnthropicOptions{DefaultModel: "claude-sonnet-4-5"})

	questions, err := client.AskFunctions(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, questions)
}

func TestAnthropicClient_ProposeFixParsesResponse(t *testing.T) {
	fake := &fakeMessagesClient{response: `{
		"function_name": "handler",
		"fix_summary": "bound check",
		"issue_type": "out_of_bounds",
		"confidence": 85,
		"start_line": 10,
		"end_line": 12,
		"old_code": "return arr[i]",
		"new_code": "return arr[i] if i < len(arr) else None",
		"explanation": "guard index"
	}`}
	client := newAnthropicClient(fake, AnthropicOptions{DefaultModel: "claude-sonnet-4-5"})

	proposal, err := client.ProposeFix(context.Background(), domain.Issue{Filename: "a.py", Line: 10}, "def handler(arr, i):\n    return arr[i]\n")
	require.NoError(t, err)
	assert.Equal(t, "handler", proposal.FunctionName)
	assert.Equal(t, 85, proposal.Confidence)
}
