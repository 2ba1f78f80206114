package testagent

import (
	"context"

	"github.com/codewatch-ai/revbot/pkg/agent"
	"github.com/codewatch-ai/revbot/pkg/domain"
	"github.com/codewatch-ai/revbot/pkg/events"
)

// phase2 generates a test body for each FunctionQuestion in order, via a
// single request per question to the code-generation collaborator. There
// is no retry: a failure skips that question and the stage continues.
func (t *Tester) phase2(ctx context.Context, questions []domain.FunctionQuestion, progress agent.ProgressFunc) []domain.GeneratedTest {
	generated := make([]domain.GeneratedTest, 0, len(questions))

	for _, q := range questions {
		progress(events.EventTypeTestGenerationStart, nil, map[string]any{"function_name": q.Function.FunctionName})

		gt, err := t.generator.GenerateTest(ctx, q)
		if err != nil {
			progress(events.EventTypeTestGenerationFailed, nil, map[string]any{
				"function_name": q.Function.FunctionName,
				"error":         err.Error(),
			})
			continue
		}

		progress(events.EventTypeTestGenerated, nil, map[string]any{
			"function_name":    q.Function.FunctionName,
			"test_name":        gt.PrimaryCase,
			"confidence_score": gt.Confidence,
		})
		generated = append(generated, gt)
	}

	return generated
}
