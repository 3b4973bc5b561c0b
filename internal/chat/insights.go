package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dwizi/copilot-backend/internal/assemble"
	"github.com/dwizi/copilot-backend/internal/llm"
)

const insightItemCap = 10

// AnalyzeTasks asks the model for a structured triage of the fetched
// workspace data. The model is instructed to answer in JSON; when it
// doesn't, the raw text is returned under an "analysis" key.
func (o *Orchestrator) AnalyzeTasks(ctx context.Context, bundle assemble.Bundle) (map[string]any, error) {
	emails, err := jsonHead(bundle.Emails, insightItemCap)
	if err != nil {
		return nil, err
	}
	events, err := jsonHead(bundle.Events, insightItemCap)
	if err != nil {
		return nil, err
	}
	issues, err := jsonHead(bundle.Issues, insightItemCap)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`Analyze the following data and provide a comprehensive task analysis:

EMAILS (%d items):
%s

CALENDAR EVENTS (%d items):
%s

JIRA ISSUES (%d items):
%s

Please provide:
1. Priority tasks for today
2. Upcoming deadlines this week
3. Overdue items that need attention
4. Recommendations for task management
5. Time blocking suggestions

Format as JSON with clear sections.`,
		len(bundle.Emails), emails,
		len(bundle.Events), events,
		len(bundle.Issues), issues,
	)

	response, err := o.responder.Generate(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
	if err != nil {
		return nil, fmt.Errorf("generate task analysis: %w", err)
	}

	var analysis map[string]any
	if err := json.Unmarshal([]byte(response), &analysis); err != nil {
		return map[string]any{"analysis": response}, nil
	}
	return analysis, nil
}

// SummarizeWeek asks the model for a short weekly digest.
func (o *Orchestrator) SummarizeWeek(ctx context.Context, bundle assemble.Bundle) (string, error) {
	prompt := fmt.Sprintf(`Create a weekly summary based on:

Emails: %d items
Calendar Events: %d items
JIRA Issues: %d items

Include:
- Key accomplishments
- Pending tasks
- Upcoming priorities
- Recommendations for next week

Keep it concise and actionable.`,
		len(bundle.Emails), len(bundle.Events), len(bundle.Issues))

	summary, err := o.responder.Generate(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
	if err != nil {
		return "", fmt.Errorf("generate weekly summary: %w", err)
	}
	return summary, nil
}

func jsonHead[T any](items []T, limit int) (string, error) {
	if len(items) > limit {
		items = items[:limit]
	}
	if items == nil {
		items = []T{}
	}
	encoded, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode insight payload: %w", err)
	}
	return string(encoded), nil
}
