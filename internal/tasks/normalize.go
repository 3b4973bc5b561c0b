// Package tasks converts heterogeneous calendar and issue-tracker records
// into one task shape and computes triage metrics over it.
package tasks

import (
	"strings"
	"time"

	"github.com/dwizi/copilot-backend/internal/google"
	"github.com/dwizi/copilot-backend/internal/jira"
)

type Source string

const (
	SourceCalendar Source = "calendar"
	SourceJira     Source = "jira"
)

const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Task is the unified shape shared by calendar events and Jira issues.
// Date fields stay raw strings; classification parses them on demand.
type Task struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Status        string `json:"status"`
	Priority      string `json:"priority"`
	DueDate       string `json:"due_date,omitempty"`
	Start         string `json:"start,omitempty"`
	End           string `json:"end,omitempty"`
	Source        Source `json:"source"`
	Type          string `json:"type"`
	Project       string `json:"project,omitempty"`
	URL           string `json:"url,omitempty"`
	Urgent        bool   `json:"urgent"`
	CompletedDate string `json:"completed_date,omitempty"`
}

var priorityMap = map[string]string{
	"Highest": PriorityHigh,
	"High":    PriorityHigh,
	"Medium":  PriorityMedium,
	"Low":     PriorityLow,
	"Lowest":  PriorityLow,
}

var canonicalDone = map[string]bool{
	"done":      true,
	"completed": true,
	"resolved":  true,
	"closed":    true,
}

// IsDone reports whether a normalized status is a canonical done state.
func IsDone(status string) bool {
	return canonicalDone[strings.ToLower(strings.TrimSpace(status))]
}

// Normalize maps already-fetched calendar events and Jira issues into Tasks.
// It is total: malformed dates never drop a task, they only withhold the
// derived completion metadata.
func Normalize(events []google.Event, issues []jira.Issue, now time.Time) []Task {
	tasks := make([]Task, 0, len(events)+len(issues))

	for _, event := range events {
		task := Task{
			ID:          event.ID,
			Title:       event.Title,
			Description: event.Description,
			Status:      StatusPending,
			Priority:    PriorityMedium,
			Start:       event.Start,
			End:         event.End,
			Source:      SourceCalendar,
			Type:        "event",
			Urgent:      titleLooksUrgent(event.Title),
		}
		// An event whose end has passed counts as completed, with the end
		// acting as the completion date.
		if end, ok := parseISO(event.End); ok && end.Before(now) {
			task.Status = StatusCompleted
			task.CompletedDate = event.End
		}
		tasks = append(tasks, task)
	}

	for _, issue := range issues {
		status := strings.ToLower(issue.Status)
		task := Task{
			ID:          issue.Key,
			Title:       issue.Summary,
			Description: issue.Description,
			Status:      status,
			Priority:    mapPriority(issue.Priority),
			DueDate:     issue.DueDate,
			Source:      SourceJira,
			Type:        "issue",
			Project:     issue.Project,
			URL:         issue.URL,
		}
		task.Urgent = task.Priority == PriorityHigh || titleLooksUrgent(issue.Summary)
		if IsDone(status) && issue.ResolutionDate != "" {
			task.CompletedDate = issue.ResolutionDate
		}
		tasks = append(tasks, task)
	}

	return tasks
}

func mapPriority(raw string) string {
	if mapped, ok := priorityMap[strings.TrimSpace(raw)]; ok {
		return mapped
	}
	return PriorityMedium
}

func titleLooksUrgent(title string) bool {
	lowered := strings.ToLower(title)
	return strings.Contains(lowered, "urgent") || strings.Contains(lowered, "asap")
}
