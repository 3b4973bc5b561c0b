package tasks

import (
	"sort"
	"time"
)

const upcomingCap = 10

// Deadline is one entry in the upcoming list. DueDate keeps the raw source
// string; ordering uses the parsed instant.
type Deadline struct {
	Title    string `json:"title"`
	DueDate  string `json:"due_date"`
	Source   Source `json:"source"`
	Priority string `json:"priority"`
}

type Summary struct {
	TotalTasks        int        `json:"total_tasks"`
	UrgentTasks       int        `json:"urgent_tasks"`
	OverdueTasks      int        `json:"overdue_tasks"`
	CompletedThisWeek int        `json:"completed_this_week"`
	UpcomingDeadlines []Deadline `json:"upcoming_deadlines"`
}

type upcomingCandidate struct {
	deadline Deadline
	at       time.Time
}

// Triage classifies every task into at most one of overdue / upcoming /
// neither. Tasks with no reference date, or one that does not parse, are
// silently left out of both buckets.
func Triage(tasks []Task, now time.Time, lookaheadDays int, periodStart time.Time) Summary {
	if lookaheadDays < 1 {
		lookaheadDays = 7
	}
	horizon := now.AddDate(0, 0, lookaheadDays)

	summary := Summary{
		TotalTasks:        len(tasks),
		UpcomingDeadlines: []Deadline{},
	}
	candidates := make([]upcomingCandidate, 0, len(tasks))

	for _, task := range tasks {
		if task.Priority == PriorityHigh || task.Urgent {
			summary.UrgentTasks++
		}

		if reference := referenceDate(task); reference != "" {
			if at, ok := parseISO(reference); ok {
				switch {
				case at.Before(now):
					summary.OverdueTasks++
				case at.Before(horizon):
					candidates = append(candidates, upcomingCandidate{
						deadline: Deadline{
							Title:    taskTitle(task),
							DueDate:  reference,
							Source:   task.Source,
							Priority: task.Priority,
						},
						at: at,
					})
				}
			}
		}

		if IsDone(task.Status) && task.CompletedDate != "" {
			if completed, ok := parseISO(task.CompletedDate); ok && !completed.Before(periodStart) {
				summary.CompletedThisWeek++
			}
		}
	}

	// Sort by parsed instant. Raw ISO strings mix date-only and zoned
	// timestamps, so a lexicographic sort would misorder them.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].at.Before(candidates[j].at)
	})
	if len(candidates) > upcomingCap {
		candidates = candidates[:upcomingCap]
	}
	for _, candidate := range candidates {
		summary.UpcomingDeadlines = append(summary.UpcomingDeadlines, candidate.deadline)
	}

	return summary
}

// referenceDate resolves the single date a task is classified by.
func referenceDate(task Task) string {
	if task.DueDate != "" {
		return task.DueDate
	}
	if task.Start != "" {
		return task.Start
	}
	return task.End
}

func taskTitle(task Task) string {
	if task.Title != "" {
		return task.Title
	}
	return "Untitled"
}
