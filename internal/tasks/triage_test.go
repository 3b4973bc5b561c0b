package tasks

import (
	"fmt"
	"testing"
	"time"
)

func TestTriageClassification(t *testing.T) {
	now := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	tasks := []Task{
		{Title: "Overdue report", DueDate: "2024-06-05T00:00:00Z", Source: SourceJira, Priority: PriorityHigh},
		{Title: "Standup", Start: "2024-06-12T00:00:00Z", Source: SourceCalendar, Priority: PriorityMedium},
		{Title: "Far away", DueDate: "2024-07-01T00:00:00Z", Source: SourceJira, Priority: PriorityLow},
		{Title: "No date", Source: SourceJira, Priority: PriorityMedium},
		{Title: "Garbage date", DueDate: "someday", Source: SourceJira, Priority: PriorityMedium},
	}

	summary := Triage(tasks, now, 7, MostRecentMonday(now))

	if summary.TotalTasks != 5 {
		t.Fatalf("expected total 5, got %d", summary.TotalTasks)
	}
	if summary.OverdueTasks != 1 {
		t.Errorf("expected 1 overdue, got %d", summary.OverdueTasks)
	}
	if len(summary.UpcomingDeadlines) != 1 {
		t.Fatalf("expected 1 upcoming, got %d", len(summary.UpcomingDeadlines))
	}
	if summary.UpcomingDeadlines[0].Title != "Standup" {
		t.Errorf("unexpected upcoming entry: %+v", summary.UpcomingDeadlines[0])
	}
	if summary.UrgentTasks != 1 {
		t.Errorf("expected 1 urgent, got %d", summary.UrgentTasks)
	}

	// Partition invariant: overdue + upcoming + uncounted == total.
	uncounted := 3 // beyond horizon, no date, unparsable
	if summary.OverdueTasks+len(summary.UpcomingDeadlines)+uncounted != summary.TotalTasks {
		t.Error("tasks must fall into exactly one of overdue/upcoming/neither")
	}
}

func TestTriageUpcomingSortedByParsedInstant(t *testing.T) {
	now := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	// The date-only entry sorts lexicographically after the zoned timestamp
	// but chronologically before it.
	tasks := []Task{
		{Title: "Later", DueDate: "2024-06-12T18:00:00+02:00", Source: SourceJira, Priority: PriorityMedium},
		{Title: "Sooner", DueDate: "2024-06-11", Source: SourceJira, Priority: PriorityMedium},
	}

	summary := Triage(tasks, now, 7, MostRecentMonday(now))
	if len(summary.UpcomingDeadlines) != 2 {
		t.Fatalf("expected 2 upcoming, got %d", len(summary.UpcomingDeadlines))
	}
	if summary.UpcomingDeadlines[0].Title != "Sooner" || summary.UpcomingDeadlines[1].Title != "Later" {
		t.Fatalf("expected chronological order, got %+v", summary.UpcomingDeadlines)
	}
	if summary.UpcomingDeadlines[0].DueDate != "2024-06-11" {
		t.Errorf("raw date string must be preserved, got %q", summary.UpcomingDeadlines[0].DueDate)
	}
}

func TestTriageCapsUpcomingAtTen(t *testing.T) {
	now := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	var tasks []Task
	for day := 0; day < 14; day++ {
		tasks = append(tasks, Task{
			Title:    fmt.Sprintf("task-%d", day),
			DueDate:  now.Add(time.Duration(day+1) * 6 * time.Hour).Format(time.RFC3339),
			Source:   SourceCalendar,
			Priority: PriorityMedium,
		})
	}

	summary := Triage(tasks, now, 7, MostRecentMonday(now))
	if len(summary.UpcomingDeadlines) != 10 {
		t.Fatalf("expected upcoming capped at 10, got %d", len(summary.UpcomingDeadlines))
	}
	if summary.UpcomingDeadlines[0].Title != "task-0" {
		t.Errorf("cap must keep the earliest entries, got %+v", summary.UpcomingDeadlines[0])
	}
}

func TestTriageCompletedThisWeek(t *testing.T) {
	now := time.Date(2024, 6, 13, 12, 0, 0, 0, time.UTC) // Thursday
	periodStart := MostRecentMonday(now)                 // 2024-06-10

	tasks := []Task{
		{Title: "This week", Status: "resolved", CompletedDate: "2024-06-11T10:00:00Z"},
		{Title: "Last week", Status: "done", CompletedDate: "2024-06-07T10:00:00Z"},
		{Title: "Done, no date", Status: "closed"},
		{Title: "Done, bad date", Status: "completed", CompletedDate: "not-a-date"},
		{Title: "Not done", Status: "in progress", CompletedDate: "2024-06-11T10:00:00Z"},
	}

	summary := Triage(tasks, now, 7, periodStart)
	if summary.CompletedThisWeek != 1 {
		t.Fatalf("expected 1 completed this week, got %d", summary.CompletedThisWeek)
	}
}

func TestTriageEmptyInput(t *testing.T) {
	summary := Triage(nil, time.Now(), 7, time.Now())
	if summary.TotalTasks != 0 || summary.OverdueTasks != 0 || summary.UrgentTasks != 0 {
		t.Fatalf("expected zeroed summary, got %+v", summary)
	}
	if summary.UpcomingDeadlines == nil {
		t.Fatal("upcoming must be an empty list, not nil")
	}
}
