package tasks

import (
	"testing"
	"time"

	"github.com/dwizi/copilot-backend/internal/google"
	"github.com/dwizi/copilot-backend/internal/jira"
)

var testNow = time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

func TestNormalizeCalendarEvent(t *testing.T) {
	events := []google.Event{
		{
			ID:          "evt-1",
			Title:       "URGENT: ship release",
			Description: "cut the build",
			Start:       "2024-06-11T09:00:00Z",
			End:         "2024-06-11T10:00:00Z",
		},
		{
			ID:    "evt-2",
			Title: "Retro",
			Start: "2024-06-03T15:00:00Z",
			End:   "2024-06-03T16:00:00Z",
		},
	}

	tasks := Normalize(events, nil, testNow)
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}

	future := tasks[0]
	if !future.Urgent {
		t.Error("expected keyword match to flag task urgent")
	}
	if future.Status != StatusPending {
		t.Errorf("expected future event pending, got %q", future.Status)
	}
	if future.Source != SourceCalendar || future.Type != "event" {
		t.Errorf("unexpected source/type: %q/%q", future.Source, future.Type)
	}

	past := tasks[1]
	if past.Status != StatusCompleted {
		t.Errorf("expected past event completed, got %q", past.Status)
	}
	if past.CompletedDate != "2024-06-03T16:00:00Z" {
		t.Errorf("expected completion date from event end, got %q", past.CompletedDate)
	}
	if past.Urgent {
		t.Error("plain title should not be urgent")
	}
}

func TestNormalizeJiraIssue(t *testing.T) {
	issues := []jira.Issue{
		{
			Key:      "OPS-7",
			Summary:  "Rotate certificates",
			Status:   "In Progress",
			Priority: "Highest",
			DueDate:  "2024-06-12",
			Project:  "Ops",
		},
		{
			Key:            "OPS-8",
			Summary:        "Archive logs",
			Status:         "Resolved",
			Priority:       "Sideways",
			ResolutionDate: "2024-06-09T14:00:00.000+0000",
		},
	}

	tasks := Normalize(nil, issues, testNow)
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}

	open := tasks[0]
	if open.Status != "in progress" {
		t.Errorf("expected lower-cased status, got %q", open.Status)
	}
	if open.Priority != PriorityHigh {
		t.Errorf("expected Highest mapped to high, got %q", open.Priority)
	}
	if !open.Urgent {
		t.Error("high priority issue should be urgent")
	}
	if open.CompletedDate != "" {
		t.Error("open issue must not carry a completion date")
	}

	resolved := tasks[1]
	if resolved.Priority != PriorityMedium {
		t.Errorf("unmapped priority should default to medium, got %q", resolved.Priority)
	}
	if resolved.CompletedDate != "2024-06-09T14:00:00.000+0000" {
		t.Errorf("resolved issue should keep its resolution date, got %q", resolved.CompletedDate)
	}
}

func TestNormalizeIsTotalOnMalformedDates(t *testing.T) {
	events := []google.Event{{ID: "evt", Title: "Broken", End: "not-a-date"}}
	issues := []jira.Issue{{Key: "X-1", Summary: "Broken too", Status: "Open", DueDate: "whenever"}}

	tasks := Normalize(events, issues, testNow)
	if len(tasks) != 2 {
		t.Fatalf("malformed dates must not drop tasks, got %d of 2", len(tasks))
	}
	if tasks[0].Status != StatusPending {
		t.Errorf("unparsable end date should leave the event pending, got %q", tasks[0].Status)
	}
	if tasks[1].DueDate != "whenever" {
		t.Errorf("raw due date should be preserved, got %q", tasks[1].DueDate)
	}
}

func TestParseISO(t *testing.T) {
	cases := []struct {
		value string
		ok    bool
	}{
		{"2024-06-10T12:00:00Z", true},
		{"2024-06-10T12:00:00+02:00", true},
		{"2024-06-10T12:00:00.000+0000", true},
		{"2024-06-10T12:00:00", true},
		{"2024-06-10", true},
		{"", false},
		{"tomorrow", false},
		{"2024-13-40", false},
	}
	for _, tc := range cases {
		if _, ok := parseISO(tc.value); ok != tc.ok {
			t.Errorf("parseISO(%q) ok=%v, want %v", tc.value, ok, tc.ok)
		}
	}
}

func TestMostRecentMonday(t *testing.T) {
	// 2024-06-10 is a Monday.
	monday := MostRecentMonday(time.Date(2024, 6, 13, 17, 30, 0, 0, time.UTC))
	want := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	if !monday.Equal(want) {
		t.Fatalf("expected %v, got %v", want, monday)
	}

	sameDay := MostRecentMonday(want.Add(5 * time.Hour))
	if !sameDay.Equal(want) {
		t.Fatalf("monday input should truncate to itself, got %v", sameDay)
	}
}
