package assemble

import (
	"fmt"
	"strings"
)

const defaultItemsPerGroup = 5

// BuildContextBlock renders a bundle into the system-message text injected
// ahead of the conversation. Each non-empty category contributes one
// paragraph headed by its total count, listing at most itemsPerGroup entries
// in fetch order. The second return is false when every category is empty,
// in which case no system message must be injected.
func BuildContextBlock(bundle Bundle, itemsPerGroup int) (string, bool) {
	if itemsPerGroup < 1 {
		itemsPerGroup = defaultItemsPerGroup
	}

	var sections []string

	if len(bundle.Emails) > 0 {
		lines := []string{fmt.Sprintf("Recent emails (%d unread):", len(bundle.Emails))}
		for _, email := range head(bundle.Emails, itemsPerGroup) {
			lines = append(lines, fmt.Sprintf("- From: %s, Subject: %s", email.Sender, email.Subject))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if len(bundle.Events) > 0 {
		lines := []string{fmt.Sprintf("Upcoming calendar events (%d):", len(bundle.Events))}
		for _, event := range head(bundle.Events, itemsPerGroup) {
			lines = append(lines, fmt.Sprintf("- %s at %s", event.Title, event.Start))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if len(bundle.Issues) > 0 {
		lines := []string{fmt.Sprintf("JIRA issues assigned to you (%d):", len(bundle.Issues))}
		for _, issue := range head(bundle.Issues, itemsPerGroup) {
			lines = append(lines, fmt.Sprintf("- %s: %s (%s)", issue.Key, issue.Summary, issue.Status))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if len(bundle.Files) > 0 {
		lines := []string{fmt.Sprintf("Recent Google Drive files (%d):", len(bundle.Files))}
		for _, file := range head(bundle.Files, itemsPerGroup) {
			lines = append(lines, fmt.Sprintf("- %s (modified: %s)", file.Name, file.Modified))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if len(sections) == 0 {
		return "", false
	}
	return "Current context from your integrated services:\n\n" + strings.Join(sections, "\n\n"), true
}

func head[T any](items []T, limit int) []T {
	if len(items) <= limit {
		return items
	}
	return items[:limit]
}
