// Package assemble gathers per-integration payloads for one chat turn and
// renders them into a bounded natural-language context block.
package assemble

import (
	"github.com/dwizi/copilot-backend/internal/google"
	"github.com/dwizi/copilot-backend/internal/jira"
)

// Bundle is the set of fetched records attached to a single chat invocation.
// Any list may be nil (integration not connected) or empty (fetch degraded);
// neither is an error.
type Bundle struct {
	Emails []google.Email `json:"emails,omitempty"`
	Events []google.Event `json:"events,omitempty"`
	Issues []jira.Issue   `json:"issues,omitempty"`
	Files  []google.File  `json:"files,omitempty"`
}

func (b Bundle) Empty() bool {
	return len(b.Emails) == 0 && len(b.Events) == 0 && len(b.Issues) == 0 && len(b.Files) == 0
}
