package assemble

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dwizi/copilot-backend/internal/google"
	"github.com/dwizi/copilot-backend/internal/jira"
)

// Source names used in gather outcomes and logs.
const (
	SourceEmails = "emails"
	SourceEvents = "events"
	SourceIssues = "issues"
	SourceFiles  = "files"
)

// Fetchers holds the per-request fetch closures, already bound to the
// caller's credentials. A nil closure means the integration is not
// connected and its category stays absent.
type Fetchers struct {
	Emails func(ctx context.Context) ([]google.Email, error)
	Events func(ctx context.Context) ([]google.Event, error)
	Issues func(ctx context.Context) ([]jira.Issue, error)
	Files  func(ctx context.Context) ([]google.File, error)
}

// Failure records which source degraded and why. A failed source leaves its
// category absent; it never aborts the gather.
type Failure struct {
	Source string
	Err    error
}

type Outcome struct {
	Bundle   Bundle
	Failures []Failure
}

// FailedSource returns the error for a source, if that source failed.
func (o Outcome) FailedSource(source string) (error, bool) {
	for _, failure := range o.Failures {
		if failure.Source == source {
			return failure.Err, true
		}
	}
	return nil, false
}

// Gather runs all configured fetchers concurrently and collects whatever
// succeeded. Partial context is always preferable to request failure, so the
// returned error is always nil-equivalent: failures are carried per source.
func Gather(ctx context.Context, fetchers Fetchers, logger *slog.Logger) Outcome {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		mu      sync.Mutex
		outcome Outcome
	)
	fail := func(source string, err error) {
		mu.Lock()
		outcome.Failures = append(outcome.Failures, Failure{Source: source, Err: err})
		mu.Unlock()
		logger.Warn("integration fetch degraded", "source", source, "error", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	if fetchers.Emails != nil {
		group.Go(func() error {
			emails, err := fetchers.Emails(groupCtx)
			if err != nil {
				fail(SourceEmails, err)
				return nil
			}
			mu.Lock()
			outcome.Bundle.Emails = emails
			mu.Unlock()
			return nil
		})
	}
	if fetchers.Events != nil {
		group.Go(func() error {
			events, err := fetchers.Events(groupCtx)
			if err != nil {
				fail(SourceEvents, err)
				return nil
			}
			mu.Lock()
			outcome.Bundle.Events = events
			mu.Unlock()
			return nil
		})
	}
	if fetchers.Issues != nil {
		group.Go(func() error {
			issues, err := fetchers.Issues(groupCtx)
			if err != nil {
				fail(SourceIssues, err)
				return nil
			}
			mu.Lock()
			outcome.Bundle.Issues = issues
			mu.Unlock()
			return nil
		})
	}
	if fetchers.Files != nil {
		group.Go(func() error {
			files, err := fetchers.Files(groupCtx)
			if err != nil {
				fail(SourceFiles, err)
				return nil
			}
			mu.Lock()
			outcome.Bundle.Files = files
			mu.Unlock()
			return nil
		})
	}

	_ = group.Wait()
	return outcome
}
