// Package scheduler runs periodic background maintenance on a cron
// schedule, currently the refresh of expiring Google OAuth grants.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

type Service struct {
	schedule cron.Schedule
	spec     string
	job      func(ctx context.Context) error
	logger   *slog.Logger
}

// New parses a five-field cron spec (descriptors like @hourly also work) and
// binds it to the job to run on each tick.
func New(spec string, job func(ctx context.Context) error, logger *slog.Logger) (*Service, error) {
	spec = strings.Join(strings.Fields(spec), " ")
	if spec == "" {
		return nil, fmt.Errorf("empty cron spec")
	}
	schedule, err := cronParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{schedule: schedule, spec: spec, job: job, logger: logger}, nil
}

func (s *Service) Start(ctx context.Context) error {
	if s.job == nil {
		<-ctx.Done()
		return nil
	}
	s.logger.Info("scheduler started", "schedule", s.spec)
	for {
		next := s.schedule.Next(time.Now().UTC())
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-time.After(time.Until(next)):
		}
		if err := s.job(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("scheduled sync failed", "error", err)
		}
	}
}
