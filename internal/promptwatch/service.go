// Package promptwatch reloads the chat system prompt when its file changes
// on disk, so prompt edits don't need a restart.
package promptwatch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

type Service struct {
	path     string
	logger   *slog.Logger
	onChange func(prompt string)
	watcher  *fsnotify.Watcher
}

func New(path string, logger *slog.Logger, onChange func(prompt string)) (*Service, error) {
	fileWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Service{
		path:     strings.TrimSpace(path),
		logger:   logger,
		onChange: onChange,
		watcher:  fileWatcher,
	}, nil
}

// Load reads the prompt file once. Missing file is not an error; the
// built-in prompt stays active.
func Load(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read prompt file: %w", err)
	}
	return string(data), nil
}

func (s *Service) Start(ctx context.Context) error {
	defer s.watcher.Close()

	if s.path == "" || s.onChange == nil {
		<-ctx.Done()
		return nil
	}
	// Watch the directory: editors replace files by rename, which drops
	// a watch placed on the file itself.
	if err := s.watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watch prompt dir: %w", err)
	}
	s.logger.Info("prompt watcher started", "path", s.path)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("prompt watcher stopped")
			return nil
		case event := <-s.watcher.Events:
			s.handleEvent(event)
		case err := <-s.watcher.Errors:
			if err != nil {
				s.logger.Error("prompt watcher error", "error", err)
			}
		}
	}
}

func (s *Service) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != filepath.Clean(s.path) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	prompt, err := Load(s.path)
	if err != nil {
		s.logger.Error("prompt reload failed", "path", s.path, "error", err)
		return
	}
	s.logger.Info("system prompt reloaded", "path", s.path, "op", event.Op.String())
	s.onChange(prompt)
}
