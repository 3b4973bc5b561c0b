package cli

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	root := NewRoot(slog.New(slog.NewTextHandler(io.Discard, nil)))
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("execute version: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != version {
		t.Fatalf("version output = %q, want %q", got, version)
	}
}

func TestRootListsCommands(t *testing.T) {
	root := NewRoot(slog.New(slog.NewTextHandler(io.Discard, nil)))
	names := map[string]bool{}
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"serve", "version"} {
		if !names[want] {
			t.Errorf("missing %q command", want)
		}
	}
}
