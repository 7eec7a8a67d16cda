// Gatekeeper - Visitor Management and Gate Pass Service
// Copyright 2026 NK Tech Union
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nktu/gatekeeper

package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSlogHandlerRoutesToZerolog(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := NewSlogHandlerWithLogger(NewTestLogger(&buf))
	logger := slog.New(handler)

	logger.Info("service started", "service", "http-server")

	out := buf.String()
	if !strings.Contains(out, `"message":"service started"`) {
		t.Errorf("message missing: %q", out)
	}
	if !strings.Contains(out, `"service":"http-server"`) {
		t.Errorf("attribute missing: %q", out)
	}
}

func TestSlogHandlerLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		logFn func(*slog.Logger)
		level string
	}{
		{"debug", func(l *slog.Logger) { l.Debug("m") }, `"level":"debug"`},
		{"info", func(l *slog.Logger) { l.Info("m") }, `"level":"info"`},
		{"warn", func(l *slog.Logger) { l.Warn("m") }, `"level":"warn"`},
		{"error", func(l *slog.Logger) { l.Error("m") }, `"level":"error"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := slog.New(NewSlogHandlerWithLogger(NewTestLogger(&buf)))
			tt.logFn(logger)

			if !strings.Contains(buf.String(), tt.level) {
				t.Errorf("expected %s, got %q", tt.level, buf.String())
			}
		})
	}
}

func TestSlogHandlerWithAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := NewSlogHandlerWithLogger(NewTestLogger(&buf))
	logger := slog.New(handler).With("component", "supervisor")

	logger.Info("restarting")

	if !strings.Contains(buf.String(), `"component":"supervisor"`) {
		t.Errorf("pre-configured attribute missing: %q", buf.String())
	}
}

func TestSlogHandlerWithGroup(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := NewSlogHandlerWithLogger(NewTestLogger(&buf))
	logger := slog.New(handler).WithGroup("tree")

	logger.Info("event", "service", "api")

	if !strings.Contains(buf.String(), `"tree.service":"api"`) {
		t.Errorf("group prefix missing: %q", buf.String())
	}
}
