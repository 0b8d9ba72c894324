// Package mocklogger provides a slog handler that captures log records for
// assertions in tests.
package mocklogger

import (
	"context"
	"log/slog"
	"sync"
)

// Handler records every message and level it receives.
type Handler struct {
	mu       sync.Mutex
	messages []string
	levels   []slog.Level
}

// Enabled implements slog.Handler.
func (h *Handler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

// Handle implements slog.Handler.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, r.Message)
	h.levels = append(h.levels, r.Level)
	return nil
}

// WithAttrs implements slog.Handler.
func (h *Handler) WithAttrs(_ []slog.Attr) slog.Handler {
	return h
}

// WithGroup implements slog.Handler.
func (h *Handler) WithGroup(_ string) slog.Handler {
	return h
}

// Messages returns a copy of the captured messages.
func (h *Handler) Messages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.messages...)
}

// Levels returns a copy of the captured levels.
func (h *Handler) Levels() []slog.Level {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]slog.Level(nil), h.levels...)
}

// NewMockLogger returns a logger backed by a capturing handler, plus the
// handler for inspection.
func NewMockLogger() (*slog.Logger, *Handler) {
	h := &Handler{}
	return slog.New(h), h
}
