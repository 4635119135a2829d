// Package correlation carries a per-request ID through contexts and stamps
// it onto every log record written with that context.
package correlation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// Header is the request and response header that carries the ID.
const Header = "X-Request-ID"

const maxIDLen = 64

type ctxKey struct{}

// NewID returns 8 random hex characters.
func NewID() string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// Parse accepts an ID supplied by a client or proxy if it is short and made
// only of letters, digits, '-', '_' or '.'. Anything else would be unsafe to
// echo into headers and logs.
func Parse(raw string) (string, bool) {
	if raw == "" || len(raw) > maxIDLen {
		return "", false
	}
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return "", false
		}
	}
	return raw, true
}

func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// ID reports the request ID in ctx. An empty ID counts as absent.
func ID(ctx context.Context) (string, bool) {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id, id != ""
}

// Handler adds "correlation_id" to records whose context carries an ID.
type Handler struct {
	next slog.Handler
}

func NewHandler(next slog.Handler) *Handler {
	return &Handler{next: next}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := ID(ctx); ok {
		r = r.Clone()
		r.AddAttrs(slog.String("correlation_id", id))
	}
	if err := h.next.Handle(ctx, r); err != nil {
		return fmt.Errorf("correlation handler: %w", err)
	}
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewHandler(h.next.WithAttrs(attrs))
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return NewHandler(h.next.WithGroup(name))
}
