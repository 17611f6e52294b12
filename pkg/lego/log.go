package lego

import (
	"context"
	"log/slog"

	"github.com/askiada/go-lego/internal/ctxlog"
)

// WithLogger returns a context carrying the logger the trainer logs to.
// Without it the trainer logs to slog.Default().
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return ctxlog.WithLogger(ctx, logger)
}
