package logging_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/btcpayserver/btcpayserver-sub006/internal/platform/logging"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, logging.ParseLevel(in), in)
	}
}

func TestContextLogger(t *testing.T) {
	assert.Same(t, slog.Default(), logging.FromContext(context.Background()))

	logger := slog.New(slog.DiscardHandler)
	ctx := logging.WithLogger(context.Background(), logger)
	assert.Same(t, logger, logging.FromContext(ctx))
}
