package logger

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { SetLevel("info") })

	SetLevel("debug")
	require.True(t, L.Enabled(context.Background(), slog.LevelDebug))

	SetLevel("ERROR")
	require.False(t, L.Enabled(context.Background(), slog.LevelWarn))
	require.True(t, L.Enabled(context.Background(), slog.LevelError))

	SetLevel("bogus")
	require.True(t, L.Enabled(context.Background(), slog.LevelInfo))
	require.False(t, L.Enabled(context.Background(), slog.LevelDebug))
}

func TestSetOutput_File(t *testing.T) {
	prev := L
	t.Cleanup(func() { L = prev })

	closer := SetOutput(filepath.Join(t.TempDir(), "gateway.log"))
	L.Info("hello")
	require.NoError(t, closer.Close())
}

func TestSetOutput_Empty(t *testing.T) {
	prev := L
	closer := SetOutput("")
	require.Same(t, prev, L)
	require.NoError(t, closer.Close())
}
