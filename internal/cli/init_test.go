package cli

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kakeibo/internal/log"
)

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger := SetupLogger("debug", log.ComponentWorker)
	assert.Equal(t, log.ComponentWorker, logger.Component())
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))
}

func TestLoadEnvFileDoesNotOverrideEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("KAKEIBO_TEST_A=from-file\nKAKEIBO_TEST_B=from-file\n"), 0o600))
	t.Setenv("KAKEIBO_TEST_A", "from-env")
	t.Setenv("KAKEIBO_TEST_B", "")
	os.Unsetenv("KAKEIBO_TEST_B")

	LoadEnvFile(path)
	assert.Equal(t, "from-env", os.Getenv("KAKEIBO_TEST_A"))
	assert.Equal(t, "from-file", os.Getenv("KAKEIBO_TEST_B"))

	LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"))
}

func TestRunCleanupTimesOut(t *testing.T) {
	logger := log.New(log.Config{Output: os.Stderr})
	start := time.Now()
	runCleanup(logger, 20*time.Millisecond, func(ctx context.Context) {
		<-ctx.Done()
		time.Sleep(time.Second)
	})
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	called := false
	runCleanup(logger, time.Second, func(context.Context) { called = true })
	assert.True(t, called)
}
