package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kakeibo/internal/config"
)

func TestLoadProviderMemoryBackend(t *testing.T) {
	cfg := &config.Config{DataBackend: config.BackendMemory, BaseURL: "http://localhost:8081", AuthReadyTimeout: time.Second}
	ready := NewReady()
	l := LoadProvider(context.Background(), cfg, ready)

	p, err := l.Provider(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &DevProvider{}, p)
	assert.NoError(t, l.Ready().Err())
}

func TestLoadProviderGoogleFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.json")
	require.NoError(t, os.WriteFile(path, []byte(testClientJSON), 0o600))
	cfg := &config.Config{
		DataBackend:           config.BackendGoogle,
		BaseURL:               "http://localhost:8081",
		GoogleOAuthClientFile: path,
		GoogleOAuthScopes:     config.DefaultScopes,
		AuthReadyTimeout:      time.Second,
	}

	p, err := LoadProvider(context.Background(), cfg, NewReady()).Provider(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &GoogleProvider{}, p)
}

func TestLoadProviderFailureIsNotReady(t *testing.T) {
	cfg := &config.Config{DataBackend: config.BackendGoogle, BaseURL: "http://localhost:8081", AuthReadyTimeout: time.Second}
	l := LoadProvider(context.Background(), cfg, NewReady())

	_, err := l.Provider(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
	assert.ErrorContains(t, err, "missing oauth client")
}

func TestReadClientJSONPrefersInline(t *testing.T) {
	b, err := ReadClientJSON(&config.Config{GoogleOAuthClientJSON: "{}", GoogleOAuthClientFile: "/nope"})
	require.NoError(t, err)
	assert.Equal(t, "{}", string(b))

	_, err = ReadClientJSON(&config.Config{GoogleOAuthClientFile: "/nonexistent/client.json"})
	assert.ErrorContains(t, err, "read client file")
}
