package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"kakeibo/internal/config"
	gsheet "kakeibo/internal/sheets/google"
	"kakeibo/internal/sheets/memory"
)

func TestFromAppConfig(t *testing.T) {
	cfg := &config.Config{
		DataBackend:      "google",
		DocumentPageSize: 20,
		SQLiteDBPath:     "data/journal.db",
		AMQPURL:          "amqp://localhost",
		AMQPExchange:     "kakeibo",
		AMQPQueue:        "entry_appended",
	}
	got, err := FromAppConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, GoogleBackend, got.Type)
	assert.Equal(t, 20, got.PageSize)
	assert.Equal(t, "entry_appended", got.AMQPQueue)

	_, err = FromAppConfig(&config.Config{DataBackend: "sqlite"})
	assert.Error(t, err)
	_, err = FromAppConfig(nil)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{Type: MemoryBackend}.Validate())
	assert.Error(t, Config{Type: "sheets"}.Validate())
	assert.Error(t, Config{Type: GoogleBackend}.Validate())
	assert.Error(t, Config{Type: MemoryBackend, AMQPURL: "amqp://x"}.Validate())
	assert.Equal(t, []string{"google", "memory"}, GetBackendTypeStrings())
}

func TestCreateMemoryBackend(t *testing.T) {
	f := NewFactory(nil, clockwork.NewFakeClock())
	res, err := f.CreateBackend(context.Background(), Config{Type: MemoryBackend})
	require.NoError(t, err)
	t.Cleanup(func() { res.Cleanup() })

	assert.Nil(t, res.Recorder)
	assert.Nil(t, res.Publisher)

	a, err := res.Workbooks.Workbook(context.Background(), nil)
	require.NoError(t, err)
	b, err := res.Workbooks.Workbook(context.Background(), &oauth2.Token{AccessToken: "x"})
	require.NoError(t, err)
	assert.Same(t, a, b, "every identity shares the demo workbook")
	assert.IsType(t, &memory.Workbook{}, a)

	docs, err := a.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, docs)
}

func TestCreateBackendWithJournal(t *testing.T) {
	f := NewFactory(nil, clockwork.NewFakeClock())
	res, err := f.CreateBackend(context.Background(), Config{
		Type:         MemoryBackend,
		SQLiteDBPath: filepath.Join(t.TempDir(), "journal.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { res.Cleanup() })

	require.NotNil(t, res.Recorder)
	require.Contains(t, res.Checks, "journal")
	assert.NoError(t, res.Checks["journal"](context.Background()))
}

func TestGoogleSourceBuildsClientPerToken(t *testing.T) {
	f := NewFactory(nil, nil)
	res, err := f.CreateBackend(context.Background(), Config{Type: GoogleBackend, PageSize: 20})
	require.NoError(t, err)

	_, err = res.Workbooks.Workbook(context.Background(), nil)
	assert.Error(t, err)

	w, err := res.Workbooks.Workbook(context.Background(), &oauth2.Token{AccessToken: "token"})
	require.NoError(t, err)
	assert.IsType(t, &gsheet.Client{}, w)
}
