package backend

import (
	"context"

	"golang.org/x/oauth2"

	"kakeibo/internal/services"
	"kakeibo/internal/sheets"
)

// WorkbookSource hands out the workbook a signed-in identity works with.
type WorkbookSource interface {
	Workbook(ctx context.Context, token *oauth2.Token) (sheets.Workbook, error)
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains everything a process needs to read and write ledgers.
// Recorder and Publisher are nil when their infrastructure is not configured.
type BackendResult struct {
	Workbooks WorkbookSource
	Recorder  services.EntryRecorder
	Publisher services.EventPublisher
	Cleanup   CleanupFunc

	// Health checks for /readyz, keyed by dependency name.
	Checks map[string]func(ctx context.Context) error
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Google Drive listing
	PageSize int

	// Journal and event bus, both optional
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	GoogleBackend BackendType = "google"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case GoogleBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
