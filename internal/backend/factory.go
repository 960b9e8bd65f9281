package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"golang.org/x/oauth2"

	"kakeibo/internal/amqp"
	"kakeibo/internal/sheets"
	gsheet "kakeibo/internal/sheets/google"
	"kakeibo/internal/sheets/memory"
	"kakeibo/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
	clock  clockwork.Clock
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger, clock clockwork.Clock) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &DefaultFactory{logger: logger, clock: clock}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	result := &BackendResult{Checks: map[string]func(context.Context) error{}}
	switch config.Type {
	case GoogleBackend:
		result.Workbooks = googleSource{pageSize: config.PageSize}
		f.logger.Info("Initialized Google backend", "page_size", config.PageSize)
	case MemoryBackend:
		result.Workbooks = sharedSource{workbook: memory.NewDemo()}
		f.logger.Info("Initialized memory backend")
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	var cleanups []CleanupFunc

	if config.SQLiteDBPath != "" {
		repo, err := storage.NewJournalRepository(config.SQLiteDBPath, f.clock)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize entry journal: %w", err)
		}
		result.Recorder = repo
		result.Checks["journal"] = repo.Ping
		cleanups = append(cleanups, repo.Close)
		f.logger.Info("Initialized entry journal", "db_path", config.SQLiteDBPath)
	}

	// The event bus is optional: a broker that cannot be reached does not stop the app.
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(ctx, config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without entry events", "error", err)
		} else {
			result.Publisher = client
			result.Checks["amqp"] = func(context.Context) error {
				if !client.IsConnected() {
					return amqp.ErrNotConnected
				}
				return nil
			}
			cleanups = append(cleanups, client.Close)
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	result.Cleanup = func() error {
		var errs []error
		for i := len(cleanups) - 1; i >= 0; i-- {
			errs = append(errs, cleanups[i]())
		}
		return errors.Join(errs...)
	}
	return result, nil
}

// googleSource builds a Drive and Sheets client per access token.
type googleSource struct {
	pageSize int
}

func (s googleSource) Workbook(ctx context.Context, token *oauth2.Token) (sheets.Workbook, error) {
	if token == nil {
		return nil, errors.New("google workbook requires an access token")
	}
	return gsheet.New(ctx, token, gsheet.WithPageSize(s.pageSize))
}

// sharedSource returns the same workbook to every identity.
type sharedSource struct {
	workbook sheets.Workbook
}

func (s sharedSource) Workbook(context.Context, *oauth2.Token) (sheets.Workbook, error) {
	return s.workbook, nil
}

// NewSharedSource wraps a single workbook, used for the memory backend and tests.
func NewSharedSource(w sheets.Workbook) WorkbookSource {
	return sharedSource{workbook: w}
}
