package backend

import (
	"context"
	"fmt"
	"log/slog"

	"subtrack/internal/sheets/google"
	sheetsmem "subtrack/internal/sheets/memory"
	"subtrack/internal/storage"
	"subtrack/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if !config.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", config.Type)
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	if version, dirty, err := storage.MigrationVersion(config.SQLiteDBPath); err == nil {
		f.logger.Info("Initialized SQLite backend",
			"db_path", config.SQLiteDBPath,
			"schema_version", version,
			"dirty", dirty)
	} else {
		f.logger.Warn("Initialized SQLite backend, schema version unknown",
			"db_path", config.SQLiteDBPath, "error", err)
	}

	return &BackendResult{
		Store:   repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	var store *memory.Store
	if config.SeedDir != "" {
		store = memory.NewFromFiles(config.SeedDir)
	} else {
		store = memory.New()
	}

	f.logger.Info("Initialized memory backend", "seed_dir", config.SeedDir)

	return &BackendResult{
		Store:   store,
		Cleanup: nil, // No cleanup needed for memory backend
	}, nil
}

// CreateScheduleWriter implements Factory.CreateScheduleWriter
func (f *DefaultFactory) CreateScheduleWriter(ctx context.Context, config Config) (*WriterResult, error) {
	switch config.Sheets {
	case GoogleSheets:
		cli, err := google.New(ctx, config.SpreadsheetID, config.TabPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		f.logger.Info("Initialized Google Sheets export", "tab_prefix", config.TabPrefix)
		return &WriterResult{Writer: cli}, nil
	case MemorySheets, "":
		f.logger.Info("Initialized in-memory schedule export")
		return &WriterResult{Writer: sheetsmem.New()}, nil
	default:
		return nil, fmt.Errorf("unsupported sheets backend: %s", config.Sheets)
	}
}
