package backend

import (
	"context"

	"subtrack/internal/ports"
	"subtrack/internal/sheets"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the store and an optional cleanup function
type BackendResult struct {
	Store   ports.Store
	Cleanup CleanupFunc
}

// WriterResult contains the schedule writer used for the spreadsheet export
type WriterResult struct {
	Writer  sheets.ScheduleWriter
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates the subscription store
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	// CreateScheduleWriter creates the spreadsheet export target
	CreateScheduleWriter(ctx context.Context, config Config) (*WriterResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Store type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory backend specific
	SeedDir string

	// Spreadsheet export
	Sheets        SheetsType
	SpreadsheetID string
	TabPrefix     string
}

// BackendType represents the type of store
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// SheetsType selects where exported schedules are written
type SheetsType string

const (
	GoogleSheets SheetsType = "google"
	MemorySheets SheetsType = "memory"
)

// IsValid returns true if the sheets type is valid
func (st SheetsType) IsValid() bool {
	return st == GoogleSheets || st == MemorySheets
}
