package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subtrack/internal/config"
	"subtrack/internal/core"
	sheetsmem "subtrack/internal/sheets/memory"
	"subtrack/internal/storage"
	"subtrack/internal/storage/memory"
)

func TestCreateMemoryBackendSeedsFromDir(t *testing.T) {
	dir := t.TempDir()
	seed := `[{"id":"netflix","userId":"u1","name":"Netflix","amount":1490,"cycle":"monthly","category":"entertainment","nextPayment":"2024-01-31"}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, memory.SeedFile), []byte(seed), 0o644))

	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend, SeedDir: dir})
	require.NoError(t, err)
	assert.Nil(t, res.Cleanup)

	subs, err := res.Store.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "Netflix", subs[0].Name)
}

func TestCreateSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "subtrack.db")

	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
	require.NoError(t, err)
	require.NotNil(t, res.Cleanup)
	t.Cleanup(func() { _ = res.Cleanup() })

	_, ok := res.Store.(*storage.SQLiteRepository)
	assert.True(t, ok)
	require.NoError(t, res.Store.Ping(context.Background()))

	created, err := res.Store.Create(context.Background(), core.Subscription{
		UserID: "u1", Name: "Spotify", Amount: 980, Cycle: core.Monthly,
		Category: "music", NextPayment: "2024-02-10",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
}

func TestCreateBackendRejectsUnknownType(t *testing.T) {
	_, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: "sheets"})
	assert.Error(t, err)
}

func TestCreateScheduleWriter(t *testing.T) {
	f := NewFactory(nil)

	res, err := f.CreateScheduleWriter(context.Background(), Config{Sheets: MemorySheets})
	require.NoError(t, err)
	_, ok := res.Writer.(*sheetsmem.Writer)
	assert.True(t, ok)

	_, err = f.CreateScheduleWriter(context.Background(), Config{Sheets: "excel"})
	assert.Error(t, err)

	_, err = f.CreateScheduleWriter(context.Background(), Config{Sheets: GoogleSheets})
	assert.Error(t, err, "spreadsheet id is required")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"memory", Config{Type: MemoryBackend}, false},
		{"unknown", Config{Type: "postgres"}, true},
		{"google without id", Config{Type: MemoryBackend, Sheets: GoogleSheets}, true},
		{"google", Config{Type: MemoryBackend, Sheets: GoogleSheets, SpreadsheetID: "abc"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:         "memory",
		SeedDir:             "./seed",
		SheetsBackend:       "google",
		GoogleSpreadsheetID: "sheet-1",
		SheetTabPrefix:      "Plan ",
	})
	require.NoError(t, err)
	assert.Equal(t, MemoryBackend, cfg.Type)
	assert.Equal(t, "./seed", cfg.SeedDir)
	assert.Equal(t, GoogleSheets, cfg.Sheets)
	assert.Equal(t, "sheet-1", cfg.SpreadsheetID)
	assert.Equal(t, "Plan ", cfg.TabPrefix)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.Error(t, err)

	assert.Equal(t, []string{"sqlite", "memory"}, GetBackendTypeStrings())
}
