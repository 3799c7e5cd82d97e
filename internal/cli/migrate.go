package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"subtrack/internal/storage"
)

var migrateCmd = LeafCommand{
	Use:   "migrate",
	Short: "Apply pending SQLite schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return runMigrate(cmd, cfg.SQLiteDBPath)
	},
}.Build()

func runMigrate(cmd *cobra.Command, dbPath string) error {
	if dbPath == "" {
		return fmt.Errorf("no database path: set --db or SQLITE_DB_PATH")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}
	if err := storage.RunMigrations(dbPath); err != nil {
		return err
	}

	version, dirty, err := storage.MigrationVersion(dbPath)
	if err != nil {
		return err
	}
	status := Primary(fmt.Sprintf("schema version %d", version))
	if dirty {
		status += " " + Error("(dirty)")
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", dbPath, status)
	return nil
}
