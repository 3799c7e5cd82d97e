package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"subtrack/internal/config"
	"subtrack/internal/core"
	"subtrack/internal/log"
	"subtrack/internal/ports"
)

// now is replaced in tests.
var now = time.Now

var rootCmd = &cobra.Command{
	Use:           "subtrack",
	Short:         "Inspect and export subscription payment schedules",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("backend", "", "store backend: sqlite or memory (default from DATA_BACKEND)")
	pf.String("db", "", "SQLite database path (default from SQLITE_DB_PATH)")
	pf.String("seed-dir", "", "seed directory for the memory backend (default from SEED_DIR)")
	pf.String("tz", "", "time zone deciding today's date (default from APP_TIMEZONE)")

	rootCmd.AddCommand(upcomingCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig reads the environment and applies the persistent flag
// overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	overrides := []struct {
		flag string
		dst  *string
	}{
		{"backend", &cfg.DataBackend},
		{"db", &cfg.SQLiteDBPath},
		{"seed-dir", &cfg.SeedDir},
		{"tz", &cfg.Timezone},
	}
	for _, o := range overrides {
		if v, _ := cmd.Flags().GetString(o.flag); v != "" {
			*o.dst = v
		}
	}
	return cfg, nil
}

// session is an opened store plus the calendar settings of one command run.
type session struct {
	cfg   *config.Config
	store ports.Store
	loc   *time.Location
	close func()
}

func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("time zone %q: %w", cfg.Timezone, err)
	}

	logger := log.New(log.Config{
		Level:     slog.LevelWarn,
		Component: log.ComponentCLI,
		Output:    cmd.ErrOrStderr(),
	})
	store, cleanup, err := OpenStore(commandContext(cmd), cfg, logger)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, store: store, loc: loc, close: cleanup}, nil
}

func (s *session) today() core.Date {
	return core.DateOf(now().In(s.loc))
}

func (s *session) subscriptions(cmd *cobra.Command, userID string) ([]core.Subscription, error) {
	subs, err := s.store.List(commandContext(cmd), userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func requireUser(cmd *cobra.Command) (string, error) {
	userID, _ := cmd.Flags().GetString("user")
	if userID == "" {
		return "", fmt.Errorf("--user is required")
	}
	return userID, nil
}

// warnSkipped prints subscriptions left out of a projection to stderr.
func warnSkipped(cmd *cobra.Command, errs []error) {
	for _, err := range errs {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), Warning("skipped: "+err.Error()))
	}
}
