package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/agentrt/runtime/internal/config"
	"github.com/agentrt/runtime/internal/eventstore"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the SQLite event store's schema migrations and exit",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.EventStoreBackend != "sqlite" {
		return fmt.Errorf("agentrt migrate: event_store_backend is %q, not sqlite", cfg.EventStoreBackend)
	}

	dsn := filepath.Join(cfg.DataDir, "events.db")
	store, err := eventstore.OpenSQLiteStore(dsn)
	if err != nil {
		return fmt.Errorf("agentrt migrate: %w", err)
	}
	defer store.Close()

	fmt.Printf("agentrt migrate: %s is up to date\n", dsn)
	return nil
}
