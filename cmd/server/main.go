package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/projectthinkx/ds-sub001/internal/config"
	"github.com/projectthinkx/ds-sub001/internal/logger"
	"github.com/projectthinkx/ds-sub001/internal/store"
	"github.com/projectthinkx/ds-sub001/internal/store/memory"
	mongostore "github.com/projectthinkx/ds-sub001/internal/store/mongo"
	pgstore "github.com/projectthinkx/ds-sub001/internal/store/postgres"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg config.Config

	root := &cobra.Command{
		Use:   "server",
		Short: "Clinic purchase invoices and supplier payments",
		Long: `Runs the purchase invoice and supplier payment API.

Without a subcommand the HTTP server starts. The store is chosen from the
environment: DATABASE_URL selects postgres, MONGO_URI selects mongo, and
neither runs on seeded in-memory data.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg = config.Load()
			if err := logger.Setup(cfg.LoggerConfig()); err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP API and the background worker",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context(), cfg)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create the tables or indexes of the configured store",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runMigrate(cmd.Context(), cfg)
			},
		},
		newTotalsCmd(),
		newAllocateCmd(),
	)
	return root
}

// durableStore is a store that outlives the process.
type durableStore interface {
	store.Repository
	Migrate(ctx context.Context) error
	Close() error
}

// openStore returns nil with no error when no durable store is configured.
func openStore(ctx context.Context, cfg config.Config) (durableStore, string, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	switch {
	case cfg.DatabaseURL != "":
		pg, err := pgstore.New(connectCtx, cfg.DatabaseURL)
		if err != nil {
			return nil, "postgres", err
		}
		return pg, "postgres", nil
	case cfg.MongoURI != "":
		mg, err := mongostore.New(connectCtx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, "mongo", err
		}
		return mg, "mongo", nil
	}
	return nil, "memory", nil
}

func runMigrate(ctx context.Context, cfg config.Config) error {
	log := logger.WithComponent("migrate")

	db, kind, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%s unavailable: %w", kind, err)
	}
	if db == nil {
		return fmt.Errorf("set DATABASE_URL or MONGO_URI to migrate a store")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate %s: %w", kind, err)
	}
	log.Info().Str("store", kind).Msg("schema up to date")
	return nil
}

// openRepository falls back to seeded in-memory data only when no durable
// store is configured at all.
func openRepository(ctx context.Context, cfg config.Config) (store.Repository, []func() error, error) {
	log := logger.WithComponent("server")

	db, kind, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("%s unavailable (%v) and it is configured; refusing to start with in-memory fallback", kind, err)
	}
	if db == nil {
		log.Info().Str("store", kind).Msg("repository ready")
		return memory.NewSeeded(), nil, nil
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate %s: %w", kind, err)
	}
	log.Info().Str("store", kind).Msg("repository ready")
	return db, []func() error{db.Close}, nil
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if len(cfg.ManagerPIN) < 6 {
		return fmt.Errorf("MANAGER_PIN must be set and at least 6 digits")
	}
	if err := validatePINStrength(cfg.ManagerPIN); err != nil {
		return fmt.Errorf("MANAGER_PIN is too weak: %w", err)
	}
	return nil
}

// validatePINStrength rejects PINs that are all the same digit,
// sequential (ascending or descending), or from a known-weak list.
func validatePINStrength(pin string) error {
	known := map[string]bool{
		"123456": true, "654321": true, "000000": true, "111111": true,
		"222222": true, "333333": true, "444444": true, "555555": true,
		"666666": true, "777777": true, "888888": true, "999999": true,
		"121212": true, "112233": true, "123123": true,
	}
	if known[pin] {
		return fmt.Errorf("common PIN not allowed")
	}

	allSame := true
	for i := 1; i < len(pin); i++ {
		if pin[i] != pin[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("all-same-digit PIN not allowed")
	}

	ascending, descending := true, true
	for i := 1; i < len(pin); i++ {
		diff := int(pin[i]) - int(pin[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return fmt.Errorf("sequential PIN not allowed")
	}

	return nil
}
