package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/discussion/internal/platform/config"
	"github.com/example/discussion/internal/platform/db"
)

var printSchema bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the Postgres schema",
	Long: `Apply the discussion schema to DATABASE_URL.

Every statement is idempotent, so running it on each deploy is safe.

Examples:
  discussion migrate            # apply the schema
  discussion migrate --print    # print the DDL without connecting`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if printSchema {
			_, err := fmt.Fprint(cmd.OutOrStdout(), db.Schema())
			return err
		}
		return runMigrate(cmd.Context())
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&printSchema, "print", false, "Print the schema instead of applying it")
}

func runMigrate(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}
	fmt.Println("schema applied")
	return nil
}
