package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"

	"careplus/internal/config"
	"careplus/internal/database"
	"careplus/internal/database/migrations"
	"careplus/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the CarePlus database schema",
	}

	rootCmd.AddCommand(upCmd())
	rootCmd.AddCommand(downCmd())
	rootCmd.AddCommand(toCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(resetSchemaCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type env struct {
	cfg *config.Config
	log *logger.Logger
	db  *bun.DB
}

// withDB loads configuration, connects through pgdriver and runs fn.
func withDB(fn func(ctx context.Context, e env) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		_ = godotenv.Load()
		cfg := config.Load()
		log := logger.NewWriterLogger(os.Stdout)
		log.SetLevel(cfg.LogLevel)

		ctx := cmd.Context()
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN())))
		defer sqldb.Close()

		if err := sqldb.PingContext(ctx); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		db := bun.NewDB(sqldb, pgdialect.New())

		if err := fn(ctx, env{cfg: cfg, log: log, db: db}); err != nil {
			log.Error("MIGRATE", err.Error())
			return err
		}
		log.Info("MIGRATE", "Done")
		return nil
	}
}

func runner(e env, cmd *cobra.Command) *migrations.Runner {
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = e.cfg.Migrations.Dir
	}
	return migrations.NewRunner(e.db, migrations.Options{Dir: dir}, e.log)
}

func upCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending SQL migrations",
	}
	cmd.RunE = withDB(func(ctx context.Context, e env) error {
		r := runner(e, cmd)
		defer r.Close()
		return r.Run()
	})
	cmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	return cmd
}

func downCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back every SQL migration",
	}
	cmd.RunE = withDB(func(ctx context.Context, e env) error {
		r := runner(e, cmd)
		defer r.Close()
		return r.MigrateDown()
	})
	cmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	return cmd
}

func toCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "to <version>",
		Short: "Move the schema to a specific version",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = func(c *cobra.Command, args []string) error {
		version, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		return withDB(func(ctx context.Context, e env) error {
			r := runner(e, cmd)
			defer r.Close()
			return r.MigrateTo(uint(version))
		})(c, args)
	}
	cmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert the admin account and a demo doctor",
	}
	cmd.RunE = withDB(func(ctx context.Context, e env) error {
		admin, _ := cmd.Flags().GetString("admin")
		e.log.Info("MIGRATE", fmt.Sprintf("Seeding admin %s", admin))
		return database.Seed(ctx, e.db, admin)
	})
	cmd.Flags().String("admin", "admin@careplus.local", "Email of the seeded admin account")
	return cmd
}

func resetSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-schema",
		Short: "Drop and recreate every table from the models (development only)",
		RunE: withDB(func(ctx context.Context, e env) error {
			e.log.Warn("MIGRATE", "Dropping every table")
			if err := database.DropSchema(ctx, e.db); err != nil {
				return err
			}
			return database.CreateSchema(ctx, e.db)
		}),
	}
}
