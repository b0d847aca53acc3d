package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	auth "github.com/talentoenlinea/talent-auth"
	"github.com/talentoenlinea/talent-auth/config"
)

var configFile string

// NewRootCmd creates the root command for the talent-auth CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "talent-auth",
		Short: "Talento En Línea authentication service",
		Long: `talent-auth serves the password reset code endpoints and
manages the subject, profile and reset code tables.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	config.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewIssueCodeCmd())
	cmd.AddCommand(NewVerifyCodeCmd())
	cmd.AddCommand(NewSubjectCmd())

	return cmd
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setupLogger(cfg config.Config, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	level := slog.LevelInfo
	if cfg.Log.Debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Log.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With("service", "talent-auth", "version", version)
}

// openStore opens the database and makes sure the schema exists.
func openStore(ctx context.Context, cfg config.Config) (*bun.DB, auth.RepositoryManager, error) {
	db, err := auth.OpenSQLite(cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}

	repo := auth.NewRepositoryManager(db)
	if err := repo.Validate(); err != nil {
		db.Close()
		return nil, nil, err
	}

	if err := repo.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}

	return db, repo, nil
}
