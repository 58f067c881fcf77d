package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"spendy/internal/app"
	"spendy/internal/config"
	"spendy/internal/db"
	"spendy/internal/fx"
	"spendy/internal/logger"
	"spendy/internal/migrate"
	"spendy/internal/services"
)

// Ingester is the part of the ingestion service the CLI drives.
type Ingester interface {
	CreateFromText(ctx context.Context, in services.TextInput) (services.IngestResult, error)
	Reprocess(ctx context.Context, sourceEventID int64, actorID string) (services.IngestResult, error)
}

// Env supplies the collaborators a command needs once config is loaded.
type Env struct {
	Rates    func(cfg config.Config) fx.RateLookup
	Ingester func(ctx context.Context, cfg config.Config, log zerolog.Logger) (Ingester, func() error, error)
	Migrate  func(ctx context.Context, cfg config.Config, dir string) ([]string, error)
}

// DefaultEnv connects to the configured database and rate provider.
func DefaultEnv() Env {
	return Env{
		Rates: func(cfg config.Config) fx.RateLookup {
			return app.NewRates(cfg)
		},
		Ingester: func(ctx context.Context, cfg config.Config, log zerolog.Logger) (Ingester, func() error, error) {
			deps, err := app.New(ctx, cfg, log)
			if err != nil {
				return nil, nil, err
			}
			return deps.Ingestion, deps.Close, nil
		},
		Migrate: func(ctx context.Context, cfg config.Config, dir string) ([]string, error) {
			database, err := db.Connect(cfg.DatabaseURL)
			if err != nil {
				return nil, fmt.Errorf("connect database: %w", err)
			}
			defer database.Close()
			return migrate.Up(ctx, database, dir)
		},
	}
}

const cliActor = "spendyctl"

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand(env Env) *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "spendyctl",
		Short: "Parse and ingest bank notifications",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file layered over the environment")

	load := func(cmd *cobra.Command) (config.Config, zerolog.Logger, error) {
		cfg, err := config.LoadFile(configPath)
		if err != nil {
			return cfg, zerolog.Nop(), err
		}
		log := logger.NewWithWriter(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.RFC3339}).
			Level(logger.ParseLevel(cfg.LogLevel))
		log = logger.WithFields(log, map[string]any{"command": cmd.Name()})
		return cfg, log, nil
	}

	rootCmd.AddCommand(
		newParseCommand(),
		newRateCommand(env, load),
		newIngestCommand(env, load),
		newReprocessCommand(env, load),
		newMigrateCommand(env, load),
	)

	return rootCmd
}

type loader func(cmd *cobra.Command) (config.Config, zerolog.Logger, error)

// readText joins args, or reads stdin when there are none.
func readText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	content, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(content), nil
}

func printJSON(cmd *cobra.Command, value any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
