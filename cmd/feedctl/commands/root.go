// Package commands implements the feedctl subcommands.
package commands

import (
	"context"
	"os"

	"huddle/internal/cache"
	"huddle/internal/config"
	"huddle/internal/database"
	"huddle/internal/observability"
	"huddle/internal/printer"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// NewRootCmd builds the command tree. Each call returns fresh flag state.
func NewRootCmd() *cobra.Command {
	var env string

	root := &cobra.Command{
		Use:   "feedctl",
		Short: "Operate a Huddle deployment",
		Long: `feedctl runs maintenance tasks against the database and Redis a Huddle
server uses: schema migration, demo data, development tokens, like counter
repair and manual like toggles.

Configuration is read the same way the server reads it (.env, config.yml,
config.<env>.yml and the environment).`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if env != "" {
				return os.Setenv("APP_ENV", env)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVarP(&env, "env", "e", "", "Profile to load (overrides APP_ENV)")

	root.AddCommand(
		newMigrateCmd(),
		newSeedCmd(),
		newTokenCmd(),
		newReconcileCmd(),
		newToggleCmd(),
		newFlagsCmd(),
	)
	return root
}

// Execute runs feedctl with os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig loads configuration and routes logs to stderr so command output
// stays pipeable.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, printer.Error("Configuration is invalid", err,
			"check .env and config.<env>.yml", "pass --env to pick a profile")
	}
	observability.InitLogger(cfg.Env, os.Stderr)
	return cfg, nil
}

func openDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, printer.Error("Database is unreachable", err, "check the DB_* settings")
	}
	return db, nil
}

// openRedis connects when REDIS_URL is set. A failure is reported as a
// warning and yields a nil client.
func openRedis(ctx context.Context, cfg *config.Config) *redis.Client {
	if cfg.RedisURL == "" {
		return nil
	}
	rdb, err := cache.InitRedis(ctx, cfg.RedisURL)
	if err != nil {
		printer.Warning("redis unavailable, continuing without it: %v", err)
		return nil
	}
	return rdb
}
