package commands

import (
	"huddle/internal/database"
	"huddle/internal/printer"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long: `Migrate creates or updates every table the server owns. The server
migrates on startup outside production; production deployments run this
command instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer database.Close(db)

			printer.Step("migrating %s database", db.Dialector.Name())
			if err := database.Migrate(db); err != nil {
				return printer.Error("Migration failed", err)
			}
			printer.Success("schema is up to date")
			return nil
		},
	}
}
