package cli

import (
	"github.com/spf13/cobra"

	"github.com/rpattn/patientlist/internal/config"
	"github.com/rpattn/patientlist/internal/db"
	"github.com/rpattn/patientlist/internal/logging"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "Apply the embedded schema migrations. --steps applies (or, when negative, rolls back) a fixed number of migrations.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := config.Load(rootOpts.ConfigDir)
			if err != nil {
				return err
			}
			logger := logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
			return db.RunMigrations(cfg.Database, steps, logger)
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 0, "number of migrations to apply; negative rolls back")

	return cmd
}
