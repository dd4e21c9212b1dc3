package main

import (
	"github.com/microblog-api/internal/config"
	"github.com/microblog-api/pkg/logger"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create indexes (mongo) or tables (postgres)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Database.Driver == config.DriverMemory {
			logger.Get().Info("memory driver has nothing to migrate")
			return nil
		}

		st, err := openStore(cmd.Context(), cfg, true)
		if err != nil {
			return err
		}
		defer closeStore(cmd.Context(), st)

		logger.Get().WithField("driver", cfg.Database.Driver).Info("migration complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
