package main

import (
	"fmt"

	"gridflow/internal/config"
	"gridflow/internal/database"
	"gridflow/internal/logging"
	"gridflow/internal/migrations"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the seed_files schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, closeLog, err := logging.New(cfg)
			if err != nil {
				return err
			}
			defer closeLog()

			db, err := database.Connect(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer db.Close()

			if down {
				if err := migrations.Rollback(cmd.Context(), db); err != nil {
					return err
				}
				logger.Info("已回滚最近一次迁移")
				return nil
			}
			if err := migrations.Apply(cmd.Context(), db); err != nil {
				return err
			}
			logger.Info("迁移已全部应用")
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll back the most recent migration")
	return cmd
}
