package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jopa/salestracker/internal/config"
	"github.com/jopa/salestracker/internal/repository/postgres"
	"github.com/jopa/salestracker/internal/seed"
	"github.com/jopa/salestracker/pkg/logger"
)

func newSeedCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:          "seed",
		Short:        "Wipe the database and load demo users, products, sales and a report",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			if cfg.IsProduction() && !force {
				return errors.New("refusing to wipe a production database without --force")
			}

			log := logger.Must(logger.New(cfg.Server.LogLevel))
			defer func() { _ = log.Sync() }()

			db, err := postgres.Open(cmd.Context(), cfg.Database, log.Named("repo.postgres"))
			if err != nil {
				return err
			}
			if err := postgres.Migrate(db); err != nil {
				return err
			}

			res, err := seed.Run(cmd.Context(), db, time.Now())
			if err != nil {
				return err
			}

			log.Info("database seeded",
				zap.Uint("admin_id", res.Admin.ID),
				zap.Int("products", len(res.Products)),
				zap.Int("sales", len(res.Sales)))
			if res.Admin.ID != cfg.Reporting.SystemUserID {
				log.Warn("REPORT_SYSTEM_USER_ID does not match the seeded admin",
					zap.Uint("configured", cfg.Reporting.SystemUserID),
					zap.Uint("admin_id", res.Admin.ID))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "seeded: %s / %s (password %q)\n",
				res.Admin.Email, res.RecordKeeper.Email, seed.DemoPassword)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "allow wiping when APP_ENV=production")
	return cmd
}
