package main

import (
	"github.com/Talha-Khalil/bet-you-can-t/internal/repository"
	"github.com/Talha-Khalil/bet-you-can-t/internal/service"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the demo users and a demo challenge",
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger.Info("🌱 Seeding database...")

		db, err := openDB(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		_, err = service.NewService(repository.NewRepository(db), logger).Seed(cmd.Context())
		return err
	},
}
