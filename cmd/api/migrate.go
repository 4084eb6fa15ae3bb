package main

import (
	"github.com/rs-labo46/ec-payments/internal/infra/db"

	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			if err := db.Migrate(a.db); err != nil {
				return err
			}
			a.logger.Infoj(log.JSON{"msg": "migrated", "tables": len(db.Models())})
			return nil
		},
	}
}
