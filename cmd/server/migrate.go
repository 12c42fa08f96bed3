package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/votepay/backend/internal/database"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db := database.InitDatabase()
			defer db.Close()

			if err := database.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			log.Println("Schema is up to date")
			return nil
		},
	}
}
