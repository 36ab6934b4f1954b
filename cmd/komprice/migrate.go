package main

import (
	"github.com/spf13/cobra"

	"github.com/LouYuanbo1/komprice/internal/infra/persistence/postgres"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			db, err := a.database(cmd.Context())
			if err != nil {
				return err
			}
			return postgres.Migrate(db.DB, a.log)
		},
	}
}
