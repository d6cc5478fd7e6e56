package main

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/sandeepkv93/todoflow/internal/config"
	"github.com/sandeepkv93/todoflow/internal/storage"
)

func migrateCmd(cfg func() config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	open := func() (*sql.DB, error) {
		return sql.Open("sqlite3", cfg().DBPath)
	}
	report := func(cmd *cobra.Command, verb string, versions []string) {
		if len(versions) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "nothing to do")
			return
		}
		for _, v := range versions {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, v)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, err := open()
				if err != nil {
					return err
				}
				defer db.Close()
				applied, err := storage.MigrateUpContext(cmd.Context(), db)
				report(cmd, "applied", applied)
				return err
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Revert every applied migration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, err := open()
				if err != nil {
					return err
				}
				defer db.Close()
				reverted, err := storage.MigrateDownContext(cmd.Context(), db)
				report(cmd, "reverted", reverted)
				return err
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show which migrations are applied",
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, err := open()
				if err != nil {
					return err
				}
				defer db.Close()
				list, err := storage.MigrationStatus(cmd.Context(), db)
				if err != nil {
					return err
				}
				for _, m := range list {
					state := "pending"
					if m.Applied {
						state = "applied"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", m.Version, state)
				}
				return nil
			},
		},
	)
	return cmd
}
