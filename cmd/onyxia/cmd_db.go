package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/onyxia-store/onyxia/config"
	"github.com/onyxia-store/onyxia/database/seeders"
	"github.com/onyxia-store/onyxia/pkg/database"
	"github.com/onyxia-store/onyxia/pkg/migration"
)

func bootDB() error {
	if err := config.Load(); err != nil {
		return err
	}
	return database.Connect()
}

// onyxia migrate
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run all pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		defer database.Close(database.DB)

		fmt.Println("Running migrations…")
		n, err := migration.New(database.DB, os.Stdout).Run()
		if err != nil {
			return err
		}
		if n > 0 {
			fmt.Printf("✅ Migrated %d\n", n)
		}
		return nil
	},
}

// onyxia migrate:rollback
var migrateRollbackCmd = &cobra.Command{
	Use:   "migrate:rollback",
	Short: "Rollback the last batch of migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		defer database.Close(database.DB)

		fmt.Println("Rolling back last batch…")
		_, err := migration.New(database.DB, os.Stdout).Rollback()
		return err
	},
}

// onyxia migrate:status
var migrateStatusCmd = &cobra.Command{
	Use:   "migrate:status",
	Short: "Show the status of each migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		defer database.Close(database.DB)

		rows, err := migration.New(database.DB, os.Stdout).Status()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "MIGRATION\tRAN\tBATCH")
		for _, s := range rows {
			ran, batch := "no", "-"
			if s.Ran {
				ran, batch = "yes", fmt.Sprint(s.Batch)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, ran, batch)
		}
		return w.Flush()
	},
}

// onyxia seed
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the demo catalogue into an empty database",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		defer database.Close(database.DB)

		fmt.Println("Running seeders…")
		return seeders.RunAll(database.DB, os.Stdout)
	},
}
