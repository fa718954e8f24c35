package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/onyxia-store/onyxia/database/migrations"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "onyxia",
	Short:         "Onyxia storefront server and admin tooling",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(routeListCmd)
	rootCmd.AddCommand(scheduleListCmd)

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(migrateRollbackCmd)
	rootCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(seedCmd)

	rootCmd.AddCommand(adminHashCmd)
	rootCmd.AddCommand(adminLoginCmd)
	rootCmd.AddCommand(adminLogoutCmd)
	rootCmd.AddCommand(ordersListCmd)
	rootCmd.AddCommand(ordersStatusCmd)
	rootCmd.AddCommand(productsCreateCmd)
	rootCmd.AddCommand(productsUpdateCmd)
	rootCmd.AddCommand(productsDeleteCmd)
}
