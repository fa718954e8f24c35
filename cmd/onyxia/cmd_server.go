package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/onyxia-store/onyxia/config"
	"github.com/onyxia-store/onyxia/internal/kernel"
	"github.com/onyxia-store/onyxia/internal/server"
	"github.com/onyxia-store/onyxia/pkg/auth"
	"github.com/onyxia-store/onyxia/pkg/cache"
	"github.com/onyxia-store/onyxia/pkg/database"
	"github.com/onyxia-store/onyxia/pkg/storage"
)

// onyxia serve
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"run", "start"},
	Short:   "Start the HTTP and gRPC servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetString("port"); port != "" {
			config.Set("APP_PORT", port)
		}
		return server.Start(cmd.Context())
	},
}

// offlineKernel wires a kernel on an in-memory database. The listing
// commands only need the wiring, not the real backends.
func offlineKernel() (*kernel.Kernel, func(), error) {
	if err := config.Load(); err != nil {
		return nil, nil, err
	}
	db, err := database.Open("sqlite", ":memory:")
	if err != nil {
		return nil, nil, err
	}
	k, err := kernel.NewHTTPKernel(kernel.Options{
		DB:        db,
		Cache:     cache.NewMemory(),
		Issuer:    auth.DefaultIssuer(),
		Disk:      storage.NewLocalFromConfig(),
		StaticDir: config.StaticDir(),
		IndexFile: config.IndexFile(),
	})
	if err != nil {
		_ = database.Close(db)
		return nil, nil, err
	}
	return k, func() {
		_ = k.Shutdown(context.Background())
		_ = database.Close(db)
	}, nil
}

// onyxia route:list
var routeListCmd = &cobra.Command{
	Use:   "route:list",
	Short: "List all registered routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		k, done, err := offlineKernel()
		if err != nil {
			return err
		}
		defer done()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "METHOD\tPATH\tNAME")
		fmt.Fprintln(w, "------\t----\t----")
		for _, ri := range k.Router().Routes() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", ri.Method, ri.Path, ri.Name)
		}
		return w.Flush()
	},
}

// onyxia schedule:list
var scheduleListCmd = &cobra.Command{
	Use:   "schedule:list",
	Short: "List the housekeeping tasks the server runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		k, done, err := offlineKernel()
		if err != nil {
			return err
		}
		defer done()

		for _, line := range k.Schedule() {
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "HTTP port (overrides APP_PORT)")
}
