// Package cli is the command-line surface over the same services the HTTP
// server exposes.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/chunkenizer/internal/app"
	"github.com/markdave123-py/chunkenizer/internal/config"
)

// loadConfig is replaced in tests.
var loadConfig = config.LoadConfig

// application is built once per invocation by the root PersistentPreRunE
// unless one was installed beforehand, in which case it is left open.
var (
	application *app.App
	ownsApp     bool
)

var rootCmd = &cobra.Command{
	Use:   "chunkenizer",
	Short: "Ingest documents into a vector store and search them",
	Long: `chunkenizer extracts text from uploaded documents, splits it into
overlapping token windows, embeds each window and stores the vectors
alongside a metadata record. Search embeds a query and returns the
nearest chunks.`,
	SilenceUsage:      true,
	PersistentPreRunE: openApp,
	PersistentPostRun: func(cmd *cobra.Command, args []string) { closeApp() },
}

func openApp(cmd *cobra.Command, args []string) error {
	if application != nil {
		return nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.NewApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	application, ownsApp = a, true
	return nil
}

func closeApp() {
	if application != nil && ownsApp {
		application.Close()
		application, ownsApp = nil, false
	}
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	defer closeApp()
	return rootCmd.ExecuteContext(ctx)
}

func requireApp() (*app.App, error) {
	if application == nil {
		return nil, errors.New("application not initialised")
	}
	return application, nil
}
