package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/taxlien-works/harvest/internal/app"
	"github.com/taxlien-works/harvest/internal/config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "harvest",
	Short:   "Extract tax-lien records from the Georgia records portal",
	Long:    `Harvest drives an authenticated browser session through the records portal, extracts lien records from structured pages or scanned images, and exports them with per-record PDF artifacts.`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	config.RegisterFlags(rootCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Lazily initialize the application before running commands (avoid starting app for -h/help)
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if GetApp() != nil {
			return nil
		}
		cfg, err := config.Load(rootCmd)
		if err != nil {
			return err
		}
		a, err := app.New(context.Background(), cfg)
		if err != nil {
			return err
		}
		SetApp(cmd, a)
		return nil
	}

	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if a := GetApp(); a != nil {
			a.Close()
			SetApp(cmd, nil)
		}
	}
}
