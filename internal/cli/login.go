package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taxlien-works/harvest/internal/auth"
	"github.com/taxlien-works/harvest/internal/navigator"
	"github.com/taxlien-works/harvest/internal/ui"
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the records portal and save the session",
	Long: `Performs the portal's form login with the configured credentials and stores
the resulting cookies in your OS keyring. Subsequent jobs reuse the stored
session until the portal drops it.

Credentials come from GSCCCA_USERNAME and GSCCCA_PASSWORD.`,
	Example: `  # Log in and store under the default session name
  $ harvest login

  # Store under a custom name
  $ harvest login --session=county-work`,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	a := GetApp()
	cfg := a.Config

	browser, err := navigator.NewBrowser(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("browser launch: %w", err)
	}
	defer browser.Close()

	session, err := auth.Login(browser.Ctx(), auth.LoginOptions{
		LoginURL:    cfg.LoginURL,
		LandingURL:  cfg.NameSearchURL(),
		Username:    cfg.Username,
		Password:    cfg.Password,
		SessionName: cfg.SessionName,
	})
	if err != nil {
		return err
	}

	fmt.Printf("\n%s session %q saved with %d cookies\n",
		ui.Success("Logged in:"), session.Name, len(session.Cookies))
	return nil
}
