package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/taxlien-works/harvest/internal/auth"
	"github.com/taxlien-works/harvest/internal/ui"
)

// sessionsCmd represents the sessions command
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage saved portal sessions",
	Long: `List and delete saved portal sessions.

Sessions are stored securely in your OS keyring and contain the cookies
needed to reach authenticated portal pages without logging in again.`,
	Example: `  # List all saved sessions
  $ harvest sessions list

  # Delete a session
  $ harvest sessions delete county-work`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all saved sessions",
	RunE:  runSessionsList,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-name>",
	Short: "Delete a saved session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	sessions, err := auth.ListSessions()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("\nNo saved sessions found.")
		fmt.Println("\nCreate one with:")
		fmt.Println("  harvest login")
		fmt.Println()
		return nil
	}

	fmt.Printf("\n%s (%d)\n\n", ui.Bold("Saved sessions"), len(sessions))
	for i, name := range sessions {
		fmt.Printf("%d. %s\n", i+1, name)

		session, err := auth.LoadSession(name)
		if err != nil {
			fmt.Printf("   %s %v\n", ui.Error("error loading:"), err)
			continue
		}
		fmt.Printf("   Cookies: %d\n", len(session.Cookies))
		fmt.Printf("   Created: %s\n", session.CreatedAt.Format(time.RFC1123))
		if !session.ExpiresAt.IsZero() {
			if time.Now().After(session.ExpiresAt) {
				fmt.Printf("   Expired: %s\n", ui.Warn(session.ExpiresAt.Format(time.RFC1123)))
			} else {
				fmt.Printf("   Expires: %s\n", session.ExpiresAt.Format(time.RFC1123))
			}
		}
		fmt.Println()
	}
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := auth.DeleteSessionWithManifest(name); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	fmt.Printf("%s session %q deleted\n", ui.Success("Done:"), name)
	return nil
}
