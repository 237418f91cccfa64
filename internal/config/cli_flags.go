package config

import "github.com/spf13/cobra"

// RegisterFlags registers common CLI flags on the provided root command
func RegisterFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress all output except errors")
	cmd.PersistentFlags().Bool("json", false, "Emit JSON logs to stderr")
	cmd.PersistentFlags().String("base-url", DefaultBaseURL, "Records portal base URL")
	cmd.PersistentFlags().String("politeness", DefaultPoliteness.String(), "Minimum delay between requests")
	cmd.PersistentFlags().String("timeout", DefaultNavTimeout.String(), "Per-navigation timeout")
	cmd.PersistentFlags().Int("retries", DefaultRetryMaxAttempts, "Retry bound for transient failures")
	cmd.PersistentFlags().Int("page-budget", DefaultPageBudget, "Maximum result pages per job")
	cmd.PersistentFlags().String("tesseract", DefaultTesseractPath, "Path to the tesseract binary")
	cmd.PersistentFlags().String("artifact-dir", DefaultArtifactDir, "Directory for rendered document artifacts")
	cmd.PersistentFlags().String("export-dir", DefaultExportDir, "Directory for the tabular export")
	cmd.PersistentFlags().String("session", DefaultSessionName, "Name of the stored auth session")
	cmd.PersistentFlags().Bool("headful", false, "Run the browser with a visible window")
	cmd.PersistentFlags().String("proxy", "", "HTTP/SOCKS5 proxy for the browser")
	cmd.PersistentFlags().String("user-agent", "", "Custom user agent string")
}
