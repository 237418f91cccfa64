package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// Config holds application configuration values
type Config struct {
	// Logging
	LogLevel string
	JSONLog  bool

	// Target site
	BaseURL        string
	LoginURL       string
	NameSearchPath string
	Username       string
	Password       string
	SessionName    string

	// Navigation
	Politeness       time.Duration // minimum delay between requests
	NavTimeout       time.Duration // per-navigation timeout
	RetryMaxAttempts int
	PageBudget       int

	// Browser
	BrowserHeadless bool
	ChromePath      string
	UserAgent       string
	Proxy           string

	// OCR
	TesseractPath string
	OCRTimeout    time.Duration

	// Output
	ArtifactDir      string
	ExportDir        string
	ProgressInterval time.Duration
}

// NameSearchURL returns the absolute URL of the name-search form.
func (c *Config) NameSearchURL() string {
	return c.BaseURL + c.NameSearchPath
}

// Load builds a Config by combining defaults, environment variables, and CLI
// flags. Caller should pass the root *cobra.Command so flags can be read.
func Load(cmd *cobra.Command) (*Config, error) {
	cfg := &Config{
		LogLevel:         DefaultLogLevel,
		JSONLog:          DefaultJSONLog,
		BaseURL:          DefaultBaseURL,
		LoginURL:         DefaultLoginURL,
		NameSearchPath:   DefaultNameSearchPath,
		SessionName:      DefaultSessionName,
		Politeness:       DefaultPoliteness,
		NavTimeout:       DefaultNavTimeout,
		RetryMaxAttempts: DefaultRetryMaxAttempts,
		PageBudget:       DefaultPageBudget,
		BrowserHeadless:  DefaultBrowserHeadless,
		UserAgent:        DefaultUserAgent,
		TesseractPath:    DefaultTesseractPath,
		OCRTimeout:       DefaultOCRTimeout,
		ArtifactDir:      DefaultArtifactDir,
		ExportDir:        DefaultExportDir,
		ProgressInterval: DefaultProgressInterval,
	}

	// Environment overrides
	if v := os.Getenv("GSCCCA_USERNAME"); v != "" {
		cfg.Username = v
	}
	if v := os.Getenv("GSCCCA_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("HARVEST_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("HARVEST_LOGIN_URL"); v != "" {
		cfg.LoginURL = v
	}
	if v := os.Getenv("HARVEST_TESSERACT"); v != "" {
		cfg.TesseractPath = v
	}
	if v := os.Getenv("HARVEST_CHROME_PATH"); v != "" {
		cfg.ChromePath = v
	}
	if v := os.Getenv("HARVEST_USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("HARVEST_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("HARVEST_ARTIFACT_DIR"); v != "" {
		cfg.ArtifactDir = v
	}
	if v := os.Getenv("HARVEST_EXPORT_DIR"); v != "" {
		cfg.ExportDir = v
	}
	if v := os.Getenv("HARVEST_POLITENESS"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Politeness = d
		}
	}

	// CLI flag overrides
	if cmd != nil {
		readFlags(cmd, cfg)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func readFlags(cmd *cobra.Command, cfg *Config) {
	if f := cmd.Flags().Lookup("base-url"); f != nil && f.Changed {
		cfg.BaseURL = f.Value.String()
	}
	if f := cmd.Flags().Lookup("politeness"); f != nil && f.Changed {
		if d, err := time.ParseDuration(f.Value.String()); err == nil {
			cfg.Politeness = d
		}
	}
	if f := cmd.Flags().Lookup("timeout"); f != nil && f.Changed {
		if d, err := time.ParseDuration(f.Value.String()); err == nil {
			cfg.NavTimeout = d
		}
	}
	if f := cmd.Flags().Lookup("retries"); f != nil && f.Changed {
		var n int
		if _, err := fmt.Sscanf(f.Value.String(), "%d", &n); err == nil {
			cfg.RetryMaxAttempts = n
		}
	}
	if f := cmd.Flags().Lookup("page-budget"); f != nil && f.Changed {
		var n int
		if _, err := fmt.Sscanf(f.Value.String(), "%d", &n); err == nil {
			cfg.PageBudget = n
		}
	}
	if f := cmd.Flags().Lookup("tesseract"); f != nil && f.Changed {
		cfg.TesseractPath = f.Value.String()
	}
	if f := cmd.Flags().Lookup("artifact-dir"); f != nil && f.Changed {
		cfg.ArtifactDir = f.Value.String()
	}
	if f := cmd.Flags().Lookup("export-dir"); f != nil && f.Changed {
		cfg.ExportDir = f.Value.String()
	}
	if f := cmd.Flags().Lookup("session"); f != nil && f.Changed {
		cfg.SessionName = f.Value.String()
	}
	if f := cmd.Flags().Lookup("headful"); f != nil && f.Value.String() == "true" {
		cfg.BrowserHeadless = false
	}
	if f := cmd.Flags().Lookup("proxy"); f != nil && f.Changed {
		cfg.Proxy = f.Value.String()
	}
	if f := cmd.Flags().Lookup("user-agent"); f != nil && f.Changed {
		cfg.UserAgent = f.Value.String()
	}
	if f := cmd.Flags().Lookup("json"); f != nil && f.Value.String() == "true" {
		cfg.JSONLog = true
	}
	if f := cmd.Flags().Lookup("verbose"); f != nil && f.Value.String() == "true" {
		cfg.LogLevel = "debug"
	}
	if f := cmd.Flags().Lookup("quiet"); f != nil && f.Value.String() == "true" {
		cfg.LogLevel = "error"
	}
}
