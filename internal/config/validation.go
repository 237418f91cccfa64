package config

import "fmt"

func validate(c *Config) error {
	if c.BaseURL == "" {
		return fmt.Errorf("base url must not be empty")
	}
	if c.NavTimeout <= 0 {
		return fmt.Errorf("navigation timeout must be > 0")
	}
	if c.Politeness < 0 {
		return fmt.Errorf("politeness interval must be >= 0")
	}
	if c.RetryMaxAttempts <= 0 {
		return fmt.Errorf("retry bound must be > 0")
	}
	if c.PageBudget <= 0 || c.PageBudget > DefaultMaxPageBudget {
		return fmt.Errorf("page budget must be between 1 and %d", DefaultMaxPageBudget)
	}
	if c.ArtifactDir == "" || c.ExportDir == "" {
		return fmt.Errorf("artifact and export directories must be set")
	}
	return nil
}
