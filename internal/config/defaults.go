package config

import "time"

// Default constants for application configuration
const (
	DefaultLogLevel           = "info"
	DefaultJSONLog            = false
	DefaultUserAgent          = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome"
	DefaultBaseURL            = "https://search.gsccca.org"
	DefaultLoginURL           = "https://apps.gsccca.org/login.asp"
	DefaultNameSearchPath     = "/Lien/namesearch.asp"
	DefaultPoliteness         = 2 * time.Second
	DefaultNavTimeout         = 60 * time.Second
	DefaultOCRTimeout         = 45 * time.Second
	DefaultRetryMaxAttempts   = 3
	DefaultPageBudget         = 50
	DefaultMaxPageBudget      = 1000
	DefaultProgressInterval   = 2 * time.Second
	DefaultTesseractPath      = "tesseract"
	DefaultArtifactDir        = "output/documents"
	DefaultExportDir          = "output"
	DefaultBrowserHeadless    = true
	DefaultSessionName        = "gsccca"
	DefaultMaxRows            = "100"
	DefaultTableType          = "1"
)
