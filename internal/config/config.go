// Package config loads the grader's settings from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/TrackerIA/new-grading-vawa/internal/grading"
	"github.com/TrackerIA/new-grading-vawa/internal/retry"
)

// Defaults applied when the corresponding variable is unset.
const (
	DefaultLocation       = "us-west1"
	DefaultModel          = "gemini-2.5-flash"
	DefaultAppVersion     = "v1.0.0"
	DefaultFundamentosDir = "fundamentos"
	DefaultOutputDir      = "output"
	DefaultCacheTTL       = 12 * time.Hour
	DefaultMaxRetries     = 5
	DefaultRetryMinWait   = time.Second
	DefaultRetryMaxWait   = 60 * time.Second
	DefaultCredentials    = "credentials.json"
	DefaultTokenFile      = "token.json"
)

// Config is the full set of knobs for one grader process.
type Config struct {
	// Vertex AI.
	ProjectID string
	Location  string
	Model     string
	CacheTTL  time.Duration

	// Job queue. QueueFile selects a local XLSX workbook instead of Sheets.
	SpreadsheetID string
	SheetName     string
	QueueFile     string

	// Outputs.
	DriveOutputFolderID string
	OutputDir           string
	ArchiveGCSBucket    string
	ArchiveS3Bucket     string
	ArchivePrefix       string
	RunLedgerTable      string

	AppVersion     string
	FundamentosDir string

	// Credentials. CredentialsJSON, when set, takes precedence over the file.
	CredentialsFile string
	CredentialsJSON string
	TokenFile       string

	// Retry tuning for upstream calls.
	MaxRetries   int
	RetryMinWait time.Duration
	RetryMaxWait time.Duration
	CallTimeout  time.Duration

	// Behavior flags.
	DryRun            bool
	SharedThread      bool
	CacheDeleteOnExit bool

	PromptsFile string
	Prompts     Prompts
}

// Load reads the environment, applies defaults and merges the optional
// prompt override file. It does not validate; call Validate once any CLI
// flags have been applied.
func Load() (*Config, error) {
	cfg := &Config{
		ProjectID:           os.Getenv("PROJECT_ID"),
		Location:            envOr("LOCATION", DefaultLocation),
		Model:               envOr("MODEL", DefaultModel),
		CacheTTL:            envDuration("CACHE_TTL", DefaultCacheTTL),
		SpreadsheetID:       os.Getenv("SPREADSHEET_ID"),
		SheetName:           os.Getenv("SHEET_NAME"),
		QueueFile:           os.Getenv("QUEUE_XLSX"),
		DriveOutputFolderID: os.Getenv("DRIVE_OUTPUT_FOLDER_ID"),
		OutputDir:           envOr("OUTPUT_DIR", DefaultOutputDir),
		ArchiveGCSBucket:    os.Getenv("ARCHIVE_GCS_BUCKET"),
		ArchiveS3Bucket:     os.Getenv("ARCHIVE_S3_BUCKET"),
		ArchivePrefix:       envOr("ARCHIVE_PREFIX", "gradings/"),
		RunLedgerTable:      os.Getenv("RUN_LEDGER_TABLE"),
		AppVersion:          envOr("APP_VERSION", DefaultAppVersion),
		FundamentosDir:      envOr("FUNDAMENTOS_DIR", DefaultFundamentosDir),
		CredentialsFile:     envOr("GOOGLE_APPLICATION_CREDENTIALS", DefaultCredentials),
		CredentialsJSON:     os.Getenv("GOOGLE_CREDENTIALS_JSON"),
		TokenFile:           envOr("OAUTH_TOKEN_FILE", DefaultTokenFile),
		MaxRetries:          envInt("MAX_RETRIES", DefaultMaxRetries),
		RetryMinWait:        envDuration("RETRY_MIN_WAIT", DefaultRetryMinWait),
		RetryMaxWait:        envDuration("RETRY_MAX_WAIT", DefaultRetryMaxWait),
		CallTimeout:         envDuration("CALL_TIMEOUT", 0),
		DryRun:              envBool("DRY_RUN"),
		SharedThread:        envBool("SHARED_THREAD"),
		CacheDeleteOnExit:   envBool("CACHE_DELETE_ON_EXIT"),
		PromptsFile:         os.Getenv("GRADING_PROMPTS_FILE"),
		Prompts:             DefaultPrompts(),
	}

	if cfg.PromptsFile != "" {
		overrides, err := LoadPrompts(cfg.PromptsFile)
		if err != nil {
			return nil, err
		}
		cfg.Prompts = cfg.Prompts.Merge(overrides)
		log.Debug().Str("file", cfg.PromptsFile).Msg("Prompt overrides loaded")
	}
	return cfg, nil
}

// Validate reports every missing required setting in one ConfigurationError.
func (c *Config) Validate() error {
	var missing []string
	if c.ProjectID == "" {
		missing = append(missing, "PROJECT_ID")
	}
	if c.QueueFile == "" {
		if c.SpreadsheetID == "" {
			missing = append(missing, "SPREADSHEET_ID")
		}
		if c.SheetName == "" {
			missing = append(missing, "SHEET_NAME")
		}
	}
	if !c.DryRun && c.DriveOutputFolderID == "" {
		missing = append(missing, "DRIVE_OUTPUT_FOLDER_ID")
	}
	if len(missing) > 0 {
		return &grading.ConfigurationError{Message: "missing environment variables: " + strings.Join(missing, ", ")}
	}
	if c.MaxRetries < 1 {
		return &grading.ConfigurationError{Message: "MAX_RETRIES must be at least 1"}
	}
	if c.RetryMaxWait < c.RetryMinWait {
		return &grading.ConfigurationError{Message: "RETRY_MAX_WAIT must not be below RETRY_MIN_WAIT"}
	}
	if err := c.Prompts.Validate(); err != nil {
		return err
	}
	return nil
}

// RetryPolicy returns the run-wide policy for upstream calls, tuned by the
// MAX_RETRIES / RETRY_MIN_WAIT / RETRY_MAX_WAIT / CALL_TIMEOUT variables.
func (c *Config) RetryPolicy() retry.Policy {
	p := retry.Default()
	p.MaxAttempts = c.MaxRetries
	p.Initial = c.RetryMinWait
	p.Max = c.RetryMaxWait
	p.AttemptTimeout = c.CallTimeout
	return p
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("var", key).Str("value", v).Int("default", def).Msg("Invalid integer, using default")
		return def
	}
	return n
}

// envDuration accepts Go durations ("90s", "2m") or a bare number of seconds.
func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("var", key).Str("value", v).Dur("default", def).Msg("Invalid duration, using default")
		return def
	}
	return d
}

func envBool(key string) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("var", key).Str("value", v).Msg("Invalid boolean, treating as false")
		return false
	}
	return b
}
