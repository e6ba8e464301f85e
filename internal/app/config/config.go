// Package config loads application configuration from a YAML file with
// environment overrides and defaults.
package config

import "time"

// Config provides read-only access to application configuration. The
// interface hides the configuration source (YAML, ENV, defaults) from the
// layers that consume it.
type Config interface {
	// Completion service
	Provider() string // Completion provider: openai or mock (OPSPILOT_PROVIDER)
	APIKey() string   // Completion API key (OPSPILOT_API_KEY)
	APIURL() string   // Completion endpoint override (OPSPILOT_API_URL)
	Model() string    // Model identifier (OPSPILOT_MODEL)

	// Workflow tuning
	MaxAttempts() int             // Automation retry budget (OPSPILOT_MAX_ATTEMPTS)
	RetryDelay() time.Duration    // Delay between automation attempts (OPSPILOT_RETRY_DELAY)
	MaxRecursions() int           // Diagnostic refinement ceiling (OPSPILOT_MAX_RECURSIONS)
	ConfidenceThreshold() float64 // Refinement early-exit threshold (OPSPILOT_CONFIDENCE_THRESHOLD)
	TokenBudget() int             // Context pruning budget (OPSPILOT_TOKEN_BUDGET)
	DiagnosticDepth() string      // deep or single (OPSPILOT_DIAGNOSTIC_DEPTH)

	// Persistence
	StorePath() string      // SQLite path; empty keeps tasks in memory (OPSPILOT_STORE_PATH)
	StorageBackend() string // Artifact backend: local, s3 or none (OPSPILOT_STORAGE_BACKEND)
	StorageDir() string     // Local artifact directory (OPSPILOT_STORAGE_DIR)
	S3Bucket() string       // Artifact bucket (OPSPILOT_S3_BUCKET)
	S3Prefix() string       // Artifact key prefix (OPSPILOT_S3_PREFIX)
	S3Region() string       // Artifact bucket region (OPSPILOT_S3_REGION)

	// Server and logging
	ListenAddr() string // HTTP listen address (OPSPILOT_LISTEN_ADDR)
	LogLevel() string   // Stderr log level (OPSPILOT_LOG_LEVEL)

	// Metadata
	ConfigSource() string // Source of configuration: "yaml", "env" or "default"
	SettingPath() string  // Path of the YAML file when one was loaded
}

// AppConfig is the concrete implementation of Config.
type AppConfig struct {
	provider string
	apiKey   string
	apiURL   string
	model    string

	maxAttempts         int
	retryDelay          time.Duration
	maxRecursions       int
	confidenceThreshold float64
	tokenBudget         int
	diagnosticDepth     string

	storePath      string
	storageBackend string
	storageDir     string
	s3Bucket       string
	s3Prefix       string
	s3Region       string

	listenAddr string
	logLevel   string

	configSource string
	settingPath  string
}

func (c *AppConfig) Provider() string { return c.provider }
func (c *AppConfig) APIKey() string { return c.apiKey }
func (c *AppConfig) APIURL() string { return c.apiURL }
func (c *AppConfig) Model() string { return c.model }
func (c *AppConfig) MaxAttempts() int { return c.maxAttempts }
func (c *AppConfig) RetryDelay() time.Duration { return c.retryDelay }
func (c *AppConfig) MaxRecursions() int { return c.maxRecursions }
func (c *AppConfig) ConfidenceThreshold() float64 { return c.confidenceThreshold }
func (c *AppConfig) TokenBudget() int { return c.tokenBudget }
func (c *AppConfig) DiagnosticDepth() string { return c.diagnosticDepth }
func (c *AppConfig) StorePath() string { return c.storePath }
func (c *AppConfig) StorageBackend() string { return c.storageBackend }
func (c *AppConfig) StorageDir() string { return c.storageDir }
func (c *AppConfig) S3Bucket() string { return c.s3Bucket }
func (c *AppConfig) S3Prefix() string { return c.s3Prefix }
func (c *AppConfig) S3Region() string { return c.s3Region }
func (c *AppConfig) ListenAddr() string { return c.listenAddr }
func (c *AppConfig) LogLevel() string { return c.logLevel }
func (c *AppConfig) ConfigSource() string { return c.configSource }
func (c *AppConfig) SettingPath() string { return c.settingPath }

var _ Config = (*AppConfig)(nil)
