package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSettingFile is probed in the working directory when no explicit
// path is given.
const DefaultSettingFile = "opspilot.yaml"

// fileConfig is the YAML document shape.
type fileConfig struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	APIURL   string `yaml:"api_url"`
	Model    string `yaml:"model"`

	Workflow struct {
		MaxAttempts         int     `yaml:"max_attempts"`
		RetryDelay          string  `yaml:"retry_delay"`
		MaxRecursions       int     `yaml:"max_recursions"`
		ConfidenceThreshold float64 `yaml:"confidence_threshold"`
		TokenBudget         int     `yaml:"token_budget"`
		DiagnosticDepth     string  `yaml:"diagnostic_depth"`
	} `yaml:"workflow"`

	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`

	Storage struct {
		Backend  string `yaml:"backend"`
		Dir      string `yaml:"dir"`
		S3Bucket string `yaml:"s3_bucket"`
		S3Prefix string `yaml:"s3_prefix"`
		S3Region string `yaml:"s3_region"`
	} `yaml:"storage"`

	Server struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"server"`

	LogLevel string `yaml:"log_level"`
}

// Load builds the effective configuration: defaults, overlaid by the YAML
// file (explicit path, or opspilot.yaml when present), overlaid by
// OPSPILOT_* environment variables.
func Load(settingPath string) (*AppConfig, error) {
	cfg := defaults()

	path := settingPath
	if path == "" {
		if _, err := os.Stat(DefaultSettingFile); err == nil {
			path = DefaultSettingFile
		}
	}
	if path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
		cfg.configSource = "yaml"
		cfg.settingPath = path
	}

	if applyEnv(cfg) && cfg.configSource == "default" {
		cfg.configSource = "env"
	}
	return cfg, nil
}

func defaults() *AppConfig {
	return &AppConfig{
		provider:            "mock",
		model:               "",
		maxAttempts:         3,
		retryDelay:          time.Second,
		maxRecursions:       5,
		confidenceThreshold: 0.8,
		tokenBudget:         4000,
		diagnosticDepth:     "deep",
		storageBackend:      "local",
		storageDir:          ".opspilot",
		listenAddr:          ":8080",
		logLevel:            "info",
		configSource:        "default",
	}
}

func applyFile(cfg *AppConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.provider, file.Provider)
	setString(&cfg.apiKey, file.APIKey)
	setString(&cfg.apiURL, file.APIURL)
	setString(&cfg.model, file.Model)
	setInt(&cfg.maxAttempts, file.Workflow.MaxAttempts)
	if file.Workflow.RetryDelay != "" {
		delay, err := time.ParseDuration(file.Workflow.RetryDelay)
		if err != nil {
			return fmt.Errorf("parse workflow.retry_delay: %w", err)
		}
		cfg.retryDelay = delay
	}
	setInt(&cfg.maxRecursions, file.Workflow.MaxRecursions)
	if file.Workflow.ConfidenceThreshold > 0 {
		cfg.confidenceThreshold = file.Workflow.ConfidenceThreshold
	}
	setInt(&cfg.tokenBudget, file.Workflow.TokenBudget)
	setString(&cfg.diagnosticDepth, file.Workflow.DiagnosticDepth)
	setString(&cfg.storePath, file.Store.Path)
	setString(&cfg.storageBackend, file.Storage.Backend)
	setString(&cfg.storageDir, file.Storage.Dir)
	setString(&cfg.s3Bucket, file.Storage.S3Bucket)
	setString(&cfg.s3Prefix, file.Storage.S3Prefix)
	setString(&cfg.s3Region, file.Storage.S3Region)
	setString(&cfg.listenAddr, file.Server.ListenAddr)
	setString(&cfg.logLevel, file.LogLevel)
	return nil
}

// applyEnv overlays OPSPILOT_* variables and reports whether any was set.
func applyEnv(cfg *AppConfig) bool {
	applied := false
	envString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
			applied = true
		}
	}
	envInt := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
				applied = true
			}
		}
	}

	envString("OPSPILOT_PROVIDER", &cfg.provider)
	envString("OPSPILOT_API_KEY", &cfg.apiKey)
	envString("OPSPILOT_API_URL", &cfg.apiURL)
	envString("OPSPILOT_MODEL", &cfg.model)
	envInt("OPSPILOT_MAX_ATTEMPTS", &cfg.maxAttempts)
	if v, ok := os.LookupEnv("OPSPILOT_RETRY_DELAY"); ok && v != "" {
		if delay, err := time.ParseDuration(v); err == nil {
			cfg.retryDelay = delay
			applied = true
		}
	}
	envInt("OPSPILOT_MAX_RECURSIONS", &cfg.maxRecursions)
	if v, ok := os.LookupEnv("OPSPILOT_CONFIDENCE_THRESHOLD"); ok && v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f > 0 {
			cfg.confidenceThreshold = f
			applied = true
		}
	}
	envInt("OPSPILOT_TOKEN_BUDGET", &cfg.tokenBudget)
	envString("OPSPILOT_DIAGNOSTIC_DEPTH", &cfg.diagnosticDepth)
	envString("OPSPILOT_STORE_PATH", &cfg.storePath)
	envString("OPSPILOT_STORAGE_BACKEND", &cfg.storageBackend)
	envString("OPSPILOT_STORAGE_DIR", &cfg.storageDir)
	envString("OPSPILOT_S3_BUCKET", &cfg.s3Bucket)
	envString("OPSPILOT_S3_PREFIX", &cfg.s3Prefix)
	envString("OPSPILOT_S3_REGION", &cfg.s3Region)
	envString("OPSPILOT_LISTEN_ADDR", &cfg.listenAddr)
	envString("OPSPILOT_LOG_LEVEL", &cfg.logLevel)
	return applied
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}
