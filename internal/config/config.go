// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	custom_errors "github-file-miner/internal/errors"
)

// Pipeline stages, in execution order.
const (
	StageAcquire  = "acquire"
	StageClassify = "classify"
	StageURLs     = "urls"
	StagePlan     = "plan"
	StageExtract  = "extract"
	StageLoad     = "load"
	StageServe    = "serve"
)

var stageOrder = []string{StageAcquire, StageClassify, StageURLs, StagePlan, StageExtract, StageLoad, StageServe}

// Config holds all configuration for the application.
type Config struct {
	LogLevel string   `mapstructure:"LOG_LEVEL"`
	Stages   []string `mapstructure:"STAGES"`

	GithubToken    string        `mapstructure:"GITHUB_TOKEN"`
	GithubAuthMode string        `mapstructure:"GITHUB_AUTH_MODE"`
	GithubAPIURL   string        `mapstructure:"GITHUB_API_URL"`
	RequestDelay   time.Duration `mapstructure:"REQUEST_DELAY"`
	FallbackDelay  time.Duration `mapstructure:"FALLBACK_DELAY"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	AcquireConcurrency int    `mapstructure:"ACQUIRE_CONCURRENCY"`
	ProjectsFile       string `mapstructure:"PROJECTS_FILE"`

	CacheBackend string `mapstructure:"CACHE_BACKEND"`
	CacheDir     string `mapstructure:"CACHE_DIR"`
	S3Endpoint   string `mapstructure:"S3_ENDPOINT"`
	S3Region     string `mapstructure:"S3_REGION"`
	S3AccessKey  string `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey  string `mapstructure:"S3_SECRET_KEY"`
	S3Bucket     string `mapstructure:"S3_BUCKET"`
	S3UseSSL     bool   `mapstructure:"S3_USE_SSL"`

	HeuristicsFile string `mapstructure:"HEURISTICS_FILE"`
	HitsFile       string `mapstructure:"HITS_FILE"`
	URLsFile       string `mapstructure:"URLS_FILE"`
	PlanFile       string `mapstructure:"PLAN_FILE"`
	ExportsDir     string `mapstructure:"EXPORTS_DIR"`
	OutputDir      string `mapstructure:"OUTPUT_DIR"`

	AvoidFrameworks    bool `mapstructure:"AVOID_FRAMEWORKS"`
	VerifySegments     bool `mapstructure:"VERIFY_SEGMENTS"`
	ExtractConcurrency int  `mapstructure:"EXTRACT_CONCURRENCY"`
	BranchCacheSize    int  `mapstructure:"BRANCH_CACHE_SIZE"`

	DBURL          string `mapstructure:"DB_URL"`
	MigrationsPath string `mapstructure:"MIGRATIONS_PATH"`
	HTTPAddr       string `mapstructure:"HTTP_ADDR"`
}

var defaults = map[string]any{
	"LOG_LEVEL":           "info",
	"STAGES":              "acquire,classify,urls,plan,extract",
	"GITHUB_TOKEN":        "",
	"GITHUB_AUTH_MODE":    "query",
	"GITHUB_API_URL":      "https://api.github.com/",
	"REQUEST_DELAY":       "1.4s",
	"FALLBACK_DELAY":      "2.1s",
	"REQUEST_TIMEOUT":     "30s",
	"ACQUIRE_CONCURRENCY": 1,
	"PROJECTS_FILE":       "",
	"CACHE_BACKEND":       "fs",
	"CACHE_DIR":           "cache",
	"S3_ENDPOINT":         "",
	"S3_REGION":           "",
	"S3_ACCESS_KEY":       "",
	"S3_SECRET_KEY":       "",
	"S3_BUCKET":           "",
	"S3_USE_SSL":          false,
	"HEURISTICS_FILE":     "heuristics.yaml",
	"HITS_FILE":           "hits.txt",
	"URLS_FILE":           "urls.txt",
	"PLAN_FILE":           "plan.txt",
	"EXPORTS_DIR":         "exports",
	"OUTPUT_DIR":          "output",
	"AVOID_FRAMEWORKS":    false,
	"VERIFY_SEGMENTS":     true,
	"EXTRACT_CONCURRENCY": 4,
	"BRANCH_CACHE_SIZE":   4096,
	"DB_URL":              "",
	"MIGRATIONS_PATH":     "file://migrations",
	"HTTP_ADDR":           ":8080",
}

// LoadConfig reads configuration from a .env file and/or environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// Load from .env file if it exists
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Has reports whether stage was selected.
func (c *Config) Has(stage string) bool {
	for _, s := range c.Stages {
		if s == stage {
			return true
		}
	}
	return false
}

// Validate normalizes the stage list into execution order and checks every
// key the selected stages depend on.
func (c *Config) Validate() error {
	selected := make(map[string]bool, len(c.Stages))
	for _, s := range c.Stages {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if !knownStage(s) {
			return &custom_errors.ErrInvalidConfig{Field: "STAGES", Reason: fmt.Sprintf("unknown stage %q", s)}
		}
		selected[s] = true
	}
	if len(selected) == 0 {
		return &custom_errors.ErrInvalidConfig{Field: "STAGES", Reason: "at least one stage is required"}
	}
	c.Stages = c.Stages[:0]
	for _, s := range stageOrder {
		if selected[s] {
			c.Stages = append(c.Stages, s)
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return &custom_errors.ErrInvalidConfig{Field: "LOG_LEVEL", Reason: fmt.Sprintf("unsupported level %q", c.LogLevel)}
	}

	if c.Has(StageAcquire) || c.Has(StagePlan) {
		if c.GithubToken == "" {
			return required("GITHUB_TOKEN")
		}
		if c.GithubAuthMode != "query" && c.GithubAuthMode != "header" {
			return &custom_errors.ErrInvalidConfig{Field: "GITHUB_AUTH_MODE", Reason: "must be query or header"}
		}
		if c.RequestDelay < 0 || c.FallbackDelay < 0 || c.RequestTimeout < 0 {
			return &custom_errors.ErrInvalidConfig{Field: "REQUEST_DELAY", Reason: "delays and timeouts must not be negative"}
		}
	}
	if c.Has(StageAcquire) && c.AcquireConcurrency < 1 {
		return &custom_errors.ErrInvalidConfig{Field: "ACQUIRE_CONCURRENCY", Reason: "must be at least 1"}
	}
	if c.Has(StageAcquire) || c.Has(StageURLs) {
		if c.ProjectsFile == "" {
			return required("PROJECTS_FILE")
		}
	}
	if c.Has(StageAcquire) || c.Has(StageClassify) || c.Has(StageURLs) {
		if err := c.validateCache(); err != nil {
			return err
		}
	}
	if c.Has(StageClassify) && c.HeuristicsFile == "" {
		return required("HEURISTICS_FILE")
	}
	if (c.Has(StageClassify) || c.Has(StageURLs)) && c.HitsFile == "" {
		return required("HITS_FILE")
	}
	if (c.Has(StageURLs) || c.Has(StagePlan) || c.Has(StageExtract)) && c.URLsFile == "" {
		return required("URLS_FILE")
	}
	if (c.Has(StagePlan) || c.Has(StageExtract)) && c.ExportsDir == "" {
		return required("EXPORTS_DIR")
	}
	if c.Has(StagePlan) && c.PlanFile == "" {
		return required("PLAN_FILE")
	}
	if c.Has(StageExtract) || c.Has(StageLoad) {
		if c.OutputDir == "" {
			return required("OUTPUT_DIR")
		}
	}
	if c.Has(StageExtract) && c.ExtractConcurrency < 1 {
		return &custom_errors.ErrInvalidConfig{Field: "EXTRACT_CONCURRENCY", Reason: "must be at least 1"}
	}
	if c.Has(StageURLs) && c.BranchCacheSize < 1 {
		return &custom_errors.ErrInvalidConfig{Field: "BRANCH_CACHE_SIZE", Reason: "must be at least 1"}
	}
	if c.Has(StageLoad) || c.Has(StageServe) {
		if c.DBURL == "" {
			return required("DB_URL")
		}
		if c.MigrationsPath == "" {
			return required("MIGRATIONS_PATH")
		}
	}
	if c.Has(StageServe) && c.HTTPAddr == "" {
		return required("HTTP_ADDR")
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.CacheBackend {
	case "fs":
		if c.CacheDir == "" {
			return required("CACHE_DIR")
		}
	case "s3":
		if c.S3Endpoint == "" {
			return required("S3_ENDPOINT")
		}
		if c.S3Bucket == "" {
			return required("S3_BUCKET")
		}
		if c.S3AccessKey == "" || c.S3SecretKey == "" {
			return required("S3_ACCESS_KEY and S3_SECRET_KEY")
		}
	default:
		return &custom_errors.ErrInvalidConfig{Field: "CACHE_BACKEND", Reason: fmt.Sprintf("unsupported backend %q", c.CacheBackend)}
	}
	return nil
}

func knownStage(s string) bool {
	for _, known := range stageOrder {
		if s == known {
			return true
		}
	}
	return false
}

func required(field string) error {
	return &custom_errors.ErrInvalidConfig{Field: field, Reason: "is a required configuration field"}
}
