// internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	custom_errors "github-file-miner/internal/errors"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults with required keys from the environment", func(t *testing.T) {
		t.Setenv("GITHUB_TOKEN", "tok")
		t.Setenv("PROJECTS_FILE", "projects.csv")

		cfg, err := LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, []string{StageAcquire, StageClassify, StageURLs, StagePlan, StageExtract}, cfg.Stages)
		assert.Equal(t, 1400*time.Millisecond, cfg.RequestDelay)
		assert.Equal(t, 2100*time.Millisecond, cfg.FallbackDelay)
		assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
		assert.Equal(t, 1, cfg.AcquireConcurrency)
		assert.Equal(t, "fs", cfg.CacheBackend)
		assert.True(t, cfg.VerifySegments)
		assert.Equal(t, 4096, cfg.BranchCacheSize)
		assert.Equal(t, "file://migrations", cfg.MigrationsPath)
	})

	t.Run("stages are put in execution order", func(t *testing.T) {
		t.Setenv("STAGES", "extract, urls,EXTRACT")
		t.Setenv("PROJECTS_FILE", "projects.csv")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, []string{StageURLs, StageExtract}, cfg.Stages)
		assert.False(t, cfg.Has(StageAcquire))
	})

	t.Run("token is only required by stages that call the API", func(t *testing.T) {
		t.Setenv("GITHUB_TOKEN", "")
		t.Setenv("STAGES", "extract")
		_, err := LoadConfig()
		assert.NoError(t, err)

		t.Setenv("STAGES", "plan")
		_, err = LoadConfig()
		var cfgErr *custom_errors.ErrInvalidConfig
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "GITHUB_TOKEN", cfgErr.Field)
	})
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			LogLevel:           "info",
			GithubToken:        "tok",
			GithubAuthMode:     "query",
			AcquireConcurrency: 1,
			ProjectsFile:       "projects.csv",
			CacheBackend:       "fs",
			CacheDir:           "cache",
			HeuristicsFile:     "h.yaml",
			HitsFile:           "hits.txt",
			URLsFile:           "urls.txt",
			PlanFile:           "plan.txt",
			ExportsDir:         "exports",
			OutputDir:          "out",
			ExtractConcurrency: 2,
			BranchCacheSize:    16,
			MigrationsPath:     "file://migrations",
			HTTPAddr:           ":8080",
		}
	}

	tests := []struct {
		name   string
		stages []string
		mutate func(*Config)
		field  string
	}{
		{"unknown stage", []string{"acquire", "deploy"}, nil, "STAGES"},
		{"no stage", []string{" "}, nil, "STAGES"},
		{"bad log level", []string{"extract"}, func(c *Config) { c.LogLevel = "trace" }, "LOG_LEVEL"},
		{"bad auth mode", []string{"acquire"}, func(c *Config) { c.GithubAuthMode = "cookie" }, "GITHUB_AUTH_MODE"},
		{"zero acquire concurrency", []string{"acquire"}, func(c *Config) { c.AcquireConcurrency = 0 }, "ACQUIRE_CONCURRENCY"},
		{"missing projects file", []string{"urls"}, func(c *Config) { c.ProjectsFile = "" }, "PROJECTS_FILE"},
		{"unknown cache backend", []string{"classify"}, func(c *Config) { c.CacheBackend = "redis" }, "CACHE_BACKEND"},
		{"s3 without bucket", []string{"classify"}, func(c *Config) { c.CacheBackend = "s3"; c.S3Endpoint = "localhost:9000" }, "S3_BUCKET"},
		{"missing heuristics", []string{"classify"}, func(c *Config) { c.HeuristicsFile = "" }, "HEURISTICS_FILE"},
		{"load without database", []string{"load"}, nil, "DB_URL"},
		{"serve without address", []string{"serve"}, func(c *Config) { c.DBURL = "postgres://x"; c.HTTPAddr = "" }, "HTTP_ADDR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			cfg.Stages = tt.stages
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			err := cfg.Validate()
			var cfgErr *custom_errors.ErrInvalidConfig
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}

	t.Run("cache settings are ignored by stages that do not use the cache", func(t *testing.T) {
		cfg := base()
		cfg.Stages = []string{"extract"}
		cfg.CacheBackend = "redis"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("s3 cache", func(t *testing.T) {
		cfg := base()
		cfg.Stages = []string{"acquire"}
		cfg.CacheBackend = "s3"
		cfg.S3Endpoint = "localhost:9000"
		cfg.S3Bucket = "trees"
		cfg.S3AccessKey = "ak"
		cfg.S3SecretKey = "sk"
		assert.NoError(t, cfg.Validate())
	})
}
