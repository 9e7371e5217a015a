package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Matching   MatchingConfig
	Candidates CandidatesConfig
	Batch      BatchConfig
	RateLimit  RateLimitConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // "sqlite" or "postgres"
	DSN    string `mapstructure:"dsn"`
}

// MatchingConfig holds the scoring engine's weights and thresholds
type MatchingConfig struct {
	NameWeight     float64 `mapstructure:"name_weight"`
	BrandWeight    float64 `mapstructure:"brand_weight"`
	CategoryWeight float64 `mapstructure:"category_weight"`
	PriceWeight    float64 `mapstructure:"price_weight"`

	BrandConflictCap   float64 `mapstructure:"brand_conflict_cap"`
	CrossDepartmentCap float64 `mapstructure:"cross_department_cap"`
	ModelMismatchCap   float64 `mapstructure:"model_mismatch_cap"`

	MinOverallScore      float64 `mapstructure:"min_overall_score"`
	HighTierConfidence   float64 `mapstructure:"high_tier_confidence"`
	ReviewTierConfidence float64 `mapstructure:"review_tier_confidence"`
	MaxCandidates        int     `mapstructure:"max_candidates"`
}

// CandidatesConfig holds interactive candidate-lookup configuration
type CandidatesConfig struct {
	PageSize int           `mapstructure:"page_size"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// BatchConfig holds batch comparison run configuration
type BatchConfig struct {
	PageSize            int     `mapstructure:"page_size"`
	CheckpointEvery     int     `mapstructure:"checkpoint_every"`
	ProgressEvery       int     `mapstructure:"progress_every"`
	CheckpointPath      string  `mapstructure:"checkpoint_path"`
	ReportPath          string  `mapstructure:"report_path"`
	MinReportConfidence float64 `mapstructure:"min_report_confidence"`
	Workers             int     `mapstructure:"workers"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/shelflink/")

	// Environment variable settings
	v.SetEnvPrefix("SHELFLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "shelflink.db")

	// Matching defaults mirror the tuned production constants
	v.SetDefault("matching.name_weight", 0.50)
	v.SetDefault("matching.brand_weight", 0.20)
	v.SetDefault("matching.category_weight", 0.15)
	v.SetDefault("matching.price_weight", 0.15)
	v.SetDefault("matching.brand_conflict_cap", 0.60)
	v.SetDefault("matching.cross_department_cap", 0.55)
	v.SetDefault("matching.model_mismatch_cap", 0.65)
	v.SetDefault("matching.min_overall_score", 0.30)
	v.SetDefault("matching.high_tier_confidence", 85.0)
	v.SetDefault("matching.review_tier_confidence", 70.0)
	v.SetDefault("matching.max_candidates", 10)

	// Candidate lookup defaults
	v.SetDefault("candidates.page_size", 1000)
	v.SetDefault("candidates.cache_ttl", "5m")

	// Batch defaults
	v.SetDefault("batch.page_size", 1000)
	v.SetDefault("batch.checkpoint_every", 10)
	v.SetDefault("batch.progress_every", 100)
	v.SetDefault("batch.checkpoint_path", "batch.checkpoint.json")
	v.SetDefault("batch.report_path", "matches.csv")
	v.SetDefault("batch.min_report_confidence", 50.0)
	v.SetDefault("batch.workers", 4)

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 100)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Database.Driver != "sqlite" && config.Database.Driver != "postgres" {
		return fmt.Errorf("database driver must be 'sqlite' or 'postgres', got: %s", config.Database.Driver)
	}
	if config.Database.DSN == "" {
		return fmt.Errorf("database DSN is required (set SHELFLINK_DATABASE_DSN)")
	}

	m := config.Matching
	weightSum := m.NameWeight + m.BrandWeight + m.CategoryWeight + m.PriceWeight
	if weightSum < 0.999 || weightSum > 1.001 {
		return fmt.Errorf("matching weights must sum to 1.0, got: %.3f", weightSum)
	}
	if m.MinOverallScore < 0 || m.MinOverallScore > 1 {
		return fmt.Errorf("matching.min_overall_score must be in [0,1], got: %.2f", m.MinOverallScore)
	}
	if m.ReviewTierConfidence > m.HighTierConfidence {
		return fmt.Errorf("matching.review_tier_confidence (%.1f) must not exceed matching.high_tier_confidence (%.1f)",
			m.ReviewTierConfidence, m.HighTierConfidence)
	}

	if config.Batch.MinReportConfidence < 0 || config.Batch.MinReportConfidence > 100 {
		return fmt.Errorf("batch.min_report_confidence must be in [0,100], got: %.1f", config.Batch.MinReportConfidence)
	}

	return nil
}
