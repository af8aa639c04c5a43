package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config keeps runtime settings for the planner.
type Config struct {
	DatabaseDriver string
	DatabaseURL    string
	HTTPAddr       string
	StaticDir      string
	TelegramToken  string
	Location       *time.Location
	Utilization    int
	EstimateEvery  time.Duration
	RetrainEvery   time.Duration
	RolloverAt     string
	RulesFile      string
	ModelFile      string
	LogLevel       string
	LogFormat      string
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	// DefaultUtilization is the share of the weekday budget the allocator may fill.
	DefaultUtilization = 85
)

// Load reads configuration from .env, an optional studyplanner.yaml and environment
// variables, in increasing order of precedence. configFile overrides the search path.
func Load(configFile string) (Config, error) {
	if err := godotenv.Load(); err != nil {
		Logger.Debugf("no .env file loaded: %v", err)
	}

	v := viper.New()
	v.SetDefault("database_driver", DriverSQLite)
	v.SetDefault("database_url", "study_planner.db")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("static_dir", "")
	v.SetDefault("telegram_token", "")
	v.SetDefault("timezone", "Local")
	v.SetDefault("allocation_utilization", DefaultUtilization)
	v.SetDefault("estimate_interval_minutes", 30)
	v.SetDefault("retrain_interval_hours", 0)
	v.SetDefault("rollover_at", "")
	v.SetDefault("estimator_rules_file", "")
	v.SetDefault("estimator_model_file", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("studyplanner")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		DatabaseDriver: strings.ToLower(strings.TrimSpace(v.GetString("database_driver"))),
		DatabaseURL:    strings.TrimSpace(v.GetString("database_url")),
		HTTPAddr:       strings.TrimSpace(v.GetString("http_addr")),
		StaticDir:      strings.TrimSpace(v.GetString("static_dir")),
		TelegramToken:  strings.TrimSpace(v.GetString("telegram_token")),
		Utilization:    v.GetInt("allocation_utilization"),
		EstimateEvery:  time.Duration(v.GetInt("estimate_interval_minutes")) * time.Minute,
		RetrainEvery:   time.Duration(v.GetInt("retrain_interval_hours")) * time.Hour,
		RolloverAt:     strings.TrimSpace(v.GetString("rollover_at")),
		RulesFile:      strings.TrimSpace(v.GetString("estimator_rules_file")),
		ModelFile:      strings.TrimSpace(v.GetString("estimator_model_file")),
		LogLevel:       strings.TrimSpace(v.GetString("log_level")),
		LogFormat:      strings.TrimSpace(v.GetString("log_format")),
	}

	loc, err := loadLocation(v.GetString("timezone"))
	if err != nil {
		return cfg, err
	}
	cfg.Location = loc

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks values that have no safe fallback.
func (c Config) Validate() error {
	switch c.DatabaseDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("DATABASE_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.DatabaseDriver)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Utilization < 1 || c.Utilization > 100 {
		return fmt.Errorf("ALLOCATION_UTILIZATION must be within 1..100, got %d", c.Utilization)
	}
	if c.EstimateEvery < 0 || c.RetrainEvery < 0 {
		return fmt.Errorf("intervals must not be negative")
	}
	return nil
}

func loadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", name, err)
	}
	return loc, nil
}
