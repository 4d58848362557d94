package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ETLConfig holds every setting of the pipeline. It is built once at process
// start and passed by pointer to the components that need it.
type ETLConfig struct {
	Source    SourceConfig    `mapstructure:"source"`
	Reference ReferenceConfig `mapstructure:"reference"`
	Warehouse WarehouseConfig `mapstructure:"warehouse"`
	ETL       RunConfig       `mapstructure:"etl"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Status    StatusConfig    `mapstructure:"status"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
}

// SourceConfig describes where the operational database comes from
type SourceConfig struct {
	URL       string `mapstructure:"url"`
	CachePath string `mapstructure:"cache_path"`
}

// ReferenceConfig describes the external reference datasets
type ReferenceConfig struct {
	CitiesPath      string        `mapstructure:"cities_path"`
	ExchangeRateURL string        `mapstructure:"exchange_rate_url"`
	FallbackRate    float64       `mapstructure:"fallback_rate"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// WarehouseConfig selects the warehouse store
type WarehouseConfig struct {
	Driver string `mapstructure:"driver"` // "sqlite" or "mysql"
	DSN    string `mapstructure:"dsn"`
}

// RunConfig contains the knobs of a single pipeline run
type RunConfig struct {
	BatchSize   int           `mapstructure:"batch_size"`
	MaxRetries  int           `mapstructure:"max_retries"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	Placeholder string        `mapstructure:"placeholder"`
}

// ScheduleConfig describes the daily schedule
type ScheduleConfig struct {
	DailyAt      string        `mapstructure:"daily_at"` // HH:MM, local time
	PollInterval time.Duration `mapstructure:"poll_interval"`
	StatusLimit  int           `mapstructure:"status_limit"`
}

// LoggingConfig configures the zap logger
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "console" or "json"
	Dir    string `mapstructure:"dir"`    // empty disables the file log
}

// StatusConfig configures the optional status HTTP API
type StatusConfig struct {
	Addr string `mapstructure:"addr"`
}

// ArchiveConfig configures snapshot archiving of warehouse tables
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// Default values
const (
	DefaultSourceURL       = "https://raw.githubusercontent.com/jpwhite3/northwind-SQLite3/main/dist/northwind.db"
	DefaultExchangeRateURL = "https://api.exchangerate-api.com/v4/latest/USD"
	DefaultFallbackRate    = 0.92
	DefaultPlaceholder     = "Unknown"
)

// EnvPrefix is the prefix of environment variable overrides, e.g.
// NORTHWIND_ETL_WAREHOUSE_DSN.
const EnvPrefix = "NORTHWIND_ETL"

// Load reads the configuration. configFile may be empty, in which case
// etl.yaml is looked up in the working directory and ./config; a missing
// file is not an error.
func Load(configFile string) (*ETLConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("etl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg ETLConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the configuration with every option at its default
func Default() *ETLConfig {
	v := viper.New()
	setDefaults(v)

	var cfg ETLConfig
	// Defaults are plain values, decoding cannot fail.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.url", DefaultSourceURL)
	v.SetDefault("source.cache_path", "data/northwind.db")

	v.SetDefault("reference.cities_path", "data/worldcities.csv")
	v.SetDefault("reference.exchange_rate_url", DefaultExchangeRateURL)
	v.SetDefault("reference.fallback_rate", DefaultFallbackRate)
	v.SetDefault("reference.timeout", 30*time.Second)

	v.SetDefault("warehouse.driver", DriverSQLite)
	v.SetDefault("warehouse.dsn", "data/northwind_dwh.sqlite")

	v.SetDefault("etl.batch_size", 1000)
	v.SetDefault("etl.max_retries", 3)
	v.SetDefault("etl.retry_delay", 300*time.Second)
	v.SetDefault("etl.placeholder", DefaultPlaceholder)

	v.SetDefault("schedule.daily_at", "00:00")
	v.SetDefault("schedule.poll_interval", 60*time.Second)
	v.SetDefault("schedule.status_limit", 5)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.dir", "logs")

	v.SetDefault("status.addr", "")

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.dir", "data/processed")
}

// Validate checks the values that would otherwise fail late in a run
func (c *ETLConfig) Validate() error {
	if c.Source.CachePath == "" {
		return fmt.Errorf("source.cache_path is required")
	}
	if c.Reference.CitiesPath == "" {
		return fmt.Errorf("reference.cities_path is required")
	}
	if c.Reference.FallbackRate <= 0 {
		return fmt.Errorf("reference.fallback_rate must be positive")
	}
	if _, err := DialectFor(c.Warehouse.Driver); err != nil {
		return err
	}
	if c.Warehouse.DSN == "" {
		return fmt.Errorf("warehouse.dsn is required")
	}
	if c.ETL.BatchSize <= 0 {
		return fmt.Errorf("etl.batch_size must be positive")
	}
	if c.ETL.MaxRetries <= 0 {
		return fmt.Errorf("etl.max_retries must be at least 1")
	}
	if c.ETL.RetryDelay < 0 {
		return fmt.Errorf("etl.retry_delay must not be negative")
	}
	if _, _, err := c.Schedule.Clock(); err != nil {
		return err
	}
	if c.Schedule.PollInterval <= 0 {
		return fmt.Errorf("schedule.poll_interval must be positive")
	}
	return nil
}

// Clock parses DailyAt into hour and minute
func (s ScheduleConfig) Clock() (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s.DailyAt), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("schedule.daily_at must be HH:MM, got %q", s.DailyAt)
	}

	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("schedule.daily_at has invalid hour %q", parts[0])
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("schedule.daily_at has invalid minute %q", parts[1])
	}
	return hour, minute, nil
}

// CronSpec turns DailyAt into a standard five-field cron expression
func (s ScheduleConfig) CronSpec() (string, error) {
	hour, minute, err := s.Clock()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}
