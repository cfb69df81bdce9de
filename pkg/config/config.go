package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DateLayout is the calendar date format used for bounds and daily files
const DateLayout = "2006-01-02"

// Config holds all configuration options for the harvester
type Config struct {
	API      APIConfig      `yaml:"api" json:"api"`
	Download DownloadConfig `yaml:"download" json:"download"`
	Metadata MetadataConfig `yaml:"metadata" json:"metadata"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// APIConfig describes the remote search, asset and CDN endpoints
type APIConfig struct {
	Key               string        `yaml:"key" json:"key"`
	SearchURL         string        `yaml:"search_url" json:"search_url"`
	AssetURL          string        `yaml:"asset_url" json:"asset_url"`
	CDNURL            string        `yaml:"cdn_url" json:"cdn_url"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	MaxAttempts       int           `yaml:"max_attempts" json:"max_attempts"`
	RetryDelay        time.Duration `yaml:"retry_delay" json:"retry_delay"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// DownloadConfig holds image download pipeline settings
type DownloadConfig struct {
	InputFile     string        `yaml:"input_file" json:"input_file"`
	OutputDir     string        `yaml:"output_dir" json:"output_dir"`
	Workers       int           `yaml:"workers" json:"workers"`
	QueueCapacity int           `yaml:"queue_capacity" json:"queue_capacity"`
	BatchSize     int           `yaml:"batch_size" json:"batch_size"`
	DrainTimeout  time.Duration `yaml:"drain_timeout" json:"drain_timeout"`
	MaxAttempts   int           `yaml:"max_attempts" json:"max_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay" json:"retry_delay"`
}

// MetadataConfig holds metadata harvest and merge settings
type MetadataConfig struct {
	OutputDir      string        `yaml:"output_dir" json:"output_dir"`
	EarliestDate   string        `yaml:"earliest_date" json:"earliest_date"`
	LatestDate     string        `yaml:"latest_date" json:"latest_date"`
	NumShards      int           `yaml:"num_shards" json:"num_shards"`
	MergedBasename string        `yaml:"merged_basename" json:"merged_basename"`
	PageCap        int           `yaml:"page_cap" json:"page_cap"`
	MinWindow      time.Duration `yaml:"min_window" json:"min_window"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	File    string `yaml:"file" json:"file"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			SearchURL:   "https://api.dvidshub.net/search",
			AssetURL:    "https://api.dvidshub.net/asset",
			CDNURL:      "https://cdn.dvidshub.net/media/photos",
			Timeout:     5 * time.Minute,
			MaxAttempts: 3,
		},
		Download: DownloadConfig{
			OutputDir:     "./images",
			Workers:       0, // 0 means one per CPU
			QueueCapacity: 10000,
			BatchSize:     10,
			DrainTimeout:  100 * time.Millisecond,
			MaxAttempts:   3,
		},
		Metadata: MetadataConfig{
			OutputDir:      "./metadata",
			EarliestDate:   "2014-01-01",
			NumShards:      1,
			MergedBasename: "dvids-metadata.csv",
			PageCap:        1000,
			MinWindow:      time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from DVIDS_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}

	setString("DVIDS_API_KEY", &c.API.Key)
	setString("DVIDS_INPUT_FILE", &c.Download.InputFile)
	if v := os.Getenv("DVIDS_OUTPUT_DIR"); v != "" {
		c.Download.OutputDir = v
		c.Metadata.OutputDir = v
	}
	setString("DVIDS_EARLIEST_DATE", &c.Metadata.EarliestDate)
	setString("DVIDS_LATEST_DATE", &c.Metadata.LatestDate)
	setInt("DVIDS_NUM_SHARDS", &c.Metadata.NumShards)
	setInt("DVIDS_WORKERS", &c.Download.Workers)
	setInt("DVIDS_REQUESTS_PER_MINUTE", &c.API.RequestsPerMinute)
	setString("DVIDS_LOG_LEVEL", &c.Logging.Level)
	setString("DVIDS_LOG_FILE", &c.Logging.File)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".dvidsharvest.yaml",
		".dvidsharvest.yml",
		filepath.Join(home, ".config", "dvidsharvest", "config.yaml"),
		filepath.Join(home, ".config", "dvidsharvest", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// MergeCommandLineFlags applies flag values. Zero values are ignored so that
// unset flags do not clobber lower-precedence sources.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	str := func(key string, dst *string) {
		if v, ok := flags[key].(string); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := flags[key].(int); ok && v > 0 {
			*dst = v
		}
	}

	str("api-key", &c.API.Key)
	str("input", &c.Download.InputFile)
	str("output", &c.Download.OutputDir)
	str("output", &c.Metadata.OutputDir)
	str("earliest-date", &c.Metadata.EarliestDate)
	str("latest-date", &c.Metadata.LatestDate)
	str("log-level", &c.Logging.Level)
	str("log-file", &c.Logging.File)
	num("workers", &c.Download.Workers)
	num("num-shards", &c.Metadata.NumShards)
	num("rate-limit", &c.API.RequestsPerMinute)

	if v, ok := flags["no-color"].(bool); ok && v {
		c.Logging.NoColor = true
	}
}

// Validate checks settings shared by every command
func (c *Config) Validate() error {
	var errs []error

	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("api timeout must be positive"))
	}
	if c.API.MaxAttempts < 1 {
		errs = append(errs, errors.New("api max attempts must be at least 1"))
	}
	if c.API.RetryDelay < 0 || c.Download.RetryDelay < 0 {
		errs = append(errs, errors.New("retry delay cannot be negative"))
	}
	if c.API.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}
	if c.Download.Workers < 0 {
		errs = append(errs, errors.New("workers cannot be negative"))
	}
	if c.Download.QueueCapacity <= 0 {
		errs = append(errs, errors.New("queue capacity must be positive"))
	}
	if c.Download.BatchSize <= 0 {
		errs = append(errs, errors.New("batch size must be positive"))
	}
	if c.Download.DrainTimeout <= 0 {
		errs = append(errs, errors.New("drain timeout must be positive"))
	}
	if c.Download.MaxAttempts < 1 {
		errs = append(errs, errors.New("download max attempts must be at least 1"))
	}
	if c.Metadata.NumShards <= 0 {
		errs = append(errs, errors.New("number of shards must be positive"))
	}
	if c.Metadata.PageCap <= 0 {
		errs = append(errs, errors.New("page cap must be positive"))
	}
	if c.Metadata.MinWindow <= 0 {
		errs = append(errs, errors.New("minimum window must be positive"))
	}
	if c.Metadata.MergedBasename == "" {
		errs = append(errs, errors.New("merged basename is required"))
	}

	earliest, err := parseDate(c.Metadata.EarliestDate)
	if err != nil {
		errs = append(errs, fmt.Errorf("earliest date: %w", err))
	}
	if c.Metadata.LatestDate != "" {
		latest, err := parseDate(c.Metadata.LatestDate)
		if err != nil {
			errs = append(errs, fmt.Errorf("latest date: %w", err))
		} else if !earliest.IsZero() && latest.Before(earliest) {
			errs = append(errs, errors.New("latest date is before earliest date"))
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// ValidateDownload checks the settings the download command needs
func (c *Config) ValidateDownload() error {
	var errs []error
	if c.Download.InputFile == "" {
		errs = append(errs, errors.New("input file is required"))
	}
	if c.Download.OutputDir == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	return errors.Join(errs...)
}

// ValidateMetadata checks the settings the metadata command needs
func (c *Config) ValidateMetadata() error {
	var errs []error
	if c.API.Key == "" {
		errs = append(errs, errors.New("API key is required"))
	}
	if c.Metadata.OutputDir == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	return errors.Join(errs...)
}

// Earliest returns the parsed earliest date
func (m MetadataConfig) Earliest() (time.Time, error) {
	return parseDate(m.EarliestDate)
}

// Latest returns the parsed latest date, defaulting to today in UTC
func (m MetadataConfig) Latest(now time.Time) (time.Time, error) {
	if m.LatestDate == "" {
		y, mo, d := now.UTC().Date()
		return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC), nil
	}
	return parseDate(m.LatestDate)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: flags > environment > .env file > config file > defaults.
// The result is validated with Validate; command specific checks are left to
// the caller.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".dvidsharvest.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
