// Package config manages application configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"ytmirror/internal/retry"
)

// Duration is a time.Duration that reads either a Go duration string
// ("90s") or a number of seconds from JSON.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(v)
		return nil
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("duration must be a string or a number of seconds")
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

// Config holds all application configuration. Relative paths other than
// DataDir are resolved against DataDir.
type Config struct {
	// Mirror layout
	DataDir   string `json:"data_dir"`
	URLFile   string `json:"url_file"`
	DeleteDir string `json:"delete_dir"`

	// External tools
	YtdlpPath    string   `json:"ytdlp_path"`
	FFprobePath  string   `json:"ffprobe_path"`
	CookiesFile  string   `json:"cookies_file"`
	CacheDir     string   `json:"cache_dir"`
	QueryTimeout Duration `json:"query_timeout"`

	// RequestsPerMinute caps yt-dlp invocations. Zero means unlimited.
	RequestsPerMinute float64 `json:"requests_per_minute"`

	// Deletion scan fan-out
	ScanConcurrency int `json:"scan_concurrency"`

	Verbose bool `json:"verbose"`

	// Retry settings for metadata queries
	MaxRetries        int      `json:"max_retries"`
	InitialBackoff    Duration `json:"initial_backoff"`
	MaxBackoff        Duration `json:"max_backoff"`
	BackoffMultiplier float64  `json:"backoff_multiplier"`
}

// DefaultConfig returns configuration with safe defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir:           ".",
		URLFile:           "urls.txt",
		DeleteDir:         filepath.Join("playlists", "to_delete"),
		YtdlpPath:         "yt-dlp",
		FFprobePath:       "ffprobe",
		CookiesFile:       "cookies.txt",
		CacheDir:          "cache",
		QueryTimeout:      Duration(10 * time.Minute),
		ScanConcurrency:   8,
		MaxRetries:        3,
		InitialBackoff:    Duration(2 * time.Second),
		MaxBackoff:        Duration(30 * time.Second),
		BackoffMultiplier: 2.0,
	}
}

// Load loads configuration and applies defaults.
// Priority: env vars > config file > defaults. If path is non-empty it is
// the only config file considered and it must exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	} else if err := cfg.loadFromFile(); err != nil {
		// Config file is optional
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile attempts to load config from ytmirror.json in the current
// directory or the user config directory.
func (c *Config) loadFromFile() error {
	paths := []string{"ytmirror.json"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "ytmirror", "ytmirror.json"))
	}

	for _, path := range paths {
		err := c.loadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		return err
	}

	return os.ErrNotExist
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// loadFromEnv overrides config with environment variables. Unparseable
// values are errors rather than silently ignored.
func (c *Config) loadFromEnv() error {
	strs := map[string]*string{
		"YTMIRROR_DATA_DIR":     &c.DataDir,
		"YTMIRROR_URL_FILE":     &c.URLFile,
		"YTMIRROR_DELETE_DIR":   &c.DeleteDir,
		"YTMIRROR_YTDLP_PATH":   &c.YtdlpPath,
		"YTMIRROR_FFPROBE_PATH": &c.FFprobePath,
		"YTMIRROR_COOKIES":      &c.CookiesFile,
		"YTMIRROR_CACHE_DIR":    &c.CacheDir,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"YTMIRROR_SCAN_CONCURRENCY": &c.ScanConcurrency,
		"YTMIRROR_MAX_RETRIES":      &c.MaxRetries,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	durations := map[string]*Duration{
		"YTMIRROR_QUERY_TIMEOUT":   &c.QueryTimeout,
		"YTMIRROR_INITIAL_BACKOFF": &c.InitialBackoff,
		"YTMIRROR_MAX_BACKOFF":     &c.MaxBackoff,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = Duration(d)
		}
	}

	if v := os.Getenv("YTMIRROR_REQUESTS_PER_MINUTE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("YTMIRROR_REQUESTS_PER_MINUTE: %w", err)
		}
		c.RequestsPerMinute = f
	}

	if v := os.Getenv("YTMIRROR_VERBOSE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("YTMIRROR_VERBOSE: %w", err)
		}
		c.Verbose = b
	}
	return nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.YtdlpPath == "" {
		return fmt.Errorf("ytdlp_path must not be empty")
	}
	if c.FFprobePath == "" {
		return fmt.Errorf("ffprobe_path must not be empty")
	}
	if c.QueryTimeout < 0 {
		return fmt.Errorf("query_timeout must be non-negative")
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must be non-negative")
	}
	if c.ScanConcurrency < 1 {
		return fmt.Errorf("scan_concurrency must be at least 1")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	if c.InitialBackoff <= 0 {
		return fmt.Errorf("initial_backoff must be positive")
	}
	if c.MaxBackoff <= 0 {
		return fmt.Errorf("max_backoff must be positive")
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("max_backoff must be >= initial_backoff")
	}
	if c.BackoffMultiplier <= 1 {
		return fmt.Errorf("backoff_multiplier must be > 1")
	}
	return nil
}

// Resolve returns p unchanged when absolute or empty, otherwise joined to
// DataDir.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

// RetryConfig derives the metadata query retry policy.
func (c *Config) RetryConfig() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxRetries = c.MaxRetries
	cfg.InitialBackoff = time.Duration(c.InitialBackoff)
	cfg.MaxBackoff = time.Duration(c.MaxBackoff)
	cfg.Multiplier = c.BackoffMultiplier
	return cfg
}
