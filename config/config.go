package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds scraper configuration.
type Config struct {
	UserAgents       []string      `yaml:"user_agents"`
	Referer          string        `yaml:"referer"`
	Timeout          time.Duration `yaml:"timeout"`
	AltTimeout       time.Duration `yaml:"alt_timeout"`
	MaxRetries       int           `yaml:"max_retries"`
	MobileMaxRetries int           `yaml:"mobile_max_retries"`
	RetryBackoff     time.Duration `yaml:"retry_backoff"`
	FirstDelayMin    time.Duration `yaml:"first_delay_min"`
	FirstDelayMax    time.Duration `yaml:"first_delay_max"`
	RetryDelayMin    time.Duration `yaml:"retry_delay_min"`
	RetryDelayMax    time.Duration `yaml:"retry_delay_max"`
	MinBodyBytes     int           `yaml:"min_body_bytes"`
	AltMinBodyBytes  int           `yaml:"alt_min_body_bytes"`

	Parallelism        int    `yaml:"parallelism"`
	PipelineBufferSize int    `yaml:"pipeline_buffer_size"`
	BatchSize          int    `yaml:"batch_size"`
	DedupeMaxSize      int    `yaml:"dedupe_max_size"`
	OutputFile         string `yaml:"output_file"`
	OutputFormat       string `yaml:"output_format"` // csv, json, or dual
	HistoryFile        string `yaml:"history_file"`
	HistoryLimit       int    `yaml:"history_limit"`
	MetricsAddr        string `yaml:"metrics_addr"`
	LogFile            string `yaml:"log_file"`
	Verbose            bool   `yaml:"verbose"`

	Upload UploadConfig `yaml:"upload"`
}

// UploadConfig holds the storefront REST credentials.
type UploadConfig struct {
	URL            string        `yaml:"url"`
	ConsumerKey    string        `yaml:"consumer_key"`
	ConsumerSecret string        `yaml:"consumer_secret"`
	ExternalImages bool          `yaml:"external_images"`
	CategoryID     int           `yaml:"category_id"`
	Timeout        time.Duration `yaml:"timeout"`
}

// Enabled reports whether enough credentials are present to upload.
func (u UploadConfig) Enabled() bool {
	return u.URL != "" && u.ConsumerKey != "" && u.ConsumerSecret != ""
}

// DefaultConfig returns the production defaults for 1688 offer pages.
func DefaultConfig() *Config {
	return &Config{
		UserAgents:       DefaultUserAgents(),
		Referer:          "https://www.1688.com/",
		Timeout:          30 * time.Second,
		AltTimeout:       45 * time.Second,
		MaxRetries:       3,
		MobileMaxRetries: 2,
		RetryBackoff:     2 * time.Second,
		FirstDelayMin:    1 * time.Second,
		FirstDelayMax:    2 * time.Second,
		RetryDelayMin:    2 * time.Second,
		RetryDelayMax:    5 * time.Second,
		MinBodyBytes:     1000,
		AltMinBodyBytes:  500,

		Parallelism:        4,
		PipelineBufferSize: 64,
		BatchSize:          16,
		DedupeMaxSize:      10000,
		OutputFile:         "output/products.json",
		OutputFormat:       "json",
		HistoryFile:        "upload_history.json",
		HistoryLimit:       100,
		MetricsAddr:        "",
		Verbose:            false,

		Upload: UploadConfig{
			ExternalImages: true,
			CategoryID:     1,
			Timeout:        30 * time.Second,
		},
	}
}

// DefaultUserAgents is the desktop browser pool rotated per attempt.
func DefaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/121.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if len(c.UserAgents) == 0 {
		return fmt.Errorf("user agent pool cannot be empty")
	}
	for i, ua := range c.UserAgents {
		if ua == "" {
			return fmt.Errorf("user agent %d cannot be empty", i)
		}
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.AltTimeout <= 0 {
		return fmt.Errorf("alt timeout must be positive")
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("max retries must be positive")
	}
	if c.MobileMaxRetries <= 0 {
		return fmt.Errorf("mobile max retries must be positive")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.FirstDelayMin < 0 || c.RetryDelayMin < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.FirstDelayMax < c.FirstDelayMin {
		return fmt.Errorf("first delay max (%s) cannot be below first delay min (%s)", c.FirstDelayMax, c.FirstDelayMin)
	}
	if c.RetryDelayMax < c.RetryDelayMin {
		return fmt.Errorf("retry delay max (%s) cannot be below retry delay min (%s)", c.RetryDelayMax, c.RetryDelayMin)
	}
	if c.MinBodyBytes < 0 || c.AltMinBodyBytes < 0 {
		return fmt.Errorf("minimum body size cannot be negative")
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.PipelineBufferSize <= 0 {
		return fmt.Errorf("pipeline buffer size must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history limit must be positive")
	}

	if c.Upload.URL != "" {
		parsed, err := url.Parse(c.Upload.URL)
		if err != nil {
			return fmt.Errorf("invalid upload URL: %w", err)
		}
		if parsed.Host == "" {
			return fmt.Errorf("upload URL must include a host")
		}
		if c.Upload.Timeout <= 0 {
			return fmt.Errorf("upload timeout must be positive")
		}
	}

	return nil
}
