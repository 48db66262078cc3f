package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrMissingSourceURL      = errors.New("source.url is required")
	ErrInvalidRenderer       = errors.New("source.renderer must be 'http' or 'chromium'")
	ErrInvalidRetries        = errors.New("fetch.retries must be at least 1")
	ErrInvalidTimeout        = errors.New("fetch.timeout_sec must be at least 1")
	ErrInvalidStrategy       = errors.New("holidays.strategy must be 'gaps' or 'markers'")
	ErrMissingOutputPath     = errors.New("output.path is required")
	ErrNothingToEmit         = errors.New("events.include_scraped and events.include_holidays are both disabled")
	ErrInvalidRolloverDays   = errors.New("events.rollover_days must be between 0 and 366")
	ErrMissingCalendarProdID = errors.New("calendar.prod_id is required")
)

const (
	RendererHTTP     = "http"
	RendererChromium = "chromium"

	StrategyGaps    = "gaps"
	StrategyMarkers = "markers"
)

// SourceConfig describes the term-dates page to scrape.
type SourceConfig struct {
	// URL is the published term-dates page.
	URL string `yaml:"url" json:"url"`

	// Renderer selects how the page is loaded:
	//   - "http" (default): plain GET, HTML parsed as served
	//   - "chromium": headless Chromium via chromedp, for script-built pages
	Renderer string `yaml:"renderer" json:"renderer"`

	// ContentSelectors are CSS selectors tried in order; the first match is
	// the content region whose <p> elements are read.
	ContentSelectors []string `yaml:"content_selectors" json:"content_selectors"`

	// SkipWords drops any extracted line containing one of these words
	// (case-insensitive).
	SkipWords []string `yaml:"skip_words" json:"skip_words"`
}

// FetchConfig controls retry and caching for the page fetch.
type FetchConfig struct {
	Retries        int    `yaml:"retries" json:"retries"`
	TimeoutSec     int    `yaml:"timeout_sec" json:"timeout_sec"`
	InitialDelayMs int    `yaml:"initial_delay_ms" json:"initial_delay_ms"`
	CacheDir       string `yaml:"cache_dir" json:"cache_dir"`
	UserAgent      string `yaml:"user_agent" json:"user_agent"`
}

// EventsConfig is the values-only configuration surface of the core
// pipeline.
type EventsConfig struct {
	IncludeScraped  bool     `yaml:"include_scraped" json:"include_scraped"`
	IncludeHolidays bool     `yaml:"include_holidays" json:"include_holidays"`
	ExpandHalfTerm  bool     `yaml:"expand_half_term" json:"expand_half_term"`
	SeasonNames     bool     `yaml:"season_names" json:"season_names"`
	Describe        bool     `yaml:"describe" json:"describe"`
	TitleCaseWords  []string `yaml:"title_case_words" json:"title_case_words"`
	SummaryPrefix   string   `yaml:"summary_prefix" json:"summary_prefix"`

	// RolloverDays is how far in the past a year-less date may fall before
	// it is assigned to the following year.
	RolloverDays int `yaml:"rollover_days" json:"rollover_days"`
}

// HolidaysConfig selects how holidays are inferred.
type HolidaysConfig struct {
	// Strategy is "gaps" (every gap between scraped ranges) or "markers"
	// (from an "End of Term" record to the next "Term Begins" record).
	Strategy string `yaml:"strategy" json:"strategy"`
}

// CalendarConfig holds the VCALENDAR level properties.
type CalendarConfig struct {
	ProdID    string `yaml:"prod_id" json:"prod_id"`
	Name      string `yaml:"name" json:"name"`
	UIDDomain string `yaml:"uid_domain" json:"uid_domain"`
}

// OutputConfig controls where the feed and diagnostics go.
type OutputConfig struct {
	Path    string `yaml:"path" json:"path"`
	LogPath string `yaml:"log_path" json:"log_path"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the feed server.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	Source   SourceConfig   `yaml:"source" json:"source"`
	Fetch    FetchConfig    `yaml:"fetch" json:"fetch"`
	Events   EventsConfig   `yaml:"events" json:"events"`
	Holidays HolidaysConfig `yaml:"holidays" json:"holidays"`
	Calendar CalendarConfig `yaml:"calendar" json:"calendar"`
	Output   OutputConfig   `yaml:"output" json:"output"`

	// RefreshCron is a cron-style schedule string (e.g. "0 6 * * *") used
	// when the binary runs without -once.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// Listen is the HTTP listen address for the feed server. Empty disables
	// the server.
	Listen string `yaml:"listen" json:"listen"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

var (
	defaultSelectors  = []string{"section.user-content", "div.content__region"}
	defaultSkipWords  = []string{"privacy", "cookies", "updated"}
	defaultTitleWords = []string{"term", "holiday", "half", "INSET"}
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			URL:              "https://www.penriceacademy.org/page/?title=Term+Dates&pid=49",
			Renderer:         RendererHTTP,
			ContentSelectors: append([]string(nil), defaultSelectors...),
			SkipWords:        append([]string(nil), defaultSkipWords...),
		},
		Fetch: FetchConfig{
			Retries:        3,
			TimeoutSec:     60,
			InitialDelayMs: 1000,
			CacheDir:       "./cache/page-cache",
		},
		Events: EventsConfig{
			IncludeScraped:  true,
			IncludeHolidays: true,
			ExpandHalfTerm:  true,
			SeasonNames:     true,
			Describe:        false,
			TitleCaseWords:  append([]string(nil), defaultTitleWords...),
			SummaryPrefix:   "Penrice: ",
			RolloverDays:    180,
		},
		Holidays: HolidaysConfig{Strategy: StrategyGaps},
		Calendar: CalendarConfig{
			ProdID:    "-//Penrice Academy//EN",
			Name:      "Penrice Academy Term Dates",
			UIDDomain: "penrice-calendar",
		},
		Output: OutputConfig{
			Path:    "penrice.ics",
			LogPath: "log.txt",
		},
		RefreshCron: "0 6 * * *",
		LogLevel:    "info",
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// configs with explicit zero values still behave correctly. Booleans are left
// alone: Load starts from DefaultConfig, so a false here was written by the
// user.
func (c *Config) Normalize() {
	switch strings.ToLower(c.Source.Renderer) {
	case RendererHTTP, RendererChromium:
		c.Source.Renderer = strings.ToLower(c.Source.Renderer)
	case "":
		c.Source.Renderer = RendererHTTP
	}
	if c.Source.ContentSelectors == nil {
		c.Source.ContentSelectors = append([]string(nil), defaultSelectors...)
	}
	if c.Source.SkipWords == nil {
		c.Source.SkipWords = append([]string(nil), defaultSkipWords...)
	}

	if c.Fetch.Retries == 0 {
		c.Fetch.Retries = 3
	}
	if c.Fetch.TimeoutSec == 0 {
		c.Fetch.TimeoutSec = 60
	}
	if c.Fetch.InitialDelayMs <= 0 {
		c.Fetch.InitialDelayMs = 1000
	}
	if c.Fetch.CacheDir == "" {
		c.Fetch.CacheDir = "./cache/page-cache"
	}

	if c.Events.TitleCaseWords == nil {
		c.Events.TitleCaseWords = append([]string(nil), defaultTitleWords...)
	}
	if c.Events.RolloverDays == 0 {
		c.Events.RolloverDays = 180
	}

	if c.Holidays.Strategy == "" {
		c.Holidays.Strategy = StrategyGaps
	}
	c.Holidays.Strategy = strings.ToLower(c.Holidays.Strategy)

	if c.Calendar.UIDDomain == "" {
		c.Calendar.UIDDomain = "penrice-calendar"
	}
	if c.Output.Path == "" {
		c.Output.Path = "penrice.ics"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "0 6 * * *"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks the values Normalize cannot repair.
func (c *Config) Validate() error {
	if c.Source.URL == "" {
		return ErrMissingSourceURL
	}
	if c.Source.Renderer != RendererHTTP && c.Source.Renderer != RendererChromium {
		return fmt.Errorf("%w: %q", ErrInvalidRenderer, c.Source.Renderer)
	}
	if c.Fetch.Retries < 1 {
		return ErrInvalidRetries
	}
	if c.Fetch.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}
	if c.Holidays.Strategy != StrategyGaps && c.Holidays.Strategy != StrategyMarkers {
		return fmt.Errorf("%w: %q", ErrInvalidStrategy, c.Holidays.Strategy)
	}
	if !c.Events.IncludeScraped && !c.Events.IncludeHolidays {
		return ErrNothingToEmit
	}
	if c.Events.RolloverDays < 0 || c.Events.RolloverDays > 366 {
		return ErrInvalidRolloverDays
	}
	if c.Calendar.ProdID == "" {
		return ErrMissingCalendarProdID
	}
	if c.Output.Path == "" {
		return ErrMissingOutputPath
	}
	return nil
}

// FetchTimeout returns the per-request timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSec) * time.Second
}

// InitialRetryDelay returns the base delay of the exponential backoff.
func (c *Config) InitialRetryDelay() time.Duration {
	return time.Duration(c.Fetch.InitialDelayMs) * time.Millisecond
}

// Rollover returns the year-inference threshold.
func (c *Config) Rollover() time.Duration {
	return time.Duration(c.Events.RolloverDays) * 24 * time.Hour
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal over DefaultConfig
//   - normalize defaults and validate
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	// Decode over the defaults so omitted keys, booleans included, keep
	// their default values.
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".termcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
