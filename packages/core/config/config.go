package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the runtests configuration
type Config struct {
	Program         string        `json:"program,omitempty" yaml:"program,omitempty"`
	Suites          []string      `json:"suites,omitempty" yaml:"suites,omitempty"`
	SpecFile        string        `json:"specFile,omitempty" yaml:"specFile,omitempty"`
	Report          string        `json:"report,omitempty" yaml:"report,omitempty"`
	NoReport        *bool         `json:"noReport,omitempty" yaml:"noReport,omitempty"`
	Workers         int           `json:"workers,omitempty" yaml:"workers,omitempty"`
	CaseConcurrency int           `json:"caseConcurrency,omitempty" yaml:"caseConcurrency,omitempty"`
	Timeout         string        `json:"timeout,omitempty" yaml:"timeout,omitempty"`       // per case, e.g. "60s"; "0" disables
	RunTimeout      string        `json:"runTimeout,omitempty" yaml:"runTimeout,omitempty"` // whole run; "0" disables
	LaunchRate      float64       `json:"launchRate,omitempty" yaml:"launchRate,omitempty"` // process launches per second
	Output          string        `json:"output,omitempty" yaml:"output,omitempty"`
	OutputFile      string        `json:"outputFile,omitempty" yaml:"outputFile,omitempty"`
	Run             []string      `json:"run,omitempty" yaml:"run,omitempty"`
	Skip            []string      `json:"skip,omitempty" yaml:"skip,omitempty"`
	RecordFailures  string        `json:"recordFailures,omitempty" yaml:"recordFailures,omitempty"`
	Verbose         int           `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	Quiet           *bool         `json:"quiet,omitempty" yaml:"quiet,omitempty"`
	NoColor         *bool         `json:"noColor,omitempty" yaml:"noColor,omitempty"`
	History         *bool         `json:"history,omitempty" yaml:"history,omitempty"`
	HistoryDB       string        `json:"historyDB,omitempty" yaml:"historyDB,omitempty"`
	Metrics         []string      `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	MetricsFile     string        `json:"metricsFile,omitempty" yaml:"metricsFile,omitempty"`
	Notify          *NotifyConfig `json:"notify,omitempty" yaml:"notify,omitempty"`
}

// NotifyConfig configures chat notifications
type NotifyConfig struct {
	Channels     []string `json:"channels,omitempty" yaml:"channels,omitempty"`
	On           string   `json:"on,omitempty" yaml:"on,omitempty"`
	SlackWebhook string   `json:"slackWebhook,omitempty" yaml:"slackWebhook,omitempty"`
	SlackChannel string   `json:"slackChannel,omitempty" yaml:"slackChannel,omitempty"`
	TeamsWebhook string   `json:"teamsWebhook,omitempty" yaml:"teamsWebhook,omitempty"`
}

// BoolPtr returns a pointer to a bool value
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetNoReport returns the no report setting, defaulting to false
func (c *Config) GetNoReport() bool {
	return getBool(c.NoReport, false)
}

// GetQuiet returns the quiet setting, defaulting to false
func (c *Config) GetQuiet() bool {
	return getBool(c.Quiet, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// GetHistory returns the history setting, defaulting to false
func (c *Config) GetHistory() bool {
	return getBool(c.History, false)
}

// GetTimeout returns the per-case timeout. Zero disables it.
func (c *Config) GetTimeout() (time.Duration, error) {
	return parseDuration("timeout", c.Timeout, DefaultTimeout)
}

// GetRunTimeout returns the whole-run timeout. Zero disables it.
func (c *Config) GetRunTimeout() (time.Duration, error) {
	return parseDuration("runTimeout", c.RunTimeout, 0)
}

func parseDuration(field, s string, defaultVal time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal, nil
	}
	if s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", field, s)
	}
	return d, nil
}

// Validate checks values that cannot be checked by decoding alone.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.GetTimeout(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.GetRunTimeout(); err != nil {
		errs = append(errs, err)
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative"))
	}
	if c.CaseConcurrency < 0 {
		errs = append(errs, fmt.Errorf("caseConcurrency must not be negative"))
	}
	if c.LaunchRate < 0 {
		errs = append(errs, fmt.Errorf("launchRate must not be negative"))
	}
	return errors.Join(errs...)
}

// ConfigFilenames contains the possible config file names, in search order
var ConfigFilenames = []string{
	".runtests.yaml",
	".runtests.yml",
	"runtests.config.json",
	".runtests.json",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	return DefaultConfig(), nil
}

func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if isYAML(path) {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(config); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(config); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c

	if other.Program != "" {
		result.Program = other.Program
	}
	if len(other.Suites) > 0 {
		result.Suites = other.Suites
	}
	if other.SpecFile != "" {
		result.SpecFile = other.SpecFile
	}
	if other.Report != "" {
		result.Report = other.Report
	}
	if other.Workers > 0 {
		result.Workers = other.Workers
	}
	if other.CaseConcurrency > 0 {
		result.CaseConcurrency = other.CaseConcurrency
	}
	if other.Timeout != "" {
		result.Timeout = other.Timeout
	}
	if other.RunTimeout != "" {
		result.RunTimeout = other.RunTimeout
	}
	if other.LaunchRate > 0 {
		result.LaunchRate = other.LaunchRate
	}
	if other.Output != "" {
		result.Output = other.Output
	}
	if other.OutputFile != "" {
		result.OutputFile = other.OutputFile
	}
	if other.RecordFailures != "" {
		result.RecordFailures = other.RecordFailures
	}
	if other.Verbose > 0 {
		result.Verbose = other.Verbose
	}
	if other.HistoryDB != "" {
		result.HistoryDB = other.HistoryDB
	}
	if other.MetricsFile != "" {
		result.MetricsFile = other.MetricsFile
	}

	// Boolean flags - only override if explicitly set in other config
	if other.NoReport != nil {
		result.NoReport = other.NoReport
	}
	if other.Quiet != nil {
		result.Quiet = other.Quiet
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}
	if other.History != nil {
		result.History = other.History
	}

	if len(other.Run) > 0 {
		result.Run = other.Run
	}
	if len(other.Skip) > 0 {
		result.Skip = other.Skip
	}
	if len(other.Metrics) > 0 {
		result.Metrics = other.Metrics
	}

	if other.Notify != nil {
		result.Notify = c.Notify.merge(other.Notify)
	}

	return &result
}

func (n *NotifyConfig) merge(other *NotifyConfig) *NotifyConfig {
	var result NotifyConfig
	if n != nil {
		result = *n
	}
	if len(other.Channels) > 0 {
		result.Channels = other.Channels
	}
	if other.On != "" {
		result.On = other.On
	}
	if other.SlackWebhook != "" {
		result.SlackWebhook = other.SlackWebhook
	}
	if other.SlackChannel != "" {
		result.SlackChannel = other.SlackChannel
	}
	if other.TeamsWebhook != "" {
		result.TeamsWebhook = other.TeamsWebhook
	}
	return &result
}

// SaveConfig saves the configuration to a file. The format follows the
// file extension.
func (c *Config) SaveConfig(path string) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
