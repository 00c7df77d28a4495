package config

import "time"

const (
	// DefaultTimeout is the per-case deadline
	DefaultTimeout = 60 * time.Second
	// DefaultReport is the report file written in the invocation directory
	DefaultReport = "test_reports.json"
	// DefaultSpecFile is the specification file name inside a suite
	DefaultSpecFile = "runtests.csv"
	// DefaultOutput is the output format
	DefaultOutput = "console"
)

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		SpecFile:        DefaultSpecFile,
		Report:          DefaultReport,
		NoReport:        BoolPtr(false),
		CaseConcurrency: 1,
		Timeout:         DefaultTimeout.String(),
		Output:          DefaultOutput,
		Quiet:           BoolPtr(false),
		NoColor:         BoolPtr(false),
		History:         BoolPtr(false),
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.Program == "" &&
		len(c.Suites) == 0 &&
		c.SpecFile == defaults.SpecFile &&
		c.Report == defaults.Report &&
		c.GetNoReport() == defaults.GetNoReport() &&
		c.Workers == defaults.Workers &&
		c.CaseConcurrency == defaults.CaseConcurrency &&
		c.Timeout == defaults.Timeout &&
		c.RunTimeout == defaults.RunTimeout &&
		c.LaunchRate == defaults.LaunchRate &&
		c.Output == defaults.Output &&
		len(c.Run) == 0 &&
		len(c.Skip) == 0 &&
		c.Verbose == defaults.Verbose &&
		c.GetQuiet() == defaults.GetQuiet() &&
		c.GetNoColor() == defaults.GetNoColor() &&
		c.GetHistory() == defaults.GetHistory() &&
		len(c.Metrics) == 0 &&
		c.Notify == nil
}
