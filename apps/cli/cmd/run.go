package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/runtests/packages/core/config"
	"github.com/abdul-hamid-achik/runtests/packages/core/runner"
	"github.com/abdul-hamid-achik/runtests/packages/export/metrics"
	"github.com/abdul-hamid-achik/runtests/packages/history"
	"github.com/abdul-hamid-achik/runtests/packages/notify"
	"github.com/abdul-hamid-achik/runtests/packages/output"
	"github.com/abdul-hamid-achik/runtests/packages/report"
	"github.com/abdul-hamid-achik/runtests/packages/snapshot"
)

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	configFlag          string
	specFileFlag        string
	workersFlag         int
	caseConcurrencyFlag int
	timeoutFlag         string
	runTimeoutFlag      string
	launchRateFlag      float64
	reportFlag          string
	noReportFlag        bool
	outputFlag          string
	outputFileFlag      string
	verboseFlag         int // 0=warnings, 1=-v, 2=-vv
	quietFlag           bool
	noColorFlag         bool
	runFlag             runner.PatternList
	skipFlag            runner.PatternList
	recordFailuresFlag  string
	updateExpectedFlag  bool
	watchFlag           bool

	// History flags
	historyFlag   bool
	historyDBFlag string

	// Metrics flags
	metricsFlag        string
	metricsFileFlag    string
	prometheusFileFlag string
	datadogAPIKeyFlag  string
	datadogSiteFlag    string
	datadogTagsFlag    string

	// Notification flags
	notifyFlag       string
	notifyOnFlag     string
	slackWebhookFlag string
	slackChannelFlag string
	teamsWebhookFlag string
)

// flagEnv names the environment variable backing each flag that can also be
// set in a config file.
var flagEnv = map[string]string{
	"spec-file":        "RUNTESTS_SPEC_FILE",
	"no-color":         "RUNTESTS_NO_COLOR",
	"workers":          "RUNTESTS_WORKERS",
	"case-concurrency": "RUNTESTS_CASE_CONCURRENCY",
	"timeout":          "RUNTESTS_TIMEOUT",
	"run-timeout":      "RUNTESTS_RUN_TIMEOUT",
	"launch-rate":      "RUNTESTS_LAUNCH_RATE",
	"report":           "RUNTESTS_REPORT",
	"no-report":        "RUNTESTS_NO_REPORT",
	"output":           "RUNTESTS_OUTPUT",
	"output-file":      "RUNTESTS_OUTPUT_FILE",
	"quiet":            "RUNTESTS_QUIET",
	"record-failures":  "RUNTESTS_RECORD_FAILURES",
	"history":          "RUNTESTS_HISTORY",
	"history-db":       "RUNTESTS_HISTORY_DB",
	"metrics":          "RUNTESTS_METRICS",
	"metrics-file":     "RUNTESTS_METRICS_FILE",
	"notify":           "RUNTESTS_NOTIFY",
	"notify-on":        "RUNTESTS_NOTIFY_ON",
	"slack-webhook":    "SLACK_WEBHOOK",
	"slack-channel":    "SLACK_CHANNEL",
	"teams-webhook":    "TEAMS_WEBHOOK",
}

func init() {
	flags := rootCmd.Flags()

	// Execution flags
	flags.IntVarP(&workersFlag, "workers", "j", getEnvInt("RUNTESTS_WORKERS", 0), "Number of suites run at once, 0 for one per CPU (env: RUNTESTS_WORKERS)")
	flags.IntVar(&caseConcurrencyFlag, "case-concurrency", getEnvInt("RUNTESTS_CASE_CONCURRENCY", 1), "Number of cases of one suite run at once (env: RUNTESTS_CASE_CONCURRENCY)")
	flags.StringVar(&timeoutFlag, "timeout", getEnvString("RUNTESTS_TIMEOUT", config.DefaultTimeout.String()), "Per-case timeout, 0 disables (env: RUNTESTS_TIMEOUT)")
	flags.StringVar(&runTimeoutFlag, "run-timeout", getEnvString("RUNTESTS_RUN_TIMEOUT", ""), "Timeout for the whole run (env: RUNTESTS_RUN_TIMEOUT)")
	flags.Float64Var(&launchRateFlag, "launch-rate", getEnvFloat("RUNTESTS_LAUNCH_RATE", 0), "Maximum program launches per second, 0 for unlimited (env: RUNTESTS_LAUNCH_RATE)")
	flags.Var(&runFlag, "run", "Run only cases whose id matches this regex (repeatable)")
	flags.Var(&skipFlag, "skip", "Skip cases whose id matches this regex (repeatable)")
	flags.BoolVarP(&watchFlag, "watch", "w", false, "Watch suites and the program for changes and re-run")
	flags.BoolVar(&updateExpectedFlag, "update-expected", false, "Rewrite the expected output of cases whose stdout differs")

	// Output flags
	flags.StringVar(&reportFlag, "report", getEnvString("RUNTESTS_REPORT", config.DefaultReport), "Report file path (env: RUNTESTS_REPORT)")
	flags.BoolVar(&noReportFlag, "no-report", getEnvBool("RUNTESTS_NO_REPORT", false), "Do not write the report file (env: RUNTESTS_NO_REPORT)")
	flags.StringVarP(&outputFlag, "output", "o", getEnvString("RUNTESTS_OUTPUT", config.DefaultOutput), "Output format: "+strings.Join(output.Formats, ", ")+" (env: RUNTESTS_OUTPUT)")
	flags.StringVar(&outputFileFlag, "output-file", getEnvString("RUNTESTS_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: RUNTESTS_OUTPUT_FILE)")
	flags.CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v, -vv for more detail)")
	flags.BoolVarP(&quietFlag, "quiet", "q", getEnvBool("RUNTESTS_QUIET", false), "Suppress console output except errors (env: RUNTESTS_QUIET)")
	flags.StringVar(&recordFailuresFlag, "record-failures", getEnvString("RUNTESTS_RECORD_FAILURES", ""), "Write the failed cases, one suite::id per line, to this file (env: RUNTESTS_RECORD_FAILURES)")

	// History flags
	flags.BoolVar(&historyFlag, "history", getEnvBool("RUNTESTS_HISTORY", false), "Record the run in the history database (env: RUNTESTS_HISTORY)")
	flags.StringVar(&historyDBFlag, "history-db", getEnvString("RUNTESTS_HISTORY_DB", history.DefaultPath), "History database path (env: RUNTESTS_HISTORY_DB)")

	// Metrics flags
	flags.StringVar(&metricsFlag, "metrics", getEnvString("RUNTESTS_METRICS", ""), "Metrics export formats: prometheus, json, datadog (env: RUNTESTS_METRICS)")
	flags.StringVar(&metricsFileFlag, "metrics-file", getEnvString("RUNTESTS_METRICS_FILE", ""), "Output file for JSON metrics (env: RUNTESTS_METRICS_FILE)")
	flags.StringVar(&prometheusFileFlag, "prometheus-file", getEnvString("RUNTESTS_PROMETHEUS_FILE", ""), "Textfile collector file for Prometheus metrics (env: RUNTESTS_PROMETHEUS_FILE)")
	flags.StringVar(&datadogAPIKeyFlag, "datadog-api-key", getEnvString("DD_API_KEY", ""), "DataDog API key (env: DD_API_KEY)")
	flags.StringVar(&datadogSiteFlag, "datadog-site", getEnvString("DD_SITE", "datadoghq.com"), "DataDog site (env: DD_SITE)")
	flags.StringVar(&datadogTagsFlag, "datadog-tags", getEnvString("DD_TAGS", ""), "Comma-separated DataDog tags (env: DD_TAGS)")

	// Notification flags
	flags.StringVar(&notifyFlag, "notify", getEnvString("RUNTESTS_NOTIFY", ""), "Notification services: slack, teams (env: RUNTESTS_NOTIFY)")
	flags.StringVar(&notifyOnFlag, "notify-on", getEnvString("RUNTESTS_NOTIFY_ON", string(notify.NotifyFailure)), "When to notify: always, failure, success, recovery (env: RUNTESTS_NOTIFY_ON)")
	flags.StringVar(&slackWebhookFlag, "slack-webhook", getEnvString("SLACK_WEBHOOK", ""), "Slack webhook URL (env: SLACK_WEBHOOK)")
	flags.StringVar(&slackChannelFlag, "slack-channel", getEnvString("SLACK_CHANNEL", ""), "Slack channel override (env: SLACK_CHANNEL)")
	flags.StringVar(&teamsWebhookFlag, "teams-webhook", getEnvString("TEAMS_WEBHOOK", ""), "Microsoft Teams webhook URL (env: TEAMS_WEBHOOK)")
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// isSet reports whether a flag was given on the command line or through its
// environment variable.
func isSet(cmd *cobra.Command, name string) bool {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		return true
	}
	if key, ok := flagEnv[name]; ok {
		return os.Getenv(key) != ""
	}
	return false
}

// applyNumericFlags copies numeric flags onto cfg whenever they were set,
// including zero and negative values that Merge treats as unset.
func applyNumericFlags(cmd *cobra.Command, cfg *config.Config) {
	if isSet(cmd, "workers") {
		cfg.Workers = workersFlag
	}
	if isSet(cmd, "case-concurrency") {
		cfg.CaseConcurrency = caseConcurrencyFlag
	}
	if isSet(cmd, "launch-rate") {
		cfg.LaunchRate = launchRateFlag
	}
}

// flagOverrides returns a config holding only the values set by flags.
func flagOverrides(cmd *cobra.Command) *config.Config {
	o := &config.Config{}
	if isSet(cmd, "spec-file") {
		o.SpecFile = specFileFlag
	}
	if isSet(cmd, "timeout") {
		o.Timeout = timeoutFlag
	}
	if isSet(cmd, "run-timeout") {
		o.RunTimeout = runTimeoutFlag
	}
	if isSet(cmd, "report") {
		o.Report = reportFlag
	}
	if isSet(cmd, "no-report") {
		o.NoReport = config.BoolPtr(noReportFlag)
	}
	if isSet(cmd, "output") {
		o.Output = outputFlag
	}
	if isSet(cmd, "output-file") {
		o.OutputFile = outputFileFlag
	}
	if isSet(cmd, "verbose") {
		o.Verbose = verboseFlag
	}
	if isSet(cmd, "quiet") {
		o.Quiet = config.BoolPtr(quietFlag)
	}
	if isSet(cmd, "no-color") {
		o.NoColor = config.BoolPtr(noColorFlag)
	}
	if isSet(cmd, "run") {
		o.Run = patternStrings(runFlag)
	}
	if isSet(cmd, "skip") {
		o.Skip = patternStrings(skipFlag)
	}
	if isSet(cmd, "record-failures") {
		o.RecordFailures = recordFailuresFlag
	}
	if isSet(cmd, "history") {
		o.History = config.BoolPtr(historyFlag)
	}
	if isSet(cmd, "history-db") {
		o.HistoryDB = historyDBFlag
	}
	if isSet(cmd, "metrics") {
		o.Metrics = splitList(metricsFlag)
	}
	if isSet(cmd, "metrics-file") {
		o.MetricsFile = metricsFileFlag
	}

	n := &config.NotifyConfig{}
	if isSet(cmd, "notify") {
		n.Channels = splitList(notifyFlag)
	}
	if isSet(cmd, "notify-on") {
		n.On = notifyOnFlag
	}
	if isSet(cmd, "slack-webhook") {
		n.SlackWebhook = slackWebhookFlag
	}
	if isSet(cmd, "slack-channel") {
		n.SlackChannel = slackChannelFlag
	}
	if isSet(cmd, "teams-webhook") {
		n.TeamsWebhook = teamsWebhookFlag
	}
	if len(n.Channels) > 0 || n.On != "" || n.SlackWebhook != "" || n.SlackChannel != "" || n.TeamsWebhook != "" {
		o.Notify = n
	}

	return o
}

func patternStrings(l runner.PatternList) []string {
	ss := make([]string, 0, len(l))
	for _, p := range l {
		ss = append(ss, p.String())
	}
	return ss
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// runSettings is everything a run needs once flags, config and arguments
// have been reconciled.
type runSettings struct {
	cfg        *config.Config
	program    string
	suites     []string
	timeout    time.Duration
	runTimeout time.Duration
	filters    runner.RegexFilters
	notifyOn   notify.NotifyOn
}

func resolveSettings(cmd *cobra.Command, args []string) (*runSettings, error) {
	fileConfig, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, configError(fmt.Errorf("loading config: %w", err))
	}
	cfg := fileConfig.Merge(flagOverrides(cmd))
	applyNumericFlags(cmd, cfg)

	program := cfg.Program
	suites := cfg.Suites
	if len(args) > 0 {
		program = args[0]
		if len(args) > 1 {
			suites = args[1:]
		}
	}
	if program == "" || len(suites) == 0 {
		return nil, usageError(errors.New("requires PROGRAM and at least one suite PATH"))
	}

	s := &runSettings{cfg: cfg}

	s.program, err = resolveProgram(program)
	if err != nil {
		return nil, &ExitError{Code: ExitProgramNotFound, Err: err}
	}

	for _, dir := range suites {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, usageError(fmt.Errorf("suite path %s: %w", dir, err))
		}
		s.suites = append(s.suites, abs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, configError(err)
	}
	s.timeout, _ = cfg.GetTimeout()
	s.runTimeout, _ = cfg.GetRunTimeout()

	if s.filters.MustMatch, err = runner.ParsePatterns(cfg.Run); err != nil {
		return nil, configError(fmt.Errorf("run filter %w", err))
	}
	if s.filters.MustNotMatch, err = runner.ParsePatterns(cfg.Skip); err != nil {
		return nil, configError(fmt.Errorf("skip filter %w", err))
	}

	on := ""
	if cfg.Notify != nil {
		on = cfg.Notify.On
	}
	if s.notifyOn, err = notify.ParseNotifyOn(on); err != nil {
		return nil, configError(err)
	}

	return s, nil
}

// resolveProgram turns PROGRAM into an absolute path. Names with a path
// separator are taken relative to the working directory, others are looked
// up in PATH.
func resolveProgram(name string) (string, error) {
	if !strings.ContainsRune(name, filepath.Separator) && !strings.Contains(name, "/") {
		path, err := exec.LookPath(name)
		if err != nil {
			return "", fmt.Errorf("program %q not found in PATH", name)
		}
		return filepath.Abs(path)
	}

	abs, err := filepath.Abs(name)
	if err != nil {
		return "", fmt.Errorf("program %s: %w", name, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("program %s: %w", name, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("program %s is a directory", name)
	}
	return abs, nil
}

// newLogger writes diagnostics to w. -v shows suite progress, -vv every case.
func newLogger(w io.Writer, verbose int, quiet bool) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case quiet:
		level = slog.LevelError
	case verbose >= 2:
		level = slog.LevelDebug
	case verbose == 1:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// session holds the state shared by the runs of one invocation, so that
// watch mode reuses exporters and notification state.
type session struct {
	settings *runSettings
	runner   *runner.Runner
	log      *slog.Logger
	out      io.Writer
	status   io.Writer
	metrics  *metrics.Collector
	notifier *notify.Manager
}

func newSession(cmd *cobra.Command, s *runSettings, out io.Writer) (*session, error) {
	cfg := s.cfg
	log := newLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.GetQuiet())

	sess := &session{
		settings: s,
		log:      log,
		out:      out,
		status:   cmd.ErrOrStderr(),
		runner: runner.NewRunner(&runner.Config{
			Program:         s.program,
			SpecFile:        cfg.SpecFile,
			Workers:         cfg.Workers,
			CaseConcurrency: cfg.CaseConcurrency,
			Timeout:         s.timeout,
			RunTimeout:      s.runTimeout,
			LaunchRate:      cfg.LaunchRate,
			Filters:         s.filters,
			Logger:          log,
		}),
	}

	if _, err := output.New(cfg.Output, io.Discard, output.Options{}); err != nil {
		return nil, configError(err)
	}

	collector, err := buildMetrics(cmd, cfg)
	if err != nil {
		return nil, configError(err)
	}
	sess.metrics = collector

	manager, err := buildNotifier(cfg.Notify, s.notifyOn)
	if err != nil {
		return nil, configError(err)
	}
	sess.notifier = manager

	return sess, nil
}

func buildMetrics(cmd *cobra.Command, cfg *config.Config) (*metrics.Collector, error) {
	var exporters []metrics.Exporter
	for _, format := range cfg.Metrics {
		switch strings.ToLower(format) {
		case "prometheus":
			opts := []metrics.PrometheusOption{}
			if prometheusFileFlag != "" {
				opts = append(opts, metrics.WithPrometheusFile(prometheusFileFlag))
			} else {
				opts = append(opts, metrics.WithPrometheusWriter(cmd.ErrOrStderr()))
			}
			exporters = append(exporters, metrics.NewPrometheusExporter(opts...))

		case "json":
			opts := []metrics.JSONOption{}
			if cfg.MetricsFile != "" {
				opts = append(opts, metrics.WithJSONFile(cfg.MetricsFile))
			} else {
				opts = append(opts, metrics.WithJSONWriter(cmd.ErrOrStderr()))
			}
			exporters = append(exporters, metrics.NewJSONExporter(opts...))

		case "datadog":
			opts := []metrics.DataDogOption{metrics.WithDataDogSite(datadogSiteFlag)}
			if datadogAPIKeyFlag != "" {
				opts = append(opts, metrics.WithDataDogAPIKey(datadogAPIKeyFlag))
			}
			if datadogTagsFlag != "" {
				opts = append(opts, metrics.WithDataDogTags(splitList(datadogTagsFlag)))
			}
			exporters = append(exporters, metrics.NewDataDogExporter(opts...))

		default:
			return nil, fmt.Errorf("unknown metrics format %q (want prometheus, json or datadog)", format)
		}
	}
	if len(exporters) == 0 {
		return nil, nil
	}
	return metrics.NewCollector(exporters...), nil
}

func buildNotifier(n *config.NotifyConfig, on notify.NotifyOn) (*notify.Manager, error) {
	if n == nil || len(n.Channels) == 0 {
		return nil, nil
	}

	manager := notify.NewManager(on)
	for _, service := range n.Channels {
		switch strings.ToLower(service) {
		case "slack":
			if n.SlackWebhook == "" {
				return nil, fmt.Errorf("--slack-webhook is required when using --notify slack")
			}
			slackOpts := []notify.SlackOption{}
			if n.SlackChannel != "" {
				slackOpts = append(slackOpts, notify.WithSlackChannel(n.SlackChannel))
			}
			manager.AddNotifier(notify.NewSlackNotifier(n.SlackWebhook, slackOpts...))

		case "teams":
			if n.TeamsWebhook == "" {
				return nil, fmt.Errorf("--teams-webhook is required when using --notify teams")
			}
			manager.AddNotifier(notify.NewTeamsNotifier(n.TeamsWebhook))

		default:
			return nil, fmt.Errorf("unknown notification service %q (want slack or teams)", service)
		}
	}
	return manager, nil
}

func (s *session) close() {
	if s.metrics != nil {
		if err := s.metrics.Close(); err != nil {
			s.log.Warn("Closing metrics exporters failed", "err", err)
		}
	}
}

// runOnce runs every suite, renders the results and writes the report. The
// error carries the exit code of the run.
func (s *session) runOnce(ctx context.Context) (*runner.RunResult, error) {
	cfg := s.settings.cfg

	out := s.out
	if cfg.GetQuiet() && (cfg.Output == "" || cfg.Output == "console") && cfg.OutputFile == "" {
		out = io.Discard
	}
	formatter, err := output.New(cfg.Output, out, output.Options{
		Verbose: cfg.Verbose,
		NoColor: cfg.GetNoColor(),
	})
	if err != nil {
		return nil, configError(err)
	}
	formatter.FormatHeader(version)

	runID := uuid.NewString()
	startedAt := time.Now()
	run := s.runner.Run(ctx, s.settings.suites)

	for _, suite := range run.Suites {
		formatter.FormatResult(suite)
	}
	if flushable, ok := formatter.(output.Flushable); ok {
		if err := flushable.Flush(run.Duration); err != nil {
			return run, fmt.Errorf("error writing output: %w", err)
		}
	}

	doc := report.FromRun(run)
	if !cfg.GetNoReport() {
		if err := report.WriteFile(cfg.Report, doc); err != nil {
			return run, &ExitError{Code: ExitReportError, Err: fmt.Errorf("writing report: %w", err)}
		}
		s.log.Info("Report written", "path", cfg.Report)
	}

	if cfg.RecordFailures != "" {
		if err := writeFailures(cfg.RecordFailures, doc.Failures()); err != nil {
			s.log.Warn("Recording failures failed", "path", cfg.RecordFailures, "err", err)
		}
	}

	if updateExpectedFlag {
		updates, err := snapshot.NewManager(false).Apply(run)
		for _, u := range updates {
			fmt.Fprintf(s.status, "Updated: %s (case %s)\n", u.Path, u.ID)
		}
		if err != nil {
			s.log.Warn("Updating expected output failed", "err", err)
		}
	}

	if cfg.GetHistory() {
		if err := s.recordHistory(ctx, runID, startedAt, run); err != nil {
			s.log.Warn("Recording history failed", "err", err)
		}
	}

	if s.metrics != nil {
		if err := s.metrics.Export(metrics.Aggregate(run, runID)); err != nil {
			s.log.Warn("Exporting metrics failed", "err", err)
		}
	}

	if s.notifier != nil {
		if err := s.notifier.Notify(notify.SummaryFromRun(run, runID)); err != nil {
			s.log.Warn("Sending notification failed", "err", err)
		}
	}

	return run, runError(run)
}

func (s *session) recordHistory(ctx context.Context, runID string, startedAt time.Time, run *runner.RunResult) error {
	path := s.settings.cfg.HistoryDB
	if path == "" {
		path = history.DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	// Record even when the run itself was cancelled.
	return store.RecordRun(context.WithoutCancel(ctx), runID, startedAt, run)
}

func writeFailures(path string, failures []string) error {
	var b strings.Builder
	for _, f := range failures {
		b.WriteString(f)
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

// runError maps the outcome of a run to an exit code. Suites that did not
// load take priority over failed cases.
func runError(run *runner.RunResult) error {
	switch {
	case run.LoadErrors > 0:
		return &ExitError{Code: ExitLoadError, Err: fmt.Errorf("%d suite(s) failed to load", run.LoadErrors)}
	case run.Failed > 0:
		return &ExitError{Code: ExitTestFailure, Err: fmt.Errorf("%d case(s) failed", run.Failed)}
	}
	return nil
}

func runCommand(cmd *cobra.Command, args []string) error {
	settings, err := resolveSettings(cmd, args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if settings.cfg.OutputFile != "" {
		f, err := os.Create(settings.cfg.OutputFile)
		if err != nil {
			return configError(fmt.Errorf("cannot create output file: %w", err))
		}
		defer f.Close()
		out = f
	}

	sess, err := newSession(cmd, settings, out)
	if err != nil {
		return err
	}
	defer sess.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = sess.runOnce(ctx)
	if !watchFlag {
		return err
	}

	return sess.watch(ctx, err)
}

// watch re-runs every suite when a suite directory or the program changes,
// until ctx is cancelled. It returns the error of the last run.
func (s *session) watch(ctx context.Context, lastErr error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	for _, path := range watchPaths(s.settings) {
		if err := watcher.Add(path); err != nil {
			s.log.Warn("Cannot watch path", "path", path, "err", err)
		}
	}

	fmt.Fprintf(s.status, "\nWatching for changes... (press Ctrl+C to stop)\n")

	// Debounce: every event restarts the timer
	debounce := time.NewTimer(WatchDebounceDelay)
	debounce.Stop()
	var changed string

	for {
		select {
		case <-ctx.Done():
			return lastErr

		case event, ok := <-watcher.Events:
			if !ok {
				return lastErr
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if s.isOwnOutput(event.Name) {
				continue
			}
			changed = event.Name
			debounce.Reset(WatchDebounceDelay)

		case <-debounce.C:
			fmt.Fprintf(s.status, "\nFile changed: %s\nRe-running tests...\n", changed)
			_, lastErr = s.runOnce(ctx)
			fmt.Fprintf(s.status, "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return lastErr
			}
			s.log.Warn("Watcher error", "err", err)
		}
	}
}

// watchPaths returns the suite directories and the directory of the program.
func watchPaths(s *runSettings) []string {
	seen := make(map[string]bool)
	var paths []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}
	for _, dir := range s.suites {
		add(dir)
	}
	add(filepath.Dir(s.program))
	return paths
}

// isOwnOutput reports whether path is a file this process writes, which
// would otherwise trigger endless re-runs.
func (s *session) isOwnOutput(path string) bool {
	cfg := s.settings.cfg
	for _, own := range []string{cfg.Report, cfg.OutputFile, cfg.RecordFailures, cfg.MetricsFile, cfg.HistoryDB} {
		if own == "" {
			continue
		}
		abs, err := filepath.Abs(own)
		if err == nil && (abs == path || strings.HasPrefix(path, abs+"-")) {
			return true
		}
	}
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && strings.Contains(base, filepath.Base(cfg.Report))
}
