package main

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/byteowlz/crawlnode/internal/config"
	"github.com/byteowlz/crawlnode/internal/extractor"
	"github.com/byteowlz/crawlnode/internal/node"
	"github.com/byteowlz/crawlnode/internal/strategy"
)

// Exit codes for granular error handling
const (
	ExitSuccess      = 0
	ExitNetworkError = 1
	ExitProcessError = 2
	ExitInvalidInput = 3
	ExitConfigError  = 4
	ExitFileIOError  = 5
	ExitPartialError = 6 // some items failed, some succeeded
)

var (
	cfgFile         string
	outputFile      string
	itemsFile       string
	file            string
	backendName     string
	cacheMode       string
	sessionID       string
	jsCode          []string
	locale          string
	timezoneID      string
	screenshot      bool
	pdf             bool
	continueOnError bool
	delay           float64
	pretty          bool
	verbose         bool
	quiet           bool

	cfg *config.Config
)

const version = "0.3.0"

var rootCmd = &cobra.Command{
	Use:   "crawlnode",
	Short: "Crawl pages and extract structured data through Crawl4AI",
	Long: `crawlnode crawls web pages through a Crawl4AI server (or locally) and
extracts structured records with CSS selectors or a language model.
Input items come from arguments, a file, stdin or a JSON lines file;
records are written as JSON lines.`,
	Version:           version,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

func main() {
	err := rootCmd.Execute()
	sentry.Flush(2 * time.Second)
	if err != nil {
		var exitErr *exitErr
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		if !quiet {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(ExitInvalidInput)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/crawlnode/config.toml)")
	pf.StringVarP(&outputFile, "output", "o", "", "write records to file (default: stdout)")
	pf.StringVar(&itemsFile, "items", "", "read input items from a JSON lines file")
	pf.StringVarP(&file, "file", "f", "", "read URLs from file (one per line)")
	pf.StringVarP(&backendName, "backend", "B", "", "crawl backend (crawl4ai|local)")
	pf.StringVar(&cacheMode, "cache-mode", "", "service cache mode (enabled|bypass|disabled|read_only|write_only)")
	pf.StringVar(&sessionID, "session-id", "", `browser session id ("auto" = new per item)`)
	pf.StringArrayVar(&jsCode, "js-code", nil, "JavaScript to run in the page before capture (repeatable)")
	pf.StringVar(&locale, "locale", "", `browser locale (e.g. "en-US")`)
	pf.StringVar(&timezoneID, "timezone-id", "", `browser timezone (e.g. "Europe/Berlin")`)
	pf.BoolVar(&screenshot, "screenshot", false, "capture a base64 screenshot per page")
	pf.BoolVar(&pdf, "pdf", false, "capture a base64 PDF per page")
	pf.BoolVar(&continueOnError, "continue-on-error", false, "emit an error record for failed items and keep going")
	pf.Float64Var(&delay, "delay", 0, "delay in seconds between items (rate limiting)")
	pf.BoolVar(&pretty, "pretty", false, "indent JSON output")
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	pf.BoolVarP(&quiet, "quiet", "q", false, "suppress all non-record output")

	rootCmd.AddCommand(crawlCmd, linksCmd, extractCmd, configCmd, healthCmd)
}

// initConfig loads configuration, applies persistent flag overrides and sets
// up logging and error reporting.
func initConfig(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "init" && cmd.Parent() == configCmd {
		setupLogging("info")
		return nil
	}

	setupLogging("info")
	if cfgFile == "" {
		ensureDefaultConfig()
	}

	loaded, err := config.Load(cfgFile)
	if err != nil {
		return exitError(ExitConfigError, "failed to load config: %v", err)
	}
	cfg = loaded

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Service.Backend = backendName
	}
	if flags.Changed("cache-mode") {
		cfg.Crawler.CacheMode = cacheMode
	}
	if flags.Changed("session-id") {
		cfg.Crawler.SessionID = sessionID
	}
	if flags.Changed("js-code") {
		cfg.Crawler.JSCode = jsCode
	}
	if flags.Changed("locale") {
		cfg.Crawler.Locale = locale
	}
	if flags.Changed("timezone-id") {
		cfg.Crawler.TimezoneID = timezoneID
	}
	if flags.Changed("screenshot") {
		cfg.Crawler.Screenshot = screenshot
	}
	if flags.Changed("pdf") {
		cfg.Crawler.PDF = pdf
	}
	if flags.Changed("delay") {
		cfg.Network.Delay = delay
	}
	if flags.Changed("output") {
		cfg.Output.File = outputFile
	}
	if flags.Changed("pretty") {
		cfg.Output.Pretty = pretty
	}
	if flags.Changed("continue-on-error") {
		cfg.Parallel.FailFast = !continueOnError
	}

	setupLogging(cfg.Logging.Level)
	setupSentry(cfg.Logging.SentryDSN)

	if err := cfg.Validate(); err != nil {
		return exitError(ExitConfigError, "invalid config: %v", err)
	}
	return nil
}

// ensureDefaultConfig writes the annotated example config on first run.
func ensureDefaultConfig() {
	path, err := defaultConfigPath()
	if err != nil {
		return
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return
	}
	if err := config.Default().CreateExampleConfig(path); err != nil {
		log.Debug().Err(err).Msg("could not create config file")
		return
	}
	log.Info().Str("path", path).Msg("Created config file")
}

func defaultConfigPath() (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

func setupLogging(levelName string) {
	level, err := zerolog.ParseLevel(levelName)
	if err != nil || levelName == "" {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	if quiet {
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}

func setupSentry(dsn string) {
	if dsn == "" {
		return
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          "crawlnode@" + version,
		AttachStacktrace: true,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialise Sentry")
		return
	}
	log.Debug().Msg("Sentry initialised")
}

// reportItemError sends a failed item to Sentry when it is configured.
func reportItemError(item node.Item, err error) {
	if sentry.CurrentHub().Client() == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("item", fmt.Sprint(item.Index))
		if u, ok := item.JSON["url"].(string); ok {
			scope.SetTag("url", u)
		}
		sentry.CaptureException(err)
	})
}

// exitCodeFor maps an item error to the exit code table.
func exitCodeFor(err error) int {
	var httpErr *extractor.HTTPError
	var urlErr *url.Error
	var netErr net.Error
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, strategy.ErrConfig):
		return ExitConfigError
	case errors.As(err, &httpErr),
		errors.As(err, &urlErr),
		errors.As(err, &netErr),
		errors.Is(err, extractor.ErrUnavailable),
		errors.Is(err, node.ErrCrawlFailed):
		return ExitNetworkError
	default:
		return ExitProcessError
	}
}

type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string {
	return e.msg
}

func exitError(code int, format string, args ...interface{}) *exitErr {
	msg := fmt.Sprintf(format, args...)
	if msg != "" && !quiet {
		log.Error().Msg(msg)
	}
	return &exitErr{code: code, msg: msg}
}
