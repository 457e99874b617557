package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"navsmoke/navsmoke"
)

var errCasesFailed = errors.New("cases failed")

type options struct {
	configPath     string
	host           string
	port           int
	attempts       int
	pause          time.Duration
	receiveTimeout time.Duration
	targetFilter   string
	console        bool
	consoleFail    bool
	screenshots    string
	strict         bool
	urls           []string
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "navsmoke",
		Short: "Smoke-test pages through the Chrome DevTools Protocol",
		Long: `Attach to a browser started with --remote-debugging-port, visit each
configured URL in the first page tab and check that it rendered.

Examples:
  navsmoke
  navsmoke --config smoke.yaml --strict
  navsmoke --url "Home=http://localhost:3000/" --console --screenshots ./artifacts`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				return err
			}
			return run(cmd.Context(), cfg, opts.strict)
		},
	}

	bindFlags(cmd, &opts)
	return cmd
}

func bindFlags(cmd *cobra.Command, opts *options) {
	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "YAML config file")
	flags.StringVar(&opts.host, "host", navsmoke.DefaultHost, "DevTools host (env CDP_HOST)")
	flags.IntVar(&opts.port, "port", navsmoke.DefaultPort, "DevTools port (env CDP_PORT)")
	flags.IntVar(&opts.attempts, "attempts", navsmoke.DefaultAttemptCeiling, "receive attempts while waiting for the load event")
	flags.DurationVar(&opts.pause, "pause", navsmoke.DefaultInterCyclePause, "pause between cases")
	flags.DurationVar(&opts.receiveTimeout, "receive-timeout", 0, "bound on a single receive (0 waits forever)")
	flags.StringVar(&opts.targetFilter, "target", "", "only use a page whose URL contains this")
	flags.BoolVar(&opts.console, "console", false, "collect console errors and warnings")
	flags.BoolVar(&opts.consoleFail, "console-fail", false, "fail cases that log console errors (implies --console)")
	flags.StringVar(&opts.screenshots, "screenshots", "", "directory for screenshots of failed cases")
	flags.BoolVar(&opts.strict, "strict", false, "exit non-zero when any case fails")
	flags.StringArrayVar(&opts.urls, "url", nil, "case as label=url or url; repeatable, replaces configured cases")
}

func buildConfig(cmd *cobra.Command, opts options) (navsmoke.Config, error) {
	cfg := navsmoke.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := navsmoke.LoadConfig(opts.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if host := os.Getenv("CDP_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("CDP_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return cfg, fmt.Errorf("CDP_PORT: %w", err)
		}
		cfg.Port = p
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Host = opts.host
	}
	if flags.Changed("port") {
		cfg.Port = opts.port
	}
	if flags.Changed("attempts") {
		cfg.AttemptCeiling = opts.attempts
	}
	if flags.Changed("pause") {
		cfg.InterCyclePause = opts.pause
	}
	if flags.Changed("receive-timeout") {
		cfg.ReceiveTimeout = opts.receiveTimeout
	}
	if flags.Changed("target") {
		cfg.TargetFilter = opts.targetFilter
	}
	if opts.console || opts.consoleFail {
		cfg.CaptureConsole = true
	}
	if opts.consoleFail {
		cfg.ConsoleErrorsFail = true
	}
	if opts.screenshots != "" {
		cfg.ScreenshotDir = opts.screenshots
	}
	if len(opts.urls) > 0 {
		cfg.Cases = parseURLCases(opts.urls)
	}
	return cfg, cfg.Validate()
}

func parseURLCases(values []string) []navsmoke.Case {
	cases := make([]navsmoke.Case, 0, len(values))
	for _, value := range values {
		label, url, ok := strings.Cut(value, "=")
		if !ok || strings.Contains(label, "://") {
			label, url = value, value
		}
		cases = append(cases, navsmoke.Case{Label: label, URL: url})
	}
	return cases
}

func run(parent context.Context, cfg navsmoke.Config, strict bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reporter := navsmoke.NewReporter(os.Stdout)
	logger := log.New(os.Stdout, "", log.LstdFlags)
	runID := uuid.NewString()

	locator := navsmoke.NewLocator()
	locator.URLFilter = cfg.TargetFilter
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	channel, err := navsmoke.Connect(connectCtx, locator, cfg.Host, cfg.Port)
	cancel()
	if err != nil {
		reporter.Fatal(err)
		return err
	}
	defer func() {
		if err := channel.Close(); err != nil {
			logger.Printf("close failed: %v", err)
		}
	}()
	channel.ReceiveTimeout = cfg.ReceiveTimeout
	reporter.Connected(channel.URL())

	var artifacts *navsmoke.ArtifactStore
	if cfg.ScreenshotDir != "" {
		artifacts, err = navsmoke.NewArtifactStore(cfg.ScreenshotDir, runID)
		if err != nil {
			reporter.Fatal(err)
			return err
		}
	}

	driver, err := navsmoke.NewDriver(navsmoke.DriverConfig{
		Channel:            channel,
		Checks:             cfg.Checks(),
		AttemptCeiling:     cfg.AttemptCeiling,
		InterCyclePause:    cfg.InterCyclePause,
		Logger:             logger,
		CaptureConsole:     cfg.CaptureConsole,
		ConsoleErrorsFail:  cfg.ConsoleErrorsFail,
		ConsoleIgnore:      cfg.ConsoleIgnore,
		Artifacts:          artifacts,
		ScreenshotMaxWidth: cfg.ScreenshotMaxWidth,
		Observer:           reporter,
		RunID:              runID,
	})
	if err != nil {
		reporter.Fatal(err)
		return err
	}

	report, err := driver.Run(ctx, cfg.ResolvedCases())
	reporter.Summary(report)
	if err != nil {
		reporter.Fatal(err)
		return err
	}
	if strict && report.Failed() > 0 {
		return fmt.Errorf("%w: %d of %d", errCasesFailed, report.Failed(), len(report.Results))
	}
	return nil
}
