package navsmoke

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// CycleState is the position of a navigation cycle in its exchange.
type CycleState int

const (
	StateIdle CycleState = iota
	StateAwaitingEnableAck
	StateAwaitingNavigateAck
	StateLoaded
	StateEvaluated
	StateTimedOut
)

func (s CycleState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingEnableAck:
		return "awaiting-enable-ack"
	case StateAwaitingNavigateAck:
		return "awaiting-navigate-ack"
	case StateLoaded:
		return "loaded"
	case StateEvaluated:
		return "evaluated"
	case StateTimedOut:
		return "timed-out"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// CaseResult is the outcome of one navigation cycle.
type CaseResult struct {
	Index         int
	Label         string
	URL           string
	State         CycleState
	LoadAttempts  int
	Checks        []CheckResult
	Console       ConsoleFindings
	ConsoleFailed bool
	Screenshot    string
	Err           error
	Duration      time.Duration
}

func (r CaseResult) Passed() bool {
	if r.Err != nil || r.State != StateEvaluated || r.ConsoleFailed {
		return false
	}
	for _, check := range r.Checks {
		if !check.Passed {
			return false
		}
	}
	return true
}

// FailedChecks returns the names of checks that did not pass.
func (r CaseResult) FailedChecks() []string {
	var names []string
	for _, check := range r.Checks {
		if !check.Passed {
			names = append(names, check.Name)
		}
	}
	return names
}

type Report struct {
	RunID   string
	Results []CaseResult
	// ConsoleCaptured is set when console output was collected for every case.
	ConsoleCaptured bool
}

// ConsoleTotals sums console errors and warnings over all cases.
func (r Report) ConsoleTotals() (errs, warnings int) {
	for _, result := range r.Results {
		errs += len(result.Console.Errors)
		warnings += len(result.Console.Warnings)
	}
	return errs, warnings
}

func (r Report) Passed() int {
	n := 0
	for _, result := range r.Results {
		if result.Passed() {
			n++
		}
	}
	return n
}

func (r Report) Failed() int {
	return len(r.Results) - r.Passed()
}

// Observer is notified as cases start and finish.
type Observer interface {
	CaseStarted(index int, tc Case)
	CaseFinished(result CaseResult)
}

type DriverConfig struct {
	Channel            Channel
	Checks             []Check
	AttemptCeiling     int
	InterCyclePause    time.Duration
	Logger             *log.Logger
	CaptureConsole     bool
	ConsoleErrorsFail  bool
	ConsoleIgnore      []string
	Artifacts          *ArtifactStore
	ScreenshotMaxWidth int
	Observer           Observer
	RunID              string
}

// Driver runs navigation cycles over a single channel. It keeps at most one
// request outstanding, so one expected id stands in for a pending table.
type Driver struct {
	channel            Channel
	checks             []Check
	attemptCeiling     int
	pause              time.Duration
	logger             *log.Logger
	captureConsole     bool
	consoleErrorsFail  bool
	consoleIgnore      []string
	artifacts          *ArtifactStore
	screenshotMaxWidth int
	observer           Observer
	runID              string
	sleep              func(ctx context.Context, d time.Duration) error
}

func NewDriver(cfg DriverConfig) (*Driver, error) {
	if cfg.Channel == nil {
		return nil, errors.New("channel required")
	}
	checks := cfg.Checks
	if len(checks) == 0 {
		checks = DefaultChecks()
	}
	ceiling := cfg.AttemptCeiling
	if ceiling <= 0 {
		ceiling = DefaultAttemptCeiling
	}
	pause := cfg.InterCyclePause
	if pause < 0 {
		pause = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "", log.LstdFlags)
	}
	return &Driver{
		channel:            cfg.Channel,
		checks:             checks,
		attemptCeiling:     ceiling,
		pause:              pause,
		logger:             logger,
		captureConsole:     cfg.CaptureConsole,
		consoleErrorsFail:  cfg.ConsoleErrorsFail,
		consoleIgnore:      cfg.ConsoleIgnore,
		artifacts:          cfg.Artifacts,
		screenshotMaxWidth: cfg.ScreenshotMaxWidth,
		observer:           cfg.Observer,
		runID:              cfg.RunID,
		sleep:              sleepContext,
	}, nil
}

// Run executes cases in order. A failing case is recorded and the loop moves
// on; a closed channel or a cancelled context ends the run and is returned
// together with the results gathered so far.
func (d *Driver) Run(ctx context.Context, cases []Case) (Report, error) {
	report := Report{RunID: d.runID, Results: make([]CaseResult, 0, len(cases)), ConsoleCaptured: d.captureConsole}
	for i, tc := range cases {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if d.observer != nil {
			d.observer.CaseStarted(i, tc)
		}
		result := d.RunCase(ctx, i, tc)
		report.Results = append(report.Results, result)
		if d.observer != nil {
			d.observer.CaseFinished(result)
		}
		if errors.Is(result.Err, ErrChannelClosed) {
			return report, result.Err
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if i == len(cases)-1 {
			break
		}
		if err := d.sleep(ctx, d.pause); err != nil {
			return report, err
		}
	}
	return report, nil
}

// RunCase performs one navigate-and-check cycle. Errors are recorded on the
// result rather than returned.
func (d *Driver) RunCase(ctx context.Context, index int, tc Case) CaseResult {
	start := time.Now()
	result := CaseResult{Index: index, Label: tc.Label, URL: tc.URL, State: StateIdle}
	var console *ConsoleCollector
	if d.captureConsole {
		console = NewConsoleCollector(d.consoleIgnore...)
	}

	html, err := d.cycle(ctx, &result, console)
	if err != nil {
		result.Err = err
	} else {
		result.Checks = EvaluateChecks(d.checks, html)
		result.State = StateEvaluated
	}
	if console != nil {
		for _, msg := range console.Messages() {
			d.logger.Printf("console %s [%s] %s", msg.Source, msg.Level, msg.Text)
		}
		result.Console = console.Findings()
		result.ConsoleFailed = d.consoleErrorsFail && len(result.Console.Errors) > 0
	}
	if d.artifacts != nil && !result.Passed() && !errors.Is(err, ErrChannelClosed) && ctx.Err() == nil {
		d.captureScreenshot(ctx, &result)
	}
	result.Duration = time.Since(start)
	return result
}

func (d *Driver) cycle(ctx context.Context, result *CaseResult, console *ConsoleCollector) (string, error) {
	result.State = StateAwaitingEnableAck
	if _, err := d.call(ctx, NewRequest(idPageEnable, MethodPageEnable, nil), console); err != nil {
		return "", err
	}
	if console != nil {
		if _, err := d.call(ctx, NewRequest(idRuntimeEnable, MethodRuntimeEnable, nil), console); err != nil {
			return "", err
		}
		if _, err := d.call(ctx, NewRequest(idLogEnable, MethodLogEnable, nil), console); err != nil {
			return "", err
		}
	}

	result.State = StateAwaitingNavigateAck
	if err := d.channel.Send(ctx, NavigateRequest(result.URL)); err != nil {
		return "", err
	}
	attempts, err := d.awaitLoad(ctx, console)
	result.LoadAttempts = attempts
	if err != nil {
		if errors.Is(err, ErrNavigationTimeout) {
			result.State = StateTimedOut
		}
		return "", err
	}

	result.State = StateLoaded
	doc, err := d.call(ctx, NewRequest(idGetDocument, MethodGetDocument, map[string]any{"depth": 0}), console)
	if err != nil {
		return "", err
	}
	nodeID := int64(DefaultNodeID)
	if v := gjson.GetBytes(doc, "root.nodeId"); v.Type == gjson.Number {
		nodeID = v.Int()
	}
	outer, err := d.call(ctx, NewRequest(idGetOuterHTML, MethodGetOuterHTML, map[string]any{"nodeId": nodeID}), console)
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(outer, "outerHTML").String(), nil
}

// awaitLoad reads inbound messages until Page.loadEventFired, giving up after
// the attempt ceiling. Error responses and malformed frames are logged and
// counted as attempts; transport failures end the wait.
func (d *Driver) awaitLoad(ctx context.Context, console *ConsoleCollector) (int, error) {
	for attempt := 1; attempt <= d.attemptCeiling; attempt++ {
		in, err := d.channel.Receive(ctx)
		if err != nil {
			if errors.Is(err, ErrProtocol) {
				d.logger.Printf("navigate: %v", err)
				continue
			}
			return attempt, err
		}
		if in.Method() == MethodPageLoadEvent {
			return attempt, nil
		}
		if perr := in.Err(); perr != nil {
			d.logger.Printf("navigate: response %d: %v", in.Response.ID, perr)
			continue
		}
		switch in.Kind {
		case KindEvent:
			if console != nil {
				console.Observe(in.Event)
			}
		case KindResponse:
			if in.Response.ID == idNavigate {
				if text := gjson.GetBytes(in.Response.Result, "errorText"); text.String() != "" {
					d.logger.Printf("navigate: %s", text.String())
				}
			}
		}
	}
	return d.attemptCeiling, fmt.Errorf("%w after %d attempts", ErrNavigationTimeout, d.attemptCeiling)
}

// call sends req and blocks for the response carrying its id. Events and
// responses to other ids arriving first are skipped in order.
func (d *Driver) call(ctx context.Context, req Request, console *ConsoleCollector) (json.RawMessage, error) {
	if err := d.channel.Send(ctx, req); err != nil {
		return nil, err
	}
	for {
		in, err := d.channel.Receive(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", req.Method, err)
		}
		switch in.Kind {
		case KindEvent:
			if console != nil {
				console.Observe(in.Event)
			}
			continue
		case KindResponse:
			if in.Response.ID != req.ID {
				continue
			}
			if in.Response.Error != nil {
				return nil, fmt.Errorf("%s: %w", req.Method, in.Response.Error)
			}
			return in.Response.Result, nil
		}
	}
}

func (d *Driver) captureScreenshot(ctx context.Context, result *CaseResult) {
	raw, err := d.call(ctx, NewRequest(idScreenshot, MethodCaptureScreenshot, map[string]any{"format": "png"}), nil)
	if err != nil {
		d.logger.Printf("screenshot %q: %v", result.Label, err)
		return
	}
	caption := result.Label + ": " + failureSummary(*result)
	data, ext, err := renderScreenshot(gjson.GetBytes(raw, "data").String(), caption, d.screenshotMaxWidth, 0)
	if err != nil {
		d.logger.Printf("screenshot %q: %v", result.Label, err)
		return
	}
	path, err := d.artifacts.WriteFile(caseFileName(result.Index, result.Label, ext), data)
	if err != nil {
		d.logger.Printf("screenshot %q: %v", result.Label, err)
		return
	}
	result.Screenshot = path
}

func failureSummary(result CaseResult) string {
	switch {
	case result.State == StateTimedOut:
		return "load timeout"
	case result.Err != nil:
		return result.Err.Error()
	case result.ConsoleFailed:
		return fmt.Sprintf("%d console errors", len(result.Console.Errors))
	default:
		return "failed " + strings.Join(result.FailedChecks(), ", ")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
