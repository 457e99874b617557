package navsmoke

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const rule = "=================================================="

// Reporter prints human-readable progress. It implements Observer.
type Reporter struct {
	out     io.Writer
	okStyle lipgloss.Style
	ngStyle lipgloss.Style
	warn    lipgloss.Style
	title   lipgloss.Style
	dim     lipgloss.Style
}

func NewReporter(out io.Writer) *Reporter {
	r := lipgloss.NewRenderer(out)
	return &Reporter{
		out:     out,
		okStyle: r.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		ngStyle: r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		warn:    r.NewStyle().Foreground(lipgloss.Color("11")),
		title:   r.NewStyle().Bold(true),
		dim:     r.NewStyle().Faint(true),
	}
}

func (r *Reporter) Connected(wsURL string) {
	shown := wsURL
	if len(shown) > 50 {
		shown = shown[:50] + "..."
	}
	fmt.Fprintln(r.out, "Connected to DevTools")
	fmt.Fprintf(r.out, "WebSocket URL: %s\n", r.dim.Render(shown))
	fmt.Fprintln(r.out, "Starting tests...")
}

func (r *Reporter) CaseStarted(index int, tc Case) {
	fmt.Fprintf(r.out, "\n%s\n", rule)
	fmt.Fprintf(r.out, "%s %s\n", r.title.Render(fmt.Sprintf("Test %d:", index+1)), tc.Label)
	fmt.Fprintf(r.out, "URL: %s\n", tc.URL)
	fmt.Fprintln(r.out, rule)
}

func (r *Reporter) CaseFinished(result CaseResult) {
	switch {
	case result.State == StateTimedOut:
		fmt.Fprintf(r.out, "  %s page load timed out after %d attempts\n", r.warn.Render("[!]"), result.LoadAttempts)
	case result.Err != nil:
		fmt.Fprintf(r.out, "  %s test failed: %v\n", r.ngStyle.Render("[X]"), result.Err)
	}
	for _, check := range result.Checks {
		fmt.Fprintf(r.out, "  %s %s\n", r.mark(check.Passed), check.Name)
	}
	if n := len(result.Console.Errors); n > 0 {
		fmt.Fprintf(r.out, "  %s %d console errors\n", r.mark(!result.ConsoleFailed), n)
		for _, text := range result.Console.Errors {
			fmt.Fprintf(r.out, "     - %s\n", text)
		}
	}
	if n := len(result.Console.Warnings); n > 0 {
		fmt.Fprintf(r.out, "  %s %d console warnings\n", r.warn.Render("[!]"), n)
		for _, text := range result.Console.Warnings {
			fmt.Fprintf(r.out, "     - %s\n", text)
		}
	}
	if result.Screenshot != "" {
		fmt.Fprintf(r.out, "  screenshot: %s\n", result.Screenshot)
	}
}

// Summary prints totals and the failing cases.
func (r *Reporter) Summary(report Report) {
	fmt.Fprintf(r.out, "\n%s\n", rule)
	fmt.Fprintf(r.out, "Tests complete: %d cases, %d passed, %d failed\n", len(report.Results), report.Passed(), report.Failed())
	for _, result := range report.Results {
		if result.Passed() {
			continue
		}
		fmt.Fprintf(r.out, "  %s %s: %s\n", r.ngStyle.Render("[X]"), result.Label, failureSummary(result))
	}
	if !report.ConsoleCaptured {
		return
	}
	errs, warnings := report.ConsoleTotals()
	fmt.Fprintf(r.out, "Console: %d errors, %d warnings\n", errs, warnings)
	for _, result := range report.Results {
		if result.Console.Empty() {
			continue
		}
		fmt.Fprintf(r.out, "  %s %s: %d errors, %d warnings\n", r.warn.Render("[!]"), result.Label, len(result.Console.Errors), len(result.Console.Warnings))
	}
}

// Fatal prints a run-level error.
func (r *Reporter) Fatal(err error) {
	msg := err.Error()
	switch {
	case errors.Is(err, ErrDialFailed):
		msg = "Could not open WebSocket: " + msg
	case errors.Is(err, ErrChannelClosed):
		msg = "WebSocket connection closed: " + msg
	case errors.Is(err, ErrDiscoveryUnreachable):
		msg += "\nStart the browser with remote debugging enabled, for example:\n  google-chrome --remote-debugging-port=9222"
	}
	fmt.Fprintf(r.out, "\n%s %s\n", r.ngStyle.Render("Error:"), strings.TrimSpace(msg))
}

func (r *Reporter) mark(ok bool) string {
	if ok {
		return r.okStyle.Render("[OK]")
	}
	return r.ngStyle.Render("[X]")
}
