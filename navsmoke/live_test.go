package navsmoke

import (
	"bytes"
	"context"
	"log"
	"net"
	"net/url"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real browser, e.g.
// NAVSMOKE_E2E=1 CDP_URL=http://127.0.0.1:9222 go test -run LiveBrowser ./navsmoke
func TestLiveBrowserSmoke(t *testing.T) {
	if os.Getenv("NAVSMOKE_E2E") == "" {
		t.Skip("set NAVSMOKE_E2E=1 to run")
	}
	baseURL := os.Getenv("CDP_URL")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:9222"
	}
	parsed, err := url.Parse(baseURL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(parsed.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	channel, err := Connect(ctx, nil, host, port)
	if err != nil {
		t.Fatalf("cdp not ready at %s: %v", baseURL, err)
	}
	defer channel.Close()

	var logs bytes.Buffer
	driver, err := NewDriver(DriverConfig{
		Channel:        channel,
		Logger:         log.New(&logs, "", 0),
		CaptureConsole: true,
		Checks: []Check{
			ContainsCheck("has heading", "<h1", false),
			ContainsCheck("has body", "<body", true),
		},
	})
	require.NoError(t, err)

	page := `data:text/html,<html><body><h1 class="x">Editor</h1><script>console.warn("live warning")</script></body></html>`
	report, err := driver.Run(ctx, []Case{
		{Label: "data page", URL: page},
		{Label: "blank", URL: "about:blank"},
	})

	require.NoError(t, err, logs.String())
	require.Len(t, report.Results, 2)
	assert.True(t, report.Results[0].Passed(), "%+v\n%s", report.Results[0], logs.String())
	assert.Contains(t, report.Results[0].Console.Warnings, "live warning")
	assert.Equal(t, StateEvaluated, report.Results[1].State)
}
