package navsmoke

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hostPort(t *testing.T, server *httptest.Server) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(server.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func listingServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func TestLocateReturnsFirstPage(t *testing.T) {
	server, _ := listingServer(t, http.StatusOK, `[
		{"id":"W1","type":"service_worker","url":"chrome://sw","webSocketDebuggerUrl":"ws://x/devtools/page/W1"},
		{"id":"P1","type":"page","url":"http://localhost:9300/#/","webSocketDebuggerUrl":"ws://x/devtools/page/P1"},
		{"id":"P2","type":"page","url":"about:blank","webSocketDebuggerUrl":"ws://x/devtools/page/P2"}
	]`)
	host, port := hostPort(t, server)

	wsURL, err := NewLocator().Locate(context.Background(), host, port)

	require.NoError(t, err)
	assert.Equal(t, "ws://x/devtools/page/P1", wsURL)
}

func TestLocateFiltersByURL(t *testing.T) {
	server, _ := listingServer(t, http.StatusOK, `[
		{"id":"P1","type":"page","url":"about:blank","webSocketDebuggerUrl":"ws://x/P1"},
		{"id":"P2","type":"page","url":"http://localhost:9300/#/login","webSocketDebuggerUrl":"ws://x/P2"}
	]`)
	host, port := hostPort(t, server)
	locator := NewLocator()
	locator.URLFilter = "localhost:9300"

	wsURL, err := locator.Locate(context.Background(), host, port)
	require.NoError(t, err)
	assert.Equal(t, "ws://x/P2", wsURL)

	locator.URLFilter = "localhost:1234"
	_, err = locator.Locate(context.Background(), host, port)
	require.ErrorIs(t, err, ErrNoEligibleTarget)
}

func TestLocateNoPageTargets(t *testing.T) {
	server, _ := listingServer(t, http.StatusOK, `[
		{"id":"B1","type":"background_page","webSocketDebuggerUrl":"ws://x/B1"},
		{"id":"I1","type":"iframe","webSocketDebuggerUrl":"ws://x/I1"}
	]`)
	host, port := hostPort(t, server)

	wsURL, err := NewLocator().Locate(context.Background(), host, port)

	require.ErrorIs(t, err, ErrNoEligibleTarget)
	assert.Empty(t, wsURL)
}

func TestLocateEmptyListing(t *testing.T) {
	server, _ := listingServer(t, http.StatusOK, `[]`)
	host, port := hostPort(t, server)

	_, err := NewLocator().Locate(context.Background(), host, port)
	require.ErrorIs(t, err, ErrNoEligibleTarget)
}

func TestLocateServerErrorIsUnreachable(t *testing.T) {
	// the body would fail to parse; a non-200 status must win
	server, hits := listingServer(t, http.StatusInternalServerError, `oops`)
	host, port := hostPort(t, server)

	_, err := NewLocator().Locate(context.Background(), host, port)

	require.ErrorIs(t, err, ErrDiscoveryUnreachable)
	assert.NotErrorIs(t, err, ErrDiscoveryParse)
	assert.Contains(t, err.Error(), "500")
	assert.Equal(t, int32(1), hits.Load())
}

func TestLocateMalformedBody(t *testing.T) {
	server, _ := listingServer(t, http.StatusOK, `{"not":"a list"`)
	host, port := hostPort(t, server)

	_, err := NewLocator().Locate(context.Background(), host, port)
	require.ErrorIs(t, err, ErrDiscoveryParse)
}

func TestLocateConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	host, port := hostPort(t, server)
	server.Close()

	locator := NewLocator()
	locator.Client = &http.Client{Timeout: time.Second}
	_, err := locator.Locate(context.Background(), host, port)
	require.ErrorIs(t, err, ErrDiscoveryUnreachable)
}

func TestLocateSendsHeaders(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Token")
		_, _ = w.Write([]byte(`[{"type":"page","webSocketDebuggerUrl":"ws://x/P"}]`))
	}))
	defer server.Close()
	host, port := hostPort(t, server)

	locator := NewLocator()
	locator.Headers = map[string]string{"X-Token": "secret"}
	_, err := locator.Locate(context.Background(), host, port)

	require.NoError(t, err)
	assert.Equal(t, "secret", got)
}
