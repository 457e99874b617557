package navsmoke

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const targetTypePage = "page"

type Target struct {
	ID                   string `json:"id"`
	TargetType           string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// Locator finds the websocket address of a page target through the
// DevTools HTTP listing.
type Locator struct {
	Client  *http.Client
	Headers map[string]string
	// URLFilter, when set, restricts selection to pages whose URL contains it.
	URLFilter string
}

func NewLocator() *Locator {
	return &Locator{Client: &http.Client{Timeout: 5 * time.Second}}
}

func (l *Locator) Locate(ctx context.Context, host string, port int) (string, error) {
	targets, err := l.Targets(ctx, host, port)
	if err != nil {
		return "", err
	}
	for _, target := range targets {
		if target.TargetType != targetTypePage || target.WebSocketDebuggerURL == "" {
			continue
		}
		if l.URLFilter != "" && !strings.Contains(target.URL, l.URLFilter) {
			continue
		}
		return target.WebSocketDebuggerURL, nil
	}
	if l.URLFilter != "" {
		return "", fmt.Errorf("%w: none of %d targets matches %q", ErrNoEligibleTarget, len(targets), l.URLFilter)
	}
	return "", fmt.Errorf("%w: %d targets listed", ErrNoEligibleTarget, len(targets))
}

// Targets returns every target listed by GET /json.
func (l *Locator) Targets(ctx context.Context, host string, port int) ([]Target, error) {
	endpoint := "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/json"
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiscoveryUnreachable, err)
	}
	for key, value := range l.Headers {
		request.Header.Set(key, value)
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDiscoveryUnreachable, endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned HTTP %d", ErrDiscoveryUnreachable, endpoint, resp.StatusCode)
	}
	var targets []Target
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiscoveryParse, err)
	}
	return targets, nil
}
