package navsmoke

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ConsoleMessage is a console API call or log entry observed during a cycle.
type ConsoleMessage struct {
	Source string `json:"source"`
	Level  string `json:"level"`
	Text   string `json:"text"`
}

type ConsoleFindings struct {
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Seen     int      `json:"seen"`
}

func (f ConsoleFindings) Empty() bool {
	return len(f.Errors) == 0 && len(f.Warnings) == 0
}

// DefaultConsoleNoise matches dev-server chatter, the app's route trace logs
// and aborted requests.
var DefaultConsoleNoise = []string{
	"[vite]",
	"connect ",
	"[路由 #",
	"🚀 开始",
	"✅ 完成",
	"请求已取消",
	"CanceledError",
	"ERR_CANCELED",
	"component may have been unmounted",
}

var consoleErrorMarkers = []string{"TypeError", "ReferenceError", "SyntaxError", "NetworkError"}

// ConsoleCollector accumulates console output of the page under test.
type ConsoleCollector struct {
	// Ignore lists substrings of messages that are never reported.
	Ignore   []string
	messages []ConsoleMessage
}

func NewConsoleCollector(ignore ...string) *ConsoleCollector {
	return &ConsoleCollector{Ignore: append(append([]string(nil), DefaultConsoleNoise...), ignore...)}
}

// Observe records the event if it is console or log output and reports
// whether it was consumed.
func (c *ConsoleCollector) Observe(event *CDPEvent) bool {
	if event == nil {
		return false
	}
	params := gjson.ParseBytes(event.Params)
	switch event.Method {
	case MethodConsoleAPICalled:
		var parts []string
		params.Get("args").ForEach(func(_, arg gjson.Result) bool {
			if value := arg.Get("value"); value.Exists() {
				parts = append(parts, value.String())
			} else if desc := arg.Get("description"); desc.Exists() {
				parts = append(parts, desc.String())
			}
			return true
		})
		c.messages = append(c.messages, ConsoleMessage{
			Source: "console",
			Level:  params.Get("type").String(),
			Text:   strings.Join(parts, " "),
		})
		return true
	case MethodLogEntryAdded:
		entry := params.Get("entry")
		c.messages = append(c.messages, ConsoleMessage{
			Source: "log",
			Level:  entry.Get("level").String(),
			Text:   entry.Get("text").String(),
		})
		return true
	}
	return false
}

func (c *ConsoleCollector) Messages() []ConsoleMessage {
	return append([]ConsoleMessage(nil), c.messages...)
}

// Findings classifies collected messages into errors and warnings, dropping
// known noise. A message can land in both lists.
func (c *ConsoleCollector) Findings() ConsoleFindings {
	findings := ConsoleFindings{Seen: len(c.messages)}
	for _, msg := range c.messages {
		if containsAny(msg.Text, c.Ignore) {
			continue
		}
		lower := strings.ToLower(msg.Text)
		if msg.Level == "error" || strings.Contains(lower, "error") || strings.Contains(lower, "uncaught") || containsAny(msg.Text, consoleErrorMarkers) {
			findings.Errors = append(findings.Errors, msg.Text)
		}
		if msg.Level == "warning" || strings.Contains(lower, "warn") {
			findings.Warnings = append(findings.Warnings, msg.Text)
		}
	}
	return findings
}

func containsAny(text string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(text, needle) {
			return true
		}
	}
	return false
}
