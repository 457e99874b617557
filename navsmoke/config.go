package navsmoke

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultHost            = "127.0.0.1"
	DefaultPort            = 9222
	DefaultAttemptCeiling  = 30
	DefaultInterCyclePause = 500 * time.Millisecond
	DefaultBaseURL         = "http://localhost:9300/#"
)

// Case is one navigation to perform. URL wins over BaseURL+Path.
type Case struct {
	Label string `yaml:"label"`
	URL   string `yaml:"url,omitempty"`
	Path  string `yaml:"path,omitempty"`
}

type CheckSpec struct {
	Name       string `yaml:"name"`
	Contains   string `yaml:"contains"`
	IgnoreCase bool   `yaml:"ignore_case"`
}

type Config struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	TargetFilter string `yaml:"target_filter"`

	AttemptCeiling  int           `yaml:"attempt_ceiling"`
	InterCyclePause time.Duration `yaml:"inter_cycle_pause"`
	ReceiveTimeout  time.Duration `yaml:"receive_timeout"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`

	CaptureConsole    bool     `yaml:"capture_console"`
	ConsoleErrorsFail bool     `yaml:"console_errors_fail"`
	ConsoleIgnore     []string `yaml:"console_ignore"`

	ScreenshotDir      string `yaml:"screenshot_dir"`
	ScreenshotMaxWidth int    `yaml:"screenshot_max_width"`

	BaseURL     string      `yaml:"base_url"`
	ExtraChecks []CheckSpec `yaml:"extra_checks"`
	Cases       []Case      `yaml:"cases"`
}

func DefaultConfig() Config {
	return Config{
		Host:               DefaultHost,
		Port:               DefaultPort,
		AttemptCeiling:     DefaultAttemptCeiling,
		InterCyclePause:    DefaultInterCyclePause,
		ConnectTimeout:     10 * time.Second,
		ScreenshotMaxWidth: defaultMaxWidth,
		BaseURL:            DefaultBaseURL,
		Cases:              DefaultCases(),
	}
}

// DefaultCases are the IDE routes of the local dev server.
func DefaultCases() []Case {
	return []Case{
		{Label: "Welcome", Path: "/"},
		{Label: "Dashboard", Path: "/editor/ide/dashboard"},
		{Label: "Node list", Path: "/editor/ide/node/list"},
		{Label: "Interface list", Path: "/editor/ide/interface/list"},
		{Label: "Logic list", Path: "/editor/ide/logic/list"},
		{Label: "ICD list", Path: "/editor/ide/icd/list"},
		{Label: "Packet list", Path: "/editor/ide/packet/list"},
	}
}

// LoadConfig reads a YAML file over the defaults. Cases in the file replace
// the default cases.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	defaults := cfg.Cases
	cfg.Cases = nil
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parse config %s: %w", path, err)
	}
	if len(cfg.Cases) == 0 {
		cfg.Cases = defaults
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Host) == "" {
		errs = append(errs, errors.New("host required"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.AttemptCeiling <= 0 {
		errs = append(errs, fmt.Errorf("attempt_ceiling must be positive, got %d", c.AttemptCeiling))
	}
	if c.InterCyclePause < 0 {
		errs = append(errs, errors.New("inter_cycle_pause must not be negative"))
	}
	for i, tc := range c.Cases {
		if tc.URL == "" && tc.Path == "" {
			errs = append(errs, fmt.Errorf("case %d (%s): url or path required", i+1, tc.Label))
		}
	}
	for i, check := range c.ExtraChecks {
		if check.Name == "" || check.Contains == "" {
			errs = append(errs, fmt.Errorf("extra check %d: name and contains required", i+1))
		}
	}
	return errors.Join(errs...)
}

// ResolvedCases returns the cases with URLs filled in from BaseURL.
func (c Config) ResolvedCases() []Case {
	cases := make([]Case, 0, len(c.Cases))
	for _, tc := range c.Cases {
		if tc.URL == "" {
			tc.URL = strings.TrimSuffix(c.BaseURL, "/") + tc.Path
		}
		if tc.Label == "" {
			tc.Label = tc.URL
		}
		cases = append(cases, tc)
	}
	return cases
}

func (c Config) Checks() []Check {
	checks := DefaultChecks()
	for _, spec := range c.ExtraChecks {
		checks = append(checks, ContainsCheck(spec.Name, spec.Contains, spec.IgnoreCase))
	}
	return checks
}
