// Package config loads arictl configuration.
//
// A YAML file is decoded, environment overrides are applied on top, and the
// result is unified with the embedded CUE schema, which rejects unknown
// fields and supplies defaults.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/arictl/internal/transport"
)

//go:embed schema.cue
var schemaCUE string

// Environment variables that override file values.
const (
	EnvURL         = "ARICTL_URL"
	EnvUsername    = "ARICTL_USERNAME"
	EnvPassword    = "ARICTL_PASSWORD"
	EnvApplication = "ARICTL_APP"
)

var envFields = []struct {
	env   string
	field string
}{
	{EnvURL, "url"},
	{EnvUsername, "username"},
	{EnvPassword, "password"},
	{EnvApplication, "application"},
}

// Config is a validated configuration with defaults applied.
type Config struct {
	URL            string
	Application    string
	Username       string
	Password       string
	CommandTimeout time.Duration
	Journal        string // journal database path; empty disables the journal
	MetricsAddr    string // listen address for /metrics; empty disables it
	LogLevel       slog.Level
	Reconnect      transport.Backoff
}

// document mirrors #Config after unification.
type document struct {
	URL            string `json:"url"`
	Application    string `json:"application"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	CommandTimeout string `json:"command_timeout"`
	Journal        string `json:"journal"`
	MetricsAddr    string `json:"metrics_addr"`
	LogLevel       string `json:"log_level"`
	Reconnect      struct {
		InitialDelay string  `json:"initial_delay"`
		MaxDelay     string  `json:"max_delay"`
		Multiplier   float64 `json:"multiplier"`
	} `json:"reconnect"`
}

// LookupFunc reads an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Load reads the file at path and applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data, os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML data, applies overrides from lookup (nil for none)
// and validates the result.
func Parse(data []byte, lookup LookupFunc) (*Config, error) {
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if raw == nil {
		// Empty document.
		raw = map[string]any{}
	}

	if lookup != nil {
		for _, f := range envFields {
			if v, ok := lookup(f.env); ok && v != "" {
				raw[f.field] = v
			}
		}
	}

	doc, err := validate(raw)
	if err != nil {
		return nil, err
	}
	return doc.config()
}

func validate(raw map[string]any) (document, error) {
	var doc document

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return doc, fmt.Errorf("compile config schema: %w", err)
	}

	value := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(raw))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return doc, formatCUEError(err)
	}
	if err := value.Decode(&doc); err != nil {
		return doc, fmt.Errorf("decode config: %w", err)
	}
	return doc, nil
}

func (d document) config() (*Config, error) {
	cfg := &Config{
		URL:         strings.TrimRight(d.URL, "/"),
		Application: d.Application,
		Username:    d.Username,
		Password:    d.Password,
		Journal:     d.Journal,
		MetricsAddr: d.MetricsAddr,
	}

	var err error
	if cfg.CommandTimeout, err = time.ParseDuration(d.CommandTimeout); err != nil {
		return nil, fmt.Errorf("command_timeout: %w", err)
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(d.LogLevel)); err != nil {
		return nil, fmt.Errorf("log_level: %w", err)
	}

	cfg.Reconnect.Multiplier = d.Reconnect.Multiplier
	cfg.Reconnect.Jitter = transport.DefaultBackoff.Jitter
	if cfg.Reconnect.Initial, err = time.ParseDuration(d.Reconnect.InitialDelay); err != nil {
		return nil, fmt.Errorf("reconnect.initial_delay: %w", err)
	}
	if cfg.Reconnect.Max, err = time.ParseDuration(d.Reconnect.MaxDelay); err != nil {
		return nil, fmt.Errorf("reconnect.max_delay: %w", err)
	}
	if cfg.Reconnect.Max < cfg.Reconnect.Initial {
		return nil, fmt.Errorf("reconnect.max_delay %s is below initial_delay %s", cfg.Reconnect.Max, cfg.Reconnect.Initial)
	}
	return cfg, nil
}

// EventsURL derives the websocket event URL from the REST base URL:
// http becomes ws, https becomes wss, and "/events" is appended.
func (c *Config) EventsURL() (string, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("url %q: scheme must be http or https", c.URL)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/events"
	return u.String(), nil
}

// HTTP returns the command transport configuration.
func (c *Config) HTTP() transport.HTTPConfig {
	return transport.HTTPConfig{
		BaseURL:  c.URL,
		Username: c.Username,
		Password: c.Password,
	}
}

// Feed returns the event feed configuration.
func (c *Config) Feed() (transport.FeedConfig, error) {
	events, err := c.EventsURL()
	if err != nil {
		return transport.FeedConfig{}, err
	}
	return transport.FeedConfig{
		URL:         events,
		Application: c.Application,
		Username:    c.Username,
		Password:    c.Password,
		Backoff:     c.Reconnect,
	}, nil
}

// Error lists schema violations.
type Error struct {
	Messages []string
}

func (e *Error) Error() string {
	return "invalid config: " + strings.Join(e.Messages, "; ")
}

func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &Error{Messages: []string{err.Error()}}
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return &Error{Messages: msgs}
}
