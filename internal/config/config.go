package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/goccy/go-yaml"
)

const (
	SettingsFileEnvKey = "SETTINGS_FILE"

	UpstreamURLEnvKey = "UPSTREAM_URL"
	ClientIDEnvKey    = "CLIENT_ID"
	ClientKeyEnvKey   = "CLIENT_KEY"
	PortEnvKey        = "PORT"
)

// Settings drives the behavior of the agent. Values come from an optional
// YAML settings file, with credentials and the upstream endpoint overridable
// through the environment.
type Settings struct {
	// Port is the local API port the host UI talks to.
	Port int `yaml:"port"`

	Upstream struct {
		BaseURL   string `yaml:"base_url"`
		ClientID  string `yaml:"client_id"`
		ClientKey string `yaml:"client_key"`
	} `yaml:"upstream"`

	// CacheTTLSeconds is the freshness window for per-thread entries.
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`

	// DebounceWindowMS is the quiescence window for discovery coalescing.
	DebounceWindowMS int `yaml:"debounce_window_ms"`

	// MaxPending force-flushes once this many distinct ids accumulate,
	// bounding worst-case latency under a continuous discovery stream.
	// 0 disables the cap.
	MaxPending int `yaml:"max_pending"`

	// CollapseEdits folds rapid repeated edits to one field into
	// last-value-wins before transmission. Off by default: each edit stays a
	// distinct correction record.
	CollapseEdits bool `yaml:"collapse_edits"`

	// RecordsFilter is an optional boolean JMESPath expression applied to the
	// full-table record list; "" keeps everything.
	RecordsFilter string `yaml:"records_filter"`

	Notifier struct {
		// Kind selects the fan-out backend: "webhook" (default) or "sns".
		Kind       string `yaml:"kind"`
		WebhookURL string `yaml:"webhook_url"`
		SNSArn     string `yaml:"sns_arn"`
	} `yaml:"notifier"`
}

// Load reads the settings file named by SETTINGS_FILE (default
// "settings.yml"; a missing file just yields defaults), applies env
// overrides, and validates.
func Load() (Settings, error) {
	var s Settings
	path := os.Getenv(SettingsFileEnvKey)
	if path == "" {
		path = "settings.yml"
	}
	raw, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(raw, &s); err != nil {
			return Settings{}, fmt.Errorf("parse settings %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Settings{}, fmt.Errorf("read settings %s: %w", path, err)
	}

	if v := os.Getenv(UpstreamURLEnvKey); v != "" {
		s.Upstream.BaseURL = v
	}
	if v := os.Getenv(ClientIDEnvKey); v != "" {
		s.Upstream.ClientID = v
	}
	if v := os.Getenv(ClientKeyEnvKey); v != "" {
		s.Upstream.ClientKey = v
	}
	if v := os.Getenv(PortEnvKey); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return Settings{}, fmt.Errorf("invalid %s: %w", PortEnvKey, err)
		}
		s.Port = p
	}

	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s *Settings) applyDefaults() {
	if s.Port == 0 {
		s.Port = 8480
	}
	if s.CacheTTLSeconds == 0 {
		s.CacheTTLSeconds = 900
	}
	if s.DebounceWindowMS == 0 {
		s.DebounceWindowMS = 150
	}
	if s.Notifier.Kind == "" {
		s.Notifier.Kind = "webhook"
	}
}

func (s Settings) Validate() error {
	if s.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	if s.CacheTTLSeconds < 0 {
		return fmt.Errorf("cache_ttl_seconds must be non-negative")
	}
	if s.DebounceWindowMS < 0 {
		return fmt.Errorf("debounce_window_ms must be non-negative")
	}
	if s.MaxPending < 0 {
		return fmt.Errorf("max_pending must be non-negative. 0 for no cap")
	}
	switch s.Notifier.Kind {
	case "webhook":
		if s.Notifier.WebhookURL == "" {
			return fmt.Errorf("notifier.webhook_url is required for the webhook notifier")
		}
	case "sns":
		if s.Notifier.SNSArn == "" {
			return fmt.Errorf("notifier.sns_arn is required for the sns notifier")
		}
	default:
		return fmt.Errorf("unknown notifier kind %q", s.Notifier.Kind)
	}
	return nil
}
