package credaudit

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Default thresholds, matching the volume policy the audit was designed
// around: disable after two months, delete after six.
const (
	DefaultDisableThresholdDays = 60
	DefaultDeleteThresholdDays  = 180
)

// Config holds the runtime configuration of an audit run. It is read
// from environment variables once at startup and treated as immutable.
type Config struct {
	// Thresholds
	DisableThresholdDays int
	DeleteThresholdDays  int

	// ActionsEnabled selects apply mode. False means dry-run.
	ActionsEnabled bool

	// Whitelist holds canonical whitelist keys ("{service}:{kind}:{id}").
	Whitelist []string

	// Duo Admin API access. All three must be set together; when none is
	// set the Duo provider is skipped.
	DuoAPIHostName    string
	DuoIntegrationKey string
	DuoSecretKey      string

	// MetricsListen is the optional address for the Prometheus scrape
	// endpoint. Empty disables it.
	MetricsListen string
}

// LoadConfig reads the configuration from environment variables.
// Optional variables fall back to defaults; malformed values and
// inconsistent combinations are rejected.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		DisableThresholdDays: DefaultDisableThresholdDays,
		DeleteThresholdDays:  DefaultDeleteThresholdDays,
	}

	var err error
	if cfg.DisableThresholdDays, err = intFromEnv("DISABLE_THRESHOLD_DAYS", DefaultDisableThresholdDays); err != nil {
		return nil, err
	}
	if cfg.DeleteThresholdDays, err = intFromEnv("DELETE_THRESHOLD_DAYS", DefaultDeleteThresholdDays); err != nil {
		return nil, err
	}
	if cfg.ActionsEnabled, err = boolFromEnv("ACTIONS_ENABLED", false); err != nil {
		return nil, err
	}

	if raw := os.Getenv("WHITELIST"); raw != "" {
		for _, key := range strings.Split(raw, ",") {
			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}
			if strings.Count(key, ":") != 2 {
				return nil, ErrValidation(fmt.Sprintf("whitelist entry %q is not of the form service:kind:id", key))
			}
			cfg.Whitelist = append(cfg.Whitelist, key)
		}
	}

	cfg.DuoAPIHostName = os.Getenv("DUO_API_HOST_NAME")
	cfg.DuoIntegrationKey = os.Getenv("DUO_INTEGRATION_KEY")
	cfg.DuoSecretKey = os.Getenv("DUO_SECRET_KEY")

	duoSet := 0
	for _, v := range []string{cfg.DuoAPIHostName, cfg.DuoIntegrationKey, cfg.DuoSecretKey} {
		if v != "" {
			duoSet++
		}
	}
	if duoSet != 0 && duoSet != 3 {
		return nil, ErrValidation("DUO_API_HOST_NAME, DUO_INTEGRATION_KEY and DUO_SECRET_KEY must be set together")
	}

	cfg.MetricsListen = os.Getenv("METRICS_LISTEN")

	// Reject threshold misconfiguration at load time, before any
	// classification runs.
	if _, err := cfg.Spec(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DuoConfigured reports whether Duo Admin API access is configured.
func (c *Config) DuoConfigured() bool {
	return c.DuoAPIHostName != ""
}

// Spec builds the validated InactiveSpec for this configuration.
func (c *Config) Spec() (InactiveSpec, error) {
	return NewInactiveSpec(c.DisableThresholdDays, c.DeleteThresholdDays, c.Whitelist)
}

func intFromEnv(name string, fallback int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, ErrValidation(fmt.Sprintf("%s must be an integer, got %q", name, raw))
	}
	return v, nil
}

func boolFromEnv(name string, fallback bool) (bool, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, ErrValidation(fmt.Sprintf("%s must be a boolean, got %q", name, raw))
	}
	return v, nil
}
