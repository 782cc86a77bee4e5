// Package config loads the consistency engine's configuration — the
// Go-native equivalent of the Python source's settings module, which
// exposed server_id/journal_ttl/random_journal_cleans/backing_store_* as
// plain module attributes.
//
// Loading is layered (flags > environment > YAML file > defaults) via
// spf13/viper, adopted from SAGE-X-project-sage-adk's go.mod: the teacher
// itself only ever reaches for flag.String (cmd/server/main.go), which is
// fine for a single binary's own flags but does not give a library-grade
// Config struct an environment/file story, so this generalizes to the rest
// of the pack's layered-config idiom instead of staying flag-only.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config mirrors spec §6's "Configuration" list exactly.
type Config struct {
	// ServerID identifies this process's marker-attribute namespace.
	// Required; must be globally unique per process.
	ServerID string

	// JournalTTL is the freshness window: how long a journal entry
	// remains eligible for replay. Should meaningfully exceed the
	// backing store's observed replica-propagation delay.
	JournalTTL time.Duration

	// RandomJournalCleans is how many random-key cleanup samples
	// engine.New runs at startup.
	RandomJournalCleans int

	// BackingStoreTimeout bounds a single backing-store request.
	BackingStoreTimeout time.Duration

	// BackingStoreRetryDelays is the backoff schedule a BackingStore
	// transport retries transport failures with.
	BackingStoreRetryDelays []time.Duration
}

// ErrMissingServerID is returned by Load/Validate when ServerID is empty.
var ErrMissingServerID = errors.New("config: server_id is required")

// ErrInvalidJournalTTL is returned by Load/Validate when JournalTTL is not
// positive.
var ErrInvalidJournalTTL = errors.New("config: journal_ttl must be > 0")

// Defaults returns the configuration used when no flag, environment
// variable, or file overrides a field.
func Defaults() Config {
	return Config{
		JournalTTL:              5 * time.Minute,
		RandomJournalCleans:     0,
		BackingStoreTimeout:     10 * time.Second,
		BackingStoreRetryDelays: []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond},
	}
}

// Load builds a Config from, in increasing priority order: built-in
// defaults, an optional YAML file at configPath (ignored if configPath is
// empty or the file does not exist), environment variables prefixed
// CSDB_ (e.g. CSDB_SERVER_ID), and flags already parsed into fs.
//
// fs may be nil, in which case only env/file/defaults are consulted — the
// shape this package's tests use to avoid touching process-global flag state.
func Load(configPath string, fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	d := Defaults()
	v.SetDefault("server_id", d.ServerID)
	v.SetDefault("journal_ttl", d.JournalTTL)
	v.SetDefault("random_journal_cleans", d.RandomJournalCleans)
	v.SetDefault("backing_store_timeout", d.BackingStoreTimeout)
	v.SetDefault("backing_store_retry_delays", d.BackingStoreRetryDelays)

	v.SetEnvPrefix("csdb")
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("config: read %s: %w", configPath, err)
			}
		}
	}

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return Config{}, fmt.Errorf("config: bind flags: %w", err)
		}
	}

	cfg := Config{
		ServerID:                v.GetString("server_id"),
		JournalTTL:              v.GetDuration("journal_ttl"),
		RandomJournalCleans:     v.GetInt("random_journal_cleans"),
		BackingStoreTimeout:     v.GetDuration("backing_store_timeout"),
		BackingStoreRetryDelays: parseDurations(v.Get("backing_store_retry_delays")),
	}
	if len(cfg.BackingStoreRetryDelays) == 0 {
		cfg.BackingStoreRetryDelays = d.BackingStoreRetryDelays
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the invariants spec §6 requires before a Config may be
// used to build an engine.
func Validate(cfg Config) error {
	if cfg.ServerID == "" {
		return ErrMissingServerID
	}
	if cfg.JournalTTL <= 0 {
		return ErrInvalidJournalTTL
	}
	return nil
}

// parseDurations normalizes viper's untyped config value (a []interface{}
// from YAML, or a []time.Duration set directly via SetDefault) into
// []time.Duration.
func parseDurations(v any) []time.Duration {
	switch vals := v.(type) {
	case []time.Duration:
		return vals
	case []any:
		out := make([]time.Duration, 0, len(vals))
		for _, raw := range vals {
			switch d := raw.(type) {
			case time.Duration:
				out = append(out, d)
			case string:
				parsed, err := time.ParseDuration(d)
				if err == nil {
					out = append(out, parsed)
				}
			}
		}
		return out
	default:
		return nil
	}
}

// RegisterFlags registers the flags Load(configPath, fs) understands onto
// fs, in the teacher's cmd/client/main.go style (flag.String bound directly
// to a local variable), generalized to pflag so Cobra commands can share it.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("server_id", "", "unique identifier for this process's marker namespace (required)")
	fs.Duration("journal_ttl", Defaults().JournalTTL, "journal freshness window")
	fs.Int("random_journal_cleans", Defaults().RandomJournalCleans, "number of startup journal cleanup samples")
	fs.Duration("backing_store_timeout", Defaults().BackingStoreTimeout, "per-request backing store timeout")
}
