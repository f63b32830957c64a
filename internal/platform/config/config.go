// Package config reads process configuration from environment variables
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"rolesync/internal/platform/logger"
	pstrings "rolesync/internal/platform/strings"
)

// Conf is a namespaced view over environment variables (e.g. "DISCORD_", "ALLOWLIST_")
// Use New() for the root view and Prefix for module scopes
type Conf struct{ prefix string }

// New creates a root Conf (no prefix)
func New() Conf { return Conf{} }

// Prefix creates a child Conf with an additional prefix, e.g. cfg.Prefix("ALLOWLIST_")
func (c Conf) Prefix(p string) Conf { return Conf{prefix: c.prefix + p} }

// key composes the fully-qualified env var name
func (c Conf) key(k string) string { return c.prefix + k }

func (c Conf) lookup(key string) string { return strings.TrimSpace(os.Getenv(c.key(key))) }

// MustString panics if the given key is missing or empty
func (c Conf) MustString(key string) string {
	v := c.lookup(key)
	if v == "" {
		logger.Get().Panic().Str("key", c.key(key)).Msg("missing required env")
	}
	return v
}

// MayString returns the value or def if missing/empty
func (c Conf) MayString(key, def string) string {
	if v := c.lookup(key); v != "" {
		return v
	}
	return def
}

// MayInt returns the value or def if missing/empty; logs and returns def if invalid
func (c Conf) MayInt(key string, def int) int {
	s := c.lookup(key)
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Int("default", def).Msg("invalid int; using default")
	return def
}

// MayBool returns the value or def if missing/empty; logs and returns def if invalid
func (c Conf) MayBool(key string, def bool) bool {
	s := c.lookup(key)
	if s == "" {
		return def
	}
	if v, err := strconv.ParseBool(s); err == nil {
		return v
	}
	logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Bool("default", def).Msg("invalid bool; using default")
	return def
}

// MayDuration returns the value or def if missing/empty; logs and returns def if invalid
func (c Conf) MayDuration(key string, def time.Duration) time.Duration {
	s := c.lookup(key)
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Dur("default", def).Msg("invalid duration; using default")
	return def
}

// MaySnowflake returns a platform id (decimal digits only) or "" when missing.
// A malformed id is logged and treated as missing so callers classify it as unconfigured
func (c Conf) MaySnowflake(key string) string {
	s := c.lookup(key)
	if s == "" || s == "0" {
		return ""
	}
	if !pstrings.IsSnowflake(s) {
		logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Msg("invalid snowflake id; treating as unset")
		return ""
	}
	return s
}

// MayList splits a comma separated value, dropping blanks; nil when missing
func (c Conf) MayList(key string) []string {
	var out []string
	for _, part := range strings.Split(c.lookup(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
