// Package config provides HCL configuration handling for the daemon.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root daemon configuration.
type Config struct {
	// Listen is the HTTP API bind address.
	Listen string `hcl:"listen,optional"`

	State   *StateConfig   `hcl:"state,block"`
	Engine  *EngineConfig  `hcl:"engine,block"`
	Sync    *SyncConfig    `hcl:"sync,block"`
	Logging *LoggingConfig `hcl:"logging,block"`
	API     *APIConfig     `hcl:"api,block"`
}

// StateConfig controls the persistent state store.
type StateConfig struct {
	// Path is the SQLite database path, or ":memory:" for ephemeral state.
	Path string `hcl:"path,optional"`
}

// EngineConfig controls the attached engine and rule compilation for it.
type EngineConfig struct {
	// Endpoint is the engine's HTTP base URL. Empty runs an in-process
	// memory engine, which only makes sense for development.
	Endpoint string `hcl:"endpoint,optional"`

	// NativeResourceTypeBehavior leaves the resource-type condition empty
	// when a profile selects none, deferring to the engine's own default
	// matching instead of pinning the full explicit set.
	NativeResourceTypeBehavior bool `hcl:"native_resource_type_behavior,optional"`
}

// SyncConfig controls the reconciliation loop.
type SyncConfig struct {
	// CooldownMS is how long a pass waits after a state change,
	// coalescing bursts of edits. Zero means the built-in default.
	CooldownMS int `hcl:"cooldown_ms,optional"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `hcl:"level,optional"`  // debug, info, warn, error
	Format string `hcl:"format,optional"` // console, json
}

// APIConfig controls HTTP API behavior.
type APIConfig struct {
	// CORSOrigins lists origins allowed on the websocket upgrade in
	// addition to same-origin and localhost.
	CORSOrigins []string `hcl:"cors_origins,optional"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Listen:  "127.0.0.1:8799",
		State:   &StateConfig{Path: "/var/lib/headmod/state.db"},
		Engine:  &EngineConfig{},
		Sync:    &SyncConfig{},
		Logging: &LoggingConfig{Level: "info", Format: "console"},
		API:     &APIConfig{},
	}
}

// Normalize fills nil blocks and empty fields with defaults so callers
// never nil-check sub-configs.
func (c *Config) Normalize() {
	def := Default()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.State == nil {
		c.State = def.State
	} else if c.State.Path == "" {
		c.State.Path = def.State.Path
	}
	if c.Engine == nil {
		c.Engine = def.Engine
	}
	if c.Sync == nil {
		c.Sync = def.Sync
	}
	if c.Logging == nil {
		c.Logging = def.Logging
	} else {
		if c.Logging.Level == "" {
			c.Logging.Level = def.Logging.Level
		}
		if c.Logging.Format == "" {
			c.Logging.Format = def.Logging.Format
		}
	}
	if c.API == nil {
		c.API = def.API
	}
}

// Cooldown returns the configured sync cooldown as a duration, or zero
// when unset so the syncer applies its own default.
func (c *Config) Cooldown() time.Duration {
	if c.Sync == nil || c.Sync.CooldownMS <= 0 {
		return 0
	}
	return time.Duration(c.Sync.CooldownMS) * time.Millisecond
}

// Validate checks field values after Normalize.
func (c *Config) Validate() error {
	if !strings.Contains(c.Listen, ":") {
		return fmt.Errorf("listen address %q missing port", c.Listen)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	if c.Sync != nil && c.Sync.CooldownMS < 0 {
		return fmt.Errorf("sync cooldown_ms must not be negative")
	}
	return nil
}
