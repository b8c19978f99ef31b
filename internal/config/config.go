/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package config holds the tunables for the storage engine core: how many
frames the buffer pool keeps resident, the LRU-K history length, the
B+ tree's fanout, and where on disk the page file and header registry
live.

There is no configuration file format. Values come from defaults,
overridable by environment variables; this mirrors how the rest of
this codebase's configuration layer is actually consumed at runtime.

Environment Variables:
  - PAGEKV_DATA_DIR: directory holding the page file (the header registry is its page 0)
  - PAGEKV_POOL_SIZE: number of frames in the buffer pool
  - PAGEKV_REPLACER_K: LRU-K history length
  - PAGEKV_LEAF_MAX_SIZE: max entries in a B+ tree leaf page
  - PAGEKV_INTERNAL_MAX_SIZE: max child slots in a B+ tree internal page
  - PAGEKV_LOG_LEVEL: log level (debug, info, warn, error)
  - PAGEKV_LOG_JSON: enable JSON logging (true/false)
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Environment variable names for configuration.
const (
	EnvDataDir         = "PAGEKV_DATA_DIR"
	EnvPoolSize        = "PAGEKV_POOL_SIZE"
	EnvReplacerK       = "PAGEKV_REPLACER_K"
	EnvLeafMaxSize     = "PAGEKV_LEAF_MAX_SIZE"
	EnvInternalMaxSize = "PAGEKV_INTERNAL_MAX_SIZE"
	EnvLogLevel        = "PAGEKV_LOG_LEVEL"
	EnvLogJSON         = "PAGEKV_LOG_JSON"
)

// GetDefaultDataDir returns the default directory for on-disk pages.
// For root users, it uses /var/lib/pagekv (Filesystem Hierarchy Standard).
// For non-root users, it uses ~/.local/share/pagekv (XDG Base Directory).
func GetDefaultDataDir() string {
	if os.Getuid() == 0 {
		return "/var/lib/pagekv"
	}
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "pagekv")
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".local", "share", "pagekv")
	}
	return "./data"
}

// Config holds all configuration values for the storage engine core.
type Config struct {
	// DataDir is the directory holding the page file; the header
	// registry lives on page 0 of that file.
	DataDir string `json:"data_dir"`

	// PoolSize is the number of frames held by the buffer pool.
	PoolSize int `json:"pool_size"`

	// ReplacerK is the history length K used by the LRU-K replacer.
	ReplacerK int `json:"replacer_k"`

	// LeafMaxSize is the maximum number of entries a leaf page may hold
	// before it must split.
	LeafMaxSize int `json:"leaf_max_size"`

	// InternalMaxSize is the maximum number of child slots (slot 0 plus
	// one per separator key) an internal page may hold before it must
	// split.
	InternalMaxSize int `json:"internal_max_size"`

	LogLevel string `json:"log_level"`
	LogJSON  bool   `json:"log_json"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		DataDir:         GetDefaultDataDir(),
		PoolSize:        128,
		ReplacerK:       2,
		LeafMaxSize:     leafMaxDefault,
		InternalMaxSize: internalMaxDefault,
		LogLevel:        "info",
		LogJSON:         false,
	}
}

// leafMaxDefault and internalMaxDefault follow the node capacities used
// throughout the worked examples in the design notes: small enough to
// exercise splits and merges without enormous test fixtures.
const (
	leafMaxDefault     = 4
	internalMaxDefault = 4
)

// Manager handles configuration loading and access.
type Manager struct {
	config *Config
	mu     sync.RWMutex
}

// NewManager creates a new configuration manager with default values.
func NewManager() *Manager {
	return &Manager{config: DefaultConfig()}
}

// Global manager instance for convenience.
var globalManager = NewManager()

// Global returns the global configuration manager.
func Global() *Manager {
	return globalManager
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := *m.config
	return &cfg
}

// Set replaces the current configuration.
func (m *Manager) Set(cfg *Config) {
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	var errs []string

	if c.PoolSize < 1 {
		errs = append(errs, fmt.Sprintf("invalid pool_size: %d (must be >= 1)", c.PoolSize))
	}
	if c.ReplacerK < 1 {
		errs = append(errs, fmt.Sprintf("invalid replacer_k: %d (must be >= 1)", c.ReplacerK))
	}
	if c.LeafMaxSize < 3 {
		errs = append(errs, fmt.Sprintf("invalid leaf_max_size: %d (must be >= 3)", c.LeafMaxSize))
	}
	if c.InternalMaxSize < 3 {
		errs = append(errs, fmt.Sprintf("invalid internal_max_size: %d (must be >= 3)", c.InternalMaxSize))
	}
	if c.DataDir == "" {
		errs = append(errs, "data_dir cannot be empty")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log_level: %s (must be debug, info, warn, or error)", c.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables, overriding
// whatever is currently set.
func (m *Manager) LoadFromEnv() {
	cfg := m.Get()

	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv(EnvPoolSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PoolSize = n
		}
	}
	if v := os.Getenv(EnvReplacerK); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ReplacerK = n
		}
	}
	if v := os.Getenv(EnvLeafMaxSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LeafMaxSize = n
		}
	}
	if v := os.Getenv(EnvInternalMaxSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.InternalMaxSize = n
		}
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvLogJSON); v != "" {
		cfg.LogJSON = strings.ToLower(v) == "true" || v == "1"
	}

	m.Set(cfg)
}

// Load loads configuration from defaults and environment variables.
func (m *Manager) Load() error {
	m.LoadFromEnv()
	return m.Get().Validate()
}

// String returns a human-readable representation of the configuration.
func (c *Config) String() string {
	var sb strings.Builder
	sb.WriteString("pagekv configuration:\n")
	sb.WriteString(fmt.Sprintf("  DataDir:         %s\n", c.DataDir))
	sb.WriteString(fmt.Sprintf("  PoolSize:        %d\n", c.PoolSize))
	sb.WriteString(fmt.Sprintf("  ReplacerK:       %d\n", c.ReplacerK))
	sb.WriteString(fmt.Sprintf("  LeafMaxSize:     %d\n", c.LeafMaxSize))
	sb.WriteString(fmt.Sprintf("  InternalMaxSize: %d\n", c.InternalMaxSize))
	sb.WriteString(fmt.Sprintf("  LogLevel:        %s\n", c.LogLevel))
	sb.WriteString(fmt.Sprintf("  LogJSON:         %v\n", c.LogJSON))
	return sb.String()
}
