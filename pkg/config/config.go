// Package config loads process-level configuration for a meshbridge
// node: socket addresses, retry/eviction tuning and the log level, from
// a YAML file overlaid with environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the narrow interface NetworkStart consumes (spec §6.3): a
// plain struct, no behavior.
type Config struct {
	Node     NodeConfig     `koanf:"node"`
	P2P      P2PConfig      `koanf:"p2p"`
	RPC      RPCConfig      `koanf:"rpc"`
	Wire     WireConfig     `koanf:"wire"`
	Discovery DiscoveryConfig `koanf:"discovery"`
	Log      LogConfig      `koanf:"log"`
}

// NodeConfig names the process and its key material.
type NodeConfig struct {
	KeyFile string `koanf:"key_file"`
}

// P2PConfig addresses the UDP overlay socket.
type P2PConfig struct {
	Listen        string `koanf:"listen"`
	Interface     string `koanf:"interface"`
	RetryAttempts int    `koanf:"retry_attempts"`
}

// RPCConfig addresses the TCP local-RPC socket.
type RPCConfig struct {
	Listen        string `koanf:"listen"`
	RetryAttempts int    `koanf:"retry_attempts"`
}

// WireConfig tunes the codec's fragment reassembly.
type WireConfig struct {
	FragmentEvictionSeconds int `koanf:"fragment_eviction_seconds"`
}

// DiscoveryConfig controls the multicast bootstrap announcer.
type DiscoveryConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Interface string `koanf:"interface"`
}

// LogConfig controls the zap logger NetworkStart constructs.
type LogConfig struct {
	Level string `koanf:"level"`
}

// Load reads path (if non-empty) as YAML, overlays MESHBRIDGE_-prefixed
// environment variables (e.g. MESHBRIDGE_P2P__LISTEN → p2p.listen), and
// validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: loading file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("MESHBRIDGE_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "MESHBRIDGE_")
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("config: loading env: %w", err)
	}

	cfg := &Config{
		P2P: P2PConfig{
			Listen:        "[::]:0",
			RetryAttempts: 3,
		},
		RPC: RPCConfig{
			Listen:        "127.0.0.1:7777",
			RetryAttempts: 3,
		},
		Wire: WireConfig{
			FragmentEvictionSeconds: 10,
		},
		Discovery: DiscoveryConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields NetworkStart cannot safely default.
func (c *Config) Validate() error {
	if c.P2P.Listen == "" {
		return fmt.Errorf("config: p2p.listen is required")
	}
	if c.RPC.Listen == "" {
		return fmt.Errorf("config: rpc.listen is required")
	}
	if c.P2P.RetryAttempts <= 0 {
		return fmt.Errorf("config: p2p.retry_attempts must be > 0 (got %d)", c.P2P.RetryAttempts)
	}
	if c.RPC.RetryAttempts <= 0 {
		return fmt.Errorf("config: rpc.retry_attempts must be > 0 (got %d)", c.RPC.RetryAttempts)
	}
	if c.Wire.FragmentEvictionSeconds <= 0 {
		return fmt.Errorf("config: wire.fragment_eviction_seconds must be > 0 (got %d)", c.Wire.FragmentEvictionSeconds)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level must be one of debug/info/warn/error (got %q)", c.Log.Level)
	}
	return nil
}
