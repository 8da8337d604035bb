package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() *Config {
	return &Config{
		P2P:  P2PConfig{Listen: "[::]:4000", RetryAttempts: 3},
		RPC:  RPCConfig{Listen: "127.0.0.1:7777", RetryAttempts: 3},
		Wire: WireConfig{FragmentEvictionSeconds: 10},
		Log:  LogConfig{Level: "info"},
	}
}

func TestValidateValidConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got error: %v", err)
	}
}

func TestValidateRejectsEmptyP2PListen(t *testing.T) {
	cfg := validConfig()
	cfg.P2P.Listen = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty p2p.listen")
	}
}

func TestValidateRejectsEmptyRPCListen(t *testing.T) {
	cfg := validConfig()
	cfg.RPC.Listen = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty rpc.listen")
	}
}

func TestValidateRejectsZeroRetryAttempts(t *testing.T) {
	cfg := validConfig()
	cfg.P2P.RetryAttempts = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero p2p.retry_attempts")
	}
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Log.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestLoadAppliesDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if cfg.RPC.Listen != "127.0.0.1:7777" {
		t.Fatalf("expected default rpc listen, got %q", cfg.RPC.Listen)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("expected default log level info, got %q", cfg.Log.Level)
	}
}

func TestLoadOverlaysYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meshbridge.yaml")
	yaml := "p2p:\n  listen: \"[::]:5000\"\nlog:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q): %v", path, err)
	}
	if cfg.P2P.Listen != "[::]:5000" {
		t.Fatalf("expected p2p.listen from file, got %q", cfg.P2P.Listen)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected log.level from file, got %q", cfg.Log.Level)
	}
}

func TestLoadOverlaysEnvironmentVariable(t *testing.T) {
	t.Setenv("MESHBRIDGE_RPC__LISTEN", "127.0.0.1:9999")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if cfg.RPC.Listen != "127.0.0.1:9999" {
		t.Fatalf("expected rpc.listen from env, got %q", cfg.RPC.Listen)
	}
}
