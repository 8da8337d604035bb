package telemetry

import "testing"

func TestNewLoggerAcceptsEveryLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus"} {
		if _, err := NewLogger(level); err != nil {
			t.Fatalf("NewLogger(%q): %v", level, err)
		}
	}
}

func TestNewRegistryGathersWithoutError(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Gather(); err != nil {
		t.Fatalf("Gather: %v", err)
	}
}
