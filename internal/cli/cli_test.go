package cli

import (
	"path/filepath"
	"testing"

	"github.com/dyike/CortexGo/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.ProjectDir = dir
	cfg.StateDir = filepath.Join(dir, "state")
	cfg.DashboardDir = filepath.Join(dir, "state", "team_dashboard")
	cfg.MemoryOpsDir = filepath.Join(dir, "memory_ops")
	cfg.AnalysisResultsDir = filepath.Join(dir, "analysis_results")
	cfg.PersonasDir = filepath.Join(dir, "personas")
	return cfg
}

func TestNewRootCmdRegistersSubcommands(t *testing.T) {
	root := NewRootCmd()

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "analyze", "config"} {
		if !names[want] {
			t.Fatalf("expected root command to register %q, got %v", want, names)
		}
	}
}

func TestValidateConfigRejectsNegativeCash(t *testing.T) {
	cfg := testConfig(t)
	cfg.InitialCash = -1

	if err := validateConfig(cfg); err == nil {
		t.Fatal("expected an error for negative initial cash")
	}
}

func TestValidateConfigRejectsNegativeCommunicationCycles(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxCommunicationCycles = -1

	if err := validateConfig(cfg); err == nil {
		t.Fatal("expected an error for negative communication cycles")
	}
}

func TestValidateConfigAcceptsDefaults(t *testing.T) {
	cfg := testConfig(t)
	if err := validateConfig(cfg); err != nil {
		t.Fatalf("expected default config to validate, got %v", err)
	}
}
