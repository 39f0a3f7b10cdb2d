package config

import "testing"

func TestModelForPrefersExplicitOverride(t *testing.T) {
	cfg := &Config{
		DeepThinkLLM:  "gpt-4o",
		QuickThinkLLM: "gpt-4o-mini",
		LLMProvider:   "openai",
		AgentModelOverrides: map[string]ModelBinding{
			"market": {ModelName: "deepseek-chat", Provider: "deepseek"},
		},
	}

	got := cfg.ModelFor("market", true)
	want := ModelBinding{ModelName: "deepseek-chat", Provider: "deepseek"}
	if got != want {
		t.Fatalf("expected override %+v, got %+v", want, got)
	}
}

func TestModelForFallsBackToDeepThinkWhenRequested(t *testing.T) {
	cfg := &Config{
		DeepThinkLLM:        "gpt-4o",
		QuickThinkLLM:       "gpt-4o-mini",
		LLMProvider:         "openai",
		AgentModelOverrides: map[string]ModelBinding{},
	}

	got := cfg.ModelFor("fundamentals", true)
	want := ModelBinding{ModelName: "gpt-4o", Provider: "openai"}
	if got != want {
		t.Fatalf("expected deep-think default %+v, got %+v", want, got)
	}
}

func TestModelForFallsBackToQuickThinkWhenNotDeep(t *testing.T) {
	cfg := &Config{
		DeepThinkLLM:        "gpt-4o",
		QuickThinkLLM:       "gpt-4o-mini",
		LLMProvider:         "openai",
		AgentModelOverrides: map[string]ModelBinding{},
	}

	got := cfg.ModelFor("fundamentals", false)
	want := ModelBinding{ModelName: "gpt-4o-mini", Provider: "openai"}
	if got != want {
		t.Fatalf("expected quick-think default %+v, got %+v", want, got)
	}
}

func TestModelForHardcodedFallbackWhenQuickThinkUnset(t *testing.T) {
	cfg := &Config{AgentModelOverrides: map[string]ModelBinding{}}

	got := cfg.ModelFor("fundamentals", false)
	want := ModelBinding{ModelName: "gpt-4o-mini", Provider: "openai"}
	if got != want {
		t.Fatalf("expected hardcoded fallback %+v, got %+v", want, got)
	}
}

func TestLoadFromEnvOverridesDefaults(t *testing.T) {
	t.Setenv("MODE", "portfolio")
	t.Setenv("INITIAL_CASH", "250000")
	t.Setenv("ANALYST_TYPES", "technical, sentiment")
	t.Setenv("ENABLE_COMMUNICATIONS", "false")

	cfg := &Config{
		Mode:                 ModeSignal,
		InitialCash:          100000,
		EnableCommunications: true,
		AnalystTypes:         []AnalystType{AnalystFundamental},
	}
	cfg.loadFromEnv()

	if cfg.Mode != ModePortfolio {
		t.Fatalf("expected MODE override, got %v", cfg.Mode)
	}
	if cfg.InitialCash != 250000 {
		t.Fatalf("expected INITIAL_CASH override, got %v", cfg.InitialCash)
	}
	if cfg.EnableCommunications {
		t.Fatal("expected ENABLE_COMMUNICATIONS override to false")
	}
	if len(cfg.AnalystTypes) != 2 || cfg.AnalystTypes[0] != AnalystTechnical || cfg.AnalystTypes[1] != AnalystSentiment {
		t.Fatalf("expected trimmed ANALYST_TYPES override, got %v", cfg.AnalystTypes)
	}
}

func TestLoadFromEnvIgnoresUnsetVars(t *testing.T) {
	cfg := &Config{Mode: ModeSignal, InitialCash: 100000}
	cfg.loadFromEnv()

	if cfg.Mode != ModeSignal {
		t.Fatalf("expected Mode left untouched, got %v", cfg.Mode)
	}
	if cfg.InitialCash != 100000 {
		t.Fatalf("expected InitialCash left untouched, got %v", cfg.InitialCash)
	}
}
