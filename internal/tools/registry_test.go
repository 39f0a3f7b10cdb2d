package tools

import (
	"testing"

	"github.com/dyike/CortexGo/internal/config"
	"github.com/dyike/CortexGo/internal/dataflows"
)

func TestRegistryRegistersAllFourCategories(t *testing.T) {
	cfg := config.DefaultConfig()
	registry := NewRegistry(cfg, dataflows.NewProvider(cfg))

	wantCategories := []Category{CategoryFundamental, CategoryTechnical, CategorySentiment, CategoryValuation}
	for _, cat := range wantCategories {
		if len(registry.ForCategory(cat)) == 0 {
			t.Fatalf("expected at least one tool registered under category %q", cat)
		}
	}
}

func TestValidateNamesDropsUnknown(t *testing.T) {
	cfg := config.DefaultConfig()
	registry := NewRegistry(cfg, dataflows.NewProvider(cfg))

	names := registry.Names()
	if len(names) == 0 {
		t.Fatal("expected registered tool names")
	}
	validated := registry.ValidateNames([]string{names[0], "not_a_real_tool"})
	if len(validated) != 1 || validated[0] != names[0] {
		t.Fatalf("expected unknown tool dropped, got %v", validated)
	}
}

func TestExecuteUnknownToolReturnsErrorResult(t *testing.T) {
	cfg := config.DefaultConfig()
	registry := NewRegistry(cfg, dataflows.NewProvider(cfg))
	executor := NewExecutor(registry, cfg)

	result := executor.Execute(nil, "not_a_real_tool", map[string]any{})
	if result.Error == "" {
		t.Fatal("expected error result for unknown tool")
	}
	if result.Confidence != 0 {
		t.Fatalf("confidence = %v, want 0 for error result", result.Confidence)
	}
}
