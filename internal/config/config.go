// Package config resolves process configuration from environment variables
// (with an optional .env file), the way CortexGo's original config loader
// did: a struct of defaults, then an env override pass.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Mode selects whether the Portfolio Manager emits direction-only signals
// or full position-sized decisions.
type Mode string

const (
	ModeSignal    Mode = "signal"
	ModePortfolio Mode = "portfolio"
)

// ReviewMode selects the Reflection Engine's strategy.
type ReviewMode string

const (
	ReviewIndividual ReviewMode = "individual_review"
	ReviewCentral    ReviewMode = "central_review"
)

// AnalystType is a member of the closed set of analyst personas.
type AnalystType string

const (
	AnalystFundamental AnalystType = "fundamental"
	AnalystTechnical   AnalystType = "technical"
	AnalystSentiment   AnalystType = "sentiment"
	AnalystValuation   AnalystType = "valuation"
	AnalystComposite   AnalystType = "comprehensive"
)

// ModelBinding names a model id and the provider that serves it.
type ModelBinding struct {
	ModelName string
	Provider  string
}

// Config is the process-wide configuration facade. Components never read
// os.Getenv directly; they receive a *Config (or narrower view of it).
type Config struct {
	ProjectDir   string
	ResultsDir   string
	DataDir      string
	DataCacheDir string
	StateDir     string
	MemoryOpsDir string
	LogsDir      string
	PersonasDir  string
	MemoryDBPath string
	DashboardDir string
	AnalysisResultsDir string

	LLMProvider   string
	DeepThinkLLM  string
	QuickThinkLLM string
	BackendURL    string

	Mode                   Mode
	InitialCash            float64
	MarginRequirement      float64
	EnableCommunications   bool
	EnableNotifications    bool
	MaxCommunicationCycles int
	CommunicationMaxRounds int
	CommunicationMaxChars  int
	IsLiveMode             bool
	ReviewMode             ReviewMode
	AnalystTypes           []AnalystType

	// AgentModelOverrides maps an agent id to a specific (model, provider)
	// pair, consulted first in the §4.12 resolution chain.
	AgentModelOverrides map[string]ModelBinding

	MaxRecurLimit int
	OnlineTools   bool
	Debug         bool

	// Provider / data-source API keys, looked up only at this boundary.
	OpenAIAPIKey    string
	DeepSeekAPIKey  string
	FinnhubAPIKey   string
	LongportAppKey  string
	LongportSecret  string
	LongportToken   string
	CacheEnabled    bool
}

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()

	cfg := &Config{
		ProjectDir:   currentDir,
		ResultsDir:   filepath.Join(currentDir, "results"),
		DataDir:      filepath.Join(currentDir, "data"),
		DataCacheDir: filepath.Join(currentDir, "data", "cache"),
		StateDir:     filepath.Join(currentDir, "state"),
		MemoryOpsDir: filepath.Join(currentDir, "logs_and_memory", "default", "memory_operations"),
		LogsDir:      filepath.Join(currentDir, "logs_and_memory", "default"),
		PersonasDir:  filepath.Join(currentDir, "internal", "personas", "data"),
		MemoryDBPath: filepath.Join(currentDir, "state", "memory.db"),
		DashboardDir: filepath.Join(currentDir, "state", "team_dashboard"),
		AnalysisResultsDir: filepath.Join(currentDir, "analysis_results_logs"),

		LLMProvider:   "openai",
		DeepThinkLLM:  "gpt-4o",
		QuickThinkLLM: "gpt-4o-mini",
		BackendURL:    "https://api.openai.com/v1",

		Mode:                   ModeSignal,
		InitialCash:            100000,
		MarginRequirement:      0,
		EnableCommunications:   true,
		EnableNotifications:    true,
		MaxCommunicationCycles: 2,
		CommunicationMaxRounds: 1,
		CommunicationMaxChars:  400,
		IsLiveMode:             false,
		ReviewMode:             ReviewIndividual,
		AnalystTypes: []AnalystType{
			AnalystFundamental, AnalystTechnical, AnalystSentiment, AnalystValuation,
		},
		AgentModelOverrides: map[string]ModelBinding{},

		MaxRecurLimit: 100,
		OnlineTools:   true,
		Debug:         false,

		CacheEnabled: true,
	}

	_ = godotenv.Load()
	cfg.loadFromEnv()

	return cfg
}

func (c *Config) loadFromEnv() {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	b := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if parsed, err := strconv.ParseBool(v); err == nil {
				*dst = parsed
			}
		}
	}
	f := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = parsed
			}
		}
	}
	i := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				*dst = parsed
			}
		}
	}

	str("PROJECT_DIR", &c.ProjectDir)
	str("RESULTS_DIR", &c.ResultsDir)
	str("DATA_DIR", &c.DataDir)
	str("DATA_CACHE_DIR", &c.DataCacheDir)
	str("STATE_DIR", &c.StateDir)
	str("MEMORY_OPS_DIR", &c.MemoryOpsDir)
	str("LOGS_DIR", &c.LogsDir)
	str("PERSONAS_DIR", &c.PersonasDir)
	str("MEMORY_DB_PATH", &c.MemoryDBPath)
	str("DASHBOARD_DIR", &c.DashboardDir)
	str("ANALYSIS_RESULTS_DIR", &c.AnalysisResultsDir)

	str("LLM_PROVIDER", &c.LLMProvider)
	str("DEEP_THINK_LLM", &c.DeepThinkLLM)
	str("QUICK_THINK_LLM", &c.QuickThinkLLM)
	str("BACKEND_URL", &c.BackendURL)

	if v := os.Getenv("MODE"); v != "" {
		c.Mode = Mode(v)
	}
	if v := os.Getenv("REVIEW_MODE"); v != "" {
		c.ReviewMode = ReviewMode(v)
	}
	if v := os.Getenv("ANALYST_TYPES"); v != "" {
		parts := strings.Split(v, ",")
		types := make([]AnalystType, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				types = append(types, AnalystType(p))
			}
		}
		if len(types) > 0 {
			c.AnalystTypes = types
		}
	}

	f("INITIAL_CASH", &c.InitialCash)
	f("MARGIN_REQUIREMENT", &c.MarginRequirement)
	b("ENABLE_COMMUNICATIONS", &c.EnableCommunications)
	b("ENABLE_NOTIFICATIONS", &c.EnableNotifications)
	i("MAX_COMMUNICATION_CYCLES", &c.MaxCommunicationCycles)
	i("COMMUNICATION_MAX_ROUNDS", &c.CommunicationMaxRounds)
	i("COMMUNICATION_MAX_CHARS", &c.CommunicationMaxChars)
	b("IS_LIVE_MODE", &c.IsLiveMode)

	i("MAX_RECUR_LIMIT", &c.MaxRecurLimit)
	b("ONLINE_TOOLS", &c.OnlineTools)
	b("DEBUG", &c.Debug)

	str("OPENAI_API_KEY", &c.OpenAIAPIKey)
	str("DEEPSEEK_API_KEY", &c.DeepSeekAPIKey)
	str("FINNHUB_API_KEY", &c.FinnhubAPIKey)
	str("LONGPORT_APP_KEY", &c.LongportAppKey)
	str("LONGPORT_APP_SECRET", &c.LongportSecret)
	str("LONGPORT_ACCESS_TOKEN", &c.LongportToken)
	b("CACHE_ENABLED", &c.CacheEnabled)
}

// ModelFor resolves (model_name, provider) for agentID per §4.12: explicit
// per-agent override, then the global quick/deep-think default, then a
// hard-coded fallback.
func (c *Config) ModelFor(agentID string, deepThink bool) ModelBinding {
	if binding, ok := c.AgentModelOverrides[agentID]; ok {
		return binding
	}
	if deepThink {
		return ModelBinding{ModelName: c.DeepThinkLLM, Provider: c.LLMProvider}
	}
	if c.QuickThinkLLM != "" {
		return ModelBinding{ModelName: c.QuickThinkLLM, Provider: c.LLMProvider}
	}
	return ModelBinding{ModelName: "gpt-4o-mini", Provider: "openai"}
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.ResultsDir, c.DataDir, c.DataCacheDir, c.StateDir, c.MemoryOpsDir, c.LogsDir, c.DashboardDir, c.AnalysisResultsDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
