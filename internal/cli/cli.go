// Package cli wires the cobra command tree, following the teacher's
// internal/cli/commands.go shape: a root command with PersistentPreRunE
// ensuring directories exist, plus run/analyze/config subcommands that
// build a *config.Config and hand off to the real engine.
//
// Grounded on internal/cli/commands.go's NewRootCmd/newAnalyzeCmd/
// newConfigCmd structure; the underlying engine here is the Multi-Day
// Driver (C11) instead of the teacher's trading.NewTradingSession, and
// run/analyze both ultimately call driver.Driver.Run with a one-day or
// multi-day Request.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyike/CortexGo/internal/config"
	"github.com/dyike/CortexGo/internal/dataflows"
	"github.com/dyike/CortexGo/internal/domain"
	"github.com/dyike/CortexGo/internal/driver"
	"github.com/dyike/CortexGo/internal/gateway"
	"github.com/dyike/CortexGo/internal/memory"
)

// NewRootCmd builds the cortexdesk command tree.
func NewRootCmd() *cobra.Command {
	cfg := config.DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "cortexdesk",
		Short: "CortexDesk - multi-agent trading analysis engine",
		Long: `CortexDesk orchestrates analyst, risk, and portfolio-manager agents through
a deterministic multi-phase pipeline, carrying a portfolio and episodic
memory across trading days.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("failed to create directories: %w", err)
			}
			return nil
		},
		// No subcommand given: fall back to the teacher's interactive
		// prompts.go wizard instead of printing usage and exiting.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWizard(cfg)
		},
	}

	rootCmd.AddCommand(newRunCmd(cfg))
	rootCmd.AddCommand(newAnalyzeCmd(cfg))
	rootCmd.AddCommand(newConfigCmd(cfg))

	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	return rootCmd
}

// newAnalyzeCmd runs a single trading day for a ticker list, in
// signal-direction mode, mirroring the teacher's one-shot
// "cortexgo analyze SYMBOL --date=..." command.
func newAnalyzeCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze TICKER...",
		Short: "Run one day's analyst -> risk -> PM pipeline for one or more tickers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dateStr, _ := cmd.Flags().GetString("date")
			date := time.Now()
			if dateStr != "" {
				parsed, err := time.Parse("2006-01-02", dateStr)
				if err != nil {
					return fmt.Errorf("invalid date format, use YYYY-MM-DD: %w", err)
				}
				date = parsed
			}

			runCfg := *cfg
			runCfg.Mode = config.ModeSignal

			return runRange(cmd.Context(), &runCfg, args, date, date)
		},
	}
	cmd.Flags().String("date", "", "analysis date in YYYY-MM-DD format (today if omitted)")
	return cmd
}

// newRunCmd runs the full multi-day portfolio driver over a date range.
func newRunCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run TICKER...",
		Short: "Run the multi-day portfolio driver over a date range",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			startStr, _ := cmd.Flags().GetString("start")
			endStr, _ := cmd.Flags().GetString("end")
			if startStr == "" || endStr == "" {
				return fmt.Errorf("both --start and --end are required")
			}
			start, err := time.Parse("2006-01-02", startStr)
			if err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
			end, err := time.Parse("2006-01-02", endStr)
			if err != nil {
				return fmt.Errorf("invalid --end: %w", err)
			}

			runCfg := *cfg
			runCfg.Mode = config.ModePortfolio

			return runRange(cmd.Context(), &runCfg, args, start, end)
		},
	}
	cmd.Flags().String("start", "", "first trading day, YYYY-MM-DD")
	cmd.Flags().String("end", "", "last trading day, YYYY-MM-DD")
	return cmd
}

func runRange(ctx context.Context, cfg *config.Config, tickers []string, start, end time.Time) error {
	if ctx == nil {
		ctx = context.Background()
	}

	gw := gateway.New(cfg)
	store, err := memory.Open(cfg.MemoryDBPath)
	if err != nil {
		return fmt.Errorf("open memory store: %w", err)
	}
	provider := dataflows.NewProvider(cfg)

	d := driver.New(cfg, gw, store, provider, nil)

	fmt.Printf("🚀 Starting CortexDesk run for %v, %s -> %s (%s mode)\n", tickers, start.Format("2006-01-02"), end.Format("2006-01-02"), cfg.Mode)

	domainTickers := make([]domain.Ticker, len(tickers))
	copy(domainTickers, tickers)

	summary, err := d.Run(ctx, driver.Request{
		StartDate:         start,
		EndDate:           end,
		Tickers:           domainTickers,
		Mode:              cfg.Mode,
		InitialCash:       cfg.InitialCash,
		MarginRequirement: cfg.MarginRequirement,
	})
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	printSummary(summary)
	return nil
}

func printSummary(s driver.Summary) {
	fmt.Println()
	fmt.Println("═══ RUN SUMMARY ═══")
	fmt.Printf("session:     %s\n", s.SessionID)
	fmt.Printf("range:       %s -> %s\n", s.StartDate, s.EndDate)
	fmt.Printf("days:        %d total, %d successful, %d failed\n", s.TotalDays, s.SuccessfulDays, s.FailedDays)
	if s.FinalPortfolio != nil {
		fmt.Printf("final cash:  %s\n", s.FinalPortfolio.Cash.String())
	}
	for _, rec := range s.DailyResults {
		if rec.Failed {
			fmt.Printf("  %s: FAILED (%s)\n", rec.Date, rec.Error)
		} else {
			fmt.Printf("  %s: %d decisions\n", rec.Date, len(rec.Result.PreMarket.FinalDecisions))
		}
	}
}

// newConfigCmd exposes config show/validate, in the teacher's idiom.
func newConfigCmd(cfg *config.Config) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Run: func(cmd *cobra.Command, args []string) {
			showConfig(cfg)
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateConfig(cfg)
		},
	})

	return configCmd
}

func showConfig(cfg *config.Config) {
	fmt.Println("📋 Current CortexDesk Configuration:")
	fmt.Println("═══════════════════════════════════════")
	fmt.Printf("Project Directory:    %s\n", cfg.ProjectDir)
	fmt.Printf("State Directory:      %s\n", cfg.StateDir)
	fmt.Printf("Dashboard Directory:  %s\n", cfg.DashboardDir)
	fmt.Println()
	fmt.Printf("LLM Provider:         %s\n", cfg.LLMProvider)
	fmt.Printf("Deep Think Model:     %s\n", cfg.DeepThinkLLM)
	fmt.Printf("Quick Think Model:    %s\n", cfg.QuickThinkLLM)
	fmt.Println()
	fmt.Printf("Mode:                 %s\n", cfg.Mode)
	fmt.Printf("Review Mode:          %s\n", cfg.ReviewMode)
	fmt.Printf("Enable Comms:         %t\n", cfg.EnableCommunications)
	fmt.Printf("Enable Notifications: %t\n", cfg.EnableNotifications)
	fmt.Printf("Live Mode:            %t\n", cfg.IsLiveMode)
	fmt.Println()
	if cfg.OpenAIAPIKey != "" {
		fmt.Println("OpenAI API:           ✅ configured")
	} else {
		fmt.Println("OpenAI API:           ❌ not configured")
	}
	if cfg.LongportAppKey != "" {
		fmt.Println("Longport API:         ✅ configured")
	} else {
		fmt.Println("Longport API:         ❌ not configured")
	}
}

func validateConfig(cfg *config.Config) error {
	fmt.Println("🔍 Validating CortexDesk Configuration...")
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("directory validation failed: %w", err)
	}
	if cfg.MaxCommunicationCycles < 0 {
		return fmt.Errorf("max communication cycles must be non-negative")
	}
	if cfg.InitialCash < 0 {
		return fmt.Errorf("initial cash must be non-negative")
	}
	fmt.Println("✅ Configuration valid")
	return nil
}
