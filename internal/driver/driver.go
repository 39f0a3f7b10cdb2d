// Package driver implements the Multi-Day Driver (C11): iterates trading
// days, propagates portfolio and memory across days, persists per-day
// snapshots, and feeds the Dashboard Sink.
//
// Grounded on the teacher's internal/cli.Analyzer.RunAnalysis (a single
// top-level Run entry point that builds a session, walks fixed phases, and
// assembles a final report) generalized from "one ticker, one pass" to
// "a calendar of trading days, each running the full C9 pipeline". The
// day-loop failure policy (§4.11: a failed day does not advance the
// portfolio) has no teacher precedent — the teacher's mock phases never
// fail — so it is grounded instead on §7's explicit failure-policy table.
package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dyike/CortexGo/internal/analyst"
	"github.com/dyike/CortexGo/internal/calendar"
	"github.com/dyike/CortexGo/internal/comm"
	"github.com/dyike/CortexGo/internal/config"
	"github.com/dyike/CortexGo/internal/dashboard"
	"github.com/dyike/CortexGo/internal/dataflows"
	"github.com/dyike/CortexGo/internal/domain"
	"github.com/dyike/CortexGo/internal/gateway"
	"github.com/dyike/CortexGo/internal/memory"
	"github.com/dyike/CortexGo/internal/notify"
	"github.com/dyike/CortexGo/internal/obslog"
	"github.com/dyike/CortexGo/internal/orchestrator"
	"github.com/dyike/CortexGo/internal/persistence"
	"github.com/dyike/CortexGo/internal/personas"
	"github.com/dyike/CortexGo/internal/portfolio"
	"github.com/dyike/CortexGo/internal/reflection"
	"github.com/dyike/CortexGo/internal/risk"
	"github.com/dyike/CortexGo/internal/selector"
	"github.com/dyike/CortexGo/internal/tools"
)

// Request is §4.11's input set.
type Request struct {
	StartDate         time.Time
	EndDate           time.Time
	Tickers           []domain.Ticker
	Mode              config.Mode
	InitialCash       float64
	MarginRequirement float64
}

// DayRecord is one entry of the multi-day summary's daily_results.
type DayRecord struct {
	Date    string
	Failed  bool
	Error   string
	Result  domain.DayResult
}

// Summary is §4.11 step 4's multi-day summary.
type Summary struct {
	SessionID      string
	StartDate      string
	EndDate        string
	Tickers        []domain.Ticker
	Mode           config.Mode
	TotalDays      int
	SuccessfulDays int
	FailedDays     int
	DailyResults   []DayRecord
	FinalPortfolio *domain.Portfolio
}

// Driver is C11. It owns the Portfolio across days (§5: "lives inside the
// Multi-Day Driver") and constructs a fresh per-day Orchestrator so that
// the Notification Broadcaster's in-process inboxes never leak across
// trading days.
type Driver struct {
	cfg      *config.Config
	cal      calendar.Calendar
	persist  *persistence.Service
	dash     *dashboard.Sink
	reflect  *reflection.Engine
	provider *dataflows.Provider
	client   gateway.Client
	mem      memory.Store
	agents   []*analyst.Agent
	perf     *portfolio.PerformanceTracker
	log      loggerT
}

type loggerT = interface{ Printf(string, ...any) }

// New wires every collaborator a day needs, following the teacher's
// Analyzer constructor shape (one config in, every downstream dependency
// built here) generalized to this repo's many more components.
func New(cfg *config.Config, client gateway.Client, store memory.Store, provider *dataflows.Provider, cal calendar.Calendar) *Driver {
	if cal == nil {
		cal = calendar.NaiveWeekdays{}
	}

	personaLoader := personas.NewLoader(cfg.PersonasDir)
	registry := tools.NewRegistry(cfg, provider)
	executor := tools.NewExecutor(registry, cfg)
	sel := selector.New(client, registry, executor, personaLoader)

	agents := make([]*analyst.Agent, 0, len(cfg.AnalystTypes))
	for _, at := range cfg.AnalystTypes {
		agents = append(agents, analyst.New(string(at), cfg, client, sel))
	}

	persist := persistence.New(cfg)

	return &Driver{
		cfg:      cfg,
		cal:      cal,
		persist:  persist,
		dash:     dashboard.New(cfg),
		reflect:  reflection.New(client, store, persist, cfg),
		provider: provider,
		client:   client,
		mem:      store,
		agents:   agents,
		perf:     portfolio.NewPerformanceTracker(),
		log:      obslog.New("driver"),
	}
}

// Run implements §4.11's full loop.
func (d *Driver) Run(ctx context.Context, req Request) (Summary, error) {
	days := d.cal.TradingDays(req.StartDate, req.EndDate)

	summary := Summary{
		SessionID: uuid.NewString(),
		StartDate: req.StartDate.Format("2006-01-02"),
		EndDate:   req.EndDate.Format("2006-01-02"),
		Tickers:   req.Tickers,
		Mode:      req.Mode,
		TotalDays: len(days),
	}

	portfolioState, _, found, err := d.persist.LatestPortfolioSnapshot()
	if err != nil {
		d.log.Printf("recover latest portfolio snapshot: %v", err)
	}
	if !found {
		portfolioState = &domain.Portfolio{
			Cash:              decimal.NewFromFloat(req.InitialCash),
			Positions:         map[domain.Ticker]*domain.Position{},
			MarginRequirement: decimal.NewFromFloat(req.MarginRequirement),
			MarginUsed:        decimal.Zero,
		}
	}

	previousPrices := map[domain.Ticker]float64{}

	for _, day := range days {
		record := d.runOneDay(ctx, day, req.Tickers, req.Mode, portfolioState, previousPrices)
		if !record.Failed {
			summary.SuccessfulDays++
			if record.Result.PreMarket.CurrentPrices != nil {
				for t, p := range record.Result.PreMarket.CurrentPrices {
					f, _ := p.Float64()
					previousPrices[t] = f
				}
			}
		} else {
			summary.FailedDays++
		}
		summary.DailyResults = append(summary.DailyResults, record)
	}

	summary.FinalPortfolio = portfolioState
	return summary, nil
}

// runOneDay runs C9 for one trading day, then C10, persisting and
// dashboarding along the way. A failure from C9 marks the day failed and
// leaves portfolioState untouched, so the next day carries in the same
// portfolio (§4.11's failure policy).
func (d *Driver) runOneDay(ctx context.Context, day time.Time, tickers []domain.Ticker, mode config.Mode, portfolioState *domain.Portfolio, previousPrices map[domain.Ticker]float64) DayRecord {
	dateStr := day.Format("2006-01-02")
	record := DayRecord{Date: dateStr}

	orch := d.newDayOrchestrator(mode)

	var carryIn *domain.Portfolio
	if mode == config.ModePortfolio {
		carryIn = portfolioState.Clone()
	}

	outcome, err := func() (out orchestrator.DayOutcome, runErr error) {
		defer func() {
			if r := recover(); r != nil {
				runErr = fmt.Errorf("panic running day %s: %v", dateStr, r)
			}
		}()
		return orch.RunDay(ctx, day, tickers, carryIn)
	}()
	if err != nil {
		record.Failed = true
		record.Error = err.Error()
		d.log.Printf("day %s failed, portfolio carried forward unchanged: %v", dateStr, err)
		return record
	}

	pre := outcome.PreMarket
	report := outcome.TradeReport

	if pre.TradesDeferred {
		deferredReport, derr := orch.ExecuteDeferredTrades(ctx, outcome.State, pre.FinalDecisions, day)
		if derr != nil {
			record.Failed = true
			record.Error = derr.Error()
			d.log.Printf("deferred trade execution failed for %s: %v", dateStr, derr)
			return record
		}
		report = &deferredReport
	}

	if mode == config.ModePortfolio && report != nil {
		*portfolioState = *report.Portfolio
		if err := d.persist.WritePortfolioSnapshot(day, portfolioState); err != nil {
			d.log.Printf("write portfolio snapshot for %s swallowed: %v", dateStr, err)
		}
	}

	if _, err := d.dash.UpdateFromDayResult(day, pre, mode); err != nil {
		d.log.Printf("dashboard update for %s swallowed: %v", dateStr, err)
	}

	if len(outcome.State.CommunicationLogs.PrivateChats)+len(outcome.State.CommunicationLogs.Meetings) > 0 {
		if err := d.persist.WriteCommunicationLog(day, outcome.State.CommunicationLogs.CommunicationDecisions, append(outcome.State.CommunicationLogs.PrivateChats, outcome.State.CommunicationLogs.Meetings...)); err != nil {
			d.log.Printf("write communication log for %s swallowed: %v", dateStr, err)
		}
	}

	returns := computeReturns(tickers, previousPrices, pre.CurrentPrices)
	d.perf.RecordDay(day, computeAgentWinRates(outcome.State, returns))
	reflectionResults := d.reflect.Run(ctx, day, outcome.State, pre.FinalDecisions, returns)

	record.Result = domain.DayResult{
		Date:      day,
		PreMarket: pre,
		PostMarket: domain.PostMarketResult{ReflectionResults: reflectionResults},
	}
	return record
}

// newDayOrchestrator builds a fresh C9 for one day, so notify.Broadcaster's
// append-only inboxes start empty each day rather than accumulating
// notifications across the whole multi-day run.
func (d *Driver) newDayOrchestrator(mode config.Mode) *orchestrator.Orchestrator {
	cfg := *d.cfg
	cfg.Mode = mode

	riskMgr := risk.New(d.provider)
	pm := portfolio.New(d.client, d.mem)
	coordinator := comm.New(d.client, d.mem)
	notifyGate := notify.NewGate(d.client)
	broadcaster := notify.NewBroadcaster()

	return orchestrator.New(&cfg, d.agents, riskMgr, pm, coordinator, notifyGate, broadcaster, d.perf)
}

// computeAgentWinRates scores each analyst's round-2 directional call
// against the day's realized return, feeding the PerformanceTracker that
// backs SUPPLEMENTED FEATURES item 4's rolling win-rate window. An agent
// with no scored tickers that day is omitted rather than recorded as 0.
func computeAgentWinRates(state *orchestrator.DayState, returns map[domain.Ticker]reflection.TickerOutcome) map[string]float64 {
	out := make(map[string]float64, len(state.AnalystSignalsR2))
	for agentID, sig := range state.AnalystSignalsR2 {
		var scored, correct int
		for _, ts := range sig.TickerSignals {
			outcome, ok := returns[ts.Ticker]
			if !ok {
				continue
			}
			scored++
			if signalAgreesWithReturn(ts.Signal, outcome.ActualReturn) {
				correct++
			}
		}
		if scored > 0 {
			out[agentID] = float64(correct) / float64(scored)
		}
	}
	return out
}

func signalAgreesWithReturn(signal domain.Signal, actualReturn float64) bool {
	switch signal {
	case domain.SignalBullish:
		return actualReturn > 0.005
	case domain.SignalBearish:
		return actualReturn < -0.005
	default:
		return actualReturn >= -0.005 && actualReturn <= 0.005
	}
}

func computeReturns(tickers []domain.Ticker, previous map[domain.Ticker]float64, current map[domain.Ticker]decimal.Decimal) map[domain.Ticker]reflection.TickerOutcome {
	out := make(map[domain.Ticker]reflection.TickerOutcome, len(tickers))
	for _, t := range tickers {
		prev, havePrev := previous[t]
		cur, haveCur := current[t]
		var actual float64
		if havePrev && haveCur && prev != 0 {
			curFloat, _ := cur.Float64()
			actual = (curFloat - prev) / prev
		}
		out[t] = reflection.TickerOutcome{Ticker: t, ActualReturn: actual}
	}
	return out
}
