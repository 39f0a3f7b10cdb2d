package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/dyike/CortexGo/internal/analyst"
	"github.com/dyike/CortexGo/internal/comm"
	"github.com/dyike/CortexGo/internal/config"
	"github.com/dyike/CortexGo/internal/domain"
	"github.com/dyike/CortexGo/internal/notify"
	"github.com/dyike/CortexGo/internal/obslog"
	"github.com/dyike/CortexGo/internal/portfolio"
	"github.com/dyike/CortexGo/internal/risk"
)

// maxRoundOneRetries is §4.5 round-2 step 2's "re-runs round 1 up to 10
// times before aborting that analyst".
const maxRoundOneRetries = 10

// workerPoolSize is §5's "worker pool of size 4 by default".
const workerPoolSize = 4

// Orchestrator is C9.
type Orchestrator struct {
	cfg         *config.Config
	agents      []*analyst.Agent
	risk        *risk.Manager
	pm          *portfolio.Manager
	executor    *portfolio.TradeExecutor
	coordinator *comm.Coordinator
	notifyGate  *notify.Gate
	broadcaster *notify.Broadcaster
	perf        *portfolio.PerformanceTracker
	log         loggerT
}

type loggerT = interface{ Printf(string, ...any) }

// perfWindowDays is how many trailing days of win rates the PM sees per
// SUPPLEMENTED FEATURES item 4.
const perfWindowDays = 3

func New(cfg *config.Config, agents []*analyst.Agent, riskMgr *risk.Manager, pm *portfolio.Manager, coordinator *comm.Coordinator, notifyGate *notify.Gate, broadcaster *notify.Broadcaster, perf *portfolio.PerformanceTracker) *Orchestrator {
	if perf == nil {
		perf = portfolio.NewPerformanceTracker()
	}
	return &Orchestrator{
		cfg:         cfg,
		agents:      agents,
		risk:        riskMgr,
		pm:          pm,
		executor:    portfolio.NewTradeExecutor(),
		coordinator: coordinator,
		notifyGate:  notifyGate,
		broadcaster: broadcaster,
		perf:        perf,
		log:         obslog.New("orchestrator"),
	}
}

// DayOutcome is what RunDay returns: the mutated state, the pre-market
// result, and (in non-live mode) the trade executor's report. TradeReport
// is nil when trades were deferred.
type DayOutcome struct {
	State       *DayState
	PreMarket   domain.PreMarketResult
	TradeReport *portfolio.TradeExecutionReport
}

// RunDay implements §4.9's full per-day phase sequence.
func (o *Orchestrator) RunDay(ctx context.Context, tradingDate time.Time, tickers []domain.Ticker, carryIn *domain.Portfolio) (DayOutcome, error) {
	state := newDayState(tickers, tradingDate, o.cfg.IsLiveMode, carryIn)

	for _, a := range o.agents {
		o.broadcaster.Register(a.AgentID)
	}

	// Phase A: analyst round 1, parallel, bounded worker pool.
	o.runRoundOne(ctx, state)

	// Phase B: optional second round, gated on notifications being enabled
	// (§4.9 step 3).
	if o.cfg.EnableNotifications {
		o.runRoundTwo(ctx, state)
	}

	// Phase C: risk manager, sequential.
	riskMode := risk.ModeBasic
	if o.cfg.Mode == config.ModePortfolio {
		riskMode = risk.ModePortfolio
	}
	for _, ticker := range tickers {
		assessment, err := o.risk.Assess(ctx, ticker, tradingDate, riskMode, state.IsLiveMode, state.Portfolio)
		if err != nil {
			o.log.Printf("risk assessment failed for %s: %v", ticker, err)
			continue
		}
		state.RiskByTicker[ticker] = assessment
		priceFloat, _ := assessment.CurrentPrice.Float64()
		state.CurrentPrices[ticker] = priceFloat
	}

	// Phase D: portfolio manager + communication.
	canonical := portfolio.NormalizeAnalystSignals(state.AnalystSignalsR1, state.AnalystSignalsR2)
	pmMode := portfolio.ModeDirection
	if o.cfg.Mode == config.ModePortfolio {
		pmMode = portfolio.ModePortfolio
	}
	binding := o.cfg.ModelFor("portfolio_manager", true)

	currentDecisions := o.pm.Decide(ctx, binding.ModelName, binding.Provider, pmMode, tickers, canonical, state.RiskByTicker, nil, o.perf.RecentWindow(perfWindowDays), state.Portfolio)

	if o.cfg.EnableCommunications {
		currentDecisions = o.runCommunication(ctx, state, currentDecisions, canonical)
	}

	currentPrices := toDecimalPrices(state.CurrentPrices)

	preMarket := domain.PreMarketResult{
		Signals:        signalsView(state),
		FinalDecisions: currentDecisions,
		CurrentPrices:  currentPrices,
	}

	if state.IsLiveMode {
		// §4.9's deferred-execution rule: stop here, tagged trades_deferred.
		preMarket.TradesDeferred = true
		return DayOutcome{State: state, PreMarket: preMarket}, nil
	}

	report := o.executor.Execute(state.Portfolio, currentDecisions, currentPrices)
	return DayOutcome{State: state, PreMarket: preMarket, TradeReport: &report}, nil
}

// ExecuteDeferredTrades implements §4.9's execute_deferred_trades: re-runs
// the Risk Manager with is_live_mode=false so the trade executor sees
// closing prices, then invokes the trade executor (P3).
func (o *Orchestrator) ExecuteDeferredTrades(ctx context.Context, state *DayState, decisions map[domain.Ticker]domain.PortfolioDecision, closeDate time.Time) (portfolio.TradeExecutionReport, error) {
	state.EndDate = closeDate
	state.IsLiveMode = false

	riskMode := risk.ModeBasic
	if o.cfg.Mode == config.ModePortfolio {
		riskMode = risk.ModePortfolio
	}
	for _, ticker := range state.Tickers {
		assessment, err := o.risk.Assess(ctx, ticker, closeDate, riskMode, false, state.Portfolio)
		if err != nil {
			return portfolio.TradeExecutionReport{}, fmt.Errorf("deferred risk re-assess %s: %w", ticker, err)
		}
		state.RiskByTicker[ticker] = assessment
		priceFloat, _ := assessment.CurrentPrice.Float64()
		state.CurrentPrices[ticker] = priceFloat
	}

	currentPrices := toDecimalPrices(state.CurrentPrices)
	report := o.executor.Execute(state.Portfolio, decisions, currentPrices)
	return report, nil
}

func (o *Orchestrator) runRoundOne(ctx context.Context, state *DayState) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerPoolSize)

	for _, a := range o.agents {
		a := a
		g.Go(func() error {
			byTicker, ok := o.roundOneForAgent(gctx, a, state)
			if !ok {
				state.mergeRoundOne(a.AgentID, byTicker, StatusNoResult)
				return nil
			}
			state.mergeRoundOne(a.AgentID, byTicker, StatusOK)
			o.maybeNotify(gctx, a, byTicker)
			return nil
		})
	}
	_ = g.Wait() // each task captures its own failure into AnalystStatus; no task failure aborts the pipeline (§5, §7).
}

// roundOneForAgent runs one analyst's round 1 across every ticker. A
// per-agent task failure (a panic recovered below, or a day with no
// tickers to analyze) degrades to "no result" rather than aborting
// the pipeline (§7's "Agent-level failure" row).
func (o *Orchestrator) roundOneForAgent(ctx context.Context, a *analyst.Agent, state *DayState) (byTicker map[domain.Ticker]domain.AnalystSignalR1, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Printf("analyst %s panicked in round one: %v", a.AgentID, r)
			byTicker, ok = nil, false
		}
	}()

	marketConditions := fmt.Sprintf("session for %s covering %v", state.TradingDate.Format("2006-01-02"), state.Tickers)

	byTicker = map[domain.Ticker]domain.AnalystSignalR1{}
	for _, ticker := range state.Tickers {
		result := a.RoundOne(ctx, ticker, state.LookbackStart, state.TradingDate, marketConditions)
		byTicker[ticker] = result.Signal
	}
	return byTicker, len(byTicker) > 0
}

func (o *Orchestrator) maybeNotify(ctx context.Context, a *analyst.Agent, byTicker map[domain.Ticker]domain.AnalystSignalR1) {
	if o.notifyGate == nil || o.broadcaster == nil {
		return
	}
	for ticker, sig := range byTicker {
		if sig.Confidence < 70 {
			continue
		}
		binding := o.cfg.ModelFor(a.AgentID, false)
		should, urgency := o.notifyGate.ShouldNotify(ctx, binding.ModelName, binding.Provider, a.AgentID, sig.Reasoning, string(sig.Signal))
		if should {
			o.broadcaster.Broadcast(a.AgentID, fmt.Sprintf("%s: %s (%s, %.0f%%)", ticker, sig.Reasoning, sig.Signal, sig.Confidence), urgency, "round_one")
		}
	}
}

func (o *Orchestrator) runRoundTwo(ctx context.Context, state *DayState) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerPoolSize)

	overview := buildOverview(state.snapshotRoundOne())

	for _, a := range o.agents {
		a := a
		if state.AnalystStatus[a.AgentID] != StatusOK {
			continue
		}
		g.Go(func() error {
			o.roundTwoForAgent(gctx, a, state, overview)
			return nil
		})
	}
	_ = g.Wait()
}

func (o *Orchestrator) roundTwoForAgent(ctx context.Context, a *analyst.Agent, state *DayState, overview string) {
	state.mu.Lock()
	own := state.AnalystSignalsR1[a.AgentID]
	state.mu.Unlock()

	for attempt := 0; attempt < maxRoundOneRetries; attempt++ {
		if analyst.ValidRoundOneInput(own) {
			break
		}
		marketConditions := fmt.Sprintf("retry %d for %s", attempt+1, state.TradingDate.Format("2006-01-02"))
		byTicker := map[domain.Ticker]domain.AnalystSignalR1{}
		for _, ticker := range state.Tickers {
			result := a.RoundOne(ctx, ticker, state.LookbackStart, state.TradingDate, marketConditions)
			byTicker[ticker] = result.Signal
		}
		own = byTicker
		state.mergeRoundOne(a.AgentID, own, StatusOK)
	}
	if !analyst.ValidRoundOneInput(own) {
		o.log.Printf("analyst %s aborted after %d round-one retries", a.AgentID, maxRoundOneRetries)
		return
	}

	notifications := o.broadcaster.Inbox(a.AgentID)
	signal, err := a.RoundTwo(ctx, own, overview, notifications)
	if err != nil {
		o.log.Printf("analyst %s round two failed: %v", a.AgentID, err)
		return
	}
	state.mergeRoundTwo(a.AgentID, signal)
}

func (o *Orchestrator) runCommunication(ctx context.Context, state *DayState, initialDecisions map[domain.Ticker]domain.PortfolioDecision, canonical map[string]map[domain.Ticker]portfolio.CanonicalSignal) map[domain.Ticker]domain.PortfolioDecision {
	agents := make([]comm.AgentInfo, 0, len(o.agents))
	for _, a := range o.agents {
		agents = append(agents, comm.AgentInfo{ID: a.AgentID, Name: a.AgentName})
	}

	binding := o.cfg.ModelFor("communication_coordinator", false)
	cycleCfg := comm.CycleConfig{MaxRounds: o.cfg.CommunicationMaxRounds, MaxChars: o.cfg.CommunicationMaxChars}

	currentR2 := state.AnalystSignalsR2
	currentDecisions := initialDecisions
	pmMode := portfolio.ModeDirection
	if o.cfg.Mode == config.ModePortfolio {
		pmMode = portfolio.ModePortfolio
	}

	for cycle := 0; cycle < o.cfg.MaxCommunicationCycles; cycle++ {
		outcome, err := o.coordinator.RunCycle(ctx, binding.ModelName, binding.Provider, cycleCfg, agents, currentR2, currentDecisions)
		if err != nil {
			o.log.Printf("communication cycle %d failed: %v", cycle, err)
			break
		}
		state.CommunicationLogs.CommunicationDecisions = append(state.CommunicationLogs.CommunicationDecisions, outcome.Decision)
		for _, t := range outcome.Transcripts {
			if t.Type == domain.CommMeeting {
				state.CommunicationLogs.Meetings = append(state.CommunicationLogs.Meetings, t)
			} else {
				state.CommunicationLogs.PrivateChats = append(state.CommunicationLogs.PrivateChats, t)
			}
		}

		if !outcome.Decision.ShouldCommunicate {
			break
		}
		if !outcome.ShouldReinvokePM {
			break
		}

		currentR2 = outcome.UpdatedSignals
		for agentID, sig := range currentR2 {
			state.mergeRoundTwo(agentID, sig)
		}
		canonical = portfolio.NormalizeAnalystSignals(state.AnalystSignalsR1, currentR2)
		pmBinding := o.cfg.ModelFor("portfolio_manager", true)
		currentDecisions = o.pm.Decide(ctx, pmBinding.ModelName, pmBinding.Provider, pmMode, state.Tickers, canonical, state.RiskByTicker, nil, o.perf.RecentWindow(perfWindowDays), state.Portfolio)
	}

	return currentDecisions
}

func buildOverview(byAgent map[string]map[domain.Ticker]domain.AnalystSignalR1) string {
	raw, err := json.Marshal(byAgent)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func signalsView(state *DayState) map[string]any {
	out := map[string]any{}
	for agentID, byTicker := range state.AnalystSignalsR1 {
		out[agentID] = byTicker
	}
	for agentID, sig := range state.AnalystSignalsR2 {
		out[agentID+"_round2"] = sig
	}
	out["risk_manager"] = state.RiskByTicker
	return out
}

func toDecimalPrices(prices map[domain.Ticker]float64) map[domain.Ticker]decimal.Decimal {
	out := make(map[domain.Ticker]decimal.Decimal, len(prices))
	for t, p := range prices {
		out[t] = decimal.NewFromFloat(p)
	}
	return out
}
