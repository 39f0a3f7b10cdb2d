// Package dashboard implements the Dashboard Sink external collaborator
// (§6): update_from_day_result(date, pre_market_result, mode) -> stats,
// fire-and-forget from the core's perspective (§4.11's Multi-Day Driver
// swallows its errors with a warning).
//
// Grounded on the teacher's internal/display package (box-drawn section
// headers, emoji-tagged lines) for the terminal preview, and on
// internal/cli/ui.go's lipgloss palette for the one-line day banner. The
// persisted side (state/team_dashboard/*.json) follows the file layout §6
// specifies directly; there is no teacher precedent for it since the
// teacher never wrote a day-over-day leaderboard, so the JSON shapes are
// new but the write style (os.WriteFile + json.MarshalIndent) matches
// internal/display.go's SaveResultsToFile.
package dashboard

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/dyike/CortexGo/internal/config"
	"github.com/dyike/CortexGo/internal/domain"
	"github.com/dyike/CortexGo/internal/obslog"
)

var (
	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6"))

	tickerUpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))

	tickerDownStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444"))
)

// Stats is what update_from_day_result returns to the caller (§6).
type Stats struct {
	Date          string
	TickersSeen   int
	DecisionCount int
	TotalTrades   int
}

// Sink is the Dashboard Sink. It holds accumulated state across days so the
// leaderboard and stats files reflect the whole run, not just one day.
type Sink struct {
	cfg   *config.Config
	log   obslogLogger
	state internalState
}

type obslogLogger = interface{ Printf(string, ...any) }

// internalState is the durable cross-day accumulator, round-tripped to
// _internal_state.json so a restarted driver resumes its leaderboard.
type internalState struct {
	Days        []dayEntry                `json:"days"`
	Leaderboard map[string]leaderboardRow `json:"leaderboard"`
}

type dayEntry struct {
	Date          string `json:"date"`
	Mode          string `json:"mode"`
	DecisionCount int    `json:"decision_count"`
	TradesDeferred bool  `json:"trades_deferred"`
}

type leaderboardRow struct {
	Ticker      string `json:"ticker"`
	BullishDays int    `json:"bullish_days"`
	BearishDays int    `json:"bearish_days"`
	NeutralDays int     `json:"neutral_days"`
	LastAction  string `json:"last_action"`
}

func New(cfg *config.Config) *Sink {
	s := &Sink{cfg: cfg, log: obslog.New("dashboard")}
	s.state = s.load()
	return s
}

func (s *Sink) load() internalState {
	path := filepath.Join(s.cfg.DashboardDir, "_internal_state.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return internalState{Leaderboard: map[string]leaderboardRow{}}
	}
	var st internalState
	if err := json.Unmarshal(raw, &st); err != nil {
		return internalState{Leaderboard: map[string]leaderboardRow{}}
	}
	if st.Leaderboard == nil {
		st.Leaderboard = map[string]leaderboardRow{}
	}
	return st
}

// UpdateFromDayResult is §6's update_from_day_result(date, pre_market_result,
// mode) -> stats contract. Failures writing any of the JSON artifacts are
// returned, not swallowed: §4.11 assigns the swallow-and-warn policy to the
// Multi-Day Driver, not to the sink itself.
func (s *Sink) UpdateFromDayResult(date time.Time, pre domain.PreMarketResult, mode config.Mode) (Stats, error) {
	dateStr := date.Format("2006-01-02")

	s.printPreview(dateStr, pre, mode)

	for ticker, decision := range pre.FinalDecisions {
		row := s.state.Leaderboard[ticker]
		row.Ticker = ticker
		switch decision.Action {
		case domain.ActionLong:
			row.BullishDays++
		case domain.ActionShort:
			row.BearishDays++
		default:
			row.NeutralDays++
		}
		row.LastAction = string(decision.Action)
		s.state.Leaderboard[ticker] = row
	}

	s.state.Days = append(s.state.Days, dayEntry{
		Date:           dateStr,
		Mode:           string(mode),
		DecisionCount:  len(pre.FinalDecisions),
		TradesDeferred: pre.TradesDeferred,
	})

	if err := os.MkdirAll(s.cfg.DashboardDir, 0o755); err != nil {
		return Stats{}, fmt.Errorf("dashboard: ensure dir: %w", err)
	}

	if err := s.writeSummary(dateStr, pre, mode); err != nil {
		return Stats{}, err
	}
	if err := s.writeHoldings(pre); err != nil {
		return Stats{}, err
	}
	if err := s.writeTrades(dateStr, pre); err != nil {
		return Stats{}, err
	}
	if err := s.writeLeaderboard(); err != nil {
		return Stats{}, err
	}
	if err := s.writeStats(); err != nil {
		return Stats{}, err
	}
	if err := s.writeInternalState(); err != nil {
		return Stats{}, err
	}

	return Stats{
		Date:          dateStr,
		TickersSeen:   len(pre.FinalDecisions),
		DecisionCount: len(pre.FinalDecisions),
		TotalTrades:   len(s.state.Days),
	}, nil
}

// printPreview renders the one-day console summary, in the teacher's
// display.go idiom: a boxed header, emoji-tagged sections, word-free tables
// kept simple since terminal width isn't measured here the way the teacher
// measures wrapped prose.
func (s *Sink) printPreview(dateStr string, pre domain.PreMarketResult, mode config.Mode) {
	fmt.Println()
	fmt.Println(bannerStyle.Render(fmt.Sprintf("═══ DASHBOARD UPDATE — %s (%s) ═══", dateStr, mode)))

	tickers := make([]string, 0, len(pre.FinalDecisions))
	for t := range pre.FinalDecisions {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	for _, t := range tickers {
		d := pre.FinalDecisions[t]
		line := fmt.Sprintf("  %-8s %-6s qty=%-6d conf=%.0f%%", t, d.Action, d.Quantity, d.Confidence)
		switch d.Action {
		case domain.ActionLong:
			fmt.Println(tickerUpStyle.Render(line))
		case domain.ActionShort:
			fmt.Println(tickerDownStyle.Render(line))
		default:
			fmt.Println(line)
		}
	}
	if pre.TradesDeferred {
		fmt.Println("  (trades deferred to post-close execution)")
	}
	fmt.Println()
}

func (s *Sink) writeSummary(dateStr string, pre domain.PreMarketResult, mode config.Mode) error {
	summary := map[string]any{
		"date":            dateStr,
		"mode":            mode,
		"tickers":         len(pre.FinalDecisions),
		"trades_deferred": pre.TradesDeferred,
		"generated_at":    dateStr,
	}
	return writeJSON(filepath.Join(s.cfg.DashboardDir, "summary.json"), summary)
}

func (s *Sink) writeHoldings(pre domain.PreMarketResult) error {
	holdings := make(map[string]any, len(pre.CurrentPrices))
	for t, price := range pre.CurrentPrices {
		holdings[t] = map[string]any{"current_price": price.String()}
	}
	return writeJSON(filepath.Join(s.cfg.DashboardDir, "holdings.json"), holdings)
}

func (s *Sink) writeTrades(dateStr string, pre domain.PreMarketResult) error {
	type tradeRow struct {
		Date       string          `json:"date"`
		Ticker     string          `json:"ticker"`
		Action     domain.Action   `json:"action"`
		Quantity   int64           `json:"quantity"`
		Confidence float64         `json:"confidence"`
		Price      decimal.Decimal `json:"price"`
	}
	rows := make([]tradeRow, 0, len(pre.FinalDecisions))
	for t, d := range pre.FinalDecisions {
		if d.Action == domain.ActionHold {
			continue
		}
		rows = append(rows, tradeRow{
			Date: dateStr, Ticker: t, Action: d.Action, Quantity: d.Quantity,
			Confidence: d.Confidence, Price: pre.CurrentPrices[t],
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Ticker < rows[j].Ticker })
	return writeJSON(filepath.Join(s.cfg.DashboardDir, "trades.json"), rows)
}

func (s *Sink) writeLeaderboard() error {
	rows := make([]leaderboardRow, 0, len(s.state.Leaderboard))
	for _, row := range s.state.Leaderboard {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Ticker < rows[j].Ticker })
	return writeJSON(filepath.Join(s.cfg.DashboardDir, "leaderboard.json"), rows)
}

func (s *Sink) writeStats() error {
	stats := map[string]any{
		"total_days": len(s.state.Days),
		"tickers_tracked": len(s.state.Leaderboard),
	}
	return writeJSON(filepath.Join(s.cfg.DashboardDir, "stats.json"), stats)
}

func (s *Sink) writeInternalState() error {
	return writeJSON(filepath.Join(s.cfg.DashboardDir, "_internal_state.json"), s.state)
}

func writeJSON(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("dashboard: marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("dashboard: write %s: %w", filepath.Base(path), err)
	}
	return nil
}
