// Package persistence implements §9's "Per-day file writes scattered across
// components" redesign flag: a single PersistenceService with three
// operations (write_portfolio_snapshot, append_memory_op,
// write_communication_log), so every component that needs to touch disk
// calls through here instead of open-coding its own os.MkdirAll/os.Create.
//
// Grounded on the teacher's config.Config directory fields (ResultsDir,
// StateDir, MemoryOpsDir, AnalysisResultsDir) and its plain
// encoding/json + os.WriteFile idiom (no embedded DB migrations package is
// used for these file writes in the teacher either).
package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dyike/CortexGo/internal/config"
	"github.com/dyike/CortexGo/internal/domain"
)

// Service is the centralized write path named in §9. Failures are returned
// to the caller rather than logged here — the Multi-Day Driver is the one
// place §7 asks to swallow a partial write with a warning, so it owns the
// obslog call.
type Service struct {
	cfg *config.Config
}

func New(cfg *config.Config) *Service {
	return &Service{cfg: cfg}
}

// PortfolioSnapshot mirrors §6's `state/portfolio_<YYYY-MM-DD>.json` shape.
type PortfolioSnapshot struct {
	Date      string          `json:"date"`
	Timestamp time.Time       `json:"timestamp"`
	Portfolio json.RawMessage `json:"portfolio"`
}

type portfolioJSON struct {
	Cash              string                    `json:"cash"`
	Positions         map[string]positionJSON   `json:"positions"`
	MarginRequirement string                    `json:"margin_requirement"`
	MarginUsed        string                    `json:"margin_used"`
}

type positionJSON struct {
	Long           int64  `json:"long"`
	Short          int64  `json:"short"`
	LongCostBasis  string `json:"long_cost_basis"`
	ShortCostBasis string `json:"short_cost_basis"`
}

// WritePortfolioSnapshot implements §4.11 step 3 and §6's persisted state
// layout: one JSON file per day, at-most-once per (namespace, date) — a
// re-run for the same date overwrites rather than duplicating, which is
// the simplest at-most-once discipline a single os.WriteFile gives us.
func (s *Service) WritePortfolioSnapshot(date time.Time, portfolio *domain.Portfolio) error {
	if err := os.MkdirAll(s.cfg.StateDir, 0o755); err != nil {
		return fmt.Errorf("ensure state dir: %w", err)
	}

	pj := portfolioJSON{
		Cash:              portfolio.Cash.String(),
		MarginRequirement: portfolio.MarginRequirement.String(),
		MarginUsed:        portfolio.MarginUsed.String(),
		Positions:         map[string]positionJSON{},
	}
	for ticker, pos := range portfolio.Positions {
		pj.Positions[ticker] = positionJSON{
			Long: pos.Long, Short: pos.Short,
			LongCostBasis: pos.LongCostBasis.String(), ShortCostBasis: pos.ShortCostBasis.String(),
		}
	}
	raw, err := json.Marshal(pj)
	if err != nil {
		return fmt.Errorf("marshal portfolio: %w", err)
	}

	snapshot := PortfolioSnapshot{
		Date:      date.Format("2006-01-02"),
		Timestamp: time.Now().UTC(),
		Portfolio: raw,
	}
	out, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	path := filepath.Join(s.cfg.StateDir, fmt.Sprintf("portfolio_%s.json", date.Format("2006-01-02")))
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write portfolio snapshot: %w", err)
	}
	return nil
}

// LatestPortfolioSnapshot implements §4.11 step 2's recovery: finds the
// most recent portfolio_*.json under StateDir, if any.
func (s *Service) LatestPortfolioSnapshot() (*domain.Portfolio, time.Time, bool, error) {
	entries, err := os.ReadDir(s.cfg.StateDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, time.Time{}, false, nil
		}
		return nil, time.Time{}, false, fmt.Errorf("read state dir: %w", err)
	}

	var latestPath string
	var latestDate time.Time
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		var dateStr string
		if n, _ := fmt.Sscanf(e.Name(), "portfolio_%10s.json", &dateStr); n != 1 {
			continue
		}
		d, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		if latestPath == "" || d.After(latestDate) {
			latestPath, latestDate = filepath.Join(s.cfg.StateDir, e.Name()), d
		}
	}
	if latestPath == "" {
		return nil, time.Time{}, false, nil
	}

	raw, err := os.ReadFile(latestPath)
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("read portfolio snapshot: %w", err)
	}
	var snapshot PortfolioSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, time.Time{}, false, fmt.Errorf("parse portfolio snapshot: %w", err)
	}
	var pj portfolioJSON
	if err := json.Unmarshal(snapshot.Portfolio, &pj); err != nil {
		return nil, time.Time{}, false, fmt.Errorf("parse portfolio payload: %w", err)
	}

	return decodePortfolio(pj), latestDate, true, nil
}

// MemoryOpRecord is one line of §6's memory_ops_<YYYYMMDD>.jsonl.
type MemoryOpRecord struct {
	Timestamp     time.Time `json:"timestamp"`
	AgentID       string    `json:"agent_id"`
	OperationType string    `json:"operation_type"`
	ToolName      string    `json:"tool_name"`
	Args          any       `json:"args"`
	Result        string    `json:"result"`
	Context       string    `json:"context"`
}

// AppendMemoryOp implements §4.10's "All memory operations performed by C10
// are appended to a per-day JSONL log file", and §6's path convention.
func (s *Service) AppendMemoryOp(date time.Time, rec MemoryOpRecord) error {
	if err := os.MkdirAll(s.cfg.MemoryOpsDir, 0o755); err != nil {
		return fmt.Errorf("ensure memory ops dir: %w", err)
	}

	path := filepath.Join(s.cfg.MemoryOpsDir, fmt.Sprintf("memory_ops_%s.jsonl", date.Format("20060102")))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open memory ops log: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal memory op: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write memory op: %w", err)
	}
	return nil
}

// WriteCommunicationLog implements §6's
// analysis_results_logs/communications_analysis_<YYYYMMDD_HHMMSS>.json,
// written only "when communication logging is enabled" (here: when the
// caller has any decisions or transcripts to write at all).
func (s *Service) WriteCommunicationLog(when time.Time, decisions []domain.CommunicationDecision, transcripts []domain.CommunicationTranscript) error {
	if len(transcripts) == 0 && len(decisions) == 0 {
		return nil
	}
	if err := os.MkdirAll(s.cfg.AnalysisResultsDir, 0o755); err != nil {
		return fmt.Errorf("ensure analysis results dir: %w", err)
	}

	payload := struct {
		Decisions   []domain.CommunicationDecision   `json:"decisions"`
		Transcripts []domain.CommunicationTranscript `json:"transcripts"`
	}{Decisions: decisions, Transcripts: transcripts}

	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal communication log: %w", err)
	}

	path := filepath.Join(s.cfg.AnalysisResultsDir, fmt.Sprintf("communications_analysis_%s.json", when.Format("20060102_150405")))
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write communication log: %w", err)
	}
	return nil
}

func decodePortfolio(pj portfolioJSON) *domain.Portfolio {
	p := &domain.Portfolio{
		Positions: map[domain.Ticker]*domain.Position{},
	}
	p.Cash = mustDecimal(pj.Cash)
	p.MarginRequirement = mustDecimal(pj.MarginRequirement)
	p.MarginUsed = mustDecimal(pj.MarginUsed)
	for ticker, pos := range pj.Positions {
		p.Positions[ticker] = &domain.Position{
			Long: pos.Long, Short: pos.Short,
			LongCostBasis:  mustDecimal(pos.LongCostBasis),
			ShortCostBasis: mustDecimal(pos.ShortCostBasis),
		}
	}
	return p
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
