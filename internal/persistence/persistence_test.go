package persistence

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dyike/CortexGo/internal/config"
	"github.com/dyike/CortexGo/internal/domain"
)

func readFileHelper(path string) (string, error) {
	b, err := os.ReadFile(path)
	return string(b), err
}

func countLines(s string) int {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return 0
	}
	return len(strings.Split(s, "\n"))
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.StateDir = filepath.Join(dir, "state")
	cfg.MemoryOpsDir = filepath.Join(dir, "memory_ops")
	cfg.AnalysisResultsDir = filepath.Join(dir, "analysis_results")
	return cfg
}

func samplePortfolio() *domain.Portfolio {
	return &domain.Portfolio{
		Cash:              decimal.NewFromInt(10000),
		MarginRequirement: decimal.NewFromFloat(0.5),
		MarginUsed:        decimal.Zero,
		Positions: map[domain.Ticker]*domain.Position{
			"AAPL": {Long: 10, LongCostBasis: decimal.NewFromInt(150)},
		},
	}
}

func TestWriteAndRecoverPortfolioSnapshot(t *testing.T) {
	cfg := testConfig(t)
	svc := New(cfg)

	day := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	if err := svc.WritePortfolioSnapshot(day, samplePortfolio()); err != nil {
		t.Fatalf("WritePortfolioSnapshot: %v", err)
	}

	recovered, date, found, err := svc.LatestPortfolioSnapshot()
	if err != nil {
		t.Fatalf("LatestPortfolioSnapshot: %v", err)
	}
	if !found {
		t.Fatal("expected a snapshot to be found")
	}
	if !date.Equal(day) {
		t.Fatalf("expected date %v, got %v", day, date)
	}
	if !recovered.Cash.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("expected cash 10000, got %s", recovered.Cash)
	}
	pos, ok := recovered.Positions["AAPL"]
	if !ok || pos.Long != 10 {
		t.Fatalf("expected AAPL position with 10 long shares, got %+v", pos)
	}
}

func TestLatestPortfolioSnapshotPicksMostRecentDate(t *testing.T) {
	cfg := testConfig(t)
	svc := New(cfg)

	older := samplePortfolio()
	older.Cash = decimal.NewFromInt(1)
	newer := samplePortfolio()
	newer.Cash = decimal.NewFromInt(2)

	if err := svc.WritePortfolioSnapshot(time.Date(2026, 7, 27, 0, 0, 0, 0, time.UTC), older); err != nil {
		t.Fatalf("write older: %v", err)
	}
	if err := svc.WritePortfolioSnapshot(time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC), newer); err != nil {
		t.Fatalf("write newer: %v", err)
	}

	recovered, _, found, err := svc.LatestPortfolioSnapshot()
	if err != nil || !found {
		t.Fatalf("LatestPortfolioSnapshot: found=%v err=%v", found, err)
	}
	if !recovered.Cash.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("expected the newer snapshot's cash (2), got %s", recovered.Cash)
	}
}

func TestLatestPortfolioSnapshotNoneFound(t *testing.T) {
	cfg := testConfig(t)
	svc := New(cfg)

	_, _, found, err := svc.LatestPortfolioSnapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("expected found=false when state dir doesn't exist yet")
	}
}

func TestAppendMemoryOp(t *testing.T) {
	cfg := testConfig(t)
	svc := New(cfg)

	day := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	rec := MemoryOpRecord{AgentID: "market", OperationType: "ADD", ToolName: "memory_add", Result: "ok"}
	if err := svc.AppendMemoryOp(day, rec); err != nil {
		t.Fatalf("AppendMemoryOp: %v", err)
	}
	if err := svc.AppendMemoryOp(day, rec); err != nil {
		t.Fatalf("AppendMemoryOp (second line): %v", err)
	}

	path := filepath.Join(cfg.MemoryOpsDir, "memory_ops_20260729.jsonl")
	contents, err := readFileHelper(path)
	if err != nil {
		t.Fatalf("read memory ops log: %v", err)
	}
	if lines := countLines(contents); lines != 2 {
		t.Fatalf("expected 2 appended lines, got %d", lines)
	}
}

func TestWriteCommunicationLogSkippedWhenEmpty(t *testing.T) {
	cfg := testConfig(t)
	svc := New(cfg)

	if err := svc.WriteCommunicationLog(time.Now(), nil, nil); err != nil {
		t.Fatalf("WriteCommunicationLog: %v", err)
	}
	if dirExists(cfg.AnalysisResultsDir) {
		t.Fatal("expected no analysis results dir when there is nothing to log")
	}
}

func TestWriteCommunicationLogWritesFile(t *testing.T) {
	cfg := testConfig(t)
	svc := New(cfg)

	transcripts := []domain.CommunicationTranscript{{ID: "t1", Type: domain.CommMeeting}}
	when := time.Date(2026, 7, 29, 10, 30, 0, 0, time.UTC)
	if err := svc.WriteCommunicationLog(when, nil, transcripts); err != nil {
		t.Fatalf("WriteCommunicationLog: %v", err)
	}

	path := filepath.Join(cfg.AnalysisResultsDir, "communications_analysis_20260729_103000.json")
	if !fileExists(path) {
		t.Fatalf("expected communication log at %s", path)
	}
}
