// Package memory implements the Memory Store (C2): user-scoped episodic
// memory with add/search/update/delete, backed by SQLite the way the
// teacher's internal/storage/sqlite.Store backs session/message history
// (same CREATE TABLE IF NOT EXISTS idiom, same *sql.DB-holding struct
// shape).
//
// The distilled spec treats the Memory Backend as an external collaborator
// (§6) reachable only through the four operations in §4.2; this package is
// the concrete adapter SPEC_FULL.md commits to for that collaborator. True
// semantic similarity search would need a vector/embedding backend, which is
// out of scope for the core (§1's "vector/episodic memory backend" is listed
// among external collaborators) — Search here ranks by token overlap between
// the query and each record's content, which satisfies the ordering
// contract in §4.2 ("not part of the contract") without requiring an
// embedding service.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/dyike/CortexGo/internal/domain"
)

// Store is the C2 capability contract (§4.2).
type Store interface {
	Add(ctx context.Context, content, userID string, metadata map[string]string) (string, error)
	Search(ctx context.Context, query, userID string, topK int) ([]domain.MemoryRecord, error)
	Update(ctx context.Context, id, newContent string, metadata map[string]string) error
	Delete(ctx context.Context, id string) error
}

// ErrNotFound is returned by Update/Delete when id has no matching record,
// matching §4.2's "report not_found".
var ErrNotFound = fmt.Errorf("memory record not found")

// SQLiteStore is the concrete Store, durable across days within one
// configuration namespace (one DB file per namespace).
type SQLiteStore struct {
	db *sql.DB

	// The spec only requires the store to be thread-safe from the
	// Orchestrator's point of view (§5); sql.DB is already safe for
	// concurrent use, this mutex only serializes the read-modify-write in
	// Update/Delete so two concurrent callers don't race on "does this id
	// exist".
	mu sync.Mutex
}

func Open(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create memory db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=3000;",
		"PRAGMA foreign_keys=ON;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %s: %w", pragma, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS memory_records (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    content TEXT NOT NULL,
    metadata TEXT NOT NULL DEFAULT '{}',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_memory_records_user ON memory_records(user_id);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("ensure memory schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Add(ctx context.Context, content, userID string, metadata map[string]string) (string, error) {
	id := uuid.NewString()
	meta, err := encodeMetadata(metadata)
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO memory_records (id, user_id, content, metadata)
VALUES (?, ?, ?, ?)
`, id, userID, content, meta)
	if err != nil {
		return "", fmt.Errorf("add memory record: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) Search(ctx context.Context, query, userID string, topK int) ([]domain.MemoryRecord, error) {
	if topK <= 0 {
		topK = 5
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, user_id, content, metadata, created_at
FROM memory_records
WHERE user_id = ?
`, userID)
	if err != nil {
		return nil, fmt.Errorf("search memory records: %w", err)
	}
	defer rows.Close()

	type scored struct {
		rec   domain.MemoryRecord
		score int
	}
	var candidates []scored

	terms := tokenize(query)
	for rows.Next() {
		var id, uid, content, metaRaw string
		var createdAt time.Time
		if err := rows.Scan(&id, &uid, &content, &metaRaw, &createdAt); err != nil {
			return nil, fmt.Errorf("scan memory record: %w", err)
		}
		meta, err := decodeMetadata(metaRaw)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, scored{
			rec: domain.MemoryRecord{
				ID: id, UserID: uid, Content: content, Metadata: meta, CreatedAt: createdAt,
			},
			score: overlapScore(terms, content),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search memory records rows: %w", err)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].rec.CreatedAt.After(candidates[j].rec.CreatedAt)
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	out := make([]domain.MemoryRecord, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.rec)
	}
	return out, nil
}

func (s *SQLiteStore) Update(ctx context.Context, id, newContent string, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if metadata == nil {
		res, err := s.db.ExecContext(ctx, `UPDATE memory_records SET content = ? WHERE id = ?`, newContent, id)
		if err != nil {
			return fmt.Errorf("update memory record: %w", err)
		}
		return checkAffected(res)
	}

	meta, err := encodeMetadata(metadata)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE memory_records SET content = ?, metadata = ? WHERE id = ?`, newContent, meta, id)
	if err != nil {
		return fmt.Errorf("update memory record: %w", err)
	}
	return checkAffected(res)
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM memory_records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete memory record: %w", err)
	}
	return checkAffected(res)
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	return fields
}

func overlapScore(terms []string, content string) int {
	lc := strings.ToLower(content)
	score := 0
	for _, t := range terms {
		if t == "" {
			continue
		}
		if strings.Contains(lc, t) {
			score++
		}
	}
	return score
}
