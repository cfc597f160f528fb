// File path: internal/community/store.go
package community

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Store persists community summaries to SQLite so the query path can load a
// snapshot at startup without re-running the batch job.
type Store struct {
	db *sqlx.DB
}

// OpenStore opens (and migrates) the summary database. An empty path falls
// back to GRAPHDESK_COMMUNITY_DB, then data/communities.db.
func OpenStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		path = strings.TrimSpace(os.Getenv("GRAPHDESK_COMMUNITY_DB"))
	}
	if path == "" {
		path = filepath.Join("data", "communities.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create community db dir: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve community db path: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", abs)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open community db: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping community db: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS community_summaries (
        community_id INTEGER PRIMARY KEY,
        size INTEGER NOT NULL,
        top_tickets TEXT NOT NULL,
        frequent_terms TEXT NOT NULL,
        reason TEXT NOT NULL,
        built_at TEXT NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("migrate community db: %w", err)
	}
	return nil
}

type summaryRow struct {
	CommunityID   int64  `db:"community_id"`
	Size          int    `db:"size"`
	TopTickets    string `db:"top_tickets"`
	FrequentTerms string `db:"frequent_terms"`
	Reason        string `db:"reason"`
	BuiltAt       string `db:"built_at"`
}

// SaveAll replaces the stored summary table with the given batch result in
// one transaction.
func (s *Store) SaveAll(ctx context.Context, summaries []Summary) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin summary save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM community_summaries`); err != nil {
		return fmt.Errorf("clear summaries: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	for _, summary := range summaries {
		tickets, err := json.Marshal(summary.TopTickets)
		if err != nil {
			return fmt.Errorf("encode top tickets: %w", err)
		}
		terms, err := json.Marshal(summary.FrequentTerms)
		if err != nil {
			return fmt.Errorf("encode frequent terms: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO community_summaries (community_id, size, top_tickets, frequent_terms, reason, built_at)
VALUES (?, ?, ?, ?, ?, ?)`,
			summary.CommunityID, summary.Size, string(tickets), string(terms), summary.Reason, now)
		if err != nil {
			return fmt.Errorf("insert summary %d: %w", summary.CommunityID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit summary save: %w", err)
	}
	return nil
}

// LoadAll reads every stored summary, ordered by community id.
func (s *Store) LoadAll(ctx context.Context) ([]Summary, error) {
	var rows []summaryRow
	err := s.db.SelectContext(ctx, &rows, `
SELECT community_id, size, top_tickets, frequent_terms, reason, built_at
FROM community_summaries ORDER BY community_id`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load summaries: %w", err)
	}
	summaries := make([]Summary, 0, len(rows))
	for _, row := range rows {
		summary := Summary{
			CommunityID: row.CommunityID,
			Size:        row.Size,
			Reason:      row.Reason,
		}
		if err := json.Unmarshal([]byte(row.TopTickets), &summary.TopTickets); err != nil {
			return nil, fmt.Errorf("decode top tickets for %d: %w", row.CommunityID, err)
		}
		if err := json.Unmarshal([]byte(row.FrequentTerms), &summary.FrequentTerms); err != nil {
			return nil, fmt.Errorf("decode frequent terms for %d: %w", row.CommunityID, err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
