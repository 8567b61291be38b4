// Package storage provides SQLite-backed persistence for scored option
// chain snapshots.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/optick/optionpulse/internal/models"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db      *sql.DB
	maxRows int
}

// New opens or creates the SQLite database at dbPath. Rotation keeps at
// most maxRows snapshot rows. An empty dbPath defaults to
// $TMPDIR/optionpulse/data.db.
func New(maxRows int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "optionpulse", "data.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db, maxRows: maxRows}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS option_snapshots (
			cycle_id        TEXT NOT NULL,
			symbol          TEXT NOT NULL,
			strike          REAL NOT NULL,
			type            TEXT NOT NULL,
			ltp             REAL NOT NULL,
			volume          INTEGER NOT NULL,
			oi              INTEGER NOT NULL,
			oi_change       INTEGER NOT NULL,
			iv              REAL NOT NULL,
			vol_10s         INTEGER NOT NULL,
			vol_30s         INTEGER NOT NULL,
			vol_1m          INTEGER NOT NULL,
			vol_3m          INTEGER NOT NULL,
			vol_5m          INTEGER NOT NULL,
			volume_score    REAL NOT NULL,
			oi_score        REAL NOT NULL,
			oi_change_score REAL NOT NULL,
			iv_score        REAL NOT NULL,
			vol_spike_score REAL NOT NULL,
			score           REAL NOT NULL,
			confidence      REAL NOT NULL,
			volume_power    INTEGER NOT NULL DEFAULT 0,
			timestamp       INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_timestamp ON option_snapshots(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_score ON option_snapshots(score DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

const snapshotCols = `cycle_id, symbol, strike, type, ltp, volume, oi, oi_change, iv,
	vol_10s, vol_30s, vol_1m, vol_3m, vol_5m,
	volume_score, oi_score, oi_change_score, iv_score, vol_spike_score,
	score, confidence, volume_power, timestamp`

// InsertBatch stores every row of one scored cycle in a single transaction.
func (s *Storage) InsertBatch(cycleID string, rows []models.ContractRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`INSERT INTO option_snapshots (` + snapshotCols + `)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range rows {
		r := &rows[i]
		if err := r.Validate(); err != nil {
			return fmt.Errorf("invalid row %s: %w", r.Symbol, err)
		}
		if _, err := stmt.Exec(
			cycleID, r.Symbol, r.Strike, r.Type, r.LTP, r.Volume, r.OI, r.OIChange, r.IV,
			r.Vol10s, r.Vol30s, r.Vol1m, r.Vol3m, r.Vol5m,
			r.VolumeScore, r.OIScore, r.OIChangeScore, r.IVScore, r.VolSpikeScore,
			r.Score, r.Confidence, boolToInt(r.VolumeBurst), r.Timestamp.UnixNano(),
		); err != nil {
			return fmt.Errorf("failed to insert snapshot %s: %w", r.Symbol, err)
		}
	}
	return tx.Commit()
}

// RecentSnapshots returns the newest persisted rows, highest score first
// within a timestamp.
func (s *Storage) RecentSnapshots(limit int) ([]models.ContractRow, error) {
	rows, err := s.db.Query(`SELECT `+snapshotCols+` FROM option_snapshots
		ORDER BY timestamp DESC, score DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// TopSnapshots returns the k highest-scoring rows observed since the given
// time.
func (s *Storage) TopSnapshots(k int, since time.Time) ([]models.ContractRow, error) {
	rows, err := s.db.Query(`SELECT `+snapshotCols+` FROM option_snapshots
		WHERE timestamp >= ? ORDER BY score DESC LIMIT ?`, since.UnixNano(), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query top snapshots: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// Rotate keeps at most maxRows newest snapshot rows.
func (s *Storage) Rotate() error {
	_, err := s.db.Exec(`
		DELETE FROM option_snapshots WHERE rowid NOT IN (
			SELECT rowid FROM option_snapshots ORDER BY timestamp DESC LIMIT ?
		)`, s.maxRows)
	if err != nil {
		return fmt.Errorf("failed to rotate snapshots: %w", err)
	}
	return nil
}

func scanRows(rows *sql.Rows) ([]models.ContractRow, error) {
	var result []models.ContractRow
	for rows.Next() {
		var r models.ContractRow
		var cycleID string
		var burst int
		var tsNano int64
		err := rows.Scan(
			&cycleID, &r.Symbol, &r.Strike, &r.Type, &r.LTP, &r.Volume, &r.OI, &r.OIChange, &r.IV,
			&r.Vol10s, &r.Vol30s, &r.Vol1m, &r.Vol3m, &r.Vol5m,
			&r.VolumeScore, &r.OIScore, &r.OIChangeScore, &r.IVScore, &r.VolSpikeScore,
			&r.Score, &r.Confidence, &burst, &tsNano,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		r.VolumeBurst = burst != 0
		r.Timestamp = time.Unix(0, tsNano)
		result = append(result, r)
	}
	if result == nil {
		result = []models.ContractRow{}
	}
	return result, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
