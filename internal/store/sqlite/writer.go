package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/mattn/go-sqlite3"

	"marketcore/internal/metrics"
	"marketcore/internal/model"
	"marketcore/internal/store"
)

const dsnParams = "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"

// Config configures the SQLite store.
type Config struct {
	DBPath string // path to SQLite database file, e.g. "data/bars.db"
}

// Store is a BarStore backed by SQLite. Writes go through a single connection;
// reads use a small separate pool so queries never queue behind a batch.
type Store struct {
	db     *sql.DB // writer, one connection
	reader *sql.DB
	locks  *store.KeyedMutex
}

var _ model.BarStore = (*Store)(nil)

// DB returns the writer sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// New opens the database in WAL mode and creates the schema.
func New(cfg Config) (*Store, error) {
	db, err := openPool(cfg.DBPath, 1)
	if err != nil {
		return nil, err
	}
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	reader, err := openPool(cfg.DBPath, 4)
	if err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[sqlite] opened %s (1 writer, 4 readers)", cfg.DBPath)
	return &Store{db: db, reader: reader, locks: store.NewKeyedMutex()}, nil
}

func openPool(path string, conns int) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("sqlite open %s: %w", path, err)
	}
	db.SetMaxOpenConns(conns)
	db.SetMaxIdleConns(conns)
	return db, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			symbol  TEXT    NOT NULL,
			ts      INTEGER NOT NULL,
			open    REAL    NOT NULL,
			high    REAL    NOT NULL,
			low     REAL    NOT NULL,
			close   REAL    NOT NULL,
			volume  INTEGER NOT NULL,
			source  TEXT    NOT NULL,
			PRIMARY KEY (symbol, ts)
		);

		CREATE INDEX IF NOT EXISTS idx_bars_symbol_ts_desc ON bars (symbol, ts DESC);
	`)
	return err
}

// Append inserts one bar. The primary key rejects a second bar with the same
// (symbol, ts); the stored row is never replaced.
func (s *Store) Append(ctx context.Context, bar model.Bar) error {
	bar = bar.Normalize()
	if err := bar.Validate(); err != nil {
		return err
	}
	unlock := s.locks.Lock(bar.Symbol)
	defer unlock()

	start := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bars (symbol, ts, open, high, low, close, volume, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, bar.Symbol, bar.Timestamp.Unix(), bar.Open, bar.High, bar.Low, bar.Close, bar.Volume, string(bar.Source))
	metrics.StoreLatency.WithLabelValues("append").Observe(time.Since(start).Seconds())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", model.ErrDuplicateBar, bar.Key())
		}
		return fmt.Errorf("sqlite insert %s: %w", bar.Key(), err)
	}
	return nil
}

// AppendBatch inserts bars in a single transaction, skipping rows that already
// exist. Every bar is validated before the transaction starts.
func (s *Store) AppendBatch(ctx context.Context, bars []model.Bar) (int, error) {
	normalized := make([]model.Bar, len(bars))
	for i, b := range bars {
		normalized[i] = b.Normalize()
		if err := normalized[i].Validate(); err != nil {
			return 0, err
		}
	}

	defer s.lockSymbols(normalized)()

	start := time.Now()
	inserted, err := s.insertBatch(ctx, normalized)
	if err != nil {
		log.Printf("[sqlite] batch insert error: %v", err)
		return 0, err
	}
	metrics.StoreLatency.WithLabelValues("append_batch").Observe(time.Since(start).Seconds())
	log.Printf("[sqlite] committed %d/%d bars in %v", inserted, len(bars), time.Since(start))
	return inserted, nil
}

// lockSymbols takes the write lock of every symbol in bars, in sorted order
// so two overlapping batches cannot deadlock, and returns the release func.
func (s *Store) lockSymbols(bars []model.Bar) func() {
	seen := make(map[string]struct{})
	var syms []string
	for _, b := range bars {
		if _, ok := seen[b.Symbol]; !ok {
			seen[b.Symbol] = struct{}{}
			syms = append(syms, b.Symbol)
		}
	}
	sort.Strings(syms)

	unlocks := make([]func(), 0, len(syms))
	for _, sym := range syms {
		unlocks = append(unlocks, s.locks.Lock(sym))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

func (s *Store) insertBatch(ctx context.Context, bars []model.Bar) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO bars (symbol, ts, open, high, low, close, volume, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, b := range bars {
		res, err := stmt.ExecContext(ctx, b.Symbol, b.Timestamp.Unix(), b.Open, b.High, b.Low, b.Close, b.Volume, string(b.Source))
		if err != nil {
			tx.Rollback()
			return 0, err
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

func isUniqueViolation(err error) bool {
	var sqErr sqlite3.Error
	if !errors.As(err, &sqErr) {
		return false
	}
	return sqErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// Close closes both connection pools.
func (s *Store) Close() error {
	rerr := s.reader.Close()
	if err := s.db.Close(); err != nil {
		return err
	}
	return rerr
}
