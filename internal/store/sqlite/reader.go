package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"marketcore/internal/metrics"
	"marketcore/internal/model"
)

const barColumns = `symbol, ts, open, high, low, close, volume, source`

// Query returns up to limit bars for symbol, newest first. Served by
// idx_bars_symbol_ts_desc.
func (s *Store) Query(ctx context.Context, symbol string, limit int) ([]model.Bar, error) {
	if limit <= 0 {
		return nil, nil
	}
	start := time.Now()
	defer func() {
		metrics.StoreLatency.WithLabelValues("query").Observe(time.Since(start).Seconds())
	}()

	rows, err := s.reader.QueryContext(ctx, `
		SELECT `+barColumns+`
		FROM bars
		WHERE symbol = ?
		ORDER BY ts DESC
		LIMIT ?
	`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars %s: %w", symbol, err)
	}
	defer rows.Close()

	bars := make([]model.Bar, 0, limit)
	for rows.Next() {
		b, err := scanBar(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite scan bars: %w", err)
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// Latest returns the newest bar for symbol. It holds the symbol's read lock so
// it never observes a write in progress.
func (s *Store) Latest(ctx context.Context, symbol string) (model.Bar, bool, error) {
	unlock := s.locks.RLock(symbol)
	defer unlock()

	row := s.reader.QueryRowContext(ctx, `
		SELECT `+barColumns+`
		FROM bars
		WHERE symbol = ?
		ORDER BY ts DESC
		LIMIT 1
	`, symbol)
	b, err := scanBar(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Bar{}, false, nil
		}
		return model.Bar{}, false, fmt.Errorf("sqlite latest %s: %w", symbol, err)
	}
	return b, true, nil
}

// Symbols lists every symbol with stored bars.
func (s *Store) Symbols(ctx context.Context) ([]string, error) {
	rows, err := s.reader.QueryContext(ctx, `SELECT DISTINCT symbol FROM bars ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query symbols: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("sqlite scan symbols: %w", err)
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBar(row scanner) (model.Bar, error) {
	var (
		b      model.Bar
		tsUnix int64
		source string
	)
	if err := row.Scan(&b.Symbol, &tsUnix, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &source); err != nil {
		return model.Bar{}, err
	}
	b.Timestamp = time.Unix(tsUnix, 0).UTC()
	b.Source = model.Source(source)
	return b, nil
}
