package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"FactorPipe/internal/domain/models"
	pkgch "FactorPipe/pkg/clickhouse"
	applogger "FactorPipe/pkg/logger"
	"FactorPipe/pkg/util"
)

// insertChunk bounds rows per multi-row INSERT.
const insertChunk = 2000

// CHPricingStore implements PricingStore and BarWriter on <db>.daily_bars.
type CHPricingStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

// NewCHPricingStore creates a pricing store backed by the daily_bars table.
func NewCHPricingStore(ch *pkgch.Client) *CHPricingStore {
	return &CHPricingStore{db: ch.DB(), table: ch.Database() + ".daily_bars"}
}

// SetLogger injects a structured logger.
func (s *CHPricingStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHPricingStore) Sessions(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	q := fmt.Sprintf(`
        SELECT DISTINCT session
        FROM %s
        WHERE session >= ? AND session <= ?
        ORDER BY session ASC
    `, s.table)
	return s.querySessions(ctx, "sessions", q, util.SessionOf(from), util.SessionOf(to))
}

func (s *CHPricingStore) SessionsBefore(ctx context.Context, before time.Time, n int) ([]time.Time, error) {
	if n <= 0 {
		return nil, nil
	}
	q := fmt.Sprintf(`
        SELECT DISTINCT session
        FROM %s
        WHERE session < ?
        ORDER BY session DESC
        LIMIT ?
    `, s.table)
	out, err := s.querySessions(ctx, "sessions_before", q, util.SessionOf(before), n)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *CHPricingStore) querySessions(ctx context.Context, op, q string, args ...any) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.logError(op+" query error", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			s.logError(op+" scan error", err)
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, util.SessionOf(d))
	}
	if err := rows.Err(); err != nil {
		s.logError(op+" rows error", err)
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHPricingStore) GetBars(ctx context.Context, from, to time.Time) ([]models.Bar, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT session, symbol, open, high, low, close, volume
        FROM %s FINAL
        WHERE session >= ? AND session <= ?
        ORDER BY session ASC, symbol ASC
    `, s.table)
	rows, err := s.db.QueryContext(ctx, q, util.SessionOf(from), util.SessionOf(to))
	if err != nil {
		s.logError("get_bars query error", err)
		return nil, fmt.Errorf("get bars: %w", err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 1024)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Session, &b.Symbol, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			s.logError("get_bars scan error", err)
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Session = util.SessionOf(b.Session)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		s.logError("get_bars rows error", err)
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse get_bars ok",
			applogger.Session("from", from),
			applogger.Session("to", to),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

// StoreBars inserts bars in multi-row chunks.
func (s *CHPricingStore) StoreBars(ctx context.Context, bars []models.Bar) error {
	for _, b := range bars {
		if err := b.Validate(); err != nil {
			return err
		}
	}
	for lo := 0; lo < len(bars); lo += insertChunk {
		hi := min(lo+insertChunk, len(bars))
		q, args := insertBarsQuery(s.table, bars[lo:hi])
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.logError("store_bars exec error", err)
			return fmt.Errorf("store bars: %w", err)
		}
	}
	return nil
}

func insertBarsQuery(table string, bars []models.Bar) (string, []any) {
	values := make([]string, len(bars))
	args := make([]any, 0, len(bars)*7)
	for i, b := range bars {
		values[i] = "(?, ?, ?, ?, ?, ?, ?)"
		args = append(args, util.SessionOf(b.Session), b.Symbol, b.Open, b.High, b.Low, b.Close, b.Volume)
	}
	q := fmt.Sprintf("INSERT INTO %s (session, symbol, open, high, low, close, volume) VALUES %s",
		table, strings.Join(values, ","))
	return q, args
}

func (s *CHPricingStore) logError(msg string, err error) {
	if s.l == nil {
		return
	}
	s.l.Error("clickhouse "+msg, applogger.String("table", s.table), applogger.Error(err))
}
