package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"hedgeTracker/internal/domain"
	"hedgeTracker/internal/ports"
)

const pairColumns = `id, pair_date, team, note,
	a_external_id, a_open_price, a_close_price, a_open_time, a_close_time, a_quantity, a_coin, a_fee, a_pnl, a_leverage,
	b_external_id, b_open_price, b_close_price, b_open_time, b_close_time, b_quantity, b_coin, b_fee, b_pnl, b_leverage,
	created_at, updated_at`

const insertPairQuery = `
	INSERT INTO hedge_pairs (username, ` + pairColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// CreatePair inserts a new pair. An existing pair with the same ID in the
// workspace yields ports.ErrDuplicateEntry and is left untouched.
func (r *Repository) CreatePair(ctx context.Context, username string, pair *domain.HedgedPair) error {
	args, err := r.pairArgs(username, pair)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, insertPairQuery, args...); err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("pair %s already exists: %w", pair.ID, ports.ErrDuplicateEntry)
		}
		return fmt.Errorf("%w: failed to create pair %s: %v", ports.ErrQueryFailed, pair.ID, err)
	}
	r.logger.Debug(ctx, "Pair created", map[string]interface{}{"username": username, "pairID": pair.ID})
	return nil
}

// SavePair inserts the pair or replaces the stored pair with the same ID.
// CreatedAt is kept from the first insert.
func (r *Repository) SavePair(ctx context.Context, username string, pair *domain.HedgedPair) error {
	const query = insertPairQuery + `
	ON CONFLICT (username, id) DO UPDATE SET
		pair_date = excluded.pair_date, team = excluded.team, note = excluded.note,
		a_external_id = excluded.a_external_id, a_open_price = excluded.a_open_price, a_close_price = excluded.a_close_price,
		a_open_time = excluded.a_open_time, a_close_time = excluded.a_close_time, a_quantity = excluded.a_quantity,
		a_coin = excluded.a_coin, a_fee = excluded.a_fee, a_pnl = excluded.a_pnl, a_leverage = excluded.a_leverage,
		b_external_id = excluded.b_external_id, b_open_price = excluded.b_open_price, b_close_price = excluded.b_close_price,
		b_open_time = excluded.b_open_time, b_close_time = excluded.b_close_time, b_quantity = excluded.b_quantity,
		b_coin = excluded.b_coin, b_fee = excluded.b_fee, b_pnl = excluded.b_pnl, b_leverage = excluded.b_leverage,
		updated_at = excluded.updated_at`

	args, err := r.pairArgs(username, pair)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: failed to save pair %s: %v", ports.ErrQueryFailed, pair.ID, err)
	}
	r.logger.Debug(ctx, "Pair saved", map[string]interface{}{"username": username, "pairID": pair.ID})
	return nil
}

// pairArgs stamps the pair timestamps and returns the insert arguments.
func (r *Repository) pairArgs(username string, pair *domain.HedgedPair) ([]interface{}, error) {
	if pair == nil || pair.ID == "" {
		return nil, fmt.Errorf("%w: pair ID is required", ports.ErrInvalidInput)
	}
	now := r.now().UTC()
	if pair.CreatedAt.IsZero() {
		pair.CreatedAt = now
	}
	pair.UpdatedAt = now

	args := []interface{}{username, pair.ID, formatDate(pair.Date), pair.Team, pair.Note}
	args = append(args, legArgs(pair.LegA)...)
	args = append(args, legArgs(pair.LegB)...)
	args = append(args, pair.CreatedAt, pair.UpdatedAt)
	return args, nil
}

func isConstraintViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
}

// FindPair retrieves a pair by ID. A missing pair yields (nil, nil).
func (r *Repository) FindPair(ctx context.Context, username, id string) (*domain.HedgedPair, error) {
	const query = `SELECT ` + pairColumns + ` FROM hedge_pairs WHERE username = ? AND id = ?`

	pair, err := scanPair(r.db.QueryRowContext(ctx, query, username, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "Pair not found", map[string]interface{}{"username": username, "pairID": id})
			return nil, nil
		}
		return nil, fmt.Errorf("%w: failed to query pair %s: %v", ports.ErrQueryFailed, id, err)
	}
	return pair, nil
}

// ListPairs retrieves all pairs of a workspace ordered by date, then creation time.
func (r *Repository) ListPairs(ctx context.Context, username string) ([]*domain.HedgedPair, error) {
	const query = `SELECT ` + pairColumns + ` FROM hedge_pairs WHERE username = ? ORDER BY pair_date ASC, created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, username)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query pairs for %s: %v", ports.ErrQueryFailed, username, err)
	}
	defer rows.Close()

	pairs := make([]*domain.HedgedPair, 0)
	for rows.Next() {
		pair, err := scanPair(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan pair: %v", ports.ErrQueryFailed, err)
		}
		pairs = append(pairs, pair)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating pair rows: %v", ports.ErrQueryFailed, err)
	}
	return pairs, nil
}

// DeletePair removes a pair. Deleting an unknown pair returns ports.ErrNotFound.
func (r *Repository) DeletePair(ctx context.Context, username, id string) error {
	const query = `DELETE FROM hedge_pairs WHERE username = ? AND id = ?`

	result, err := r.db.ExecContext(ctx, query, username, id)
	if err != nil {
		return fmt.Errorf("%w: failed to delete pair %s: %v", ports.ErrDeleteFailed, id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to get rows affected for pair %s: %v", ports.ErrDeleteFailed, id, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("pair %s not found for delete: %w", id, ports.ErrNotFound)
	}
	r.logger.Debug(ctx, "Pair deleted", map[string]interface{}{"username": username, "pairID": id})
	return nil
}

func legArgs(t domain.Trade) []interface{} {
	return []interface{}{
		t.ExternalID, t.OpenPrice, t.ClosePrice, nullTime(t.OpenTime), nullTime(t.CloseTime),
		t.Quantity, t.Coin, t.Fee, t.PnL, t.Leverage,
	}
}

func scanPair(s scanner) (*domain.HedgedPair, error) {
	p := &domain.HedgedPair{}
	var date string
	var aOpen, aClose, bOpen, bClose sql.NullTime
	err := s.Scan(
		&p.ID, &date, &p.Team, &p.Note,
		&p.LegA.ExternalID, &p.LegA.OpenPrice, &p.LegA.ClosePrice, &aOpen, &aClose,
		&p.LegA.Quantity, &p.LegA.Coin, &p.LegA.Fee, &p.LegA.PnL, &p.LegA.Leverage,
		&p.LegB.ExternalID, &p.LegB.OpenPrice, &p.LegB.ClosePrice, &bOpen, &bClose,
		&p.LegB.Quantity, &p.LegB.Coin, &p.LegB.Fee, &p.LegB.PnL, &p.LegB.Leverage,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	if date != "" {
		d, err := time.Parse(domain.DateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("invalid stored date %q for pair %s: %w", date, p.ID, err)
		}
		p.Date = d
	}
	p.LegA.OpenTime, p.LegA.CloseTime = aOpen.Time, aClose.Time
	p.LegB.OpenTime, p.LegB.CloseTime = bOpen.Time, bClose.Time
	return p, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(domain.DateLayout)
}
