// Package audit persists every decision the core makes, approved or
// rejected, so "why didn't it trade" is answerable without log
// archaeology.
package audit

import (
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/quantgate-lab/quantgate/internal/logger"
	"github.com/quantgate-lab/quantgate/internal/types"
	"github.com/quantgate-lab/quantgate/pkg/errors"
)

// Store records decisions, orders and risk events in DuckDB. Pass
// ":memory:" as path for an ephemeral store.
type Store struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
	mu     sync.Mutex
}

// NewStore opens the audit database at path and creates the schema.
func NewStore(path string, l *logger.Logger) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreInitFailed, "failed to open audit database", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()

		return nil, errors.Wrap(errors.ErrCodeStoreInitFailed, "failed to connect to audit database", err)
	}

	store := &Store{
		db:     db,
		logger: l,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	if err := store.initialize(); err != nil {
		db.Close()

		return nil, err
	}

	return store, nil
}

func (s *Store) initialize() error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS decisions (
			id TEXT PRIMARY KEY,
			symbol TEXT,
			decision_time TIMESTAMP,
			direction TEXT,
			confidence DOUBLE,
			quorum_met BOOLEAN,
			approved BOOLEAN,
			reason TEXT,
			notional DOUBLE,
			votes TEXT,
			features TEXT,
			created_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			idempotency_key TEXT PRIMARY KEY,
			decision_id TEXT,
			symbol TEXT,
			side TEXT,
			order_type TEXT,
			quantity DOUBLE,
			price DOUBLE,
			venue TEXT,
			venue_order_id TEXT,
			status TEXT,
			filled_quantity DOUBLE,
			filled_price DOUBLE,
			fee DOUBLE,
			message TEXT,
			submitted_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS risk_events (
			event_time TIMESTAMP,
			kind TEXT,
			reason TEXT,
			detail TEXT
		)`,
	}

	for _, schema := range schemas {
		if _, err := s.db.Exec(schema); err != nil {
			return errors.Wrap(errors.ErrCodeStoreInitFailed, "failed to create audit schema", err)
		}
	}

	return nil
}

// SaveDecision persists one decision record. The order row is written
// alongside when the decision carried a dispatch.
func (s *Store) SaveDecision(rec types.DecisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	votes, err := json.Marshal(rec.Signal.Votes)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreWriteFail, "failed to encode votes", err)
	}

	features, err := json.Marshal(rec.Features.Map())
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreWriteFail, "failed to encode features", err)
	}

	query := s.sq.
		Insert("decisions").
		Columns("id", "symbol", "decision_time", "direction", "confidence", "quorum_met",
			"approved", "reason", "notional", "votes", "features", "created_at").
		Values(rec.ID, rec.Symbol, rec.Time, string(rec.Signal.Direction), rec.Signal.Confidence,
			rec.Signal.QuorumMet, rec.Gate.Approved, rec.Gate.Reason, rec.Gate.Notional,
			string(votes), string(features), rec.CreatedAt)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreWriteFail, "failed to build decision insert", err)
	}

	if _, err := s.db.Exec(sqlStr, args...); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWriteFail, "failed to write decision", err)
	}

	if rec.Order.IsSome() {
		if err := s.saveOrderLocked(rec); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) saveOrderLocked(rec types.DecisionRecord) error {
	spec := rec.Order.Unwrap()

	var result types.OrderResult
	if rec.Result.IsSome() {
		result = rec.Result.Unwrap()
	}

	query := s.sq.
		Insert("orders").
		Columns("idempotency_key", "decision_id", "symbol", "side", "order_type", "quantity",
			"price", "venue", "venue_order_id", "status", "filled_quantity", "filled_price",
			"fee", "message", "submitted_at").
		Values(spec.IdempotencyKey, rec.ID, spec.Symbol, string(spec.Side), string(spec.OrderType),
			spec.Quantity, spec.Price, result.Venue, result.VenueOrderID, string(result.Status),
			result.FilledQuantity, result.FilledPrice, result.Fee, result.Message, result.SubmittedAt)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreWriteFail, "failed to build order insert", err)
	}

	if _, err := s.db.Exec(sqlStr, args...); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWriteFail, "failed to write order", err)
	}

	return nil
}

// UpdateOrderResult rewrites the outcome columns of an order row after
// reconciliation settles it.
func (s *Store) UpdateOrderResult(result types.OrderResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := s.sq.
		Update("orders").
		Set("status", string(result.Status)).
		Set("venue_order_id", result.VenueOrderID).
		Set("filled_quantity", result.FilledQuantity).
		Set("filled_price", result.FilledPrice).
		Set("fee", result.Fee).
		Set("message", result.Message).
		Where(squirrel.Eq{"idempotency_key": result.IdempotencyKey})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreWriteFail, "failed to build order update", err)
	}

	if _, err := s.db.Exec(sqlStr, args...); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWriteFail, "failed to update order", err)
	}

	return nil
}

// SaveRiskEvent persists one halt or resume transition.
func (s *Store) SaveRiskEvent(ev types.RiskEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := s.sq.
		Insert("risk_events").
		Columns("event_time", "kind", "reason", "detail").
		Values(ev.Time, ev.Kind, ev.Reason, ev.Detail)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreWriteFail, "failed to build risk event insert", err)
	}

	if _, err := s.db.Exec(sqlStr, args...); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWriteFail, "failed to write risk event", err)
	}

	return nil
}

// DecisionSummary is one row of the decision log as served to the
// status surface.
type DecisionSummary struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Time       time.Time `json:"time"`
	Direction  string    `json:"direction"`
	Confidence float64   `json:"confidence"`
	Approved   bool      `json:"approved"`
	Reason     string    `json:"reason"`
	Notional   float64   `json:"notional"`
}

// RecentDecisions returns the latest limit decisions, newest first.
func (s *Store) RecentDecisions(limit int) ([]DecisionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := s.sq.
		Select("id", "symbol", "decision_time", "direction", "confidence", "approved", "reason", "notional").
		From("decisions").
		OrderBy("decision_time DESC").
		Limit(uint64(limit))

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build decisions query", err)
	}

	rows, err := s.db.Query(sqlStr, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query decisions", err)
	}
	defer rows.Close()

	var out []DecisionSummary

	for rows.Next() {
		var d DecisionSummary
		if err := rows.Scan(&d.ID, &d.Symbol, &d.Time, &d.Direction, &d.Confidence,
			&d.Approved, &d.Reason, &d.Notional); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan decision row", err)
		}

		out = append(out, d)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "decision row iteration failed", err)
	}

	return out, nil
}

// RejectionCounts aggregates decisions by gate reason, for quick "why
// is it not trading" triage.
func (s *Store) RejectionCounts() (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := s.sq.
		Select("reason", "count(*)").
		From("decisions").
		GroupBy("reason")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build rejection query", err)
	}

	rows, err := s.db.Query(sqlStr, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query rejections", err)
	}
	defer rows.Close()

	out := map[string]int{}

	for rows.Next() {
		var (
			reason string
			count  int
		)

		if err := rows.Scan(&reason, &count); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan rejection row", err)
		}

		out[reason] = count
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "rejection row iteration failed", err)
	}

	return out, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	if err := s.db.Close(); err != nil {
		s.logger.Warn("audit store close failed", zap.Error(err))

		return err
	}

	s.db = nil

	return nil
}
