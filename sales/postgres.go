package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultQuery reads every sale in [$1, $2) from the sales table
const DefaultQuery = `SELECT sale_date, total_amount, '' AS category, '' AS customer_type, COALESCE(payment_type, '')
FROM sales
WHERE sale_date >= $1 AND sale_date < $2
ORDER BY sale_date`

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGSource loads sales records from Postgres. The query must take the start and end of the time
// range as $1 and $2 and select time, total, category, customer type and payment type in order.
type PGSource struct {
	db    Querier
	query string
}

// NewPGSource uses DefaultQuery when query is empty
func NewPGSource(db Querier, query string) *PGSource {
	if query == "" {
		query = DefaultQuery
	}
	return &PGSource{db: db, query: query}
}

// Connect opens a connection pool and checks it with a ping
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool, %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to reach database, %w", err)
	}
	return pool, nil
}

func scanRecord(row pgx.CollectableRow) (Record, error) {
	var r Record
	err := row.Scan(&r.Time, &r.Total, &r.Category, &r.CustomerType, &r.PaymentType)
	return r, err
}

// Records returns the sales in [start, end)
func (s *PGSource) Records(ctx context.Context, start, end time.Time) ([]Record, error) {
	rows, err := s.db.Query(ctx, s.query, start, end)
	if err != nil {
		return nil, fmt.Errorf("unable to query sales, %w", err)
	}
	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("unable to scan sales, %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return records, nil
}
