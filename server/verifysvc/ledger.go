package verifysvc

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"
)

// Ledger records the outcome of each Verify call to a DuckDB file,
// queryable with SQL for the diagnostic collect-all tool mode.
type Ledger struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenLedger opens (creating if necessary) a DuckDB database at path and
// ensures the result table exists.
func OpenLedger(path string) (*Ledger, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("verifysvc: opening ledger %s: %w", path, err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS verify_results (
		method      VARCHAR,
		verified    BOOLEAN,
		first_error VARCHAR,
		recorded_at TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("verifysvc: creating ledger table: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close releases the underlying DuckDB connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record appends one verification outcome.
func (l *Ledger) Record(ctx context.Context, method string, verified bool, firstError string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO verify_results (method, verified, first_error, recorded_at) VALUES (?, ?, ?, ?)`,
		method, verified, firstError, at,
	)
	if err != nil {
		return fmt.Errorf("verifysvc: recording ledger entry for %s: %w", method, err)
	}
	return nil
}

// FailureRate returns the fraction of recorded calls for method that
// failed verification.
func (l *Ledger) FailureRate(ctx context.Context, method string) (float64, error) {
	var total, failed int
	row := l.db.QueryRowContext(ctx,
		`SELECT count(*), count(*) FILTER (WHERE NOT verified) FROM verify_results WHERE method = ?`,
		method,
	)
	if err := row.Scan(&total, &failed); err != nil {
		return 0, fmt.Errorf("verifysvc: querying failure rate for %s: %w", method, err)
	}
	if total == 0 {
		return 0, nil
	}
	return float64(failed) / float64(total), nil
}
