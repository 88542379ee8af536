package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"mission-control/internal/docstore/config"
	"mission-control/internal/docstore/domain/model"
	"mission-control/internal/docstore/domain/repository"
	apperrors "mission-control/internal/shared/errors"
	"mission-control/internal/shared/logger"

	_ "github.com/go-sql-driver/mysql"
)

// Pool is the process-wide storage handle: a bounded set of connections behind the
// Storage contract. Callers beyond the pool size wait for a free connection.
type Pool struct {
	db  *sql.DB
	log logger.Logger
}

var _ repository.Storage = (*Pool)(nil)
var _ repository.HealthChecker = (*Pool)(nil)

// Open creates the pool from configuration and verifies the server answers.
func Open(ctx context.Context, cfg config.DatabaseConfig, log logger.Logger) (*Pool, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.PoolSize)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL at %s: %w", cfg.Addr(), err)
	}

	p := NewPool(db, log)
	p.log.Infof("MySQL pool ready (addr=%s db=%s size=%d)", cfg.Addr(), cfg.Name, cfg.PoolSize)
	return p, nil
}

// NewPool wraps an already opened database handle. Any database/sql driver speaking
// "?" placeholders and backtick identifiers works.
func NewPool(db *sql.DB, log logger.Logger) *Pool {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Pool{db: db, log: log.WithComponent("storage.pool")}
}

// Execute runs one parameterized statement. Reads return Rows; writes return the
// assigned InsertID and AffectedRows. A connection is taken from the pool for the
// duration of the call and released before returning.
func (p *Pool) Execute(ctx context.Context, statement string, params ...interface{}) (*repository.Result, error) {
	if repository.IsQuery(statement) {
		rows, err := p.query(ctx, statement, params)
		if err != nil {
			return nil, p.fail(ctx, statement, params, err)
		}
		return &repository.Result{Rows: rows}, nil
	}

	res, err := p.db.ExecContext(ctx, statement, params...)
	if err != nil {
		return nil, p.fail(ctx, statement, params, err)
	}

	out := &repository.Result{}
	// Drivers that cannot report one of these leave the zero value.
	if id, err := res.LastInsertId(); err == nil {
		out.InsertID = id
	}
	if n, err := res.RowsAffected(); err == nil {
		out.AffectedRows = n
	}
	return out, nil
}

func (p *Pool) query(ctx context.Context, statement string, params []interface{}) ([]model.Record, error) {
	rows, err := p.db.QueryContext(ctx, statement, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// fail logs a statement failure once and wraps it without changing its message.
func (p *Pool) fail(ctx context.Context, statement string, params []interface{}, err error) error {
	p.log.WithContext(ctx).WithFields(map[string]interface{}{
		"statement": statement,
		"params":    len(params),
	}).Errorf("statement failed: %v", err)
	return apperrors.NewStorageError(statement, err)
}

// Ping verifies a connection can be established.
func (p *Pool) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return apperrors.NewStorageError("PING", err)
	}
	return nil
}

// Stats exposes the underlying pool statistics.
func (p *Pool) Stats() sql.DBStats {
	return p.db.Stats()
}

// Close releases every connection. Only the hosting application calls it, on exit.
func (p *Pool) Close() error {
	return p.db.Close()
}
