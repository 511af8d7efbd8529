package backup

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the query surface shared by pools, connections and transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Tx is the part of pgx.Tx the engine uses.
type Tx interface {
	DBTX
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Conn is one connection checked out for the duration of an operation.
type Conn interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (Tx, error)
	Release()
}

// ConnSource hands out connections. *PoolSource is the production
// implementation.
type ConnSource interface {
	Acquire(ctx context.Context) (Conn, error)
}

// PoolSource adapts a pgxpool.Pool to ConnSource.
type PoolSource struct {
	pool *pgxpool.Pool
}

// NewPoolSource wraps pool.
func NewPoolSource(pool *pgxpool.Pool) *PoolSource {
	return &PoolSource{pool: pool}
}

// Acquire checks out a pooled connection.
func (s *PoolSource) Acquire(ctx context.Context) (Conn, error) {
	c, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &poolConn{conn: c}, nil
}

type poolConn struct {
	conn *pgxpool.Conn
}

func (c *poolConn) BeginTx(ctx context.Context, opts pgx.TxOptions) (Tx, error) {
	tx, err := c.conn.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (c *poolConn) Release() { c.conn.Release() }
