package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/fincore/internal/logging"
)

// TxState is the lifecycle state of a TransactionCoordinator.
type TxState int

const (
	StateIdle TxState = iota
	StateInTransaction
	StateCommitted
	StateRolledBack
)

func (s TxState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInTransaction:
		return "in_transaction"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	default:
		return fmt.Sprintf("TxState(%d)", int(s))
	}
}

// rollbackTimeout bounds the cleanup rollback issued after the caller's
// context is already done.
const rollbackTimeout = 5 * time.Second

// TransactionCoordinator scopes one connection and one transaction:
//
//	Idle -> InTransaction -> Committed | RolledBack
//
// The connection is returned to its source when the coordinator reaches a
// final state or Close is called. Close is safe to defer unconditionally.
type TransactionCoordinator struct {
	source ConnSource
	opts   pgx.TxOptions

	conn  Conn
	tx    Tx
	state TxState
}

// NewTransactionCoordinator returns an Idle coordinator.
func NewTransactionCoordinator(source ConnSource, opts pgx.TxOptions) *TransactionCoordinator {
	return &TransactionCoordinator{source: source, opts: opts}
}

// State returns the current state.
func (c *TransactionCoordinator) State() TxState { return c.state }

// Tx returns the open transaction, or nil outside InTransaction.
func (c *TransactionCoordinator) Tx() Tx {
	if c.state != StateInTransaction {
		return nil
	}
	return c.tx
}

// Begin acquires a connection and opens the transaction.
func (c *TransactionCoordinator) Begin(ctx context.Context) error {
	if c.state != StateIdle {
		return fmt.Errorf("begin: transaction is %s", c.state)
	}

	conn, err := c.source.Acquire(ctx)
	if err != nil {
		return connectionError("acquire connection", err)
	}

	tx, err := conn.BeginTx(ctx, c.opts)
	if err != nil {
		conn.Release()
		return connectionError("begin transaction", err)
	}

	c.conn = conn
	c.tx = tx
	c.state = StateInTransaction
	return nil
}

// Commit commits the transaction. A failed commit leaves the coordinator
// RolledBack, since PostgreSQL discards the transaction in that case.
func (c *TransactionCoordinator) Commit(ctx context.Context) error {
	if c.state != StateInTransaction {
		return fmt.Errorf("commit: transaction is %s", c.state)
	}
	defer c.release()

	if err := c.tx.Commit(ctx); err != nil {
		c.state = StateRolledBack
		return connectionError("commit", err)
	}
	c.state = StateCommitted
	return nil
}

// Rollback aborts the transaction.
func (c *TransactionCoordinator) Rollback(ctx context.Context) error {
	if c.state != StateInTransaction {
		return fmt.Errorf("rollback: transaction is %s", c.state)
	}
	defer c.release()

	c.state = StateRolledBack
	if err := c.tx.Rollback(ctx); err != nil {
		return connectionError("rollback", err)
	}
	return nil
}

// Close rolls back a transaction that is still open and releases the
// connection. It runs even when ctx is already cancelled.
func (c *TransactionCoordinator) Close(ctx context.Context) {
	if c.state == StateInTransaction {
		rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
		defer cancel()
		if err := c.Rollback(rbCtx); err != nil {
			logging.FromContext(ctx).Warn("rollback on close failed", "error", err)
		}
	}
	c.release()
}

func (c *TransactionCoordinator) release() {
	if c.conn != nil {
		c.conn.Release()
		c.conn = nil
	}
}

// savepoint runs fn inside a savepoint on tx. When fn fails the savepoint
// is rolled back and fn's error is returned as stmtErr, leaving tx usable.
// fatal is set when the savepoint itself could not be managed or when fn
// failed with a connection-class error; tx must then be abandoned.
func savepoint(ctx context.Context, tx Tx, name string, fn func() error) (stmtErr, fatal error) {
	sp := quoteIdent(name)

	if _, err := tx.Exec(ctx, "SAVEPOINT "+sp); err != nil {
		return nil, connectionError("savepoint", err)
	}

	if err := fn(); err != nil {
		if IsConnection(err) {
			return nil, err
		}
		if _, rbErr := tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+sp); rbErr != nil {
			return nil, connectionError("rollback to savepoint", rbErr)
		}
		if _, relErr := tx.Exec(ctx, "RELEASE SAVEPOINT "+sp); relErr != nil {
			return nil, connectionError("release savepoint", relErr)
		}
		return err, nil
	}

	if _, err := tx.Exec(ctx, "RELEASE SAVEPOINT "+sp); err != nil {
		return nil, connectionError("release savepoint", err)
	}
	return nil, nil
}
