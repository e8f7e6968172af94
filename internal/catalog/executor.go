package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const rollbackTimeout = 5 * time.Second

// RunReadOnly executes sql verbatim inside a transaction opened READ ONLY and
// always rolls it back, so nothing the statement does is ever committed.
//
// The read-only mode is enforced by the engine, not by inspecting sql: a
// statement the engine lets through in a read-only transaction is run. A
// failed rollback is logged and never replaces the query's own outcome.
func (c *Catalog) RunReadOnly(ctx context.Context, sql string) (QueryResult, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var res QueryResult
	err := c.withConn(ctx, func(conn *pgxpool.Conn) error {
		tx, err := conn.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
		if err != nil {
			return engineError("begin read-only transaction", err)
		}
		defer c.rollback(ctx, tx)

		c.log.Debug("query: running read-only statement", "sql", sql)
		// The extended protocol accepts a single statement, so sql cannot
		// end the transaction and chain further statements after it.
		res, err = queryResult(ctx, tx, "query", sql, pgx.QueryExecModeDescribeExec)
		return err
	})
	if err != nil {
		return QueryResult{}, err
	}
	return res, nil
}

func (c *Catalog) rollback(ctx context.Context, tx pgx.Tx) {
	// Roll back even when the request was cancelled.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		c.log.Warn("query: rollback failed", "error", err)
	}
}
