package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TxRunner is the transaction boundary services depend on. Production code
// uses PoolRunner; tests use NopRunner so service logic runs against mock
// repositories without a database.
type TxRunner interface {
	RunTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PoolRunner runs fn inside a real pgx transaction via WithTx.
type PoolRunner struct {
	Pool *pgxpool.Pool
}

func (r PoolRunner) RunTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return WithTx(ctx, r.Pool, fn)
}

// NopRunner runs fn directly with no transaction.
type NopRunner struct{}

func (NopRunner) RunTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
