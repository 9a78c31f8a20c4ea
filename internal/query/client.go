// Package query provides a thin client for executing SQL++ statements
// against a Couchbase query service, with bounded retry for transient
// failures and handle-based transaction support.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/seabed-tools/cbreplay/internal/config"
	"github.com/sirupsen/logrus"
)

const (
	defaultMaxRetries = 3
	defaultRetryDelay = 2 * time.Second
	defaultTimeout    = 75 * time.Second
)

// ScanConsistency controls whether a query observes all prior writes.
type ScanConsistency int

const (
	// ScanConsistencyUnbounded may read a stale index (the service default).
	ScanConsistencyUnbounded ScanConsistency = iota
	// ScanConsistencyRequestPlus blocks until the index has caught up with
	// all mutations at request time.
	ScanConsistencyRequestPlus
)

// Row is a single schema-less result document. Field sets may differ
// row to row.
type Row map[string]interface{}

// Options configures a single statement execution.
type Options struct {
	Consistency ScanConsistency
	Timeout     time.Duration
	Tx          *TxHandle
}

// TxHandle identifies a server-side transaction. Statements issued with
// a handle are provisional until Commit or Rollback. Handles must not be
// shared across concurrent examples.
type TxHandle struct {
	id string
}

// ID returns the server transaction id.
func (h *TxHandle) ID() string {
	return h.id
}

// Client executes SQL++ statements. Mutating statements are
// non-idempotent; callers are responsible for sequencing them.
type Client interface {
	Start(ctx context.Context) error
	Stop() error
	Execute(ctx context.Context, statement string, params map[string]interface{}, opts Options) ([]Row, error)
	BeginTransaction(ctx context.Context, opts Options) (*TxHandle, error)
	Commit(ctx context.Context, handle *TxHandle) error
	Rollback(ctx context.Context, handle *TxHandle) error
}

// runner abstracts the underlying SDK call so retry and transaction
// logic can be exercised without a live cluster.
type runner interface {
	query(ctx context.Context, statement string, params map[string]interface{}, opts Options) ([]Row, error)
	close() error
}

type client struct {
	cfg        *config.Config
	maxRetries int
	retryDelay time.Duration
	log        logrus.FieldLogger

	runner runner
}

// NewClient creates a new query client from configuration. The
// connection is established on Start.
func NewClient(log logrus.FieldLogger, cfg *config.Config) Client {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}

	return &client{
		cfg:        cfg,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		log:        log.WithField("component", "query_client"),
	}
}

func (c *client) Start(_ context.Context) error {
	c.log.WithField("connstr", c.cfg.ConnectionString).Debug("connecting to cluster")

	r, err := newGocbRunner(c.cfg)
	if err != nil {
		return fmt.Errorf("connecting to cluster: %w", err)
	}

	c.runner = r
	c.log.Info("query client started")

	return nil
}

func (c *client) Stop() error {
	c.log.Debug("stopping query client")

	if c.runner != nil {
		if err := c.runner.close(); err != nil {
			return fmt.Errorf("closing cluster connection: %w", err)
		}
	}

	return nil
}

// Execute runs a statement with bounded retry. Transient network
// failures back off exponentially; query-syntax errors and constraint
// violations propagate immediately as *QueryError. Statements inside a
// transaction are never retried since a replayed mutation would not be
// provisional under the original attempt.
func (c *client) Execute(ctx context.Context, statement string, params map[string]interface{}, opts Options) ([]Row, error) {
	if c.runner == nil {
		return nil, errNotStarted
	}

	if opts.Timeout <= 0 {
		opts.Timeout = c.cfg.QueryTimeout
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	retries := c.maxRetries
	if opts.Tx != nil {
		retries = 0
	}

	currentDelay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			c.log.WithFields(logrus.Fields{
				"attempt": attempt,
				"max":     retries,
			}).Debug("retrying statement")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(currentDelay):
				// Exponential backoff.
				currentDelay *= 2
			}
		}

		rows, err := c.runner.query(ctx, statement, params, opts)
		if err == nil {
			return rows, nil
		}

		lastErr = err

		if !isTransient(err) {
			return nil, translateError(err)
		}

		c.log.WithError(err).Debug("transient failure")
	}

	return nil, translateError(lastErr)
}

// BeginTransaction opens a server-side transaction and returns a handle
// carrying its txid. The store auto-rolls back handles left open past
// their timeout; subsequent statements then fail with a transaction
// QueryError (see IsTransactionExpired).
func (c *client) BeginTransaction(ctx context.Context, opts Options) (*TxHandle, error) {
	rows, err := c.Execute(ctx, "BEGIN WORK", nil, opts)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	if len(rows) == 0 {
		return nil, errNoTxID
	}

	txid, ok := rows[0]["txid"].(string)
	if !ok || txid == "" {
		return nil, errNoTxID
	}

	c.log.WithField("txid", txid).Debug("transaction started")

	return &TxHandle{id: txid}, nil
}

// Commit makes all statements issued under the handle durable.
func (c *client) Commit(ctx context.Context, handle *TxHandle) error {
	if _, err := c.Execute(ctx, "COMMIT WORK", nil, Options{Tx: handle}); err != nil {
		return fmt.Errorf("committing transaction %s: %w", handle.id, err)
	}

	c.log.WithField("txid", handle.id).Debug("transaction committed")

	return nil
}

// Rollback discards all statements issued under the handle.
func (c *client) Rollback(ctx context.Context, handle *TxHandle) error {
	if _, err := c.Execute(ctx, "ROLLBACK WORK", nil, Options{Tx: handle}); err != nil {
		return fmt.Errorf("rolling back transaction %s: %w", handle.id, err)
	}

	c.log.WithField("txid", handle.id).Debug("transaction rolled back")

	return nil
}

// isTransient reports whether an error is worth retrying. Errors
// surfaced by the query service itself (syntax, planning, constraint
// violations) are never transient.
func isTransient(err error) bool {
	var qErr *gocb.QueryError
	if errors.As(err, &qErr) {
		return false
	}

	return errors.Is(err, gocb.ErrTimeout) ||
		errors.Is(err, gocb.ErrTemporaryFailure) ||
		errors.Is(err, gocb.ErrServiceNotAvailable)
}
