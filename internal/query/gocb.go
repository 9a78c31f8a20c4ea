package query

import (
	"context"
	"fmt"

	"github.com/couchbase/gocb/v2"
	"github.com/seabed-tools/cbreplay/internal/config"
)

// gocbRunner executes statements through the Couchbase SDK at cluster
// level, so statements may address any keyspace with full paths.
type gocbRunner struct {
	cluster *gocb.Cluster
}

func newGocbRunner(cfg *config.Config) (*gocbRunner, error) {
	cluster, err := gocb.Connect(cfg.ConnectionString, gocb.ClusterOptions{
		Authenticator: gocb.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		},
		TimeoutsConfig: gocb.TimeoutsConfig{
			ConnectTimeout: cfg.ConnectTimeout,
			QueryTimeout:   cfg.QueryTimeout,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("opening cluster connection: %w", err)
	}

	// The bucket must be opened before queries on clusters that still
	// route query through bucket-scoped auth.
	bucket := cluster.Bucket(cfg.Bucket)
	if err := bucket.WaitUntilReady(cfg.ConnectTimeout, nil); err != nil {
		return nil, fmt.Errorf("waiting for bucket %s: %w", cfg.Bucket, err)
	}

	return &gocbRunner{cluster: cluster}, nil
}

func (r *gocbRunner) query(ctx context.Context, statement string, params map[string]interface{}, opts Options) ([]Row, error) {
	queryOpts := &gocb.QueryOptions{
		Context: ctx,
		Timeout: opts.Timeout,
		Metrics: true,
	}

	if len(params) > 0 {
		queryOpts.NamedParameters = params
	}

	switch opts.Consistency {
	case ScanConsistencyRequestPlus:
		queryOpts.ScanConsistency = gocb.QueryScanConsistencyRequestPlus
	default:
		queryOpts.ScanConsistency = gocb.QueryScanConsistencyNotBounded
	}

	// Statements inside a transaction carry the server txid as a raw
	// query parameter; the service routes them to the owning attempt.
	if opts.Tx != nil {
		queryOpts.Raw = map[string]interface{}{"txid": opts.Tx.id}
	}

	result, err := r.cluster.Query(statement, queryOpts)
	if err != nil {
		return nil, err
	}

	var rows []Row
	for result.Next() {
		var row Row
		if err := result.Row(&row); err != nil {
			return nil, fmt.Errorf("decoding row: %w", err)
		}
		rows = append(rows, row)
	}

	if err := result.Err(); err != nil {
		return nil, err
	}

	return rows, nil
}

func (r *gocbRunner) close() error {
	return r.cluster.Close(nil)
}
