package query

import (
	"errors"
	"fmt"

	"github.com/couchbase/gocb/v2"
)

// Query service error code ranges. Transaction errors occupy 17xxx.
const (
	transactionCodeLow     uint32 = 17000
	transactionCodeHigh    uint32 = 17099
	codeTransactionExpired uint32 = 17010
)

var (
	errNoTxID     = errors.New("BEGIN WORK returned no txid")
	errNotStarted = errors.New("query client not started")
)

// QueryError is a non-transient failure reported by the query service:
// a syntax error, planning failure, constraint violation, or
// transaction fault. It is never retried.
type QueryError struct {
	Code    uint32
	Message string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query error %d: %s", e.Code, e.Message)
}

// IsTransactionExpired reports whether err is the store rolling back a
// transaction whose handle outlived its timeout.
func IsTransactionExpired(err error) bool {
	var qErr *QueryError
	if !errors.As(err, &qErr) {
		return false
	}
	return qErr.Code == codeTransactionExpired
}

// IsTransactionError reports whether err belongs to the transaction
// error range of the query service.
func IsTransactionError(err error) bool {
	var qErr *QueryError
	if !errors.As(err, &qErr) {
		return false
	}
	return qErr.Code >= transactionCodeLow && qErr.Code <= transactionCodeHigh
}

// translateError maps SDK errors into the client's taxonomy. Service
// errors become *QueryError with the service's own code and message;
// anything else (exhausted retries on a network fault, cancellation) is
// passed through wrapped.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var gErr *gocb.QueryError
	if errors.As(err, &gErr) {
		if len(gErr.Errors) > 0 {
			return &QueryError{
				Code:    gErr.Errors[0].Code,
				Message: gErr.Errors[0].Message,
			}
		}
		return &QueryError{Message: gErr.Error()}
	}

	return fmt.Errorf("executing statement: %w", err)
}
