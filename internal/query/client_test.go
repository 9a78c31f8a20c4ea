package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/seabed-tools/cbreplay/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// fakeRunner scripts per-call responses for the underlying SDK layer.
type fakeRunner struct {
	calls     int
	responses []fakeResponse
	lastOpts  Options
	lastStmt  string
}

type fakeResponse struct {
	rows []Row
	err  error
}

func (f *fakeRunner) query(_ context.Context, statement string, _ map[string]interface{}, opts Options) ([]Row, error) {
	f.lastStmt = statement
	f.lastOpts = opts

	resp := f.responses[f.calls]
	f.calls++

	return resp.rows, resp.err
}

func (f *fakeRunner) close() error {
	return nil
}

func newTestClient(t *testing.T, fake *fakeRunner) *client {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	return &client{
		cfg:        &config.Config{QueryTimeout: time.Second},
		maxRetries: 2,
		retryDelay: time.Millisecond,
		log:        log,
		runner:     fake,
	}
}

func TestExecute_BeforeStartFails(t *testing.T) {
	t.Parallel()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	c := NewClient(log, &config.Config{QueryTimeout: time.Second})

	_, err := c.Execute(context.Background(), "SELECT 1", nil, Options{})
	require.ErrorIs(t, err, errNotStarted)

	_, err = c.BeginTransaction(context.Background(), Options{})
	require.ErrorIs(t, err, errNotStarted)
}

func TestExecute_RetriesTransientFailures(t *testing.T) {
	t.Parallel()

	fake := &fakeRunner{responses: []fakeResponse{
		{err: gocb.ErrTimeout},
		{err: gocb.ErrTemporaryFailure},
		{rows: []Row{{"airportname": "Nice"}}},
	}}

	rows, err := newTestClient(t, fake).Execute(context.Background(), "SELECT 1", nil, Options{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, 3, fake.calls)
}

func TestExecute_ExhaustedRetriesSurfaceLastError(t *testing.T) {
	t.Parallel()

	fake := &fakeRunner{responses: []fakeResponse{
		{err: gocb.ErrTimeout},
		{err: gocb.ErrTimeout},
		{err: gocb.ErrTimeout},
	}}

	_, err := newTestClient(t, fake).Execute(context.Background(), "SELECT 1", nil, Options{})
	require.Error(t, err)
	require.ErrorIs(t, err, gocb.ErrTimeout)
	require.Equal(t, 3, fake.calls)
}

func TestExecute_QueryErrorsAreNotRetried(t *testing.T) {
	t.Parallel()

	fake := &fakeRunner{responses: []fakeResponse{
		{err: &gocb.QueryError{
			Errors: []gocb.QueryErrorDesc{{Code: 3000, Message: "syntax error - line 1"}},
		}},
	}}

	_, err := newTestClient(t, fake).Execute(context.Background(), "SELEC 1", nil, Options{})
	require.Error(t, err)
	require.Equal(t, 1, fake.calls)

	var qErr *QueryError
	require.ErrorAs(t, err, &qErr)
	require.Equal(t, uint32(3000), qErr.Code)
	require.Contains(t, qErr.Message, "syntax error")
}

func TestExecute_NoRetryInsideTransaction(t *testing.T) {
	t.Parallel()

	fake := &fakeRunner{responses: []fakeResponse{
		{err: gocb.ErrTimeout},
	}}

	handle := &TxHandle{id: "txn-1"}
	_, err := newTestClient(t, fake).Execute(context.Background(), "INSERT INTO t VALUES (1)", nil, Options{Tx: handle})
	require.Error(t, err)
	require.Equal(t, 1, fake.calls)
	require.Equal(t, handle, fake.lastOpts.Tx)
}

func TestBeginTransaction_CapturesTxID(t *testing.T) {
	t.Parallel()

	fake := &fakeRunner{responses: []fakeResponse{
		{rows: []Row{{"txid": "8535f004-0b22-4b8a-8c37-91f608fa4be8"}}},
	}}

	handle, err := newTestClient(t, fake).BeginTransaction(context.Background(), Options{})
	require.NoError(t, err)
	require.Equal(t, "8535f004-0b22-4b8a-8c37-91f608fa4be8", handle.ID())
	require.Equal(t, "BEGIN WORK", fake.lastStmt)
}

func TestBeginTransaction_MissingTxIDFails(t *testing.T) {
	t.Parallel()

	fake := &fakeRunner{responses: []fakeResponse{
		{rows: []Row{{"unexpected": true}}},
	}}

	_, err := newTestClient(t, fake).BeginTransaction(context.Background(), Options{})
	require.ErrorIs(t, err, errNoTxID)
}

func TestCommitAndRollback_CarryHandle(t *testing.T) {
	t.Parallel()

	fake := &fakeRunner{responses: []fakeResponse{
		{rows: nil},
		{rows: nil},
	}}

	c := newTestClient(t, fake)
	handle := &TxHandle{id: "txn-2"}

	require.NoError(t, c.Commit(context.Background(), handle))
	require.Equal(t, "COMMIT WORK", fake.lastStmt)
	require.Equal(t, handle, fake.lastOpts.Tx)

	require.NoError(t, c.Rollback(context.Background(), handle))
	require.Equal(t, "ROLLBACK WORK", fake.lastStmt)
}

func TestIsTransactionExpired(t *testing.T) {
	t.Parallel()

	expired := &QueryError{Code: codeTransactionExpired, Message: "transaction timeout"}
	require.True(t, IsTransactionExpired(expired))
	require.True(t, IsTransactionError(expired))

	syntax := &QueryError{Code: 3000, Message: "syntax error"}
	require.False(t, IsTransactionExpired(syntax))
	require.False(t, IsTransactionError(syntax))

	require.False(t, IsTransactionExpired(gocb.ErrTimeout))
}

func TestTranslateError_WrapsNonServiceErrors(t *testing.T) {
	t.Parallel()

	err := translateError(gocb.ErrTimeout)
	require.ErrorIs(t, err, gocb.ErrTimeout)

	var qErr *QueryError
	require.False(t, errors.As(err, &qErr))
}
