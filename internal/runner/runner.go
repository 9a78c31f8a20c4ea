// Package runner sequences catalog examples through the query client
// and validator, honoring setup ordering and collecting one outcome per
// example. Independent examples may run concurrently; an example whose
// setup did not pass is marked errored without executing.
package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/seabed-tools/cbreplay/internal/catalog"
	"github.com/seabed-tools/cbreplay/internal/query"
	"github.com/seabed-tools/cbreplay/internal/validate"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 1

// Runner executes a catalog and reports per-example outcomes.
type Runner interface {
	Run(ctx context.Context, cat *catalog.Catalog) ([]Outcome, error)
}

type runner struct {
	client      query.Client
	concurrency int
	log         logrus.FieldLogger

	mu        sync.Mutex
	statuses  []Status
	outcomes  []Outcome
	pending   []int
	done      int
	ready     chan int
	readyOnce sync.Once
	examples  []*catalog.Example
	indexByID map[string]int
	handles   map[string]*query.TxHandle
}

// NewRunner creates a new runner. Concurrency bounds the number of
// examples in flight at once; setup ordering is enforced regardless.
func NewRunner(log logrus.FieldLogger, client query.Client, concurrency int) Runner {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	return &runner{
		client:      client,
		concurrency: concurrency,
		log:         log.WithField("component", "runner"),
	}
}

// Run executes every example in the catalog in dependency order and
// returns one outcome per example, in that order. Per-example problems
// never surface as errors here; they are recorded in the outcome. Run
// returns an error only for a cyclic catalog. Cancellation errors the
// examples that had not executed yet.
func (r *runner) Run(ctx context.Context, cat *catalog.Catalog) ([]Outcome, error) {
	ordered, err := cat.Order()
	if err != nil {
		return nil, err
	}

	r.examples = ordered
	r.statuses = make([]Status, len(ordered))
	r.outcomes = make([]Outcome, len(ordered))
	r.pending = make([]int, len(ordered))
	r.ready = make(chan int, len(ordered))
	r.indexByID = make(map[string]int, len(ordered))
	r.handles = make(map[string]*query.TxHandle)
	r.done = 0
	r.readyOnce = sync.Once{}

	for i, ex := range ordered {
		r.indexByID[ex.ID] = i
		r.pending[i] = len(ex.Setup)
	}

	// The ready channel is closed by the last complete() call, which
	// never happens for an empty catalog; don't spawn workers that
	// would wait on it forever.
	if len(ordered) == 0 {
		return r.outcomes, nil
	}

	r.mu.Lock()
	for i := range ordered {
		if r.pending[i] == 0 {
			r.ready <- i
		}
	}
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{
		"examples":    len(ordered),
		"concurrency": r.concurrency,
	}).Info("starting run")

	var g errgroup.Group
	for w := 0; w < r.concurrency; w++ {
		g.Go(func() error {
			for idx := range r.ready {
				r.runExample(ctx, idx)
			}
			return nil
		})
	}

	// Workers record every problem as an outcome, so the only wait
	// result is nil; the catalog always completes.
	_ = g.Wait()

	return r.outcomes, nil
}

// runExample executes a single example end to end and records its
// outcome, releasing or fail-fasting its dependents.
func (r *runner) runExample(ctx context.Context, idx int) {
	ex := r.examples[idx]

	// A canceled run errors everything still queued instead of
	// executing against a store that may be mid-mutation.
	if err := ctx.Err(); err != nil {
		r.complete(idx, StatusErrored, fmt.Sprintf("not executed: %v", err), 0)
		return
	}

	start := time.Now()

	log := r.log.WithField("example", ex.ID)
	log.Debug("executing example")

	status, detail := r.execute(ctx, ex)

	log.WithFields(logrus.Fields{
		"status":  status,
		"elapsed": time.Since(start),
	}).Debug("example complete")

	r.complete(idx, status, detail, time.Since(start))
}

// execute runs the example's statement or transaction action and
// validates the result.
func (r *runner) execute(ctx context.Context, ex *catalog.Example) (Status, string) {
	opts := query.Options{}
	if ex.Consistency == "request_plus" {
		opts.Consistency = query.ScanConsistencyRequestPlus
	}

	switch ex.TxAction {
	case "begin":
		handle, err := r.client.BeginTransaction(ctx, opts)
		if err != nil {
			return StatusErrored, err.Error()
		}

		r.mu.Lock()
		r.handles[ex.Transaction] = handle
		r.mu.Unlock()

		return StatusPassed, ""

	case "commit", "rollback":
		handle, ok := r.takeHandle(ex.Transaction)
		if !ok {
			return StatusErrored, fmt.Sprintf("transaction %s was never begun", ex.Transaction)
		}

		var err error
		if ex.TxAction == "commit" {
			err = r.client.Commit(ctx, handle)
		} else {
			err = r.client.Rollback(ctx, handle)
		}

		if err != nil {
			return StatusErrored, err.Error()
		}

		return StatusPassed, ""
	}

	if ex.Transaction != "" {
		handle, ok := r.peekHandle(ex.Transaction)
		if !ok {
			return StatusErrored, fmt.Sprintf("transaction %s was never begun", ex.Transaction)
		}
		opts.Tx = handle
	}

	rows, err := r.client.Execute(ctx, ex.Statement, ex.Params, opts)
	if err != nil {
		return StatusErrored, err.Error()
	}

	result := validate.Rows(rows, ex.Expect)
	if !result.OK {
		return StatusFailed, strings.Join(result.Reasons, "; ")
	}

	return StatusPassed, ""
}

// complete records an outcome and updates dependents. A dependent whose
// setups have all completed is enqueued if they all passed, otherwise
// marked errored immediately; that marking cascades to its own
// dependents without executing any of them.
func (r *runner) complete(idx int, status Status, detail string, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	type record struct {
		idx     int
		status  Status
		detail  string
		elapsed time.Duration
	}

	stack := []record{{idx, status, detail, elapsed}}

	for len(stack) > 0 {
		rec := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		ex := r.examples[rec.idx]
		r.statuses[rec.idx] = rec.status
		r.outcomes[rec.idx] = Outcome{ExampleID: ex.ID, Status: rec.status, Detail: rec.detail, Elapsed: rec.elapsed}
		r.done++

		for i, candidate := range r.examples {
			if r.statuses[i] != "" {
				continue
			}

			dependsOnCompleted := false
			for _, dep := range candidate.Setup {
				if r.indexByID[dep] == rec.idx {
					dependsOnCompleted = true
					break
				}
			}
			if !dependsOnCompleted {
				continue
			}

			r.pending[i]--
			if r.pending[i] > 0 {
				continue
			}

			if failedSetup := r.firstUnmetSetup(candidate); failedSetup != "" {
				stack = append(stack, record{
					idx:    i,
					status: StatusErrored,
					detail: fmt.Sprintf("setup example %s did not pass", failedSetup),
				})
				continue
			}

			r.ready <- i
		}
	}

	if r.done == len(r.examples) {
		r.readyOnce.Do(func() { close(r.ready) })
	}
}

// firstUnmetSetup returns the id of a setup example that did not pass,
// or "" when all setups passed.
func (r *runner) firstUnmetSetup(ex *catalog.Example) string {
	for _, dep := range ex.Setup {
		if r.statuses[r.indexByID[dep]] != StatusPassed {
			return dep
		}
	}
	return ""
}

func (r *runner) takeHandle(name string) (*query.TxHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	handle, ok := r.handles[name]
	if ok {
		delete(r.handles, name)
	}
	return handle, ok
}

func (r *runner) peekHandle(name string) (*query.TxHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	handle, ok := r.handles[name]
	return handle, ok
}
