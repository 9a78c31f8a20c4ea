package runner

import "time"

// Status classifies how an example run ended.
type Status string

const (
	// StatusPassed means the example ran and its expectation held.
	StatusPassed Status = "passed"
	// StatusFailed means the example ran but validation mismatched.
	StatusFailed Status = "failed"
	// StatusErrored means the example could not produce rows to
	// validate: a query error, an unmet setup, or cancellation.
	StatusErrored Status = "errored"
)

// Outcome records the result of one example.
type Outcome struct {
	ExampleID string
	Status    Status
	Detail    string
	Elapsed   time.Duration
}

// Summary aggregates outcome counts for a run.
type Summary struct {
	Total   int
	Passed  int
	Failed  int
	Errored int
	Elapsed time.Duration
}

// Summarize tallies outcomes.
func Summarize(outcomes []Outcome, elapsed time.Duration) Summary {
	s := Summary{Total: len(outcomes), Elapsed: elapsed}

	for _, o := range outcomes {
		switch o.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusErrored:
			s.Errored++
		}
	}

	return s
}
