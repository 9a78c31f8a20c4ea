// Package catalog provides loading and validation of query example catalogs.
// A catalog lists named SQL++ statements with bind parameters, setup
// dependencies, and declarative result expectations.
package catalog

import (
	"errors"
	"fmt"
	"path"
)

var (
	errExampleIDRequired     = errors.New("example id is required")
	errStatementRequired     = errors.New("example missing statement text")
	errDuplicateID           = errors.New("duplicate example id")
	errSelfDependency        = errors.New("example depends on itself")
	errDuplicateSetup        = errors.New("duplicate setup dependency")
	errUnknownSetupExample   = errors.New("setup references unknown example")
	errExpectationRowBounds  = errors.New("expectation max_rows is below min_rows")
	errCheckMissingField     = errors.New("field check missing field name")
	errCheckMissingType      = errors.New("field check missing type")
	errCheckInvalidType      = errors.New("field check has invalid type")
	errCheckMissingValue     = errors.New("field check missing value")
	errInvalidMatchMode      = errors.New("expectation match must be 'all' or 'any'")
	errInvalidConsistency    = errors.New("consistency must be 'unbounded' or 'request_plus'")
	errInvalidTxAction       = errors.New("tx_action must be 'begin', 'commit', or 'rollback'")
	errTxActionWithoutName   = errors.New("tx_action requires a transaction name")
	errNoExamplesMatchFilter = errors.New("no examples match filter")

	// ErrDependencyCycle is returned when setup dependencies form a cycle.
	ErrDependencyCycle = errors.New("dependency cycle detected")
)

// MatchMode controls whether field checks must hold for every row or at
// least one row.
type MatchMode string

const (
	// MatchAll requires every returned row to satisfy the field checks.
	MatchAll MatchMode = "all"
	// MatchAny requires at least one returned row to satisfy the field checks.
	MatchAny MatchMode = "any"
)

// Example represents a single replayable query with its expectation.
// Examples are immutable once loaded.
type Example struct {
	ID          string                 `yaml:"id"`
	Description string                 `yaml:"description,omitempty"`
	Statement   string                 `yaml:"statement"`
	Params      map[string]interface{} `yaml:"params,omitempty"`
	Consistency string                 `yaml:"consistency,omitempty"` // unbounded (default) or request_plus
	Transaction string                 `yaml:"transaction,omitempty"` // name of the transaction this example participates in
	TxAction    string                 `yaml:"tx_action,omitempty"`   // begin, commit, or rollback; empty runs Statement under the transaction
	Setup       []string               `yaml:"setup,omitempty"`
	Expect      *Expectation           `yaml:"expect,omitempty"`
}

// Expectation is a declarative predicate over a sequence of result rows.
// A nil MaxRows means unbounded.
type Expectation struct {
	MinRows        int           `yaml:"min_rows"`
	MaxRows        *int          `yaml:"max_rows,omitempty"`
	RequiredFields []string      `yaml:"required_fields,omitempty"`
	Match          MatchMode     `yaml:"match,omitempty"`
	Fields         []*FieldCheck `yaml:"fields,omitempty"`
}

// FieldCheck represents a typed predicate on a single result field.
// Field supports dotted paths into nested documents (e.g. geo.alt).
type FieldCheck struct {
	Field string      `yaml:"field"`
	Type  string      `yaml:"type"`
	Value interface{} `yaml:"value"`
}

// Catalog is a validated set of examples in declaration order.
type Catalog struct {
	Examples []*Example `yaml:"examples"`

	byID map[string]*Example
}

// Get returns the example with the given id, or nil.
func (c *Catalog) Get(id string) *Example {
	return c.byID[id]
}

// Order returns the examples topologically sorted so that every setup
// dependency precedes its dependents. Declaration order is preserved
// among examples with no ordering constraint between them.
func (c *Catalog) Order() ([]*Example, error) {
	return topologicalOrder(c.Examples)
}

// Filter returns a new catalog containing the examples whose ids match
// the glob-style pattern, plus the transitive setup closure of each
// match. Setup examples are retained even when they do not match the
// pattern themselves, since dependents cannot run without them.
func (c *Catalog) Filter(pattern string) (*Catalog, error) {
	keep := make(map[string]bool)

	var addWithSetups func(ex *Example)
	addWithSetups = func(ex *Example) {
		if keep[ex.ID] {
			return
		}
		keep[ex.ID] = true
		for _, dep := range ex.Setup {
			addWithSetups(c.byID[dep])
		}
	}

	for _, ex := range c.Examples {
		matched, err := path.Match(pattern, ex.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern %q: %w", pattern, err)
		}
		if matched {
			addWithSetups(ex)
		}
	}

	if len(keep) == 0 {
		return nil, fmt.Errorf("%w: %s", errNoExamplesMatchFilter, pattern)
	}

	filtered := &Catalog{byID: make(map[string]*Example, len(keep))}
	for _, ex := range c.Examples {
		if keep[ex.ID] {
			filtered.Examples = append(filtered.Examples, ex)
			filtered.byID[ex.ID] = ex
		}
	}

	return filtered, nil
}

// Select returns a new catalog containing the examples with the given
// ids plus their transitive setup closure. Unknown ids are rejected.
func (c *Catalog) Select(ids []string) (*Catalog, error) {
	keep := make(map[string]bool)

	var addWithSetups func(ex *Example)
	addWithSetups = func(ex *Example) {
		if keep[ex.ID] {
			return
		}
		keep[ex.ID] = true
		for _, dep := range ex.Setup {
			addWithSetups(c.byID[dep])
		}
	}

	for _, id := range ids {
		ex, ok := c.byID[id]
		if !ok {
			return nil, fmt.Errorf("unknown example id: %s", id)
		}
		addWithSetups(ex)
	}

	selected := &Catalog{byID: make(map[string]*Example, len(keep))}
	for _, ex := range c.Examples {
		if keep[ex.ID] {
			selected.Examples = append(selected.Examples, ex)
			selected.byID[ex.ID] = ex
		}
	}

	return selected, nil
}

// topologicalOrder sorts examples setup-first using Kahn's algorithm.
// Ties resolve in declaration order so output is deterministic.
func topologicalOrder(examples []*Example) ([]*Example, error) {
	byID := make(map[string]*Example, len(examples))
	for _, ex := range examples {
		byID[ex.ID] = ex
	}

	dependents := make(map[string][]*Example)
	inDegree := make(map[string]int, len(examples))

	for _, ex := range examples {
		if _, ok := inDegree[ex.ID]; !ok {
			inDegree[ex.ID] = 0
		}

		for _, dep := range ex.Setup {
			dependents[dep] = append(dependents[dep], ex)
			inDegree[ex.ID]++
		}
	}

	queue := make([]*Example, 0, len(examples))
	for _, ex := range examples {
		if inDegree[ex.ID] == 0 {
			queue = append(queue, ex)
		}
	}

	sorted := make([]*Example, 0, len(examples))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		sorted = append(sorted, current)

		for _, dependent := range dependents[current.ID] {
			inDegree[dependent.ID]--
			if inDegree[dependent.ID] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(sorted) != len(examples) {
		// Every remaining example sits on a cycle; name one for the error.
		for _, ex := range examples {
			if inDegree[ex.ID] > 0 {
				return nil, fmt.Errorf("%w: involving example %s", ErrDependencyCycle, ex.ID)
			}
		}
		return nil, ErrDependencyCycle
	}

	return sorted, nil
}
