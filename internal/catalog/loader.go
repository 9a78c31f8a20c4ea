package catalog

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Loader loads catalog files.
type Loader interface {
	Load(path string) (*Catalog, error)
}

type loader struct {
	log logrus.FieldLogger
}

// NewLoader creates a new catalog loader.
func NewLoader(log logrus.FieldLogger) Loader {
	return &loader{
		log: log.WithField("component", "catalog_loader"),
	}
}

// Load reads, parses, and validates a YAML catalog file. The returned
// catalog has already been checked for duplicate ids, dangling or
// self-referential setup dependencies, and dependency cycles.
func (l *loader) Load(path string) (*Catalog, error) {
	l.log.WithField("path", path).Debug("loading catalog")

	data, err := os.ReadFile(path) //nolint:gosec // G304: Reading catalog from trusted paths
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}

	if err := l.validate(&c); err != nil {
		return nil, fmt.Errorf("validating catalog %s: %w", path, err)
	}

	// Confirm setup dependencies form a DAG before anything runs.
	if _, err := c.Order(); err != nil {
		return nil, err
	}

	l.log.WithField("examples", len(c.Examples)).Info("loaded catalog")

	return &c, nil
}

// validate ensures the catalog is well formed and builds the id index.
func (l *loader) validate(c *Catalog) error {
	c.byID = make(map[string]*Example, len(c.Examples))

	for i, ex := range c.Examples {
		if ex.ID == "" {
			return fmt.Errorf("%w at index %d", errExampleIDRequired, i)
		}

		switch ex.TxAction {
		case "", "begin", "commit", "rollback":
		default:
			return fmt.Errorf("%w: example %s has %q", errInvalidTxAction, ex.ID, ex.TxAction)
		}

		if ex.TxAction != "" && ex.Transaction == "" {
			return fmt.Errorf("%w: %s", errTxActionWithoutName, ex.ID)
		}

		// Begin/commit/rollback examples carry no statement of their own.
		if ex.Statement == "" && ex.TxAction == "" {
			return fmt.Errorf("%w: %s", errStatementRequired, ex.ID)
		}

		if _, exists := c.byID[ex.ID]; exists {
			return fmt.Errorf("%w: %s", errDuplicateID, ex.ID)
		}
		c.byID[ex.ID] = ex

		switch ex.Consistency {
		case "", "unbounded", "request_plus":
		default:
			return fmt.Errorf("%w: example %s has %q", errInvalidConsistency, ex.ID, ex.Consistency)
		}

		if ex.Expect != nil {
			if err := l.validateExpectation(ex.ID, ex.Expect); err != nil {
				return err
			}
		}
	}

	// Setup references can point forward, so resolve them after the
	// id index is complete.
	for _, ex := range c.Examples {
		seen := make(map[string]bool, len(ex.Setup))

		for _, dep := range ex.Setup {
			if dep == ex.ID {
				return fmt.Errorf("%w: %s", errSelfDependency, ex.ID)
			}

			if _, ok := c.byID[dep]; !ok {
				return fmt.Errorf("%w: example %s references %s", errUnknownSetupExample, ex.ID, dep)
			}

			if seen[dep] {
				return fmt.Errorf("%w: example %s lists %s twice", errDuplicateSetup, ex.ID, dep)
			}
			seen[dep] = true
		}
	}

	return nil
}

func (l *loader) validateExpectation(exampleID string, expect *Expectation) error {
	if expect.MaxRows != nil && *expect.MaxRows < expect.MinRows {
		return fmt.Errorf("%w: example %s", errExpectationRowBounds, exampleID)
	}

	switch expect.Match {
	case "", MatchAll, MatchAny:
	default:
		return fmt.Errorf("%w: example %s has %q", errInvalidMatchMode, exampleID, expect.Match)
	}

	validTypes := map[string]bool{
		"equals":                true,
		"equal":                 true,
		"not_equals":            true,
		"not_equal":             true,
		"greater_than":          true,
		"gt":                    true,
		"greater_than_or_equal": true,
		"gte":                   true,
		"less_than":             true,
		"lt":                    true,
		"less_than_or_equal":    true,
		"lte":                   true,
		"contains":              true,
		"matches":               true,
	}

	for i, check := range expect.Fields {
		if check.Field == "" {
			return fmt.Errorf("%w: example %s, check %d", errCheckMissingField, exampleID, i)
		}

		if check.Type == "" {
			return fmt.Errorf("%w: example %s, check %d", errCheckMissingType, exampleID, i)
		}

		if !validTypes[check.Type] {
			return fmt.Errorf("%w: example %s, check %d has type %q", errCheckInvalidType, exampleID, i, check.Type)
		}

		if check.Value == nil {
			return fmt.Errorf("%w: example %s, check %d", errCheckMissingValue, exampleID, i)
		}
	}

	return nil
}
