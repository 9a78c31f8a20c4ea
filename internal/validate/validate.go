// Package validate evaluates declarative expectations against query
// result rows. Validation is pure: the same rows and expectation always
// produce the same result.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/seabed-tools/cbreplay/internal/catalog"
	"github.com/seabed-tools/cbreplay/internal/query"
)

// Result reports whether rows satisfied an expectation, with one reason
// per violated condition.
type Result struct {
	OK      bool
	Reasons []string
}

// Rows checks row-count bounds, required fields, and field predicates.
// A nil expectation is vacuously satisfied. Rows are schema-less, so
// required fields and predicates are checked per row without assuming a
// uniform shape.
func Rows(rows []query.Row, expect *catalog.Expectation) Result {
	if expect == nil {
		return Result{OK: true}
	}

	var reasons []string

	if len(rows) < expect.MinRows {
		reasons = append(reasons, fmt.Sprintf("row count %d below minimum %d", len(rows), expect.MinRows))
	}

	if expect.MaxRows != nil && len(rows) > *expect.MaxRows {
		reasons = append(reasons, fmt.Sprintf("row count %d above maximum %d", len(rows), *expect.MaxRows))
	}

	for i, row := range rows {
		for _, field := range expect.RequiredFields {
			if _, ok := lookup(row, field); !ok {
				reasons = append(reasons, fmt.Sprintf("row %d missing required field %s", i, field))
			}
		}
	}

	reasons = append(reasons, checkFields(rows, expect)...)

	return Result{OK: len(reasons) == 0, Reasons: reasons}
}

// checkFields applies the expectation's field predicates under its
// match mode: all rows must satisfy every check, or at least one row
// must satisfy all of them.
func checkFields(rows []query.Row, expect *catalog.Expectation) []string {
	if len(expect.Fields) == 0 {
		return nil
	}

	mode := expect.Match
	if mode == "" {
		mode = catalog.MatchAll
	}

	if mode == catalog.MatchAny {
		if len(rows) == 0 {
			return []string{"no rows to satisfy any-row field checks"}
		}

		for _, row := range rows {
			if len(rowFailures(row, expect.Fields)) == 0 {
				return nil
			}
		}

		return []string{fmt.Sprintf("no row satisfied field checks: %s", describeChecks(expect.Fields))}
	}

	var reasons []string
	for i, row := range rows {
		for _, failure := range rowFailures(row, expect.Fields) {
			reasons = append(reasons, fmt.Sprintf("row %d: %s", i, failure))
		}
	}

	return reasons
}

// rowFailures returns one message per check the row does not satisfy.
func rowFailures(row query.Row, checks []*catalog.FieldCheck) []string {
	var failures []string

	for _, check := range checks {
		actual, ok := lookup(row, check.Field)
		if !ok {
			failures = append(failures, fmt.Sprintf("field %s not present", check.Field))
			continue
		}

		passed, err := evaluate(check.Type, actual, check.Value)
		if err != nil {
			failures = append(failures, fmt.Sprintf("field %s: %v", check.Field, err))
			continue
		}

		if !passed {
			failures = append(failures, fmt.Sprintf("field %s %s %v (actual: %v)", check.Field, check.Type, check.Value, actual))
		}
	}

	return failures
}

// evaluate performs a single typed comparison.
func evaluate(comparisonType string, actual, expected interface{}) (bool, error) {
	actualFloat, actualIsNumeric := toFloat64(actual)
	expectedFloat, expectedIsNumeric := toFloat64(expected)

	switch comparisonType {
	case "equals", "equal":
		if actualIsNumeric && expectedIsNumeric {
			return actualFloat == expectedFloat, nil
		}
		return fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", expected), nil

	case "not_equals", "not_equal":
		if actualIsNumeric && expectedIsNumeric {
			return actualFloat != expectedFloat, nil
		}
		return fmt.Sprintf("%v", actual) != fmt.Sprintf("%v", expected), nil

	case "greater_than", "gt":
		if !actualIsNumeric || !expectedIsNumeric {
			return false, fmt.Errorf("greater_than requires numeric values, got actual=%T expected=%T", actual, expected) //nolint:err113 // Dynamic error with type info
		}
		return actualFloat > expectedFloat, nil

	case "greater_than_or_equal", "gte":
		if !actualIsNumeric || !expectedIsNumeric {
			return false, fmt.Errorf("greater_than_or_equal requires numeric values, got actual=%T expected=%T", actual, expected) //nolint:err113 // Dynamic error with type info
		}
		return actualFloat >= expectedFloat, nil

	case "less_than", "lt":
		if !actualIsNumeric || !expectedIsNumeric {
			return false, fmt.Errorf("less_than requires numeric values, got actual=%T expected=%T", actual, expected) //nolint:err113 // Dynamic error with type info
		}
		return actualFloat < expectedFloat, nil

	case "less_than_or_equal", "lte":
		if !actualIsNumeric || !expectedIsNumeric {
			return false, fmt.Errorf("less_than_or_equal requires numeric values, got actual=%T expected=%T", actual, expected) //nolint:err113 // Dynamic error with type info
		}
		return actualFloat <= expectedFloat, nil

	case "contains":
		return strings.Contains(fmt.Sprintf("%v", actual), fmt.Sprintf("%v", expected)), nil

	case "matches":
		re, err := regexp.Compile(fmt.Sprintf("%v", expected))
		if err != nil {
			return false, fmt.Errorf("compiling pattern: %w", err)
		}
		return re.MatchString(fmt.Sprintf("%v", actual)), nil

	default:
		return false, fmt.Errorf("unknown comparison type: %s", comparisonType) //nolint:err113 // Dynamic error with comparison type
	}
}

// lookup resolves a possibly dotted path into a nested document. Each
// segment except the last must be an object.
func lookup(row query.Row, path string) (interface{}, bool) {
	segments := strings.Split(path, ".")

	var current interface{} = map[string]interface{}(row)
	for _, segment := range segments {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}

		current, ok = obj[segment]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

func describeChecks(checks []*catalog.FieldCheck) string {
	parts := make([]string, 0, len(checks))
	for _, check := range checks {
		parts = append(parts, fmt.Sprintf("%s %s %v", check.Field, check.Type, check.Value))
	}
	return strings.Join(parts, ", ")
}

// toFloat64 attempts to convert a value to float64 for numeric comparisons
func toFloat64(val interface{}) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}
