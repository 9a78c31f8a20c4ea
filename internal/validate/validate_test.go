package validate

import (
	"testing"

	"github.com/seabed-tools/cbreplay/internal/catalog"
	"github.com/seabed-tools/cbreplay/internal/query"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int {
	return &v
}

func countryRows(n int) []query.Row {
	rows := make([]query.Row, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, query.Row{"country": "France"})
	}
	return rows
}

func TestRows_ExactCountWithRequiredField(t *testing.T) {
	t.Parallel()

	result := Rows(countryRows(5), &catalog.Expectation{
		MinRows:        5,
		MaxRows:        intPtr(5),
		RequiredFields: []string{"country"},
	})

	require.True(t, result.OK)
	require.Empty(t, result.Reasons)
}

func TestRows_EmptyResultBelowMinimum(t *testing.T) {
	t.Parallel()

	result := Rows(nil, &catalog.Expectation{MinRows: 1})

	require.False(t, result.OK)
	require.Len(t, result.Reasons, 1)
	require.Contains(t, result.Reasons[0], "row count 0 below minimum 1")
}

func TestRows_Idempotent(t *testing.T) {
	t.Parallel()

	rows := []query.Row{
		{"country": "France", "alt": 12.0},
		{"country": "Iceland"},
	}
	expect := &catalog.Expectation{
		MinRows:        1,
		RequiredFields: []string{"country", "alt"},
		Fields: []*catalog.FieldCheck{
			{Field: "alt", Type: "greater_than", Value: 10},
		},
	}

	first := Rows(rows, expect)
	second := Rows(rows, expect)

	require.Equal(t, first, second)
}

func TestRows_MaxRowsExceeded(t *testing.T) {
	t.Parallel()

	result := Rows(countryRows(3), &catalog.Expectation{MaxRows: intPtr(2)})

	require.False(t, result.OK)
	require.Contains(t, result.Reasons[0], "above maximum 2")
}

func TestRows_ExplicitZeroMaxRows(t *testing.T) {
	t.Parallel()

	expect := &catalog.Expectation{MinRows: 0, MaxRows: intPtr(0)}

	require.True(t, Rows(nil, expect).OK)
	require.False(t, Rows(countryRows(1), expect).OK)
}

func TestRows_NilExpectationAlwaysPasses(t *testing.T) {
	t.Parallel()

	require.True(t, Rows(nil, nil).OK)
	require.True(t, Rows(countryRows(3), nil).OK)
}

func TestRows_RequiredFieldMissingInOneRow(t *testing.T) {
	t.Parallel()

	// Schema-less rows: field sets may differ row to row.
	rows := []query.Row{
		{"airportname": "Nice", "city": "Nice"},
		{"airportname": "Orly"},
	}

	result := Rows(rows, &catalog.Expectation{RequiredFields: []string{"city"}})

	require.False(t, result.OK)
	require.Len(t, result.Reasons, 1)
	require.Contains(t, result.Reasons[0], "row 1 missing required field city")
}

func TestRows_AllRowsSemantics(t *testing.T) {
	t.Parallel()

	rows := []query.Row{
		{"alt": 4500.0},
		{"alt": 3000.0},
	}

	result := Rows(rows, &catalog.Expectation{
		Match: catalog.MatchAll,
		Fields: []*catalog.FieldCheck{
			{Field: "alt", Type: "greater_than", Value: 4000},
		},
	})

	require.False(t, result.OK)
	require.Len(t, result.Reasons, 1)
	require.Contains(t, result.Reasons[0], "row 1")
}

func TestRows_AnyRowSemantics(t *testing.T) {
	t.Parallel()

	rows := []query.Row{
		{"country": "Iceland"},
		{"country": "France"},
	}

	result := Rows(rows, &catalog.Expectation{
		Match: catalog.MatchAny,
		Fields: []*catalog.FieldCheck{
			{Field: "country", Type: "equals", Value: "France"},
		},
	})

	require.True(t, result.OK)
}

func TestRows_AnyRowSemanticsNoMatch(t *testing.T) {
	t.Parallel()

	rows := []query.Row{
		{"country": "Iceland"},
	}

	result := Rows(rows, &catalog.Expectation{
		Match: catalog.MatchAny,
		Fields: []*catalog.FieldCheck{
			{Field: "country", Type: "equals", Value: "France"},
		},
	})

	require.False(t, result.OK)
}

func TestRows_DottedPathLookup(t *testing.T) {
	t.Parallel()

	rows := []query.Row{
		{
			"airportname": "Denver Intl",
			"geo": map[string]interface{}{
				"alt": 5431.0,
				"lat": 39.861,
			},
		},
	}

	result := Rows(rows, &catalog.Expectation{
		RequiredFields: []string{"geo.alt"},
		Fields: []*catalog.FieldCheck{
			{Field: "geo.alt", Type: "greater_than", Value: 5000},
		},
	})

	require.True(t, result.OK)
}

func TestRows_ComparisonTypes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		check  *catalog.FieldCheck
		row    query.Row
		passes bool
	}{
		{"equals string", &catalog.FieldCheck{Field: "s", Type: "equals", Value: "SFO"}, query.Row{"s": "SFO"}, true},
		{"equals numeric cross-type", &catalog.FieldCheck{Field: "n", Type: "equals", Value: 4}, query.Row{"n": 4.0}, true},
		{"not_equals", &catalog.FieldCheck{Field: "s", Type: "not_equals", Value: "LAX"}, query.Row{"s": "SFO"}, true},
		{"gte boundary", &catalog.FieldCheck{Field: "n", Type: "gte", Value: 4}, query.Row{"n": 4.0}, true},
		{"lt fails at boundary", &catalog.FieldCheck{Field: "n", Type: "lt", Value: 4}, query.Row{"n": 4.0}, false},
		{"contains", &catalog.FieldCheck{Field: "s", Type: "contains", Value: "Airlines"}, query.Row{"s": "Southwest Airlines"}, true},
		{"matches", &catalog.FieldCheck{Field: "s", Type: "matches", Value: "^WN[0-9]+$"}, query.Row{"s": "WN533"}, true},
		{"matches fails", &catalog.FieldCheck{Field: "s", Type: "matches", Value: "^WN[0-9]+$"}, query.Row{"s": "BA286"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := Rows([]query.Row{tt.row}, &catalog.Expectation{
				Fields: []*catalog.FieldCheck{tt.check},
			})

			require.Equal(t, tt.passes, result.OK, "reasons: %v", result.Reasons)
		})
	}
}

func TestRows_NonNumericComparisonReportsReason(t *testing.T) {
	t.Parallel()

	result := Rows([]query.Row{{"alt": "high"}}, &catalog.Expectation{
		Fields: []*catalog.FieldCheck{
			{Field: "alt", Type: "greater_than", Value: 4000},
		},
	})

	require.False(t, result.OK)
	require.Contains(t, result.Reasons[0], "requires numeric values")
}
