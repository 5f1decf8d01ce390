package dataset

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInferTypesFromStrings(t *testing.T) {
	t.Parallel()

	names := []string{"amount", "active", "joined", "plan", "note"}
	rows := [][]string{
		{"10.5", "true", "2024-01-02", "basic", "first order placed"},
		{"3", "false", "2024-02-10", "pro", "asked about invoices"},
		{"", "true", "2024-03-15", "basic", "churn risk flagged by support"},
	}

	cols := InferTypes(names, rows)
	require.Equal(t, TypeNumeric, cols[0].Type)
	require.Equal(t, TypeBool, cols[1].Type)
	require.Equal(t, TypeDatetime, cols[2].Type)
	require.Equal(t, TypeCategorical, cols[3].Type)
	// Short sample: distinct notes stay under the absolute threshold,
	// so they classify as categorical rather than text.
	require.Equal(t, TypeCategorical, cols[4].Type)
}

func TestInferTypesHighCardinalityIsText(t *testing.T) {
	t.Parallel()

	rows := make([][]string, 300)
	for i := range rows {
		rows[i] = []string{fmt.Sprintf("unique comment number %d", i)}
	}
	cols := InferTypes([]string{"comment"}, rows)
	require.Equal(t, TypeText, cols[0].Type)
}

func TestInferTypesIsDeterministic(t *testing.T) {
	t.Parallel()

	names := []string{"v"}
	rows := [][]string{{"a"}, {"b"}, {"a"}}
	first := InferTypes(names, rows)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, InferTypes(names, rows))
	}
}

func TestInferFromValues(t *testing.T) {
	t.Parallel()

	names := []string{"n", "b", "ts", "mixed"}
	rows := [][]any{
		{1.0, true, time.Now(), "a"},
		{2.5, false, time.Now(), 3.0},
		{nil, true, time.Now(), "b"},
	}
	cols := InferFromValues(names, rows)
	require.Equal(t, TypeNumeric, cols[0].Type)
	require.Equal(t, TypeBool, cols[1].Type)
	require.Equal(t, TypeDatetime, cols[2].Type)
	require.Equal(t, TypeText, cols[3].Type)
}

func TestParseDatetimeLayouts(t *testing.T) {
	t.Parallel()

	for _, in := range []string{
		"2024-05-01T09:30:00Z",
		"2024-05-01 09:30:00",
		"2024-05-01",
		"2024/05/01",
		"05/01/2024",
	} {
		_, err := ParseDatetime(in)
		require.NoError(t, err, in)
	}

	_, err := ParseDatetime("yesterday")
	require.Error(t, err)
}
