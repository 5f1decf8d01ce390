package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Type inference thresholds: a string column becomes categorical when
// its distinct values are few in absolute terms or relative to the row
// count.
const (
	maxCategoricalDistinct = 20
	maxCategoricalRatio    = 0.1
	inferSampleLimit       = 1000
)

var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
}

// ParseDatetime parses a datetime string using the supported layouts.
func ParseDatetime(s string) (time.Time, error) {
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as datetime", s)
}

// InferTypes classifies columns from string cells, as read from CSV.
// Empty cells count as missing and do not vote. The result is
// deterministic for a given input.
func InferTypes(names []string, rows [][]string) []Column {
	cols := make([]Column, len(names))
	for j, name := range names {
		values := make([]string, 0, len(rows))
		for _, row := range rows {
			if j >= len(row) {
				continue
			}
			cell := strings.TrimSpace(row[j])
			if cell == "" {
				continue
			}
			values = append(values, cell)
			if len(values) >= inferSampleLimit {
				break
			}
		}
		cols[j] = Column{Name: name, Type: classifyStrings(values, len(rows))}
	}
	return cols
}

// InferFromValues classifies columns from already-decoded cells, as
// produced by JSON input. Strings fall back to the CSV string rules.
func InferFromValues(names []string, rows [][]any) []Column {
	cols := make([]Column, len(names))
	for j, name := range names {
		var strs []string
		var numeric, boolean, stamps, total int
		for _, row := range rows {
			if j >= len(row) || row[j] == nil {
				continue
			}
			total++
			switch v := row[j].(type) {
			case bool:
				boolean++
			case time.Time:
				stamps++
			case string:
				strs = append(strs, v)
			default:
				if _, ok := ToFloat(v); ok {
					numeric++
				} else {
					strs = append(strs, fmt.Sprintf("%v", v))
				}
			}
			if total >= inferSampleLimit {
				break
			}
		}

		switch {
		case total == 0:
			cols[j] = Column{Name: name, Type: TypeText}
		case boolean == total:
			cols[j] = Column{Name: name, Type: TypeBool}
		case stamps == total:
			cols[j] = Column{Name: name, Type: TypeDatetime}
		case numeric == total:
			cols[j] = Column{Name: name, Type: TypeNumeric}
		case len(strs) == total:
			cols[j] = Column{Name: name, Type: classifyStrings(strs, len(rows))}
		default:
			// Mixed representations: treat as text rather than guess.
			cols[j] = Column{Name: name, Type: TypeText}
		}
	}
	return cols
}

func classifyStrings(values []string, rowCount int) Type {
	if len(values) == 0 {
		return TypeText
	}

	allBool := true
	allNumeric := true
	allDatetime := true
	for _, v := range values {
		if allBool {
			if _, err := strconv.ParseBool(v); err != nil {
				allBool = false
			}
		}
		if allNumeric {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				allNumeric = false
			}
		}
		if allDatetime {
			if _, err := ParseDatetime(v); err != nil {
				allDatetime = false
			}
		}
		if !allBool && !allNumeric && !allDatetime {
			break
		}
	}
	switch {
	case allBool:
		return TypeBool
	case allNumeric:
		return TypeNumeric
	case allDatetime:
		return TypeDatetime
	}

	distinct := make(map[string]struct{}, len(values))
	for _, v := range values {
		distinct[v] = struct{}{}
	}
	if rowCount == 0 {
		rowCount = len(values)
	}
	if len(distinct) <= maxCategoricalDistinct || float64(len(distinct)) <= maxCategoricalRatio*float64(rowCount) {
		return TypeCategorical
	}
	return TypeText
}
