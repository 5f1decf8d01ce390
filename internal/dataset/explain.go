package dataset

import "strings"

// Prediction frames may carry extra columns alongside the target,
// named by suffixing the target column.
const (
	ExplainSuffix    = "_explain"
	ConfidenceSuffix = "_confidence"
	LowerSuffix      = "_lower"
	UpperSuffix      = "_upper"
)

var explanationSuffixes = []string{ExplainSuffix, ConfidenceSuffix, LowerSuffix, UpperSuffix}

// IsExplanationColumn reports whether name is an explanation column for
// the given target.
func IsExplanationColumn(name, target string) bool {
	for _, suffix := range explanationSuffixes {
		if name == target+suffix {
			return true
		}
	}
	return strings.HasPrefix(name, target+ExplainSuffix+"_")
}

// ExplanationColumns returns the explanation columns a frame carries
// for the given target, in schema order.
func ExplanationColumns(f *Frame, target string) []Column {
	var out []Column
	for _, col := range f.Columns() {
		if IsExplanationColumn(col.Name, target) {
			out = append(out, col)
		}
	}
	return out
}
