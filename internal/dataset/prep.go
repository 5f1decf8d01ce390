package dataset

import (
	"fmt"
	"math/rand"
	"sort"
)

// DropMissingTarget returns a new Frame without the rows whose target
// cell is missing. Relative order of the surviving rows is preserved.
func DropMissingTarget(f *Frame, target string) (*Frame, error) {
	j, ok := f.index[target]
	if !ok {
		return nil, fmt.Errorf("no column %q", target)
	}
	out, _ := New(f.cols...)
	for _, row := range f.rows {
		if row[j] == nil {
			continue
		}
		next := make([]any, len(row))
		copy(next, row)
		out.rows = append(out.rows, next)
	}
	return out, nil
}

// FillMissing returns a new Frame with missing cells imputed: numeric
// columns take the column mean, all other types take the most frequent
// value. Columns that are entirely missing are left untouched.
func FillMissing(f *Frame) *Frame {
	out := f.Clone()
	for j, col := range out.cols {
		switch col.Type {
		case TypeNumeric:
			var sum float64
			var n int
			for _, row := range out.rows {
				if row[j] == nil {
					continue
				}
				if v, ok := ToFloat(row[j]); ok {
					sum += v
					n++
				}
			}
			if n == 0 {
				continue
			}
			mean := sum / float64(n)
			for _, row := range out.rows {
				if row[j] == nil {
					row[j] = mean
				}
			}
		default:
			counts := make(map[string]int)
			values := make(map[string]any)
			for _, row := range out.rows {
				if row[j] == nil {
					continue
				}
				key := FormatValue(row[j])
				counts[key]++
				values[key] = row[j]
			}
			if len(counts) == 0 {
				continue
			}
			mode := mostFrequent(counts)
			for _, row := range out.rows {
				if row[j] == nil {
					row[j] = values[mode]
				}
			}
		}
	}
	return out
}

// Split partitions the rows into train and validation frames. ratio is
// the training share in (0, 1). The shuffle is seeded, so a given
// (frame, ratio, seed) always yields the same split.
func Split(f *Frame, ratio float64, seed int64) (*Frame, *Frame, error) {
	if ratio <= 0 || ratio >= 1 {
		return nil, nil, fmt.Errorf("split ratio %v outside (0, 1)", ratio)
	}
	indices := shuffledIndices(f.NumRows(), seed)
	cut := int(ratio * float64(len(indices)))
	return f.take(indices[:cut]), f.take(indices[cut:]), nil
}

// StratifiedSplit partitions the rows like Split while keeping each
// target class represented proportionally in both partitions. The
// target column must be categorical or bool.
func StratifiedSplit(f *Frame, target string, ratio float64, seed int64) (*Frame, *Frame, error) {
	if ratio <= 0 || ratio >= 1 {
		return nil, nil, fmt.Errorf("split ratio %v outside (0, 1)", ratio)
	}
	j, ok := f.index[target]
	if !ok {
		return nil, nil, fmt.Errorf("no column %q", target)
	}
	if t := f.cols[j].Type; t != TypeCategorical && t != TypeBool {
		return nil, nil, fmt.Errorf("column %q is %s, stratification needs categorical or bool", target, t)
	}

	groups := make(map[string][]int)
	for i, row := range f.rows {
		groups[FormatValue(row[j])] = append(groups[FormatValue(row[j])], i)
	}
	classes := make([]string, 0, len(groups))
	for class := range groups {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	rng := rand.New(rand.NewSource(seed))
	var trainIdx, valIdx []int
	for _, class := range classes {
		members := groups[class]
		rng.Shuffle(len(members), func(a, b int) {
			members[a], members[b] = members[b], members[a]
		})
		cut := int(ratio * float64(len(members)))
		trainIdx = append(trainIdx, members[:cut]...)
		valIdx = append(valIdx, members[cut:]...)
	}
	sort.Ints(trainIdx)
	sort.Ints(valIdx)
	return f.take(trainIdx), f.take(valIdx), nil
}

func shuffledIndices(n int, seed int64) []int {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(n, func(a, b int) {
		indices[a], indices[b] = indices[b], indices[a]
	})
	return indices
}

func (f *Frame) take(indices []int) *Frame {
	out, _ := New(f.cols...)
	for _, i := range indices {
		out.rows = append(out.rows, f.Row(i))
	}
	return out
}

func mostFrequent(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	// Sort for a deterministic winner on ties.
	sort.Strings(keys)
	best := keys[0]
	for _, k := range keys[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}
	return best
}
