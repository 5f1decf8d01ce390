// Package evaluate provides model quality metrics over prediction and
// ground-truth columns. Engines use it to score validation splits
// during training; the results typically surface through the
// "evaluation" describe facet.
package evaluate

import (
	"fmt"
	"math"
	"sort"

	"github.com/modelroom/modelroom/internal/dataset"
)

// MAE returns the mean absolute error.
func MAE(pred, truth []float64) (float64, error) {
	if err := checkLengths(pred, truth); err != nil {
		return 0, err
	}
	var sum float64
	for i := range pred {
		sum += math.Abs(pred[i] - truth[i])
	}
	return sum / float64(len(pred)), nil
}

// MSE returns the mean squared error.
func MSE(pred, truth []float64) (float64, error) {
	if err := checkLengths(pred, truth); err != nil {
		return 0, err
	}
	var sum float64
	for i := range pred {
		d := pred[i] - truth[i]
		sum += d * d
	}
	return sum / float64(len(pred)), nil
}

// RMSE returns the root mean squared error.
func RMSE(pred, truth []float64) (float64, error) {
	mse, err := MSE(pred, truth)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// R2 returns the coefficient of determination. A constant truth column
// has no variance to explain and is an error.
func R2(pred, truth []float64) (float64, error) {
	if err := checkLengths(pred, truth); err != nil {
		return 0, err
	}
	var mean float64
	for _, v := range truth {
		mean += v
	}
	mean /= float64(len(truth))

	var ssRes, ssTot float64
	for i := range truth {
		ssRes += (truth[i] - pred[i]) * (truth[i] - pred[i])
		ssTot += (truth[i] - mean) * (truth[i] - mean)
	}
	if ssTot == 0 {
		return 0, fmt.Errorf("truth column is constant")
	}
	return 1 - ssRes/ssTot, nil
}

// Accuracy returns the share of exact label matches.
func Accuracy(pred, truth []string) (float64, error) {
	if len(pred) != len(truth) {
		return 0, fmt.Errorf("prediction has %d values, truth has %d", len(pred), len(truth))
	}
	if len(pred) == 0 {
		return 0, fmt.Errorf("empty columns")
	}
	hits := 0
	for i := range pred {
		if pred[i] == truth[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(pred)), nil
}

// ConfusionMatrix counts (truth, prediction) label pairs. Labels lists
// every label seen, sorted, and Counts[t][p] is the number of rows with
// truth label Labels[t] predicted as Labels[p].
type ConfusionMatrix struct {
	Labels []string
	Counts [][]int
}

// Confusion builds the confusion matrix for categorical predictions.
func Confusion(pred, truth []string) (*ConfusionMatrix, error) {
	if len(pred) != len(truth) {
		return nil, fmt.Errorf("prediction has %d values, truth has %d", len(pred), len(truth))
	}
	seen := map[string]struct{}{}
	for i := range pred {
		seen[pred[i]] = struct{}{}
		seen[truth[i]] = struct{}{}
	}
	labels := make([]string, 0, len(seen))
	for label := range seen {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	index := make(map[string]int, len(labels))
	for i, label := range labels {
		index[label] = i
	}

	counts := make([][]int, len(labels))
	for i := range counts {
		counts[i] = make([]int, len(labels))
	}
	for i := range pred {
		counts[index[truth[i]]][index[pred[i]]]++
	}
	return &ConfusionMatrix{Labels: labels, Counts: counts}, nil
}

// F1Macro returns the macro-averaged F1 score: the unweighted mean of
// per-class F1. Classes never predicted and never true contribute 0.
func F1Macro(pred, truth []string) (float64, error) {
	cm, err := Confusion(pred, truth)
	if err != nil {
		return 0, err
	}
	if len(cm.Labels) == 0 {
		return 0, fmt.Errorf("empty columns")
	}
	var total float64
	for i := range cm.Labels {
		var tp, fp, fn int
		for j := range cm.Labels {
			if i == j {
				tp = cm.Counts[i][i]
				continue
			}
			fn += cm.Counts[i][j]
			fp += cm.Counts[j][i]
		}
		if tp == 0 {
			continue
		}
		precision := float64(tp) / float64(tp+fp)
		recall := float64(tp) / float64(tp+fn)
		total += 2 * precision * recall / (precision + recall)
	}
	return total / float64(len(cm.Labels)), nil
}

// Regression scores numeric predictions against truth and returns the
// standard metric set keyed by name.
func Regression(pred, truth []float64) (map[string]float64, error) {
	mae, err := MAE(pred, truth)
	if err != nil {
		return nil, err
	}
	rmse, err := RMSE(pred, truth)
	if err != nil {
		return nil, err
	}
	out := map[string]float64{"mae": mae, "rmse": rmse}
	if r2, err := R2(pred, truth); err == nil {
		out["r2"] = r2
	}
	return out, nil
}

// Classification scores categorical predictions against truth.
func Classification(pred, truth []string) (map[string]float64, error) {
	acc, err := Accuracy(pred, truth)
	if err != nil {
		return nil, err
	}
	f1, err := F1Macro(pred, truth)
	if err != nil {
		return nil, err
	}
	return map[string]float64{"accuracy": acc, "f1_macro": f1}, nil
}

// Columns extracts aligned metric inputs from two frames' columns,
// dropping rows where either side is missing.
func Columns(pred *dataset.Frame, truth *dataset.Frame, column string) (predOut, truthOut []any, err error) {
	if pred.NumRows() != truth.NumRows() {
		return nil, nil, fmt.Errorf("prediction has %d rows, truth has %d", pred.NumRows(), truth.NumRows())
	}
	p, ok := pred.Column(column)
	if !ok {
		return nil, nil, fmt.Errorf("prediction frame has no column %q", column)
	}
	tr, ok := truth.Column(column)
	if !ok {
		return nil, nil, fmt.Errorf("truth frame has no column %q", column)
	}
	for i := range p {
		if p[i] == nil || tr[i] == nil {
			continue
		}
		predOut = append(predOut, p[i])
		truthOut = append(truthOut, tr[i])
	}
	return predOut, truthOut, nil
}

func checkLengths(pred, truth []float64) error {
	if len(pred) != len(truth) {
		return fmt.Errorf("prediction has %d values, truth has %d", len(pred), len(truth))
	}
	if len(pred) == 0 {
		return fmt.Errorf("empty columns")
	}
	return nil
}
