package estimator

import (
	"math"
	"math/rand"
	"sort"
)

// TestFraction returns the held-out fraction used for n labeled rows.
func TestFraction(n int) float64 {
	if n >= 30 {
		return 0.2
	}
	return 0.15
}

// FoldCount bounds k-fold CV by min(5, n/max(classes,3)), never below 2.
func FoldCount(n, nClasses int) int {
	k := n / max(nClasses, 3)
	return max(2, min(5, k))
}

// StratifiedSplit partitions row indices so every class keeps roughly its share in the test part.
// Each class with at least two rows keeps at least one row on each side.
func StratifiedSplit(y []int, testFraction float64, seed int64) (train, test []int) {
	rng := rand.New(rand.NewSource(seed))
	for _, rows := range groupByClass(y) {
		rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
		nTest := int(math.Round(testFraction * float64(len(rows))))
		if nTest == 0 && len(rows) >= 2 && testFraction > 0 {
			nTest = 1
		}
		if nTest >= len(rows) {
			nTest = len(rows) - 1
		}
		test = append(test, rows[:nTest]...)
		train = append(train, rows[nTest:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test
}

// StratifiedKFold deals each class's shuffled rows round-robin into k test folds.
func StratifiedKFold(y []int, k int, seed int64) [][]int {
	rng := rand.New(rand.NewSource(seed))
	folds := make([][]int, k)
	next := 0
	for _, rows := range groupByClass(y) {
		rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
		for _, r := range rows {
			folds[next%k] = append(folds[next%k], r)
			next++
		}
	}
	for _, f := range folds {
		sort.Ints(f)
	}
	return folds
}

// groupByClass returns row indices per class in ascending class order.
func groupByClass(y []int) [][]int {
	by := map[int][]int{}
	for i, v := range y {
		by[v] = append(by[v], i)
	}
	classes := make([]int, 0, len(by))
	for c := range by {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	out := make([][]int, len(classes))
	for i, c := range classes {
		out[i] = by[c]
	}
	return out
}

// Accuracy is the fraction of exact matches.
func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	ok := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			ok++
		}
	}
	return float64(ok) / float64(len(yTrue))
}

// F1Weighted averages per-class F1 weighted by true support.
func F1Weighted(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	support := map[int]int{}
	tp := map[int]int{}
	predicted := map[int]int{}
	for i := range yTrue {
		support[yTrue[i]]++
		predicted[yPred[i]]++
		if yTrue[i] == yPred[i] {
			tp[yTrue[i]]++
		}
	}
	var total float64
	for c, s := range support {
		if tp[c] == 0 {
			continue
		}
		precision := float64(tp[c]) / float64(predicted[c])
		recall := float64(tp[c]) / float64(s)
		total += float64(s) * 2 * precision * recall / (precision + recall)
	}
	return total / float64(len(yTrue))
}

// ConfusionMatrix counts rows by (true label, predicted label) in labels order.
func ConfusionMatrix(yTrue, yPred, labels []int) [][]int {
	pos := make(map[int]int, len(labels))
	for i, l := range labels {
		pos[l] = i
	}
	m := make([][]int, len(labels))
	for i := range m {
		m[i] = make([]int, len(labels))
	}
	for i := range yTrue {
		r, okR := pos[yTrue[i]]
		c, okC := pos[yPred[i]]
		if okR && okC {
			m[r][c]++
		}
	}
	return m
}

// MeanStd returns the mean and population standard deviation.
func MeanStd(v []float64) (float64, float64) {
	if len(v) == 0 {
		return 0, 0
	}
	var s float64
	for _, x := range v {
		s += x
	}
	mean := s / float64(len(v))
	var ss float64
	for _, x := range v {
		ss += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(ss / float64(len(v)))
}

// RegressionErrors returns RMSE and MAE of predictions against targets.
func RegressionErrors(yTrue, yPred []float64) (rmse, mae float64) {
	if len(yTrue) == 0 {
		return 0, 0
	}
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		rmse += d * d
		mae += math.Abs(d)
	}
	n := float64(len(yTrue))
	return math.Sqrt(rmse / n), mae / n
}

// ImputeMedian replaces NaN cells with their column median in place and returns the medians.
// A column with no observed value is filled with 0.
func ImputeMedian(X [][]float64) []float64 {
	if len(X) == 0 {
		return nil
	}
	d := len(X[0])
	medians := make([]float64, d)
	col := make([]float64, 0, len(X))
	for j := 0; j < d; j++ {
		col = col[:0]
		for _, row := range X {
			if !math.IsNaN(row[j]) {
				col = append(col, row[j])
			}
		}
		medians[j] = median(col)
		for _, row := range X {
			if math.IsNaN(row[j]) {
				row[j] = medians[j]
			}
		}
	}
	return medians
}

func median(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

// Subset selects rows by index.
func Subset[T any](rows []T, idx []int) []T {
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = rows[j]
	}
	return out
}

// CrossValidateForest returns the weighted F1 of each stratified fold.
func CrossValidateForest(X [][]float64, y []int, k int, p ForestParams) ([]float64, error) {
	folds := StratifiedKFold(y, k, p.Seed)
	scores := make([]float64, 0, k)
	for fi, testIdx := range folds {
		if len(testIdx) == 0 {
			continue
		}
		var trainIdx []int
		for fj, f := range folds {
			if fj != fi {
				trainIdx = append(trainIdx, f...)
			}
		}
		if len(uniqueSorted(Subset(y, trainIdx))) < 2 {
			continue
		}
		m, err := FitRandomForest(Subset(X, trainIdx), Subset(y, trainIdx), p)
		if err != nil {
			return nil, err
		}
		scores = append(scores, F1Weighted(Subset(y, testIdx), PredictLabels(m, Subset(X, testIdx))))
	}
	return scores, nil
}

// PredictLabels runs the classifier over every row.
func PredictLabels(m *RandomForestClassifier, X [][]float64) []int {
	out := make([]int, len(X))
	for i, row := range X {
		out[i] = int(m.Predict(row))
	}
	return out
}
