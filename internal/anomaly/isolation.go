package anomaly

import (
	"math"
	"math/rand"
)

// isolationForest is a small deterministic isolation forest. Scoring follows
// the usual convention: scoreSamples in [-1, 0), decisionFunction shifted by
// the contamination-percentile offset so negative values mark outliers.
type isolationForest struct {
	numTrees      int
	contamination float64
	rng           *rand.Rand

	trees      []*isoNode
	sampleSize int
	offset     float64
}

type isoNode struct {
	attr  int
	split float64
	left  *isoNode
	right *isoNode
	size  int
}

func newIsolationForest(numTrees int, contamination float64, seed int64) *isolationForest {
	return &isolationForest{
		numTrees:      numTrees,
		contamination: contamination,
		rng:           rand.New(rand.NewSource(seed)),
	}
}

// Fit builds the forest over X and calibrates the decision offset.
func (f *isolationForest) Fit(X [][]float64) {
	f.sampleSize = len(X)
	if f.sampleSize > 256 {
		f.sampleSize = 256
	}
	heightLimit := int(math.Ceil(math.Log2(float64(f.sampleSize))))

	f.trees = make([]*isoNode, f.numTrees)
	for t := range f.trees {
		perm := f.rng.Perm(len(X))
		sample := make([][]float64, f.sampleSize)
		for i := 0; i < f.sampleSize; i++ {
			sample[i] = X[perm[i]]
		}
		f.trees[t] = buildIsoTree(sample, 0, heightLimit, f.rng)
	}

	scores := make([]float64, len(X))
	for i, x := range X {
		scores[i] = f.scoreSample(x)
	}
	f.offset = percentile(scores, 100*f.contamination)
}

// DecisionFunction returns the calibrated score for one vector; negative
// means outlier.
func (f *isolationForest) DecisionFunction(x []float64) float64 {
	return f.scoreSample(x) - f.offset
}

func (f *isolationForest) scoreSample(x []float64) float64 {
	var sum float64
	for _, tree := range f.trees {
		sum += pathLength(tree, x, 0)
	}
	avg := sum / float64(len(f.trees))
	return -math.Pow(2, -avg/averagePathLength(f.sampleSize))
}

func buildIsoTree(X [][]float64, depth, limit int, rng *rand.Rand) *isoNode {
	if depth >= limit || len(X) <= 1 {
		return &isoNode{attr: -1, size: len(X)}
	}

	// Attributes with spread are split candidates.
	dims := len(X[0])
	var candidates []int
	mins := make([]float64, dims)
	maxs := make([]float64, dims)
	for d := 0; d < dims; d++ {
		mins[d], maxs[d] = X[0][d], X[0][d]
		for _, x := range X {
			if x[d] < mins[d] {
				mins[d] = x[d]
			}
			if x[d] > maxs[d] {
				maxs[d] = x[d]
			}
		}
		if maxs[d] > mins[d] {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		return &isoNode{attr: -1, size: len(X)}
	}

	attr := candidates[rng.Intn(len(candidates))]
	split := mins[attr] + rng.Float64()*(maxs[attr]-mins[attr])

	var left, right [][]float64
	for _, x := range X {
		if x[attr] < split {
			left = append(left, x)
		} else {
			right = append(right, x)
		}
	}

	return &isoNode{
		attr:  attr,
		split: split,
		left:  buildIsoTree(left, depth+1, limit, rng),
		right: buildIsoTree(right, depth+1, limit, rng),
	}
}

func pathLength(node *isoNode, x []float64, depth int) float64 {
	if node.attr < 0 {
		return float64(depth) + averagePathLength(node.size)
	}
	if x[node.attr] < node.split {
		return pathLength(node.left, x, depth+1)
	}
	return pathLength(node.right, x, depth+1)
}

// averagePathLength is c(n), the expected path length of an unsuccessful
// search in a binary search tree of n nodes.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	default:
		h := math.Log(float64(n-1)) + 0.5772156649
		return 2*h - 2*float64(n-1)/float64(n)
	}
}
