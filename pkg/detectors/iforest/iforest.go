// Package iforest implements the Isolation Forest algorithm for anomaly detection.
package iforest

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"slices"
	"sync"

	"github.com/hed1ad/bridgeguard/pkg/detectors"
)

// formatVersion is bumped whenever the serialized layout changes.
const formatVersion = 1

// ErrNotTrained is returned when scoring with an unfitted forest.
var ErrNotTrained = errors.New("model not trained")

// ErrTooFewSamples is returned by Fit when fewer than two samples are given.
var ErrTooFewSamples = errors.New("at least 2 training samples required")

var _ detectors.Detector = (*IsolationForest)(nil)

// IsolationForest implements unsupervised anomaly detection using isolation trees.
type IsolationForest struct {
	mu sync.RWMutex

	// Configuration
	nTrees        int
	sampleSize    int
	contamination float64
	threshold     float64
	maxDepth      int
	rng           *rand.Rand

	// Trained model
	trees     []*node
	nFeatures int
	trained   bool

	// Statistics from training
	avgPathLength float64
}

// node is a node in an isolation tree. Fields are exported for gob.
type node struct {
	// Split parameters (for internal nodes)
	Feature int
	Split   float64

	// Children
	Left  *node
	Right *node

	// Leaf information: number of samples that reached this leaf
	Size int
}

func (n *node) isLeaf() bool {
	return n.Left == nil && n.Right == nil
}

// snapshot is the serialized form of a trained forest.
type snapshot struct {
	Version       int
	Trees         int
	SampleSize    int
	Features      int
	Contamination float64
	Threshold     float64
	AvgPathLength float64
	Roots         []*node
}

// Option configures an IsolationForest.
type Option func(*IsolationForest)

// WithTrees sets the number of isolation trees.
func WithTrees(n int) Option {
	return func(f *IsolationForest) {
		f.nTrees = n
	}
}

// WithSampleSize sets the subsample size for each tree.
func WithSampleSize(n int) Option {
	return func(f *IsolationForest) {
		f.sampleSize = n
	}
}

// WithContamination sets the expected proportion of anomalies.
func WithContamination(c float64) Option {
	return func(f *IsolationForest) {
		f.contamination = c
	}
}

// WithSeed sets the random seed for reproducibility.
func WithSeed(seed int64) Option {
	return func(f *IsolationForest) {
		f.rng = rand.New(rand.NewSource(seed))
	}
}

// FromConfig translates a detector configuration into options.
func FromConfig(cfg detectors.Config) []Option {
	return []Option{
		WithTrees(cfg.Trees),
		WithSampleSize(cfg.SampleSize),
		WithContamination(cfg.Contamination),
		WithSeed(cfg.RandomSeed),
	}
}

// New creates a new IsolationForest with the given options.
func New(opts ...Option) *IsolationForest {
	f := &IsolationForest{
		nTrees:        100,
		sampleSize:    256,
		contamination: 0.05,
		threshold:     0.5,
		rng:           rand.New(rand.NewSource(42)),
	}

	for _, opt := range opts {
		opt(f)
	}

	f.maxDepth = heightLimit(f.sampleSize)

	return f
}

// Fit trains the Isolation Forest on the provided data and calibrates the
// threshold so that roughly a contamination fraction of it scores above it.
func (f *IsolationForest) Fit(data [][]float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(data) < 2 {
		return ErrTooFewSamples
	}

	nSamples := len(data)
	nFeatures := len(data[0])
	if nFeatures == 0 {
		return errors.New("samples have no features")
	}
	for i, row := range data {
		if len(row) != nFeatures {
			return fmt.Errorf("sample %d has %d features, want %d", i, len(row), nFeatures)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("sample %d contains a non-finite value", i)
			}
		}
	}

	// Adjust sample size if needed
	sampleSize := min(f.sampleSize, nSamples)
	f.maxDepth = heightLimit(sampleSize)

	// Build trees
	f.trees = make([]*node, f.nTrees)
	for i := 0; i < f.nTrees; i++ {
		// Sample without replacement
		indices := f.rng.Perm(nSamples)[:sampleSize]
		sample := make([][]float64, sampleSize)
		for j, idx := range indices {
			sample[j] = data[idx]
		}

		f.trees[i] = f.buildNode(sample, nFeatures, 0)
	}

	f.avgPathLength = averagePathLength(float64(sampleSize))
	f.nFeatures = nFeatures
	f.trained = true

	if f.contamination > 0 {
		scores, err := f.predict(data)
		if err != nil {
			return err
		}
		f.threshold = percentile(scores, 100*(1-f.contamination))
	}

	return nil
}

func (f *IsolationForest) buildNode(data [][]float64, nFeatures, depth int) *node {
	n := len(data)

	// Terminal conditions
	if depth >= f.maxDepth || n <= 1 {
		return &node{Size: n}
	}

	feature := f.rng.Intn(nFeatures)

	minVal, maxVal := data[0][feature], data[0][feature]
	for _, row := range data[1:] {
		minVal = math.Min(minVal, row[feature])
		maxVal = math.Max(maxVal, row[feature])
	}

	// A constant feature cannot isolate anything further
	if minVal == maxVal {
		return &node{Size: n}
	}

	splitValue := minVal + f.rng.Float64()*(maxVal-minVal)

	var leftData, rightData [][]float64
	for _, row := range data {
		if row[feature] < splitValue {
			leftData = append(leftData, row)
		} else {
			rightData = append(rightData, row)
		}
	}

	// Split landed exactly on the minimum; nothing was separated
	if len(leftData) == 0 {
		return &node{Size: n}
	}

	return &node{
		Feature: feature,
		Split:   splitValue,
		Left:    f.buildNode(leftData, nFeatures, depth+1),
		Right:   f.buildNode(rightData, nFeatures, depth+1),
	}
}

// Predict returns anomaly scores for the given samples.
func (f *IsolationForest) Predict(data [][]float64) ([]float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return nil, ErrNotTrained
	}

	return f.predict(data)
}

func (f *IsolationForest) predict(data [][]float64) ([]float64, error) {
	scores := make([]float64, len(data))

	for i, sample := range data {
		score, err := f.predictOne(sample)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		scores[i] = score
	}

	return scores, nil
}

// PredictOne returns the anomaly score for a single sample.
func (f *IsolationForest) PredictOne(sample []float64) (float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return 0, ErrNotTrained
	}

	return f.predictOne(sample)
}

func (f *IsolationForest) predictOne(sample []float64) (float64, error) {
	if len(sample) != f.nFeatures {
		return 0, fmt.Errorf("got %d features, model expects %d", len(sample), f.nFeatures)
	}

	var totalPath float64
	for _, root := range f.trees {
		totalPath += pathLength(sample, root, 0)
	}
	avgPath := totalPath / float64(len(f.trees))

	// Anomaly score: 2^(-avgPath / c(n)); higher is more anomalous
	return math.Pow(2, -avgPath/f.avgPathLength), nil
}

// Classify scores samples and flags those strictly above the threshold.
// Ties with the threshold count as normal.
func (f *IsolationForest) Classify(data [][]float64) ([]detectors.Score, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return nil, ErrNotTrained
	}

	scores, err := f.predict(data)
	if err != nil {
		return nil, err
	}

	results := make([]detectors.Score, len(scores))
	for i, s := range scores {
		results[i] = detectors.Score{Value: s, IsAnomaly: s > f.threshold}
	}
	return results, nil
}

// pathLength calculates the path length for a sample in a tree.
func pathLength(sample []float64, n *node, currentDepth int) float64 {
	if n.isLeaf() {
		// Leaf node: add expected path length for remaining isolation
		return float64(currentDepth) + averagePathLength(float64(n.Size))
	}

	if sample[n.Feature] < n.Split {
		return pathLength(sample, n.Left, currentDepth+1)
	}
	return pathLength(sample, n.Right, currentDepth+1)
}

// averagePathLength returns the average path length of unsuccessful search in BST.
func averagePathLength(n float64) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	// c(n) = 2*H(n-1) - 2*(n-1)/n, with H(i) ~ ln(i) + Euler-Mascheroni
	return 2*(math.Log(n-1)+0.5772156649) - 2*(n-1)/n
}

func heightLimit(sampleSize int) int {
	return int(math.Ceil(math.Log2(float64(max(sampleSize, 2)))))
}

// Save serializes the trained model.
func (f *IsolationForest) Save() ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return nil, ErrNotTrained
	}

	snap := snapshot{
		Version:       formatVersion,
		Trees:         f.nTrees,
		SampleSize:    f.sampleSize,
		Features:      f.nFeatures,
		Contamination: f.contamination,
		Threshold:     f.threshold,
		AvgPathLength: f.avgPathLength,
		Roots:         f.trees,
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, fmt.Errorf("encoding forest: %w", err)
	}

	return buf.Bytes(), nil
}

// Load deserializes a trained model. The receiver is left untouched on error.
func (f *IsolationForest) Load(data []byte) error {
	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return fmt.Errorf("decoding forest: %w", err)
	}

	switch {
	case snap.Version != formatVersion:
		return fmt.Errorf("unsupported forest format version %d", snap.Version)
	case len(snap.Roots) == 0 || len(snap.Roots) != snap.Trees:
		return fmt.Errorf("forest holds %d trees, header says %d", len(snap.Roots), snap.Trees)
	case snap.Features < 1:
		return errors.New("forest has no features")
	case snap.AvgPathLength <= 0:
		return errors.New("forest has invalid path normalization")
	}
	for i, root := range snap.Roots {
		if err := validateTree(root, snap.Features); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.nTrees = snap.Trees
	f.sampleSize = snap.SampleSize
	f.nFeatures = snap.Features
	f.contamination = snap.Contamination
	f.threshold = snap.Threshold
	f.avgPathLength = snap.AvgPathLength
	f.trees = snap.Roots
	f.maxDepth = heightLimit(f.sampleSize)
	f.trained = true

	return nil
}

func validateTree(n *node, nFeatures int) error {
	if n == nil {
		return errors.New("missing node")
	}
	if n.isLeaf() {
		return nil
	}
	if n.Left == nil || n.Right == nil {
		return errors.New("internal node with a single child")
	}
	if n.Feature < 0 || n.Feature >= nFeatures {
		return fmt.Errorf("split feature %d out of range", n.Feature)
	}
	if err := validateTree(n.Left, nFeatures); err != nil {
		return err
	}
	return validateTree(n.Right, nFeatures)
}

// Threshold returns the current anomaly threshold.
func (f *IsolationForest) Threshold() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.threshold
}

// SetThreshold updates the anomaly threshold.
func (f *IsolationForest) SetThreshold(t float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threshold = t
}

// percentile returns the p-th percentile of data using linear interpolation
// between closest ranks.
func percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}

	sorted := slices.Clone(data)
	slices.Sort(sorted)

	pos := float64(len(sorted)-1) * p / 100
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)

	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
