package iforest

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/bridgeguard/pkg/detectors"
)

func TestNewIsolationForest(t *testing.T) {
	tests := []struct {
		name       string
		opts       []Option
		wantNTrees int
	}{
		{
			name:       "default configuration",
			opts:       nil,
			wantNTrees: 100,
		},
		{
			name:       "custom trees",
			opts:       []Option{WithTrees(50)},
			wantNTrees: 50,
		},
		{
			name:       "multiple options",
			opts:       []Option{WithTrees(200), WithContamination(0.05), WithSeed(123)},
			wantNTrees: 200,
		},
		{
			name:       "from config",
			opts:       FromConfig(detectors.DefaultConfig()),
			wantNTrees: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(tt.opts...)
			assert.Equal(t, tt.wantNTrees, f.nTrees)
		})
	}
}

func TestFit(t *testing.T) {
	tests := []struct {
		name    string
		data    [][]float64
		wantErr error
	}{
		{
			name:    "empty data",
			data:    [][]float64{},
			wantErr: ErrTooFewSamples,
		},
		{
			name:    "single sample",
			data:    [][]float64{{1.0, 2.0, 3.0}},
			wantErr: ErrTooFewSamples,
		},
		{
			name: "two samples",
			data: [][]float64{{1.0, 2.0, 3.0}, {2.0, 3.0, 4.0}},
		},
		{
			name: "normal data",
			data: generateTestData(100, 3),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(WithTrees(10), WithSeed(42))
			err := f.Fit(tt.data)

			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
				assert.False(t, f.trained)
			} else {
				assert.NoError(t, err)
				assert.True(t, f.trained)
				assert.Len(t, f.trees, f.nTrees)
			}
		})
	}
}

func TestFitRejectsRaggedRows(t *testing.T) {
	f := New(WithTrees(5))
	err := f.Fit([][]float64{{1, 2, 3}, {1, 2}})
	assert.Error(t, err)
}

func TestPredict(t *testing.T) {
	trainData := generateTestData(500, 3)
	f := New(WithTrees(50), WithSampleSize(100), WithSeed(42))
	require.NoError(t, f.Fit(trainData))

	t.Run("predict on normal data", func(t *testing.T) {
		testData := generateTestData(100, 3)
		scores, err := f.Predict(testData)

		require.NoError(t, err)
		assert.Len(t, scores, len(testData))

		for _, score := range scores {
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
		}
	})

	t.Run("predict on anomalies", func(t *testing.T) {
		anomalies := [][]float64{
			{1000, 1000, 1000},
			{-500, -500, -500},
		}
		scores, err := f.Predict(anomalies)

		require.NoError(t, err)
		for _, score := range scores {
			assert.Greater(t, score, f.Threshold(), "anomalies should score above the threshold")
		}
	})

	t.Run("wrong feature count", func(t *testing.T) {
		_, err := f.Predict([][]float64{{1, 2}})
		assert.Error(t, err)
	})

	t.Run("predict before fit", func(t *testing.T) {
		untrained := New()
		_, err := untrained.Predict(trainData)
		assert.ErrorIs(t, err, ErrNotTrained)
	})
}

func TestPredictOne(t *testing.T) {
	trainData := generateTestData(200, 3)
	f := New(WithTrees(20), WithSeed(42))
	require.NoError(t, f.Fit(trainData))

	score, err := f.PredictOne([]float64{0.5, 0.5, 0.5})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}

func TestClassifyContamination(t *testing.T) {
	trainData := generateTestData(1000, 3)
	f := New(WithTrees(50), WithContamination(0.05), WithSeed(7))
	require.NoError(t, f.Fit(trainData))

	results, err := f.Classify(trainData)
	require.NoError(t, err)

	var outliers int
	for _, r := range results {
		if r.IsAnomaly {
			outliers++
		}
	}
	// The threshold is the 95th percentile of the training scores.
	assert.InDelta(t, 50, outliers, 5)
}

func TestClassifyConstantData(t *testing.T) {
	data := make([][]float64, 200)
	for i := range data {
		data[i] = []float64{0.1, -0.2, 0.3}
	}

	f := New(WithTrees(20), WithContamination(0.05), WithSeed(42))
	require.NoError(t, f.Fit(data))

	results, err := f.Classify(data)
	require.NoError(t, err)
	for _, r := range results {
		assert.False(t, r.IsAnomaly)
	}
}

func TestClassifyIsolatedPoint(t *testing.T) {
	data := [][]float64{
		{0.1, -0.1, 0.05},
		{-0.1, 0.1, -0.05},
		{1000, 1000, 1000},
	}

	f := New(WithTrees(100), WithContamination(1.0/3), WithSeed(42))
	require.NoError(t, f.Fit(data))

	results, err := f.Classify(data)
	require.NoError(t, err)
	assert.False(t, results[0].IsAnomaly)
	assert.False(t, results[1].IsAnomaly)
	assert.True(t, results[2].IsAnomaly)
}

func TestSaveLoad(t *testing.T) {
	trainData := generateTestData(200, 3)
	original := New(WithTrees(30), WithContamination(0.15), WithSeed(42))
	require.NoError(t, original.Fit(trainData))

	testData := generateTestData(50, 3)
	originalScores, err := original.Predict(testData)
	require.NoError(t, err)

	data, err := original.Save()
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	loaded := New()
	require.NoError(t, loaded.Load(data))

	loadedScores, err := loaded.Predict(testData)
	require.NoError(t, err)

	assert.Equal(t, originalScores, loadedScores)
	assert.Equal(t, original.Threshold(), loaded.Threshold())
}

func TestLoadRejectsCorruptData(t *testing.T) {
	trainData := generateTestData(50, 3)
	f := New(WithTrees(5), WithSeed(1))
	require.NoError(t, f.Fit(trainData))
	data, err := f.Save()
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "garbage", data: []byte("not a forest")},
		{name: "truncated", data: data[:len(data)/2]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loaded := New()
			assert.Error(t, loaded.Load(tt.data))
			assert.False(t, loaded.trained)
		})
	}
}

func TestSaveUntrained(t *testing.T) {
	_, err := New().Save()
	assert.ErrorIs(t, err, ErrNotTrained)
}

func TestThreshold(t *testing.T) {
	f := New()
	f.trained = true

	assert.Equal(t, 0.5, f.Threshold())

	f.SetThreshold(0.7)
	assert.Equal(t, 0.7, f.Threshold())
}

func TestPercentile(t *testing.T) {
	data := []float64{4, 1, 3, 2, 5}
	assert.Equal(t, 1.0, percentile(data, 0))
	assert.Equal(t, 3.0, percentile(data, 50))
	assert.Equal(t, 5.0, percentile(data, 100))
	assert.InDelta(t, 4.8, percentile(data, 95), 1e-12)
	assert.Equal(t, []float64{4, 1, 3, 2, 5}, data, "input must not be reordered")
	assert.Equal(t, 0.0, percentile(nil, 50))
}

func BenchmarkFit(b *testing.B) {
	data := generateTestData(10000, 3)
	f := New(WithTrees(100), WithSampleSize(256))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Fit(data)
	}
}

func BenchmarkPredict(b *testing.B) {
	trainData := generateTestData(5000, 3)
	testData := generateTestData(1000, 3)

	f := New(WithTrees(100), WithSampleSize(256))
	f.Fit(trainData)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Predict(testData)
	}
}

func generateTestData(n, features int) [][]float64 {
	data := make([][]float64, n)
	for i := 0; i < n; i++ {
		data[i] = make([]float64, features)
		for j := 0; j < features; j++ {
			data[i][j] = rand.NormFloat64()
		}
	}
	return data
}
