package ale

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(lo, hi int) []float64 {
	out := make([]float64, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, float64(i))
	}
	return out
}

func TestQuantileEdges(t *testing.T) {
	tests := []struct {
		name       string
		values     []float64
		resolution int
		want       []float64
		wantLen    int
	}{
		{
			name:       "low resolution uses uniques",
			values:     []float64{3, 1, 2, 1, 0, 3},
			resolution: 10,
			want:       []float64{0, 1, 2, 3},
		},
		{
			name:       "unique count equal to resolution",
			values:     seq(0, 9),
			resolution: 10,
			want:       seq(0, 9),
		},
		{
			name:       "quantiles on many values",
			values:     seq(0, 99),
			resolution: 10,
			wantLen:    11,
		},
		{
			name:       "repeated quantiles merge",
			values:     append(make([]float64, 50), seq(1, 20)...),
			resolution: 10,
			want:       []float64{0, 6, 13, 20},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edges, err := QuantileEdges(tt.values, tt.resolution)
			require.NoError(t, err)

			if tt.want != nil {
				require.Len(t, edges, len(tt.want))
				assert.InDeltaSlice(t, tt.want, edges, 1e-9)
			}
			if tt.wantLen > 0 {
				assert.Len(t, edges, tt.wantLen)
			}

			assert.LessOrEqual(t, len(edges), tt.resolution+1)
			sorted := sortedCopy(tt.values)
			assert.Equal(t, sorted[0], edges[0])
			assert.Equal(t, sorted[len(sorted)-1], edges[len(edges)-1])
			for i := 1; i < len(edges); i++ {
				assert.Greater(t, edges[i], edges[i-1], "edges must be strictly increasing")
			}
		})
	}
}

func TestQuantileEdges_Errors(t *testing.T) {
	t.Run("constant column", func(t *testing.T) {
		_, err := QuantileEdges([]float64{4, 4, 4}, 10)
		var degenerate *DegenerateFeatureError
		require.True(t, errors.As(err, &degenerate))
		assert.Equal(t, 1, degenerate.Unique)
	})

	t.Run("empty column", func(t *testing.T) {
		_, err := QuantileEdges(nil, 10)
		var degenerate *DegenerateFeatureError
		require.True(t, errors.As(err, &degenerate))
		assert.Equal(t, 0, degenerate.Unique)
	})

	t.Run("zero resolution", func(t *testing.T) {
		_, err := QuantileEdges(seq(0, 5), 0)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestGridEdges(t *testing.T) {
	values := []float64{0, 0.1, 0.2, 9.8, 9.9, 10}

	edges, err := GridEdges(values, []float64{5, -3, 2, 2, 12, 10})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2, 5, 10}, edges)

	_, err = GridEdges([]float64{1, 1}, []float64{0, 2})
	var degenerate *DegenerateFeatureError
	assert.True(t, errors.As(err, &degenerate))
}

func TestGrid_Bin(t *testing.T) {
	g := Grid{Edges: []float64{0, 1, 2, 3}}
	require.Equal(t, 3, g.Bins())
	assert.False(t, g.Categorical())

	tests := []struct {
		x    float64
		want int
	}{
		{-1, 0},
		{0, 0},
		{0.5, 0},
		{1, 0},
		{1.5, 1},
		{2, 1},
		{2.01, 2},
		{3, 2},
		{7, 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, g.Bin(tt.x), "x=%v", tt.x)
	}
}

func TestGrid_Fraction(t *testing.T) {
	g := Grid{Edges: []float64{0, 2, 6}}
	assert.Equal(t, 0.0, g.fraction(0, 0))
	assert.Equal(t, 0.5, g.fraction(1, 0))
	assert.Equal(t, 0.25, g.fraction(3, 1))
	assert.Equal(t, 1.0, g.fraction(9, 1))
}

func TestCategoricalEdges(t *testing.T) {
	values := []float64{3, 1, 2, 1, 3}

	t.Run("sorted order", func(t *testing.T) {
		g, err := CategoricalEdges(0, values, nil)
		require.NoError(t, err)
		assert.True(t, g.Categorical())
		assert.Equal(t, []float64{1, 2, 3}, g.Edges)
		assert.Equal(t, 0, g.Bin(1))
		assert.Equal(t, 0, g.Bin(2))
		assert.Equal(t, 1, g.Bin(3))
	})

	t.Run("custom order", func(t *testing.T) {
		reverse := func(_ int, categories []float64) []float64 {
			out := make([]float64, len(categories))
			for i, c := range categories {
				out[len(out)-1-i] = c
			}
			return out
		}
		g, err := CategoricalEdges(2, values, reverse)
		require.NoError(t, err)
		assert.Equal(t, []float64{3, 2, 1}, g.Edges)
		assert.Equal(t, 0, g.Bin(3))
		assert.Equal(t, 0, g.Bin(2))
		assert.Equal(t, 1, g.Bin(1))
		assert.Equal(t, 0.0, g.fraction(2, 0))
		assert.Equal(t, 1.0, g.fraction(2, 1))
	})

	t.Run("order drops a category", func(t *testing.T) {
		bad := func(_ int, categories []float64) []float64 { return categories[:2] }
		_, err := CategoricalEdges(1, values, bad)
		assert.ErrorIs(t, err, ErrCategoryOrder)
	})

	t.Run("order repeats a category", func(t *testing.T) {
		bad := func(_ int, _ []float64) []float64 { return []float64{1, 1, 3} }
		_, err := CategoricalEdges(1, values, bad)
		assert.ErrorIs(t, err, ErrCategoryOrder)
	})

	t.Run("single category", func(t *testing.T) {
		_, err := CategoricalEdges(4, []float64{7, 7}, nil)
		var degenerate *DegenerateFeatureError
		require.True(t, errors.As(err, &degenerate))
		assert.Equal(t, 4, degenerate.Feature)
	})
}

func TestDeciles(t *testing.T) {
	got := Deciles(seq(1, 100))
	assert.InDeltaSlice(t, []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}, got, 1e-9)

	assert.Equal(t, make([]float64, 10), Deciles(nil))
}
