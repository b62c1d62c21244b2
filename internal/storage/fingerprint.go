package storage

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/tanaysd/alibi/ale"

	"github.com/cespare/xxhash/v2"
	"gonum.org/v1/gonum/mat"
)

// Fingerprint hashes everything that determines an explanation's content: the model
// name, the data, the result-affecting configuration and the requested features.
// Worker count and timeouts do not change results and are left out.
func Fingerprint(model string, X mat.Matrix, cfg ale.Config, features []int) uint64 {
	h := xxhash.New()
	var buf [8]byte

	writeInt := func(v int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(v)))
		_, _ = h.Write(buf[:])
	}
	writeFloat := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = h.Write(buf[:])
	}
	writeString := func(s string) {
		writeInt(len(s))
		_, _ = h.WriteString(s)
	}

	writeString(model)

	r, c := X.Dims()
	writeInt(r)
	writeInt(c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			writeFloat(X.At(i, j))
		}
	}

	writeInt(cfg.Resolution)
	writeString(string(cfg.Centering))
	if cfg.LowDensityWarn {
		writeInt(1)
	} else {
		writeInt(0)
	}

	writeInt(len(cfg.FeatureNames))
	for _, name := range cfg.FeatureNames {
		writeString(name)
	}
	writeInt(len(cfg.TargetNames))
	for _, name := range cfg.TargetNames {
		writeString(name)
	}

	gridded := sortedKeys(cfg.GridPoints)
	writeInt(len(gridded))
	for _, f := range gridded {
		writeInt(f)
		points := cfg.GridPoints[f]
		writeInt(len(points))
		for _, p := range points {
			writeFloat(p)
		}
	}

	// Category orders are functions and cannot be hashed; only their presence is.
	categorical := sortedKeys(cfg.Categorical)
	writeInt(len(categorical))
	for _, f := range categorical {
		writeInt(f)
		if cfg.Categorical[f] != nil {
			writeInt(1)
		} else {
			writeInt(0)
		}
	}

	selected := normalizeFeatures(features, c)
	writeInt(len(selected))
	for _, f := range selected {
		writeInt(f)
	}

	return h.Sum64()
}

// normalizeFeatures mirrors the explainer's selection: all columns when empty,
// otherwise sorted and deduplicated.
func normalizeFeatures(features []int, columns int) []int {
	if len(features) == 0 {
		all := make([]int, columns)
		for i := range all {
			all[i] = i
		}
		return all
	}
	seen := make(map[int]bool, len(features))
	out := make([]int, 0, len(features))
	for _, f := range features {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	sort.Ints(out)
	return out
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
