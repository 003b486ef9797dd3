// Package split partitions a cleaned batch into train, val and test sets.
//
// The partition is a seeded PCG permutation of row positions: the first
// round(train·n) positions go to train, the first round(val·m) of the
// remaining m go to val, the rest to test. Each partition is returned in
// input order. The same seed and the same input order and size always give
// the same partition.
package split

import (
	"math"
	"math/rand/v2"
	"slices"

	"taxiprep/internal/config"
	"taxiprep/internal/schema"
)

// Partition names.
const (
	Train = "train"
	Val   = "val"
	Test  = "test"
	Full  = "full"
)

// Partition is a named subset of the batch.
type Partition struct {
	Name    string
	Records []schema.Record
}

// Split partitions recs according to cfg. When splitting is disabled the
// result is a single Full partition holding every record.
func Split(recs []schema.Record, cfg config.Split) []Partition {
	if !cfg.Enabled {
		return []Partition{{Name: Full, Records: recs}}
	}
	tr, va, te := Indices(len(recs), cfg.Seed, cfg.TrainFraction, cfg.ValFraction)
	return []Partition{
		{Name: Train, Records: pick(recs, tr)},
		{Name: Val, Records: pick(recs, va)},
		{Name: Test, Records: pick(recs, te)},
	}
}

// Indices returns the row positions of each partition, ascending.
func Indices(n int, seed uint64, trainFrac, valFrac float64) (train, val, test []int) {
	perm := rand.New(rand.NewPCG(seed, seed)).Perm(n)

	nTrain := clamp(int(math.Round(trainFrac*float64(n))), n)
	m := n - nTrain
	nVal := clamp(int(math.Round(valFrac*float64(m))), m)

	train = slices.Sorted(slices.Values(perm[:nTrain]))
	val = slices.Sorted(slices.Values(perm[nTrain : nTrain+nVal]))
	test = slices.Sorted(slices.Values(perm[nTrain+nVal:]))
	return train, val, test
}

func clamp(v, hi int) int {
	return max(0, min(v, hi))
}

func pick(recs []schema.Record, ix []int) []schema.Record {
	out := make([]schema.Record, len(ix))
	for i, j := range ix {
		out[i] = recs[j]
	}
	return out
}
