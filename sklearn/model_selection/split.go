// Package model_selection provides stratified, group-aware splitters.
//
// Rows are addressed by index. Each row carries a binary label and a split
// key; rows sharing a key (a repeatability group) always land on the same
// side of a split. Randomness comes only from the explicit Seed of each
// splitter.
package model_selection

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/radcv/pkg/errors"
)

// Fold is one train/test partition of a parent table's rows.
type Fold struct {
	TrainIndices []int `json:"train"`
	TestIndices  []int `json:"test"`
}

// unit is a set of rows that must move together.
type unit struct {
	rows  []int
	label int
}

// buildUnits groups rows by key. All rows of one unit must share a label.
func buildUnits(op string, labels []int, keys []string) ([]unit, error) {
	if len(keys) != len(labels) {
		return nil, errors.NewDimensionError(op, len(labels), len(keys), 0)
	}
	index := make(map[string]int)
	var units []unit
	for i, k := range keys {
		u, ok := index[k]
		if !ok {
			u = len(units)
			index[k] = u
			units = append(units, unit{label: labels[i]})
		} else if units[u].label != labels[i] {
			return nil, errors.NewDataIntegrityError(op, "", "", fmt.Sprintf("split key %q mixes labels", k))
		}
		units[u].rows = append(units[u].rows, i)
	}
	return units, nil
}

// byClass shuffles the units of each class with rng and orders them by
// decreasing size, shuffled order breaking ties.
func byClass(units []unit, rng *rand.Rand) [2][]unit {
	var out [2][]unit
	for _, u := range units {
		c := 0
		if u.label == 1 {
			c = 1
		}
		out[c] = append(out[c], u)
	}
	for c := range out {
		rng.Shuffle(len(out[c]), func(i, j int) { out[c][i], out[c][j] = out[c][j], out[c][i] })
		sort.SliceStable(out[c], func(i, j int) bool { return len(out[c][i].rows) > len(out[c][j].rows) })
	}
	return out
}

func newRNG(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}

const (
	streamKFold   = 0x6b666f6c64
	streamHoldout = 0x686f6c64
)

// StratifiedGroupKFold splits rows into NSplits folds that keep the class
// ratio of every test side close to the overall ratio while never
// splitting a group.
type StratifiedGroupKFold struct {
	NSplits int
	Seed    uint64
}

// NewStratifiedGroupKFold creates a splitter with k folds.
func NewStratifiedGroupKFold(k int, seed uint64) *StratifiedGroupKFold {
	return &StratifiedGroupKFold{NSplits: k, Seed: seed}
}

// Split returns NSplits folds. Every class needs at least NSplits units so
// that each test side sees both classes.
func (s *StratifiedGroupKFold) Split(labels []int, keys []string) ([]Fold, error) {
	const op = "StratifiedGroupKFold.Split"
	k := s.NSplits
	if k < 2 {
		return nil, errors.NewConfigurationError("StratifiedGroupKFold", "n_splits must be at least 2", k)
	}
	units, err := buildUnits(op, labels, keys)
	if err != nil {
		return nil, err
	}
	classes := byClass(units, newRNG(s.Seed, streamKFold))
	for c, us := range classes {
		if len(us) < k {
			return nil, errors.NewValueError(op,
				fmt.Sprintf("class %d has %d independent units, fewer than n_splits=%d", c, len(us), k))
		}
	}

	perClass := make([][2]int, k)
	total := make([]int, k)
	assign := make([][]int, k)
	for c, us := range classes {
		for _, u := range us {
			best := 0
			for f := 1; f < k; f++ {
				if perClass[f][c] < perClass[best][c] ||
					(perClass[f][c] == perClass[best][c] && total[f] < total[best]) {
					best = f
				}
			}
			perClass[best][c] += len(u.rows)
			total[best] += len(u.rows)
			assign[best] = append(assign[best], u.rows...)
		}
	}

	folds := make([]Fold, k)
	for f := 0; f < k; f++ {
		test := append([]int(nil), assign[f]...)
		sort.Ints(test)
		var train []int
		for g := 0; g < k; g++ {
			if g != f {
				train = append(train, assign[g]...)
			}
		}
		sort.Ints(train)
		folds[f] = Fold{TrainIndices: train, TestIndices: test}
	}
	return folds, nil
}

// HoldoutSplit sets aside TestFraction of each class, group-aware, as an
// untouched hold-out partition.
type HoldoutSplit struct {
	TestFraction float64
	Seed         uint64
}

// NewHoldoutSplit creates a hold-out splitter.
func NewHoldoutSplit(fraction float64, seed uint64) *HoldoutSplit {
	return &HoldoutSplit{TestFraction: fraction, Seed: seed}
}

// Split returns a single fold whose test side is the hold-out set. Both
// sides keep at least one unit of each class.
func (h *HoldoutSplit) Split(labels []int, keys []string) (Fold, error) {
	const op = "HoldoutSplit.Split"
	if h.TestFraction <= 0 || h.TestFraction >= 1 {
		return Fold{}, errors.NewConfigurationError("HoldoutSplit", "test fraction must be in (0,1)", h.TestFraction)
	}
	units, err := buildUnits(op, labels, keys)
	if err != nil {
		return Fold{}, err
	}
	classes := byClass(units, newRNG(h.Seed, streamHoldout))

	var train, test []int
	for c, us := range classes {
		if len(us) < 2 {
			return Fold{}, errors.NewValueError(op,
				fmt.Sprintf("class %d has %d independent units, need at least 2", c, len(us)))
		}
		rows := 0
		for _, u := range us {
			rows += len(u.rows)
		}
		target := int(math.Round(h.TestFraction * float64(rows)))
		if target < 1 {
			target = 1
		}

		// Smallest units first so the test side can approach the target
		// without overshooting on a large group.
		order := append([]unit(nil), us...)
		sort.SliceStable(order, func(i, j int) bool { return len(order[i].rows) < len(order[j].rows) })

		taken := 0
		for i, u := range order {
			remaining := len(order) - i
			if taken >= target || remaining == 1 && taken > 0 {
				train = append(train, u.rows...)
				continue
			}
			if taken > 0 && absInt(taken+len(u.rows)-target) > absInt(taken-target) {
				train = append(train, u.rows...)
				continue
			}
			if remaining == 1 {
				// Keep at least one unit of the class for training.
				train = append(train, u.rows...)
				continue
			}
			test = append(test, u.rows...)
			taken += len(u.rows)
		}
	}
	sort.Ints(train)
	sort.Ints(test)
	return Fold{TrainIndices: train, TestIndices: test}, nil
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
