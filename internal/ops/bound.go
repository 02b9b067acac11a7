package ops

import (
	"github.com/hpungsan/foldsat/internal/lattice"
)

// BoundInput contains parameters for the Bound operation.
type BoundInput struct {
	Sequence SequenceRef
	Dims     []int // default: [2]
}

// BoundItem is the bound for one geometry.
type BoundItem struct {
	Dims             int  `json:"dims"`
	GridExtent       int  `json:"grid_extent"`
	UpperBound       int  `json:"upper_bound"`
	UndersizedExtent bool `json:"undersized_extent,omitempty"`
}

// BoundOutput contains the result of the Bound operation.
type BoundOutput struct {
	Sequence      string      `json:"sequence"`
	Labels        string      `json:"labels"`
	Length        int         `json:"length"`
	HCount        int         `json:"h_count"`
	AdjacentPairs int         `json:"adjacent_pairs"`
	Bounds        []BoundItem `json:"bounds"`
}

// Bound computes the contact upper bound of a sequence without any solver.
func Bound(input BoundInput) (*BoundOutput, error) {
	seq, err := input.Sequence.Resolve()
	if err != nil {
		return nil, err
	}
	geoms, err := geometries(input.Dims)
	if err != nil {
		return nil, err
	}

	out := &BoundOutput{
		Sequence:      seq.Name(),
		Labels:        seq.String(),
		Length:        seq.Len(),
		HCount:        seq.HCount(),
		AdjacentPairs: seq.AdjacentPairCount(),
		Bounds:        make([]BoundItem, 0, len(geoms)),
	}
	for _, g := range geoms {
		out.Bounds = append(out.Bounds, BoundItem{
			Dims:             g.Dims(),
			GridExtent:       lattice.GridExtent(g, seq.Len()),
			UpperBound:       lattice.UpperBound(seq, g),
			UndersizedExtent: lattice.UndersizedExtent(g, seq.Len()),
		})
	}
	return out, nil
}
