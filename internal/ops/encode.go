package ops

import (
	"context"

	"github.com/hpungsan/foldsat/internal/errors"
)

// EncodeInput contains parameters for the Encode operation.
type EncodeInput struct {
	Sequence      SequenceRef
	Dims          int // default: 2
	Variant       int
	CountEncoding string // default: config count_encoding
	Objective     int
	NoCache       bool
}

// EncodeOutput contains the result of the Encode operation.
type EncodeOutput struct {
	FactPath    string `json:"fact_path"`
	FormulaPath string `json:"formula_path"`
	Cached      bool   `json:"cached"`
	EncodeNS    int64  `json:"encode_ns"`
	Variables   int    `json:"variables"`
	Clauses     int    `json:"clauses"`
}

// Encode compiles the formula for a single objective without solving it.
func Encode(ctx context.Context, env *Env, input EncodeInput) (*EncodeOutput, error) {
	seq, err := input.Sequence.Resolve()
	if err != nil {
		return nil, err
	}
	g, err := geometry(input.Dims)
	if err != nil {
		return nil, err
	}
	if input.Objective < 0 {
		return nil, errors.NewInvalidRequest("objective must be non-negative")
	}

	enc := env.encoder()
	q := enc.Query(seq, input.Objective, g, input.Variant)
	if input.CountEncoding != "" {
		q.CountEncoding = input.CountEncoding
	}
	h, err := enc.Encode(ctx, q, !input.NoCache)
	if err != nil {
		return nil, err
	}
	if !h.Usable() {
		return nil, h.StatsErr
	}

	return &EncodeOutput{
		FactPath:    h.FactPath,
		FormulaPath: h.FormulaPath,
		Cached:      h.Cached,
		EncodeNS:    h.Duration.Nanoseconds(),
		Variables:   h.Stats.Variables,
		Clauses:     h.Stats.Clauses,
	}, nil
}
