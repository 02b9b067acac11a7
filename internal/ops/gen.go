package ops

import (
	"math/rand"
	"time"

	"github.com/hpungsan/foldsat/internal/errors"
	"github.com/hpungsan/foldsat/internal/sequence"
)

// GenInput contains parameters for the Gen operation.
type GenInput struct {
	Dir         string  // required
	Length      int     // required
	Count       int     // default: 1
	Probability float64 // probability of H; default: 0.5
	Seed        int64   // 0 = time-based
}

// GenOutput contains the result of the Gen operation.
type GenOutput struct {
	Paths []string `json:"paths"`
	Seed  int64    `json:"seed"`
}

// Gen writes distinct random sequences as length-<n>-<i> files.
func Gen(input GenInput) (*GenOutput, error) {
	if input.Dir == "" {
		return nil, errors.NewInvalidRequest("output directory is required")
	}
	if input.Count == 0 {
		input.Count = 1
	}
	if input.Probability == 0 {
		input.Probability = 0.5
	}
	seed := input.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	paths, err := sequence.WriteRandomSet(rand.New(rand.NewSource(seed)), input.Dir, input.Length, input.Count, input.Probability)
	if err != nil {
		return nil, err
	}
	return &GenOutput{Paths: paths, Seed: seed}, nil
}
