package sequence

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/foldsat/internal/errors"
)

// maxGenerateAttempts caps the search for unique strings at short lengths,
// where fewer than count distinct sequences may exist.
const maxGenerateAttempts = 10000

// Generate returns a random label string where each position is '1' with
// probability prob.
func Generate(rng *rand.Rand, length int, prob float64) string {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		if rng.Float64() < prob {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// WriteRandomSet writes count distinct random sequences of the given length
// into dir as length-<length>-<i> (1-based) and returns the written paths.
func WriteRandomSet(rng *rand.Rand, dir string, length, count int, prob float64) ([]string, error) {
	if length <= 0 || count <= 0 {
		return nil, errors.NewInvalidRequest("length and count must be positive")
	}
	if prob < 0 || prob > 1 {
		return nil, errors.NewInvalidRequest("probability must be within [0, 1]")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("create input directory: %w", err))
	}

	seen := make(map[string]bool, count)
	paths := make([]string, 0, count)
	for attempts := 0; len(paths) < count && attempts < maxGenerateAttempts; attempts++ {
		s := Generate(rng, length, prob)
		if seen[s] {
			continue
		}
		seen[s] = true

		path := filepath.Join(dir, fmt.Sprintf("length-%d-%d", length, len(paths)+1))
		if err := os.WriteFile(path, []byte(s+"\n"), 0644); err != nil {
			return paths, errors.NewInternal(fmt.Errorf("write sequence: %w", err))
		}
		paths = append(paths, path)
	}
	return paths, nil
}
