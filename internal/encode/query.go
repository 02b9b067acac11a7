package encode

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hpungsan/foldsat/internal/errors"
	"github.com/hpungsan/foldsat/internal/lattice"
	"github.com/hpungsan/foldsat/internal/sequence"
)

// Query asks whether Sequence admits an embedding in Geometry with at least
// Objective contacts, under constraint rule Variant and the counting rule
// file CountEncoding.
type Query struct {
	Sequence      *sequence.Sequence
	Objective     int
	Geometry      lattice.Geometry
	Variant       int
	CountEncoding string
}

// Validate rejects queries the compiler cannot be asked about.
func (q Query) Validate() error {
	switch {
	case q.Sequence == nil:
		return errors.NewInvalidRequest("query has no sequence")
	case q.Objective < 0:
		return errors.NewInvalidRequest(fmt.Sprintf("objective must be >= 0 (got %d)", q.Objective))
	case q.Variant < 0:
		return errors.NewInvalidRequest(fmt.Sprintf("variant must be >= 0 (got %d)", q.Variant))
	case !q.Geometry.Valid():
		return errors.NewInvalidRequest(fmt.Sprintf("unsupported geometry %d", int(q.Geometry)))
	}
	return CheckCountEncoding(q.CountEncoding)
}

// CheckCountEncoding accepts "" (the configured default) or the bare name
// of a rule file in the rules directory.
func CheckCountEncoding(name string) error {
	if name == "" {
		return nil
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return errors.NewInvalidRequest(fmt.Sprintf("count encoding %q must be a rule file name, not a path", name))
	}
	return nil
}

// Key identifies a formula in the cache. Every input that changes the
// generated formula is a field, so two queries share a formula exactly when
// their keys are equal.
type Key struct {
	Name          string `json:"name"`
	Labels        string `json:"labels"`
	Dims          int    `json:"dims"`
	Variant       int    `json:"variant"`
	Objective     int    `json:"objective"`
	CountEncoding string `json:"count_encoding"`
}

// Key returns the cache key of q.
func (q Query) Key() Key {
	return Key{
		Name:          q.Sequence.Name(),
		Labels:        q.Sequence.String(),
		Dims:          q.Geometry.Dims(),
		Variant:       q.Variant,
		Objective:     q.Objective,
		CountEncoding: filepath.Base(q.CountEncoding),
	}
}

// Digest is a short content hash of the serialised key.
func (k Key) Digest() string {
	// Struct fields marshal in declaration order, so the encoding is stable.
	data, _ := json.Marshal(k)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:12]
}

// Stem is the file name shared by the fact and formula files of k.
func (k Key) Stem() string {
	return fmt.Sprintf("%s_%dd_v%d_%dc_%s", k.Name, k.Dims, k.Variant, k.Objective, k.Digest())
}
