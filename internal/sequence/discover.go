package sequence

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/hpungsan/foldsat/internal/errors"
)

// Kind selects which input files Discover returns.
type Kind string

const (
	KindAll    Kind = "all"
	KindReal   Kind = "real"   // six-character alphanumeric protein ids
	KindRandom Kind = "random" // generated length-<n>-<i> files
)

var realName = regexp.MustCompile(`^[a-zA-Z0-9]{6}$`)

// Filter restricts discovered sequences. MaxLen of 0 means unbounded.
type Filter struct {
	Kind   Kind
	MinLen int
	MaxLen int // exclusive
	Ignore []string
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "", KindAll:
		return KindAll, nil
	case KindReal, KindRandom:
		return k, nil
	}
	return "", errors.NewInvalidRequest(fmt.Sprintf("sequence kind must be one of: all, real, random (got %q)", s))
}

// Matches reports whether a file name belongs to kind k.
func (k Kind) Matches(name string) bool {
	switch k {
	case KindReal:
		return realName.MatchString(name)
	case KindRandom:
		return strings.HasPrefix(name, "length-") || strings.HasPrefix(name, "length_")
	default:
		return true
	}
}

// Discover loads every matching sequence in dir, shortest first, ties by name.
// Files that fail to parse are skipped and returned in the second result.
func Discover(dir string, f Filter) ([]*Sequence, []error, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.NewNotFound(dir)
		}
		return nil, nil, errors.NewInternal(err)
	}

	ignore := make(map[string]bool, len(f.Ignore))
	for _, name := range f.Ignore {
		ignore[name] = true
	}

	var (
		seqs    []*Sequence
		skipped []error
	)
	for _, e := range entries {
		if e.IsDir() || ignore[e.Name()] || !f.Kind.Matches(e.Name()) {
			continue
		}
		s, err := Load(filepath.Join(dir, e.Name()))
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		if s.Len() < f.MinLen || (f.MaxLen > 0 && s.Len() >= f.MaxLen) {
			continue
		}
		seqs = append(seqs, s)
	}

	sort.Slice(seqs, func(i, j int) bool {
		if seqs[i].Len() != seqs[j].Len() {
			return seqs[i].Len() < seqs[j].Len()
		}
		return seqs[i].Name() < seqs[j].Name()
	})
	return seqs, skipped, nil
}
