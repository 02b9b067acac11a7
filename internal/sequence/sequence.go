// Package sequence loads HP sequences: strings of 1 (H) and 0 (P) labels
// read from single-line input files.
package sequence

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/foldsat/internal/errors"
)

// Sequence is an immutable chain of binary labels.
// Identity is the file path it was loaded from; equality is the label string.
type Sequence struct {
	path   string
	labels string
}

// Load reads the first line of path as a sequence.
// An empty file or any character other than '0' or '1' is a format error.
func Load(path string) (*Sequence, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound(path)
		}
		return nil, errors.NewInternal(fmt.Errorf("open sequence: %w", err))
	}
	defer f.Close()

	r := bufio.NewReader(f)
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return nil, errors.NewFormat(path, "empty sequence file")
	}
	return Parse(path, line)
}

// Parse builds a sequence from raw text. path names the sequence and may be
// a pseudo-path for sequences that never lived in a file.
func Parse(path, raw string) (*Sequence, error) {
	labels := strings.TrimRight(raw, "\r\n")
	if labels == "" {
		return nil, errors.NewFormat(path, "empty sequence")
	}
	for i, c := range labels {
		if c != '0' && c != '1' {
			return nil, errors.NewFormat(path, fmt.Sprintf("unexpected character %q at position %d", c, i))
		}
	}
	return &Sequence{path: path, labels: labels}, nil
}

// Path returns the path the sequence was loaded from.
func (s *Sequence) Path() string { return s.path }

// Name returns the base name of the sequence path.
func (s *Sequence) Name() string { return filepath.Base(s.path) }

// String returns the label string.
func (s *Sequence) String() string { return s.labels }

// Len returns the chain length.
func (s *Sequence) Len() int { return len(s.labels) }

// IsH reports whether position i carries label 1.
func (s *Sequence) IsH(i int) bool { return s.labels[i] == '1' }

// Equal compares label strings; paths are ignored.
func (s *Sequence) Equal(o *Sequence) bool {
	return o != nil && s.labels == o.labels
}

// HCount returns the number of '1' labels.
func (s *Sequence) HCount() int {
	return strings.Count(s.labels, "1")
}

// AdjacentPairCount counts positions i with s[i] == s[i+1] == '1'.
// The oracle's goal counts these backbone pairs as contacts, so this is the
// offset added to every requested objective.
func (s *Sequence) AdjacentPairCount() int {
	n := 0
	for i := 0; i+1 < len(s.labels); i++ {
		if s.labels[i] == '1' && s.labels[i+1] == '1' {
			n++
		}
	}
	return n
}
