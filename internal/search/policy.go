// Package search finds the largest feasible contact objective with as few
// oracle calls as possible. Feasibility is assumed monotone: if k is
// feasible so is every smaller objective.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/hpungsan/foldsat/internal/errors"
)

// NoFeasible is the result when objective 0 itself is infeasible.
const NoFeasible = -1

// Kind names a search policy.
type Kind string

const (
	KindBinary       Kind = "binary"
	KindLinear       Kind = "linear"
	KindDoubleLinear Kind = "double-linear"
	KindDoubleBinary Kind = "double-binary"
)

// AllKinds lists every policy, baseline (linear) first.
var AllKinds = []Kind{KindLinear, KindBinary, KindDoubleLinear, KindDoubleBinary}

var legacyKinds = map[string]Kind{
	"binary_search_policy": KindBinary,
	"linear_search_policy": KindLinear,
	"double_linear_policy": KindDoubleLinear,
	"double_binary_policy": KindDoubleBinary,
}

// ParseKind accepts policy names and the older *_policy spellings.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch k := Kind(name); k {
	case KindBinary, KindLinear, KindDoubleLinear, KindDoubleBinary:
		return k, nil
	case "":
		return KindDoubleBinary, nil
	}
	if k, ok := legacyKinds[name]; ok {
		return k, nil
	}
	return "", errors.NewInvalidRequest(fmt.Sprintf("unknown policy %q (want binary, linear, double-linear or double-binary)", s))
}

// ProbeFunc reports whether objective k is feasible.
type ProbeFunc func(ctx context.Context, k int) (bool, error)

// Policy searches [0, upper] for the largest feasible objective.
// It returns the best objective it confirmed feasible, or NoFeasible when it
// confirmed none, and must never probe above upper.
type Policy interface {
	Search(ctx context.Context, probe ProbeFunc, upper int) (int, error)
}

// PolicyFor returns the policy for kind.
func PolicyFor(kind Kind) (Policy, error) {
	switch kind {
	case KindBinary:
		return binary{}, nil
	case KindLinear:
		return linear{}, nil
	case KindDoubleLinear:
		return doubleLinear{}, nil
	case KindDoubleBinary:
		return doubleBinary{}, nil
	}
	return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown policy %q", kind))
}

// binary halves [0, upper] directly.
type binary struct{}

func (binary) Search(ctx context.Context, probe ProbeFunc, upper int) (int, error) {
	return bisect(ctx, probe, 0, upper, NoFeasible)
}

// linear walks up from 1 and stops at the first infeasible objective. It
// cannot skip a feasible value, so it serves as the baseline.
type linear struct{}

func (linear) Search(ctx context.Context, probe ProbeFunc, upper int) (int, error) {
	return scan(ctx, probe, 1, upper, NoFeasible)
}

// doubleLinear brackets with doubling, then scans up from the bracket.
type doubleLinear struct{}

func (doubleLinear) Search(ctx context.Context, probe ProbeFunc, upper int) (int, error) {
	known, ceiling, err := double(ctx, probe, upper)
	if err != nil || known == NoFeasible {
		return known, err
	}
	return scan(ctx, probe, known+1, ceiling, known)
}

// doubleBinary brackets with doubling, then bisects inside the bracket.
type doubleBinary struct{}

func (doubleBinary) Search(ctx context.Context, probe ProbeFunc, upper int) (int, error) {
	known, ceiling, err := double(ctx, probe, upper)
	if err != nil || known == NoFeasible {
		return known, err
	}
	return bisect(ctx, probe, known+1, ceiling, known)
}

// double probes 1, 2, 4, ... while feasible and not above upper. It returns
// the last feasible power of two (NoFeasible if 1 failed) and the highest
// objective still worth probing.
func double(ctx context.Context, probe ProbeFunc, upper int) (known, ceiling int, err error) {
	known = NoFeasible
	for k := 1; k <= upper; k *= 2 {
		ok, err := probe(ctx, k)
		if err != nil {
			return known, 0, err
		}
		if !ok {
			return known, k - 1, nil
		}
		known = k
	}
	return known, upper, nil
}

func bisect(ctx context.Context, probe ProbeFunc, lo, hi, best int) (int, error) {
	for lo <= hi {
		mid := lo + (hi-lo)/2
		ok, err := probe(ctx, mid)
		if err != nil {
			return best, err
		}
		if ok {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return best, nil
}

func scan(ctx context.Context, probe ProbeFunc, from, to, best int) (int, error) {
	for k := from; k <= to; k++ {
		ok, err := probe(ctx, k)
		if err != nil {
			return best, err
		}
		if !ok {
			break
		}
		best = k
	}
	return best, nil
}
