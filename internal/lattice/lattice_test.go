package lattice

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/foldsat/internal/errors"
	"github.com/hpungsan/foldsat/internal/sequence"
)

func mustSeq(t *testing.T, labels string) *sequence.Sequence {
	t.Helper()
	s, err := sequence.Parse("mem", labels)
	require.NoError(t, err)
	return s
}

func TestParseGeometry(t *testing.T) {
	for _, in := range []string{"2", "2d", " 2D "} {
		g, err := ParseGeometry(in)
		require.NoError(t, err)
		require.Equal(t, Dim2, g)
	}
	g, err := ParseGeometry("3d")
	require.NoError(t, err)
	require.Equal(t, Dim3, g)
	require.Equal(t, "3d", g.String())
	require.Equal(t, 3, g.Dims())

	_, err = ParseGeometry("4")
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	g, err = FromDims(2)
	require.NoError(t, err)
	require.True(t, g.Valid())
	require.False(t, Geometry(5).Valid())
}

func TestGridExtent(t *testing.T) {
	tests := []struct {
		g    Geometry
		n    int
		want int
	}{
		{Dim2, 7, 7},
		{Dim2, 11, 11},
		{Dim2, 12, 4},
		{Dim2, 20, 6},
		{Dim2, 48, 13},
		{Dim3, 3, 2},
		{Dim3, 7, 3},
		{Dim3, 19, 6},
		{Dim3, 20, 4},
		{Dim3, 40, 7},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%d", tt.g, tt.n), func(t *testing.T) {
			require.Equal(t, tt.want, GridExtent(tt.g, tt.n))
		})
	}
}

func TestUndersizedExtent(t *testing.T) {
	// The step function must always leave room for the whole chain.
	for n := 1; n <= 200; n++ {
		require.False(t, UndersizedExtent(Dim2, n), "2d extent too small for n=%d", n)
		require.False(t, UndersizedExtent(Dim3, n), "3d extent too small for n=%d", n)
	}
}

func TestMaxPotentialContacts_Scenario(t *testing.T) {
	s := mustSeq(t, "1001101")

	require.Equal(t, 1, s.AdjacentPairCount())
	require.Equal(t, 7, GridExtent(Dim2, s.Len()))
	require.Equal(t, 2, MaxPotentialContacts(s, Dim2))
	require.Equal(t, 2, UpperBound(s, Dim2))
}

func TestMaxPotentialContacts_NoH(t *testing.T) {
	for _, labels := range []string{"0", "000000", "0000000000000"} {
		s := mustSeq(t, labels)
		require.Equal(t, 0, MaxPotentialContacts(s, Dim2))
		require.Equal(t, 0, MaxPotentialContacts(s, Dim3))
	}
}

func TestMaxPotentialContacts_ChainEndHasThreeFreeNeighbours(t *testing.T) {
	// Position 0 can touch 3, 5 and 7 at once on the square lattice:
	// 0=(0,0) 1=(1,0) 2=(1,1) 3=(0,1) 4=(-1,1) 5=(-1,0) 6=(-1,-1) 7=(0,-1).
	s := mustSeq(t, "10010101")
	require.Equal(t, 3, bruteForceMax(s, Dim2, 0))
	require.GreaterOrEqual(t, MaxPotentialContacts(s, Dim2), 3)
}

func TestMaxPotentialContacts_InteriorCapacity(t *testing.T) {
	// Interior H at 2 sees 5, 7, 9 but can host only two contacts in 2D.
	s := mustSeq(t, "0010010101")
	require.Equal(t, 2, MaxPotentialContacts(s, Dim2))
	// In 3D the same position has four free neighbours.
	require.Equal(t, 3, MaxPotentialContacts(s, Dim3))
}

// TestMaxPotentialContacts_NeverUndercounts compares the bound with the exact
// optimum over every sequence of each length, found by enumerating all
// self-avoiding walks.
func TestMaxPotentialContacts_NeverUndercounts(t *testing.T) {
	cases := []struct {
		g      Geometry
		maxLen int
	}{
		{Dim2, 10},
		{Dim3, 7},
	}

	for _, tc := range cases {
		for n := 1; n <= tc.maxLen; n++ {
			walks := contactSets(tc.g, n, 0)
			for mask := 0; mask < 1<<n; mask++ {
				s := maskSeq(t, mask, n)
				exact := maxOver(walks, mask)
				bound := MaxPotentialContacts(s, tc.g)
				require.GreaterOrEqual(t, bound, exact, "%s %s: bound %d < optimum %d", tc.g, s, bound, exact)
			}
		}
	}
}

// TestGridExtent_KeepsOptimum checks that restricting walks to the declared
// grid does not lower the optimum. 2D extents equal n below length 12, so the
// check is exact there; in 3D a mismatch is reported as a sizing risk.
func TestGridExtent_KeepsOptimum(t *testing.T) {
	for n := 1; n <= 9; n++ {
		free := contactSets(Dim2, n, 0)
		boxed := contactSets(Dim2, n, GridExtent(Dim2, n))
		for mask := 0; mask < 1<<n; mask++ {
			require.Equal(t, maxOver(free, mask), maxOver(boxed, mask), "2d n=%d mask=%b", n, mask)
		}
	}

	for n := 1; n <= 7; n++ {
		free := contactSets(Dim3, n, 0)
		boxed := contactSets(Dim3, n, GridExtent(Dim3, n))
		for mask := 0; mask < 1<<n; mask++ {
			if a, b := maxOver(free, mask), maxOver(boxed, mask); a != b {
				t.Logf("3d extent %d hides optimum for n=%d mask=%b: %d vs %d", GridExtent(Dim3, n), n, mask, a, b)
			}
		}
	}
}

// --- exhaustive embedding helpers ---

type point [3]int

func maskSeq(t *testing.T, mask, n int) *sequence.Sequence {
	t.Helper()
	b := make([]byte, n)
	for i := 0; i < n; i++ {
		if mask&(1<<i) != 0 {
			b[i] = '1'
		} else {
			b[i] = '0'
		}
	}
	return mustSeq(t, string(b))
}

func seqMask(s *sequence.Sequence) int {
	mask := 0
	for i := 0; i < s.Len(); i++ {
		if s.IsH(i) {
			mask |= 1 << i
		}
	}
	return mask
}

func bruteForceMax(s *sequence.Sequence, g Geometry, extent int) int {
	return maxOver(contactSets(g, s.Len(), extent), seqMask(s))
}

func maxOver(walks [][][2]int, mask int) int {
	best := 0
	for _, pairs := range walks {
		c := 0
		for _, p := range pairs {
			if mask&(1<<p[0]) != 0 && mask&(1<<p[1]) != 0 {
				c++
			}
		}
		if c > best {
			best = c
		}
	}
	return best
}

// contactSets enumerates every self-avoiding walk of n sites (first bond fixed
// along +x) and returns the non-consecutive adjacent pairs of each. extent > 0
// keeps only walks whose bounding box fits in extent cells per axis.
func contactSets(g Geometry, n, extent int) [][][2]int {
	dirs := []point{{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}}
	if g == Dim3 {
		dirs = append(dirs, point{0, 0, 1}, point{0, 0, -1})
	}

	walk := []point{{0, 0, 0}}
	occupied := map[point]int{{0, 0, 0}: 0}
	var out [][][2]int

	var extend func()
	extend = func() {
		if len(walk) == n {
			if extent > 0 && !fits(walk, extent) {
				return
			}
			out = append(out, contactPairs(walk, occupied, dirs))
			return
		}
		last := walk[len(walk)-1]
		for k, d := range dirs {
			if len(walk) == 1 && k != 0 {
				continue
			}
			next := point{last[0] + d[0], last[1] + d[1], last[2] + d[2]}
			if _, taken := occupied[next]; taken {
				continue
			}
			occupied[next] = len(walk)
			walk = append(walk, next)
			extend()
			walk = walk[:len(walk)-1]
			delete(occupied, next)
		}
	}
	extend()
	return out
}

func contactPairs(walk []point, occupied map[point]int, dirs []point) [][2]int {
	var pairs [][2]int
	for i, p := range walk {
		for _, d := range dirs {
			j, ok := occupied[point{p[0] + d[0], p[1] + d[1], p[2] + d[2]}]
			if ok && j > i+1 {
				pairs = append(pairs, [2]int{i, j})
			}
		}
	}
	return pairs
}

func fits(walk []point, extent int) bool {
	for axis := 0; axis < 3; axis++ {
		lo, hi := walk[0][axis], walk[0][axis]
		for _, p := range walk {
			lo = min(lo, p[axis])
			hi = max(hi, p[axis])
		}
		if hi-lo+1 > extent {
			return false
		}
	}
	return true
}
