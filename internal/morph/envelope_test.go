package morph

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bruteLower evaluates the envelope by trying every source.
func bruteLower(w float64, f []float64, a, b, p int) float64 {
	best := math.Inf(1)
	for q := a; q <= b; q++ {
		if math.IsInf(f[q], 1) {
			continue
		}
		d := float64(p - q)
		best = math.Min(best, w*d*d+f[q])
	}
	return best
}

func TestEnvelope_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	const n = 40

	env := newEnvelope(n)
	val := make([]float64, n)
	arg := make([]int, n)
	f := make([]float64, n)

	for trial := 0; trial < 200; trial++ {
		for i := range f {
			switch rng.IntN(4) {
			case 0:
				f[i] = math.Inf(1)
			case 1:
				f[i] = -float64(rng.IntN(9))
			default:
				f[i] = rng.Float64() * 50
			}
		}
		w := 0.25 + rng.Float64()*2
		a := rng.IntN(n / 2)
		b := a + rng.IntN(n-a)
		s := a + rng.IntN(b-a+1)
		e := s + rng.IntN(b-s+1)

		env.lower(w, f, a, b, s, e, val, arg)

		for p := s; p <= e; p++ {
			want := bruteLower(w, f, a, b, p)
			if math.IsInf(want, 1) {
				require.True(t, math.IsInf(val[p], 1), "trial %d p=%d", trial, p)
				require.Equal(t, -1, arg[p])
				continue
			}
			require.InDelta(t, want, val[p], 1e-9, "trial %d p=%d", trial, p)
			require.GreaterOrEqual(t, arg[p], a)
			require.LessOrEqual(t, arg[p], b)
			d := float64(p - arg[p])
			require.InDelta(t, val[p], w*d*d+f[arg[p]], 1e-9)
		}
	}
}

func TestEnvelope_NoSources(t *testing.T) {
	inf := math.Inf(1)
	f := []float64{inf, inf, inf}
	val := make([]float64, 3)
	arg := make([]int, 3)

	newEnvelope(3).lower(1, f, 0, 2, 0, 2, val, arg)

	for p := range val {
		assert.True(t, math.IsInf(val[p], 1))
		assert.Equal(t, -1, arg[p])
	}
}

func TestEnvelope_TieBreaksToNearerSource(t *testing.T) {
	inf := math.Inf(1)

	// Equidistant sources: the lower index wins.
	f := []float64{-1, inf, -1}
	val := make([]float64, 3)
	arg := make([]int, 3)
	newEnvelope(3).lower(1, f, 0, 2, 0, 2, val, arg)
	assert.Equal(t, []int{0, 0, 2}, arg)
	assert.Equal(t, 0.0, val[1])

	// Equal value at p=3, but source 4 is nearer than source 0.
	f = []float64{-7, inf, inf, inf, 1}
	val = make([]float64, 5)
	arg = make([]int, 5)
	newEnvelope(5).lower(1, f, 0, 4, 0, 4, val, arg)
	assert.Equal(t, 2.0, val[3])
	assert.Equal(t, 4, arg[3])
}
