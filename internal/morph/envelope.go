package morph

import "math"

// envelope holds the scratch space of the parabola lower envelope
// (Felzenszwalb & Huttenlocher) for lines of up to a fixed length.
type envelope struct {
	// v[i]: positions of parabola vertices in lower envelope
	v []int
	// z[i]: z[i] is the x-coordinate where parabola v[i] starts being minimal
	z []float64
}

func newEnvelope(n int) *envelope {
	return &envelope{
		v: make([]int, n),
		z: make([]float64, n+1),
	}
}

// lower samples the lower envelope of the parabolas
//
//	f_q(x) = w*(x-q)^2 + f[q]   for q in [a,b]
//
// at every target p in [s,e], writing the minimum into val[p] and the
// winning source into arg[p]. Sources with f[q] = +Inf are ignored; targets
// no source reaches get +Inf and -1. When two parabolas meet exactly on a
// target pixel, the source nearer to the target wins, then the lower index.
func (env *envelope) lower(w float64, f []float64, a, b, s, e int, val []float64, arg []int) {
	k := -1
	var x float64
	for q := a; q <= b; q++ {
		fq := f[q]
		if math.IsInf(fq, 1) {
			continue
		}

		// Pop parabolas that the new one dominates from x onwards.
		for k >= 0 {
			r := env.v[k]
			x = ((fq + w*float64(q*q)) - (f[r] + w*float64(r*r))) / (2 * w * float64(q-r))
			if x <= env.z[k] {
				k--
			} else {
				break
			}
		}

		k++
		env.v[k] = q
		if k == 0 {
			env.z[0] = math.Inf(-1)
		} else {
			env.z[k] = x
		}
		env.z[k+1] = math.Inf(1)
	}

	if k < 0 {
		for p := s; p <= e; p++ {
			val[p] = math.Inf(1)
			arg[p] = -1
		}
		return
	}

	j := 0
	for p := s; p <= e; p++ {
		fp := float64(p)
		for env.z[j+1] < fp {
			j++
		}

		// Re-evaluate the neighbouring parabolas so that intersections that
		// land on a pixel, or were rounded past it, resolve deterministically.
		best := env.v[j]
		bestVal := parabola(w, f, best, p)
		for _, c := range [2]int{j - 1, j + 1} {
			if c < 0 || c > k {
				continue
			}
			q := env.v[c]
			qv := parabola(w, f, q, p)
			if qv < bestVal || (qv == bestVal && closer(q, best, p)) {
				best, bestVal = q, qv
			}
		}
		val[p] = bestVal
		arg[p] = best
	}
}

func parabola(w float64, f []float64, q, p int) float64 {
	d := float64(p - q)
	return w*d*d + f[q]
}

// closer reports whether source a beats source b for target p: nearer wins,
// then the lower index.
func closer(a, b, p int) bool {
	da, db := absInt(a-p), absInt(b-p)
	if da != db {
		return da < db
	}
	return a < b
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
