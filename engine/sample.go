package engine

import (
	"hash/fnv"
	"math"
	"strconv"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/Relatronica/sdl/domain/ast"
)

// streamSeed derives an independent substream seed from (seed, run,
// name) with FNV-1a. Every (run, declaration) pair draws from its own
// stream, so worker scheduling can never perturb results.
func streamSeed(seed int64, run int, name string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(strconv.FormatInt(seed, 10)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(run)))
	h.Write([]byte{0})
	h.Write([]byte(name))
	return h.Sum64()
}

// stream returns the deterministic RNG for one (run, declaration) pair.
func stream(seed int64, run int, name string) *rand.Rand {
	return rand.New(rand.NewSource(streamSeed(seed, run, name)))
}

// sampleValue draws a value for an assumption or parameter whose
// declared distribution defines the value itself. center is the
// declared point value, used by the relative ±X% shorthand.
func sampleValue(d *ast.DistExpr, center float64, rng *rand.Rand) float64 {
	if d == nil {
		return center
	}
	if d.Relative {
		if d.Spread == 0 {
			return center
		}
		return distuv.Normal{Mu: center, Sigma: math.Abs(center) * d.Spread, Src: rng}.Rand()
	}
	return sampleAbsolute(d, rng)
}

// samplePerturbed draws a perturbed copy of a variable's interpolated
// value at one timestep. Relative declarations scale around the value;
// absolute declarations are additive noise.
func samplePerturbed(d *ast.DistExpr, value float64, rng *rand.Rand) float64 {
	if d == nil {
		return value
	}
	if d.Relative {
		if d.Spread == 0 {
			return value
		}
		return distuv.Normal{Mu: value, Sigma: math.Abs(value) * d.Spread, Src: rng}.Rand()
	}
	return value + sampleAbsolute(d, rng)
}

// sampleAbsolute draws from an explicitly parameterized distribution.
// Parameters were validated upstream; fall back to a degenerate draw on
// anything out of shape rather than panic inside a worker.
func sampleAbsolute(d *ast.DistExpr, rng *rand.Rand) float64 {
	switch d.Kind {
	case ast.DistNormal:
		if len(d.Args) == 2 && d.Args[1] > 0 {
			return distuv.Normal{Mu: d.Args[0], Sigma: d.Args[1], Src: rng}.Rand()
		}
	case ast.DistUniform:
		if len(d.Args) == 2 && d.Args[0] < d.Args[1] {
			return distuv.Uniform{Min: d.Args[0], Max: d.Args[1], Src: rng}.Rand()
		}
	case ast.DistBeta:
		if len(d.Args) == 2 && d.Args[0] > 0 && d.Args[1] > 0 {
			return distuv.Beta{Alpha: d.Args[0], Beta: d.Args[1], Src: rng}.Rand()
		}
	case ast.DistTriangular:
		if len(d.Args) == 3 && d.Args[0] < d.Args[2] {
			return distuv.NewTriangle(d.Args[0], d.Args[2], d.Args[1], rng).Rand()
		}
	case ast.DistLogNormal:
		if len(d.Args) == 2 && d.Args[1] > 0 {
			return distuv.LogNormal{Mu: d.Args[0], Sigma: d.Args[1], Src: rng}.Rand()
		}
	}
	if len(d.Args) > 0 {
		return d.Args[0]
	}
	return 0
}

// bernoulli draws a single gate decision at probability p.
func bernoulli(p float64, rng *rand.Rand) bool {
	if p >= 1 {
		return true
	}
	if p <= 0 {
		return false
	}
	return rng.Float64() < p
}
