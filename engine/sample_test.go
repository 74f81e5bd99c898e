package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Relatronica/sdl/domain/ast"
)

func TestStreamSeedsAreIndependent(t *testing.T) {
	// Distinct (seed, run, name) tuples map to distinct streams.
	assert.NotEqual(t, streamSeed(1, 0, "a"), streamSeed(1, 0, "b"))
	assert.NotEqual(t, streamSeed(1, 0, "a"), streamSeed(1, 1, "a"))
	assert.NotEqual(t, streamSeed(1, 0, "a"), streamSeed(2, 0, "a"))
	// The same tuple always maps to the same stream.
	assert.Equal(t, streamSeed(42, 7, "revenue"), streamSeed(42, 7, "revenue"))
}

func TestStreamIsDeterministic(t *testing.T) {
	a := stream(42, 3, "demand")
	b := stream(42, 3, "demand")
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Float64(), b.Float64())
	}
}

func TestSampleValueNilAndZeroSpread(t *testing.T) {
	rng := stream(1, 0, "x")
	assert.Equal(t, 5.0, sampleValue(nil, 5, rng))
	assert.Equal(t, 5.0, sampleValue(&ast.DistExpr{Kind: ast.DistNormal, Relative: true}, 5, rng))
}

func TestSampleValueRelativeSpread(t *testing.T) {
	d := &ast.DistExpr{Kind: ast.DistNormal, Relative: true, Spread: 0.1}
	rng := stream(1, 0, "x")

	n := 4000
	var sum, sumSq float64
	for i := 0; i < n; i++ {
		v := sampleValue(d, 100, rng)
		sum += v
		sumSq += v * v
	}
	mean := sum / float64(n)
	std := math.Sqrt(sumSq/float64(n) - mean*mean)
	assert.InDelta(t, 100, mean, 1)
	assert.InDelta(t, 10, std, 1)
}

func TestSamplePerturbedAdditiveNoise(t *testing.T) {
	d := &ast.DistExpr{Kind: ast.DistNormal, Args: []float64{0, 2}}
	rng := stream(1, 0, "x")

	n := 4000
	var sum float64
	for i := 0; i < n; i++ {
		sum += samplePerturbed(d, 50, rng)
	}
	assert.InDelta(t, 50, sum/float64(n), 0.5)
}

func TestSampleAbsoluteRespectsSupport(t *testing.T) {
	rng := stream(1, 0, "x")

	uni := &ast.DistExpr{Kind: ast.DistUniform, Args: []float64{2, 5}}
	tri := &ast.DistExpr{Kind: ast.DistTriangular, Args: []float64{1, 2, 4}}
	bet := &ast.DistExpr{Kind: ast.DistBeta, Args: []float64{2, 5}}
	logn := &ast.DistExpr{Kind: ast.DistLogNormal, Args: []float64{0, 0.5}}

	for i := 0; i < 500; i++ {
		v := sampleAbsolute(uni, rng)
		assert.GreaterOrEqual(t, v, 2.0)
		assert.Less(t, v, 5.0)

		v = sampleAbsolute(tri, rng)
		assert.GreaterOrEqual(t, v, 1.0)
		assert.LessOrEqual(t, v, 4.0)

		v = sampleAbsolute(bet, rng)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)

		assert.Greater(t, sampleAbsolute(logn, rng), 0.0)
	}
}

func TestSampleAbsoluteDegenerateArgsFallBack(t *testing.T) {
	rng := stream(1, 0, "x")
	// Out-of-shape parameters yield the first argument, never a panic.
	v := sampleAbsolute(&ast.DistExpr{Kind: ast.DistNormal, Args: []float64{3, -1}}, rng)
	assert.Equal(t, 3.0, v)
	assert.Equal(t, 0.0, sampleAbsolute(&ast.DistExpr{Kind: ast.DistNormal}, rng))
}

func TestBernoulliEdges(t *testing.T) {
	rng := stream(1, 0, "gate")
	assert.True(t, bernoulli(1, rng))
	assert.True(t, bernoulli(1.5, rng))
	assert.False(t, bernoulli(0, rng))
	assert.False(t, bernoulli(-1, rng))

	hits := 0
	n := 2000
	for i := 0; i < n; i++ {
		if bernoulli(0.3, rng) {
			hits++
		}
	}
	assert.InDelta(t, 0.3, float64(hits)/float64(n), 0.05)
}
