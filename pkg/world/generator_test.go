package world

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeneratorIsDeterministic(t *testing.T) {
	a := NewGenerator(42)
	b := NewGenerator(42)

	for x := -5000.0; x <= 5000.0; x += 731.0 {
		for z := -5000.0; z <= 5000.0; z += 911.0 {
			assert.Equal(t, a.HeightAt(x, z), b.HeightAt(x, z), "height diverged at (%v, %v)", x, z)
			assert.Equal(t, a.BiomeAt(x, z), b.BiomeAt(x, z), "biome diverged at (%v, %v)", x, z)
		}
	}
}

func TestGeneratorSeedsDiffer(t *testing.T) {
	a := NewGenerator(1)
	b := NewGenerator(2)

	diverged := false
	for x := 0.0; x < 20000.0; x += 517.0 {
		if a.HeightAt(x, x) != b.HeightAt(x, x) {
			diverged = true
			break
		}
	}
	assert.True(t, diverged, "different seeds must produce different terrain")
}

func TestClimateIsNormalized(t *testing.T) {
	g := NewGenerator(7)

	for x := -10000.0; x <= 10000.0; x += 997.0 {
		temp, humidity := g.Climate(x, -x/2)
		assert.GreaterOrEqual(t, temp, 0.0)
		assert.LessOrEqual(t, temp, 1.0)
		assert.GreaterOrEqual(t, humidity, 0.0)
		assert.LessOrEqual(t, humidity, 1.0)
	}
}

func TestHeightIsFinite(t *testing.T) {
	g := NewGenerator(-99)

	for x := -50000.0; x <= 50000.0; x += 4813.0 {
		h := g.HeightAt(x, x/3)
		assert.False(t, math.IsNaN(h) || math.IsInf(h, 0), "height at (%v) is not finite", x)
		assert.Less(t, math.Abs(h), 5000.0, "height at (%v) out of plausible range", x)
	}
}

func TestBiomeCoversClimateSpace(t *testing.T) {
	g := NewGenerator(0)

	seen := map[Biome]bool{}
	for x := -100000.0; x <= 100000.0; x += 1231.0 {
		for z := -100000.0; z <= 100000.0; z += 17117.0 {
			seen[g.BiomeAt(x, z)] = true
		}
	}
	// a large enough survey should hit more than one biome
	assert.Greater(t, len(seen), 1)
}
