package world

import (
	"math"
	"math/rand"
)

const (
	// MapHeightScale converts normalized terrain height to world units
	MapHeightScale = 100.0

	terrainHorizontalScale = 1.0

	oceanHumidityThreshold = 0.62
	oceanHumidityOffset    = 0.03
	oceanHotTempThreshold  = 0.9
	oceanColdTempThreshold = 0.1
	oceanTransitionWidth   = 0.1
)

// Biome classifies a point of the generated world by climate.
type Biome string

const (
	BiomeDesert     Biome = "desert"
	BiomeGrasslands Biome = "grasslands"
	BiomeTaiga      Biome = "taiga"
	BiomeForest     Biome = "forest"
	BiomeOcean      Biome = "ocean"
)

// Generator produces deterministic terrain from a seed. Every client
// that receives the same seed in its welcome reconstructs the exact
// same world, so only the seed ever crosses the wire.
type Generator struct {
	seed          int64
	terrainLayers []noiseLayer
	temperature   noiseLayer
	humidity      noiseLayer
}

// NewGenerator creates a generator for the given seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		seed: seed,
		terrainLayers: []noiseLayer{
			newNoiseLayer(seed, 0.08*terrainHorizontalScale, 4.5),
			newNoiseLayer(seed, 0.20*terrainHorizontalScale, 3.5),
			newNoiseLayer(seed+100, 0.5*terrainHorizontalScale, 1.75),
			newNoiseLayer(seed+200, 1.0*terrainHorizontalScale, 0.5),
			newNoiseLayer(seed+300, 2.0*terrainHorizontalScale, 0.4),
		},
		// climate layers stay broad so biomes span many chunks
		temperature: newNoiseLayer(seed+400, 0.06*terrainHorizontalScale, 1.0),
		humidity:    newNoiseLayer(seed+500, 0.06*terrainHorizontalScale, 1.0),
	}
}

// Seed returns the seed this generator was built from.
func (g *Generator) Seed() int64 {
	return g.seed
}

// Climate returns normalized temperature and humidity in [0, 1] at a
// ground position.
func (g *Generator) Climate(x, z float64) (float64, float64) {
	temp := clamp((g.temperature.level(x, z)/g.temperature.verticalScale+1)*0.5, 0, 1)
	humidity := clamp((g.humidity.level(x, z)/g.humidity.verticalScale+1)*0.5, 0, 1)
	return temp, humidity
}

// BiomeAt classifies the biome at a ground position.
func (g *Generator) BiomeAt(x, z float64) Biome {
	temp, humidity := g.Climate(x, z)

	// oceans cover very wet areas and both temperature extremes
	if humidity > oceanHumidityThreshold+oceanHumidityOffset ||
		temp > oceanHotTempThreshold ||
		temp < oceanColdTempThreshold {
		return BiomeOcean
	}

	if temp > 0.5 {
		if humidity > 0.45 {
			return BiomeForest
		}
		return BiomeDesert
	}
	if humidity < 0.45 {
		return BiomeGrasslands
	}
	return BiomeTaiga
}

// HeightAt returns the terrain height in world units at a ground
// position.
func (g *Generator) HeightAt(x, z float64) float64 {
	baseHeight := 0.0
	for _, layer := range g.terrainLayers {
		baseHeight += layer.level(x, z)
	}

	temp, humidity := g.Climate(x, z)
	height := baseHeight*biomeHeightMultiplier(temp, humidity) + biomeElevationOffset(temp, humidity)
	return height * MapHeightScale
}

// biomeElevationOffset blends a base elevation across the climate
// space, sinking toward a deep negative offset near oceans.
func biomeElevationOffset(temp, humidity float64) float64 {
	const (
		desertElev = 0.0
		grassElev  = 0.04
		forestElev = 0.5
		taigaElev  = 8.0
		oceanElev  = -2.5
	)

	coldBlend := grassElev + (taigaElev-grassElev)*humidity
	hotBlend := desertElev + (forestElev-desertElev)*humidity
	landElev := coldBlend + (hotBlend-coldBlend)*temp

	return landElev + (oceanElev-landElev)*oceanFactor(temp, humidity)
}

// biomeHeightMultiplier blends terrain roughness across the climate
// space, flattening toward oceans.
func biomeHeightMultiplier(temp, humidity float64) float64 {
	const (
		desertMult = 0.01
		grassMult  = 0.02
		forestMult = 0.05
		taigaMult  = 1.5
		oceanMult  = 0.01
	)

	coldBlend := grassMult + (taigaMult-grassMult)*humidity
	hotBlend := desertMult + (forestMult-desertMult)*humidity
	landMult := coldBlend + (hotBlend-coldBlend)*temp

	return landMult + (oceanMult-landMult)*oceanFactor(temp, humidity)
}

// oceanFactor returns how strongly a climate blends toward ocean,
// 0 for pure land and 1 for open water.
func oceanFactor(temp, humidity float64) float64 {
	humBlend := 0.0
	if humidity > oceanHumidityThreshold {
		humBlend = clamp((humidity-oceanHumidityThreshold)/oceanTransitionWidth, 0, 1)
	}
	hotBlend := 0.0
	if temp > oceanHotTempThreshold-oceanTransitionWidth {
		hotBlend = clamp((temp-(oceanHotTempThreshold-oceanTransitionWidth))/oceanTransitionWidth, 0, 1)
	}
	coldBlend := 0.0
	if temp < oceanColdTempThreshold+oceanTransitionWidth {
		coldBlend = clamp((oceanColdTempThreshold+oceanTransitionWidth-temp)/oceanTransitionWidth, 0, 1)
	}
	return math.Max(humBlend, math.Max(hotBlend, coldBlend))
}

// noiseLayer is one octave of gradient noise with its own seed offset
// so layers never line up with each other.
type noiseLayer struct {
	noise           *perlin
	horizontalScale float64
	verticalScale   float64
	offset          float64
}

func newNoiseLayer(seed int64, horizontalScale, verticalScale float64) noiseLayer {
	return noiseLayer{
		noise:           newPerlin(seed),
		horizontalScale: horizontalScale,
		verticalScale:   verticalScale,
		offset:          math.Mod(float64(seed)*1337.42, 100000.0),
	}
}

func (l noiseLayer) level(x, z float64) float64 {
	height := l.noise.at(
		x*l.horizontalScale/1000.0+l.offset,
		z*l.horizontalScale/1000.0+(math.Sqrt(math.Abs(l.offset))+202994.0),
	)
	return height * l.verticalScale
}

// perlin is classic 2D gradient noise over a seed-shuffled permutation
// table. Output is in [-1, 1].
type perlin struct {
	perm [512]int
}

func newPerlin(seed int64) *perlin {
	p := &perlin{}
	rng := rand.New(rand.NewSource(seed))

	base := make([]int, 256)
	for i := range base {
		base[i] = i
	}
	rng.Shuffle(len(base), func(i, j int) {
		base[i], base[j] = base[j], base[i]
	})
	for i := 0; i < 512; i++ {
		p.perm[i] = base[i&255]
	}
	return p
}

func (p *perlin) at(x, y float64) float64 {
	xi := int(math.Floor(x)) & 255
	yi := int(math.Floor(y)) & 255
	xf := x - math.Floor(x)
	yf := y - math.Floor(y)

	u := fade(xf)
	v := fade(yf)

	aa := p.perm[p.perm[xi]+yi]
	ab := p.perm[p.perm[xi]+yi+1]
	ba := p.perm[p.perm[xi+1]+yi]
	bb := p.perm[p.perm[xi+1]+yi+1]

	x1 := lerp(grad(aa, xf, yf), grad(ba, xf-1, yf), u)
	x2 := lerp(grad(ab, xf, yf-1), grad(bb, xf-1, yf-1), u)
	return lerp(x1, x2, v)
}

func fade(t float64) float64 {
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func grad(hash int, x, y float64) float64 {
	switch hash & 3 {
	case 0:
		return x + y
	case 1:
		return -x + y
	case 2:
		return x - y
	default:
		return -x - y
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
