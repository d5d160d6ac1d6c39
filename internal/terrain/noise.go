package terrain

import "math"

// fractalNoise sums octaves of value noise and normalises to [-1, 1].
func fractalNoise(x, z float64, seed int64, frequency float64, octaves int, persistence, lacunarity float64) float64 {
	amplitude := 1.0
	noiseSum := 0.0
	maxAmplitude := 0.0

	for i := 0; i < octaves; i++ {
		noise := valueNoise(x*frequency, z*frequency, seed)
		noiseSum += noise * amplitude
		maxAmplitude += amplitude
		amplitude *= persistence
		frequency *= lacunarity
	}

	if maxAmplitude == 0 {
		return 0
	}
	return noiseSum / maxAmplitude
}

func valueNoise(x, z float64, seed int64) float64 {
	x0 := int(math.Floor(x))
	z0 := int(math.Floor(z))
	x1 := x0 + 1
	z1 := z0 + 1

	sx := smooth(x - float64(x0))
	sz := smooth(z - float64(z0))

	n0 := random2D(x0, z0, seed)
	n1 := random2D(x1, z0, seed)
	ix0 := lerp(n0, n1, sx)

	n2 := random2D(x0, z1, seed)
	n3 := random2D(x1, z1, seed)
	ix1 := lerp(n2, n3, sx)

	return lerp(ix0, ix1, sz)
}

func smooth(t float64) float64 {
	return t * t * (3 - 2*t)
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

func random2D(x, z int, seed int64) float64 {
	return float64(hash3(x, z, int(seed))&0xFFFF)/0x8000 - 1.0
}

// unit01 maps a lattice point to [0, 1].
func unit01(x, y, z int) float64 {
	return float64(hash3(x, y, z)&0xFFFF) / 0xFFFF
}

func hash3(x, y, z int) uint32 {
	h := uint32(x*374761393 + y*668265263 + z*2147483647)
	h = (h ^ (h >> 13)) * 1274126177
	return h ^ (h >> 16)
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
