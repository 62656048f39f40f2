package core

import "math/rand/v2"

const (
	DefaultStarSamples   = 1500
	DefaultStarExtent    = 400.0
	DefaultStarMinRadius = 50.0
)

// StarField draws samples points uniformly from a cube of side extent centred
// on the origin and keeps those farther than minRadius, so no star sits among
// the orbits. The result is fixed for the scene's lifetime.
func StarField(rng *rand.Rand, samples int, extent, minRadius float64) []Vec3 {
	stars := make([]Vec3, 0, samples)
	for i := 0; i < samples; i++ {
		p := Vec3{
			X: (rng.Float64() - 0.5) * extent,
			Y: (rng.Float64() - 0.5) * extent,
			Z: (rng.Float64() - 0.5) * extent,
		}
		if p.Norm() > minRadius {
			stars = append(stars, p)
		}
	}
	return stars
}
