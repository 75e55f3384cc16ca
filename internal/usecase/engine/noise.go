package engine

import "math/rand"

// NoiseSource draws one relative price change per instrument per tick.
// The distribution is a tunable, not a correctness constraint; the floor
// clamp applied by the engine is what guarantees prices stay positive.
type NoiseSource interface {
	Draw() float64
}

// NormalNoise draws from a normal distribution with a small positive
// drift, giving a random walk with a slight upward bias.
type NormalNoise struct {
	Drift      float64
	Volatility float64
}

// Draw returns drift + volatility * N(0,1).
func (n NormalNoise) Draw() float64 {
	return n.Drift + n.Volatility*rand.NormFloat64()
}

// UniformNoise draws uniformly from [-Bound, +Bound].
type UniformNoise struct {
	Bound float64
}

// Draw returns a uniform relative change.
func (n UniformNoise) Draw() float64 {
	return (rand.Float64()*2 - 1) * n.Bound
}
