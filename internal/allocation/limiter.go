package allocation

import "math"

// Limit returns the uniform scale factor that brings the most extreme of the
// three percents back onto [-1, 1]. It returns exactly 1 when no value is
// saturated. All three are scaled by the same factor, so their ratios hold.
func Limit(port, vert, stbd float64) float64 {
	hi := math.Max(math.Max(port, vert), stbd)
	lo := math.Min(math.Min(port, vert), stbd)

	if lo < -1 || hi > 1 {
		return 1 / math.Max(math.Abs(lo), hi)
	}
	return 1
}

// Scale multiplies every component of p by factor.
func (p Percents) Scale(factor float64) Percents {
	return Percents{
		Port:      p.Port * factor,
		Vertical:  p.Vertical * factor,
		Starboard: p.Starboard * factor,
	}
}

// Limited applies Limit to p and returns the scaled vector with the factor used.
func (p Percents) Limited() (Percents, float64) {
	k := Limit(p.Port, p.Vertical, p.Starboard)
	if k == 1 {
		return p, 1
	}
	return p.Scale(k), k
}
