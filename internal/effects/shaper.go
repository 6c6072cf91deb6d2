package effects

import "math"

// Shaper is a gentle tanh saturator. The output never leaves [-1, 1], and
// small signals pass with roughly unity gain.
type Shaper struct {
	drive float64
}

// NewShaper creates a saturator. drive > 1 pushes harder into the curve.
func NewShaper(drive float64) *Shaper {
	if drive <= 0 {
		drive = 1
	}
	return &Shaper{drive: drive}
}

func (s *Shaper) Process(l, r float64) (float64, float64) {
	return s.shape(l), s.shape(r)
}

func (s *Shaper) shape(x float64) float64 {
	return clamp(math.Tanh(x*s.drive)/s.drive, -1, 1)
}

func (s *Shaper) Reset() {}
