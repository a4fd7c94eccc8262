package tracking

import (
	"math"
	"sync"

	"github.com/openvtuber/go-facelink/internal/log"
)

// Precision enhancement defaults.
const (
	DefaultPrecisionMultiplier = 1.5
	DefaultNoiseThreshold      = 0.01

	// Multiplier bounds; values outside are clamped rather than rejected.
	minPrecisionMultiplier = 1.0
	maxPrecisionMultiplier = 3.0
)

// Enhancer amplifies subtle motion by a sensitivity multiplier and freezes
// sub-threshold jitter against the previous enhanced sample. Each of the
// three channel groups (head rotation, eyes, mouth) can be enhanced
// independently. When disabled, Enhance is the identity.
type Enhancer struct {
	mu sync.Mutex

	enabled    bool
	multiplier float64

	noiseReduction bool
	noiseThreshold float64

	headRotation bool
	eyeBlink     bool
	mouth        bool

	prev    Sample
	hasPrev bool
}

// NewEnhancer creates a disabled enhancer with default parameters and all
// channel groups enabled.
func NewEnhancer() *Enhancer {
	return &Enhancer{
		multiplier:     DefaultPrecisionMultiplier,
		noiseReduction: true,
		noiseThreshold: DefaultNoiseThreshold,
		headRotation:   true,
		eyeBlink:       true,
		mouth:          true,
	}
}

// Enable turns on precision enhancement with the given multiplier,
// clamped to [1.0, 3.0].
func (e *Enhancer) Enable(multiplier float64) {
	e.mu.Lock()
	e.enabled = true
	e.multiplier = clamp(multiplier, minPrecisionMultiplier, maxPrecisionMultiplier)
	e.mu.Unlock()
	log.Info("precision mode enabled", "multiplier", multiplier)
}

// Disable turns off precision enhancement.
func (e *Enhancer) Disable() {
	e.mu.Lock()
	e.enabled = false
	e.mu.Unlock()
	log.Info("precision mode disabled")
}

// Enabled reports whether enhancement is active.
func (e *Enhancer) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// EnhancerParams is a partial update to the enhancer's tuning. Nil fields
// leave the current value untouched.
type EnhancerParams struct {
	Multiplier     *float64
	NoiseReduction *bool
	NoiseThreshold *float64
	HeadRotation   *bool
	EyeBlink       *bool
	Mouth          *bool
}

// SetParams applies a partial tuning update. Out-of-range values are
// clamped to their valid ranges.
func (e *Enhancer) SetParams(p EnhancerParams) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p.Multiplier != nil {
		e.multiplier = clamp(*p.Multiplier, minPrecisionMultiplier, maxPrecisionMultiplier)
	}
	if p.NoiseReduction != nil {
		e.noiseReduction = *p.NoiseReduction
	}
	if p.NoiseThreshold != nil {
		e.noiseThreshold = clamp(*p.NoiseThreshold, 0, 1)
	}
	if p.HeadRotation != nil {
		e.headRotation = *p.HeadRotation
	}
	if p.EyeBlink != nil {
		e.eyeBlink = *p.EyeBlink
	}
	if p.Mouth != nil {
		e.mouth = *p.Mouth
	}
}

// Enhance applies the sensitivity multiplier to the enabled channel groups,
// freezes channels whose frame-to-frame delta is below the noise threshold,
// and clamps every channel to its semantic range. The first sample after
// enable or Reset has no history and skips noise reduction. Samples with no
// detected face pass through untouched and do not update history.
func (e *Enhancer) Enhance(s Sample) Sample {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.enabled || !s.FaceDetected {
		return s
	}

	out := s
	if e.headRotation {
		out.HeadYaw = s.HeadYaw * e.multiplier
		out.HeadPitch = s.HeadPitch * e.multiplier
		out.HeadRoll = s.HeadRoll * e.multiplier
	}
	if e.eyeBlink {
		out.EyeLeft = s.EyeLeft * e.multiplier
		out.EyeRight = s.EyeRight * e.multiplier
	}
	if e.mouth {
		out.MouthOpen = s.MouthOpen * e.multiplier
		out.MouthWide = s.MouthWide * e.multiplier
	}

	if e.noiseReduction && e.hasPrev {
		out = e.freezeNoise(out)
	}
	out = out.Clamped()

	e.prev = out
	e.hasPrev = true
	return out
}

// freezeNoise replaces each channel with its previous enhanced value when
// the delta is below the threshold, suppressing sub-threshold flicker while
// passing intentional motion through.
func (e *Enhancer) freezeNoise(s Sample) Sample {
	out := s
	for ch := Channel(0); ch < NumChannels; ch++ {
		prev := e.prev.value(ch)
		if math.Abs(s.value(ch)-prev) < e.noiseThreshold {
			out = out.withValue(ch, prev)
		}
	}
	return out
}

// Reset clears the enhancer's sample history.
func (e *Enhancer) Reset() {
	e.mu.Lock()
	e.prev = Sample{}
	e.hasPrev = false
	e.mu.Unlock()
}
