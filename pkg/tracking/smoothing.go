package tracking

import (
	"sync"

	"github.com/openvtuber/go-facelink/internal/log"
)

// DefaultSmoothingAlpha is the default EMA factor. Lower values smooth more.
const DefaultSmoothingAlpha = 0.2

// Smoother applies a per-channel exponential moving average:
//
//	smoothed = alpha*current + (1-alpha)*previous
//
// The first sample after startup or Reset becomes the initial history without
// modification. When disabled, or when no face is detected, samples pass
// through unchanged and history is not updated, so a gap in detection never
// bleeds stale data into the running average.
type Smoother struct {
	mu      sync.Mutex
	alpha   float64
	enabled bool
	prev    Sample
	hasPrev bool
}

// NewSmoother creates an enabled smoother. Alpha is clamped to [0, 1].
func NewSmoother(alpha float64) *Smoother {
	return &Smoother{alpha: clamp(alpha, 0, 1), enabled: true}
}

// Smooth returns the exponentially smoothed sample and records it as the new
// history.
func (sm *Smoother) Smooth(s Sample) Sample {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.enabled || !s.FaceDetected {
		return s
	}

	if !sm.hasPrev {
		sm.prev = s
		sm.hasPrev = true
		return s
	}

	out := s
	for ch := Channel(0); ch < NumChannels; ch++ {
		out = out.withValue(ch, sm.ema(sm.prev.value(ch), s.value(ch), sm.alpha))
	}
	sm.prev = out
	return out
}

func (sm *Smoother) ema(prev, current, alpha float64) float64 {
	return alpha*current + (1-alpha)*prev
}

// SetAlpha updates the smoothing factor, clamped to [0, 1].
func (sm *Smoother) SetAlpha(alpha float64) {
	sm.mu.Lock()
	sm.alpha = clamp(alpha, 0, 1)
	sm.mu.Unlock()
	log.Debug("smoothing alpha updated", "alpha", alpha)
}

// SetEnabled toggles smoothing. Disabling does not clear history; resuming
// continues from the last valid state.
func (sm *Smoother) SetEnabled(enabled bool) {
	sm.mu.Lock()
	sm.enabled = enabled
	sm.mu.Unlock()
}

// Reset clears the smoother's history.
func (sm *Smoother) Reset() {
	sm.mu.Lock()
	sm.prev = Sample{}
	sm.hasPrev = false
	sm.mu.Unlock()
}

// GroupSmoother smooths with independent alphas per channel group, for
// setups where head motion wants heavier smoothing than blinks.
type GroupSmoother struct {
	mu         sync.Mutex
	headAlpha  float64
	eyeAlpha   float64
	mouthAlpha float64
	enabled    bool
	prev       Sample
	hasPrev    bool
}

// NewGroupSmoother creates an enabled group smoother. Alphas are clamped
// to [0, 1].
func NewGroupSmoother(headAlpha, eyeAlpha, mouthAlpha float64) *GroupSmoother {
	return &GroupSmoother{
		headAlpha:  clamp(headAlpha, 0, 1),
		eyeAlpha:   clamp(eyeAlpha, 0, 1),
		mouthAlpha: clamp(mouthAlpha, 0, 1),
		enabled:    true,
	}
}

// Smooth applies the group-specific EMA factors. Semantics otherwise match
// Smoother.Smooth.
func (gs *GroupSmoother) Smooth(s Sample) Sample {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if !gs.enabled || !s.FaceDetected {
		return s
	}

	if !gs.hasPrev {
		gs.prev = s
		gs.hasPrev = true
		return s
	}

	out := s
	for ch := Channel(0); ch < NumChannels; ch++ {
		alpha := gs.mouthAlpha
		switch {
		case isHeadChannel(ch):
			alpha = gs.headAlpha
		case ch == ChannelEyeLeft || ch == ChannelEyeRight:
			alpha = gs.eyeAlpha
		}
		out = out.withValue(ch, alpha*s.value(ch)+(1-alpha)*gs.prev.value(ch))
	}
	gs.prev = out
	return out
}

// SetAlphas updates the per-group smoothing factors, each clamped to [0, 1].
func (gs *GroupSmoother) SetAlphas(head, eye, mouth float64) {
	gs.mu.Lock()
	gs.headAlpha = clamp(head, 0, 1)
	gs.eyeAlpha = clamp(eye, 0, 1)
	gs.mouthAlpha = clamp(mouth, 0, 1)
	gs.mu.Unlock()
}

// Reset clears the smoother's history.
func (gs *GroupSmoother) Reset() {
	gs.mu.Lock()
	gs.prev = Sample{}
	gs.hasPrev = false
	gs.mu.Unlock()
}
