package tracking

import (
	"math"
	"sync"

	"github.com/openvtuber/go-facelink/internal/log"
)

// DefaultDeadzone is the default per-channel deadzone threshold.
const DefaultDeadzone = 0.05

// VTS head rotation scaling: normalized [-1, 1] maps to degrees.
const (
	vtsAngleScale = 30.0
	vtsRollScale  = 30.0
)

// Blend weighting constants for the VMC mouth shapes.
const (
	blendWeightA   = 1.5
	blendWeightI   = 0.5
	blendWeightU   = 0.5
	blendWeightE   = 0.3
	blendWeightO   = 0.8
	blendWeightJoy = 1.2
	vtsSmileWeight = 1.5
)

// Mapper projects a processed sample into the two protocol parameter sets.
// It holds seven independent sensitivity multipliers and seven independent
// deadzone thresholds, all adjustable at runtime. Projections are pure:
// they never mutate the input sample or the mapper's own state.
type Mapper struct {
	mu          sync.RWMutex
	multipliers [NumChannels]float64
	deadzones   [NumChannels]float64
}

// NewMapper creates a mapper with unit sensitivity and the default deadzone
// on every channel.
func NewMapper() *Mapper {
	m := &Mapper{}
	for ch := Channel(0); ch < NumChannels; ch++ {
		m.multipliers[ch] = 1.0
		m.deadzones[ch] = DefaultDeadzone
	}
	return m
}

// SetMultiplier updates one channel's sensitivity multiplier. Negative
// values are clamped to zero.
func (m *Mapper) SetMultiplier(ch Channel, v float64) {
	if ch < 0 || ch >= NumChannels {
		return
	}
	if v < 0 {
		v = 0
	}
	m.mu.Lock()
	m.multipliers[ch] = v
	m.mu.Unlock()
	log.Debug("sensitivity updated", "channel", ch.String(), "multiplier", v)
}

// SetDeadzone updates one channel's deadzone threshold, clamped to [0, 1).
func (m *Mapper) SetDeadzone(ch Channel, v float64) {
	if ch < 0 || ch >= NumChannels {
		return
	}
	// A deadzone of 1 would make the rescale divide by zero; everything at
	// or above 0.99 behaves as "output always zero" anyway.
	v = clamp(v, 0, 0.99)
	m.mu.Lock()
	m.deadzones[ch] = v
	m.mu.Unlock()
	log.Debug("deadzone updated", "channel", ch.String(), "deadzone", v)
}

// Multiplier returns one channel's sensitivity multiplier.
func (m *Mapper) Multiplier(ch Channel) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.multipliers[ch]
}

// Deadzone returns one channel's deadzone threshold.
func (m *Mapper) Deadzone(ch Channel) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.deadzones[ch]
}

// ApplyDeadzone forces values below the deadzone to zero and rescales the
// remainder so output still spans the full range: the output is continuous
// at the deadzone boundary and reaches the input's extremes.
func ApplyDeadzone(value, deadzone float64) float64 {
	if math.Abs(value) < deadzone {
		return 0
	}
	if value >= 0 {
		return (value - deadzone) / (1 - deadzone)
	}
	return (value + deadzone) / (1 - deadzone)
}

// shaped applies the channel's deadzone followed by its sensitivity
// multiplier. Deadzone always runs first so the multiplier cannot lift a
// sub-threshold value back above zero.
func (m *Mapper) shaped(s Sample, ch Channel) float64 {
	return ApplyDeadzone(s.value(ch), m.deadzones[ch]) * m.multipliers[ch]
}

// ToVMCParams projects the sample into the rotation-protocol parameter set:
// head rotation channels, two blink values, and six mouth-shape blends
// derived from mouth-open and mouth-wide. Blend outputs are clamped to [0, 1].
func (m *Mapper) ToVMCParams(s Sample) map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mouthOpen := ClampUnit(m.shaped(s, ChannelMouthOpen))
	mouthWide := ClampUnit(m.shaped(s, ChannelMouthWide))

	return map[string]float64{
		"head_yaw":   m.shaped(s, ChannelHeadYaw),
		"head_pitch": m.shaped(s, ChannelHeadPitch),
		"head_roll":  m.shaped(s, ChannelHeadRoll),
		"Blink_L":    ClampUnit(m.shaped(s, ChannelEyeLeft)),
		"Blink_R":    ClampUnit(m.shaped(s, ChannelEyeRight)),
		"A":          ClampUnit(mouthOpen * blendWeightA),
		"I":          ClampUnit(mouthWide * blendWeightI),
		"U":          ClampUnit(mouthWide * blendWeightU),
		"E":          ClampUnit(mouthWide * blendWeightE),
		"O":          ClampUnit(mouthOpen * blendWeightO),
		"Joy":        ClampUnit(mouthWide * blendWeightJoy),
	}
}

// ToVTSParams projects the sample into the angle-protocol parameter set:
// head rotation in degrees, eye-open values (1 - blink), direct mouth
// values, and a derived smile parameter.
func (m *Mapper) ToVTSParams(s Sample) map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]float64{
		"ParamAngleX":     ApplyDeadzone(s.HeadYaw, m.deadzones[ChannelHeadYaw]) * vtsAngleScale * m.multipliers[ChannelHeadYaw],
		"ParamAngleY":     ApplyDeadzone(s.HeadPitch, m.deadzones[ChannelHeadPitch]) * vtsAngleScale * m.multipliers[ChannelHeadPitch],
		"ParamAngleZ":     ApplyDeadzone(s.HeadRoll, m.deadzones[ChannelHeadRoll]) * vtsRollScale * m.multipliers[ChannelHeadRoll],
		"ParamEyeLOpen":   ClampUnit(1 - m.shaped(s, ChannelEyeLeft)),
		"ParamEyeROpen":   ClampUnit(1 - m.shaped(s, ChannelEyeRight)),
		"ParamMouthOpenY": ClampUnit(m.shaped(s, ChannelMouthOpen)),
		"ParamMouthForm":  ClampUnit(m.shaped(s, ChannelMouthWide)),
		"ParamSmile":      ClampUnit(ApplyDeadzone(s.MouthWide, m.deadzones[ChannelMouthWide]) * vtsSmileWeight),
	}
}
