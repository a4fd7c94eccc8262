package tracking

import (
	"fmt"
	"sync"

	"github.com/openvtuber/go-facelink/internal/log"
)

// DefaultCalibrationSamples is the number of frames averaged during a
// calibration session.
const DefaultCalibrationSamples = 30

// CalibrationProfile holds the learned neutral-pose offsets.
type CalibrationProfile struct {
	Offsets    [NumChannels]float64
	Calibrated bool
}

// Reset clears the profile back to the uncalibrated state.
func (p *CalibrationProfile) Reset() {
	*p = CalibrationProfile{}
}

// Calibrator learns a neutral-pose baseline by averaging a fixed quota of
// samples and subtracts it from every sample afterwards. A calibration
// session is started explicitly; only one session can be active at a time.
//
// All methods are safe to call concurrently: the control surface may start
// or reset a session while the pipeline loop is collecting samples.
type Calibrator struct {
	mu       sync.Mutex
	profile  CalibrationProfile
	buffer   []Sample
	quota    int
	sampling bool
}

// NewCalibrator creates a calibrator requiring quota samples per session.
// A quota below 1 falls back to DefaultCalibrationSamples.
func NewCalibrator(quota int) *Calibrator {
	if quota < 1 {
		quota = DefaultCalibrationSamples
	}
	return &Calibrator{quota: quota}
}

// StartCalibration begins a new calibration session, discarding any
// partially collected samples from a previous one.
func (c *Calibrator) StartCalibration() {
	c.mu.Lock()
	c.sampling = true
	c.buffer = c.buffer[:0]
	c.mu.Unlock()
	log.Info("calibration started, hold a neutral pose", "quota", c.quota)
}

// CollectSample accumulates one sample for the active session. It is a no-op
// returning false when no session is active or no face was detected. It
// returns true exactly once, on the sample that completes the quota; at that
// point the per-channel means become the new offsets and the session ends.
func (c *Calibrator) CollectSample(s Sample) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.sampling || !s.FaceDetected {
		return false
	}

	c.buffer = append(c.buffer, s)
	if len(c.buffer) < c.quota {
		return false
	}

	for ch := Channel(0); ch < NumChannels; ch++ {
		sum := 0.0
		for _, b := range c.buffer {
			sum += b.value(ch)
		}
		c.profile.Offsets[ch] = sum / float64(len(c.buffer))
	}
	c.profile.Calibrated = true
	c.buffer = nil
	c.sampling = false

	log.Info("calibration complete",
		"yaw_offset", c.profile.Offsets[ChannelHeadYaw],
		"pitch_offset", c.profile.Offsets[ChannelHeadPitch],
		"roll_offset", c.profile.Offsets[ChannelHeadRoll])
	return true
}

// ApplyCalibration subtracts the learned offsets from s. If the calibrator
// holds no profile the sample is returned unchanged. Head channels are
// clamped to [-1, 1] and eye/mouth channels to [0, 1] after subtraction;
// FaceDetected is preserved.
func (c *Calibrator) ApplyCalibration(s Sample) Sample {
	c.mu.Lock()
	profile := c.profile
	c.mu.Unlock()

	if !profile.Calibrated {
		return s
	}

	out := s
	for ch := Channel(0); ch < NumChannels; ch++ {
		v := s.value(ch) - profile.Offsets[ch]
		if isHeadChannel(ch) {
			v = ClampSigned(v)
		} else {
			v = ClampUnit(v)
		}
		out = out.withValue(ch, v)
	}
	return out
}

// Calibrating reports whether a calibration session is collecting samples.
func (c *Calibrator) Calibrating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sampling
}

// Calibrated reports whether a neutral-pose profile has been learned.
func (c *Calibrator) Calibrated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile.Calibrated
}

// Profile returns a copy of the current calibration profile.
func (c *Calibrator) Profile() CalibrationProfile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile
}

// Status returns a human-readable calibration status for the control surface.
func (c *Calibrator) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.sampling:
		pct := float64(len(c.buffer)) / float64(c.quota) * 100
		if pct > 100 {
			pct = 100
		}
		return fmt.Sprintf("calibrating... %.0f%%", pct)
	case c.profile.Calibrated:
		return "calibrated"
	default:
		return "not calibrated"
	}
}

// Reset returns the calibrator to the uncalibrated, non-sampling state.
func (c *Calibrator) Reset() {
	c.mu.Lock()
	c.profile.Reset()
	c.buffer = nil
	c.sampling = false
	c.mu.Unlock()
	log.Info("calibration reset")
}
