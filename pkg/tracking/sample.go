// Package tracking implements the face-tracking data pipeline: calibration,
// precision enhancement, smoothing, and protocol parameter mapping.
//
// A Sample flows through the stages in a fixed order each frame:
//
//	raw -> Calibrator -> Enhancer -> Smoother -> Mapper -> adapters
//
// Every stage re-clamps the channels it touches to their semantic range
// before handing the sample on. When no face is detected a sample passes
// through every stage untouched and no stage updates its history.
package tracking

// Sample is one frame of normalized face-tracking measurements.
// Head rotation channels are in [-1, 1] (degrees/30 upstream scaling),
// eye and mouth channels in [0, 1]. Samples are value types; stages return
// new samples rather than mutating their input.
type Sample struct {
	HeadYaw   float64 `json:"head_yaw"`
	HeadPitch float64 `json:"head_pitch"`
	HeadRoll  float64 `json:"head_roll"`
	EyeLeft   float64 `json:"eye_left"`
	EyeRight  float64 `json:"eye_right"`
	MouthOpen float64 `json:"mouth_open"`
	MouthWide float64 `json:"mouth_wide"`

	// FaceDetected reports whether the detector saw a face this frame.
	// When false the numeric channels are not meaningful.
	FaceDetected bool `json:"face_detected"`
}

// clamp restricts v to the range [min, max].
func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// ClampSigned clamps a head-rotation channel to [-1, 1].
func ClampSigned(v float64) float64 { return clamp(v, -1, 1) }

// ClampUnit clamps an eye or mouth channel to [0, 1].
func ClampUnit(v float64) float64 { return clamp(v, 0, 1) }

// Clamped returns a copy of s with every channel forced into its semantic range.
func (s Sample) Clamped() Sample {
	s.HeadYaw = ClampSigned(s.HeadYaw)
	s.HeadPitch = ClampSigned(s.HeadPitch)
	s.HeadRoll = ClampSigned(s.HeadRoll)
	s.EyeLeft = ClampUnit(s.EyeLeft)
	s.EyeRight = ClampUnit(s.EyeRight)
	s.MouthOpen = ClampUnit(s.MouthOpen)
	s.MouthWide = ClampUnit(s.MouthWide)
	return s
}

// Channel identifies one of the seven tracked measurement channels.
// Using a typed enum keeps per-channel tuning (sensitivity, deadzone)
// compile-time checked instead of keyed by free-form strings.
type Channel int

const (
	ChannelHeadYaw Channel = iota
	ChannelHeadPitch
	ChannelHeadRoll
	ChannelEyeLeft
	ChannelEyeRight
	ChannelMouthOpen
	ChannelMouthWide

	// NumChannels is the number of tracked channels.
	NumChannels
)

// String returns the channel's snake_case name.
func (c Channel) String() string {
	switch c {
	case ChannelHeadYaw:
		return "head_yaw"
	case ChannelHeadPitch:
		return "head_pitch"
	case ChannelHeadRoll:
		return "head_roll"
	case ChannelEyeLeft:
		return "eye_left"
	case ChannelEyeRight:
		return "eye_right"
	case ChannelMouthOpen:
		return "mouth_open"
	case ChannelMouthWide:
		return "mouth_wide"
	}
	return "unknown"
}

// value returns the sample's value for the given channel.
func (s Sample) value(c Channel) float64 {
	switch c {
	case ChannelHeadYaw:
		return s.HeadYaw
	case ChannelHeadPitch:
		return s.HeadPitch
	case ChannelHeadRoll:
		return s.HeadRoll
	case ChannelEyeLeft:
		return s.EyeLeft
	case ChannelEyeRight:
		return s.EyeRight
	case ChannelMouthOpen:
		return s.MouthOpen
	case ChannelMouthWide:
		return s.MouthWide
	}
	return 0
}

// withValue returns a copy of s with the given channel replaced.
func (s Sample) withValue(c Channel, v float64) Sample {
	switch c {
	case ChannelHeadYaw:
		s.HeadYaw = v
	case ChannelHeadPitch:
		s.HeadPitch = v
	case ChannelHeadRoll:
		s.HeadRoll = v
	case ChannelEyeLeft:
		s.EyeLeft = v
	case ChannelEyeRight:
		s.EyeRight = v
	case ChannelMouthOpen:
		s.MouthOpen = v
	case ChannelMouthWide:
		s.MouthWide = v
	}
	return s
}

// isHeadChannel reports whether c is a signed head-rotation channel.
func isHeadChannel(c Channel) bool {
	return c == ChannelHeadYaw || c == ChannelHeadPitch || c == ChannelHeadRoll
}
