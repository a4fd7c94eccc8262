package tracking

import (
	"math"
	"testing"
)

func TestEnhancer_DisabledIsIdentity(t *testing.T) {
	e := NewEnhancer()
	in := detectedSample(0.1, 0.05, 0.02, 0.1, 0.15, 0.2, 0.15)
	if e.Enhance(in) != in {
		t.Error("disabled enhancer must return the sample unchanged")
	}
}

func TestEnhancer_UndetectedPassesThrough(t *testing.T) {
	e := NewEnhancer()
	e.Enable(2.0)

	in := Sample{HeadYaw: 0.4}
	if e.Enhance(in) != in {
		t.Error("undetected sample must pass through unmodified")
	}

	// The untracked frame must not have seeded history: the next detected
	// frame is a first frame and skips noise reduction.
	out := e.Enhance(detectedSample(0.001, 0, 0, 0, 0, 0, 0))
	if !floatEquals(out.HeadYaw, 0.002) {
		t.Errorf("first detected frame should multiply without freezing, got %v", out.HeadYaw)
	}
}

func TestEnhancer_AppliesMultiplierAndClamps(t *testing.T) {
	e := NewEnhancer()
	e.Enable(2.0)

	out := e.Enhance(detectedSample(0.3, -0.8, 0.1, 0.6, 0.2, 0.7, 0.1))
	if !floatEquals(out.HeadYaw, 0.6) {
		t.Errorf("yaw: got %v, want 0.6", out.HeadYaw)
	}
	if !floatEquals(out.HeadPitch, -1) {
		t.Errorf("pitch should clamp to -1, got %v", out.HeadPitch)
	}
	if !floatEquals(out.EyeLeft, 1) {
		t.Errorf("eye left should clamp to 1, got %v", out.EyeLeft)
	}
	if !floatEquals(out.MouthOpen, 1) {
		t.Errorf("mouth open should clamp to 1, got %v", out.MouthOpen)
	}
}

func TestEnhancer_MultiplierBounds(t *testing.T) {
	e := NewEnhancer()
	e.Enable(99)

	out := e.Enhance(detectedSample(0.1, 0, 0, 0, 0, 0, 0))
	// Multiplier clamps to 3.0, so 0.1 becomes 0.3, not 9.9 (then clamped).
	if !floatEquals(out.HeadYaw, 0.3) {
		t.Errorf("multiplier should clamp to 3.0: got yaw %v, want 0.3", out.HeadYaw)
	}
}

func TestEnhancer_NoiseFreeze(t *testing.T) {
	e := NewEnhancer()
	e.Enable(1.0)

	first := e.Enhance(detectedSample(0.5, 0, 0, 0.5, 0, 0, 0))

	// Delta below the 0.01 threshold freezes to the previous value.
	out := e.Enhance(detectedSample(0.505, 0, 0, 0.505, 0, 0, 0))
	if !floatEquals(out.HeadYaw, first.HeadYaw) {
		t.Errorf("sub-threshold yaw should freeze at %v, got %v", first.HeadYaw, out.HeadYaw)
	}
	if !floatEquals(out.EyeLeft, first.EyeLeft) {
		t.Errorf("sub-threshold eye should freeze at %v, got %v", first.EyeLeft, out.EyeLeft)
	}

	// Delta just above the threshold passes through unfrozen.
	next := 0.5 + DefaultNoiseThreshold + 1e-6
	out = e.Enhance(detectedSample(next, 0, 0, 0, 0, 0, 0))
	if !floatEquals(out.HeadYaw, next) {
		t.Errorf("above-threshold yaw should pass through: got %v, want %v", out.HeadYaw, next)
	}
}

func TestEnhancer_ChannelGroupFlags(t *testing.T) {
	e := NewEnhancer()
	e.Enable(2.0)
	off := false
	e.SetParams(EnhancerParams{EyeBlink: &off, Mouth: &off})

	out := e.Enhance(detectedSample(0.2, 0, 0, 0.3, 0.3, 0.4, 0.4))
	if !floatEquals(out.HeadYaw, 0.4) {
		t.Errorf("head group should be amplified: got %v", out.HeadYaw)
	}
	if !floatEquals(out.EyeLeft, 0.3) {
		t.Errorf("disabled eye group should be untouched: got %v", out.EyeLeft)
	}
	if !floatEquals(out.MouthOpen, 0.4) {
		t.Errorf("disabled mouth group should be untouched: got %v", out.MouthOpen)
	}
}

func TestEnhancer_ResetClearsHistory(t *testing.T) {
	e := NewEnhancer()
	e.Enable(1.0)

	e.Enhance(detectedSample(0.5, 0, 0, 0, 0, 0, 0))
	e.Reset()

	// After reset there is no previous value, so a tiny move is not frozen.
	out := e.Enhance(detectedSample(0.505, 0, 0, 0, 0, 0, 0))
	if math.Abs(out.HeadYaw-0.505) > floatTolerance {
		t.Errorf("post-reset frame should skip noise reduction, got %v", out.HeadYaw)
	}
}
