package tracking

import (
	"math"
	"sync"
	"testing"
)

const floatTolerance = 1e-9

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

func detectedSample(yaw, pitch, roll, eyeL, eyeR, open, wide float64) Sample {
	return Sample{
		HeadYaw: yaw, HeadPitch: pitch, HeadRoll: roll,
		EyeLeft: eyeL, EyeRight: eyeR,
		MouthOpen: open, MouthWide: wide,
		FaceDetected: true,
	}
}

func TestCalibrator_CollectWithoutSession(t *testing.T) {
	c := NewCalibrator(5)

	if c.CollectSample(detectedSample(0.1, 0, 0, 0, 0, 0, 0)) {
		t.Error("CollectSample without an active session should return false")
	}
	if c.Calibrated() {
		t.Error("calibrator should not become calibrated without a session")
	}
}

func TestCalibrator_SkipsUndetectedFrames(t *testing.T) {
	c := NewCalibrator(2)
	c.StartCalibration()

	undetected := Sample{HeadYaw: 0.5}
	if c.CollectSample(undetected) {
		t.Error("undetected frame should not count toward the quota")
	}
	if c.CollectSample(detectedSample(0.2, 0, 0, 0, 0, 0, 0)) {
		t.Error("quota of 2 should not finish after one detected sample")
	}
	if !c.CollectSample(detectedSample(0.4, 0, 0, 0, 0, 0, 0)) {
		t.Error("quota of 2 should finish on the second detected sample")
	}
	if !c.Calibrated() {
		t.Error("calibrator should be calibrated after the quota is reached")
	}

	// Offsets are the mean of the detected samples only.
	got := c.Profile().Offsets[ChannelHeadYaw]
	if !floatEquals(got, 0.3) {
		t.Errorf("yaw offset: got %v, want 0.3", got)
	}
}

func TestCalibrator_RoundTrip(t *testing.T) {
	// Feeding the quota with identical samples must zero the head channels
	// of that same sample afterward.
	c := NewCalibrator(30)
	c.StartCalibration()

	neutral := detectedSample(0.12, -0.07, 0.03, 0.1, 0.09, 0.05, 0.08)
	finished := false
	for i := 0; i < 30; i++ {
		finished = c.CollectSample(neutral)
	}
	if !finished {
		t.Fatal("calibration did not finish after 30 samples")
	}

	out := c.ApplyCalibration(neutral)
	if !floatEquals(out.HeadYaw, 0) || !floatEquals(out.HeadPitch, 0) || !floatEquals(out.HeadRoll, 0) {
		t.Errorf("head channels not centered: yaw=%v pitch=%v roll=%v",
			out.HeadYaw, out.HeadPitch, out.HeadRoll)
	}
	for name, v := range map[string]float64{
		"eye_left": out.EyeLeft, "eye_right": out.EyeRight,
		"mouth_open": out.MouthOpen, "mouth_wide": out.MouthWide,
	} {
		if v < 0 || v > 1 {
			t.Errorf("%s out of [0,1] after calibration: %v", name, v)
		}
	}
	if !out.FaceDetected {
		t.Error("FaceDetected must be preserved")
	}
}

func TestCalibrator_ApplyUncalibratedIsIdentity(t *testing.T) {
	c := NewCalibrator(5)
	in := detectedSample(0.3, 0.2, 0.1, 0.8, 0.7, 0.6, 0.5)
	if c.ApplyCalibration(in) != in {
		t.Error("uncalibrated ApplyCalibration must return the sample unchanged")
	}
}

func TestCalibrator_ApplyClampsChannels(t *testing.T) {
	c := NewCalibrator(1)
	c.StartCalibration()
	c.CollectSample(detectedSample(0.9, 0, 0, 0.9, 0, 0, 0))

	out := c.ApplyCalibration(detectedSample(-0.9, 0, 0, 0.1, 0, 0, 0))
	if !floatEquals(out.HeadYaw, -1) {
		t.Errorf("yaw should clamp to -1, got %v", out.HeadYaw)
	}
	if !floatEquals(out.EyeLeft, 0) {
		t.Errorf("eye should clamp to 0, got %v", out.EyeLeft)
	}
}

func TestCalibrator_Reset(t *testing.T) {
	c := NewCalibrator(1)
	c.StartCalibration()
	c.CollectSample(detectedSample(0.5, 0, 0, 0, 0, 0, 0))
	if !c.Calibrated() {
		t.Fatal("expected calibrated state before reset")
	}

	c.Reset()
	if c.Calibrated() || c.Calibrating() {
		t.Error("reset should clear both the profile and any session")
	}
	in := detectedSample(0.5, 0, 0, 0, 0, 0, 0)
	if c.ApplyCalibration(in) != in {
		t.Error("reset calibrator should pass samples through unchanged")
	}
}

func TestCalibrator_Status(t *testing.T) {
	c := NewCalibrator(4)
	if got := c.Status(); got != "not calibrated" {
		t.Errorf("initial status: got %q", got)
	}

	c.StartCalibration()
	c.CollectSample(detectedSample(0, 0, 0, 0, 0, 0, 0))
	if got := c.Status(); got != "calibrating... 25%" {
		t.Errorf("mid-session status: got %q", got)
	}

	for i := 0; i < 3; i++ {
		c.CollectSample(detectedSample(0, 0, 0, 0, 0, 0, 0))
	}
	if got := c.Status(); got != "calibrated" {
		t.Errorf("final status: got %q", got)
	}
}

func TestCalibrator_ConcurrentCollectAndReset(t *testing.T) {
	c := NewCalibrator(10)
	c.StartCalibration()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.CollectSample(detectedSample(0.1, 0, 0, 0, 0, 0, 0))
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 50; j++ {
			c.Reset()
			c.StartCalibration()
		}
	}()
	wg.Wait()
	// Passing without the race detector firing is the assertion.
}
