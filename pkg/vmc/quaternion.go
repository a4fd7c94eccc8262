package vmc

import "math"

// Quaternion is a rotation in [w, x, y, z] order, as the VMC root-rotation
// message expects.
type Quaternion struct {
	W, X, Y, Z float64
}

// EulerToQuaternion converts Euler angles (radians) to a quaternion using
// the standard half-angle composition in roll, pitch, yaw order.
func EulerToQuaternion(roll, pitch, yaw float64) Quaternion {
	cr := math.Cos(roll * 0.5)
	sr := math.Sin(roll * 0.5)
	cp := math.Cos(pitch * 0.5)
	sp := math.Sin(pitch * 0.5)
	cy := math.Cos(yaw * 0.5)
	sy := math.Sin(yaw * 0.5)

	return Quaternion{
		W: cr*cp*cy + sr*sp*sy,
		X: sr*cp*cy - cr*sp*sy,
		Y: cr*sp*cy + sr*cp*sy,
		Z: cr*cp*sy - sr*sp*cy,
	}
}
