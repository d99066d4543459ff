package kinematic

// This package includes the 3D math primitives shared by the server
// state model and the client-side interpolation.

import (
	"math"
)

// Vector3 is a position or direction in world space.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vector3) Add(other Vector3) Vector3 {
	return Vector3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

func (v Vector3) Sub(other Vector3) Vector3 {
	return Vector3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

func (v Vector3) Scale(factor float64) Vector3 {
	return Vector3{X: v.X * factor, Y: v.Y * factor, Z: v.Z * factor}
}

func (v Vector3) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Lerp returns the linear blend of a and b at factor.
// factor is expected to be in [0, 1].
func Lerp(a, b Vector3, factor float64) Vector3 {
	return Vector3{
		X: a.X + (b.X-a.X)*factor,
		Y: a.Y + (b.Y-a.Y)*factor,
		Z: a.Z + (b.Z-a.Z)*factor,
	}
}

// Quaternion is an orientation in world space.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// QuaternionIdentity returns the identity orientation.
func QuaternionIdentity() Quaternion {
	return Quaternion{W: 1}
}

func (q Quaternion) Normalize() Quaternion {
	length := math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if length == 0 {
		return QuaternionIdentity()
	}
	return Quaternion{X: q.X / length, Y: q.Y / length, Z: q.Z / length, W: q.W / length}
}

func (q Quaternion) Dot(other Quaternion) float64 {
	return q.X*other.X + q.Y*other.Y + q.Z*other.Z + q.W*other.W
}

// NLerp returns the normalized linear blend of a and b at factor,
// taking the shortest path between the two orientations.
func NLerp(a, b Quaternion, factor float64) Quaternion {
	if a.Dot(b) < 0 {
		b = Quaternion{X: -b.X, Y: -b.Y, Z: -b.Z, W: -b.W}
	}
	return Quaternion{
		X: a.X + (b.X-a.X)*factor,
		Y: a.Y + (b.Y-a.Y)*factor,
		Z: a.Z + (b.Z-a.Z)*factor,
		W: a.W + (b.W-a.W)*factor,
	}.Normalize()
}

// FromYaw returns the orientation for a rotation of yaw radians
// around the vertical axis.
func FromYaw(yaw float64) Quaternion {
	return Quaternion{
		Y: math.Sin(yaw / 2),
		W: math.Cos(yaw / 2),
	}
}
