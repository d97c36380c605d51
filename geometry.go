package ssr

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Position is a 3D point in the scene's world frame (spec §4.9, C10).
type Position = r3.Vec

// NewPosition returns the position (x, y, z).
func NewPosition(x, y, z float64) Position { return Position{X: x, Y: y, Z: z} }

// Orientation is a unit quaternion rotation (spec §4.9). Uses
// gonum.org/v1/gonum/num/quat for storage and composition, matching the
// numeric backbone other_examples/rayboyd-audio-engine and
// other_examples/san-kum-dynsim both build their geometry on.
type Orientation struct {
	Q quat.Number
}

// IdentityOrientation is the zero rotation.
func IdentityOrientation() Orientation { return Orientation{Q: quat.Number{Real: 1}} }

// toRad/toDeg: the engine's rotation inputs (azimuth, elevation, roll) are
// expressed in degrees throughout the public API, matching §4.9 and §6's
// configuration surface; quaternion math itself is radian-based.
func toRad(deg float64) float64 { return deg * math.Pi / 180 }
func toDeg(rad float64) float64 { return rad * 180 / math.Pi }

// OrientationFromZXY builds the orientation quat = Rz(azimuth) *
// Rx(elevation) * Ry(roll), the intrinsic ZXY Euler convention spec §4.9
// mandates. Angles are in degrees.
func OrientationFromZXY(azimuthDeg, elevationDeg, rollDeg float64) Orientation {
	rz := axisAngle(r3.Vec{Z: 1}, toRad(azimuthDeg))
	rx := axisAngle(r3.Vec{X: 1}, toRad(elevationDeg))
	ry := axisAngle(r3.Vec{Y: 1}, toRad(rollDeg))
	q := quat.Mul(quat.Mul(rz, rx), ry)
	return Orientation{Q: quat.Scale(1/quat.Abs(q), q)}
}

func axisAngle(axis r3.Vec, angle float64) quat.Number {
	half := angle / 2
	s := math.Sin(half)
	return quat.Number{Real: math.Cos(half), Imag: axis.X * s, Jmag: axis.Y * s, Kmag: axis.Z * s}
}

// ZXY returns the (azimuth, elevation, roll) in degrees that produced this
// orientation via OrientationFromZXY, guarding gimbal lock at elevation
// ±90° exactly as spec §4.9 specifies: "returning (atan2(2(ac+bd),
// 2(ab-cd)), ±90°, 0)" using the quaternion components (a=Real, b=Imag,
// c=Jmag, d=Kmag).
func (o Orientation) ZXY() (azimuthDeg, elevationDeg, rollDeg float64) {
	a, b, c, d := o.Q.Real, o.Q.Imag, o.Q.Jmag, o.Q.Kmag

	sinElev := 2 * (a*b + c*d)
	const gimbalEps = 1e-9
	if sinElev >= 1-gimbalEps {
		return toDeg(math.Atan2(2*(a*c+b*d), 2*(a*b-c*d))), 90, 0
	}
	if sinElev <= -1+gimbalEps {
		return toDeg(math.Atan2(2*(a*c+b*d), 2*(a*b-c*d))), -90, 0
	}

	azimuth := math.Atan2(2*(a*d-b*c), 1-2*(b*b+d*d))
	elevation := math.Asin(sinElev)
	roll := math.Atan2(2*(a*c-b*d), 1-2*(b*b+c*c))
	return toDeg(azimuth), toDeg(elevation), toDeg(roll)
}

// Azimuth2D returns the orientation's azimuth expressed in the 2D
// compatibility convention: degrees, offset 90° from the 3D zero (spec
// §4.9's 2D compatibility layer). 3D azimuth 0 faces +y; 2D convention
// faces +x at azimuth 0, hence the 90° offset.
func (o Orientation) Azimuth2D() float64 {
	azimuth, _, _ := o.ZXY()
	return wrapDegrees(azimuth + 90)
}

// OrientationFromAzimuth2D builds a pure-azimuth orientation from the 2D
// convention angle (degrees), the inverse of Azimuth2D.
func OrientationFromAzimuth2D(azimuth2D float64) Orientation {
	return OrientationFromZXY(wrapDegrees(azimuth2D-90), 0, 0)
}

// wrapDegrees wraps v into [0, 360).
func wrapDegrees(v float64) float64 {
	v = math.Mod(v, 360)
	if v < 0 {
		v += 360
	}
	return v
}

// Rotate applies the orientation to vector v.
func (o Orientation) Rotate(v r3.Vec) r3.Vec {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	qInv := quat.Conj(o.Q)
	r := quat.Mul(quat.Mul(o.Q, p), qInv)
	return r3.Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// Inverse returns the conjugate (inverse, for a unit quaternion) rotation.
func (o Orientation) Inverse() Orientation { return Orientation{Q: quat.Conj(o.Q)} }

// Compose returns the rotation that applies o first, then other.
func (o Orientation) Compose(other Orientation) Orientation {
	return Orientation{Q: quat.Mul(other.Q, o.Q)}
}

// Length returns the Euclidean norm of v.
func Length(v r3.Vec) float64 { return r3.Norm(v) }

// Normalize returns v scaled to unit length. v must not be the zero
// vector: builds with the ssrdebug tag panic on it, other builds return a
// non-finite vector.
func Normalize(v r3.Vec) r3.Vec {
	n := r3.Norm(v)
	debugAssert(n > 0, "Normalize: zero-length vector")
	return r3.Scale(1/n, v)
}

// ErrDegenerateLookRotation is returned by LookRotation when from and to
// coincide, or when the from->to direction is parallel to world up.
var ErrDegenerateLookRotation = errors.New("ssr: look_rotation: degenerate from/to pair")

// LookRotation builds a quaternion whose +y axis points from `from`
// towards `to`, with world up = +z (spec §4.9).
func LookRotation(from, to r3.Vec) (Orientation, error) {
	dir := r3.Sub(to, from)
	dn := r3.Norm(dir)
	if dn == 0 {
		return Orientation{}, ErrDegenerateLookRotation
	}
	fwd := r3.Scale(1/dn, dir)

	up := r3.Vec{Z: 1}
	right := r3.Cross(fwd, up)
	rn := r3.Norm(right)
	if rn == 0 {
		return Orientation{}, ErrDegenerateLookRotation
	}
	right = r3.Scale(1/rn, right)
	realUp := r3.Cross(right, fwd)

	// Columns (right, fwd, realUp) form the rotation matrix taking the
	// local frame (+x right, +y forward, +z up) to world space.
	m00, m01, m02 := right.X, fwd.X, realUp.X
	m10, m11, m12 := right.Y, fwd.Y, realUp.Y
	m20, m21, m22 := right.Z, fwd.Z, realUp.Z

	trace := m00 + m11 + m22
	var q quat.Number
	switch {
	case trace > 0:
		s := 0.5 / math.Sqrt(trace+1)
		q = quat.Number{
			Real: 0.25 / s,
			Imag: (m21 - m12) * s,
			Jmag: (m02 - m20) * s,
			Kmag: (m10 - m01) * s,
		}
	case m00 > m11 && m00 > m22:
		s := 2 * math.Sqrt(1+m00-m11-m22)
		q = quat.Number{Real: (m21 - m12) / s, Imag: 0.25 * s, Jmag: (m01 + m10) / s, Kmag: (m02 + m20) / s}
	case m11 > m22:
		s := 2 * math.Sqrt(1+m11-m00-m22)
		q = quat.Number{Real: (m02 - m20) / s, Imag: (m01 + m10) / s, Jmag: 0.25 * s, Kmag: (m12 + m21) / s}
	default:
		s := 2 * math.Sqrt(1+m22-m00-m11)
		q = quat.Number{Real: (m10 - m01) / s, Imag: (m02 + m20) / s, Jmag: (m12 + m21) / s, Kmag: 0.25 * s}
	}
	return Orientation{Q: quat.Scale(1/quat.Abs(q), q)}, nil
}
