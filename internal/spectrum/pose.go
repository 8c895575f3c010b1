package spectrum

import "github.com/go-gl/mathgl/mgl64"

// Vec3 is the point type handed to sinks.
type Vec3 = mgl64.Vec3

// Pose places the plot in world space.
type Pose struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
	Scale    mgl64.Vec3
}

// IdentityPose sits at the origin with no rotation and unit scale.
func IdentityPose() Pose {
	return Pose{
		Rotation: mgl64.QuatIdent(),
		Scale:    mgl64.Vec3{1, 1, 1},
	}
}

// Apply scales local component-wise, rotates it and translates it.
func (p Pose) Apply(local mgl64.Vec3) mgl64.Vec3 {
	scaled := mgl64.Vec3{local[0] * p.Scale[0], local[1] * p.Scale[1], local[2] * p.Scale[2]}
	return p.Position.Add(p.Rotation.Rotate(scaled))
}

// Anchor supplies the owning object's pose each tick.
type Anchor interface {
	Pose() Pose
}

// AnchorFunc adapts a function to Anchor.
type AnchorFunc func() Pose

func (f AnchorFunc) Pose() Pose { return f() }

// Fixed returns an Anchor that always reports p.
func Fixed(p Pose) Anchor {
	return AnchorFunc(func() Pose { return p })
}
