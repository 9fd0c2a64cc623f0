package kinematic

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// NumJoints is the number of revolute joints of the arm.
const NumJoints = 7

// jointStep is the joint displacement in radians for a unit action.
const jointStep = 0.05

var (
	// rotation axis of each joint, kuka-style alternating z/y
	jointAxes = [NumJoints]byte{'z', 'y', 'z', 'y', 'z', 'y', 'z'}
	// offset along the local z axis following each joint
	linkLengths = [NumJoints]float64{0.34, 0, 0.40, 0, 0.40, 0, 0.13}
	jointLimits = [NumJoints]float64{2.96, 2.09, 2.96, 2.09, 2.96, 2.09, 3.05}
	homePose    = [NumJoints]float64{0, 0.5, 0, 1.3, 0, 0.8, 0}
)

// Arm is a serial 7-joint manipulator mounted at the origin.
type Arm struct {
	Joints [NumJoints]float64
}

// Home moves every joint to the rest pose.
func (a *Arm) Home() {
	a.Joints = homePose
}

// Apply moves each joint by action[i] unit steps, clamped to [-1, 1] per
// joint and to the joint limits.
func (a *Arm) Apply(action []float64) {
	for i := 0; i < NumJoints && i < len(action); i++ {
		u := math.Max(-1, math.Min(1, action[i]))
		limit := jointLimits[i]
		a.Joints[i] = math.Max(-limit, math.Min(limit, a.Joints[i]+u*jointStep))
	}
}

// Chain returns the base followed by the position after each joint's link.
// The last element is the end effector.
func (a *Arm) Chain() []r3.Vec {
	points := make([]r3.Vec, 0, NumJoints+1)
	points = append(points, r3.Vec{})

	frame := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	pos := mat.NewVecDense(3, nil)
	for i := 0; i < NumJoints; i++ {
		var next mat.Dense
		next.Mul(frame, rotation(jointAxes[i], a.Joints[i]))
		frame = &next

		if linkLengths[i] == 0 {
			continue
		}
		var offset mat.VecDense
		offset.MulVec(frame, mat.NewVecDense(3, []float64{0, 0, linkLengths[i]}))
		pos.AddVec(pos, &offset)
		points = append(points, r3.Vec{X: pos.AtVec(0), Y: pos.AtVec(1), Z: pos.AtVec(2)})
	}
	return points
}

// EndEffector returns the tip position.
func (a *Arm) EndEffector() r3.Vec {
	chain := a.Chain()
	return chain[len(chain)-1]
}

func rotation(axis byte, theta float64) *mat.Dense {
	c, s := math.Cos(theta), math.Sin(theta)
	switch axis {
	case 'z':
		return mat.NewDense(3, 3, []float64{
			c, -s, 0,
			s, c, 0,
			0, 0, 1,
		})
	case 'y':
		return mat.NewDense(3, 3, []float64{
			c, 0, s,
			0, 1, 0,
			-s, 0, c,
		})
	default:
		return mat.NewDense(3, 3, []float64{
			1, 0, 0,
			0, c, -s,
			0, s, c,
		})
	}
}
