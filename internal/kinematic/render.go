package kinematic

import (
	"image"
	"math"

	"github.com/fogleman/gg"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	fieldOfView = 70.0
	nearPlane   = 0.01
	objectSize  = 0.03
)

var (
	cameraTarget   = r3.Vec{X: 0.5, Y: 0, Z: 0.1}
	cameraDistance = 1.25
	tableCorners   = [4]r3.Vec{
		{X: 0.1, Y: -0.6, Z: 0},
		{X: 1.1, Y: -0.6, Z: 0},
		{X: 1.1, Y: 0.6, Z: 0},
		{X: 0.1, Y: 0.6, Z: 0},
	}
)

// camera is a pinhole camera orbiting cameraTarget.
type camera struct {
	eye, right, up, forward r3.Vec
	focal                   float64
	width, height           int
}

// newCamera places a camera by yaw and pitch in degrees, z up.
func newCamera(yaw, pitch float64, width, height int) camera {
	y, p := yaw*math.Pi/180, pitch*math.Pi/180
	forward := r3.Vec{X: math.Cos(p) * math.Cos(y), Y: math.Cos(p) * math.Sin(y), Z: math.Sin(p)}
	eye := r3.Sub(cameraTarget, r3.Scale(cameraDistance, forward))
	right := r3.Unit(r3.Cross(forward, r3.Vec{Z: 1}))
	up := r3.Cross(right, forward)
	return camera{
		eye:     eye,
		right:   right,
		up:      up,
		forward: forward,
		focal:   float64(height) / 2 / math.Tan(fieldOfView*math.Pi/360),
		width:   width,
		height:  height,
	}
}

// project maps a world point to pixel coordinates and its depth.
func (c camera) project(p r3.Vec) (x, y, depth float64, ok bool) {
	d := r3.Sub(p, c.eye)
	depth = r3.Dot(d, c.forward)
	if depth <= nearPlane {
		return 0, 0, depth, false
	}
	x = float64(c.width)/2 + c.focal*r3.Dot(d, c.right)/depth
	y = float64(c.height)/2 - c.focal*r3.Dot(d, c.up)/depth
	return x, y, depth, true
}

func (c camera) render(arm *Arm, object r3.Vec, grasped bool) image.Image {
	dc := gg.NewContext(c.width, c.height)
	dc.SetRGB(0.82, 0.86, 0.92)
	dc.Clear()

	// table
	dc.ClearPath()
	for i, corner := range tableCorners {
		x, y, _, ok := c.project(corner)
		if !ok {
			continue
		}
		if i == 0 {
			dc.MoveTo(x, y)
		} else {
			dc.LineTo(x, y)
		}
	}
	dc.ClosePath()
	dc.SetRGB(0.55, 0.45, 0.35)
	dc.Fill()

	// object
	if x, y, depth, ok := c.project(object); ok {
		dc.DrawCircle(x, y, math.Max(1, c.focal*objectSize/depth))
		dc.SetRGB(0.85, 0.15, 0.1)
		dc.Fill()
	}

	// links
	chain := arm.Chain()
	dc.SetRGB(0.3, 0.3, 0.35)
	dc.SetLineWidth(3)
	for i := 1; i < len(chain); i++ {
		x0, y0, _, ok0 := c.project(chain[i-1])
		x1, y1, _, ok1 := c.project(chain[i])
		if ok0 && ok1 {
			dc.DrawLine(x0, y0, x1, y1)
		}
	}
	dc.Stroke()

	// gripper
	if x, y, _, ok := c.project(chain[len(chain)-1]); ok {
		dc.DrawCircle(x, y, 3)
		if grasped {
			dc.SetRGB(0.1, 0.7, 0.2)
		} else {
			dc.SetRGB(0.95, 0.75, 0.1)
		}
		dc.Fill()
	}

	return dc.Image()
}
