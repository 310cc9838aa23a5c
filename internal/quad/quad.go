// Package quad implements the four-corner planar region the tracker follows
// across frames: the projected outline of the slide surface.
package quad

import (
	"math"

	"gocv.io/x/gocv"
)

// Quad is a four-corner polygon given in clockwise winding order starting at
// the top-left corner: (X1,Y1) top-left, (X2,Y2) top-right, (X3,Y3)
// bottom-right, (X4,Y4) bottom-left. Edge normals are precomputed at
// construction so Inside can be evaluated without further allocation.
type Quad struct {
	X1, Y1 float64
	X2, Y2 float64
	X3, Y3 float64
	X4, Y4 float64

	// Outward edge normals for edges (1,2) (2,3) (3,4) (4,1).
	nx1, ny1 float64
	nx2, ny2 float64
	nx3, ny3 float64
	nx4, ny4 float64

	// convex reports whether the four corners form a convex polygon in
	// clockwise order. Inside() is defined only when convex is true.
	convex bool
}

// New builds a Quad from its four corners in clockwise order and precomputes
// edge normals and the convex-clockwise flag.
func New(x1, y1, x2, y2, x3, y3, x4, y4 float64) Quad {
	q := Quad{X1: x1, Y1: y1, X2: x2, Y2: y2, X3: x3, Y3: y3, X4: x4, Y4: y4}
	q.nx1, q.ny1 = edgeNormal(x1, y1, x2, y2)
	q.nx2, q.ny2 = edgeNormal(x2, y2, x3, y3)
	q.nx3, q.ny3 = edgeNormal(x3, y3, x4, y4)
	q.nx4, q.ny4 = edgeNormal(x4, y4, x1, y1)
	q.convex = isConvexClockwise(x1, y1, x2, y2, x3, y3, x4, y4)
	return q
}

// edgeNormal returns the outward-facing unit normal of the directed edge
// a->b for a clockwise polygon in image coordinates (Y grows downward).
func edgeNormal(ax, ay, bx, by float64) (float64, float64) {
	dx, dy := bx-ax, by-ay
	length := math.Hypot(dx, dy)
	if length == 0 {
		return 0, 0
	}
	// Rotate the edge vector -90 degrees to point outward for a clockwise
	// polygon in a Y-down coordinate system.
	return dy / length, -dx / length
}

// isConvexClockwise reports whether the four corners, taken in the given
// order, form a convex polygon traversed clockwise. Ported from the
// cross-product sign test.
func isConvexClockwise(x1, y1, x2, y2, x3, y3, x4, y4 float64) bool {
	xs := [4]float64{x1, x2, x3, x4}
	ys := [4]float64{y1, y2, y3, y4}
	sign := 0
	for i := 0; i < 4; i++ {
		ax, ay := xs[i], ys[i]
		bx, by := xs[(i+1)%4], ys[(i+1)%4]
		cx, cy := xs[(i+2)%4], ys[(i+2)%4]
		cross := (bx-ax)*(cy-by) - (by-ay)*(cx-bx)
		if cross == 0 {
			continue
		}
		s := 1
		if cross < 0 {
			s = -1
		}
		if sign == 0 {
			sign = s
		} else if sign != s {
			return false
		}
	}
	// Clockwise in image coordinates (Y down), e.g. top-left, top-right,
	// bottom-right, bottom-left, gives a positive cross-product sign.
	return sign > 0
}

// Convex reports whether the quad's corners form a convex, clockwise polygon.
func (q Quad) Convex() bool { return q.convex }

// Area returns the polygon's unsigned area via the shoelace formula.
func (q Quad) Area() float64 {
	xs := [4]float64{q.X1, q.X2, q.X3, q.X4}
	ys := [4]float64{q.Y1, q.Y2, q.Y3, q.Y4}
	var sum float64
	for i := 0; i < 4; i++ {
		j := (i + 1) % 4
		sum += xs[i]*ys[j] - xs[j]*ys[i]
	}
	return math.Abs(sum) / 2
}

// Inside reports whether (x, y) lies within the quad. Behavior is undefined
// (but never panics) when the quad is not convex-clockwise: Inside then
// always reports false, matching the "never crashes, simply unreliable"
// contract for degenerate input.
func (q Quad) Inside(x, y float64) bool {
	if !q.convex {
		return false
	}
	return sideOf(q.nx1, q.ny1, q.X1, q.Y1, x, y) &&
		sideOf(q.nx2, q.ny2, q.X2, q.Y2, x, y) &&
		sideOf(q.nx3, q.ny3, q.X3, q.Y3, x, y) &&
		sideOf(q.nx4, q.ny4, q.X4, q.Y4, x, y)
}

// sideOf reports whether point (x,y) is on the inward side of the edge
// whose outward normal is (nx,ny) and which passes through (ex,ey).
func sideOf(nx, ny, ex, ey, x, y float64) bool {
	return nx*(x-ex)+ny*(y-ey) <= 0
}

// Perspective applies a 3x3 homography to the quad's four corners and
// returns the resulting (generally non-rectangular) quad. If the
// homography sends a corner's homogeneous W coordinate to (near) zero, that
// corner collapses to the origin rather than propagating Inf/NaN — this
// mirrors the degenerate-homography sink-to-origin behavior the tracker
// relies on to recognize a broken frame without crashing.
func Perspective(h gocv.Mat, q Quad) Quad {
	corners := [4][2]float64{{q.X1, q.Y1}, {q.X2, q.Y2}, {q.X3, q.Y3}, {q.X4, q.Y4}}
	var out [4][2]float64
	for i, c := range corners {
		out[i] = applyHomography(h, c[0], c[1])
	}
	return New(out[0][0], out[0][1], out[1][0], out[1][1], out[2][0], out[2][1], out[3][0], out[3][1])
}

// ApplyPoint transforms a single (x, y) point through a 3x3 homography
// matrix, exposed so callers can reproject individual keypoint
// correspondences rather than a whole quad's corners.
func ApplyPoint(h gocv.Mat, x, y float64) (float64, float64) {
	out := applyHomography(h, x, y)
	return out[0], out[1]
}

const wEpsilon = 1e-9

// applyHomography transforms a single point through a 3x3 homography
// matrix, dehomogenizing by W. A near-zero W sinks the point to the origin.
func applyHomography(h gocv.Mat, x, y float64) [2]float64 {
	h00 := h.GetDoubleAt(0, 0)
	h01 := h.GetDoubleAt(0, 1)
	h02 := h.GetDoubleAt(0, 2)
	h10 := h.GetDoubleAt(1, 0)
	h11 := h.GetDoubleAt(1, 1)
	h12 := h.GetDoubleAt(1, 2)
	h20 := h.GetDoubleAt(2, 0)
	h21 := h.GetDoubleAt(2, 1)
	h22 := h.GetDoubleAt(2, 2)

	w := h20*x + h21*y + h22
	if math.Abs(w) < wEpsilon {
		return [2]float64{0, 0}
	}
	px := (h00*x + h01*y + h02) / w
	py := (h10*x + h11*y + h12) / w
	return [2]float64{px, py}
}

// FromRect builds the identity quad for an axis-aligned rectangle, the
// canonical reference quad for a slide's own coordinate frame.
func FromRect(width, height float64) Quad {
	return New(0, 0, width, 0, width, height, 0, height)
}
