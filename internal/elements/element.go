// Package elements holds the collections the solver advances: vortex
// particles, boundary panels, and high-order Eulerian volumes. All of them
// share the ElementBase substrate: per-dimension SoA position and velocity
// arrays, an optional strength vector, and a movement model.
package elements

import (
	"fmt"
	"math"

	"github.com/san-kum/vortex2d/internal/body"
	"github.com/san-kum/vortex2d/internal/vec"
)

// ElemType says whether a collection owns a free strength, has it solved by
// the BEM from a boundary condition, or carries none at all.
type ElemType uint8

const (
	Active ElemType = iota
	Reactive
	Inert
)

func (e ElemType) String() string {
	switch e {
	case Active:
		return "active"
	case Reactive:
		return "reactive"
	default:
		return "inert"
	}
}

// MoveType says how node positions evolve over a step.
type MoveType uint8

const (
	Lagrangian MoveType = iota
	BodyBound
	Fixed
)

func (m MoveType) String() string {
	switch m {
	case Lagrangian:
		return "lagrangian"
	case BodyBound:
		return "bodybound"
	default:
		return "fixed"
	}
}

// ShapeError reports inconsistent array sizes handed to a collection.
type ShapeError struct {
	What string
	Len  int
	Want int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("shape error: %s has length %d, want a multiple of %d", e.What, e.Len, e.Want)
}

// InvariantError reports a structural invariant violation: a degenerate
// panel, a missing body pointer, an out-of-range node index. These are
// fatal to the simulation.
type InvariantError struct {
	What string
}

func (e *InvariantError) Error() string { return "invariant violated: " + e.What }

// ElementBase is the state shared by every collection kind. Fields are
// exported to the package only; collections embed it.
type ElementBase struct {
	e ElemType
	m MoveType
	b *body.Body

	n int
	x vec.Array2 // node positions
	u vec.Array2 // node velocities
	s vec.Vector // strengths; nil when inert

	// body-frame node positions, kept only for bodybound collections
	ux *vec.Array2
}

func newBase(n int, e ElemType, m MoveType, b *body.Body) ElementBase {
	eb := ElementBase{
		e: e,
		m: m,
		b: b,
		n: n,
		x: vec.NewArray2(n),
		u: vec.NewArray2(n),
	}
	if e != Inert {
		eb.s = vec.New(n)
	}
	return eb
}

func (eb *ElementBase) N() int                   { return eb.n }
func (eb *ElementBase) IsInert() bool            { return eb.e == Inert }
func (eb *ElementBase) ElemType() ElemType       { return eb.e }
func (eb *ElementBase) MoveType() MoveType       { return eb.m }
func (eb *ElementBase) AttachedBody() *body.Body { return eb.b }

func (eb *ElementBase) Pos() *vec.Array2 { return &eb.x }
func (eb *ElementBase) Vel() *vec.Array2 { return &eb.u }

// Str returns the strength vector, or an error for inert collections.
// Strength access on an inert collection is always a caller bug; it must
// never silently read as zero.
func (eb *ElementBase) Str() (vec.Vector, error) {
	if eb.s == nil {
		return nil, &InvariantError{What: "strength requested from an inert collection"}
	}
	return eb.s, nil
}

// MustStr is Str for callers that have already checked IsInert.
func (eb *ElementBase) MustStr() vec.Vector {
	s, err := eb.Str()
	if err != nil {
		panic(err)
	}
	return s
}

// stride returns the packing width AddNew expects: (x,y) for inert
// collections, (x,y,strength,radius) otherwise.
func (eb *ElementBase) stride() int {
	if eb.e == Inert {
		return 2
	}
	return 4
}

// AddNew appends elements from a flat packet.
func (eb *ElementBase) AddNew(flat []float64) error {
	if len(flat) == 0 {
		return nil
	}
	nper := eb.stride()
	if len(flat)%nper != 0 {
		return &ShapeError{What: "element packet", Len: len(flat), Want: nper}
	}
	nnew := len(flat) / nper

	for d := 0; d < vec.Dims; d++ {
		eb.x[d] = vec.Resize(eb.x[d], eb.n+nnew)
		for i := 0; i < nnew; i++ {
			eb.x[d][eb.n+i] = flat[nper*i+d]
		}
	}
	if eb.s != nil {
		eb.s = vec.Resize(eb.s, eb.n+nnew)
		for i := 0; i < nnew; i++ {
			eb.s[eb.n+i] = flat[nper*i+2]
		}
	}
	eb.u.Resize(eb.n + nnew)

	if eb.ux != nil {
		for d := 0; d < vec.Dims; d++ {
			eb.ux[d] = vec.Resize(eb.ux[d], eb.n+nnew)
			copy(eb.ux[d][eb.n:], eb.x[d][eb.n:])
		}
	}

	eb.n += nnew
	return nil
}

// Resize pads positions and strengths with zeros up to n.
func (eb *ElementBase) Resize(n int) {
	if n == eb.n {
		return
	}
	eb.x.Resize(n)
	if eb.s != nil {
		eb.s = vec.Resize(eb.s, n)
	}
	eb.u.Resize(n)
	if eb.ux != nil {
		eb.ux.Resize(n)
	}
	eb.n = n
}

func (eb *ElementBase) ZeroVels() { eb.u.Zero() }

// FinalizeVels folds in the freestream and the 1/(2pi) Biot-Savart kernel
// prefactor. Convection accumulates the unscaled kernel sums.
func (eb *ElementBase) FinalizeVels(fs [2]float64) {
	const factor = 0.5 / math.Pi
	for d := 0; d < vec.Dims; d++ {
		ud := eb.u[d]
		for i := range ud {
			ud[i] = fs[d] + ud[i]*factor
		}
	}
}

// Transform maps the body-frame positions into the world frame at time t.
// A no-op unless the collection is bodybound.
func (eb *ElementBase) Transform(t float64) error {
	if eb.m != BodyBound {
		return nil
	}
	if eb.b == nil || eb.ux == nil {
		return &InvariantError{What: "bodybound collection without body or untransformed positions"}
	}
	pos := eb.b.Pos(t)
	theta := eb.b.Orient(t)
	ct, st := math.Cos(theta), math.Sin(theta)
	for i := 0; i < eb.n; i++ {
		ux, uy := eb.ux[0][i], eb.ux[1][i]
		eb.x[0][i] = pos[0] + ux*ct - uy*st
		eb.x[1][i] = pos[1] + ux*st + uy*ct
	}
	return nil
}

// Move advances positions one step: by the local velocity for lagrangian
// collections, by the rigid transform for bodybound, not at all for fixed.
func (eb *ElementBase) Move(t, dt float64) error {
	switch eb.m {
	case Lagrangian:
		for d := 0; d < vec.Dims; d++ {
			xd, ud := eb.x[d], eb.u[d]
			for i := 0; i < eb.n; i++ {
				xd[i] += dt * ud[i]
			}
		}
		return nil
	case BodyBound:
		return eb.Transform(t + dt)
	default:
		return nil
	}
}

// MoveWeighted blends two velocity evaluations, for second-order stepping.
func (eb *ElementBase) MoveWeighted(t, dt, w1 float64, u1 *vec.Array2, w2 float64, u2 *vec.Array2) error {
	switch eb.m {
	case Lagrangian:
		for d := 0; d < vec.Dims; d++ {
			xd := eb.x[d]
			a, bv := u1[d], u2[d]
			for i := 0; i < eb.n; i++ {
				xd[i] += dt * (w1*a[i] + w2*bv[i])
			}
		}
		return nil
	case BodyBound:
		return eb.Transform(t + dt)
	default:
		return nil
	}
}

// MaxStr returns the peak strength magnitude, or 1 when the collection has
// no strengths at all.
func (eb *ElementBase) MaxStr() float64 {
	if len(eb.s) == 0 {
		return 1.0
	}
	return vec.MaxAbs(eb.s)
}

// TotalCirc sums the strengths. Surfaces override this to scale by panel
// length.
func (eb *ElementBase) TotalCirc(t float64) float64 {
	if eb.s == nil {
		return 0.0
	}
	return vec.Sum(eb.s)
}

func (eb *ElementBase) String() string {
	return fmt.Sprintf("%d %s %s", eb.n, eb.e, eb.m)
}
