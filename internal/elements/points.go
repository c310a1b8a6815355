package elements

import (
	"github.com/san-kum/vortex2d/internal/body"
	"github.com/san-kum/vortex2d/internal/vec"
)

// Points is a cloud of vortex particles (or inert tracers / sample points).
// Active particles carry a signed circulation s[i] and a core radius r[i].
// The optional result arrays (vorticity, streamfunction, velocity gradient)
// are allocated only when a convection pass asks for them.
type Points struct {
	ElementBase

	r vec.Vector // core radii; nil for inert points

	// convection results beyond velocity
	w   vec.Vector    // vorticity at each node
	psi vec.Vector    // streamfunction at each node
	ug  [4]vec.Vector // du/dx, du/dy, dv/dx, dv/dy
}

// NewPoints builds a collection from a flat packet: (x,y) pairs when inert,
// (x,y,strength,radius) quads otherwise.
func NewPoints(flat []float64, e ElemType, m MoveType, b *body.Body) (*Points, error) {
	p := &Points{ElementBase: newBase(0, e, m, b)}
	if b != nil && m == BodyBound {
		ux := vec.NewArray2(0)
		p.ux = &ux
	}
	if e != Inert {
		p.r = vec.New(0)
	}
	if err := p.AddNew(flat); err != nil {
		return nil, err
	}
	return p, nil
}

// AddNew appends elements and, for non-inert points, their radii from the
// fourth packet slot.
func (p *Points) AddNew(flat []float64) error {
	old := p.n
	if err := p.ElementBase.AddNew(flat); err != nil {
		return err
	}
	if p.r != nil {
		p.r = vec.Resize(p.r, p.n)
		for i := old; i < p.n; i++ {
			p.r[i] = flat[4*(i-old)+3]
		}
	}
	p.resizeResults()
	return nil
}

// AddParticles appends (x,y,strength,radius) quads, substituting vdelta for
// any radius slot left at zero. Feature generators leave radii unset and let
// the simulation pick the nominal core size.
func (p *Points) AddParticles(flat []float64, vdelta float64) error {
	if len(flat)%4 != 0 {
		return &ShapeError{What: "particle packet", Len: len(flat), Want: 4}
	}
	if p.e == Inert {
		return &InvariantError{What: "adding particles to an inert collection"}
	}
	old := p.n
	if err := p.ElementBase.AddNew(flat); err != nil {
		return err
	}
	p.r = vec.Resize(p.r, p.n)
	for i := old; i < p.n; i++ {
		rad := flat[4*(i-old)+3]
		if rad == 0 {
			rad = vdelta
		}
		p.r[i] = rad
	}
	p.resizeResults()
	return nil
}

func (p *Points) Resize(n int) {
	old := p.n
	p.ElementBase.Resize(n)
	if p.r != nil {
		p.r = vec.Resize(p.r, n)
		// fresh slots get a unit core until diffusion sets them
		for i := old; i < n; i++ {
			p.r[i] = 1.0
		}
	}
	p.resizeResults()
}

func (p *Points) resizeResults() {
	if p.w != nil {
		p.w = vec.Resize(p.w, p.n)
	}
	if p.psi != nil {
		p.psi = vec.Resize(p.psi, p.n)
	}
	if p.ug[0] != nil {
		for k := range p.ug {
			p.ug[k] = vec.Resize(p.ug[k], p.n)
		}
	}
}

// Rad returns the core radius vector, or an error for inert points.
func (p *Points) Rad() (vec.Vector, error) {
	if p.r == nil {
		return nil, &InvariantError{What: "radius requested from an inert collection"}
	}
	return p.r, nil
}

func (p *Points) MustRad() vec.Vector {
	r, err := p.Rad()
	if err != nil {
		panic(err)
	}
	return r
}

// Vort returns the vorticity result array, allocating it on first use.
func (p *Points) Vort() vec.Vector {
	if p.w == nil {
		p.w = vec.New(p.n)
	}
	return p.w
}

// Psi returns the streamfunction result array, allocating it on first use.
func (p *Points) Psi() vec.Vector {
	if p.psi == nil {
		p.psi = vec.New(p.n)
	}
	return p.psi
}

// VelGrad returns the four velocity-gradient result arrays
// (du/dx, du/dy, dv/dx, dv/dy), allocating them on first use.
func (p *Points) VelGrad() *[4]vec.Vector {
	if p.ug[0] == nil {
		for k := range p.ug {
			p.ug[k] = vec.New(p.n)
		}
	}
	return &p.ug
}

// Remove drops element i by swapping the last element into its slot.
func (p *Points) Remove(i int) {
	last := p.n - 1
	for d := 0; d < vec.Dims; d++ {
		p.x[d][i] = p.x[d][last]
		p.x[d] = p.x[d][:last]
		p.u[d][i] = p.u[d][last]
		p.u[d] = p.u[d][:last]
	}
	if p.s != nil {
		p.s[i] = p.s[last]
		p.s = p.s[:last]
	}
	if p.r != nil {
		p.r[i] = p.r[last]
		p.r = p.r[:last]
	}
	if p.ux != nil {
		for d := 0; d < vec.Dims; d++ {
			p.ux[d][i] = p.ux[d][last]
			p.ux[d] = p.ux[d][:last]
		}
	}
	p.n = last
	p.resizeResults()
}

func (p *Points) isCollection() {}
