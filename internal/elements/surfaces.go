package elements

import (
	"fmt"
	"math"

	"github.com/san-kum/vortex2d/internal/body"
	"github.com/san-kum/vortex2d/internal/vec"
)

// BCSet selects which boundary-condition unknowns a reactive surface solves
// for: a tangential (vortex) strength, a normal (source) strength, or both.
type BCSet struct {
	Vortex bool
	Source bool
}

// DefaultBCSet solves for vortex strengths only.
var DefaultBCSet = BCSet{Vortex: true}

// Surfaces is a set of straight panels between nodes of an open or closed
// boundary. Node state (x, u, ux) lives in the embedded base; everything
// panel-wise is stored here. Walking a panel from node 0 to node 1 keeps the
// fluid on the left.
type Surfaces struct {
	ElementBase

	np  int     // number of panels
	idx []int32 // 2 node indices per panel

	area vec.Vector
	b    [2]vec.Array2 // b[0] unit tangent, b[1] unit normal (into the fluid)
	pu   vec.Array2    // velocities at panel centers

	ps   vec.Vector    // panel strengths per unit length; nil when inert
	ssrc vec.Vector    // solved source strengths, only when both BC kinds are unknown
	bc   [2]vec.Vector // boundary conditions (vortex, source); reactive only
	rs   [2]vec.Vector // rotation-induced vortex/source strengths

	istart int // first row of this surface in the global BEM system

	vol      float64    // enclosed signed area
	utc, tc  [2]float64 // untransformed / transformed geometric center

	solvedOmega     float64 // rotation rate from the augmented BEM row
	omegaError      float64
	thisOmega       float64 // rotation rate at the most recent shedding event
	reabsorbedGamma float64

	maxStrength float64 // smoothed peak strength
}

// NewSurfaces builds a panel collection. x holds packed node coordinates,
// idx two node indices per panel, and val one value per panel: a fixed
// strength for active surfaces, a boundary condition for reactive ones
// (assigned to every selected BC kind), ignored for inert.
func NewSurfaces(x []float64, idx []int32, val []float64, e ElemType, m MoveType, b *body.Body, bcs BCSet) (*Surfaces, error) {
	if len(idx)%2 != 0 {
		return nil, &ShapeError{What: "panel index array", Len: len(idx), Want: 2}
	}
	if len(x)%vec.Dims != 0 {
		return nil, &ShapeError{What: "node position array", Len: len(x), Want: vec.Dims}
	}
	np := len(idx) / 2
	nnodes := len(x) / vec.Dims

	s := &Surfaces{
		ElementBase: newBase(0, e, m, b),
		vol:         -1.0,
		maxStrength: -1.0,
	}
	if b != nil {
		ux := vec.NewArray2(0)
		s.ux = &ux
	}
	if np == 0 {
		if e != Inert {
			s.ps = vec.New(0)
		}
		return s, nil
	}
	if np > 0 && len(val)%np != 0 {
		return nil, &ShapeError{What: "panel value array", Len: len(val), Want: np}
	}

	for d := 0; d < vec.Dims; d++ {
		s.x[d] = vec.Resize(s.x[d], nnodes)
		for i := 0; i < nnodes; i++ {
			s.x[d][i] = x[vec.Dims*i+d]
		}
	}
	if s.ux != nil {
		*s.ux = s.x.Clone()
	}

	s.idx = make([]int32, len(idx))
	for i, id := range idx {
		if int(id) >= nnodes {
			return nil, &InvariantError{What: fmt.Sprintf("panel node index %d out of range (have %d nodes)", id, nnodes)}
		}
		s.idx[i] = id
	}

	if err := s.ComputeBases(np); err != nil {
		return nil, err
	}

	switch e {
	case Active:
		s.ps = vec.New(np)
		copy(s.ps, val)
	case Reactive:
		if bcs.Vortex {
			s.bc[0] = vec.New(np)
			copy(s.bc[0], val)
		}
		if bcs.Source {
			s.bc[1] = vec.New(np)
			copy(s.bc[1], val)
		}
		s.ps = vec.New(np)
	case Inert:
		// value ignored
	}

	s.u.Resize(nnodes)
	s.pu.Resize(np)

	s.n = nnodes
	s.np = np

	if m == BodyBound {
		if err := s.SetGeomCenter(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Surfaces) NPanels() int          { return s.np }
func (s *Surfaces) Idx() []int32          { return s.idx }
func (s *Surfaces) Area() vec.Vector      { return s.area }
func (s *Surfaces) Tang() *vec.Array2     { return &s.b[0] }
func (s *Surfaces) Norm() *vec.Array2     { return &s.b[1] }
func (s *Surfaces) Vol() float64          { return s.vol }
func (s *Surfaces) GeomCenter() [2]float64 { return s.tc }

// Vel returns the panel-center velocities. Node velocities on a surface are
// never what a caller wants; panel centers are where BCs are enforced.
func (s *Surfaces) Vel() *vec.Array2 { return &s.pu }

func (s *Surfaces) Str() (vec.Vector, error) {
	if s.ps == nil {
		return nil, &InvariantError{What: "strength requested from an inert surface"}
	}
	return s.ps, nil
}

func (s *Surfaces) MustStr() vec.Vector {
	str, err := s.Str()
	if err != nil {
		panic(err)
	}
	return str
}

// HasVortexBC and HasSourceBC report which unknowns this surface carries.
func (s *Surfaces) HasVortexBC() bool { return s.bc[0] != nil }
func (s *Surfaces) HasSourceBC() bool { return s.bc[1] != nil }

func (s *Surfaces) VortexBC() vec.Vector { return s.bc[0] }
func (s *Surfaces) SourceBC() vec.Vector { return s.bc[1] }

func (s *Surfaces) HasRotSrcStr() bool     { return s.rs[1] != nil }
func (s *Surfaces) RotVortStr() vec.Vector { return s.rs[0] }
func (s *Surfaces) RotSrcStr() vec.Vector  { return s.rs[1] }

// PanelCenter returns the midpoint of panel i.
func (s *Surfaces) PanelCenter(i int) (float64, float64) {
	i0, i1 := s.idx[2*i], s.idx[2*i+1]
	return 0.5 * (s.x[0][i0] + s.x[0][i1]), 0.5 * (s.x[1][i0] + s.x[1][i1])
}

// ComputeBases recomputes panel areas and the tangent/normal basis for the
// first np panels. Idempotent; call whenever node positions change. The unit
// tangent runs from node 0 to node 1 and the normal is its 90-degree CCW
// rotation, pointing into the fluid.
func (s *Surfaces) ComputeBases(np int) error {
	if 2*np != len(s.idx) {
		return &ShapeError{What: "panel index array", Len: len(s.idx), Want: 2 * np}
	}
	for k := 0; k < 2; k++ {
		s.b[k].Resize(np)
	}
	s.area = vec.Resize(s.area, np)

	for i := 0; i < np; i++ {
		i0, i1 := s.idx[2*i], s.idx[2*i+1]
		dx := s.x[0][i1] - s.x[0][i0]
		dy := s.x[1][i1] - s.x[1][i0]
		length := math.Sqrt(dx*dx + dy*dy)
		if length <= 0 || math.IsNaN(length) {
			return &InvariantError{What: fmt.Sprintf("panel %d has zero length (nodes %d,%d)", i, i0, i1)}
		}
		tx, ty := dx/length, dy/length
		s.area[i] = length
		s.b[0][0][i] = tx
		s.b[0][1][i] = ty
		s.b[1][0][i] = -ty
		s.b[1][1][i] = tx
	}
	return nil
}

// SetGeomCenter finds the geometric center and enclosed signed area of the
// boundary by summing triangles from the origin to each panel, areas from
// Heron's formula and signs from the winding.
func (s *Surfaces) SetGeomCenter() error {
	if s.AttachedBody() == nil || s.ux == nil {
		return &InvariantError{What: "geometric center needs an attached body"}
	}
	ux := s.ux

	asum, xsum, ysum := 0.0, 0.0, 0.0
	for i := 0; i < s.np; i++ {
		j, jp1 := s.idx[2*i], s.idx[2*i+1]
		xc := (ux[0][j] + ux[0][jp1]) / 3.0
		yc := (ux[1][j] + ux[1][jp1]) / 3.0
		panelx := ux[0][jp1] - ux[0][j]
		panely := ux[1][jp1] - ux[1][j]
		a := math.Hypot(ux[0][j], ux[1][j])
		b := math.Hypot(panelx, panely)
		c := math.Hypot(ux[0][jp1], ux[1][jp1])
		hs := 0.5 * (a + b + c)
		area := math.Sqrt(math.Max(0, hs*(hs-a)*(hs-b)*(hs-c)))
		if ux[1][j]*panelx-ux[0][j]*panely < 0 {
			area = -area
		}
		asum += area
		xsum += xc * area
		ysum += yc * area
	}
	s.vol = asum
	if asum != 0 {
		s.utc[0] = xsum / asum
		s.utc[1] = ysum / asum
	}
	return nil
}

// Transform maps the body-frame nodes into the world frame at time t and
// recomputes the panel bases and the transformed geometric center.
func (s *Surfaces) Transform(t float64) error {
	if err := s.ElementBase.Transform(t); err != nil {
		return err
	}
	if err := s.ComputeBases(s.np); err != nil {
		return err
	}
	if bd := s.AttachedBody(); bd != nil && s.m == BodyBound {
		pos := bd.Pos(t)
		theta := bd.Orient(t)
		ct, st := math.Cos(theta), math.Sin(theta)
		s.tc[0] = pos[0] + s.utc[0]*ct - s.utc[1]*st
		s.tc[1] = pos[1] + s.utc[0]*st + s.utc[1]*ct
	} else {
		s.tc = s.utc
	}
	return nil
}

func (s *Surfaces) Move(t, dt float64) error {
	if s.m == BodyBound {
		return s.Transform(t + dt)
	}
	return s.ElementBase.Move(t, dt)
}

func (s *Surfaces) ZeroVels() {
	s.pu.Zero()
	s.ElementBase.ZeroVels()
}

func (s *Surfaces) FinalizeVels(fs [2]float64) {
	const factor = 0.5 / math.Pi
	for d := 0; d < vec.Dims; d++ {
		pud := s.pu[d]
		for i := range pud {
			pud[i] = fs[d] + pud[i]*factor
		}
	}
	s.ElementBase.FinalizeVels(fs)
}

// AddNew appends nodes and panels, offsetting the incoming node indices past
// the existing nodes. val carries one boundary condition per new panel.
func (s *Surfaces) AddNew(x []float64, idx []int32, val []float64) error {
	if len(idx)%2 != 0 {
		return &ShapeError{What: "panel index array", Len: len(idx), Want: 2}
	}
	nsurfs := len(idx) / 2
	if nsurfs == 0 {
		return nil
	}
	if len(x)%vec.Dims != 0 {
		return &ShapeError{What: "node position array", Len: len(x), Want: vec.Dims}
	}
	if len(val)%nsurfs != 0 {
		return &ShapeError{What: "panel value array", Len: len(val), Want: nsurfs}
	}
	nnold := s.n
	neold := s.np
	nnodes := len(x) / vec.Dims

	for d := 0; d < vec.Dims; d++ {
		s.x[d] = vec.Resize(s.x[d], nnold+nnodes)
		for i := 0; i < nnodes; i++ {
			s.x[d][nnold+i] = x[vec.Dims*i+d]
		}
	}
	if s.ux != nil {
		for d := 0; d < vec.Dims; d++ {
			s.ux[d] = vec.Resize(s.ux[d], nnold+nnodes)
			copy(s.ux[d][nnold:], s.x[d][nnold:])
		}
	}

	for i := 0; i < 2*nsurfs; i++ {
		if int(idx[i]) >= nnodes {
			return &InvariantError{What: fmt.Sprintf("panel node index %d out of range (adding %d nodes)", idx[i], nnodes)}
		}
		s.idx = append(s.idx, int32(nnold)+idx[i])
	}

	if err := s.ComputeBases(neold + nsurfs); err != nil {
		return err
	}

	switch s.e {
	case Active:
		s.ps = vec.Resize(s.ps, neold+nsurfs)
	case Reactive:
		for k := 0; k < 2; k++ {
			if s.bc[k] != nil {
				s.bc[k] = append(s.bc[k], val...)
			}
		}
		s.ps = vec.Resize(s.ps, neold+nsurfs)
	}

	s.u.Resize(nnold + nnodes)
	s.pu.Resize(neold + nsurfs)

	s.n += nnodes
	s.np += nsurfs

	if s.m == BodyBound {
		return s.SetGeomCenter()
	}
	return nil
}

// row layout in the global BEM system

func (s *Surfaces) SetFirstRow(i int) { s.istart = i }
func (s *Surfaces) FirstRow() int     { return s.istart }

func (s *Surfaces) NumUnknownsPerPanel() int {
	n := 0
	if s.bc[0] != nil {
		n++
	}
	if s.bc[1] != nil {
		n++
	}
	return n
}

func (s *Surfaces) NumRows() int {
	n := s.np * s.NumUnknownsPerPanel()
	if s.IsAugmented() {
		n++
	}
	return n
}

func (s *Surfaces) NextRow() int { return s.istart + s.NumRows() }

// IsAugmented reports whether this surface contributes an extra unknown (the
// body rotation rate) to the BEM. Only reactive surfaces attached to a
// non-ground body that bound an external flow (vol > 0) are augmented.
func (s *Surfaces) IsAugmented() bool {
	if s.e != Reactive {
		return false
	}
	bd := s.AttachedBody()
	if bd == nil || bd.IsGround() {
		return false
	}
	return s.vol > 0
}

func (s *Surfaces) SolvedOmega() float64 { return s.solvedOmega }
func (s *Surfaces) OmegaError() float64  { return s.omegaError }

// SetStr assigns the solved strengths from the BEM. For augmented surfaces
// the trailing entry of in is the solved rotation rate; it is popped and
// stored before the strengths are copied. Only total replacement is
// supported: offset must be 0 and count must cover every panel unknown.
func (s *Surfaces) SetStr(offset, count int, in vec.Vector) error {
	if s.ps == nil {
		return &InvariantError{What: "setting strengths on an inert surface"}
	}
	if offset != 0 {
		return &ShapeError{What: "strength offset", Len: offset, Want: 0}
	}
	if count != len(in) {
		return &ShapeError{What: "strength count", Len: count, Want: len(in)}
	}
	if s.IsAugmented() {
		if len(in) == 0 {
			return &ShapeError{What: "solved strength vector", Len: 0, Want: len(s.ps) + 1}
		}
		s.solvedOmega = in[len(in)-1]
		s.omegaError = s.solvedOmega - s.AttachedBody().RotVel(0)
		in = in[:len(in)-1]
	}
	switch len(in) {
	case len(s.ps):
		copy(s.ps, in)
	case 2 * len(s.ps):
		// both BC kinds unknown: vortex strengths first, then source
		copy(s.ps, in[:len(s.ps)])
		s.ssrc = vec.Resize(s.ssrc, len(s.ps))
		copy(s.ssrc, in[len(s.ps):])
	default:
		return &ShapeError{What: "solved strength vector", Len: len(in), Want: len(s.ps)}
	}
	return nil
}

// SolvedSourceStr returns the solved source strengths, present only when
// the surface carries both BC kinds.
func (s *Surfaces) SolvedSourceStr() vec.Vector { return s.ssrc }

// AddBodyMotion adds the body's translational velocity and its rotational
// velocity about the geometric center to every panel-center velocity.
func (s *Surfaces) AddBodyMotion(factor, t float64) error {
	bd := s.AttachedBody()
	if bd == nil || bd.IsGround() {
		return nil
	}
	if s.vol <= 0 {
		return &InvariantError{What: "body motion requested before transformed center is valid (vol <= 0)"}
	}
	vel := bd.Vel(t)
	rotvel := bd.RotVel(t)
	for i := 0; i < s.np; i++ {
		for d := 0; d < vec.Dims; d++ {
			s.pu[d][i] += factor * vel[d]
		}
		xc, yc := s.PanelCenter(i)
		s.pu[0][i] -= factor * rotvel * (yc - s.tc[1])
		s.pu[1][i] += factor * rotvel * (xc - s.tc[0])
	}
	return nil
}

// AddRotStrengths imposes the strengths induced by the body rotating at its
// current rate, scaled by factor.
func (s *Surfaces) AddRotStrengths(factor float64) error {
	bd := s.AttachedBody()
	if bd == nil {
		return nil
	}
	return s.addRotStrengthsBase(factor * bd.RotVel(0))
}

// AddUnitRotStrengths imposes the strengths for a unit rotation rate; used
// to build the augmentation column of the influence matrix.
func (s *Surfaces) AddUnitRotStrengths() error {
	return s.addRotStrengthsBase(1.0)
}

// AddSolvedRotStrengths imposes the strengths for the BEM-solved rotation
// rate, falling back to the prescribed rate when not augmented.
func (s *Surfaces) AddSolvedRotStrengths(factor float64) error {
	if s.IsAugmented() {
		return s.addRotStrengthsBase(factor * s.solvedOmega)
	}
	return s.AddRotStrengths(factor)
}

// addRotStrengthsBase decomposes the rigid rotation velocity at each panel
// center against the panel basis and accumulates the vortex part into ps and
// rs[0] and the source part into rs[1]. Works in untransformed coordinates.
func (s *Surfaces) addRotStrengthsBase(factor float64) error {
	bd := s.AttachedBody()
	if bd == nil || s.ps == nil || bd.IsGround() {
		return nil
	}
	if s.vol <= 0 {
		return &InvariantError{What: "rotation strengths requested before geometric center is valid (vol <= 0)"}
	}
	for k := 0; k < 2; k++ {
		if s.rs[k] == nil {
			s.rs[k] = vec.New(s.np)
		} else {
			s.rs[k] = vec.Resize(s.rs[k], s.np)
		}
	}
	if len(s.ps) != s.np {
		return &ShapeError{What: "panel strength array", Len: len(s.ps), Want: s.np}
	}
	ux := s.ux
	for i := 0; i < s.np; i++ {
		j, jp1 := s.idx[2*i], s.idx[2*i+1]
		dx := 0.5*(ux[0][j]+ux[0][jp1]) - s.utc[0]
		dy := 0.5*(ux[1][j]+ux[1][jp1]) - s.utc[1]
		ui := -factor * dy
		vi := factor * dx

		panelx := (ux[0][jp1] - ux[0][j]) / s.area[i]
		panely := (ux[1][jp1] - ux[1][j]) / s.area[i]

		vort := -(ui*panelx + vi*panely)
		s.ps[i] += vort
		s.rs[0][i] += vort

		src := -(ui*panely - vi*panelx)
		s.rs[1][i] += src
	}
	return nil
}

func (s *Surfaces) ZeroStrengths() {
	if s.ps != nil {
		vec.Zero(s.ps)
	}
	for k := 0; k < 2; k++ {
		if s.rs[k] != nil {
			vec.Zero(s.rs[k])
		}
	}
}

// RepresentAsParticles converts each panel into a particle at its center
// pushed offset into the fluid along the normal, with strength equal to the
// total panel circulation. Diffusion sheds boundary vorticity this way.
func (s *Surfaces) RepresentAsParticles(offset, vdelta float64) []float64 {
	px := make([]float64, 4*s.np)
	for i := 0; i < s.np; i++ {
		xc, yc := s.PanelCenter(i)
		px[4*i+0] = xc + offset*s.b[1][0][i]
		px[4*i+1] = yc + offset*s.b[1][1][i]
		str := s.ps[i]
		if s.e == Reactive && s.bc[0] != nil {
			str += s.bc[0][i]
		}
		px[4*i+2] = str * s.area[i]
		px[4*i+3] = vdelta
	}
	return px
}

// MaxStr returns the peak panel strength magnitude, or 1 when inert.
func (s *Surfaces) MaxStr() float64 {
	if s.ps == nil {
		return 1.0
	}
	return vec.MaxAbs(s.ps)
}

// UpdateMaxStr folds the current peak into the smoothed running value.
func (s *Surfaces) UpdateMaxStr() {
	m := s.MaxStr()
	if s.maxStrength < 0 {
		s.maxStrength = m
	} else {
		s.maxStrength = 0.1*m + 0.9*s.maxStrength
	}
}

func (s *Surfaces) MaxBCValue() float64 {
	if s.e != Reactive {
		return 0.0
	}
	m := 0.0
	for k := 0; k < 2; k++ {
		if s.bc[k] != nil {
			if v := vec.MaxAbs(s.bc[k]); v > m {
				m = v
			}
		}
	}
	return m
}

// TotalCirc sums the sheet strength times panel length.
func (s *Surfaces) TotalCirc(t float64) float64 {
	if s.ps == nil {
		return 0.0
	}
	circ := 0.0
	for i := 0; i < s.np; i++ {
		circ += s.ps[i] * s.area[i]
	}
	return circ
}

// BodyCirc is the circulation bound in the rotating body: 2 * vol * omega.
func (s *Surfaces) BodyCirc(t float64) float64 {
	if bd := s.AttachedBody(); bd != nil {
		return 2.0 * s.vol * bd.RotVel(t)
	}
	return 0.0
}

func (s *Surfaces) LastBodyCirc() float64      { return 2.0 * s.vol * s.thisOmega }
func (s *Surfaces) LastBodyCircError() float64 { return 2.0 * s.vol * s.omegaError }

// ResetAugmentationVars latches the body's rotation rate and clears the
// reabsorbed-circulation accumulator; call at each shedding event.
func (s *Surfaces) ResetAugmentationVars() {
	if bd := s.AttachedBody(); bd != nil {
		s.thisOmega = bd.RotVel(0)
	}
	s.reabsorbedGamma = 0.0
}

func (s *Surfaces) AddToReabsorbed(circ float64) { s.reabsorbedGamma += circ }
func (s *Surfaces) Reabsorbed() float64          { return s.reabsorbedGamma }

// TotalImpulse integrates the first moment of the shed-equivalent vorticity.
func (s *Surfaces) TotalImpulse() [2]float64 {
	var imp [2]float64
	if s.ps == nil {
		return imp
	}
	pts := s.RepresentAsParticles(0.0, 1.0)
	for i := 0; i < s.np; i++ {
		imp[0] -= pts[4*i+2] * pts[4*i+1]
		imp[1] += pts[4*i+2] * pts[4*i+0]
	}
	return imp
}

func (s *Surfaces) String() string {
	return fmt.Sprintf("%d panels, %s", s.np, s.ElementBase.String())
}

func (s *Surfaces) isCollection() {}
