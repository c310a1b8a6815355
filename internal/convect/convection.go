package convect

import (
	"math"
	"runtime"
	"sync"

	"github.com/san-kum/vortex2d/internal/elements"
	"github.com/san-kum/vortex2d/internal/vec"
)

// Convection drives the source-on-target influence summation. It remembers
// which fixed targets it has already evaluated so repeated calls within a
// step do not redo work; force bypasses that.
type Convection struct {
	Workers int

	computed map[elements.Collection]bool
}

func New() *Convection {
	return &Convection{
		Workers:  runtime.NumCPU(),
		computed: make(map[elements.Collection]bool),
	}
}

// Reset forgets which fixed targets have been evaluated. Call when the
// source field changes between steps.
func (c *Convection) Reset() {
	c.computed = make(map[elements.Collection]bool)
}

// FindVels computes the fields selected by mode at every target node (panel
// centers for surfaces) from all particle and panel sources, then finalizes
// with the freestream.
func (c *Convection) FindVels(fs [2]float64, vort, bdry, targets []elements.Collection, mode Mode, force bool) error {
	for _, tgt := range targets {
		if tgt.MoveType() == elements.Fixed && c.computed[tgt] && !force {
			continue
		}
		switch t := tgt.(type) {
		case *elements.Points:
			c.pointsTarget(fs, vort, bdry, t, mode)
		case *elements.Surfaces:
			c.surfacesTarget(fs, vort, bdry, t, mode)
		default:
			return &elements.InvariantError{What: "volumes cannot be convection targets; evaluate their sample points"}
		}
		if tgt.MoveType() == elements.Fixed {
			c.computed[tgt] = true
		}
	}
	return nil
}

func (c *Convection) pointsTarget(fs [2]float64, vort, bdry []elements.Collection, tgt *elements.Points, mode Mode) {
	n := tgt.N()
	tgt.ZeroVels()
	pos := tgt.Pos()
	vel := tgt.Vel()

	var w, psi vec.Vector
	var ug *[4]vec.Vector
	if mode.ComputeVort() {
		w = tgt.Vort()
		vec.Zero(w)
	}
	if mode.ComputePsi() {
		psi = tgt.Psi()
		vec.Zero(psi)
	}
	if mode.ComputeGrad() {
		ug = tgt.VelGrad()
		for k := range ug {
			vec.Zero(ug[k])
		}
	}

	c.parallelFor(n, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			var out PointResult
			accumAllSources(pos[0][i], pos[1][i], vort, bdry, mode, &out)
			vel[0][i] = out.U
			vel[1][i] = out.V
			if w != nil {
				w[i] = out.W
			}
			if psi != nil {
				psi[i] = out.Psi
			}
			if ug != nil {
				ug[0][i] = out.DUDX
				ug[1][i] = out.DUDY
				ug[2][i] = out.DVDX
				ug[3][i] = out.DVDY
			}
		}
	})

	tgt.FinalizeVels(fs)
	scaleDerived(psi, ug)
}

func (c *Convection) surfacesTarget(fs [2]float64, vort, bdry []elements.Collection, tgt *elements.Surfaces, mode Mode) {
	np := tgt.NPanels()
	tgt.ZeroVels()
	pu := tgt.Vel()

	c.parallelFor(np, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			xc, yc := tgt.PanelCenter(i)
			var out PointResult
			accumAllSources(xc, yc, vort, bdry, mode, &out)
			pu[0][i] = out.U
			pu[1][i] = out.V
		}
	})

	tgt.FinalizeVels(fs)
}

// accumAllSources sums every particle and panel source at one target point.
func accumAllSources(tx, ty float64, vort, bdry []elements.Collection, mode Mode, out *PointResult) {
	for _, src := range vort {
		accumSource(tx, ty, src, mode, out)
	}
	for _, src := range bdry {
		accumSource(tx, ty, src, mode, out)
	}
}

func accumSource(tx, ty float64, src elements.Collection, mode Mode, out *PointResult) {
	if src.IsInert() {
		return
	}
	switch s := src.(type) {
	case *elements.Points:
		pos := s.Pos()
		str := s.MustStr()
		rad := s.MustRad()
		for j := 0; j < s.N(); j++ {
			accumPoint(tx, ty, pos[0][j], pos[1][j], str[j], rad[j], mode, out)
		}
	case *elements.Surfaces:
		accumPanels(tx, ty, s, mode, out)
	}
}

func accumPanels(tx, ty float64, s *elements.Surfaces, mode Mode, out *PointResult) {
	pos := s.Pos()
	idx := s.Idx()
	ps := s.MustStr()
	bc0 := s.VortexBC()
	rs1 := s.RotSrcStr()
	ssrc := s.SolvedSourceStr()
	reactive := s.ElemType() == elements.Reactive
	for j := 0; j < s.NPanels(); j++ {
		i0, i1 := idx[2*j], idx[2*j+1]
		x0, y0 := pos[0][i0], pos[1][i0]
		x1, y1 := pos[0][i1], pos[1][i1]

		gamma := ps[j]
		if reactive && bc0 != nil {
			gamma += bc0[j]
		}
		sigma := 0.0
		if rs1 != nil {
			sigma += rs1[j]
		}
		if ssrc != nil {
			sigma += ssrc[j]
		}
		if gamma != 0 {
			u, v := VortexPanel(x0, y0, x1, y1, tx, ty)
			out.U += gamma * u
			out.V += gamma * v
		}
		if sigma != 0 {
			u, v := SourcePanel(x0, y0, x1, y1, tx, ty)
			out.U += sigma * u
			out.V += sigma * v
		}
	}
}

// scaleDerived applies the 1/(2pi) prefactor to the streamfunction and
// gradient results; FinalizeVels already handled the velocities, and the
// vorticity kernel is exact as accumulated.
func scaleDerived(psi vec.Vector, ug *[4]vec.Vector) {
	const factor = 0.5 / math.Pi
	if psi != nil {
		for i := range psi {
			psi[i] *= factor
		}
	}
	if ug != nil {
		for k := range ug {
			for i := range ug[k] {
				ug[k][i] *= factor
			}
		}
	}
}

// parallelFor splits [0,n) across workers. Targets are independent rows, so
// this is safe for every accumulation above.
func (c *Convection) parallelFor(n int, fn func(lo, hi int)) {
	nw := c.Workers
	if nw < 1 {
		nw = 1
	}
	if n < 64 || nw == 1 {
		fn(0, n)
		return
	}
	chunk := (n + nw - 1) / nw
	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += chunk {
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			fn(lo, hi)
		}(lo, hi)
	}
	wg.Wait()
}
