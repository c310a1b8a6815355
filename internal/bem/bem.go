// Package bem assembles and solves the dense boundary-element system that
// produces panel strengths. One row per panel boundary condition, plus one
// augmentation row per rotating body whose rotation rate is solved
// alongside the strengths.
//
// Boundary conditions are enforced on the body side of each sheet, the
// interior-continuation form: the flow extended inside the body must move
// with it. The slip that remains on the fluid side is exactly the vorticity
// that diffusion later sheds from the surface.
package bem

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/vortex2d/internal/convect"
	"github.com/san-kum/vortex2d/internal/elements"
	"github.com/san-kum/vortex2d/internal/vec"
)

// SolverError reports that the iterative solve did not reach tolerance.
// Callers may react by shrinking the time step.
type SolverError struct {
	Residual float64
	Tol      float64
}

func (e *SolverError) Error() string {
	return fmt.Sprintf("bem: solver stalled at relative residual %.3e (tol %.3e)", e.Residual, e.Tol)
}

// Solver holds the assembled influence operator and the solve settings.
// The matrix is cached between calls and rebuilt when the panel geometry
// changes (signalled via Invalidate or a changed row count).
type Solver struct {
	SolverType     string // "fgmres"
	Preconditioner string // "none"
	Tol            float64
	Restart        int

	a     *mat.Dense
	nrows int
	valid bool
}

func NewSolver() *Solver {
	return &Solver{
		SolverType:     "fgmres",
		Preconditioner: "none",
		Tol:            1e-8,
		Restart:        30,
	}
}

// Invalidate forces a matrix reassembly on the next solve. Call after any
// boundary moves or panels are added.
func (s *Solver) Invalidate() { s.valid = false }

// reactiveSurfaces packs the row layout across all reactive surfaces and
// returns them with the total row count.
func reactiveSurfaces(bdry []elements.Collection) ([]*elements.Surfaces, int) {
	var surfs []*elements.Surfaces
	next := 0
	for _, coll := range bdry {
		surf, ok := coll.(*elements.Surfaces)
		if !ok || surf.ElemType() != elements.Reactive {
			continue
		}
		surf.SetFirstRow(next)
		next = surf.NextRow()
		surfs = append(surfs, surf)
	}
	return surfs, next
}

// Solve runs the full pipeline: recompute the RHS from the current particle
// field, freestream, and body motion; reassemble the influence matrix if
// needed; solve; and scatter the strengths back into each surface.
func (s *Solver) Solve(t float64, fs [2]float64, conv *convect.Convection, vort, bdry []elements.Collection) error {
	surfs, n := reactiveSurfaces(bdry)
	if n == 0 {
		return nil
	}

	// known rotation strengths are imposed before the RHS velocities are
	// gathered, so their influence lands on the right-hand side; augmented
	// surfaces leave them to the augmentation column
	for _, surf := range surfs {
		surf.ZeroStrengths()
		if !surf.IsAugmented() {
			if err := surf.AddRotStrengths(1.0); err != nil {
				return err
			}
		}
	}

	if !s.valid || s.nrows != n || s.a == nil {
		if err := s.assemble(surfs, n); err != nil {
			return err
		}
	}

	rhs, err := s.buildRHS(t, fs, conv, vort, bdry, surfs, n)
	if err != nil {
		return err
	}

	maxIter := 10 * n
	x, _, err := fgmres(s.a, rhs, s.Tol, s.Restart, maxIter)
	if err != nil {
		return err
	}

	for _, surf := range surfs {
		first, nr := surf.FirstRow(), surf.NumRows()
		if err := surf.SetStr(0, nr, vec.Vector(x[first:first+nr])); err != nil {
			return err
		}
		if err := surf.AddSolvedRotStrengths(1.0); err != nil {
			return err
		}
	}
	return nil
}

// assemble fills the dense influence matrix. Entry (row, col) is the
// velocity induced at target row's panel center by a unit unknown col,
// projected on the row's BC direction, with the 1/(2pi) prefactor already
// applied so residuals read directly as velocities.
func (s *Solver) assemble(surfs []*elements.Surfaces, n int) error {
	const factor = 0.5 / math.Pi
	a := mat.NewDense(n, n, nil)

	for _, src := range surfs {
		np := src.NPanels()
		pos := src.Pos()
		idx := src.Idx()

		// unit-rotation strengths for the augmentation column
		var unitVort, unitSrc vec.Vector
		if src.IsAugmented() {
			if !src.HasVortexBC() {
				return &elements.InvariantError{What: "augmented surface without vortex unknowns"}
			}
			src.ZeroStrengths()
			if err := src.AddUnitRotStrengths(); err != nil {
				return err
			}
			unitVort = vec.Clone(src.RotVortStr())
			unitSrc = vec.Clone(src.RotSrcStr())
			src.ZeroStrengths()
		}

		for _, tgt := range surfs {
			for i := 0; i < tgt.NPanels(); i++ {
				xc, yc := tgt.PanelCenter(i)
				tx, ty := tgt.Tang()[0][i], tgt.Tang()[1][i]
				nx, ny := tgt.Norm()[0][i], tgt.Norm()[1][i]

				rowT := -1
				rowN := -1
				if tgt.HasVortexBC() {
					rowT = tgt.FirstRow() + i
				}
				if tgt.HasSourceBC() {
					rowN = tgt.FirstRow() + i
					if tgt.HasVortexBC() {
						rowN += tgt.NPanels()
					}
				}

				var augT, augN float64
				for j := 0; j < np; j++ {
					i0, i1 := idx[2*j], idx[2*j+1]
					x0, y0 := pos[0][i0], pos[1][i0]
					x1, y1 := pos[0][i1], pos[1][i1]

					// fluid-side (wall-value) influence; the default
					// kernel branch on the sheet itself
					uv, vv := convect.VortexPanel(x0, y0, x1, y1, xc, yc)
					uv *= factor
					vv *= factor
					us, vs := convect.SourcePanel(x0, y0, x1, y1, xc, yc)
					us *= factor
					vs *= factor

					// the unknown sheet's BC rows take the body-side
					// limit: +1/2 tangential for the vortex sheet, -1/2
					// normal for the source sheet, at its own center
					uvb, vvb, usb, vsb := uv, vv, us, vs
					if tgt == src && i == j {
						uvb, vvb = 0.5*tx, 0.5*ty
						usb, vsb = -0.5*nx, -0.5*ny
					}

					if src.HasVortexBC() {
						colV := src.FirstRow() + j
						if rowT >= 0 {
							a.Set(rowT, colV, uvb*tx+vvb*ty)
						}
						if rowN >= 0 {
							a.Set(rowN, colV, uvb*nx+vvb*ny)
						}
					}
					if src.HasSourceBC() {
						colS := src.FirstRow() + j
						if src.HasVortexBC() {
							colS += np
						}
						if rowT >= 0 {
							a.Set(rowT, colS, usb*tx+vsb*ty)
						}
						if rowN >= 0 {
							a.Set(rowN, colS, usb*nx+vsb*ny)
						}
					}
					// the augmentation column stands in for the body's
					// volume vorticity, whose wall value is the sheet's
					// fluid-side limit
					if unitVort != nil {
						augT += unitVort[j]*(uv*tx+vv*ty) + unitSrc[j]*(us*tx+vs*ty)
						augN += unitVort[j]*(uv*nx+vv*ny) + unitSrc[j]*(us*nx+vs*ny)
					}
				}
				if unitVort != nil {
					colW := src.NextRow() - 1
					if rowT >= 0 {
						a.Set(rowT, colW, augT)
					}
					if rowN >= 0 {
						a.Set(rowN, colW, augN)
					}
				}
			}
		}

		// augmentation row: total circulation balances the body-bound
		// circulation, sum(gamma * area) + 2 vol omega = 0
		if src.IsAugmented() {
			row := src.NextRow() - 1
			area := src.Area()
			for j := 0; j < np; j++ {
				a.Set(row, src.FirstRow()+j, area[j])
			}
			a.Set(row, row, 2.0*src.Vol())
		}
	}

	s.a = a
	s.nrows = n
	s.valid = true
	return nil
}

// buildRHS gathers the non-panel velocity at every panel center and projects
// it on each BC direction: rhs = bc - (particles + freestream - body
// motion) . direction.
func (s *Solver) buildRHS(t float64, fs [2]float64, conv *convect.Convection, vort, bdry []elements.Collection, surfs []*elements.Surfaces, n int) ([]float64, error) {
	// particle + imposed-rotation-strength influence at panel centers;
	// the imposed strengths ride along because the surfaces are passed as
	// sources here
	targets := make([]elements.Collection, len(surfs))
	for i, surf := range surfs {
		targets[i] = surf
	}
	if err := conv.FindVels(fs, vort, bdry, targets, convect.VelOnly, true); err != nil {
		return nil, err
	}

	rhs := make([]float64, n)
	for _, surf := range surfs {
		if err := surf.AddBodyMotion(-1.0, t); err != nil {
			return nil, err
		}
		pu := surf.Vel()
		np := surf.NPanels()
		for i := 0; i < np; i++ {
			u, v := pu[0][i], pu[1][i]
			if surf.HasVortexBC() {
				row := surf.FirstRow() + i
				rhs[row] = surf.VortexBC()[i] - (u*surf.Tang()[0][i] + v*surf.Tang()[1][i])
			}
			if surf.HasSourceBC() {
				row := surf.FirstRow() + i
				if surf.HasVortexBC() {
					row += np
				}
				rhs[row] = surf.SourceBC()[i] - (u*surf.Norm()[0][i] + v*surf.Norm()[1][i])
			}
		}
		// the augmentation row's RHS stays zero
	}
	return rhs, nil
}
