// Package hybrid couples the Lagrangian particle field to an external
// high-order Eulerian solver over specified grid volumes. Each step pushes
// boundary velocities to the grid side, advances it, pulls back the
// solution-point vorticity, and inserts particles until the Lagrangian
// field reproduces it.
package hybrid

import (
	"fmt"
	"math"

	"github.com/san-kum/vortex2d/internal/bem"
	"github.com/san-kum/vortex2d/internal/convect"
	"github.com/san-kum/vortex2d/internal/elements"
	"github.com/san-kum/vortex2d/internal/merge"
	"github.com/san-kum/vortex2d/internal/vec"
)

const (
	maxCorrectionIters = 20
	correctionTol      = 0.01

	mergeOverlap = 1.5
	mergeThresh  = 0.2
)

// Hybrid orchestrates the Euler/Lagrangian exchange.
type Hybrid struct {
	Active      bool
	initialized bool

	ElementOrder int    // 1..5
	TimeOrder    int    // 1, 2 or 4
	NumSubsteps  int    // 1..1000
	Precond      string // "none"
	SolverType   string // "fgmres"

	solver Solver
}

func New(solver Solver) *Hybrid {
	return &Hybrid{
		ElementOrder: 1,
		TimeOrder:    1,
		NumSubsteps:  100,
		Precond:      "none",
		SolverType:   "fgmres",
		solver:       solver,
	}
}

func (h *Hybrid) Initialized() bool { return h.initialized }

// Reset clears the grid initialization, forcing a fresh Init on the next
// step. Use after a simulation reset or a fatal exchange error.
func (h *Hybrid) Reset() { h.initialized = false }

// Init pushes the mesh to the external solver and retrieves its sample
// point coordinates. Exactly one volume is supported.
func (h *Hybrid) Init(euler []*elements.HOVolumes) error {
	if len(euler) != 1 {
		return fmt.Errorf("hybrid: exactly one volume supported, got %d", len(euler))
	}
	if err := h.solver.SetElementOrder(h.ElementOrder); err != nil {
		return err
	}
	for _, vol := range euler {
		if err := vol.Move(0, 0); err != nil {
			return err
		}
		if err := h.solver.Init(vol.NodePacket(), vol.ElemIdx(), vol.WallIdx(), vol.OpenIdx()); err != nil {
			return err
		}
		solnPts, err := h.solver.SolnPts()
		if err != nil {
			return err
		}
		if err := vol.SetSolnPts(solnPts); err != nil {
			return err
		}
		openPts, err := h.solver.OpenPts()
		if err != nil {
			return err
		}
		if err := vol.SetOpenPts(openPts); err != nil {
			return err
		}
	}
	h.initialized = true
	return nil
}

// FirstStep seeds the external solver with the Lagrangian field: velocities
// at its open-boundary points and vorticities at its solution points.
func (h *Hybrid) FirstStep(t float64, fs [2]float64, vort, bdry []elements.Collection, bems *bem.Solver, conv *convect.Convection, euler []*elements.HOVolumes) error {
	if !h.Active {
		return nil
	}
	if !h.initialized {
		if err := h.Init(euler); err != nil {
			return err
		}
	}

	for _, vol := range euler {
		if err := vol.Move(t, 0); err != nil {
			return err
		}
		if err := h.pushOpenVels(t, fs, vort, bdry, conv, vol); err != nil {
			return err
		}

		solnPts, err := vol.VolNodes(t)
		if err != nil {
			return err
		}
		if err := conv.FindVels(fs, vort, bdry, []elements.Collection{solnPts}, convect.VelAndVort, true); err != nil {
			return err
		}
		if err := h.solver.SetSolnVort(solnPts.Vort()); err != nil {
			return err
		}
	}
	return nil
}

// Step runs one exchange: push boundary conditions, advance the grid side,
// and iteratively insert particles until the vorticity deficit over the
// volume converges.
func (h *Hybrid) Step(t, dt float64, re float64, fs [2]float64, vort, bdry []elements.Collection, bems *bem.Solver, conv *convect.Convection, euler []*elements.HOVolumes, vdelta float64) error {
	if !h.Active {
		return nil
	}
	if !h.initialized {
		if err := h.Init(euler); err != nil {
			return err
		}
	}

	// phase A: refresh the BEM and hand the grid its boundary velocities
	if err := bems.Solve(t, fs, conv, vort, bdry); err != nil {
		return err
	}
	for _, vol := range euler {
		if err := vol.Move(t, 0); err != nil {
			return err
		}
		if err := h.pushOpenVels(t, fs, vort, bdry, conv, vol); err != nil {
			return err
		}
	}

	// phase B: advance the grid side
	if err := h.solver.SolveTo(t, h.NumSubsteps, h.TimeOrder, re); err != nil {
		return err
	}

	// phase C: correct particle strengths toward the grid vorticity
	for _, vol := range euler {
		if err := h.correct(t, fs, vort, bdry, conv, vol, vdelta); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hybrid) pushOpenVels(t float64, fs [2]float64, vort, bdry []elements.Collection, conv *convect.Convection, vol *elements.HOVolumes) error {
	openPts, err := vol.BCNodes(t)
	if err != nil {
		return err
	}
	if err := conv.FindVels(fs, vort, bdry, []elements.Collection{openPts}, convect.VelOnly, true); err != nil {
		return err
	}
	vel := openPts.Vel()
	packed := make([]float64, 2*openPts.N())
	for i := 0; i < openPts.N(); i++ {
		packed[2*i] = vel[0][i]
		packed[2*i+1] = vel[1][i]
	}
	return h.solver.SetOpenVels(packed)
}

func (h *Hybrid) correct(t float64, fs [2]float64, vort, bdry []elements.Collection, conv *convect.Convection, vol *elements.HOVolumes, vdelta float64) error {
	solnPts, err := vol.VolNodes(t)
	if err != nil {
		return err
	}
	n := solnPts.N()

	eulVort, err := h.solver.AllVorts()
	if err != nil {
		return err
	}
	if len(eulVort) != n {
		return &ExternalSolverError{What: "vorticity vector", Len: len(eulVort), Want: n}
	}

	if err := vol.SetMaskArea(vdelta); err != nil {
		return err
	}
	area := vol.MaskArea()
	if len(area) != n {
		return &elements.InvariantError{What: fmt.Sprintf("mask area (%d) not 1:1 with solution points (%d)", len(area), n)}
	}

	totalCircMag := 0.0
	for i := 0; i < n; i++ {
		totalCircMag += math.Abs(eulVort[i] * area[i])
	}
	if totalCircMag == 0 {
		return nil
	}

	var target *elements.Points
	for _, coll := range vort {
		if pts, ok := coll.(*elements.Points); ok && !pts.IsInert() {
			target = pts
			break
		}
	}
	if target == nil {
		return &elements.InvariantError{What: "hybrid correction needs an active particle collection"}
	}

	deficit := vec.New(n)
	tgts := []elements.Collection{solnPts}
	for iter := 0; iter < maxCorrectionIters; iter++ {
		if err := conv.FindVels(fs, vort, bdry, tgts, convect.VelAndVort, true); err != nil {
			return err
		}
		lagVort := solnPts.Vort()

		errSum := 0.0
		for i := 0; i < n; i++ {
			deficit[i] = (eulVort[i] - lagVort[i]) * area[i]
			errSum += math.Abs(deficit[i])
		}
		if errSum/totalCircMag <= correctionTol {
			return nil
		}

		packet, err := vol.EquivalentParticles(deficit, vdelta)
		if err != nil {
			return err
		}
		if err := target.AddParticles(packet, vdelta); err != nil {
			return err
		}
		merge.Operation(vort, mergeOverlap, mergeThresh, false)
	}
	return nil
}
