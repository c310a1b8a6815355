package elements

import (
	"fmt"
	"math"

	"github.com/san-kum/vortex2d/internal/body"
	"github.com/san-kum/vortex2d/internal/vec"
)

// HOVolumes describes the Eulerian mesh handed to the external high-order
// solver: node coordinates, cell connectivity, and the wall/open partitions
// of the boundary nodes. The solver reports back its interior solution
// points and open-boundary sample points; those live here too, as inert
// point collections, so convection can evaluate the Lagrangian field on
// them.
type HOVolumes struct {
	ElementBase

	nodesPerElem int
	elemIdx      []int32
	wallIdx      []int32
	openIdx      []int32

	solnPts *Points // solver interior sample coordinates
	openPts *Points // solver open-boundary sample coordinates

	maskArea vec.Vector // per-cell area, damped toward zero near walls
}

// NewHOVolumes builds a volume mesh. x holds packed node coordinates,
// elemIdx nodesPerElem node indices per cell; wallIdx and openIdx partition
// the boundary nodes.
func NewHOVolumes(x []float64, elemIdx, wallIdx, openIdx []int32, nodesPerElem int, m MoveType, b *body.Body) (*HOVolumes, error) {
	if nodesPerElem < 3 {
		return nil, &InvariantError{What: fmt.Sprintf("cells need at least 3 nodes, got %d", nodesPerElem)}
	}
	if len(x)%vec.Dims != 0 {
		return nil, &ShapeError{What: "node position array", Len: len(x), Want: vec.Dims}
	}
	if len(elemIdx)%nodesPerElem != 0 {
		return nil, &ShapeError{What: "element index array", Len: len(elemIdx), Want: nodesPerElem}
	}
	nnodes := len(x) / vec.Dims

	h := &HOVolumes{
		ElementBase:  newBase(0, Inert, m, b),
		nodesPerElem: nodesPerElem,
		elemIdx:      append([]int32(nil), elemIdx...),
		wallIdx:      append([]int32(nil), wallIdx...),
		openIdx:      append([]int32(nil), openIdx...),
	}
	for _, id := range elemIdx {
		if int(id) >= nnodes {
			return nil, &InvariantError{What: fmt.Sprintf("cell node index %d out of range (have %d nodes)", id, nnodes)}
		}
	}
	for d := 0; d < vec.Dims; d++ {
		h.x[d] = vec.Resize(h.x[d], nnodes)
		for i := 0; i < nnodes; i++ {
			h.x[d][i] = x[vec.Dims*i+d]
		}
	}
	if b != nil && m == BodyBound {
		ux := h.x.Clone()
		h.ux = &ux
	}
	h.u.Resize(nnodes)
	h.n = nnodes
	return h, nil
}

func (h *HOVolumes) NCells() int        { return len(h.elemIdx) / h.nodesPerElem }
func (h *HOVolumes) NodesPerElem() int  { return h.nodesPerElem }
func (h *HOVolumes) ElemIdx() []int32   { return h.elemIdx }
func (h *HOVolumes) WallIdx() []int32   { return h.wallIdx }
func (h *HOVolumes) OpenIdx() []int32   { return h.openIdx }
func (h *HOVolumes) MaskArea() vec.Vector { return h.maskArea }

// NodePacket returns the node coordinates packed (x,y,x,y,...), the layout
// the external solver consumes.
func (h *HOVolumes) NodePacket() []float64 {
	out := make([]float64, vec.Dims*h.n)
	for i := 0; i < h.n; i++ {
		out[vec.Dims*i+0] = h.x[0][i]
		out[vec.Dims*i+1] = h.x[1][i]
	}
	return out
}

// SetSolnPts stores the solver-reported interior sample coordinates.
func (h *HOVolumes) SetSolnPts(packed []float64) error {
	pts, err := packedPoints(packed, "solution point array")
	if err != nil {
		return err
	}
	h.solnPts = pts
	return nil
}

// SetOpenPts stores the solver-reported open-boundary sample coordinates.
func (h *HOVolumes) SetOpenPts(packed []float64) error {
	pts, err := packedPoints(packed, "open point array")
	if err != nil {
		return err
	}
	h.openPts = pts
	return nil
}

func packedPoints(packed []float64, what string) (*Points, error) {
	if len(packed)%vec.Dims != 0 {
		return nil, &ShapeError{What: what, Len: len(packed), Want: vec.Dims}
	}
	return NewPoints(packed, Inert, Fixed, nil)
}

// BCNodes returns the open-boundary sample points as an inert collection,
// exactly as the solver reported them; t is not used and the points are not
// moved with a body, even for a bodybound volume.
func (h *HOVolumes) BCNodes(t float64) (*Points, error) {
	if h.openPts == nil {
		return nil, &InvariantError{What: "open points requested before the solver reported them"}
	}
	return h.openPts, nil
}

// VolNodes returns the interior solution points as an inert collection.
func (h *HOVolumes) VolNodes(t float64) (*Points, error) {
	if h.solnPts == nil {
		return nil, &InvariantError{What: "solution points requested before the solver reported them"}
	}
	return h.solnPts, nil
}

// SetMaskArea computes the per-cell polygon area, damped linearly to zero
// for cells whose centers sit within one vdelta of a wall node. Cells that
// thin are left to the Eulerian side; correcting them with particles of core
// radius vdelta would smear vorticity back onto the wall.
func (h *HOVolumes) SetMaskArea(vdelta float64) error {
	nc := h.NCells()
	if h.solnPts != nil && h.solnPts.N() != nc {
		return &InvariantError{What: fmt.Sprintf("mask area needs solution points 1:1 with cells (%d points, %d cells)", h.solnPts.N(), nc)}
	}
	h.maskArea = vec.Resize(h.maskArea, nc)
	for c := 0; c < nc; c++ {
		base := c * h.nodesPerElem
		// shoelace over the cell polygon
		area := 0.0
		cx, cy := 0.0, 0.0
		for k := 0; k < h.nodesPerElem; k++ {
			i0 := h.elemIdx[base+k]
			i1 := h.elemIdx[base+(k+1)%h.nodesPerElem]
			area += h.x[0][i0]*h.x[1][i1] - h.x[0][i1]*h.x[1][i0]
			cx += h.x[0][i0]
			cy += h.x[1][i0]
		}
		area = math.Abs(area) * 0.5
		cx /= float64(h.nodesPerElem)
		cy /= float64(h.nodesPerElem)

		factor := 1.0
		if vdelta > 0 && len(h.wallIdx) > 0 {
			dmin := math.Inf(1)
			for _, wi := range h.wallIdx {
				d := math.Hypot(h.x[0][wi]-cx, h.x[1][wi]-cy)
				if d < dmin {
					dmin = d
				}
			}
			factor = math.Min(1.0, dmin/vdelta)
		}
		h.maskArea[c] = area * factor
	}
	return nil
}

// EquivalentParticles emits one (x,y,strength,radius) packet per solution
// point carrying the given circulation deficit. Zero-deficit cells emit
// nothing.
func (h *HOVolumes) EquivalentParticles(deficit vec.Vector, vdelta float64) ([]float64, error) {
	if h.solnPts == nil {
		return nil, &InvariantError{What: "equivalent particles requested before the solver reported solution points"}
	}
	if len(deficit) != h.solnPts.N() {
		return nil, &ShapeError{What: "deficit vector", Len: len(deficit), Want: h.solnPts.N()}
	}
	pos := h.solnPts.Pos()
	out := make([]float64, 0, 4*len(deficit))
	for i, ds := range deficit {
		if ds == 0 {
			continue
		}
		out = append(out, pos[0][i], pos[1][i], ds, vdelta)
	}
	return out, nil
}

func (h *HOVolumes) String() string {
	return fmt.Sprintf("%d cells, %s", h.NCells(), h.ElementBase.String())
}

func (h *HOVolumes) isCollection() {}
