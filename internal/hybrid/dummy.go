package hybrid

import "fmt"

// DummySolver is an analytic stand-in for the external high-order solver.
// It reports cell centroids as solution points and the open-boundary node
// coordinates as open points, and reflects whatever vorticity the
// Lagrangian side last pushed. With it the correction loop converges on the
// first check, which makes it the default peer for dry runs and tests.
type DummySolver struct {
	elemOrder int

	nodes   []float64
	elemIdx []int32
	wallIdx []int32
	openIdx []int32

	nodesPerElem int

	solnVort []float64
	openVels []float64
}

// NewDummySolver builds a stand-in expecting cells of nodesPerElem nodes.
func NewDummySolver(nodesPerElem int) *DummySolver {
	return &DummySolver{nodesPerElem: nodesPerElem}
}

func (d *DummySolver) SetElementOrder(k int) error {
	if k < 1 || k > 5 {
		return fmt.Errorf("dummy solver: element order %d out of range", k)
	}
	d.elemOrder = k
	return nil
}

func (d *DummySolver) Init(nodes []float64, elemIdx, wallIdx, openIdx []int32) error {
	d.nodes = append([]float64(nil), nodes...)
	d.elemIdx = append([]int32(nil), elemIdx...)
	d.wallIdx = append([]int32(nil), wallIdx...)
	d.openIdx = append([]int32(nil), openIdx...)
	return nil
}

func (d *DummySolver) SolnPts() ([]float64, error) {
	if d.nodes == nil {
		return nil, &ExternalSolverError{What: "solution points before init", Len: 0, Want: 1}
	}
	nc := len(d.elemIdx) / d.nodesPerElem
	pts := make([]float64, 2*nc)
	for c := 0; c < nc; c++ {
		var cx, cy float64
		for k := 0; k < d.nodesPerElem; k++ {
			id := d.elemIdx[c*d.nodesPerElem+k]
			cx += d.nodes[2*id]
			cy += d.nodes[2*id+1]
		}
		pts[2*c] = cx / float64(d.nodesPerElem)
		pts[2*c+1] = cy / float64(d.nodesPerElem)
	}
	return pts, nil
}

func (d *DummySolver) OpenPts() ([]float64, error) {
	if d.nodes == nil {
		return nil, &ExternalSolverError{What: "open points before init", Len: 0, Want: 1}
	}
	pts := make([]float64, 2*len(d.openIdx))
	for i, id := range d.openIdx {
		pts[2*i] = d.nodes[2*id]
		pts[2*i+1] = d.nodes[2*id+1]
	}
	return pts, nil
}

func (d *DummySolver) SetOpenVels(packed []float64) error {
	if len(packed) != 2*len(d.openIdx) {
		return &ExternalSolverError{What: "open velocity packet", Len: len(packed), Want: 2 * len(d.openIdx)}
	}
	d.openVels = append(d.openVels[:0], packed...)
	return nil
}

func (d *DummySolver) SetSolnVort(packed []float64) error {
	nc := len(d.elemIdx) / d.nodesPerElem
	if len(packed) != nc {
		return &ExternalSolverError{What: "solution vorticity packet", Len: len(packed), Want: nc}
	}
	d.solnVort = append(d.solnVort[:0], packed...)
	return nil
}

func (d *DummySolver) SolveTo(time float64, nsub, timeOrder int, re float64) error {
	// the stand-in holds the field frozen
	return nil
}

func (d *DummySolver) AllVorts() ([]float64, error) {
	if d.solnVort == nil {
		nc := len(d.elemIdx) / d.nodesPerElem
		return make([]float64, nc), nil
	}
	return append([]float64(nil), d.solnVort...), nil
}
