package convect

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/vortex2d/internal/elements"
)

func TestSingleVortexFarField(t *testing.T) {
	src, err := elements.NewPoints([]float64{0, 0, 1, 0.1}, elements.Active, elements.Lagrangian, nil)
	require.NoError(t, err)
	tgt, err := elements.NewPoints([]float64{10, 0}, elements.Inert, elements.Fixed, nil)
	require.NoError(t, err)

	conv := New()
	err = conv.FindVels([2]float64{0, 0}, []elements.Collection{src}, nil,
		[]elements.Collection{tgt}, VelOnly, true)
	require.NoError(t, err)

	// a unit vortex at the origin induces 1/(2 pi r) tangentially
	assert.InDelta(t, 0.0, tgt.Vel()[0][0], 1e-12)
	assert.InDelta(t, 1.0/(2*math.Pi*10), tgt.Vel()[1][0], 1e-4)
}

func TestFreestreamOnly(t *testing.T) {
	tgt, err := elements.NewPoints([]float64{1, 2}, elements.Inert, elements.Fixed, nil)
	require.NoError(t, err)
	conv := New()
	err = conv.FindVels([2]float64{2, -1}, nil, nil, []elements.Collection{tgt}, VelOnly, true)
	require.NoError(t, err)
	assert.Equal(t, 2.0, tgt.Vel()[0][0])
	assert.Equal(t, -1.0, tgt.Vel()[1][0])
}

func TestFixedTargetCaching(t *testing.T) {
	src, _ := elements.NewPoints([]float64{0, 0, 1, 0.1}, elements.Active, elements.Lagrangian, nil)
	tgt, _ := elements.NewPoints([]float64{5, 0}, elements.Inert, elements.Fixed, nil)
	conv := New()

	require.NoError(t, conv.FindVels([2]float64{0, 0}, []elements.Collection{src}, nil,
		[]elements.Collection{tgt}, VelOnly, false))
	v1 := tgt.Vel()[1][0]

	// double the source strength: a cached fixed target must not see it
	src.MustStr()[0] = 2
	require.NoError(t, conv.FindVels([2]float64{0, 0}, []elements.Collection{src}, nil,
		[]elements.Collection{tgt}, VelOnly, false))
	assert.Equal(t, v1, tgt.Vel()[1][0])

	// force recomputes
	require.NoError(t, conv.FindVels([2]float64{0, 0}, []elements.Collection{src}, nil,
		[]elements.Collection{tgt}, VelOnly, true))
	assert.InDelta(t, 2*v1, tgt.Vel()[1][0], 1e-12)
}

func TestGradientDivergenceFree(t *testing.T) {
	src, _ := elements.NewPoints([]float64{0.3, -0.2, 0.7, 0.15}, elements.Active, elements.Lagrangian, nil)
	tgt, _ := elements.NewPoints([]float64{1.1, 0.8}, elements.Inert, elements.Fixed, nil)
	conv := New()
	require.NoError(t, conv.FindVels([2]float64{0, 0}, []elements.Collection{src}, nil,
		[]elements.Collection{tgt}, VelAndGrad, true))
	ug := tgt.VelGrad()
	assert.InDelta(t, 0.0, ug[0][0]+ug[3][0], 1e-14, "du/dx + dv/dy should vanish")
}

func TestVorticityGaussianCore(t *testing.T) {
	sigma := 0.2
	str := 0.5
	src, _ := elements.NewPoints([]float64{0, 0, str, sigma}, elements.Active, elements.Lagrangian, nil)
	tgt, _ := elements.NewPoints([]float64{0.1, 0}, elements.Inert, elements.Fixed, nil)
	conv := New()
	require.NoError(t, conv.FindVels([2]float64{0, 0}, []elements.Collection{src}, nil,
		[]elements.Collection{tgt}, VelAndVort, true))
	want := str / (math.Pi * sigma * sigma) * math.Exp(-0.01/(sigma*sigma))
	assert.InDelta(t, want, tgt.Vort()[0], 1e-12)
}

func TestPsiLogKernel(t *testing.T) {
	src, _ := elements.NewPoints([]float64{0, 0, 1, 0}, elements.Active, elements.Lagrangian, nil)
	tgt, _ := elements.NewPoints([]float64{2, 0}, elements.Inert, elements.Fixed, nil)
	conv := New()
	require.NoError(t, conv.FindVels([2]float64{0, 0}, []elements.Collection{src}, nil,
		[]elements.Collection{tgt}, PsiOnly, true))
	want := -math.Log(2.0) / (2 * math.Pi)
	assert.InDelta(t, want, tgt.Psi()[0], 1e-12)
}

func TestVortexPanelMatchesPointSum(t *testing.T) {
	// a short panel far away looks like a point vortex of the same total
	// circulation
	x0, y0, x1, y1 := -0.05, 0.0, 0.05, 0.0
	tx, ty := 3.0, 4.0
	u, v := VortexPanel(x0, y0, x1, y1, tx, ty)

	// midpoint quadrature of the point-vortex kernel over the segment
	var uq, vq float64
	const nq = 100
	ds := 0.1 / nq
	for k := 0; k < nq; k++ {
		s := (float64(k) + 0.5) / nq
		sx := x0 + s*(x1-x0)
		dx := tx - sx
		dy := ty - y0
		ir2 := 1.0 / (dx*dx + dy*dy)
		uq += -dy * ir2 * ds
		vq += dx * ir2 * ds
	}
	assert.InDelta(t, uq, u, 1e-6)
	assert.InDelta(t, vq, v, 1e-6)
}

func TestVortexPanelSelfInfluence(t *testing.T) {
	// at its own center the sheet's fluid-side tangential velocity is
	// -pi per unit strength (the +gamma/2 slip after the 1/(2 pi) factor)
	u, v := VortexPanel(0, 0, 1, 0, 0.5, 0)
	assert.InDelta(t, -math.Pi, u, 1e-12)
	assert.InDelta(t, 0.0, v, 1e-12)
}

func TestSourcePanelSelfInfluence(t *testing.T) {
	u, v := SourcePanel(0, 0, 1, 0, 0.5, 0)
	assert.InDelta(t, 0.0, u, 1e-12)
	assert.InDelta(t, math.Pi, v, 1e-12)
}

func TestSurfaceTargetsGetPanelCenterVels(t *testing.T) {
	src, _ := elements.NewPoints([]float64{0, 0, 1, 0.1}, elements.Active, elements.Lagrangian, nil)
	x := []float64{5, -0.5, 5, 0.5}
	idx := []int32{0, 1}
	surf, err := elements.NewSurfaces(x, idx, []float64{0}, elements.Reactive,
		elements.Fixed, nil, elements.DefaultBCSet)
	require.NoError(t, err)

	conv := New()
	require.NoError(t, conv.FindVels([2]float64{0, 0}, []elements.Collection{src}, nil,
		[]elements.Collection{surf}, VelOnly, true))
	// panel center is at (5,0): the vortex pushes straight up there
	assert.InDelta(t, 0.0, surf.Vel()[0][0], 1e-6)
	assert.InDelta(t, 1.0/(2*math.Pi*5), surf.Vel()[1][0], 1e-4)
}
