package elements

import (
	"math"
	"testing"

	"github.com/san-kum/vortex2d/internal/body"
	"github.com/san-kum/vortex2d/internal/vec"
)

// circlePanels builds a closed circle of n panels wound clockwise so the
// fluid stays on the left (outside).
func circlePanels(cx, cy, rad float64, n int) ([]float64, []int32, []float64) {
	x := make([]float64, 0, 2*n)
	idx := make([]int32, 0, 2*n)
	for i := 0; i < n; i++ {
		theta := -2.0 * math.Pi * float64(i) / float64(n)
		x = append(x, cx+rad*math.Cos(theta), cy+rad*math.Sin(theta))
		idx = append(idx, int32(i), int32((i+1)%n))
	}
	return x, idx, make([]float64, n)
}

func newCircleSurface(t *testing.T, b *body.Body, m MoveType) *Surfaces {
	t.Helper()
	x, idx, val := circlePanels(0, 0, 0.5, 64)
	s, err := NewSurfaces(x, idx, val, Reactive, m, b, DefaultBCSet)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestComputeBasesInvariants(t *testing.T) {
	s := newCircleSurface(t, nil, Fixed)
	tan, norm := s.Tang(), s.Norm()
	for i := 0; i < s.NPanels(); i++ {
		tx, ty := tan[0][i], tan[1][i]
		nx, ny := norm[0][i], norm[1][i]
		if math.Abs(math.Hypot(tx, ty)-1) > 1e-14 {
			t.Fatalf("panel %d: tangent not unit", i)
		}
		// normal is the 90 degree CCW rotation of the tangent
		if math.Abs(nx+ty) > 1e-14 || math.Abs(ny-tx) > 1e-14 {
			t.Fatalf("panel %d: normal is not CCW rotation of tangent", i)
		}
		i0, i1 := s.Idx()[2*i], s.Idx()[2*i+1]
		length := math.Hypot(s.Pos()[0][i1]-s.Pos()[0][i0], s.Pos()[1][i1]-s.Pos()[1][i0])
		if math.Abs(s.Area()[i]-length) > 1e-14 {
			t.Fatalf("panel %d: area %g != edge length %g", i, s.Area()[i], length)
		}
	}
}

func TestComputeBasesIdempotent(t *testing.T) {
	s := newCircleSurface(t, nil, Fixed)
	area1 := vec.Clone(s.Area())
	tan1 := s.Tang().Clone()
	if err := s.ComputeBases(s.NPanels()); err != nil {
		t.Fatal(err)
	}
	for i := range area1 {
		if s.Area()[i] != area1[i] {
			t.Fatal("area changed on recompute")
		}
		if s.Tang()[0][i] != tan1[0][i] || s.Tang()[1][i] != tan1[1][i] {
			t.Fatal("tangent changed on recompute")
		}
	}
}

func TestZeroLengthPanelRejected(t *testing.T) {
	x := []float64{0, 0, 0, 0}
	idx := []int32{0, 1}
	_, err := NewSurfaces(x, idx, []float64{0}, Reactive, Fixed, nil, DefaultBCSet)
	if err == nil {
		t.Fatal("degenerate panel should be rejected")
	}
}

func TestBadNodeIndexRejected(t *testing.T) {
	x := []float64{0, 0, 1, 0}
	idx := []int32{0, 5}
	_, err := NewSurfaces(x, idx, []float64{0}, Reactive, Fixed, nil, DefaultBCSet)
	if err == nil {
		t.Fatal("out-of-range node index should be rejected")
	}
}

func TestGeomCenterCircle(t *testing.T) {
	b := body.New("rotor")
	s := newCircleSurface(t, b, BodyBound)
	// clockwise external body: enclosed area positive, close to pi r^2
	want := math.Pi * 0.25
	if math.Abs(s.Vol()-want)/want > 0.01 {
		t.Errorf("vol: expected ~%g, got %g", want, s.Vol())
	}
	if err := s.Transform(0); err != nil {
		t.Fatal(err)
	}
	tc := s.GeomCenter()
	if math.Abs(tc[0]) > 1e-12 || math.Abs(tc[1]) > 1e-12 {
		t.Errorf("center: expected origin, got (%g,%g)", tc[0], tc[1])
	}
}

func TestVolSignFollowsWinding(t *testing.T) {
	// counterclockwise winding bounds an internal flow: negative vol
	n := 16
	x := make([]float64, 0, 2*n)
	idx := make([]int32, 0, 2*n)
	for i := 0; i < n; i++ {
		theta := 2.0 * math.Pi * float64(i) / float64(n)
		x = append(x, math.Cos(theta), math.Sin(theta))
		idx = append(idx, int32(i), int32((i+1)%n))
	}
	s, err := NewSurfaces(x, idx, make([]float64, n), Reactive, BodyBound, body.New("shell"), DefaultBCSet)
	if err != nil {
		t.Fatal(err)
	}
	if s.Vol() >= 0 {
		t.Errorf("CCW winding should give negative vol, got %g", s.Vol())
	}
	if s.IsAugmented() {
		t.Error("internal flow enclosure must not be augmented")
	}
}

func TestAugmentationPredicate(t *testing.T) {
	rotor := body.New("rotor")
	if s := newCircleSurface(t, rotor, BodyBound); !s.IsAugmented() {
		t.Error("reactive bodybound external surface should be augmented")
	}
	if s := newCircleSurface(t, body.Ground(), BodyBound); s.IsAugmented() {
		t.Error("ground-attached surface must not be augmented")
	}
	if s := newCircleSurface(t, nil, Fixed); s.IsAugmented() {
		t.Error("surface without a body must not be augmented")
	}

	x, idx, val := circlePanels(0, 0, 0.5, 64)
	act, err := NewSurfaces(x, idx, val, Active, BodyBound, rotor, DefaultBCSet)
	if err != nil {
		t.Fatal(err)
	}
	if act.IsAugmented() {
		t.Error("active surface must not be augmented")
	}
}

func TestRowLayout(t *testing.T) {
	s := newCircleSurface(t, body.New("rotor"), BodyBound)
	s.SetFirstRow(10)
	if s.NumUnknownsPerPanel() != 1 {
		t.Fatalf("vortex-only: expected 1 unknown per panel, got %d", s.NumUnknownsPerPanel())
	}
	if s.NumRows() != 65 {
		t.Errorf("augmented 64-panel surface: expected 65 rows, got %d", s.NumRows())
	}
	if s.NextRow() != 75 {
		t.Errorf("expected next row 75, got %d", s.NextRow())
	}

	x, idx, val := circlePanels(0, 0, 0.5, 8)
	both, err := NewSurfaces(x, idx, val, Reactive, Fixed, nil, BCSet{Vortex: true, Source: true})
	if err != nil {
		t.Fatal(err)
	}
	if both.NumUnknownsPerPanel() != 2 {
		t.Errorf("both BCs: expected 2 unknowns per panel, got %d", both.NumUnknownsPerPanel())
	}
	if both.NumRows() != 16 {
		t.Errorf("expected 16 rows, got %d", both.NumRows())
	}
}

func TestRotStrengthsDecomposition(t *testing.T) {
	b := body.New("rotor")
	b.SetRotVel(1.0)
	s := newCircleSurface(t, b, BodyBound)
	if err := s.AddRotStrengths(1.0); err != nil {
		t.Fatal(err)
	}
	// a unit rotation of a circle about its center is purely tangential:
	// vortex strength R everywhere, source strength zero
	for i := 0; i < s.NPanels(); i++ {
		if math.Abs(s.RotVortStr()[i]-0.5) > 0.01 {
			t.Fatalf("panel %d: vortex rot strength %g, want ~0.5", i, s.RotVortStr()[i])
		}
		if math.Abs(s.RotSrcStr()[i]) > 1e-10 {
			t.Fatalf("panel %d: source rot strength should vanish, got %g", i, s.RotSrcStr()[i])
		}
		if s.MustStr()[i] != s.RotVortStr()[i] {
			t.Fatal("vortex rot strength must accumulate into ps")
		}
	}
	// the imposed sheet carries the body-bound circulation 2 vol omega
	circ := s.TotalCirc(0)
	want := 2 * s.Vol() * 1.0
	if math.Abs(circ-want)/want > 0.01 {
		t.Errorf("imposed circulation %g, want ~%g", circ, want)
	}
}

func TestSetStrAugmentedPopsOmega(t *testing.T) {
	b := body.New("rotor")
	b.SetRotVel(0.5)
	s := newCircleSurface(t, b, BodyBound)
	in := vec.New(65)
	for i := range in {
		in[i] = 0.1
	}
	in[64] = 0.75 // the solved rotation rate
	if err := s.SetStr(0, 65, in); err != nil {
		t.Fatal(err)
	}
	if s.SolvedOmega() != 0.75 {
		t.Errorf("solved omega: expected 0.75, got %g", s.SolvedOmega())
	}
	if math.Abs(s.OmegaError()-0.25) > 1e-15 {
		t.Errorf("omega error: expected 0.25, got %g", s.OmegaError())
	}
	if s.MustStr()[63] != 0.1 {
		t.Error("strengths not copied")
	}
	if err := s.SetStr(0, 10, vec.New(10)); err == nil {
		t.Error("mismatched strength vector should be rejected")
	}
}

func TestRepresentAsParticles(t *testing.T) {
	s := newCircleSurface(t, nil, Fixed)
	ps := s.MustStr()
	for i := range ps {
		ps[i] = 2.0
	}
	pts := s.RepresentAsParticles(0.1, 0.05)
	if len(pts) != 4*s.NPanels() {
		t.Fatalf("expected %d floats, got %d", 4*s.NPanels(), len(pts))
	}
	for i := 0; i < s.NPanels(); i++ {
		// pushed off the wall along the outward normal
		r := math.Hypot(pts[4*i], pts[4*i+1])
		if r < 0.5 {
			t.Fatalf("particle %d at radius %g sits inside the body", i, r)
		}
		if math.Abs(pts[4*i+2]-2.0*s.Area()[i]) > 1e-14 {
			t.Fatalf("particle %d: strength %g, want %g", i, pts[4*i+2], 2.0*s.Area()[i])
		}
		if pts[4*i+3] != 0.05 {
			t.Fatalf("particle %d: radius %g, want 0.05", i, pts[4*i+3])
		}
	}
}

func TestTotalCircScalesByArea(t *testing.T) {
	s := newCircleSurface(t, nil, Fixed)
	ps := s.MustStr()
	for i := range ps {
		ps[i] = 1.0
	}
	circ := s.TotalCirc(0)
	perim := math.Pi // 2 pi r with r = 0.5
	if math.Abs(circ-perim)/perim > 0.01 {
		t.Errorf("unit sheet circulation should be the perimeter ~%g, got %g", perim, circ)
	}
}

func TestBodyCirc(t *testing.T) {
	b := body.New("rotor")
	b.SetRotVel(1.0)
	s := newCircleSurface(t, b, BodyBound)
	got := s.BodyCirc(0)
	want := 2 * s.Vol()
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("body circulation: expected %g, got %g", want, got)
	}
}

func TestSurfacesAddNew(t *testing.T) {
	x, idx, val := circlePanels(0, 0, 0.5, 8)
	s, err := NewSurfaces(x, idx, val, Reactive, Fixed, nil, DefaultBCSet)
	if err != nil {
		t.Fatal(err)
	}
	x2, idx2, val2 := circlePanels(3, 0, 0.5, 8)
	if err := s.AddNew(x2, idx2, val2); err != nil {
		t.Fatal(err)
	}
	if s.NPanels() != 16 || s.N() != 16 {
		t.Fatalf("expected 16 panels and nodes, got %d, %d", s.NPanels(), s.N())
	}
	// appended panels index into the appended nodes
	for i := 16; i < 32; i++ {
		if s.Idx()[i] < 8 {
			t.Fatal("appended panel references an original node")
		}
	}
	if len(s.Area()) != 16 || len(s.VortexBC()) != 16 {
		t.Fatal("panel arrays not extended")
	}
}

func TestAddBodyMotion(t *testing.T) {
	b := body.New("rotor")
	b.SetVel(1.0, 0)
	b.SetRotVel(2.0)
	s := newCircleSurface(t, b, BodyBound)
	if err := s.Transform(0); err != nil {
		t.Fatal(err)
	}
	s.ZeroVels()
	if err := s.AddBodyMotion(1.0, 0); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < s.NPanels(); i++ {
		xc, yc := s.PanelCenter(i)
		wantU := 1.0 - 2.0*yc
		wantV := 2.0 * xc
		if math.Abs(s.Vel()[0][i]-wantU) > 1e-12 || math.Abs(s.Vel()[1][i]-wantV) > 1e-12 {
			t.Fatalf("panel %d: got (%g,%g), want (%g,%g)",
				i, s.Vel()[0][i], s.Vel()[1][i], wantU, wantV)
		}
	}
}
