package features

import (
	"math"
	"testing"

	"gopkg.in/yaml.v3"
)

func decodeFlow(t *testing.T, doc string) (Flow, error) {
	t.Helper()
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(doc), &node); err != nil {
		t.Fatal(err)
	}
	return ParseFlow(node.Content[0])
}

func TestVortexBlobSeeding(t *testing.T) {
	blob := &VortexBlob{enabled: enabled{On: true}, Rad: 1.0, Softness: 0.1, Str: 1.0}
	pts := blob.InitParticles(0.1)
	n := len(pts) / 4

	if n < 300 || n > 370 {
		t.Errorf("expected roughly 317 particles for a unit blob at ips 0.1, got %d", n)
	}

	total := 0.0
	for i := 2; i < len(pts); i += 4 {
		total += pts[i]
	}
	if math.Abs(total-1.0) > 1e-6 {
		t.Errorf("normalized circulation: expected 1, got %.8f", total)
	}

	// all particles inside the soft edge
	for i := 0; i < n; i++ {
		r := math.Hypot(pts[4*i], pts[4*i+1])
		if r >= 1.0+0.05+1e-12 {
			t.Errorf("particle %d at radius %g outside the blob", i, r)
		}
	}
}

func TestDisabledFeatureEmitsNothing(t *testing.T) {
	blob := &VortexBlob{Rad: 1.0, Softness: 0.1, Str: 1.0}
	if pts := blob.InitParticles(0.1); pts != nil {
		t.Error("disabled blob should emit nothing")
	}
}

func TestUniformBlock(t *testing.T) {
	blk := &UniformBlock{enabled: enabled{On: true}, XSize: 1, YSize: 0.5, Str: 2}
	pts := blk.InitParticles(0.25)
	n := len(pts) / 4
	if n != 5*3 {
		t.Fatalf("expected 15 particles, got %d", n)
	}
	total := 0.0
	for i := 2; i < len(pts); i += 4 {
		total += pts[i]
	}
	if math.Abs(total-2.0) > 1e-12 {
		t.Errorf("block circulation: expected 2, got %g", total)
	}
}

func TestEmitterOnlySteps(t *testing.T) {
	em := &ParticleEmitter{enabled: enabled{On: true}, X: 1, Y: 2, Str: 0.5}
	if pts := em.InitParticles(0.1); pts != nil {
		t.Error("emitter should not seed at init")
	}
	pts := em.StepParticles(0.1)
	if len(pts) != 4 || pts[0] != 1 || pts[1] != 2 || pts[2] != 0.5 {
		t.Errorf("emitter step particle wrong: %v", pts)
	}
}

func TestBlockOfRandomCount(t *testing.T) {
	blk := &BlockOfRandom{enabled: enabled{On: true}, XSize: 1, YSize: 1, MinStr: -1, MaxStr: 1, Num: 50}
	pts := blk.InitParticles(0.1)
	if len(pts) != 200 {
		t.Fatalf("expected 200 floats, got %d", len(pts))
	}
	for i := 2; i < len(pts); i += 4 {
		if pts[i] < -1 || pts[i] > 1 {
			t.Fatalf("strength %g outside configured range", pts[i])
		}
	}
}

func TestParseFlowYaml(t *testing.T) {
	f, err := decodeFlow(t, `
type: vortex blob
center: [0.5, -0.5]
radius: 1.0
softness: 0.1
strength: 2.0
`)
	if err != nil {
		t.Fatal(err)
	}
	blob, ok := f.(*VortexBlob)
	if !ok {
		t.Fatalf("expected VortexBlob, got %T", f)
	}
	if blob.X != 0.5 || blob.Y != -0.5 || blob.Str != 2.0 {
		t.Errorf("fields not decoded: %+v", blob)
	}
	if !blob.Enabled() {
		t.Error("enabled should default to true")
	}
}

func TestParseFlowUnknownType(t *testing.T) {
	if _, err := decodeFlow(t, "type: warp drive\n"); err == nil {
		t.Fatal("unknown type should fail")
	}
}

func TestParseFlowListSkipsBadEntries(t *testing.T) {
	var doc struct {
		Flows []yaml.Node `yaml:"flows"`
	}
	err := yaml.Unmarshal([]byte(`
flows:
  - type: single particle
    center: [0, 0]
    strength: 1
  - type: nonsense
  - type: particle emitter
    center: [1, 1]
    strength: 0.1
`), &doc)
	if err != nil {
		t.Fatal(err)
	}
	var warned int
	flows := ParseFlowList(doc.Flows, func(error) { warned++ })
	if len(flows) != 2 {
		t.Errorf("expected 2 parsed features, got %d", len(flows))
	}
	if warned != 1 {
		t.Errorf("expected 1 warning, got %d", warned)
	}
}

func TestParseMeasure(t *testing.T) {
	var node yaml.Node
	if err := yaml.Unmarshal([]byte("type: tracer emitter\ncenter: [3, 4]\n"), &node); err != nil {
		t.Fatal(err)
	}
	m, err := ParseMeasure(node.Content[0])
	if err != nil {
		t.Fatal(err)
	}
	if pts := m.StepPoints(0.1); len(pts) != 2 || pts[0] != 3 || pts[1] != 4 {
		t.Errorf("tracer emitter step points wrong: %v", pts)
	}
}

func TestSolidCircleWinding(t *testing.T) {
	c := &SolidCircle{Diam: 1.0, Num: 32}
	x, idx, val := c.Panels()
	if len(x) != 64 || len(idx) != 64 || len(val) != 32 {
		t.Fatalf("unexpected array sizes %d %d %d", len(x), len(idx), len(val))
	}
	// clockwise winding: the signed shoelace area is negative
	area := 0.0
	for i := 0; i < 32; i++ {
		i0, i1 := idx[2*i], idx[2*i+1]
		area += x[2*i0]*x[2*i1+1] - x[2*i1]*x[2*i0+1]
	}
	if area >= 0 {
		t.Errorf("expected clockwise winding (negative shoelace), got %g", area)
	}
}
