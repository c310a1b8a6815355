package merge

import (
	"math"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/san-kum/vortex2d/internal/elements"
)

func newParticles(t *testing.T, flat ...float64) *elements.Points {
	t.Helper()
	p, err := elements.NewPoints(flat, elements.Active, elements.Lagrangian, nil)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestMergePair(t *testing.T) {
	g := NewWithT(t)
	p := newParticles(t,
		0, 0, 1, 1,
		0.1, 0, 1, 1,
	)
	n := Operation([]elements.Collection{p}, 1.5, 0.2, false)

	g.Expect(n).To(Equal(1))
	g.Expect(p.N()).To(Equal(1))
	g.Expect(p.Pos()[0][0]).To(BeNumerically("~", 0.05, 1e-15))
	g.Expect(p.Pos()[1][0]).To(BeNumerically("~", 0.0, 1e-15))
	g.Expect(p.MustStr()[0]).To(Equal(2.0))
	g.Expect(p.MustRad()[0]).To(BeNumerically("~", math.Sqrt2, 1e-15))
}

func TestMergeConservesMoments(t *testing.T) {
	g := NewWithT(t)
	p := newParticles(t,
		0, 0, 0.5, 0.3,
		0.2, 0.1, 1.5, 0.3,
		5, 5, 1.0, 0.3, // far away, untouched
	)
	sum0, mx0, my0 := moments(p)

	Operation([]elements.Collection{p}, 1.5, 0.9, false)

	sum1, mx1, my1 := moments(p)
	g.Expect(sum1).To(Equal(sum0))
	g.Expect(mx1).To(BeNumerically("~", mx0, 1e-14))
	g.Expect(my1).To(BeNumerically("~", my0, 1e-14))
}

func moments(p *elements.Points) (sum, mx, my float64) {
	s := p.MustStr()
	pos := p.Pos()
	for i := 0; i < p.N(); i++ {
		sum += s[i]
		mx += s[i] * pos[0][i]
		my += s[i] * pos[1][i]
	}
	return
}

func TestOppositeSignsNeverMerge(t *testing.T) {
	g := NewWithT(t)
	p := newParticles(t,
		0, 0, 1, 1,
		0.1, 0, -1, 1,
	)
	n := Operation([]elements.Collection{p}, 1.5, 0.2, false)
	g.Expect(n).To(Equal(0))
	g.Expect(p.N()).To(Equal(2))
}

func TestDistantParticlesNeverMerge(t *testing.T) {
	g := NewWithT(t)
	p := newParticles(t,
		0, 0, 1, 0.1,
		1, 0, 1, 0.1,
	)
	n := Operation([]elements.Collection{p}, 1.5, 0.2, false)
	g.Expect(n).To(Equal(0))
}

func TestCancellationThreshold(t *testing.T) {
	g := NewWithT(t)
	// same sign but the relative magnitude test still applies to near
	// cancellation when strengths straddle zero only; equal-sign pairs
	// always pass it
	p := newParticles(t,
		0, 0, 1, 1,
		0.1, 0, 0.01, 1,
	)
	n := Operation([]elements.Collection{p}, 1.5, 0.2, false)
	g.Expect(n).To(Equal(1))
}

func TestMergesAreNotTransitive(t *testing.T) {
	g := NewWithT(t)
	// three collinear particles, each within range of its neighbor; the
	// survivor of the first merge must not immediately swallow the third
	p := newParticles(t,
		0, 0, 1, 0.1,
		0.1, 0, 1, 0.1,
		0.2, 0, 1, 0.1,
	)
	n := Operation([]elements.Collection{p}, 1.5, 0.2, false)
	g.Expect(n).To(Equal(1))
	g.Expect(p.N()).To(Equal(2))

	// the next invocation may continue
	n = Operation([]elements.Collection{p}, 1.5, 0.2, false)
	g.Expect(n).To(Equal(1))
	g.Expect(p.N()).To(Equal(1))
	g.Expect(p.MustStr()[0]).To(Equal(3.0))
}

func TestInertCollectionsSkipped(t *testing.T) {
	g := NewWithT(t)
	tr, err := elements.NewPoints([]float64{0, 0, 0.1, 0}, elements.Inert, elements.Lagrangian, nil)
	g.Expect(err).NotTo(HaveOccurred())
	n := Operation([]elements.Collection{tr}, 1.5, 0.2, false)
	g.Expect(n).To(Equal(0))
	g.Expect(tr.N()).To(Equal(2))
}
