// Package metrics provides step-wise diagnostics that observe the
// simulation: total circulation, particle count, and vorticity impulse.
package metrics

import (
	"math"

	"github.com/san-kum/vortex2d/internal/elements"
	"github.com/san-kum/vortex2d/internal/sim"
)

// TotalCirculation tracks the circulation over all collections and its
// drift from the first observation.
type TotalCirculation struct {
	first   float64
	current float64
	samples int
}

func NewTotalCirculation() *TotalCirculation { return &TotalCirculation{} }

func (m *TotalCirculation) Name() string { return "circulation" }

func (m *TotalCirculation) Observe(s *sim.Simulation, t float64) {
	m.current = s.TotalCirc()
	if m.samples == 0 {
		m.first = m.current
	}
	m.samples++
}

func (m *TotalCirculation) Value() float64 { return m.current }

// Drift reports the relative change since the first observation.
func (m *TotalCirculation) Drift() float64 {
	if m.first == 0 {
		return 0
	}
	return math.Abs(m.current-m.first) / math.Abs(m.first)
}

func (m *TotalCirculation) Reset() {
	m.first = 0
	m.current = 0
	m.samples = 0
}

// ParticleCount tracks the peak active particle population.
type ParticleCount struct {
	current int
	peak    int
}

func NewParticleCount() *ParticleCount { return &ParticleCount{} }

func (m *ParticleCount) Name() string { return "particles" }

func (m *ParticleCount) Observe(s *sim.Simulation, t float64) {
	m.current = s.NumParticles()
	if m.current > m.peak {
		m.peak = m.current
	}
}

func (m *ParticleCount) Value() float64 { return float64(m.current) }
func (m *ParticleCount) Peak() int      { return m.peak }

func (m *ParticleCount) Reset() {
	m.current = 0
	m.peak = 0
}

// Impulse tracks the first moment of the particle vorticity field,
// (-sum s*y, sum s*x); its rate of change is the fluid force.
type Impulse struct {
	ix, iy float64
}

func NewImpulse() *Impulse { return &Impulse{} }

func (m *Impulse) Name() string { return "impulse" }

func (m *Impulse) Observe(s *sim.Simulation, t float64) {
	m.ix, m.iy = 0, 0
	for _, coll := range s.Vort {
		pts, ok := coll.(*elements.Points)
		if !ok || pts.IsInert() {
			continue
		}
		pos := pts.Pos()
		str := pts.MustStr()
		for i := 0; i < pts.N(); i++ {
			m.ix -= str[i] * pos[1][i]
			m.iy += str[i] * pos[0][i]
		}
	}
}

// Value reports the impulse magnitude; Components the vector.
func (m *Impulse) Value() float64 { return math.Hypot(m.ix, m.iy) }

func (m *Impulse) Components() (float64, float64) { return m.ix, m.iy }

func (m *Impulse) Reset() {
	m.ix, m.iy = 0, 0
}
