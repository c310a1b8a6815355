// Package sim owns the step loop. A step runs the phases in a fixed order,
// each reading the field the previous one left behind:
// BEM -> convection -> diffusion -> hybrid exchange -> move -> emit.
package sim

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/san-kum/vortex2d/internal/bem"
	"github.com/san-kum/vortex2d/internal/body"
	"github.com/san-kum/vortex2d/internal/convect"
	"github.com/san-kum/vortex2d/internal/elements"
	"github.com/san-kum/vortex2d/internal/features"
	"github.com/san-kum/vortex2d/internal/hybrid"
	"github.com/san-kum/vortex2d/internal/merge"
	"github.com/san-kum/vortex2d/internal/vec"
)

// Verbose turns on per-step reporting to the standard logger.
var Verbose bool

func report(format string, args ...any) {
	if Verbose {
		log.Printf(format, args...)
	}
}

// Metric observes the simulation after every step.
type Metric interface {
	Name() string
	Observe(s *Simulation, t float64)
	Value() float64
	Reset()
}

// Observer is notified after every completed step.
type Observer interface {
	OnStep(s *Simulation, step int, t float64)
}

// Simulation holds the whole solver state: bodies, collections, features,
// and the phase drivers.
type Simulation struct {
	Dt        float64
	TimeOrder int // 1 or 2
	FS        [2]float64
	IPS       float64
	Re        float64
	VDelta    float64 // particle core radius

	Overlap     float64
	MergeThresh float64

	Bodies   []*body.Body
	Vort     []elements.Collection
	Bdry     []elements.Collection
	Euler    []*elements.HOVolumes
	Flows    []features.Flow
	Measures []features.Measure

	Conv *convect.Convection
	BEM  *bem.Solver
	Hyb  *hybrid.Hybrid

	tracers *elements.Points

	time float64
	step int

	metrics   []Metric
	observers []Observer
}

// New builds an empty simulation with the given resolution. The particle
// core radius defaults to 1.5 times the inter-particle spacing so
// neighboring cores overlap.
func New(dt, ips float64) *Simulation {
	return &Simulation{
		Dt:          dt,
		TimeOrder:   1,
		IPS:         ips,
		Re:          100,
		VDelta:      1.5 * ips,
		Overlap:     1.5,
		MergeThresh: 0.2,
		Conv:        convect.New(),
		BEM:         bem.NewSolver(),
	}
}

func (s *Simulation) Time() float64 { return s.time }
func (s *Simulation) Step() int     { return s.step }

func (s *Simulation) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulation) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// AddBody registers a body; collections attach by pointer.
func (s *Simulation) AddBody(b *body.Body) { s.Bodies = append(s.Bodies, b) }

// particles returns the first active particle collection, creating one when
// none exists yet.
func (s *Simulation) particles() (*elements.Points, error) {
	for _, coll := range s.Vort {
		if pts, ok := coll.(*elements.Points); ok && !pts.IsInert() {
			return pts, nil
		}
	}
	pts, err := elements.NewPoints(nil, elements.Active, elements.Lagrangian, nil)
	if err != nil {
		return nil, err
	}
	s.Vort = append(s.Vort, pts)
	return pts, nil
}

// Tracers returns the inert tracer collection fed by measure features.
func (s *Simulation) Tracers() *elements.Points { return s.tracers }

// SeedFeatures runs every flow feature's one-time generator and creates the
// tracer collection from measure features.
func (s *Simulation) SeedFeatures() error {
	pts, err := s.particles()
	if err != nil {
		return err
	}
	for _, f := range s.Flows {
		packet := f.InitParticles(s.IPS)
		if len(packet) == 0 {
			continue
		}
		if err := pts.AddParticles(packet, s.VDelta); err != nil {
			return fmt.Errorf("seeding %s: %w", f, err)
		}
		report("seeded %s with %d particles", f, len(packet)/4)
	}
	for _, m := range s.Measures {
		packet := m.InitPoints(s.IPS)
		if len(packet) == 0 {
			continue
		}
		if s.tracers == nil {
			tr, err := elements.NewPoints(nil, elements.Inert, elements.Lagrangian, nil)
			if err != nil {
				return err
			}
			s.tracers = tr
		}
		if err := s.tracers.AddNew(packet); err != nil {
			return fmt.Errorf("seeding %s: %w", m, err)
		}
	}
	return nil
}

// Advance runs one full step.
func (s *Simulation) Advance() error {
	t, dt := s.time, s.Dt

	// (a) panel strengths from the current field and body motion
	if len(s.Bdry) > 0 {
		s.BEM.Invalidate()
		if err := s.BEM.Solve(t, s.FS, s.Conv, s.Vort, s.Bdry); err != nil {
			return fmt.Errorf("step %d: %w", s.step, err)
		}
	}

	// (b) velocities at every lagrangian node
	targets := s.moveTargets()
	if err := s.Conv.FindVels(s.FS, s.Vort, s.Bdry, targets, convect.VelOnly, true); err != nil {
		return err
	}

	var vel1 []vec.Array2
	var pos0 []vec.Array2
	if s.TimeOrder == 2 {
		// second order: predict with the first evaluation, re-evaluate at
		// the predicted positions, then blend the two velocity fields
		vel1 = snapshotVels(targets)
		pos0 = snapshotPos(targets)
		for _, tgt := range targets {
			if err := tgt.Move(t, dt); err != nil {
				return err
			}
		}
		if len(s.Bdry) > 0 {
			s.BEM.Invalidate()
			if err := s.BEM.Solve(t+dt, s.FS, s.Conv, s.Vort, s.Bdry); err != nil {
				return err
			}
		}
		if err := s.Conv.FindVels(s.FS, s.Vort, s.Bdry, targets, convect.VelOnly, true); err != nil {
			return err
		}
	}

	// (c) diffusion: core spreading plus boundary shedding
	if err := s.diffuse(t, dt); err != nil {
		return err
	}

	// (d) exchange with the external grid solver
	if s.Hyb != nil && s.Hyb.Active {
		if err := s.Hyb.Step(t, dt, s.Re, s.FS, s.Vort, s.Bdry, s.BEM, s.Conv, s.Euler, s.VDelta); err != nil {
			return err
		}
	}

	// (e) move everything to the new time
	if s.TimeOrder == 2 {
		vel2 := snapshotVels(targets)
		restorePos(targets, pos0)
		for k, tgt := range targets {
			if pts, ok := tgt.(*elements.Points); ok {
				// particles appended mid-step have no first-stage velocity;
				// zero-pad so they hold still until the next step
				vel1[k].Resize(pts.N())
				vel2[k].Resize(pts.N())
				if err := pts.MoveWeighted(t, dt, 0.5, &vel1[k], 0.5, &vel2[k]); err != nil {
					return err
				}
			} else if err := tgt.Move(t, dt); err != nil {
				return err
			}
		}
	} else {
		for _, tgt := range targets {
			if err := tgt.Move(t, dt); err != nil {
				return err
			}
		}
	}
	for _, coll := range s.Bdry {
		if coll.MoveType() == elements.BodyBound {
			if err := coll.Move(t, dt); err != nil {
				return err
			}
		}
	}
	for _, vol := range s.Euler {
		if vol.MoveType() == elements.BodyBound {
			if err := vol.Move(t, dt); err != nil {
				return err
			}
		}
	}

	// (f) per-step feature emission
	if err := s.emit(); err != nil {
		return err
	}

	s.time += dt
	s.step++
	s.Conv.Reset()

	for _, m := range s.metrics {
		m.Observe(s, s.time)
	}
	for _, o := range s.observers {
		o.OnStep(s, s.step, s.time)
	}
	return nil
}

// Run seeds the features, primes the hybrid exchange, and advances the
// requested number of steps.
func (s *Simulation) Run(ctx context.Context, steps int) error {
	if err := s.SeedFeatures(); err != nil {
		return err
	}
	for _, m := range s.metrics {
		m.Reset()
	}
	if s.Hyb != nil && s.Hyb.Active {
		if err := s.Hyb.FirstStep(s.time, s.FS, s.Vort, s.Bdry, s.BEM, s.Conv, s.Euler); err != nil {
			return err
		}
	}
	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := s.Advance(); err != nil {
			return err
		}
		report("step %d done, t=%.4f, %d particles, circulation %.6f",
			s.step, s.time, s.NumParticles(), s.TotalCirc())
	}
	return nil
}

// moveTargets gathers everything advected by the local velocity.
func (s *Simulation) moveTargets() []elements.Collection {
	var out []elements.Collection
	for _, coll := range s.Vort {
		if coll.MoveType() == elements.Lagrangian {
			out = append(out, coll)
		}
	}
	if s.tracers != nil {
		out = append(out, s.tracers)
	}
	return out
}

// diffuse spreads particle cores viscously and sheds the boundary slip as
// new particles, then coalesces what it can.
func (s *Simulation) diffuse(t, dt float64) error {
	nu := 1.0 / s.Re
	grow := 4.0 * nu * dt
	for _, coll := range s.Vort {
		pts, ok := coll.(*elements.Points)
		if !ok || pts.IsInert() {
			continue
		}
		r := pts.MustRad()
		for i := range r {
			r[i] = math.Sqrt(r[i]*r[i] + grow)
		}
	}

	if len(s.Bdry) > 0 {
		pts, err := s.particles()
		if err != nil {
			return err
		}
		for _, coll := range s.Bdry {
			surf, ok := coll.(*elements.Surfaces)
			if !ok || surf.ElemType() != elements.Reactive {
				continue
			}
			packet := surf.RepresentAsParticles(s.VDelta, s.VDelta)
			if err := pts.AddParticles(packet, s.VDelta); err != nil {
				return err
			}
			surf.AddToReabsorbed(-surf.TotalCirc(t))
			surf.ResetAugmentationVars()
			surf.UpdateMaxStr()
		}
	}

	merge.Operation(s.Vort, s.Overlap, s.MergeThresh, false)
	return nil
}

func (s *Simulation) emit() error {
	var packet []float64
	for _, f := range s.Flows {
		packet = append(packet, f.StepParticles(s.IPS)...)
	}
	if len(packet) > 0 {
		pts, err := s.particles()
		if err != nil {
			return err
		}
		if err := pts.AddParticles(packet, s.VDelta); err != nil {
			return err
		}
	}
	if s.tracers != nil {
		var tp []float64
		for _, m := range s.Measures {
			tp = append(tp, m.StepPoints(s.IPS)...)
		}
		if len(tp) > 0 {
			if err := s.tracers.AddNew(tp); err != nil {
				return err
			}
		}
	}
	return nil
}

// TotalCirc sums circulation over every collection.
func (s *Simulation) TotalCirc() float64 {
	total := 0.0
	for _, coll := range s.Vort {
		total += coll.TotalCirc(s.time)
	}
	for _, coll := range s.Bdry {
		total += coll.TotalCirc(s.time)
	}
	return total
}

// NumParticles counts the active particles.
func (s *Simulation) NumParticles() int {
	n := 0
	for _, coll := range s.Vort {
		if pts, ok := coll.(*elements.Points); ok && !pts.IsInert() {
			n += pts.N()
		}
	}
	return n
}

// MetricValues reports every registered metric.
func (s *Simulation) MetricValues() map[string]float64 {
	out := make(map[string]float64, len(s.metrics))
	for _, m := range s.metrics {
		out[m.Name()] = m.Value()
	}
	return out
}

func snapshotVels(targets []elements.Collection) []vec.Array2 {
	out := make([]vec.Array2, len(targets))
	for k, tgt := range targets {
		if pts, ok := tgt.(*elements.Points); ok {
			out[k] = pts.Vel().Clone()
		}
	}
	return out
}

func snapshotPos(targets []elements.Collection) []vec.Array2 {
	out := make([]vec.Array2, len(targets))
	for k, tgt := range targets {
		if pts, ok := tgt.(*elements.Points); ok {
			out[k] = pts.Pos().Clone()
		}
	}
	return out
}

func restorePos(targets []elements.Collection, saved []vec.Array2) {
	for k, tgt := range targets {
		pts, ok := tgt.(*elements.Points)
		if !ok {
			continue
		}
		pos := pts.Pos()
		// diffusion or the hybrid pass may have appended particles since
		// the snapshot; restore the prefix and keep the new tail
		for d := 0; d < vec.Dims; d++ {
			copy(pos[d][:len(saved[k][d])], saved[k][d])
		}
	}
}
