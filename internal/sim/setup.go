package sim

import (
	"fmt"
	"log"

	"github.com/san-kum/vortex2d/internal/body"
	"github.com/san-kum/vortex2d/internal/config"
	"github.com/san-kum/vortex2d/internal/elements"
	"github.com/san-kum/vortex2d/internal/features"
	"github.com/san-kum/vortex2d/internal/hybrid"
)

// FromConfig builds a ready-to-run simulation from a parsed scenario.
// Feature descriptors that fail to parse are logged and skipped; the rest
// of the scenario still loads.
func FromConfig(cfg *config.Config) (*Simulation, error) {
	s := New(cfg.Dt, cfg.IPS)
	s.TimeOrder = cfg.TimeOrder
	s.Re = cfg.Re
	s.FS = cfg.Freestream
	s.Overlap = cfg.Merge.Overlap
	s.MergeThresh = cfg.Merge.Thresh

	ground := body.Ground()
	s.AddBody(ground)
	byName := map[string]*body.Body{body.GroundName: ground}
	for _, bc := range cfg.Bodies {
		b := body.New(bc.Name)
		b.SetPos(bc.Pos[0], bc.Pos[1])
		b.SetOrient(bc.Orient)
		b.SetVel(bc.Vel[0], bc.Vel[1])
		b.SetRotVel(bc.RotVel)
		s.AddBody(b)
		byName[bc.Name] = b
	}

	warn := func(err error) { log.Printf("skipping feature: %v", err) }
	s.Flows = features.ParseFlowList(cfg.Flows, warn)
	for i := range cfg.Measures {
		m, err := features.ParseMeasure(&cfg.Measures[i])
		if err != nil {
			warn(err)
			continue
		}
		s.Measures = append(s.Measures, m)
	}

	for i := range cfg.Boundaries {
		bf, err := features.ParseBoundary(&cfg.Boundaries[i])
		if err != nil {
			warn(err)
			continue
		}
		// boundary descriptors may name the body they ride on
		var attach struct {
			Body string `yaml:"body"`
		}
		_ = cfg.Boundaries[i].Decode(&attach)
		bd := byName[attach.Body]
		move := elements.Fixed
		if bd != nil {
			move = elements.BodyBound
		} else {
			bd = ground
		}

		x, idx, val := bf.Panels()
		surf, err := elements.NewSurfaces(x, idx, val, elements.Reactive, move, bd, elements.DefaultBCSet)
		if err != nil {
			return nil, fmt.Errorf("building %s: %w", bf, err)
		}
		if move == elements.BodyBound {
			if err := surf.Transform(0); err != nil {
				return nil, err
			}
		}
		s.Bdry = append(s.Bdry, surf)
	}

	if cfg.Hybrid.Enabled {
		h := hybrid.New(hybrid.NewDummySolver(4))
		h.Active = true
		h.ElementOrder = cfg.Hybrid.ElementOrder
		h.TimeOrder = cfg.Hybrid.TimeOrder
		h.NumSubsteps = cfg.Hybrid.NumSubsteps
		h.Precond = cfg.Hybrid.Preconditioner
		h.SolverType = cfg.Hybrid.SolverType
		s.Hyb = h
	}
	return s, nil
}
