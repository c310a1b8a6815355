package features

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Measure is a sampling descriptor: it produces inert (x,y) tracer points
// the convection pass evaluates the field on.
type Measure interface {
	InitPoints(ips float64) []float64
	StepPoints(ips float64) []float64
	String() string
}

// SinglePoint is one stationary field measurement point.
type SinglePoint struct {
	X, Y float64
}

func (m *SinglePoint) InitPoints(ips float64) []float64 { return []float64{m.X, m.Y} }
func (m *SinglePoint) StepPoints(ips float64) []float64 { return nil }

func (m *SinglePoint) String() string {
	return fmt.Sprintf("single field point at %g %g", m.X, m.Y)
}

// TracerEmitter releases one lagrangian tracer per step.
type TracerEmitter struct {
	X, Y float64
}

func (m *TracerEmitter) InitPoints(ips float64) []float64 { return nil }
func (m *TracerEmitter) StepPoints(ips float64) []float64 { return []float64{m.X, m.Y} }

func (m *TracerEmitter) String() string {
	return fmt.Sprintf("tracer emitter at %g %g spawning tracers every step", m.X, m.Y)
}

type measureDoc struct {
	Type   string     `yaml:"type"`
	Center [2]float64 `yaml:"center"`
}

// ParseMeasure decodes one measure descriptor node.
func ParseMeasure(node *yaml.Node) (Measure, error) {
	var doc measureDoc
	if err := node.Decode(&doc); err != nil {
		return nil, err
	}
	switch doc.Type {
	case "single point":
		return &SinglePoint{X: doc.Center[0], Y: doc.Center[1]}, nil
	case "tracer emitter":
		return &TracerEmitter{X: doc.Center[0], Y: doc.Center[1]}, nil
	default:
		return nil, fmt.Errorf("type %q does not name an available measure feature", doc.Type)
	}
}
