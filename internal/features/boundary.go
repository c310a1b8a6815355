package features

import (
	"fmt"
	"math"

	"gopkg.in/yaml.v3"
)

// Boundary describes a solid surface. Panels returns the packed node
// coordinates, the panel index pairs, and one boundary-condition value per
// panel; fluid stays on the left of each directed edge, so external bodies
// wind clockwise.
type Boundary interface {
	Panels() (x []float64, idx []int32, val []float64)
	String() string
}

// SolidCircle is a closed circular body discretized into Num panels.
type SolidCircle struct {
	X, Y   float64
	Diam   float64
	Num    int
}

func (b *SolidCircle) Panels() ([]float64, []int32, []float64) {
	n := b.Num
	if n < 3 {
		n = 3
	}
	rad := 0.5 * b.Diam
	x := make([]float64, 0, 2*n)
	idx := make([]int32, 0, 2*n)
	val := make([]float64, n)
	for i := 0; i < n; i++ {
		// clockwise from theta=0 keeps the fluid on the left
		theta := -2.0 * math.Pi * float64(i) / float64(n)
		x = append(x, b.X+rad*math.Cos(theta), b.Y+rad*math.Sin(theta))
		idx = append(idx, int32(i), int32((i+1)%n))
	}
	return x, idx, val
}

func (b *SolidCircle) String() string {
	return fmt.Sprintf("solid circle at %g %g with diameter %g", b.X, b.Y, b.Diam)
}

// SolidSquare is a closed axis-aligned square body.
type SolidSquare struct {
	X, Y float64
	Side float64
	Num  int // panels per side
}

func (b *SolidSquare) Panels() ([]float64, []int32, []float64) {
	per := b.Num
	if per < 1 {
		per = 1
	}
	h := 0.5 * b.Side
	// clockwise corner walk
	corners := [4][2]float64{
		{b.X - h, b.Y - h},
		{b.X - h, b.Y + h},
		{b.X + h, b.Y + h},
		{b.X + h, b.Y - h},
	}
	n := 4 * per
	x := make([]float64, 0, 2*n)
	idx := make([]int32, 0, 2*n)
	val := make([]float64, n)
	for side := 0; side < 4; side++ {
		c0 := corners[side]
		c1 := corners[(side+1)%4]
		for k := 0; k < per; k++ {
			f := float64(k) / float64(per)
			x = append(x, c0[0]+f*(c1[0]-c0[0]), c0[1]+f*(c1[1]-c0[1]))
		}
	}
	for i := 0; i < n; i++ {
		idx = append(idx, int32(i), int32((i+1)%n))
	}
	return x, idx, val
}

func (b *SolidSquare) String() string {
	return fmt.Sprintf("solid square at %g %g with side %g", b.X, b.Y, b.Side)
}

type boundaryDoc struct {
	Type     string     `yaml:"type"`
	Center   [2]float64 `yaml:"center"`
	Diameter float64    `yaml:"diameter"`
	Side     float64    `yaml:"side"`
	Num      int        `yaml:"num"`
}

// ParseBoundary decodes one boundary descriptor node.
func ParseBoundary(node *yaml.Node) (Boundary, error) {
	var doc boundaryDoc
	if err := node.Decode(&doc); err != nil {
		return nil, err
	}
	switch doc.Type {
	case "solid circle":
		num := doc.Num
		if num == 0 {
			num = 64
		}
		return &SolidCircle{X: doc.Center[0], Y: doc.Center[1], Diam: doc.Diameter, Num: num}, nil
	case "solid square":
		num := doc.Num
		if num == 0 {
			num = 16
		}
		return &SolidSquare{X: doc.Center[0], Y: doc.Center[1], Side: doc.Side, Num: num}, nil
	default:
		return nil, fmt.Errorf("type %q does not name an available boundary feature", doc.Type)
	}
}
