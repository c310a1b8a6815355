// Package features turns scenario descriptors into the particles and
// sample points the simulation starts from. Flow features emit
// (x,y,strength,radius) packets; measure features emit bare (x,y) tracers.
// Descriptors are parsed from yaml documents; a descriptor that fails to
// parse is reported and skipped, the rest of the scenario loads.
package features

import (
	"fmt"
	"math"
	"math/rand"

	"gopkg.in/yaml.v3"
)

// Flow is a vorticity seeding descriptor. InitParticles runs once at setup;
// StepParticles runs every step (only emitters return anything there).
// Particle radii are left at zero; the simulation substitutes its nominal
// core size on insertion.
type Flow interface {
	InitParticles(ips float64) []float64
	StepParticles(ips float64) []float64
	Enabled() bool
	String() string
}

type enabled struct {
	On bool `yaml:"enabled"`
}

func (e enabled) Enabled() bool { return e.On }

// Constructors build enabled features directly, the path scenario code and
// tests take when no yaml document is involved.

func NewSingleParticle(x, y, str float64) *SingleParticle {
	return &SingleParticle{enabled: enabled{On: true}, X: x, Y: y, Str: str}
}

func NewVortexBlob(x, y, rad, softness, str float64) *VortexBlob {
	return &VortexBlob{enabled: enabled{On: true}, X: x, Y: y, Rad: rad, Softness: softness, Str: str}
}

func NewAsymmetricBlob(x, y, rad, minrad, softness, str, thetaDeg float64) *AsymmetricBlob {
	return &AsymmetricBlob{enabled: enabled{On: true}, X: x, Y: y,
		Rad: rad, MinRad: minrad, Softness: softness, Str: str, Theta: thetaDeg}
}

func NewUniformBlock(x, y, xsize, ysize, str float64) *UniformBlock {
	return &UniformBlock{enabled: enabled{On: true}, X: x, Y: y, XSize: xsize, YSize: ysize, Str: str}
}

func NewBlockOfRandom(x, y, xsize, ysize, minstr, maxstr float64, num int) *BlockOfRandom {
	return &BlockOfRandom{enabled: enabled{On: true}, X: x, Y: y,
		XSize: xsize, YSize: ysize, MinStr: minstr, MaxStr: maxstr, Num: num}
}

func NewParticleEmitter(x, y, str float64) *ParticleEmitter {
	return &ParticleEmitter{enabled: enabled{On: true}, X: x, Y: y, Str: str}
}

// SingleParticle drops one particle.
type SingleParticle struct {
	enabled
	X, Y, Str float64
}

func (f *SingleParticle) InitParticles(ips float64) []float64 {
	if !f.On {
		return nil
	}
	return []float64{f.X, f.Y, f.Str, 0}
}

func (f *SingleParticle) StepParticles(ips float64) []float64 { return nil }

func (f *SingleParticle) String() string {
	return fmt.Sprintf("single particle at %g %g with strength %g", f.X, f.Y, f.Str)
}

// VortexBlob seeds a circular patch with a soft sine-ramped edge; particle
// strengths are normalized so the patch carries exactly Str circulation.
type VortexBlob struct {
	enabled
	X, Y     float64
	Rad      float64
	Softness float64
	Str      float64
}

func (f *VortexBlob) InitParticles(ips float64) []float64 {
	if !f.On {
		return nil
	}
	irad := 1 + int((f.Rad+0.5*f.Softness)/ips)
	var x []float64
	totCirc := 0.0
	for i := -irad; i <= irad; i++ {
		for j := -irad; j <= irad; j++ {
			dr := math.Sqrt(float64(i*i+j*j)) * ips
			if dr >= f.Rad+0.5*f.Softness {
				continue
			}
			str := 1.0
			if dr > f.Rad-0.5*f.Softness {
				str = 0.5 - 0.5*math.Sin(math.Pi*(dr-f.Rad)/f.Softness)
			}
			x = append(x, f.X+ips*float64(i), f.Y+ips*float64(j), str, 0)
			totCirc += str
		}
	}
	if totCirc != 0 {
		scale := f.Str / totCirc
		for i := 2; i < len(x); i += 4 {
			x[i] *= scale
		}
	}
	return x
}

func (f *VortexBlob) StepParticles(ips float64) []float64 { return nil }

func (f *VortexBlob) String() string {
	return fmt.Sprintf("vortex blob at %g %g, radius %g, softness %g, and strength %g",
		f.X, f.Y, f.Rad, f.Softness, f.Str)
}

// AsymmetricBlob is a rotated elliptical patch with a soft edge.
type AsymmetricBlob struct {
	enabled
	X, Y     float64
	Rad      float64 // major radius
	MinRad   float64 // minor radius
	Softness float64
	Str      float64
	Theta    float64 // rotation in degrees
}

func (f *AsymmetricBlob) InitParticles(ips float64) []float64 {
	if !f.On {
		return nil
	}
	irad := 1 + int((f.Rad+0.5*f.Softness)/ips)
	jrad := 1 + int((f.MinRad+0.5*f.Softness)/ips)
	st := math.Sin(math.Pi * f.Theta / 180.0)
	ct := math.Cos(math.Pi * f.Theta / 180.0)

	var x []float64
	totCirc := 0.0
	for i := -irad; i <= irad; i++ {
		for j := -jrad; j <= jrad; j++ {
			dx := float64(i) * ips
			dy := float64(j) * ips
			// reproject to the major circle before the distance check
			dr := math.Sqrt(dx*dx + (dy*f.Rad/f.MinRad)*(dy*f.Rad/f.MinRad))
			if dr >= f.Rad+0.5*f.Softness {
				continue
			}
			str := 1.0
			if dr > f.Rad-0.5*f.Softness {
				str = 0.5 - 0.5*math.Sin(math.Pi*(dr-f.Rad)/f.Softness)
			}
			x = append(x, f.X+dx*ct-dy*st, f.Y+dx*st+dy*ct, str, 0)
			totCirc += str
		}
	}
	if totCirc != 0 {
		scale := f.Str / totCirc
		for i := 2; i < len(x); i += 4 {
			x[i] *= scale
		}
	}
	return x
}

func (f *AsymmetricBlob) StepParticles(ips float64) []float64 { return nil }

func (f *AsymmetricBlob) String() string {
	return fmt.Sprintf("asymmetric blob at %g %g, radii %g %g, softness %g, and strength %g",
		f.X, f.Y, f.Rad, f.MinRad, f.Softness, f.Str)
}

// UniformBlock fills a rectangle with a regular grid of equal-strength
// particles.
type UniformBlock struct {
	enabled
	X, Y   float64
	XSize  float64
	YSize  float64
	Str    float64
}

func (f *UniformBlock) InitParticles(ips float64) []float64 {
	if !f.On {
		return nil
	}
	isize := 1 + int(f.XSize/ips)
	jsize := 1 + int(f.YSize/ips)
	x := make([]float64, 0, 4*isize*jsize)
	eachStr := f.Str / float64(isize*jsize)
	for i := 0; i < isize; i++ {
		for j := 0; j < jsize; j++ {
			x = append(x,
				f.X+f.XSize*((float64(i)+0.5)/float64(isize)-0.5),
				f.Y+f.YSize*((float64(j)+0.5)/float64(jsize)-0.5),
				eachStr, 0)
		}
	}
	return x
}

func (f *UniformBlock) StepParticles(ips float64) []float64 { return nil }

func (f *UniformBlock) String() string {
	return fmt.Sprintf("block of particles in [%g %g] [%g %g] with strength %g",
		f.X-0.5*f.XSize, f.X+0.5*f.XSize, f.Y-0.5*f.YSize, f.Y+0.5*f.YSize, f.Str)
}

// BlockOfRandom scatters Num particles uniformly over a rectangle with
// strengths drawn from [MinStr, MaxStr].
type BlockOfRandom struct {
	enabled
	X, Y   float64
	XSize  float64
	YSize  float64
	MinStr float64
	MaxStr float64
	Num    int

	rng *rand.Rand
}

func (f *BlockOfRandom) InitParticles(ips float64) []float64 {
	if !f.On {
		return nil
	}
	rng := f.rng
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	x := make([]float64, 4*f.Num)
	for i := 0; i < f.Num; i++ {
		x[4*i+0] = f.X + f.XSize*(rng.Float64()-0.5)
		x[4*i+1] = f.Y + f.YSize*(rng.Float64()-0.5)
		x[4*i+2] = f.MinStr + (f.MaxStr-f.MinStr)*rng.Float64()
		x[4*i+3] = 0
	}
	return x
}

func (f *BlockOfRandom) StepParticles(ips float64) []float64 { return nil }

func (f *BlockOfRandom) String() string {
	return fmt.Sprintf("block of %d particles in [%g %g] [%g %g] with strengths [%g %g]",
		f.Num, f.X-0.5*f.XSize, f.X+0.5*f.XSize, f.Y-0.5*f.YSize, f.Y+0.5*f.YSize, f.MinStr, f.MaxStr)
}

// ParticleEmitter drops one particle per step.
type ParticleEmitter struct {
	enabled
	X, Y, Str float64
}

func (f *ParticleEmitter) InitParticles(ips float64) []float64 { return nil }

func (f *ParticleEmitter) StepParticles(ips float64) []float64 {
	if !f.On {
		return nil
	}
	return []float64{f.X, f.Y, f.Str, 0}
}

func (f *ParticleEmitter) String() string {
	return fmt.Sprintf("particle emitter at %g %g spawning particles with strength %g", f.X, f.Y, f.Str)
}

// flowDoc is the yaml shape shared by all flow descriptors.
type flowDoc struct {
	Type     string     `yaml:"type"`
	Enabled  *bool      `yaml:"enabled"`
	Center   [2]float64 `yaml:"center"`
	Strength float64    `yaml:"strength"`
	Radius   float64    `yaml:"radius"`
	Softness float64    `yaml:"softness"`
	Scale    [2]float64 `yaml:"scale"`
	Rotation float64    `yaml:"rotation"`
	Size     [2]float64 `yaml:"size"`
	StrRange [2]float64 `yaml:"strength range"`
	Num      int        `yaml:"num"`
}

// ParseFlow decodes one flow descriptor node.
func ParseFlow(node *yaml.Node) (Flow, error) {
	var doc flowDoc
	if err := node.Decode(&doc); err != nil {
		return nil, err
	}
	on := true
	if doc.Enabled != nil {
		on = *doc.Enabled
	}
	en := enabled{On: on}

	switch doc.Type {
	case "single particle":
		return &SingleParticle{enabled: en, X: doc.Center[0], Y: doc.Center[1], Str: doc.Strength}, nil
	case "vortex blob":
		return &VortexBlob{enabled: en, X: doc.Center[0], Y: doc.Center[1],
			Rad: doc.Radius, Softness: doc.Softness, Str: doc.Strength}, nil
	case "asymmetric blob":
		return &AsymmetricBlob{enabled: en, X: doc.Center[0], Y: doc.Center[1],
			Rad: doc.Scale[0], MinRad: doc.Scale[1], Softness: doc.Softness,
			Str: doc.Strength, Theta: doc.Rotation}, nil
	case "uniform block":
		return &UniformBlock{enabled: en, X: doc.Center[0], Y: doc.Center[1],
			XSize: doc.Size[0], YSize: doc.Size[1], Str: doc.Strength}, nil
	case "block of random":
		return &BlockOfRandom{enabled: en, X: doc.Center[0], Y: doc.Center[1],
			XSize: doc.Size[0], YSize: doc.Size[1],
			MinStr: doc.StrRange[0], MaxStr: doc.StrRange[1], Num: doc.Num}, nil
	case "particle emitter":
		return &ParticleEmitter{enabled: en, X: doc.Center[0], Y: doc.Center[1], Str: doc.Strength}, nil
	default:
		return nil, fmt.Errorf("type %q does not name an available flow feature", doc.Type)
	}
}

// ParseFlowList decodes a list of descriptors, skipping the ones that fail
// and reporting them through warn.
func ParseFlowList(nodes []yaml.Node, warn func(error)) []Flow {
	var out []Flow
	for i := range nodes {
		f, err := ParseFlow(&nodes[i])
		if err != nil {
			if warn != nil {
				warn(err)
			}
			continue
		}
		out = append(out, f)
	}
	return out
}
