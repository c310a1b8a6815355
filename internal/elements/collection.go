package elements

import "github.com/san-kum/vortex2d/internal/body"

// Collection is the closed union of the three element shapes. Heterogeneous
// lists of collections flow through convection and the hybrid exchange;
// callers dispatch with an exhaustive type switch on *Points, *Surfaces,
// *HOVolumes. The inner numeric kernels are monomorphized per source/target
// kind and never dispatch through this interface.
type Collection interface {
	N() int
	IsInert() bool
	ElemType() ElemType
	MoveType() MoveType
	AttachedBody() *body.Body
	ZeroVels()
	FinalizeVels(fs [2]float64)
	Transform(t float64) error
	Move(t, dt float64) error
	MaxStr() float64
	TotalCirc(t float64) float64

	// isCollection keeps the union closed to this package.
	isCollection()
}

var (
	_ Collection = (*Points)(nil)
	_ Collection = (*Surfaces)(nil)
	_ Collection = (*HOVolumes)(nil)
)
