package elements

import (
	"math"
	"testing"
)

// unit quad mesh: 2x2 cells over [0,1]^2, left edge walled
func testVolume(t *testing.T) *HOVolumes {
	t.Helper()
	h := 0.5
	var nodes []float64
	for j := 0; j < 3; j++ {
		for i := 0; i < 3; i++ {
			nodes = append(nodes, float64(i)*h, float64(j)*h)
		}
	}
	elemIdx := []int32{
		0, 1, 4, 3,
		1, 2, 5, 4,
		3, 4, 7, 6,
		4, 5, 8, 7,
	}
	wallIdx := []int32{0, 3, 6}
	openIdx := []int32{2, 5, 8}
	vol, err := NewHOVolumes(nodes, elemIdx, wallIdx, openIdx, 4, Fixed, nil)
	if err != nil {
		t.Fatal(err)
	}
	return vol
}

func TestHOVolumesCounts(t *testing.T) {
	vol := testVolume(t)
	if vol.NCells() != 4 {
		t.Errorf("expected 4 cells, got %d", vol.NCells())
	}
	if vol.N() != 9 {
		t.Errorf("expected 9 nodes, got %d", vol.N())
	}
	packed := vol.NodePacket()
	if len(packed) != 18 {
		t.Fatalf("expected 18 packed floats, got %d", len(packed))
	}
	if packed[16] != 1.0 || packed[17] != 1.0 {
		t.Error("last node should pack as (1,1)")
	}
}

func TestSetMaskAreaDampsNearWall(t *testing.T) {
	vol := testVolume(t)
	if err := vol.SetSolnPts([]float64{0.25, 0.25, 0.75, 0.25, 0.25, 0.75, 0.75, 0.75}); err != nil {
		t.Fatal(err)
	}
	if err := vol.SetMaskArea(0.5); err != nil {
		t.Fatal(err)
	}
	mask := vol.MaskArea()
	// cells are 0.25 in area; the left column's centroid is sqrt(2)/4 from
	// the nearest wall node, inside one vdelta, so its mask shrinks
	want := 0.25 * (math.Sqrt2 / 4) / 0.5
	if math.Abs(mask[0]-want) > 1e-12 {
		t.Errorf("wall-adjacent cell: expected %g, got %g", want, mask[0])
	}
	// the right column is about 0.79 away, beyond one vdelta: undamped
	if math.Abs(mask[1]-0.25) > 1e-12 {
		t.Errorf("far cell: expected 0.25, got %g", mask[1])
	}
}

func TestEquivalentParticles(t *testing.T) {
	vol := testVolume(t)
	if err := vol.SetSolnPts([]float64{0.25, 0.25, 0.75, 0.25, 0.25, 0.75, 0.75, 0.75}); err != nil {
		t.Fatal(err)
	}
	packet, err := vol.EquivalentParticles([]float64{0.1, 0, -0.2, 0}, 0.05)
	if err != nil {
		t.Fatal(err)
	}
	// zero-deficit cells emit nothing
	if len(packet) != 8 {
		t.Fatalf("expected 2 particles, got %d floats", len(packet))
	}
	if packet[0] != 0.25 || packet[1] != 0.25 || packet[2] != 0.1 || packet[3] != 0.05 {
		t.Errorf("first particle wrong: %v", packet[:4])
	}
	if packet[6] != -0.2 {
		t.Errorf("second particle strength wrong: %g", packet[6])
	}

	if _, err := vol.EquivalentParticles([]float64{1, 2}, 0.05); err == nil {
		t.Error("mismatched deficit length should fail")
	}
}

func TestSetSolnPtsRejectsOddLength(t *testing.T) {
	vol := testVolume(t)
	if err := vol.SetSolnPts([]float64{1, 2, 3}); err == nil {
		t.Error("odd-length packet should fail")
	}
}

func TestBCNodesBeforeInit(t *testing.T) {
	vol := testVolume(t)
	if _, err := vol.BCNodes(0); err == nil {
		t.Error("open points before solver init should fail")
	}
	if _, err := vol.VolNodes(0); err == nil {
		t.Error("solution points before solver init should fail")
	}
}
