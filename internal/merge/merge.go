// Package merge coalesces nearby same-sign vortex particles, preserving the
// zeroth and first moments of the vorticity field exactly and the second
// moment for Gaussian cores.
package merge

import (
	"math"

	"github.com/san-kum/vortex2d/internal/elements"
)

// Operation scans every particle collection in vort for mergeable pairs.
// Particles i and j merge when they share a sign, sit closer than
// overlap * max(r_i, r_j), and their combined strength would not cancel:
// |s_i + s_j| / (|s_i| + |s_j|) > 1 - mergeThresh.
//
// The survivor sits at the strength-weighted centroid with the summed
// strength and the root-sum-square radius. Merges are not transitive within
// one pass; a survivor only becomes eligible again on the next invocation.
// scaleStrengths additionally rescales the merged strength by the distance
// fraction, trading exact circulation for smoother cores; the hybrid loop
// always passes false.
//
// Returns the number of merges performed.
func Operation(vort []elements.Collection, overlap, mergeThresh float64, scaleStrengths bool) int {
	nmerged := 0
	for _, coll := range vort {
		pts, ok := coll.(*elements.Points)
		if !ok || pts.IsInert() {
			continue
		}
		nmerged += mergePoints(pts, overlap, mergeThresh, scaleStrengths)
	}
	return nmerged
}

func mergePoints(pts *elements.Points, overlap, mergeThresh float64, scaleStrengths bool) int {
	nmerged := 0
	touched := make(map[int]bool)

	for i := 0; i < pts.N(); i++ {
		if touched[i] {
			continue
		}
		for j := i + 1; j < pts.N(); j++ {
			if touched[j] {
				continue
			}
			if !tryMerge(pts, i, j, overlap, mergeThresh, scaleStrengths) {
				continue
			}
			// j was swapped out for the previous last element, which has
			// not been scanned at this position yet
			touched[i] = true
			if touched[pts.N()] {
				touched[j] = true
				delete(touched, pts.N())
			}
			nmerged++
			break
		}
	}
	return nmerged
}

func tryMerge(pts *elements.Points, i, j int, overlap, mergeThresh float64, scaleStrengths bool) bool {
	s := pts.MustStr()
	r := pts.MustRad()
	pos := pts.Pos()

	si, sj := s[i], s[j]
	if si*sj <= 0 {
		return false
	}
	ri, rj := r[i], r[j]
	rmax := math.Max(ri, rj)
	dx := pos[0][i] - pos[0][j]
	dy := pos[1][i] - pos[1][j]
	if dx*dx+dy*dy >= overlap*overlap*rmax*rmax {
		return false
	}
	absi, absj := math.Abs(si), math.Abs(sj)
	if math.Abs(si+sj)/(absi+absj) <= 1.0-mergeThresh {
		return false
	}

	wsum := absi + absj
	pos[0][i] = (absi*pos[0][i] + absj*pos[0][j]) / wsum
	pos[1][i] = (absi*pos[1][i] + absj*pos[1][j]) / wsum
	newstr := si + sj
	if scaleStrengths {
		dist := math.Sqrt(dx*dx + dy*dy)
		newstr *= 1.0 - 0.5*dist/(overlap*rmax)
	}
	s[i] = newstr
	r[i] = math.Sqrt(ri*ri + rj*rj)

	pts.Remove(j)
	return true
}
