// Package export renders a snapshot of the particle field and boundary
// panels to SVG, for quick inspection without a GUI.
package export

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/san-kum/vortex2d/internal/elements"
)

// FieldToSVG draws every particle as a dot scaled by its core radius,
// colored by circulation sign, and every surface as a polyline.
func FieldToSVG(vort, bdry []elements.Collection, width, height int) string {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	grow := func(x, y float64) {
		minX = math.Min(minX, x)
		maxX = math.Max(maxX, x)
		minY = math.Min(minY, y)
		maxY = math.Max(maxY, y)
	}
	for _, coll := range append(append([]elements.Collection{}, vort...), bdry...) {
		switch c := coll.(type) {
		case *elements.Points:
			pos := c.Pos()
			for i := 0; i < c.N(); i++ {
				grow(pos[0][i], pos[1][i])
			}
		case *elements.Surfaces:
			pos := c.Pos()
			for i := 0; i < c.N(); i++ {
				grow(pos[0][i], pos[1][i])
			}
		}
	}
	if minX > maxX {
		minX, maxX, minY, maxY = -1, 1, -1, 1
	}
	// pad 5%
	padX := 0.05 * (maxX - minX)
	padY := 0.05 * (maxY - minY)
	if padX == 0 {
		padX = 1
	}
	if padY == 0 {
		padY = 1
	}
	minX -= padX
	maxX += padX
	minY -= padY
	maxY += padY

	sx := float64(width) / (maxX - minX)
	sy := float64(height) / (maxY - minY)
	px := func(x float64) float64 { return (x - minX) * sx }
	py := func(y float64) float64 { return float64(height) - (y-minY)*sy }

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height))

	for _, coll := range bdry {
		surf, ok := coll.(*elements.Surfaces)
		if !ok {
			continue
		}
		pos := surf.Pos()
		idx := surf.Idx()
		sb.WriteString(`<g stroke="#aaaaaa" stroke-width="1.5" fill="none">` + "\n")
		for i := 0; i < surf.NPanels(); i++ {
			i0, i1 := idx[2*i], idx[2*i+1]
			sb.WriteString(fmt.Sprintf(`<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f"/>`+"\n",
				px(pos[0][i0]), py(pos[1][i0]), px(pos[0][i1]), py(pos[1][i1])))
		}
		sb.WriteString("</g>\n")
	}

	for _, coll := range vort {
		pts, ok := coll.(*elements.Points)
		if !ok {
			continue
		}
		pos := pts.Pos()
		if pts.IsInert() {
			sb.WriteString(`<g fill="#888888">` + "\n")
			for i := 0; i < pts.N(); i++ {
				sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="1"/>`+"\n",
					px(pos[0][i]), py(pos[1][i])))
			}
			sb.WriteString("</g>\n")
			continue
		}
		str := pts.MustStr()
		rad := pts.MustRad()
		for i := 0; i < pts.N(); i++ {
			color := "#ff5050"
			if str[i] >= 0 {
				color = "#50a0ff"
			}
			r := math.Max(1, rad[i]*sx*0.5)
			sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="%.1f" fill="%s" fill-opacity="0.7"/>`+"\n",
				px(pos[0][i]), py(pos[1][i]), r, color))
		}
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// WriteField renders the field and writes it to path.
func WriteField(path string, vort, bdry []elements.Collection, width, height int) error {
	return os.WriteFile(path, []byte(FieldToSVG(vort, bdry, width, height)), 0644)
}
