package visualizer

import (
	"strings"

	"github.com/olivier-w/spectra/internal/spectrum"
)

// Braille dot positions (col, row) → bit offset:
//
//	(0,0)=0  (1,0)=3
//	(0,1)=1  (1,1)=4
//	(0,2)=2  (1,2)=5
//	(0,3)=6  (1,3)=7
var brailleBits = [2][4]uint{
	{0, 1, 2, 6},
	{3, 4, 5, 7},
}

// Bounds is the world-space rectangle mapped onto the terminal.
type Bounds struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

// Scope is a spectrum.Sink that draws the latest points as a braille
// line, viewed straight down the z axis.
type Scope struct {
	bounds  Bounds
	points  []spectrum.Vec3
	springs springField
	smooth  bool
	hidden  bool
}

// NewScope maps bounds onto the view. fps drives the easing springs; zero
// disables easing.
func NewScope(bounds Bounds, fps int) *Scope {
	s := &Scope{bounds: bounds}
	if fps > 0 {
		s.springs = newSpringField(fps, 9.0, 0.8)
		s.smooth = true
	}
	return s
}

// SetPoints copies pts; the renderer reuses its buffers.
func (s *Scope) SetPoints(pts []spectrum.Vec3) {
	s.points = append(s.points[:0], pts...)
}

// SetBounds changes the mapped rectangle.
func (s *Scope) SetBounds(b Bounds) { s.bounds = b }

// SetHidden hides or shows the line.
func (s *Scope) SetHidden(hidden bool) { s.hidden = hidden }

// Hidden reports whether the line is hidden.
func (s *Scope) Hidden() bool { return s.hidden }

// Levels returns one normalized height per dot column, before easing.
// Columns without points carry the previous column's level.
func (s *Scope) Levels(dotCols int) []float64 {
	levels := make([]float64, dotCols)
	seen := make([]bool, dotCols)
	b := s.bounds
	spanX, spanY := b.MaxX-b.MinX, b.MaxY-b.MinY
	if spanX <= 0 || spanY <= 0 || dotCols == 0 {
		return levels
	}
	for _, p := range s.points {
		fx := (p[0] - b.MinX) / spanX
		if fx < 0 || fx > 1 {
			continue
		}
		c := min(int(fx*float64(dotCols)), dotCols-1)
		fy := clamp01((p[1] - b.MinY) / spanY)
		if !seen[c] || fy > levels[c] {
			levels[c] = fy
			seen[c] = true
		}
	}
	for c := 1; c < dotCols; c++ {
		if !seen[c] {
			levels[c] = levels[c-1]
		}
	}
	return levels
}

// View renders width×height cells. Hidden scopes keep their footprint as
// blank lines.
func (s *Scope) View(width, height int) string {
	if height < 1 {
		height = 1
	}
	if s.hidden || width < 2 {
		return strings.Repeat("\n", height-1)
	}

	dotCols := width * 2
	dotRows := height * 4
	levels := s.Levels(dotCols)
	if s.smooth {
		fresh := len(s.springs.pos) != dotCols
		s.springs.resize(dotCols)
		for c, l := range levels {
			if fresh {
				s.springs.snap(c, l)
				continue
			}
			levels[c] = clamp01(s.springs.step(c, l))
		}
	}

	grid := make([][]bool, dotRows)
	for r := range grid {
		grid[r] = make([]bool, dotCols)
	}
	prev := -1
	for c, l := range levels {
		row := dotRows - 1 - int(l*float64(dotRows-1)+0.5)
		lo, hi := row, row
		if prev >= 0 {
			lo, hi = min(row, prev), max(row, prev)
		}
		for r := lo; r <= hi; r++ {
			grid[r][c] = true
		}
		prev = row
	}

	rows := make([]string, height)
	for row := range height {
		var line strings.Builder
		for col := range width {
			var pattern uint
			for dx := range 2 {
				for dy := range 4 {
					if grid[row*4+dy][col*2+dx] {
						pattern |= 1 << brailleBits[dx][dy]
					}
				}
			}
			line.WriteRune(rune(0x2800 + pattern))
		}
		rows[row] = line.String()
	}
	return strings.Join(rows, "\n")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
