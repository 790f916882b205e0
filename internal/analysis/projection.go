package analysis

import (
	"math"
	"strings"

	"github.com/san-kum/fmusim/internal/executor"
)

type Point struct{ X, Y float64 }

// Projection is the body1 path seen along the axis not in the plane.
type Projection struct {
	Horizontal, Vertical Axis
	Points               []Point
}

func Project(traj *executor.Trajectory, horizontal, vertical Axis) *Projection {
	h, v := traj.Channel(int(horizontal)), traj.Channel(int(vertical))
	p := &Projection{
		Horizontal: horizontal,
		Vertical:   vertical,
		Points:     make([]Point, len(h)),
	}
	for i := range h {
		p.Points[i] = Point{X: h[i], Y: v[i]}
	}
	return p
}

// ProjectionToASCII draws the projection on a width x height character grid,
// with axes where they cross the visible area.
func ProjectionToASCII(p *Projection, width, height int) string {
	if p == nil || len(p.Points) == 0 || width < 2 || height < 2 {
		return ""
	}

	minX, maxX := p.Points[0].X, p.Points[0].X
	minY, maxY := p.Points[0].Y, p.Points[0].Y
	for _, pt := range p.Points {
		minX, maxX = math.Min(minX, pt.X), math.Max(maxX, pt.X)
		minY, maxY = math.Min(minY, pt.Y), math.Max(maxY, pt.Y)
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX = maxX - minX
	rangeY = maxY - minY

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = []rune(strings.Repeat(" ", width))
	}

	for _, pt := range p.Points {
		col := int((pt.X - minX) / rangeX * float64(width-1))
		row := height - 1 - int((pt.Y-minY)/rangeY*float64(height-1))
		if row >= 0 && row < height && col >= 0 && col < width {
			canvas[row][col] = '•'
		}
	}

	if minX <= 0 && maxX >= 0 {
		col := int((0 - minX) / rangeX * float64(width-1))
		for row := 0; row < height; row++ {
			if canvas[row][col] == ' ' {
				canvas[row][col] = '│'
			}
		}
	}
	if minY <= 0 && maxY >= 0 {
		row := height - 1 - int((0-minY)/rangeY*float64(height-1))
		for col := 0; col < width; col++ {
			if canvas[row][col] == ' ' {
				canvas[row][col] = '─'
			}
		}
	}

	var sb strings.Builder
	for _, row := range canvas {
		sb.WriteString(string(row))
		sb.WriteRune('\n')
	}
	return sb.String()
}

// Crossings returns the interpolated times at which a channel rises through
// threshold.
func Crossings(traj *executor.Trajectory, axis Axis, threshold float64) []float64 {
	values := traj.Channel(int(axis))
	var out []float64
	for i := 1; i < len(values); i++ {
		prev, curr := values[i-1], values[i]
		if prev < threshold && curr >= threshold {
			frac := (threshold - prev) / (curr - prev)
			if math.IsNaN(frac) || math.IsInf(frac, 0) {
				frac = 0.5
			}
			t0, t1 := traj.Samples[i-1].Time, traj.Samples[i].Time
			out = append(out, t0+frac*(t1-t0))
		}
	}
	return out
}

// Period averages the spacing of consecutive crossings; zero with fewer
// than two.
func Period(crossings []float64) float64 {
	if len(crossings) < 2 {
		return 0
	}
	return (crossings[len(crossings)-1] - crossings[0]) / float64(len(crossings)-1)
}
