package export

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/san-kum/fmusim/internal/executor"
)

// NewTimePlot builds a plot of the three position channels against time.
func NewTimePlot(traj *executor.Trajectory, title string) (*plot.Plot, error) {
	if traj.Len() == 0 {
		return nil, fmt.Errorf("plot: empty trajectory")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = "position (m)"
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.Title.Padding = vg.Points(8)
	p.Add(plotter.NewGrid())

	times := traj.Times()
	for axis := 0; axis < 3; axis++ {
		values := traj.Channel(axis)
		pts := make(plotter.XYs, len(values))
		for i := range values {
			pts[i].X = times[i]
			pts[i].Y = values[i]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Color = plotutil.Color(axis)
		p.Add(line)
		p.Legend.Add("body1 "+axisNames[axis], line)
	}
	p.Legend.Top = true
	return p, nil
}

// SavePNG renders traj to a PNG of the given size in inches.
func SavePNG(path string, traj *executor.Trajectory, title string, widthIn, heightIn float64) error {
	p, err := NewTimePlot(traj, title)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}

	c := vgimg.NewWith(
		vgimg.UseWH(vg.Length(widthIn)*vg.Inch, vg.Length(heightIn)*vg.Inch),
		vgimg.UseDPI(150),
	)
	p.Draw(draw.New(c))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create png: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(bw); err != nil {
		return fmt.Errorf("cannot write png: %w", err)
	}
	return bw.Flush()
}
