// Command thrustcurve plots the thruster calibration: the pulse width sent to
// each ESC for a requested force, saturation included.
package main

import (
	"flag"
	"fmt"
	"log"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/rov.teleop/internal/allocation"
)

var (
	out      = flag.String("out", "curves.png", "Output image (.png, .svg or .pdf)")
	maxForce = flag.Float64("max-force", 16, "Plot forces in [-max-force, max-force] N")
	step     = flag.Float64("step", 0.05, "Force step in N")
)

// curvePoints samples force -> encoded pulse width for one curve.
func curvePoints(c allocation.Curve, limit, step float64) (plotter.XYs, error) {
	if limit <= 0 || step <= 0 {
		return nil, fmt.Errorf("limit and step must be positive, got %v and %v", limit, step)
	}
	n := int(2*limit/step) + 1
	pts := make(plotter.XYs, 0, n)
	for i := 0; i < n; i++ {
		f := -limit + float64(i)*step
		pts = append(pts, plotter.XY{X: f, Y: float64(allocation.Encode(allocation.ThrustPercent(f, c)))})
	}
	return pts, nil
}

func renderCurves(path string, limit, step float64) error {
	p := plot.New()
	p.Title.Text = "Thruster calibration"
	p.X.Label.Text = "Requested force (N)"
	p.Y.Label.Text = "ESC pulse width (µs)"
	p.Y.Min = allocation.PulseMin - 50
	p.Y.Max = allocation.PulseMax + 50
	p.Add(plotter.NewGrid())

	for i, c := range []allocation.Curve{allocation.PortStarboardCurve, allocation.VerticalCurve} {
		pts, err := curvePoints(c, limit, step)
		if err != nil {
			return err
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("failed to build %s line: %w", c.Name, err)
		}
		line.Color = plotutil.Color(i)
		line.Dashes = plotutil.Dashes(i)
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("%s (+%.1f N / -%.1f N)", c.Name, c.MaxForward, c.MaxReverse), line)
	}
	p.Legend.Top = true
	p.Legend.Left = true

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

func main() {
	flag.Parse()
	if err := renderCurves(*out, *maxForce, *step); err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %s", *out)
}
