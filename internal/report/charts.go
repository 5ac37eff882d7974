package report

import (
	"errors"
	"fmt"
	"image/color"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/lense/internal/lense"
)

// ErrNoSamples is returned when there is nothing to draw.
var ErrNoSamples = errors.New("no samples recorded")

// maxChartPoints caps the points handed to a chart; longer sessions are
// decimated.
const maxChartPoints = 5000

func stride(n int) int {
	if n <= maxChartPoints {
		return 1
	}
	return (n + maxChartPoints - 1) / maxChartPoints
}

// WriteTrajectoryHTML renders an interactive page with the target and
// current position over time and the current position's path across the
// viewport.
func WriteTrajectoryHTML(w io.Writer, title string, ss []lense.Sample) error {
	if len(ss) == 0 {
		return ErrNoSamples
	}
	step := stride(len(ss))
	start := ss[0].At

	var (
		xAxis            []string
		targetX, targetY []opts.LineData
		curX, curY       []opts.LineData
		path             []opts.ScatterData
	)
	for i := 0; i < len(ss); i += step {
		s := ss[i]
		xAxis = append(xAxis, fmt.Sprintf("%.2f", s.At.Sub(start).Seconds()))
		targetX = append(targetX, opts.LineData{Value: s.Target.X})
		targetY = append(targetY, opts.LineData{Value: s.Target.Y})
		curX = append(curX, opts.LineData{Value: s.Current.X})
		curY = append(curY, opts.LineData{Value: s.Current.Y})
		path = append(path, opts.ScatterData{Value: []interface{}{s.Current.X, s.Current.Y}})
	}
	vp := ss[len(ss)-1].Viewport

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Lens position", Subtitle: fmt.Sprintf("%s samples=%d", title, len(ss))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "px"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.SetXAxis(xAxis).
		AddSeries("target x", targetX).
		AddSeries("current x", curX).
		AddSeries("target y", targetY).
		AddSeries("current y", curY).
		SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Lens path", Subtitle: fmt.Sprintf("viewport %s", vp)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: vp.Width, Name: "x (px)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: vp.Height, Name: "y (px)", NameLocation: "middle", NameGap: 30}),
	)
	scatter.AddSeries("current", path, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))

	page := components.NewPage()
	page.AddCharts(line, scatter)
	return page.Render(w)
}

// WriteTrajectoryPNG draws the current position's x and y over time.
func WriteTrajectoryPNG(w io.Writer, title string, ss []lense.Sample) error {
	if len(ss) == 0 {
		return ErrNoSamples
	}
	step := stride(len(ss))
	start := ss[0].At

	n := (len(ss) + step - 1) / step
	xs := make(plotter.XYs, 0, n)
	ys := make(plotter.XYs, 0, n)
	txs := make(plotter.XYs, 0, n)
	for i := 0; i < len(ss); i += step {
		s := ss[i]
		t := s.At.Sub(start).Seconds()
		xs = append(xs, plotter.XY{X: t, Y: s.Current.X})
		ys = append(ys, plotter.XY{X: t, Y: s.Current.Y})
		txs = append(txs, plotter.XY{X: t, Y: s.Target.X})
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "t (s)"
	p.Y.Label.Text = "px"
	p.Add(plotter.NewGrid())

	series := []struct {
		name  string
		pts   plotter.XYs
		color color.RGBA
		dash  bool
	}{
		{"current x", xs, color.RGBA{R: 31, G: 119, B: 180, A: 255}, false},
		{"current y", ys, color.RGBA{R: 255, G: 127, B: 14, A: 255}, false},
		{"target x", txs, color.RGBA{R: 31, G: 119, B: 180, A: 255}, true},
	}
	for _, s := range series {
		l, err := plotter.NewLine(s.pts)
		if err != nil {
			return fmt.Errorf("%s line: %w", s.name, err)
		}
		l.Color = s.color
		l.Width = vg.Points(1)
		if s.dash {
			l.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		}
		p.Add(l)
		p.Legend.Add(s.name, l)
	}
	p.Legend.Top = true

	wt, err := p.WriterTo(10*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("failed to create png writer: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}
