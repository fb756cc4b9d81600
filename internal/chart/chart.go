// Package chart renders the reading history as an SVG or PNG line chart.
package chart

import (
	"errors"
	"fmt"
	"io"
	"time"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/jpalmerr/thermoboard/internal/store"
)

// ErrNoData is returned by [Render] for an empty history.
var ErrNoData = errors.New("chart: no readings to render")

// Format is an output image format.
type Format string

const (
	SVG Format = "svg"
	PNG Format = "png"
)

// ParseFormat returns the Format named by s.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case SVG, PNG:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unsupported chart format %q", s)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == PNG {
		return "image/png"
	}
	return "image/svg+xml"
}

func (f Format) provider() (gochart.RendererProvider, error) {
	switch f {
	case SVG:
		return gochart.SVG, nil
	case PNG:
		return gochart.PNG, nil
	default:
		return nil, fmt.Errorf("unsupported chart format %q", string(f))
	}
}

const (
	DefaultWidth  = 800
	DefaultHeight = 400

	// DefaultPadding widens the Y axis on both sides of the data.
	DefaultPadding = 5.0

	timeLayout = "15:04:05"
)

var lineColor = drawing.ColorFromHex("ff6b6b")

// Options controls chart size and labelling. Zero values use the defaults.
type Options struct {
	Title    string
	Width    int
	Height   int
	Padding  float64
	Location *time.Location
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Padding <= 0 {
		o.Padding = DefaultPadding
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	return o
}

// Render draws readings, in order, as a time series and writes the image to w.
//
// A single reading is drawn as a flat one-second segment since the renderer
// needs at least two X values. The Y axis spans the data range widened by
// Options.Padding on each side.
func Render(w io.Writer, format Format, readings []store.Reading, opts Options) error {
	if len(readings) == 0 {
		return ErrNoData
	}
	provider, err := format.provider()
	if err != nil {
		return err
	}
	opts = opts.withDefaults()

	xs := make([]time.Time, len(readings))
	ys := make([]float64, len(readings))
	lo, hi := readings[0].Temperature, readings[0].Temperature
	for i, r := range readings {
		xs[i] = r.Time()
		ys[i] = r.Temperature
		lo = min(lo, r.Temperature)
		hi = max(hi, r.Temperature)
	}

	style := gochart.Style{
		StrokeColor: lineColor,
		StrokeWidth: 2,
		DotColor:    lineColor,
		DotWidth:    4,
	}
	// pad to at least two X values
	if len(readings) == 1 {
		xs = append(xs, xs[0].Add(time.Second))
		ys = append(ys, ys[0])
		style.DotWidth = 6
	}

	ch := gochart.Chart{
		Title:      opts.Title,
		Width:      opts.Width,
		Height:     opts.Height,
		Background: gochart.Style{Padding: gochart.Box{Top: 20, Left: 20, Right: 30, Bottom: 20}},
		XAxis: gochart.XAxis{
			Name:           "Time",
			ValueFormatter: timeFormatter(opts.Location),
		},
		YAxis: gochart.YAxis{
			Name:  "Temperature (°C)",
			Range: &gochart.ContinuousRange{Min: lo - opts.Padding, Max: hi + opts.Padding},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.1f", f)
				}
				return ""
			},
		},
		Series: []gochart.Series{
			gochart.TimeSeries{
				Name:    "Temperature",
				XValues: xs,
				YValues: ys,
				Style:   style,
			},
		},
	}

	if err := ch.Render(provider, w); err != nil {
		return fmt.Errorf("render %s chart: %w", format, err)
	}
	return nil
}

// timeFormatter labels the time axis as HH:MM:SS in loc.
func timeFormatter(loc *time.Location) gochart.ValueFormatter {
	return func(v interface{}) string {
		switch t := v.(type) {
		case time.Time:
			return t.In(loc).Format(timeLayout)
		case float64:
			return time.Unix(0, int64(t)).In(loc).Format(timeLayout)
		case int64:
			return time.Unix(0, t).In(loc).Format(timeLayout)
		default:
			return ""
		}
	}
}
