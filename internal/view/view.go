// Package view turns the published acquisition state into what a frontend
// shows.
//
// [Render] is a pure function: the same [store.State] and [Options] always
// produce the same [Model]. The web dashboard and the terminal UI both render
// from it, so the display rules live in one place.
package view

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jpalmerr/thermoboard/internal/store"
)

const (
	// DefaultTitle is the page heading used when none is configured.
	DefaultTitle = "Temperature Monitoring System"

	// Unit is appended to every formatted temperature.
	Unit = "°C"

	// ChartTitle heads the history chart.
	ChartTitle = "Temperature History"

	// NoDataMessage is shown once loading is over, nothing has arrived and
	// nothing has failed.
	NoDataMessage = "Waiting for temperature data..."

	// Footer is the page footer line.
	Footer = "Industrial Electronics Project - Temperature Monitoring HMI"

	// TimeLayout formats reading times on the chart axis and current value.
	TimeLayout = "15:04:05"

	// chartPadding widens the Y domain on both sides of the data.
	chartPadding = 5.0
)

// Status is a one-word summary of the state.
type Status string

const (
	StatusLoading Status = "loading"
	StatusWaiting Status = "waiting"
	StatusOK      Status = "ok"
	StatusStale   Status = "stale"
	StatusError   Status = "error"
)

// Options carries the static inputs to [Render].
type Options struct {
	// Title is the page heading. Empty uses [DefaultTitle].
	Title string

	// Address is the configured device address named in the subtitle and
	// error banner.
	Address string

	// Location is the time zone for formatted times. Nil uses time.Local.
	Location *time.Location
}

// Model is everything a frontend needs to draw one frame.
type Model struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Footer   string `json:"footer"`
	Status   Status `json:"status"`

	// Loading is true until the first fetch attempt resolves.
	Loading bool `json:"loading"`

	// Current is the current-value card. It is always present; its Label
	// says whether it holds a value.
	Current Current `json:"current"`

	// Error is the connection banner, nil when the last attempt succeeded.
	Error *Banner `json:"error"`

	// Chart is nil while history is empty.
	Chart *Chart `json:"chart"`

	// NoData is [NoDataMessage] when it should be shown, empty otherwise.
	NoData string `json:"no_data,omitempty"`

	// UpdatedAt is the HH:MM:SS of the last state change, empty before it.
	UpdatedAt string `json:"updated_at,omitempty"`
}

// Current is the current-temperature card.
type Current struct {
	// Label is "Loading...", "No Data" or "Current Temperature".
	Label string `json:"label"`

	// Value is the latest temperature with two decimals, empty without one.
	Value string `json:"value,omitempty"`

	// Unit is [Unit] when Value is set.
	Unit string `json:"unit,omitempty"`

	// Time is the HH:MM:SS of the latest reading.
	Time string `json:"time,omitempty"`

	// Celsius is the raw latest value.
	Celsius *float64 `json:"celsius,omitempty"`
}

// Banner is the connection error banner.
type Banner struct {
	Title   string `json:"title"`
	Message string `json:"message"`

	// Detail is the underlying error text, e.g. "device returned HTTP status 500".
	Detail string `json:"detail"`

	// Kind is the error kind: "http_status", "network" or "malformed_body".
	Kind string `json:"kind"`
}

// Chart is the history series in arrival order.
type Chart struct {
	Title  string  `json:"title"`
	Points []Point `json:"points"`

	// YMin and YMax are the axis domain: the data range padded by 5 degrees.
	YMin float64 `json:"y_min"`
	YMax float64 `json:"y_max"`
}

// Point is one chart sample.
type Point struct {
	Label       string  `json:"label"`
	Timestamp   int64   `json:"timestamp"`
	Temperature float64 `json:"temperature"`
}

// Render builds the [Model] for state.
func Render(state store.State, opts Options) Model {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	title := opts.Title
	if title == "" {
		title = DefaultTitle
	}

	m := Model{
		Title:    title,
		Subtitle: Subtitle(opts.Address),
		Footer:   Footer,
		Status:   statusOf(state),
		Loading:  state.IsLoading,
		Current:  currentOf(state, loc),
	}

	if state.LastError != nil {
		m.Error = &Banner{
			Title:   "Connection Error",
			Message: ErrorMessage(opts.Address),
			Detail:  state.LastError.Message,
			Kind:    state.LastError.Kind,
		}
	}

	if len(state.History) > 0 {
		m.Chart = chartOf(state.History, loc)
	}

	if !state.IsLoading && len(state.History) == 0 && state.LastError == nil {
		m.NoData = NoDataMessage
	}

	if !state.UpdatedAt.IsZero() {
		m.UpdatedAt = state.UpdatedAt.In(loc).Format(TimeLayout)
	}

	return m
}

// Subtitle returns the header line naming the device.
func Subtitle(address string) string {
	return "Direct device connection · " + address
}

// ErrorMessage returns the banner text for an unreachable device.
func ErrorMessage(address string) string {
	return fmt.Sprintf("Cannot reach device at %s. Check that the device is powered on, "+
		"connected to the network, and that the configured address is correct.", address)
}

// FormatTemperature formats v with two decimals and the unit, e.g. "22.35°C".
func FormatTemperature(v float64) string {
	return formatValue(v) + Unit
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func statusOf(state store.State) Status {
	switch {
	case state.IsLoading:
		return StatusLoading
	case state.LastError != nil && state.Latest != nil:
		return StatusStale
	case state.LastError != nil:
		return StatusError
	case len(state.History) == 0:
		return StatusWaiting
	default:
		return StatusOK
	}
}

func currentOf(state store.State, loc *time.Location) Current {
	switch {
	case state.IsLoading:
		return Current{Label: "Loading..."}
	case state.Latest == nil:
		return Current{Label: "No Data"}
	}

	v := state.Latest.Temperature
	return Current{
		Label:   "Current Temperature",
		Value:   formatValue(v),
		Unit:    Unit,
		Time:    state.Latest.Time().In(loc).Format(TimeLayout),
		Celsius: &v,
	}
}

func chartOf(readings []store.Reading, loc *time.Location) *Chart {
	c := &Chart{
		Title:  ChartTitle,
		Points: make([]Point, len(readings)),
	}

	lo, hi := readings[0].Temperature, readings[0].Temperature
	for i, r := range readings {
		c.Points[i] = Point{
			Label:       r.Time().In(loc).Format(TimeLayout),
			Timestamp:   r.Timestamp,
			Temperature: r.Temperature,
		}
		lo = min(lo, r.Temperature)
		hi = max(hi, r.Temperature)
	}

	c.YMin = lo - chartPadding
	c.YMax = hi + chartPadding
	return c
}
