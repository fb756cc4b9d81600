// Package tui implements the terminal dashboard using BubbleTea.
//
// The terminal UI shows the same [view.Model] as the web dashboard: the
// current value, an error banner, and the history as a sparkline. It is fed
// by a store subscription and never polls the device itself.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jpalmerr/thermoboard/internal/store"
	"github.com/jpalmerr/thermoboard/internal/view"
)

const defaultWidth = 80

// Refresher issues an out-of-schedule fetch.
type Refresher interface {
	Refresh() bool
}

// ── Messages ─────────────────────────────────────────────────────────

type stateMsg store.State

// closedMsg reports that the store subscription ended.
type closedMsg struct{}

func waitForState(ch <-chan store.State) tea.Cmd {
	return func() tea.Msg {
		state, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return stateMsg(state)
	}
}

// ── Model ────────────────────────────────────────────────────────────

// Model is the BubbleTea model for the terminal dashboard.
type Model struct {
	states    <-chan store.State
	refresher Refresher
	opts      view.Options

	state  store.State
	notice string
	width  int
	height int
}

// New creates the model. states delivers state updates; initial is drawn
// until the first one arrives.
func New(initial store.State, states <-chan store.State, refresher Refresher, opts view.Options) Model {
	return Model{
		states:    states,
		refresher: refresher,
		opts:      opts,
		state:     initial,
	}
}

// Run subscribes to st and runs the terminal UI until the user quits or ctx
// is cancelled.
func Run(ctx context.Context, st store.Store, refresher Refresher, opts view.Options, progOpts ...tea.ProgramOption) error {
	ch := st.Subscribe()
	defer st.Unsubscribe(ch)

	progOpts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, progOpts...)
	p := tea.NewProgram(New(st.Get(), ch, refresher, opts), progOpts...)

	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("terminal ui: %w", err)
	}
	return nil
}

// ── Init / Update ────────────────────────────────────────────────────

func (m Model) Init() tea.Cmd {
	if m.states == nil {
		return nil
	}
	return waitForState(m.states)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			m.notice = m.refresh()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case stateMsg:
		m.state = store.State(msg)
		return m, waitForState(m.states)

	case closedMsg:
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) refresh() string {
	if m.refresher == nil {
		return "refresh unavailable"
	}
	if m.refresher.Refresh() {
		return "refresh requested"
	}
	return "refresh skipped: a fetch is already in flight"
}

// State returns the state currently drawn.
func (m Model) State() store.State {
	return m.state
}

// ── Color palette ────────────────────────────────────────────────────

var (
	colorTitleBg  = lipgloss.Color("17")
	colorTitleFg  = lipgloss.Color("51")
	colorBorder   = lipgloss.Color("62")
	colorLabel    = lipgloss.Color("252")
	colorDim      = lipgloss.Color("240")
	colorFooterBg = lipgloss.Color("235")
	colorAccent   = lipgloss.Color("203")
	colorOk       = lipgloss.Color("78")
	colorWarn     = lipgloss.Color("220")
	colorCrit     = lipgloss.Color("196")
)

// ── View ─────────────────────────────────────────────────────────────

func (m Model) View() string {
	width := m.width
	if width == 0 {
		width = defaultWidth
	}
	contentWidth := width - 2
	if contentWidth < 40 {
		contentWidth = 40
	}

	vm := view.Render(m.state, m.opts)

	sections := []string{m.renderTitleBar(vm, contentWidth)}

	subtitle := lipgloss.NewStyle().
		Foreground(colorDim).
		Padding(0, 1).
		Render(vm.Subtitle)
	sections = append(sections, subtitle)

	if vm.Error != nil {
		errBox := lipgloss.NewStyle().
			Foreground(colorCrit).
			Width(contentWidth).
			Padding(0, 1).
			Render(vm.Error.Title + ": " + vm.Error.Message + "\n" + vm.Error.Detail)
		sections = append(sections, errBox)
	}

	sections = append(sections, m.renderCurrent(vm, contentWidth))

	if vm.Chart != nil {
		sections = append(sections, m.renderChart(vm.Chart, contentWidth))
	}

	if vm.NoData != "" {
		waiting := lipgloss.NewStyle().
			Foreground(colorDim).
			Width(contentWidth).
			Align(lipgloss.Center).
			Padding(1, 0).
			Render(vm.NoData)
		sections = append(sections, waiting)
	}

	sections = append(sections, m.renderFooter(vm, contentWidth))

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)
	if m.height > 0 {
		lines := strings.Split(content, "\n")
		if len(lines) > m.height {
			content = strings.Join(lines[:m.height], "\n")
		}
	}
	return content
}

func (m Model) renderTitleBar(vm view.Model, width int) string {
	logo := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorTitleFg).
		Render(vm.Title)

	statusParts := []string{
		lipgloss.NewStyle().Foreground(statusColor(vm.Status)).Bold(true).Render(strings.ToUpper(string(vm.Status))),
	}
	if vm.UpdatedAt != "" {
		statusParts = append(statusParts, lipgloss.NewStyle().Foreground(colorDim).Render(vm.UpdatedAt))
	}

	sep := lipgloss.NewStyle().Foreground(colorDim).Render(" │ ")
	right := strings.Join(statusParts, sep)

	gap := width - lipgloss.Width(logo) - lipgloss.Width(right) - 4
	if gap < 1 {
		gap = 1
	}

	return lipgloss.NewStyle().
		Background(colorTitleBg).
		Width(width).
		Padding(0, 1).
		Render(logo + strings.Repeat(" ", gap) + right)
}

func (m Model) renderCurrent(vm view.Model, width int) string {
	label := lipgloss.NewStyle().Foreground(colorDim).Render(vm.Current.Label)

	body := label
	if vm.Current.Value != "" {
		value := lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent).
			Render(vm.Current.Value + vm.Current.Unit)
		at := lipgloss.NewStyle().Foreground(colorDim).Render("at " + vm.Current.Time)
		body = lipgloss.JoinVertical(lipgloss.Left, label, value+"  "+at)
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Width(width - 2).
		Padding(0, 1).
		Render(body)
}

func (m Model) renderChart(c *view.Chart, width int) string {
	chartWidth := width - 6
	values := make([]float64, len(c.Points))
	for i, p := range c.Points {
		values[i] = p.Temperature
	}

	title := lipgloss.NewStyle().Foreground(colorLabel).Bold(true).Render(c.Title)
	spark := RenderSparkline(values, chartWidth, c.YMin, c.YMax)

	first, last := c.Points[0].Label, c.Points[len(c.Points)-1].Label
	gap := chartWidth - len(first) - len(last)
	if gap < 1 {
		gap = 1
	}
	axis := lipgloss.NewStyle().Foreground(colorDim).Render(first + strings.Repeat(" ", gap) + last)

	scale := lipgloss.NewStyle().Foreground(colorDim).Render(
		fmt.Sprintf("%s .. %s", view.FormatTemperature(c.YMin), view.FormatTemperature(c.YMax)))

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Width(width - 2).
		Padding(0, 1).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, spark, axis, scale))
}

func (m Model) renderFooter(vm view.Model, width int) string {
	dimS := lipgloss.NewStyle().Foreground(colorDim)
	keyS := lipgloss.NewStyle().Foreground(colorLabel)

	keys := keyS.Render("r") + dimS.Render(" refresh  ") + keyS.Render("q") + dimS.Render(" quit")
	if m.notice != "" {
		keys += dimS.Render("  │ " + m.notice)
	}

	bar := lipgloss.NewStyle().
		Background(colorFooterBg).
		Width(width).
		Padding(0, 1).
		Render(keys)
	footer := lipgloss.NewStyle().
		Foreground(colorDim).
		Width(width).
		Align(lipgloss.Center).
		Render(vm.Footer)

	return lipgloss.JoinVertical(lipgloss.Left, footer, bar)
}

func statusColor(s view.Status) lipgloss.Color {
	switch s {
	case view.StatusOK:
		return colorOk
	case view.StatusStale, view.StatusLoading, view.StatusWaiting:
		return colorWarn
	default:
		return colorCrit
	}
}
