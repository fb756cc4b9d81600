package tui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// RenderSparkline renders values as a one-line block chart scaled to
// [rangeMin, rangeMax]. Only the last width values are drawn; when there are
// fewer, the line is left-padded with a dim placeholder.
func RenderSparkline(values []float64, width int, rangeMin, rangeMax float64) string {
	if width <= 0 {
		return ""
	}

	dim := lipgloss.NewStyle().Foreground(colorDim)
	if len(values) == 0 {
		return dim.Render(strings.Repeat("╌", width))
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	span := rangeMax - rangeMin
	if span <= 0 {
		span = 1
	}

	var sb strings.Builder
	sb.WriteString(dim.Render(strings.Repeat("╌", width-len(values))))

	style := lipgloss.NewStyle().Foreground(colorAccent)
	for _, v := range values {
		norm := math.Max(0, math.Min(1, (v-rangeMin)/span))
		idx := int(norm * float64(len(sparkBlocks)-1))
		sb.WriteString(style.Render(string(sparkBlocks[idx])))
	}
	return sb.String()
}
