package export

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/fmusim/internal/executor"
	"github.com/san-kum/fmusim/internal/introspect"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Padding(0, 1)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("242")).Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

var axisNames = [3]string{"x", "y", "z"}

// PlotASCII draws one chart per position channel, downsampled to width.
func PlotASCII(traj *executor.Trajectory, width, height int) string {
	if traj.Len() == 0 {
		return ""
	}
	t := traj.Times()
	span := fmt.Sprintf("t=%.3g..%.3g s", t[0], t[len(t)-1])

	charts := make([]string, 0, 3)
	for axis := 0; axis < 3; axis++ {
		charts = append(charts, asciigraph.Plot(traj.Channel(axis),
			asciigraph.Height(height),
			asciigraph.Width(width),
			asciigraph.Caption(fmt.Sprintf("body1 %s (%s)", axisNames[axis], span)),
		))
	}
	return strings.Join(charts, "\n\n")
}

// PlotSpectrumASCII draws a power spectrum.
func PlotSpectrumASCII(power []float64, caption string, width, height int) string {
	if len(power) == 0 {
		return ""
	}
	return asciigraph.Plot(power,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}

// VariableTable renders a model's configurable variables.
func VariableTable(modelName string, vars []introspect.Variable) string {
	rows := make([][]string, 0, len(vars))
	for _, v := range vars {
		start := "-"
		if v.Start != nil {
			start = v.Start.String()
		}
		rows = append(rows, []string{v.Name, string(v.Causality), v.Type.String(), start, v.Description})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("NAME", "CAUSALITY", "TYPE", "START", "DESCRIPTION").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 4:
				return dimStyle
			}
			return cellStyle
		})

	title := headerStyle.Render(fmt.Sprintf("%s (%d configurable)", modelName, len(vars)))
	return lipgloss.JoinVertical(lipgloss.Left, title, t.Render())
}

// KeyValues renders label/value pairs as an aligned two-column block.
func KeyValues(pairs [][2]string) string {
	width := 0
	for _, p := range pairs {
		width = max(width, len(p[0]))
	}
	label := dimStyle.Width(width + 2)
	lines := make([]string, len(pairs))
	for i, p := range pairs {
		lines[i] = lipgloss.JoinHorizontal(lipgloss.Top, label.Render(p[0]), cellStyle.Render(p[1]))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
