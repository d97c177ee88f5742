package tui

import (
	"fmt"
	"strings"

	"go-pipeline/internal/board"
	"go-pipeline/internal/common/models"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

const minColumnWidth = 22

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	statStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236")).
			Padding(0, 1).
			MarginRight(1)

	columnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	targetColumnStyle = columnStyle.
				BorderForeground(lipgloss.Color("170"))

	cardStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	selectedCardStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("229")).
				Background(lipgloss.Color("57"))

	liftedCardStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("214"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func (m Model) View() string {
	if !m.snap.Loaded {
		return titleStyle.Render("Sales Pipeline") + "\n\n" + mutedStyle.Render("Loading pipeline...") + "\n"
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(m.renderColumns())
	b.WriteString("\n")
	if line := m.renderNotice(); line != "" {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) renderHeader() string {
	stats := lipgloss.JoinHorizontal(lipgloss.Top,
		statStyle.Render("Pipeline "+money(m.snap.TotalPipeline)),
		statStyle.Render("Margin "+money(m.snap.TotalMargin)),
		statStyle.Render(fmt.Sprintf("%d deals", m.snap.DealCount)),
	)
	title := titleStyle.Render("Sales Pipeline")
	if m.busy {
		title += mutedStyle.Render("  syncing...")
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, stats)
}

func (m Model) columnWidth() int {
	n := len(m.snap.Stages)
	if n == 0 {
		return minColumnWidth
	}
	// border and padding take four cells per column
	return max(m.width/n-4, minColumnWidth)
}

func (m Model) renderColumns() string {
	if len(m.snap.Stages) == 0 {
		return mutedStyle.Render("No stages configured.")
	}
	width := m.columnWidth()
	cols := make([]string, len(m.snap.Stages))
	for i, col := range m.snap.Stages {
		style := columnStyle
		if m.lifted != "" && i == m.col {
			style = targetColumnStyle
		}
		cols[i] = style.Width(width).Render(m.renderColumn(i, col, width))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func (m Model) renderColumn(idx int, col board.StageColumn, width int) string {
	lines := []string{
		titleStyle.Render(truncate(col.Name, width)),
		mutedStyle.Render(fmt.Sprintf("%d · %s", col.DealCount, money(col.TotalValue))),
		"",
	}
	if len(col.Deals) == 0 {
		lines = append(lines, mutedStyle.Render("No deals"))
	}
	for j, d := range col.Deals {
		lines = append(lines, m.renderCard(d, idx == m.col && j == m.row, width))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderCard(d models.Deal, selected bool, width int) string {
	text := truncate(fmt.Sprintf("%s %s %s", d.ClientInitials, d.ClientName, money(d.EstimatedBudget)), width)
	switch {
	case d.ID == m.lifted:
		return liftedCardStyle.Render(truncate("↕ "+text, width))
	case selected && m.lifted == "":
		return selectedCardStyle.Render(text)
	default:
		return cardStyle.Render(text)
	}
}

func (m Model) renderNotice() string {
	if m.notice == nil {
		return ""
	}
	text := m.notice.Title + ": " + m.notice.Message
	if m.notice.Level == board.LevelError {
		return errorStyle.Render(text)
	}
	return infoStyle.Render(text)
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 1 {
		return string(r[:width])
	}
	return string(r[:width-1]) + "…"
}
