// Package summary renders the flat list of functions of a parsed report as a
// terminal table.
package summary

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/Emyrk/gprof-viewer/gprof"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Order is the sort order of the table rows.
type Order string

const (
	OrderReport Order = "report"
	OrderValue  Order = "value"
	OrderSelf   Order = "self"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).MarginBottom(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	cycleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

// Rows returns one row per function: index, name, self, children, calls,
// value.
func Rows(report *gprof.Report, order Order) [][]string {
	functions := report.Functions()
	switch order {
	case OrderValue:
		sort.SliceStable(functions, func(i, j int) bool { return functions[i].Value > functions[j].Value })
	case OrderSelf:
		sort.SliceStable(functions, func(i, j int) bool { return functions[i].SelfTime > functions[j].SelfTime })
	}

	rows := make([][]string, 0, len(functions))
	for _, f := range functions {
		calls := strconv.Itoa(f.Calls)
		if f.TotalCalls > 0 {
			calls += "+" + strconv.Itoa(f.TotalCalls)
		}
		rows = append(rows, []string{
			strconv.Itoa(f.Index),
			f.Name,
			fmt.Sprintf("%.4f", f.SelfTime),
			fmt.Sprintf("%.4f", f.ChildrenTime),
			calls,
			fmt.Sprintf("%.4f", f.Value),
		})
	}
	return rows
}

// Render writes the table and a line about call cycles.
func Render(w io.Writer, title string, report *gprof.Report, order Order) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("INDEX", "NAME", "SELF", "CHILDREN", "CALLS", "VALUE").
		Rows(Rows(report, order)...)

	if _, err := fmt.Fprintln(w, titleStyle.Render(title)); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, t); err != nil {
		return err
	}

	cycles := report.Cycles()
	if len(cycles) == 0 {
		_, err := fmt.Fprintln(w, "No call cycles")
		return err
	}
	_, err := fmt.Fprintln(w, cycleStyle.Render(fmt.Sprintf("%d call cycles", len(cycles))))
	return err
}
