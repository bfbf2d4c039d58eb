package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	json "github.com/goccy/go-json"

	"github.com/mesh-intelligence/journey/internal/perf"
	"github.com/mesh-intelligence/journey/pkg/types"
)

// Output colors.
var (
	brand  = color.New(color.FgHiGreen, color.Bold)
	subtle = color.New(color.FgHiBlack)
	warn   = color.New(color.FgYellow)
	good   = color.New(color.FgGreen)
	bad    = color.New(color.FgRed)
)

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Fprintln(w, string(out))
	return nil
}

// printTable prints rows under headers in aligned columns.
func printTable(w io.Writer, headers []string, rows [][]string) {
	if len(rows) == 0 {
		subtle.Fprintln(w, "  (none)")
		return
	}
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var head, sep strings.Builder
	for i, h := range headers {
		fmt.Fprintf(&head, "%-*s  ", widths[i], h)
		sep.WriteString(strings.Repeat("─", widths[i]) + "  ")
	}
	subtle.Fprintln(w, strings.TrimRight(head.String(), " "))
	subtle.Fprintln(w, strings.TrimRight(sep.String(), " "))
	for _, row := range rows {
		var line strings.Builder
		for i, cell := range row {
			if i < len(widths) {
				fmt.Fprintf(&line, "%-*s  ", widths[i], cell)
			}
		}
		fmt.Fprintln(w, strings.TrimRight(line.String(), " "))
	}
}

func formatPoint(p types.Point) string {
	return fmt.Sprintf("%g,%g", p.X, p.Y)
}

func formatEndpoint(e types.Endpoint) string {
	if e.IsFree() {
		return "@" + formatPoint(*e.Point)
	}
	if e.PortID == "" {
		return e.CellID
	}
	return e.CellID + ":" + e.PortID
}

// healthColor picks the color for a health status.
func healthColor(status string) *color.Color {
	switch status {
	case perf.HealthGood:
		return good
	case perf.HealthWarning:
		return warn
	default:
		return bad
	}
}
