package agent

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Figure is a Plotly-compatible chart artifact: the JSON produced by
// SerializeFigure can be handed to plotly.js (Plotly.newPlot) as is.
type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

// Trace is one plotted series.
type Trace struct {
	Type        string  `json:"type"`
	Mode        string  `json:"mode,omitempty"`
	Name        string  `json:"name,omitempty"`
	X           []any   `json:"x,omitempty"`
	Y           []any   `json:"y,omitempty"`
	Orientation string  `json:"orientation,omitempty"`
	NBinsX      int     `json:"nbinsx,omitempty"`
	Marker      *Marker `json:"marker,omitempty"`
}

// Marker carries per-point sizes for scatter plots.
type Marker struct {
	Size     []any   `json:"size,omitempty"`
	SizeMode string  `json:"sizemode,omitempty"`
	SizeRef  float64 `json:"sizeref,omitempty"`
}

type Layout struct {
	Title      Text   `json:"title"`
	XAxis      Axis   `json:"xaxis"`
	YAxis      Axis   `json:"yaxis"`
	BarMode    string `json:"barmode,omitempty"`
	ShowLegend bool   `json:"showlegend"`
}

type Axis struct {
	Title     Text    `json:"title"`
	TickAngle float64 `json:"tickangle,omitempty"`
}

type Text struct {
	Text string `json:"text"`
}

// ChartSpec describes the chart a tool was asked to draw.
type ChartSpec struct {
	Kind        ChartKind
	Title       string
	X           string
	Y           string
	Color       string
	Size        string
	Orientation string // bar only: "v" or "h"
	SortByX     bool   // line only
	Bins        int    // histogram only
}

// columns lists every column the spec references, in argument order.
func (s ChartSpec) columns() []string {
	var cols []string
	add := func(c string) {
		if c != "" {
			cols = append(cols, c)
		}
	}
	add(s.X)
	if s.Kind != ChartHistogram {
		add(s.Y)
	}
	add(s.Color)
	if s.Kind == ChartScatter {
		add(s.Size)
	}
	return cols
}

// requireSelectors fails with *InvalidInputError when an axis the kind
// cannot be drawn without is empty: x and y for bar, line and scatter,
// the binned column for histograms.
func (s ChartSpec) requireSelectors(toolName string) error {
	type selector struct{ arg, column string }
	var required []selector
	switch s.Kind {
	case ChartHistogram:
		required = []selector{{"column", s.X}}
	default:
		required = []selector{{"x_column", s.X}, {"y_column", s.Y}}
	}
	for _, sel := range required {
		if strings.TrimSpace(sel.column) == "" {
			return &InvalidInputError{Tool: toolName, Err: fmt.Errorf("%s is required", sel.arg)}
		}
	}
	return nil
}

// validateColumns fails with *ColumnNotFoundError on the first missing column.
func validateColumns(table *Table, cols ...string) error {
	for _, c := range cols {
		if !table.HasColumn(c) {
			return &ColumnNotFoundError{Column: c, Available: append([]string(nil), table.Columns...)}
		}
	}
	return nil
}

// BuildFigure renders table according to spec.
func BuildFigure(spec ChartSpec, table *Table) (*Figure, error) {
	if err := spec.requireSelectors(string(spec.Kind)); err != nil {
		return nil, err
	}
	if table.Empty() {
		return nil, ErrNoDataAvailable
	}
	if err := validateColumns(table, spec.columns()...); err != nil {
		return nil, err
	}

	rows := table.Rows
	if spec.Kind == ChartLine && spec.SortByX {
		rows = sortedByColumn(table, spec.X)
	}

	fig := &Figure{Layout: Layout{
		Title:      Text{spec.Title},
		XAxis:      Axis{Title: Text{spec.X}},
		YAxis:      Axis{Title: Text{spec.Y}},
		ShowLegend: spec.Color != "",
	}}

	xi := table.ColumnIndex(spec.X)
	yi := table.ColumnIndex(spec.Y)
	si := table.ColumnIndex(spec.Size)

	for _, g := range groupRows(table, rows, spec.Color) {
		tr := Trace{Name: g.name}
		switch spec.Kind {
		case ChartBar:
			tr.Type = "bar"
			if spec.Orientation == "h" {
				tr.Orientation = "h"
				tr.X, tr.Y = pluck(g.rows, yi), pluck(g.rows, xi)
			} else {
				tr.X, tr.Y = pluck(g.rows, xi), pluck(g.rows, yi)
			}
		case ChartLine, ChartMonthlyTrends:
			tr.Type, tr.Mode = "scatter", "lines+markers"
			tr.X, tr.Y = pluck(g.rows, xi), pluck(g.rows, yi)
		case ChartScatter:
			tr.Type, tr.Mode = "scatter", "markers"
			tr.X, tr.Y = pluck(g.rows, xi), pluck(g.rows, yi)
			if si >= 0 {
				tr.Marker = &Marker{Size: pluck(g.rows, si), SizeMode: "area", SizeRef: sizeRef(g.rows, si)}
			}
		case ChartHistogram:
			tr.Type = "histogram"
			tr.X = pluck(g.rows, xi)
			tr.NBinsX = spec.Bins
		default:
			return nil, fmt.Errorf("unsupported chart kind %q", spec.Kind)
		}
		fig.Data = append(fig.Data, tr)
	}

	switch spec.Kind {
	case ChartBar:
		if spec.Color != "" {
			fig.Layout.BarMode = "group"
		}
		if spec.Orientation == "h" {
			fig.Layout.XAxis.Title, fig.Layout.YAxis.Title = Text{spec.Y}, Text{spec.X}
		}
	case ChartHistogram:
		fig.Layout.YAxis.Title = Text{"count"}
	case ChartMonthlyTrends:
		fig.Layout.XAxis.TickAngle = -45
		fig.Layout.ShowLegend = true
	}
	return fig, nil
}

type rowGroup struct {
	name string
	rows [][]any
}

// groupRows splits rows by the value of the color column, keeping groups
// in order of first appearance. Without a color column there is one group.
func groupRows(table *Table, rows [][]any, color string) []rowGroup {
	ci := table.ColumnIndex(color)
	if ci < 0 {
		return []rowGroup{{rows: rows}}
	}
	var groups []rowGroup
	index := map[string]int{}
	for _, row := range rows {
		key := FormatCell(row[ci])
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, rowGroup{name: key})
		}
		groups[i].rows = append(groups[i].rows, row)
	}
	return groups
}

func pluck(rows [][]any, idx int) []any {
	out := make([]any, len(rows))
	for i, row := range rows {
		if idx >= 0 && idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out
}

// sizeRef scales bubble areas so the largest marker is about 40px wide.
func sizeRef(rows [][]any, idx int) float64 {
	maxSize := 0.0
	for _, row := range rows {
		if f, ok := toFloat(row[idx]); ok && f > maxSize {
			maxSize = f
		}
	}
	if maxSize == 0 {
		return 1
	}
	return 2 * maxSize / (40 * 40)
}

func sortedByColumn(table *Table, col string) [][]any {
	idx := table.ColumnIndex(col)
	rows := append([][]any(nil), table.Rows...)
	sort.SliceStable(rows, func(i, j int) bool {
		a, aok := toFloat(rows[i][idx])
		b, bok := toFloat(rows[j][idx])
		if aok && bok {
			return a < b
		}
		return FormatCell(rows[i][idx]) < FormatCell(rows[j][idx])
	})
	return rows
}

// SerializeFigure encodes a figure for transport inside a tool result.
func SerializeFigure(fig *Figure) (string, error) {
	b, err := json.Marshal(fig)
	if err != nil {
		return "", fmt.Errorf("serialize chart: %w", err)
	}
	return string(b), nil
}

// ParseFigure decodes a serialized figure. A figure without traces is
// rejected so callers can fall back to the raw artifact.
func ParseFigure(s string) (*Figure, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("parse chart: empty artifact")
	}
	var fig Figure
	if err := json.Unmarshal([]byte(s), &fig); err != nil {
		return nil, fmt.Errorf("parse chart: %w", err)
	}
	if len(fig.Data) == 0 {
		return nil, fmt.Errorf("parse chart: no traces")
	}
	return &fig, nil
}
