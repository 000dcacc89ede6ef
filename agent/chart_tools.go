package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// chartTool implements the four free-form chart tools; kind selects which.
type chartTool struct {
	set  *ToolSet
	kind ChartKind
}

type chartInput struct {
	DataQuery   string `json:"data_query"`
	XColumn     string `json:"x_column"`
	YColumn     string `json:"y_column"`
	Column      string `json:"column"`
	Title       string `json:"title"`
	ColorColumn string `json:"color_column"`
	SizeColumn  string `json:"size_column"`
	Orientation string `json:"orientation"`
	SortByX     *bool  `json:"sort_by_x"`
	Bins        int    `json:"bins"`
}

func (t *chartTool) name() string {
	switch t.kind {
	case ChartBar:
		return ToolBarChart
	case ChartLine:
		return ToolLineChart
	case ChartScatter:
		return ToolScatterPlot
	default:
		return ToolHistogram
	}
}

var dataQueryParam = &schema.ParameterInfo{
	Type:     schema.String,
	Desc:     "Use 'use_last' to chart the result of the last analyze_supply_chain_data call, or a SELECT query.",
	Required: true,
}

var colorParam = &schema.ParameterInfo{
	Type: schema.String,
	Desc: "Optional column used to split the data into colored series.",
}

func (t *chartTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	params := map[string]*schema.ParameterInfo{
		"data_query":   dataQueryParam,
		"title":        {Type: schema.String, Desc: "Chart title.", Required: true},
		"color_column": colorParam,
	}
	var desc string
	switch t.kind {
	case ChartHistogram:
		desc = "Create a histogram showing the distribution of one numeric column."
		params["column"] = &schema.ParameterInfo{Type: schema.String, Desc: "Numeric column to bin.", Required: true}
		params["bins"] = &schema.ParameterInfo{Type: schema.Integer, Desc: "Number of bins (default 20)."}
	default:
		params["x_column"] = &schema.ParameterInfo{Type: schema.String, Desc: "Column for the x axis.", Required: true}
		params["y_column"] = &schema.ParameterInfo{Type: schema.String, Desc: "Column for the y axis.", Required: true}
	}
	switch t.kind {
	case ChartBar:
		desc = "Create a bar chart comparing a numeric value across categories."
		params["orientation"] = &schema.ParameterInfo{Type: schema.String, Desc: "'v' for vertical (default) or 'h' for horizontal bars.", Enum: []string{"v", "h"}}
	case ChartLine:
		desc = "Create a line chart showing how a value changes over time or an ordered dimension."
		params["sort_by_x"] = &schema.ParameterInfo{Type: schema.Boolean, Desc: "Sort points by the x column (default true)."}
	case ChartScatter:
		desc = "Create a scatter plot showing the relationship between two numeric columns."
		params["size_column"] = &schema.ParameterInfo{Type: schema.String, Desc: "Optional numeric column controlling point size."}
	}
	return &schema.ToolInfo{
		Name:        t.name(),
		Desc:        desc + " Always run analyze_supply_chain_data first and pass data_query='use_last'.",
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}, nil
}

func (t *chartTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	name := t.name()
	return t.set.run(ctx, name, func() (ToolResult, error) {
		var in chartInput
		if err := decodeInput(name, argumentsInJSON, &in); err != nil {
			return ToolResult{}, err
		}
		spec := ChartSpec{
			Kind:        t.kind,
			Title:       in.Title,
			X:           in.XColumn,
			Y:           in.YColumn,
			Color:       in.ColorColumn,
			Size:        in.SizeColumn,
			Orientation: in.Orientation,
			SortByX:     in.SortByX == nil || *in.SortByX,
			Bins:        in.Bins,
		}
		if t.kind == ChartHistogram {
			spec.X = in.Column
			if spec.Bins <= 0 {
				spec.Bins = 20
			}
		}
		if err := spec.requireSelectors(name); err != nil {
			return ToolResult{}, err
		}
		if spec.Title == "" {
			spec.Title = defaultTitle(spec)
		}
		table, query, err := t.set.resolveData(ctx, in.DataQuery)
		if err != nil {
			return ToolResult{}, err
		}
		return t.set.publishChart(ctx, spec, table, query, describeChart(spec, table))
	}), nil
}

// resolveData picks the table a chart is drawn from: an explicit read-only
// query first, then the last captured query. Explicit queries go through
// Read so the capture slot stays intact.
func (ts *ToolSet) resolveData(ctx context.Context, dataQuery string) (*Table, string, error) {
	q := strings.TrimSpace(dataQuery)
	if q != "" && !strings.EqualFold(q, UseLast) {
		if isReadOnlyQuery(q) {
			table, err := ts.store.Read(ctx, q)
			switch {
			case err != nil:
				ts.log.Warn().Err(err).Str("sql", q).Msg("chart query failed, falling back to last capture")
			case table.Empty():
				ts.log.Info().Str("sql", q).Msg("chart query returned no rows, falling back to last capture")
			default:
				return table, q, nil
			}
		} else {
			ts.log.Warn().Str("data_query", q).Msg("chart data_query is not a SELECT, falling back to last capture")
		}
	}

	cq := ts.store.Capture(ctx)
	if cq.Empty() {
		return nil, "", ErrNoDataAvailable
	}
	table := cq.Result
	if table == nil {
		var err error
		if table, err = ts.store.Read(ctx, cq.Query); err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrNoDataAvailable, err)
		}
	}
	if table.Empty() {
		return nil, "", ErrNoDataAvailable
	}
	return table, cq.Query, nil
}

// publishChart builds and serializes the figure, then records the chart in
// the thread's chart memory.
func (ts *ToolSet) publishChart(ctx context.Context, spec ChartSpec, table *Table, query, description string) (ToolResult, error) {
	fig, err := BuildFigure(spec, table)
	if err != nil {
		return ToolResult{}, err
	}
	artifact, err := SerializeFigure(fig)
	if err != nil {
		return ToolResult{}, &ToolExecutionError{Tool: string(spec.Kind), Err: err}
	}
	id := ts.chartMemory(ctx).Store(spec.Kind, table, query, description)
	ts.log.Debug().Str("chart_id", id).Str("kind", string(spec.Kind)).Int("rows", table.RowCount()).Msg("chart stored")
	return PlotlyResult(artifact, description, id), nil
}

func defaultTitle(spec ChartSpec) string {
	if spec.Kind == ChartHistogram {
		return "Distribution of " + spec.X
	}
	return spec.Y + " by " + spec.X
}

func describeChart(spec ChartSpec, table *Table) string {
	switch spec.Kind {
	case ChartHistogram:
		return fmt.Sprintf("Histogram of %s (%d rows)", spec.X, table.RowCount())
	default:
		s := fmt.Sprintf("%s chart of %s by %s", strings.ToUpper(string(spec.Kind[:1]))+string(spec.Kind[1:]), spec.Y, spec.X)
		if spec.Color != "" {
			s += ", colored by " + spec.Color
		}
		return fmt.Sprintf("%s (%d rows)", s, table.RowCount())
	}
}
