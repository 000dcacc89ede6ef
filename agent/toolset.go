package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/rs/zerolog"
)

// Names of the top-level tools offered to the dispatch model.
const (
	ToolAnalyze       = "analyze_supply_chain_data"
	ToolBarChart      = "create_bar_chart"
	ToolLineChart     = "create_line_chart"
	ToolScatterPlot   = "create_scatter_plot"
	ToolHistogram     = "create_histogram"
	ToolMonthlyTrends = "plot_monthly_transaction_trends"
	ToolChartFollowup = "analyze_chart_data"
)

// UseLast is the data_query token selecting the last captured query.
const UseLast = "use_last"

func isChartTool(name string) bool {
	switch name {
	case ToolBarChart, ToolLineChart, ToolScatterPlot, ToolHistogram, ToolMonthlyTrends:
		return true
	}
	return false
}

// ToolSet is the fixed collection of capabilities the orchestrator offers.
type ToolSet struct {
	store    *QueryCapturingStore
	charts   *ChartMemories
	answerer QueryAnswerer
	log      zerolog.Logger
	tools    []tool.InvokableTool
}

// NewToolSet builds every top-level tool over one store adapter.
func NewToolSet(store *QueryCapturingStore, answerer QueryAnswerer, charts *ChartMemories, log zerolog.Logger) *ToolSet {
	ts := &ToolSet{store: store, charts: charts, answerer: answerer, log: log}
	ts.tools = []tool.InvokableTool{
		&analyzeTool{set: ts},
		&chartTool{set: ts, kind: ChartBar},
		&chartTool{set: ts, kind: ChartLine},
		&chartTool{set: ts, kind: ChartScatter},
		&chartTool{set: ts, kind: ChartHistogram},
		&monthlyTrendTool{set: ts},
		&followupTool{set: ts},
	}
	return ts
}

// Tools returns the tools in a stable order.
func (ts *ToolSet) Tools() []tool.InvokableTool {
	return append([]tool.InvokableTool(nil), ts.tools...)
}

func (ts *ToolSet) chartMemory(ctx context.Context) *ChartMemory {
	return ts.charts.For(ThreadIDFrom(ctx))
}

// run executes fn at the tool boundary: panics and errors become error
// results, so InvokableRun never fails for domain reasons.
func (ts *ToolSet) run(ctx context.Context, name string, fn func() (ToolResult, error)) (out string) {
	start := time.Now()
	log := ts.log.With().Str("tool", name).Str("thread_id", ThreadIDFrom(ctx)).Logger()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("tool panicked")
			out = ErrorResult(&ToolExecutionError{Tool: name, Err: fmt.Errorf("panic: %v", r)}).Encode()
		}
	}()

	res, err := fn()
	if err != nil {
		log.Warn().Err(err).Dur("duration", time.Since(start)).Msg("tool failed")
		return ErrorResult(err).Encode()
	}
	log.Info().Str("result", string(res.Type)).Dur("duration", time.Since(start)).Msg("tool finished")
	return res.Encode()
}

func decodeInput(name, argumentsInJSON string, v any) error {
	if strings.TrimSpace(argumentsInJSON) == "" {
		argumentsInJSON = "{}"
	}
	if err := json.Unmarshal([]byte(argumentsInJSON), v); err != nil {
		return &InvalidInputError{Tool: name, Err: err}
	}
	return nil
}
