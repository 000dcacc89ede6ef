package agent

import (
	"context"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
)

// fallbackWindow is how many trailing messages are treated as the current
// turn when the question cannot be located in the dispatch output.
const fallbackWindow = 4

// turnArtifacts is everything recovered from one turn's tool activity.
type turnArtifacts struct {
	AnalysisText string
	SQLQuery     string
	Table        *Table

	Chart     *Chart
	ChartKind ChartKind

	FollowupText string
	NoChart      bool

	// Ambiguous is set when the fallback window was used.
	Ambiguous bool
}

func (a *turnArtifacts) hasTable() bool { return a.Table != nil || a.SQLQuery != "" }

// turnWindow returns the messages produced after the last user message whose
// content equals question. If none matches, the last fallbackWindow messages
// are returned with ambiguous set.
func turnWindow(msgs []*schema.Message, question string) (window []*schema.Message, ambiguous bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if m := msgs[i]; m != nil && m.Role == schema.User && m.Content == question {
			return msgs[i+1:], false
		}
	}
	start := len(msgs) - fallbackWindow
	if start < 0 {
		start = 0
	}
	return msgs[start:], true
}

// extractor interprets the dispatch output of one turn.
type extractor struct {
	store  *QueryCapturingStore
	charts *ChartMemory
	log    zerolog.Logger
}

func (e *extractor) extract(ctx context.Context, msgs []*schema.Message, question string) *turnArtifacts {
	window, ambiguous := turnWindow(msgs, question)
	art := &turnArtifacts{Ambiguous: ambiguous}
	if ambiguous {
		e.log.Warn().Err(ErrExtractionAmbiguous).Int("window", len(window)).Msg("question not found in dispatch output")
	}

	results := make(map[string]*schema.Message)
	for _, m := range window {
		if m != nil && m.Role == schema.Tool && m.ToolCallID != "" {
			results[m.ToolCallID] = m
		}
	}

	var chartID string
	for _, m := range window {
		if m == nil || m.Role != schema.Assistant {
			continue
		}
		for _, call := range m.ToolCalls {
			res, ok := results[call.ID]
			if !ok {
				e.log.Debug().Str("tool", call.Function.Name).Str("call_id", call.ID).Msg("tool call without result")
				continue
			}
			name := call.Function.Name
			switch {
			case name == ToolAnalyze:
				e.extractAnalysis(ctx, art, res.Content)
			case isChartTool(name):
				if id := e.extractChart(art, name, res.Content); id != "" {
					chartID = id
				}
			case name == ToolChartFollowup:
				e.extractFollowup(art, res.Content)
			}
		}
	}

	if art.Chart != nil {
		e.attachChartData(art, chartID)
	}
	return art
}

func (e *extractor) extractAnalysis(ctx context.Context, art *turnArtifacts, content string) {
	res, err := ParseToolResult(content)
	if err == nil {
		switch res.Type {
		case ResultTable:
			art.AnalysisText = res.Text
			art.SQLQuery = res.SQLQuery
			art.Table = res.Table
			return
		case ResultText:
			art.AnalysisText = res.Content
			return
		case ResultError:
			e.log.Info().Str("code", string(res.Code)).Msg("analysis tool reported an error")
			art.AnalysisText = res.Message
			return
		}
	}
	e.log.Warn().Err(err).Msg("analysis result unreadable, rebuilding from capture")
	art.AnalysisText = content

	cq := e.store.Capture(ctx)
	if cq.Empty() {
		return
	}
	art.SQLQuery = cq.Query
	table, rerr := e.store.Read(ctx, cq.Query)
	if rerr != nil {
		e.log.Warn().Err(rerr).Str("sql", cq.Query).Msg("re-executing captured query failed")
		art.Table = cq.Result
		return
	}
	art.Table = table
}

// extractChart records the chart produced by a chart tool and returns its
// chart id.
func (e *extractor) extractChart(art *turnArtifacts, name, content string) string {
	res, err := ParseToolResult(content)
	if err != nil {
		e.log.Warn().Err(err).Str("tool", name).Msg("chart result unreadable, keeping raw artifact")
		art.Chart = &Chart{Raw: content}
		return ""
	}
	if res.Type != ResultPlotly {
		if res.Type == ResultError {
			e.log.Info().Str("tool", name).Str("code", string(res.Code)).Msg("chart tool reported an error")
		}
		return ""
	}

	chart := &Chart{ID: res.ChartID, Description: res.Description}
	fig, err := ParseFigure(res.Chart)
	if err != nil {
		e.log.Warn().Err(err).Str("tool", name).Msg("chart artifact unreadable, keeping raw artifact")
		chart.Raw = res.Chart
	} else {
		chart.Figure = fig
	}
	art.Chart = chart
	return res.ChartID
}

func (e *extractor) extractFollowup(art *turnArtifacts, content string) {
	res, err := ParseToolResult(content)
	if err != nil {
		art.FollowupText = content
		return
	}
	switch res.Type {
	case ResultText:
		art.FollowupText = res.Content
	case ResultError:
		if res.Code == CodeNoChartAvailable {
			art.NoChart = true
		}
		art.FollowupText = res.Message
	}
}

// attachChartData fills the table and SQL behind the chart from chart
// memory. A table from the analysis tool takes precedence.
func (e *extractor) attachChartData(art *turnArtifacts, chartID string) {
	rec, ok := e.charts.Get(chartID)
	if !ok {
		rec, ok = e.charts.Latest()
	}
	if !ok {
		return
	}
	art.ChartKind = rec.Kind
	if art.Table == nil {
		art.Table = rec.Table
	}
	if art.SQLQuery == "" {
		art.SQLQuery = rec.SQL
	}
}
