package agent

import (
	"encoding/json"
	"fmt"
)

// ToolResultType discriminates the ToolResult union.
type ToolResultType string

const (
	ResultText   ToolResultType = "text"
	ResultTable  ToolResultType = "text_with_sql_and_dataframe"
	ResultPlotly ToolResultType = "plotly"
	ResultError  ToolResultType = "error"
)

// ToolResult is what every top-level tool returns, serialized as JSON with a
// "type" discriminator. Only the fields of the active variant are set:
//
//	text                         content
//	text_with_sql_and_dataframe  text, sql_query, table
//	plotly                       chart, description, chart_id
//	error                        code, message
type ToolResult struct {
	Type ToolResultType `json:"type"`

	Content string `json:"content,omitempty"`

	Text     string `json:"text,omitempty"`
	SQLQuery string `json:"sql_query,omitempty"`
	Table    *Table `json:"table,omitempty"`

	// Chart is the serialized chart artifact (see SerializeFigure).
	Chart       string `json:"chart,omitempty"`
	Description string `json:"description,omitempty"`
	ChartID     string `json:"chart_id,omitempty"`

	Code    ErrorCode `json:"code,omitempty"`
	Message string    `json:"message,omitempty"`
}

func TextResult(content string) ToolResult {
	return ToolResult{Type: ResultText, Content: content}
}

func TableResult(text, sqlQuery string, table *Table) ToolResult {
	return ToolResult{Type: ResultTable, Text: text, SQLQuery: sqlQuery, Table: table}
}

func PlotlyResult(chart, description, chartID string) ToolResult {
	return ToolResult{Type: ResultPlotly, Chart: chart, Description: description, ChartID: chartID}
}

// ErrorResult converts err into an error result, picking the code from the
// error's type.
func ErrorResult(err error) ToolResult {
	return ToolResult{Type: ResultError, Code: codeFor(err), Message: err.Error()}
}

// Encode serializes the result. Encoding a ToolResult cannot fail for values
// built by the constructors; a failure is reported as an error result.
func (r ToolResult) Encode() string {
	b, err := json.Marshal(r)
	if err != nil {
		fallback, _ := json.Marshal(ToolResult{Type: ResultError, Code: CodeToolExecution, Message: err.Error()})
		return string(fallback)
	}
	return string(b)
}

// ParseToolResult decodes a tool message once at the boundary.
func ParseToolResult(s string) (*ToolResult, error) {
	var r ToolResult
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return nil, fmt.Errorf("decode tool result: %w", err)
	}
	switch r.Type {
	case ResultText, ResultTable, ResultPlotly, ResultError:
		return &r, nil
	case "":
		return nil, fmt.Errorf("decode tool result: missing type")
	default:
		return nil, fmt.Errorf("decode tool result: unknown type %q", r.Type)
	}
}
