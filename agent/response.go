package agent

import "encoding/json"

// ResponseType discriminates AgentResponse.
type ResponseType string

const (
	ResponseText         ResponseType = "text"
	ResponseWithChart    ResponseType = "text_with_chart"
	ResponseWithSQLTable ResponseType = "text_with_sql_and_dataframe"
	ResponseError        ResponseType = "error"
)

// Chart is a renderable chart attached to a response. When the artifact
// could not be parsed, Figure is nil and Raw holds the artifact as produced.
type Chart struct {
	ID          string  `json:"id,omitempty"`
	Description string  `json:"description,omitempty"`
	Figure      *Figure `json:"figure,omitempty"`
	Raw         string  `json:"raw,omitempty"`
}

// Degraded reports whether the chart is only available as a raw artifact.
func (c *Chart) Degraded() bool { return c != nil && c.Figure == nil }

// AgentResponse is the single value returned for every turn. Content is set
// for text and error responses, Text for the others.
type AgentResponse struct {
	Type     ResponseType `json:"type"`
	Content  string       `json:"content,omitempty"`
	Text     string       `json:"text,omitempty"`
	Chart    *Chart       `json:"chart,omitempty"`
	SQLQuery string       `json:"sql_query,omitempty"`
	Table    *Table       `json:"table,omitempty"`
}

func TextResponse(content string) AgentResponse {
	return AgentResponse{Type: ResponseText, Content: content}
}

// ChartResponse attaches chart and, when present, the table and SQL it was
// drawn from.
func ChartResponse(text string, chart *Chart, sqlQuery string, table *Table) AgentResponse {
	return AgentResponse{Type: ResponseWithChart, Text: text, Chart: chart, SQLQuery: sqlQuery, Table: table}
}

func TableResponse(text, sqlQuery string, table *Table) AgentResponse {
	return AgentResponse{Type: ResponseWithSQLTable, Text: text, SQLQuery: sqlQuery, Table: table}
}

func ErrorResponse(content string) AgentResponse {
	return AgentResponse{Type: ResponseError, Content: content}
}

// Message returns the user-facing text regardless of variant.
func (r AgentResponse) Message() string {
	if r.Type == ResponseText || r.Type == ResponseError {
		return r.Content
	}
	return r.Text
}

// JSON encodes the response for the HTTP and CLI surfaces.
func (r AgentResponse) JSON() ([]byte, error) {
	return json.Marshal(r)
}
