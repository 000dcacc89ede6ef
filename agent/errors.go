package agent

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoDataAvailable means a chart tool could resolve neither its explicit
	// query nor the last captured query.
	ErrNoDataAvailable = errors.New("no data available for chart; run analyze_supply_chain_data first")
	// ErrNoChartAvailable means a follow-up was asked with an empty chart memory.
	ErrNoChartAvailable = errors.New("no chart available; create a chart before asking about it")
	// ErrExtractionAmbiguous marks a turn whose tool activity could not be
	// attributed to the current question with certainty.
	ErrExtractionAmbiguous = errors.New("could not locate the current question in the dispatch transcript")
)

// ErrorCode is the machine-readable code of an error tool result.
type ErrorCode string

const (
	CodeToolExecution    ErrorCode = "tool_execution"
	CodeColumnNotFound   ErrorCode = "column_not_found"
	CodeNoDataAvailable  ErrorCode = "no_data_available"
	CodeNoChartAvailable ErrorCode = "no_chart_available"
	CodeInvalidInput     ErrorCode = "invalid_input"
)

// ColumnNotFoundError reports a chart column missing from the resolved table.
type ColumnNotFoundError struct {
	Column    string
	Available []string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("column %q not found; available columns: %s", e.Column, strings.Join(e.Available, ", "))
}

// ToolExecutionError wraps a failure of a tool's delegate.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// QueryExecutionError is returned by the store adapter when the backend
// rejects a command.
type QueryExecutionError struct {
	Query string
	Err   error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("query execution failed: %v", e.Err)
}

func (e *QueryExecutionError) Unwrap() error { return e.Err }

// InvalidInputError reports tool arguments that could not be decoded.
type InvalidInputError struct {
	Tool string
	Err  error
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input for %s: %v", e.Tool, e.Err)
}

func (e *InvalidInputError) Unwrap() error { return e.Err }

// codeFor maps an error onto the tool result code the orchestrator sees.
func codeFor(err error) ErrorCode {
	var colErr *ColumnNotFoundError
	var inErr *InvalidInputError
	switch {
	case errors.Is(err, ErrNoChartAvailable):
		return CodeNoChartAvailable
	case errors.Is(err, ErrNoDataAvailable):
		return CodeNoDataAvailable
	case errors.As(err, &colErr):
		return CodeColumnNotFound
	case errors.As(err, &inErr):
		return CodeInvalidInput
	default:
		return CodeToolExecution
	}
}
