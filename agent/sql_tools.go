package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// The SQL sub-agent's tools return plain text for the model to read. Errors
// are reported in the text so the model can correct its query.

const (
	ToolListTables = "sql_db_list_tables"
	ToolSchema     = "sql_db_schema"
	ToolQuery      = "sql_db_query"
)

// sampleRows is the number of example rows shown per table by sql_db_schema.
const sampleRows = 3

// queryPreviewRows bounds how many rows sql_db_query shows the model.
const queryPreviewRows = 50

type listTablesTool struct {
	store *QueryCapturingStore
}

func (t *listTablesTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name:        ToolListTables,
		Desc:        "List the tables of the supply-chain database as a comma-separated string. Call this first to learn which tables exist.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
	}, nil
}

func (t *listTablesTool) InvokableRun(ctx context.Context, _ string, _ ...tool.Option) (string, error) {
	names, err := t.store.Dialect().ListTables(ctx, t.store.Backend())
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	return strings.Join(names, ", "), nil
}

type schemaTool struct {
	store *QueryCapturingStore
}

type schemaInput struct {
	TableNames string `json:"table_names"`
}

func (t *schemaTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: ToolSchema,
		Desc: "Return the columns and a few sample rows of the given tables. Be sure the tables exist by calling " + ToolListTables + " first.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"table_names": {
				Type:     schema.String,
				Desc:     "Comma-separated list of tables, e.g. 'inbound, outbound'.",
				Required: true,
			},
		}),
	}, nil
}

func (t *schemaTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var in schemaInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &in); err != nil {
		return "Error: invalid input: " + err.Error(), nil
	}

	d := t.store.Dialect()
	var b strings.Builder
	for _, name := range strings.Split(in.TableNames, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		cols, err := d.DescribeColumns(ctx, t.store.Backend(), name)
		if err != nil {
			fmt.Fprintf(&b, "Error: %v\n\n", err)
			continue
		}
		fmt.Fprintf(&b, "TABLE %s (\n", name)
		for i, c := range cols {
			sep := ","
			if i == len(cols)-1 {
				sep = ""
			}
			fmt.Fprintf(&b, "\t%s %s%s\n", c.Name, c.Type, sep)
		}
		b.WriteString(")\n")

		sample, err := t.store.Read(ctx, d.SampleRowsQuery(name, sampleRows))
		if err == nil && !sample.Empty() {
			fmt.Fprintf(&b, "/*\n%d rows from %s table:\n%s*/\n", sample.RowCount(), name, renderTable(sample, sampleRows))
		}
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return "Error: no table names given", nil
	}
	return strings.TrimSpace(b.String()), nil
}

type queryTool struct {
	store *QueryCapturingStore
	limit int
}

type queryInput struct {
	Query string `json:"query"`
}

func (t *queryTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: ToolQuery,
		Desc: fmt.Sprintf("Execute a read-only SQL query (SELECT or WITH) against the %s database and return the result. "+
			"If the query is not correct, an error message is returned; rewrite the query and try again. "+
			"Results are limited to %d rows.", t.store.Dialect().Name(), t.limit),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "A detailed and correct SQL query.",
				Required: true,
			},
		}),
	}, nil
}

func (t *queryTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var in queryInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &in); err != nil {
		return "Error: invalid input: " + err.Error(), nil
	}
	q, err := prepareReadQuery(in.Query, t.store.Dialect(), t.limit)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	table, err := t.store.Execute(ctx, q)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	if table.Empty() {
		return "The query returned no rows.", nil
	}
	out := renderTable(table, queryPreviewRows)
	if table.RowCount() > queryPreviewRows {
		out += fmt.Sprintf("... (%d rows total)\n", table.RowCount())
	}
	return out, nil
}

// renderTable prints a tab-separated header and up to n rows.
func renderTable(t *Table, n int) string {
	var b strings.Builder
	b.WriteString(strings.Join(t.Columns, "\t"))
	b.WriteString("\n")
	for i, row := range t.Rows {
		if i >= n {
			break
		}
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = FormatCell(v)
		}
		b.WriteString(strings.Join(cells, "\t"))
		b.WriteString("\n")
	}
	return b.String()
}
