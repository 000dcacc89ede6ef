package agent

import (
	"context"
	"errors"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

type analyzeTool struct {
	set *ToolSet
}

type analyzeInput struct {
	Query string `json:"query"`
}

func (t *analyzeTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: ToolAnalyze,
		Desc: "Answer a question about supply chain data (materials, inventory, inbound and outbound shipments, operation costs) by querying the database. " +
			"Returns a natural-language answer together with the SQL that was run and the result table. " +
			"Use this before any chart tool, then call the chart tool with data_query='use_last'.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "The data question in natural language, e.g. 'top 5 materials by outbound volume'.",
				Required: true,
			},
		}),
	}, nil
}

func (t *analyzeTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	return t.set.run(ctx, ToolAnalyze, func() (ToolResult, error) {
		var in analyzeInput
		if err := decodeInput(ToolAnalyze, argumentsInJSON, &in); err != nil {
			return ToolResult{}, err
		}
		if strings.TrimSpace(in.Query) == "" {
			return ToolResult{}, &InvalidInputError{Tool: ToolAnalyze, Err: errors.New("query is required")}
		}
		return t.analyze(ctx, in.Query)
	}), nil
}

func (t *analyzeTool) analyze(ctx context.Context, question string) (ToolResult, error) {
	store := t.set.store
	store.ClearCapture(ctx)

	answer, err := t.set.answerer.Answer(ctx, question)
	if err != nil {
		return ToolResult{}, &ToolExecutionError{Tool: ToolAnalyze, Err: err}
	}

	cq := store.Capture(ctx)
	if cq.Empty() {
		t.set.log.Debug().Msg("analysis produced no captured query")
		return TextResult(answer), nil
	}
	table := cq.Result
	if table == nil {
		table, err = store.Read(ctx, cq.Query)
		if err != nil {
			t.set.log.Warn().Err(err).Str("sql", cq.Query).Msg("could not rebuild result table")
			return TextResult(answer), nil
		}
	}
	return TableResult(answer, cq.Query, table), nil
}
