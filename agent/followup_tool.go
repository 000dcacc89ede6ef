package agent

import (
	"context"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

type followupTool struct {
	set      *ToolSet
	analyzer ChartFollowupAnalyzer
}

type followupInput struct {
	Question string `json:"question"`
}

func (t *followupTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: ToolChartFollowup,
		Desc: "Answer a follow-up question about the data behind the most recent chart (highest, lowest, trend, total) without querying the database again. " +
			"Use this when the user asks about a chart that was just shown.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"question": {
				Type:     schema.String,
				Desc:     "The user's follow-up question, e.g. 'Which month had the peak inbound?'.",
				Required: true,
			},
		}),
	}, nil
}

func (t *followupTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	return t.set.run(ctx, ToolChartFollowup, func() (ToolResult, error) {
		var in followupInput
		if err := decodeInput(ToolChartFollowup, argumentsInJSON, &in); err != nil {
			return ToolResult{}, err
		}
		res, err := t.analyzer.Analyze(t.set.chartMemory(ctx), in.Question)
		if err != nil {
			return ToolResult{}, err
		}
		return TextResult(res.Summary), nil
	}), nil
}
