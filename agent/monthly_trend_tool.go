package agent

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

const monthlyTrendsDescription = "Monthly transaction trends showing inbound vs outbound volumes over time"

type monthlyTrendTool struct {
	set *ToolSet
}

func (t *monthlyTrendTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: ToolMonthlyTrends,
		Desc: "Create a line chart of monthly inbound vs outbound transaction volumes. " +
			"Use this specifically when the user asks for monthly transaction trends or inbound/outbound trends over time.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
	}, nil
}

func (t *monthlyTrendTool) InvokableRun(ctx context.Context, _ string, _ ...tool.Option) (string, error) {
	return t.set.run(ctx, ToolMonthlyTrends, func() (ToolResult, error) {
		query := MonthlyTrendsQuery(t.set.store.Dialect())
		table, err := t.set.store.Read(ctx, query)
		if err != nil {
			return ToolResult{}, &ToolExecutionError{Tool: ToolMonthlyTrends, Err: err}
		}
		if table.Empty() {
			return ToolResult{}, fmt.Errorf("%w: no transaction data found", ErrNoDataAvailable)
		}
		spec := ChartSpec{
			Kind:  ChartMonthlyTrends,
			Title: "Monthly Transaction Trends: Inbound vs Outbound",
			X:     "month",
			Y:     "total_quantity",
			Color: "transaction_type",
		}
		return t.set.publishChart(ctx, spec, table, query, monthlyTrendsDescription)
	}), nil
}

// MonthlyTrendsQuery returns the canonical inbound vs outbound aggregation
// in long format: month, transaction_type, total_quantity.
func MonthlyTrendsQuery(d interface{ MonthBucket(string) string }) string {
	in := d.MonthBucket("inbound_date")
	out := d.MonthBucket("outbound_date")
	return fmt.Sprintf(`WITH monthly_inbound AS (
	SELECT %[1]s AS month, 'Inbound' AS transaction_type, SUM(net_quantity_mt) AS total_quantity
	FROM inbound
	WHERE inbound_date IS NOT NULL
	GROUP BY %[1]s
),
monthly_outbound AS (
	SELECT %[2]s AS month, 'Outbound' AS transaction_type, SUM(net_quantity_mt) AS total_quantity
	FROM outbound
	WHERE outbound_date IS NOT NULL
	GROUP BY %[2]s
)
SELECT month, transaction_type, total_quantity FROM monthly_inbound
UNION ALL
SELECT month, transaction_type, total_quantity FROM monthly_outbound
ORDER BY month, transaction_type`, in, out)
}
