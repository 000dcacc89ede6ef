package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
)

// QueryAnswerer turns a free-form data question into a natural-language
// answer, executing SQL through the store adapter on the way.
type QueryAnswerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// SQLAgent is the LLM-mediated query generator behind
// analyze_supply_chain_data. It has its own small tool set that only reads
// from the database; its sql_db_query tool is the one executing through the
// capturing path.
type SQLAgent struct {
	dispatcher Dispatcher
	store      *QueryCapturingStore
	tools      []tool.InvokableTool
	log        zerolog.Logger
}

// NewSQLAgent wires the sub-agent. limit caps the rows a query may return.
func NewSQLAgent(dispatcher Dispatcher, store *QueryCapturingStore, limit int, log zerolog.Logger) *SQLAgent {
	if limit <= 0 {
		limit = store.maxRows
	}
	return &SQLAgent{
		dispatcher: dispatcher,
		store:      store,
		tools: []tool.InvokableTool{
			&listTablesTool{store: store},
			&schemaTool{store: store},
			&queryTool{store: store, limit: limit},
		},
		log: log,
	}
}

// Tools exposes the sub-agent's tools.
func (a *SQLAgent) Tools() []tool.InvokableTool { return a.tools }

func (a *SQLAgent) Answer(ctx context.Context, question string) (string, error) {
	msgs := []*schema.Message{
		schema.SystemMessage(sqlAgentPrompt(a.store.Dialect().Name())),
		schema.UserMessage(question),
	}
	out, err := a.dispatcher.Invoke(ctx, msgs, a.tools)
	if err != nil {
		return "", fmt.Errorf("sql agent: %w", err)
	}
	answer := finalAnswer(out[len(msgs):])
	if answer == "" {
		return "", errors.New("sql agent produced no answer")
	}
	a.log.Debug().Str("question", question).Int("messages", len(out)-len(msgs)).Msg("sql agent answered")
	return answer, nil
}

// finalAnswer returns the content of the last assistant message without
// tool calls.
func finalAnswer(msgs []*schema.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Role == schema.Assistant && len(m.ToolCalls) == 0 && strings.TrimSpace(m.Content) != "" {
			return strings.TrimSpace(m.Content)
		}
	}
	return ""
}

func sqlAgentPrompt(dialect string) string {
	return fmt.Sprintf(`You are an expert supply chain data analyst with access to a %s database.

Use the tools to answer the question:
1. Call %s to see the available tables.
2. Call %s for the tables that look relevant.
3. Write one correct SELECT query and run it with %s. If it fails, read the error, fix the query and retry.
4. Answer from the query result. Never invent numbers.

SQL rules:
- Column names are lowercase without quotes.
- Only SELECT or WITH statements are allowed.
- Order results so the most relevant rows come first and limit them when the question asks for top N.
- Dates in inbound_date and outbound_date are text formatted YYYY/MM/DD.

Tables:
- material_master: material information (material_name, polymer_type, shelf_life_in_month, downgrade_value_lost_percent)
- inventory: stock levels (balance_as_of_date, plant_name, material_name, batch_number, unrestricted_stock, stock_unit, stock_sell_value, currency)
- inbound: incoming shipments (inbound_date, plant_name, material_name, net_quantity_mt)
- outbound: outgoing shipments (outbound_date, plant_name, material_name, customer_number, mode_of_transport, net_quantity_mt)
- operation_costs: storage and transfer costs (operation_category, cost_type, entity_name, entity_type, cost_amount, cost_unit, container_capacity_mt, currency)

Business rules:
- Stock quantities are in KG for inventory, MT for inbound/outbound.
- Different plants use different currencies (CNY for China, SGD for Singapore).
- Batch numbers track specific material lots.

Give a concise answer with actionable insights.`, dialect, ToolListTables, ToolSchema, ToolQuery)
}
