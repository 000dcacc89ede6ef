package agent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"supplychat/dbpool"
)

const supplySchema = `
CREATE TABLE material_master (material_name TEXT, polymer_type TEXT, shelf_life_in_month INTEGER, downgrade_value_lost_percent REAL);
CREATE TABLE inbound (inbound_date TEXT, plant_name TEXT, material_name TEXT, net_quantity_mt REAL);
CREATE TABLE outbound (outbound_date TEXT, plant_name TEXT, material_name TEXT, customer_number TEXT, mode_of_transport TEXT, net_quantity_mt REAL);
INSERT INTO material_master VALUES ('PP-A', 'PP', 12, 5), ('PE-B', 'PE', 18, 3), ('PS-C', 'PS', 24, 2);
INSERT INTO inbound VALUES
	('2024/01/10', 'P1', 'PP-A', 100),
	('2024/02/11', 'P1', 'PE-B', 150),
	('2024/03/01', 'P2', 'PP-A', 200),
	('2024/03/15', 'P2', 'PS-C', 100);
INSERT INTO outbound VALUES
	('2024/01/05', 'P1', 'PP-A', 'C1', 'Truck', 50),
	('2024/01/20', 'P1', 'PE-B', 'C2', 'Truck', 30),
	('2024/02/03', 'P1', 'PP-A', 'C1', 'Rail', 120),
	('2024/02/15', 'P2', 'PS-C', 'C3', 'Truck', 80),
	('2024/03/09', 'P2', 'PE-B', 'C2', 'Ship', 60),
	('2024/03/22', 'P2', 'ABS-D', 'C4', 'Truck', 40),
	('2024/03/25', 'P1', 'PVC-E', 'C5', 'Truck', 15),
	('2024/03/28', 'P1', 'PET-F', 'C6', 'Truck', 5);
`

const topOutboundSQL = `SELECT material_name, SUM(net_quantity_mt) AS total_outbound FROM outbound GROUP BY material_name ORDER BY total_outbound DESC LIMIT 5`

// openSupplyDB creates a seeded supply-chain database in a temp dir.
func openSupplyDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	db, err := dbpool.New(dbpool.EngineSQLite, nil).OpenWritable(ctx, filepath.Join(t.TempDir(), "supply.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.ExecContext(ctx, supplySchema)
	require.NoError(t, err)
	return db
}

func newTestStore(t *testing.T) *QueryCapturingStore {
	t.Helper()
	return NewQueryCapturingStore(openSupplyDB(t), dbpool.NewDialect(dbpool.EngineSQLite), 100, zerolog.Nop())
}

// fakeAnswerer stands in for the SQL sub-agent: it runs sql through the
// capturing path and returns a canned answer.
type fakeAnswerer struct {
	store  *QueryCapturingStore
	sql    string
	answer string
	err    error
	calls  int
}

func (f *fakeAnswerer) Answer(ctx context.Context, question string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if f.sql != "" {
		if _, err := f.store.Execute(ctx, f.sql); err != nil {
			return "", err
		}
	}
	return f.answer, nil
}

// scriptedModel replays one step per Generate call.
type scriptedModel struct {
	mu    sync.Mutex
	steps []func(msgs []*schema.Message) *schema.Message
	seen  [][]*schema.Message
	tools []*schema.ToolInfo
}

func newScriptedModel(steps ...func(msgs []*schema.Message) *schema.Message) *scriptedModel {
	return &scriptedModel{steps: steps}
}

func (m *scriptedModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := len(m.seen)
	m.seen = append(m.seen, append([]*schema.Message(nil), input...))
	if i >= len(m.steps) {
		return nil, errors.New("script exhausted")
	}
	return m.steps[i](input), nil
}

func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *scriptedModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	m.mu.Lock()
	m.tools = tools
	m.mu.Unlock()
	return m, nil
}

func (m *scriptedModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

var callSeq int

func callTool(name, args string) func([]*schema.Message) *schema.Message {
	return func([]*schema.Message) *schema.Message {
		callSeq++
		return &schema.Message{
			Role: schema.Assistant,
			ToolCalls: []schema.ToolCall{{
				ID:       fmt.Sprintf("call_%d", callSeq),
				Type:     "function",
				Function: schema.FunctionCall{Name: name, Arguments: args},
			}},
		}
	}
}

func reply(text string) func([]*schema.Message) *schema.Message {
	return func([]*schema.Message) *schema.Message {
		return schema.AssistantMessage(text, nil)
	}
}

// lastToolResult returns the content of the last tool message in msgs.
func lastToolResult(msgs []*schema.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == schema.Tool {
			return msgs[i].Content
		}
	}
	return ""
}

func mustParse(t *testing.T, s string) *ToolResult {
	t.Helper()
	res, err := ParseToolResult(s)
	require.NoError(t, err, s)
	return res
}
