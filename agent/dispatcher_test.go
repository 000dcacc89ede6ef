package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherRunsToolsUntilAnswer(t *testing.T) {
	f := newToolFixture(t)
	m := newScriptedModel(
		callTool(ToolMonthlyTrends, `{}`),
		func(msgs []*schema.Message) *schema.Message {
			res, err := ParseToolResult(lastToolResult(msgs))
			require.NoError(t, err)
			return schema.AssistantMessage("Chart "+string(res.Type), nil)
		},
	)
	d := NewEinoDispatcher(m, 4, zerolog.Nop())

	in := []*schema.Message{schema.SystemMessage("sys"), schema.UserMessage("plot trends")}
	out, err := d.Invoke(f.ctx, in, f.set.Tools())
	require.NoError(t, err)

	require.Len(t, out, 5)
	assert.Equal(t, schema.Tool, out[3].Role)
	assert.Equal(t, ToolMonthlyTrends, out[3].ToolName)
	assert.Equal(t, out[2].ToolCalls[0].ID, out[3].ToolCallID)
	assert.Equal(t, "Chart plotly", out[4].Content)
	assert.Len(t, m.tools, 7)
	assert.Len(t, in, 2, "input slice is not modified")
}

func TestDispatcherUnknownTool(t *testing.T) {
	m := newScriptedModel(callTool("nope", `{}`), reply("done"))
	out, err := NewEinoDispatcher(m, 0, zerolog.Nop()).Invoke(context.Background(), []*schema.Message{schema.UserMessage("q")}, nil)
	require.NoError(t, err)
	res, err := ParseToolResult(out[2].Content)
	require.NoError(t, err)
	assert.Equal(t, ResultError, res.Type)
	assert.Contains(t, res.Message, "unknown tool")
}

// funcTool is an InvokableTool backed by a closure.
type funcTool struct {
	name string
	run  func(args string) (string, error)
}

func (t *funcTool) Info(context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{Name: t.name, Desc: t.name}, nil
}

func (t *funcTool) InvokableRun(_ context.Context, args string, _ ...tool.Option) (string, error) {
	return t.run(args)
}

func TestDispatcherEncodesToolErrors(t *testing.T) {
	tools := []tool.InvokableTool{
		&funcTool{name: "broken", run: func(string) (string, error) {
			return "", errors.New("backend down")
		}},
		&funcTool{name: "picky", run: func(string) (string, error) {
			return "", &InvalidInputError{Tool: "picky", Err: errors.New("bad range")}
		}},
		&funcTool{name: "crashing", run: func(string) (string, error) {
			panic("nil table")
		}},
	}
	cases := []struct {
		tool    string
		code    ErrorCode
		message string
	}{
		{"broken", CodeToolExecution, "backend down"},
		{"picky", CodeInvalidInput, "bad range"},
		{"crashing", CodeToolExecution, "panic: nil table"},
	}
	for _, tc := range cases {
		t.Run(tc.tool, func(t *testing.T) {
			m := newScriptedModel(callTool(tc.tool, `{}`), reply("sorry"))
			out, err := NewEinoDispatcher(m, 4, zerolog.Nop()).Invoke(context.Background(), []*schema.Message{schema.UserMessage("q")}, tools)
			require.NoError(t, err)
			require.Len(t, out, 4)
			assert.Equal(t, tc.tool, out[2].ToolName)

			res := mustParse(t, out[2].Content)
			assert.Equal(t, ResultError, res.Type)
			assert.Equal(t, tc.code, res.Code)
			assert.Contains(t, res.Message, tc.message)
			assert.Equal(t, "sorry", out[3].Content)
		})
	}
}

func TestDispatcherRunsCallsOfOneRoundInOrder(t *testing.T) {
	var order []string
	record := func(name string) tool.InvokableTool {
		return &funcTool{name: name, run: func(string) (string, error) {
			order = append(order, name)
			return TextResult(name).Encode(), nil
		}}
	}
	m := newScriptedModel(
		func([]*schema.Message) *schema.Message {
			return &schema.Message{Role: schema.Assistant, ToolCalls: []schema.ToolCall{
				{ID: "a", Type: "function", Function: schema.FunctionCall{Name: "second", Arguments: `{}`}},
				{ID: "b", Type: "function", Function: schema.FunctionCall{Name: "first", Arguments: `{}`}},
				{ID: "c", Type: "function", Function: schema.FunctionCall{Name: "missing", Arguments: `{}`}},
			}}
		},
		reply("done"),
	)
	out, err := NewEinoDispatcher(m, 4, zerolog.Nop()).Invoke(context.Background(),
		[]*schema.Message{schema.UserMessage("q")}, []tool.InvokableTool{record("first"), record("second")})
	require.NoError(t, err)

	assert.Equal(t, []string{"second", "first"}, order)
	require.Len(t, out, 6)
	assert.Equal(t, "a", out[2].ToolCallID)
	assert.Equal(t, "b", out[3].ToolCallID)
	assert.Equal(t, "c", out[4].ToolCallID)
	assert.Equal(t, ResultError, mustParse(t, out[4].Content).Type)
}

func TestDispatcherStopsAtMaxIterations(t *testing.T) {
	steps := make([]func([]*schema.Message) *schema.Message, 5)
	for i := range steps {
		steps[i] = callTool(ToolChartFollowup, `{"question":"peak?"}`)
	}
	f := newToolFixture(t)
	m := newScriptedModel(steps...)

	_, err := NewEinoDispatcher(m, 3, zerolog.Nop()).Invoke(f.ctx, []*schema.Message{schema.UserMessage("q")}, f.set.Tools())
	assert.ErrorIs(t, err, ErrMaxIterations)
	assert.Equal(t, 3, m.calls())
}

func TestDispatcherModelError(t *testing.T) {
	m := newScriptedModel()
	_, err := NewEinoDispatcher(m, 2, zerolog.Nop()).Invoke(context.Background(), []*schema.Message{schema.UserMessage("q")}, []tool.InvokableTool{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "script exhausted")
}

func TestSQLAgentAnswersThroughCapturingQueryTool(t *testing.T) {
	f := newToolFixture(t)
	m := newScriptedModel(
		callTool(ToolListTables, `{}`),
		func(msgs []*schema.Message) *schema.Message {
			assert.Contains(t, lastToolResult(msgs), "outbound")
			return callTool(ToolSchema, `{"table_names":"outbound"}`)(msgs)
		},
		func(msgs []*schema.Message) *schema.Message {
			assert.Contains(t, lastToolResult(msgs), "net_quantity_mt")
			return callTool(ToolQuery, `{"query":"SELECT material_name, SUM(net_quantity_mt) AS total FROM outbound GROUP BY material_name ORDER BY total DESC"}`)(msgs)
		},
		func(msgs []*schema.Message) *schema.Message {
			assert.Contains(t, lastToolResult(msgs), "PP-A\t170")
			return schema.AssistantMessage("PP-A is the top material with 170 MT.", nil)
		},
	)
	agent := NewSQLAgent(NewEinoDispatcher(m, 8, zerolog.Nop()), f.store, 10, zerolog.Nop())

	answer, err := agent.Answer(f.ctx, "top material by outbound?")
	require.NoError(t, err)
	assert.Equal(t, "PP-A is the top material with 170 MT.", answer)

	cq := f.store.Capture(f.ctx)
	assert.Equal(t, "SELECT material_name, SUM(net_quantity_mt) AS total FROM outbound GROUP BY material_name ORDER BY total DESC LIMIT 10", cq.Query)
	assert.Equal(t, 6, cq.Result.RowCount())
}

func TestSQLAgentRejectsWrites(t *testing.T) {
	f := newToolFixture(t)
	m := newScriptedModel(
		callTool(ToolQuery, `{"query":"DELETE FROM outbound"}`),
		func(msgs []*schema.Message) *schema.Message {
			assert.Contains(t, lastToolResult(msgs), "only SELECT")
			return schema.AssistantMessage("I can only read data.", nil)
		},
	)
	agent := NewSQLAgent(NewEinoDispatcher(m, 8, zerolog.Nop()), f.store, 10, zerolog.Nop())
	_, err := agent.Answer(f.ctx, "delete everything")
	require.NoError(t, err)
	assert.True(t, f.store.Capture(f.ctx).Empty())

	n, err := f.store.Read(f.ctx, "SELECT COUNT(*) AS n FROM outbound")
	require.NoError(t, err)
	assert.Equal(t, int64(8), n.Rows[0][0])
}
