package main

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplychat/agent"
	"supplychat/chatstore"
	"supplychat/config"
	"supplychat/dbpool"
	"supplychat/logger"
)

// replyModel answers every prompt with the same text and never calls tools.
type replyModel struct{ reply string }

func (m *replyModel) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *replyModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, in, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *replyModel) WithTools(_ []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

func replyFactory(reply string) modelFactory {
	return func(context.Context, config.LLMConfig, zerolog.Logger) (model.ToolCallingChatModel, error) {
		return &replyModel{reply: reply}, nil
	}
}

// createSupplyDB writes a small rollback-journal sqlite file so it can be
// reopened read-only.
func createSupplyDB(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "supply.db")
	db, err := dbpool.New(dbpool.EngineSQLite, nil).OpenWritable(ctx, path)
	require.NoError(t, err)
	for _, stmt := range []string{
		`CREATE TABLE inbound (material_code TEXT, inbound_date TEXT, quantity INTEGER)`,
		`INSERT INTO inbound VALUES ('PP-A', '2024/01/10', 100)`,
		`PRAGMA journal_mode=DELETE`,
	} {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err, stmt)
	}
	require.NoError(t, db.Close())
	return path
}

func testConfig(dsn string) *config.Config {
	return &config.Config{
		LLM:        config.LLMConfig{Provider: "openai", Model: "test", MaxIterations: 4},
		DataSource: config.DataSourceConfig{Engine: "sqlite", DSN: dsn, MaxRows: 100},
		Memory:     config.MemoryConfig{SessionWindow: 5, ChartCapacity: 3, ChartScope: "thread"},
		Store:      config.StoreConfig{Backend: "memory"},
		Log:        config.LogConfig{Level: "debug"},
		Server:     config.ServerConfig{Addr: ":0"},
	}
}

func startTestApp(t *testing.T, cfg *config.Config, opts ...AppOption) *App {
	t.Helper()
	app := NewApp(cfg, logger.NewWithWriter(io.Discard), opts...)
	require.NoError(t, app.Start(context.Background()))
	t.Cleanup(app.Shutdown)
	return app
}

func TestAppAnswersAndRemembers(t *testing.T) {
	ctx := context.Background()
	app := startTestApp(t, testConfig(createSupplyDB(t)), WithModelFactory(replyFactory("Hello from the warehouse.")))
	require.NotNil(t, app.Orchestrator())

	resp := app.Orchestrator().ProcessQuery(ctx, "hi", "t1")
	assert.Equal(t, agent.ResponseText, resp.Type)
	assert.Equal(t, "Hello from the warehouse.", resp.Content)

	turns, err := app.History(ctx, "t1")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(turns), 2)
	assert.Equal(t, chatstore.RoleUser, turns[0].Role)
	assert.Equal(t, "hi", turns[0].Content)
	assert.Equal(t, "Hello from the warehouse.", turns[len(turns)-1].Content)

	require.NoError(t, app.Clear(ctx, "t1"))
	turns, err = app.History(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestAppFailsWithoutDatabase(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "missing.db"))
	app := NewApp(cfg, logger.NewWithWriter(io.Discard), WithModelFactory(replyFactory("unused")))
	err := app.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.db")
	assert.Nil(t, app.Orchestrator())
	app.Shutdown()
}

func TestAppWithoutAgentServesHistory(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig("unused.db")
	cfg.Store = config.StoreConfig{Backend: "file", Path: t.TempDir()}
	app := startTestApp(t, cfg, WithoutAgent())
	assert.Nil(t, app.Orchestrator())

	turns, err := app.History(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, turns)
	assert.NoError(t, app.Clear(ctx, "anything"))
}

func TestHistoryServiceFallsBackToMemory(t *testing.T) {
	var buf bytes.Buffer
	svc := &historyService{
		cfg: config.StoreConfig{Backend: "unknown"},
		log: zerolog.New(&buf),
	}
	err := svc.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown store backend "unknown"`)
	assert.IsType(t, &chatstore.MemoryStore{}, svc.store)
	assert.Contains(t, buf.String(), "keeping history in memory")
	assert.NoError(t, svc.Shutdown())
}

func TestAppStartsDegradedWhenStoreIsUnavailable(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig("unused.db")
	cfg.Store = config.StoreConfig{Backend: "unknown"}
	app := startTestApp(t, cfg, WithoutAgent())
	assert.Equal(t, []string{"history"}, app.Degraded())

	turns, err := app.History(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestRunChat(t *testing.T) {
	ctx := context.Background()
	fa := newFakeAssistant(agent.TextResponse("Inbound peaked in March."))
	in := strings.NewReader("when did inbound peak?\n\n/history\n/clear\n/history\n/exit\nignored\n")
	var out bytes.Buffer

	require.NoError(t, runChat(ctx, fa, "thread-9", in, &out))
	text := out.String()
	assert.Contains(t, text, "Thread thread-9")
	assert.Contains(t, text, "Inbound peaked in March.")
	assert.Contains(t, text, "[user] when did inbound peak?")
	assert.Contains(t, text, "Memory cleared.")
	assert.Contains(t, text, "(no history)")
	assert.Equal(t, []string{"thread-9:when did inbound peak?"}, fa.asked)
}

func TestRunChatStopsAtEOF(t *testing.T) {
	fa := newFakeAssistant(agent.TextResponse("ok"))
	var out bytes.Buffer
	require.NoError(t, runChat(context.Background(), fa, "t", strings.NewReader("q"), &out))
	assert.Len(t, fa.asked, 1)
}

func TestPrintResponse(t *testing.T) {
	table := &agent.Table{
		Columns: []string{"material_code", "total_quantity"},
		Rows:    [][]any{{"PP-A", int64(170)}, {"PE-B", 90.5}},
	}
	var out bytes.Buffer
	printResponse(&out, agent.TableResponse("Top materials.", "SELECT material_code", table))
	text := out.String()
	assert.Contains(t, text, "Top materials.")
	assert.Contains(t, text, "SQL: SELECT material_code")
	assert.Contains(t, text, "material_code")
	assert.Contains(t, text, "PP-A")
	assert.Contains(t, text, "90.50")

	out.Reset()
	printResponse(&out, agent.ChartResponse("A chart.", &agent.Chart{ID: "c1", Raw: "not json"}, "", nil))
	assert.Contains(t, out.String(), "[chart could not be rendered]")

	out.Reset()
	printResponse(&out, agent.ErrorResponse("boom"))
	assert.Equal(t, "Error: boom\n", out.String())
}

func TestPrintTableTruncates(t *testing.T) {
	table := &agent.Table{Columns: []string{"n"}}
	for i := 0; i < maxPrintedRows+5; i++ {
		table.Rows = append(table.Rows, []any{int64(i)})
	}
	var out bytes.Buffer
	printTable(&out, table)
	assert.Contains(t, out.String(), "... 5 more rows")
}
