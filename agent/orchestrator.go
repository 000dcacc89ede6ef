package agent

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"supplychat/chatstore"
)

// DefaultHistoryBudget is the estimated token budget for replayed history.
const DefaultHistoryBudget = 6000

// DefaultThreadID is used when a caller does not name a thread.
const DefaultThreadID = "default"

// OrchestratorConfig carries the collaborators of an Orchestrator.
type OrchestratorConfig struct {
	Dispatcher Dispatcher
	Tools      *ToolSet
	Store      *QueryCapturingStore
	Charts     *ChartMemories
	Sessions   *SessionMemory
	History    chatstore.Store
	Logger     zerolog.Logger

	// HistoryBudget bounds replayed history; 0 means DefaultHistoryBudget.
	HistoryBudget int
}

// Orchestrator runs one conversational turn: it dispatches the question to
// the model with the tool set, interprets the tool activity and returns a
// single AgentResponse.
type Orchestrator struct {
	dispatcher Dispatcher
	tools      *ToolSet
	store      *QueryCapturingStore
	charts     *ChartMemories
	sessions   *SessionMemory
	history    chatstore.Store
	log        zerolog.Logger
	budget     int
	tracer     trace.Tracer
}

func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("orchestrator: dispatcher is required")
	}
	if cfg.Tools == nil || cfg.Store == nil {
		return nil, errors.New("orchestrator: tool set and store are required")
	}
	if cfg.Charts == nil {
		cfg.Charts = cfg.Tools.charts
	}
	if cfg.Sessions == nil {
		cfg.Sessions = NewSessionMemory(DefaultSessionWindow)
	}
	if cfg.History == nil {
		cfg.History = chatstore.NewMemoryStore()
	}
	if cfg.HistoryBudget <= 0 {
		cfg.HistoryBudget = DefaultHistoryBudget
	}
	return &Orchestrator{
		dispatcher: cfg.Dispatcher,
		tools:      cfg.Tools,
		store:      cfg.Store,
		charts:     cfg.Charts,
		sessions:   cfg.Sessions,
		history:    cfg.History,
		log:        cfg.Logger,
		budget:     cfg.HistoryBudget,
		tracer:     otel.Tracer("supplychat/agent"),
	}, nil
}

// ProcessQuery answers question within threadID. It always returns a
// response; failures, including panics, become an error response.
func (o *Orchestrator) ProcessQuery(ctx context.Context, question, threadID string) (resp AgentResponse) {
	if threadID == "" {
		threadID = DefaultThreadID
	}
	start := time.Now()
	log := o.log.With().Str("thread_id", threadID).Logger()

	ctx, span := o.tracer.Start(ctx, "ProcessQuery", trace.WithAttributes(attribute.String("thread.id", threadID)))
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("turn panicked")
			resp = ErrorResponse(fmt.Sprintf("Error processing query: %v", r))
		}
		span.SetAttributes(attribute.String("response.type", string(resp.Type)))
		if resp.Type == ResponseError {
			span.SetStatus(codes.Error, resp.Content)
		}
		span.End()
		log.Info().Str("type", string(resp.Type)).Dur("duration", time.Since(start)).Msg("turn finished")
	}()

	if strings.TrimSpace(question) == "" {
		return ErrorResponse("Error processing query: question is empty")
	}

	// Fresh slot per turn: stale SQL from a previous turn is never visible.
	slot := NewCaptureSlot()
	ctx = WithThreadID(WithCaptureSlot(ctx, slot), threadID)
	o.store.ClearCapture(ctx)

	msgs := o.buildMessages(ctx, log, question, threadID)
	out, err := o.dispatcher.Invoke(ctx, msgs, o.tools.Tools())
	if err != nil {
		log.Error().Err(err).Msg("dispatch failed")
		return ErrorResponse("Error processing query: " + err.Error())
	}

	ex := &extractor{store: o.store, charts: o.charts.For(threadID), log: log}
	art := ex.extract(ctx, out, question)
	window, _ := turnWindow(out, question)
	answer := o.answerText(window, art)

	o.persist(ctx, log, threadID, question, answer, window, art.Ambiguous)
	return classify(answer, art)
}

func (o *Orchestrator) buildMessages(ctx context.Context, log zerolog.Logger, question, threadID string) []*schema.Message {
	turns, err := o.history.Get(ctx, threadID)
	if err != nil {
		log.Warn().Err(err).Msg("conversation history unavailable, continuing without it")
		turns = nil
	}
	prompt := orchestratorPrompt
	if recent := o.sessions.Render(threadID); recent != "" {
		prompt += "\n\n" + recent
	}
	msgs := []*schema.Message{schema.SystemMessage(prompt)}
	msgs = append(msgs, trimToBudget(toMessages(cleanHistory(turns)), o.budget)...)
	return append(msgs, schema.UserMessage(question))
}

// answerText picks the turn's final text: the model's closing message, else
// whatever the tools said.
func (o *Orchestrator) answerText(window []*schema.Message, art *turnArtifacts) string {
	if s := finalAnswer(window); s != "" {
		return s
	}
	for _, s := range []string{art.AnalysisText, art.FollowupText} {
		if s != "" {
			return s
		}
	}
	if art.Chart != nil && art.Chart.Description != "" {
		return art.Chart.Description
	}
	return ""
}

func (o *Orchestrator) persist(ctx context.Context, log zerolog.Logger, threadID, question, answer string, window []*schema.Message, ambiguous bool) {
	o.sessions.Add(threadID, question, answer)

	turns := []chatstore.Turn{{Role: chatstore.RoleUser, Content: question}}
	if ambiguous {
		// The window may contain a previous turn's activity.
		turns = append(turns, chatstore.Turn{Role: chatstore.RoleAssistant, Content: answer})
	} else {
		turns = append(turns, toTurns(window)...)
	}
	if err := o.history.Append(ctx, threadID, turns...); err != nil {
		log.Warn().Err(err).Int("turns", len(turns)).Msg("failed to persist conversation turns")
	}
}

// classify picks the response variant: chart first, then table or SQL,
// then plain text. A follow-up that found no chart, with nothing else
// produced, is an error.
func classify(answer string, art *turnArtifacts) AgentResponse {
	switch {
	case art.Chart != nil:
		return ChartResponse(answer, art.Chart, art.SQLQuery, art.Table)
	case art.hasTable():
		return TableResponse(answer, art.SQLQuery, art.Table)
	case art.NoChart && art.AnalysisText == "":
		return ErrorResponse(ErrNoChartAvailable.Error())
	default:
		return TextResponse(answer)
	}
}

// GetConversationHistory returns the stored turns of threadID.
func (o *Orchestrator) GetConversationHistory(ctx context.Context, threadID string) ([]chatstore.Turn, error) {
	if threadID == "" {
		threadID = DefaultThreadID
	}
	return o.history.Get(ctx, threadID)
}

// ClearMemory forgets threadID: session memory, chart memory in scope and
// the stored conversation.
func (o *Orchestrator) ClearMemory(ctx context.Context, threadID string) error {
	if threadID == "" {
		threadID = DefaultThreadID
	}
	o.sessions.Clear(threadID)
	o.charts.Clear(threadID)
	if err := o.history.Clear(ctx, threadID); err != nil {
		return fmt.Errorf("clear conversation %s: %w", threadID, err)
	}
	o.log.Info().Str("thread_id", threadID).Str("chart_scope", string(o.charts.Scope())).Msg("memory cleared")
	return nil
}

const orchestratorPrompt = `You are a supply chain analytics assistant. You answer questions about materials, inventory, inbound and outbound shipments and operation costs.

Tools:
- ` + ToolAnalyze + `: answers data questions by querying the database. Use it for any question that needs numbers.
- ` + ToolBarChart + `, ` + ToolLineChart + `, ` + ToolScatterPlot + `, ` + ToolHistogram + `: draw charts. Call ` + ToolAnalyze + ` first, then pass data_query="use_last" and column names taken from its result table.
- ` + ToolMonthlyTrends + `: the standard monthly inbound vs outbound chart. Use it when asked for monthly transaction trends.
- ` + ToolChartFollowup + `: answers questions about the chart that was just shown (peak, lowest, trend, total). Prefer it over a new query for such follow-ups.

Rules:
- Never invent numbers; only report what the tools returned.
- When a chart was created, briefly describe what it shows.
- Keep answers concise.`
