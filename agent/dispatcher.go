package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrMaxIterations is returned when the model keeps requesting tools past
// the configured number of rounds.
var ErrMaxIterations = errors.New("dispatch exceeded the maximum number of tool rounds")

// Dispatcher lets a language model pick and run tools.
type Dispatcher interface {
	// Invoke returns messages followed by everything produced during
	// dispatch: assistant turns, their tool results and the final answer.
	Invoke(ctx context.Context, messages []*schema.Message, tools []tool.InvokableTool) ([]*schema.Message, error)
}

// DefaultMaxIterations bounds the tool-calling rounds of one Invoke.
const DefaultMaxIterations = 8

// EinoDispatcher runs a ReAct loop over an eino chat model. Each round the
// requested tools run in order through a compose.ToolsNode and their results
// are fed back until the model answers without tool calls.
type EinoDispatcher struct {
	model         model.BaseChatModel
	maxIterations int
	log           zerolog.Logger
	tracer        trace.Tracer

	// bindMu serializes BindTools+Generate for models without WithTools.
	bindMu sync.Mutex
}

func NewEinoDispatcher(m model.BaseChatModel, maxIterations int, log zerolog.Logger) *EinoDispatcher {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &EinoDispatcher{
		model:         m,
		maxIterations: maxIterations,
		log:           log,
		tracer:        otel.Tracer("supplychat/agent"),
	}
}

func (d *EinoDispatcher) Invoke(ctx context.Context, messages []*schema.Message, tools []tool.InvokableTool) ([]*schema.Message, error) {
	infos := make([]*schema.ToolInfo, 0, len(tools))
	traced := make([]tool.BaseTool, 0, len(tools))
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			return messages, fmt.Errorf("tool info: %w", err)
		}
		infos = append(infos, info)
		traced = append(traced, &tracedTool{InvokableTool: t, name: info.Name, tracer: d.tracer, log: d.log})
	}
	toolsNode, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{
		Tools:               traced,
		ExecuteSequentially: true,
		UnknownToolsHandler: d.unknownTool,
	})
	if err != nil {
		return messages, fmt.Errorf("create tools node: %w", err)
	}

	out := append([]*schema.Message(nil), messages...)
	for round := 0; round < d.maxIterations; round++ {
		resp, err := d.generate(ctx, out, infos)
		if err != nil {
			return out, fmt.Errorf("model generate: %w", err)
		}
		if resp == nil {
			return out, errors.New("model returned no message")
		}
		out = append(out, resp)
		if len(resp.ToolCalls) == 0 {
			return out, nil
		}
		out = append(out, d.runTools(ctx, toolsNode, resp)...)
	}
	d.log.Warn().Int("max_iterations", d.maxIterations).Msg("dispatch stopped before a final answer")
	return out, ErrMaxIterations
}

func (d *EinoDispatcher) generate(ctx context.Context, msgs []*schema.Message, infos []*schema.ToolInfo) (*schema.Message, error) {
	if len(infos) == 0 {
		return d.model.Generate(ctx, msgs)
	}
	if tc, ok := d.model.(model.ToolCallingChatModel); ok {
		bound, err := tc.WithTools(infos)
		if err != nil {
			return nil, fmt.Errorf("bind tools: %w", err)
		}
		return bound.Generate(ctx, msgs)
	}
	if cm, ok := d.model.(model.ChatModel); ok {
		d.bindMu.Lock()
		defer d.bindMu.Unlock()
		if err := cm.BindTools(infos); err != nil {
			return nil, fmt.Errorf("bind tools: %w", err)
		}
		return cm.Generate(ctx, msgs)
	}
	return nil, errors.New("chat model does not support tool calling")
}

// runTools executes every call of resp in order. A failed round still
// answers each call so the conversation stays well formed.
func (d *EinoDispatcher) runTools(ctx context.Context, tn *compose.ToolsNode, resp *schema.Message) []*schema.Message {
	results, err := tn.Invoke(ctx, resp)
	if err == nil {
		return results
	}
	d.log.Warn().Err(err).Int("calls", len(resp.ToolCalls)).Msg("tool round failed")
	results = make([]*schema.Message, len(resp.ToolCalls))
	for i, call := range resp.ToolCalls {
		content := ErrorResult(&ToolExecutionError{Tool: call.Function.Name, Err: err}).Encode()
		results[i] = schema.ToolMessage(content, call.ID, schema.WithToolName(call.Function.Name))
	}
	return results
}

func (d *EinoDispatcher) unknownTool(ctx context.Context, name, _ string) (string, error) {
	d.log.Warn().Str("tool", name).Msg("model requested an unknown tool")
	return ErrorResult(&ToolExecutionError{Tool: name, Err: errors.New("unknown tool")}).Encode(), nil
}

// tracedTool runs a tool inside its own span. Errors and panics come back
// as error envelopes so one bad call never fails the whole round.
type tracedTool struct {
	tool.InvokableTool
	name   string
	tracer trace.Tracer
	log    zerolog.Logger
}

func (t *tracedTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (content string, err error) {
	ctx, span := t.tracer.Start(ctx, "tool "+t.name, trace.WithAttributes(
		attribute.String("tool.name", t.name),
		attribute.String("tool.call_id", compose.GetToolCallID(ctx)),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			content, err = t.fail(span, fmt.Errorf("panic: %v", r)), nil
		}
		t.log.Debug().Str("tool", t.name).Dur("duration", time.Since(start)).Int("bytes", len(content)).Msg("tool finished")
	}()

	content, err = t.InvokableTool.InvokableRun(ctx, argumentsInJSON, opts...)
	if err != nil {
		return t.fail(span, err), nil
	}
	return content, nil
}

func (t *tracedTool) fail(span trace.Span, err error) string {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	t.log.Warn().Err(err).Str("tool", t.name).Msg("tool returned an error")
	var te *ToolExecutionError
	if !errors.As(err, &te) {
		err = &ToolExecutionError{Tool: t.name, Err: err}
	}
	return ErrorResult(err).Encode()
}
