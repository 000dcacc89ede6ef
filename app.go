package main

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"supplychat/agent"
	"supplychat/chatstore"
	"supplychat/config"
	"supplychat/logger"
)

// App wires configuration, logging and the services behind the CLI and
// HTTP surfaces.
type App struct {
	cfg      *config.Config
	log      *logger.Logger
	registry *ServiceRegistry

	datasource *dataSourceService
	history    *historyService
	agent      *agentService

	withAgent bool
	newModel  modelFactory
	stopOnce  sync.Once
}

// AppOption customizes NewApp.
type AppOption func(*App)

// WithoutAgent starts only the conversation store, for commands that do not
// talk to the model.
func WithoutAgent() AppOption {
	return func(a *App) { a.withAgent = false }
}

// WithModelFactory replaces the chat model constructor.
func WithModelFactory(f modelFactory) AppOption {
	return func(a *App) { a.newModel = f }
}

func NewApp(cfg *config.Config, log *logger.Logger, opts ...AppOption) *App {
	a := &App{cfg: cfg, log: log, withAgent: true, newModel: agent.NewChatModel}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start registers and initializes the services.
func (a *App) Start(ctx context.Context) error {
	zl := a.log.Zerolog()
	a.registry = NewServiceRegistry(zl)

	// History falls back to memory, so the app runs without its backend.
	a.history = &historyService{cfg: a.cfg.Store, log: zl.With().Str("component", "chatstore").Logger()}
	if err := a.registry.Register(a.history, Optional); err != nil {
		return err
	}
	if a.withAgent {
		a.datasource = &dataSourceService{cfg: a.cfg.DataSource, log: a.log}
		a.agent = &agentService{
			cfg:        a.cfg,
			log:        zl,
			datasource: a.datasource,
			history:    a.history,
			newModel:   a.newModel,
		}
		if err := a.registry.Register(a.datasource, Required); err != nil {
			return err
		}
		if err := a.registry.Register(a.agent, Required); err != nil {
			return err
		}
	}
	if err := a.registry.Start(ctx); err != nil {
		a.Shutdown()
		return err
	}
	zl.Info().Bool("agent", a.withAgent).Str("store", a.cfg.Store.Backend).
		Strs("degraded", a.registry.Degraded()).Msg("application started")
	return nil
}

// Degraded names the optional services running on a fallback.
func (a *App) Degraded() []string {
	if a.registry == nil {
		return nil
	}
	return a.registry.Degraded()
}

// Shutdown stops the services in reverse order. Safe to call twice.
func (a *App) Shutdown() {
	a.stopOnce.Do(func() {
		if a.registry != nil {
			a.registry.Stop()
		}
		a.log.Close()
	})
}

// Orchestrator returns the turn processor, or nil when started WithoutAgent.
func (a *App) Orchestrator() *agent.Orchestrator {
	if a.agent == nil {
		return nil
	}
	return a.agent.orchestrator
}

// Logger returns the structured application logger.
func (a *App) Logger() zerolog.Logger { return a.log.Zerolog() }

// History returns the stored turns of a thread.
func (a *App) History(ctx context.Context, threadID string) ([]chatstore.Turn, error) {
	if o := a.Orchestrator(); o != nil {
		return o.GetConversationHistory(ctx, threadID)
	}
	if a.history == nil || a.history.store == nil {
		return nil, errors.New("conversation store is not started")
	}
	if threadID == "" {
		threadID = agent.DefaultThreadID
	}
	return a.history.store.Get(ctx, threadID)
}

// Clear forgets a thread.
func (a *App) Clear(ctx context.Context, threadID string) error {
	if o := a.Orchestrator(); o != nil {
		return o.ClearMemory(ctx, threadID)
	}
	if a.history == nil || a.history.store == nil {
		return errors.New("conversation store is not started")
	}
	if threadID == "" {
		threadID = agent.DefaultThreadID
	}
	return a.history.store.Clear(ctx, threadID)
}
