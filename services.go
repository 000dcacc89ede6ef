package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog"

	"supplychat/agent"
	"supplychat/chatstore"
	"supplychat/config"
	"supplychat/dbpool"
	"supplychat/logger"
)

// dataSourceService owns the connection to the supply-chain database.
type dataSourceService struct {
	cfg     config.DataSourceConfig
	log     *logger.Logger
	db      *sql.DB
	dialect *dbpool.Dialect
}

func (s *dataSourceService) Name() string { return "datasource" }

func (s *dataSourceService) Initialize(ctx context.Context) error {
	engine, err := dbpool.ParseEngine(s.cfg.Engine)
	if err != nil {
		return err
	}
	opts := dbpool.OpenOptions{Engine: engine, Path: s.cfg.DSN}
	if engine == dbpool.EngineSQLite {
		// The analytics database is only ever read.
		opts.Mode = dbpool.ModeReadOnly
		if _, err := os.Stat(s.cfg.DSN); err != nil {
			return WrapOperationErrorf("find sqlite database %s", err, s.cfg.DSN)
		}
	}
	db, err := dbpool.New(engine, s.log.Log).Open(ctx, opts)
	if err != nil {
		return WrapOperationError("open data source", err)
	}
	s.db = db
	s.dialect = dbpool.NewDialect(engine)
	zl := s.log.Zerolog()
	zl.Info().Str("engine", string(engine)).Msg("data source connected")
	return nil
}

func (s *dataSourceService) Shutdown() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// historyService owns the Conversation State Store. An unavailable backend
// degrades to in-memory history; Initialize still reports the cause.
type historyService struct {
	cfg   config.StoreConfig
	log   zerolog.Logger
	store chatstore.Store
}

func (s *historyService) Name() string { return "history" }

func (s *historyService) Initialize(ctx context.Context) error {
	store, err := openHistoryStore(ctx, s.cfg, s.log)
	if err != nil {
		s.log.Warn().Err(err).Str("backend", s.cfg.Backend).Msg("conversation store unavailable, keeping history in memory")
		s.store = chatstore.NewMemoryStore()
		return WrapOperationErrorf("open %s conversation store", err, s.cfg.Backend)
	}
	s.store = store
	return nil
}

func (s *historyService) Shutdown() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

func openHistoryStore(ctx context.Context, cfg config.StoreConfig, log zerolog.Logger) (chatstore.Store, error) {
	switch cfg.Backend {
	case "memory":
		return chatstore.NewMemoryStore(), nil
	case "file":
		return chatstore.NewFileStore(cfg.Path)
	case "sqlite":
		return chatstore.OpenSQLiteStore(ctx, cfg.Path, log)
	case "redis":
		return chatstore.NewRedisStore(ctx, chatstore.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
			TTL:      cfg.TTL,
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// modelFactory builds the dispatch model.
type modelFactory func(ctx context.Context, cfg config.LLMConfig, log zerolog.Logger) (model.ToolCallingChatModel, error)

// agentService assembles the orchestrator on top of the data source and
// history services.
type agentService struct {
	cfg          *config.Config
	log          zerolog.Logger
	datasource   *dataSourceService
	history      *historyService
	newModel     modelFactory
	orchestrator *agent.Orchestrator
}

func (s *agentService) Name() string { return "agent" }

func (s *agentService) Initialize(ctx context.Context) error {
	if s.datasource.db == nil {
		return fmt.Errorf("data source is not connected")
	}
	chatModel, err := s.newModel(ctx, s.cfg.LLM, s.log)
	if err != nil {
		return err
	}

	store := agent.NewQueryCapturingStore(s.datasource.db, s.datasource.dialect, s.cfg.DataSource.MaxRows,
		s.log.With().Str("component", "store").Logger())
	dispatcher := agent.NewEinoDispatcher(chatModel, s.cfg.LLM.MaxIterations,
		s.log.With().Str("component", "dispatcher").Logger())
	sqlAgent := agent.NewSQLAgent(dispatcher, store, s.cfg.DataSource.MaxRows,
		s.log.With().Str("component", "sql_agent").Logger())
	charts := agent.NewChartMemories(agent.ChartScope(s.cfg.Memory.ChartScope), s.cfg.Memory.ChartCapacity)
	tools := agent.NewToolSet(store, sqlAgent, charts, s.log.With().Str("component", "tools").Logger())

	orch, err := agent.NewOrchestrator(agent.OrchestratorConfig{
		Dispatcher: dispatcher,
		Tools:      tools,
		Store:      store,
		Charts:     charts,
		Sessions:   agent.NewSessionMemory(s.cfg.Memory.SessionWindow),
		History:    s.history.store,
		Logger:     s.log.With().Str("component", "orchestrator").Logger(),
	})
	if err != nil {
		return err
	}
	s.orchestrator = orch
	return nil
}

func (s *agentService) Shutdown() error { return nil }
