package agent

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"supplychat/dbpool"
)

// SQLBackend is the SQL execution engine the store adapter wraps. *sql.DB
// satisfies it.
type SQLBackend interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// CapturedQuery is the last command executed through the adapter and its
// materialized result. The zero value means nothing was captured.
type CapturedQuery struct {
	Query  string
	Result *Table
}

// Empty reports whether no query is captured.
func (c CapturedQuery) Empty() bool { return c.Query == "" }

// CaptureSlot holds a single CapturedQuery, last write wins.
type CaptureSlot struct {
	mu sync.Mutex
	cq CapturedQuery
}

// NewCaptureSlot returns an empty slot.
func NewCaptureSlot() *CaptureSlot { return &CaptureSlot{} }

func (s *CaptureSlot) set(cq CapturedQuery) {
	s.mu.Lock()
	s.cq = cq
	s.mu.Unlock()
}

func (s *CaptureSlot) get() CapturedQuery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cq
}

type captureSlotKey struct{}

// WithCaptureSlot scopes every adapter call made with the returned context
// to slot. The orchestrator installs a fresh slot per turn so concurrent
// turns never observe each other's SQL.
func WithCaptureSlot(ctx context.Context, slot *CaptureSlot) context.Context {
	return context.WithValue(ctx, captureSlotKey{}, slot)
}

func captureSlotFrom(ctx context.Context) *CaptureSlot {
	slot, _ := ctx.Value(captureSlotKey{}).(*CaptureSlot)
	return slot
}

// QueryCapturingStore wraps a SQL backend and remembers the last command
// executed through Execute.
type QueryCapturingStore struct {
	backend SQLBackend
	dialect *dbpool.Dialect
	maxRows int
	log     zerolog.Logger

	// fallback serves calls made without a turn-scoped slot.
	fallback *CaptureSlot
}

// NewQueryCapturingStore creates an adapter. maxRows bounds materialized
// results; values <= 0 mean 1000.
func NewQueryCapturingStore(backend SQLBackend, dialect *dbpool.Dialect, maxRows int, log zerolog.Logger) *QueryCapturingStore {
	if maxRows <= 0 {
		maxRows = 1000
	}
	if dialect == nil {
		dialect = dbpool.NewDialect(dbpool.EngineSQLite)
	}
	return &QueryCapturingStore{
		backend:  backend,
		dialect:  dialect,
		maxRows:  maxRows,
		log:      log,
		fallback: NewCaptureSlot(),
	}
}

func (s *QueryCapturingStore) slot(ctx context.Context) *CaptureSlot {
	if slot := captureSlotFrom(ctx); slot != nil {
		return slot
	}
	return s.fallback
}

// Dialect returns the SQL dialect of the wrapped backend.
func (s *QueryCapturingStore) Dialect() *dbpool.Dialect { return s.dialect }

// Backend returns the wrapped backend for introspection queries that must
// not touch the capture slot.
func (s *QueryCapturingStore) Backend() SQLBackend { return s.backend }

// Execute runs command and records it as the captured query. On failure the
// capture is cleared and a *QueryExecutionError is returned.
func (s *QueryCapturingStore) Execute(ctx context.Context, command string) (*Table, error) {
	slot := s.slot(ctx)
	table, err := s.run(ctx, command)
	if err != nil {
		slot.set(CapturedQuery{})
		return nil, &QueryExecutionError{Query: command, Err: err}
	}
	slot.set(CapturedQuery{Query: command, Result: table})
	return table, nil
}

// Read runs command without touching the capture slot.
func (s *QueryCapturingStore) Read(ctx context.Context, command string) (*Table, error) {
	table, err := s.run(ctx, command)
	if err != nil {
		return nil, &QueryExecutionError{Query: command, Err: err}
	}
	return table, nil
}

// ClearCapture empties the capture slot. Idempotent.
func (s *QueryCapturingStore) ClearCapture(ctx context.Context) {
	s.slot(ctx).set(CapturedQuery{})
}

// Capture returns the captured query without modifying it.
func (s *QueryCapturingStore) Capture(ctx context.Context) CapturedQuery {
	return s.slot(ctx).get()
}

func (s *QueryCapturingStore) run(ctx context.Context, command string) (*Table, error) {
	start := time.Now()
	rows, err := s.backend.QueryContext(ctx, command)
	if err != nil {
		s.log.Debug().Err(err).Str("sql", command).Msg("query failed")
		return nil, err
	}
	defer rows.Close()

	table, err := scanTable(rows, s.maxRows)
	if err != nil {
		return nil, err
	}
	s.log.Debug().
		Str("sql", command).
		Int("rows", table.RowCount()).
		Dur("duration", time.Since(start)).
		Msg("query executed")
	return table, nil
}
