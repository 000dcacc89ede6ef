package agent

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ChartKind names the chart family a record was produced by.
type ChartKind string

const (
	ChartBar           ChartKind = "bar"
	ChartLine          ChartKind = "line"
	ChartScatter       ChartKind = "scatter"
	ChartHistogram     ChartKind = "histogram"
	ChartMonthlyTrends ChartKind = "monthly_trends"
)

// DefaultChartCapacity is the number of charts a memory retains.
const DefaultChartCapacity = 3

// ChartRecord is the data behind one produced chart.
type ChartRecord struct {
	ID          string
	Kind        ChartKind
	Table       *Table
	SQL         string
	Description string
	CreatedAt   time.Time
	RowCount    int
	ColumnNames []string
}

// ChartMemory is a bounded cache of the most recent charts. Records are kept
// in creation order; when full, the oldest record is evicted regardless of
// kind.
type ChartMemory struct {
	mu       sync.RWMutex
	capacity int
	records  []ChartRecord
	now      func() time.Time
}

// NewChartMemory creates a memory holding at most capacity records.
// Non-positive capacities fall back to DefaultChartCapacity.
func NewChartMemory(capacity int) *ChartMemory {
	if capacity <= 0 {
		capacity = DefaultChartCapacity
	}
	return &ChartMemory{capacity: capacity, now: time.Now}
}

// Store inserts a record and returns its id.
func (m *ChartMemory) Store(kind ChartKind, table *Table, query, description string) string {
	rec := ChartRecord{
		ID:          uuid.NewString(),
		Kind:        kind,
		Table:       table,
		SQL:         query,
		Description: description,
		RowCount:    table.RowCount(),
	}
	if table != nil {
		rec.ColumnNames = append([]string(nil), table.Columns...)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	rec.CreatedAt = m.now()
	// Creation order is the slice order, so equal timestamps still have a
	// well-defined most recent record.
	if n := len(m.records); n > 0 && rec.CreatedAt.Before(m.records[n-1].CreatedAt) {
		rec.CreatedAt = m.records[n-1].CreatedAt
	}
	m.records = append(m.records, rec)
	if over := len(m.records) - m.capacity; over > 0 {
		m.records = append(m.records[:0:0], m.records[over:]...)
	}
	return rec.ID
}

// Latest returns the most recently created record.
func (m *ChartMemory) Latest() (ChartRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.records) == 0 {
		return ChartRecord{}, false
	}
	return m.records[len(m.records)-1], true
}

// LatestOfKind returns the most recent record of the given kind.
func (m *ChartMemory) LatestOfKind(kind ChartKind) (ChartRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].Kind == kind {
			return m.records[i], true
		}
	}
	return ChartRecord{}, false
}

// Get looks a record up by id.
func (m *ChartMemory) Get(id string) (ChartRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.records {
		if r.ID == id {
			return r, true
		}
	}
	return ChartRecord{}, false
}

func (m *ChartMemory) HasAny() bool { return m.Size() > 0 }

func (m *ChartMemory) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *ChartMemory) Capacity() int { return m.capacity }

// Records returns the retained records, oldest first.
func (m *ChartMemory) Records() []ChartRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ChartRecord(nil), m.records...)
}

func (m *ChartMemory) Clear() {
	m.mu.Lock()
	m.records = nil
	m.mu.Unlock()
}

// ChartScope selects how chart memories are partitioned.
type ChartScope string

const (
	// ScopeThread gives every thread its own memory.
	ScopeThread ChartScope = "thread"
	// ScopeAgent shares one memory across all threads of the agent.
	ScopeAgent ChartScope = "agent"
)

// ChartMemories hands out the chart memory for a thread according to scope.
type ChartMemories struct {
	mu       sync.Mutex
	scope    ChartScope
	capacity int
	shared   *ChartMemory
	threads  map[string]*ChartMemory
}

// NewChartMemories creates the registry. Unknown scopes behave as ScopeThread.
func NewChartMemories(scope ChartScope, capacity int) *ChartMemories {
	if scope != ScopeAgent {
		scope = ScopeThread
	}
	return &ChartMemories{
		scope:    scope,
		capacity: capacity,
		shared:   NewChartMemory(capacity),
		threads:  make(map[string]*ChartMemory),
	}
}

func (c *ChartMemories) Scope() ChartScope { return c.scope }

// For returns the memory serving threadID, creating it on first use.
func (c *ChartMemories) For(threadID string) *ChartMemory {
	if c.scope == ScopeAgent {
		return c.shared
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.threads[threadID]
	if !ok {
		m = NewChartMemory(c.capacity)
		c.threads[threadID] = m
	}
	return m
}

// Clear empties the memory serving threadID in place, so a turn already
// holding it sees the reset. With ScopeAgent this clears the memory shared
// by every thread.
func (c *ChartMemories) Clear(threadID string) {
	if c.scope == ScopeAgent {
		c.shared.Clear()
		return
	}
	c.mu.Lock()
	m, ok := c.threads[threadID]
	c.mu.Unlock()
	if ok {
		m.Clear()
	}
}
