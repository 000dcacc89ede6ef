package agent

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allChartKinds = []ChartKind{ChartBar, ChartLine, ChartScatter, ChartHistogram, ChartMonthlyTrends}

func genChartKind() gopter.Gen {
	return gen.IntRange(0, len(allChartKinds)-1).Map(func(i int) ChartKind { return allChartKinds[i] })
}

func TestChartMemoryProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("capacity is never exceeded and the newest records are kept", prop.ForAll(
		func(capacity int, kinds []ChartKind) bool {
			mem := NewChartMemory(capacity)
			var ids []string
			for i, k := range kinds {
				ids = append(ids, mem.Store(k, &Table{Columns: []string{"i"}, Rows: [][]any{{i}}}, fmt.Sprintf("SELECT %d", i), ""))
				if mem.Size() > capacity {
					return false
				}
			}
			want := ids
			if len(want) > capacity {
				want = want[len(want)-capacity:]
			}
			got := mem.Records()
			if len(got) != len(want) {
				return false
			}
			for i := range got {
				if got[i].ID != want[i] {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 6),
		gen.SliceOf(genChartKind()),
	))

	properties.Property("latest is the last stored record", prop.ForAll(
		func(kinds []ChartKind) bool {
			mem := NewChartMemory(DefaultChartCapacity)
			var last string
			for _, k := range kinds {
				last = mem.Store(k, &Table{}, "", "")
			}
			rec, ok := mem.Latest()
			return ok && rec.ID == last
		},
		gen.SliceOfN(4, genChartKind()).SuchThat(func(v []ChartKind) bool { return len(v) > 0 }),
	))

	properties.TestingRun(t)
}

func TestChartMemoryEvictsOldestRegardlessOfKind(t *testing.T) {
	mem := NewChartMemory(3)
	first := mem.Store(ChartMonthlyTrends, &Table{}, "q1", "trends")
	mem.Store(ChartBar, &Table{}, "q2", "")
	mem.Store(ChartBar, &Table{}, "q3", "")
	mem.Store(ChartLine, &Table{}, "q4", "")

	assert.Equal(t, 3, mem.Size())
	_, ok := mem.Get(first)
	assert.False(t, ok)
	_, ok = mem.LatestOfKind(ChartMonthlyTrends)
	assert.False(t, ok)

	rec, ok := mem.LatestOfKind(ChartBar)
	require.True(t, ok)
	assert.Equal(t, "q3", rec.SQL)

	latest, ok := mem.Latest()
	require.True(t, ok)
	assert.Equal(t, ChartLine, latest.Kind)
}

func TestChartRecordMetadata(t *testing.T) {
	mem := NewChartMemory(0)
	assert.Equal(t, DefaultChartCapacity, mem.Capacity())
	assert.False(t, mem.HasAny())

	table := &Table{Columns: []string{"month", "qty"}, Rows: [][]any{{"2024-01", 1.0}, {"2024-02", 2.0}}}
	id := mem.Store(ChartLine, table, "SELECT month, qty FROM t", "qty by month")
	rec, ok := mem.Get(id)
	require.True(t, ok)
	assert.Equal(t, 2, rec.RowCount)
	assert.Equal(t, []string{"month", "qty"}, rec.ColumnNames)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.True(t, mem.HasAny())

	mem.Clear()
	assert.Equal(t, 0, mem.Size())
	_, ok = mem.Latest()
	assert.False(t, ok)
}

func TestChartMemoriesScope(t *testing.T) {
	perThread := NewChartMemories(ScopeThread, 3)
	perThread.For("a").Store(ChartBar, &Table{}, "", "")
	assert.False(t, perThread.For("b").HasAny())
	assert.Same(t, perThread.For("a"), perThread.For("a"))
	perThread.Clear("a")
	assert.False(t, perThread.For("a").HasAny())

	shared := NewChartMemories(ScopeAgent, 3)
	shared.For("a").Store(ChartBar, &Table{}, "", "")
	assert.True(t, shared.For("b").HasAny())
	shared.Clear("b")
	assert.False(t, shared.For("a").HasAny())

	assert.Equal(t, ScopeThread, NewChartMemories("bogus", 1).Scope())
}

func TestChartMemoriesClearKeepsHeldMemory(t *testing.T) {
	mems := NewChartMemories(ScopeThread, 3)
	held := mems.For("t1")
	held.Store(ChartBar, &Table{}, "", "")

	mems.Clear("t1")
	assert.False(t, held.HasAny())
	assert.Same(t, held, mems.For("t1"))

	held.Store(ChartLine, &Table{}, "", "")
	latest, ok := mems.For("t1").Latest()
	require.True(t, ok)
	assert.Equal(t, ChartLine, latest.Kind)

	mems.Clear("never-seen")
	assert.True(t, mems.For("t1").HasAny())
}
