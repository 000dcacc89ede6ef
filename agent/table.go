package agent

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Table is a materialized SQL result: ordered column names and row values.
// Values are the driver's native types with []byte normalized to string.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// RowCount returns the number of rows, tolerating a nil table.
func (t *Table) RowCount() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool {
	return t.RowCount() == 0
}

// HasColumn reports whether name is one of the table's columns (exact match).
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// ColumnIndex returns the position of the named column or -1.
func (t *Table) ColumnIndex(name string) int {
	if t == nil {
		return -1
	}
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns all values of the named column in row order.
func (t *Table) Column(name string) []any {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	out := make([]any, len(t.Rows))
	for i, row := range t.Rows {
		if idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out
}

// Filter returns a new table with the rows for which keep returns true.
func (t *Table) Filter(keep func(row []any) bool) *Table {
	out := &Table{Columns: append([]string(nil), t.Columns...)}
	for _, row := range t.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// Clone returns a deep copy of the row slices. Cell values are shared.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := &Table{Columns: append([]string(nil), t.Columns...), Rows: make([][]any, len(t.Rows))}
	for i, row := range t.Rows {
		out.Rows[i] = append([]any(nil), row...)
	}
	return out
}

// UnmarshalJSON accepts both the {"columns","rows"} shape and the records
// shape ([{"col": value}, ...]) produced by dataframe-style serializers.
func (t *Table) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var records []map[string]any
		if err := json.Unmarshal(data, &records); err != nil {
			return fmt.Errorf("decode table records: %w", err)
		}
		*t = Table{}
		for _, rec := range records {
			keys := make([]string, 0, len(rec))
			for k := range rec {
				if !t.HasColumn(k) {
					keys = append(keys, k)
				}
			}
			sort.Strings(keys)
			t.Columns = append(t.Columns, keys...)
		}
		for _, rec := range records {
			row := make([]any, len(t.Columns))
			for i, c := range t.Columns {
				row[i] = rec[c]
			}
			t.Rows = append(t.Rows, row)
		}
		return nil
	}
	type plain Table
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode table: %w", err)
	}
	*t = Table(p)
	return nil
}

// scanTable reads at most maxRows rows into a Table. maxRows <= 0 means no limit.
func scanTable(rows *sql.Rows, maxRows int) (*Table, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	table := &Table{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		if maxRows > 0 && len(table.Rows) >= maxRows {
			break
		}
		values := make([]any, len(cols))
		pointers := make([]any, len(cols))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			values[i] = normalizeValue(v)
		}
		table.Rows = append(table.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return table, nil
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return v
	}
}

// toFloat converts a cell to float64. Numeric strings count as numbers since
// some drivers (snowflake, mysql DECIMAL) return numbers as text.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// FormatCell renders a cell for human-readable text.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case float64:
		return formatNumber(x)
	default:
		if f, ok := toFloat(v); ok {
			return formatNumber(f)
		}
		return fmt.Sprint(v)
	}
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}
