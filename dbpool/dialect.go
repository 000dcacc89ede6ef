package dbpool

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Dialect provides engine-specific SQL fragments so callers don't need to
// know which engine is in use.
type Dialect struct {
	Engine Engine
}

// NewDialect creates a Dialect for the given engine.
func NewDialect(engine Engine) *Dialect {
	return &Dialect{Engine: engine}
}

// Name returns a human readable engine name for prompts.
func (d *Dialect) Name() string {
	switch d.Engine {
	case EngineMySQL:
		return "MySQL"
	case EngineSnowflake:
		return "Snowflake"
	default:
		return "SQLite"
	}
}

// QuoteIdent returns a properly quoted SQL identifier.
// SQLite/Snowflake use double quotes; MySQL uses backticks.
// Internal quotes are escaped by doubling them.
func (d *Dialect) QuoteIdent(name string) string {
	switch d.Engine {
	case EngineMySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}

// ListTablesQuery returns the SQL to list user tables.
func (d *Dialect) ListTablesQuery() string {
	switch d.Engine {
	case EngineSQLite:
		return "SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
	case EngineSnowflake:
		return "SELECT table_name FROM information_schema.tables WHERE table_schema = CURRENT_SCHEMA() AND table_type = 'BASE TABLE' ORDER BY table_name"
	default:
		return "SHOW TABLES"
	}
}

// DescribeColumnsQuery returns the SQL to describe columns for a table as
// (column_name, data_type) rows. The table name is bound as the single
// query parameter.
func (d *Dialect) DescribeColumnsQuery() string {
	switch d.Engine {
	case EngineSQLite:
		return "SELECT name, type FROM pragma_table_info(?)"
	case EngineSnowflake:
		return "SELECT column_name, data_type FROM information_schema.columns " +
			"WHERE table_schema = CURRENT_SCHEMA() AND UPPER(table_name) = UPPER(?) ORDER BY ordinal_position"
	default:
		return "SELECT column_name, data_type FROM information_schema.columns " +
			"WHERE table_schema = DATABASE() AND table_name = ? ORDER BY ordinal_position"
	}
}

// SampleRowsQuery returns a query selecting the first n rows of a table.
func (d *Dialect) SampleRowsQuery(tableName string, n int) string {
	return fmt.Sprintf("SELECT * FROM %s LIMIT %d", d.QuoteIdent(tableName), n)
}

// MonthBucket returns an expression mapping a date column stored as text
// (YYYY/MM/DD or YYYY-MM-DD) to a YYYY-MM month key.
func (d *Dialect) MonthBucket(column string) string {
	switch d.Engine {
	case EngineMySQL:
		return fmt.Sprintf("DATE_FORMAT(STR_TO_DATE(REPLACE(%s, '-', '/'), '%%Y/%%m/%%d'), '%%Y-%%m')", column)
	case EngineSnowflake:
		return fmt.Sprintf("TO_CHAR(TO_DATE(REPLACE(%s, '-', '/'), 'YYYY/MM/DD'), 'YYYY-MM')", column)
	default:
		return fmt.Sprintf("substr(replace(%s, '/', '-'), 1, 7)", column)
	}
}

// Queryer is the subset of *sql.DB the introspection helpers need.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ColumnInfo is one column of a described table.
type ColumnInfo struct {
	Name string
	Type string
}

// ListTables runs ListTablesQuery and returns the table names.
func (d *Dialect) ListTables(ctx context.Context, db Queryer) ([]string, error) {
	rows, err := db.QueryContext(ctx, d.ListTablesQuery())
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DescribeColumns runs DescribeColumnsQuery for one table.
func (d *Dialect) DescribeColumns(ctx context.Context, db Queryer, tableName string) ([]ColumnInfo, error) {
	rows, err := db.QueryContext(ctx, d.DescribeColumnsQuery(), tableName)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", tableName, err)
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var c ColumnInfo
		var typ sql.NullString
		if err := rows.Scan(&c.Name, &typ); err != nil {
			return nil, fmt.Errorf("scan column info: %w", err)
		}
		c.Type = typ.String
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %q not found", tableName)
	}
	return cols, nil
}
