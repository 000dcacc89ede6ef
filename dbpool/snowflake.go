package dbpool

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/snowflakedb/gosnowflake"
)

// openSnowflake opens a Snowflake warehouse connection. Path is a gosnowflake
// DSN such as user:password@account/database/schema?warehouse=wh.
func (m *DBManager) openSnowflake(ctx context.Context, opts OpenOptions) (*sql.DB, error) {
	cfg, err := gosnowflake.ParseDSN(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("dbpool: invalid snowflake dsn: %w", err)
	}
	dsn, err := gosnowflake.DSN(cfg)
	if err != nil {
		return nil, fmt.Errorf("dbpool: invalid snowflake config: %w", err)
	}
	return m.openWithRetry(ctx, "Snowflake "+cfg.Account, "snowflake", dsn, opts, configureNetworkPool)
}
