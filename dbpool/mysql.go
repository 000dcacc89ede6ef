package dbpool

import (
	"context"
	"database/sql"

	"github.com/go-sql-driver/mysql"
)

// openMySQL opens a MySQL (or MySQL-compatible like Doris) connection with retry.
// The DSN is parsed first so malformed configuration fails without retrying.
func (m *DBManager) openMySQL(ctx context.Context, opts OpenOptions) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(opts.Path)
	if err != nil {
		return nil, err
	}
	// Dates in the supply-chain tables are compared as text; keep them as []byte.
	cfg.ParseTime = false
	return m.openWithRetry(ctx, "MySQL "+cfg.Addr, "mysql", cfg.FormatDSN(), opts, configureNetworkPool)
}
