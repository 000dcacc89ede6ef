package dbpool

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"
)

// openSQLite opens a SQLite database file through the modernc driver.
// WAL mode and a busy timeout are set through _pragma parameters so that
// concurrent readers do not fail with SQLITE_BUSY.
func (m *DBManager) openSQLite(ctx context.Context, opts OpenOptions) (*sql.DB, error) {
	return m.openWithRetry(ctx, "SQLite "+opts.Path, "sqlite", sqliteDSN(opts), opts, configureFilePool)
}

func sqliteDSN(opts OpenOptions) string {
	params := []string{"_pragma=busy_timeout(5000)"}
	dsn := opts.Path
	if opts.Mode == ModeReadOnly {
		if !strings.HasPrefix(dsn, "file:") {
			dsn = "file:" + dsn
		}
		params = append(params, "mode=ro")
	} else {
		params = append(params, "_pragma=journal_mode(WAL)")
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

// SQLiteDSN exposes the DSN used for path so callers opening through other
// helpers (tests, migrations) get identical pragmas.
func SQLiteDSN(path string, mode AccessMode) string {
	return sqliteDSN(OpenOptions{Path: path, Mode: mode})
}
