package agent

import (
	"fmt"
	"regexp"
	"strings"

	"supplychat/dbpool"
)

var (
	lineCommentRe  = regexp.MustCompile(`--[^\n]*`)
	blockCommentRe = regexp.MustCompile(`/\*[\s\S]*?\*/`)
	limitRe        = regexp.MustCompile(`(?i)\bLIMIT\s+\d+`)
	writeKeywordRe = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|DROP|ALTER|CREATE|TRUNCATE|MERGE|GRANT|REVOKE|ATTACH|DETACH|PRAGMA)\b`)
)

// stripSQLComments removes -- and /* */ comments and surrounding space.
func stripSQLComments(query string) string {
	q := lineCommentRe.ReplaceAllString(query, "")
	q = blockCommentRe.ReplaceAllString(q, "")
	return strings.TrimSpace(q)
}

// isReadOnlyQuery allows SELECT and WITH (for CTEs) statements only.
func isReadOnlyQuery(query string) bool {
	upper := strings.ToUpper(stripSQLComments(query))
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return false
	}
	// A single statement only; WITH ... DELETE is still a write.
	body := strings.TrimRight(upper, "; \t\r\n")
	if strings.Contains(body, ";") {
		return false
	}
	if strings.HasPrefix(upper, "WITH") && writeKeywordRe.MatchString(body) {
		return false
	}
	return true
}

// prepareReadQuery validates a model-written query and adapts it to the
// engine: MySQL-isms are rewritten for SQLite, trailing semicolons are
// dropped and a LIMIT is appended when absent.
func prepareReadQuery(query string, dialect *dbpool.Dialect, limit int) (string, error) {
	if !isReadOnlyQuery(query) {
		return "", fmt.Errorf("only SELECT queries are allowed for safety. Use SELECT to retrieve data.\nReceived query: %s", query)
	}
	q := stripSQLComments(query)
	if dialect != nil && dialect.Engine == dbpool.EngineSQLite {
		q = convertMySQLToSQLite(q)
	}
	q = strings.TrimRight(q, "; \t\n\r")
	if limit > 0 && !limitRe.MatchString(q) {
		q = fmt.Sprintf("%s LIMIT %d", q, limit)
	}
	return q, nil
}

var mysqlToSQLite = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)\bYEAR\s*\(\s*([^)]+)\s*\)`), "strftime('%Y', $1)"},
	{regexp.MustCompile(`(?i)\bMONTH\s*\(\s*([^)]+)\s*\)`), "strftime('%m', $1)"},
	{regexp.MustCompile(`(?i)\bDAY\s*\(\s*([^)]+)\s*\)`), "strftime('%d', $1)"},
	{regexp.MustCompile(`(?i)DATE_FORMAT\s*\(\s*([^,]+)\s*,\s*'([^']+)'\s*\)`), "strftime('$2', $1)"},
	{regexp.MustCompile(`(?i)\bNOW\s*\(\s*\)`), "datetime('now')"},
	{regexp.MustCompile(`(?i)\bCURDATE\s*\(\s*\)`), "date('now')"},
	{regexp.MustCompile(`(?i)\bIFNULL\s*\(`), "COALESCE("},
	{regexp.MustCompile(`(?i)\bSUBSTRING\s*\(`), "SUBSTR("},
}

var concatRe = regexp.MustCompile(`(?i)\bCONCAT\s*\(([^)]+)\)`)

// convertMySQLToSQLite converts common MySQL syntax the model tends to emit.
// The supply-chain dates are stored as YYYY/MM/DD text, which strftime does
// not parse, so date functions only work on ISO-formatted columns.
func convertMySQLToSQLite(query string) string {
	for _, r := range mysqlToSQLite {
		query = r.re.ReplaceAllString(query, r.repl)
	}
	return concatRe.ReplaceAllStringFunc(query, func(match string) string {
		parts := concatRe.FindStringSubmatch(match)
		args := strings.Split(parts[1], ",")
		for i := range args {
			args[i] = strings.TrimSpace(args[i])
		}
		return "(" + strings.Join(args, " || ") + ")"
	})
}
