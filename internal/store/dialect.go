package store

import (
	"strconv"
	"strings"
)

// Dialect is the SQL flavour of the backing database.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) driver() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "sqlite3"
}

// Placeholder returns the bind parameter marker for the n-th (1-based) argument.
func (d Dialect) Placeholder(n int) string {
	if d == DialectPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// ColumnsQuery returns a statement listing the column names of table in
// declaration order. The table name is bound, never interpolated.
func (d Dialect) ColumnsQuery(table string) (string, []any) {
	if d == DialectPostgres {
		return `SELECT column_name FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = $1
ORDER BY ordinal_position`, []any{table}
	}
	return "SELECT name FROM pragma_table_info(?) ORDER BY cid", []any{table}
}

// QuoteIdent quotes an identifier for use in a statement. Callers must only
// pass names from a closed set; quoting is not validation.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
