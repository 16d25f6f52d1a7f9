package database

import (
	"strconv"
	"strings"
)

// Supported dialect names, matching config DB_DRIVER values.
const (
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// Dialect smooths over the few differences between the supported engines.
// Queries are written with ? placeholders and passed through Rebind.
type Dialect struct {
	Name string
}

// Rebind rewrites ? placeholders to $n for Postgres and returns the query
// unchanged for the other engines.  Queries must not contain literal
// question marks.
func (d Dialect) Rebind(q string) string {
	if d.Name != DialectPostgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

// ForUpdate returns the row-lock suffix for SELECT statements run inside a
// transaction.  SQLite has no row locks; its single writer already
// serializes transactions.
func (d Dialect) ForUpdate() string {
	if d.Name == DialectSQLite {
		return ""
	}
	return " FOR UPDATE"
}
