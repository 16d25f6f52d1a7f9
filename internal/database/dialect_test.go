package database

import "testing"

func TestRebind(t *testing.T) {
	tests := []struct {
		dialect string
		in      string
		want    string
	}{
		{DialectMySQL, "SELECT a FROM t WHERE x = ? AND y = ?", "SELECT a FROM t WHERE x = ? AND y = ?"},
		{DialectSQLite, "UPDATE t SET a = ? WHERE id = ?", "UPDATE t SET a = ? WHERE id = ?"},
		{DialectPostgres, "SELECT a FROM t WHERE x = ? AND y = ?", "SELECT a FROM t WHERE x = $1 AND y = $2"},
		{DialectPostgres, "SELECT 1", "SELECT 1"},
	}
	for _, tt := range tests {
		got := Dialect{Name: tt.dialect}.Rebind(tt.in)
		if got != tt.want {
			t.Fatalf("%s Rebind(%q) = %q, want %q", tt.dialect, tt.in, got, tt.want)
		}
	}
}

func TestForUpdate(t *testing.T) {
	if got := (Dialect{Name: DialectSQLite}).ForUpdate(); got != "" {
		t.Fatalf("sqlite ForUpdate = %q, want empty", got)
	}
	if got := (Dialect{Name: DialectMySQL}).ForUpdate(); got != " FOR UPDATE" {
		t.Fatalf("mysql ForUpdate = %q", got)
	}
	if got := (Dialect{Name: DialectPostgres}).ForUpdate(); got != " FOR UPDATE" {
		t.Fatalf("postgres ForUpdate = %q", got)
	}
}
