package migrations

import (
	"strings"
	"testing"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name    string
		want    int
		wantErr bool
	}{
		{"001_initial.sql", 1, false},
		{"002_ledger.sql", 2, false},
		{"010_something.sql", 10, false},
		{"notaversion.sql", 0, true},
		{"abc_initial.sql", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseVersion(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseVersion(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseVersion(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestDriversShareVersions(t *testing.T) {
	lite, err := SQLite()
	if err != nil {
		t.Fatalf("SQLite() error = %v", err)
	}
	pg, err := PostgreSQL()
	if err != nil {
		t.Fatalf("PostgreSQL() error = %v", err)
	}

	if len(lite) != len(pg) {
		t.Fatalf("sqlite has %d migrations, postgres has %d", len(lite), len(pg))
	}
	for i := range lite {
		if lite[i].Version != pg[i].Version || lite[i].Version != i+1 {
			t.Errorf("migration %d: sqlite v%d, postgres v%d", i, lite[i].Version, pg[i].Version)
		}
		if !strings.Contains(pg[i].SQL, "CREATE TABLE") && !strings.Contains(pg[i].SQL, "ALTER TABLE") {
			t.Errorf("postgres migration %s changes no table", pg[i].Name)
		}
	}
}
