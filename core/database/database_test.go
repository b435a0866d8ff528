package database

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestParseVersion(t *testing.T) {
	cases := map[string]uint64{
		"000001_init.up.sql":     1,
		"000012_bookings.up.sql": 12,
		"junk.up.sql":            0,
	}
	for name, want := range cases {
		if got := parseVersion(name); got != want {
			t.Errorf("parseVersion(%q) = %d, want %d", name, got, want)
		}
	}
}

func TestSelectApplied(t *testing.T) {
	files := []string{"000001_init.up.sql", "000002_subscriptions.up.sql", "000003_indexes.up.sql"}
	got := selectApplied(files, 1, 3)
	want := []string{"000002_subscriptions.up.sql", "000003_indexes.up.sql"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("selectApplied = %v, want %v", got, want)
	}
	if got := selectApplied(files, 3, 3); got != nil {
		t.Fatalf("expected nothing applied, got %v", got)
	}
}

func TestListMigrationFilesSkipsDown(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"000002_b.up.sql", "000001_a.up.sql", "000001_a.down.sql"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o600); err != nil {
			t.Fatal(err)
		}
	}
	got := listMigrationFiles(dir)
	want := []string{"000001_a.up.sql", "000002_b.up.sql"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("listMigrationFiles = %v, want %v", got, want)
	}
}

func TestConfigDSN(t *testing.T) {
	cfg := Config{Host: "db", Port: "5432", User: "fit", Password: "p@ss", Name: "fitbot"}
	if got := cfg.URL(); got != "postgres://fit:p%40ss@db:5432/fitbot?sslmode=disable" {
		t.Fatalf("URL = %s", got)
	}
	if !strings.Contains(cfg.KeywordDSN(), "sslmode=disable") {
		t.Fatalf("KeywordDSN = %s", cfg.KeywordDSN())
	}
}

func TestResolveMigrationsDir(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "m")
	got, err := resolveMigrationsDir(abs)
	if err != nil || got != abs {
		t.Fatalf("resolveMigrationsDir(abs) = %q, %v", got, err)
	}
	got, err = resolveMigrationsDir("")
	if err != nil || filepath.Base(got) != defaultMigrationsDir {
		t.Fatalf("resolveMigrationsDir(\"\") = %q, %v", got, err)
	}
}
