package database

import (
	"context"
	"testing"
	"testing/fstest"
)

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"20260101_000000_create_items.up.sql":   {Data: []byte("CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT);")},
		"20260101_000000_create_items.down.sql": {Data: []byte("DROP TABLE items;")},
		"20260102_000000_add_tags.up.sql":       {Data: []byte("CREATE TABLE tags (id INTEGER PRIMARY KEY);")},
		"20260102_000000_add_tags.down.sql":     {Data: []byte("DROP TABLE tags;")},
		"README.md":                             {Data: []byte("not a migration")},
	}
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&n)
	if err != nil {
		t.Fatalf("checking table %s: %v", name, err)
	}
	return n == 1
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	fsys := testMigrations()

	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !tableExists(t, db, "items") || !tableExists(t, db, "tags") {
		t.Fatal("expected items and tags tables")
	}

	applied, pending, err := db.MigrationStatus(ctx, fsys)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Errorf("applied=%d pending=%d, want 2 and 0", len(applied), len(pending))
	}

	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	fsys := testMigrations()

	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx, fsys); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	if tableExists(t, db, "tags") {
		t.Error("tags table should be dropped")
	}
	if !tableExists(t, db, "items") {
		t.Error("items table should remain")
	}

	_, pending, err := db.MigrationStatus(ctx, fsys)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(pending) != 1 || pending[0].Name != "add_tags" {
		t.Errorf("pending = %+v, want add_tags", pending)
	}
}

func TestMigrateNilFS(t *testing.T) {
	db := openTestDB(t)
	if err := db.Migrate(context.Background(), nil); err != nil {
		t.Errorf("Migrate(nil) error = %v", err)
	}
}

func TestParseMigrationFile(t *testing.T) {
	tests := []struct {
		filename string
		want     migrationFile
		wantOK   bool
	}{
		{"20260101_000000_initial_schema.up.sql", migrationFile{"20260101_000000", "initial_schema", true}, true},
		{"20260101_000000_initial_schema.down.sql", migrationFile{"20260101_000000", "initial_schema", false}, true},
		{"20260101_000000_initial_schema.sql", migrationFile{}, false},
		{"20260101_000000_initial_schema.up.txt", migrationFile{}, false},
		{"v1_initial.up.sql", migrationFile{}, false},
		{"2026010a_000000_x.up.sql", migrationFile{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, ok := parseMigrationFile(tt.filename)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("parseMigrationFile(%q) = (%+v, %v), want (%+v, %v)",
					tt.filename, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestLoadMigrationsSkipsOrphanDown(t *testing.T) {
	fsys := testMigrations()
	fsys["20260103_000000_orphan.down.sql"] = &fstest.MapFile{Data: []byte("SELECT 1;")}

	got, err := LoadMigrations(fsys)
	if err != nil {
		t.Fatalf("LoadMigrations() error = %v", err)
	}
	if len(got) != 2 || got[0].Name != "create_items" || got[1].DownSQL == "" {
		t.Errorf("LoadMigrations() = %+v", got)
	}
}
