package sqldb

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name        string
		dsn         string
		wantBackend string
		wantDSN     string
	}{
		{"postgres url", "postgres://u:p@localhost:5432/db?sslmode=disable", "postgres", "postgres://u:p@localhost:5432/db?sslmode=disable"},
		{"postgresql url", "postgresql://u:p@host/db", "postgres", "postgresql://u:p@host/db"},
		{"sqlite memory", ":memory:", "sqlite", ":memory:"},
		{"sqlite prefix memory", "sqlite://:memory:", "sqlite", ":memory:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, dsn, err := resolve(tt.dsn)
			if err != nil {
				t.Fatalf("resolve() error = %v", err)
			}
			if b.name != tt.wantBackend {
				t.Errorf("backend = %q, want %q", b.name, tt.wantBackend)
			}
			if dsn != tt.wantDSN {
				t.Errorf("dsn = %q, want %q", dsn, tt.wantDSN)
			}
		})
	}
}

func TestResolve_Empty(t *testing.T) {
	if _, _, err := resolve("   "); err == nil {
		t.Fatal("resolve() should reject an empty connection string")
	}
}

func TestResolve_SQLiteFileAddsPragmasAndDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "waitlist.db")

	b, dsn, err := resolve(path)
	if err != nil {
		t.Fatalf("resolve() error = %v", err)
	}
	if b.name != "sqlite" {
		t.Errorf("backend = %q, want sqlite", b.name)
	}
	if !strings.Contains(dsn, "_pragma=busy_timeout(5000)") {
		t.Errorf("dsn %q is missing busy_timeout pragma", dsn)
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("database directory was not created: %v", err)
	}
}

func TestInitialize_Idempotent(t *testing.T) {
	db := newTestDB(t)

	for i := 0; i < 3; i++ {
		if err := db.Initialize(context.Background()); err != nil {
			t.Fatalf("Initialize() call %d error = %v", i+1, err)
		}
	}

	// Data survives repeated initialization.
	addTestSubscriber(t, db, "persist@example.com")
	if err := db.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() after insert error = %v", err)
	}
	ok, err := db.Exists(context.Background(), "persist@example.com")
	if err != nil || !ok {
		t.Errorf("Exists() after re-initialize = %v, %v; want true, nil", ok, err)
	}
}

func TestInitialize_AdoptsPreexistingTable(t *testing.T) {
	db, err := Open(context.Background(), Config{DSN: ":memory:"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// A table created by an earlier deployment, before migrations were tracked.
	_, err = db.conn.Exec(`CREATE TABLE email_subscribers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		t.Fatalf("creating legacy table: %v", err)
	}
	if _, err := db.conn.Exec(`INSERT INTO email_subscribers (email) VALUES ('old@example.com')`); err != nil {
		t.Fatalf("seeding legacy row: %v", err)
	}

	if err := db.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	subs, err := db.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(subs) != 1 || subs[0].Email != "old@example.com" {
		t.Errorf("ListAll() = %+v, want the legacy row", subs)
	}
}

func TestPingAndBackend(t *testing.T) {
	db := newTestDB(t)

	if err := db.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	if db.Backend() != "sqlite" {
		t.Errorf("Backend() = %q, want sqlite", db.Backend())
	}
}
