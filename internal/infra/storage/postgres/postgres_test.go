package postgres

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/vietddude/dal/internal/infra/storage"
	"github.com/vietddude/dal/internal/infra/storage/storagetest"
)

func testDSN(t *testing.T) string {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
}

func newTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	db, err := NewDB(ctx, Config{Driver: DriverSQLite, URL: testDSN(t)})
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.Migrate(ctx, nil); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func TestSQLStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return newTestDB(t)
	})
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	// Applying twice is a no-op.
	if err := db.Migrate(ctx, nil); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	states, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(states) != 2 {
		t.Fatalf("got %d migrations, want 2", len(states))
	}
	for i, s := range states {
		if s.Version != int64(i+1) {
			t.Errorf("migration %d has version %d", i, s.Version)
		}
		if !s.Applied {
			t.Errorf("migration %s not applied", s.Name)
		}
	}

	var codes []string
	if err := db.SelectContext(ctx, &codes, `SELECT code FROM category_types ORDER BY id`); err != nil {
		t.Fatalf("select category types: %v", err)
	}
	if strings.Join(codes, ",") != "GENERAL,GROCERY,ELECTRONICS,CLOTHING" {
		t.Errorf("seeded category types = %v", codes)
	}
}

func TestMigrationStatusBeforeMigrate(t *testing.T) {
	ctx := context.Background()
	db, err := NewDB(ctx, Config{Driver: DriverSQLite, URL: testDSN(t)})
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	defer db.Close()

	states, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	for _, s := range states {
		if s.Applied {
			t.Errorf("migration %d reported applied on an empty database", s.Version)
		}
	}
}

func TestNewDBRejectsUnknownDriver(t *testing.T) {
	_, err := NewDB(context.Background(), Config{Driver: "oracle", URL: "x"})
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"dal.db", "dal.db?_pragma=foreign_keys(1)"},
		{"file:x?mode=memory", "file:x?mode=memory&_pragma=foreign_keys(1)"},
		{"file:x?_pragma=journal_mode(WAL)", "file:x?_pragma=journal_mode(WAL)"},
	}
	for _, tt := range tests {
		if got := sqliteDSN(tt.in); got != tt.want {
			t.Errorf("sqliteDSN(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHealthAndMetrics(t *testing.T) {
	db := newTestDB(t)
	if err := db.Health(context.Background()); err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	db.collectMetrics()
}

// TestPostgresStore runs the conformance suite against a live server when
// DAL_TEST_POSTGRES_URL is set, once per driver.
func TestPostgresStore(t *testing.T) {
	url := os.Getenv("DAL_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("DAL_TEST_POSTGRES_URL not set")
	}

	for _, driver := range []string{DriverPgx, DriverPostgres} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			db, err := NewDB(ctx, Config{Driver: driver, URL: url, MaxConns: 4})
			if err != nil {
				t.Fatalf("NewDB() error = %v", err)
			}
			t.Cleanup(func() { _ = db.Close() })

			if err := db.Migrate(ctx, nil); err != nil {
				t.Fatalf("Migrate() error = %v", err)
			}

			storagetest.Run(t, func(t *testing.T) storage.Store {
				if _, err := db.Categories().DeleteAll(ctx); err != nil {
					t.Fatalf("DeleteAll() error = %v", err)
				}
				return sharedStore{db}
			})
		})
	}
}

// sharedStore keeps the suite from closing a pool used by later subtests.
type sharedStore struct{ storage.Store }

func (sharedStore) Close() error { return nil }
