package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/claudio-seo/claudio/internal/report"
)

func testRecord(id string, created time.Time, full bool) *Record {
	rec := &Record{
		ID:         id,
		Site:       "acme.example",
		URL:        "https://acme.example",
		Type:       "basic",
		Model:      "gemini-2.0-flash",
		CreatedAt:  created,
		Content:    "## Summary",
		Summary:    report.Summary{Verdict: "Promising"},
		ReportDocx: []byte("docx-" + id),
	}
	if full {
		rec.Type = "full"
		rec.TasksXlsx = []byte("xlsx-" + id)
		rec.Tasks = []report.Task{{Number: 1, Task: "Fix titles", Priority: report.PriorityHigh}}
	}
	return rec
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if err := s.Save(ctx, testRecord(fmt.Sprintf("a%d", i), base.Add(time.Duration(i)*time.Minute), i == 2)); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	if _, err := s.Get(ctx, "a0"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("oldest record should be evicted, err = %v", err)
	}
	rec, err := s.Get(ctx, "a2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(rec.TasksXlsx) != "xlsx-a2" {
		t.Fatalf("tasks = %q", rec.TasksXlsx)
	}

	list, err := s.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != "a2" || !list[0].HasTasks || list[1].HasTasks {
		t.Fatalf("list = %+v", list)
	}
	if list[0].Verdict != "Promising" {
		t.Fatalf("verdict = %q", list[0].Verdict)
	}
	if limited, _ := s.List(ctx, 1); len(limited) != 1 {
		t.Fatalf("limited list = %+v", limited)
	}

	if err = s.Save(ctx, &Record{}); err == nil {
		t.Fatalf("expected error for empty id")
	}
}

func TestMemoryStore_ReplaceKeepsOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	_ = s.Save(ctx, testRecord("x", time.Now(), false))
	_ = s.Save(ctx, testRecord("y", time.Now(), false))
	_ = s.Save(ctx, testRecord("x", time.Now(), true))

	list, _ := s.List(ctx, 0)
	if len(list) != 2 || list[0].ID != "y" {
		t.Fatalf("list = %+v", list)
	}
	rec, _ := s.Get(ctx, "x")
	if rec.Type != "full" {
		t.Fatalf("record not replaced: %+v", rec)
	}
}

func TestResolveEndpoint(t *testing.T) {
	cases := []struct {
		raw      string
		endpoint string
		ssl      bool
		wantErr  bool
	}{
		{"minio.local:9000", "minio.local:9000", true, false},
		{"http://minio.local:9000/", "minio.local:9000", false, false},
		{"https://s3.example.com", "s3.example.com", true, false},
		{"ftp://x", "", false, true},
	}
	for _, c := range cases {
		endpoint, ssl, err := ResolveEndpoint(c.raw, true)
		if (err != nil) != c.wantErr {
			t.Fatalf("ResolveEndpoint(%q) err = %v", c.raw, err)
		}
		if err == nil && (endpoint != c.endpoint || ssl != c.ssl) {
			t.Fatalf("ResolveEndpoint(%q) = %q %v", c.raw, endpoint, ssl)
		}
	}
}

func TestFromEnv_DefaultsToMemory(t *testing.T) {
	s, closeFn, err := FromEnv(context.Background(), func(string) (string, bool) { return "", false }, 5)
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	defer func() { _ = closeFn() }()
	if _, ok := s.(*MemoryStore); !ok {
		t.Fatalf("store = %T, want *MemoryStore", s)
	}
}

func TestNewObjectStore_Validation(t *testing.T) {
	if _, err := NewObjectStore(ObjectStoreConfig{Endpoint: "minio.local"}); err == nil {
		t.Fatalf("expected error without bucket")
	}
	if _, err := NewPostgresStore(context.Background(), PostgresStoreConfig{}); err == nil {
		t.Fatalf("expected error without dsn")
	}
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("PGSTORE_TEST_DSN")
	if dsn == "" {
		t.Skip("PGSTORE_TEST_DSN not set")
	}
	ctx := context.Background()
	s, err := NewPostgresStore(ctx, PostgresStoreConfig{DSN: dsn, AuditTable: fmt.Sprintf("audit_store_test_%d", time.Now().UnixNano())})
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	defer func() {
		_, _ = s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+s.fullTableName(s.cfg.AuditTable))
		_ = s.Close()
	}()
	if err = s.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	exerciseStore(t, s)
}

func TestObjectStore(t *testing.T) {
	endpoint := os.Getenv("OBJECTSTORE_TEST_ENDPOINT")
	if endpoint == "" {
		t.Skip("OBJECTSTORE_TEST_ENDPOINT not set")
	}
	host, ssl, err := ResolveEndpoint(endpoint, false)
	if err != nil {
		t.Fatalf("ResolveEndpoint: %v", err)
	}
	s, err := NewObjectStore(ObjectStoreConfig{
		Endpoint:  host,
		Bucket:    os.Getenv("OBJECTSTORE_TEST_BUCKET"),
		AccessKey: os.Getenv("OBJECTSTORE_TEST_ACCESS_KEY"),
		SecretKey: os.Getenv("OBJECTSTORE_TEST_SECRET_KEY"),
		Prefix:    fmt.Sprintf("test-%d", time.Now().UnixNano()),
		UseSSL:    ssl,
		PathStyle: true,
	})
	if err != nil {
		t.Fatalf("NewObjectStore: %v", err)
	}
	if err = s.EnsureBucket(context.Background()); err != nil {
		t.Fatalf("EnsureBucket: %v", err)
	}
	exerciseStore(t, s)
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)
	if err := s.Save(ctx, testRecord("basic-1", base, false)); err != nil {
		t.Fatalf("Save basic: %v", err)
	}
	if err := s.Save(ctx, testRecord("full-1", base.Add(time.Minute), true)); err != nil {
		t.Fatalf("Save full: %v", err)
	}

	rec, err := s.Get(ctx, "full-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(rec.ReportDocx) != "docx-full-1" || string(rec.TasksXlsx) != "xlsx-full-1" || len(rec.Tasks) != 1 {
		t.Fatalf("record = %+v", rec)
	}
	if _, err = s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	list, err := s.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != "full-1" || !list[0].HasTasks || list[1].HasTasks {
		t.Fatalf("list = %+v", list)
	}
}
