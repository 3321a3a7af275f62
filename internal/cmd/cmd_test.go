package cmd

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/claudio-seo/claudio/internal/audit"
	"github.com/claudio-seo/claudio/internal/config"
	"github.com/claudio-seo/claudio/internal/store"
	"github.com/tidwall/sjson"
)

func newAuditConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Shop</title></head><body><h1>Shop</h1><p>Hello there.</p></body></html>`))
	}))
	t.Cleanup(site.Close)

	claude := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := sjson.Set(`{"content":[{"type":"text","text":""}]}`, "content.0.text", "## Executive Summary\nLooks fine.")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(claude.Close)

	cfg := &config.Config{}
	cfg.Claude.APIKey = "sk-claude"
	cfg.Claude.BaseURL = claude.URL
	cfg.Sanitize()
	return cfg, site.URL
}

func TestDoAudit_WritesReport(t *testing.T) {
	cfg, siteURL := newAuditConfig(t)
	outDir := filepath.Join(t.TempDir(), "reports")
	st := store.NewMemoryStore(5)
	var out bytes.Buffer

	written, err := DoAudit(context.Background(), cfg, st, AuditOptions{
		Request: audit.Request{URL: siteURL},
		OutDir:  outDir,
		Stdout:  &out,
	})
	if err != nil {
		t.Fatalf("DoAudit: %v", err)
	}
	if len(written) != 1 || !strings.HasSuffix(written[0], ".docx") {
		t.Fatalf("written = %v", written)
	}
	data, err := os.ReadFile(written[0])
	if err != nil || !bytes.HasPrefix(data, []byte("PK")) {
		t.Fatalf("report not a zip archive (err %v)", err)
	}
	if !strings.Contains(out.String(), "[100%] Complete!") || !strings.Contains(out.String(), "saved "+written[0]) {
		t.Fatalf("output = %q", out.String())
	}
	audits, err := st.List(context.Background(), 10)
	if err != nil || len(audits) != 1 {
		t.Fatalf("stored audits = %v (err %v)", audits, err)
	}
}

func TestDoAudit_ValidationError(t *testing.T) {
	cfg, _ := newAuditConfig(t)
	dir := t.TempDir()

	written, err := DoAudit(context.Background(), cfg, nil, AuditOptions{OutDir: dir, Stdout: &bytes.Buffer{}})
	if !errors.Is(err, audit.ErrMissingURL) {
		t.Fatalf("err = %v, want ErrMissingURL", err)
	}
	if len(written) != 0 {
		t.Fatalf("written = %v", written)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("output dir not empty: %v", entries)
	}
}

func TestDialAddr(t *testing.T) {
	cases := []struct {
		host string
		want string
	}{
		{"", "127.0.0.1:8080"},
		{"0.0.0.0", "127.0.0.1:8080"},
		{"localhost", "localhost:8080"},
		{"::1", "[::1]:8080"},
	}
	for _, tc := range cases {
		cfg := &config.Config{Host: tc.host, Port: 8080}
		if got := dialAddr(cfg); got != tc.want {
			t.Fatalf("dialAddr(%q) = %q, want %q", tc.host, got, tc.want)
		}
	}
}
