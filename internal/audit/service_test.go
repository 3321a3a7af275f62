package audit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/claudio-seo/claudio/internal/ahrefs"
	"github.com/claudio-seo/claudio/internal/config"
	"github.com/claudio-seo/claudio/internal/llm"
	"github.com/claudio-seo/claudio/internal/report"
	"github.com/claudio-seo/claudio/internal/scraper"
	"github.com/claudio-seo/claudio/internal/store"
)

type fakeAnalyzer struct {
	err  error
	seen []string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, rawURL string) (*scraper.SiteAnalysis, error) {
	f.seen = append(f.seen, rawURL)
	if f.err != nil {
		return nil, f.err
	}
	return &scraper.SiteAnalysis{
		URL:        rawURL,
		StatusCode: http.StatusOK,
		Title:      "Acme Widgets",
		H1Tags:     []string{"Widgets"},
		H2Tags:     []string{},
		WordCount:  420,
	}, nil
}

type fakeAhrefs struct {
	enabled bool
	err     error
	calls   int
}

func (f *fakeAhrefs) Enabled() bool { return f.enabled }

func (f *fakeAhrefs) Fetch(_ context.Context, target string) (*ahrefs.Data, error) {
	f.calls++
	return &ahrefs.Data{Domain: target, DomainRating: 42, Backlinks: 1200}, f.err
}

type fakeGenerator struct {
	models  []llm.Model
	text    string
	err     error
	prompts []string
}

func (f *fakeGenerator) Models() []llm.Model { return f.models }

func (f *fakeGenerator) Generate(_ context.Context, modelID, prompt string) (*llm.Generation, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Generation{Text: f.text, Model: modelID, PromptTokens: 123}, nil
}

type progressLog struct {
	mu       sync.Mutex
	percents []int
}

func (p *progressLog) record(pr Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.percents = append(p.percents, pr.Percent)
}

func newTestService(t *testing.T, an *fakeAnalyzer, ah *fakeAhrefs, gen *fakeGenerator) *Service {
	t.Helper()
	cfg := &config.Config{}
	cfg.Sanitize()
	s, err := NewService(cfg, store.NewMemoryStore(10))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	s.Close()
	s.deps = &deps{cfg: cfg, analyzer: an, ahrefs: ah, generator: gen}
	s.now = func() time.Time { return time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC) }
	return s
}

func defaultGenerator(text string) *fakeGenerator {
	return &fakeGenerator{
		models: []llm.Model{{ID: "fake-1", Label: "Fake One", Provider: "fake"}},
		text:   text,
	}
}

const basicText = `## Executive Summary
Acme is in reasonable shape.

## Key Recommendations
- Add a meta description to the home page`

const fullText = "## Executive Summary\nSolid base.\n\n```json\n" + `{
  "score": 64,
  "verdict": "Needs Work",
  "tasks": [
    {"task": "Add meta description", "priority": "critical", "effort": "1", "category": "On-Page SEO"},
    {"title": "Compress hero images", "level": "high"}
  ]
}` + "\n```"

func TestRun_Validation(t *testing.T) {
	cases := []struct {
		name string
		req  Request
		ah   *fakeAhrefs
		gen  *fakeGenerator
		want error
	}{
		{"missing url", Request{URL: "  "}, &fakeAhrefs{}, defaultGenerator(""), ErrMissingURL},
		{"full without ahrefs", Request{URL: "acme.example", Type: "full", ConfirmAhrefs: true}, &fakeAhrefs{}, defaultGenerator(""), ErrAhrefsUnavailable},
		{"full unconfirmed", Request{URL: "acme.example", Type: "full"}, &fakeAhrefs{enabled: true}, defaultGenerator(""), ErrAhrefsNotConfirmed},
		{"no providers", Request{URL: "acme.example"}, &fakeAhrefs{}, &fakeGenerator{}, llm.ErrNoProviders},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			an := &fakeAnalyzer{}
			s := newTestService(t, an, c.ah, c.gen)
			if _, err := s.Run(context.Background(), c.req, nil); !errors.Is(err, c.want) {
				t.Fatalf("err = %v, want %v", err, c.want)
			}
			if len(an.seen) != 0 {
				t.Fatalf("analyzer called on invalid request")
			}
		})
	}
}

func TestRun_Basic(t *testing.T) {
	an := &fakeAnalyzer{}
	ah := &fakeAhrefs{enabled: true}
	gen := defaultGenerator(basicText)
	s := newTestService(t, an, ah, gen)
	progress := &progressLog{}

	res, err := s.Run(context.Background(), Request{URL: "www.acme.example/about"}, progress.record)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := progress.percents, []int{20, 60, 80, 100}; !reflect.DeepEqual(got, want) {
		t.Fatalf("progress = %v, want %v", got, want)
	}
	if an.seen[0] != "https://www.acme.example/about" {
		t.Fatalf("analyzed %q", an.seen[0])
	}
	if ah.calls != 0 {
		t.Fatalf("basic audit fetched ahrefs data")
	}
	if res.Site != "acme.example" || res.Type != "basic" || res.Model != "fake-1" || res.PromptTokens != 123 {
		t.Fatalf("result = %+v", res.Record)
	}
	if len(res.ReportDocx) == 0 || len(res.TasksXlsx) != 0 || len(res.Tasks) != 0 {
		t.Fatalf("basic audit documents: docx=%d xlsx=%d tasks=%d", len(res.ReportDocx), len(res.TasksXlsx), len(res.Tasks))
	}
	if !strings.Contains(gen.prompts[0], "BASIC SEO audit for: acme.example") {
		t.Fatalf("prompt = %q", gen.prompts[0])
	}

	text, err := report.DocxText(res.ReportDocx, "word/document.xml")
	if err != nil {
		t.Fatalf("DocxText: %v", err)
	}
	for _, want := range []string{"SEO Audit - acme.example", "Basic Audit", "Executive Summary", "Add a meta description to the home page"} {
		if !strings.Contains(text, want) {
			t.Fatalf("document missing %q:\n%s", want, text)
		}
	}

	saved, err := s.Store().Get(context.Background(), res.ID)
	if err != nil || saved.ID != res.ID {
		t.Fatalf("stored record = %+v, err = %v", saved, err)
	}
}

func TestRun_FullUsesStructuredTasks(t *testing.T) {
	ah := &fakeAhrefs{enabled: true}
	gen := defaultGenerator(fullText)
	s := newTestService(t, &fakeAnalyzer{}, ah, gen)
	progress := &progressLog{}

	res, err := s.Run(context.Background(), Request{URL: "https://acme.example", Type: "FULL", Model: "FAKE-1", ConfirmAhrefs: true}, progress.record)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := progress.percents, []int{20, 40, 60, 80, 100}; !reflect.DeepEqual(got, want) {
		t.Fatalf("progress = %v, want %v", got, want)
	}
	if ah.calls != 1 || res.Ahrefs == nil || res.Ahrefs.DomainRating != 42 {
		t.Fatalf("ahrefs calls = %d, data = %+v", ah.calls, res.Ahrefs)
	}
	if len(res.Tasks) != 2 || res.Tasks[0].Priority != report.PriorityCritical || res.Tasks[1].Task != "Compress hero images" {
		t.Fatalf("tasks = %+v", res.Tasks)
	}
	if res.Summary.Score != 64 || res.Summary.Verdict != "Needs Work" || res.Summary.Critical != 1 || res.Summary.High != 1 {
		t.Fatalf("summary = %+v", res.Summary)
	}
	if len(res.TasksXlsx) == 0 {
		t.Fatalf("full audit without task list")
	}
	if strings.Contains(res.Content, "```") {
		t.Fatalf("content keeps json block: %q", res.Content)
	}
	if !strings.Contains(gen.prompts[0], "```json") {
		t.Fatalf("full prompt lacks json instructions")
	}
}

func TestRun_FullFallsBackToHeuristicTasks(t *testing.T) {
	text := `## Prioritized Action Plan
HIGH PRIORITY
- Rewrite the title tags on every product category page
- Build internal links from the blog to key landing pages`
	s := newTestService(t, &fakeAnalyzer{}, &fakeAhrefs{enabled: true, err: errors.New("ahrefs: timeout")}, defaultGenerator(text))

	res, err := s.Run(context.Background(), Request{URL: "acme.example", Type: "full", ConfirmAhrefs: true}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Tasks) != 2 || res.Tasks[0].Priority != report.PriorityHigh {
		t.Fatalf("tasks = %+v", res.Tasks)
	}
	if res.Summary.Verdict != "Promising" {
		t.Fatalf("verdict = %q", res.Summary.Verdict)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "timeout") {
		t.Fatalf("warnings = %v", res.Warnings)
	}
}

func TestRun_AhrefsIncompleteAddsWarning(t *testing.T) {
	ah := &fakeAhrefs{enabled: true, err: fmt.Errorf("%w: /site-explorer/metrics returned 429", ahrefs.ErrIncomplete)}
	s := newTestService(t, &fakeAnalyzer{}, ah, defaultGenerator(fullText))

	res, err := s.Run(context.Background(), Request{URL: "acme.example", Type: "full", ConfirmAhrefs: true}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "Ahrefs data incomplete: ahrefs: incomplete data: /site-explorer/metrics returned 429"
	if len(res.Warnings) != 1 || res.Warnings[0] != want {
		t.Fatalf("warnings = %q, want [%q]", res.Warnings, want)
	}
	if res.Ahrefs == nil || res.Ahrefs.DomainRating != 42 {
		t.Fatalf("partial ahrefs data dropped: %+v", res.Ahrefs)
	}
}

type failingStore struct {
	store.Store
}

func (failingStore) Save(context.Context, *store.Record) error {
	return errors.New("disk full")
}

func TestRun_SaveFailureAddsWarning(t *testing.T) {
	s := newTestService(t, &fakeAnalyzer{}, &fakeAhrefs{}, defaultGenerator(basicText))
	s.store = failingStore{Store: store.NewMemoryStore(1)}
	progress := &progressLog{}

	res, err := s.Run(context.Background(), Request{URL: "acme.example"}, progress.record)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Warnings) != 1 || res.Warnings[0] != "Audit could not be saved to history" {
		t.Fatalf("warnings = %q", res.Warnings)
	}
	if len(res.ReportDocx) == 0 {
		t.Fatalf("report missing after save failure")
	}
	if got := progress.percents[len(progress.percents)-1]; got != 100 {
		t.Fatalf("last progress = %d, want 100", got)
	}
}

func TestRun_ScrapeFailureAborts(t *testing.T) {
	gen := defaultGenerator(basicText)
	s := newTestService(t, &fakeAnalyzer{err: errors.New("connection refused")}, &fakeAhrefs{}, gen)
	if _, err := s.Run(context.Background(), Request{URL: "acme.example"}, nil); err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("err = %v", err)
	}
	if len(gen.prompts) != 0 {
		t.Fatalf("generator called after scrape failure")
	}
}

func TestRun_GenerateErrorKeepsStatus(t *testing.T) {
	gen := defaultGenerator("")
	gen.err = llm.StatusError{Code: http.StatusTooManyRequests, Msg: "rate limited"}
	s := newTestService(t, &fakeAnalyzer{}, &fakeAhrefs{}, gen)

	_, err := s.Run(context.Background(), Request{URL: "acme.example"}, nil)
	var se llm.StatusError
	if !errors.As(err, &se) || se.StatusCode() != http.StatusTooManyRequests {
		t.Fatalf("err = %v", err)
	}
	list, _ := s.Store().List(context.Background(), 0)
	if len(list) != 0 {
		t.Fatalf("failed audit stored: %+v", list)
	}
}

func TestUpdateConfig_SwapsProviders(t *testing.T) {
	cfg := &config.Config{}
	cfg.Sanitize()
	s, err := NewService(cfg, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	defer s.Close()
	if len(s.Models()) != 0 || s.Status().Claude {
		t.Fatalf("unexpected providers before reload")
	}

	next := &config.Config{}
	next.Claude.APIKey = "sk-test"
	next.Sanitize()
	if err = s.UpdateConfig(next); err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}
	if !s.Status().Claude || len(s.Models()) != 2 || s.Models()[0].ID != "claude-sonnet-4-5" {
		t.Fatalf("models after reload = %+v", s.Models())
	}
}
