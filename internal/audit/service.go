// Package audit runs one SEO audit end to end: it analyzes the page, optionally
// collects Ahrefs data, asks a language model for the audit text, renders the
// Word report and Excel task list, and records the result in the audit store.
package audit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/claudio-seo/claudio/internal/ahrefs"
	"github.com/claudio-seo/claudio/internal/config"
	"github.com/claudio-seo/claudio/internal/llm"
	"github.com/claudio-seo/claudio/internal/logging"
	"github.com/claudio-seo/claudio/internal/prompt"
	"github.com/claudio-seo/claudio/internal/report"
	"github.com/claudio-seo/claudio/internal/scraper"
	"github.com/claudio-seo/claudio/internal/store"
	"github.com/claudio-seo/claudio/internal/util"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrMissingURL is returned when the request carries no URL.
	ErrMissingURL = errors.New("audit: url is required")
	// ErrAhrefsUnavailable is returned for full audits when no Ahrefs key is configured.
	ErrAhrefsUnavailable = errors.New("audit: full audit requires an Ahrefs API key")
	// ErrAhrefsNotConfirmed is returned for full audits the user has not confirmed.
	// Full audits spend Ahrefs API credits.
	ErrAhrefsNotConfirmed = errors.New("audit: full audit uses Ahrefs API credits and must be confirmed")
)

// Request is one audit submission.
type Request struct {
	URL           string `json:"url"`
	Type          string `json:"type"`
	Model         string `json:"model"`
	ConfirmAhrefs bool   `json:"confirm_ahrefs"`
}

// Progress is a step notification sent while an audit runs.
type Progress struct {
	Percent int    `json:"percent"`
	Message string `json:"message"`
}

// ProgressFunc receives progress notifications. It is called from the goroutine running the audit.
type ProgressFunc func(Progress)

// Result is a finished audit.
type Result struct {
	*store.Record
	PromptTokens int `json:"prompt_tokens"`
}

// Status reports which upstream services are usable.
type Status struct {
	Gemini bool `json:"gemini"`
	Claude bool `json:"claude"`
	OpenAI bool `json:"openai"`
	Ahrefs bool `json:"ahrefs"`
}

// Analyzer extracts on-page signals from a URL.
type Analyzer interface {
	Analyze(ctx context.Context, rawURL string) (*scraper.SiteAnalysis, error)
}

// AhrefsSource supplies backlink and ranking data.
type AhrefsSource interface {
	Enabled() bool
	Fetch(ctx context.Context, target string) (*ahrefs.Data, error)
}

// Generator produces audit text with a selectable model.
type Generator interface {
	Models() []llm.Model
	Generate(ctx context.Context, modelID, prompt string) (*llm.Generation, error)
}

// deps is the set of collaborators swapped as a unit on config reload.
type deps struct {
	cfg          *config.Config
	analyzer     Analyzer
	ahrefs       AhrefsSource
	generator    Generator
	docxTemplate []byte
	xlsxTemplate []byte
	closeFn      func()
}

// Service runs audits and keeps their results.
type Service struct {
	mu    sync.RWMutex
	deps  *deps
	store store.Store
	now   func() time.Time
}

// NewService builds the collaborators described by cfg. st keeps finished audits.
func NewService(cfg *config.Config, st store.Store) (*Service, error) {
	if st == nil {
		st = store.NewMemoryStore(cfg.Audit.HistoryLimit)
	}
	d, err := buildDeps(cfg)
	if err != nil {
		return nil, err
	}
	return &Service{deps: d, store: st, now: time.Now}, nil
}

func buildDeps(cfg *config.Config) (*deps, error) {
	registry, err := llm.NewRegistry(cfg)
	if err != nil {
		return nil, err
	}
	client := ahrefs.NewClient(cfg)
	return &deps{
		cfg:          cfg,
		analyzer:     scraper.NewAnalyzer(cfg),
		ahrefs:       client,
		generator:    registry,
		docxTemplate: loadTemplate(cfg.Templates.ReportDocx),
		xlsxTemplate: loadTemplate(cfg.Templates.TasksXlsx),
		closeFn:      client.Close,
	}, nil
}

// loadTemplate reads a template file. Failures fall back to the built-in layout.
func loadTemplate(path string) []byte {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).Warnf("audit: template %s unavailable, using built-in layout", path)
		return nil
	}
	return data
}

// UpdateConfig rebuilds providers, clients and templates from cfg.
// Audits already running finish with the previous set.
func (s *Service) UpdateConfig(cfg *config.Config) error {
	d, err := buildDeps(cfg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	old := s.deps
	s.deps = d
	s.mu.Unlock()
	if old != nil && old.closeFn != nil {
		old.closeFn()
	}
	log.Info("audit: configuration reloaded")
	return nil
}

// Close releases background resources.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deps != nil && s.deps.closeFn != nil {
		s.deps.closeFn()
		s.deps.closeFn = nil
	}
}

func (s *Service) current() *deps {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deps
}

// Models lists the selectable models.
func (s *Service) Models() []llm.Model {
	return s.current().generator.Models()
}

// Status reports provider availability.
func (s *Service) Status() Status {
	d := s.current()
	return Status{
		Gemini: d.cfg.Gemini.Enabled(),
		Claude: d.cfg.Claude.Enabled(),
		OpenAI: d.cfg.OpenAI.Enabled(),
		Ahrefs: d.ahrefs.Enabled(),
	}
}

// Store returns the audit store.
func (s *Service) Store() store.Store { return s.store }

// Run executes an audit. Validation failures are returned before any upstream call.
func (s *Service) Run(ctx context.Context, req Request, progress ProgressFunc) (*Result, error) {
	if progress == nil {
		progress = func(Progress) {}
	}
	d := s.current()

	target := util.NormalizeURL(req.URL)
	if target == "" {
		return nil, ErrMissingURL
	}
	auditType := prompt.ParseAuditType(req.Type)
	if auditType == prompt.Full {
		if !d.ahrefs.Enabled() {
			return nil, ErrAhrefsUnavailable
		}
		if !req.ConfirmAhrefs {
			return nil, ErrAhrefsNotConfirmed
		}
	}
	models := d.generator.Models()
	if len(models) == 0 {
		return nil, llm.ErrNoProviders
	}
	model := resolveModel(models, req.Model)

	siteName := util.SiteName(target)
	entry := logging.WithContext(ctx).WithFields(log.Fields{"site": siteName, "type": string(auditType)})
	entry.Info("audit: started")
	var warnings []string

	progress(Progress{Percent: 20, Message: "Analyzing website..."})
	var (
		analysis   *scraper.SiteAnalysis
		ahrefsData *ahrefs.Data
		ahrefsErr  error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := d.analyzer.Analyze(gctx, target)
		if err != nil {
			return err
		}
		analysis = a
		return nil
	})
	if auditType == prompt.Full {
		g.Go(func() error {
			ahrefsData, ahrefsErr = d.ahrefs.Fetch(gctx, target)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("audit: analyze %s: %w", target, err)
	}
	if auditType == prompt.Full {
		progress(Progress{Percent: 40, Message: "Fetching Ahrefs data..."})
		if ahrefsErr != nil {
			entry.WithError(ahrefsErr).Warn("audit: ahrefs data incomplete")
			warnings = append(warnings, fmt.Sprintf("Ahrefs data incomplete: %v", ahrefsErr))
		}
	}

	progress(Progress{Percent: 60, Message: fmt.Sprintf("Generating audit with %s...", model.Label)})
	text := prompt.Build(prompt.Input{SiteName: siteName, Type: auditType, Site: analysis, Ahrefs: ahrefsData})
	gen, err := d.generator.Generate(ctx, model.ID, text)
	if err != nil {
		return nil, fmt.Errorf("audit: generate: %w", err)
	}

	progress(Progress{Percent: 80, Message: "Creating documents..."})
	var (
		tasks   []report.Task
		summary report.Summary
	)
	if auditType == prompt.Full {
		score, verdict := 0, ""
		if structured, ok := report.ExtractStructured(gen.Text); ok {
			tasks, score, verdict = structured.Tasks, structured.Score, structured.Verdict
		}
		if len(tasks) == 0 {
			tasks = report.ExtractTasks(gen.Text)
		}
		summary = report.Summarize(tasks, score, verdict)
	}

	created := s.now()
	values := report.Flatten(report.Data(report.Input{
		SiteName:  siteName,
		AuditType: auditType.Title(),
		Model:     model.Label,
		Generated: created,
		Site:      analysis,
		Ahrefs:    ahrefsData,
		Summary:   summary,
	}))
	docx, err := report.RenderDocx(d.docxTemplate, values, report.ParseContent(gen.Text))
	if err != nil {
		return nil, fmt.Errorf("audit: render report: %w", err)
	}
	var xlsx []byte
	if auditType == prompt.Full {
		if xlsx, err = report.RenderXlsx(d.xlsxTemplate, values, tasks, summary); err != nil {
			return nil, fmt.Errorf("audit: render tasks: %w", err)
		}
	}

	rec := &store.Record{
		ID:         uuid.NewString(),
		Site:       siteName,
		URL:        target,
		Type:       string(auditType),
		Model:      model.ID,
		CreatedAt:  created,
		Content:    report.StripStructured(gen.Text),
		Analysis:   analysis,
		Ahrefs:     ahrefsData,
		Tasks:      tasks,
		Summary:    summary,
		Warnings:   warnings,
		ReportDocx: docx,
		TasksXlsx:  xlsx,
	}
	if err = s.store.Save(ctx, rec); err != nil {
		entry.WithError(err).Error("audit: failed to save result")
		rec.Warnings = append(rec.Warnings, "Audit could not be saved to history")
	}

	progress(Progress{Percent: 100, Message: "Complete!"})
	entry.WithFields(log.Fields{"id": rec.ID, "model": model.ID, "tasks": len(tasks)}).Info("audit: finished")
	return &Result{Record: rec, PromptTokens: gen.PromptTokens}, nil
}

// resolveModel picks the requested model, or the first one when id is empty.
// Unlisted ids are passed through so the generator can reject them.
func resolveModel(models []llm.Model, id string) llm.Model {
	id = strings.TrimSpace(id)
	if id == "" {
		return models[0]
	}
	for _, m := range models {
		if strings.EqualFold(m.ID, id) {
			return m
		}
	}
	return llm.Model{ID: id, Label: id}
}
