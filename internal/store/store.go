// Package store persists finished audits and their generated documents.
// Backends: an in-memory ring (default), PostgreSQL and S3-compatible object storage.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/claudio-seo/claudio/internal/ahrefs"
	"github.com/claudio-seo/claudio/internal/report"
	"github.com/claudio-seo/claudio/internal/scraper"
)

// ErrNotFound is returned when no audit has the requested id.
var ErrNotFound = errors.New("store: audit not found")

// Record is a finished audit with its documents.
type Record struct {
	ID        string                `json:"id"`
	Site      string                `json:"site"`
	URL       string                `json:"url"`
	Type      string                `json:"type"`
	Model     string                `json:"model"`
	CreatedAt time.Time             `json:"created_at"`
	Content   string                `json:"content"`
	Analysis  *scraper.SiteAnalysis `json:"analysis,omitempty"`
	Ahrefs    *ahrefs.Data          `json:"ahrefs,omitempty"`
	Tasks     []report.Task         `json:"tasks"`
	Summary   report.Summary        `json:"summary"`
	Warnings  []string              `json:"warnings,omitempty"`

	ReportDocx []byte `json:"-"`
	TasksXlsx  []byte `json:"-"`
}

// Summary is the listing view of a Record.
type Summary struct {
	ID        string    `json:"id"`
	Site      string    `json:"site"`
	Type      string    `json:"type"`
	Model     string    `json:"model"`
	Verdict   string    `json:"verdict"`
	CreatedAt time.Time `json:"created_at"`
	HasTasks  bool      `json:"has_tasks"`
}

// Summarize returns the listing view of r.
func (r *Record) Summarize() Summary {
	return Summary{
		ID:        r.ID,
		Site:      r.Site,
		Type:      r.Type,
		Model:     r.Model,
		Verdict:   r.Summary.Verdict,
		CreatedAt: r.CreatedAt,
		HasTasks:  len(r.TasksXlsx) > 0,
	}
}

// Store persists audit records.
type Store interface {
	Save(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, limit int) ([]Summary, error)
}
