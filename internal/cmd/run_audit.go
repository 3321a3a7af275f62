package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/claudio-seo/claudio/internal/audit"
	"github.com/claudio-seo/claudio/internal/browser"
	"github.com/claudio-seo/claudio/internal/config"
	"github.com/claudio-seo/claudio/internal/prompt"
	"github.com/claudio-seo/claudio/internal/report"
	"github.com/claudio-seo/claudio/internal/store"
	log "github.com/sirupsen/logrus"
)

// AuditOptions describes a one-shot command-line audit.
type AuditOptions struct {
	Request audit.Request
	// OutDir receives the generated documents. Empty means the working directory.
	OutDir string
	// OpenReport opens the Word report with the default application.
	OpenReport bool
	// Stdout receives progress and the summary. Nil means os.Stdout.
	Stdout io.Writer
}

// DoAudit runs one audit and writes its documents to opts.OutDir.
// It returns the paths written.
func DoAudit(ctx context.Context, cfg *config.Config, st store.Store, opts AuditOptions) ([]string, error) {
	out := opts.Stdout
	if out == nil {
		out = os.Stdout
	}
	svc, err := audit.NewService(cfg, st)
	if err != nil {
		return nil, err
	}
	defer svc.Close()

	res, err := svc.Run(ctx, opts.Request, func(p audit.Progress) {
		_, _ = fmt.Fprintf(out, "[%3d%%] %s\n", p.Percent, p.Message)
	})
	if err != nil {
		return nil, err
	}

	dir := opts.OutDir
	if dir == "" {
		dir = "."
	}
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	var written []string
	write := func(name string, data []byte) error {
		path := filepath.Join(dir, name)
		if errWrite := os.WriteFile(path, data, 0o644); errWrite != nil {
			return fmt.Errorf("write %s: %w", path, errWrite)
		}
		written = append(written, path)
		return nil
	}
	if err = write(report.FileName("SEO_Audit", res.Site, res.CreatedAt, "docx"), res.ReportDocx); err != nil {
		return written, err
	}
	if len(res.TasksXlsx) > 0 {
		if err = write(report.FileName("SEO_Tasks", res.Site, res.CreatedAt, "xlsx"), res.TasksXlsx); err != nil {
			return written, err
		}
	}

	for _, w := range res.Warnings {
		_, _ = fmt.Fprintf(out, "warning: %s\n", w)
	}
	if res.Type == string(prompt.Full) {
		s := res.Summary
		_, _ = fmt.Fprintf(out, "%s: %d tasks (%d critical, %d high, %d medium, %d low)\n", s.Verdict, s.Total, s.Critical, s.High, s.Medium, s.Low)
	}
	for _, path := range written {
		_, _ = fmt.Fprintf(out, "saved %s\n", path)
	}

	if opts.OpenReport && len(written) > 0 {
		if errOpen := browser.OpenURL(written[0]); errOpen != nil {
			log.Warnf("failed to open report: %v", errOpen)
		}
	}
	return written, nil
}
