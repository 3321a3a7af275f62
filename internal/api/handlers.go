package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/claudio-seo/claudio/internal/audit"
	"github.com/claudio-seo/claudio/internal/buildinfo"
	"github.com/claudio-seo/claudio/internal/llm"
	"github.com/claudio-seo/claudio/internal/logging"
	"github.com/claudio-seo/claudio/internal/report"
	"github.com/claudio-seo/claudio/internal/store"
	"github.com/gin-gonic/gin"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200

	docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// auditView is the JSON form of an audit with its download links.
type auditView struct {
	*audit.Result
	ReportURL string `json:"report_url"`
	TasksURL  string `json:"tasks_url,omitempty"`
}

func newAuditView(res *audit.Result) auditView {
	view := auditView{Result: res, ReportURL: fmt.Sprintf("/api/audits/%s/report.docx", res.ID)}
	if len(res.TasksXlsx) > 0 {
		view.TasksURL = fmt.Sprintf("/api/audits/%s/tasks.xlsx", res.ID)
	}
	return view
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var upstream llm.StatusError
	switch {
	case errors.Is(err, audit.ErrMissingURL),
		errors.Is(err, audit.ErrAhrefsUnavailable),
		errors.Is(err, audit.ErrAhrefsNotConfirmed),
		errors.Is(err, llm.ErrNoProviders),
		errors.Is(err, llm.ErrUnknownModel),
		errors.Is(err, llm.ErrPromptTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &upstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func connected(ok bool) string {
	if ok {
		return "connected"
	}
	return "not configured"
}

func (s *Server) status(c *gin.Context) {
	st := s.svc.Status()
	ahrefs := "optional"
	if st.Ahrefs {
		ahrefs = "connected"
	}
	c.JSON(http.StatusOK, gin.H{
		"gemini":  connected(st.Gemini),
		"claude":  connected(st.Claude),
		"openai":  connected(st.OpenAI),
		"ahrefs":  ahrefs,
		"version": buildinfo.Version,
	})
}

func (s *Server) models(c *gin.Context) {
	models := s.svc.Models()
	if models == nil {
		models = []llm.Model{}
	}
	c.JSON(http.StatusOK, gin.H{"models": models})
}

func (s *Server) createAudit(c *gin.Context) {
	var req audit.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	res, err := s.svc.Run(c.Request.Context(), req, nil)
	if err != nil {
		writeError(c, err)
		return
	}
	logging.SetAuditID(c, res.ID)
	c.JSON(http.StatusCreated, newAuditView(res))
}

func (s *Server) listAudits(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxListLimit)
	}
	audits, err := s.svc.Store().List(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if audits == nil {
		audits = []store.Summary{}
	}
	c.JSON(http.StatusOK, gin.H{"audits": audits})
}

func (s *Server) getAudit(c *gin.Context) {
	rec, err := s.svc.Store().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	logging.SetAuditID(c, rec.ID)
	c.JSON(http.StatusOK, newAuditView(&audit.Result{Record: rec}))
}

func (s *Server) downloadReport(c *gin.Context) {
	rec, err := s.svc.Store().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if len(rec.ReportDocx) == 0 {
		writeError(c, fmt.Errorf("%w: no report for audit %s", store.ErrNotFound, rec.ID))
		return
	}
	attach(c, rec.ID, report.FileName("SEO_Audit", rec.Site, rec.CreatedAt, "docx"), docxMIME, rec.ReportDocx)
}

func (s *Server) downloadTasks(c *gin.Context) {
	rec, err := s.svc.Store().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if len(rec.TasksXlsx) == 0 {
		writeError(c, fmt.Errorf("%w: audit %s has no task list", store.ErrNotFound, rec.ID))
		return
	}
	attach(c, rec.ID, report.FileName("SEO_Tasks", rec.Site, rec.CreatedAt, "xlsx"), xlsxMIME, rec.TasksXlsx)
}

func attach(c *gin.Context, id, name, contentType string, data []byte) {
	logging.SetAuditID(c, id)
	logging.WithContext(c.Request.Context()).Debugf("serving %s (%d bytes)", name, len(data))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, contentType, data)
}
