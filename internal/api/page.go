package api

import (
	"html/template"
	"net/http"

	"github.com/claudio-seo/claudio/internal/audit"
	"github.com/claudio-seo/claudio/internal/llm"
	"github.com/claudio-seo/claudio/internal/logging"
	"github.com/claudio-seo/claudio/internal/store"
	"github.com/gin-gonic/gin"
)

const pageName = "index"

// pageData feeds the single page template. Result and Error are set after a form submission.
type pageData struct {
	Status audit.Status
	Models []llm.Model
	Recent []store.Summary
	Form   audit.Request
	Result *auditView
	Error  string
}

var pageTemplate = template.Must(template.New(pageName).Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Claudio SEO Auditor</title></head>
<body>
<h1>Claudio SEO Auditor</h1>
<p>
Gemini: {{if .Status.Gemini}}connected{{else}}not configured{{end}} |
Claude: {{if .Status.Claude}}connected{{else}}not configured{{end}} |
OpenAI: {{if .Status.OpenAI}}connected{{else}}not configured{{end}} |
Ahrefs: {{if .Status.Ahrefs}}connected{{else}}optional{{end}}
</p>
{{if .Error}}<p class="error"><strong>Error:</strong> {{.Error}}</p>{{end}}
<form method="post" action="/audit">
<label>Website URL <input type="text" name="url" value="{{.Form.URL}}" placeholder="https://example.com"></label>
<label>Model <select name="model">
{{range .Models}}<option value="{{.ID}}"{{if eq .ID $.Form.Model}} selected{{end}}>{{.Label}}</option>
{{end}}</select></label>
<label><input type="radio" name="type" value="basic"{{if ne .Form.Type "full"}} checked{{end}}> Basic audit</label>
<label><input type="radio" name="type" value="full"{{if eq .Form.Type "full"}} checked{{end}}{{if not .Status.Ahrefs}} disabled{{end}}> Full audit (uses Ahrefs API credits)</label>
<label><input type="checkbox" name="confirm_ahrefs" value="true"> I understand a full audit spends Ahrefs API credits</label>
<button type="submit">Generate audit</button>
</form>
{{with .Result}}
<h2>Audit for {{.Site}}</h2>
{{if .Summary.Verdict}}<p>Verdict: {{.Summary.Verdict}}{{if .Summary.Score}} ({{.Summary.Score}}/100){{end}}</p>{{end}}
{{range .Warnings}}<p class="warning">{{.}}</p>{{end}}
<p><a href="{{.ReportURL}}">Download report (.docx)</a>{{if .TasksURL}} | <a href="{{.TasksURL}}">Download tasks (.xlsx)</a>{{end}}</p>
<pre>{{.Content}}</pre>
{{end}}
{{if .Recent}}
<h2>Recent audits</h2>
<ul>
{{range .Recent}}<li>{{.CreatedAt.Format "2006-01-02 15:04"}} {{.Site}} ({{.Type}}, {{.Model}}) <a href="/api/audits/{{.ID}}/report.docx">report</a>{{if .HasTasks}} <a href="/api/audits/{{.ID}}/tasks.xlsx">tasks</a>{{end}}</li>
{{end}}</ul>
{{end}}
</body>
</html>
`))

func (s *Server) pageData(c *gin.Context) pageData {
	data := pageData{Status: s.svc.Status(), Models: s.svc.Models()}
	recent, err := s.svc.Store().List(c.Request.Context(), defaultListLimit)
	if err != nil {
		logging.WithContext(c.Request.Context()).Warnf("list recent audits: %v", err)
	}
	data.Recent = recent
	return data
}

func (s *Server) index(c *gin.Context) {
	c.HTML(http.StatusOK, pageName, s.pageData(c))
}

func (s *Server) submitForm(c *gin.Context) {
	req := audit.Request{
		URL:           c.PostForm("url"),
		Type:          c.PostForm("type"),
		Model:         c.PostForm("model"),
		ConfirmAhrefs: c.PostForm("confirm_ahrefs") == "true",
	}
	res, err := s.svc.Run(c.Request.Context(), req, nil)
	data := s.pageData(c)
	data.Form = req
	if err != nil {
		data.Error = err.Error()
		c.HTML(statusFor(err), pageName, data)
		return
	}
	logging.SetAuditID(c, res.ID)
	view := newAuditView(res)
	data.Result = &view
	c.HTML(http.StatusOK, pageName, data)
}
