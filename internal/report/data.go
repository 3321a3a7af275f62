package report

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/claudio-seo/claudio/internal/ahrefs"
	"github.com/claudio-seo/claudio/internal/scraper"
	"github.com/claudio-seo/claudio/internal/util"
)

const (
	// ContentKey marks the paragraph replaced with the rendered audit body.
	ContentKey = "content"
	// TasksKey marks the spreadsheet row task rows are written from.
	TasksKey = "tasks"
)

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// Input carries everything the document templates can reference.
type Input struct {
	SiteName  string
	AuditType string
	Model     string
	Generated time.Time
	Site      *scraper.SiteAnalysis
	Ahrefs    *ahrefs.Data
	Summary   Summary
}

// Data builds the nested placeholder dictionary for in.
func Data(in Input) map[string]any {
	site := map[string]any{"name": in.SiteName}
	if s := in.Site; s != nil {
		site["url"] = s.URL
		site["status_code"] = s.StatusCode
		site["title"] = s.Title
		site["meta_description"] = s.MetaDescriptionOr("Missing")
		site["h1_count"] = len(s.H1Tags)
		site["h1"] = strings.Join(s.H1Tags, ", ")
		site["h2"] = strings.Join(s.H2Tags, ", ")
		site["total_images"] = s.TotalImages
		site["images_without_alt"] = s.ImagesWithoutAlt
		site["internal_links"] = s.InternalLinks
		site["external_links"] = s.ExternalLinks
		site["word_count"] = s.WordCount
	}

	generated := in.Generated
	if generated.IsZero() {
		generated = time.Now()
	}
	data := map[string]any{
		"site": site,
		"audit": map[string]any{
			"type":      in.AuditType,
			"model":     in.Model,
			"date":      generated.Format("2006-01-02"),
			"date_long": generated.Format("January 2, 2006"),
		},
		"summary": map[string]any{
			"critical": in.Summary.Critical,
			"high":     in.Summary.High,
			"medium":   in.Summary.Medium,
			"low":      in.Summary.Low,
			"total":    in.Summary.Total,
			"score":    in.Summary.Score,
			"verdict":  in.Summary.Verdict,
		},
	}

	if a := in.Ahrefs; a != nil {
		keywords := make([]any, 0, len(a.TopKeywords))
		for _, k := range a.TopKeywords {
			keywords = append(keywords, map[string]any{"keyword": k.Keyword, "volume": k.Volume, "position": k.Position, "traffic": k.Traffic})
		}
		pages := make([]any, 0, len(a.TopPages))
		for _, p := range a.TopPages {
			pages = append(pages, map[string]any{"url": p.URL, "traffic": p.Traffic, "keywords": p.Keywords})
		}
		data["ahrefs"] = map[string]any{
			"domain_rating":     a.DomainRating,
			"url_rating":        a.URLRating,
			"backlinks":         a.Backlinks,
			"referring_domains": a.ReferringDomains,
			"organic_keywords":  a.OrganicKeywords,
			"organic_traffic":   a.OrganicTraffic,
			"top_keywords":      keywords,
			"top_pages":         pages,
		}
	}
	return data
}

// Flatten turns a nested dictionary into dotted keys. List elements are keyed by index.
func Flatten(data map[string]any) map[string]string {
	out := make(map[string]string)
	flattenInto(out, "", data)
	return out
}

func flattenInto(out map[string]string, prefix string, v any) {
	join := func(key string) string {
		if prefix == "" {
			return key
		}
		return prefix + "." + key
	}
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			flattenInto(out, join(k), val[k])
		}
	case []any:
		for i, item := range val {
			flattenInto(out, join(strconv.Itoa(i)), item)
		}
		if prefix != "" {
			out[prefix+".count"] = strconv.Itoa(len(val))
		}
	default:
		if prefix != "" {
			out[prefix] = formatValue(val)
		}
	}
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return fmt.Sprint(val)
	}
}

// Substitute replaces {{ key }} placeholders with values. Unknown keys become empty.
func Substitute(text string, values map[string]string) string {
	return SubstituteFunc(text, values, func(s string) string { return s })
}

// SubstituteFunc is Substitute with every inserted value passed through escape.
func SubstituteFunc(text string, values map[string]string, escape func(string) string) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	return placeholder.ReplaceAllStringFunc(text, func(m string) string {
		key := placeholder.FindStringSubmatch(m)[1]
		return escape(values[key])
	})
}

// HasPlaceholder reports whether text holds {{ key }}.
func HasPlaceholder(text, key string) bool {
	for _, m := range placeholder.FindAllStringSubmatch(text, -1) {
		if m[1] == key {
			return true
		}
	}
	return false
}

// FileName builds the name of a generated document, for example
// SEO_Audit_example.com_20250309.docx.
func FileName(prefix, site string, created time.Time, ext string) string {
	return fmt.Sprintf("%s_%s_%s.%s", prefix, util.SafeFileName(site), created.Format("20060102"), ext)
}
