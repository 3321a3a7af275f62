// Package prompt builds the instructions sent to the language model for each audit type.
package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/claudio-seo/claudio/internal/ahrefs"
	"github.com/claudio-seo/claudio/internal/scraper"
)

// AuditType selects the depth of an audit.
type AuditType string

const (
	Basic AuditType = "basic"
	Full  AuditType = "full"
)

// ParseAuditType accepts the type names case-insensitively. Anything unknown is basic.
func ParseAuditType(s string) AuditType {
	if strings.EqualFold(strings.TrimSpace(s), string(Full)) {
		return Full
	}
	return Basic
}

// Title returns the display name of the type.
func (t AuditType) Title() string {
	if t == Full {
		return "Full"
	}
	return "Basic"
}

// Input is everything a prompt is built from. Ahrefs may be nil.
type Input struct {
	SiteName string
	Type     AuditType
	Site     *scraper.SiteAnalysis
	Ahrefs   *ahrefs.Data
}

// Build renders the prompt for in.Type.
func Build(in Input) string {
	if in.Site == nil {
		in.Site = &scraper.SiteAnalysis{}
	}
	if in.Type == Full {
		return buildFull(in)
	}
	return buildBasic(in)
}

func buildBasic(in Input) string {
	s := in.Site
	var b strings.Builder
	fmt.Fprintf(&b, "You are Claudio, an expert SEO auditor. Generate a BASIC SEO audit for: %s\n\n", in.SiteName)
	b.WriteString("**SITE DATA:**\n")
	fmt.Fprintf(&b, "- Title: %s\n", s.Title)
	fmt.Fprintf(&b, "- Meta Description: %s\n", s.MetaDescriptionOr("Missing"))
	fmt.Fprintf(&b, "- H1 Tags: %d found\n", len(s.H1Tags))
	fmt.Fprintf(&b, "- Total Images: %d\n", s.TotalImages)
	fmt.Fprintf(&b, "- Images without ALT: %d\n", s.ImagesWithoutAlt)
	fmt.Fprintf(&b, "- Internal Links: %d\n", s.InternalLinks)
	fmt.Fprintf(&b, "- External Links: %d\n", s.ExternalLinks)
	b.WriteString(`
Generate a concise audit (max 600 words) with:

**Executive Summary** (2-3 paragraphs)

**Technical Findings:**
- Meta Tags Analysis
- Content Structure
- Image Optimization
- Internal Linking

**Key Recommendations** (prioritized list of 5-8 specific actions)

RULES:
- English only
- Only mention ACTUAL issues found
- Be specific with numbers
- Prioritize recommendations (Critical/High/Medium)
`)
	return b.String()
}

func buildFull(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are Claudio, expert SEO auditor. Generate a COMPREHENSIVE audit for: %s\n\n", in.SiteName)
	b.WriteString("**SITE DATA:**\n")
	b.WriteString(siteDump(in.Site))
	b.WriteString("\n**AHREFS METRICS:**\n")
	b.WriteString(ahrefsSummary(in.Ahrefs))
	b.WriteString(fullStructure)
	b.WriteString(jsonAppendix)
	return b.String()
}

func siteDump(s *scraper.SiteAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- url: %s\n", s.URL)
	fmt.Fprintf(&b, "- status_code: %d\n", s.StatusCode)
	fmt.Fprintf(&b, "- title: %s\n", s.Title)
	fmt.Fprintf(&b, "- meta_description: %s\n", s.MetaDescriptionOr("Missing"))
	fmt.Fprintf(&b, "- h1_tags: %s\n", quoteList(s.H1Tags))
	fmt.Fprintf(&b, "- h2_tags: %s\n", quoteList(s.H2Tags))
	fmt.Fprintf(&b, "- total_images: %d\n", s.TotalImages)
	fmt.Fprintf(&b, "- images_without_alt: %d\n", s.ImagesWithoutAlt)
	fmt.Fprintf(&b, "- internal_links: %d\n", s.InternalLinks)
	fmt.Fprintf(&b, "- external_links: %d\n", s.ExternalLinks)
	fmt.Fprintf(&b, "- word_count: %s\n", Thousands(int64(s.WordCount)))
	return b.String()
}

func ahrefsSummary(d *ahrefs.Data) string {
	if d == nil {
		return "No Ahrefs data\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "- Domain Rating: %s\n", strconv.FormatFloat(d.DomainRating, 'f', -1, 64))
	fmt.Fprintf(&b, "- Backlinks: %s\n", Thousands(d.Backlinks))
	fmt.Fprintf(&b, "- Referring Domains: %s\n", Thousands(d.ReferringDomains))
	fmt.Fprintf(&b, "- Organic Keywords: %s\n", Thousands(d.OrganicKeywords))
	fmt.Fprintf(&b, "- Organic Traffic: %s/month\n", Thousands(d.OrganicTraffic))
	if len(d.TopKeywords) > 0 {
		b.WriteString("- Top Keywords:\n")
		for _, k := range d.TopKeywords {
			fmt.Fprintf(&b, "  - %s (volume %s, position %d, traffic %s)\n", k.Keyword, Thousands(k.Volume), k.Position, Thousands(k.Traffic))
		}
	}
	if len(d.TopPages) > 0 {
		b.WriteString("- Top Pages:\n")
		for _, p := range d.TopPages {
			fmt.Fprintf(&b, "  - %s (traffic %s, %s keywords)\n", p.URL, Thousands(p.Traffic), Thousands(p.Keywords))
		}
	}
	if len(d.BacklinkSample) > 0 {
		b.WriteString("- Strongest Backlinks:\n")
		for _, l := range d.BacklinkSample {
			fmt.Fprintf(&b, "  - %s (DR %d, anchor %q)\n", l.URLFrom, l.DomainRating, l.Anchor)
		}
	}
	return b.String()
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = strconv.Quote(item)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// Thousands formats n with comma separators.
func Thousands(n int64) string {
	if n < 0 {
		return "-" + Thousands(-n)
	}
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(s[:lead])
	for i := lead; i < len(s); i += 3 {
		b.WriteByte(',')
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

const fullStructure = `
Generate a complete professional audit following this EXACT structure:

## EXECUTIVE SUMMARY
- Overall score /100
- 3-4 paragraph comprehensive summary
- Key metrics overview
- Main strengths and critical issues

## TECHNICAL SEO ANALYSIS
### Site Structure & Indexation
### Meta Tags & On-Page Elements
### Performance & Mobile

## BACKLINK PROFILE ANALYSIS
- Quality assessment
- Link diversity
- Toxic links (if any)
- Opportunities

## ORGANIC PERFORMANCE
### Current Rankings
### Top Performing Pages
### Keyword Opportunities

## QUICK WINS
(3-5 easy high-impact actions, 1-2 days each)

## COMPETITIVE ANALYSIS
(Brief competitive insights)

## PRIORITIZED ACTION PLAN

### CRITICAL (Week 1-2)
[Specific issues with:
- Description
- Impact (High/Medium/Low)
- Effort (hours)
- Expected result]

### HIGH PRIORITY (Week 3-4)
[Same format]

### MEDIUM PRIORITY (Month 2)
[Same format]

## EXPECTED RESULTS (3 Months)
[Realistic projections]

CRITICAL RULES:
- English only
- Only include ACTUAL issues found in the data
- NO placeholder issues
- Be specific with all numbers
- Use real Ahrefs data, don't invent
- If section has no issues, say "No critical issues found" and move on
`

const jsonAppendix = `
After the report, append one fenced ` + "```json" + ` block and nothing after it, shaped as:
{"score": <0-100 integer>, "verdict": "<one or two words>", "tasks": [{"task": "...", "category": "Technical SEO|On-Page SEO|Content|Link Building|Performance", "priority": "Critical|High|Medium|Low", "effort": "<hours, e.g. 2-4>", "impact": "High|Medium|Low", "how_to_fix": "..."}]}
List every action from the PRIORITIZED ACTION PLAN and QUICK WINS as a task.
`
