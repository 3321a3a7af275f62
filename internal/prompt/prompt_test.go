package prompt

import (
	"strings"
	"testing"

	"github.com/claudio-seo/claudio/internal/ahrefs"
	"github.com/claudio-seo/claudio/internal/scraper"
)

func sampleSite() *scraper.SiteAnalysis {
	return &scraper.SiteAnalysis{
		URL:              "https://acme.example",
		StatusCode:       200,
		Title:            "Acme Widgets",
		H1Tags:           []string{"Best widgets"},
		H2Tags:           []string{"Why us"},
		TotalImages:      12,
		ImagesWithoutAlt: 4,
		InternalLinks:    30,
		ExternalLinks:    2,
		WordCount:        1520,
	}
}

func TestBuildBasic(t *testing.T) {
	got := Build(Input{SiteName: "acme.example", Type: Basic, Site: sampleSite()})

	for _, want := range []string{
		"Generate a BASIC SEO audit for: acme.example",
		"- Meta Description: Missing",
		"- H1 Tags: 1 found",
		"- Images without ALT: 4",
		"max 600 words",
		"**Key Recommendations**",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("basic prompt missing %q\n%s", want, got)
		}
	}
	if strings.Contains(got, "```json") {
		t.Fatalf("basic prompt should not request a json block")
	}
}

func TestBuildFull(t *testing.T) {
	data := &ahrefs.Data{
		Domain:           "acme.example",
		DomainRating:     54.5,
		Backlinks:        1234567,
		ReferringDomains: 850,
		OrganicKeywords:  4300,
		OrganicTraffic:   91000,
		TopKeywords:      []ahrefs.Keyword{{Keyword: "widgets", Volume: 12000, Position: 3, Traffic: 900}},
	}
	got := Build(Input{SiteName: "acme.example", Type: Full, Site: sampleSite(), Ahrefs: data})

	for _, want := range []string{
		"Generate a COMPREHENSIVE audit for: acme.example",
		"- word_count: 1,520",
		"- Domain Rating: 54.5",
		"- Backlinks: 1,234,567",
		"- Organic Traffic: 91,000/month",
		"widgets (volume 12,000, position 3, traffic 900)",
		"### CRITICAL (Week 1-2)",
		"```json",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("full prompt missing %q", want)
		}
	}
}

func TestBuildFull_NoAhrefs(t *testing.T) {
	got := Build(Input{SiteName: "acme.example", Type: Full})
	if !strings.Contains(got, "No Ahrefs data") {
		t.Fatalf("expected no-data marker")
	}
}

func TestThousands(t *testing.T) {
	cases := map[int64]string{
		0:        "0",
		999:      "999",
		1000:     "1,000",
		123456:   "123,456",
		1234567:  "1,234,567",
		-9876543: "-9,876,543",
	}
	for in, want := range cases {
		if got := Thousands(in); got != want {
			t.Fatalf("Thousands(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestParseAuditType(t *testing.T) {
	if ParseAuditType(" FULL ") != Full || ParseAuditType("basic") != Basic || ParseAuditType("??") != Basic {
		t.Fatalf("unexpected audit type parsing")
	}
	if Full.Title() != "Full" || Basic.Title() != "Basic" {
		t.Fatalf("unexpected titles")
	}
}
