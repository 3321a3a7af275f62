// Package scraper fetches a target page and extracts the basic on-page SEO signals
// (title, meta description, headings, images, links, word count) used to build an audit.
package scraper

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/claudio-seo/claudio/internal/config"
	"github.com/claudio-seo/claudio/internal/logging"
	"github.com/claudio-seo/claudio/internal/util"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html/charset"
)

const (
	noTitle     = "No title found"
	maxH2Tags   = 5
	acceptValue = "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8"
)

// Analyzer fetches pages over HTTP and extracts SiteAnalysis values.
type Analyzer struct {
	http    *resty.Client
	maxBody int64
}

// NewAnalyzer builds an Analyzer from the scraper and proxy settings.
func NewAnalyzer(cfg *config.Config) *Analyzer {
	timeout := time.Duration(cfg.Scraper.TimeoutSeconds) * time.Second
	client := resty.NewWithClient(util.NewHTTPClient(&cfg.SDKConfig, timeout)).
		SetHeader("User-Agent", cfg.Scraper.UserAgent).
		SetHeader("Accept", acceptValue).
		SetHeader("Accept-Encoding", supportedEncodings)
	return &Analyzer{http: client, maxBody: cfg.Scraper.MaxBodyBytes}
}

// Analyze fetches rawURL and extracts its on-page signals.
// Non-2xx responses are still analyzed; only transport and parse failures return an error.
func (a *Analyzer) Analyze(ctx context.Context, rawURL string) (*SiteAnalysis, error) {
	target := util.NormalizeURL(rawURL)
	if target == "" {
		return nil, fmt.Errorf("scraper: url is empty")
	}

	resp, err := a.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(target)
	if err != nil {
		return nil, fmt.Errorf("scraper: fetch %s: %w", target, err)
	}
	raw := resp.RawBody()
	defer func() {
		if errClose := raw.Close(); errClose != nil {
			logging.WithContext(ctx).Debugf("scraper: close body: %v", errClose)
		}
	}()

	body, closeDecoder, err := decodeBody(resp.Header().Get("Content-Encoding"), raw)
	if err != nil {
		return nil, fmt.Errorf("scraper: decode %s: %w", target, err)
	}
	defer closeDecoder()

	var reader io.Reader = body
	if a.maxBody > 0 {
		reader = io.LimitReader(body, a.maxBody)
	}
	utf8Reader, err := charset.NewReader(reader, resp.Header().Get("Content-Type"))
	if err != nil {
		utf8Reader = reader
	}

	doc, err := goquery.NewDocumentFromReader(utf8Reader)
	if err != nil {
		return nil, fmt.Errorf("scraper: parse %s: %w", target, err)
	}

	analysis := Extract(doc, target)
	analysis.StatusCode = resp.StatusCode()
	logging.WithContext(ctx).WithField("status", analysis.StatusCode).
		Debugf("scraper: analyzed %s (%d words, %d images)", target, analysis.WordCount, analysis.TotalImages)
	return analysis, nil
}

// Extract computes the on-page signals of an already parsed document.
// pageURL is used to classify links as internal or external.
func Extract(doc *goquery.Document, pageURL string) *SiteAnalysis {
	analysis := &SiteAnalysis{
		URL:    pageURL,
		Title:  noTitle,
		H1Tags: []string{},
		H2Tags: []string{},
	}

	if title := doc.Find("title").First(); title.Length() > 0 {
		analysis.Title = strings.TrimSpace(title.Text())
	}

	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		if !strings.EqualFold(strings.TrimSpace(name), "description") {
			return true
		}
		analysis.MetaDescription = strings.TrimSpace(s.AttrOr("content", ""))
		return false
	})

	doc.Find("h1").Each(func(_ int, s *goquery.Selection) {
		analysis.H1Tags = append(analysis.H1Tags, strings.TrimSpace(s.Text()))
	})
	doc.Find("h2").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		analysis.H2Tags = append(analysis.H2Tags, strings.TrimSpace(s.Text()))
		return len(analysis.H2Tags) < maxH2Tags
	})

	images := doc.Find("img")
	analysis.TotalImages = images.Length()
	images.Each(func(_ int, s *goquery.Selection) {
		if alt, ok := s.Attr("alt"); !ok || strings.TrimSpace(alt) == "" {
			analysis.ImagesWithoutAlt++
		}
	})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		switch classifyLink(s.AttrOr("href", ""), pageURL) {
		case linkExternal:
			analysis.ExternalLinks++
		case linkInternal:
			analysis.InternalLinks++
		}
	})

	analysis.WordCount = len(strings.Fields(doc.Text()))

	return analysis
}

type linkKind int

const (
	linkOther linkKind = iota
	linkInternal
	linkExternal
)

// classifyLink sorts an href into external (absolute, pointing elsewhere), internal
// (root-relative or pointing at the page URL) or other (fragments, mailto:, relative).
func classifyLink(href, pageURL string) linkKind {
	switch {
	case strings.HasPrefix(href, "http") && !strings.Contains(href, pageURL):
		return linkExternal
	case strings.HasPrefix(href, "/") || strings.Contains(href, pageURL):
		return linkInternal
	default:
		return linkOther
	}
}
