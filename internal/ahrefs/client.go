// Package ahrefs fetches backlink and ranking data for a domain from the Ahrefs v3 API.
// Calls are spaced by a configurable delay, organic keywords are read through a
// bounded pagination loop, and results are cached per domain.
package ahrefs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/claudio-seo/claudio/internal/cache"
	"github.com/claudio-seo/claudio/internal/config"
	"github.com/claudio-seo/claudio/internal/logging"
	"github.com/claudio-seo/claudio/internal/util"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

const (
	requestTimeout = 30 * time.Second

	topKeywordLimit  = 10
	topPageLimit     = 5
	backlinkLimit    = 5
	topPagesFetch    = 10
	backlinksFetch   = 10
	keywordsOrderBy  = "volume:desc"
	backlinksOrderBy = "domain_rating:desc"
)

// Client talks to the Ahrefs site-explorer endpoints.
type Client struct {
	http     *resty.Client
	apiKey   string
	baseURL  string
	delay    time.Duration
	pageSize int
	maxPages int
	cache    *cache.TTLCache[*Data]
	now      func() time.Time
}

// NewClient builds a client from the Ahrefs and proxy settings.
func NewClient(cfg *config.Config) *Client {
	a := cfg.Ahrefs
	client := resty.NewWithClient(util.NewHTTPClient(&cfg.SDKConfig, requestTimeout)).
		SetHeader("Accept", "application/json")
	if a.APIKey != "" {
		client.SetAuthToken(a.APIKey)
	}
	return &Client{
		http:     client,
		apiKey:   a.APIKey,
		baseURL:  a.BaseURL,
		delay:    a.RequestDelay(),
		pageSize: a.PageSize,
		maxPages: a.MaxPages,
		cache:    cache.New[*Data](a.CacheTTL()),
		now:      time.Now,
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool { return c != nil && c.apiKey != "" }

// Close stops the cache purge loop.
func (c *Client) Close() {
	if c != nil {
		c.cache.Close()
	}
}

// ErrIncomplete is returned together with the data when one or more endpoints
// answered with a non-200 status. Incomplete data is never cached.
var ErrIncomplete = errors.New("ahrefs: incomplete data")

// statusError is a non-200 answer from one endpoint.
type statusError struct {
	path string
	code int
}

func (e *statusError) Error() string { return fmt.Sprintf("%s returned %d", e.path, e.code) }

// Fetch collects metrics, top keywords, top pages and a backlink sample for target.
// An endpoint answering with a non-200 status leaves its part at defaults and the
// fetch continues; the result then comes with an ErrIncomplete error naming the
// failed endpoints. A transport error stops the fetch and returns the partial data
// together with the error.
func (c *Client) Fetch(ctx context.Context, target string) (*Data, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ahrefs: api key not configured")
	}
	domain := util.SiteName(target)
	if domain == "" {
		return nil, fmt.Errorf("ahrefs: target is empty")
	}
	if cached, ok := c.cache.Get(domain); ok {
		logging.WithContext(ctx).WithField("site", domain).Debug("ahrefs: using cached data")
		return cached, nil
	}

	data := newData(domain)
	steps := []func(context.Context, *Data) error{
		c.fetchMetrics,
		c.fetchKeywords,
		c.fetchTopPages,
		c.fetchBacklinks,
	}
	var failed []string
	for i, step := range steps {
		if i > 0 {
			if err := c.pause(ctx); err != nil {
				return data, err
			}
		}
		err := step(ctx, data)
		var se *statusError
		switch {
		case err == nil:
		case errors.As(err, &se):
			failed = append(failed, se.Error())
		default:
			return data, err
		}
	}
	if len(failed) > 0 {
		return data, fmt.Errorf("%w: %s", ErrIncomplete, strings.Join(failed, ", "))
	}

	c.cache.Set(domain, data)
	return data, nil
}

func (c *Client) fetchMetrics(ctx context.Context, data *Data) error {
	res, err := c.get(ctx, "/site-explorer/metrics", map[string]string{
		"target": data.Domain,
		"date":   c.now().Format("2006-01-02"),
	})
	if err != nil {
		return err
	}
	m := res.Get("metrics")
	if !m.Exists() {
		return nil
	}
	data.DomainRating = firstOf(m, "domain_rating", "dr").Float()
	data.URLRating = firstOf(m, "url_rating", "ur").Float()
	data.Backlinks = firstOf(m, "backlinks", "live_backlinks").Int()
	data.ReferringDomains = firstOf(m, "refdomains", "referring_domains").Int()
	data.OrganicKeywords = firstOf(m, "organic_keywords", "org_keywords").Int()
	data.OrganicTraffic = firstOf(m, "organic_traffic", "org_traffic").Int()
	return nil
}

// fetchKeywords pages through organic keywords until topKeywordLimit entries are
// collected, a short page arrives, or maxPages is reached.
func (c *Client) fetchKeywords(ctx context.Context, data *Data) error {
	for page := 0; page < c.maxPages && len(data.TopKeywords) < topKeywordLimit; page++ {
		if page > 0 {
			if err := c.pause(ctx); err != nil {
				return err
			}
		}
		res, err := c.get(ctx, "/site-explorer/organic-keywords", map[string]string{
			"target":   data.Domain,
			"limit":    fmt.Sprint(c.pageSize),
			"offset":   fmt.Sprint(page * c.pageSize),
			"order_by": keywordsOrderBy,
		})
		if err != nil {
			return err
		}
		items := firstOf(res, "keywords", "organic_keywords").Array()
		for _, item := range items {
			if len(data.TopKeywords) >= topKeywordLimit {
				break
			}
			data.TopKeywords = append(data.TopKeywords, Keyword{
				Keyword:  firstOf(item, "keyword", "kw").String(),
				Volume:   firstOf(item, "volume", "search_volume").Int(),
				Position: firstOf(item, "position", "best_position").Int(),
				Traffic:  firstOf(item, "traffic", "sum_traffic").Int(),
				URL:      firstOf(item, "url", "best_position_url").String(),
			})
		}
		if len(items) < c.pageSize {
			return nil
		}
	}
	return nil
}

func (c *Client) fetchTopPages(ctx context.Context, data *Data) error {
	res, err := c.get(ctx, "/site-explorer/top-pages", map[string]string{
		"target": data.Domain,
		"limit":  fmt.Sprint(topPagesFetch),
	})
	if err != nil {
		return err
	}
	for _, item := range res.Get("pages").Array() {
		if len(data.TopPages) >= topPageLimit {
			break
		}
		data.TopPages = append(data.TopPages, Page{
			URL:      firstOf(item, "url", "page").String(),
			Traffic:  firstOf(item, "traffic", "sum_traffic").Int(),
			Keywords: firstOf(item, "keywords", "organic_keywords").Int(),
		})
	}
	return nil
}

func (c *Client) fetchBacklinks(ctx context.Context, data *Data) error {
	res, err := c.get(ctx, "/site-explorer/all-backlinks", map[string]string{
		"target":   data.Domain,
		"limit":    fmt.Sprint(backlinksFetch),
		"order_by": backlinksOrderBy,
	})
	if err != nil {
		return err
	}
	for _, item := range res.Get("backlinks").Array() {
		if len(data.BacklinkSample) >= backlinkLimit {
			break
		}
		data.BacklinkSample = append(data.BacklinkSample, Backlink{
			URLFrom:      firstOf(item, "url_from", "source_url").String(),
			URLTo:        firstOf(item, "url_to", "target_url").String(),
			DomainRating: firstOf(item, "domain_rating_source", "domain_rating").Int(),
			Anchor:       item.Get("anchor").String(),
		})
	}
	return nil
}

// get performs one API call. A non-200 answer is returned as a *statusError.
func (c *Client) get(ctx context.Context, path string, params map[string]string) (gjson.Result, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(c.baseURL + path)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("ahrefs: %s: %w", path, err)
	}
	if resp.StatusCode() != http.StatusOK {
		logging.WithContext(ctx).WithFields(map[string]any{"endpoint": path, "status": resp.StatusCode()}).
			Warn("ahrefs: endpoint returned non-200, keeping defaults")
		return gjson.Result{}, &statusError{path: path, code: resp.StatusCode()}
	}
	return gjson.ParseBytes(resp.Body()), nil
}

// pause waits for the configured request delay or until ctx is done.
func (c *Client) pause(ctx context.Context) error {
	if c.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(c.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// firstOf returns the first of keys present on r.
func firstOf(r gjson.Result, keys ...string) gjson.Result {
	for _, key := range keys {
		if v := r.Get(key); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}
