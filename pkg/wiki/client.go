// Package wiki fetches plain-text Wikipedia articles through the MediaWiki API.
package wiki

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

const DefaultAPIURL = "https://en.wikipedia.org/w/api.php"

var ErrNoArticle = errors.New("no usable wikipedia article for query")

// SearchResult is one hit of a full-text search.
type SearchResult struct {
	Title  string
	PageID int64
}

// Page is a fetched article before cleaning.
type Page struct {
	Title          string
	URL            string
	Extract        string
	Disambiguation bool
}

// Article is a resolved, cleaned article.
type Article struct {
	Title   string
	URL     string
	Content string
}

// Client talks to a MediaWiki API endpoint.
type Client struct {
	apiURL    string
	userAgent string
	client    *http.Client
}

// NewClient creates a client for apiURL, or DefaultAPIURL when empty.
func NewClient(apiURL string) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{
		apiURL:    apiURL,
		userAgent: "ai-voicechat-be/1.0 (knowledge bootstrap)",
		client:    &http.Client{},
	}
}

func (c *Client) get(ctx context.Context, params url.Values) (gjson.Result, error) {
	params.Set("format", "json")
	params.Set("formatversion", "2")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("wikipedia request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("wikipedia api error (status %d)", resp.StatusCode)
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, errors.New("wikipedia api returned invalid json")
	}

	res := gjson.ParseBytes(raw)
	if apiErr := res.Get("error.info"); apiErr.Exists() {
		return gjson.Result{}, fmt.Errorf("wikipedia api error: %s", apiErr.String())
	}
	return res, nil
}

// Search runs a full-text search and returns at most limit results in rank order.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}
	res, err := c.get(ctx, url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {fmt.Sprint(limit)},
		"srprop":   {""},
	})
	if err != nil {
		return nil, err
	}

	var out []SearchResult
	res.Get("query.search").ForEach(func(_, v gjson.Result) bool {
		out = append(out, SearchResult{Title: v.Get("title").String(), PageID: v.Get("pageid").Int()})
		return true
	})
	return out, nil
}

// Page returns nil when the title does not exist.
func (c *Client) Page(ctx context.Context, title string) (*Page, error) {
	res, err := c.get(ctx, url.Values{
		"action":      {"query"},
		"prop":        {"extracts|pageprops|info"},
		"explaintext": {"1"},
		"redirects":   {"1"},
		"inprop":      {"url"},
		"titles":      {title},
	})
	if err != nil {
		return nil, err
	}

	page := res.Get("query.pages.0")
	if !page.Exists() || page.Get("missing").Bool() || page.Get("invalid").Bool() {
		return nil, nil
	}
	return &Page{
		Title:          page.Get("title").String(),
		URL:            page.Get("fullurl").String(),
		Extract:        page.Get("extract").String(),
		Disambiguation: page.Get("pageprops.disambiguation").Exists(),
	}, nil
}

// Fetch resolves query to one article using SelectCandidates, skipping
// disambiguation and empty pages, and returns its cleaned text.
func (c *Client) Fetch(ctx context.Context, query string) (*Article, error) {
	results, err := c.Search(ctx, query, 5)
	if err != nil {
		return nil, err
	}

	for _, candidate := range SelectCandidates(query, results) {
		page, err := c.Page(ctx, candidate.Title)
		if err != nil {
			return nil, err
		}
		if page == nil || page.Disambiguation {
			continue
		}
		content := CleanText(page.Extract)
		if content == "" {
			continue
		}
		return &Article{Title: page.Title, URL: page.URL, Content: content}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNoArticle, query)
}

// SelectCandidates orders search results for resolution. An exact
// case-insensitive title match goes first, the rest keep search rank.
// Titles marked "(disambiguation)" are dropped.
func SelectCandidates(query string, results []SearchResult) []SearchResult {
	want := strings.ToLower(strings.TrimSpace(query))

	var exact, rest []SearchResult
	for _, r := range results {
		lower := strings.ToLower(r.Title)
		if strings.Contains(lower, "(disambiguation)") {
			continue
		}
		if lower == want {
			exact = append(exact, r)
			continue
		}
		rest = append(rest, r)
	}
	return append(exact, rest...)
}
