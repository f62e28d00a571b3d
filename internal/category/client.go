package category

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrBadResponse is returned when the API answers with something other
// than a category member listing.
var ErrBadResponse = errors.New("category: bad api response")

const (
	pageLimit   = 500
	maxResponse = 16 << 20
	maxPages    = 1000
)

// Fetcher lists the page titles in a category.
type Fetcher interface {
	Members(ctx context.Context, category string) ([]string, error)
}

// Client talks to a MediaWiki api.php endpoint.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Logger  *zap.Logger
}

// NewClient returns a client for the wiki at baseURL.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Logger:  logger,
	}
}

type membersResponse struct {
	Query *struct {
		CategoryMembers []struct {
			Title string `json:"title"`
		} `json:"categorymembers"`
	} `json:"query"`
	Continue *struct {
		CMContinue string `json:"cmcontinue"`
	} `json:"continue"`
}

func (c *Client) pageURL(cmtitle, cmcontinue string) string {
	var b strings.Builder
	b.WriteString(c.BaseURL)
	b.WriteString("/api.php?origin=*")
	fmt.Fprintf(&b, "&format=json&action=query&cmlimit=%d&list=categorymembers&cmprop=title&cmtitle=%s",
		pageLimit, url.QueryEscape(cmtitle))
	if cmcontinue != "" {
		b.WriteString("&cmcontinue=")
		b.WriteString(url.QueryEscape(cmcontinue))
	}
	return b.String()
}

// Members returns "Category:<category>" followed by every member title,
// following continuation tokens until the listing ends. On failure the
// titles gathered so far are returned along with the error.
func (c *Client) Members(ctx context.Context, category string) ([]string, error) {
	cmtitle := "Category:" + category
	titles := []string{cmtitle}
	next := ""
	for page := 0; page < maxPages; page++ {
		resp, err := c.fetchPage(ctx, cmtitle, next)
		if err != nil {
			c.Logger.Warn("Fetching category members failed",
				zap.String("category", category),
				zap.Int("page", page),
				zap.Int("titles", len(titles)),
				zap.Error(err))
			return titles, err
		}
		for _, m := range resp.Query.CategoryMembers {
			titles = append(titles, m.Title)
		}
		if resp.Continue == nil || resp.Continue.CMContinue == "" {
			c.Logger.Debug("Fetched category", zap.String("category", category), zap.Int("titles", len(titles)))
			return titles, nil
		}
		next = resp.Continue.CMContinue
	}
	return titles, fmt.Errorf("%w: %s: more than %d pages", ErrBadResponse, category, maxPages)
}

func (c *Client) fetchPage(ctx context.Context, cmtitle, cmcontinue string) (*membersResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pageURL(cmtitle, cmcontinue), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "f2phelper-generator/1.0")
	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %s", ErrBadResponse, res.Status)
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponse))
	if err != nil {
		return nil, err
	}
	var out membersResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if out.Query == nil {
		return nil, fmt.Errorf("%w: missing query.categorymembers", ErrBadResponse)
	}
	return &out, nil
}
