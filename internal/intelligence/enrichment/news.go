package enrichment

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/resilience"
	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

// Article is one news result.
type Article struct {
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
}

// NewsOptions shapes the query.
type NewsOptions struct {
	Keywords     []string
	LookbackDays int
	PageSize     int
}

// NewsClient searches the NewsAPI "everything" endpoint.
type NewsClient struct {
	src  *httpSource
	opts NewsOptions
	now  func() time.Time
}

// NewNewsClient builds a client. httpClient may be nil.
func NewNewsClient(baseURL, apiKey string, opts NewsOptions, httpClient *http.Client, limiter resilience.Limiter, timeout time.Duration) *NewsClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 365
	}
	header := http.Header{}
	if apiKey != "" {
		header.Set("X-Api-Key", apiKey)
	}
	return &NewsClient{
		src: &httpSource{
			name:    SourceNews,
			baseURL: strings.TrimRight(baseURL, "/"),
			http:    httpClient,
			limiter: limiter,
			timeout: timeout,
			header:  header,
		},
		opts: opts,
		now:  time.Now,
	}
}

// Query builds the search expression: the quoted company AND any keyword.
func Query(company string, keywords []string) string {
	q := fmt.Sprintf("%q", company)
	if len(keywords) == 0 {
		return q
	}
	quoted := make([]string, len(keywords))
	for i, k := range keywords {
		if strings.Contains(k, " ") {
			k = fmt.Sprintf("%q", k)
		}
		quoted[i] = k
	}
	return q + " AND (" + strings.Join(quoted, " OR ") + ")"
}

type newsResponse struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		URL         string    `json:"url"`
		PublishedAt time.Time `json:"publishedAt"`
	} `json:"articles"`
}

// Search returns the most relevant recent English articles about company.
func (c *NewsClient) Search(ctx context.Context, company string) ([]Article, error) {
	q := url.Values{}
	q.Set("q", Query(company, c.opts.Keywords))
	q.Set("language", "en")
	q.Set("sortBy", "relevancy")
	q.Set("pageSize", strconv.Itoa(c.opts.PageSize))
	q.Set("from", c.now().AddDate(0, 0, -c.opts.LookbackDays).Format("2006-01-02"))

	var resp newsResponse
	if err := c.src.getJSON(ctx, "/everything", q, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "ok" {
		return nil, errors.New(errors.ErrCodeEnrichmentUnavailable, "news: api error").
			WithDetail(strings.TrimSpace(resp.Code + " " + resp.Message))
	}

	out := make([]Article, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		if strings.TrimSpace(a.Title) == "" || a.Title == "[Removed]" {
			continue
		}
		out = append(out, Article{
			Source:      a.Source.Name,
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			PublishedAt: a.PublishedAt,
		})
	}
	return out, nil
}
