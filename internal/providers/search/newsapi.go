package search

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sandevgo/factbot/internal/core"
)

const NewsAPIEndpoint = "https://newsapi.org/v2/everything"

// NewsAPI returns the most recent articles matching the query.
type NewsAPI struct {
	httpSource
}

func NewNewsAPI(apiKey string) *NewsAPI {
	return &NewsAPI{httpSource: newHTTPSource(NewsAPIEndpoint, apiKey)}
}

func (n *NewsAPI) Name() string { return "newsapi" }

func (n *NewsAPI) Search(ctx context.Context, query string) ([]core.EvidenceItem, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("pageSize", strconv.Itoa(perSourceResults))
	q.Set("sortBy", "publishedAt")

	var result struct {
		Articles []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
			URLToImage  string `json:"urlToImage"`
		} `json:"articles"`
	}
	headers := map[string]string{"X-Api-Key": n.apiKey}
	if err := n.do(ctx, http.MethodGet, n.endpoint+"?"+q.Encode(), nil, headers, &result); err != nil {
		return nil, err
	}

	items := make([]core.EvidenceItem, 0, len(result.Articles))
	for _, a := range result.Articles {
		items = append(items, evidence(a.Title, a.URL, a.Description, a.URLToImage))
	}
	return capItems(items, perSourceResults), nil
}
