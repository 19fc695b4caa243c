package search

import (
	"context"
	"net/http"

	"github.com/sandevgo/factbot/internal/core"
)

const TavilyEndpoint = "https://api.tavily.com/search"

type Tavily struct {
	httpSource
}

func NewTavily(apiKey string) *Tavily {
	return &Tavily{httpSource: newHTTPSource(TavilyEndpoint, apiKey)}
}

func (t *Tavily) Name() string { return "tavily" }

func (t *Tavily) Search(ctx context.Context, query string) ([]core.EvidenceItem, error) {
	payload := map[string]any{
		"query":       query,
		"max_results": perSourceResults,
	}

	var result struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
			Snippet string `json:"snippet"`
		} `json:"results"`
	}
	headers := map[string]string{"Authorization": "Bearer " + t.apiKey}
	if err := t.do(ctx, http.MethodPost, t.endpoint, payload, headers, &result); err != nil {
		return nil, err
	}

	items := make([]core.EvidenceItem, 0, len(result.Results))
	for _, r := range result.Results {
		snippet := r.Content
		if snippet == "" {
			snippet = r.Snippet
		}
		items = append(items, evidence(r.Title, r.URL, snippet, ""))
	}
	return capItems(items, perSourceResults), nil
}
