package search

import (
	"context"
	"net/http"

	"github.com/sandevgo/factbot/internal/core"
)

const SerperEndpoint = "https://google.serper.dev/search"

// Serper queries Google results through serper.dev.
type Serper struct {
	httpSource
}

func NewSerper(apiKey string) *Serper {
	return &Serper{httpSource: newHTTPSource(SerperEndpoint, apiKey)}
}

func (s *Serper) Name() string { return "serper" }

func (s *Serper) Search(ctx context.Context, query string) ([]core.EvidenceItem, error) {
	payload := map[string]any{
		"q":   query,
		"num": perSourceResults,
		"gl":  "us",
		"hl":  "en",
	}

	var result struct {
		Organic []struct {
			Title    string `json:"title"`
			Link     string `json:"link"`
			Snippet  string `json:"snippet"`
			ImageURL string `json:"imageUrl"`
		} `json:"organic"`
	}
	if err := s.do(ctx, http.MethodPost, s.endpoint, payload, map[string]string{"X-API-KEY": s.apiKey}, &result); err != nil {
		return nil, err
	}

	items := make([]core.EvidenceItem, 0, len(result.Organic))
	for _, o := range result.Organic {
		items = append(items, evidence(o.Title, o.Link, o.Snippet, o.ImageURL))
	}
	return capItems(items, perSourceResults), nil
}
