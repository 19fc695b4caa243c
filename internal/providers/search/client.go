package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/inbucket/html2text"
	"github.com/sandevgo/factbot/internal/core"
)

const (
	maxResponseSize      = 1 << 20 // 1MB limit
	defaultSearchTimeout = 15 * time.Second
	perSourceResults     = 5
	maxSnippet           = 400
)

// html2text ends bold runs with a period in text-only mode, which corrupts
// highlighted search terms, so those tags go first.
var boldTagRe = regexp.MustCompile(`(?i)</?(?:b|strong)(?:\s[^>]*)?>`)

type httpSource struct {
	client   *http.Client
	endpoint string
	apiKey   string
}

func newHTTPSource(endpoint, apiKey string) httpSource {
	return httpSource{
		client: &http.Client{
			Timeout: defaultSearchTimeout,
		},
		endpoint: endpoint,
		apiKey:   apiKey,
	}
}

// do sends body as JSON (when non-nil) and decodes the JSON response into out.
func (h *httpSource) do(ctx context.Context, method, url string, body any, headers map[string]string, out any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", core.AppUserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, maxResponseSize)
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(limited)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(limited).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// cleanSnippet turns HTML fragments some providers return into plain text.
func cleanSnippet(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if strings.ContainsAny(s, "<&") {
		s = boldTagRe.ReplaceAllString(s, "")
		if text, err := html2text.FromString(s, html2text.Options{OmitLinks: true, TextOnly: true}); err == nil {
			s = text
		}
	}
	s = strings.Join(strings.Fields(s), " ")

	if r := []rune(s); len(r) > maxSnippet {
		s = strings.TrimSpace(string(r[:maxSnippet])) + "…"
	}
	return s
}

func evidence(title, link, snippet, image string) core.EvidenceItem {
	return core.EvidenceItem{
		Title:   strings.TrimSpace(title),
		Link:    strings.TrimSpace(link),
		Snippet: cleanSnippet(snippet),
		Image:   strings.TrimSpace(image),
	}
}
