package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/sandevgo/factbot/internal/core"
	"github.com/sandevgo/factbot/pkg/log"
)

const DefaultMaxResults = 10

type Source interface {
	core.EvidenceSource
	Name() string
}

// Aggregator queries every source in turn and merges the results, dropping
// repeated links. It fails only when every source failed.
type Aggregator struct {
	sources []Source
	max     int
}

func NewAggregator(maxResults int, sources ...Source) *Aggregator {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &Aggregator{sources: sources, max: maxResults}
}

func (a *Aggregator) Sources() []string {
	return lo.Map(a.sources, func(s Source, _ int) string { return s.Name() })
}

func (a *Aggregator) Search(ctx context.Context, query string) ([]core.EvidenceItem, error) {
	logger := log.FromCtx(ctx)

	var (
		all  []core.EvidenceItem
		errs []error
	)
	for _, s := range a.sources {
		items, err := s.Search(ctx, query)
		if err != nil {
			logger.Warn().Err(err).Str("source", s.Name()).Msg("evidence source failed")
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		logger.Debug().Str("source", s.Name()).Int("count", len(items)).Msg("evidence fetched")
		all = append(all, items...)
	}

	if len(a.sources) > 0 && len(errs) == len(a.sources) {
		return nil, errors.Join(errs...)
	}

	keyed := lo.Filter(all, func(item core.EvidenceItem, _ int) bool {
		return dedupeKey(item) != ""
	})
	return capItems(lo.UniqBy(keyed, dedupeKey), a.max), nil
}

func dedupeKey(item core.EvidenceItem) string {
	if link := strings.TrimSpace(item.Link); link != "" {
		return link
	}
	return strings.TrimSpace(item.Title)
}

func capItems(items []core.EvidenceItem, n int) []core.EvidenceItem {
	if len(items) > n {
		return items[:n]
	}
	return items
}
