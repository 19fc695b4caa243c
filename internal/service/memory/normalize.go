package memory

import (
	"strings"
	"time"

	"github.com/sandevgo/factbot/internal/core"
)

const defaultImportance = 0.5

// Normalize applies defaults to a stored record so the scorer never has to
// guess at missing fields.
func Normalize(raw core.RawMemory, now time.Time) core.MemoryRecord {
	rec := core.MemoryRecord{
		ID:              raw.ID,
		UID:             raw.UID,
		Content:         truncate(strings.TrimSpace(raw.Content), core.MaxMemoryContent),
		Kind:            parseKind(raw.Kind),
		ImportanceScore: defaultImportance,
		CreatedAt:       now,
		LastUsedAt:      raw.LastUsedAt,
		Topics:          cleanTerms(raw.Topics),
		Tags:            cleanTerms(raw.Tags),
		IsActive:        raw.IsActive,
		Source:          raw.Source,
	}

	if raw.Importance != nil {
		rec.ImportanceScore = clamp01(*raw.Importance)
	}
	if raw.UsageCount != nil && *raw.UsageCount > 0 {
		rec.UsageCount = *raw.UsageCount
	}
	if raw.CreatedAt != nil && !raw.CreatedAt.IsZero() {
		rec.CreatedAt = *raw.CreatedAt
	}
	if rec.Source == "" {
		rec.Source = "chat"
	}
	return rec
}

func parseKind(s string) core.MemoryKind {
	switch core.MemoryKind(strings.ToLower(s)) {
	case core.MemoryProfile, core.MemoryPreference:
		return core.MemoryKind(strings.ToLower(s))
	default:
		return core.MemoryFact
	}
}

func cleanTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
