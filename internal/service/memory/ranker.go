package memory

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sandevgo/factbot/internal/core"
)

const (
	weightImportance = 0.4
	weightRecency    = 0.3
	weightUsage      = 0.3
	weightKeywords   = 0.2
	topicBonus       = 0.05

	recencyWindowDays = 90.0
	usageSaturation   = 10.0

	fallbackImportance = 0.6
	fallbackUsage      = 0.4
	fallbackLimit      = 10
)

type scored struct {
	rec   core.MemoryRecord
	score float64
}

// Score is the relevance of m for the given context keywords, in [0,1].
func Score(m core.MemoryRecord, contextKeywords []string, now time.Time) float64 {
	score := clamp01(m.ImportanceScore) * weightImportance
	score += recency(m.CreatedAt, now) * weightRecency
	score += usage(m.UsageCount) * weightUsage

	if len(contextKeywords) > 0 {
		content := strings.ToLower(m.Content)
		own := make(map[string]struct{})
		for _, k := range Keywords(content) {
			own[k] = struct{}{}
		}

		matched := 0
		for _, k := range contextKeywords {
			if _, ok := own[k]; ok || strings.Contains(content, k) {
				matched++
			}
		}
		score += float64(matched) / float64(len(contextKeywords)) * weightKeywords

		if matchesTerm(contextKeywords, m.Topics, m.Tags) {
			score += topicBonus
		}
	}

	return clamp01(score)
}

// fallbackScore ranks records when there is no conversation to compare against.
func fallbackScore(m core.MemoryRecord) float64 {
	return clamp01(m.ImportanceScore)*fallbackImportance + usage(m.UsageCount)*fallbackUsage
}

// Rank orders candidates by relevance to contextText and keeps at most limit.
// Equal scores keep their input order. A blank context switches to the
// importance and usage fallback, capped at ten records.
func Rank(candidates []core.MemoryRecord, contextText string, limit int, now time.Time) []core.MemoryRecord {
	if limit <= 0 || len(candidates) == 0 {
		return []core.MemoryRecord{}
	}

	items := make([]scored, len(candidates))
	if strings.TrimSpace(contextText) == "" {
		limit = min(limit, fallbackLimit)
		for i, c := range candidates {
			items[i] = scored{rec: c, score: fallbackScore(c)}
		}
	} else {
		keywords := Keywords(contextText)
		for i, c := range candidates {
			items[i] = scored{rec: c, score: Score(c, keywords, now)}
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].score > items[j].score
	})

	if len(items) > limit {
		items = items[:limit]
	}
	out := make([]core.MemoryRecord, len(items))
	for i, it := range items {
		out[i] = it.rec
	}
	return out
}

func recency(created, now time.Time) float64 {
	days := now.Sub(created).Hours() / 24
	return clamp01(1 - days/recencyWindowDays)
}

func usage(count int) float64 {
	if count <= 0 {
		return 0
	}
	return math.Min(1, float64(count)/usageSaturation)
}

func matchesTerm(keywords []string, termSets ...[]string) bool {
	for _, k := range keywords {
		for _, terms := range termSets {
			for _, t := range terms {
				t = strings.ToLower(t)
				if t == "" {
					continue
				}
				if strings.Contains(t, k) || strings.Contains(k, t) {
					return true
				}
			}
		}
	}
	return false
}
