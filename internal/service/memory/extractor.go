package memory

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/sandevgo/factbot/internal/core"
	"github.com/sandevgo/factbot/pkg/log"
)

const maxExtracted = 5

// Candidate is a memory proposed by a user or by the extractor.
type Candidate struct {
	Content    string          `json:"content"`
	Kind       core.MemoryKind `json:"kind"`
	Importance float64         `json:"importance"`
	Topics     []string        `json:"topics,omitempty"`
	Tags       []string        `json:"tags,omitempty"`
	Source     string          `json:"source,omitempty"`
}

var (
	recallRe   = regexp.MustCompile(`(?i)^(who|what|when|where|why|how)\b`)
	nameRe     = regexp.MustCompile(`\b(?i:my name is|call me)\s+([A-Za-z][A-Za-z'-]*(?:\s+[A-Z][A-Za-z'-]*){0,2})`)
	locationRe = regexp.MustCompile(`(?i)\b(?:i live in|i'm from|i am from|located in|my location is)\s+([a-z][a-z ,'-]*?)\s*(?:[.!;]|\s+and\s|$)`)
	birthdayRe = regexp.MustCompile(`(?i)\bmy birthday is\s*[:\-]?\s*([a-z]+\s*\d{1,2})`)
	prefRe     = regexp.MustCompile(`(?i)\b(?:i prefer|i like|i love|i use|from now on)\s+(.{4,})`)
	profileRe  = regexp.MustCompile(`(?i)\b(i am|i'm)\b`)
)

type extractionRule struct {
	re         *regexp.Regexp
	kind       core.MemoryKind
	importance float64
	tag        string
	render     func(match string) string
}

var extractionRules = []extractionRule{
	{nameRe, core.MemoryProfile, 0.9, "name", func(m string) string { return "User's name is " + m }},
	{locationRe, core.MemoryProfile, 0.9, "location", func(m string) string { return "User lives in " + m }},
	{birthdayRe, core.MemoryProfile, 0.9, "birthday", func(m string) string { return "User birthday is " + m }},
	{prefRe, core.MemoryPreference, 0.85, "preference", func(m string) string { return "Preference: " + m }},
}

// Extract proposes memories from a user message. Questions and recall
// prompts never produce memories; only statements the user makes about
// themselves do.
func Extract(userMessage string) []Candidate {
	msg := strings.TrimSpace(userMessage)
	if msg == "" || strings.Contains(msg, "?") || recallRe.MatchString(msg) {
		return nil
	}

	var out []Candidate
	push := func(content string, kind core.MemoryKind, importance float64, tag string) {
		content = truncate(strings.TrimSpace(content), core.MaxMemoryContent)
		if len([]rune(content)) < minContentLength || len(out) >= maxExtracted {
			return
		}
		out = append(out, Candidate{
			Content:    content,
			Kind:       kind,
			Importance: importance,
			Tags:       []string{tag},
			Source:     "chat",
		})
	}

	for _, r := range extractionRules {
		if m := r.re.FindStringSubmatch(msg); m != nil {
			push(r.render(strings.Trim(strings.TrimSpace(m[1]), ",")), r.kind, r.importance, r.tag)
		}
	}

	// A self description that none of the specific rules understood.
	if len(out) == 0 && profileRe.MatchString(msg) {
		push(msg, core.MemoryProfile, 0.9, "profile")
	}
	return out
}

// Extractor turns finished turns into stored memories.
type Extractor struct {
	svc *Service
}

func NewExtractor(svc *Service) *Extractor {
	return &Extractor{svc: svc}
}

// Remember extracts and persists memories from userMessage, skipping any
// that the user already has. It returns how many were saved.
func (e *Extractor) Remember(ctx context.Context, uid, userMessage string) (int, error) {
	if core.IsAnonymous(uid) {
		return 0, nil
	}
	candidates := Extract(userMessage)
	if len(candidates) == 0 {
		return 0, nil
	}
	return e.persistCandidates(ctx, uid, candidates)
}

func (e *Extractor) persistCandidates(ctx context.Context, uid string, candidates []Candidate) (int, error) {
	logger := log.FromCtx(ctx)

	saved := 0
	for _, c := range candidates {
		if _, err := e.svc.Add(ctx, uid, c); err != nil {
			if errors.Is(err, ErrDuplicate) {
				continue
			}
			return saved, fmt.Errorf("failed to save memory '%s': %w", c.Content, err)
		}
		saved++
		logger.Info().Str("uid", uid).Str("kind", string(c.Kind)).Msg("memory extracted")
	}
	return saved, nil
}

func isDuplicateError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "constraint failed")
}
