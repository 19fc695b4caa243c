package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sandevgo/factbot/internal/core"
	"github.com/sandevgo/factbot/pkg/log"
	"github.com/sandevgo/factbot/pkg/retry"
)

const (
	candidatePool    = 100
	fallbackPool     = 50
	dedupeWindow     = 200
	DefaultLimit     = 10
	MaxLimit         = 20
	minContentLength = 8
)

var ErrDuplicate = errors.New("memory already exists")

// Selection is the outcome of a relevance lookup. Absorbed is set when the
// store failed and Records is empty because of it, not because the user has
// no memories.
type Selection struct {
	Records  []core.MemoryRecord
	Absorbed error
}

type Service struct {
	store   core.MemoryStore
	detach  core.Detacher
	retrier *retry.Retrier
	now     func() time.Time
}

func NewService(store core.MemoryStore, detach core.Detacher, attempts int) *Service {
	return &Service{
		store:   store,
		detach:  detach,
		retrier: retry.NewRetrier(retry.NewImmediateConfig(attempts)),
		now:     time.Now,
	}
}

// Relevant returns the memories of uid most relevant to contextText and
// schedules a usage bump for each of them. It never fails.
func (s *Service) Relevant(ctx context.Context, uid, contextText string, limit int) Selection {
	limit = ClampLimit(limit)
	pool := candidatePool
	if strings.TrimSpace(contextText) == "" {
		pool = fallbackPool
	}

	raws, err := retry.Value(ctx, s.retrier, func() ([]core.RawMemory, error) {
		return s.store.ListActive(ctx, uid, pool)
	})
	if err != nil {
		err = &core.TransientError{Dependency: "memory store", Err: err}
		log.Absorbed(ctx, "memory store", err)
		return Selection{Records: []core.MemoryRecord{}, Absorbed: err}
	}

	now := s.now()
	candidates := lo.Map(raws, func(r core.RawMemory, _ int) core.MemoryRecord {
		return Normalize(r, now)
	})
	ranked := Rank(candidates, contextText, limit, now)

	for _, rec := range ranked {
		id := rec.ID
		s.detach.Go(ctx, "memory.usage", func(ctx context.Context) error {
			return s.store.IncrementUsage(ctx, uid, id, now)
		})
	}

	log.FromCtx(ctx).Debug().
		Str("uid", uid).
		Int("candidates", len(candidates)).
		Int("selected", len(ranked)).
		Msg("memories ranked")

	return Selection{Records: ranked}
}

func (s *Service) List(ctx context.Context, uid string, limit int) ([]core.MemoryRecord, error) {
	raws, err := s.store.ListActive(ctx, uid, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	now := s.now()
	return lo.Map(raws, func(r core.RawMemory, _ int) core.MemoryRecord {
		return Normalize(r, now)
	}), nil
}

// Add stores a new memory for uid unless one with the same content exists.
func (s *Service) Add(ctx context.Context, uid string, c Candidate) (core.MemoryRecord, error) {
	content := truncate(strings.TrimSpace(c.Content), core.MaxMemoryContent)
	if len([]rune(content)) < minContentLength {
		return core.MemoryRecord{}, &core.ValidationError{
			Field:  "content",
			Reason: fmt.Sprintf("must be at least %d characters", minContentLength),
		}
	}

	existing, err := s.existingContents(ctx, uid)
	if err != nil {
		return core.MemoryRecord{}, err
	}
	if _, dup := existing[contentKey(content)]; dup {
		return core.MemoryRecord{}, ErrDuplicate
	}

	rec := s.newRecord(uid, content, c)
	if err := s.store.Create(ctx, rec); err != nil {
		if isDuplicateError(err) {
			return core.MemoryRecord{}, ErrDuplicate
		}
		return core.MemoryRecord{}, fmt.Errorf("failed to save memory: %w", err)
	}
	return rec, nil
}

func (s *Service) Forget(ctx context.Context, uid, id string) error {
	if err := s.store.Deactivate(ctx, uid, id); err != nil {
		return fmt.Errorf("failed to forget memory %s: %w", id, err)
	}
	return nil
}

func (s *Service) newRecord(uid, content string, c Candidate) core.MemoryRecord {
	source := c.Source
	if source == "" {
		source = "manual"
	}
	importance := c.Importance
	if importance <= 0 {
		importance = defaultImportance
	}
	return core.MemoryRecord{
		ID:              uuid.NewString(),
		UID:             uid,
		Content:         content,
		Kind:            parseKind(string(c.Kind)),
		ImportanceScore: clamp01(importance),
		CreatedAt:       s.now().UTC(),
		Topics:          cleanTerms(c.Topics),
		Tags:            cleanTerms(c.Tags),
		IsActive:        true,
		Source:          source,
	}
}

func (s *Service) existingContents(ctx context.Context, uid string) (map[string]struct{}, error) {
	raws, err := s.store.ListActive(ctx, uid, dedupeWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing memories: %w", err)
	}
	out := make(map[string]struct{}, len(raws))
	for _, r := range raws {
		out[contentKey(r.Content)] = struct{}{}
	}
	return out, nil
}

// ClampLimit bounds a caller supplied limit to [1, MaxLimit].
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// FormatBlock renders memories for the system prompt.
func FormatBlock(records []core.MemoryRecord) string {
	if len(records) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Known user profile and preferences:\n")
	for _, r := range records {
		sb.WriteString("- ")
		sb.WriteString(r.Content)
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}

func contentKey(content string) string {
	return strings.ToLower(strings.TrimSpace(content))
}
