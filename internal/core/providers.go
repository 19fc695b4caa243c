package core

import "context"

type Completer interface {
	Complete(ctx context.Context, history []Message, modelID string) (Completion, error)
}

type EvidenceSource interface {
	Search(ctx context.Context, query string) ([]EvidenceItem, error)
}

// Detacher runs work off the request path. Errors from fn are logged and dropped.
type Detacher interface {
	Go(ctx context.Context, name string, fn func(ctx context.Context) error)
}
