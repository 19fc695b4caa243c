package srv

import "context"

// Cleanup is a Service with work only at shutdown, such as closing a
// database handle.
type Cleanup func() error

func (c Cleanup) Start(ctx context.Context) error {
	return nil
}

func (c Cleanup) Shutdown(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c()
}

func NewCleanup(fn func() error) Service {
	return Cleanup(fn)
}
