package srv

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	name  string
	order *[]string
}

func (r recorder) Start(ctx context.Context) error { return nil }

func (r recorder) Shutdown(ctx context.Context) error {
	*r.order = append(*r.order, r.name)
	return nil
}

func TestShutdownServices_ReverseOrder(t *testing.T) {
	var order []string
	services := []Service{
		recorder{"db", &order},
		NewCleanup(func() error {
			order = append(order, "cleanup")
			return errors.New("already closed")
		}),
		recorder{"http", &order},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ShutdownServices(ctx, services)

	assert.Equal(t, []string{"http", "cleanup", "db"}, order)
}

func TestCleanup_Nil(t *testing.T) {
	var c Cleanup
	assert.NoError(t, c.Start(context.Background()))
	assert.NoError(t, c.Shutdown(context.Background()))
}
