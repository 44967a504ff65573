package business

import (
	"context"

	"github.com/giya-app/giya/id"
)

type Store interface {
	Create(ctx context.Context, b *Business) error
	Get(ctx context.Context, businessID id.BusinessID) (*Business, error)
	List(ctx context.Context, opts ListOpts) ([]*Business, error)
	Update(ctx context.Context, b *Business) error
}
