package tenants

import (
	"context"

	"aervo/pkg/domainerrors"
)

//go:generate mockgen -source=store.go -destination=mocks/store_mock.go -package=mocks

// Store is the durable tenant → access credential mapping.
// Upsert is last-writer-wins per shop; implementations serialise concurrent writes for the same shop.
type Store interface {
	// Upsert creates or replaces the credential for shop and stamps the install time.
	Upsert(ctx context.Context, shop, accessToken, scope string) error
	// Get returns the access credential for shop or ErrNotFound.
	Get(ctx context.Context, shop string) (string, error)
	// List enumerates connected shops without their secrets.
	List(ctx context.Context) ([]Installation, error)
	// Close flushes and releases the backing resources.
	Close() error
}

var ErrNotFound = domainerrors.New(domainerrors.CodeNotFound, "tenant not found")

func storageErr(op string, err error) error {
	return domainerrors.Wrap(err, domainerrors.CodeStorage, "credential store "+op+" failed")
}
