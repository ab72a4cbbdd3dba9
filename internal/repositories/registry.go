package repositories

import (
	"context"
	"errors"
)

// RegistryDeps carries the concrete repositories plus the close hooks for
// their underlying clients.
type RegistryDeps struct {
	Carts    CartRepository
	Orders   OrderRepository
	Catalog  CatalogRepository
	Counters CounterRepository
	Closers  []func(ctx context.Context) error
}

type registry struct {
	carts    CartRepository
	orders   OrderRepository
	catalog  CatalogRepository
	counters CounterRepository
	closers  []func(ctx context.Context) error
}

var _ Registry = (*registry)(nil)

// NewRegistry validates and bundles the repository set.
func NewRegistry(deps RegistryDeps) (Registry, error) {
	if deps.Carts == nil {
		return nil, errors.New("registry requires cart repository")
	}
	if deps.Orders == nil {
		return nil, errors.New("registry requires order repository")
	}
	if deps.Catalog == nil {
		return nil, errors.New("registry requires catalog repository")
	}
	if deps.Counters == nil {
		return nil, errors.New("registry requires counter repository")
	}
	return &registry{
		carts:    deps.Carts,
		orders:   deps.Orders,
		catalog:  deps.Catalog,
		counters: deps.Counters,
		closers:  deps.Closers,
	}, nil
}

func (r *registry) Carts() CartRepository       { return r.carts }
func (r *registry) Orders() OrderRepository     { return r.orders }
func (r *registry) Catalog() CatalogRepository  { return r.catalog }
func (r *registry) Counters() CounterRepository { return r.counters }

// Close runs every registered close hook and returns the joined failures.
func (r *registry) Close(ctx context.Context) error {
	var errs []error
	for _, closeFn := range r.closers {
		if closeFn == nil {
			continue
		}
		if err := closeFn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
