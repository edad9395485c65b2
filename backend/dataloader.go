package main

import (
	"context"
	"net/http"
	"time"

	"github.com/graph-gophers/dataloader/v7"

	"github.com/roomiematch/roomiematch/backend/model"
	"github.com/roomiematch/roomiematch/backend/store"
)

// DataLoaderContextKey is the key used to store dataloaders in context
type DataLoaderContextKey string

const dataLoaderKey DataLoaderContextKey = "dataloader"

const loaderWait = 16 * time.Millisecond

// DataLoaders holds the per-request loaders. Loaded users are cached for the
// lifetime of the request, so they are only used on read-only routes.
type DataLoaders struct {
	UserLoader *dataloader.Loader[string, *model.User]

	store     store.Store
	userCache *dataloader.InMemoryCache[string, *model.User]
}

// NewDataLoaders creates new dataloaders backed by the user store
func NewDataLoaders(s store.Store) *DataLoaders {
	cache := dataloader.NewCache[string, *model.User]()
	return &DataLoaders{
		UserLoader: dataloader.NewBatchedLoader(userBatchFn(s),
			dataloader.WithWait[string, *model.User](loaderWait),
			dataloader.WithCache[string, *model.User](cache)),
		store:     s,
		userCache: cache,
	}
}

// User returns one user without waiting for a batch window: a cached load
// is reused, a miss goes straight to the store and primes the cache.
func (dl *DataLoaders) User(ctx context.Context, id string) (*model.User, error) {
	if thunk, ok := dl.userCache.Get(ctx, id); ok {
		return thunk()
	}
	u, err := dl.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	dl.UserLoader.Prime(ctx, id, u)
	return u, nil
}

// GetDataLoadersFromContext retrieves dataloaders from context
func GetDataLoadersFromContext(ctx context.Context) *DataLoaders {
	if dl, ok := ctx.Value(dataLoaderKey).(*DataLoaders); ok {
		return dl
	}
	return nil
}

// WithDataLoaders adds dataloaders to context
func WithDataLoaders(ctx context.Context, dl *DataLoaders) context.Context {
	return context.WithValue(ctx, dataLoaderKey, dl)
}

// userBatchFn resolves a batch of ids with one GetMany call. Results keep
// the order of keys; missing users resolve to store.ErrNotFound.
func userBatchFn(s store.Store) dataloader.BatchFunc[string, *model.User] {
	return func(ctx context.Context, keys []string) []*dataloader.Result[*model.User] {
		results := make([]*dataloader.Result[*model.User], len(keys))

		found, err := s.GetMany(ctx, keys)
		if err != nil {
			for i := range results {
				results[i] = &dataloader.Result[*model.User]{Error: err}
			}
			return results
		}

		for i, key := range keys {
			if u, ok := found[key]; ok {
				results[i] = &dataloader.Result[*model.User]{Data: u}
			} else {
				results[i] = &dataloader.Result[*model.User]{Error: store.ErrNotFound}
			}
		}
		return results
	}
}

// loadUser reads a user through the request's loader when one is present.
// Callers must not mutate the returned user, it is shared by the cache.
func loadUser(r *http.Request, id string, s store.Store) (*model.User, error) {
	ctx := r.Context()
	if dl := GetDataLoadersFromContext(ctx); dl != nil {
		return dl.User(ctx, id)
	}
	return s.Get(ctx, id)
}
