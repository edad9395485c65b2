package main

import (
	"net/http"

	"github.com/roomiematch/roomiematch/backend/store"
)

// DataLoaderMiddleware creates middleware that injects dataloaders into the request context
func DataLoaderMiddleware(s store.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// New loaders per request so cached users never outlive it
			ctx := WithDataLoaders(r.Context(), NewDataLoaders(s))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
