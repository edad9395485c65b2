// Package store persists user documents and onboarding drafts.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roomiematch/roomiematch/backend/model"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a concurrent write won a Mutate race.
	ErrConflict = errors.New("concurrent modification")
)

// DuplicateError reports a unique account field that is already taken.
type DuplicateError struct {
	Field string // "email" or "username"
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("user with this %s already exists", e.Field)
}

// CandidateQuery selects users that may be offered as roommates: active,
// onboarded, not ExcludeID, sharing at least one of LocationIDs.
type CandidateQuery struct {
	ExcludeID   string
	LocationIDs []string
	Limit       int
}

// ListQuery filters the user listing. Nil pointers and empty strings match
// everything.
type ListQuery struct {
	OnboardingCompleted *bool
	IsActive            *bool
	Occupation          string
	Borough             string
	Page                int
	Limit               int
}

func (q ListQuery) offset() int {
	return (q.Page - 1) * q.Limit
}

// LocationCount is how many selections a borough/neighborhood pair has.
type LocationCount struct {
	Borough      string `json:"borough"`
	Neighborhood string `json:"neighborhood"`
	Count        int    `json:"count"`
}

type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// CompletenessBucket counts users whose completeness falls in [Min, Max).
// The last bucket is closed.
type CompletenessBucket struct {
	Min   int `json:"min"`
	Max   int `json:"max"`
	Count int `json:"count"`
}

// CompletenessBoundaries split the completeness histogram.
var CompletenessBoundaries = []int{0, 25, 50, 75, 90, 100}

// Stats summarizes the user base.
type Stats struct {
	Total           int
	Active          int
	Onboarded       int
	RegisteredSince int
	TopLocations    []LocationCount
	TopBoroughs     []ValueCount
	TopOccupations  []ValueCount
	Completeness    []CompletenessBucket
}

const (
	topLocations   = 10
	topBoroughs    = 3
	topOccupations = 5
)

// Store is the user record store. Implementations must be safe for
// concurrent use.
type Store interface {
	// Create inserts a new user. A taken email or username yields *DuplicateError.
	Create(ctx context.Context, u *model.User) error
	Get(ctx context.Context, id string) (*model.User, error)
	// GetMany returns the users found among ids, keyed by id.
	GetMany(ctx context.Context, ids []string) (map[string]*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// Mutate loads the user, applies fn and saves the result atomically with
	// respect to other writers of the same user. An error from fn aborts the
	// write and is returned unchanged.
	Mutate(ctx context.Context, id string, fn func(*model.User) error) (*model.User, error)
	Delete(ctx context.Context, id string) error
	// FindCandidates returns eligible roommates, newest registration first.
	FindCandidates(ctx context.Context, q CandidateQuery) ([]*model.User, error)
	// List returns one page of users, newest registration first, and the
	// total number of matching users.
	List(ctx context.Context, q ListQuery) ([]*model.User, int, error)
	Stats(ctx context.Context, since time.Time) (*Stats, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

func emptyBuckets() []CompletenessBucket {
	b := make([]CompletenessBucket, len(CompletenessBoundaries)-1)
	for i := range b {
		b[i] = CompletenessBucket{Min: CompletenessBoundaries[i], Max: CompletenessBoundaries[i+1]}
	}
	return b
}

func bucketIndex(completeness int) int {
	for i := len(CompletenessBoundaries) - 2; i >= 0; i-- {
		if completeness >= CompletenessBoundaries[i] {
			return i
		}
	}
	return 0
}

// touch stamps the write timestamps before a user is saved.
func touch(u *model.User, now time.Time) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.Metadata.RegistrationDate.IsZero() {
		u.Metadata.RegistrationDate = now
	}
	u.UpdatedAt = now
}
