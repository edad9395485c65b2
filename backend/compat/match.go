package compat

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roomiematch/roomiematch/backend/model"
)

const (
	// OverFetchFactor is how many candidates are retrieved per requested
	// match, leaving room for the score threshold to discard some.
	OverFetchFactor = 2

	DefaultLimit    = 10
	DefaultMinScore = 70
	MaxLimit        = 100
)

var (
	ErrNoLocations     = errors.New("anchor has no location preferences")
	ErrInvalidLimit    = fmt.Errorf("limit must be between 1 and %d", MaxLimit)
	ErrInvalidMinScore = errors.New("minimum score must be between 0 and 100")
)

// Params controls ranking. Out of range values are rejected, never clamped.
type Params struct {
	MinScore int
	Limit    int
}

func DefaultParams() Params {
	return Params{MinScore: DefaultMinScore, Limit: DefaultLimit}
}

func (p Params) Validate() error {
	if p.MinScore < 0 || p.MinScore > 100 {
		return ErrInvalidMinScore
	}
	if p.Limit < 1 || p.Limit > MaxLimit {
		return ErrInvalidLimit
	}
	return nil
}

// Retrieve keeps the members of population that share at least one location
// with anchor, excluding anchor itself, in population order and at most
// limit*OverFetchFactor of them.
//
// Whether a candidate is active and onboarded is the caller's concern; the
// stores only hand out eligible users.
func (e *Engine) Retrieve(anchor *model.User, population []*model.User, limit int) ([]*model.User, error) {
	if len(anchor.HousingInfo.SelectedLocations) == 0 {
		return nil, ErrNoLocations
	}
	if limit < 1 {
		return nil, ErrInvalidLimit
	}

	want := idSet(anchor.HousingInfo.SelectedLocations)
	capacity := limit * OverFetchFactor
	out := make([]*model.User, 0, min(capacity, len(population)))
	for _, u := range population {
		if len(out) == capacity {
			break
		}
		if u == nil || u.ID == anchor.ID {
			continue
		}
		if sharesLocation(u, want) {
			out = append(out, u)
		}
	}
	return out, nil
}

func sharesLocation(u *model.User, ids map[string]struct{}) bool {
	for _, loc := range u.HousingInfo.SelectedLocations {
		if _, ok := ids[loc.ID]; ok {
			return true
		}
	}
	return false
}

// Rank drops results below p.MinScore, orders the rest by descending score
// keeping input order among ties, and truncates to p.Limit.
func (e *Engine) Rank(results []Result, p Params) ([]Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	kept := make([]Result, 0, len(results))
	for _, r := range results {
		if r.Score >= p.MinScore {
			kept = append(kept, r)
		}
	}
	slices.SortStableFunc(kept, func(a, b Result) int { return b.Score - a.Score })
	if len(kept) > p.Limit {
		kept = kept[:p.Limit]
	}
	return kept, nil
}

// Match runs retrieval, evaluation and ranking for anchor over population.
func (e *Engine) Match(anchor *model.User, population []*model.User, p Params) ([]Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	candidates, err := e.Retrieve(anchor, population, p.Limit)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, e.Evaluate(anchor, c))
	}
	return e.Rank(results, p)
}
