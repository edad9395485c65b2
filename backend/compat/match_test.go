package compat

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomiematch/roomiematch/backend/model"
)

func scored(scores ...int) []Result {
	out := make([]Result, len(scores))
	for i, s := range scores {
		out[i] = Result{Counterpart: newUser(fmt.Sprint("u", i)), Score: s}
	}
	return out
}

func scoresOf(rs []Result) []int {
	out := make([]int, len(rs))
	for i, r := range rs {
		out[i] = r.Score
	}
	return out
}

func TestRank_FiltersAndSorts(t *testing.T) {
	got, err := NewEngine().Rank(scored(68, 95, 40, 72), Params{MinScore: 70, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []int{95, 72}, scoresOf(got))
}

func TestRank_TiesKeepInputOrder(t *testing.T) {
	in := scored(80, 90, 80, 80)
	got, err := NewEngine().Rank(in, Params{MinScore: 0, Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "u1", got[0].Counterpart.ID)
	assert.Equal(t, "u0", got[1].Counterpart.ID)
	assert.Equal(t, "u2", got[2].Counterpart.ID)
	assert.Equal(t, "u3", got[3].Counterpart.ID)
}

func TestRank_Truncates(t *testing.T) {
	got, err := NewEngine().Rank(scored(10, 20, 30, 40), Params{MinScore: 0, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []int{40, 30}, scoresOf(got))
}

func TestRank_MinScoreHundred(t *testing.T) {
	got, err := NewEngine().Rank(scored(99, 100, 98), Params{MinScore: 100, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []int{100}, scoresOf(got))

	got, err = NewEngine().Rank(scored(99, 98), Params{MinScore: 100, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRank_EmptyInput(t *testing.T) {
	got, err := NewEngine().Rank(nil, DefaultParams())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name string
		p    Params
		want error
	}{
		{"defaults", DefaultParams(), nil},
		{"min bounds", Params{MinScore: 0, Limit: 1}, nil},
		{"max bounds", Params{MinScore: 100, Limit: MaxLimit}, nil},
		{"negative min score", Params{MinScore: -1, Limit: 10}, ErrInvalidMinScore},
		{"min score above 100", Params{MinScore: 101, Limit: 10}, ErrInvalidMinScore},
		{"zero limit", Params{MinScore: 70, Limit: 0}, ErrInvalidLimit},
		{"limit too large", Params{MinScore: 70, Limit: MaxLimit + 1}, ErrInvalidLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRetrieve(t *testing.T) {
	e := NewEngine()
	anchor := newUser("anchor", "x", "y")

	t.Run("anchor without locations", func(t *testing.T) {
		_, err := e.Retrieve(newUser("lonely"), []*model.User{newUser("b", "x")}, 10)
		assert.ErrorIs(t, err, ErrNoLocations)
	})

	t.Run("invalid limit", func(t *testing.T) {
		_, err := e.Retrieve(anchor, nil, 0)
		assert.ErrorIs(t, err, ErrInvalidLimit)
	})

	t.Run("excludes anchor and disjoint candidates", func(t *testing.T) {
		pop := []*model.User{
			anchor,
			newUser("far", "z"),
			newUser("near", "y", "z"),
			newUser("none"),
		}
		got, err := e.Retrieve(anchor, pop, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "near", got[0].ID)
	})

	t.Run("over-fetches twice the limit in population order", func(t *testing.T) {
		var pop []*model.User
		for i := 0; i < 10; i++ {
			pop = append(pop, newUser(fmt.Sprint(i), "x"))
		}
		got, err := e.Retrieve(anchor, pop, 3)
		require.NoError(t, err)
		require.Len(t, got, 3*OverFetchFactor)
		for i, u := range got {
			assert.Equal(t, fmt.Sprint(i), u.ID)
		}
	})
}

func TestMatch(t *testing.T) {
	e := NewEngine()
	anchor := newUser("anchor", "x")
	anchor.Lifestyle = fullLifestyle()

	twin := newUser("twin", "x")
	twin.Lifestyle = fullLifestyle()

	half := newUser("half", "x", "y")
	half.Lifestyle = model.Lifestyle{Children: "no", Pets: "yes", Smoking: "no"}

	elsewhere := newUser("elsewhere", "y")
	elsewhere.Lifestyle = fullLifestyle()

	t.Run("ranks eligible candidates", func(t *testing.T) {
		got, err := e.Match(anchor, []*model.User{half, elsewhere, twin}, Params{MinScore: 0, Limit: 10})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "twin", got[0].Counterpart.ID)
		assert.Equal(t, 100, got[0].Score)
		assert.Equal(t, "half", got[1].Counterpart.ID)
	})

	t.Run("threshold removes weak matches", func(t *testing.T) {
		got, err := e.Match(anchor, []*model.User{half, twin}, Params{MinScore: 70, Limit: 10})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "twin", got[0].Counterpart.ID)
	})

	t.Run("rejects bad params before retrieval", func(t *testing.T) {
		_, err := e.Match(newUser("lonely"), nil, Params{MinScore: 200, Limit: 10})
		assert.ErrorIs(t, err, ErrInvalidMinScore)
	})

	t.Run("anchor without locations", func(t *testing.T) {
		_, err := e.Match(newUser("lonely"), []*model.User{twin}, DefaultParams())
		assert.ErrorIs(t, err, ErrNoLocations)
	})
}
