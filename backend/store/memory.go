package store

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/roomiematch/roomiematch/backend/model"
)

// Memory is an in-process Store. Every read returns a copy.
type Memory struct {
	mu    sync.RWMutex
	users map[string]*model.User
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{users: make(map[string]*model.User), now: time.Now}
}

func (m *Memory) Create(ctx context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if f := m.duplicateField(u, ""); f != "" {
		return &DuplicateError{Field: f}
	}
	c := u.Clone()
	touch(c, m.now())
	c.Revision = 1
	m.users[c.ID] = c
	*u = *c.Clone()
	return nil
}

// duplicateField must be called with mu held.
func (m *Memory) duplicateField(u *model.User, skipID string) string {
	for id, o := range m.users {
		if id == skipID {
			continue
		}
		if strings.EqualFold(o.Account.Email, u.Account.Email) {
			return "email"
		}
		if strings.EqualFold(o.Account.Username, u.Account.Username) {
			return "username"
		}
	}
	return ""
}

func (m *Memory) Get(ctx context.Context, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u.Clone(), nil
}

func (m *Memory) GetMany(ctx context.Context, ids []string) (map[string]*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*model.User, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out[id] = u.Clone()
		}
	}
	return out, nil
}

func (m *Memory) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Account.Email, email) {
			return u.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) Mutate(ctx context.Context, id string, fn func(*model.User) error) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = id
	if f := m.duplicateField(next, id); f != "" {
		return nil, &DuplicateError{Field: f}
	}
	touch(next, m.now())
	next.Revision = cur.Revision + 1
	m.users[id] = next
	return next.Clone(), nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	return nil
}

// sorted returns the users matching keep, newest registration first. Must be
// called with mu held.
func (m *Memory) sorted(keep func(*model.User) bool) []*model.User {
	out := lo.Filter(lo.Values(m.users), func(u *model.User, _ int) bool { return keep(u) })
	slices.SortFunc(out, func(a, b *model.User) int {
		if c := b.Metadata.RegistrationDate.Compare(a.Metadata.RegistrationDate); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (m *Memory) FindCandidates(ctx context.Context, q CandidateQuery) ([]*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	found := m.sorted(func(u *model.User) bool {
		if u.ID == q.ExcludeID || !u.Metadata.IsActive || !u.Metadata.OnboardingCompleted {
			return false
		}
		return lo.Some(u.LocationIDs(), q.LocationIDs)
	})
	if q.Limit > 0 && len(found) > q.Limit {
		found = found[:q.Limit]
	}
	return lo.Map(found, func(u *model.User, _ int) *model.User { return u.Clone() }), nil
}

func (q ListQuery) matches(u *model.User) bool {
	if q.OnboardingCompleted != nil && u.Metadata.OnboardingCompleted != *q.OnboardingCompleted {
		return false
	}
	if q.IsActive != nil && u.Metadata.IsActive != *q.IsActive {
		return false
	}
	if q.Occupation != "" && u.ProfessionalInfo.Occupation != q.Occupation {
		return false
	}
	if q.Borough != "" && !lo.ContainsBy(u.HousingInfo.SelectedLocations, func(l model.LocationPreference) bool {
		return l.Borough == q.Borough
	}) {
		return false
	}
	return true
}

func (m *Memory) List(ctx context.Context, q ListQuery) ([]*model.User, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	found := m.sorted(q.matches)
	total := len(found)
	page := lo.Subset(found, q.offset(), uint(q.Limit))
	return lo.Map(page, func(u *model.User, _ int) *model.User { return u.Clone() }), total, nil
}

func (m *Memory) Stats(ctx context.Context, since time.Time) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := &Stats{Completeness: emptyBuckets()}
	locations := map[[2]string]int{}
	boroughs := map[string]int{}
	occupations := map[string]int{}

	for _, u := range m.users {
		st.Total++
		if u.Metadata.IsActive {
			st.Active++
		}
		if u.Metadata.OnboardingCompleted {
			st.Onboarded++
		}
		if !u.Metadata.RegistrationDate.Before(since) {
			st.RegisteredSince++
		}
		for _, l := range u.HousingInfo.SelectedLocations {
			locations[[2]string{l.Borough, l.Neighborhood}]++
			boroughs[l.Borough]++
		}
		if o := u.ProfessionalInfo.Occupation; o != "" {
			occupations[o]++
		}
		st.Completeness[bucketIndex(u.Metadata.ProfileCompleteness)].Count++
	}

	for k, n := range locations {
		st.TopLocations = append(st.TopLocations, LocationCount{Borough: k[0], Neighborhood: k[1], Count: n})
	}
	slices.SortFunc(st.TopLocations, func(a, b LocationCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Borough+a.Neighborhood, b.Borough+b.Neighborhood)
	})
	st.TopLocations = lo.Subset(st.TopLocations, 0, topLocations)
	st.TopBoroughs = topValues(boroughs, topBoroughs)
	st.TopOccupations = topValues(occupations, topOccupations)
	return st, nil
}

func topValues(counts map[string]int, n uint) []ValueCount {
	out := make([]ValueCount, 0, len(counts))
	for v, c := range counts {
		out = append(out, ValueCount{Value: v, Count: c})
	}
	slices.SortFunc(out, func(a, b ValueCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Value, b.Value)
	})
	return lo.Subset(out, 0, n)
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close(ctx context.Context) error { return nil }
