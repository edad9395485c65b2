package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomiematch/roomiematch/backend/model"
)

func testUser(name string, registered time.Time, locs ...model.LocationPreference) *model.User {
	return &model.User{
		ID: uuid.NewString(),
		Account: model.Account{
			Username:     name,
			Email:        name + "@example.com",
			PasswordHash: "hash-" + name,
		},
		PersonalInfo: model.PersonalInfo{FirstName: name, LastName: "Test", Sex: []string{"female"}},
		HousingInfo:  model.HousingInfo{SelectedLocations: locs},
		Metadata: model.Metadata{
			IsActive:            true,
			OnboardingCompleted: true,
			ProfileCompleteness: 80,
			RegistrationDate:    registered,
		},
	}
}

var (
	parkSlope = model.LocationPreference{Borough: "Brooklyn", Neighborhood: "Park Slope", ID: "park-slope-brooklyn"}
	astoria   = model.LocationPreference{Borough: "Queens", Neighborhood: "Astoria", ID: "astoria-queens"}
	harlem    = model.LocationPreference{Borough: "Manhattan", Neighborhood: "Harlem", ID: "harlem-manhattan"}
)

// runStoreSuite exercises the Store contract. Every backend runs it.
func runStoreSuite(t *testing.T, s Store) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond).Add(-time.Hour)
	suffix := uuid.NewString()[:8]
	name := func(n string) string { return n + suffix }

	anchor := testUser(name("anchor"), base, parkSlope, astoria)
	older := testUser(name("older"), base.Add(-2*time.Hour), parkSlope)
	newer := testUser(name("newer"), base.Add(time.Minute), astoria, harlem)
	elsewhere := testUser(name("elsewhere"), base, harlem)
	inactive := testUser(name("inactive"), base, parkSlope)
	inactive.Metadata.IsActive = false
	pending := testUser(name("pending"), base, parkSlope)
	pending.Metadata.OnboardingCompleted = false
	pending.Metadata.ProfileCompleteness = 40
	pending.ProfessionalInfo.Occupation = "tech"

	all := []*model.User{anchor, older, newer, elsewhere, inactive, pending}

	t.Run("Create", func(t *testing.T) {
		for _, u := range all {
			require.NoError(t, s.Create(ctx, u))
			assert.EqualValues(t, 1, u.Revision)
		}
		t.Cleanup(func() {
			for _, u := range all {
				_ = s.Delete(ctx, u.ID)
			}
		})

		dup := testUser(name("other"), base)
		dup.Account.Email = anchor.Account.Email
		var derr *DuplicateError
		require.True(t, errors.As(s.Create(ctx, dup), &derr))
		assert.Equal(t, "email", derr.Field)

		dup = testUser(name("anchor"), base)
		dup.Account.Email = name("fresh") + "@example.com"
		require.True(t, errors.As(s.Create(ctx, dup), &derr))
		assert.Equal(t, "username", derr.Field)

		t.Run("Get", func(t *testing.T) {
			got, err := s.Get(ctx, anchor.ID)
			require.NoError(t, err)
			assert.Equal(t, anchor.Account.Username, got.Account.Username)
			assert.Equal(t, anchor.Account.PasswordHash, got.Account.PasswordHash)
			assert.Equal(t, anchor.LocationIDs(), got.LocationIDs())

			_, err = s.Get(ctx, uuid.NewString())
			assert.ErrorIs(t, err, ErrNotFound)
		})

		t.Run("GetMany", func(t *testing.T) {
			got, err := s.GetMany(ctx, []string{anchor.ID, newer.ID, uuid.NewString()})
			require.NoError(t, err)
			assert.Len(t, got, 2)
			assert.Contains(t, got, newer.ID)
		})

		t.Run("FindByEmail", func(t *testing.T) {
			got, err := s.FindByEmail(ctx, anchor.Account.Email)
			require.NoError(t, err)
			assert.Equal(t, anchor.ID, got.ID)

			_, err = s.FindByEmail(ctx, "nobody-"+suffix+"@example.com")
			assert.ErrorIs(t, err, ErrNotFound)
		})

		t.Run("FindCandidates", func(t *testing.T) {
			got, err := s.FindCandidates(ctx, CandidateQuery{
				ExcludeID:   anchor.ID,
				LocationIDs: anchor.LocationIDs(),
				Limit:       10,
			})
			require.NoError(t, err)
			ids := idsOf(got)
			assert.Equal(t, []string{newer.ID, older.ID}, filterIDs(ids, all))

			got, err = s.FindCandidates(ctx, CandidateQuery{ExcludeID: anchor.ID, LocationIDs: anchor.LocationIDs(), Limit: 1})
			require.NoError(t, err)
			assert.Len(t, got, 1)
		})

		t.Run("List", func(t *testing.T) {
			no := false
			got, total, err := s.List(ctx, ListQuery{OnboardingCompleted: &no, Occupation: "tech", Page: 1, Limit: 20})
			require.NoError(t, err)
			assert.Equal(t, 1, total)
			require.Len(t, got, 1)
			assert.Equal(t, pending.ID, got[0].ID)

			got, _, err = s.List(ctx, ListQuery{Borough: "Manhattan", Page: 1, Limit: 50})
			require.NoError(t, err)
			assert.Equal(t, []string{newer.ID, elsewhere.ID}, filterIDs(idsOf(got), all))
		})

		t.Run("Stats", func(t *testing.T) {
			st, err := s.Stats(ctx, base.Add(-time.Minute))
			require.NoError(t, err)
			assert.GreaterOrEqual(t, st.Total, len(all))
			assert.GreaterOrEqual(t, st.RegisteredSince, 5)
			assert.NotEmpty(t, st.TopLocations)
			assert.LessOrEqual(t, len(st.TopLocations), 10)
			assert.LessOrEqual(t, len(st.TopBoroughs), 3)
			assert.Len(t, st.Completeness, len(CompletenessBoundaries)-1)
		})

		t.Run("Mutate", func(t *testing.T) {
			got, err := s.Mutate(ctx, anchor.ID, func(u *model.User) error {
				u.Lifestyle.Pets = "yes"
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, "yes", got.Lifestyle.Pets)
			assert.EqualValues(t, 2, got.Revision)

			boom := errors.New("boom")
			_, err = s.Mutate(ctx, anchor.ID, func(u *model.User) error {
				u.Lifestyle.Pets = "no"
				return boom
			})
			assert.ErrorIs(t, err, boom)
			reloaded, err := s.Get(ctx, anchor.ID)
			require.NoError(t, err)
			assert.Equal(t, "yes", reloaded.Lifestyle.Pets)

			_, err = s.Mutate(ctx, uuid.NewString(), func(*model.User) error { return nil })
			assert.ErrorIs(t, err, ErrNotFound)
		})

		t.Run("Delete", func(t *testing.T) {
			require.NoError(t, s.Delete(ctx, elsewhere.ID))
			assert.ErrorIs(t, s.Delete(ctx, elsewhere.ID), ErrNotFound)
		})
	})
}

func idsOf(us []*model.User) []string {
	out := make([]string, len(us))
	for i, u := range us {
		out[i] = u.ID
	}
	return out
}

// filterIDs keeps ids created by this run, so shared databases don't leak in.
func filterIDs(ids []string, mine []*model.User) []string {
	own := map[string]bool{}
	for _, u := range mine {
		own[u.ID] = true
	}
	out := []string{}
	for _, id := range ids {
		if own[id] {
			out = append(out, id)
		}
	}
	return out
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, NewMemory())
}

func TestMemoryStore_ConcurrentMutate(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	u := testUser("counter", time.Now())
	require.NoError(t, s.Create(ctx, u))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Mutate(ctx, u.ID, func(u *model.User) error {
				u.Metadata.OnboardingStep++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.Metadata.OnboardingStep)
	assert.EqualValues(t, 51, got.Revision)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	u := testUser("copy", time.Now(), parkSlope)
	require.NoError(t, s.Create(ctx, u))

	got, err := s.Get(ctx, u.ID)
	require.NoError(t, err)
	got.HousingInfo.SelectedLocations[0].ID = "changed"

	again, err := s.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, parkSlope.ID, again.HousingInfo.SelectedLocations[0].ID)
}

func TestMemoryStore_Pagination(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	base := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Create(ctx, testUser(fmt.Sprint("p", i), base.Add(time.Duration(i)*time.Minute))))
	}

	page, total, err := s.List(ctx, ListQuery{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, "p2", page[0].Account.Username)
	assert.Equal(t, "p1", page[1].Account.Username)

	page, _, err = s.List(ctx, ListQuery{Page: 4, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestMemoryStore_StatsBuckets(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	for i, c := range []int{10, 35, 35, 74, 80, 100} {
		u := testUser(fmt.Sprint("s", i), time.Now(), parkSlope)
		u.Metadata.ProfileCompleteness = c
		u.ProfessionalInfo.Occupation = "tech"
		require.NoError(t, s.Create(ctx, u))
	}

	st, err := s.Stats(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	counts := make([]int, len(st.Completeness))
	for i, b := range st.Completeness {
		counts[i] = b.Count
	}
	assert.Equal(t, []int{1, 2, 1, 1, 1}, counts)
	assert.Equal(t, []LocationCount{{Borough: "Brooklyn", Neighborhood: "Park Slope", Count: 6}}, st.TopLocations)
	assert.Equal(t, []ValueCount{{Value: "tech", Count: 6}}, st.TopOccupations)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	s, err := OpenPostgres(context.Background(), dsn)
	require.NoError(t, err)
	defer s.Close(context.Background())
	runStoreSuite(t, s)
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("TEST_MONGODB_URI not set")
	}
	s, err := OpenMongo(context.Background(), uri, "roomiematch_test")
	require.NoError(t, err)
	defer s.Close(context.Background())
	runStoreSuite(t, s)
}

// ======================
// Drafts
// ======================

func runDraftSuite(t *testing.T, d DraftStore) {
	ctx := context.Background()
	user := uuid.NewString()

	_, err := d.Load(ctx, user, DraftOnboarding)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, d.Save(ctx, user, DraftOnboarding, []byte(`{"step":2}`), time.Minute))
	got, err := d.Load(ctx, user, DraftOnboarding)
	require.NoError(t, err)
	assert.JSONEq(t, `{"step":2}`, string(got))

	_, err = d.Load(ctx, user, DraftRegistration)
	assert.ErrorIs(t, err, ErrNotFound, "forms are separate")

	require.NoError(t, d.Clear(ctx, user, DraftOnboarding))
	_, err = d.Load(ctx, user, DraftOnboarding)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryDrafts(t *testing.T) {
	runDraftSuite(t, NewMemoryDrafts())
}

func TestMemoryDrafts_Expiry(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDrafts()
	now := time.Now()
	d.now = func() time.Time { return now }

	require.NoError(t, d.Save(ctx, "u", DraftRegistration, []byte(`{}`), time.Hour))
	now = now.Add(59 * time.Minute)
	_, err := d.Load(ctx, "u", DraftRegistration)
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = d.Load(ctx, "u", DraftRegistration)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisDrafts(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	runDraftSuite(t, NewRedisDrafts(rdb))
}

func TestValidDraftForm(t *testing.T) {
	assert.True(t, ValidDraftForm("registration"))
	assert.True(t, ValidDraftForm("onboarding"))
	assert.False(t, ValidDraftForm("payment"))
}
