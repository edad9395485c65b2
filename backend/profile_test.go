package main

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomiematch/roomiematch/backend/model"
	"github.com/roomiematch/roomiematch/backend/store"
)

func withLocations(locs ...model.LocationPreference) func(*model.User) {
	return func(u *model.User) {
		for _, l := range locs {
			l.ID = model.LocationID(l.Borough, l.Neighborhood)
			u.HousingInfo.SelectedLocations = append(u.HousingInfo.SelectedLocations, l)
		}
	}
}

var (
	parkSlope = model.LocationPreference{Borough: "Brooklyn", Neighborhood: "Park Slope"}
	astoria   = model.LocationPreference{Borough: "Queens", Neighborhood: "Astoria"}
)

func TestGetUserProfile(t *testing.T) {
	a := newTestApp(t)
	user := createTestUser(t, a, "public@example.com", "testpass123", withLocations(parkSlope), func(u *model.User) {
		u.Account.PhoneNumber = "555-0199"
	})

	t.Run("Public View", func(t *testing.T) {
		w := doRequest(t, a.routes(), http.MethodGet, "/api/users/"+user.ID, "", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decodeBody(t, w)
		assert.Equal(t, true, body["success"])

		data := body["data"].(map[string]any)
		u := data["user"].(map[string]any)
		assert.Equal(t, user.ID, u["id"])
		assert.NotContains(t, u["account"], "email")
		assert.NotContains(t, u["account"], "phoneNumber")
		assert.NotContains(t, u["account"], "passwordHash")
		// phone was stripped before scoring, so it does not add to completeness
		assert.EqualValues(t, 50, data["profileCompleteness"])
		assert.Nil(t, data["budgetRange"])
		assert.Len(t, data["selectedNeighborhoods"], 1)
	})

	t.Run("Unknown User", func(t *testing.T) {
		w := doRequest(t, a.routes(), http.MethodGet, "/api/users/does-not-exist", "", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "not_found", decodeBody(t, w)["error"])
	})
}

func TestListUsers(t *testing.T) {
	a := newTestApp(t)
	h := a.routes()
	viewer := createTestUser(t, a, "viewer@example.com", "testpass123")
	createTestUser(t, a, "brooklyn@example.com", "testpass123", onboarded(quietLifestyle), withLocations(parkSlope))
	createTestUser(t, a, "queens@example.com", "testpass123", withLocations(astoria))

	t.Run("Requires Auth", func(t *testing.T) {
		w := doRequest(t, h, http.MethodGet, "/api/users/", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Pagination", func(t *testing.T) {
		w := doRequest(t, h, http.MethodGet, "/api/users/?limit=2", viewer.Token, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		data := decodeBody(t, w)["data"].(map[string]any)
		assert.Len(t, data["users"], 2)
		p := data["pagination"].(map[string]any)
		assert.EqualValues(t, 1, p["currentPage"])
		assert.EqualValues(t, 2, p["totalPages"])
		assert.EqualValues(t, 3, p["totalUsers"])
		assert.Equal(t, true, p["hasNext"])
		assert.Equal(t, false, p["hasPrev"])

		for _, u := range data["users"].([]any) {
			assert.NotContains(t, u.(map[string]any)["account"], "email")
		}

		w = doRequest(t, h, http.MethodGet, "/api/users/?limit=2&page=2", viewer.Token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		data = decodeBody(t, w)["data"].(map[string]any)
		assert.Len(t, data["users"], 1)
		p = data["pagination"].(map[string]any)
		assert.Equal(t, false, p["hasNext"])
		assert.Equal(t, true, p["hasPrev"])
	})

	t.Run("Filters", func(t *testing.T) {
		w := doRequest(t, h, http.MethodGet, "/api/users/?onboardingCompleted=true", viewer.Token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decodeBody(t, w)["data"].(map[string]any)["users"], 1)

		w = doRequest(t, h, http.MethodGet, "/api/users/?borough=Queens", viewer.Token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		users := decodeBody(t, w)["data"].(map[string]any)["users"].([]any)
		require.Len(t, users, 1)
		assert.Equal(t, "queens", users[0].(map[string]any)["account"].(map[string]any)["username"])
	})

	t.Run("Invalid Parameters", func(t *testing.T) {
		for query, param := range map[string]string{
			"limit=0":                   "limit",
			"limit=500":                 "limit",
			"page=0":                    "page",
			"page=x":                    "page",
			"onboardingCompleted=maybe": "onboardingCompleted",
			"isActive=2":                "isActive",
		} {
			w := doRequest(t, h, http.MethodGet, "/api/users/?"+query, viewer.Token, nil)
			require.Equal(t, http.StatusBadRequest, w.Code, query)
			assert.Equal(t, param, decodeBody(t, w)["parameter"], query)
		}
	})
}

func TestUpdateUserProfile(t *testing.T) {
	a := newTestApp(t)
	h := a.routes()
	user := createTestUser(t, a, "update@example.com", "testpass123")
	other := createTestUser(t, a, "someone@example.com", "testpass123")

	t.Run("Own Profile", func(t *testing.T) {
		w := doRequest(t, h, http.MethodPut, "/api/users/"+user.ID, user.Token, map[string]any{
			"account":      map[string]any{"phoneNumber": "555-0123"},
			"personalInfo": map[string]any{"firstName": "<i>Dana</i>", "age": "29"},
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		data := decodeBody(t, w)["data"].(map[string]any)
		assert.EqualValues(t, 50, data["profileCompleteness"])

		u := getUser(t, a, user.ID)
		assert.Equal(t, "Dana", u.PersonalInfo.FirstName)
		assert.Equal(t, 29, u.PersonalInfo.Age)
		assert.Equal(t, "555-0123", u.Account.PhoneNumber)
		assert.Equal(t, 50, u.Metadata.ProfileCompleteness)
	})

	t.Run("Rejected Update Changes Nothing", func(t *testing.T) {
		w := doRequest(t, h, http.MethodPut, "/api/users/"+user.ID, user.Token, map[string]any{
			"personalInfo": map[string]any{"lastName": "Changed", "age": 12},
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "validation_failed", decodeBody(t, w)["error"])

		u := getUser(t, a, user.ID)
		assert.Equal(t, "User", u.PersonalInfo.LastName)
		assert.Equal(t, 29, u.PersonalInfo.Age)
	})

	t.Run("Someone Else", func(t *testing.T) {
		w := doRequest(t, h, http.MethodPut, "/api/users/"+other.ID, user.Token, map[string]any{
			"personalInfo": map[string]any{"firstName": "Mallory"},
		})
		require.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "Test", getUser(t, a, other.ID).PersonalInfo.FirstName)
	})
}

func TestDeleteUser(t *testing.T) {
	a := newTestApp(t)
	h := a.routes()
	user := createTestUser(t, a, "delete@example.com", "testpass123")
	other := createTestUser(t, a, "keep@example.com", "testpass123")

	require.NoError(t, a.drafts.Save(t.Context(), user.ID, "onboarding", []byte(`{}`), 0))

	w := doRequest(t, h, http.MethodDelete, "/api/users/"+other.ID, user.Token, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(t, h, http.MethodDelete, "/api/users/"+user.ID, user.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["success"])

	_, err := a.store.Get(t.Context(), user.ID)
	assert.Error(t, err)
	_, err = a.drafts.Load(t.Context(), user.ID, "onboarding")
	assert.Error(t, err)

	// the token outlives the account but no longer resolves to a user
	w = doRequest(t, h, http.MethodGet, "/api/auth/me", user.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUserStats(t *testing.T) {
	a := newTestApp(t)
	createTestUser(t, a, "s1@example.com", "testpass123", onboarded(quietLifestyle), withLocations(parkSlope, astoria),
		func(u *model.User) { u.ProfessionalInfo.Occupation = "tech" })
	createTestUser(t, a, "s2@example.com", "testpass123", withLocations(parkSlope),
		func(u *model.User) { u.ProfessionalInfo.Occupation = "tech" })
	createTestUser(t, a, "s3@example.com", "testpass123")

	w := doRequest(t, a.routes(), http.MethodGet, "/api/users/stats", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decodeBody(t, w)["data"].(map[string]any)

	overview := data["overview"].(map[string]any)
	assert.EqualValues(t, 3, overview["totalUsers"])
	assert.EqualValues(t, 3, overview["activeUsers"])
	assert.EqualValues(t, 1, overview["completedProfiles"])
	assert.EqualValues(t, 3, overview["recentUsers"])
	assert.EqualValues(t, 33, overview["completionRate"])

	locations := data["popularLocations"].([]any)
	require.Len(t, locations, 2)
	assert.Equal(t, "Park Slope, Brooklyn", locations[0].(map[string]any)["location"])
	assert.EqualValues(t, 2, locations[0].(map[string]any)["count"])

	boroughs := data["popularBoroughs"].([]any)
	assert.Equal(t, "Brooklyn", boroughs[0].(map[string]any)["value"])

	occupations := data["popularOccupations"].([]any)
	require.Len(t, occupations, 1)
	assert.EqualValues(t, 2, occupations[0].(map[string]any)["count"])

	assert.Len(t, data["profileCompleteness"], len(store.CompletenessBoundaries)-1)
	assert.NotEmpty(t, data["generatedAt"])
}
