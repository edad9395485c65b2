package main

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/roomiematch/roomiematch/backend/model"
	"github.com/roomiematch/roomiematch/backend/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	recentWindow    = 7 * 24 * time.Hour
)

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"success": true, "data": data})
}

func invalidParameter(w http.ResponseWriter, name, message string) {
	writeErrorDetails(w, http.StatusBadRequest, "invalid_parameter", message, map[string]any{"parameter": name})
}

// GET /api/users/{userId} - public profile
func getUserProfileHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := loadUser(r, chi.URLParam(r, "userId"), a.store)
		if err != nil {
			a.writeStoreError(w, r, err)
			return
		}
		view := newProfileView(publicUser(u))
		writeData(w, http.StatusOK, map[string]any{
			"user":                  view.User,
			"profileCompleteness":   view.ProfileCompleteness,
			"budgetRange":           view.BudgetRange,
			"selectedNeighborhoods": view.SelectedNeighborhoods,
			"canViewFullProfiles":   view.CanViewFullProfiles,
		})
	}
}

func optionalBool(r *http.Request, name string) (*bool, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, false
	}
	return &v, true
}

// GET /api/users - filtered, paginated listing
func listUsersHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, ok := queryInt(r, "page", 1)
		if !ok || page < 1 {
			invalidParameter(w, "page", "page must be a positive integer")
			return
		}
		limit, ok := queryInt(r, "limit", defaultPageSize)
		if !ok || limit < 1 || limit > maxPageSize {
			invalidParameter(w, "limit", fmt.Sprintf("limit must be between 1 and %d", maxPageSize))
			return
		}
		onboarded, ok := optionalBool(r, "onboardingCompleted")
		if !ok {
			invalidParameter(w, "onboardingCompleted", "onboardingCompleted must be true or false")
			return
		}
		active, ok := optionalBool(r, "isActive")
		if !ok {
			invalidParameter(w, "isActive", "isActive must be true or false")
			return
		}

		q := store.ListQuery{
			OnboardingCompleted: onboarded,
			IsActive:            active,
			Occupation:          r.URL.Query().Get("occupation"),
			Borough:             r.URL.Query().Get("borough"),
			Page:                page,
			Limit:               limit,
		}
		users, total, err := a.store.List(r.Context(), q)
		if err != nil {
			a.serverError(w, r, "list users", err)
			return
		}

		out := make([]*model.User, len(users))
		for i, u := range users {
			out[i] = publicUser(u)
		}
		writeData(w, http.StatusOK, map[string]any{
			"users": out,
			"pagination": map[string]any{
				"currentPage": page,
				"totalPages":  int(math.Ceil(float64(total) / float64(limit))),
				"totalUsers":  total,
				"hasNext":     page*limit < total,
				"hasPrev":     page > 1,
			},
		})
	}
}

// PUT /api/users/{userId} - partial profile update of the caller's account
func updateUserProfileHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !selfOnly(chi.URLParam(r, "userId"), w, r) {
			return
		}
		var upd model.ProfileUpdate
		if !decodeJSON(w, r, &upd) {
			return
		}
		u, ok := a.mutateSelf(w, r, func(u *model.User) error {
			if err := model.ApplyProfileUpdate(u, upd); err != nil {
				return err
			}
			refreshCompleteness(u)
			return nil
		})
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Profile updated successfully",
			"data": map[string]any{
				"user":                newProfileView(u),
				"profileCompleteness": u.Metadata.ProfileCompleteness,
			},
		})
	}
}

// DELETE /api/users/{userId}
func deleteUserHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userId")
		if !selfOnly(userID, w, r) {
			return
		}
		if err := a.store.Delete(r.Context(), userID); err != nil {
			a.writeStoreError(w, r, err)
			return
		}
		for _, form := range []string{store.DraftRegistration, store.DraftOnboarding} {
			if err := a.drafts.Clear(r.Context(), userID, form); err != nil {
				a.log.Warn("clear draft of deleted user", zap.Error(err), zap.String("user_id", userID))
			}
		}
		a.log.Info("user deleted", zap.String("user_id", userID))
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "User deleted successfully",
		})
	}
}

type locationStat struct {
	Location string `json:"location"`
	Count    int    `json:"count"`
}

// GET /api/users/stats
func userStatsHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC()
		st, err := a.store.Stats(r.Context(), now.Add(-recentWindow))
		if err != nil {
			a.serverError(w, r, "user stats", err)
			return
		}

		locations := make([]locationStat, len(st.TopLocations))
		for i, l := range st.TopLocations {
			locations[i] = locationStat{Location: l.Neighborhood + ", " + l.Borough, Count: l.Count}
		}
		completionRate := 0
		if st.Total > 0 {
			completionRate = int(math.Round(float64(st.Onboarded) / float64(st.Total) * 100))
		}

		writeData(w, http.StatusOK, map[string]any{
			"overview": map[string]any{
				"totalUsers":        st.Total,
				"activeUsers":       st.Active,
				"completedProfiles": st.Onboarded,
				"recentUsers":       st.RegisteredSince,
				"completionRate":    completionRate,
				"weeklyGrowth":      st.RegisteredSince,
			},
			"popularLocations":    locations,
			"popularBoroughs":     st.TopBoroughs,
			"popularOccupations":  st.TopOccupations,
			"profileCompleteness": st.Completeness,
			"generatedAt":         now.Format(time.RFC3339),
		})
	}
}
