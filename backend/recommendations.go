package main

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/roomiematch/roomiematch/backend/compat"
	"github.com/roomiematch/roomiematch/backend/model"
	"github.com/roomiematch/roomiematch/backend/store"
)

// GET /api/users/{userId}/compatible - ranked roommate candidates
func compatibleRoommatesHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userId")
		if !selfOnly(userID, w, r) {
			return
		}

		limit, ok := queryInt(r, "limit", compat.DefaultLimit)
		if !ok {
			matchSearchesTotal.WithLabelValues("invalid_parameter").Inc()
			invalidParameter(w, "limit", "limit must be an integer")
			return
		}
		minScore, ok := queryInt(r, "minScore", compat.DefaultMinScore)
		if !ok {
			matchSearchesTotal.WithLabelValues("invalid_parameter").Inc()
			invalidParameter(w, "minScore", "minScore must be an integer")
			return
		}
		params := compat.Params{MinScore: minScore, Limit: limit}
		if err := params.Validate(); err != nil {
			matchSearchesTotal.WithLabelValues("invalid_parameter").Inc()
			name := "limit"
			if errors.Is(err, compat.ErrInvalidMinScore) {
				name = "minScore"
			}
			invalidParameter(w, name, err.Error())
			return
		}

		anchor, err := a.store.Get(r.Context(), userID)
		if err != nil {
			a.writeStoreError(w, r, err)
			return
		}

		// Gate by onboarding completion
		if !anchor.CanViewFullProfiles() {
			matchSearchesTotal.WithLabelValues("incomplete_profile").Inc()
			writeErrorDetails(w, http.StatusForbidden, "incomplete_profile", "Complete your profile to view potential matches",
				map[string]any{
					"profileCompleteness": model.Completeness(anchor),
					"required":            model.MatchingCompleteness,
				})
			return
		}

		locationIDs := anchor.LocationIDs()
		if len(locationIDs) == 0 {
			writeNoLocations(w)
			return
		}

		candidates, err := a.store.FindCandidates(r.Context(), store.CandidateQuery{
			ExcludeID:   anchor.ID,
			LocationIDs: locationIDs,
			Limit:       limit * compat.OverFetchFactor,
		})
		if err != nil {
			matchSearchesTotal.WithLabelValues("error").Inc()
			a.serverError(w, r, "find candidates", err)
			return
		}

		results, err := a.engine.Match(anchor, candidates, params)
		if errors.Is(err, compat.ErrNoLocations) {
			writeNoLocations(w)
			return
		} else if err != nil {
			matchSearchesTotal.WithLabelValues("error").Inc()
			a.serverError(w, r, "rank candidates", err)
			return
		}

		matchSearchesTotal.WithLabelValues("ok").Inc()
		matchResultsReturned.Observe(float64(len(results)))
		a.log.Debug("compatible roommates",
			zap.String("user_id", anchor.ID),
			zap.Int("candidates", len(candidates)),
			zap.Int("matches", len(results)),
		)

		writeData(w, http.StatusOK, map[string]any{
			"matches":    newMatchViews(results),
			"totalFound": len(results),
			"searchCriteria": map[string]any{
				"minCompatibilityScore": minScore,
				"userLocations":         anchor.HousingInfo.SelectedLocations,
				"limit":                 limit,
			},
			"currentUser": map[string]any{
				"budgetRange":   anchor.BudgetRange(),
				"neighborhoods": anchor.SelectedNeighborhoods(),
			},
		})
	}
}

func writeNoLocations(w http.ResponseWriter) {
	matchSearchesTotal.WithLabelValues("no_locations").Inc()
	writeErrorDetails(w, http.StatusBadRequest, "no_locations", "Please add location preferences to find matches", nil)
}
