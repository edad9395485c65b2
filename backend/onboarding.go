package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/roomiematch/roomiematch/backend/model"
)

// mutateSelf applies fn to the authenticated user and writes the error
// response itself when the write fails.
func (a *app) mutateSelf(w http.ResponseWriter, r *http.Request, fn func(*model.User) error) (*model.User, bool) {
	u, err := a.store.Mutate(r.Context(), currentUserID(r), fn)
	if err != nil {
		a.writeStoreError(w, r, err)
		return nil, false
	}
	return u, true
}

func advanceStep(u *model.User, step int) {
	u.Metadata.OnboardingStep = max(u.Metadata.OnboardingStep, min(step, model.FinalOnboardingStep))
}

func onboardingStatusHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := a.store.Get(r.Context(), currentUserID(r))
		if err != nil {
			a.writeStoreError(w, r, err)
			return
		}
		completeness := model.Completeness(u)
		writeJSON(w, http.StatusOK, map[string]any{
			"currentStep":         u.Metadata.OnboardingStep,
			"completeness":        completeness,
			"onboardingCompleted": u.Metadata.OnboardingCompleted,
			"profileCompleted":    u.Metadata.ProfileCompleted,
			"nextStep":            model.NextOnboardingStep(u.Metadata.OnboardingStep, completeness),
		})
	}
}

func stepProgress(message string, u *model.User) map[string]any {
	return map[string]any{
		"message":      message,
		"completeness": u.Metadata.ProfileCompleteness,
		"currentStep":  u.Metadata.OnboardingStep,
		"nextStep":     model.NextOnboardingStep(u.Metadata.OnboardingStep, u.Metadata.ProfileCompleteness),
	}
}

func onboardingHousingHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in model.HousingInput
		if !decodeJSON(w, r, &in) {
			return
		}
		if len(in.SelectedLocations) == 0 {
			writeErrorDetails(w, http.StatusBadRequest, "locations_required", "At least one location is required",
				map[string]any{"field": "selectedLocations"})
			return
		}
		u, ok := a.mutateSelf(w, r, func(u *model.User) error {
			if err := model.ApplyHousing(u, in, true); err != nil {
				return err
			}
			advanceStep(u, 1)
			refreshCompleteness(u)
			return nil
		})
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, stepProgress("Housing preferences updated!", u))
	}
}

func onboardingLifestyleHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in model.Lifestyle
		if !decodeJSON(w, r, &in) {
			return
		}
		u, ok := a.mutateSelf(w, r, func(u *model.User) error {
			if err := model.ApplyLifestyle(u, in); err != nil {
				return err
			}
			advanceStep(u, 2)
			refreshCompleteness(u)
			return nil
		})
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, stepProgress("Lifestyle preferences updated!", u))
	}
}

func onboardingProfessionalHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in model.ProfessionalInput
		if !decodeJSON(w, r, &in) {
			return
		}
		u, ok := a.mutateSelf(w, r, func(u *model.User) error {
			if err := model.ApplyProfessional(u, in); err != nil {
				return err
			}
			advanceStep(u, 3)
			refreshCompleteness(u)
			return nil
		})
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, stepProgress("Professional info updated!", u))
	}
}

func onboardingCompleteHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := a.mutateSelf(w, r, func(u *model.User) error {
			completeOnboarding(u, time.Now().UTC())
			return nil
		})
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message":             "Onboarding completed! Welcome to RoomieMatch!",
			"completeness":        u.Metadata.ProfileCompleteness,
			"onboardingCompleted": true,
			"profileCompleted":    u.Metadata.ProfileCompleted,
			"canViewProfiles":     u.CanViewFullProfiles(),
		})
	}
}

// stepParam parses the {step} path parameter. Only numbered steps are valid.
func stepParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "step"))
	if err != nil || n < 1 || n > model.FinalOnboardingStep {
		writeErrorDetails(w, http.StatusBadRequest, "invalid_step", "Invalid step number", nil)
		return 0, false
	}
	return n, true
}

type stepResponse struct {
	Step            int `json:"step"`
	CurrentUserStep int `json:"currentUserStep"`
	Completeness    int `json:"completeness"`
	model.StepDescriptor
}

func onboardingStepHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.Atoi(chi.URLParam(r, "step"))
		if err != nil {
			writeErrorDetails(w, http.StatusBadRequest, "invalid_step", "Invalid step number", nil)
			return
		}
		u, err := loadUser(r, currentUserID(r), a.store)
		if err != nil {
			a.writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, stepResponse{
			Step:            n,
			CurrentUserStep: u.Metadata.OnboardingStep,
			Completeness:    model.Completeness(u),
			StepDescriptor:  model.DescribeStep(n, u),
		})
	}
}

// applyStep decodes data as the input of step and applies it to u.
func applyStep(u *model.User, step int, data json.RawMessage) error {
	switch step {
	case 1:
		var in model.HousingInput
		if err := json.Unmarshal(data, &in); err != nil {
			return errInvalidStepData
		}
		return model.ApplyHousing(u, in, true)
	case 2:
		var in model.Lifestyle
		if err := json.Unmarshal(data, &in); err != nil {
			return errInvalidStepData
		}
		return model.ApplyLifestyle(u, in)
	default:
		var in model.ProfessionalInput
		if err := json.Unmarshal(data, &in); err != nil {
			return errInvalidStepData
		}
		return model.ApplyProfessional(u, in)
	}
}

var errInvalidStepData = &model.ValidationError{Errors: []model.FieldError{{Field: "data", Message: "Step data is malformed"}}}

func onboardingUpdateHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Step model.FlexInt  `json:"step"`
			Data json.RawMessage `json:"data"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		step := req.Step.Value
		if !req.Step.Set || step < 1 || step > model.FinalOnboardingStep {
			writeErrorDetails(w, http.StatusBadRequest, "invalid_step", "Invalid step number", nil)
			return
		}
		if len(req.Data) == 0 || string(req.Data) == "null" {
			req.Data = json.RawMessage("{}")
		}

		u, ok := a.mutateSelf(w, r, func(u *model.User) error {
			if err := applyStep(u, step, req.Data); err != nil {
				return err
			}
			advanceStep(u, step)
			refreshCompleteness(u)
			if model.ShouldCompleteOnboarding(u) {
				completeOnboarding(u, time.Now().UTC())
			}
			return nil
		})
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message":             "Profile updated successfully!",
			"currentStep":         u.Metadata.OnboardingStep,
			"completeness":        u.Metadata.ProfileCompleteness,
			"onboardingCompleted": u.Metadata.OnboardingCompleted,
			"nextStep":            model.NextOnboardingStep(u.Metadata.OnboardingStep, u.Metadata.ProfileCompleteness),
			"canViewProfiles":     u.CanViewFullProfiles(),
		})
	}
}

func onboardingSkipHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		step, ok := stepParam(w, r)
		if !ok {
			return
		}
		u, ok := a.mutateSelf(w, r, func(u *model.User) error {
			advanceStep(u, step)
			refreshCompleteness(u)
			return nil
		})
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, stepProgress("Step "+strconv.Itoa(step)+" skipped", u))
	}
}

func onboardingProgressHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := loadUser(r, currentUserID(r), a.store)
		if err != nil {
			a.writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"overall":             model.Completeness(u),
			"onboardingCompleted": u.Metadata.OnboardingCompleted,
			"currentStep":         u.Metadata.OnboardingStep,
			"breakdown":           model.DetailedProgress(u),
			"recommendations":     model.Recommendations(u),
		})
	}
}

// forceCompleteHandler finishes onboarding regardless of the data entered.
// Used by the test tooling of the frontend.
func forceCompleteHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := a.mutateSelf(w, r, func(u *model.User) error {
			u.Metadata.OnboardingStep = model.FinalOnboardingStep
			completeOnboarding(u, time.Now().UTC())
			return nil
		})
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message":             "Onboarding force completed!",
			"onboardingCompleted": true,
			"canViewProfiles":     u.CanViewFullProfiles(),
		})
	}
}
