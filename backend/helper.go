package main

import (
	"time"

	"github.com/roomiematch/roomiematch/backend/compat"
	"github.com/roomiematch/roomiematch/backend/model"
)

// profileView is a user document plus the derived fields clients render
// next to it.
type profileView struct {
	*model.User
	ProfileCompleteness   int                        `json:"profileCompleteness"`
	BudgetRange           *string                    `json:"budgetRange"`
	SelectedNeighborhoods []model.NeighborhoodOption `json:"selectedNeighborhoods"`
	CanViewFullProfiles   bool                       `json:"canViewFullProfiles"`
}

func newProfileView(u *model.User) profileView {
	return profileView{
		User:                  u,
		ProfileCompleteness:   model.Completeness(u),
		BudgetRange:           u.BudgetRange(),
		SelectedNeighborhoods: u.SelectedNeighborhoods(),
		CanViewFullProfiles:   u.CanViewFullProfiles(),
	}
}

// publicUser strips contact details before a profile is shown to anyone
// but its owner.
func publicUser(u *model.User) *model.User {
	p := u.Clone()
	p.Account.Email = ""
	p.Account.PhoneNumber = ""
	return p
}

// accountSummary is the short user object returned by signup and login.
type accountSummary struct {
	ID                  string `json:"id"`
	Username            string `json:"username"`
	Email               string `json:"email"`
	FirstName           string `json:"firstName"`
	LastName            string `json:"lastName"`
	Sex                 string `json:"sex,omitempty"`
	ProfileCompleteness int    `json:"profileCompleteness"`
	OnboardingCompleted bool   `json:"onboardingCompleted"`
	OnboardingStep      int    `json:"onboardingStep"`
}

func newAccountSummary(u *model.User) accountSummary {
	s := accountSummary{
		ID:                  u.ID,
		Username:            u.Account.Username,
		Email:               u.Account.Email,
		FirstName:           u.PersonalInfo.FirstName,
		LastName:            u.PersonalInfo.LastName,
		ProfileCompleteness: model.Completeness(u),
		OnboardingCompleted: u.Metadata.OnboardingCompleted,
		OnboardingStep:      u.Metadata.OnboardingStep,
	}
	if len(u.PersonalInfo.Sex) > 0 {
		s.Sex = u.PersonalInfo.Sex[0]
	}
	return s
}

// matchView is one compatible roommate in a search response.
type matchView struct {
	User               *model.User                `json:"user"`
	CompatibilityScore int                        `json:"compatibilityScore"`
	CommonLocations    []model.LocationPreference `json:"commonLocations"`
	BudgetCompatible   bool                       `json:"budgetCompatible"`
	LifestyleMatch     int                        `json:"lifestyleMatch"`
	MatchQuality       compat.Quality             `json:"matchQuality"`
}

func newMatchViews(results []compat.Result) []matchView {
	out := make([]matchView, 0, len(results))
	for _, r := range results {
		common := r.CommonLocations
		if common == nil {
			common = []model.LocationPreference{}
		}
		out = append(out, matchView{
			User:               publicUser(r.Counterpart),
			CompatibilityScore: r.Score,
			CommonLocations:    common,
			BudgetCompatible:   r.BudgetCompatible,
			LifestyleMatch:     r.LifestyleMatchPercent,
			MatchQuality:       r.Quality,
		})
	}
	return out
}

// refreshCompleteness recomputes the stored completeness after a write and
// promotes the profile to completed once onboarding is done and the score is
// high enough.
func refreshCompleteness(u *model.User) {
	u.Metadata.ProfileCompleteness = model.Completeness(u)
	if u.Metadata.OnboardingCompleted && u.Metadata.ProfileCompleteness >= model.ProfileCompleteThreshold {
		u.Metadata.ProfileCompleted = true
	}
}

// completeOnboarding marks onboarding done, keeping the first completion time.
func completeOnboarding(u *model.User, now time.Time) {
	if !u.Metadata.OnboardingCompleted {
		u.Metadata.OnboardingCompleted = true
		u.Metadata.OnboardingCompletedAt = &now
	}
	refreshCompleteness(u)
}
