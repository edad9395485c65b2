package model

import (
	"math"
	"strings"

	"github.com/samber/lo"
)

// Completeness thresholds.
const (
	BaseCompleteness         = 35
	MatchingCompleteness     = 75 // reported as required before matches are shown
	ProfileCompleteThreshold = 80
)

// Completeness scores how much of the profile is filled in, 0..100.
// Signup fields give the base; each optional section adds its share.
func Completeness(u *User) int {
	score := float64(BaseCompleteness)

	if u.Account.PhoneNumber != "" {
		score += 5
	}
	if u.PersonalInfo.Age > 0 {
		score += 10
	}

	if len(u.HousingInfo.SelectedLocations) > 0 {
		score += 15
	}
	if u.HousingInfo.HousingSituation != "" {
		score += 10
	}
	if _, ok := u.Budget(); ok {
		score += 10
	}

	if u.ProfessionalInfo.Occupation != "" {
		score += 5
	}
	if len(u.ProfessionalInfo.Languages) > 0 {
		score += 5
	}
	if u.ProfessionalInfo.AnnualIncome > 0 {
		score += 5
	}

	answered := lo.CountBy(RequiredLifestyleFields, func(f string) bool { return u.Lifestyle.Get(f) != "" })
	score += float64(answered) / float64(len(RequiredLifestyleFields)) * 15

	return min(int(math.Round(score)), 100)
}

// SectionProgress is the completion state of one profile section.
type SectionProgress struct {
	Completed int             `json:"completed"`
	Fields    map[string]bool `json:"fields"`
}

// Progress is the per-section breakdown shown on the onboarding screen.
type Progress struct {
	Account      SectionProgress `json:"account"`
	Personal     SectionProgress `json:"personal"`
	Housing      SectionProgress `json:"housing"`
	Professional SectionProgress `json:"professional"`
	Lifestyle    SectionProgress `json:"lifestyle"`
}

func DetailedProgress(u *User) Progress {
	_, hasBudget := u.Budget()

	personal := map[string]bool{
		"firstName": u.PersonalInfo.FirstName != "",
		"lastName":  u.PersonalInfo.LastName != "",
		"sex":       len(u.PersonalInfo.Sex) > 0,
		"age":       u.PersonalInfo.Age > 0,
	}
	personalDone := lo.CountBy(lo.Values(personal), func(v bool) bool { return v })

	housing := 0
	if len(u.HousingInfo.SelectedLocations) > 0 {
		housing += 40
	}
	if u.HousingInfo.HousingSituation != "" {
		housing += 20
	}
	if hasBudget {
		housing += 30
	}
	if u.HousingInfo.MoveInDate != nil {
		housing += 10
	}

	professional := 0
	if u.ProfessionalInfo.Occupation != "" {
		professional += 50
	}
	if u.ProfessionalInfo.AnnualIncome > 0 {
		professional += 30
	}
	if len(u.ProfessionalInfo.Languages) > 0 {
		professional += 20
	}

	lifestyle := make(map[string]bool, len(LifestyleFields))
	for _, f := range LifestyleFields {
		lifestyle[f] = u.Lifestyle.Get(f) != ""
	}
	lifestyleDone := lo.CountBy(RequiredLifestyleFields, func(f string) bool { return lifestyle[f] })

	return Progress{
		Account: SectionProgress{
			Completed: 100,
			Fields: map[string]bool{
				"username":    u.Account.Username != "",
				"email":       u.Account.Email != "",
				"phoneNumber": u.Account.PhoneNumber != "",
			},
		},
		Personal: SectionProgress{
			Completed: percent(personalDone, len(personal)),
			Fields:    personal,
		},
		Housing: SectionProgress{
			Completed: housing,
			Fields: map[string]bool{
				"selectedLocations": len(u.HousingInfo.SelectedLocations) > 0,
				"housingSituation":  u.HousingInfo.HousingSituation != "",
				"rentPreferences":   hasBudget,
				"moveInDate":        u.HousingInfo.MoveInDate != nil,
			},
		},
		Professional: SectionProgress{
			Completed: professional,
			Fields: map[string]bool{
				"occupation":   u.ProfessionalInfo.Occupation != "",
				"annualIncome": u.ProfessionalInfo.AnnualIncome > 0,
				"languages":    len(u.ProfessionalInfo.Languages) > 0,
			},
		},
		Lifestyle: SectionProgress{
			Completed: percent(lifestyleDone, len(RequiredLifestyleFields)),
			Fields:    lifestyle,
		},
	}
}

// Recommendation suggests the next piece of profile data to add.
type Recommendation struct {
	Section  string `json:"section"`
	Priority string `json:"priority"`
	Message  string `json:"message"`
	Action   string `json:"action"`
}

// Recommendations lists missing data ordered by priority: high, medium, low.
func Recommendations(u *User) []Recommendation {
	recs := []Recommendation{}

	if len(u.HousingInfo.SelectedLocations) == 0 {
		recs = append(recs, Recommendation{
			Section:  "housing",
			Priority: "high",
			Message:  "Add your preferred neighborhoods to find compatible roommates nearby",
			Action:   "Add locations",
		})
	}

	missing := lo.Filter(RequiredLifestyleFields, func(f string, _ int) bool { return u.Lifestyle.Get(f) == "" })
	if len(missing) > 0 {
		recs = append(recs, Recommendation{
			Section:  "lifestyle",
			Priority: "high",
			Message:  "Complete your lifestyle preferences (" + strings.Join(missing, ", ") + ") for better matches",
			Action:   "Update lifestyle",
		})
	}

	if u.ProfessionalInfo.Occupation == "" {
		recs = append(recs, Recommendation{
			Section:  "professional",
			Priority: "medium",
			Message:  "Add your occupation to help roommates understand your schedule",
			Action:   "Add occupation",
		})
	}
	if u.ProfessionalInfo.AnnualIncome <= 0 {
		recs = append(recs, Recommendation{
			Section:  "professional",
			Priority: "medium",
			Message:  "Adding income helps with rent affordability matching",
			Action:   "Add income",
		})
	}

	if u.PersonalInfo.Age <= 0 {
		recs = append(recs, Recommendation{
			Section:  "personal",
			Priority: "low",
			Message:  "Add your age for age-compatible roommate matching",
			Action:   "Add age",
		})
	}
	return recs
}

func percent(n, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(n) / float64(total) * 100))
}
