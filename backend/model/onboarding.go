package model

// FinalOnboardingStep is the last numbered onboarding step.
const FinalOnboardingStep = 3

// NextStep tells the client where the onboarding flow continues.
// Step is either a step number or the string "complete".
type NextStep struct {
	Step        any    `json:"step"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Route       string `json:"route,omitempty"`
	Action      string `json:"action,omitempty"`
}

var onboardingSteps = []NextStep{
	{Step: 0, Title: "Welcome!", Description: "Let's set up your profile step by step.", Route: "/onboarding/housing"},
	{Step: 1, Title: "Housing Preferences", Description: "Tell us where you want to live and your budget.", Route: "/onboarding/lifestyle"},
	{Step: 2, Title: "Lifestyle", Description: "Help us match you with compatible roommates.", Route: "/onboarding/professional"},
	{Step: 3, Title: "Professional Info", Description: "Almost done! Tell us about your work and income.", Route: "/onboarding/complete"},
}

// SignupNextStep is returned right after account creation.
var SignupNextStep = NextStep{
	Step:        1,
	Title:       "Tell us about your housing preferences",
	Description: "Help us find the perfect roommates for you!",
}

// NextOnboardingStep returns the step after currentStep, or the "complete"
// marker once the final step is reached or the profile is complete enough.
func NextOnboardingStep(currentStep, completeness int) NextStep {
	if currentStep >= FinalOnboardingStep || completeness >= MatchingCompleteness {
		return NextStep{
			Step:        "complete",
			Title:       "Profile Complete!",
			Description: "You can now browse and match with roommates.",
			Action:      "Go to Dashboard",
		}
	}
	if currentStep < 0 {
		currentStep = 0
	}
	return onboardingSteps[currentStep]
}

// ShouldCompleteOnboarding reports whether the user has given enough data to
// be matched: past the lifestyle step, at least one location, and the
// children and pets answers.
func ShouldCompleteOnboarding(u *User) bool {
	return u.Metadata.OnboardingStep >= 2 &&
		len(u.HousingInfo.SelectedLocations) > 0 &&
		u.Lifestyle.Children != "" &&
		u.Lifestyle.Pets != ""
}

// StepValidation lists required and optional inputs of a step.
type StepValidation struct {
	Required []string `json:"required"`
	Optional []string `json:"optional"`
}

// StepDescriptor describes one onboarding step with the user's current answers.
type StepDescriptor struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Fields      []string       `json:"fields"`
	CurrentData map[string]any `json:"currentData"`
	Validation  StepValidation `json:"validation"`
}

// DescribeStep returns the descriptor of step n for u. Unknown steps get an
// empty descriptor rather than an error.
func DescribeStep(n int, u *User) StepDescriptor {
	switch n {
	case 1:
		h := u.HousingInfo
		data := map[string]any{
			"selectedLocations": nonNilLocations(h.SelectedLocations),
			"housingSituation":  h.HousingSituation,
			"rentMin":           "",
			"rentMax":           "",
			"moveInDate":        "",
		}
		if h.RentPreferences != nil {
			if h.RentPreferences.MinRent > 0 {
				data["rentMin"] = h.RentPreferences.MinRent
			}
			if h.RentPreferences.MaxRent > 0 {
				data["rentMax"] = h.RentPreferences.MaxRent
			}
		}
		if h.MoveInDate != nil {
			data["moveInDate"] = h.MoveInDate
		}
		return StepDescriptor{
			Title:       "Housing Preferences",
			Description: "Tell us where you want to live and your housing situation",
			Fields:      []string{"selectedLocations", "housingSituation", "rentPreferences", "moveInDate"},
			CurrentData: data,
			Validation: StepValidation{
				Required: []string{"selectedLocations"},
				Optional: []string{"housingSituation", "rentMin", "rentMax", "moveInDate"},
			},
		}
	case 2:
		data := make(map[string]any, len(LifestyleFields))
		for _, f := range LifestyleFields {
			data[f] = u.Lifestyle.Get(f)
		}
		return StepDescriptor{
			Title:       "Lifestyle Preferences",
			Description: "Help us match you with compatible roommates",
			Fields:      LifestyleFields,
			CurrentData: data,
			Validation: StepValidation{
				Required: RequiredLifestyleFields,
				Optional: []string{FieldWeed, FieldDrugs},
			},
		}
	case 3:
		p := u.ProfessionalInfo
		data := map[string]any{
			"occupation":   p.Occupation,
			"annualIncome": "",
			"languages":    nonNilStrings(p.Languages),
		}
		if p.AnnualIncome > 0 {
			data["annualIncome"] = p.AnnualIncome
		}
		return StepDescriptor{
			Title:       "Professional Information",
			Description: "Tell us about your work and income",
			Fields:      []string{"occupation", "annualIncome", "languages"},
			CurrentData: data,
			Validation: StepValidation{
				Required: []string{"occupation"},
				Optional: []string{"annualIncome", "languages"},
			},
		}
	}
	return StepDescriptor{
		Title:       "Unknown Step",
		Description: "Invalid step number",
		Fields:      []string{},
		CurrentData: map[string]any{},
		Validation:  StepValidation{Required: []string{}, Optional: []string{}},
	}
}

func nonNilLocations(l []LocationPreference) []LocationPreference {
	if l == nil {
		return []LocationPreference{}
	}
	return l
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
