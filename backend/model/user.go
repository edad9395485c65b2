// Package model holds the user document and the profile rules shared by the
// API handlers, the stores and the compatibility engine.
package model

import (
	"slices"
	"time"
)

// LocationPreference is one neighborhood a user is willing to live in.
// ID is the composite location id used for all matching.
type LocationPreference struct {
	Borough      string `json:"borough" bson:"borough"`
	Neighborhood string `json:"neighborhood" bson:"neighborhood"`
	ID           string `json:"id" bson:"id"`
}

// RentPreferences is a user's monthly budget.
type RentPreferences struct {
	MinRent int `json:"minRent,omitempty" bson:"minRent,omitempty"`
	MaxRent int `json:"maxRent,omitempty" bson:"maxRent,omitempty"`
}

type Account struct {
	Username string `json:"username" bson:"username"`
	Email    string `json:"email,omitempty" bson:"email"`
	// PasswordHash never leaves the server. Postgres keeps it in its own column.
	PasswordHash string `json:"-" bson:"passwordHash"`
	PhoneNumber  string `json:"phoneNumber,omitempty" bson:"phoneNumber,omitempty"`
}

type PersonalInfo struct {
	FirstName string   `json:"firstName" bson:"firstName"`
	LastName  string   `json:"lastName" bson:"lastName"`
	Age       int      `json:"age,omitempty" bson:"age,omitempty"`
	Sex       []string `json:"sex" bson:"sex"`
	Ethnicity string   `json:"ethnicity,omitempty" bson:"ethnicity,omitempty"`
}

type HousingInfo struct {
	SelectedLocations  []LocationPreference `json:"selectedLocations" bson:"selectedLocations"`
	RentPreferences    *RentPreferences     `json:"rentPreferences,omitempty" bson:"rentPreferences,omitempty"`
	HousingSituation   string               `json:"housingSituation,omitempty" bson:"housingSituation,omitempty"`
	MaxDistanceToMetro string               `json:"maxDistanceToMetro,omitempty" bson:"maxDistanceToMetro,omitempty"`
	MoveInDate         *time.Time           `json:"moveInDate,omitempty" bson:"moveInDate,omitempty"`
	RentDuration       int                  `json:"rentDuration,omitempty" bson:"rentDuration,omitempty"`
}

type ProfessionalInfo struct {
	Occupation   string   `json:"occupation,omitempty" bson:"occupation,omitempty"`
	AnnualIncome int      `json:"annualIncome,omitempty" bson:"annualIncome,omitempty"`
	Languages    []string `json:"languages" bson:"languages"`
}

// Lifestyle answers. An empty string means the user has not answered.
type Lifestyle struct {
	Children string `json:"children,omitempty" bson:"children,omitempty"`
	Pets     string `json:"pets,omitempty" bson:"pets,omitempty"`
	Smoking  string `json:"smoking,omitempty" bson:"smoking,omitempty"`
	Drinking string `json:"drinking,omitempty" bson:"drinking,omitempty"`
	Weed     string `json:"weed,omitempty" bson:"weed,omitempty"`
	Drugs    string `json:"drugs,omitempty" bson:"drugs,omitempty"`
}

type Demographics struct {
	Religion          string `json:"religion,omitempty" bson:"religion,omitempty"`
	SexualOrientation string `json:"sexualOrientation,omitempty" bson:"sexualOrientation,omitempty"`
	Political         string `json:"political,omitempty" bson:"political,omitempty"`
}

type Metadata struct {
	ProfileCompleted      bool       `json:"profileCompleted" bson:"profileCompleted"`
	OnboardingCompleted   bool       `json:"onboardingCompleted" bson:"onboardingCompleted"`
	ProfileCompleteness   int        `json:"profileCompleteness" bson:"profileCompleteness"`
	OnboardingStep        int        `json:"onboardingStep" bson:"onboardingStep"`
	OnboardingCompletedAt *time.Time `json:"onboardingCompletedAt,omitempty" bson:"onboardingCompletedAt,omitempty"`
	IsActive              bool       `json:"isActive" bson:"isActive"`
	LastLogin             *time.Time `json:"lastLogin,omitempty" bson:"lastLogin,omitempty"`
	RegistrationDate      time.Time  `json:"registrationDate" bson:"registrationDate"`
	IPAddress             string     `json:"-" bson:"ipAddress,omitempty"`
	UserAgent             string     `json:"-" bson:"userAgent,omitempty"`
}

// User is the full user document as persisted by every store backend.
type User struct {
	ID       string `json:"id" bson:"_id"`
	Revision int64  `json:"-" bson:"revision"`

	Account          Account          `json:"account" bson:"account"`
	PersonalInfo     PersonalInfo     `json:"personalInfo" bson:"personalInfo"`
	HousingInfo      HousingInfo      `json:"housingInfo" bson:"housingInfo"`
	ProfessionalInfo ProfessionalInfo `json:"professionalInfo" bson:"professionalInfo"`
	Lifestyle        Lifestyle        `json:"lifestyle" bson:"lifestyle"`
	Demographics     Demographics     `json:"demographics" bson:"demographics"`
	Metadata         Metadata         `json:"metadata" bson:"metadata"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// LocationIDs returns the composite ids of the user's selected locations.
func (u *User) LocationIDs() []string {
	ids := make([]string, 0, len(u.HousingInfo.SelectedLocations))
	for _, loc := range u.HousingInfo.SelectedLocations {
		ids = append(ids, loc.ID)
	}
	return ids
}

// CanViewFullProfiles reports whether the user may browse matches.
func (u *User) CanViewFullProfiles() bool {
	return u.Metadata.OnboardingCompleted
}

// Clone returns a deep copy so callers can mutate without sharing slices.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.PersonalInfo.Sex = slices.Clone(u.PersonalInfo.Sex)
	c.HousingInfo.SelectedLocations = slices.Clone(u.HousingInfo.SelectedLocations)
	c.ProfessionalInfo.Languages = slices.Clone(u.ProfessionalInfo.Languages)
	if u.HousingInfo.RentPreferences != nil {
		rp := *u.HousingInfo.RentPreferences
		c.HousingInfo.RentPreferences = &rp
	}
	c.HousingInfo.MoveInDate = cloneTime(u.HousingInfo.MoveInDate)
	c.Metadata.OnboardingCompletedAt = cloneTime(u.Metadata.OnboardingCompletedAt)
	c.Metadata.LastLogin = cloneTime(u.Metadata.LastLogin)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
