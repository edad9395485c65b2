package model

import "slices"

// Field names of every categorical profile attribute.
const (
	FieldSex                = "sex"
	FieldEthnicity          = "ethnicity"
	FieldHousingSituation   = "housingSituation"
	FieldMaxDistanceToMetro = "maxDistanceToMetro"
	FieldOccupation         = "occupation"
	FieldLanguages          = "languages"

	FieldChildren = "children"
	FieldPets     = "pets"
	FieldSmoking  = "smoking"
	FieldDrinking = "drinking"
	FieldWeed     = "weed"
	FieldDrugs    = "drugs"

	FieldReligion          = "religion"
	FieldSexualOrientation = "sexualOrientation"
	FieldPolitical         = "political"
)

// PreferNotSay is accepted as an answer but never counts as a match.
const PreferNotSay = "prefer-not-say"

var (
	familyScale    = []string{"no", "will-have", "yes"}
	frequencyScale = []string{"no", "sometimes", "often"}
)

// Options is the table of allowed values for each categorical field. Input
// validation and the matching field lists both read from it.
var Options = map[string][]string{
	FieldSex: {"male", "female"},
	FieldEthnicity: {
		"asian", "black", "hispanic", "white", "middle-eastern",
		"native-american", "pacific-islander", "mixed", "other", PreferNotSay,
	},
	FieldHousingSituation:   {"looking", "have-apartment", "flexible"},
	FieldMaxDistanceToMetro: {"5", "10", "15", "no-preference"},
	FieldOccupation: {
		"tech", "finance", "healthcare", "education", "legal",
		"media", "arts", "hospitality", "retail", "real-estate",
		"construction", "government", "non-profit", "student",
		"unemployed", "other",
	},
	FieldLanguages: {
		"english", "spanish", "chinese", "cantonese", "russian",
		"korean", "bengali", "hindi", "french", "arabic",
		"hebrew", "italian", "portuguese", "japanese", "polish",
		"german", "urdu", "tagalog", "vietnamese", "other",
	},

	FieldChildren: familyScale,
	FieldPets:     familyScale,
	FieldSmoking:  frequencyScale,
	FieldDrinking: frequencyScale,
	FieldWeed:     frequencyScale,
	FieldDrugs:    frequencyScale,

	FieldReligion: {
		"christianity", "judaism", "islam", "hinduism", "buddhism",
		"atheist", "agnostic", "spiritual", "other", PreferNotSay,
	},
	FieldSexualOrientation: {
		"straight", "gay", "bisexual", "pansexual", "asexual",
		"queer", "other", PreferNotSay,
	},
	FieldPolitical: {
		"very-liberal", "liberal", "moderate", "conservative",
		"very-conservative", "libertarian", "apolitical", "other", PreferNotSay,
	},
}

// LifestyleFields are the six fields compared for lifestyle compatibility.
var LifestyleFields = []string{FieldChildren, FieldPets, FieldSmoking, FieldDrinking, FieldWeed, FieldDrugs}

// RequiredLifestyleFields are the lifestyle answers that count towards completeness.
var RequiredLifestyleFields = LifestyleFields[:4]

// DemographicFields are the optional demographic fields.
var DemographicFields = []string{FieldReligion, FieldSexualOrientation, FieldPolitical}

// ValidOption reports whether value is allowed for field.
func ValidOption(field, value string) bool {
	return slices.Contains(Options[field], value)
}

// Get returns the answer for one of LifestyleFields.
func (l Lifestyle) Get(field string) string {
	switch field {
	case FieldChildren:
		return l.Children
	case FieldPets:
		return l.Pets
	case FieldSmoking:
		return l.Smoking
	case FieldDrinking:
		return l.Drinking
	case FieldWeed:
		return l.Weed
	case FieldDrugs:
		return l.Drugs
	}
	return ""
}

// Set stores the answer for one of LifestyleFields. Unknown fields are ignored.
func (l *Lifestyle) Set(field, value string) {
	switch field {
	case FieldChildren:
		l.Children = value
	case FieldPets:
		l.Pets = value
	case FieldSmoking:
		l.Smoking = value
	case FieldDrinking:
		l.Drinking = value
	case FieldWeed:
		l.Weed = value
	case FieldDrugs:
		l.Drugs = value
	}
}

// Get returns the answer for one of DemographicFields.
func (d Demographics) Get(field string) string {
	switch field {
	case FieldReligion:
		return d.Religion
	case FieldSexualOrientation:
		return d.SexualOrientation
	case FieldPolitical:
		return d.Political
	}
	return ""
}

func (d *Demographics) Set(field, value string) {
	switch field {
	case FieldReligion:
		d.Religion = value
	case FieldSexualOrientation:
		d.SexualOrientation = value
	case FieldPolitical:
		d.Political = value
	}
}
