package model

import (
	"bytes"
	"encoding/json"
	"html"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// FlexInt decodes a JSON number or a numeric string; form inputs send both.
// An empty string or null leaves it unset.
type FlexInt struct {
	Value int
	Set   bool
}

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = FlexInt{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = FlexInt{}
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return notAnInteger("string " + strconv.Quote(s))
		}
		*f = FlexInt{Value: n, Set: true}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	if i, err := n.Int64(); err == nil && i >= math.MinInt && i <= math.MaxInt {
		*f = FlexInt{Value: int(i), Set: true}
		return nil
	}
	// 1500.0 and 1.5e3 are whole numbers; 1500.9 and 1e30 are not ints.
	fl, err := n.Float64()
	if err != nil || fl != math.Trunc(fl) || fl < math.MinInt || fl >= math.MaxInt {
		return notAnInteger("number " + n.String())
	}
	*f = FlexInt{Value: int(fl), Set: true}
	return nil
}

// notAnInteger is reported as a type error so the decoder attaches the
// field path.
func notAnInteger(value string) error {
	return &json.UnmarshalTypeError{Value: value, Type: reflect.TypeFor[int]()}
}

// FieldError is one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every rejected field of one request.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: msg})
}

func (e *ValidationError) err() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

var textPolicy = bluemonday.StrictPolicy()

// CleanText strips markup from a free-text field.
func CleanText(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

// HousingInput is the housing step of onboarding.
type HousingInput struct {
	SelectedLocations  []LocationPreference `json:"selectedLocations"`
	HousingSituation   string               `json:"housingSituation"`
	RentMin            FlexInt              `json:"rentMin"`
	RentMax            FlexInt              `json:"rentMax"`
	MoveInDate         string               `json:"moveInDate"`
	MaxDistanceToMetro string               `json:"maxDistanceToMetro"`
	RentDuration       FlexInt              `json:"rentDuration"`
}

// ApplyHousing validates in and writes it to u. Blank inputs keep the stored
// value. With requireLocations an empty location list is rejected.
func ApplyHousing(u *User, in HousingInput, requireLocations bool) error {
	verr := &ValidationError{}
	h := u.HousingInfo

	switch {
	case len(in.SelectedLocations) > 0:
		locs, err := NormalizeLocations(in.SelectedLocations)
		if err != nil {
			verr.add("selectedLocations", err.Error())
		} else {
			h.SelectedLocations = locs
		}
	case requireLocations || in.SelectedLocations != nil:
		verr.add("selectedLocations", "At least one location is required")
	}

	if in.HousingSituation != "" {
		if ValidOption(FieldHousingSituation, in.HousingSituation) {
			h.HousingSituation = in.HousingSituation
		} else {
			verr.add(FieldHousingSituation, "Invalid housing situation")
		}
	}

	if in.MaxDistanceToMetro != "" {
		if ValidOption(FieldMaxDistanceToMetro, in.MaxDistanceToMetro) {
			h.MaxDistanceToMetro = in.MaxDistanceToMetro
		} else {
			verr.add(FieldMaxDistanceToMetro, "Invalid distance to metro")
		}
	}

	if in.RentMin.Set || in.RentMax.Set {
		rp := RentPreferences{}
		if h.RentPreferences != nil {
			rp = *h.RentPreferences
		}
		if in.RentMin.Set {
			rp.MinRent = in.RentMin.Value
		}
		if in.RentMax.Set {
			rp.MaxRent = in.RentMax.Value
		}
		switch {
		case rp.MinRent < 0 || rp.MaxRent < 0:
			verr.add("rentPreferences", "Rent must be a positive number")
		case rp.MinRent > 0 && rp.MaxRent > 0 && rp.MinRent > rp.MaxRent:
			verr.add("rentPreferences", "Minimum rent cannot exceed maximum rent")
		default:
			h.RentPreferences = &rp
		}
	}

	if in.RentDuration.Set {
		if in.RentDuration.Value < 3 || in.RentDuration.Value > 60 {
			verr.add("rentDuration", "Rental duration must be between 3 and 60 months")
		} else {
			h.RentDuration = in.RentDuration.Value
		}
	}

	if in.MoveInDate != "" {
		t, err := parseDate(in.MoveInDate)
		if err != nil {
			verr.add("moveInDate", "Invalid move-in date")
		} else {
			h.MoveInDate = &t
		}
	}

	if err := verr.err(); err != nil {
		return err
	}
	u.HousingInfo = h
	return nil
}

// ApplyLifestyle validates the non-empty answers of in and writes them to u.
func ApplyLifestyle(u *User, in Lifestyle) error {
	verr := &ValidationError{}
	l := u.Lifestyle
	for _, f := range LifestyleFields {
		v := in.Get(f)
		if v == "" {
			continue
		}
		if !ValidOption(f, v) {
			verr.add(f, "Invalid value for "+f)
			continue
		}
		l.Set(f, v)
	}
	if err := verr.err(); err != nil {
		return err
	}
	u.Lifestyle = l
	return nil
}

// ProfessionalInput is the professional step of onboarding.
type ProfessionalInput struct {
	Occupation   string   `json:"occupation"`
	AnnualIncome FlexInt  `json:"annualIncome"`
	Languages    []string `json:"languages"`
}

func ApplyProfessional(u *User, in ProfessionalInput) error {
	verr := &ValidationError{}
	p := u.ProfessionalInfo

	if in.Occupation != "" {
		if ValidOption(FieldOccupation, in.Occupation) {
			p.Occupation = in.Occupation
		} else {
			verr.add(FieldOccupation, "Invalid occupation")
		}
	}
	if in.AnnualIncome.Set {
		if in.AnnualIncome.Value < 0 {
			verr.add("annualIncome", "Income must be a positive number")
		} else {
			p.AnnualIncome = in.AnnualIncome.Value
		}
	}
	if in.Languages != nil {
		langs := make([]string, 0, len(in.Languages))
		for _, l := range in.Languages {
			l = strings.ToLower(strings.TrimSpace(l))
			if !ValidOption(FieldLanguages, l) {
				verr.add(FieldLanguages, "Invalid language: "+l)
				continue
			}
			langs = append(langs, l)
		}
		p.Languages = langs
	}

	if err := verr.err(); err != nil {
		return err
	}
	u.ProfessionalInfo = p
	return nil
}

// PersonalInput holds the editable personal fields.
type PersonalInput struct {
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Age       FlexInt `json:"age"`
	Ethnicity string  `json:"ethnicity"`
}

// ProfileUpdate is a partial profile edit. Absent sections are left alone;
// metadata and credentials are not editable this way.
type ProfileUpdate struct {
	Account *struct {
		PhoneNumber *string `json:"phoneNumber"`
	} `json:"account"`
	PersonalInfo     *PersonalInput     `json:"personalInfo"`
	HousingInfo      *HousingInput      `json:"housingInfo"`
	ProfessionalInfo *ProfessionalInput `json:"professionalInfo"`
	Lifestyle        *Lifestyle         `json:"lifestyle"`
	Demographics     *Demographics      `json:"demographics"`
}

// ApplyProfileUpdate validates every present section and applies them all,
// or none when any field is rejected.
func ApplyProfileUpdate(u *User, upd ProfileUpdate) error {
	next := u.Clone()
	verr := &ValidationError{}
	collect := func(err error) {
		if ve, ok := err.(*ValidationError); ok {
			verr.Errors = append(verr.Errors, ve.Errors...)
		}
	}

	if upd.Account != nil && upd.Account.PhoneNumber != nil {
		next.Account.PhoneNumber = CleanText(*upd.Account.PhoneNumber)
	}
	if p := upd.PersonalInfo; p != nil {
		if s := CleanText(p.FirstName); s != "" {
			next.PersonalInfo.FirstName = s
		}
		if s := CleanText(p.LastName); s != "" {
			next.PersonalInfo.LastName = s
		}
		if p.Age.Set {
			if p.Age.Value < 18 || p.Age.Value > 100 {
				verr.add("age", "Age must be between 18 and 100")
			} else {
				next.PersonalInfo.Age = p.Age.Value
			}
		}
		if p.Ethnicity != "" {
			if ValidOption(FieldEthnicity, p.Ethnicity) {
				next.PersonalInfo.Ethnicity = p.Ethnicity
			} else {
				verr.add(FieldEthnicity, "Invalid ethnicity")
			}
		}
	}
	if upd.HousingInfo != nil {
		collect(ApplyHousing(next, *upd.HousingInfo, false))
	}
	if upd.ProfessionalInfo != nil {
		collect(ApplyProfessional(next, *upd.ProfessionalInfo))
	}
	if upd.Lifestyle != nil {
		collect(ApplyLifestyle(next, *upd.Lifestyle))
	}
	if d := upd.Demographics; d != nil {
		for _, f := range DemographicFields {
			v := d.Get(f)
			if v == "" {
				continue
			}
			if !ValidOption(f, v) {
				verr.add(f, "Invalid value for "+f)
				continue
			}
			next.Demographics.Set(f, v)
		}
	}

	if err := verr.err(); err != nil {
		return err
	}
	*u = *next
	return nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, s)
}
