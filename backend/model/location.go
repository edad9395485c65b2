package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/lo"
)

// MaxLocations is the largest number of locations a user may select.
const MaxLocations = 5

var (
	ErrTooManyLocations = fmt.Errorf("at most %d locations may be selected", MaxLocations)
	ErrInvalidLocation  = errors.New("location needs a borough and a neighborhood")
)

var whitespace = regexp.MustCompile(`\s+`)

// LocationID derives the composite id of a neighborhood, e.g.
// ("Brooklyn", "Park Slope") -> "park-slope-brooklyn".
func LocationID(borough, neighborhood string) string {
	return whitespace.ReplaceAllString(strings.ToLower(neighborhood), "-") + "-" + strings.ToLower(borough)
}

// NormalizeLocations fills missing composite ids, drops repeated ids keeping
// the first occurrence and enforces MaxLocations.
func NormalizeLocations(in []LocationPreference) ([]LocationPreference, error) {
	out := make([]LocationPreference, 0, len(in))
	for _, loc := range in {
		loc.Borough = strings.TrimSpace(loc.Borough)
		loc.Neighborhood = strings.TrimSpace(loc.Neighborhood)
		loc.ID = strings.TrimSpace(loc.ID)
		if loc.ID == "" {
			if loc.Borough == "" || loc.Neighborhood == "" {
				return nil, ErrInvalidLocation
			}
			loc.ID = LocationID(loc.Borough, loc.Neighborhood)
		}
		out = append(out, loc)
	}
	out = lo.UniqBy(out, func(loc LocationPreference) string { return loc.ID })
	if len(out) > MaxLocations {
		return nil, ErrTooManyLocations
	}
	return out, nil
}

// NeighborhoodOption is the select-box shape of a location.
type NeighborhoodOption struct {
	Value        string `json:"value"`
	Label        string `json:"label"`
	Borough      string `json:"borough"`
	Neighborhood string `json:"neighborhood"`
}

// SelectedNeighborhoods lists the user's locations as select-box options.
func (u *User) SelectedNeighborhoods() []NeighborhoodOption {
	return lo.Map(u.HousingInfo.SelectedLocations, func(loc LocationPreference, _ int) NeighborhoodOption {
		return NeighborhoodOption{
			Value:        loc.ID,
			Label:        loc.Neighborhood + ", " + loc.Borough,
			Borough:      loc.Borough,
			Neighborhood: loc.Neighborhood,
		}
	})
}
