package model

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Budget is an inclusive monthly rent range.
type Budget struct {
	Min int
	Max int
}

// Budget returns the user's rent range. ok is false unless both bounds are set.
func (u *User) Budget() (b Budget, ok bool) {
	rp := u.HousingInfo.RentPreferences
	if rp == nil || rp.MinRent <= 0 || rp.MaxRent <= 0 {
		return Budget{}, false
	}
	return Budget{Min: rp.MinRent, Max: rp.MaxRent}, true
}

// Overlaps reports whether the two ranges share at least one value.
func (b Budget) Overlaps(o Budget) bool {
	return b.Min <= o.Max && o.Min <= b.Max
}

var budgetPrinter = message.NewPrinter(language.English)

// String formats the range with thousands separators, e.g. "$1,800-2,500".
func (b Budget) String() string {
	return budgetPrinter.Sprintf("$%d-%d", b.Min, b.Max)
}

// BudgetRange returns the formatted budget, or nil when none is set.
func (u *User) BudgetRange() *string {
	b, ok := u.Budget()
	if !ok {
		return nil
	}
	s := b.String()
	return &s
}
