// Package compat scores how well two users would get along as roommates and
// turns a candidate population into a ranked list of matches.
//
// Everything here is pure: no I/O, no shared mutable state. An *Engine may be
// used from any number of goroutines.
package compat

import (
	"fmt"
	"math"

	"github.com/roomiematch/roomiematch/backend/model"
)

// Policy selects which factors make up the composite score.
type Policy string

const (
	// PolicyTwoFactor scores lifestyle and location only, with their weights
	// renormalized to sum to one.
	PolicyTwoFactor Policy = "two-factor"
	// PolicyFourFactor adds demographics and professional similarity.
	PolicyFourFactor Policy = "four-factor"
)

// ParsePolicy maps a config value to a Policy. The empty string selects
// PolicyTwoFactor.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyTwoFactor:
		return PolicyTwoFactor, nil
	case PolicyFourFactor:
		return PolicyFourFactor, nil
	}
	return "", fmt.Errorf("unknown scoring policy %q", s)
}

// Weights of the four score factors.
type Weights struct {
	Lifestyle    float64
	Location     float64
	Demographics float64
	Professional float64
}

var DefaultWeights = Weights{Lifestyle: 0.4, Location: 0.3, Demographics: 0.2, Professional: 0.1}

// Engine computes compatibility between users.
type Engine struct {
	policy  Policy
	weights Weights
}

type Option func(*Engine)

func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

func WithWeights(w Weights) Option {
	return func(e *Engine) { e.weights = w }
}

// NewEngine returns an engine using PolicyTwoFactor and DefaultWeights unless
// overridden.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{policy: PolicyTwoFactor, weights: DefaultWeights}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Policy() Policy { return e.policy }

// Score returns the composite compatibility of a and b in [0, 100].
// Score(a, b) == Score(b, a) for every pair.
func (e *Engine) Score(a, b *model.User) int {
	w := e.weights
	sum := w.Lifestyle*LifestyleFraction(a, b) + w.Location*LocationFraction(a, b)
	total := w.Lifestyle + w.Location

	if e.policy == PolicyFourFactor {
		sum += w.Demographics*DemographicsFraction(a, b) + w.Professional*ProfessionalFraction(a, b)
		total += w.Demographics + w.Professional
	}
	if total <= 0 {
		return 0
	}
	return clampScore(roundHalfUp(100 * sum / total))
}

// LifestyleFraction is the share of lifestyle fields on which both users gave
// the same answer. Unanswered fields never match but still count.
func LifestyleFraction(a, b *model.User) float64 {
	return equalFraction(model.LifestyleFields, a.Lifestyle.Get, b.Lifestyle.Get)
}

// LocationFraction is the Jaccard similarity of the two location id sets.
// Two empty sets give 0.
func LocationFraction(a, b *model.User) float64 {
	as := idSet(a.HousingInfo.SelectedLocations)
	bs := idSet(b.HousingInfo.SelectedLocations)

	shared := 0
	for id := range as {
		if _, ok := bs[id]; ok {
			shared++
		}
	}
	union := len(as) + len(bs) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

// DemographicsFraction is the share of demographic fields with equal answers.
// "prefer-not-say" counts as unanswered.
func DemographicsFraction(a, b *model.User) float64 {
	get := func(d model.Demographics) func(string) string {
		return func(f string) string {
			if v := d.Get(f); v != model.PreferNotSay {
				return v
			}
			return ""
		}
	}
	return equalFraction(model.DemographicFields, get(a.Demographics), get(b.Demographics))
}

// ProfessionalFraction weighs equal occupation and income proximity equally.
// Income proximity is 1 for the same bracket and falls linearly to 0 four
// brackets apart; a missing income gives 0.
func ProfessionalFraction(a, b *model.User) float64 {
	var occ float64
	if ao := a.ProfessionalInfo.Occupation; ao != "" && ao == b.ProfessionalInfo.Occupation {
		occ = 1
	}

	var income float64
	ab, aok := incomeBracket(a.ProfessionalInfo.AnnualIncome)
	bb, bok := incomeBracket(b.ProfessionalInfo.AnnualIncome)
	if aok && bok {
		d := ab - bb
		if d < 0 {
			d = -d
		}
		income = 1 - float64(d)/float64(len(incomeBrackets))
	}
	return 0.5*occ + 0.5*income
}

// Upper bounds of the income brackets below the top one.
var incomeBrackets = []int{30_000, 60_000, 100_000, 150_000}

func incomeBracket(income int) (int, bool) {
	if income <= 0 {
		return 0, false
	}
	for i, limit := range incomeBrackets {
		if income < limit {
			return i, true
		}
	}
	return len(incomeBrackets), true
}

// BudgetCompatible reports whether both users have a budget and the ranges
// overlap.
func BudgetCompatible(a, b *model.User) bool {
	ab, ok := a.Budget()
	if !ok {
		return false
	}
	bb, ok := b.Budget()
	if !ok {
		return false
	}
	return ab.Overlaps(bb)
}

// CommonLocations returns the entries of source whose id other also selected,
// in source order.
func CommonLocations(source, other *model.User) []model.LocationPreference {
	ids := idSet(other.HousingInfo.SelectedLocations)
	common := []model.LocationPreference{}
	for _, loc := range source.HousingInfo.SelectedLocations {
		if _, ok := ids[loc.ID]; ok {
			common = append(common, loc)
		}
	}
	return common
}

// Quality is a coarse label for a score.
type Quality string

const (
	QualityExcellent Quality = "excellent"
	QualityGood      Quality = "good"
	QualityFair      Quality = "fair"
	QualityPoor      Quality = "poor"
	QualityNone      Quality = "none"
)

func QualityOf(score int) Quality {
	switch {
	case score >= 80:
		return QualityExcellent
	case score >= 60:
		return QualityGood
	case score >= 40:
		return QualityFair
	case score >= 20:
		return QualityPoor
	}
	return QualityNone
}

// Result is the evaluation of one candidate against an anchor user.
type Result struct {
	Counterpart           *model.User                `json:"user"`
	Score                 int                        `json:"compatibilityScore"`
	CommonLocations       []model.LocationPreference `json:"commonLocations"`
	BudgetCompatible      bool                       `json:"budgetCompatible"`
	LifestyleMatchPercent int                        `json:"lifestyleMatch"`
	Quality               Quality                    `json:"matchQuality"`
}

// Evaluate scores candidate against anchor. CommonLocations are listed in
// the candidate's order.
func (e *Engine) Evaluate(anchor, candidate *model.User) Result {
	score := e.Score(anchor, candidate)
	return Result{
		Counterpart:           candidate,
		Score:                 score,
		CommonLocations:       CommonLocations(candidate, anchor),
		BudgetCompatible:      BudgetCompatible(anchor, candidate),
		LifestyleMatchPercent: clampScore(roundHalfUp(100 * LifestyleFraction(anchor, candidate))),
		Quality:               QualityOf(score),
	}
}

func equalFraction(fields []string, a, b func(string) string) float64 {
	if len(fields) == 0 {
		return 0
	}
	matches := 0
	for _, f := range fields {
		if av := a(f); av != "" && av == b(f) {
			matches++
		}
	}
	return float64(matches) / float64(len(fields))
}

func idSet(locs []model.LocationPreference) map[string]struct{} {
	set := make(map[string]struct{}, len(locs))
	for _, loc := range locs {
		set[loc.ID] = struct{}{}
	}
	return set
}

// roundHalfUp absorbs the error of the weighted sum, so an exact half such as
// 100*0.3*0.75 still rounds up. Scores are ratios of small integers, so no
// true value lies within roundingSlack of a half.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5 + roundingSlack))
}

const roundingSlack = 1e-9

func clampScore(s int) int {
	return max(0, min(100, s))
}
