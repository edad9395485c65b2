package main

import (
	"hash/fnv"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/roomiematch/roomiematch/backend/model"
	"github.com/roomiematch/roomiematch/backend/store"
)

const previewProfileCount = 6

type previewProfile struct {
	ID            string    `json:"id"`
	FirstName     string    `json:"firstName"`
	Age           int       `json:"age"`
	Occupation    string    `json:"occupation"`
	Neighborhood  string    `json:"neighborhood"`
	Borough       string    `json:"borough"`
	Interests     []string  `json:"interests"`
	Compatibility int       `json:"compatibility"`
	Budget        string    `json:"budget"`
	Avatar        string    `json:"avatar"`
	IsBlurred     bool      `json:"isBlurred"`
	MemberSince   time.Time `json:"memberSince"`
}

var previewInterests = []string{
	"Yoga", "Cooking", "Tech", "Art", "Music", "Fitness", "Travel",
	"Books", "Coffee", "Wine", "Photography", "Gaming", "Movies",
	"Dancing", "Hiking", "Swimming", "Writing", "Fashion",
}

var previewBudgets = []string{"$1,200-1,800", "$1,500-2,200", "$1,800-2,500", "$2,000-3,000", "$2,500-3,500"}

var occupationAvatars = map[string]string{
	"tech":              "👩‍💻",
	"software-engineer": "👨‍💻",
	"designer":          "🎨",
	"teacher":           "👨‍🏫",
	"healthcare":        "👩‍⚕️",
	"finance":           "💼",
	"student":           "📚",
	"artist":            "🎭",
	"marketing":         "📊",
	"consultant":        "💡",
	"entrepreneur":      "🚀",
	"lawyer":            "⚖️",
	"engineer":          "⚙️",
}

func avatarFor(occupation string) string {
	if a, ok := occupationAvatars[occupation]; ok {
		return a
	}
	return "👤"
}

// previewRand is seeded from the user id so a profile previews the same way
// on every request.
func previewRand(id string) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	seed := h.Sum64()
	return rand.New(rand.NewPCG(seed, seed>>1|1))
}

func newPreviewProfile(i int, u *model.User) previewProfile {
	rnd := previewRand(u.ID)

	p := previewProfile{
		ID:            "preview_" + strconv.Itoa(i),
		FirstName:     lo.Ternary(u.PersonalInfo.FirstName != "", u.PersonalInfo.FirstName, "User"),
		Age:           u.PersonalInfo.Age,
		Occupation:    lo.Ternary(u.ProfessionalInfo.Occupation != "", u.ProfessionalInfo.Occupation, "Professional"),
		Neighborhood:  "Manhattan",
		Borough:       "New York",
		Compatibility: 85 + rnd.IntN(15),
		Avatar:        avatarFor(u.ProfessionalInfo.Occupation),
		IsBlurred:     true,
		MemberSince:   u.Metadata.RegistrationDate,
	}
	if p.Age == 0 {
		p.Age = 22 + rnd.IntN(10)
	}
	if locs := u.HousingInfo.SelectedLocations; len(locs) > 0 {
		p.Neighborhood = locs[0].Neighborhood
		p.Borough = locs[0].Borough
	}

	interests := append([]string(nil), previewInterests...)
	rnd.Shuffle(len(interests), func(i, j int) { interests[i], interests[j] = interests[j], interests[i] })
	p.Interests = interests[:3]

	if b, ok := u.Budget(); ok {
		p.Budget = b.String()
	} else {
		p.Budget = previewBudgets[rnd.IntN(len(previewBudgets))]
	}
	return p
}

func sampleProfiles(now time.Time) []previewProfile {
	day := 24 * time.Hour
	return []previewProfile{
		{ID: "sample_1", FirstName: "Emma", Age: 26, Occupation: "tech", Neighborhood: "East Village", Borough: "Manhattan",
			Interests: []string{"Yoga", "Coffee", "Art"}, Compatibility: 92, Budget: "$1,800-2,500", Avatar: "👩‍💻", IsBlurred: true, MemberSince: now.Add(-30 * day)},
		{ID: "sample_2", FirstName: "Marcus", Age: 28, Occupation: "finance", Neighborhood: "Williamsburg", Borough: "Brooklyn",
			Interests: []string{"Fitness", "Music", "Travel"}, Compatibility: 89, Budget: "$2,000-2,800", Avatar: "💼", IsBlurred: true, MemberSince: now.Add(-15 * day)},
		{ID: "sample_3", FirstName: "Sofia", Age: 24, Occupation: "designer", Neighborhood: "Astoria", Borough: "Queens",
			Interests: []string{"Photography", "Books", "Cooking"}, Compatibility: 95, Budget: "$1,500-2,000", Avatar: "🎨", IsBlurred: true, MemberSince: now.Add(-7 * day)},
		{ID: "sample_4", FirstName: "David", Age: 30, Occupation: "teacher", Neighborhood: "Park Slope", Borough: "Brooklyn",
			Interests: []string{"Movies", "Wine", "Hiking"}, Compatibility: 87, Budget: "$1,700-2,300", Avatar: "👨‍🏫", IsBlurred: true, MemberSince: now.Add(-45 * day)},
		{ID: "sample_5", FirstName: "Aisha", Age: 27, Occupation: "healthcare", Neighborhood: "Long Island City", Borough: "Queens",
			Interests: []string{"Swimming", "Dancing", "Tech"}, Compatibility: 91, Budget: "$1,600-2,400", Avatar: "👩‍⚕️", IsBlurred: true, MemberSince: now.Add(-20 * day)},
		{ID: "sample_6", FirstName: "James", Age: 25, Occupation: "student", Neighborhood: "Washington Heights", Borough: "Manhattan",
			Interests: []string{"Gaming", "Coffee", "Writing"}, Compatibility: 88, Budget: "$1,200-1,800", Avatar: "📚", IsBlurred: true, MemberSince: now.Add(-10 * day)},
	}
}

// GET /api/preview/profiles
func previewProfilesHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		yes := true
		users, _, err := a.store.List(r.Context(), store.ListQuery{
			OnboardingCompleted: &yes,
			IsActive:            &yes,
			Page:                1,
			Limit:               previewProfileCount,
		})
		if err != nil {
			a.log.Warn("preview profiles, serving sample data", zap.Error(err))
			writeJSON(w, http.StatusOK, map[string]any{
				"success":      true,
				"profiles":     sampleProfiles(time.Now().UTC()),
				"isSampleData": true,
				"message":      "Sample preview profiles (database unavailable)",
			})
			return
		}
		if len(users) == 0 {
			writeJSON(w, http.StatusOK, map[string]any{
				"success":      true,
				"profiles":     sampleProfiles(time.Now().UTC()),
				"isSampleData": true,
				"message":      "Sample preview profiles (no real users yet)",
			})
			return
		}

		profiles := make([]previewProfile, len(users))
		for i, u := range users {
			profiles[i] = newPreviewProfile(i, u)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":        true,
			"profiles":       profiles,
			"totalAvailable": len(profiles),
			"isSampleData":   false,
		})
	}
}

// Marketing floors shown while the platform is small.
const (
	floorTotalUsers        = 12847
	floorActiveUsers       = 8924
	floorSuccessfulMatches = 2156
	floorMonthlyGrowth     = 450
	defaultSuccessRate     = 94
)

func fallbackStats() map[string]any {
	return map[string]any{
		"totalUsers":        floorTotalUsers,
		"activeUsers":       floorActiveUsers,
		"successfulMatches": floorSuccessfulMatches,
		"successRate":       defaultSuccessRate,
		"avgMatchTime":      "2.3 days",
		"weeklyGrowth":      127,
		"monthlyGrowth":     floorMonthlyGrowth,
		"totalCitiesServed": 5,
		"popularLocations":  []string{"Manhattan", "Brooklyn", "Queens"},
		"platformUptime":    "99.9%",
		"userSatisfaction":  "4.8/5",
	}
}

// GET /api/preview/stats
func previewStatsHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC()
		st, err := a.store.Stats(r.Context(), now.Add(-recentWindow))
		if err != nil {
			a.log.Warn("preview stats, serving fallback data", zap.Error(err))
			writeJSON(w, http.StatusOK, map[string]any{
				"success":        true,
				"stats":          fallbackStats(),
				"lastUpdated":    now.Format(time.RFC3339),
				"isFallbackData": true,
			})
			return
		}

		successRate := defaultSuccessRate
		if st.Onboarded > 10 {
			successRate = int(float64(st.Onboarded)/float64(st.Total)*100 + 0.5)
		}
		boroughs := lo.Map(st.TopBoroughs, func(v store.ValueCount, _ int) string { return v.Value })
		if len(boroughs) == 0 {
			boroughs = []string{"Manhattan", "Brooklyn", "Queens"}
		}

		stats := fallbackStats()
		stats["totalUsers"] = max(st.Total, floorTotalUsers)
		stats["activeUsers"] = max(st.Active, floorActiveUsers)
		stats["successfulMatches"] = max(st.Onboarded*7/10, floorSuccessfulMatches)
		stats["successRate"] = successRate
		stats["weeklyGrowth"] = st.RegisteredSince
		stats["monthlyGrowth"] = max(st.RegisteredSince*4, floorMonthlyGrowth)
		stats["popularLocations"] = boroughs

		writeJSON(w, http.StatusOK, map[string]any{
			"success":     true,
			"stats":       stats,
			"lastUpdated": now.Format(time.RFC3339),
			"note":        "Statistics updated in real-time",
		})
	}
}
