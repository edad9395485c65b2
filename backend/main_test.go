package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/roomiematch/roomiematch/backend/compat"
	"github.com/roomiematch/roomiematch/backend/model"
	"github.com/roomiematch/roomiematch/backend/store"
)

const testJWTSecret = "test-secret-key-for-testing"

// Test helper structures and types
type TestUser struct {
	ID       string
	Email    string
	Password string
	Token    string
}

func testConfig() Config {
	return Config{
		Port:               "0",
		Env:                "test",
		JWTSecret:          testJWTSecret,
		JWTTTL:             time.Hour,
		BcryptCost:         bcrypt.MinCost,
		StoreDriver:        "memory",
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		RateLimit:          100,
		AuthRateLimit:      20,
		RateLimitWindow:    time.Minute,
		MatchScoring:       string(compat.PolicyTwoFactor),
		DraftTTL:           time.Hour,
	}
}

// newTestApp wires an app against the in-memory backends.
func newTestApp(t *testing.T) *app {
	t.Helper()
	cfg := testConfig()
	engine, err := newEngine(cfg)
	require.NoError(t, err)
	return &app{
		cfg:     cfg,
		log:     zap.NewNop(),
		store:   store.NewMemory(),
		drafts:  store.NewMemoryDrafts(),
		engine:  engine,
		started: time.Now(),
	}
}

// createTestUser stores a freshly signed-up user and returns its credentials.
// mutate, when given, edits the document before it is saved.
func createTestUser(t *testing.T, a *app, email, password string, mutate ...func(*model.User)) TestUser {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	u := &model.User{
		ID: uuid.NewString(),
		Account: model.Account{
			Username:     strings.Split(email, "@")[0],
			Email:        email,
			PasswordHash: string(hash),
		},
		PersonalInfo: model.PersonalInfo{FirstName: "Test", LastName: "User", Sex: []string{"female"}},
		Metadata:     model.Metadata{IsActive: true},
	}
	for _, m := range mutate {
		m(u)
	}
	refreshCompleteness(u)
	require.NoError(t, a.store.Create(context.Background(), u))

	token, err := a.issueToken(u.ID)
	require.NoError(t, err)
	return TestUser{ID: u.ID, Email: email, Password: password, Token: token}
}

// onboarded makes a user eligible for matching in the given locations.
func onboarded(lifestyle model.Lifestyle, locationIDs ...string) func(*model.User) {
	return func(u *model.User) {
		for _, id := range locationIDs {
			u.HousingInfo.SelectedLocations = append(u.HousingInfo.SelectedLocations, model.LocationPreference{ID: id})
		}
		u.Lifestyle = lifestyle
		u.Metadata.OnboardingStep = model.FinalOnboardingStep
		u.Metadata.OnboardingCompleted = true
	}
}

func doRequest(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf *bytes.Reader
	switch b := body.(type) {
	case nil:
		buf = bytes.NewReader(nil)
	case string:
		buf = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		buf = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

func getUser(t *testing.T, a *app, id string) *model.User {
	t.Helper()
	u, err := a.store.Get(context.Background(), id)
	require.NoError(t, err)
	return u
}
