package main

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/roomiematch/roomiematch/backend/model"
	"github.com/roomiematch/roomiematch/backend/store"
)

// ctxKey is the key type for values this package stores in a context.
type ctxKey string

const userIDKey ctxKey = "userID"

const (
	minUsernameLen = 3
	maxUsernameLen = 30
	minPasswordLen = 8
)

var signupFields = []string{"username", "email", "password", "firstName", "lastName", "sex"}

// currentUserID returns the authenticated user id, or "" on public routes.
func currentUserID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

func (a *app) issueToken(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"iat":     now.Unix(),
		"exp":     now.Add(a.cfg.JWTTTL).Unix(),
	})
	return token.SignedString([]byte(a.cfg.JWTSecret))
}

// authenticate rejects requests without a valid bearer token and stores the
// token's user id in the request context.
func (a *app) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeErrorDetails(w, http.StatusUnauthorized, "unauthorized", "No token, authorization denied", nil)
			return
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
			return []byte(a.cfg.JWTSecret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
		if err != nil || !token.Valid {
			writeErrorDetails(w, http.StatusUnauthorized, "invalid_token", "Token is not valid", nil)
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			writeErrorDetails(w, http.StatusUnauthorized, "invalid_token", "Token is not valid", nil)
			return
		}
		userID, ok := claims["user_id"].(string)
		if !ok || userID == "" {
			writeErrorDetails(w, http.StatusUnauthorized, "invalid_token", "Token is not valid", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

// selfOnly lets a request through only when the {userId} path parameter
// names the authenticated user.
func selfOnly(userID string, w http.ResponseWriter, r *http.Request) bool {
	if userID != currentUserID(r) {
		writeErrorDetails(w, http.StatusForbidden, "forbidden", "You can only access your own account", nil)
		return false
	}
	return true
}

type signupRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Sex       string `json:"sex"`
}

func (req *signupRequest) normalize() {
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FirstName = model.CleanText(req.FirstName)
	req.LastName = model.CleanText(req.LastName)
	req.Sex = strings.TrimSpace(req.Sex)
}

func (req *signupRequest) missing() bool {
	return req.Username == "" || req.Email == "" || req.Password == "" ||
		req.FirstName == "" || req.LastName == "" || req.Sex == ""
}

func (req *signupRequest) validate() *model.ValidationError {
	verr := &model.ValidationError{}
	if n := utf8.RuneCountInString(req.Username); n < minUsernameLen || n > maxUsernameLen {
		verr.Errors = append(verr.Errors, model.FieldError{Field: "username", Message: "Username must be between 3 and 30 characters"})
	}
	if addr, err := mail.ParseAddress(req.Email); err != nil || addr.Address != req.Email {
		verr.Errors = append(verr.Errors, model.FieldError{Field: "email", Message: "Please enter a valid email"})
	}
	if len(req.Password) < minPasswordLen {
		verr.Errors = append(verr.Errors, model.FieldError{Field: "password", Message: "Password must be at least 8 characters"})
	}
	if len(verr.Errors) == 0 {
		return nil
	}
	return verr
}

func quickSignupHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signupRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		req.normalize()

		if req.missing() {
			writeErrorDetails(w, http.StatusBadRequest, "missing_fields", "All fields are required",
				map[string]any{"required": signupFields})
			return
		}
		if !model.ValidOption(model.FieldSex, req.Sex) {
			writeErrorDetails(w, http.StatusBadRequest, "invalid_sex", `Invalid sex value. Must be "male" or "female"`, nil)
			return
		}
		if verr := req.validate(); verr != nil {
			a.writeStoreError(w, r, verr)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), a.cfg.BcryptCost)
		if err != nil {
			a.serverError(w, r, "hash password", err)
			return
		}

		now := time.Now().UTC()
		u := &model.User{
			ID: uuid.NewString(),
			Account: model.Account{
				Username:     req.Username,
				Email:        req.Email,
				PasswordHash: string(hash),
			},
			PersonalInfo: model.PersonalInfo{
				FirstName: req.FirstName,
				LastName:  req.LastName,
				Sex:       []string{req.Sex},
			},
			Metadata: model.Metadata{
				IsActive:         true,
				RegistrationDate: now,
				LastLogin:        &now,
				IPAddress:        r.RemoteAddr,
				UserAgent:        r.UserAgent(),
			},
		}
		refreshCompleteness(u)

		if err := a.store.Create(r.Context(), u); err != nil {
			a.writeStoreError(w, r, err)
			return
		}

		token, err := a.issueToken(u.ID)
		if err != nil {
			a.serverError(w, r, "sign token", err)
			return
		}
		a.log.Info("user signed up", zap.String("user_id", u.ID))

		writeJSON(w, http.StatusCreated, map[string]any{
			"message":  "Account created successfully!",
			"token":    token,
			"user":     newAccountSummary(u),
			"nextStep": model.SignupNextStep,
		})
	}
}

func loginHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		req.Email = strings.ToLower(strings.TrimSpace(req.Email))
		if req.Email == "" || req.Password == "" {
			writeErrorDetails(w, http.StatusBadRequest, "missing_fields", "Email and password are required",
				map[string]any{"required": []string{"email", "password"}})
			return
		}

		u, err := a.store.FindByEmail(r.Context(), req.Email)
		if errors.Is(err, store.ErrNotFound) {
			writeErrorDetails(w, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials", nil)
			return
		} else if err != nil {
			a.serverError(w, r, "find user by email", err)
			return
		}

		// Compare the provided password with the stored hash
		if err := bcrypt.CompareHashAndPassword([]byte(u.Account.PasswordHash), []byte(req.Password)); err != nil {
			writeErrorDetails(w, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials", nil)
			return
		}

		updated, err := a.store.Mutate(r.Context(), u.ID, func(u *model.User) error {
			now := time.Now().UTC()
			u.Metadata.LastLogin = &now
			return nil
		})
		if err != nil {
			// Don't fail login, just log the error
			a.log.Warn("update last login", zap.Error(err), zap.String("user_id", u.ID))
			updated = u
		}

		token, err := a.issueToken(u.ID)
		if err != nil {
			a.serverError(w, r, "sign token", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token": token,
			"user":  newAccountSummary(updated),
		})
	}
}

func meHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := a.store.Get(r.Context(), currentUserID(r))
		if err != nil {
			a.writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newProfileView(u))
	}
}
