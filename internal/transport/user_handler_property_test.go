package transport

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketplace/internal/service"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func newUserHandlerFixture() (*mockUserRepository, service.UserService, *UserHandler) {
	userRepo := newMockUserRepository()
	userService := service.NewUserService(userRepo, testSecret, time.Hour, nopLogger)
	return userRepo, userService, NewUserHandler(userService, nopLogger)
}

// Feature: marketplace, Property 14: Invalid registration data is rejected
func TestProperty_InvalidRegistrationDataIsRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("registration with invalid data returns validation errors", prop.ForAll(
		func(invalidCase int) bool {
			_, _, handler := newUserHandlerFixture()

			var reqBody RegisterRequest
			switch invalidCase % 4 {
			case 0:
				reqBody = RegisterRequest{Email: "", Username: "john", Password: "ValidPass123"}
			case 1:
				reqBody = RegisterRequest{Email: "not-an-email", Username: "john", Password: "ValidPass123"}
			case 2:
				reqBody = RegisterRequest{Email: "test@example.com", Username: "john", Password: "short"}
			case 3:
				reqBody = RegisterRequest{Email: "test@example.com", Password: "ValidPass123"}
			}

			body, _ := json.Marshal(reqBody)
			req := httptest.NewRequest(http.MethodPost, "/api/users/register", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			handler.Register(w, req)

			if w.Code != http.StatusBadRequest {
				t.Logf("FAIL: Expected 400 status code, got %d", w.Code)
				return false
			}

			var response map[string]interface{}
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Logf("FAIL: Could not decode error response: %v", err)
				return false
			}
			_, exists := response["error"]
			return exists
		},
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: marketplace, Property 15: Successful registration returns profile data
func TestProperty_SuccessfulRegistrationReturnsProfileData(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("successful registration returns the account", prop.ForAll(
		func(email, username, password string) bool {
			_, _, handler := newUserHandlerFixture()

			body, _ := json.Marshal(RegisterRequest{Email: email, Username: username, Password: password})
			req := httptest.NewRequest(http.MethodPost, "/api/users/register", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			handler.Register(w, req)

			if w.Code != http.StatusCreated {
				t.Logf("FAIL: Expected 201 status code, got %d", w.Code)
				return false
			}

			var profile UserProfile
			if err := json.NewDecoder(w.Body).Decode(&profile); err != nil {
				t.Logf("FAIL: Could not decode response: %v", err)
				return false
			}
			if _, err := uuid.Parse(profile.ID); err != nil {
				t.Logf("FAIL: Profile ID is not a valid UUID: %v", err)
				return false
			}
			return profile.Email == email && profile.Username == username && profile.Role == "user" && !profile.IsPrivileged
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[a-z]{3,12}`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: marketplace, Property 16: Valid login returns an access token
func TestProperty_ValidLoginReturnsAccessToken(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("valid login returns a token for the same user", prop.ForAll(
		func(email, username, password string) bool {
			_, userService, handler := newUserHandlerFixture()

			if _, err := userService.Register(t.Context(), email, username, password); err != nil {
				t.Logf("FAIL: Register failed: %v", err)
				return false
			}

			body, _ := json.Marshal(LoginRequest{Email: email, Password: password})
			req := httptest.NewRequest(http.MethodPost, "/api/users/login", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			handler.Login(w, req)

			if w.Code != http.StatusOK {
				t.Logf("FAIL: Expected 200 status code, got %d", w.Code)
				return false
			}

			var loginResp LoginResponse
			if err := json.NewDecoder(w.Body).Decode(&loginResp); err != nil {
				t.Logf("FAIL: Could not decode login response: %v", err)
				return false
			}

			claims, err := userService.ValidateToken(loginResp.AccessToken)
			if err != nil {
				t.Logf("FAIL: Access token validation failed: %v", err)
				return false
			}
			return claims.UserID.String() == loginResp.User.ID && claims.Username == username
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[a-z]{3,12}`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRegisterDuplicateReturnsConflict(t *testing.T) {
	_, _, handler := newUserHandlerFixture()
	body, _ := json.Marshal(RegisterRequest{Email: "ann@example.com", Username: "ann", Password: "password123"})

	codes := []int{}
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.Register(w, httptest.NewRequest(http.MethodPost, "/api/users/register", bytes.NewReader(body)))
		codes = append(codes, w.Code)
	}

	if codes[0] != http.StatusCreated || codes[1] != http.StatusConflict {
		t.Fatalf("expected 201 then 409, got %v", codes)
	}
}

func TestMeRequiresToken(t *testing.T) {
	_, userService, handler := newUserHandlerFixture()
	router := newRouter(handler)

	user, err := userService.Register(t.Context(), "ann@example.com", "ann", "password123")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users/me", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("Authorization", bearer(t, user.ID, user.Role))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var profile UserProfile
	json.NewDecoder(w.Body).Decode(&profile)
	if w.Code != http.StatusOK || profile.ID != user.ID.String() {
		t.Fatalf("expected own profile, got %d %+v", w.Code, profile)
	}
}
