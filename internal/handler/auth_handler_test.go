package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rgoodwin/beacon/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Stubs
// =============================================================================

type stubUserService struct {
	user        *domain.User
	password    string
	loggedOut   []string
	registerErr error
}

func (s *stubUserService) Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error) {
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	s.user = &domain.User{ID: uuid.New(), Email: params.Email, Name: params.Name, Role: domain.RoleRegular}
	s.password = params.Password
	return s.user, nil
}

func (s *stubUserService) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	if s.user == nil || email != s.user.Email || password != s.password {
		return nil, domain.Unauthorized("UserService.Login", "Invalid email or password")
	}
	return &domain.LoginResult{User: s.user, Token: "session-token"}, nil
}

func (s *stubUserService) Logout(ctx context.Context, token string) error {
	s.loggedOut = append(s.loggedOut, token)
	return nil
}

func (s *stubUserService) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	s.loggedOut = append(s.loggedOut, "all:"+userID.String())
	return nil
}

func (s *stubUserService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.user, nil
}

func (s *stubUserService) GetBySessionToken(ctx context.Context, token string) (*domain.User, error) {
	return s.user, nil
}

func (s *stubUserService) UpdateProfile(ctx context.Context, params domain.ProfileUpdateParams) error {
	return nil
}

func (s *stubUserService) DeleteExpiredSessions(ctx context.Context) error { return nil }

type recordingThrottle struct {
	failed []string
	resets []string
}

func (r *recordingThrottle) RecordFailedLogin(ip string) { r.failed = append(r.failed, ip) }
func (r *recordingThrottle) ResetLogin(ip string)        { r.resets = append(r.resets, ip) }

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	return nil
}

// =============================================================================
// Login
// =============================================================================

func TestLoginSetsSessionCookie(t *testing.T) {
	users := &stubUserService{
		user:     &domain.User{ID: uuid.New(), Email: "user@example.com", Role: domain.RoleRegular},
		password: "correct horse",
	}
	throttle := &recordingThrottle{}
	h := NewAuthHandler(users, throttle, testLogger(), false)

	req := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"email":"user@example.com","password":"correct horse"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)
	assert.Equal(t, "session-token", cookie.Value)
	assert.True(t, cookie.HttpOnly)

	assert.Len(t, throttle.resets, 1)
	assert.Empty(t, throttle.failed)
}

func TestLoginFailureFeedsThrottle(t *testing.T) {
	users := &stubUserService{
		user:     &domain.User{ID: uuid.New(), Email: "user@example.com"},
		password: "correct horse",
	}
	throttle := &recordingThrottle{}
	h := NewAuthHandler(users, throttle, testLogger(), false)

	req := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"email":"user@example.com","password":"wrong"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Len(t, throttle.failed, 1)
	assert.Empty(t, throttle.resets)
	assert.Nil(t, sessionCookie(rec))
}

// =============================================================================
// Register
// =============================================================================

func TestRegisterCreatesUserAndSignsIn(t *testing.T) {
	users := &stubUserService{}
	h := NewAuthHandler(users, &recordingThrottle{}, testLogger(), false)

	req := httptest.NewRequest(http.MethodPost, "/signup",
		strings.NewReader(`{"name":"Ada","email":"ADA@Example.com","password":"long enough"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, users.user)
	assert.Equal(t, "ada@example.com", users.user.Email)

	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)
	assert.Equal(t, "session-token", cookie.Value)
}

func TestRegisterConflict(t *testing.T) {
	users := &stubUserService{
		registerErr: domain.Conflict("UserService.Register", "An account with this email already exists"),
	}
	h := NewAuthHandler(users, &recordingThrottle{}, testLogger(), false)

	req := httptest.NewRequest(http.MethodPost, "/signup",
		strings.NewReader(`{"name":"Ada","email":"ada@example.com","password":"long enough"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

// =============================================================================
// Logout
// =============================================================================

func TestLogoutRevokesSessionAndClearsCookie(t *testing.T) {
	users := &stubUserService{}
	h := NewAuthHandler(users, &recordingThrottle{}, testLogger(), false)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "session-token"})
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"session-token"}, users.loggedOut)

	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)
	assert.Equal(t, -1, cookie.MaxAge)
}

func TestLogoutWithoutSessionStillClearsCookie(t *testing.T) {
	h := NewAuthHandler(&stubUserService{}, &recordingThrottle{}, testLogger(), false)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, sessionCookie(rec))
}
