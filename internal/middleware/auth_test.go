package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rgoodwin/beacon/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Stubs
// =============================================================================

// stubUserService resolves a single session token to a fixed user.
type stubUserService struct {
	token string
	user  *domain.User
}

func (s *stubUserService) Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error) {
	return nil, domain.Errorf(domain.ENOTIMPL, "", "not implemented")
}

func (s *stubUserService) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	return nil, domain.Errorf(domain.ENOTIMPL, "", "not implemented")
}

func (s *stubUserService) Logout(ctx context.Context, token string) error { return nil }

func (s *stubUserService) LogoutAll(ctx context.Context, userID uuid.UUID) error { return nil }

func (s *stubUserService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return nil, domain.NotFound("", "user", id.String())
}

func (s *stubUserService) GetBySessionToken(ctx context.Context, token string) (*domain.User, error) {
	if s.user != nil && token == s.token {
		return s.user, nil
	}
	return nil, domain.Unauthorized("", "Invalid or expired session")
}

func (s *stubUserService) UpdateProfile(ctx context.Context, params domain.ProfileUpdateParams) error {
	return nil
}

func (s *stubUserService) DeleteExpiredSessions(ctx context.Context) error { return nil }

// =============================================================================
// Helpers
// =============================================================================

func newAuthMiddleware(user *domain.User) *AuthMiddleware {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAuthMiddleware(&stubUserService{token: "valid-token", user: user}, logger, false)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func sessionRequest(method, target string, withCookie bool) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	if withCookie {
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid-token"})
	}
	return req
}

func regularUser() *domain.User {
	return &domain.User{ID: uuid.New(), Email: "user@example.com", Role: domain.RoleRegular}
}

func adminUser() *domain.User {
	return &domain.User{ID: uuid.New(), Email: "admin@example.com", Role: domain.RoleAdmin}
}

// =============================================================================
// RequireUser
// =============================================================================

func TestRequireUserRedirectsAnonymous(t *testing.T) {
	mw := newAuthMiddleware(nil)
	h := Stack(mw.WithUser, mw.RequireUser)(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, sessionRequest("GET", "/dashboard", false))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "/login")
	assert.Contains(t, rec.Header().Get("Location"), "return_to=/dashboard")
}

func TestRequireUserReturns401ForAPI(t *testing.T) {
	mw := newAuthMiddleware(nil)
	h := Stack(mw.WithUser, mw.RequireUser)(okHandler())

	req := sessionRequest("GET", "/api/reports", false)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireUserPassesAuthenticated(t *testing.T) {
	mw := newAuthMiddleware(regularUser())
	h := Stack(mw.WithUser, mw.RequireUser)(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, sessionRequest("GET", "/dashboard", true))

	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// RequireAdmin
// =============================================================================

func TestRequireAdminSendsNonAdminToDashboard(t *testing.T) {
	// A signed-in non-admin lands on /dashboard, never back at sign-in.
	mw := newAuthMiddleware(regularUser())
	h := Stack(mw.WithUser, mw.RequireAdmin)(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, sessionRequest("GET", "/admin", true))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
}

func TestRequireAdminReturns403ForNonAdminAPI(t *testing.T) {
	mw := newAuthMiddleware(regularUser())
	h := Stack(mw.WithUser, mw.RequireAdmin)(okHandler())

	req := sessionRequest("GET", "/api/reports", true)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireAdminRedirectsAnonymousToLogin(t *testing.T) {
	mw := newAuthMiddleware(nil)
	h := Stack(mw.WithUser, mw.RequireAdmin)(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, sessionRequest("GET", "/admin", false))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "/login")
}

func TestRequireAdminPassesAdmin(t *testing.T) {
	mw := newAuthMiddleware(adminUser())
	h := Stack(mw.WithUser, mw.RequireAdmin)(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, sessionRequest("GET", "/admin", true))

	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// PublicOnly
// =============================================================================

func TestPublicOnlyPassesAnonymous(t *testing.T) {
	mw := newAuthMiddleware(nil)
	h := Stack(mw.WithUser, mw.PublicOnly)(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, sessionRequest("GET", "/login", false))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPublicOnlyRedirectsByRole(t *testing.T) {
	tests := []struct {
		name    string
		user    *domain.User
		landing string
	}{
		{"regular user", regularUser(), "/dashboard"},
		{"admin user", adminUser(), "/admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := newAuthMiddleware(tt.user)
			h := Stack(mw.WithUser, mw.PublicOnly)(okHandler())

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, sessionRequest("GET", "/login", true))

			require.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Equal(t, tt.landing, rec.Header().Get("Location"))
		})
	}
}

// =============================================================================
// WithUser
// =============================================================================

func TestWithUserClearsInvalidSessionCookie(t *testing.T) {
	mw := newAuthMiddleware(nil)

	var seenUser *domain.User
	h := mw.WithUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser = GetUser(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "stale-token"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Nil(t, seenUser)

	// The stale cookie is expired on the response.
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, SessionCookieName, cookies[0].Name)
	assert.Equal(t, -1, cookies[0].MaxAge)
}
