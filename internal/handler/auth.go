// Package handler contains HTTP handlers for the Beacon application.
//
// This file implements authentication handlers for user registration, login,
// and logout functionality.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rgoodwin/beacon/internal/domain"
	"github.com/rgoodwin/beacon/internal/service"
)

// =============================================================================
// Session Cookie Configuration
// =============================================================================

// Session cookie constants - these match the values in middleware/auth.go
// to ensure consistency. If these change, update both locations.
//
// NOTE: These are duplicated from middleware/auth.go to avoid import cycle.
// The middleware package imports handler for error responses, so handler
// cannot import middleware.
const (
	// sessionCookieName is the name of the cookie that stores the session token.
	sessionCookieName = "beacon_session"

	// sessionCookiePath ensures the cookie is sent with all requests.
	sessionCookiePath = "/"

	// sessionCookieMaxAge sets the cookie expiration (7 days = 604800 seconds).
	sessionCookieMaxAge = 7 * 24 * 60 * 60
)

// =============================================================================
// Handler Configuration
// =============================================================================

// LoginThrottle tracks failed sign-in attempts per client.
//
// Implemented by middleware.AuthRateLimiter; declared here as an interface to
// avoid an import cycle with the middleware package.
type LoginThrottle interface {
	RecordFailedLogin(ip string)
	ResetLogin(ip string)
}

// AuthHandler handles authentication-related HTTP requests.
//
// Routes handled:
// - POST /signup -> Register
// - POST /login  -> Login
// - POST /logout -> Logout
type AuthHandler struct {
	userService service.UserService
	throttle    LoginThrottle
	logger      *slog.Logger
	isSecure    bool
}

// NewAuthHandler creates a new AuthHandler with the required dependencies.
func NewAuthHandler(
	userService service.UserService,
	throttle LoginThrottle,
	logger *slog.Logger,
	isSecure bool,
) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		throttle:    throttle,
		logger:      logger,
		isSecure:    isSecure,
	}
}

// =============================================================================
// Response Types
// =============================================================================

// UserResponse is the public shape of a user record.
// The password hash never leaves the service layer.
type UserResponse struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	Role    string `json:"role"`
}

func toUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:      u.ID.String(),
		Email:   u.Email,
		Name:    u.Name,
		Phone:   u.Phone,
		Address: u.Address,
		Role:    string(u.Role),
	}
}

// =============================================================================
// POST /signup - Register
// =============================================================================

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

// Register creates a new account and signs the user in immediately.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	user, err := h.userService.Register(r.Context(), domain.RegisterParams{
		Email:    strings.TrimSpace(strings.ToLower(req.Email)),
		Password: req.Password,
		Name:     strings.TrimSpace(req.Name),
		Phone:    strings.TrimSpace(req.Phone),
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	// Auto-login so the client lands on the dashboard with a session.
	result, err := h.userService.Login(r.Context(), user.Email, req.Password)
	if err != nil {
		// Account exists but the session could not be created; the client
		// can still sign in manually.
		h.logger.Error("post-registration login failed", "error", err, "user_id", user.ID)
		writeJSON(w, http.StatusCreated, map[string]interface{}{"user": toUserResponse(user)})
		return
	}

	setSessionCookie(w, result.Token, h.isSecure)

	h.logger.Info("user registered", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, map[string]interface{}{"user": toUserResponse(result.User)})
}

// =============================================================================
// POST /login - Login
// =============================================================================

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login validates credentials and establishes a session.
//
// Failed attempts feed the auth rate limiter; a successful login resets the
// client's failure window.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	ip := clientIP(r)

	result, err := h.userService.Login(r.Context(), strings.TrimSpace(strings.ToLower(req.Email)), req.Password)
	if err != nil {
		if h.throttle != nil && domain.ErrorCode(err) == domain.EUNAUTHORIZED {
			h.throttle.RecordFailedLogin(ip)
		}
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if h.throttle != nil {
		h.throttle.ResetLogin(ip)
	}

	setSessionCookie(w, result.Token, h.isSecure)

	h.logger.Info("user logged in", "user_id", result.User.ID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": toUserResponse(result.User)})
}

// =============================================================================
// POST /logout - Logout
// =============================================================================

// Logout revokes the current session and clears the cookie. With ?all=true
// every session belonging to the user is revoked, signing them out of all
// devices.
//
// Always clears the cookie, even when the token is already invalid.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		if r.URL.Query().Get("all") == "true" {
			if user, err := h.userService.GetBySessionToken(r.Context(), cookie.Value); err == nil {
				if err := h.userService.LogoutAll(r.Context(), user.ID); err != nil {
					h.logger.Warn("session revocation failed", "error", err)
				}
			}
		} else if err := h.userService.Logout(r.Context(), cookie.Value); err != nil {
			h.logger.Warn("session revocation failed", "error", err)
		}
	}

	clearSessionCookie(w, h.isSecure)
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Cookie Helpers
// =============================================================================

func setSessionCookie(w http.ResponseWriter, token string, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     sessionCookiePath,
		MaxAge:   sessionCookieMaxAge,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     sessionCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// =============================================================================
// Request Helpers
// =============================================================================

// decodeBody parses a JSON request body into dst.
func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.Invalid("", "Request body must be valid JSON")
	}
	return nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// clientIP extracts the client address for rate limiting, preferring proxy
// headers when present.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		return rip
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return host
}
