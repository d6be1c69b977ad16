package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/rgoodwin/beacon/internal/auth"
	"github.com/rgoodwin/beacon/internal/domain"
	"github.com/rgoodwin/beacon/internal/service"
)

// ProfileHandler handles the signed-in user's profile.
//
// Routes handled:
// - GET /api/profile -> Show
// - PUT /api/profile -> Update
type ProfileHandler struct {
	userService service.UserService
	logger      *slog.Logger
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(userService service.UserService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		userService: userService,
		logger:      logger,
	}
}

// Show returns the current user's profile.
func (h *ProfileHandler) Show(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"user": toUserResponse(user)})
}

type profileUpdateRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// Update modifies the current user's profile fields.
//
// Email and role are not editable through this endpoint.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req profileUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	err := h.userService.UpdateProfile(r.Context(), domain.ProfileUpdateParams{
		UserID:  user.ID,
		Name:    strings.TrimSpace(req.Name),
		Phone:   strings.TrimSpace(req.Phone),
		Address: strings.TrimSpace(req.Address),
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	updated, err := h.userService.GetByID(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.logger.Info("profile updated", "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": toUserResponse(updated)})
}
