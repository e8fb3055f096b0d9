package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/drugorders/identity-service/internal/domain"
	"github.com/drugorders/identity-service/internal/http/middleware"
	"github.com/drugorders/identity-service/internal/http/response"
	"github.com/drugorders/identity-service/internal/observability"
	"github.com/drugorders/identity-service/internal/service"
)

type UserHandler struct {
	users service.UserServiceInterface
}

func NewUserHandler(users service.UserServiceInterface) *UserHandler {
	return &UserHandler{users: users}
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	response.JSON(w, r, http.StatusOK, id.User)
}

// Get returns the caller's own profile. Any other id is forbidden, whatever
// the caller's privileges.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	target, ok := h.authorizeTarget(w, r)
	if !ok {
		return
	}
	user, err := h.users.GetByID(r.Context(), target)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, user)
}

// Update changes first name, last name and email of the caller's own profile.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	target, ok := h.authorizeTarget(w, r)
	if !ok {
		return
	}
	var update domain.ProfileUpdate
	if err := decodeJSON(r, &update); err != nil {
		response.FromError(w, r, err)
		return
	}
	user, err := h.users.UpdateProfile(r.Context(), target, update)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	observability.Audit(r, "user.profile.update", "user_id", user.ID)
	response.JSON(w, r, http.StatusOK, user)
}

func (h *UserHandler) authorizeTarget(w http.ResponseWriter, r *http.Request) (int64, bool) {
	target, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || target <= 0 {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid user id", nil)
		return 0, false
	}
	id := middleware.IdentityFromContext(r.Context())
	if id.User == nil || id.User.ID != target {
		response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "cannot access another user's profile", nil)
		return 0, false
	}
	return target, true
}
