package handler

import (
	"net/http"

	"github.com/drugorders/identity-service/internal/http/response"
	"github.com/drugorders/identity-service/internal/service"
)

type AdminHandler struct {
	users service.UserServiceInterface
}

func NewAdminHandler(users service.UserServiceInterface) *AdminHandler {
	return &AdminHandler{users: users}
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"users": users, "count": len(users)})
}
