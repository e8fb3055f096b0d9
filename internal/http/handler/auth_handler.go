package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/drugorders/identity-service/internal/domain"
	"github.com/drugorders/identity-service/internal/http/middleware"
	"github.com/drugorders/identity-service/internal/http/response"
	"github.com/drugorders/identity-service/internal/observability"
	"github.com/drugorders/identity-service/internal/security"
	"github.com/drugorders/identity-service/internal/service"
)

type AuthHandler struct {
	auth       service.AuthServiceInterface
	cookie     security.CookieConfig
	sessionTTL time.Duration
}

func NewAuthHandler(auth service.AuthServiceInterface, cookie security.CookieConfig, sessionTTL time.Duration) *AuthHandler {
	return &AuthHandler{auth: auth, cookie: cookie, sessionTTL: sessionTTL}
}

type registerRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	ID          int64        `json:"id"`
	Username    string       `json:"username"`
	Token       string       `json:"token"`
	User        *domain.User `json:"user"`
	SessionTTLS int64        `json:"session_ttl_seconds"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		response.FromError(w, r, err)
		return
	}
	res, err := h.auth.Register(r.Context(), service.RegisterInput{
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	})
	if err != nil {
		observability.Audit(r, "auth.register", "username", req.Username, "outcome", "failure")
		response.FromError(w, r, err)
		return
	}
	observability.Audit(r, "auth.register", "username", res.User.Username, "user_id", res.User.ID, "outcome", "success")
	h.writeAuth(w, r, http.StatusCreated, res)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		response.FromError(w, r, err)
		return
	}
	res, err := h.auth.Login(r.Context(), service.LoginInput{
		Username: req.Username,
		Password: req.Password,
		ClientIP: middleware.ClientIP(r),
	})
	if err != nil {
		observability.Audit(r, "auth.login", "username", req.Username, "outcome", "failure")
		var throttled *service.LoginThrottledError
		if errors.As(err, &throttled) {
			w.Header().Set("Retry-After", retryAfterSeconds(throttled.RetryAfter))
			response.Error(w, r, http.StatusTooManyRequests, "LOGIN_THROTTLED", "too many failed login attempts", nil)
			return
		}
		response.FromError(w, r, err)
		return
	}
	observability.Audit(r, "auth.login", "username", res.User.Username, "user_id", res.User.ID, "outcome", "success")
	h.writeAuth(w, r, http.StatusOK, res)
}

// Logout invalidates whatever credentials accompany the request: the session
// cookie and the bearer token, if present.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	in := service.LogoutInput{SessionID: security.GetCookie(r, h.cookie.Name)}
	if token, ok := security.BearerToken(r); ok {
		in.Token = token
	}
	if err := h.auth.Logout(r.Context(), in); err != nil {
		response.FromError(w, r, err)
		return
	}
	security.ClearSessionCookie(w, h.cookie)
	observability.Audit(r, "auth.logout", "username", id.User.Username, "credential", string(id.Kind))
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (h *AuthHandler) RevokeAllTokens(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	n, err := h.auth.RevokeAllTokens(r.Context(), id.User.Username)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	observability.Audit(r, "auth.tokens.revoke_all", "username", id.User.Username, "count", n)
	response.JSON(w, r, http.StatusOK, map[string]int{"revoked": n})
}

func (h *AuthHandler) writeAuth(w http.ResponseWriter, r *http.Request, status int, res *service.AuthResult) {
	security.SetSessionCookie(w, h.cookie, res.SessionID, h.sessionTTL)
	response.JSON(w, r, status, authResponse{
		ID:          res.User.ID,
		Username:    res.User.Username,
		Token:       res.Token,
		User:        res.User,
		SessionTTLS: int64(h.sessionTTL.Seconds()),
	})
}

func retryAfterSeconds(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
