package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nexus-collab/apiserver/internal/services"
	"github.com/nexus-collab/apiserver/internal/store"
	"github.com/nexus-collab/apiserver/types"
	"go.uber.org/zap"
)

const (
	accessTokenCookie  = "access_token"
	refreshTokenCookie = "refresh_token"
)

// Authenticator validates access tokens.
type Authenticator interface {
	Authenticate(accessToken string) (userID int, role string, err error)
}

// AuthHandler provides JWT authentication endpoints.
type AuthHandler struct {
	authService   *services.AuthService
	userService   *services.UserService
	secureCookies bool
	logger        *zap.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(authService *services.AuthService, userService *services.UserService, secureCookies bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		userService:   userService,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Post("/refresh", handler.Refresh)
	r.With(authMiddleware).Post("/logout", handler.Logout)
	r.With(authMiddleware).Get("/me", handler.Me)
}

// RequireAuth enforces bearer authentication and injects the caller's id and
// role into the request context. The access_token cookie is accepted when no
// Authorization header is sent.
func RequireAuth(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			userID, role, err := authn.Authenticate(tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), userID, role)))
		})
	}
}

// UserGetter loads users by id.
type UserGetter interface {
	GetByID(ctx context.Context, id int) (types.User, error)
}

// RequireAdmin only lets global admins through. The role is read from the
// database so demotions apply before the access token expires.
func RequireAdmin(users UserGetter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := userIDFromContext(r.Context())
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			user, err := users.GetByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					writeError(w, http.StatusUnauthorized, "unauthorized")
					return
				}
				writeError(w, http.StatusInternalServerError, "failed to load user")
				return
			}

			if !user.IsAdmin() {
				writeError(w, http.StatusForbidden, "admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Register creates a new user account and returns a token pair.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.authService.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		writeServiceError(w, h.logger, err, "user")
		return
	}

	h.setSessionCookies(w, session)
	writeJSON(w, http.StatusCreated, newAuthResponse(session))
}

// Login verifies credentials and returns a token pair.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, h.logger, err, "user")
		return
	}

	h.setSessionCookies(w, session)
	writeJSON(w, http.StatusOK, newAuthResponse(session))
}

// Refresh exchanges a refresh token from the body or cookie for a new pair.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		if cookie, err := r.Cookie(refreshTokenCookie); err == nil {
			req.RefreshToken = cookie.Value
		}
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	session, err := h.authService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, h.logger, err, "user")
		return
	}

	h.setSessionCookies(w, session)
	writeJSON(w, http.StatusOK, newAuthResponse(session))
}

// Logout revokes the refresh token and clears the session cookies.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.authService.Logout(r.Context(), userID); err != nil {
		writeServiceError(w, h.logger, err, "user")
		return
	}

	h.clearSessionCookies(w)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "logged out"})
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeServiceError(w, h.logger, err, "user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) setSessionCookies(w http.ResponseWriter, session services.Session) {
	http.SetCookie(w, h.cookie(accessTokenCookie, session.AccessToken, session.AccessExpiresAt))
	http.SetCookie(w, h.cookie(refreshTokenCookie, session.RefreshToken, session.RefreshExpiresAt))
}

func (h *AuthHandler) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{accessTokenCookie, refreshTokenCookie} {
		cookie := h.cookie(name, "", time.Unix(0, 0))
		cookie.MaxAge = -1
		http.SetCookie(w, cookie)
	}
}

func (h *AuthHandler) cookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type AuthResponse struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresAt    time.Time  `json:"expires_at"`
	User         types.User `json:"user"`
}

func newAuthResponse(session services.Session) AuthResponse {
	return AuthResponse{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		ExpiresAt:    session.AccessExpiresAt,
		User:         session.User,
	}
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		if cookie, err := r.Cookie(accessTokenCookie); err == nil && strings.TrimSpace(cookie.Value) != "" {
			return strings.TrimSpace(cookie.Value), nil
		}
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
