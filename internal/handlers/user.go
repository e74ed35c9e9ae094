package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/nexus-collab/apiserver/config"
	"github.com/nexus-collab/apiserver/internal/services"
	"go.uber.org/zap"
)

const formFieldProfileImage = "profileImage"

// UserHandler provides HTTP handlers for user profiles.
type UserHandler struct {
	userService *services.UserService
	upload      config.UploadConfig
	logger      *zap.Logger
}

func NewUserHandler(userService *services.UserService, upload config.UploadConfig, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		upload:      withUploadDefaults(upload),
		logger:      logger,
	}
}

// UserRouter registers user routes on the given router.
func UserRouter(r chi.Router, handler *UserHandler, requireAdmin func(http.Handler) http.Handler) {
	r.With(requireAdmin).Get("/all", handler.ListUsers)
	r.Get("/", handler.GetSelf)
	r.Put("/", handler.UpdateSelf)
	r.Put("/status", handler.UpdateStatus)
	r.Get("/{userID}", handler.GetUser)
	r.Put("/{userID}", handler.UpdateUser)
	r.Delete("/{userID}", handler.DeleteUser)
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err, "user")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) GetSelf(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	h.writeUser(w, r, userID)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeUser(w, r, id)
}

func (h *UserHandler) writeUser(w http.ResponseWriter, r *http.Request, id int) {
	user, err := h.userService.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateSelf accepts a multipart form with optional name, password and
// profileImage fields.
func (h *UserHandler) UpdateSelf(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := parseUploadForm(w, r, h.upload); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidForm.Error())
		return
	}

	var update services.ProfileUpdate
	if values, ok := r.PostForm["name"]; ok && len(values) > 0 {
		update.Name = &values[0]
	}
	if values, ok := r.PostForm["password"]; ok && len(values) > 0 && values[0] != "" {
		update.Password = &values[0]
	}
	images, err := readUploads(r.MultipartForm, formFieldProfileImage, 1, h.upload.MaxFileBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(images) == 1 {
		// Parts without a declared type are sniffed by the file service.
		declared := images[0].ContentType
		if declared != "" && declared != "application/octet-stream" && !strings.HasPrefix(declared, "image/") {
			writeError(w, http.StatusBadRequest, "only image files are allowed")
			return
		}
		update.Image = &images[0]
	}

	user, err := h.userService.UpdateSelf(r.Context(), userID, update)
	if err != nil {
		writeServiceError(w, h.logger, err, "user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateUser changes another user's profile; callers must be that user or an
// admin.
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	actorID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	targetID, err := parseIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req UpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userService.UpdateUser(r.Context(), actorID, targetID, services.ProfileUpdate{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req UpdateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	log, err := h.userService.UpdateStatus(r.Context(), userID, req.Status)
	if err != nil {
		writeServiceError(w, h.logger, err, "user")
		return
	}
	writeJSON(w, http.StatusOK, log)
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actorID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	targetID, err := parseIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.userService.Delete(r.Context(), actorID, targetID); err != nil {
		writeServiceError(w, h.logger, err, "user")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "user deleted"})
}

type UpdateUserRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}
