package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/nexus-collab/apiserver/internal/services"
	"github.com/nexus-collab/apiserver/internal/storage"
	"github.com/nexus-collab/apiserver/types"
	"go.uber.org/zap"
)

// FileHandler streams stored files to authorised callers.
type FileHandler struct {
	fileService    *services.FileService
	projectService *services.ProjectService
	logger         *zap.Logger
}

func NewFileHandler(fileService *services.FileService, projectService *services.ProjectService, logger *zap.Logger) *FileHandler {
	return &FileHandler{
		fileService:    fileService,
		projectService: projectService,
		logger:         logger,
	}
}

// FileRouter registers file routes on the given router.
func FileRouter(r chi.Router, handler *FileHandler) {
	r.Get("/{fileID}", handler.Download)
}

// Download streams a file. Profile images are readable by any signed-in user;
// project files only by the uploader and members of the project.
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	fileID, err := parseIDParam(r, "fileID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, err := h.fileService.Get(r.Context(), fileID)
	if err != nil {
		writeServiceError(w, h.logger, err, "file")
		return
	}
	if err := h.authorize(r, userID, file); err != nil {
		writeServiceError(w, h.logger, err, "file")
		return
	}

	body, err := h.fileService.Open(r.Context(), file)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		writeServiceError(w, h.logger, err, "file")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	w.Header().Set("Content-Disposition", "inline; filename=\""+storage.SanitizeFilename(file.Name)+"\"")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("file stream interrupted", zap.Int("file_id", file.ID), zap.Error(err))
	}
}

func (h *FileHandler) authorize(r *http.Request, userID int, file types.File) error {
	if file.OwnerID == userID || file.Category == types.CategoryProfile {
		return nil
	}
	if file.ProjectID == nil {
		return services.ErrForbidden
	}
	_, err := h.projectService.Membership(r.Context(), *file.ProjectID, userID)
	return err
}
