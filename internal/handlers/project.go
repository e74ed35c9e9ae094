package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nexus-collab/apiserver/internal/services"
	"go.uber.org/zap"
)

// ProjectHandler provides HTTP handlers for projects and their members.
type ProjectHandler struct {
	projectService *services.ProjectService
	logger         *zap.Logger
}

func NewProjectHandler(projectService *services.ProjectService, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{projectService: projectService, logger: logger}
}

// ProjectRouter registers project routes on the given router.
func ProjectRouter(r chi.Router, handler *ProjectHandler) {
	r.Post("/", handler.CreateProject)
	r.Get("/", handler.ListProjects)
	r.Route("/{projectID}/members", func(r chi.Router) {
		r.Get("/", handler.ListMembers)
		r.Post("/", handler.AddMember)
	})
}

func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	project, err := h.projectService.Create(r.Context(), userID, req.Name, req.Description)
	if err != nil {
		writeServiceError(w, h.logger, err, "project")
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	projects, err := h.projectService.ListMine(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err, "project")
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (h *ProjectHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	projectID, err := parseIDParam(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	members, err := h.projectService.ListMembers(r.Context(), projectID, userID)
	if err != nil {
		writeServiceError(w, h.logger, err, "project")
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *ProjectHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	projectID, err := parseIDParam(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req AddMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID < 1 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	member, err := h.projectService.AddMember(r.Context(), projectID, userID, req.UserID, req.Role)
	if err != nil {
		writeServiceError(w, h.logger, err, "member")
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type AddMemberRequest struct {
	UserID int    `json:"user_id"`
	Role   string `json:"role"`
}
