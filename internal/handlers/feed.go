package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nexus-collab/apiserver/config"
	"github.com/nexus-collab/apiserver/internal/services"
	"github.com/nexus-collab/apiserver/types"
	"go.uber.org/zap"
)

const (
	formFieldTitle        = "title"
	formFieldContent      = "content"
	formFieldFiles        = "community_files"
	formFieldDeletedFiles = "deleted_files"
)

// FeedHandler provides HTTP handlers for feeds and notices.
type FeedHandler struct {
	feedService *services.FeedService
	upload      config.UploadConfig
	logger      *zap.Logger
}

// NewFeedHandler constructs a handler with the provided service.
func NewFeedHandler(feedService *services.FeedService, upload config.UploadConfig, logger *zap.Logger) *FeedHandler {
	return &FeedHandler{
		feedService: feedService,
		upload:      withUploadDefaults(upload),
		logger:      logger,
	}
}

// FeedRouter registers feed routes on the given router. Mutations pass
// through throttle.
func FeedRouter(r chi.Router, handler *FeedHandler, throttle func(http.Handler) http.Handler) {
	r.With(throttle).Post("/create-feed/{projectID}", handler.CreateFeed)
	r.With(throttle).Patch("/update-feed/{feedID}/{projectID}", handler.UpdateFeed)
	r.With(throttle).Delete("/delete-feed/{feedID}/{projectID}", handler.DeleteFeed)
	r.With(throttle).Post("/create-notice/{projectID}", handler.CreateNotice)

	r.Get("/myfeeds/{projectID}", handler.MyFeeds)
	r.Get("/mynotices/{projectID}", handler.MyNotices)
	r.Get("/list/{projectID}", handler.ListProject)
	r.Get("/notice/{noticeID}/{projectID}", handler.GetNotice)
	r.Get("/{feedID}/{projectID}", handler.GetFeed)
}

func (h *FeedHandler) CreateFeed(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, false)
}

func (h *FeedHandler) CreateNotice(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, true)
}

func (h *FeedHandler) create(w http.ResponseWriter, r *http.Request, notice bool) {
	userID, projectID, ok := h.caller(w, r)
	if !ok {
		return
	}

	input, err := h.parseFeedForm(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var feed types.Feed
	if notice {
		feed, err = h.feedService.CreateNotice(r.Context(), userID, projectID, input)
	} else {
		feed, err = h.feedService.CreateFeed(r.Context(), userID, projectID, input)
	}
	if err != nil {
		writeServiceError(w, h.logger, err, "project")
		return
	}

	writeJSON(w, http.StatusCreated, feed)
}

func (h *FeedHandler) UpdateFeed(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := h.caller(w, r)
	if !ok {
		return
	}
	feedID, err := parseIDParam(r, "feedID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	update, err := h.parseUpdateForm(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	feed, err := h.feedService.Update(r.Context(), userID, projectID, feedID, update)
	if err != nil {
		writeServiceError(w, h.logger, err, "feed")
		return
	}

	writeJSON(w, http.StatusOK, feed)
}

func (h *FeedHandler) DeleteFeed(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := h.caller(w, r)
	if !ok {
		return
	}
	feedID, err := parseIDParam(r, "feedID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.feedService.Delete(r.Context(), userID, projectID, feedID); err != nil {
		writeServiceError(w, h.logger, err, "feed")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "feed deleted"})
}

func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := h.caller(w, r)
	if !ok {
		return
	}
	feedID, err := parseIDParam(r, "feedID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	feed, err := h.feedService.Get(r.Context(), userID, projectID, feedID)
	if err != nil {
		writeServiceError(w, h.logger, err, "feed")
		return
	}
	writeJSON(w, http.StatusOK, feed)
}

func (h *FeedHandler) GetNotice(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := h.caller(w, r)
	if !ok {
		return
	}
	noticeID, err := parseIDParam(r, "noticeID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	notice, err := h.feedService.GetNotice(r.Context(), userID, projectID, noticeID)
	if err != nil {
		writeServiceError(w, h.logger, err, "notice")
		return
	}
	writeJSON(w, http.StatusOK, notice)
}

func (h *FeedHandler) MyFeeds(w http.ResponseWriter, r *http.Request) {
	h.listMine(w, r, false)
}

func (h *FeedHandler) MyNotices(w http.ResponseWriter, r *http.Request) {
	h.listMine(w, r, true)
}

func (h *FeedHandler) listMine(w http.ResponseWriter, r *http.Request, notices bool) {
	userID, projectID, ok := h.caller(w, r)
	if !ok {
		return
	}

	feeds, err := h.feedService.ListMine(r.Context(), userID, projectID, notices)
	if err != nil {
		writeServiceError(w, h.logger, err, "project")
		return
	}
	writeJSON(w, http.StatusOK, feeds)
}

func (h *FeedHandler) ListProject(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := h.caller(w, r)
	if !ok {
		return
	}

	feeds, notices, err := h.feedService.ListProject(r.Context(), userID, projectID)
	if err != nil {
		writeServiceError(w, h.logger, err, "project")
		return
	}
	writeJSON(w, http.StatusOK, FeedListResponse{Feeds: feeds, Notices: notices})
}

// FeedListResponse splits a project's board into feeds and notices.
type FeedListResponse struct {
	Feeds   []types.Feed `json:"feeds"`
	Notices []types.Feed `json:"notices"`
}

func (h *FeedHandler) caller(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return 0, 0, false
	}
	projectID, err := parseIDParam(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	return userID, projectID, true
}

func (h *FeedHandler) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	return parseUploadForm(w, r, h.upload)
}

func (h *FeedHandler) parseFeedForm(w http.ResponseWriter, r *http.Request) (services.FeedInput, error) {
	if err := h.parseMultipart(w, r); err != nil {
		return services.FeedInput{}, errInvalidForm
	}

	files, err := readUploads(r.MultipartForm, formFieldFiles, h.upload.MaxFiles, h.upload.MaxFileBytes)
	if err != nil {
		return services.FeedInput{}, err
	}
	return services.FeedInput{
		Title:   r.FormValue(formFieldTitle),
		Content: r.FormValue(formFieldContent),
		Files:   files,
	}, nil
}

func (h *FeedHandler) parseUpdateForm(w http.ResponseWriter, r *http.Request) (services.FeedUpdate, error) {
	if err := h.parseMultipart(w, r); err != nil {
		return services.FeedUpdate{}, errInvalidForm
	}

	deleted, err := parseIDList(r.PostForm[formFieldDeletedFiles])
	if err != nil {
		return services.FeedUpdate{}, err
	}
	files, err := readUploads(r.MultipartForm, formFieldFiles, h.upload.MaxFiles, h.upload.MaxFileBytes)
	if err != nil {
		return services.FeedUpdate{}, err
	}

	update := services.FeedUpdate{
		DeletedFileIDs: deleted,
		Files:          files,
	}
	if values, ok := r.PostForm[formFieldTitle]; ok && len(values) > 0 {
		update.Title = &values[0]
	}
	if values, ok := r.PostForm[formFieldContent]; ok && len(values) > 0 {
		update.Content = &values[0]
	}
	return update, nil
}
