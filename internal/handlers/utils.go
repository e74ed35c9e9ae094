package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/nexus-collab/apiserver/config"
	"github.com/nexus-collab/apiserver/internal/services"
	"github.com/nexus-collab/apiserver/internal/store"
	"go.uber.org/zap"
)

type contextKey string

const (
	contextSubjectKey contextKey = "sub"
	contextRoleKey    contextKey = "role"
)

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse acknowledges an operation without a resource body.
type MessageResponse struct {
	Message string `json:"message"`
}

func withIdentity(ctx context.Context, userID int, role string) context.Context {
	ctx = context.WithValue(ctx, contextSubjectKey, userID)
	return context.WithValue(ctx, contextRoleKey, role)
}

func userIDFromContext(ctx context.Context) (int, error) {
	userID, ok := ctx.Value(contextSubjectKey).(int)
	if !ok {
		return 0, errors.New("missing subject")
	}
	if userID < 1 {
		return 0, errors.New("invalid subject")
	}
	return userID, nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps service and store errors onto HTTP statuses.
// resource names the entity for not-found messages. Unexpected errors are
// logged and reported without detail.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error, resource string) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), services.ErrInvalidInput.Error()+": "))
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, services.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, services.ErrNotProjectMember),
		errors.Is(err, services.ErrAdminRequired),
		errors.Is(err, services.ErrNotOwner),
		errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, resource+" not found")
	case errors.Is(err, services.ErrEmailTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, resource+" already exists or is in use")
	default:
		logger.Error("request failed", zap.String("resource", resource), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func parseIDParam(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := decoder.Decode(dst); err != nil {
		return errors.New("invalid request")
	}
	return nil
}

// parseIDList accepts ids as repeated form values, comma separated lists or
// JSON arrays, in any combination.
func parseIDList(values []string) ([]int, error) {
	ids := make([]int, 0)
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if strings.HasPrefix(value, "[") {
			var parsed []int
			if err := json.Unmarshal([]byte(value), &parsed); err != nil {
				return nil, errors.New("invalid id list")
			}
			for _, id := range parsed {
				if id < 1 {
					return nil, errors.New("invalid id list")
				}
			}
			ids = append(ids, parsed...)
			continue
		}
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.Atoi(part)
			if err != nil || id < 1 {
				return nil, errors.New("invalid id list")
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

var errInvalidForm = errors.New("invalid multipart form")

const (
	defaultMaxFileBytes  = 20 << 20
	defaultMaxFiles      = 10
	defaultMaxFormMemory = 32 << 20
)

func withUploadDefaults(cfg config.UploadConfig) config.UploadConfig {
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = defaultMaxFileBytes
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = defaultMaxFiles
	}
	if cfg.MaxFormMemory <= 0 {
		cfg.MaxFormMemory = defaultMaxFormMemory
	}
	return cfg
}

// parseUploadForm parses a multipart body capped at the configured upload
// size. Other content types fall back to ParseForm.
func parseUploadForm(w http.ResponseWriter, r *http.Request, cfg config.UploadConfig) error {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.ParseForm()
	}
	limit := cfg.MaxFileBytes*int64(cfg.MaxFiles) + cfg.MaxFormMemory
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	return r.ParseMultipartForm(cfg.MaxFormMemory)
}

func readUploads(form *multipart.Form, field string, maxFiles int, maxBytes int64) ([]services.UploadFile, error) {
	if form == nil {
		return nil, nil
	}
	headers := form.File[field]
	if maxFiles > 0 && len(headers) > maxFiles {
		return nil, fmt.Errorf("at most %d files are allowed", maxFiles)
	}

	uploads := make([]services.UploadFile, 0, len(headers))
	for _, header := range headers {
		upload, err := readUpload(header, maxBytes)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, upload)
	}
	return uploads, nil
}

func readUpload(header *multipart.FileHeader, maxBytes int64) (services.UploadFile, error) {
	file, err := header.Open()
	if err != nil {
		return services.UploadFile{}, fmt.Errorf("failed to read %s", header.Filename)
	}
	data, err := readFileLimited(file, maxBytes)
	_ = file.Close()
	if err != nil {
		return services.UploadFile{}, err
	}
	return services.UploadFile{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}
