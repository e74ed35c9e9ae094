package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nexus-collab/apiserver/internal/storage"
	"github.com/nexus-collab/apiserver/internal/store"
	"github.com/nexus-collab/apiserver/types"
	"go.uber.org/zap"
)

// FileRepository defines persistence operations for file records.
type FileRepository interface {
	Create(ctx context.Context, file types.File) (types.File, error)
	Get(ctx context.Context, id int) (types.File, error)
	GetMany(ctx context.Context, ids []int) ([]types.File, error)
	ListByOwner(ctx context.Context, ownerID int) ([]types.File, error)
	DeleteMany(ctx context.Context, ids []int) error
}

// ObjectStore is the subset of object storage the file service needs.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// UploadFile is a file received from a client, fully read into memory.
type UploadFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// UploadRequest describes a batch of files to store for one user.
type UploadRequest struct {
	Files     []UploadFile
	UserID    int
	ProjectID *int
	Category  string
}

// FileService stores uploaded files and guards their deletion.
type FileService struct {
	repo    FileRepository
	objects ObjectStore
	logger  *zap.Logger
	now     func() time.Time
}

func NewFileService(repo FileRepository, objects ObjectStore, logger *zap.Logger) *FileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileService{
		repo:    repo,
		objects: objects,
		logger:  logger,
		now:     time.Now,
	}
}

// Upload stores every file of the batch and records it. When any file fails,
// the objects and rows already written for the batch are removed again.
func (s *FileService) Upload(ctx context.Context, req UploadRequest) ([]types.File, error) {
	if !types.ValidCategory(req.Category) {
		return nil, invalidInput("unknown file category %q", req.Category)
	}
	if len(req.Files) == 0 {
		return nil, invalidInput("no files to upload")
	}

	stored := make([]types.File, 0, len(req.Files))
	for _, upload := range req.Files {
		file, err := s.store(ctx, req, upload)
		if err != nil {
			s.discard(ctx, stored)
			return nil, err
		}
		stored = append(stored, file)
	}
	return stored, nil
}

func (s *FileService) store(ctx context.Context, req UploadRequest, upload UploadFile) (types.File, error) {
	name := strings.TrimSpace(upload.Name)
	if name == "" {
		return types.File{}, invalidInput("file name is required")
	}
	if len(upload.Data) == 0 {
		return types.File{}, invalidInput("file %s is empty", name)
	}

	contentType := strings.TrimSpace(upload.ContentType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(upload.Data)
	}
	if req.Category == types.CategoryProfile && !strings.HasPrefix(contentType, "image/") {
		return types.File{}, invalidInput("profile image must be an image")
	}

	sum := sha256.Sum256(upload.Data)
	key := storage.ObjectKey(req.Category, name, s.now())
	if err := s.objects.Put(ctx, key, bytes.NewReader(upload.Data), int64(len(upload.Data)), contentType); err != nil {
		return types.File{}, fmt.Errorf("store object %s: %w", key, err)
	}

	file, err := s.repo.Create(ctx, types.File{
		Key:         key,
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(upload.Data)),
		SHA256:      hex.EncodeToString(sum[:]),
		Category:    req.Category,
		OwnerID:     req.UserID,
		ProjectID:   req.ProjectID,
	})
	if err != nil {
		if delErr := s.objects.Delete(ctx, key); delErr != nil {
			s.logger.Warn("failed to remove orphaned object", zap.String("key", key), zap.Error(delErr))
		}
		return types.File{}, fmt.Errorf("record file: %w", err)
	}
	return file, nil
}

// Get returns the file record with the given id.
func (s *FileService) Get(ctx context.Context, id int) (types.File, error) {
	return s.repo.Get(ctx, id)
}

// GetMany returns the records that exist among ids.
func (s *FileService) GetMany(ctx context.Context, ids []int) ([]types.File, error) {
	return s.repo.GetMany(ctx, uniqueIDs(ids))
}

// Open streams the stored object of file.
func (s *FileService) Open(ctx context.Context, file types.File) (io.ReadCloser, error) {
	return s.objects.Get(ctx, file.Key)
}

// CheckOwner loads the files with the given ids and verifies userID owns all
// of them. Duplicate ids are collapsed.
func (s *FileService) CheckOwner(ctx context.Context, userID int, ids []int) ([]types.File, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return []types.File{}, nil
	}

	files, err := s.repo.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(files) != len(ids) {
		return nil, fmt.Errorf("file: %w", store.ErrNotFound)
	}
	for _, file := range files {
		if file.OwnerID != userID {
			return nil, ErrNotOwner
		}
	}
	return files, nil
}

// Delete removes the files with the given ids on behalf of userID. Nothing is
// deleted unless userID owns every one of them.
func (s *FileService) Delete(ctx context.Context, userID int, ids []int) error {
	files, err := s.CheckOwner(ctx, userID, ids)
	if err != nil {
		return err
	}
	return s.Purge(ctx, files)
}

// Purge deletes file rows and then their objects. Rows still referenced by a
// feed or profile make it fail with store.ErrConflict before any object is
// touched.
func (s *FileService) Purge(ctx context.Context, files []types.File) error {
	if len(files) == 0 {
		return nil
	}

	ids := make([]int, 0, len(files))
	for _, file := range files {
		ids = append(ids, file.ID)
	}
	if err := s.repo.DeleteMany(ctx, ids); err != nil {
		return fmt.Errorf("delete file records: %w", err)
	}

	var errs []error
	for _, file := range files {
		if err := s.objects.Delete(ctx, file.Key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			errs = append(errs, fmt.Errorf("delete object %s: %w", file.Key, err))
		}
	}
	return errors.Join(errs...)
}

// ListByOwner returns all files uploaded by ownerID.
func (s *FileService) ListByOwner(ctx context.Context, ownerID int) ([]types.File, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

func (s *FileService) discard(ctx context.Context, files []types.File) {
	if err := s.Purge(ctx, files); err != nil {
		s.logger.Warn("failed to discard uploaded files", zap.Int("count", len(files)), zap.Error(err))
	}
}

func uniqueIDs(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
