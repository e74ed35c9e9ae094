package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nexus-collab/apiserver/internal/store"
	"github.com/nexus-collab/apiserver/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// UserRepository defines persistence operations for users and their log.
type UserRepository interface {
	List(ctx context.Context) ([]types.User, error)
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id int) error
	UpdateStatus(ctx context.Context, userID int, status string) (types.UserLog, error)
	SetProfileImage(ctx context.Context, userID int, fileID *int) error
	RecordLogin(ctx context.Context, userID int, refreshHash string, expiresAt, at time.Time) error
	RecordLogout(ctx context.Context, userID int, at time.Time) error
	RotateRefreshToken(ctx context.Context, userID int, oldHash, newHash string, expiresAt time.Time) error
}

// ProfileFiles is the part of the file service used for profile images.
type ProfileFiles interface {
	Upload(ctx context.Context, req UploadRequest) ([]types.File, error)
	GetMany(ctx context.Context, ids []int) ([]types.File, error)
	ListByOwner(ctx context.Context, ownerID int) ([]types.File, error)
	Purge(ctx context.Context, files []types.File) error
}

// ProfileUpdate holds the user fields to change. Nil fields are left as is.
type ProfileUpdate struct {
	Name     *string
	Email    *string
	Password *string
	Role     *string
	Image    *UploadFile
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo   UserRepository
	files  ProfileFiles
	logger *zap.Logger
}

func NewUserService(repo UserRepository, files ProfileFiles, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, files: files, logger: logger}
}

func (s *UserService) List(ctx context.Context) ([]types.User, error) {
	return s.repo.List(ctx)
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateSelf changes the caller's own profile, including the profile image.
func (s *UserService) UpdateSelf(ctx context.Context, userID int, update ProfileUpdate) (types.User, error) {
	if update.Role != nil {
		return types.User{}, ErrForbidden
	}
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return types.User{}, err
	}
	return s.apply(ctx, user, update)
}

// UpdateUser changes targetID's profile on behalf of actorID, who must be the
// same user or a global admin. Only admins may change roles.
func (s *UserService) UpdateUser(ctx context.Context, actorID, targetID int, update ProfileUpdate) (types.User, error) {
	actor, err := s.authorize(ctx, actorID, targetID)
	if err != nil {
		return types.User{}, err
	}
	if update.Role != nil && !actor.IsAdmin() {
		return types.User{}, ErrForbidden
	}

	user, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return types.User{}, err
	}
	return s.apply(ctx, user, update)
}

func (s *UserService) apply(ctx context.Context, user types.User, update ProfileUpdate) (types.User, error) {
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return types.User{}, invalidInput("name must not be empty")
		}
		user.Name = name
	}
	if update.Email != nil {
		email := strings.TrimSpace(*update.Email)
		if !strings.Contains(email, "@") {
			return types.User{}, invalidInput("invalid email")
		}
		user.Email = email
	}
	if update.Password != nil {
		hash, err := hashPassword(*update.Password)
		if err != nil {
			return types.User{}, err
		}
		user.PasswordHash = hash
	}
	if update.Role != nil {
		role := strings.ToUpper(strings.TrimSpace(*update.Role))
		if role != types.RoleAdmin && role != types.RoleUser {
			return types.User{}, invalidInput("unknown role %q", role)
		}
		user.Role = role
	}

	if update.Name != nil || update.Email != nil || update.Password != nil || update.Role != nil {
		if _, err := s.repo.Update(ctx, user); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return types.User{}, ErrEmailTaken
			}
			return types.User{}, err
		}
	}

	if update.Image != nil {
		if err := s.replaceProfileImage(ctx, user, *update.Image); err != nil {
			return types.User{}, err
		}
	}
	return s.repo.GetByID(ctx, user.ID)
}

func (s *UserService) replaceProfileImage(ctx context.Context, user types.User, image UploadFile) error {
	if image.ContentType != "" && !strings.HasPrefix(image.ContentType, "image/") {
		return invalidInput("only image files are allowed")
	}

	uploaded, err := s.files.Upload(ctx, UploadRequest{
		Files:    []UploadFile{image},
		UserID:   user.ID,
		Category: types.CategoryProfile,
	})
	if err != nil {
		return err
	}

	newID := uploaded[0].ID
	if err := s.repo.SetProfileImage(ctx, user.ID, &newID); err != nil {
		if purgeErr := s.files.Purge(ctx, uploaded); purgeErr != nil {
			s.logger.Warn("failed to discard profile image", zap.Int("file_id", newID), zap.Error(purgeErr))
		}
		return err
	}

	if user.Log == nil || user.Log.ProfileImageID == nil {
		return nil
	}
	old, err := s.files.GetMany(ctx, []int{*user.Log.ProfileImageID})
	if err == nil {
		err = s.files.Purge(ctx, old)
	}
	if err != nil {
		s.logger.Warn("failed to delete previous profile image",
			zap.Int("user_id", user.ID),
			zap.Int("file_id", *user.Log.ProfileImageID),
			zap.Error(err),
		)
	}
	return nil
}

// UpdateStatus sets the caller's presence status.
func (s *UserService) UpdateStatus(ctx context.Context, userID int, status string) (types.UserLog, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	if !types.ValidStatus(status) {
		return types.UserLog{}, invalidInput("unknown status %q", status)
	}
	return s.repo.UpdateStatus(ctx, userID, status)
}

// Delete removes targetID on behalf of actorID, who must be the same user or
// a global admin. Stored objects of the user's files are removed afterwards.
func (s *UserService) Delete(ctx context.Context, actorID, targetID int) error {
	if _, err := s.authorize(ctx, actorID, targetID); err != nil {
		return err
	}
	if _, err := s.repo.GetByID(ctx, targetID); err != nil {
		return err
	}

	files, err := s.files.ListByOwner(ctx, targetID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, targetID); err != nil {
		return err
	}
	if err := s.files.Purge(ctx, files); err != nil {
		s.logger.Error("failed to delete files of removed user", zap.Int("user_id", targetID), zap.Error(err))
	}
	return nil
}

func (s *UserService) authorize(ctx context.Context, actorID, targetID int) (types.User, error) {
	actor, err := s.repo.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrForbidden
		}
		return types.User{}, err
	}
	if actor.ID != targetID && !actor.IsAdmin() {
		return types.User{}, ErrForbidden
	}
	return actor, nil
}

func hashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", invalidInput("password must be at least %d characters", minPasswordLength)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
