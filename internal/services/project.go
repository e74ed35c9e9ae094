package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nexus-collab/apiserver/internal/store"
	"github.com/nexus-collab/apiserver/types"
)

// ProjectRepository defines persistence operations for projects and members.
type ProjectRepository interface {
	Create(ctx context.Context, project types.Project, creatorID int) (types.Project, types.ProjectUser, error)
	Get(ctx context.Context, id int) (types.Project, error)
	ListByUser(ctx context.Context, userID int) ([]types.Project, error)
	GetMember(ctx context.Context, projectID, userID int) (types.ProjectUser, error)
	ListMembers(ctx context.Context, projectID int) ([]types.ProjectUser, error)
	AddMember(ctx context.Context, member types.ProjectUser) (types.ProjectUser, error)
	GetCommunityByProjectID(ctx context.Context, projectID int) (types.Community, error)
}

// UserLookup resolves users by id.
type UserLookup interface {
	GetByID(ctx context.Context, id int) (types.User, error)
}

// ProjectService encapsulates project and membership use-cases.
type ProjectService struct {
	repo  ProjectRepository
	users UserLookup
}

func NewProjectService(repo ProjectRepository, users UserLookup) *ProjectService {
	return &ProjectService{repo: repo, users: users}
}

// Create makes a project with userID as its first admin member.
func (s *ProjectService) Create(ctx context.Context, userID int, name, description string) (types.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.Project{}, invalidInput("name is required")
	}
	if len(name) > 100 {
		return types.Project{}, invalidInput("name must be at most 100 characters")
	}

	project, _, err := s.repo.Create(ctx, types.Project{
		Name:        name,
		Description: strings.TrimSpace(description),
	}, userID)
	return project, err
}

func (s *ProjectService) ListMine(ctx context.Context, userID int) ([]types.Project, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Membership returns userID's membership in projectID.
func (s *ProjectService) Membership(ctx context.Context, projectID, userID int) (types.ProjectUser, error) {
	member, err := s.repo.GetMember(ctx, projectID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.ProjectUser{}, ErrNotProjectMember
		}
		return types.ProjectUser{}, err
	}
	return member, nil
}

// RequireAdmin returns userID's membership if it carries the project admin role.
func (s *ProjectService) RequireAdmin(ctx context.Context, projectID, userID int) (types.ProjectUser, error) {
	member, err := s.Membership(ctx, projectID, userID)
	if err != nil {
		return types.ProjectUser{}, err
	}
	if !member.IsAdmin() {
		return types.ProjectUser{}, ErrAdminRequired
	}
	return member, nil
}

// Community returns the board that holds projectID's feeds.
func (s *ProjectService) Community(ctx context.Context, projectID int) (types.Community, error) {
	return s.repo.GetCommunityByProjectID(ctx, projectID)
}

func (s *ProjectService) ListMembers(ctx context.Context, projectID, userID int) ([]types.ProjectUser, error) {
	if _, err := s.Membership(ctx, projectID, userID); err != nil {
		return nil, err
	}
	return s.repo.ListMembers(ctx, projectID)
}

// AddMember lets a project admin add another user with the given role.
func (s *ProjectService) AddMember(ctx context.Context, projectID, actorID, userID int, role string) (types.ProjectUser, error) {
	if _, err := s.RequireAdmin(ctx, projectID, actorID); err != nil {
		return types.ProjectUser{}, err
	}

	role = strings.ToUpper(strings.TrimSpace(role))
	if role == "" {
		role = types.ProjectRoleMember
	}
	if !types.ValidProjectRole(role) {
		return types.ProjectUser{}, invalidInput("unknown project role %q", role)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.ProjectUser{}, fmt.Errorf("user: %w", store.ErrNotFound)
		}
		return types.ProjectUser{}, err
	}

	member, err := s.repo.AddMember(ctx, types.ProjectUser{
		ProjectID: projectID,
		UserID:    user.ID,
		Role:      role,
	})
	if err != nil {
		return types.ProjectUser{}, err
	}
	member.Name = user.Name
	return member, nil
}
