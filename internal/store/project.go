package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/nexus-collab/apiserver/types"
)

// ProjectRepository handles persistence for projects, memberships and
// community boards.
type ProjectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create inserts the project, makes the creator its admin and opens the
// project's community board.
func (r *ProjectRepository) Create(ctx context.Context, project types.Project, creatorID int) (types.Project, types.ProjectUser, error) {
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now
	project.CreatedBy = &creatorID

	member := types.ProjectUser{
		UserID:    creatorID,
		Role:      types.ProjectRoleAdmin,
		CreatedAt: now,
	}

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		const insertProject = `
			INSERT INTO projects (name, description, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`
		if err := tx.QueryRowContext(
			ctx,
			insertProject,
			project.Name,
			project.Description,
			creatorID,
			project.CreatedAt,
			project.UpdatedAt,
		).Scan(&project.ID); err != nil {
			return translateError(err)
		}

		member.ProjectID = project.ID
		const insertMember = `
			INSERT INTO project_users (project_id, user_id, role, created_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id`
		if err := tx.QueryRowContext(ctx, insertMember, project.ID, creatorID, member.Role, now).Scan(&member.ID); err != nil {
			return translateError(err)
		}

		const insertCommunity = `INSERT INTO communities (project_id, created_at) VALUES ($1, $2)`
		_, err := tx.ExecContext(ctx, insertCommunity, project.ID, now)
		return err
	})
	if err != nil {
		return types.Project{}, types.ProjectUser{}, err
	}
	return project, member, nil
}

func (r *ProjectRepository) Get(ctx context.Context, id int) (types.Project, error) {
	const query = `
		SELECT id, name, description, created_by, created_at, updated_at
		FROM projects
		WHERE id = $1`
	var project types.Project
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&project.ID,
		&project.Name,
		&project.Description,
		&project.CreatedBy,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Project{}, ErrNotFound
		}
		return types.Project{}, err
	}
	return project, nil
}

// ListByUser returns the projects the user is a member of.
func (r *ProjectRepository) ListByUser(ctx context.Context, userID int) ([]types.Project, error) {
	const query = `
		SELECT p.id, p.name, p.description, p.created_by, p.created_at, p.updated_at
		FROM projects p
		JOIN project_users pu ON pu.project_id = p.id
		WHERE pu.user_id = $1
		ORDER BY p.id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := make([]types.Project, 0)
	for rows.Next() {
		var project types.Project
		if err := rows.Scan(
			&project.ID,
			&project.Name,
			&project.Description,
			&project.CreatedBy,
			&project.CreatedAt,
			&project.UpdatedAt,
		); err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return projects, nil
}

func (r *ProjectRepository) GetMember(ctx context.Context, projectID, userID int) (types.ProjectUser, error) {
	const query = `
		SELECT pu.id, pu.project_id, pu.user_id, pu.role, pu.created_at, u.name
		FROM project_users pu
		JOIN users u ON u.id = pu.user_id
		WHERE pu.project_id = $1 AND pu.user_id = $2`
	var member types.ProjectUser
	err := r.db.QueryRowContext(ctx, query, projectID, userID).Scan(
		&member.ID,
		&member.ProjectID,
		&member.UserID,
		&member.Role,
		&member.CreatedAt,
		&member.Name,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.ProjectUser{}, ErrNotFound
		}
		return types.ProjectUser{}, err
	}
	return member, nil
}

func (r *ProjectRepository) ListMembers(ctx context.Context, projectID int) ([]types.ProjectUser, error) {
	const query = `
		SELECT pu.id, pu.project_id, pu.user_id, pu.role, pu.created_at, u.name
		FROM project_users pu
		JOIN users u ON u.id = pu.user_id
		WHERE pu.project_id = $1
		ORDER BY pu.id`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]types.ProjectUser, 0)
	for rows.Next() {
		var member types.ProjectUser
		if err := rows.Scan(
			&member.ID,
			&member.ProjectID,
			&member.UserID,
			&member.Role,
			&member.CreatedAt,
			&member.Name,
		); err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return members, nil
}

// AddMember returns ErrConflict when the user already belongs to the project.
func (r *ProjectRepository) AddMember(ctx context.Context, member types.ProjectUser) (types.ProjectUser, error) {
	member.CreatedAt = time.Now()

	const query = `
		INSERT INTO project_users (project_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		member.ProjectID,
		member.UserID,
		member.Role,
		member.CreatedAt,
	).Scan(&member.ID); err != nil {
		return types.ProjectUser{}, translateError(err)
	}
	return member, nil
}

func (r *ProjectRepository) GetCommunityByProjectID(ctx context.Context, projectID int) (types.Community, error) {
	const query = `SELECT id, project_id, created_at FROM communities WHERE project_id = $1`
	var community types.Community
	err := r.db.QueryRowContext(ctx, query, projectID).Scan(
		&community.ID,
		&community.ProjectID,
		&community.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Community{}, ErrNotFound
		}
		return types.Community{}, err
	}
	return community, nil
}
