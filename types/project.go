package types

import "time"

// Roles a user can hold inside a project.
const (
	ProjectRoleAdmin  = "ADMIN"
	ProjectRoleMember = "MEMBER"
)

// Project groups members and their community board.
type Project struct {
	ID          int       `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedBy   *int      `json:"created_by,omitempty" db:"created_by"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// ProjectUser is a user's membership in a project. Its ID is the identity
// used for authorship of feeds inside that project.
type ProjectUser struct {
	ID        int       `json:"id" db:"id"`
	ProjectID int       `json:"project_id" db:"project_id"`
	UserID    int       `json:"user_id" db:"user_id"`
	Role      string    `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// Name is the member's user name, filled on list queries.
	Name string `json:"name,omitempty" db:"-"`
}

// IsAdmin reports whether the member administers the project.
func (p ProjectUser) IsAdmin() bool {
	return p.Role == ProjectRoleAdmin
}

// ValidProjectRole reports whether role can be assigned to a member.
func ValidProjectRole(role string) bool {
	return role == ProjectRoleAdmin || role == ProjectRoleMember
}

// Community is the board holding a project's feeds and notices.
type Community struct {
	ID        int       `json:"id" db:"id"`
	ProjectID int       `json:"project_id" db:"project_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
