package testutil

import (
	"context"
	"testing"

	"github.com/nexus-collab/apiserver/types"
)

// SeedUser inserts a user with the given role.
func SeedUser(t *testing.T, m *Memory, name, email, role string) types.User {
	t.Helper()
	user, err := m.Users().Create(context.Background(), types.User{
		Email:        email,
		Name:         name,
		Role:         role,
		PasswordHash: "x",
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return user
}

// SeedProject creates a project owned by owner and adds the given members
// with the MEMBER role.
func SeedProject(t *testing.T, m *Memory, owner types.User, members ...types.User) (types.Project, types.ProjectUser) {
	t.Helper()
	ctx := context.Background()
	project, admin, err := m.Projects().Create(ctx, types.Project{Name: "Apollo"}, owner.ID)
	if err != nil {
		t.Fatalf("seed project: %v", err)
	}
	for _, member := range members {
		if _, err := m.Projects().AddMember(ctx, types.ProjectUser{
			ProjectID: project.ID,
			UserID:    member.ID,
			Role:      types.ProjectRoleMember,
		}); err != nil {
			t.Fatalf("seed member %d: %v", member.ID, err)
		}
	}
	return project, admin
}
