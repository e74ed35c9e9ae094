package services

import (
	"context"
	"errors"
	"testing"

	"github.com/nexus-collab/apiserver/internal/store"
	"github.com/nexus-collab/apiserver/internal/testutil"
	"github.com/nexus-collab/apiserver/types"
)

func TestCreateProjectMakesCreatorAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := testutil.SeedUser(t, env.mem, "Owner", "owner@example.com", types.RoleUser)

	project, err := env.projects.Create(ctx, owner.ID, "  Apollo  ", "moon")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if project.Name != "Apollo" {
		t.Fatalf("unexpected name %q", project.Name)
	}
	if _, err := env.projects.RequireAdmin(ctx, project.ID, owner.ID); err != nil {
		t.Fatalf("expected creator to be admin: %v", err)
	}
	if _, err := env.projects.Community(ctx, project.ID); err != nil {
		t.Fatalf("expected community: %v", err)
	}

	if _, err := env.projects.Create(ctx, owner.ID, " ", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAddMember(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := testutil.SeedUser(t, env.mem, "Owner", "owner@example.com", types.RoleUser)
	member := testutil.SeedUser(t, env.mem, "Member", "member@example.com", types.RoleUser)
	other := testutil.SeedUser(t, env.mem, "Other", "other@example.com", types.RoleUser)
	project, _ := testutil.SeedProject(t, env.mem, owner)

	added, err := env.projects.AddMember(ctx, project.ID, owner.ID, member.ID, "")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if added.Role != types.ProjectRoleMember || added.Name != "Member" {
		t.Fatalf("unexpected member %+v", added)
	}

	if _, err := env.projects.AddMember(ctx, project.ID, owner.ID, member.ID, "member"); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := env.projects.AddMember(ctx, project.ID, member.ID, other.ID, ""); !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected ErrAdminRequired, got %v", err)
	}
	if _, err := env.projects.AddMember(ctx, project.ID, other.ID, other.ID, ""); !errors.Is(err, ErrNotProjectMember) {
		t.Fatalf("expected ErrNotProjectMember, got %v", err)
	}
	if _, err := env.projects.AddMember(ctx, project.ID, owner.ID, other.ID, "OWNER"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := env.projects.AddMember(ctx, project.ID, owner.ID, 9999, ""); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	members, err := env.projects.ListMembers(ctx, project.ID, member.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	if _, err := env.projects.ListMembers(ctx, project.ID, other.ID); !errors.Is(err, ErrNotProjectMember) {
		t.Fatalf("expected ErrNotProjectMember, got %v", err)
	}
}
