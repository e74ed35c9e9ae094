package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nexus-collab/apiserver/internal/testutil"
	"github.com/nexus-collab/apiserver/types"
)

func TestListUsersRequiresAdmin(t *testing.T) {
	env := newAPIEnv(t)
	admin := testutil.SeedUser(t, env.mem, "Admin", "admin@example.com", types.RoleAdmin)
	user := testutil.SeedUser(t, env.mem, "User", "user@example.com", types.RoleUser)

	expectStatus(t, env.do(httptest.NewRequest(http.MethodGet, "/user/all", nil), &user), http.StatusForbidden)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/user/all", nil), &admin)
	expectStatus(t, rec, http.StatusOK)
	if users := decodeBody[[]types.User](t, rec); len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
}

func TestUpdateStatusEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	user := testutil.SeedUser(t, env.mem, "User", "user@example.com", types.RoleUser)

	rec := env.doJSON(http.MethodPut, "/user/status", UpdateStatusRequest{Status: "BUSY"}, &user)
	expectStatus(t, rec, http.StatusOK)
	if log := decodeBody[types.UserLog](t, rec); log.Status != types.StatusBusy {
		t.Fatalf("unexpected status %q", log.Status)
	}

	expectStatus(t, env.doJSON(http.MethodPut, "/user/status", UpdateStatusRequest{Status: "GONE"}, &user), http.StatusBadRequest)
}

func TestUpdateAndDeleteOtherUser(t *testing.T) {
	env := newAPIEnv(t)
	admin := testutil.SeedUser(t, env.mem, "Admin", "admin@example.com", types.RoleAdmin)
	alice := testutil.SeedUser(t, env.mem, "Alice", "alice@example.com", types.RoleUser)
	bob := testutil.SeedUser(t, env.mem, "Bob", "bob@example.com", types.RoleUser)

	name := "Mallory"
	target := fmt.Sprintf("/user/%d", alice.ID)
	expectStatus(t, env.doJSON(http.MethodPut, target, UpdateUserRequest{Name: &name}, &bob), http.StatusForbidden)

	rec := env.doJSON(http.MethodPut, target, UpdateUserRequest{Name: &name}, &admin)
	expectStatus(t, rec, http.StatusOK)
	if updated := decodeBody[types.User](t, rec); updated.Name != name {
		t.Fatalf("unexpected name %q", updated.Name)
	}

	expectStatus(t, env.do(httptest.NewRequest(http.MethodDelete, target, nil), &bob), http.StatusForbidden)
	expectStatus(t, env.do(httptest.NewRequest(http.MethodDelete, target, nil), &alice), http.StatusOK)
	expectStatus(t, env.do(httptest.NewRequest(http.MethodGet, target, nil), &bob), http.StatusNotFound)
}

func TestUpdateSelfWithProfileImage(t *testing.T) {
	env := newAPIEnv(t)
	user := testutil.SeedUser(t, env.mem, "User", "user@example.com", types.RoleUser)

	rec := env.do(multipartRequest(t, http.MethodPut, "/user",
		map[string][]string{"name": {"Renamed"}},
		formFile{field: "profileImage", name: "me.txt", contentType: "text/plain", data: "x"},
	), &user)
	expectStatus(t, rec, http.StatusBadRequest)

	rec = env.do(multipartRequest(t, http.MethodPut, "/user",
		map[string][]string{"name": {"Renamed"}},
		formFile{field: "profileImage", name: "me.png", contentType: "image/png", data: "\x89PNG\r\n\x1a\n"},
	), &user)
	expectStatus(t, rec, http.StatusOK)
	updated := decodeBody[types.User](t, rec)
	if updated.Name != "Renamed" || updated.Log == nil || updated.Log.ProfileImageID == nil {
		t.Fatalf("unexpected user %+v", updated)
	}
}

func TestUpdateSelfSniffsUntypedProfileImage(t *testing.T) {
	env := newAPIEnv(t)
	user := testutil.SeedUser(t, env.mem, "User", "user@example.com", types.RoleUser)

	rec := env.do(multipartRequest(t, http.MethodPut, "/user", nil,
		formFile{field: "profileImage", name: "me.png", data: "\x89PNG\r\n\x1a\n"},
	), &user)
	expectStatus(t, rec, http.StatusOK)
	updated := decodeBody[types.User](t, rec)
	if updated.Log == nil || updated.Log.ProfileImageID == nil {
		t.Fatalf("expected a profile image, got %+v", updated.Log)
	}

	rec = env.do(multipartRequest(t, http.MethodPut, "/user", nil,
		formFile{field: "profileImage", name: "notes", data: "plain text notes"},
	), &user)
	expectStatus(t, rec, http.StatusBadRequest)
}
