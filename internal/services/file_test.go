package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nexus-collab/apiserver/internal/store"
	"github.com/nexus-collab/apiserver/internal/testutil"
	"github.com/nexus-collab/apiserver/types"
)

func TestUploadStoresObjectsAndRecords(t *testing.T) {
	env := newTestEnv(t)
	owner := testutil.SeedUser(t, env.mem, "Owner", "owner@example.com", types.RoleUser)

	files, err := env.files.Upload(context.Background(), UploadRequest{
		Files:    []UploadFile{textFile("Report 2024.txt", "hello")},
		UserID:   owner.ID,
		Category: types.CategoryCommunity,
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	file := files[0]
	if !strings.HasPrefix(file.Key, "community/") || !strings.HasSuffix(file.Key, "Report_2024.txt") {
		t.Fatalf("unexpected key %q", file.Key)
	}
	if file.Size != 5 || len(file.SHA256) != 64 || file.OwnerID != owner.ID {
		t.Fatalf("unexpected record %+v", file)
	}
	if !env.objects.Has(file.Key) {
		t.Fatalf("object not stored")
	}
}

func TestUploadValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.files.Upload(ctx, UploadRequest{Category: "OTHER", Files: []UploadFile{textFile("a", "a")}}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for category, got %v", err)
	}
	if _, err := env.files.Upload(ctx, UploadRequest{Category: types.CategoryCommunity}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty batch, got %v", err)
	}
	_, err := env.files.Upload(ctx, UploadRequest{
		Category: types.CategoryProfile,
		Files:    []UploadFile{textFile("notes.txt", "plain")},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for non-image profile, got %v", err)
	}
}

func TestUploadRollsBackPartialBatch(t *testing.T) {
	env := newTestEnv(t)
	owner := testutil.SeedUser(t, env.mem, "Owner", "owner@example.com", types.RoleUser)

	_, err := env.files.Upload(context.Background(), UploadRequest{
		Files:    []UploadFile{textFile("a.txt", "a"), {Name: "empty.txt"}},
		UserID:   owner.ID,
		Category: types.CategoryCommunity,
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if env.objects.Len() != 0 || env.mem.FileCount() != 0 {
		t.Fatalf("expected batch to be rolled back, objects=%d records=%d", env.objects.Len(), env.mem.FileCount())
	}
}

func TestUploadStorageFailure(t *testing.T) {
	env := newTestEnv(t)
	env.objects.FailPut = errors.New("bucket offline")

	_, err := env.files.Upload(context.Background(), UploadRequest{
		Files:    []UploadFile{textFile("a.txt", "a")},
		Category: types.CategoryCommunity,
	})
	if err == nil || errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if env.mem.FileCount() != 0 {
		t.Fatalf("expected no records")
	}
}

func TestDeleteRequiresOwnershipOfEveryFile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := testutil.SeedUser(t, env.mem, "Alice", "alice@example.com", types.RoleUser)
	bob := testutil.SeedUser(t, env.mem, "Bob", "bob@example.com", types.RoleUser)

	upload := func(userID int, name string) types.File {
		t.Helper()
		files, err := env.files.Upload(ctx, UploadRequest{
			Files:    []UploadFile{textFile(name, name)},
			UserID:   userID,
			Category: types.CategoryCommunity,
		})
		if err != nil {
			t.Fatalf("upload: %v", err)
		}
		return files[0]
	}
	own := upload(alice.ID, "mine.txt")
	foreign := upload(bob.ID, "theirs.txt")

	if err := env.files.Delete(ctx, alice.ID, []int{own.ID, foreign.ID}); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if !env.mem.HasFile(own.ID) || !env.objects.Has(own.Key) {
		t.Fatalf("expected nothing deleted")
	}

	if err := env.files.Delete(ctx, alice.ID, []int{own.ID, 12345}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := env.files.Delete(ctx, alice.ID, []int{own.ID, own.ID}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if env.mem.HasFile(own.ID) || env.objects.Has(own.Key) {
		t.Fatalf("expected file deleted")
	}
}

func TestDeleteRejectsFileStillAttachedToFeed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := testutil.SeedUser(t, env.mem, "Owner", "owner@example.com", types.RoleUser)
	project, _ := testutil.SeedProject(t, env.mem, owner)

	feed, err := env.feeds.CreateFeed(ctx, owner.ID, project.ID, FeedInput{
		Title:   "Launch",
		Content: "<p>soon</p>",
		Files:   []UploadFile{textFile("plan.txt", "stage one")},
	})
	if err != nil {
		t.Fatalf("create feed: %v", err)
	}
	attachedID := feed.Files[0].ID

	if err := env.files.Delete(ctx, owner.ID, []int{attachedID}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if !env.mem.HasFile(attachedID) || !env.objects.Has(feed.Files[0].Key) {
		t.Fatalf("attached file was removed")
	}
}
