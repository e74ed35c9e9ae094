package services

import (
	"testing"
	"time"

	"github.com/nexus-collab/apiserver/internal/auth"
	"github.com/nexus-collab/apiserver/internal/testutil"
	"go.uber.org/zap"
)

type testEnv struct {
	mem       *testutil.Memory
	objects   *testutil.MemoryObjects
	publisher *testutil.RecordingPublisher
	files     *FileService
	projects  *ProjectService
	feeds     *FeedService
	users     *UserService
	auth      *AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mem := testutil.NewMemory()
	objects := testutil.NewMemoryObjects()
	publisher := &testutil.RecordingPublisher{}
	logger := zap.NewNop()

	files := NewFileService(mem.Files(), objects, logger)
	projects := NewProjectService(mem.Projects(), mem.Users())
	return &testEnv{
		mem:       mem,
		objects:   objects,
		publisher: publisher,
		files:     files,
		projects:  projects,
		feeds:     NewFeedService(mem.Feeds(), projects, files, publisher, logger),
		users:     NewUserService(mem.Users(), files, logger),
		auth:      NewAuthService(mem.Users(), auth.NewIssuer("test-secret", time.Hour, 24*time.Hour), logger),
	}
}

func textFile(name, body string) UploadFile {
	return UploadFile{Name: name, ContentType: "text/plain", Data: []byte(body)}
}

func strPtr(s string) *string { return &s }
