package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nexus-collab/apiserver/config"
	"github.com/nexus-collab/apiserver/internal/auth"
	"github.com/nexus-collab/apiserver/internal/services"
	"github.com/nexus-collab/apiserver/internal/testutil"
	"github.com/nexus-collab/apiserver/types"
	"go.uber.org/zap"
)

type apiEnv struct {
	t       *testing.T
	router  http.Handler
	mem     *testutil.Memory
	objects *testutil.MemoryObjects
	issuer  *auth.Issuer
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	mem := testutil.NewMemory()
	objects := testutil.NewMemoryObjects()
	issuer := auth.NewIssuer("handler-secret", time.Hour, 24*time.Hour)
	logger := zap.NewNop()

	files := services.NewFileService(mem.Files(), objects, logger)
	projects := services.NewProjectService(mem.Projects(), mem.Users())
	users := services.NewUserService(mem.Users(), files, logger)

	router := chi.NewRouter()
	Mount(router, API{
		Auth:     services.NewAuthService(mem.Users(), issuer, logger),
		Users:    users,
		Projects: projects,
		Feeds:    services.NewFeedService(mem.Feeds(), projects, files, &testutil.RecordingPublisher{}, logger),
		Files:    files,
		Upload:   config.UploadConfig{MaxFileBytes: 1 << 20, MaxFiles: 5, MaxFormMemory: 1 << 20},
		Logger:   logger,
	})

	return &apiEnv{t: t, router: router, mem: mem, objects: objects, issuer: issuer}
}

func (e *apiEnv) token(user types.User) string {
	e.t.Helper()
	token, _, err := e.issuer.Issue(user.ID, user.Role, auth.AccessToken)
	if err != nil {
		e.t.Fatalf("issue token: %v", err)
	}
	return token
}

func (e *apiEnv) do(req *http.Request, user *types.User) *httptest.ResponseRecorder {
	e.t.Helper()
	if user != nil {
		req.Header.Set("Authorization", "Bearer "+e.token(*user))
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *apiEnv) doJSON(method, target string, body any, user *types.User) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	return e.do(req, user)
}

type formFile struct {
	field       string
	name        string
	contentType string
	data        string
}

func multipartRequest(t *testing.T, method, target string, fields map[string][]string, files ...formFile) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, values := range fields {
		for _, value := range values {
			if err := writer.WriteField(key, value); err != nil {
				t.Fatalf("write field: %v", err)
			}
		}
	}
	for _, file := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.field, file.name))
		if file.contentType != "" {
			header.Set("Content-Type", file.contentType)
		}
		part, err := writer.CreatePart(header)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write([]byte(file.data)); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}
