//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"
)

type authResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         struct {
		ID int `json:"id"`
	} `json:"user"`
}

type projectResponse struct {
	ID int `json:"id"`
}

type fileResponse struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type feedResponse struct {
	ID       int            `json:"id"`
	Title    string         `json:"title"`
	Content  string         `json:"content"`
	IsNotice bool           `json:"is_notice"`
	Files    []fileResponse `json:"files"`
}

type upload struct {
	name string
	data string
}

func TestFeedLifecycle(t *testing.T) {
	owner := registerUser(t, "owner")
	project := createProject(t, owner.AccessToken, "Apollo")

	created := sendFeedForm(t, http.MethodPost, fmt.Sprintf("/feed/create-feed/%d", project.ID), owner.AccessToken,
		map[string]string{"title": "Launch plan", "content": "<p>T minus ten</p>"},
		[]upload{{name: "plan.txt", data: "stage one"}, {name: "crew.txt", data: "three"}},
		http.StatusCreated)
	if created.Title != "Launch plan" || len(created.Files) != 2 {
		t.Fatalf("unexpected created feed: %+v", created)
	}

	removed := created.Files[0].ID
	updated := sendFeedForm(t, http.MethodPatch, fmt.Sprintf("/feed/update-feed/%d/%d", created.ID, project.ID), owner.AccessToken,
		map[string]string{"title": "Launch plan v2", "deleted_files": strconv.Itoa(removed)},
		[]upload{{name: "checklist.txt", data: "fuel"}},
		http.StatusOK)
	if updated.Title != "Launch plan v2" || updated.Content != created.Content {
		t.Fatalf("unexpected updated feed: %+v", updated)
	}
	if len(updated.Files) != 2 || updated.Files[0].ID != created.Files[1].ID || updated.Files[1].Name != "checklist.txt" {
		t.Fatalf("unexpected files after update: %+v", updated.Files)
	}

	fetched := getFeed(t, created.ID, project.ID, owner.AccessToken, http.StatusOK)
	if fetched.ID != created.ID {
		t.Fatalf("unexpected feed id: %d", fetched.ID)
	}

	expectStatus(t, http.MethodGet, fmt.Sprintf("/file/%d", removed), owner.AccessToken, http.StatusNotFound)
	expectStatus(t, http.MethodGet, fmt.Sprintf("/file/%d", updated.Files[1].ID), owner.AccessToken, http.StatusOK)

	expectStatus(t, http.MethodDelete, fmt.Sprintf("/feed/delete-feed/%d/%d", created.ID, project.ID), owner.AccessToken, http.StatusOK)
	getFeed(t, created.ID, project.ID, owner.AccessToken, http.StatusNotFound)
}

func TestNonMemberCannotReadProjectFeeds(t *testing.T) {
	owner := registerUser(t, "owner")
	outsider := registerUser(t, "outsider")
	project := createProject(t, owner.AccessToken, "Gemini")

	expectStatus(t, http.MethodGet, fmt.Sprintf("/feed/list/%d", project.ID), outsider.AccessToken, http.StatusForbidden)
	expectStatus(t, http.MethodGet, fmt.Sprintf("/feed/list/%d", project.ID), owner.AccessToken, http.StatusOK)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	body, _ := json.Marshal(map[string]string{"email": "nobody@example.com", "password": "wrong-password"})
	resp, err := http.Post(baseURL+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func registerUser(t *testing.T, prefix string) authResponse {
	t.Helper()

	email := fmt.Sprintf("%s_%d@example.com", prefix, time.Now().UnixNano())
	body, err := json.Marshal(map[string]string{
		"email":    email,
		"name":     "Test " + prefix,
		"password": "testpass123!",
	})
	if err != nil {
		t.Fatalf("marshal register: %v", err)
	}

	resp, err := http.Post(baseURL+"/auth/register", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("register status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed authResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode register: %v", err)
	}
	if parsed.AccessToken == "" || parsed.RefreshToken == "" {
		t.Fatalf("missing tokens in register response")
	}
	return parsed
}

func createProject(t *testing.T, token, name string) projectResponse {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"name": name})
	req, err := http.NewRequest(http.MethodPost, baseURL+"/project", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("create project status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed projectResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode project: %v", err)
	}
	return parsed
}

func sendFeedForm(t *testing.T, method, path, token string, fields map[string]string, files []upload, want int) feedResponse {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		_ = writer.WriteField(key, value)
	}
	for _, f := range files {
		part, err := writer.CreateFormFile("community_files", f.name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write([]byte(f.data)); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req, err := http.NewRequest(method, baseURL+path, &body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode feed: %v", err)
	}
	return parsed
}

func getFeed(t *testing.T, feedID, projectID int, token string, want int) feedResponse {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/feed/%d/%d", baseURL, feedID, projectID), nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get feed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("get feed status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed feedResponse
	if want == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			t.Fatalf("decode feed: %v", err)
		}
	}
	return parsed
}

func expectStatus(t *testing.T, method, path, token string, want int) {
	t.Helper()

	req, err := http.NewRequest(method, baseURL+path, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: expected %d, got %d: %s", method, path, want, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
}
