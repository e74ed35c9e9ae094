// Package testutil provides in-memory implementations of the repositories and
// object storage for service and handler tests.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nexus-collab/apiserver/internal/store"
	"github.com/nexus-collab/apiserver/types"
)

// Memory holds every table in memory and mirrors the cascade rules of the
// Postgres schema.
type Memory struct {
	mu          sync.Mutex
	nextID      int
	users       map[int]types.User
	logs        map[int]types.UserLog
	projects    map[int]types.Project
	members     map[int]types.ProjectUser
	communities map[int]types.Community
	files       map[int]types.File
	feeds       map[int]types.Feed
	feedFiles   map[int][]int
}

func NewMemory() *Memory {
	return &Memory{
		users:       make(map[int]types.User),
		logs:        make(map[int]types.UserLog),
		projects:    make(map[int]types.Project),
		members:     make(map[int]types.ProjectUser),
		communities: make(map[int]types.Community),
		files:       make(map[int]types.File),
		feeds:       make(map[int]types.Feed),
		feedFiles:   make(map[int][]int),
	}
}

func (m *Memory) Users() *MemoryUsers       { return &MemoryUsers{m: m} }
func (m *Memory) Projects() *MemoryProjects { return &MemoryProjects{m: m} }
func (m *Memory) Files() *MemoryFiles       { return &MemoryFiles{m: m} }
func (m *Memory) Feeds() *MemoryFeeds       { return &MemoryFeeds{m: m} }

func (m *Memory) id() int {
	m.nextID++
	return m.nextID
}

// FileCount returns the number of stored file records.
func (m *Memory) FileCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

// HasFile reports whether a file record with id exists.
func (m *Memory) HasFile(id int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[id]
	return ok
}

// MemoryUsers implements the user repository.
type MemoryUsers struct{ m *Memory }

func (r *MemoryUsers) user(id int) (types.User, error) {
	user, ok := r.m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	log := r.m.logs[id]
	user.Log = &log
	return user, nil
}

func (r *MemoryUsers) List(ctx context.Context) ([]types.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	users := make([]types.User, 0, len(r.m.users))
	for id := range r.m.users {
		user, _ := r.user(id)
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *MemoryUsers) GetByID(ctx context.Context, id int) (types.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.user(id)
}

func (r *MemoryUsers) GetByEmail(ctx context.Context, email string) (types.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for id, user := range r.m.users {
		if strings.EqualFold(user.Email, email) {
			return r.user(id)
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *MemoryUsers) Create(ctx context.Context, user types.User) (types.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return types.User{}, store.ErrConflict
		}
	}

	now := time.Now()
	user.ID = r.m.id()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Log = nil
	r.m.users[user.ID] = user
	r.m.logs[user.ID] = types.UserLog{UserID: user.ID, Status: types.StatusOnline}
	return r.user(user.ID)
}

func (r *MemoryUsers) Update(ctx context.Context, user types.User) (types.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	for id, existing := range r.m.users {
		if id != user.ID && strings.EqualFold(existing.Email, user.Email) {
			return types.User{}, store.ErrConflict
		}
	}
	user.UpdatedAt = time.Now()
	user.Log = nil
	r.m.users[user.ID] = user
	return user, nil
}

func (r *MemoryUsers) Delete(ctx context.Context, id int) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.m.users, id)
	delete(r.m.logs, id)
	for memberID, member := range r.m.members {
		if member.UserID != id {
			continue
		}
		delete(r.m.members, memberID)
		for feedID, feed := range r.m.feeds {
			if feed.AuthorID == memberID {
				delete(r.m.feeds, feedID)
				delete(r.m.feedFiles, feedID)
			}
		}
	}
	for fileID, file := range r.m.files {
		if file.OwnerID == id {
			delete(r.m.files, fileID)
		}
	}
	for projectID, project := range r.m.projects {
		if project.CreatedBy != nil && *project.CreatedBy == id {
			project.CreatedBy = nil
			r.m.projects[projectID] = project
		}
	}
	return nil
}

func (r *MemoryUsers) updateLog(userID int, fn func(*types.UserLog)) (types.UserLog, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	log, ok := r.m.logs[userID]
	if !ok {
		return types.UserLog{}, store.ErrNotFound
	}
	fn(&log)
	r.m.logs[userID] = log
	return log, nil
}

func (r *MemoryUsers) UpdateStatus(ctx context.Context, userID int, status string) (types.UserLog, error) {
	return r.updateLog(userID, func(log *types.UserLog) { log.Status = status })
}

func (r *MemoryUsers) SetProfileImage(ctx context.Context, userID int, fileID *int) error {
	_, err := r.updateLog(userID, func(log *types.UserLog) { log.ProfileImageID = fileID })
	return err
}

func (r *MemoryUsers) RecordLogin(ctx context.Context, userID int, refreshHash string, expiresAt, at time.Time) error {
	_, err := r.updateLog(userID, func(log *types.UserLog) {
		log.RefreshToken = &refreshHash
		log.RefreshTokenExpiresAt = &expiresAt
		log.LastLoggedIn = &at
		log.Status = types.StatusOnline
	})
	return err
}

func (r *MemoryUsers) RecordLogout(ctx context.Context, userID int, at time.Time) error {
	_, err := r.updateLog(userID, func(log *types.UserLog) {
		log.RefreshToken = nil
		log.RefreshTokenExpiresAt = nil
		log.LastLoggedOut = &at
		log.Status = types.StatusOffline
	})
	return err
}

func (r *MemoryUsers) RotateRefreshToken(ctx context.Context, userID int, oldHash, newHash string, expiresAt time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	log, ok := r.m.logs[userID]
	if !ok || log.RefreshToken == nil || *log.RefreshToken != oldHash {
		return store.ErrNotFound
	}
	log.RefreshToken = &newHash
	log.RefreshTokenExpiresAt = &expiresAt
	r.m.logs[userID] = log
	return nil
}

// MemoryProjects implements the project repository.
type MemoryProjects struct{ m *Memory }

func (r *MemoryProjects) Create(ctx context.Context, project types.Project, creatorID int) (types.Project, types.ProjectUser, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	creator, ok := r.m.users[creatorID]
	if !ok {
		return types.Project{}, types.ProjectUser{}, store.ErrConflict
	}

	now := time.Now()
	project.ID = r.m.id()
	project.CreatedBy = &creatorID
	project.CreatedAt = now
	project.UpdatedAt = now
	r.m.projects[project.ID] = project

	member := types.ProjectUser{
		ID:        r.m.id(),
		ProjectID: project.ID,
		UserID:    creatorID,
		Role:      types.ProjectRoleAdmin,
		CreatedAt: now,
		Name:      creator.Name,
	}
	r.m.members[member.ID] = member
	r.m.communities[project.ID] = types.Community{ID: r.m.id(), ProjectID: project.ID, CreatedAt: now}
	return project, member, nil
}

func (r *MemoryProjects) Get(ctx context.Context, id int) (types.Project, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	project, ok := r.m.projects[id]
	if !ok {
		return types.Project{}, store.ErrNotFound
	}
	return project, nil
}

func (r *MemoryProjects) ListByUser(ctx context.Context, userID int) ([]types.Project, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	projects := make([]types.Project, 0)
	for _, member := range r.m.members {
		if member.UserID == userID {
			projects = append(projects, r.m.projects[member.ProjectID])
		}
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].ID < projects[j].ID })
	return projects, nil
}

func (r *MemoryProjects) GetMember(ctx context.Context, projectID, userID int) (types.ProjectUser, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, member := range r.m.members {
		if member.ProjectID == projectID && member.UserID == userID {
			member.Name = r.m.users[userID].Name
			return member, nil
		}
	}
	return types.ProjectUser{}, store.ErrNotFound
}

func (r *MemoryProjects) ListMembers(ctx context.Context, projectID int) ([]types.ProjectUser, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	members := make([]types.ProjectUser, 0)
	for _, member := range r.m.members {
		if member.ProjectID == projectID {
			member.Name = r.m.users[member.UserID].Name
			members = append(members, member)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members, nil
}

func (r *MemoryProjects) AddMember(ctx context.Context, member types.ProjectUser) (types.ProjectUser, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.projects[member.ProjectID]; !ok {
		return types.ProjectUser{}, store.ErrConflict
	}
	if _, ok := r.m.users[member.UserID]; !ok {
		return types.ProjectUser{}, store.ErrConflict
	}
	for _, existing := range r.m.members {
		if existing.ProjectID == member.ProjectID && existing.UserID == member.UserID {
			return types.ProjectUser{}, store.ErrConflict
		}
	}
	member.ID = r.m.id()
	member.CreatedAt = time.Now()
	r.m.members[member.ID] = member
	return member, nil
}

func (r *MemoryProjects) GetCommunityByProjectID(ctx context.Context, projectID int) (types.Community, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	community, ok := r.m.communities[projectID]
	if !ok {
		return types.Community{}, store.ErrNotFound
	}
	return community, nil
}

// MemoryFiles implements the file repository. DeleteMany refuses files still
// attached to a feed or used as a profile image.
type MemoryFiles struct{ m *Memory }

func (r *MemoryFiles) Create(ctx context.Context, file types.File) (types.File, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.files {
		if existing.Key == file.Key {
			return types.File{}, store.ErrConflict
		}
	}
	file.ID = r.m.id()
	file.CreatedAt = time.Now()
	r.m.files[file.ID] = file
	return file, nil
}

func (r *MemoryFiles) Get(ctx context.Context, id int) (types.File, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	file, ok := r.m.files[id]
	if !ok {
		return types.File{}, store.ErrNotFound
	}
	return file, nil
}

func (r *MemoryFiles) GetMany(ctx context.Context, ids []int) ([]types.File, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	files := make([]types.File, 0, len(ids))
	for _, id := range ids {
		if file, ok := r.m.files[id]; ok {
			files = append(files, file)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })
	return files, nil
}

func (r *MemoryFiles) ListByOwner(ctx context.Context, ownerID int) ([]types.File, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	files := make([]types.File, 0)
	for _, file := range r.m.files {
		if file.OwnerID == ownerID {
			files = append(files, file)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })
	return files, nil
}

func (r *MemoryFiles) DeleteMany(ctx context.Context, ids []int) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	referenced := make(map[int]struct{})
	for _, fileIDs := range r.m.feedFiles {
		for _, id := range fileIDs {
			referenced[id] = struct{}{}
		}
	}
	for _, log := range r.m.logs {
		if log.ProfileImageID != nil {
			referenced[*log.ProfileImageID] = struct{}{}
		}
	}
	for _, id := range ids {
		if _, ok := referenced[id]; ok {
			return store.ErrConflict
		}
	}
	for _, id := range ids {
		delete(r.m.files, id)
	}
	return nil
}

// MemoryFeeds implements the feed repository.
type MemoryFeeds struct{ m *Memory }

func (r *MemoryFeeds) attach(feedID int, fileIDs []int) error {
	for _, id := range fileIDs {
		if _, ok := r.m.files[id]; !ok {
			return store.ErrConflict
		}
	}
	r.m.feedFiles[feedID] = append([]int(nil), fileIDs...)
	return nil
}

func (r *MemoryFeeds) feed(id int) (types.Feed, error) {
	feed, ok := r.m.feeds[id]
	if !ok {
		return types.Feed{}, store.ErrNotFound
	}
	member := r.m.members[feed.AuthorID]
	feed.Author = &types.FeedAuthor{
		ProjectUserID: member.ID,
		UserID:        member.UserID,
		Name:          r.m.users[member.UserID].Name,
	}
	feed.Files = make([]types.File, 0, len(r.m.feedFiles[id]))
	for _, fileID := range r.m.feedFiles[id] {
		feed.Files = append(feed.Files, r.m.files[fileID])
	}
	return feed, nil
}

func (r *MemoryFeeds) Create(ctx context.Context, feed types.Feed, fileIDs []int) (types.Feed, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.members[feed.AuthorID]; !ok {
		return types.Feed{}, store.ErrConflict
	}
	now := time.Now()
	feed.ID = r.m.id()
	feed.CreatedAt = now
	feed.UpdatedAt = now
	feed.Author = nil
	feed.Files = nil
	if err := r.attach(feed.ID, fileIDs); err != nil {
		return types.Feed{}, err
	}
	r.m.feeds[feed.ID] = feed
	return r.feed(feed.ID)
}

func (r *MemoryFeeds) Get(ctx context.Context, id int) (types.Feed, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.feed(id)
}

func (r *MemoryFeeds) ListByProject(ctx context.Context, projectID int) ([]types.Feed, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	feeds := make([]types.Feed, 0)
	for id, feed := range r.m.feeds {
		if feed.ProjectID == projectID {
			loaded, _ := r.feed(id)
			feeds = append(feeds, loaded)
		}
	}
	sort.Slice(feeds, func(i, j int) bool { return feeds[i].ID > feeds[j].ID })
	return feeds, nil
}

func (r *MemoryFeeds) Update(ctx context.Context, feed types.Feed, fileIDs []int) (types.Feed, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored, ok := r.m.feeds[feed.ID]
	if !ok {
		return types.Feed{}, store.ErrNotFound
	}
	if err := r.attach(feed.ID, fileIDs); err != nil {
		return types.Feed{}, err
	}
	stored.Title = feed.Title
	stored.Content = feed.Content
	stored.UpdatedAt = time.Now()
	r.m.feeds[feed.ID] = stored
	return r.feed(feed.ID)
}

func (r *MemoryFeeds) Delete(ctx context.Context, id int) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.feeds[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.m.feeds, id)
	delete(r.m.feedFiles, id)
	return nil
}
