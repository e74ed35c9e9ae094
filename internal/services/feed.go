package services

import (
	"context"
	"fmt"

	"github.com/nexus-collab/apiserver/internal/store"
	"github.com/nexus-collab/apiserver/types"
	"go.uber.org/zap"
)

// FeedRepository defines persistence operations for feeds and notices.
type FeedRepository interface {
	Create(ctx context.Context, feed types.Feed, fileIDs []int) (types.Feed, error)
	Get(ctx context.Context, id int) (types.Feed, error)
	ListByProject(ctx context.Context, projectID int) ([]types.Feed, error)
	Update(ctx context.Context, feed types.Feed, fileIDs []int) (types.Feed, error)
	Delete(ctx context.Context, id int) error
}

// MembershipChecker resolves project membership and the project's board.
type MembershipChecker interface {
	Membership(ctx context.Context, projectID, userID int) (types.ProjectUser, error)
	Community(ctx context.Context, projectID int) (types.Community, error)
}

// FileManager is the part of the file service feeds delegate to.
type FileManager interface {
	Upload(ctx context.Context, req UploadRequest) ([]types.File, error)
	CheckOwner(ctx context.Context, userID int, ids []int) ([]types.File, error)
	Purge(ctx context.Context, files []types.File) error
}

// EventPublisher publishes feed change events.
type EventPublisher interface {
	Publish(ctx context.Context, event types.FeedEvent) error
}

// FeedInput is the payload for creating a feed or notice.
type FeedInput struct {
	Title   string
	Content string
	Files   []UploadFile
}

// FeedUpdate is the payload for updating a feed. Nil fields are left as is.
type FeedUpdate struct {
	Title          *string
	Content        *string
	DeletedFileIDs []int
	Files          []UploadFile
}

// FeedService encapsulates feed and notice use-cases.
type FeedService struct {
	repo    FeedRepository
	members MembershipChecker
	files   FileManager
	events  EventPublisher
	logger  *zap.Logger
}

func NewFeedService(repo FeedRepository, members MembershipChecker, files FileManager, events EventPublisher, logger *zap.Logger) *FeedService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedService{
		repo:    repo,
		members: members,
		files:   files,
		events:  events,
		logger:  logger,
	}
}

// CreateFeed posts a feed on the project board as userID.
func (s *FeedService) CreateFeed(ctx context.Context, userID, projectID int, input FeedInput) (types.Feed, error) {
	member, err := s.members.Membership(ctx, projectID, userID)
	if err != nil {
		return types.Feed{}, err
	}
	return s.create(ctx, member, input, false)
}

// CreateNotice posts a notice. Only project admins may do so.
func (s *FeedService) CreateNotice(ctx context.Context, userID, projectID int, input FeedInput) (types.Feed, error) {
	member, err := s.members.Membership(ctx, projectID, userID)
	if err != nil {
		return types.Feed{}, err
	}
	if !member.IsAdmin() {
		return types.Feed{}, ErrAdminRequired
	}
	return s.create(ctx, member, input, true)
}

func (s *FeedService) create(ctx context.Context, member types.ProjectUser, input FeedInput, notice bool) (types.Feed, error) {
	title, err := sanitizeTitle(input.Title)
	if err != nil {
		return types.Feed{}, err
	}
	content, err := sanitizeContent(input.Content)
	if err != nil {
		return types.Feed{}, err
	}

	community, err := s.members.Community(ctx, member.ProjectID)
	if err != nil {
		return types.Feed{}, fmt.Errorf("load community: %w", err)
	}

	uploaded, err := s.upload(ctx, member, input.Files)
	if err != nil {
		return types.Feed{}, err
	}

	created, err := s.repo.Create(ctx, types.Feed{
		CommunityID: community.ID,
		ProjectID:   member.ProjectID,
		AuthorID:    member.ID,
		Title:       title,
		Content:     content,
		IsNotice:    notice,
	}, fileIDs(uploaded))
	if err != nil {
		s.discard(ctx, uploaded)
		return types.Feed{}, err
	}

	eventType := types.EventFeedCreated
	if notice {
		eventType = types.EventNoticeCreated
	}
	s.publish(ctx, eventType, created, member.UserID)
	return created, nil
}

// Get returns a feed or notice of projectID visible to userID.
func (s *FeedService) Get(ctx context.Context, userID, projectID, feedID int) (types.Feed, error) {
	if _, err := s.members.Membership(ctx, projectID, userID); err != nil {
		return types.Feed{}, err
	}
	return s.load(ctx, projectID, feedID)
}

// GetNotice is Get restricted to notices.
func (s *FeedService) GetNotice(ctx context.Context, userID, projectID, noticeID int) (types.Feed, error) {
	feed, err := s.Get(ctx, userID, projectID, noticeID)
	if err != nil {
		return types.Feed{}, err
	}
	if !feed.IsNotice {
		return types.Feed{}, fmt.Errorf("notice: %w", store.ErrNotFound)
	}
	return feed, nil
}

// ListMine returns the caller's own feeds, or notices when notices is set.
func (s *FeedService) ListMine(ctx context.Context, userID, projectID int, notices bool) ([]types.Feed, error) {
	member, err := s.members.Membership(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	all, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	mine := make([]types.Feed, 0)
	for _, feed := range all {
		if feed.AuthorID == member.ID && feed.IsNotice == notices {
			mine = append(mine, feed)
		}
	}
	return mine, nil
}

// ListProject returns every feed and notice of the project, newest first.
func (s *FeedService) ListProject(ctx context.Context, userID, projectID int) ([]types.Feed, []types.Feed, error) {
	if _, err := s.members.Membership(ctx, projectID, userID); err != nil {
		return nil, nil, err
	}
	all, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}

	feeds := make([]types.Feed, 0)
	notices := make([]types.Feed, 0)
	for _, feed := range all {
		if feed.IsNotice {
			notices = append(notices, feed)
		} else {
			feeds = append(feeds, feed)
		}
	}
	return feeds, notices, nil
}

// Update edits a feed owned by userID. The resulting file list is the
// existing files minus the deleted ones, followed by the new uploads. All
// permission checks run before anything is uploaded or removed.
func (s *FeedService) Update(ctx context.Context, userID, projectID, feedID int, update FeedUpdate) (types.Feed, error) {
	member, feed, err := s.owned(ctx, userID, projectID, feedID)
	if err != nil {
		return types.Feed{}, err
	}

	if update.Title != nil {
		title, err := sanitizeTitle(*update.Title)
		if err != nil {
			return types.Feed{}, err
		}
		feed.Title = title
	}
	if update.Content != nil {
		content, err := sanitizeContent(*update.Content)
		if err != nil {
			return types.Feed{}, err
		}
		feed.Content = content
	}

	existing := feed.FileIDs()
	removed, err := s.files.CheckOwner(ctx, userID, attached(existing, update.DeletedFileIDs))
	if err != nil {
		return types.Feed{}, err
	}

	uploaded, err := s.upload(ctx, member, update.Files)
	if err != nil {
		return types.Feed{}, err
	}

	updated, err := s.repo.Update(ctx, feed, mergeFiles(existing, fileIDs(removed), fileIDs(uploaded)))
	if err != nil {
		s.discard(ctx, uploaded)
		return types.Feed{}, err
	}

	if err := s.files.Purge(ctx, removed); err != nil {
		s.logger.Error("failed to delete detached files",
			zap.Int("feed_id", feed.ID),
			zap.Ints("file_ids", fileIDs(removed)),
			zap.Error(err),
		)
	}

	s.publish(ctx, types.EventFeedUpdated, updated, member.UserID)
	return updated, nil
}

// Delete removes a feed owned by userID together with its files.
func (s *FeedService) Delete(ctx context.Context, userID, projectID, feedID int) error {
	member, feed, err := s.owned(ctx, userID, projectID, feedID)
	if err != nil {
		return err
	}

	files, err := s.files.CheckOwner(ctx, userID, feed.FileIDs())
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, feed.ID); err != nil {
		return err
	}

	if err := s.files.Purge(ctx, files); err != nil {
		s.logger.Error("failed to delete feed files",
			zap.Int("feed_id", feed.ID),
			zap.Ints("file_ids", fileIDs(files)),
			zap.Error(err),
		)
	}

	s.publish(ctx, types.EventFeedDeleted, feed, member.UserID)
	return nil
}

func (s *FeedService) owned(ctx context.Context, userID, projectID, feedID int) (types.ProjectUser, types.Feed, error) {
	member, err := s.members.Membership(ctx, projectID, userID)
	if err != nil {
		return types.ProjectUser{}, types.Feed{}, err
	}
	feed, err := s.load(ctx, projectID, feedID)
	if err != nil {
		return types.ProjectUser{}, types.Feed{}, err
	}
	if feed.AuthorID != member.ID {
		return types.ProjectUser{}, types.Feed{}, ErrNotOwner
	}
	return member, feed, nil
}

func (s *FeedService) load(ctx context.Context, projectID, feedID int) (types.Feed, error) {
	feed, err := s.repo.Get(ctx, feedID)
	if err != nil {
		return types.Feed{}, err
	}
	if feed.ProjectID != projectID {
		return types.Feed{}, fmt.Errorf("feed: %w", store.ErrNotFound)
	}
	return feed, nil
}

func (s *FeedService) upload(ctx context.Context, member types.ProjectUser, files []UploadFile) ([]types.File, error) {
	if len(files) == 0 {
		return []types.File{}, nil
	}
	projectID := member.ProjectID
	return s.files.Upload(ctx, UploadRequest{
		Files:     files,
		UserID:    member.UserID,
		ProjectID: &projectID,
		Category:  types.CategoryCommunity,
	})
}

func (s *FeedService) discard(ctx context.Context, files []types.File) {
	if err := s.files.Purge(ctx, files); err != nil {
		s.logger.Warn("failed to discard uploaded files", zap.Ints("file_ids", fileIDs(files)), zap.Error(err))
	}
}

func (s *FeedService) publish(ctx context.Context, eventType string, feed types.Feed, actorID int) {
	if s.events == nil {
		return
	}
	err := s.events.Publish(ctx, types.FeedEvent{
		Type:      eventType,
		FeedID:    feed.ID,
		ProjectID: feed.ProjectID,
		ActorID:   actorID,
		IsNotice:  feed.IsNotice,
		FileIDs:   feed.FileIDs(),
	})
	if err != nil {
		s.logger.Warn("failed to publish feed event",
			zap.String("type", eventType),
			zap.Int("feed_id", feed.ID),
			zap.Error(err),
		)
	}
}

// mergeFiles returns existing without deleted, followed by uploaded.
func mergeFiles(existing, deleted, uploaded []int) []int {
	drop := make(map[int]struct{}, len(deleted))
	for _, id := range deleted {
		drop[id] = struct{}{}
	}

	result := make([]int, 0, len(existing)+len(uploaded))
	for _, id := range existing {
		if _, ok := drop[id]; !ok {
			result = append(result, id)
		}
	}
	return append(result, uploaded...)
}

// attached returns the ids of requested that are present in existing,
// without duplicates.
func attached(existing, requested []int) []int {
	present := make(map[int]struct{}, len(existing))
	for _, id := range existing {
		present[id] = struct{}{}
	}

	out := make([]int, 0, len(requested))
	for _, id := range uniqueIDs(requested) {
		if _, ok := present[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func fileIDs(files []types.File) []int {
	ids := make([]int, 0, len(files))
	for _, file := range files {
		ids = append(ids, file.ID)
	}
	return ids
}
