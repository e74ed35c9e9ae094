package types

import "time"

// Feed is a post on a project's community board. Notices are feeds with
// IsNotice set and can only be created by project admins.
type Feed struct {
	ID          int         `json:"id" db:"id"`
	CommunityID int         `json:"community_id" db:"community_id"`
	ProjectID   int         `json:"project_id" db:"project_id"`
	AuthorID    int         `json:"author_id" db:"author_id"`
	Author      *FeedAuthor `json:"author,omitempty" db:"-"`
	Title       string      `json:"title" db:"title"`
	Content     string      `json:"content" db:"content"`
	IsNotice    bool        `json:"is_notice" db:"is_notice"`
	Files       []File      `json:"files" db:"-"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

// FileIDs returns the ids of the attached files in display order.
func (f Feed) FileIDs() []int {
	ids := make([]int, 0, len(f.Files))
	for _, file := range f.Files {
		ids = append(ids, file.ID)
	}
	return ids
}

// FeedAuthor describes who wrote a feed.
type FeedAuthor struct {
	ProjectUserID int    `json:"project_user_id"`
	UserID        int    `json:"user_id"`
	Name          string `json:"name"`
}

// Feed event types published on the message queue.
const (
	EventFeedCreated   = "feed.created"
	EventFeedUpdated   = "feed.updated"
	EventFeedDeleted   = "feed.deleted"
	EventNoticeCreated = "notice.created"
)

// FeedEvent is the message published when a feed or notice changes.
type FeedEvent struct {
	Type       string    `json:"type"`
	FeedID     int       `json:"feed_id"`
	ProjectID  int       `json:"project_id"`
	ActorID    int       `json:"actor_id"`
	IsNotice   bool      `json:"is_notice"`
	FileIDs    []int     `json:"file_ids,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
