package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/nexus-collab/apiserver/types"
)

// FeedRepository handles persistence for feeds, notices and their file lists.
type FeedRepository struct {
	db *sql.DB
}

func NewFeedRepository(db *sql.DB) *FeedRepository {
	return &FeedRepository{db: db}
}

const feedSelect = `
		SELECT f.id, f.community_id, f.project_id, f.author_id, f.title, f.content, f.is_notice,
		       f.created_at, f.updated_at, pu.user_id, u.name
		FROM feeds f
		JOIN project_users pu ON pu.id = f.author_id
		JOIN users u ON u.id = pu.user_id`

func scanFeed(row rowScanner) (types.Feed, error) {
	var feed types.Feed
	author := &types.FeedAuthor{}
	if err := row.Scan(
		&feed.ID,
		&feed.CommunityID,
		&feed.ProjectID,
		&feed.AuthorID,
		&feed.Title,
		&feed.Content,
		&feed.IsNotice,
		&feed.CreatedAt,
		&feed.UpdatedAt,
		&author.UserID,
		&author.Name,
	); err != nil {
		return types.Feed{}, err
	}
	author.ProjectUserID = feed.AuthorID
	feed.Author = author
	feed.Files = []types.File{}
	return feed, nil
}

// Create inserts the feed and attaches fileIDs in order.
func (r *FeedRepository) Create(ctx context.Context, feed types.Feed, fileIDs []int) (types.Feed, error) {
	now := time.Now()
	feed.CreatedAt = now
	feed.UpdatedAt = now

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		const query = `
			INSERT INTO feeds (community_id, project_id, author_id, title, content, is_notice, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id`
		if err := tx.QueryRowContext(
			ctx,
			query,
			feed.CommunityID,
			feed.ProjectID,
			feed.AuthorID,
			feed.Title,
			feed.Content,
			feed.IsNotice,
			feed.CreatedAt,
			feed.UpdatedAt,
		).Scan(&feed.ID); err != nil {
			return translateError(err)
		}
		return attachFiles(ctx, tx, feed.ID, fileIDs)
	})
	if err != nil {
		return types.Feed{}, err
	}
	return r.Get(ctx, feed.ID)
}

func (r *FeedRepository) Get(ctx context.Context, id int) (types.Feed, error) {
	query := feedSelect + ` WHERE f.id = $1`
	feed, err := scanFeed(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Feed{}, ErrNotFound
		}
		return types.Feed{}, err
	}

	feeds := []types.Feed{feed}
	if err := r.loadFiles(ctx, feeds); err != nil {
		return types.Feed{}, err
	}
	return feeds[0], nil
}

// ListByProject returns every feed and notice of a project, newest first.
func (r *FeedRepository) ListByProject(ctx context.Context, projectID int) ([]types.Feed, error) {
	query := feedSelect + ` WHERE f.project_id = $1 ORDER BY f.created_at DESC, f.id DESC`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	feeds := make([]types.Feed, 0)
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, feed)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadFiles(ctx, feeds); err != nil {
		return nil, err
	}
	return feeds, nil
}

// Update writes title and content and replaces the file list atomically.
func (r *FeedRepository) Update(ctx context.Context, feed types.Feed, fileIDs []int) (types.Feed, error) {
	feed.UpdatedAt = time.Now()

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		const query = `
			UPDATE feeds
			SET title = $1,
				content = $2,
				updated_at = $3
			WHERE id = $4`
		result, err := tx.ExecContext(ctx, query, feed.Title, feed.Content, feed.UpdatedAt, feed.ID)
		if err != nil {
			return err
		}
		if err := checkAffected(result); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM feed_files WHERE feed_id = $1`, feed.ID); err != nil {
			return err
		}
		return attachFiles(ctx, tx, feed.ID, fileIDs)
	})
	if err != nil {
		return types.Feed{}, err
	}
	return r.Get(ctx, feed.ID)
}

// Delete removes the feed and its file references.
func (r *FeedRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM feeds WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

func attachFiles(ctx context.Context, tx *sql.Tx, feedID int, fileIDs []int) error {
	const query = `INSERT INTO feed_files (feed_id, file_id, position) VALUES ($1, $2, $3)`
	for position, fileID := range fileIDs {
		if _, err := tx.ExecContext(ctx, query, feedID, fileID, position); err != nil {
			return translateError(err)
		}
	}
	return nil
}

func (r *FeedRepository) loadFiles(ctx context.Context, feeds []types.Feed) error {
	if len(feeds) == 0 {
		return nil
	}

	ids := make([]int, 0, len(feeds))
	index := make(map[int]int, len(feeds))
	for i, feed := range feeds {
		ids = append(ids, feed.ID)
		index[feed.ID] = i
	}

	query := `
		SELECT ff.feed_id, ` + fileColumns + `
		FROM feed_files ff
		JOIN files f ON f.id = ff.file_id
		WHERE ff.feed_id = ANY($1)
		ORDER BY ff.feed_id, ff.position`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var feedID int
		file, err := scanFile(rows, &feedID)
		if err != nil {
			return err
		}
		i := index[feedID]
		feeds[i].Files = append(feeds[i].Files, file)
	}
	return rows.Err()
}
