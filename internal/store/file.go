package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/nexus-collab/apiserver/types"
)

// FileRepository handles persistence for uploaded file metadata.
type FileRepository struct {
	db *sql.DB
}

func NewFileRepository(db *sql.DB) *FileRepository {
	return &FileRepository{db: db}
}

const fileColumns = `f.id, f.object_key, f.name, f.content_type, f.size, f.sha256, f.category, f.owner_id, f.project_id, f.created_at`

func scanFile(row rowScanner, extra ...any) (types.File, error) {
	var file types.File
	dest := append(extra,
		&file.ID,
		&file.Key,
		&file.Name,
		&file.ContentType,
		&file.Size,
		&file.SHA256,
		&file.Category,
		&file.OwnerID,
		&file.ProjectID,
		&file.CreatedAt,
	)
	if err := row.Scan(dest...); err != nil {
		return types.File{}, err
	}
	return file, nil
}

func (r *FileRepository) Create(ctx context.Context, file types.File) (types.File, error) {
	file.CreatedAt = time.Now()

	const query = `
		INSERT INTO files (object_key, name, content_type, size, sha256, category, owner_id, project_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		file.Key,
		file.Name,
		file.ContentType,
		file.Size,
		file.SHA256,
		file.Category,
		file.OwnerID,
		file.ProjectID,
		file.CreatedAt,
	).Scan(&file.ID); err != nil {
		return types.File{}, translateError(err)
	}
	return file, nil
}

func (r *FileRepository) Get(ctx context.Context, id int) (types.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files f WHERE f.id = $1`
	file, err := scanFile(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.File{}, ErrNotFound
		}
		return types.File{}, err
	}
	return file, nil
}

// GetMany returns the files that exist among ids, ordered by id.
func (r *FileRepository) GetMany(ctx context.Context, ids []int) ([]types.File, error) {
	if len(ids) == 0 {
		return []types.File{}, nil
	}
	query := `SELECT ` + fileColumns + ` FROM files f WHERE f.id = ANY($1) ORDER BY f.id`
	return r.list(ctx, query, pq.Array(ids))
}

func (r *FileRepository) ListByOwner(ctx context.Context, ownerID int) ([]types.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files f WHERE f.owner_id = $1 ORDER BY f.id`
	return r.list(ctx, query, ownerID)
}

func (r *FileRepository) list(ctx context.Context, query string, args ...any) ([]types.File, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := make([]types.File, 0)
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return files, nil
}

// DeleteMany removes file rows. It fails with ErrConflict while any of them is
// still referenced by a feed or profile.
func (r *FileRepository) DeleteMany(ctx context.Context, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `DELETE FROM files WHERE id = ANY($1)`
	if _, err := r.db.ExecContext(ctx, query, pq.Array(ids)); err != nil {
		return translateError(err)
	}
	return nil
}
