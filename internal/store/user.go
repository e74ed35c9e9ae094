package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/nexus-collab/apiserver/types"
)

// UserRepository handles persistence for users and their activity log.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `
		u.id, u.email, u.name, u.role, u.password_hash, u.created_at, u.updated_at,
		l.user_id, l.profile_image_id, l.rank, l.status, l.last_logged_in, l.last_logged_out,
		l.refresh_token, l.refresh_token_expires_at`

func scanUser(row rowScanner) (types.User, error) {
	var user types.User
	var log types.UserLog
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Role,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
		&log.UserID,
		&log.ProfileImageID,
		&log.Rank,
		&log.Status,
		&log.LastLoggedIn,
		&log.LastLoggedOut,
		&log.RefreshToken,
		&log.RefreshTokenExpiresAt,
	); err != nil {
		return types.User{}, err
	}
	user.Log = &log
	return user, nil
}

func (r *UserRepository) List(ctx context.Context) ([]types.User, error) {
	query := `SELECT` + userColumns + `
		FROM users u
		JOIN user_log l ON l.user_id = u.id
		ORDER BY u.id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]types.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	query := `SELECT` + userColumns + `
		FROM users u
		JOIN user_log l ON l.user_id = u.id
		WHERE u.id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	query := `SELECT` + userColumns + `
		FROM users u
		JOIN user_log l ON l.user_id = u.id
		WHERE lower(u.email) = lower($1)`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

// Create inserts the user and its log row in one transaction.
func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		const insertUser = `
			INSERT INTO users (email, name, role, password_hash, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`
		if err := tx.QueryRowContext(
			ctx,
			insertUser,
			user.Email,
			user.Name,
			user.Role,
			user.PasswordHash,
			user.CreatedAt,
			user.UpdatedAt,
		).Scan(&user.ID); err != nil {
			return translateError(err)
		}

		const insertLog = `
			INSERT INTO user_log (user_id)
			VALUES ($1)
			RETURNING rank, status`
		log := types.UserLog{UserID: user.ID}
		if err := tx.QueryRowContext(ctx, insertLog, user.ID).Scan(&log.Rank, &log.Status); err != nil {
			return err
		}
		user.Log = &log
		return nil
	})
	if err != nil {
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	user.UpdatedAt = time.Now()

	const query = `
		UPDATE users
		SET email = $1,
			name = $2,
			role = $3,
			password_hash = $4,
			updated_at = $5
		WHERE id = $6`
	result, err := r.db.ExecContext(
		ctx,
		query,
		user.Email,
		user.Name,
		user.Role,
		user.PasswordHash,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return types.User{}, translateError(err)
	}
	if err := checkAffected(result); err != nil {
		return types.User{}, err
	}
	return user, nil
}

// Delete removes the user; the log row and memberships go with it by cascade.
func (r *UserRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM users WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return translateError(err)
	}
	return checkAffected(result)
}

func (r *UserRepository) UpdateStatus(ctx context.Context, userID int, status string) (types.UserLog, error) {
	const query = `
		UPDATE user_log
		SET status = $1
		WHERE user_id = $2
		RETURNING user_id, profile_image_id, rank, status, last_logged_in, last_logged_out`
	var log types.UserLog
	err := r.db.QueryRowContext(ctx, query, status, userID).Scan(
		&log.UserID,
		&log.ProfileImageID,
		&log.Rank,
		&log.Status,
		&log.LastLoggedIn,
		&log.LastLoggedOut,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.UserLog{}, ErrNotFound
		}
		return types.UserLog{}, err
	}
	return log, nil
}

func (r *UserRepository) SetProfileImage(ctx context.Context, userID int, fileID *int) error {
	const query = `UPDATE user_log SET profile_image_id = $1 WHERE user_id = $2`
	result, err := r.db.ExecContext(ctx, query, fileID, userID)
	if err != nil {
		return translateError(err)
	}
	return checkAffected(result)
}

// RecordLogin stores the hashed refresh token and marks the user online.
func (r *UserRepository) RecordLogin(ctx context.Context, userID int, refreshHash string, expiresAt, at time.Time) error {
	const query = `
		UPDATE user_log
		SET refresh_token = $1,
			refresh_token_expires_at = $2,
			last_logged_in = $3,
			status = $4
		WHERE user_id = $5`
	result, err := r.db.ExecContext(ctx, query, refreshHash, expiresAt, at, types.StatusOnline, userID)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// RecordLogout clears the refresh token and marks the user offline.
func (r *UserRepository) RecordLogout(ctx context.Context, userID int, at time.Time) error {
	const query = `
		UPDATE user_log
		SET refresh_token = NULL,
			refresh_token_expires_at = NULL,
			last_logged_out = $1,
			status = $2
		WHERE user_id = $3`
	result, err := r.db.ExecContext(ctx, query, at, types.StatusOffline, userID)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// RotateRefreshToken swaps the stored refresh token hash from oldHash to
// newHash. It returns ErrNotFound when oldHash is no longer current.
func (r *UserRepository) RotateRefreshToken(ctx context.Context, userID int, oldHash, newHash string, expiresAt time.Time) error {
	const query = `
		UPDATE user_log
		SET refresh_token = $1,
			refresh_token_expires_at = $2
		WHERE user_id = $3 AND refresh_token = $4`
	result, err := r.db.ExecContext(ctx, query, newHash, expiresAt, userID, oldHash)
	if err != nil {
		return err
	}
	return checkAffected(result)
}
