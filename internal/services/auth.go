package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nexus-collab/apiserver/internal/auth"
	"github.com/nexus-collab/apiserver/internal/store"
	"github.com/nexus-collab/apiserver/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Session is the token pair handed out on register, login and refresh.
type Session struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	User             types.User
}

// AuthService handles registration and the token lifecycle.
type AuthService struct {
	users  UserRepository
	tokens *auth.Issuer
	logger *zap.Logger
	now    func() time.Time
}

func NewAuthService(users UserRepository, tokens *auth.Issuer, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{users: users, tokens: tokens, logger: logger, now: time.Now}
}

// Register creates a USER account and signs it in.
func (s *AuthService) Register(ctx context.Context, email, name, password string) (Session, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if email == "" || name == "" || password == "" {
		return Session{}, invalidInput("missing required fields")
	}
	if !strings.Contains(email, "@") {
		return Session{}, invalidInput("invalid email")
	}

	hash, err := hashPassword(password)
	if err != nil {
		return Session{}, err
	}

	user, err := s.users.Create(ctx, types.User{
		Email:        email,
		Name:         name,
		Role:         types.RoleUser,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return Session{}, ErrEmailTaken
		}
		return Session{}, err
	}
	return s.signIn(ctx, user)
}

// Login verifies credentials and starts a session.
func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Session{}, invalidInput("missing credentials")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	return s.signIn(ctx, user)
}

// Refresh exchanges a valid refresh token for a new token pair. The presented
// token stops working afterwards.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	claims, err := s.tokens.Parse(refreshToken, auth.RefreshToken)
	if err != nil {
		return Session{}, ErrInvalidToken
	}
	userID, _ := claims.UserID()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, ErrInvalidToken
		}
		return Session{}, err
	}

	presented := auth.HashToken(refreshToken)
	log := user.Log
	if log == nil || log.RefreshToken == nil || *log.RefreshToken != presented {
		return Session{}, ErrInvalidToken
	}
	if log.RefreshTokenExpiresAt != nil && !s.now().Before(*log.RefreshTokenExpiresAt) {
		return Session{}, ErrInvalidToken
	}

	session, err := s.issue(user)
	if err != nil {
		return Session{}, err
	}
	// A concurrent refresh with the same token may have rotated it already.
	if err := s.users.RotateRefreshToken(ctx, user.ID, presented, auth.HashToken(session.RefreshToken), session.RefreshExpiresAt); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, ErrInvalidToken
		}
		return Session{}, err
	}
	return session, nil
}

// Logout drops the stored refresh token and marks the user offline.
func (s *AuthService) Logout(ctx context.Context, userID int) error {
	return s.users.RecordLogout(ctx, userID, s.now())
}

// Authenticate validates an access token and returns the user id and role.
func (s *AuthService) Authenticate(accessToken string) (int, string, error) {
	claims, err := s.tokens.Parse(accessToken, auth.AccessToken)
	if err != nil {
		return 0, "", ErrInvalidToken
	}
	userID, _ := claims.UserID()
	return userID, claims.Role, nil
}

func (s *AuthService) signIn(ctx context.Context, user types.User) (Session, error) {
	session, err := s.issue(user)
	if err != nil {
		return Session{}, err
	}
	if err := s.users.RecordLogin(ctx, user.ID, auth.HashToken(session.RefreshToken), session.RefreshExpiresAt, s.now()); err != nil {
		return Session{}, err
	}

	if refreshed, err := s.users.GetByID(ctx, user.ID); err == nil {
		session.User = refreshed
	} else {
		s.logger.Warn("failed to reload user after login", zap.Int("user_id", user.ID), zap.Error(err))
	}
	return session, nil
}

func (s *AuthService) issue(user types.User) (Session, error) {
	access, accessExp, err := s.tokens.Issue(user.ID, user.Role, auth.AccessToken)
	if err != nil {
		return Session{}, err
	}
	refresh, refreshExp, err := s.tokens.Issue(user.ID, user.Role, auth.RefreshToken)
	if err != nil {
		return Session{}, err
	}
	return Session{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
		User:             user,
	}, nil
}
