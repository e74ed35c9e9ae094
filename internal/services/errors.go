package services

import (
	"errors"
	"fmt"
)

var (
	ErrNotProjectMember   = errors.New("not a project member")
	ErrAdminRequired      = errors.New("project admin access required")
	ErrNotOwner           = errors.New("not the owner")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrEmailTaken         = errors.New("email already exists")
	ErrInvalidInput       = errors.New("invalid input")
)

// invalidInput wraps ErrInvalidInput with a message safe to return to clients.
func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
