package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/qsplatform/buildcore/internal/store"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type UserWriter interface {
	CreateUser(context.Context, string, *string) (*store.User, error)
	UpdateUserEmail(context.Context, int64, *string) error
	DeleteUser(context.Context, int64) error
}

type UserReader interface {
	ReadUserByID(context.Context, int64) (*store.User, error)
}

type UserStore interface {
	UserWriter
	UserReader
}

// UserService manages the users builds are attributed to. The email is the
// address build notifications are sent to.
type UserService struct {
	userStore UserStore
}

func NewUserService(s UserStore) *UserService {
	return &UserService{userStore: s}
}

func (s *UserService) GetUserByID(ctx context.Context, userID int64) (*store.User, error) {
	u, err := s.userStore.ReadUserByID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewNotFoundError("user", userID)
	}
	return u, err
}

func (s *UserService) CreateUser(ctx context.Context, username string, email *string) (*store.User, error) {
	if username == "" {
		return nil, NewInvalidInputError("username", "required")
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	return s.userStore.CreateUser(ctx, username, email)
}

func (s *UserService) UpdateUserEmail(ctx context.Context, userID int64, email *string) error {
	if err := validateEmail(email); err != nil {
		return err
	}
	if _, err := s.GetUserByID(ctx, userID); err != nil {
		return err
	}
	return s.userStore.UpdateUserEmail(ctx, userID, email)
}

func (s *UserService) DeleteUser(ctx context.Context, userID int64) error {
	return s.userStore.DeleteUser(ctx, userID)
}

func validateEmail(email *string) error {
	if email == nil || *email == "" {
		return nil
	}
	if err := validate.Var(*email, "email"); err != nil {
		return NewInvalidInputError("email", "invalid address")
	}
	return nil
}
