package service

import (
	"context"
	"database/sql"
	"math/rand"
	"testing"
	"time"

	"github.com/qsplatform/buildcore/internal/store"
	"github.com/qsplatform/buildcore/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) CreateUser(
	ctx context.Context,
	username string,
	email *string,
) (*store.User, error) {
	args := m.Called(ctx, username, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.User), args.Error(1)
}

func (m *MockUserStore) ReadUserByID(ctx context.Context, userID int64) (*store.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.User), args.Error(1)
}

func (m *MockUserStore) UpdateUserEmail(ctx context.Context, userID int64, email *string) error {
	args := m.Called(ctx, userID, email)
	return args.Error(0)
}

func (m *MockUserStore) DeleteUser(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func TestUserService_CreateUser(t *testing.T) {
	t.Run("success - user is created", func(t *testing.T) {
		// arrange
		expected := generateUser()
		ctx := context.Background()
		mockStore := new(MockUserStore)
		mockStore.On("CreateUser", ctx, expected.Username, expected.Email).Return(expected, nil)
		userService := NewUserService(mockStore)

		// act
		u, err := userService.CreateUser(ctx, expected.Username, expected.Email)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, expected.UserID, u.UserID)
	})

	t.Run("failure - invalid email", func(t *testing.T) {
		// arrange
		mockStore := new(MockUserStore)
		userService := NewUserService(mockStore)

		// act
		u, err := userService.CreateUser(context.Background(), "alice", util.AsPtr("not-an-address"))

		// assert
		var invalid *InvalidInputError
		assert.ErrorAs(t, err, &invalid)
		assert.Nil(t, u)
		mockStore.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("failure - address with display name is rejected", func(t *testing.T) {
		// arrange
		mockStore := new(MockUserStore)
		userService := NewUserService(mockStore)

		// act
		u, err := userService.CreateUser(context.Background(), "alice", util.AsPtr("Alice <alice@example.com>"))

		// assert
		var invalid *InvalidInputError
		assert.ErrorAs(t, err, &invalid)
		assert.Nil(t, u)
		mockStore.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestUserService_GetUserByID(t *testing.T) {
	t.Run("failure - user not found", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		mockStore := new(MockUserStore)
		mockStore.On("ReadUserByID", ctx, int64(3)).Return(nil, sql.ErrNoRows)
		userService := NewUserService(mockStore)

		// act
		u, err := userService.GetUserByID(ctx, 3)

		// assert
		var nf *NotFoundError
		assert.ErrorAs(t, err, &nf)
		assert.Nil(t, u)
	})
}

func TestUserService_UpdateUserEmail(t *testing.T) {
	t.Run("success - email is updated", func(t *testing.T) {
		// arrange
		u := generateUser()
		email := util.AsPtr("new@example.com")
		ctx := context.Background()
		mockStore := new(MockUserStore)
		mockStore.On("ReadUserByID", ctx, u.UserID).Return(u, nil)
		mockStore.On("UpdateUserEmail", ctx, u.UserID, email).Return(nil)
		userService := NewUserService(mockStore)

		// act
		err := userService.UpdateUserEmail(ctx, u.UserID, email)

		// assert
		assert.NoError(t, err)
		mockStore.AssertExpectations(t)
	})

	t.Run("success - email is cleared", func(t *testing.T) {
		// arrange
		u := generateUser()
		ctx := context.Background()
		mockStore := new(MockUserStore)
		mockStore.On("ReadUserByID", ctx, u.UserID).Return(u, nil)
		mockStore.On("UpdateUserEmail", ctx, u.UserID, (*string)(nil)).Return(nil)
		userService := NewUserService(mockStore)

		// act
		err := userService.UpdateUserEmail(ctx, u.UserID, nil)

		// assert
		assert.NoError(t, err)
	})
}

func generateUser() *store.User {
	return &store.User{
		UserID:    rand.Int63(),
		Username:  "user",
		Email:     util.AsPtr("user@example.com"),
		CreatedOn: time.Now().UTC(),
	}
}
