package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/qsplatform/buildcore/internal/store"
)

type UUIDGenerator interface {
	GenerateUUID() string
}

func NewUUIDGen() *UUIDGen {
	return &UUIDGen{}
}

type UUIDGen struct{}

func (ug *UUIDGen) GenerateUUID() string {
	return uuid.NewString()
}

type APIKeyStore interface {
	CreateAPIKey(context.Context, string, *int64) (*store.APIKey, error)
	ReadAPIKeyByID(context.Context, int64) (*store.APIKey, error)
	ReadAPIKeyByValue(context.Context, string) (*store.APIKey, error)
	DeleteAPIKey(context.Context, int64) error
	ListAPIKeys(context.Context) ([]*store.APIKey, error)
}

type APIKeyService struct {
	store         APIKeyStore
	uuidGenerator UUIDGenerator
}

func NewAPIKeyService(store APIKeyStore, uuidGenerator UUIDGenerator) *APIKeyService {
	return &APIKeyService{store, uuidGenerator}
}

// CreateAPIKey issues a new key. Requests made with it act as userID, or
// anonymously when userID is nil.
func (s *APIKeyService) CreateAPIKey(ctx context.Context, userID *int64) (*store.APIKey, error) {
	value := s.uuidGenerator.GenerateUUID()
	return s.store.CreateAPIKey(ctx, value, userID)
}

func (s *APIKeyService) GetAPIKeyByID(ctx context.Context, id int64) (*store.APIKey, error) {
	ak, err := s.store.ReadAPIKeyByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewNotFoundError("api key", id)
	}
	return ak, err
}

func (s *APIKeyService) GetAPIKeyByValue(ctx context.Context, value string) (*store.APIKey, error) {
	return s.store.ReadAPIKeyByValue(ctx, value)
}

func (s *APIKeyService) DeleteAPIKey(ctx context.Context, id int64) error {
	if _, err := s.GetAPIKeyByID(ctx, id); err != nil {
		return err
	}
	return s.store.DeleteAPIKey(ctx, id)
}

func (s *APIKeyService) ListAPIKeys(ctx context.Context) ([]*store.APIKey, error) {
	return s.store.ListAPIKeys(ctx)
}
