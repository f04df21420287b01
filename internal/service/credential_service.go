package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/qsplatform/buildcore/internal/security"
	"github.com/qsplatform/buildcore/internal/store"
)

type CredentialWriter interface {
	CreateCredential(context.Context, string, string, string, string) (*store.JobCredential, error)
	UpdateCredentialActive(context.Context, int64, bool) error
	DeleteCredential(context.Context, int64) error
}

type CredentialReader interface {
	ReadCredentialByID(context.Context, int64) (*store.JobCredential, error)
}

type CredentialStore interface {
	CredentialWriter
	CredentialReader
	CountCredentialJobs(context.Context, int64) (int64, error)
	ListCredentials(context.Context, bool) ([]*store.JobCredential, error)
}

type CredentialService struct {
	credentialStore CredentialStore
	encrypter       security.Encrypter
}

func NewCredentialService(
	s CredentialStore,
	encrypter security.Encrypter,
) *CredentialService {
	return &CredentialService{credentialStore: s, encrypter: encrypter}
}

func (s *CredentialService) DecryptAES(hash string) ([]byte, error) {
	return s.encrypter.DecryptAES(hash)
}

// CreateCredential stores the secret encrypted. The plain secret is never
// persisted.
func (s *CredentialService) CreateCredential(
	ctx context.Context,
	name, baseURL, username, secret string,
) (*store.JobCredential, error) {
	if name == "" || baseURL == "" {
		return nil, NewInvalidInputError("credential", "name and base_url are required")
	}
	hash, err := s.encrypter.EncryptAES(secret)
	if err != nil {
		return nil, err
	}
	return s.credentialStore.CreateCredential(ctx, name, baseURL, username, hash)
}

func (s *CredentialService) GetCredentialByID(
	ctx context.Context,
	credentialID int64,
) (*store.JobCredential, error) {
	c, err := s.credentialStore.ReadCredentialByID(ctx, credentialID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewNotFoundError("credential", credentialID)
	}
	return c, err
}

func (s *CredentialService) ListCredentials(
	ctx context.Context,
	activeOnly bool,
) ([]*store.JobCredential, error) {
	return s.credentialStore.ListCredentials(ctx, activeOnly)
}

func (s *CredentialService) DeactivateCredential(ctx context.Context, credentialID int64) error {
	if _, err := s.GetCredentialByID(ctx, credentialID); err != nil {
		return err
	}
	return s.credentialStore.UpdateCredentialActive(ctx, credentialID, false)
}

// DeleteCredential refuses to delete a credential still referenced by a job.
func (s *CredentialService) DeleteCredential(ctx context.Context, credentialID int64) error {
	if _, err := s.GetCredentialByID(ctx, credentialID); err != nil {
		return err
	}
	n, err := s.credentialStore.CountCredentialJobs(ctx, credentialID)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrCredentialInUse
	}
	err = s.credentialStore.DeleteCredential(ctx, credentialID)
	if store.IsForeignKeyConstraintError(err) {
		return ErrCredentialInUse
	}
	return err
}
