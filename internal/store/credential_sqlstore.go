package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
)

type CredentialSQLStore struct {
	rdb, rwdb *sql.DB
}

func NewCredentialSQLStore(rdb, rwdb *sql.DB) *CredentialSQLStore {
	return &CredentialSQLStore{rdb, rwdb}
}

func (store *CredentialSQLStore) CreateCredential(
	ctx context.Context,
	name, baseURL, username, secretHash string,
) (*JobCredential, error) {
	c := &JobCredential{
		Name:       name,
		BaseURL:    baseURL,
		Username:   username,
		SecretHash: secretHash,
		Active:     true,
		CreatedOn:  time.Now().UTC(),
	}
	query := `insert into job_credentials (
		name,
		base_url,
		username,
		secret_hash,
		active,
		created_on
	)
	values ($1, $2, $3, $4, $5, $6)
	returning job_credential_id`
	if err := sqlscan.Get(
		ctx, store.rwdb, c, query,
		c.Name,
		c.BaseURL,
		c.Username,
		c.SecretHash,
		c.Active,
		c.CreatedOn,
	); err != nil {
		return nil, err
	}
	return c, nil
}

func (store *CredentialSQLStore) ReadCredentialByID(
	ctx context.Context,
	id int64,
) (*JobCredential, error) {
	c := new(JobCredential)
	query := "select * from job_credentials where job_credential_id = $1"
	if err := sqlscan.Get(ctx, store.rdb, c, query, id); err != nil {
		return nil, err
	}
	return c, nil
}

func (store *CredentialSQLStore) UpdateCredentialActive(
	ctx context.Context,
	id int64,
	active bool,
) error {
	query := "update job_credentials set active = $1 where job_credential_id = $2"
	_, err := store.rwdb.ExecContext(ctx, query, active, id)
	return err
}

func (store *CredentialSQLStore) DeleteCredential(ctx context.Context, id int64) error {
	query := "delete from job_credentials where job_credential_id = $1"
	_, err := store.rwdb.ExecContext(ctx, query, id)
	return err
}

func (store *CredentialSQLStore) CountCredentialJobs(ctx context.Context, id int64) (int64, error) {
	var count int64
	query := "select count(*) from jobs where job_credential_id = $1"
	err := sqlscan.Get(ctx, store.rdb, &count, query, id)
	return count, err
}

func (store *CredentialSQLStore) ListCredentials(
	ctx context.Context,
	activeOnly bool,
) ([]*JobCredential, error) {
	query := "select * from job_credentials"
	args := []any{}
	if activeOnly {
		query += " where active = $1"
		args = append(args, true)
	}
	query += " order by name"
	credentials := make([]*JobCredential, 0)
	err := sqlscan.Select(ctx, store.rdb, &credentials, query, args...)
	return credentials, err
}
