package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
)

func NewAPIKeySQLStore(rdb, rwdb *sql.DB) *APIKeySQLStore {
	return &APIKeySQLStore{rdb, rwdb}
}

type APIKeySQLStore struct {
	rdb, rwdb *sql.DB
}

func (store *APIKeySQLStore) CreateAPIKey(
	ctx context.Context,
	value string,
	userID *int64,
) (*APIKey, error) {
	key := &APIKey{Value: value, KeyUserID: userID, CreatedOn: time.Now().UTC()}
	query := `insert into api_keys (value, key_user_id, created_on)
	values ($1, $2, $3)
	returning id`
	if err := sqlscan.Get(ctx, store.rwdb, key, query, key.Value, key.KeyUserID, key.CreatedOn); err != nil {
		return nil, err
	}
	return key, nil
}

func (store *APIKeySQLStore) ReadAPIKeyByID(ctx context.Context, id int64) (*APIKey, error) {
	key := new(APIKey)
	query := `select * from api_keys where id = $1`
	if err := sqlscan.Get(ctx, store.rdb, key, query, id); err != nil {
		return nil, err
	}
	return key, nil
}

func (store *APIKeySQLStore) ReadAPIKeyByValue(ctx context.Context, value string) (*APIKey, error) {
	key := new(APIKey)
	query := `select * from api_keys where value = $1`
	if err := sqlscan.Get(ctx, store.rdb, key, query, value); err != nil {
		return nil, err
	}
	return key, nil
}

func (store *APIKeySQLStore) DeleteAPIKey(ctx context.Context, id int64) error {
	query := `delete from api_keys where id = $1`
	_, err := store.rwdb.ExecContext(ctx, query, id)
	return err
}

func (store *APIKeySQLStore) ListAPIKeys(ctx context.Context) ([]*APIKey, error) {
	query := `select * from api_keys order by id`
	keys := make([]*APIKey, 0)
	err := sqlscan.Select(ctx, store.rdb, &keys, query)
	return keys, err
}
