package store

import (
	"context"
	"database/sql"

	"github.com/georgysavva/scany/v2/sqlscan"
)

type SettingSQLStore struct {
	rdb, rwdb *sql.DB
}

func NewSettingSQLStore(rdb, rwdb *sql.DB) *SettingSQLStore {
	return &SettingSQLStore{rdb, rwdb}
}

func (store *SettingSQLStore) ReadSetting(ctx context.Context, key string) (string, error) {
	var value string
	query := "select value from site_settings where key = $1"
	err := sqlscan.Get(ctx, store.rdb, &value, query, key)
	return value, err
}

func (store *SettingSQLStore) UpsertSetting(ctx context.Context, key, value string) error {
	query := `insert into site_settings (key, value)
	values ($1, $2)
	on conflict (key) do update set value = excluded.value`
	_, err := store.rwdb.ExecContext(ctx, query, key, value)
	return err
}

func (store *SettingSQLStore) ListSettings(ctx context.Context) ([]*SiteSetting, error) {
	query := "select * from site_settings order by key"
	settings := make([]*SiteSetting, 0)
	err := sqlscan.Select(ctx, store.rdb, &settings, query)
	return settings, err
}
