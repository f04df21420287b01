package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
)

type UserSQLStore struct {
	rdb, rwdb *sql.DB
}

func NewUserSQLStore(rdb, rwdb *sql.DB) *UserSQLStore {
	return &UserSQLStore{rdb, rwdb}
}

func (store *UserSQLStore) CreateUser(
	ctx context.Context,
	username string,
	email *string,
) (*User, error) {
	u := &User{Username: username, Email: email, CreatedOn: time.Now().UTC()}
	query := `insert into users (username, email, created_on)
	values ($1, $2, $3)
	returning user_id`
	if err := sqlscan.Get(ctx, store.rwdb, u, query, u.Username, u.Email, u.CreatedOn); err != nil {
		return nil, err
	}
	return u, nil
}

func (store *UserSQLStore) ReadUserByID(ctx context.Context, id int64) (*User, error) {
	u := new(User)
	query := "select * from users where user_id = $1"
	if err := sqlscan.Get(ctx, store.rdb, u, query, id); err != nil {
		return nil, err
	}
	return u, nil
}

func (store *UserSQLStore) UpdateUserEmail(ctx context.Context, id int64, email *string) error {
	query := "update users set email = $1 where user_id = $2"
	_, err := store.rwdb.ExecContext(ctx, query, email, id)
	return err
}

func (store *UserSQLStore) DeleteUser(ctx context.Context, id int64) error {
	query := "delete from users where user_id = $1"
	_, err := store.rwdb.ExecContext(ctx, query, id)
	return err
}
