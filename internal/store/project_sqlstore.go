package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
)

type ProjectSQLStore struct {
	rdb, rwdb *sql.DB
}

func NewProjectSQLStore(rdb, rwdb *sql.DB) *ProjectSQLStore {
	return &ProjectSQLStore{rdb, rwdb}
}

func (store *ProjectSQLStore) CreateProject(
	ctx context.Context,
	name, description string,
) (*Project, error) {
	p := &Project{Name: name, Description: description, CreatedOn: time.Now().UTC()}
	query := `insert into projects (name, description, created_on)
	values ($1, $2, $3)
	returning project_id`
	if err := sqlscan.Get(ctx, store.rwdb, p, query, p.Name, p.Description, p.CreatedOn); err != nil {
		return nil, err
	}
	return p, nil
}

func (store *ProjectSQLStore) ReadProjectByID(ctx context.Context, id int64) (*Project, error) {
	p := new(Project)
	query := "select * from projects where project_id = $1"
	if err := sqlscan.Get(ctx, store.rdb, p, query, id); err != nil {
		return nil, err
	}
	return p, nil
}

func (store *ProjectSQLStore) ReadProjectByName(ctx context.Context, name string) (*Project, error) {
	p := new(Project)
	query := "select * from projects where name = $1"
	if err := sqlscan.Get(ctx, store.rdb, p, query, name); err != nil {
		return nil, err
	}
	return p, nil
}

func (store *ProjectSQLStore) ListProjects(ctx context.Context) ([]*Project, error) {
	projects := make([]*Project, 0)
	query := "select * from projects order by name"
	err := sqlscan.Select(ctx, store.rdb, &projects, query)
	return projects, err
}
