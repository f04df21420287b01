package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var (
	projectStore      *ProjectSQLStore
	userStore         *UserSQLStore
	pipelineStore     *PipelineSQLStore
	buildStore        *BuildSQLStore
	credentialStore   *CredentialSQLStore
	jobStore          *JobSQLStore
	notificationStore *NotificationSQLStore
	settingStore      *SettingSQLStore
	apiKeyStore       *APIKeySQLStore
)

func TestMain(m *testing.M) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		log.Fatal(err)
	}

	if err := RunMigrations(db, DriverSQLite, "migrations"); err != nil {
		log.Fatal(err)
	}

	projectStore = NewProjectSQLStore(db, db)
	userStore = NewUserSQLStore(db, db)
	pipelineStore = NewPipelineSQLStore(db, db)
	buildStore = NewBuildSQLStore(db, db)
	credentialStore = NewCredentialSQLStore(db, db)
	jobStore = NewJobSQLStore(db, db)
	notificationStore = NewNotificationSQLStore(db, db)
	settingStore = NewSettingSQLStore(db, db)
	apiKeyStore = NewAPIKeySQLStore(db, db)
	code := m.Run()
	os.Exit(code)
}

func uniqueName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func generateProject(t *testing.T) *Project {
	p, err := projectStore.CreateProject(context.Background(), uniqueName("project"), "project")
	require.NoError(t, err)
	return p
}

func generateUser(t *testing.T, email *string) *User {
	u, err := userStore.CreateUser(context.Background(), uniqueName("user"), email)
	require.NoError(t, err)
	return u
}

func generatePipeline(t *testing.T) *Pipeline {
	pr := generateProject(t)
	p, err := pipelineStore.CreatePipeline(
		context.Background(),
		pr.ProjectID,
		uniqueName("pipeline"),
		"pipeline",
		nil,
	)
	require.NoError(t, err)
	p.ProjectName = pr.Name
	return p
}

func generateStage(t *testing.T, p *Pipeline, name string, order int64) *Stage {
	s, err := pipelineStore.CreateStage(
		context.Background(),
		p.PipelineID,
		name,
		InferStageType(name),
		"echo "+name,
		60,
		order,
		nil,
	)
	require.NoError(t, err)
	return s
}

func generateBuild(t *testing.T, p *Pipeline) *BuildRecord {
	b, err := buildStore.CreateBuild(
		context.Background(),
		p.PipelineID,
		uuid.NewString(),
		"release-1.0",
		nil,
	)
	require.NoError(t, err)
	return b
}

func generateCredential(t *testing.T) *JobCredential {
	c, err := credentialStore.CreateCredential(
		context.Background(),
		uniqueName("credential"),
		"http://jenkins.local",
		"ci",
		"hash",
	)
	require.NoError(t, err)
	return c
}

func generateJob(t *testing.T, c *JobCredential) *Job {
	name := uniqueName("job")
	j, err := jobStore.CreateJob(
		context.Background(),
		c.JobCredentialID,
		nil,
		name,
		"job",
		"http://jenkins.local/job/"+name+"/",
	)
	require.NoError(t, err)
	return j
}
