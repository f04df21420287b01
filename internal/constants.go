package internal

const (
	DotEnvPath               = "./.env"
	ConfigPath               = "config.json"
	MigrationsDir            = "migrations"
	APIKeyHeader             = "X-Buildcore-API-Key"
	DefaultVersion           = "latest"
	NotificationTypePipeline = "pipeline"

	DefaultStageTimeoutSeconds = 3600
)
