package main

import (
	"context"
	"log"

	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/qsplatform/buildcore/internal"
	"github.com/qsplatform/buildcore/internal/handler"
	"github.com/qsplatform/buildcore/internal/logger"
	"github.com/qsplatform/buildcore/internal/mail"
	"github.com/qsplatform/buildcore/internal/queue"
	"github.com/qsplatform/buildcore/internal/security"
	"github.com/qsplatform/buildcore/internal/service"
	"github.com/qsplatform/buildcore/internal/settings"
	"github.com/qsplatform/buildcore/internal/sonar"
	"github.com/qsplatform/buildcore/internal/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := settings.ReadDotenv(internal.DotEnvPath); err != nil {
		log.Fatal(err)
	}
	if _, err := security.EnsureSecretKey(internal.DotEnvPath, settings.EnvPrefix+"_SECRET_KEY"); err != nil {
		log.Fatal(err)
	}
	s, err := settings.NewSettings()
	if err != nil {
		log.Fatal(err)
	}
	settings.Settings = s

	lg, err := logger.Init(s.LogLevel, s.LogFormat)
	if err != nil {
		log.Fatal(err)
	}
	if err := internal.InitializeConfiguration(internal.ConfigPath); err != nil {
		lg.Fatal("reading configuration", zap.Error(err))
	}

	rdb, err := store.InitDatabase(s.DBDriver, s.DataSourceName(true), true)
	if err != nil {
		lg.Fatal("opening read database", zap.Error(err))
	}
	defer rdb.Close()
	rwdb, err := store.InitDatabase(s.DBDriver, s.DataSourceName(false), false)
	if err != nil {
		lg.Fatal("opening write database", zap.Error(err))
	}
	defer rwdb.Close()
	if err := store.RunMigrations(rwdb, s.DBDriver, internal.MigrationsDir); err != nil {
		lg.Fatal("running migrations", zap.Error(err))
	}

	encrypter, err := security.NewAESEncrypter([]byte(s.SecretKey))
	if err != nil {
		lg.Fatal("creating encrypter", zap.Error(err))
	}

	projectStore := store.NewProjectSQLStore(rdb, rwdb)
	pipelineStore := store.NewPipelineSQLStore(rdb, rwdb)
	buildStore := store.NewBuildSQLStore(rdb, rwdb)
	credentialStore := store.NewCredentialSQLStore(rdb, rwdb)
	jobStore := store.NewJobSQLStore(rdb, rwdb)
	userStore := store.NewUserSQLStore(rdb, rwdb)
	apiKeyStore := store.NewAPIKeySQLStore(rdb, rwdb)
	settingStore := store.NewSettingSQLStore(rdb, rwdb)
	notificationStore := store.NewNotificationSQLStore(rdb, rwdb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mux := queue.NewMux()
	uuidGen := service.NewUUIDGen()
	credentialSvc := service.NewCredentialService(credentialStore, encrypter)
	clients := service.NewCredentialClientFactory(credentialStore, credentialSvc, lg)
	tracker := service.NewTracker(jobStore, clients, lg)
	dispatcher := service.NewNotificationDispatcher(
		notificationStore, userStore, settingStore, mail.NewGoMailer(), lg,
	)

	var (
		q   queue.Queue
		bus *queue.CancelBus
	)
	switch s.QueueBackend {
	case "asynq":
		q = queue.NewAsynqQueue(
			asynq.RedisClientOpt{Addr: s.RedisAddr, Password: s.RedisPassword},
			mux,
			internal.Config.Workers,
			lg,
		)
		redisClient := redis.NewClient(&redis.Options{Addr: s.RedisAddr, Password: s.RedisPassword})
		defer redisClient.Close()
		bus = queue.NewCancelBus(redisClient, queue.DefaultCancelChannel, lg)
	default:
		q = queue.NewPool(mux, internal.Config.QueueSize, internal.Config.Workers, lg)
	}

	jobSvc := service.NewJobService(jobStore, credentialStore, clients, q, uuidGen, lg)
	orchestrator := service.NewOrchestrator(
		buildStore,
		pipelineStore,
		jobSvc,
		jobStore,
		tracker,
		sonar.NewStubScanner(),
		dispatcher,
		lg,
	)
	var canceller service.Canceller = orchestrator
	if bus != nil {
		canceller = service.NewBroadcastCanceller(bus)
		go func() {
			cancelLocal := func(id int64) {
				if err := orchestrator.Cancel(ctx, id); err != nil {
					lg.Warn("cancelling build", zap.Int64("build_record_id", id), zap.Error(err))
				}
			}
			if err := bus.Subscribe(ctx, cancelLocal); err != nil {
				lg.Error("cancel subscription stopped", zap.Error(err))
			}
		}()
	}
	buildSvc := service.NewBuildService(buildStore, pipelineStore, q, canceller, dispatcher, uuidGen, lg)

	scheduler, err := service.NewScheduler()
	if err != nil {
		lg.Fatal("creating scheduler", zap.Error(err))
	}
	pipelineSvc := service.NewPipelineService(pipelineStore, projectStore, jobStore, buildSvc, scheduler, lg)
	apiKeySvc := service.NewAPIKeyService(apiKeyStore, uuidGen)
	userSvc := service.NewUserService(userStore)
	settingSvc := service.NewSettingService(settingStore)

	mux.Handle(queue.KindExecuteBuild, func(ctx context.Context, t queue.Task) error {
		return orchestrator.Execute(ctx, t.RefID)
	})
	mux.Handle(queue.KindTrackJob, func(ctx context.Context, t queue.Task) error {
		return tracker.Track(ctx, t.RefID)
	})

	// asynq keeps its tasks in redis and other processes may still be
	// running builds, so only overdue builds are failed, on a schedule
	shared := s.QueueBackend == "asynq"
	reconciler := service.NewReconciler(buildStore, pipelineStore, jobStore, q, dispatcher, shared, lg)
	if err := reconciler.Reconcile(ctx); err != nil {
		lg.Error("reconciling builds", zap.Error(err))
	}
	if err := q.Start(); err != nil {
		lg.Fatal("starting task queue", zap.Error(err))
	}
	if err := pipelineSvc.SchedulePipelines(ctx); err != nil {
		lg.Error("scheduling pipelines", zap.Error(err))
	}
	if shared {
		if err := reconciler.Schedule(ctx, scheduler, internal.Config.ReconcileIntervalSeconds.Duration()); err != nil {
			lg.Error("scheduling reconciliation", zap.Error(err))
		}
	}
	scheduler.Start()

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.ErrorHandler
	e.Use(
		middleware.Recover(),
		middleware.CORSWithConfig(internal.GetCORSConfig(s.AllowOrigins)),
		middleware.RateLimiterWithConfig(internal.GetRateLimiterConfig()),
		handler.RequestLogger(lg),
		handler.APIKeyMiddleware(apiKeySvc),
	)

	api := e.Group("/api")
	handler.SetupBuildRoutes(api, buildSvc)
	handler.SetupPipelineRoutes(api, pipelineSvc, buildSvc)
	handler.SetupJobRoutes(api, jobSvc)
	handler.SetupCredentialRoutes(api, credentialSvc)
	handler.SetupSettingRoutes(api, settingSvc)
	handler.SetupAPIKeyRoutes(api, apiKeySvc)
	handler.SetupUserRoutes(api, userSvc)

	internal.GracefulShutdown(e, s.Port, lg,
		cancel,
		q.Shutdown,
		func() {
			if err := scheduler.Shutdown(); err != nil {
				lg.Warn("scheduler shutdown", zap.Error(err))
			}
		},
		dispatcher.Wait,
		logger.Sync,
	)
}
