package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"social-publisher/domain/model"
	"social-publisher/domain/repository"
	"social-publisher/infrastructure/cache"
	"social-publisher/infrastructure/clients/facebook"
	"social-publisher/infrastructure/clients/instagram"
	"social-publisher/infrastructure/clients/linkedin"
	"social-publisher/infrastructure/clients/platform"
	"social-publisher/infrastructure/configuration"
	"social-publisher/infrastructure/crypto"
	"social-publisher/infrastructure/logger"
	"social-publisher/infrastructure/persistence"
	"social-publisher/infrastructure/pubsub"
	"social-publisher/infrastructure/realtime"
	"social-publisher/infrastructure/servicebus"
	httpHandler "social-publisher/interfaces/http"
	"social-publisher/server"
	"social-publisher/usecase"

	"golang.org/x/sync/errgroup"
)

func recoverPanic() {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
	}
}

// stores groups the persistence chosen at startup.
type stores struct {
	credentials repository.ICredential
	tasks       repository.IScheduledTask
	attempts    repository.IPublishAttempt
	checks      map[string]httpHandler.HealthCheck
	closers     []func()
}

func main() {
	defer recoverPanic()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	g, ctx := errgroup.WithContext(ctx)

	// Load env from files (non-destructive; OS env still has precedence)
	configuration.LoadEnvFromFile("config.env", ".env")
	cfg := configuration.C

	cipher, err := crypto.NewCipher(cfg.Vault.EncryptionKey)
	if err != nil {
		logger.GetLogger().WithField("error", err).Fatal("Credential vault cannot start without VAULT_ENCRYPTION_KEY")
	}

	st := InitiateStores(ctx, cfg.Database)
	defer func() {
		for _, c := range st.closers {
			c()
		}
	}()

	taskLock := initTaskLock(ctx, cfg.RedisClient, st.checks)
	hub := realtime.NewTaskHub()
	events := []repository.ITaskEventPublisher{hub}
	events = append(events, initEventPublishers(ctx, cfg)...)

	adapters := InitiateAdapters(cfg.Platform)
	oauthConfigs := usecase.OAuthConfigs(cfg.OAuth)
	vault := usecase.NewCredentialVault(st.credentials, cipher, oauthConfigs)

	publishUsecase := usecase.NewPublishUsecase(adapters, vault, st.tasks).WithAttemptLog(st.attempts)
	scheduler := usecase.NewScheduler(usecase.SchedulerConfig{
		Location:         cfg.Scheduler.Location(),
		MissedGrace:      cfg.Scheduler.MissedGrace(),
		ExecutionTimeout: cfg.Scheduler.ExecutionTimeout(),
		LockTTL:          cfg.Scheduler.LockTTL(),
	}, st.tasks, taskLock, publishUsecase, events...)
	publishUsecase.WithScheduler(scheduler)
	oauthUsecase := usecase.NewOAuthUsecase(oauthConfigs, publishUsecase.Adapters(), vault)

	if err := scheduler.Start(ctx); err != nil {
		logger.GetLogger().WithField("error", err).Error("Scheduler rehydration failed; pending tasks were not re-armed")
	}

	router := server.InitiateRouter(
		httpHandler.NewPublishHandler(publishUsecase),
		httpHandler.NewOAuthHandler(oauthUsecase, vault),
		httpHandler.NewHealthHandler(st.checks),
		hub.Serve,
		cfg.App.SecretKey,
		cfg.App.AllowOrigins,
	)

	app := cfg.App
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.GetLogger().WithFields(map[string]interface{}{"port": app.Port, "tls": app.TLSEnabled}).Info("Starting application")
	g.Go(func() error {
		var err error
		if app.TLSEnabled && app.TLSCertFile != "" && app.TLSKeyFile != "" {
			logger.GetLogger().WithFields(map[string]interface{}{"cert": app.TLSCertFile, "key": app.TLSKeyFile}).Info("Serving HTTPS")
			err = httpServer.ListenAndServeTLS(app.TLSCertFile, app.TLSKeyFile)
		} else {
			if app.TLSEnabled {
				logger.GetLogger().Error("TLS enabled but cert or key path empty; falling back to HTTP")
			}
			err = httpServer.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	select {
	case <-interrupt:
		logger.GetLogger().Info("Application shutdown requested")
	case <-ctx.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	_ = httpServer.Shutdown(shutdownCtx)
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.GetLogger().WithField("error", err).Warn("Scheduler did not drain running tasks before shutdown")
	}

	if err := g.Wait(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Server returned an error")
		os.Exit(2)
	}
}

// InitiateStores connects the credential, task and audit stores. Any store
// that cannot be reached falls back to memory so the API still starts.
func InitiateStores(ctx context.Context, db configuration.Database) *stores {
	st := &stores{checks: map[string]httpHandler.HealthCheck{}}
	lg := logger.GetLogger()

	var sqlDB *sql.DB
	switch db.Vendor {
	case "mssql":
		conn, err := persistence.NewMSSQLDB()
		if err != nil {
			lg.WithField("error", err).Error("Cannot connect to MSSQL; using in-memory stores")
			break
		}
		if err := persistence.EnsureSchemaMSSQL(conn); err != nil {
			lg.WithField("error", err).Error("MSSQL schema check failed")
		}
		sqlDB = conn
		st.credentials = persistence.NewCredentialRepositoryMSSQL(conn)
		st.tasks = persistence.NewScheduledTaskRepositoryMSSQL(conn)
	case "memory":
	default:
		conn, err := persistence.NewPostgreSQLDB()
		if err != nil {
			lg.WithField("error", err).Error("Cannot connect to PostgreSQL; using in-memory stores")
			break
		}
		if err := persistence.EnsureSchema(conn); err != nil {
			lg.WithField("error", err).Error("PostgreSQL schema check failed")
		}
		sqlDB = conn
		st.credentials = persistence.NewCredentialRepository(conn)
		st.tasks = persistence.NewScheduledTaskRepository(conn)
	}
	if sqlDB != nil {
		st.checks[db.Vendor] = sqlDB.PingContext
		st.closers = append(st.closers, func() { _ = sqlDB.Close() })
	}

	switch db.TaskStore {
	case "mongo":
		client, err := persistence.NewMongoDb(ctx, db.Mongo.Host, db.Mongo.Port, db.Mongo.User, db.Mongo.Password)
		if err != nil {
			lg.WithField("error", err).Warn("MongoDB not available; keeping the SQL task store")
			break
		}
		repo := persistence.NewScheduledTaskRepositoryMongo(client, db.Mongo.Name)
		if err := repo.EnsureIndexes(ctx); err != nil {
			lg.WithField("error", err).Warn("MongoDB index creation failed")
		}
		st.tasks = repo
		st.checks["mongo"] = func(c context.Context) error { return client.Ping(c, nil) }
		st.closers = append(st.closers, func() { _ = client.Disconnect(context.Background()) })
	case "memory":
		st.tasks = nil
	}

	if st.credentials == nil {
		lg.Warn("Credentials are kept in memory and will be lost on restart")
		st.credentials = persistence.NewMemoryCredentialStore()
	}
	if st.tasks == nil {
		lg.Warn("Scheduled tasks are kept in memory and will be lost on restart")
		st.tasks = persistence.NewMemoryTaskStore()
	}

	if gdb, err := persistence.NewGormDB(); err != nil {
		lg.WithField("error", err).Warn("MySQL audit database not available; publish attempts kept in memory")
		st.attempts = persistence.NewMemoryAttemptLog()
	} else {
		repo := persistence.NewPublishAttemptRepository(gdb)
		if err := repo.Migrate(); err != nil {
			lg.WithField("error", err).Error("publish_attempts migration failed")
		}
		st.attempts = repo
		if raw, err := gdb.DB(); err == nil {
			st.checks["mysql"] = raw.PingContext
			st.closers = append(st.closers, func() { _ = raw.Close() })
		}
	}
	return st
}

func initTaskLock(ctx context.Context, rc configuration.RedisClient, checks map[string]httpHandler.HealthCheck) *cache.TaskLock {
	if rc.Host == "" {
		logger.GetLogger().Info("Redis not configured; task lock is process-local")
		return cache.NewTaskLock(nil)
	}
	client, err := cache.NewCache(ctx, fmt.Sprintf("%s:%s", rc.Host, rc.Port), rc.Username, rc.Password)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Redis not available; task lock is process-local")
		return cache.NewTaskLock(nil)
	}
	checks["redis"] = func(c context.Context) error { return client.Ping(c).Err() }
	return cache.NewTaskLock(client)
}

func initEventPublishers(ctx context.Context, cfg configuration.Config) []repository.ITaskEventPublisher {
	var out []repository.ITaskEventPublisher
	if cfg.Pubsub.ProjectID != "" {
		client, err := pubsub.NewPubSub(ctx, cfg.Pubsub.ProjectID)
		if err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while instantiate PubSub")
		} else {
			out = append(out, pubsub.NewTaskEventPublisher(client, cfg.Pubsub.Topic))
		}
	}
	if cfg.ServiceBus.Namespace != "" {
		client, err := servicebus.NewServiceBus(ctx, cfg.ServiceBus.Namespace)
		if err != nil {
			logger.GetLogger().WithField("error", err).Warn("Azure Service Bus not available - continuing without Service Bus events")
		} else {
			out = append(out, servicebus.NewTaskEventPublisher(client, cfg.ServiceBus.Queue))
		}
	}
	return out
}

// InitiateAdapters builds one rate-limited transport and adapter per platform.
func InitiateAdapters(p configuration.Platform) []repository.IPlatformAdapter {
	transport := func(pl model.Platform, e configuration.PlatformEndpoint) *platform.Client {
		return platform.NewClient(pl, platform.Options{
			RatePerSecond:   e.RatePerSecond,
			Burst:           e.Burst,
			MetadataTimeout: p.MetadataTimeout(),
			UploadTimeout:   p.UploadTimeout(),
		})
	}
	return []repository.IPlatformAdapter{
		linkedin.NewLinkedInClient(linkedin.Config{
			BaseURL:  p.LinkedIn.BaseURL,
			MaxMedia: p.LinkedIn.MaxMedia,
		}, transport(model.PlatformLinkedIn, p.LinkedIn)),
		facebook.NewFacebookClient(facebook.Config{
			BaseURL:      p.Facebook.BaseURL,
			GraphVersion: p.GraphVersion,
			MaxMedia:     p.Facebook.MaxMedia,
		}, transport(model.PlatformFacebook, p.Facebook)),
		instagram.NewInstagramClient(instagram.Config{
			BaseURL:      p.Instagram.BaseURL,
			GraphVersion: p.GraphVersion,
			MaxMedia:     p.Instagram.MaxMedia,
		}, transport(model.PlatformInstagram, p.Instagram)),
	}
}
