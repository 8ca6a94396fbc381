package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	goredis "github.com/redis/go-redis/v9"
	"github.com/scenekit/builder-backend/internal/chain"
	"github.com/scenekit/builder-backend/internal/config"
	"github.com/scenekit/builder-backend/internal/forum"
	"github.com/scenekit/builder-backend/internal/handler"
	"github.com/scenekit/builder-backend/internal/middleware"
	"github.com/scenekit/builder-backend/internal/migration"
	"github.com/scenekit/builder-backend/internal/repository"
	"github.com/scenekit/builder-backend/internal/routes"
	"github.com/scenekit/builder-backend/internal/service"
	"github.com/scenekit/builder-backend/pkg/cache"
	"github.com/scenekit/builder-backend/pkg/database"
	"github.com/scenekit/builder-backend/pkg/jwt"
	"github.com/scenekit/builder-backend/pkg/logger"
	pkgredis "github.com/scenekit/builder-backend/pkg/redis"
	"github.com/scenekit/builder-backend/pkg/storage"
	"golang.org/x/sync/errgroup"
)

func serve(ctx context.Context, configPath string, dotenvFiles []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.InitStructured(cfg.App.Env, cfg.App.LogLevel)
	log := logger.GetLogger()
	log.Info().Str("config", configPath).Strs("env_files", dotenvFiles).Msg("starting")
	config.LogResolved(cfg)

	// Database
	db, err := database.Open(database.Options{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.GetDSN(),
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
		LogSQL:          cfg.Database.LogSQL,
	})
	if err != nil {
		return err
	}
	if cfg.IsDevelopment() {
		if err := migration.Run(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	// Redis is optional: caches and rate limiting degrade to no-ops
	var redisClient *goredis.Client
	if client, err := pkgredis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize); err != nil {
		log.Warn().Err(err).Msg("redis unavailable, continuing without cache")
	} else {
		redisClient = client
		defer redisClient.Close()
	}
	cacheService := cache.NewService(redisClient)

	// Chain oracle and committee registry
	timeout := cfg.Chain.HTTPTimeoutDuration()
	chainClient := chain.NewClient(cfg.Chain.CollectionsURL, cfg.Chain.ThirdPartyURL, timeout)
	committeeSource := chainClient
	if cfg.Chain.CommitteeURL != "" {
		committeeSource = chain.NewClient(cfg.Chain.CommitteeURL, "", timeout)
	}
	committee := chain.NewCommitteeClient(committeeSource, cacheService, cfg.Chain.CommitteeCacheTTLDuration())

	// Object storage for content manifests
	var blobs service.BlobStore
	if cfg.Storage.Enabled {
		s3Client, err := storage.NewS3Client(storage.S3Config{
			Endpoint:        cfg.Storage.Endpoint,
			Region:          cfg.Storage.Region,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			Bucket:          cfg.Storage.Bucket,
			CDNURL:          cfg.Storage.CDNURL,
			BasePath:        cfg.Storage.BasePath,
			ForcePathStyle:  cfg.Storage.ForcePathStyle,
		})
		if err != nil {
			return fmt.Errorf("init storage: %w", err)
		}
		blobs = s3Client
	}

	// Repositories
	collectionRepo := repository.NewCollectionRepository(db)
	itemRepo := repository.NewItemRepository(db)
	collectionCurations := repository.NewCollectionCurationRepository(db)
	itemCurations := repository.NewItemCurationRepository(db)

	// Services
	resolver := service.NewEntityResolver(collectionRepo, itemRepo, chainClient)
	access := service.NewAccessService(resolver, committee)
	content := service.NewContentService(itemRepo, service.SHA256Hasher{}, blobs, cfg.Reconciliation.Concurrency)
	curation := service.NewCurationService(db, access, content, chainClient, collectionRepo, itemRepo, collectionCurations, itemCurations)
	forumClient := forum.NewClient(cfg.Forum.URL, cfg.Forum.APIKey, cfg.Forum.User, cfg.Forum.Category, time.Duration(cfg.Forum.Timeout)*time.Second)
	forumService := service.NewForumService(access, collectionCurations, forumClient, cfg.Forum.BuilderURL)

	// Router
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	binding.EnableDecoderDisallowUnknownFields = true
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.Origins(),
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.Metrics())
	router.Use(middleware.RequestLogger())

	routes.Setup(router,
		handler.NewCurationHandler(curation, forumService),
		handler.NewHealthHandler(db, cacheService),
		jwt.NewManager(cfg.JWT.Secret, cfg.JWT.ExpiresIn),
		redisClient,
		cfg.Server.RateLimit,
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()
	eg, groupCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		<-groupCtx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		return nil
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("server exited")
	return nil
}
