package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-admin/internal/handler"
	"github.com/noah-isme/tutor-admin/internal/middleware"
	"github.com/noah-isme/tutor-admin/internal/models"
	"github.com/noah-isme/tutor-admin/internal/repository"
	"github.com/noah-isme/tutor-admin/internal/service"
	"github.com/noah-isme/tutor-admin/pkg/cache"
	"github.com/noah-isme/tutor-admin/pkg/config"
	"github.com/noah-isme/tutor-admin/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	var tokens interface {
		Create(ctx context.Context, token *models.RefreshToken) error
		Find(ctx context.Context, value string) (*models.RefreshToken, error)
		Revoke(ctx context.Context, value string) error
	}
	switch cfg.Mock.TokenStore {
	case "redis":
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect redis", zap.Error(err))
		}
		defer client.Close() //nolint:errcheck
		tokens = repository.NewRedisTokenRepository(client, "")
	default:
		tokens = repository.NewMemoryTokenRepository()
	}

	hash, err := service.HashPassword(cfg.Mock.AdminPassword)
	if err != nil {
		logr.Fatal("failed to hash admin password", zap.Error(err))
	}
	auth := service.NewAuthService(tokens, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.Mock.JWTSecret,
		AccessTokenExpiry:  cfg.Mock.AccessTTL,
		RefreshTokenExpiry: cfg.Mock.RefreshTTL,
		Username:           cfg.Mock.AdminUsername,
		PasswordHash:       hash,
	})

	studentRepo := repository.NewCollection(func(s *models.Student, id int64) { s.ID = id }, repository.OldestFirst)
	groupRepo := repository.NewCollection(func(g *models.Group, id int64) { g.ID = id }, repository.NewestFirst)
	lessonRepo := repository.NewCollection(func(l *models.Lesson, id int64) { l.ID = id }, repository.NewestFirst)
	feedbackRepo := repository.NewCollection(func(f *models.Feedback, id int64) { f.ID = id }, repository.NewestFirst)

	validate := service.NewValidator()
	students := service.NewRecordService[models.Student]("students", studentRepo, validate, logr, nil)
	groups := service.NewRecordService[models.Group]("groups", groupRepo, validate, logr, service.LinkGroup(students))
	lessons := service.NewRecordService[models.Lesson]("lessons", lessonRepo, validate, logr, service.LinkLesson(groups, students))
	feedbacks := service.NewRecordService[models.Feedback]("feedbacks", feedbackRepo, validate, logr, service.LinkFeedback(groups, students))

	if err := seed(ctx, students, groups, lessons, feedbacks); err != nil {
		logr.Fatal("failed to seed data", zap.Error(err))
	}

	var (
		metrics  *service.MetricsService
		recorder middleware.HTTPRecorder
		imports  interface {
			ObserveImport(resource string, created, updated, failed int)
		}
	)
	if cfg.Metrics.Enabled {
		metrics = service.NewMetricsService()
		recorder = metrics
		imports = metrics
	}

	counts := func() map[string]int {
		return map[string]int{
			"students":  studentRepo.Len(),
			"groups":    groupRepo.Len(),
			"lessons":   lessonRepo.Len(),
			"feedbacks": feedbackRepo.Len(),
		}
	}

	router := handler.NewRouter(handler.RouterDeps{
		Auth:        handler.NewAuthHandler(auth),
		Students:    handler.NewResourceHandler[models.Student](students, cfg.Mock.PageSize, imports, logr),
		Groups:      handler.NewResourceHandler[models.Group](groups, cfg.Mock.PageSize, imports, logr),
		Lessons:     handler.NewResourceHandler[models.Lesson](lessons, cfg.Mock.PageSize, imports, logr),
		Feedbacks:   handler.NewResourceHandler[models.Feedback](feedbacks, cfg.Mock.PageSize, imports, logr),
		Reports:     handler.NewReportHandler(service.NewReportService(feedbackRepo, groups, students, nil, logr)),
		Metrics:     handler.NewMetricsHandler(metrics, counts),
		Tokens:      auth,
		Recorder:    recorder,
		CORSOrigins: cfg.Mock.CORSOrigins,
		Logger:      logr,
	})

	addr := fmt.Sprintf(":%d", cfg.Mock.Port)
	logr.Sugar().Infow("mock api starting", "addr", addr, "env", cfg.Env, "token_store", cfg.Mock.TokenStore)
	if err := router.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
