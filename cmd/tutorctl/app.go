package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-admin/internal/client"
	"github.com/noah-isme/tutor-admin/internal/gateway"
	"github.com/noah-isme/tutor-admin/internal/listing"
	"github.com/noah-isme/tutor-admin/internal/models"
	"github.com/noah-isme/tutor-admin/internal/service"
	"github.com/noah-isme/tutor-admin/internal/session"
	"github.com/noah-isme/tutor-admin/internal/view"
	"github.com/noah-isme/tutor-admin/pkg/cache"
	"github.com/noah-isme/tutor-admin/pkg/config"
	"github.com/noah-isme/tutor-admin/pkg/export"
	"github.com/noah-isme/tutor-admin/pkg/storage"
)

// app holds the client stack shared by every command.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	validate *validator.Validate

	store    *session.Store
	sessions *service.SessionService
	notifier *service.WriterNotifier
	metrics  *service.MetricsService

	students  *client.Resource[models.Student]
	groups    *client.Resource[models.Group]
	lessons   *client.Resource[models.Lesson]
	feedbacks *client.FeedbackClient

	loggingOut bool
	closers    []func() error
}

type appOptions struct {
	ephemeral bool
	metrics   bool
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, stdout, stderr io.Writer, opts appOptions) (*app, error) {
	a := &app{cfg: cfg, logger: logger, validate: service.NewValidator()}
	a.notifier = service.NewWriterNotifier(stdout, stderr, logger)
	if opts.metrics || cfg.Metrics.Enabled {
		a.metrics = service.NewMetricsService()
	}

	persister, err := a.newPersister(ctx, opts.ephemeral)
	if err != nil {
		return nil, err
	}
	a.store = session.NewStore(persister, logger)
	a.store.Subscribe(func(evt session.Event) {
		if evt.Kind != session.EventCleared || a.loggingOut {
			return
		}
		fmt.Fprintln(stderr, "Session ended, please run `tutorctl login`.") //nolint:errcheck
	})

	endpoints, err := client.NewEndpoints(cfg.API.BaseURL)
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{Timeout: cfg.API.Timeout}
	auth := client.NewAuthClient(httpClient, endpoints, a.validate, logger)
	gw := gateway.New(httpClient, a.store, auth, a.metrics, logger)

	a.sessions = service.NewSessionService(a.store, auth, a.validate, logger)
	a.students = client.NewStudents(gw, endpoints, a.validate, logger)
	a.groups = client.NewGroups(gw, endpoints, a.validate, logger)
	a.lessons = client.NewLessons(gw, endpoints, a.validate, logger)
	a.feedbacks = client.NewFeedbacks(gw, endpoints, a.validate, logger)

	if _, err := a.sessions.Restore(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) newPersister(ctx context.Context, ephemeral bool) (session.Persister, error) {
	backend := a.cfg.Session.Backend
	if ephemeral {
		backend = config.SessionBackendMemory
	}
	switch backend {
	case config.SessionBackendMemory:
		return session.NewMemoryPersister(), nil
	case config.SessionBackendRedis:
		rdb, err := cache.NewRedis(ctx, a.cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		return session.NewRedisPersister(rdb, a.cfg.Session.Key), nil
	case config.SessionBackendFile, "":
		return session.NewFilePersister(a.cfg.Session.File, a.cfg.Session.Key), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", backend)
	}
}

func (a *app) close() {
	for _, fn := range a.closers {
		if err := fn(); err != nil {
			a.logger.Warn("failed to release resource", zap.Error(err))
		}
	}
}

func (a *app) workspaceOptions(label string, pos listing.Position) service.WorkspaceOptions {
	return service.WorkspaceOptions{
		Label:          label,
		CreatePosition: pos,
		Debounce:       a.cfg.View.SearchDebounce,
		Notifier:       a.notifier,
		Recorder:       a.metrics,
		Imports:        a.metrics,
		Logger:         a.logger,
	}
}

// entity resolves a resource name given on the command line.
func (a *app) entity(name string) (entityCommands, error) {
	switch name {
	case "students", "student":
		ws := service.NewWorkspace[models.Student](a.students, view.StudentConfig, a.workspaceOptions("Student", listing.Append))
		return &entity[models.Student]{app: a, ws: ws, cfg: view.StudentConfig}, nil
	case "groups", "group":
		ws := service.NewWorkspace[models.Group](a.groups, view.GroupConfig, a.workspaceOptions("Group", listing.Prepend))
		return &entity[models.Group]{app: a, ws: ws, cfg: view.GroupConfig}, nil
	case "lessons", "lesson":
		ws := service.NewWorkspace[models.Lesson](a.lessons, view.LessonConfig, a.workspaceOptions("Lesson", listing.Prepend))
		return &entity[models.Lesson]{app: a, ws: ws, cfg: view.LessonConfig}, nil
	case "feedbacks", "feedback":
		ws := service.NewWorkspace[models.Feedback](a.feedbacks.Resource, view.FeedbackConfig, a.workspaceOptions("Feedback", listing.Prepend))
		return &entity[models.Feedback]{app: a, ws: ws, cfg: view.FeedbackConfig}, nil
	default:
		return nil, fmt.Errorf("unknown resource %q (students, groups, lessons, feedbacks)", name)
	}
}

func (a *app) feedbackService() (*service.FeedbackService, error) {
	downloads, err := storage.NewLocalStorage(a.cfg.Files.DownloadDir)
	if err != nil {
		return nil, err
	}
	return service.NewFeedbackService(a.feedbacks, downloads, a.notifier, service.DeliveryConfig{
		Workers:    a.cfg.Jobs.Workers,
		MaxRetries: a.cfg.Jobs.MaxRetries,
		RetryDelay: a.cfg.Jobs.RetryDelay,
	}, a.logger), nil
}

func (a *app) exportService() (*service.ExportService, error) {
	exports, err := storage.NewLocalStorage(a.cfg.Files.ExportDir)
	if err != nil {
		return nil, err
	}
	return service.NewExportService(exports, service.ExportConfig{}, a.logger, &export.CSVExporter{ByteOrderMark: true}, nil), nil
}
