package service

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-admin/internal/models"
	appErrors "github.com/noah-isme/tutor-admin/pkg/errors"
	"github.com/noah-isme/tutor-admin/pkg/jobs"
)

type feedbackActions interface {
	DownloadAll(ctx context.Context) (*models.Download, error)
	DownloadByGroup(ctx context.Context, groupID int64) (*models.Download, error)
	DownloadByStudent(ctx context.Context, studentID int64) (*models.Download, error)
	SendWhatsAppToAll(ctx context.Context) (*models.WhatsAppDispatch, error)
	SendWhatsAppToStudent(ctx context.Context, studentID int64) (*models.WhatsAppDispatch, error)
}

type downloadStorage interface {
	SaveUnique(filename string, data []byte) (string, error)
}

// DeliveryConfig tunes bulk WhatsApp delivery.
type DeliveryConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// BulkFailure records a student whose report could not be sent.
type BulkFailure struct {
	StudentID int64
	Err       error
}

// BulkReport summarises a bulk WhatsApp run.
type BulkReport struct {
	Delivered []int64
	Failed    []BulkFailure
}

// FeedbackService saves report PDFs and sends feedback over WhatsApp.
type FeedbackService struct {
	client   feedbackActions
	storage  downloadStorage
	notifier Notifier
	cfg      DeliveryConfig
	logger   *zap.Logger
}

// NewFeedbackService constructs a FeedbackService.
func NewFeedbackService(client feedbackActions, storage downloadStorage, notifier Notifier, cfg DeliveryConfig, logger *zap.Logger) *FeedbackService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &FeedbackService{client: client, storage: storage, notifier: notifier, cfg: cfg, logger: logger}
}

// DownloadAll saves the combined report and returns the written path.
func (s *FeedbackService) DownloadAll(ctx context.Context) (string, error) {
	return s.save(s.client.DownloadAll(ctx))
}

// DownloadGroup saves the report of one group.
func (s *FeedbackService) DownloadGroup(ctx context.Context, groupID int64) (string, error) {
	return s.save(s.client.DownloadByGroup(ctx, groupID))
}

// DownloadStudent saves the report of one student.
func (s *FeedbackService) DownloadStudent(ctx context.Context, studentID int64) (string, error) {
	return s.save(s.client.DownloadByStudent(ctx, studentID))
}

func (s *FeedbackService) save(dl *models.Download, err error) (string, error) {
	if err != nil {
		s.notifier.Error(err)
		return "", err
	}
	name := dl.Filename
	if name == "" {
		name = models.DefaultDownloadName
	}
	path, err := s.storage.SaveUnique(name, dl.Body)
	if err != nil {
		wrapped := appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save download")
		s.notifier.Error(wrapped)
		return "", wrapped
	}
	s.notifier.Success(fmt.Sprintf("Saved %s", path))
	return path, nil
}

// SendToAll asks the server to message every student.
func (s *FeedbackService) SendToAll(ctx context.Context) (*models.WhatsAppDispatch, error) {
	res, err := s.client.SendWhatsAppToAll(ctx)
	if err != nil {
		s.notifier.Error(err)
		return nil, err
	}
	s.notifier.Success(dispatchMessage(res))
	return res, nil
}

// SendToStudent messages a single student.
func (s *FeedbackService) SendToStudent(ctx context.Context, studentID int64) (*models.WhatsAppDispatch, error) {
	res, err := s.client.SendWhatsAppToStudent(ctx, studentID)
	if err != nil {
		s.notifier.Error(err)
		return nil, err
	}
	s.notifier.Success(dispatchMessage(res))
	return res, nil
}

// SendBulk messages each student through a worker pool. Transient failures
// are retried up to MaxRetries times; client errors fail immediately.
func (s *FeedbackService) SendBulk(ctx context.Context, studentIDs []int64) (*BulkReport, error) {
	report := &BulkReport{}
	if len(studentIDs) == 0 {
		return report, nil
	}

	var (
		mu   sync.Mutex
		done sync.WaitGroup
	)
	fail := func(id int64, err error) {
		mu.Lock()
		report.Failed = append(report.Failed, BulkFailure{StudentID: id, Err: err})
		mu.Unlock()
		done.Done()
	}

	queue := jobs.NewQueue[int64]("whatsapp", func(ctx context.Context, job jobs.Job[int64]) error {
		if _, err := s.client.SendWhatsAppToStudent(ctx, job.Payload); err != nil {
			if permanent(err) {
				return jobs.Permanent(err)
			}
			return err
		}
		mu.Lock()
		report.Delivered = append(report.Delivered, job.Payload)
		mu.Unlock()
		done.Done()
		return nil
	}, jobs.QueueConfig{
		Workers:    s.cfg.Workers,
		BufferSize: len(studentIDs),
		MaxRetries: s.cfg.MaxRetries,
		RetryDelay: s.cfg.RetryDelay,
		Logger:     s.logger,
	})
	queue.OnExhausted(func(job jobs.Job[int64], err error) { fail(job.Payload, err) })

	queue.Start(ctx)
	defer queue.Stop()

	done.Add(len(studentIDs))
	for i, id := range studentIDs {
		if err := queue.Enqueue(jobs.Job[int64]{ID: uuid.NewString(), Type: "whatsapp", Payload: id}); err != nil {
			// ids not enqueued are never processed; account for them here
			for _, rest := range studentIDs[i:] {
				fail(rest, err)
			}
			break
		}
	}

	finished := make(chan struct{})
	go func() {
		done.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
		return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "bulk send interrupted")
	}

	sort.Slice(report.Delivered, func(i, j int) bool { return report.Delivered[i] < report.Delivered[j] })
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].StudentID < report.Failed[j].StudentID })

	msg := fmt.Sprintf("WhatsApp sent to %d student(s).", len(report.Delivered))
	if len(report.Failed) > 0 {
		msg += fmt.Sprintf(" Failed: %d.", len(report.Failed))
	}
	s.notifier.Success(msg)
	for _, f := range report.Failed {
		s.logger.Warn("whatsapp delivery failed", zap.Int64("student_id", f.StudentID), zap.Error(f.Err))
	}
	return report, nil
}

func permanent(err error) bool {
	if appErrors.IsCode(err, appErrors.CodeSessionExpired) || appErrors.IsCode(err, appErrors.CodeValidation) {
		return true
	}
	status := appErrors.StatusOf(err)
	return status >= http.StatusBadRequest && status < http.StatusInternalServerError
}

func dispatchMessage(res *models.WhatsAppDispatch) string {
	if res.Detail != "" {
		return res.Detail
	}
	return fmt.Sprintf("WhatsApp sent to %d student(s).", res.Sent)
}
