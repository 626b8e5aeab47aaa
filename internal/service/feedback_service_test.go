package service

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-admin/internal/models"
	appErrors "github.com/noah-isme/tutor-admin/pkg/errors"
	"github.com/noah-isme/tutor-admin/pkg/storage"
)

type fakeFeedbackActions struct {
	mu        sync.Mutex
	download  *models.Download
	err       error
	attempts  map[int64]int
	failUntil map[int64]int
	rejected  map[int64]bool
}

func (f *fakeFeedbackActions) DownloadAll(ctx context.Context) (*models.Download, error) {
	return f.download, f.err
}

func (f *fakeFeedbackActions) DownloadByGroup(ctx context.Context, groupID int64) (*models.Download, error) {
	return f.download, f.err
}

func (f *fakeFeedbackActions) DownloadByStudent(ctx context.Context, studentID int64) (*models.Download, error) {
	return f.download, f.err
}

func (f *fakeFeedbackActions) SendWhatsAppToAll(ctx context.Context) (*models.WhatsAppDispatch, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.WhatsAppDispatch{Detail: "Feedback sent to 3 students.", Sent: 3}, nil
}

func (f *fakeFeedbackActions) SendWhatsAppToStudent(ctx context.Context, studentID int64) (*models.WhatsAppDispatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attempts == nil {
		f.attempts = map[int64]int{}
	}
	f.attempts[studentID]++
	if f.rejected[studentID] {
		return nil, appErrors.HTTP(http.StatusNotFound, "Student not found.")
	}
	if f.attempts[studentID] <= f.failUntil[studentID] {
		return nil, appErrors.HTTP(http.StatusBadGateway, "gateway unavailable")
	}
	id := studentID
	return &models.WhatsAppDispatch{Sent: 1, StudentID: &id}, nil
}

func (f *fakeFeedbackActions) attemptsFor(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[id]
}

func newFeedbackServiceForTest(t *testing.T, actions *fakeFeedbackActions, notifier Notifier) (*FeedbackService, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	cfg := DeliveryConfig{Workers: 2, MaxRetries: 2, RetryDelay: 5 * time.Millisecond}
	return NewFeedbackService(actions, store, notifier, cfg, zap.NewNop()), dir
}

func TestFeedbackServiceDownloadSavesFile(t *testing.T) {
	actions := &fakeFeedbackActions{download: &models.Download{Filename: "group_4_feedback.pdf", Body: []byte("%PDF-1.3")}}
	notifier := &recordingNotifier{}
	svc, dir := newFeedbackServiceForTest(t, actions, notifier)

	path, err := svc.DownloadGroup(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "group_4_feedback.pdf"), path)
	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3", string(body))
	assert.Equal(t, "Saved "+path, notifier.last())

	actions.download = &models.Download{Body: []byte("%PDF-1.3")}
	path, err = svc.DownloadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, models.DefaultDownloadName), path)
}

func TestFeedbackServiceDownloadErrorWritesNothing(t *testing.T) {
	actions := &fakeFeedbackActions{err: appErrors.HTTP(http.StatusNotFound, "No feedback found.")}
	notifier := &recordingNotifier{}
	svc, dir := newFeedbackServiceForTest(t, actions, notifier)

	_, err := svc.DownloadStudent(context.Background(), 9)
	require.Error(t, err)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	require.Len(t, notifier.errs, 1)
}

func TestFeedbackServiceSendToAll(t *testing.T) {
	notifier := &recordingNotifier{}
	svc, _ := newFeedbackServiceForTest(t, &fakeFeedbackActions{}, notifier)

	res, err := svc.SendToAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Sent)
	assert.Equal(t, "Feedback sent to 3 students.", notifier.last())
}

func TestFeedbackServiceSendBulkRetriesTransientFailures(t *testing.T) {
	actions := &fakeFeedbackActions{
		failUntil: map[int64]int{2: 1, 3: 5},
		rejected:  map[int64]bool{4: true},
	}
	notifier := &recordingNotifier{}
	svc, _ := newFeedbackServiceForTest(t, actions, notifier)

	report, err := svc.SendBulk(context.Background(), []int64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, report.Delivered)
	require.Len(t, report.Failed, 2)
	assert.Equal(t, int64(3), report.Failed[0].StudentID)
	assert.Equal(t, int64(4), report.Failed[1].StudentID)

	assert.Equal(t, 2, actions.attemptsFor(2))
	assert.Equal(t, 3, actions.attemptsFor(3))
	assert.Equal(t, 1, actions.attemptsFor(4))
	assert.Equal(t, "WhatsApp sent to 2 student(s). Failed: 2.", notifier.last())
}

func TestFeedbackServiceSendBulkEmpty(t *testing.T) {
	svc, _ := newFeedbackServiceForTest(t, &fakeFeedbackActions{}, &recordingNotifier{})
	report, err := svc.SendBulk(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, report.Delivered)
	assert.Empty(t, report.Failed)
}
