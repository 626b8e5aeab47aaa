package service

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/tutor-admin/internal/models"
	appErrors "github.com/noah-isme/tutor-admin/pkg/errors"
	"github.com/noah-isme/tutor-admin/pkg/export"
)

type feedbackStore interface {
	All(ctx context.Context) ([]models.Feedback, error)
	Update(ctx context.Context, id int64, item models.Feedback) (models.Feedback, error)
}

var reportHeaders = []string{"No", "Student", "Group", "Topic", "Result", "Competency", "Tutor feedback", "Lesson date"}

// ReportService renders feedback PDFs and dispatches WhatsApp messages for
// the development backend. Messages are not really sent; delivered feedback
// is marked as sent.
type ReportService struct {
	feedbacks feedbackStore
	groups    recordLookup[models.Group]
	students  recordLookup[models.Student]
	pdf       pdfRenderer
	logger    *zap.Logger
}

// NewReportService constructs a ReportService.
func NewReportService(feedbacks feedbackStore, groups recordLookup[models.Group], students recordLookup[models.Student], pdf pdfRenderer, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ReportService{feedbacks: feedbacks, groups: groups, students: students, pdf: pdf, logger: logger}
}

// DownloadAll renders every feedback record.
func (s *ReportService) DownloadAll(ctx context.Context) (*models.Download, error) {
	items, err := s.collect(ctx, func(models.Feedback) bool { return true })
	if err != nil {
		return nil, err
	}
	return s.render(models.DefaultDownloadName, "Feedback report", items)
}

// DownloadGroup renders the feedback of one group.
func (s *ReportService) DownloadGroup(ctx context.Context, groupID int64) (*models.Download, error) {
	group, err := s.groups.Get(ctx, groupID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Group not found.")
	}
	items, err := s.collect(ctx, func(f models.Feedback) bool { return f.Group == groupID })
	if err != nil {
		return nil, err
	}
	filename := fmt.Sprintf("feedback_group_%s.pdf", slug(group.Name, groupID))
	return s.render(filename, "Feedback report: "+group.Name, items)
}

// DownloadStudent renders the feedback of one student.
func (s *ReportService) DownloadStudent(ctx context.Context, studentID int64) (*models.Download, error) {
	student, err := s.students.Get(ctx, studentID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Student not found.")
	}
	items, err := s.collect(ctx, func(f models.Feedback) bool { return f.Student == studentID })
	if err != nil {
		return nil, err
	}
	filename := fmt.Sprintf("feedback_student_%s.pdf", slug(student.Fullname, studentID))
	return s.render(filename, "Feedback report: "+student.Fullname, items)
}

// SendWhatsApp delivers unsent feedback to one student, or to every student
// when studentID is nil.
func (s *ReportService) SendWhatsApp(ctx context.Context, studentID *int64) (*models.WhatsAppDispatch, error) {
	var student *models.Student
	if studentID != nil {
		found, err := s.students.Get(ctx, *studentID)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Student not found.")
		}
		if found.ParentContact == "" && found.PhoneNumber == "" {
			return nil, appErrors.New(appErrors.CodeValidation, http.StatusBadRequest, "Student has no phone number.")
		}
		student = found
	}

	items, err := s.collect(ctx, func(f models.Feedback) bool {
		return !f.IsSent && f.Student != 0 && (studentID == nil || f.Student == *studentID)
	})
	if err != nil {
		return nil, err
	}

	recipients := map[int64]struct{}{}
	for _, item := range items {
		item.IsSent = true
		if _, err := s.feedbacks.Update(ctx, item.ID, item); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark feedback as sent")
		}
		recipients[item.Student] = struct{}{}
	}

	res := &models.WhatsAppDispatch{Sent: len(recipients), StudentID: studentID}
	if student != nil {
		res.Detail = fmt.Sprintf("Feedback sent to %s.", student.Fullname)
		if len(items) == 0 {
			res.Detail = fmt.Sprintf("No unsent feedback for %s.", student.Fullname)
		}
	} else {
		res.Detail = fmt.Sprintf("Feedback sent to %d students.", len(recipients))
	}
	s.logger.Info("whatsapp dispatched", zap.Int("recipients", len(recipients)), zap.Int("feedbacks", len(items)))
	return res, nil
}

func (s *ReportService) collect(ctx context.Context, keep func(models.Feedback) bool) ([]models.Feedback, error) {
	all, err := s.feedbacks.All(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load feedback")
	}
	out := make([]models.Feedback, 0, len(all))
	for _, f := range all {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *ReportService) render(filename, title string, items []models.Feedback) (*models.Download, error) {
	if len(items) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "No feedback found.")
	}
	rows := make([]map[string]string, 0, len(items))
	for _, f := range items {
		rows = append(rows, map[string]string{
			"No":             strconv.Itoa(f.Number),
			"Student":        f.StudentDisplayName(),
			"Group":          f.GroupDisplayName(),
			"Topic":          f.Topic,
			"Result":         f.Result,
			"Competency":     f.Competency,
			"Tutor feedback": f.TutorFeedback,
			"Lesson date":    f.LessonDate.String(),
		})
	}
	body, err := s.pdf.Render(export.Dataset{Headers: reportHeaders, Rows: rows}, title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}
	return &models.Download{Filename: filename, ContentType: "application/pdf", Body: body}, nil
}

func slug(name string, id int64) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return strconv.FormatInt(id, 10)
	}
	return b.String()
}
