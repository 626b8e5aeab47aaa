package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-admin/internal/models"
	"github.com/noah-isme/tutor-admin/pkg/response"
)

type reportProvider interface {
	DownloadAll(ctx context.Context) (*models.Download, error)
	DownloadGroup(ctx context.Context, groupID int64) (*models.Download, error)
	DownloadStudent(ctx context.Context, studentID int64) (*models.Download, error)
	SendWhatsApp(ctx context.Context, studentID *int64) (*models.WhatsAppDispatch, error)
}

// ReportHandler serves feedback PDF downloads and WhatsApp triggers.
type ReportHandler struct {
	service reportProvider
}

// NewReportHandler constructs a report handler.
func NewReportHandler(svc reportProvider) *ReportHandler {
	return &ReportHandler{service: svc}
}

// DownloadAll streams the combined feedback PDF.
func (h *ReportHandler) DownloadAll(c *gin.Context) {
	h.send(c, func(ctx context.Context) (*models.Download, error) { return h.service.DownloadAll(ctx) })
}

// DownloadGroup streams the PDF of one group.
func (h *ReportHandler) DownloadGroup(c *gin.Context) {
	id, err := idParam(c, "group_id")
	if err != nil {
		response.Error(c, err)
		return
	}
	h.send(c, func(ctx context.Context) (*models.Download, error) { return h.service.DownloadGroup(ctx, id) })
}

// DownloadStudent streams the PDF of one student.
func (h *ReportHandler) DownloadStudent(c *gin.Context) {
	id, err := idParam(c, "student_id")
	if err != nil {
		response.Error(c, err)
		return
	}
	h.send(c, func(ctx context.Context) (*models.Download, error) { return h.service.DownloadStudent(ctx, id) })
}

// SendWhatsApp messages every student, or the one named in the path.
func (h *ReportHandler) SendWhatsApp(c *gin.Context) {
	var studentID *int64
	if c.Param("student_id") != "" {
		id, err := idParam(c, "student_id")
		if err != nil {
			response.Error(c, err)
			return
		}
		studentID = &id
	}
	res, err := h.service.SendWhatsApp(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

func (h *ReportHandler) send(c *gin.Context, fetch func(context.Context) (*models.Download, error)) {
	dl, err := fetch(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, dl.Filename, dl.ContentType, dl.Body)
}
