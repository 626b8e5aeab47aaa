package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-admin/internal/gateway"
	"github.com/noah-isme/tutor-admin/internal/models"
)

// FeedbackClient adds report downloads and WhatsApp triggers to the
// feedback collection.
type FeedbackClient struct {
	*Resource[models.Feedback]
}

// NewFeedbacks returns the feedback client.
func NewFeedbacks(transport Transport, endpoints Endpoints, validate *validator.Validate, logger *zap.Logger) *FeedbackClient {
	return &FeedbackClient{Resource: NewResource[models.Feedback](transport, endpoints, "feedbacks", ImportJSON, validate, logger)}
}

// DownloadAll fetches the PDF with every feedback record.
func (c *FeedbackClient) DownloadAll(ctx context.Context) (*models.Download, error) {
	return c.transport.Download(ctx, c.endpoints.OriginPath("/feedback/download-all/"))
}

// DownloadByGroup fetches the PDF of one group.
func (c *FeedbackClient) DownloadByGroup(ctx context.Context, groupID int64) (*models.Download, error) {
	return c.transport.Download(ctx, c.endpoints.OriginPath(fmt.Sprintf("/feedback/download/%d/", groupID)))
}

// DownloadByStudent fetches the PDF of one student.
func (c *FeedbackClient) DownloadByStudent(ctx context.Context, studentID int64) (*models.Download, error) {
	return c.transport.Download(ctx, c.endpoints.OriginPath(fmt.Sprintf("/feedback/download/student/%d/", studentID)))
}

// SendWhatsAppToAll asks the server to message every student with unsent feedback.
func (c *FeedbackClient) SendWhatsAppToAll(ctx context.Context) (*models.WhatsAppDispatch, error) {
	return c.sendWhatsApp(ctx, c.endpoints.OriginPath("/feedback/send-whatsapp/"))
}

// SendWhatsAppToStudent asks the server to message one student.
func (c *FeedbackClient) SendWhatsAppToStudent(ctx context.Context, studentID int64) (*models.WhatsAppDispatch, error) {
	return c.sendWhatsApp(ctx, c.endpoints.OriginPath(fmt.Sprintf("/feedback/send-whatsapp/%d/", studentID)))
}

func (c *FeedbackClient) sendWhatsApp(ctx context.Context, url string) (*models.WhatsAppDispatch, error) {
	var out models.WhatsAppDispatch
	if err := c.transport.Do(ctx, gateway.Request{Method: http.MethodPost, URL: url}, &out); err != nil {
		return nil, err
	}
	c.logger.Info("whatsapp dispatch requested", zap.String("url", url), zap.Int("sent", out.Sent))
	return &out, nil
}
