package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-admin/internal/middleware"
	"github.com/noah-isme/tutor-admin/internal/models"
	"github.com/noah-isme/tutor-admin/pkg/logger"
	corsmiddleware "github.com/noah-isme/tutor-admin/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/tutor-admin/pkg/middleware/requestid"
)

// RouterDeps carries everything the development backend routes need.
type RouterDeps struct {
	Auth      *AuthHandler
	Students  *ResourceHandler[models.Student]
	Groups    *ResourceHandler[models.Group]
	Lessons   *ResourceHandler[models.Lesson]
	Feedbacks *ResourceHandler[models.Feedback]
	Reports   *ReportHandler
	Metrics   *MetricsHandler

	Tokens      middleware.TokenValidator
	Recorder    middleware.HTTPRecorder
	CORSOrigins []string
	Logger      *zap.Logger
}

// NewRouter assembles the REST API under /api and the report endpoints on
// the origin.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(deps.CORSOrigins))
	r.Use(middleware.Metrics(deps.Recorder))

	r.GET("/health", deps.Metrics.Health)
	r.GET("/metrics", deps.Metrics.Prometheus)

	api := r.Group("/api")
	api.POST("/token/", deps.Auth.Obtain)
	api.POST("/token/refresh/", deps.Auth.Refresh)

	protected := api.Group("")
	protected.Use(middleware.JWT(deps.Tokens))
	registerResource(protected, "students", deps.Students, false)
	registerResource(protected, "groups", deps.Groups, true)
	registerResource(protected, "lessons", deps.Lessons, false)
	registerResource(protected, "feedbacks", deps.Feedbacks, true)

	feedback := r.Group("/feedback")
	feedback.Use(middleware.JWT(deps.Tokens))
	feedback.GET("/download-all/", deps.Reports.DownloadAll)
	feedback.GET("/download/:group_id/", deps.Reports.DownloadGroup)
	feedback.GET("/download/student/:student_id/", deps.Reports.DownloadStudent)
	feedback.POST("/send-whatsapp/", deps.Reports.SendWhatsApp)
	feedback.POST("/send-whatsapp/:student_id/", deps.Reports.SendWhatsApp)

	return r
}

type resourceRoutes interface {
	List(c *gin.Context)
	Get(c *gin.Context)
	Create(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
	Import(c *gin.Context)
	ImportJSON(c *gin.Context)
}

func registerResource(group *gin.RouterGroup, name string, h resourceRoutes, jsonImport bool) {
	base := "/" + name + "/"
	group.GET(base, h.List)
	group.POST(base, h.Create)
	if jsonImport {
		group.POST(base+"import_json/", h.ImportJSON)
	} else {
		group.POST(base+"import/", h.Import)
	}
	group.GET(base+":id/", h.Get)
	group.PUT(base+":id/", h.Update)
	group.PATCH(base+":id/", h.Update)
	group.DELETE(base+":id/", h.Delete)
}
