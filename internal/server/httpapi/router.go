// Package httpapi exposes the MedReport services over JSON/HTTP with gin.
// It is the only place where service errors are mapped to status codes.
package httpapi

import (
	"context"
	"time"

	"github.com/dmitrijs2005/medreport/internal/logging"
	"github.com/dmitrijs2005/medreport/internal/ocr"
	"github.com/dmitrijs2005/medreport/internal/server/documents"
	"github.com/dmitrijs2005/medreport/internal/server/metrics"
	"github.com/dmitrijs2005/medreport/internal/server/models"
	"github.com/dmitrijs2005/medreport/internal/server/ratelimit"
	"github.com/dmitrijs2005/medreport/internal/server/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Users interface {
	Register(ctx context.Context, email, password string) (*services.Session, error)
	Login(ctx context.Context, email, password string) (*services.Session, error)
	DeleteUser(ctx context.Context, userID string) error
}

type Reports interface {
	Create(ctx context.Context, userID string, in services.CreateReportInput) (*models.Report, error)
	CreateFromAnalysis(ctx context.Context, userID, analysis, documentKey string) (*models.Report, error)
	List(ctx context.Context, userID string) ([]*models.Report, error)
	Get(ctx context.Context, userID, reportID string) (*models.Report, error)
	Delete(ctx context.Context, userID, reportID string) error
	Metrics(ctx context.Context, userID, reportID string) ([]metrics.Metric, error)
	CompareLatest(ctx context.Context, userID string) (*services.Comparison, error)
	ArchiveDocument(ctx context.Context, userID string, data []byte, contentType string) (string, error)
	Document(ctx context.Context, userID, reportID string) (*documents.Document, error)
}

type Analysis interface {
	Analyze(ctx context.Context, text string) (string, error)
	Ask(ctx context.Context, question string) (string, error)
}

// Deps is everything the router needs. AuthLimiter guards register and
// login, AILimiter guards every endpoint that reaches an AI provider.
type Deps struct {
	Users    Users
	Reports  Reports
	Analysis Analysis
	OCR      ocr.Extractor

	AuthLimiter ratelimit.Limiter
	AILimiter   ratelimit.Limiter

	JWTSecret      []byte
	CORSOrigins    []string
	MaxUploadBytes int64
	ServiceName    string

	Logger logging.Logger
}

type handler struct {
	users     Users
	reports   Reports
	analysis  Analysis
	ocr       ocr.Extractor
	secret    []byte
	maxUpload int64
	logger    logging.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d Deps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.With("module", "httpapi")

	maxUpload := d.MaxUploadBytes
	if maxUpload <= 0 || maxUpload > ocr.MaxFileSizeBytes {
		maxUpload = ocr.MaxFileSizeBytes
	}
	extractor := d.OCR
	if extractor == nil {
		extractor = ocr.Disabled{}
	}
	serviceName := d.ServiceName
	if serviceName == "" {
		serviceName = "medreport"
	}

	h := &handler{
		users:     d.Users,
		reports:   d.Reports,
		analysis:  d.Analysis,
		ocr:       extractor,
		secret:    d.JWTSecret,
		maxUpload: maxUpload,
		logger:    logger,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(corsMiddleware(d.CORSOrigins))
	r.Use(remoteAddr())
	r.Use(requestLogger(logger))

	authLimit := limit(d.AuthLimiter, logger)
	aiLimit := limit(d.AILimiter, logger)
	requireAuth := h.authenticate(true)

	r.GET("/", h.root)
	r.GET("/healthcheck", h.healthcheck)

	r.POST("/register", authLimit, h.register)
	r.POST("/login", authLimit, h.login)

	r.POST("/analyze", aiLimit, h.analyze)
	r.POST("/ask", aiLimit, h.ask)
	r.POST("/ocr", aiLimit, h.authenticate(false), h.extractText)

	protected := r.Group("/", requireAuth)
	{
		protected.DELETE("/user", h.deleteUser)

		protected.POST("/reports", h.createReport)
		protected.GET("/reports", h.listReports)
		protected.GET("/reports/compare", h.compareReports)
		protected.POST("/reports/analyze", aiLimit, h.analyzeReport)
		protected.GET("/reports/:id", h.getReport)
		protected.DELETE("/reports/:id", h.deleteReport)
		protected.GET("/reports/:id/metrics", h.reportMetrics)
		protected.GET("/reports/:id/document", h.reportDocument)
	}

	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	cfg.AllowAllOrigins = len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			break
		}
	}
	if !cfg.AllowAllOrigins {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
