package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tinrooster/tedecom-v1/internal/auth"
	"github.com/tinrooster/tedecom-v1/internal/logging"
	"github.com/tinrooster/tedecom-v1/internal/models"
	"github.com/tinrooster/tedecom-v1/internal/report"
	"github.com/tinrooster/tedecom-v1/internal/scheduler"
	"github.com/tinrooster/tedecom-v1/internal/templates"
	"gorm.io/gorm"
)

type Config struct {
	DB        *gorm.DB
	Reports   *report.Manager
	Scheduler *scheduler.Scheduler
	Templates *templates.Service
	Auth      *auth.Authenticator
	Gatherer  prometheus.Gatherer
}

type Server struct {
	db        *gorm.DB
	reports   *report.Manager
	scheduler *scheduler.Scheduler
	templates *templates.Service
	auth      *auth.Authenticator
	gatherer  prometheus.Gatherer
	router    *gin.Engine
}

func NewServer(cfg Config) *Server {
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	router := gin.New()
	router.Use(gin.Recovery(), logging.GinMiddleware())

	server := &Server{
		db:        cfg.DB,
		reports:   cfg.Reports,
		scheduler: cfg.Scheduler,
		templates: cfg.Templates,
		auth:      cfg.Auth,
		gatherer:  cfg.Gatherer,
		router:    router,
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.healthz)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	// Public routes
	s.router.POST("/api/v1/auth/login", s.login)

	// Protected routes (require authentication)
	api := s.router.Group("/api/v1")
	api.Use(s.auth.Middleware())

	writers := auth.RequirePermission(models.PermissionManageReports)
	admins := auth.RequirePermission(models.PermissionManageTemplates)

	reports := api.Group("/reports")
	{
		reports.GET("", s.listReports)
		reports.GET("/types", s.listReportTypes)
		reports.POST("", writers, s.createReport)
		reports.GET("/:id", s.getReport)
		reports.GET("/:id/status", s.getReportStatus)
		reports.GET("/:id/download", auth.RequirePermission(models.PermissionDownloadReports), s.downloadReport)
		reports.POST("/:id/retry", writers, s.retryReport)
		reports.DELETE("/:id", writers, s.deleteReport)
		reports.GET("/:id/schedule", s.getSchedule)
		reports.POST("/:id/schedule", writers, s.scheduleReport)
		reports.DELETE("/:id/schedule", writers, s.cancelSchedule)
	}

	tmpl := api.Group("/templates")
	{
		tmpl.GET("", s.listTemplates)
		tmpl.GET("/:id", s.getTemplate)
		tmpl.POST("", admins, s.createTemplate)
		tmpl.PUT("/:id", admins, s.updateTemplate)
		tmpl.DELETE("/:id", admins, s.deleteTemplate)
		tmpl.POST("/:id/default", admins, s.setDefaultTemplate)
	}
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(port int) error {
	return s.router.Run(fmt.Sprintf(":%d", port))
}

func (s *Server) healthz(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) login(c *gin.Context) {
	var loginReq struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&loginReq); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, user, err := s.auth.Login(c.Request.Context(), loginReq.Username, loginReq.Password)
	if err != nil {
		if err == auth.ErrInvalidCredentials {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}
