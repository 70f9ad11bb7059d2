package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/proctoring-service/internal/services"
	"github.com/SAP-F-2025/proctoring-service/internal/utils"
)

const healthTimeout = 2 * time.Second

// Pinger reports whether the attempt store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HandlerManager struct {
	proctoringHandler *ProctoringHandler
	store             Pinger
	auth              gin.HandlerFunc
	reviewer          gin.HandlerFunc
}

// NewHandlerManager wires handlers to services. auth may be nil to serve
// the API without authentication; reviewers lists the identities allowed to
// annotate proctoring events when it is not.
func NewHandlerManager(
	serviceManager services.ServiceManager,
	store Pinger,
	auth gin.HandlerFunc,
	reviewers []string,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		proctoringHandler: NewProctoringHandler(serviceManager, logger),
		store:             store,
		auth:              auth,
		reviewer:          RequireReviewer(reviewers, logger),
	}
}

// NewRouter builds the engine with the shared middleware stack.
func NewRouter(logger utils.Logger, corsOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ContextLogger(logger))
	router.Use(utils.LoggerMiddleware(logger))

	corsConfig := cors.DefaultConfig()
	if len(corsOrigins) == 0 || (len(corsOrigins) == 1 && corsOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = corsOrigins
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization", utils.RequestIDHeader)
	corsConfig.ExposeHeaders = []string{utils.RequestIDHeader, "Content-Disposition"}
	router.Use(cors.New(corsConfig))

	return router
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", hm.HealthCheck)

	api := router.Group("")
	if hm.auth != nil {
		api.Use(hm.auth)
	}
	{
		api.POST("/proctor-chunk", hm.proctoringHandler.ProctorChunk)
		api.POST("/start-test", hm.proctoringHandler.StartTest)
		api.POST("/submit-test", hm.proctoringHandler.SubmitTest)
		api.GET("/test/:testId", hm.proctoringHandler.GetTest)

		attempts := api.Group("/attempts")
		{
			attempts.GET("/:testId/:studentId", hm.proctoringHandler.GetAttempt)
			attempts.GET("/:testId/:studentId/report", hm.proctoringHandler.GetAttemptReport)
		}

		api.PATCH("/proctoring-events/:id/review", hm.reviewer, hm.proctoringHandler.ReviewEvent)
	}
}

// HealthCheck reports whether the attempt store answers.
func (hm *HandlerManager) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if err := hm.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"service": "proctoring-service",
			"code":    CodeDatabaseUnavailable,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "proctoring-service",
	})
}
