package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	httpH "github.com/pawpal/composite-service/internal/http/handlers"
	httpMW "github.com/pawpal/composite-service/internal/http/middleware"
	"github.com/pawpal/composite-service/internal/platform/logger"
)

var availableRoutes = []string{
	"GET /",
	"GET /health",
	"GET /api/composite/principals/:id/complete",
	"GET /api/composite/principals/:id/dependents",
	"GET /api/composite/principals",
	"POST /api/composite/dependents",
	"PUT /api/composite/dependents/:id",
	"DELETE /api/composite/principals/:id",
	"GET /api/composite/stats",
}

type RouterConfig struct {
	Log *logger.Logger

	CompositeHandler *httpH.CompositeHandler
	HealthHandler    *httpH.HealthHandler
	ForeignKeyGuard  *httpMW.ForeignKeyGuard

	AllowedOrigins []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	r.GET("/", apiIndex)
	r.NoRoute(notFound)

	if cfg.HealthHandler != nil {
		r.GET("/health", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api/composite")
	{
		if cfg.CompositeHandler != nil {
			api.GET("/principals/:id/complete", cfg.CompositeHandler.GetPrincipalComplete)
			api.GET("/principals/:id/dependents", cfg.CompositeHandler.GetPrincipalWithDependents)
			api.GET("/principals", cfg.CompositeHandler.ListPrincipals)
			api.GET("/stats", cfg.CompositeHandler.GetStats)

			api.POST("/dependents", cfg.ForeignKeyGuard.ValidateOwner(), cfg.CompositeHandler.CreateDependent)
			api.PUT("/dependents/:id", cfg.ForeignKeyGuard.ValidateOwnerIfPresent(), cfg.CompositeHandler.UpdateDependent)
			api.DELETE("/principals/:id", cfg.ForeignKeyGuard.ValidatePrincipalExists(), cfg.CompositeHandler.DeletePrincipalCascade)
		}
	}

	return r
}

func apiIndex(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":     "Composite Service API",
		"version":     "1.0.0",
		"description": "Aggregates and encapsulates the principal and dependent services",
		"health":      "/health",
		"endpoints": gin.H{
			"GET /api/composite/principals/:id/complete":   "Principal with dependents and stats (parallel fetch)",
			"GET /api/composite/principals/:id/dependents": "Principal with their dependents (parallel fetch)",
			"GET /api/composite/principals":                "All principals with their dependents",
			"POST /api/composite/dependents":               "Create dependent with owner validation",
			"PUT /api/composite/dependents/:id":            "Update dependent with owner validation",
			"DELETE /api/composite/principals/:id":         "Delete principal and all their dependents (cascade)",
			"GET /api/composite/stats":                     "Aggregated statistics",
		},
	})
}

// notFound keeps unknown routes on the JSON envelope instead of gin's
// plain-text default.
func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error":           "Not Found",
		"message":         fmt.Sprintf("Route %s not found", c.Request.URL.Path),
		"availableRoutes": availableRoutes,
	})
}
