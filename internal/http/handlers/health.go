package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	principalURL string
	dependentURL string
}

func NewHealthHandler(principalURL, dependentURL string) *HealthHandler {
	return &HealthHandler{principalURL: principalURL, dependentURL: dependentURL}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"service":   "composite-service",
		"version":   "1.0.0",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"upstreams": gin.H{
			"principalService": h.principalURL,
			"dependentService": h.dependentURL,
		},
	})
}
