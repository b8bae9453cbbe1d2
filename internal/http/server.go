package http

import (
	"github.com/gin-gonic/gin"

	"github.com/pawpal/composite-service/internal/platform/logger"
)

// Server owns the assembled engine. The service holds no state of its own
// to drain on shutdown; stopping is the signal loop's job in cmd.
type Server struct {
	Engine *gin.Engine
	log    *logger.Logger
}

func NewServer(cfg RouterConfig) *Server {
	return &Server{Engine: NewRouter(cfg), log: cfg.Log}
}

func (s *Server) Run(addr string) error {
	if s.log != nil {
		s.log.Info("composite service listening", "addr", addr)
	}
	return s.Engine.Run(addr)
}
