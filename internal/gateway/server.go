// Package gateway is the edge of the system. Every inbound request passes a
// route's ordered filter chain and is proxied to the owning service; the
// response flows back through the chain's post filters. The gateway maps
// nothing: upstream status codes and bodies pass through unchanged.
package gateway

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/modu-market/backend/internal/config"
	"github.com/modu-market/backend/internal/gateway/filter"
	"github.com/modu-market/backend/internal/logging"
)

type Server struct {
	router     *gin.Engine
	port       string
	httpClient *http.Client
	log        logging.Logger
}

func NewServer(cfg config.GatewayConfig, log logging.Logger) *Server {
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router: router,
		port:   cfg.Port,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
	s.setupRoutes(cfg)
	return s
}

func (s *Server) Run() error {
	return s.router.Run(":" + s.port)
}

// Handler exposes the underlying http.Handler (테스트용).
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes binds each route group to its filter chain and upstream. Filter
// configs come from external configuration and are validated here, once, at
// registration time.
func (s *Server) setupRoutes(cfg config.GatewayConfig) {
	global := filter.NewGlobalFilter(s.log)
	logger := filter.NewLoggerFilter(s.log)

	userChain := filter.NewChain().
		Register(filter.PrecedenceHighest, global.Apply(filter.Config{
			BaseMessage: cfg.GlobalBaseMessage,
			PreEnabled:  cfg.GlobalPre,
			PostEnabled: cfg.GlobalPost,
		})).
		Register(0, logger.Apply(filter.Config{
			BaseMessage: cfg.LoggerBaseMessage,
			PreEnabled:  cfg.LoggerPre,
			PostEnabled: cfg.LoggerPost,
		}))

	user := s.router.Group("/user", userChain.Handlers()...)
	user.Any("/*path", s.proxyTo(cfg.UserServiceURL))

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gateway"})
	})
}

// proxyTo forwards the request to the upstream service, preserving method,
// body, query string and the auth header. The upstream's status code is
// returned as-is; only transport failures become gateway errors.
func (s *Server) proxyTo(baseURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		proxyURL := baseURL + c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			proxyURL += "?" + c.Request.URL.RawQuery
		}

		req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, proxyURL, c.Request.Body)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build proxy request"})
			return
		}
		req.Header.Set("Content-Type", c.GetHeader("Content-Type"))
		req.Header.Set("Authorization", c.GetHeader("Authorization"))

		resp, err := s.httpClient.Do(req)
		if err != nil {
			s.log.Error(c.Request.Context(), "proxy request failed", "url", proxyURL, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "upstream unavailable"})
			return
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read upstream response"})
			return
		}

		contentType := resp.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/json"
		}
		c.Data(resp.StatusCode, contentType, body)
	}
}
