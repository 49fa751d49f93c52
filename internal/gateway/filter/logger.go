package filter

import (
	"github.com/gin-gonic/gin"
	"github.com/modu-market/backend/internal/logging"
)

// LoggerFilter emits structured logs around the downstream call. Pre logging
// runs before delegation, post logging after the downstream response is in.
// The filter never writes the response and never translates errors.
type LoggerFilter struct {
	log logging.Logger
}

func NewLoggerFilter(log logging.Logger) *LoggerFilter {
	return &LoggerFilter{log: log}
}

// Apply binds a config and returns the filter function for a route.
func (f *LoggerFilter) Apply(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		f.log.Info(ctx, "Logger Filter active", "baseMessage", cfg.BaseMessage)
		if cfg.PreEnabled {
			f.log.Info(ctx, "Logger Pre Filter active",
				"method", c.Request.Method, "path", c.Request.URL.Path)
		}

		c.Next()

		if cfg.PostEnabled {
			f.log.Info(ctx, "Logger Post Filter active",
				"status", c.Writer.Status())
		}
	}
}

// GlobalFilter - 모든 라우트에 공통 적용되는 필터
type GlobalFilter struct {
	log logging.Logger
}

func NewGlobalFilter(log logging.Logger) *GlobalFilter {
	return &GlobalFilter{log: log}
}

func (f *GlobalFilter) Apply(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		f.log.Info(ctx, "Global Filter active", "baseMessage", cfg.BaseMessage)
		if cfg.PreEnabled {
			f.log.Info(ctx, "Global Pre Filter active",
				"method", c.Request.Method, "path", c.Request.URL.Path)
		}

		c.Next()

		if cfg.PostEnabled {
			f.log.Info(ctx, "Global Post Filter active",
				"status", c.Writer.Status())
		}
	}
}
