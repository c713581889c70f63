package server

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-search/internal/app/middleware"
	"github.com/FACorreiaa/loci-search/internal/app/observability/metrics"
	"github.com/FACorreiaa/loci-search/internal/pkg/config"
	"github.com/FACorreiaa/loci-search/internal/routes"
)

// SetupRouter configures the Gin router with the middleware stack and all
// routes, and returns the wired application alongside it.
func SetupRouter(ctx context.Context, cfg *config.Config, dbPool *pgxpool.Pool, logger *zap.Logger) (*gin.Engine, *routes.App, error) {
	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(requestLogger(logger))
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("loci-search"))
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.SecurityMiddleware())
	r.Use(middleware.MetricsMiddleware(metrics.Get()))

	app, err := routes.Setup(ctx, r, cfg, dbPool, logger)
	if err != nil {
		return nil, nil, err
	}

	return r, app, nil
}

// requestLogger emits one structured line per request with the OTEL trace
// correlation fields.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if span := trace.SpanFromContext(c.Request.Context()); span.SpanContext().IsValid() {
			fields = append(fields,
				zap.String("trace_id", span.SpanContext().TraceID().String()),
				zap.String("span_id", span.SpanContext().SpanID().String()),
			)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		logger.Info("http_request", fields...)
	}
}
