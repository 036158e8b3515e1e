package http

import (
	"context"
	"net/http"
	"time"

	"github.com/jmehdipour/linkdb/internal/config"
	"github.com/jmehdipour/linkdb/internal/db"
	"github.com/jmehdipour/linkdb/internal/http/middleware"
	"github.com/jmehdipour/linkdb/internal/logger"
	"github.com/jmehdipour/linkdb/internal/metrics"
	"github.com/jmehdipour/linkdb/internal/repository"
	"github.com/jmehdipour/linkdb/internal/service/credential"
	"github.com/jmehdipour/linkdb/internal/service/records"
	"github.com/jmehdipour/linkdb/internal/service/schema"
	"github.com/jmehdipour/linkdb/internal/service/usage"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	e   *echo.Echo
	log *zap.Logger
}

// NewServer wires repositories and services over the shared store and
// registers every route. meter is run by the caller.
func NewServer(cfg config.Config, log *zap.Logger, store *db.Store, meter *usage.Meter, rds *redis.Client) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	// repos
	credsRepo := repository.NewCredentialsRepository(store.DB, db.IsDuplicateKey)
	catalogRepo := repository.NewCatalogRepository(store.DB, db.IsDuplicateKey)

	// services
	credSvc := credential.New(store, credsRepo)
	schemaSvc := schema.New(store, catalogRepo, log)
	recordsSvc := records.New(store, schemaSvc)

	// echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(logger.EchoLevel(cfg.Log.Level))
	e.HTTPErrorHandler = errorHandler(log)
	e.Use(echoMid.Recover(), requestLogger(log))

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", healthHandler(store))

	// middlewares
	authMW := middleware.APIKeyMiddleware(credSvc)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          rds,
		RPS:            cfg.RateLimit.RPS,
		KeyPrefix:      "rl:key:",
		Window:         time.Second,
		RetryAfterHint: true,
		Log:            log,
	})
	usageMW := middleware.UsageMiddleware(meter)
	tenant := []echo.MiddlewareFunc{authMW, rlMW, usageMW}

	// routes
	e.POST("/generate_api_key", observe("generate_api_key", generateAPIKeyHandler(credSvc)))
	e.GET("/get_usage_costs", observe("get_usage_costs", usageCostsHandler(meter)), tenant...)

	e.POST("/create_table", observe("create_table", createTableHandler(schemaSvc)), tenant...)
	e.GET("/list_tables", observe("list_tables", listTablesHandler(schemaSvc)), tenant...)
	e.GET("/:table/table_schema", observe("table_schema", tableSchemaHandler(schemaSvc)), tenant...)

	e.POST("/:table/insert_data", observe("insert_data", insertDataHandler(recordsSvc)), tenant...)
	e.GET("/:table/query_data", observe("query_data", queryDataHandler(recordsSvc)), tenant...)
	e.PUT("/:table/update_data", observe("update_data", updateDataHandler(recordsSvc)), tenant...)
	e.DELETE("/:table/delete_data", observe("delete_data", deleteDataHandler(recordsSvc)), tenant...)
	e.GET("/:table/data_count", observe("data_count", dataCountHandler(recordsSvc)), tenant...)
	e.GET("/:table/data_sum/:column", observe("data_sum", dataSumHandler(recordsSvc)), tenant...)

	return &Server{e: e, log: log}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.e }

func (s *Server) Start(addr string) error {
	s.log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }

func healthHandler(store *db.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := store.Bounded(c.Request().Context())
		defer cancel()
		if err := store.PingContext(ctx); err != nil {
			return c.String(http.StatusServiceUnavailable, "storage unavailable")
		}
		return c.String(http.StatusOK, "ok")
	}
}

func requestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return echoMid.RequestLoggerWithConfig(echoMid.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogRoutePath: true,
		LogStatus:    true,
		LogLatency:   true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v echoMid.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("path", v.URIPath),
				zap.String("route", v.RoutePath),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			log.Debug("request", fields...)
			return nil
		},
	})
}
