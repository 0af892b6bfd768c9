// rangesumd 是区间聚合服务的入口程序。
// 负责装配配置、日志、追踪、指标、缓存、限流、聚合引擎与 HTTP 服务器。
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/wyfcoding/rangesum/app"
	"github.com/wyfcoding/rangesum/cache"
	"github.com/wyfcoding/rangesum/config"
	"github.com/wyfcoding/rangesum/engine"
	"github.com/wyfcoding/rangesum/handler"
	"github.com/wyfcoding/rangesum/health"
	"github.com/wyfcoding/rangesum/idgen"
	"github.com/wyfcoding/rangesum/logging"
	"github.com/wyfcoding/rangesum/metrics"
	"github.com/wyfcoding/rangesum/middleware"
	"github.com/wyfcoding/rangesum/server"
	"github.com/wyfcoding/rangesum/tracing"
	"github.com/wyfcoding/rangesum/worker"
)

func main() {
	configPath := flag.String("config", "configs/config.toml", "path to the configuration file")
	flag.Parse()

	cfg := &config.Config{}
	if err := config.Load(*configPath, cfg); err != nil {
		slog.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	logging.InitFromConfig(logging.Config{
		Service:    cfg.Server.Name,
		Module:     "rangesumd",
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})
	logger := logging.Default().Logger

	if err := idgen.Init(cfg.Snowflake); err != nil {
		logger.Error("failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	if cfg.Server.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	var cleanups []func()

	if cfg.Tracing.Enabled {
		shutdown, err := tracing.InitTracer(cfg.Tracing)
		if err != nil {
			logger.Error("failed to initialize tracer", "error", err)
			os.Exit(1)
		}
		cleanups = append(cleanups, func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("tracer shutdown error", "error", err)
			}
		})
	}

	m := metrics.NewMetrics(cfg.Server.Name)

	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithMetrics(m),
	}

	registry := health.NewRegistry()

	var queryCache cache.Cache
	if cfg.Cache.Enabled {
		bc, err := cache.NewBigCache(cfg.Cache.TTL, cfg.Cache.MaxMB)
		if err != nil {
			logger.Error("failed to initialize query cache", "error", err)
			os.Exit(1)
		}
		queryCache = bc
		engineOpts = append(engineOpts, engine.WithCache(queryCache, cfg.Cache.TTL))
		registry.Register("cache", health.CacheChecker(queryCache))
		cleanups = append(cleanups, func() {
			if err := queryCache.Close(); err != nil {
				logger.Error("cache close error", "error", err)
			}
		})
	}

	eng := engine.New(cfg.Engine, engineOpts...)

	pool := worker.NewPool(
		worker.WithName("bulk-update"),
		worker.WithSize(cfg.Worker.Size),
		worker.WithQueueSize(cfg.Worker.QueueSize),
		worker.WithLogger(logger),
		worker.WithMetrics(m),
	)
	cleanups = append(cleanups, pool.Stop)

	middlewares := []gin.HandlerFunc{
		middleware.Recovery(logger),
		middleware.RequestID(),
	}
	if cfg.Tracing.Enabled {
		middlewares = append(middlewares, middleware.TracingMiddleware(cfg.Server.Name))
	}
	middlewares = append(middlewares,
		middleware.Logger(logger),
		middleware.HTTPMetricsMiddlewareWithOptions(m, middleware.MetricsOptions{
			SkipPaths: []string{"/healthz", "/readyz", "/metrics"},
		}),
	)

	if cfg.RateLimit.Enabled {
		switch cfg.RateLimit.Mode {
		case "redis":
			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			registry.Register("redis", health.RedisChecker(rdb))
			cleanups = append(cleanups, func() {
				if err := rdb.Close(); err != nil {
					logger.Error("redis close error", "error", err)
				}
			})
			middlewares = append(middlewares,
				middleware.NewRedisRateLimitMiddleware(rdb, cfg.RateLimit.Rate, cfg.RateLimit.Window))
		default:
			middlewares = append(middlewares,
				middleware.NewLocalRateLimitMiddleware(cfg.RateLimit.Rate, cfg.RateLimit.Burst))
		}
	}

	router := server.NewGinEngine(middlewares...)

	router.GET("/healthz", health.LivenessHandler())
	router.GET("/readyz", health.ReadinessHandler(registry))

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port != "" {
			// 指标挂独立端口，避免与业务流量互相干扰。
			cleanups = append(cleanups, m.ExposeHttp(cfg.Metrics.Port))
		} else {
			router.GET("/metrics", gin.WrapH(m.Handler()))
		}
	}

	tableHandler := handler.NewTableHandler(eng, pool, logger)
	tableHandler.RegisterRoutes(router.Group("/api/v1"))

	httpServer := server.NewGinServer(router, cfg.GetHTTPAddr(), logger)

	appOpts := []app.Option{app.WithServer(httpServer)}
	for _, cleanup := range cleanups {
		appOpts = append(appOpts, app.WithCleanup(cleanup))
	}

	application := app.New(cfg.Server.Name, logger, appOpts...)
	if err := application.Run(); err != nil {
		logger.Error("application exited with error", "error", err)
		os.Exit(1)
	}
}
