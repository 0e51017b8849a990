package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/payflow/internal/app/api/handlers"
	mw "github.com/fatflowers/payflow/internal/app/api/middleware"
	"github.com/fatflowers/payflow/internal/app/service/ledger"
	cfgpkg "github.com/fatflowers/payflow/pkg/config"
	metrics "github.com/fatflowers/payflow/pkg/metrics"
)

func newEngine(cfg *cfgpkg.Config) *gin.Engine {
	if cfg != nil && cfg.Env == cfgpkg.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	// Add request tracing middleware only; request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

// NewRouter builds the ledger API engine. Exposed for tests that need the
// full route table without the fx lifecycle.
func NewRouter(log *zap.SugaredLogger, cfg *cfgpkg.Config, l ledger.Ledger, reg prometheus.Registerer) *gin.Engine {
	r := newEngine(cfg)
	registerRoutes(r, log, l, reg)
	return r
}

func registerRoutes(r *gin.Engine, log *zap.SugaredLogger, l ledger.Ledger, reg prometheus.Registerer) {
	// request metrics; /metrics itself is served by the metrics server
	metrics.NewPrometheus(reg, metrics.NewPrometheusOptions{}).Use(r)

	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))
	handlers.RegisterHealthRoutes(pub)
	handlers.RegisterPaymentRoutes(pub, l)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := cfg.ServerAddr()
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting ledger HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping ledger HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(NewRouter),
	fx.Invoke(runServer),
)
