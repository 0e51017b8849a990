package metrics

/* request metrics adapted from https://github.com/zsais/go-gin-prometheus
edits:
- registry is injected instead of the global one
- size summaries and push gateway removed
- metrics path is served by its own engine (see runServer)
*/

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/payflow/pkg/config"
)

var reqCnt = &Metric{
	ID:          "reqCnt",
	Name:        "req_total",
	Description: "How many HTTP requests processed, partitioned by status code and HTTP method.",
	Type:        "counter_vec",
	Args:        []string{"code", "method", "url", "ref"},
}

var reqDur = &Metric{
	ID:          "reqDur",
	Name:        "req_dur_ms",
	Description: "The HTTP request latencies in milliseconds.",
	Type:        "histogram_vec",
	Args:        []string{"code", "method", "url", "ref"},
}

const defaultMetricPath = "/metrics"

/*
RequestCounterURLLabelMappingFn controls the cardinality of the "url" label.
The default maps "/payments/0190..." onto the route template
"/payments/:transactionId" via gin's FullPath.
*/
type RequestCounterURLLabelMappingFn func(c *gin.Context) string

// Prometheus records per-request metrics for a gin engine.
type Prometheus struct {
	reqCnt *prometheus.CounterVec
	reqDur *prometheus.HistogramVec

	MetricsPath             string
	ReqCntURLLabelMappingFn RequestCounterURLLabelMappingFn
}

type NewPrometheusOptions struct {
	Subsystem               string
	MetricsPath             string
	ReqCntURLLabelMappingFn RequestCounterURLLabelMappingFn
}

// NewPrometheus registers the request metrics with reg.
func NewPrometheus(reg prometheus.Registerer, options NewPrometheusOptions) *Prometheus {
	p := &Prometheus{
		reqCnt:      Register(reg, reqCnt, options.Subsystem).(*prometheus.CounterVec),
		reqDur:      Register(reg, reqDur, options.Subsystem).(*prometheus.HistogramVec),
		MetricsPath: options.MetricsPath,
	}
	if p.MetricsPath == "" {
		p.MetricsPath = defaultMetricPath
	}
	p.ReqCntURLLabelMappingFn = options.ReqCntURLLabelMappingFn
	if p.ReqCntURLLabelMappingFn == nil {
		p.ReqCntURLLabelMappingFn = func(c *gin.Context) string {
			if fp := c.FullPath(); fp != "" {
				return fp
			}
			return c.Request.URL.Path
		}
	}
	return p
}

// Use adds the middleware to a gin engine.
func (p *Prometheus) Use(e *gin.Engine) {
	e.Use(p.HandlerFunc())
}

// HandlerFunc defines handler function for middleware
func (p *Prometheus) HandlerFunc() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == p.MetricsPath {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		url := p.ReqCntURLLabelMappingFn(c)
		ref := c.Request.Header.Get(RefererKey)

		p.reqDur.WithLabelValues(status, c.Request.Method, url, ref).Observe(MillisecondsSince(start))
		p.reqCnt.WithLabelValues(status, c.Request.Method, url, ref).Inc()
	}
}

// MillisecondsSince returns the elapsed time since start in milliseconds.
func MillisecondsSince(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}

// NewMetricsEngine serves the default gatherer on path. Kept apart from the API
// engine so scrapes stay out of the access log.
func NewMetricsEngine(path string) *gin.Engine {
	if path == "" {
		path = defaultMetricPath
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET(path, gin.WrapH(promhttp.Handler()))
	return r
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *config.Config) {
	if cfg == nil || cfg.MetricsAddr == "" {
		log.Infow("metrics server disabled")
		return
	}
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: NewMetricsEngine(defaultMetricPath), ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("metrics started", "addr", cfg.MetricsAddr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorw("metrics server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
