package api

import (
	"net/http"

	"gridflow/internal/config"
	gfmiddleware "gridflow/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handlers 汇总路由需要的各个处理器，nil 表示不注册对应端点。
type Handlers struct {
	Sessions *SessionHandler
	Previews *PreviewHandler
	Objects  *ObjectHandler
}

// NewRouter 构建 HTTP 路由，集中注册所有对外服务的端点。
func NewRouter(cfg *config.Config, logger *zap.Logger, h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(gfmiddleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(gfmiddleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(gfmiddleware.Metrics())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Prometheus 指标端点
	r.Handle("/metrics", promhttp.Handler())

	if h.Previews != nil {
		h.Previews.RegisterRoutes(r)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(gfmiddleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		if h.Sessions != nil {
			h.Sessions.RegisterRoutes(r)
		}
		if h.Objects != nil {
			h.Objects.RegisterRoutes(r)
		}
	})

	return r
}
