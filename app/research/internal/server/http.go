package server

import (
	nethttp "net/http"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iWorld-y/research_radar/app/research/internal/service"
	"github.com/iWorld-y/research_radar/app/research/pkg/config"
)

// NewHTTPServer 创建 HTTP 服务。Timeout 为 0 时不限制请求时长，SSE 流需要如此
func NewHTTPServer(c config.ServerConfig, s *service.ResearchService, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
		),
		http.Timeout(c.Timeout),
	}
	if c.Addr != "" {
		opts = append(opts, http.Address(c.Addr))
	}

	srv := http.NewServer(opts...)
	srv.HandleFunc("/api/research/stream", s.Stream)
	srv.Handle("/metrics", promhttp.Handler())
	srv.HandleFunc("/healthz", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	r := srv.Route("/")
	r.GET("/api/reports/{id}", s.GetReport)

	return srv
}
