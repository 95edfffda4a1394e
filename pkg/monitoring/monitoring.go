package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"

	"github.com/duelnet/duelnet/pkg/config"
	"github.com/duelnet/duelnet/pkg/logger"
	"github.com/duelnet/duelnet/pkg/network/httpx"
	"github.com/duelnet/duelnet/pkg/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Monitoring struct {
	service.RunnableService

	conf   config.Monitoring
	log    *logger.Logger
	server *httpx.Server
}

// New creates new monitoring service.
// The tag param specifies owner label for logs.
func New(conf config.Monitoring, tag string, log *logger.Logger) *Monitoring {
	serv, err := httpx.NewServer(
		fmt.Sprintf(":%d", conf.Port),
		func(serv *httpx.Server) http.Handler {
			h := httpx.NewServeMux(conf.URLPrefix)
			if conf.ProfilingEnabled {
				log.Info().Msgf("[%v] pprof is enabled at %v%v/debug/pprof", tag, serv.Addr, conf.URLPrefix)
				h.HandleFunc("/debug/pprof/", pprof.Index)
				h.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
				h.HandleFunc("/debug/pprof/profile", pprof.Profile)
				h.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
				h.HandleFunc("/debug/pprof/trace", pprof.Trace)
				h.Handle("/debug/pprof/allocs", pprof.Handler("allocs"))
				h.Handle("/debug/pprof/block", pprof.Handler("block"))
				h.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
				h.Handle("/debug/pprof/heap", pprof.Handler("heap"))
				h.Handle("/debug/pprof/mutex", pprof.Handler("mutex"))
				h.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
			}
			if conf.MetricEnabled {
				log.Info().Msgf("[%v] metrics are enabled at %v%v/metrics", tag, serv.Addr, conf.URLPrefix)
				h.Handle("/metrics", promhttp.Handler())
			}
			return h
		},
		httpx.WithLogger(log),
	)
	if err != nil {
		log.Error().Err(err).Msgf("[%v] couldn't init the monitoring server", tag)
		return nil
	}
	return &Monitoring{conf: conf, log: log, server: serv}
}

func (m *Monitoring) Run() { go m.server.Run() }

func (m *Monitoring) Shutdown(ctx context.Context) error { return m.server.Shutdown(ctx) }

func (m *Monitoring) String() string {
	return fmt.Sprintf("monitoring::%s:%d", m.conf.URLPrefix, m.conf.Port)
}
