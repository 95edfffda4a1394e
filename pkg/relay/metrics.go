package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "duelnet_relay_sessions",
		Help: "Current number of live relay sessions.",
	})
	metricFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "duelnet_relay_frames_total",
		Help: "Frames forwarded between peers, by type.",
	}, []string{"type"})
	metricRateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duelnet_relay_rate_limited_total",
		Help: "Messages dropped by the per-IP rate limiter.",
	})
	metricOversized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duelnet_relay_oversized_total",
		Help: "Frames rejected for exceeding the size cap.",
	})
	metricReplaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duelnet_relay_replaced_total",
		Help: "Sockets displaced by a newer claim on the same role.",
	})
)
