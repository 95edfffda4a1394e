package signaling

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "duelnet_signaling_rooms",
		Help: "Number of live rooms.",
	})
	metricRoomsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duelnet_signaling_rooms_created_total",
		Help: "Total number of rooms created.",
	})
	metricSignalsForwarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duelnet_signaling_frames_forwarded_total",
		Help: "Total number of signal frames forwarded between peers.",
	})
	metricRateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duelnet_signaling_rate_limited_total",
		Help: "Total number of handshakes rejected by rate limits.",
	})
)
