package relay

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

var started = time.Now()

type healthInfo struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Uptime   int64  `json:"uptime"`
}

func (r *Relay) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthInfo{
		Status:   "ok",
		Sessions: r.hub.Sessions(),
		Uptime:   int64(time.Since(started).Seconds()),
	})
}
