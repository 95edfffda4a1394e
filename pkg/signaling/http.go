package signaling

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

var started = time.Now()

type healthInfo struct {
	Status string `json:"status"`
	Rooms  int    `json:"rooms"`
	Uptime int64  `json:"uptime"`
}

type bootstrapInfo struct {
	Ice   iceInfo `json:"ice"`
	Relay string  `json:"relay,omitempty"`
}

type iceInfo struct {
	Urls       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

func (s *Signaling) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, healthInfo{
		Status: "ok",
		Rooms:  s.hub.Rooms(),
		Uptime: int64(time.Since(started).Seconds()),
	})
}

// handleConfig hands out the transport bootstrap: ICE servers with
// freshly minted TURN credentials plus the relay fallback address.
func (s *Signaling) handleConfig(w http.ResponseWriter, _ *http.Request) {
	t := s.hub.BootstrapTurn()
	writeJSON(w, bootstrapInfo{
		Ice:   iceInfo{Urls: t.Urls, Username: t.Username, Credential: t.Credential},
		Relay: s.conf.RelayURL,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
