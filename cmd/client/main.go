// A headless peer for poking at a deployment: joins or creates a room,
// runs the full connect sequence, and trades tick frames with the other
// side over whichever transport comes up.
package main

import (
	goflag "flag"
	"time"

	"github.com/goccy/go-json"

	"github.com/duelnet/duelnet/pkg/api"
	"github.com/duelnet/duelnet/pkg/config"
	"github.com/duelnet/duelnet/pkg/logger"
	"github.com/duelnet/duelnet/pkg/orchestrator"
	"github.com/duelnet/duelnet/pkg/os"
	flag "github.com/spf13/pflag"
)

var Version = "?"

type tick struct {
	N  uint64 `json:"n"`
	At int64  `json:"at"`
}

func main() {
	conf := config.NewClientConfig()
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	conf.ParseFlags()

	log := logger.NewConsole(conf.Client.Debug, "cli", false)
	log.Info().Msgf("version %s", Version)

	role := api.Role(conf.Client.Role)
	if !role.Valid() {
		log.Fatal().Msgf("bad role %q, want host or guest", conf.Client.Role)
	}
	if role == api.RoleGuest && conf.Client.Room == "" {
		log.Fatal().Msg("guests need --room")
	}

	o := orchestrator.New(conf.Client, log)
	o.SetMessageHandler(func(t api.Type, frame *api.Frame) {
		log.Debug().Msgf("recv [%v] seq=%d", t, frame.Seq)
	})
	go o.Run()
	defer o.Stop()
	o.Start(role, conf.Client.Room)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	var n uint64
	term := os.ExpectTermination()

	for {
		select {
		case ev := <-o.Events():
			switch ev.T {
			case orchestrator.EventConnected:
				log.Info().Msgf("connected over %v", ev.Transport)
			case orchestrator.EventPeerLeft:
				log.Info().Msg("peer left")
			case orchestrator.EventFailed:
				log.Fatal().Err(ev.Err).Msg("connection failed")
			}
		case <-ticker.C:
			n++
			payload, _ := json.Marshal(tick{N: n, At: time.Now().UnixMilli()})
			if role == api.RoleHost {
				o.SendState(payload)
			} else {
				o.SendInput(payload)
			}
		case <-term:
			return
		}
	}
}
