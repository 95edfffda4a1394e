package main

import (
	"context"
	goflag "flag"
	stdos "os"

	"github.com/duelnet/duelnet/pkg/config"
	"github.com/duelnet/duelnet/pkg/logger"
	"github.com/duelnet/duelnet/pkg/monitoring"
	"github.com/duelnet/duelnet/pkg/os"
	"github.com/duelnet/duelnet/pkg/relay"
	"github.com/duelnet/duelnet/pkg/service"
	flag "github.com/spf13/pflag"
)

var Version = "?"

func main() {
	conf := config.NewRelayConfig()
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	conf.ParseFlags()
	if port := stdos.Getenv("RELAY_PORT"); port != "" {
		conf.Relay.Server.Address = ":" + port
	}

	log := logger.NewConsole(conf.Relay.Debug, "rly", false)
	log.Info().Msgf("version %s", Version)
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}

	rly, err := relay.New(conf, log)
	if err != nil {
		log.Fatal().Err(err).Msg("relay init failed")
	}

	var services service.Group
	services.Add(rly)
	services.AddIf(conf.Relay.Monitoring.IsEnabled(), monitoring.New(conf.Relay.Monitoring, "rly", log))
	services.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		if err := services.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("service shutdown errors")
		}
	}()
	<-os.ExpectTermination()
	cancel()
}
