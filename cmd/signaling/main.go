package main

import (
	"context"
	goflag "flag"
	stdos "os"

	"github.com/duelnet/duelnet/pkg/config"
	"github.com/duelnet/duelnet/pkg/logger"
	"github.com/duelnet/duelnet/pkg/monitoring"
	"github.com/duelnet/duelnet/pkg/os"
	"github.com/duelnet/duelnet/pkg/service"
	"github.com/duelnet/duelnet/pkg/signaling"
	flag "github.com/spf13/pflag"
)

var Version = "?"

func main() {
	conf := config.NewSignalingConfig()
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	conf.ParseFlags()
	if port := stdos.Getenv("PORT"); port != "" {
		conf.Signaling.Server.Address = ":" + port
	}

	log := logger.NewConsole(conf.Signaling.Debug, "sig", false)
	log.Info().Msgf("version %s", Version)
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}

	sig, err := signaling.New(conf.Signaling, log)
	if err != nil {
		log.Fatal().Err(err).Msg("signaling init failed")
	}

	var services service.Group
	services.Add(sig)
	services.AddIf(conf.Signaling.Monitoring.IsEnabled(), monitoring.New(conf.Signaling.Monitoring, "sig", log))
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
