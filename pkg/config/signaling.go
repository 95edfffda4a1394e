package config

import (
	"time"

	"github.com/spf13/pflag"
)

type Signaling struct {
	Server     Server
	Monitoring Monitoring
	Turn       Turn
	// RelayURL is the relay bootstrap address advertised on /config.
	RelayURL string
	// StunServers are static ICE entries handed out beside the minted
	// TURN credentials.
	StunServers []string
	Debug       bool
}

// Turn describes the TURN REST credential minting setup
// (coturn shared-secret mode).
type Turn struct {
	Urls           []string
	SharedSecret   string
	TTL            time.Duration
	UsernamePrefix string
}

type SignalingConfig struct {
	Signaling Signaling
	Version   bool
}

func NewSignalingConfig() SignalingConfig {
	conf := SignalingConfig{
		Signaling: Signaling{
			Server:      Server{Address: ":8000"},
			Monitoring:  Monitoring{Port: 6601, URLPrefix: "/signaling"},
			StunServers: []string{"stun:stun.l.google.com:19302"},
			Turn: Turn{
				TTL:            10 * time.Minute,
				UsernamePrefix: "duelnet",
			},
		},
	}
	load(&conf)
	return conf
}

func (c *SignalingConfig) ParseFlags() {
	c.Signaling.Server.WithFlags(pflag.CommandLine)
	c.Signaling.Monitoring.WithFlags(pflag.CommandLine)
	pflag.BoolVarP(&c.Signaling.Debug, "verbose", "v", c.Signaling.Debug, "debug logging")
	pflag.StringVar(&c.Signaling.RelayURL, "relayUrl", c.Signaling.RelayURL, "relay websocket URL for /config")
	pflag.Parse()
}
