package config

import "github.com/spf13/pflag"

type Relay struct {
	Server     Server
	Monitoring Monitoring
	Debug      bool
}

type RelayConfig struct {
	Relay Relay
}

func NewRelayConfig() RelayConfig {
	conf := RelayConfig{
		Relay: Relay{
			Server:     Server{Address: ":8010"},
			Monitoring: Monitoring{Port: 6602, URLPrefix: "/relay"},
		},
	}
	load(&conf)
	return conf
}

func (c *RelayConfig) ParseFlags() {
	c.Relay.Server.WithFlags(pflag.CommandLine)
	c.Relay.Monitoring.WithFlags(pflag.CommandLine)
	pflag.BoolVarP(&c.Relay.Debug, "verbose", "v", c.Relay.Debug, "debug logging")
	pflag.Parse()
}
