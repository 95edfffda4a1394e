package config

import (
	"time"

	"github.com/spf13/pflag"
)

// Client holds the connection orchestrator settings. The timing values
// default to the protocol contract and are overridable mostly for tests.
type Client struct {
	SignalingURL string
	RelayURL     string
	Room         string
	Role         string
	Webrtc       Webrtc
	// NegotiationTimeout bounds the WebRTC handshake before the relay
	// fallback kicks in.
	NegotiationTimeout time.Duration
	// StabilityWindow is how long a re-established WebRTC connection must
	// hold before the relay is dropped.
	StabilityWindow time.Duration
	Reconnect       Reconnect
	Debug           bool
}

// Reconnect describes the relay reconnect backoff.
type Reconnect struct {
	Base        time.Duration
	Cap         time.Duration
	Jitter      time.Duration
	MaxAttempts int
}

type ClientConfig struct {
	Client Client
}

func NewClientConfig() ClientConfig {
	conf := ClientConfig{Client: DefaultClient()}
	load(&conf)
	return conf
}

func DefaultClient() Client {
	return Client{
		SignalingURL:       "ws://localhost:8000/ws",
		RelayURL:           "ws://localhost:8010/ws",
		Role:               "host",
		NegotiationTimeout: 6 * time.Second,
		StabilityWindow:    5 * time.Second,
		Reconnect: Reconnect{
			Base:        time.Second,
			Cap:         30 * time.Second,
			Jitter:      time.Second,
			MaxAttempts: 10,
		},
	}
}

func (c *ClientConfig) ParseFlags() {
	pflag.StringVar(&c.Client.SignalingURL, "signaling", c.Client.SignalingURL, "signaling websocket URL")
	pflag.StringVar(&c.Client.RelayURL, "relay", c.Client.RelayURL, "relay websocket URL")
	pflag.StringVar(&c.Client.Room, "room", c.Client.Room, "room code to join (guest only)")
	pflag.StringVar(&c.Client.Role, "role", c.Client.Role, "peer role: host or guest")
	pflag.BoolVarP(&c.Client.Debug, "verbose", "v", c.Client.Debug, "debug logging")
	pflag.Parse()
}
