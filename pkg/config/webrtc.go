package config

type IceServer struct {
	Urls       string `json:"urls,omitempty"`
	Username   string `json:"username,omitempty"`
	Credential string `json:"credential,omitempty"`
}

type Webrtc struct {
	IceServers []IceServer
	LogLevel   int
}
