package config

import "github.com/spf13/pflag"

type Server struct {
	Address string
	Https   bool
	Tls     struct {
		Address   string
		Domain    string
		HttpsCert string
		HttpsKey  string
	}
}

func (s *Server) WithFlags(fs *pflag.FlagSet) {
	fs.StringVar(&s.Address, "address", s.Address, "HTTP server address (host:port)")
	fs.BoolVar(&s.Https, "https", s.Https, "use HTTPS")
	fs.StringVar(&s.Tls.Address, "httpsAddress", s.Tls.Address, "HTTPS server address")
	fs.StringVar(&s.Tls.Domain, "httpsDomain", s.Tls.Domain, "HTTPS domain for autocert")
	fs.StringVar(&s.Tls.HttpsCert, "httpsCert", s.Tls.HttpsCert, "HTTPS certificate file")
	fs.StringVar(&s.Tls.HttpsKey, "httpsKey", s.Tls.HttpsKey, "HTTPS key file")
}

func (s *Server) GetAddr() string {
	if s.Https {
		return s.Tls.Address
	}
	return s.Address
}

type Monitoring struct {
	Port             int
	URLPrefix        string
	MetricEnabled    bool
	ProfilingEnabled bool
}

func (m Monitoring) IsEnabled() bool { return m.MetricEnabled || m.ProfilingEnabled }

func (m *Monitoring) WithFlags(fs *pflag.FlagSet) {
	fs.IntVar(&m.Port, "monitoring.port", m.Port, "monitoring server port")
	fs.BoolVar(&m.MetricEnabled, "monitoring.metrics", m.MetricEnabled, "enable Prometheus metrics")
	fs.BoolVar(&m.ProfilingEnabled, "monitoring.pprof", m.ProfilingEnabled, "enable pprof endpoints")
}
