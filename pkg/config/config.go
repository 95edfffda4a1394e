package config

import (
	"os"

	"github.com/kkyr/fig"
)

const EnvPrefix = "DUELNET"

// LoadConfig loads a configuration file into the given struct.
// The path param specifies a custom path to the configuration file.
// Reads and puts environment variables with the prefix DUELNET_.
// Params from the config should be in uppercase separated with _.
func LoadConfig(config any, path string) error {
	dirs := []string{path}
	if path == "" {
		dirs = append(dirs, ".", "configs", "../../../configs")
		if home, err := os.UserHomeDir(); err == nil {
			dirs = append(dirs, home+"/.duelnet")
		}
	}
	return fig.Load(config, fig.Dirs(dirs...), fig.UseEnv(EnvPrefix))
}

func LoadConfigEnv(config any) error {
	return fig.Load(config, fig.IgnoreFile(), fig.UseEnv(EnvPrefix))
}

// load applies the file and env configuration over the defaults in conf.
// A missing config file is fine, the defaults are already in place.
func load(conf any) {
	if err := LoadConfig(conf, ""); err != nil {
		_ = LoadConfigEnv(conf)
	}
}
