package config

import (
	"path/filepath"
	"time"
)

type CliConfig struct {
	// ConfigFile is the rate file re-read every loop iteration.
	ConfigFile string `default:"config.json"`
	RepoPath   string `default:"."`

	// ServiceManager selects the backend for plain unit names: systemd or dryrun.
	ServiceManager string        `default:"systemd"`
	ServiceDelay   time.Duration `default:"2s"`

	MqttListen    string
	MqttTopic     string `default:"ratecontroller/state"`
	MetricsListen string

	LogLevel string `default:"info"`
}

// ConfigPath resolves ConfigFile against the working directory.
func (c *CliConfig) ConfigPath() string {
	if filepath.IsAbs(c.ConfigFile) {
		return c.ConfigFile
	}
	p, err := filepath.Abs(c.ConfigFile)
	if err != nil {
		return c.ConfigFile
	}
	return p
}
