// Package config loads process-wide settings that are not part of a
// target descriptor: network timeouts and external tool overrides.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/keanucz/ffbins/internal/target"
	"github.com/keanucz/ffbins/internal/version"
)

// Settings are read from an optional YAML file and the environment.
// Environment variables take precedence over the file.
type Settings struct {
	HTTPTimeout time.Duration `yaml:"http_timeout" env:"FFBINS_HTTP_TIMEOUT" env-default:"10m"`
	UserAgent   string        `yaml:"user_agent" env:"FFBINS_USER_AGENT"`
	DpkgDeb     string        `yaml:"dpkg_deb" env:"FFBINS_DPKG_DEB"`
	SevenZip    string        `yaml:"sevenzip" env:"FFBINS_7Z"`
}

// Load reads settings from path (if non-empty) and the environment.
func Load(path string) (Settings, error) {
	var s Settings

	if path != "" {
		expanded, err := target.ExpandPath(path)
		if err != nil {
			return Settings{}, err
		}
		if err := cleanenv.ReadConfig(expanded, &s); err != nil {
			return Settings{}, fmt.Errorf("load settings from %s: %w", expanded, err)
		}
	} else if err := cleanenv.ReadEnv(&s); err != nil {
		return Settings{}, fmt.Errorf("load settings from environment: %w", err)
	}

	if s.UserAgent == "" {
		s.UserAgent = version.UserAgent()
	}
	if s.HTTPTimeout <= 0 {
		return Settings{}, fmt.Errorf("http timeout must be positive, got %s", s.HTTPTimeout)
	}
	return s, nil
}
