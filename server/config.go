package server

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config represents an agent config
type Config struct {
	ListenAddr    string     `yaml:"listen"`
	TLSListenAddr string     `yaml:"tlsListen"`
	TLSOnly       bool       `yaml:"tlsOnly"`
	TLS           *TLSConfig `yaml:"tls"`
	Verbose       bool       `yaml:"verbose"`

	// Origin is the upstream base URL every intercepted request resolves
	// against
	Origin string `yaml:"origin"`
	// Version tags the cache generation, bump it to roll out a new one
	Version string `yaml:"version"`
	// Manifest lists the assets the static bucket must hold at install
	Manifest []string `yaml:"manifest"`
	// APIPrefixes are the ordered path prefixes classified as API traffic
	APIPrefixes []string `yaml:"apiPrefixes"`

	Push PushConfig `yaml:"push"`
}

// TLSConfig represents a TLS configuration
type TLSConfig struct {
	KeyFile  string `yaml:"key"`
	CertFile string `yaml:"cert"`
}

// PushConfig holds the push subscription store path and backend endpoints
type PushConfig struct {
	StorePath      string `yaml:"store"`
	SubscribeURL   string `yaml:"subscribeURL"`
	UnsubscribeURL string `yaml:"unsubscribeURL"`
	PublicKeyURL   string `yaml:"publicKeyURL"`
}

// LoadConfig reads and validates an agent config file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	c := &Config{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}
	if err := c.validate(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Config) validate() error {
	if c.Origin == "" {
		return errors.New("no origin provided")
	}
	if c.Version == "" {
		return errors.New("no cache version provided")
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if len(c.Manifest) == 0 {
		c.Manifest = []string{"/"}
	}
	if c.Push.StorePath == "" {
		c.Push.StorePath = "./data/push.db"
	}
	if c.TLS == nil {
		c.TLS = &TLSConfig{}
	}

	return nil
}
