package config

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/goccy/go-yaml"
	"github.com/sirupsen/logrus"
)

const (
	DefaultLocalURL  = "http://127.0.0.1:8080/v1/"
	DefaultRemoteURL = "https://fullnode.mainnet.aptoslabs.com/v1/"
	DefaultChatID    = int64(-932868843)
)

type Pagerduty struct {
	RoutingKey string `yaml:"routing_key"`
	Service    string `yaml:"service"`
}

func (p Pagerduty) Empty() bool {
	return p.RoutingKey == ""
}

type Slack struct {
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
	Token      string `yaml:"token"`
}

func (s Slack) Empty() bool {
	return len(s.WebhookURL) == 0 && len(s.Channel) == 0 && len(s.Token) == 0
}

// Config is loaded once at startup and never mutated afterwards.
type Config struct {
	LocalURL    string    `yaml:"vald_url"`
	RemoteURL   string    `yaml:"remote_url"`
	ChatID      int64     `yaml:"chat_id"`
	Verbosity   string    `yaml:"verbosity"`
	MetricsAddr string    `yaml:"metrics_addr"`
	Pagerduty   Pagerduty `yaml:"pagerduty"`
	Slack       Slack     `yaml:"slack"`

	Log logrus.Ext1FieldLogger `yaml:"-"` // Log field is not serialized, used for logging
}

// DefaultPath is where the config file lives when no -conf flag is given.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "aptmon", "config.json")
	}
	return filepath.Join(home, ".config", "aptmon", "config.json")
}

// Default returns the built-in configuration.
func Default() *Config {
	conf := &Config{
		LocalURL:  DefaultLocalURL,
		RemoteURL: DefaultRemoteURL,
		ChatID:    DefaultChatID,
	}
	conf.Log = newLogger(conf.Verbosity)
	return conf
}

// Load reads a JSON (or YAML) config file. Any read, parse or validation
// failure is returned.
func Load(file string) (*Config, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", file)
	}
	conf := &Config{}
	if err := yaml.Unmarshal(data, conf); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config file %s", file)
	}
	if err := conf.validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config file %s", file)
	}
	conf.Log = newLogger(conf.Verbosity)
	return conf, nil
}

// LoadOrDefault behaves like Load but falls back to Default when the file is
// missing or malformed. The failure is only logged.
func LoadOrDefault(file string) *Config {
	conf, err := Load(file)
	if err == nil {
		return conf
	}
	conf = Default()
	conf.Log.WithError(err).Warn("user config is missing")
	conf.Log.Info("loading default config")
	return conf
}

func (c *Config) validate() error {
	if c.LocalURL == "" {
		return errors.New("vald_url is empty")
	}
	if c.RemoteURL == "" {
		return errors.New("remote_url is empty")
	}
	if c.ChatID == 0 {
		return errors.New("chat_id is empty")
	}
	return nil
}

func newLogger(verbosity string) logrus.Ext1FieldLogger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(verbosity)
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(lvl)
	}
	return logger
}
