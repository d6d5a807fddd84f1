// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	"github.com/moov-io/base"
	"github.com/moov-io/base/http/bind"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/spf13/viper"
)

type Config struct {
	Logger  log.Logger `yaml:"-" json:"-"`
	Logging Logging

	Http  HTTP
	Admin Admin

	Database Database

	Provider Provider
	Backend  Backend
	Linking  Linking

	Secrets       Secrets
	Events        *Events
	Notifications *Notifications
	Tracing       *Tracing
}

type Logging struct {
	Format string
	Level  string
}

type HTTP struct {
	BindAddress string
}

type Admin struct {
	BindAddress           string
	DisableConfigEndpoint bool
}

func Empty() *Config {
	return &Config{
		Logger: log.NewNopLogger(),
		Admin: Admin{
			BindAddress: bind.Admin("banklink"),
		},
		Http: HTTP{
			BindAddress: bind.HTTP("banklink"),
		},
		Database: Database{
			// Set the default path inside this path if no other database is defined.
			SQLite: &SQLite{
				Path: "banklink.db",
			},
		},
		Provider: Provider{
			Timeout: DefaultProviderTimeout,
		},
		Backend: Backend{
			Timeout: DefaultBackendTimeout,
		},
		Linking: Linking{
			PollInterval: DefaultPollInterval,
			PollTimeout:  DefaultPollTimeout,
			Retention:    DefaultRetention,
			CleanupSpec:  DefaultCleanupSpec,
		},
	}
}

func FromFile(path string) (*Config, error) {
	if path != "" {
		bs, err := ioutil.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %v", path, err)
		}
		return Read(bs)
	}
	cfg := Empty()
	overrideWithEnvVars(cfg)
	cfg = setupLogger(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Read(data []byte) (*Config, error) {
	vip := viper.New()
	vip.SetConfigType("yaml")
	if err := vip.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("problem reading config: %v", err)
	}

	cfg := Empty()
	if err := vip.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("problem unmarshaling config: %v", err)
	}

	overrideWithEnvVars(cfg)
	cfg = setupLogger(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogger(cfg *Config) *Config {
	var logger log.Logger
	if strings.EqualFold(cfg.Logging.Format, "json") {
		logger = log.NewJSONLogger(os.Stderr)
	} else {
		logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	}
	logger = level.NewFilter(logger, levelOption(cfg.Logging.Level))
	cfg.Logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
	return cfg
}

// levelOption filters log lines tagged with go-kit's level package.
// Lines without a level are always written.
func levelOption(name string) level.Option {
	switch strings.ToLower(name) {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	}
	return level.AllowInfo()
}

func override(env string, field *string) {
	if v := os.Getenv(env); v != "" {
		*field = v
	}
}

// overrideWithEnvVars lets secrets stay out of config files
func overrideWithEnvVars(cfg *Config) {
	override("LOG_FORMAT", &cfg.Logging.Format)
	override("HTTP_BIND_ADDRESS", &cfg.Http.BindAddress)
	override("HTTP_ADMIN_BIND_ADDRESS", &cfg.Admin.BindAddress)
	override("PROVIDER_CLIENT_SECRET", &cfg.Provider.ClientSecret)
	override("SECRETS_LOCAL_BASE64_KEY", &cfg.Secrets.LocalBase64Key)
	if cfg.Database.MySQL != nil {
		cfg.Database.MySQL.Password = cfg.Database.MySQL.GetPassword()
	}
}

// Validate checks every section and reports all problems at once.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return errors.New("missing Config")
	}
	sections := []struct {
		name string
		v    interface{ Validate() error }
	}{
		{"database", cfg.Database},
		{"provider", cfg.Provider},
		{"backend", cfg.Backend},
		{"linking", cfg.Linking},
		{"secrets", cfg.Secrets},
		{"events", cfg.Events},
		{"notifications", cfg.Notifications},
		{"tracing", cfg.Tracing},
	}
	var el base.ErrorList
	for _, section := range sections {
		if err := section.v.Validate(); err != nil {
			el.Add(fmt.Errorf("%s: %v", section.name, err))
		}
	}
	if el.Empty() {
		return nil
	}
	return el
}
