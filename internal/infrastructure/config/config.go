package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// VenueConfig 单个交易所配置
type VenueConfig struct {
	Enabled   bool   `toml:"enabled"`
	WsURL     string `toml:"ws_url"`
	RestURL   string `toml:"rest_url"`
	APIKey    string `toml:"api_key"`
	APISecret string `toml:"api_secret"`
}

type Config struct {
	App struct {
		SnapshotEveryMin int    `toml:"snapshot_every_min"`
		LogLevel         string `toml:"log_level"`
	} `toml:"app"`

	Symbols struct {
		List []string `toml:"list"`
	} `toml:"symbols"`

	Venue map[string]VenueConfig `toml:"venue"`

	SQLite struct {
		Enabled bool   `toml:"enabled"`
		Path    string `toml:"path"`
	} `toml:"sqlite"`

	Postgres struct {
		Enabled bool   `toml:"enabled"`
		DSN     string `toml:"dsn"`
	} `toml:"postgres"`

	Redis struct {
		Enabled     bool   `toml:"enabled"`
		Addr        string `toml:"addr"`
		Password    string `toml:"password"`
		DB          int    `toml:"db"`
		Prefix      string `toml:"prefix"`
		TTLSeconds  int    `toml:"ttl_seconds"`
		EventStream string `toml:"event_stream"`
	} `toml:"redis"`
}

func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.SnapshotEveryMin <= 0 {
		cfg.App.SnapshotEveryMin = 5
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.SQLite.Enabled && cfg.SQLite.Path == "" {
		cfg.SQLite.Path = "uniperp.db"
	}
	if cfg.Redis.Enabled {
		if cfg.Redis.Addr == "" {
			cfg.Redis.Addr = "localhost:6379"
		}
		if cfg.Redis.Prefix == "" {
			cfg.Redis.Prefix = "uniperp"
		}
		if cfg.Redis.TTLSeconds <= 0 {
			cfg.Redis.TTLSeconds = 300
		}
		if cfg.Redis.EventStream == "" {
			cfg.Redis.EventStream = "uniperp:events"
		}
	}
}

func validate(cfg *Config) error {
	cfg.Symbols.List = normalizeSymbols(cfg.Symbols.List)
	if len(cfg.Symbols.List) == 0 {
		return errors.New("symbols.list is empty")
	}

	enabled := 0
	for name, vc := range cfg.Venue {
		if !vc.Enabled {
			continue
		}
		enabled++
		if strings.TrimSpace(vc.WsURL) == "" {
			return fmt.Errorf("venue.%s.ws_url empty but enabled", name)
		}
	}
	if enabled == 0 {
		return errors.New("no venue enabled")
	}

	if cfg.Postgres.Enabled && strings.TrimSpace(cfg.Postgres.DSN) == "" {
		return errors.New("postgres.dsn empty but enabled")
	}
	return nil
}

// GetEnabledVenues returns enabled venue names in stable order.
func (cfg *Config) GetEnabledVenues() []string {
	out := make([]string, 0, len(cfg.Venue))
	for name, vc := range cfg.Venue {
		if vc.Enabled {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func normalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, s := range in {
		u := strings.ToUpper(strings.TrimSpace(s))
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
