// Package config handles TOML configuration parsing and validation for the
// server and its reference lease handler.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration file.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Conflict ConflictConfig `toml:"conflict_detection"`
	DDNS     DDNSConfig     `toml:"ddns"`
	RADIUS   RADIUSConfig   `toml:"radius"`
	StatsWeb StatsWebConfig `toml:"statsweb"`
	Subnets  []SubnetConfig `toml:"subnet"`
}

// ServerConfig holds core server bind settings.
type ServerConfig struct {
	Interface   string `toml:"interface"`
	BindAddress string `toml:"bind_address"`
	ServerID    string `toml:"server_id"`
	LogLevel    string `toml:"log_level"`
	LeaseDB     string `toml:"lease_db"`
}

// ConflictConfig controls the pre-ACK ICMP echo probe.
type ConflictConfig struct {
	Enabled      bool   `toml:"enabled"`
	ProbeTimeout string `toml:"probe_timeout"`
}

// DDNSConfig controls RFC 2136 dynamic DNS registration on ACK.
type DDNSConfig struct {
	Enabled       bool   `toml:"enabled"`
	Server        string `toml:"server"`
	Zone          string `toml:"zone"`
	ReverseZone   string `toml:"reverse_zone"`
	TTL           uint32 `toml:"ttl"`
	TSIGName      string `toml:"tsig_name"`
	TSIGAlgorithm string `toml:"tsig_algorithm"`
	TSIGSecret    string `toml:"tsig_secret"`
	Timeout       string `toml:"timeout"`
}

// RADIUSConfig controls the optional MAC-authorization gate checked before a
// lease is offered.
type RADIUSConfig struct {
	Enabled bool   `toml:"enabled"`
	Server  string `toml:"server"`
	Secret  string `toml:"secret"`
	Timeout string `toml:"timeout"`
}

// StatsWebConfig controls the HTTP stats/metrics surface.
type StatsWebConfig struct {
	Enabled      bool   `toml:"enabled"`
	Listen       string `toml:"listen"`
	Username     string `toml:"username"`
	PasswordHash string `toml:"password_hash"`
}

// SubnetConfig holds a subnet the reference lease manager can allocate from.
type SubnetConfig struct {
	Network    string     `toml:"network"`
	Routers    []string   `toml:"routers"`
	DNSServers []string   `toml:"dns_servers"`
	LeaseTime  string     `toml:"lease_time"`
	Pool       PoolConfig `toml:"pool"`
}

// PoolConfig is the allocatable address range within a subnet.
type PoolConfig struct {
	RangeStart string `toml:"range_start"`
	RangeEnd   string `toml:"range_end"`
}

// Load reads and parses a TOML config file, applies defaults, and validates
// the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.BindAddress == "" {
		cfg.Server.BindAddress = "0.0.0.0:67"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	if cfg.Server.LeaseDB == "" {
		cfg.Server.LeaseDB = "leases.db"
	}
	if cfg.Conflict.ProbeTimeout == "" {
		cfg.Conflict.ProbeTimeout = "500ms"
	}
	if cfg.DDNS.TTL == 0 {
		cfg.DDNS.TTL = 3600
	}
	if cfg.DDNS.TSIGAlgorithm == "" {
		cfg.DDNS.TSIGAlgorithm = "hmac-sha256"
	}
	if cfg.DDNS.Timeout == "" {
		cfg.DDNS.Timeout = "10s"
	}
	if cfg.RADIUS.Timeout == "" {
		cfg.RADIUS.Timeout = "3s"
	}
	if cfg.StatsWeb.Listen == "" {
		cfg.StatsWeb.Listen = "127.0.0.1:8067"
	}
	for i := range cfg.Subnets {
		if cfg.Subnets[i].LeaseTime == "" {
			cfg.Subnets[i].LeaseTime = "12h"
		}
	}
}

func validate(cfg *Config) error {
	if cfg.Server.ServerID == "" {
		return fmt.Errorf("server.server_id is required")
	}
	if net.ParseIP(cfg.Server.ServerID) == nil {
		return fmt.Errorf("server.server_id %q is not a valid IPv4 address", cfg.Server.ServerID)
	}

	for i, sn := range cfg.Subnets {
		if _, _, err := net.ParseCIDR(sn.Network); err != nil {
			return fmt.Errorf("subnet[%d].network %q: %w", i, sn.Network, err)
		}
		if net.ParseIP(sn.Pool.RangeStart) == nil {
			return fmt.Errorf("subnet[%d].pool.range_start %q is not a valid IP", i, sn.Pool.RangeStart)
		}
		if net.ParseIP(sn.Pool.RangeEnd) == nil {
			return fmt.Errorf("subnet[%d].pool.range_end %q is not a valid IP", i, sn.Pool.RangeEnd)
		}
		if _, err := ParseDuration(sn.LeaseTime); err != nil {
			return fmt.Errorf("subnet[%d].lease_time: %w", i, err)
		}
	}

	if cfg.DDNS.Enabled && cfg.DDNS.Server == "" {
		return fmt.Errorf("ddns.server is required when ddns.enabled is true")
	}
	if cfg.RADIUS.Enabled && cfg.RADIUS.Server == "" {
		return fmt.Errorf("radius.server is required when radius.enabled is true")
	}
	if cfg.StatsWeb.Enabled && (cfg.StatsWeb.Username == "" || cfg.StatsWeb.PasswordHash == "") {
		return fmt.Errorf("statsweb.username and statsweb.password_hash are required when statsweb.enabled is true")
	}

	return nil
}

// ParseDuration parses a Go duration string, returning a descriptive error
// on failure.
func ParseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}
