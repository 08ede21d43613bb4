package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// fileConfig mirrors the optional TOML configuration file.
//
//	[budget]
//	daily = 10.0
//	monthly = 200.0
//
//	[snapshot]
//	interval = "5m"
//	enabled = true
type fileConfig struct {
	Server struct {
		Host      string `toml:"host"`
		Port      int    `toml:"port"`
		ClientDir string `toml:"client_dir"`
	} `toml:"server"`
	Sessions struct {
		Path         string `toml:"path"`
		DailyFolding *bool  `toml:"daily_folding"`
		Timeout      string `toml:"timeout"`
	} `toml:"sessions"`
	Gateway struct {
		URL   string `toml:"url"`
		Token string `toml:"token"`
	} `toml:"gateway"`
	Budget struct {
		Daily   *float64 `toml:"daily"`
		Monthly *float64 `toml:"monthly"`
	} `toml:"budget"`
	Snapshot struct {
		Interval string `toml:"interval"`
		Enabled  *bool  `toml:"enabled"`
	} `toml:"snapshot"`
	Database struct {
		Path string `toml:"path"`
	} `toml:"database"`
}

// loadFile decodes the TOML file at path. A missing file is not an error.
func loadFile(path string) (*fileConfig, error) {
	fc := &fileConfig{}
	if path == "" {
		return fc, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fc, nil
	}
	if _, err := toml.DecodeFile(path, fc); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	return fc, nil
}

// apply copies every value set in the file onto cfg.
func (fc *fileConfig) apply(cfg *Config) {
	if fc.Server.Host != "" {
		cfg.Host = fc.Server.Host
	}
	if fc.Server.Port != 0 {
		cfg.Port = fc.Server.Port
	}
	if fc.Server.ClientDir != "" {
		cfg.ClientDir = fc.Server.ClientDir
	}
	if fc.Sessions.Path != "" {
		cfg.SessionsPath = fc.Sessions.Path
	}
	if fc.Sessions.DailyFolding != nil {
		cfg.DailyFolding = *fc.Sessions.DailyFolding
	}
	if d, err := time.ParseDuration(fc.Sessions.Timeout); err == nil {
		cfg.SourceTimeout = d
	}
	if fc.Gateway.URL != "" {
		cfg.GatewayURL = fc.Gateway.URL
	}
	if fc.Gateway.Token != "" {
		cfg.GatewayToken = fc.Gateway.Token
	}
	if fc.Budget.Daily != nil {
		cfg.DailyBudget = *fc.Budget.Daily
	}
	if fc.Budget.Monthly != nil {
		cfg.MonthlyBudget = *fc.Budget.Monthly
	}
	if d, err := time.ParseDuration(fc.Snapshot.Interval); err == nil {
		cfg.SnapshotInterval = d
	}
	if fc.Snapshot.Enabled != nil {
		cfg.SnapshotEnabled = *fc.Snapshot.Enabled
	}
	if fc.Database.Path != "" {
		cfg.DatabasePath = fc.Database.Path
	}
}
