package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// blive config.toml key mapping.
type fileConfig struct {
	AccessKeyID     string `toml:"access_key_id"`
	AccessKeySecret string `toml:"access_key_secret"`
	AppID           int64  `toml:"app_id"`
	Code            string `toml:"code"`
	APIBaseURL      string `toml:"api_base_url"`
}

func loadConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return fileConfig{}, fmt.Errorf("load config: %w", err)
	}
	cfg.AccessKeyID = strings.TrimSpace(cfg.AccessKeyID)
	cfg.AccessKeySecret = strings.TrimSpace(cfg.AccessKeySecret)
	cfg.Code = strings.TrimSpace(cfg.Code)
	if cfg.AccessKeyID == "" || cfg.AccessKeySecret == "" {
		return fileConfig{}, fmt.Errorf("config %s: access_key_id and access_key_secret are required", path)
	}
	if cfg.AppID == 0 {
		return fileConfig{}, fmt.Errorf("config %s: app_id is required", path)
	}
	return cfg, nil
}
