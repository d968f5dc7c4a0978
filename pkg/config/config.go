package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	Proxy   string `json:"proxy,omitempty"`
}

type DingTalkConfig struct {
	Enabled   bool   `json:"enabled"`
	ClientID  string `json:"clientId"`
	AppSecret string `json:"appSecret"`
	RobotCode string `json:"robotCode"`
}

type FeishuConfig struct {
	Enabled   bool   `json:"enabled"`
	AppID     string `json:"appId"`
	AppSecret string `json:"appSecret"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	DingTalk DingTalkConfig `json:"dingtalk"`
	Feishu   FeishuConfig   `json:"feishu"`
}

type SchedulerConfig struct {
	TickSeconds        int `json:"tickSeconds"`
	DeliverTimeoutSecs int `json:"deliverTimeoutSecs"`
}

type AutofixConfig struct {
	LowRiskConfidenceThreshold float64 `json:"lowRiskConfidenceThreshold"`
}

type SloConfig struct {
	PolicyPath string `json:"policyPath"`
}

type Config struct {
	Workspace string          `json:"workspace"`
	Channels  ChannelsConfig  `json:"channels"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Autofix   AutofixConfig   `json:"autofix"`
	Slo       SloConfig       `json:"slo"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Workspace: ".orbiter/workspace",
		Scheduler: SchedulerConfig{
			TickSeconds:        30,
			DeliverTimeoutSecs: 30,
		},
		Autofix: AutofixConfig{
			LowRiskConfidenceThreshold: 0.9,
		},
	}
}

// LoadConfig loads the configuration from the given path. A missing
// file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = filepath.Join(".orbiter", "config.json")
	}

	config := DefaultConfig()

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, err
	}

	return config, nil
}
