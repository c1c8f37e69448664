package binance

import (
	"strings"
	"time"

	"trendpilot/internal/config"
)

const (
	defaultRESTBaseURL = "https://fapi.binance.com"
	defaultTestnetURL  = "https://testnet.binancefuture.com"
)

type Config struct {
	APIKey      string
	SecretKey   string
	RESTBaseURL string
	Testnet     bool
	HTTPTimeout time.Duration
	// RequestsPerSecond <= 0 时不限速。
	RequestsPerSecond float64
}

// ConfigFrom 从 exchange 段构造适配器配置。
func ConfigFrom(ex config.ExchangeConfig) Config {
	return Config{
		APIKey:            ex.APIKey,
		SecretKey:         ex.SecretKey,
		RESTBaseURL:       ex.RESTBaseURL,
		Testnet:           ex.Testnet,
		HTTPTimeout:       time.Duration(ex.HTTPTimeoutSeconds) * time.Second,
		RequestsPerSecond: ex.RequestsPerSecond,
	}
}

func (c *Config) withDefaults() Config {
	out := *c
	out.APIKey = strings.TrimSpace(out.APIKey)
	out.SecretKey = strings.TrimSpace(out.SecretKey)
	out.RESTBaseURL = strings.TrimRight(strings.TrimSpace(out.RESTBaseURL), "/")
	if out.RESTBaseURL == "" || (out.Testnet && out.RESTBaseURL == defaultRESTBaseURL) {
		out.RESTBaseURL = defaultRESTBaseURL
		if out.Testnet {
			out.RESTBaseURL = defaultTestnetURL
		}
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	return out
}
