package observability

import (
	"strings"
	"time"

	"github.com/smallbiznis/boxoffice/internal/config"
)

// Config is the normalized observability view of the application config.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64

	SlowQueryThreshold time.Duration
}

func LoadConfig(cfg config.Config) Config {
	obs := cfg.Observability

	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "boxoffice"
	}

	level := strings.ToLower(strings.TrimSpace(obs.LogLevel))
	switch level {
	case "debug", "info", "warn", "error":
	default:
		level = "info"
	}

	format := "json"
	if strings.EqualFold(strings.TrimSpace(obs.LogFormat), "console") {
		format = "console"
	}

	protocol := "grpc"
	if p := strings.ToLower(strings.TrimSpace(obs.OtelProtocol)); p == "http" || p == "http/protobuf" {
		protocol = "http"
	}

	ratio := obs.SamplingRatio
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}

	slow := obs.SlowQueryThreshold
	if slow < 0 {
		slow = 0
	}

	return Config{
		ServiceName:          serviceName,
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             level,
		LogFormat:            format,
		OtelEnabled:          obs.OtelEnabled,
		OtelExporterEndpoint: strings.TrimSpace(cfg.OTLPEndpoint),
		OtelExporterProtocol: protocol,
		OtelSamplingRatio:    ratio,
		SlowQueryThreshold:   slow,
	}
}

// Debug is true for debug logging or any non-production environment name
// used locally.
func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}
