package config

import (
	"io/ioutil"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DefaultActivationRadius is R_activate from spec.md §4.C: the distance
// within which an unrealised island blueprint is voxelised.
const DefaultActivationRadius = 500

// Config корневая структура конфигурации сервера мира.

type Config struct {
	EventBus EventBusConfig `yaml:"eventbus"`
	World    WorldConfig    `yaml:"world"`
	Server   ServerConfig   `yaml:"server"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
}

// WorldConfig tunes the simulation: tick rate, mesh worker pool size, and
// island activation radius.
type WorldConfig struct {
	TickRateHz        int     `yaml:"tick_rate_hz"`
	MeshThreads       int     `yaml:"mesh_threads"` // 0 = auto-size via gopsutil
	ActivationRadius  float64 `yaml:"activation_radius"`
	ConnectivityBudget int    `yaml:"connectivity_budget"`
	Seed              int64   `yaml:"seed"`
}

// GetTickRateHz returns the configured tick rate, falling back to env then
// the canonical fixed-step default.
func (w *WorldConfig) GetTickRateHz() int {
	return getIntWithEnvFallback(w.TickRateHz, "WORLD_TICK_RATE_HZ", 60)
}

// GetMeshThreads returns the configured worker count, falling back to the
// MESH_THREADS env var, with 0 meaning "auto-size" (mesh.WorkerCount()).
func (w *WorldConfig) GetMeshThreads() int {
	return getIntWithEnvFallback(w.MeshThreads, "MESH_THREADS", 0)
}

// GetActivationRadius returns the configured island-activation radius,
// falling back to the WORLD_ACTIVATION_RADIUS env var, then
// DefaultActivationRadius (spec.md §4.C's R_activate default of 500).
func (w *WorldConfig) GetActivationRadius() float64 {
	return getFloatWithEnvFallback(w.ActivationRadius, "WORLD_ACTIVATION_RADIUS", DefaultActivationRadius)
}

type ServerConfig struct {
	ListenAddr  string `yaml:"listen_addr"`
	EnableNet   bool   `yaml:"enable_net"`
	TCPPort     int    `yaml:"tcp_port"`
	UDPPort     int    `yaml:"udp_port"`
	RESTPort    int    `yaml:"rest_port"`
	MetricsPort int    `yaml:"metrics_port"`
}

// GetTCPPort возвращает TCP порт с поддержкой fallback значений
func (s *ServerConfig) GetTCPPort() int {
	return getPortWithEnvFallback(s.TCPPort, "GAME_TCP_PORT", 7777)
}

// GetUDPPort возвращает UDP порт с поддержкой fallback значений
func (s *ServerConfig) GetUDPPort() int {
	return getPortWithEnvFallback(s.UDPPort, "GAME_UDP_PORT", 7778)
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "GAME_REST_PORT", 8088)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "GAME_METRICS_PORT", 2112)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	return getIntWithEnvFallback(configPort, envVar, defaultPort)
}

// getIntWithEnvFallback возвращает целое значение с приоритетом: config -> env -> default
func getIntWithEnvFallback(configVal int, envVar string, defaultVal int) int {
	if configVal > 0 {
		return configVal
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		if v, err := strconv.Atoi(envVal); err == nil && v > 0 {
			return v
		}
	}
	return defaultVal
}

// getFloatWithEnvFallback возвращает вещественное значение с приоритетом: config -> env -> default
func getFloatWithEnvFallback(configVal float64, envVar string, defaultVal float64) float64 {
	if configVal > 0 {
		return configVal
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		if v, err := strconv.ParseFloat(envVal, 64); err == nil && v > 0 {
			return v
		}
	}
	return defaultVal
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV GAME_CONFIG или возвращает nil, nil.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("GAME_CONFIG")
		if path == "" {
			return nil, nil // конфиг не задан — использовать дефолты
		}
	}

	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
