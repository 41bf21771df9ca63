// Package config loads the controller's environment-variable surface once
// at startup. There is no dynamic reload: the running process's
// configuration is immutable for its lifetime, matching the label-as-
// database discipline the rest of the controller follows.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every environment-controlled setting of the controller.
type Config struct {
	SocketPath        string
	DockerHost        string
	AllowedMountBase  string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	DefaultMemLimit   string
	DefaultCPUQuota   int64
	LogLevel          string
}

// Load reads Config from the process environment, falling back to
// reasonable single-host defaults when a variable is unset.
func Load() *Config {
	return &Config{
		SocketPath:        getEnvString("SOCKET_PATH", "/var/run/transctrl/transctrl.sock"),
		DockerHost:        getEnvString("DOCKER_HOST", "unix:///var/run/docker.sock"),
		AllowedMountBase:  getEnvString("ALLOWED_MOUNT_BASE", "/mnt"),
		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 10),
		RateLimitWindow:   time.Duration(getEnvInt("RATE_LIMIT_WINDOW", 60)) * time.Second,
		DefaultMemLimit:   getEnvString("DEFAULT_MEM_LIMIT", "512m"),
		DefaultCPUQuota:   getEnvInt64("DEFAULT_CPU_QUOTA", 50000),
		LogLevel:          getEnvString("LOG_LEVEL", "info"),
	}
}

func getEnvString(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvInt64(key string, defaultValue int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultValue
	}
	return n
}
