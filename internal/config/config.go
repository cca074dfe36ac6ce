// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds all application configuration values.
type Config struct {
	// Application
	AppEnv   string // "dev" or "prod"
	LogLevel slog.Level

	// Device
	DeviceHost     string // host[:port] serving the leveler page
	DeviceWSPath   string
	PollInterval   time.Duration
	ReconnectDelay time.Duration

	// Rendering
	RollImage   string // optional; built-in outline when empty
	PitchImage  string
	SurfaceSize int // pixels, square

	// View server
	ViewServerPort int

	// MQTT (optional)
	MQTTBroker   string
	MQTTClientID string
	TopicTilt    string

	// Mock device
	MockDeviceAddr string
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig is only reachable through InitGlobal and Get.
//   - configOnce makes InitGlobal run once.
//   - configMu guards globalConfig.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a Config with every optional value filled in.
func Default() *Config {
	return &Config{
		AppEnv:         "dev",
		LogLevel:       slog.LevelInfo,
		DeviceWSPath:   "/ws",
		PollInterval:   300 * time.Millisecond,
		ReconnectDelay: 2000 * time.Millisecond,
		SurfaceSize:    512,
		ViewServerPort: 8080,
		MQTTClientID:   "leveler",
		TopicTilt:      "leveler/tilt",
		MockDeviceAddr: ":8081",
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads KEY=VALUE lines. Blank lines and lines starting with # are skipped.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// Application
	case "APP_ENV":
		switch value {
		case "dev", "prod":
			c.AppEnv = value
		default:
			return fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", value)
		}
	case "LOG_LEVEL":
		level, err := parseLogLevel(value)
		if err != nil {
			return err
		}
		c.LogLevel = level

	// Device
	case "DEVICE_HOST":
		c.DeviceHost = value
	case "DEVICE_WS_PATH":
		c.DeviceWSPath = value
	case "POLL_INTERVAL":
		d, err := parseMillis(key, value)
		if err != nil {
			return err
		}
		c.PollInterval = d
	case "RECONNECT_DELAY":
		d, err := parseMillis(key, value)
		if err != nil {
			return err
		}
		c.ReconnectDelay = d

	// Rendering
	case "ROLL_IMAGE":
		c.RollImage = value
	case "PITCH_IMAGE":
		c.PitchImage = value
	case "SURFACE_SIZE":
		size, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SURFACE_SIZE %q: %w", value, err)
		}
		if size < 64 || size > 4096 {
			return fmt.Errorf("SURFACE_SIZE must be 64-4096, got %d", size)
		}
		c.SurfaceSize = size

	// View server
	case "VIEW_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid VIEW_SERVER_PORT %q: %w", value, err)
		}
		if port < 0 || port > 65535 {
			return fmt.Errorf("VIEW_SERVER_PORT must be 0-65535, got %d", port)
		}
		c.ViewServerPort = port

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "TOPIC_TILT":
		c.TopicTilt = value

	// Mock device
	case "MOCK_DEVICE_ADDR":
		c.MockDeviceAddr = value

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.DeviceHost == "" {
		return fmt.Errorf("DEVICE_HOST is required")
	}
	if c.MQTTBroker != "" && c.TopicTilt == "" {
		return fmt.Errorf("TOPIC_TILT is required when MQTT_BROKER is set")
	}
	return nil
}

func parseMillis(key, value string) (time.Duration, error) {
	ms, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if ms <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, ms)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

// InitGlobal initializes the global configuration from file.
// Only the first call reads the file.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
