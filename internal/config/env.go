package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables that override values from the configuration file.
const (
	EnvConfigDir     = "GITWATCH_CONFIG_DIR"
	EnvCommitDelay   = "GITWATCH_COMMIT_DELAY"
	EnvFetchInterval = "GITWATCH_FETCH_INTERVAL"
	EnvAutoPush      = "GITWATCH_AUTO_PUSH"
	EnvNotifications = "GITWATCH_NOTIFICATIONS"
)

// LoadFromEnvironment updates the configuration from GITWATCH_* variables.
// Unparsable values are ignored.
func (c *WatchConfig) LoadFromEnvironment() {
	c.CommitDelay = getEnvSeconds(EnvCommitDelay, c.CommitDelay)
	c.FetchInterval = getEnvSeconds(EnvFetchInterval, c.FetchInterval)
	c.AutoPush = getEnvBool(EnvAutoPush, c.AutoPush)
	c.EnableNotifications = getEnvBool(EnvNotifications, c.EnableNotifications)
}

// getEnvSeconds returns an environment variable holding seconds as a duration or a default value
func getEnvSeconds(key string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
			return time.Duration(value * float64(time.Second))
		}
	}
	return defaultValue
}

// getEnvBool returns an environment variable as bool or a default value
func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		valueLower := strings.ToLower(valueStr)
		if valueLower == "true" || valueLower == "1" || valueLower == "yes" {
			return true
		}
		if valueLower == "false" || valueLower == "0" || valueLower == "no" {
			return false
		}
		// For any other value, fall back to default
	}
	return defaultValue
}
