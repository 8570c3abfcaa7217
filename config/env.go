package config

import (
	"os"
	"strconv"
	"time"
)

// Env returns the value of the environment variable or the default when unset.
func Env(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// EnvInt parses the environment variable as an integer, falling back to the
// default on absence or parse failure.
func EnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// EnvFloat parses the environment variable as a float64, falling back to the
// default on absence or parse failure.
func EnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// EnvBool parses the environment variable as a boolean, falling back to the
// default on absence or parse failure.
func EnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// EnvDuration parses the environment variable as a time.Duration, falling
// back to the default on absence or parse failure.
func EnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
