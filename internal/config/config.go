// Package config reads engine construction parameters from the
// environment. Engine parameters
// (sample rate, worker count, thresholds) are otherwise passed explicitly
// on construction — never as package-level globals.
package config

import (
	"os"
	"strconv"
)

// Engine carries the environment-derived defaults the CLI falls back to
// when a flag is not set.
type Engine struct {
	DBPath           string
	SampleRate       int
	Workers          int
	LogLevel         string
	LogFile          string
	RedisHost        string
	RedisPort        string
	RedisPass        string
	S3Bucket         string
	S3Region         string
	S3BaseURL        string
	MonitorAddr      string
	OTLPEndpoint     string
	TraceSampleRatio float64
}

// FromEnv reads engine defaults from the environment. It does not load
// .env itself; cmd/cli/main.go does that via godotenv before calling it.
func FromEnv() Engine {
	return Engine{
		DBPath:           getEnvOrDefault("MIXID_DB_PATH", "mixid.db"),
		SampleRate:       getEnvInt("MIXID_SAMPLE_RATE", 22050),
		Workers:          getEnvInt("MIXID_WORKERS", 0),
		LogLevel:         getEnvOrDefault("MIXID_LOG_LEVEL", "info"),
		LogFile:          getEnvOrDefault("MIXID_LOG_FILE", "mixid.log"),
		RedisHost:        os.Getenv("REDIS_HOST"),
		RedisPort:        getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPass:        os.Getenv("REDIS_PASSWORD"),
		S3Bucket:         os.Getenv("MIXID_S3_BUCKET"),
		S3Region:         getEnvOrDefault("MIXID_S3_REGION", "us-east-1"),
		S3BaseURL:        os.Getenv("MIXID_S3_BASE_URL"),
		MonitorAddr:      os.Getenv("MIXID_MONITOR_ADDR"),
		OTLPEndpoint:     os.Getenv("MIXID_OTLP_ENDPOINT"),
		TraceSampleRatio: getEnvFloat("MIXID_TRACE_SAMPLE", 1.0),
	}
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
