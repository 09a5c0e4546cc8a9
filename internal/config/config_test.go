package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"MIXID_DB_PATH", "MIXID_SAMPLE_RATE", "MIXID_WORKERS", "REDIS_HOST"} {
		os.Unsetenv(key)
	}

	e := FromEnv()
	assert.Equal(t, "mixid.db", e.DBPath)
	assert.Equal(t, 22050, e.SampleRate)
	assert.Equal(t, 0, e.Workers)
	assert.Equal(t, "", e.RedisHost)
	assert.Equal(t, "6379", e.RedisPort)
}

func TestFromEnvOverrides(t *testing.T) {
	os.Setenv("MIXID_DB_PATH", "/tmp/custom.db")
	os.Setenv("MIXID_SAMPLE_RATE", "44100")
	defer os.Unsetenv("MIXID_DB_PATH")
	defer os.Unsetenv("MIXID_SAMPLE_RATE")

	e := FromEnv()
	assert.Equal(t, "/tmp/custom.db", e.DBPath)
	assert.Equal(t, 44100, e.SampleRate)
}

func TestGetEnvIntIgnoresGarbage(t *testing.T) {
	os.Setenv("MIXID_WORKERS", "not-a-number")
	defer os.Unsetenv("MIXID_WORKERS")

	assert.Equal(t, 3, getEnvInt("MIXID_WORKERS", 3))
}
