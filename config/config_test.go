// ytmp3/config/config_test.go
package config_test // Use an external test package

import (
	"testing"
	"time"

	"ytmp3/config" // Import the package we are testing

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("loads default values correctly", func(t *testing.T) {
		// Ensure no env vars are lingering from other tests
		t.Setenv("YTMP3_PORT", "")
		t.Setenv("YTMP3_BITRATE", "")
		t.Setenv("YTMP3_MAX_QUEUE_SIZE", "")
		t.Setenv("YTMP3_FF_TIMEOUT", "")
		t.Setenv("YTMP3_MAX_INPUT_SIZE", "")

		cfg, err := config.Load()
		assert.NoError(t, err)
		assert.NotNil(t, cfg)

		assert.Equal(t, "8080", cfg.Port)
		assert.Equal(t, 128, cfg.Bitrate)
		assert.Equal(t, 5, cfg.MaxQueueSize)
		assert.Equal(t, "downloads", cfg.DownloadBasePath)
		assert.Equal(t, "ffmpeg", cfg.FFBin)
		assert.Equal(t, 30*time.Minute, cfg.FFTimeout)
		assert.Equal(t, int64(500*1024*1024), cfg.MaxInputSize)
	})

	t.Run("overrides defaults with environment variables", func(t *testing.T) {
		t.Setenv("YTMP3_PORT", "9999")
		t.Setenv("YTMP3_BITRATE", "64")
		t.Setenv("YTMP3_MAX_QUEUE_SIZE", "2")
		t.Setenv("YTMP3_OWNER_ID", "owner-1")
		t.Setenv("YTMP3_MAX_INPUT_SIZE", "50MB")

		cfg, err := config.Load()
		assert.NoError(t, err)
		assert.NotNil(t, cfg)

		assert.Equal(t, "9999", cfg.Port)
		assert.Equal(t, 64, cfg.Bitrate)
		assert.Equal(t, 2, cfg.MaxQueueSize)
		assert.Equal(t, "owner-1", cfg.OwnerID)
		assert.Equal(t, int64(50*1024*1024), cfg.MaxInputSize)
	})

	t.Run("rejects a non-positive bitrate", func(t *testing.T) {
		t.Setenv("YTMP3_BITRATE", "0")

		_, err := config.Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "BITRATE")
	})
}
