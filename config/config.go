// ytmp3/config/config.go
package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Config struct {
	Bitrate             int           `mapstructure:"BITRATE"`
	MaxQueueSize        int           `mapstructure:"MAX_QUEUE_SIZE"`
	DownloadBasePath    string        `mapstructure:"DOWNLOAD_BASE_PATH"`
	WhitelistPath       string        `mapstructure:"WHITELIST_PATH"`
	OwnerID             string        `mapstructure:"OWNER_ID"`
	FFBin               string        `mapstructure:"FF_BIN"`
	FFExtraArgs         string        `mapstructure:"FF_EXTRA_ARGS"`
	FFTimeout           time.Duration `mapstructure:"FF_TIMEOUT"`
	MaxInputSize        int64         `mapstructure:"MAX_INPUT_SIZE"`
	OutputLocalLifetime time.Duration `mapstructure:"OUTPUT_LOCAL_LIFETIME"`
	ThrottleCPU         float64       `mapstructure:"THROTTLE_CPU"`
	ThrottleFreeMem     int64         `mapstructure:"THROTTLE_FREEMEM"`
	ThrottleFreeDisk    int64         `mapstructure:"THROTTLE_FREEDISK"`
	AuthEnable          bool          `mapstructure:"AUTH_ENABLE"`
	AuthKey             string        `mapstructure:"AUTH_KEY"`
	Port                string        `mapstructure:"PORT"`
}

// stringToDurationHookFunc is a custom Viper hook for parsing Go's duration strings.
func stringToDurationHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		// We only care about converting strings to time.Duration.
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		// It is a string -> time.Duration. Parse it.
		return time.ParseDuration(data.(string))
	}
}

// stringToByteSizeHookFunc is a custom Viper hook for parsing human-readable size strings.
func stringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		// We only care about converting strings to int64s for byte sizes.
		if f.Kind() != reflect.String || t.Kind() != reflect.Int64 {
			return data, nil
		}

		var size datasize.ByteSize
		err := size.UnmarshalText([]byte(data.(string)))
		if err != nil {
			// Not a valid size string, let other parsers handle it.
			return data, nil
		}

		return int64(size.Bytes()), nil
	}
}

func Load() (*Config, error) {
	vp := viper.New()

	// Set default values as strings, the hooks will handle them.
	vp.SetDefault("BITRATE", 128)
	vp.SetDefault("MAX_QUEUE_SIZE", 5)
	vp.SetDefault("DOWNLOAD_BASE_PATH", "downloads")
	vp.SetDefault("WHITELIST_PATH", "ytmp3_whitelist.yaml")
	vp.SetDefault("OWNER_ID", "")
	vp.SetDefault("FF_BIN", "ffmpeg")
	vp.SetDefault("FF_EXTRA_ARGS", "")
	vp.SetDefault("FF_TIMEOUT", "30m")
	vp.SetDefault("MAX_INPUT_SIZE", "500MB")
	vp.SetDefault("OUTPUT_LOCAL_LIFETIME", "1h")
	vp.SetDefault("THROTTLE_CPU", 50.0)
	vp.SetDefault("THROTTLE_FREEMEM", "200MB")
	vp.SetDefault("THROTTLE_FREEDISK", "200MB")
	vp.SetDefault("AUTH_ENABLE", false)
	vp.SetDefault("AUTH_KEY", "123456")
	vp.SetDefault("PORT", "8080")

	// Load from config file
	vp.SetConfigName("ytmp3_config")
	vp.SetConfigType("yaml")
	vp.AddConfigPath(".")
	vp.AddConfigPath("/etc/ytmp3/")

	if err := vp.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// Load from environment variables
	vp.SetEnvPrefix("YTMP3")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	var cfg Config
	// Unmarshal the config, providing our custom composed hooks.
	// The order matters: the first hook that succeeds is used.
	err := vp.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			stringToDurationHookFunc(),
			stringToByteSizeHookFunc(),
		),
	))
	if err != nil {
		return nil, err
	}

	if cfg.Bitrate <= 0 {
		return nil, fmt.Errorf("BITRATE must be positive, got %d", cfg.Bitrate)
	}
	if cfg.MaxQueueSize <= 0 {
		return nil, fmt.Errorf("MAX_QUEUE_SIZE must be positive, got %d", cfg.MaxQueueSize)
	}

	return &cfg, nil
}
