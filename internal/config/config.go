package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"go-screen-recorder/internal/core/domain"
)

const (
	DisplayBackendScreen  = "screen"
	DisplayBackendBrowser = "browser"
)

type ServerConfig struct {
	Host string `mapstructure:"host" validate:"required"`
	Port int    `mapstructure:"port" validate:"required,gt=0,lte=65535"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri" validate:"required"`
	Database string `mapstructure:"database" validate:"required"`
}

type FFmpegConfig struct {
	Bin     string `mapstructure:"bin" validate:"required"`
	TempDir string `mapstructure:"temp_dir"`
}

type CaptureConfig struct {
	DisplayBackend string        `mapstructure:"display_backend" validate:"oneof=screen browser"`
	BrowserURL     string        `mapstructure:"browser_url"`
	ChromeBin      string        `mapstructure:"chrome_bin"`
	Timeslice      time.Duration `mapstructure:"timeslice" validate:"gt=0"`
}

// Application config structure
type AppConfig struct {
	Name      string                 `mapstructure:"service_name" validate:"required"`
	Version   string                 `mapstructure:"version" validate:"required"`
	LogLevel  string                 `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	LogFormat string                 `mapstructure:"log_format" validate:"oneof=console json"`
	Server    ServerConfig           `mapstructure:"server" validate:"required"`
	Mongo     MongoConfig            `mapstructure:"mongo" validate:"required"`
	FFmpeg    FFmpegConfig           `mapstructure:"ffmpeg" validate:"required"`
	Capture   CaptureConfig          `mapstructure:"capture" validate:"required"`
	Recording domain.RecordingConfig `mapstructure:"recording"`
}

// Addr is the listen address of the HTTP server.
func (c *AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// InitConfig reads .env (or the file named by ENV_PATH) and the environment.
// Nested keys use "__", e.g. MONGO__URI.
func InitConfig() (*viper.Viper, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter("__"))

	v.AddConfigPath(".")
	v.SetConfigName(".env")
	v.SetConfigType("env")
	if path := os.Getenv("ENV_PATH"); path != "" {
		v.SetConfigFile(path)
	}
	v.AutomaticEnv()
	setDefault(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

func setDefault(v *viper.Viper) {
	// keeping watch on https://github.com/spf13/viper/issues/188
	// every key needs a default so AutomaticEnv picks it up on Unmarshal.
	v.SetDefault("SERVICE_NAME", "go-screen-recorder")
	v.SetDefault("VERSION", "0.1.0")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("SERVER__HOST", "127.0.0.1")
	v.SetDefault("SERVER__PORT", 8080)

	v.SetDefault("MONGO__URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO__DATABASE", "screen_recorder")

	v.SetDefault("FFMPEG__BIN", "ffmpeg")
	v.SetDefault("FFMPEG__TEMP_DIR", "")

	v.SetDefault("CAPTURE__DISPLAY_BACKEND", DisplayBackendScreen)
	v.SetDefault("CAPTURE__BROWSER_URL", "about:blank")
	v.SetDefault("CAPTURE__CHROME_BIN", "")
	v.SetDefault("CAPTURE__TIMESLICE", "100ms")

	defaults := domain.DefaultRecordingConfig()
	v.SetDefault("RECORDING__CAPTURE_SCREEN", defaults.CaptureScreen)
	v.SetDefault("RECORDING__CAPTURE_WEBCAM", defaults.CaptureWebcam)
	v.SetDefault("RECORDING__CAPTURE_MICROPHONE", defaults.CaptureMicrophone)
	v.SetDefault("RECORDING__RESOLUTION", defaults.Resolution)
	v.SetDefault("RECORDING__FRAME_RATE", defaults.FrameRate)
	v.SetDefault("RECORDING__VIDEO_BITRATE", defaults.VideoBitrate)
}

// GetApplicationConfig unmarshals and validates the application config.
func GetApplicationConfig(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if err := cfg.Recording.Validate(); err != nil {
		return nil, fmt.Errorf("recording defaults: %w", err)
	}
	return &cfg, nil
}
