package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-screen-recorder/internal/core/domain"
)

// inTempDir runs the test from an empty directory so no stray .env is read.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func loadConfig(t *testing.T) (*AppConfig, error) {
	t.Helper()
	v, err := InitConfig()
	require.NoError(t, err)
	return GetApplicationConfig(v)
}

func TestDefaults(t *testing.T) {
	inTempDir(t)
	t.Setenv("ENV_PATH", "")

	cfg, err := loadConfig(t)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Addr())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	assert.Equal(t, "screen_recorder", cfg.Mongo.Database)
	assert.Equal(t, "ffmpeg", cfg.FFmpeg.Bin)
	assert.Equal(t, DisplayBackendScreen, cfg.Capture.DisplayBackend)
	assert.Equal(t, 100*time.Millisecond, cfg.Capture.Timeslice)
	assert.Equal(t, domain.DefaultRecordingConfig(), cfg.Recording)
}

func TestEnvFileAndEnvironment(t *testing.T) {
	dir := inTempDir(t)
	path := filepath.Join(dir, "recorder.env")
	content := "SERVER__PORT=9090\nLOG_LEVEL=debug\nRECORDING__RESOLUTION=720p\nRECORDING__CAPTURE_WEBCAM=true\nCAPTURE__DISPLAY_BACKEND=browser\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("ENV_PATH", path)
	t.Setenv("MONGO__DATABASE", "recorder_test")
	t.Setenv("CAPTURE__TIMESLICE", "250ms")

	cfg, err := loadConfig(t)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "recorder_test", cfg.Mongo.Database)
	assert.Equal(t, DisplayBackendBrowser, cfg.Capture.DisplayBackend)
	assert.Equal(t, 250*time.Millisecond, cfg.Capture.Timeslice)
	assert.Equal(t, domain.Resolution720p, cfg.Recording.Resolution)
	assert.True(t, cfg.Recording.CaptureWebcam)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "port out of range", env: map[string]string{"SERVER__PORT": "70000"}},
		{name: "unknown log level", env: map[string]string{"LOG_LEVEL": "verbose"}},
		{name: "unknown log format", env: map[string]string{"LOG_FORMAT": "xml"}},
		{name: "unknown display backend", env: map[string]string{"CAPTURE__DISPLAY_BACKEND": "x11"}},
		{name: "zero frame rate", env: map[string]string{"RECORDING__FRAME_RATE": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inTempDir(t)
			t.Setenv("ENV_PATH", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := loadConfig(t)
			assert.Error(t, err)
		})
	}
}

func TestRecordingDefaultsNeedASource(t *testing.T) {
	inTempDir(t)
	t.Setenv("ENV_PATH", "")
	t.Setenv("RECORDING__CAPTURE_SCREEN", "false")
	t.Setenv("RECORDING__CAPTURE_MICROPHONE", "false")

	_, err := loadConfig(t)
	assert.ErrorIs(t, err, domain.ErrNoSources)
}
