package config

import (
	"log/slog"
	"os"
	"reflect"
	"testing"
	"time"
)

var envVars = []string{
	"HTTP_ADDR", "CAMERA_BACKEND", "CAMERA_FACING", "AUTO_CAPTURE", "SAMPLE_RATE",
	"ROI_WIDTH", "ROI_HEIGHT", "CAPTURE_THRESHOLD", "CAPTURE_COOLDOWN",
	"AUTO_CAPTURE_DEDUPE_DISTANCE", "JPEG_QUALITY", "OCR_ENGINE", "OCR_LANGUAGES",
	"INFERENCE_ADDR",
}

func TestLoad(t *testing.T) {
	for _, v := range envVars {
		os.Unsetenv(v)
	}

	cfg := Load()

	if cfg.HTTPAddr != ":8000" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8000")
	}
	if cfg.CameraBackend != "opencv" {
		t.Errorf("CameraBackend = %q, want %q", cfg.CameraBackend, "opencv")
	}
	if cfg.CameraFacing != "environment" {
		t.Errorf("CameraFacing = %q, want %q", cfg.CameraFacing, "environment")
	}
	if cfg.AutoCapture {
		t.Error("AutoCapture should default to false")
	}
	if cfg.ROIWidth != 0.6 || cfg.ROIHeight != 0.2 {
		t.Errorf("ROI = %vx%v, want 0.6x0.2", cfg.ROIWidth, cfg.ROIHeight)
	}
	if cfg.Threshold != 1000 {
		t.Errorf("Threshold = %f, want %f", cfg.Threshold, 1000.0)
	}
	if cfg.Cooldown != 1500*time.Millisecond {
		t.Errorf("Cooldown = %v, want 1.5s", cfg.Cooldown)
	}
	if cfg.DedupeDistance != -1 {
		t.Errorf("DedupeDistance = %d, want -1", cfg.DedupeDistance)
	}
	if cfg.StillQuality != 92 {
		t.Errorf("StillQuality = %d, want 92", cfg.StillQuality)
	}
	if cfg.Engine != "tesseract" {
		t.Errorf("Engine = %q, want %q", cfg.Engine, "tesseract")
	}
	if !reflect.DeepEqual(cfg.Languages, []string{"eng"}) {
		t.Errorf("Languages = %v, want [eng]", cfg.Languages)
	}
}

func TestLoadWithEnv(t *testing.T) {
	os.Setenv("HTTP_ADDR", ":9000")
	os.Setenv("CAMERA_FACING", "user")
	os.Setenv("AUTO_CAPTURE", "1")
	os.Setenv("CAPTURE_THRESHOLD", "750.5")
	os.Setenv("CAPTURE_COOLDOWN", "2s")
	os.Setenv("OCR_ENGINE", "remote")
	os.Setenv("OCR_LANGUAGES", "eng, deu ,,fra")
	os.Setenv("INFERENCE_ADDR", "ocr:50051")
	defer func() {
		for _, v := range envVars {
			os.Unsetenv(v)
		}
	}()

	cfg := Load()

	if cfg.HTTPAddr != ":9000" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9000")
	}
	if cfg.CameraFacing != "user" {
		t.Errorf("CameraFacing = %q, want %q", cfg.CameraFacing, "user")
	}
	if !cfg.AutoCapture {
		t.Error("AutoCapture should be true")
	}
	if cfg.Threshold != 750.5 {
		t.Errorf("Threshold = %f, want %f", cfg.Threshold, 750.5)
	}
	if cfg.Cooldown != 2*time.Second {
		t.Errorf("Cooldown = %v, want 2s", cfg.Cooldown)
	}
	if cfg.Engine != "remote" {
		t.Errorf("Engine = %q, want %q", cfg.Engine, "remote")
	}
	if !reflect.DeepEqual(cfg.Languages, []string{"eng", "deu", "fra"}) {
		t.Errorf("Languages = %v, want [eng deu fra]", cfg.Languages)
	}
	if cfg.InferenceAddr != "ocr:50051" {
		t.Errorf("InferenceAddr = %q, want %q", cfg.InferenceAddr, "ocr:50051")
	}
}

func TestGetEnvHelpers(t *testing.T) {
	os.Setenv("TEST_STRING", "hello")
	defer os.Unsetenv("TEST_STRING")
	if v := getEnv("TEST_STRING", "default"); v != "hello" {
		t.Errorf("getEnv = %q, want %q", v, "hello")
	}
	if v := getEnv("NONEXISTENT", "default"); v != "default" {
		t.Errorf("getEnv = %q, want %q", v, "default")
	}

	os.Setenv("TEST_INT_INVALID", "not-a-number")
	defer os.Unsetenv("TEST_INT_INVALID")
	if v := getEnvInt("TEST_INT_INVALID", 100); v != 100 {
		t.Errorf("getEnvInt with invalid = %d, want %d", v, 100)
	}

	os.Setenv("TEST_FLOAT", "3.14")
	defer os.Unsetenv("TEST_FLOAT")
	if v := getEnvFloat("TEST_FLOAT", 0.0); v != 3.14 {
		t.Errorf("getEnvFloat = %f, want %f", v, 3.14)
	}

	for _, bad := range []string{"NaN", "Inf", "-inf"} {
		os.Setenv("TEST_FLOAT_BAD", bad)
		if v := getEnvFloat("TEST_FLOAT_BAD", 1000); v != 1000 {
			t.Errorf("getEnvFloat(%q) = %f, want default %f", bad, v, 1000.0)
		}
	}
	os.Unsetenv("TEST_FLOAT_BAD")

	os.Setenv("TEST_BOOL_ONE", "1")
	defer os.Unsetenv("TEST_BOOL_ONE")
	if !getEnvBool("TEST_BOOL_ONE", false) {
		t.Error("getEnvBool should return true for '1'")
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 5 * time.Second},
		{"250ms", 250 * time.Millisecond},
		{"1.5", 1500 * time.Millisecond},
		{"soon", 5 * time.Second},
	}
	defer os.Unsetenv("TEST_DURATION")

	for _, tt := range tests {
		os.Setenv("TEST_DURATION", tt.value)
		if got := getEnvDuration("TEST_DURATION", 5*time.Second); got != tt.want {
			t.Errorf("getEnvDuration(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"chatty", slog.LevelInfo},
	}
	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.in}
		if got := cfg.SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
