// Package config handles textcam configuration
package config

import (
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr string
	LogLevel string

	// Camera
	CameraBackend     string // "opencv" or "file"
	CameraFacing      string // "environment" or "user"
	EnvironmentDevice int    // device index used for facing=environment
	UserDevice        int    // device index used for facing=user
	CameraFile        string // still image served by the file backend
	FrameWidth        int
	FrameHeight       int

	// Sampler
	AutoCapture      bool
	SampleRate       float64 // Hz
	SampleWidth      int     // ROI is downsampled to at most this many pixels wide
	ROIWidth         float64 // fraction of frame width
	ROIHeight        float64 // fraction of frame height
	Threshold        float64 // luma variance cutoff, 0..2000
	Cooldown         time.Duration
	DedupeDistance   int // pHash distance for duplicate suppression; <0 disables
	StillQuality     int // JPEG quality 1..100
	RecognizeTimeout time.Duration

	// Recognition engine
	Engine          string // "tesseract", "vision", "gemini" or "remote"
	Languages       []string
	InferenceAddr   string
	RecognizerAddr  string // listen address of the standalone recognizer
	VisionCredsFile string
	GeminiAPIKey    string
	GeminiModel     string
}

func Load() *Config {
	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8000"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		CameraBackend:     getEnv("CAMERA_BACKEND", "opencv"),
		CameraFacing:      getEnv("CAMERA_FACING", "environment"),
		EnvironmentDevice: getEnvInt("CAMERA_ENVIRONMENT_DEVICE", 0),
		UserDevice:        getEnvInt("CAMERA_USER_DEVICE", 1),
		CameraFile:        getEnv("CAMERA_FILE", ""),
		FrameWidth:        getEnvInt("FRAME_WIDTH", 1280),
		FrameHeight:       getEnvInt("FRAME_HEIGHT", 720),

		AutoCapture:      getEnvBool("AUTO_CAPTURE", false),
		SampleRate:       getEnvFloat("SAMPLE_RATE", 30),
		SampleWidth:      getEnvInt("SAMPLE_WIDTH", 320),
		ROIWidth:         getEnvFloat("ROI_WIDTH", 0.6),
		ROIHeight:        getEnvFloat("ROI_HEIGHT", 0.2),
		Threshold:        getEnvFloat("CAPTURE_THRESHOLD", 1000),
		Cooldown:         getEnvDuration("CAPTURE_COOLDOWN", 1500*time.Millisecond),
		DedupeDistance:   getEnvInt("AUTO_CAPTURE_DEDUPE_DISTANCE", -1),
		StillQuality:     getEnvInt("JPEG_QUALITY", 92),
		RecognizeTimeout: getEnvDuration("RECOGNITION_TIMEOUT", 30*time.Second),

		Engine:          getEnv("OCR_ENGINE", "tesseract"),
		Languages:       getEnvList("OCR_LANGUAGES", []string{"eng"}),
		InferenceAddr:   getEnv("INFERENCE_ADDR", "localhost:50051"),
		RecognizerAddr:  getEnv("RECOGNIZER_ADDR", ":50051"),
		VisionCredsFile: getEnv("VISION_CREDENTIALS_FILE", ""),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
	}
}

// SlogLevel parses LogLevel, falling back to info.
func (c *Config) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

// getEnvDuration accepts Go duration strings ("1.5s") or bare seconds ("1.5").
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(f * float64(time.Second))
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}
