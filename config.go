package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"ecovision/backend"
	"ecovision/camera"
)

// DefaultPreviewMaxDim bounds uploaded images kept for preview and report embedding
const DefaultPreviewMaxDim = 1280

// Config holds the client settings read from the environment
type Config struct {
	ReportDir     string
	Latitude      *float64
	Longitude     *float64
	PreviewMaxDim int

	CameraFacing camera.Facing
	CameraWidth  int
	CameraHeight int
	JPEGQuality  int
}

// loadConfig reads the client settings. Server settings are validated here too so
// a bad .env fails before any UI starts.
func loadConfig() (*Config, error) {
	if err := backend.CheckConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{
		ReportDir:     ".",
		PreviewMaxDim: DefaultPreviewMaxDim,
	}

	if dir := strings.TrimSpace(os.Getenv("ECOVISION_REPORT_DIR")); dir != "" {
		cfg.ReportDir = dir
	}

	var err error
	if cfg.Latitude, err = parseCoordinate("ECOVISION_LATITUDE", 90); err != nil {
		return nil, err
	}
	if cfg.Longitude, err = parseCoordinate("ECOVISION_LONGITUDE", 180); err != nil {
		return nil, err
	}

	if raw := strings.TrimSpace(os.Getenv("ECOVISION_PREVIEW_MAX_DIM")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid ECOVISION_PREVIEW_MAX_DIM %q: must be a non-negative integer", raw)
		}
		cfg.PreviewMaxDim = n
	}

	if cfg.CameraFacing, err = camera.ParseFacing(os.Getenv("ECOVISION_CAMERA_FACING")); err != nil {
		return nil, fmt.Errorf("invalid ECOVISION_CAMERA_FACING: %w", err)
	}

	if raw := strings.TrimSpace(os.Getenv("ECOVISION_CAMERA_RESOLUTION")); raw != "" {
		if cfg.CameraWidth, cfg.CameraHeight, err = parseResolution(raw); err != nil {
			return nil, fmt.Errorf("invalid ECOVISION_CAMERA_RESOLUTION %q: %w", raw, err)
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ECOVISION_JPEG_QUALITY")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			return nil, fmt.Errorf("invalid ECOVISION_JPEG_QUALITY %q: must be between 1 and 100", raw)
		}
		cfg.JPEGQuality = n
	}

	return cfg, nil
}

// CameraOptions turns the camera settings into controller options
func (c *Config) CameraOptions() []camera.Option {
	opts := []camera.Option{camera.WithFacing(c.CameraFacing)}
	if c.CameraWidth > 0 && c.CameraHeight > 0 {
		opts = append(opts, camera.WithResolution(c.CameraWidth, c.CameraHeight))
	}
	if c.JPEGQuality > 0 {
		opts = append(opts, camera.WithJPEGQuality(c.JPEGQuality))
	}
	return opts
}

// parseResolution reads "WIDTHxHEIGHT"
func parseResolution(raw string) (int, int, error) {
	w, h, ok := strings.Cut(strings.ToLower(raw), "x")
	if !ok {
		return 0, 0, fmt.Errorf("want WIDTHxHEIGHT")
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("bad width %q", w)
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("bad height %q", h)
	}
	return width, height, nil
}

// parseCoordinate reads an optional decimal degree bounded by ±limit
func parseCoordinate(env string, limit float64) (*float64, error) {
	raw := strings.TrimSpace(os.Getenv(env))
	if raw == "" {
		return nil, nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", env, raw, err)
	}
	if v < -limit || v > limit {
		return nil, fmt.Errorf("invalid %s %q: must be between -%g and %g", env, raw, limit, limit)
	}
	return &v, nil
}
