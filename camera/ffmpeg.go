package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// FFmpegDevice grabs frames from a local camera through ffmpeg.
// ffmpeg has no notion of facing, so each facing maps to an input name.
type FFmpegDevice struct {
	// Binary is the ffmpeg executable
	Binary string

	// Format is the ffmpeg input format (v4l2, avfoundation, dshow)
	Format string

	// Inputs maps a facing to an input name. FacingEnvironment is the fallback.
	Inputs map[Facing]string
}

// NewFFmpegDevice creates a device with the platform's default input format
func NewFFmpegDevice(input string) *FFmpegDevice {
	format, defaultInput := platformDefaults(runtime.GOOS)
	if input == "" {
		input = defaultInput
	}
	return &FFmpegDevice{
		Binary: "ffmpeg",
		Format: format,
		Inputs: map[Facing]string{FacingEnvironment: input},
	}
}

// NewFFmpegDeviceFromEnv reads ECOVISION_CAMERA_DEVICE, ECOVISION_CAMERA_DEVICE_USER
// and ECOVISION_CAMERA_FORMAT
func NewFFmpegDeviceFromEnv() *FFmpegDevice {
	d := NewFFmpegDevice(os.Getenv("ECOVISION_CAMERA_DEVICE"))
	if user := os.Getenv("ECOVISION_CAMERA_DEVICE_USER"); user != "" {
		d.Inputs[FacingUser] = user
	}
	if format := os.Getenv("ECOVISION_CAMERA_FORMAT"); format != "" {
		d.Format = format
	}
	return d
}

func platformDefaults(goos string) (format, input string) {
	switch goos {
	case "darwin":
		return "avfoundation", "0"
	case "windows":
		return "dshow", "video=Integrated Camera"
	default:
		return "v4l2", "/dev/video0"
	}
}

// Open returns a session bound to the input for c.Facing
func (d *FFmpegDevice) Open(ctx context.Context, c Constraints) (Session, error) {
	if err := CheckFFmpeg(d.Binary); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}

	input := d.Inputs[c.Facing]
	if input == "" {
		input = d.Inputs[FacingEnvironment]
	}
	if input == "" {
		return nil, fmt.Errorf("no camera input configured for %s", c.Facing)
	}

	sctx, cancel := context.WithCancel(context.Background())
	return &ffmpegSession{
		binary: d.Binary,
		args:   captureArgs(d.Format, input, c),
		ctx:    sctx,
		cancel: cancel,
	}, nil
}

// captureArgs builds an ffmpeg command that writes one MJPEG frame to stdout
func captureArgs(format, input string, c Constraints) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-f", format}
	if format == "avfoundation" {
		args = append(args, "-framerate", "30")
	}
	if c.Width > 0 && c.Height > 0 {
		args = append(args, "-video_size", strconv.Itoa(c.Width)+"x"+strconv.Itoa(c.Height))
	}
	return append(args,
		"-i", input,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-",
	)
}

type ffmpegSession struct {
	binary string
	args   []string

	// ctx is cancelled by Stop so in-flight grabs are killed
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
}

// Play grabs one frame to prove the device is accessible
func (s *ffmpegSession) Play(ctx context.Context) error {
	_, err := s.Frame(ctx)
	return err
}

func (s *ffmpegSession) Frame(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return nil, ErrNoSession
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	release := context.AfterFunc(s.ctx, cancel)
	defer release()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.binary, s.args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg error: %w\nOutput: %s", err, strings.TrimSpace(stderr.String()))
	}

	img, _, err := image.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return img, nil
}

func (s *ffmpegSession) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	s.cancel()
}

// CheckFFmpeg checks if ffmpeg is installed
func CheckFFmpeg(binary string) error {
	if binary == "" {
		binary = "ffmpeg"
	}
	cmd := exec.Command(binary, "-version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg not found. Please install ffmpeg first")
	}
	return nil
}
