// Package camera manages the device camera lifecycle: open a live session, grab a frame
// as a JPEG data URL, stop the session.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"

	"ecovision/logging"
	"ecovision/session"
	"ecovision/snapshot"

	"github.com/sirupsen/logrus"
)

var (
	// ErrNoSession is returned by Capture when no camera is open
	ErrNoSession = errors.New("no active camera session")

	// ErrUnavailable is returned when camera access is denied or the device fails
	ErrUnavailable = errors.New("camera access denied or not available")

	// ErrUnsupported is returned when no camera backend exists on this system
	ErrUnsupported = errors.New("camera not supported on this system")
)

// Facing selects which camera to use on devices that have several
type Facing string

const (
	// FacingEnvironment is the rear camera, pointed away from the user
	FacingEnvironment Facing = "environment"
	// FacingUser is the front camera
	FacingUser Facing = "user"
)

// Constraints describe the requested video stream
type Constraints struct {
	Facing Facing
	Width  int
	Height int
}

// Device grants camera sessions
type Device interface {
	Open(ctx context.Context, c Constraints) (Session, error)
}

// Session is a live camera stream
type Session interface {
	// Play starts the stream. It fails if the device cannot deliver frames.
	Play(ctx context.Context) error

	// Frame returns the current video frame at its native resolution
	Frame(ctx context.Context) (image.Image, error)

	// Stop releases every track of the stream. Safe to call more than once.
	Stop()
}

// Preview is the surface that shows the live stream and the captured still
type Preview interface {
	AttachCamera(s Session)
	DetachCamera()
	ShowSnapshot(u snapshot.DataURL)
}

// Controller owns the single active camera session
type Controller struct {
	device      Device
	state       *session.State
	preview     Preview
	constraints Constraints
	quality     int

	mu      sync.Mutex
	current Session
}

// Option configures a Controller
type Option func(*Controller)

// WithPreview sets the preview surface
func WithPreview(p Preview) Option {
	return func(c *Controller) {
		c.preview = p
	}
}

// WithJPEGQuality sets the capture encoding quality (1-100)
func WithJPEGQuality(quality int) Option {
	return func(c *Controller) {
		c.quality = quality
	}
}

// WithFacing selects the front or rear camera (default: rear)
func WithFacing(f Facing) Option {
	return func(c *Controller) {
		c.constraints.Facing = f
	}
}

// ParseFacing maps "environment"/"rear" and "user"/"front" to a Facing
func ParseFacing(s string) (Facing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "environment", "rear", "back":
		return FacingEnvironment, nil
	case "user", "front":
		return FacingUser, nil
	default:
		return "", fmt.Errorf("unknown camera facing %q", s)
	}
}

// WithResolution requests a stream size. Zero keeps the device default.
func WithResolution(width, height int) Option {
	return func(c *Controller) {
		c.constraints.Width = width
		c.constraints.Height = height
	}
}

// NewController creates a controller that publishes captures to state.
// A nil device makes every Open fail with ErrUnsupported.
func NewController(device Device, state *session.State, opts ...Option) *Controller {
	c := &Controller{
		device:      device,
		state:       state,
		preview:     nopPreview{},
		constraints: Constraints{Facing: FacingEnvironment},
		quality:     snapshot.DefaultJPEGQuality,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Open requests a stream with the configured facing (rear by default), attaches it to the preview and starts playback.
// On failure no session is left behind.
func (c *Controller) Open(ctx context.Context) error {
	if c.device == nil {
		return ErrUnsupported
	}

	// at most one active session
	c.Stop()

	s, err := c.device.Open(ctx, c.constraints)
	if err != nil {
		if errors.Is(err, ErrUnsupported) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	c.mu.Lock()
	c.current = s
	c.mu.Unlock()
	c.preview.AttachCamera(s)

	if err := s.Play(ctx); err != nil {
		c.Stop()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	logging.WithField("facing", c.constraints.Facing).Info("camera opened")
	return nil
}

// Capture grabs the current frame, encodes it as a JPEG data URL and publishes it
// as the last image
func (c *Controller) Capture(ctx context.Context) (snapshot.DataURL, error) {
	c.mu.Lock()
	s := c.current
	c.mu.Unlock()

	if s == nil {
		return "", ErrNoSession
	}

	frame, err := s.Frame(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to grab frame: %w", err)
	}

	u, err := snapshot.FromImage(frame, c.quality)
	if err != nil {
		return "", err
	}

	c.state.SetLastImage(u)
	c.preview.ShowSnapshot(u)

	b := frame.Bounds()
	logging.WithFields(logrus.Fields{
		"width":  b.Dx(),
		"height": b.Dy(),
		"bytes":  u.Size(),
	}).Info("frame captured")

	return u, nil
}

// Stop ends the active session, if any, and detaches the preview
func (c *Controller) Stop() {
	c.mu.Lock()
	s := c.current
	c.current = nil
	c.mu.Unlock()

	if s != nil {
		s.Stop()
		logging.Logger.Info("camera stopped")
	}
	c.preview.DetachCamera()
}

// Active reports whether a session is open
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

type nopPreview struct{}

func (nopPreview) AttachCamera(Session) {}
func (nopPreview) DetachCamera() {}
func (nopPreview) ShowSnapshot(snapshot.DataURL) {}
