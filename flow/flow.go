// Package flow drives the EcoVision request lifecycle: submit an image for analysis,
// render the result, request a recommendation, download the report. Each operation sets
// the busy UI, issues one request, renders or alerts, and always restores the UI.
package flow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ecovision/backend"
	"ecovision/camera"
	"ecovision/logging"
	"ecovision/session"
	"ecovision/snapshot"

	"github.com/sirupsen/logrus"
)

// ErrNoResult is returned when an operation needs a prior successful analysis
var ErrNoResult = errors.New("no analysis result")

// ReportFilename is the name the report is saved under when the server does not name it
const ReportFilename = backend.DefaultReportFilename

// reportTimeLayout matches the en-US locale string the report template prints
const reportTimeLayout = "1/2/2006, 3:04:05 PM"

// Backend is the EcoVision server
type Backend interface {
	Analyze(ctx context.Context, req *backend.AnalyzeRequest) (*backend.AnalysisResult, error)
	Recommend(ctx context.Context, req *backend.RecommendRequest) (*backend.RecommendResponse, error)
	DownloadReport(ctx context.Context, req *backend.ReportRequest) (*backend.Report, error)
}

// Camera is the device camera as the flows see it
type Camera interface {
	Open(ctx context.Context) error
	Capture(ctx context.Context) (snapshot.DataURL, error)
	Stop()
	Active() bool
}

// Source is an image submission plus the optional location to analyze it for
type Source struct {
	ImagePath   string
	CameraImage snapshot.DataURL
	Latitude    *float64
	Longitude   *float64
	Time        *time.Time
}

// UploadSource submits an image file
func UploadSource(path string) Source {
	return Source{ImagePath: path}
}

// CameraSource submits a captured frame
func CameraSource(u snapshot.DataURL) Source {
	return Source{CameraImage: u}
}

// At returns a copy of the source located at lat/lon
func (s Source) At(lat, lon *float64) Source {
	s.Latitude = lat
	s.Longitude = lon
	return s
}

// Controller runs the flows against a backend, a view and the shared state
type Controller struct {
	backend       Backend
	view          View
	state         *session.State
	camera        Camera
	reportDir     string
	previewMaxDim int
	now           func() time.Time
	log           logrus.FieldLogger
}

// Option configures a Controller
type Option func(*Controller)

// WithCamera enables the camera operations and camera stop after analysis
func WithCamera(c Camera) Option {
	return func(ctl *Controller) {
		ctl.camera = c
	}
}

// WithReportDir sets where reports are saved (default: current directory)
func WithReportDir(dir string) Option {
	return func(ctl *Controller) {
		ctl.reportDir = dir
	}
}

// WithPreviewMaxDim downscales uploaded images kept for preview and report embedding
func WithPreviewMaxDim(px int) Option {
	return func(ctl *Controller) {
		ctl.previewMaxDim = px
	}
}

// WithClock overrides the time source used for report timestamps
func WithClock(now func() time.Time) Option {
	return func(ctl *Controller) {
		ctl.now = now
	}
}

// WithLogger sets the logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(ctl *Controller) {
		ctl.log = log
	}
}

// New creates a flow controller
func New(b Backend, v View, s *session.State, opts ...Option) *Controller {
	c := &Controller{
		backend:   b,
		view:      v,
		state:     s,
		reportDir: ".",
		now:       time.Now,
		log:       logging.WithField("component", "flow"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// State returns the shared state
func (c *Controller) State() *session.State {
	return c.state
}

// busy disables btn with a busy label and shows the overlay.
// The returned release restores both and must run on every exit path.
func (c *Controller) busy(btn Button, label string) (release func()) {
	c.view.SetButton(btn.ID, false, label)
	c.view.ShowLoading(true)
	return func() {
		c.view.SetButton(btn.ID, true, btn.Label)
		c.view.ShowLoading(false)
	}
}

// Analyze submits src to the analysis endpoint and renders the result.
// With stopCamera the camera is stopped after a successful analysis; a failed one
// leaves it running so the user can capture again.
func (c *Controller) Analyze(ctx context.Context, src Source, btn Button, stopCamera bool) (*backend.AnalysisResult, error) {
	release := c.busy(btn, LabelProcessing)
	defer release()

	if src.ImagePath != "" {
		c.publishUpload(src.ImagePath)
	}

	result, err := c.backend.Analyze(ctx, &backend.AnalyzeRequest{
		ImagePath:   src.ImagePath,
		CameraImage: src.CameraImage,
		Latitude:    src.Latitude,
		Longitude:   src.Longitude,
		Time:        src.Time,
	})
	if err != nil {
		c.log.WithError(err).WithField("button", btn.ID).Warn("analysis failed")
		c.view.Alert(MsgAnalyzeFailed)
		return nil, err
	}

	c.Render(result)

	if stopCamera && c.camera != nil {
		c.camera.Stop()
	}

	c.log.WithFields(logrus.Fields{
		"free_area": result.FreeAreaPercent,
		"direction": result.OrientationDir,
	}).Info("analysis rendered")

	return result, nil
}

// publishUpload keeps the uploaded file as the last image for preview and report.
// An upload that cannot be read as an image still replaces the previous one.
func (c *Controller) publishUpload(path string) {
	u, err := snapshot.FromFile(path)
	if err != nil {
		c.log.WithError(err).WithField("path", path).Warn("upload not kept for preview")
		c.state.SetLastImage("")
		return
	}
	if c.previewMaxDim > 0 {
		if small, err := snapshot.Thumbnail(u, c.previewMaxDim, snapshot.DefaultJPEGQuality); err == nil {
			u = small
		} else {
			c.log.WithError(err).Debug("preview downscale skipped")
		}
	}
	c.state.SetLastImage(u)
}

// Render projects result onto the view and stores it as the current result
func (c *Controller) Render(result *backend.AnalysisResult) {
	if result == nil {
		return
	}

	c.view.ShowResult(FieldsFor(result))

	if u, ok := c.state.LastImage(); ok {
		c.view.SetResultImage(u)
	}

	c.state.SetResult(result)
	c.view.ShowReportAction()
}

// Recommend requests an AI recommendation for the current result and shows it.
// Failures are shown in the recommendation panel rather than alerted.
func (c *Controller) Recommend(ctx context.Context) (string, error) {
	result, ok := c.state.Result()
	if !ok {
		c.view.Alert(MsgNoResult)
		return "", ErrNoResult
	}

	release := c.busy(RecommendButton, LabelGenerating)
	defer release()

	resp, err := c.backend.Recommend(ctx, &backend.RecommendRequest{
		FreeArea:       result.FreeAreaPercent,
		Tilt:           result.TiltAngle,
		OrientationDeg: result.OrientationDeg,
		OrientationDir: result.OrientationDir,
	})
	if err != nil {
		c.log.WithError(err).Warn("recommendation failed")
		c.view.ShowRecommendation(MsgRecommendFailed)
		return "", err
	}

	text := CleanRecommendation(resp.Recommendation)
	c.state.SetRecommendation(text)
	c.view.ShowRecommendation(text)

	return text, nil
}

// DownloadReport requests the PDF report for the current result and saves it under
// the report directory. It returns the saved path.
func (c *Controller) DownloadReport(ctx context.Context) (string, error) {
	result, ok := c.state.Result()
	if !ok {
		c.view.Alert(MsgNoResult)
		return "", ErrNoResult
	}

	release := c.busy(ReportButton, LabelDownloading)
	defer release()

	report, err := c.backend.DownloadReport(ctx, c.reportRequest(result))
	if err != nil {
		c.log.WithError(err).Warn("report download failed")
		c.view.Alert(MsgReportFailed)
		return "", err
	}

	path, err := saveReport(c.reportDir, reportName(report.Filename), report.Data)
	if err != nil {
		c.log.WithError(err).Warn("report save failed")
		c.view.Alert(MsgReportFailed)
		return "", err
	}

	c.log.WithFields(logrus.Fields{
		"path":         path,
		"bytes":        len(report.Data),
		"content_type": report.ContentType,
	}).Info("report saved")
	return path, nil
}

func (c *Controller) reportRequest(result *backend.AnalysisResult) *backend.ReportRequest {
	req := &backend.ReportRequest{
		FreeArea:       result.FreeAreaPercent,
		Tilt:           result.TiltAngle,
		OrientationDeg: result.OrientationDeg,
		OrientationDir: result.OrientationDir,
		DateTime:       c.now().Format(reportTimeLayout),
		Latitude:       backend.Coordinate{Value: result.Latitude},
		Longitude:      backend.Coordinate{Value: result.Longitude},
		AISummary:      backend.Placeholder,
	}

	if text, ok := c.state.Recommendation(); ok {
		req.AISummary = text
	}
	if u, ok := c.state.LastImage(); ok {
		s := u.String()
		req.ImageBase64 = &s
	}

	return req
}

// reportName keeps only the base name the server suggested
func reportName(suggested string) string {
	name := filepath.Base(suggested)
	if suggested == "" || name == "." || name == string(filepath.Separator) || name == ".." {
		return ReportFilename
	}
	return name
}

// saveReport writes data to dir/name through a temporary file so a failed write
// never leaves a truncated report behind
func saveReport(dir, name string, data []byte) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".solar_report-*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	path := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}
	return path, nil
}

// OpenCamera opens the rear camera, alerting on failure
func (c *Controller) OpenCamera(ctx context.Context) error {
	if c.camera == nil {
		c.view.Alert(MsgCameraUnsupported)
		return camera.ErrUnsupported
	}
	if err := c.camera.Open(ctx); err != nil {
		c.log.WithError(err).Warn("camera open failed")
		if errors.Is(err, camera.ErrUnsupported) {
			c.view.Alert(MsgCameraUnsupported)
		} else {
			c.view.Alert(MsgCameraUnavailable)
		}
		return err
	}
	return nil
}

// Capture grabs a still from the open camera, alerting on failure
func (c *Controller) Capture(ctx context.Context) (snapshot.DataURL, error) {
	if c.camera == nil {
		c.view.Alert(MsgOpenCameraFirst)
		return "", camera.ErrNoSession
	}
	u, err := c.camera.Capture(ctx)
	if err != nil {
		if errors.Is(err, camera.ErrNoSession) {
			c.view.Alert(MsgOpenCameraFirst)
		} else {
			c.log.WithError(err).Warn("capture failed")
			c.view.Alert(MsgCaptureFailed)
		}
		return "", err
	}
	return u, nil
}

// StopCamera stops the camera if one is open
func (c *Controller) StopCamera() {
	if c.camera != nil {
		c.camera.Stop()
	}
}

// CameraActive reports whether a camera session is open
func (c *Controller) CameraActive() bool {
	return c.camera != nil && c.camera.Active()
}

// Reset forgets the last image, result and recommendation
func (c *Controller) Reset() {
	c.state.Reset()
	c.log.Debug("session reset")
}
