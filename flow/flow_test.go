package flow

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ecovision/backend"
	"ecovision/camera"
	"ecovision/session"
	"ecovision/snapshot"
)

type buttonState struct {
	enabled bool
	label   string
}

type fakeView struct {
	loading         bool
	loadingHistory  []bool
	buttons         map[string]buttonState
	alerts          []string
	results         []ResultFields
	resultImage     snapshot.DataURL
	reportShown     bool
	recommendations []string
}

func newFakeView() *fakeView {
	return &fakeView{buttons: make(map[string]buttonState)}
}

func (v *fakeView) ShowLoading(show bool) {
	v.loading = show
	v.loadingHistory = append(v.loadingHistory, show)
}

func (v *fakeView) SetButton(id string, enabled bool, label string) {
	v.buttons[id] = buttonState{enabled: enabled, label: label}
}

func (v *fakeView) Alert(msg string)                  { v.alerts = append(v.alerts, msg) }
func (v *fakeView) ShowResult(f ResultFields)         { v.results = append(v.results, f) }
func (v *fakeView) SetResultImage(u snapshot.DataURL) { v.resultImage = u }
func (v *fakeView) ShowReportAction()                 { v.reportShown = true }
func (v *fakeView) ShowRecommendation(text string) {
	v.recommendations = append(v.recommendations, text)
}

type fakeBackend struct {
	result     *backend.AnalysisResult
	recommend  string
	report     []byte
	reportName string
	err        error

	analyzeReqs   []*backend.AnalyzeRequest
	recommendReqs []*backend.RecommendRequest
	reportReqs    []*backend.ReportRequest
}

func (b *fakeBackend) Analyze(ctx context.Context, req *backend.AnalyzeRequest) (*backend.AnalysisResult, error) {
	b.analyzeReqs = append(b.analyzeReqs, req)
	if b.err != nil {
		return nil, b.err
	}
	return b.result, nil
}

func (b *fakeBackend) Recommend(ctx context.Context, req *backend.RecommendRequest) (*backend.RecommendResponse, error) {
	b.recommendReqs = append(b.recommendReqs, req)
	if b.err != nil {
		return nil, b.err
	}
	return &backend.RecommendResponse{Recommendation: b.recommend}, nil
}

func (b *fakeBackend) DownloadReport(ctx context.Context, req *backend.ReportRequest) (*backend.Report, error) {
	b.reportReqs = append(b.reportReqs, req)
	if b.err != nil {
		return nil, b.err
	}
	name := b.reportName
	if name == "" {
		name = ReportFilename
	}
	return &backend.Report{Data: b.report, ContentType: "application/pdf", Filename: name}, nil
}

type fakeCamera struct {
	open    bool
	openErr error
	frame   snapshot.DataURL
	capErr  error
	stops   int
}

func (c *fakeCamera) Open(ctx context.Context) error {
	if c.openErr != nil {
		return c.openErr
	}
	c.open = true
	return nil
}

func (c *fakeCamera) Capture(ctx context.Context) (snapshot.DataURL, error) {
	if !c.open {
		return "", camera.ErrNoSession
	}
	if c.capErr != nil {
		return "", c.capErr
	}
	return c.frame, nil
}

func (c *fakeCamera) Stop() {
	c.open = false
	c.stops++
}

func (c *fakeCamera) Active() bool {
	return c.open
}

func sampleResult() *backend.AnalysisResult {
	return &backend.AnalysisResult{
		FreeAreaPercent: 62.5,
		TiltAngle:       30,
		OrientationDir:  "South",
		OrientationDeg:  180,
		Message:         "Good roof",
	}
}

func writePNG(t *testing.T, w, h int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 120, B: 40, A: 255})
		}
	}

	path := filepath.Join(t.TempDir(), "roof.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create png: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return path
}

func assertIdle(t *testing.T, v *fakeView, btn Button) {
	t.Helper()

	if v.loading {
		t.Error("expected loading overlay to be hidden")
	}
	got := v.buttons[btn.ID]
	if !got.enabled {
		t.Errorf("expected %s to be enabled", btn.ID)
	}
	if got.label != btn.Label {
		t.Errorf("expected %s label %q, got %q", btn.ID, btn.Label, got.label)
	}
}

func TestAnalyzeUploadRendersResult(t *testing.T) {
	path := writePNG(t, 8, 6)
	b := &fakeBackend{result: sampleResult()}
	v := newFakeView()
	state := session.New()
	c := New(b, v, state)

	result, err := c.Analyze(context.Background(), UploadSource(path), UploadButton, false)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if result.FreeAreaPercent != 62.5 {
		t.Errorf("expected free area 62.5, got %v", result.FreeAreaPercent)
	}

	if len(b.analyzeReqs) != 1 || b.analyzeReqs[0].ImagePath != path {
		t.Fatalf("expected one upload request for %s, got %+v", path, b.analyzeReqs)
	}
	if len(v.results) != 1 {
		t.Fatalf("expected one rendered result, got %d", len(v.results))
	}
	if v.results[0].OrientationDir != "South" || v.results[0].FreeArea != "62.5" {
		t.Errorf("unexpected fields: %+v", v.results[0])
	}
	if v.resultImage.MIMEType() != "image/png" {
		t.Errorf("expected uploaded png as result image, got %q", v.resultImage.MIMEType())
	}
	if !v.reportShown {
		t.Error("expected report action to be revealed")
	}
	if len(v.alerts) != 0 {
		t.Errorf("expected no alerts, got %v", v.alerts)
	}
	if _, ok := state.Result(); !ok {
		t.Error("expected result to be stored")
	}

	if len(v.loadingHistory) != 2 || !v.loadingHistory[0] || v.loadingHistory[1] {
		t.Errorf("expected loading on then off, got %v", v.loadingHistory)
	}
	assertIdle(t, v, UploadButton)
}

func TestAnalyzeUploadDownscalesPreview(t *testing.T) {
	path := writePNG(t, 200, 100)
	v := newFakeView()
	c := New(&fakeBackend{result: sampleResult()}, v, session.New(), WithPreviewMaxDim(50))

	if _, err := c.Analyze(context.Background(), UploadSource(path), UploadButton, false); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	w, h, err := snapshot.Dimensions(v.resultImage)
	if err != nil {
		t.Fatalf("Dimensions failed: %v", err)
	}
	if w != 50 || h != 25 {
		t.Errorf("expected 50x25 preview, got %dx%d", w, h)
	}
}

func TestAnalyzeFailure(t *testing.T) {
	cam := &fakeCamera{open: true}
	b := &fakeBackend{err: errors.New("server down")}
	v := newFakeView()
	state := session.New()
	c := New(b, v, state, WithCamera(cam))

	frame := snapshot.Encode(snapshot.MIMEJPEG, []byte{0xff, 0xd8})
	_, err := c.Analyze(context.Background(), CameraSource(frame), CameraButton, true)
	if err == nil {
		t.Fatal("expected error")
	}

	if len(v.alerts) != 1 || v.alerts[0] != MsgAnalyzeFailed {
		t.Errorf("expected analyze failure alert, got %v", v.alerts)
	}
	if len(v.results) != 0 {
		t.Error("expected nothing rendered")
	}
	if cam.stops != 0 {
		t.Error("camera should keep running after a failed analysis")
	}
	if _, ok := state.Result(); ok {
		t.Error("expected no stored result")
	}
	assertIdle(t, v, CameraButton)
}

func TestAnalyzeCameraStopsOnSuccess(t *testing.T) {
	cam := &fakeCamera{open: true}
	b := &fakeBackend{result: sampleResult()}
	v := newFakeView()
	c := New(b, v, session.New(), WithCamera(cam))

	frame := snapshot.Encode(snapshot.MIMEJPEG, []byte{0xff, 0xd8})
	if _, err := c.Analyze(context.Background(), CameraSource(frame), CameraButton, true); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if cam.stops != 1 {
		t.Errorf("expected camera stopped once, got %d", cam.stops)
	}
	if b.analyzeReqs[0].CameraImage != frame {
		t.Error("expected captured frame in request")
	}
	assertIdle(t, v, CameraButton)
}

func TestAnalyzePassesLocation(t *testing.T) {
	b := &fakeBackend{result: sampleResult()}
	c := New(b, newFakeView(), session.New())

	lat, lon := 12.97, 77.59
	frame := snapshot.Encode(snapshot.MIMEJPEG, []byte{1})
	if _, err := c.Analyze(context.Background(), CameraSource(frame).At(&lat, &lon), CameraButton, false); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	req := b.analyzeReqs[0]
	if req.Latitude == nil || *req.Latitude != lat || req.Longitude == nil || *req.Longitude != lon {
		t.Errorf("expected location %v,%v in request", lat, lon)
	}
}

func TestRenderIsIdempotent(t *testing.T) {
	v := newFakeView()
	state := session.New()
	c := New(&fakeBackend{}, v, state)

	r := sampleResult()
	c.Render(r)
	c.Render(r)

	if len(v.results) != 2 || v.results[0] != v.results[1] {
		t.Errorf("expected identical renders, got %+v", v.results)
	}

	c.Render(nil)
	if len(v.results) != 2 {
		t.Error("nil result should not render")
	}
}

func TestRecommendRequiresResult(t *testing.T) {
	b := &fakeBackend{recommend: "ok"}
	v := newFakeView()
	c := New(b, v, session.New())

	_, err := c.Recommend(context.Background())
	if !errors.Is(err, ErrNoResult) {
		t.Fatalf("expected ErrNoResult, got %v", err)
	}
	if len(b.recommendReqs) != 0 {
		t.Error("expected no request without a result")
	}
	if len(v.alerts) != 1 || v.alerts[0] != MsgNoResult {
		t.Errorf("expected no-result alert, got %v", v.alerts)
	}
	if len(v.loadingHistory) != 0 {
		t.Error("expected no busy state without a result")
	}
}

func TestRecommend(t *testing.T) {
	b := &fakeBackend{recommend: "**Summary**\n* Clean panels\n* Trim the tree\n"}
	v := newFakeView()
	state := session.New()
	state.SetResult(sampleResult())
	c := New(b, v, state)

	text, err := c.Recommend(context.Background())
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	want := "Summary**\nClean panels\nTrim the tree"
	if text != want {
		t.Errorf("expected %q, got %q", want, text)
	}
	if got, _ := state.Recommendation(); got != want {
		t.Errorf("expected stored recommendation %q, got %q", want, got)
	}

	req := b.recommendReqs[0]
	if req.FreeArea != 62.5 || req.Tilt != 30 || req.OrientationDeg != 180 || req.OrientationDir != "South" {
		t.Errorf("unexpected recommend request: %+v", req)
	}
	if len(v.recommendations) != 1 || v.recommendations[0] != want {
		t.Errorf("expected recommendation shown, got %v", v.recommendations)
	}
	assertIdle(t, v, RecommendButton)
}

func TestRecommendFailure(t *testing.T) {
	b := &fakeBackend{err: errors.New("timeout")}
	v := newFakeView()
	state := session.New()
	state.SetResult(sampleResult())
	c := New(b, v, state)

	if _, err := c.Recommend(context.Background()); err == nil {
		t.Fatal("expected error")
	}

	if len(v.recommendations) != 1 || v.recommendations[0] != MsgRecommendFailed {
		t.Errorf("expected failure text in panel, got %v", v.recommendations)
	}
	if len(v.alerts) != 0 {
		t.Errorf("expected no alert, got %v", v.alerts)
	}
	if _, ok := state.Recommendation(); ok {
		t.Error("expected no stored recommendation")
	}
	assertIdle(t, v, RecommendButton)
}

func TestDownloadReport(t *testing.T) {
	dir := t.TempDir()
	b := &fakeBackend{report: []byte("%PDF-1.4 test")}
	v := newFakeView()
	state := session.New()
	state.SetResult(sampleResult())

	clock := func() time.Time { return time.Date(2025, 6, 21, 12, 0, 0, 0, time.Local) }
	c := New(b, v, state, WithReportDir(dir), WithClock(clock))

	path, err := c.DownloadReport(context.Background())
	if err != nil {
		t.Fatalf("DownloadReport failed: %v", err)
	}
	if path != filepath.Join(dir, ReportFilename) {
		t.Errorf("unexpected path %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read report: %v", err)
	}
	if string(data) != "%PDF-1.4 test" {
		t.Errorf("unexpected report contents %q", data)
	}

	req := b.reportReqs[0]
	if req.DateTime != "6/21/2025, 12:00:00 PM" {
		t.Errorf("unexpected datetime %q", req.DateTime)
	}
	if req.AISummary != backend.Placeholder {
		t.Errorf("expected placeholder summary, got %q", req.AISummary)
	}
	if req.ImageBase64 != nil {
		t.Error("expected no image without a last image")
	}
	if req.Latitude.String() != backend.Placeholder {
		t.Errorf("expected placeholder latitude, got %q", req.Latitude.String())
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".solar_report-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
	assertIdle(t, v, ReportButton)
}

func TestDownloadReportIncludesSummaryAndImage(t *testing.T) {
	b := &fakeBackend{report: []byte("%PDF")}
	state := session.New()
	state.SetResult(sampleResult())
	state.SetRecommendation("Clean panels")
	img := snapshot.Encode(snapshot.MIMEJPEG, []byte{1, 2, 3})
	state.SetLastImage(img)

	c := New(b, newFakeView(), state, WithReportDir(t.TempDir()))
	if _, err := c.DownloadReport(context.Background()); err != nil {
		t.Fatalf("DownloadReport failed: %v", err)
	}

	req := b.reportReqs[0]
	if req.AISummary != "Clean panels" {
		t.Errorf("expected summary, got %q", req.AISummary)
	}
	if req.ImageBase64 == nil || *req.ImageBase64 != img.String() {
		t.Error("expected last image embedded")
	}
}

func TestDownloadReportFailure(t *testing.T) {
	dir := t.TempDir()
	b := &fakeBackend{err: &backend.APIError{StatusCode: 500, Message: "boom"}}
	v := newFakeView()
	state := session.New()
	state.SetResult(sampleResult())
	c := New(b, v, state, WithReportDir(dir))

	if _, err := c.DownloadReport(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(v.alerts) != 1 || v.alerts[0] != MsgReportFailed {
		t.Errorf("expected report failure alert, got %v", v.alerts)
	}
	if _, err := os.Stat(filepath.Join(dir, ReportFilename)); !os.IsNotExist(err) {
		t.Error("expected no report file")
	}
	assertIdle(t, v, ReportButton)
}

func TestDownloadReportRequiresResult(t *testing.T) {
	b := &fakeBackend{}
	v := newFakeView()
	c := New(b, v, session.New(), WithReportDir(t.TempDir()))

	if _, err := c.DownloadReport(context.Background()); !errors.Is(err, ErrNoResult) {
		t.Fatalf("expected ErrNoResult, got %v", err)
	}
	if len(b.reportReqs) != 0 {
		t.Error("expected no request without a result")
	}
}

func TestCameraAlerts(t *testing.T) {
	tests := []struct {
		name    string
		camera  *fakeCamera
		capture bool
		want    string
	}{
		{"capture without session", &fakeCamera{}, true, MsgOpenCameraFirst},
		{"capture failure", &fakeCamera{open: true, capErr: errors.New("no frame")}, true, MsgCaptureFailed},
		{"open denied", &fakeCamera{openErr: camera.ErrUnavailable}, false, MsgCameraUnavailable},
		{"open unsupported", &fakeCamera{openErr: camera.ErrUnsupported}, false, MsgCameraUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newFakeView()
			c := New(&fakeBackend{}, v, session.New(), WithCamera(tt.camera))

			var err error
			if tt.capture {
				_, err = c.Capture(context.Background())
			} else {
				err = c.OpenCamera(context.Background())
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if len(v.alerts) != 1 || v.alerts[0] != tt.want {
				t.Errorf("expected alert %q, got %v", tt.want, v.alerts)
			}
		})
	}
}

func TestNoCameraConfigured(t *testing.T) {
	v := newFakeView()
	c := New(&fakeBackend{}, v, session.New())

	if err := c.OpenCamera(context.Background()); !errors.Is(err, camera.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
	if _, err := c.Capture(context.Background()); !errors.Is(err, camera.ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
	c.StopCamera()
}

func TestCleanRecommendation(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Clean the panels.", "Clean the panels."},
		{"bullets", "* one\n* two", "one\ntwo"},
		{"bold heading", "**Tips**\nUse tilt", "Tips**\nUse tilt"},
		{"no space after star", "*one\n*two", "one\ntwo"},
		{"surrounding whitespace", "\n\n  text  \n", "text"},
		{"inline star kept", "a * b", "a * b"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanRecommendation(tt.input); got != tt.want {
				t.Errorf("CleanRecommendation(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFieldsFor(t *testing.T) {
	alt, az := 45.5, 120.0
	lat := 0.0
	r := sampleResult()
	r.SunAltitude = &alt
	r.SunAzimuth = &az
	r.Latitude = &lat
	r.Obstructions = []backend.Obstruction{{Label: "tree"}, {Label: "pole"}, {Label: "tree"}}

	f := FieldsFor(r)
	if f.SunPosition != "altitude 45.5°, azimuth 120°" {
		t.Errorf("unexpected sun position %q", f.SunPosition)
	}
	if f.Obstructions != "2 tree, 1 pole" {
		t.Errorf("unexpected obstructions %q", f.Obstructions)
	}
	if f.Latitude != backend.Placeholder || f.Longitude != backend.Placeholder {
		t.Errorf("expected placeholder coordinates, got %q/%q", f.Latitude, f.Longitude)
	}

	empty := FieldsFor(sampleResult())
	if empty.Obstructions != "none detected" || empty.SunPosition != backend.Placeholder {
		t.Errorf("unexpected defaults: %+v", empty)
	}
}

func TestAnalyzeUnreadableUploadReplacesLastImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roof.heic")
	if err := os.WriteFile(path, []byte("not decodable here"), 0644); err != nil {
		t.Fatalf("failed to write upload: %v", err)
	}

	b := &fakeBackend{result: sampleResult(), report: []byte("%PDF")}
	v := newFakeView()
	state := session.New()
	previous := snapshot.Encode(snapshot.MIMEJPEG, []byte{0xff, 0xd8, 0xff})
	state.SetLastImage(previous)
	c := New(b, v, state, WithReportDir(dir))

	if _, err := c.Analyze(context.Background(), UploadSource(path), UploadButton, false); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if _, ok := state.LastImage(); ok {
		t.Error("expected the previous image to be dropped")
	}
	if v.resultImage == previous {
		t.Error("result shown with the previous image")
	}

	if _, err := c.DownloadReport(context.Background()); err != nil {
		t.Fatalf("DownloadReport failed: %v", err)
	}
	if req := b.reportReqs[0]; req.ImageBase64 != nil {
		t.Error("report embedded the previous image")
	}
}

func TestDownloadReportUsesServerFilename(t *testing.T) {
	dir := t.TempDir()
	b := &fakeBackend{report: []byte("%PDF"), reportName: "site_42.pdf"}
	state := session.New()
	state.SetResult(sampleResult())
	c := New(b, newFakeView(), state, WithReportDir(dir))

	path, err := c.DownloadReport(context.Background())
	if err != nil {
		t.Fatalf("DownloadReport failed: %v", err)
	}
	if path != filepath.Join(dir, "site_42.pdf") {
		t.Errorf("unexpected path %s", path)
	}
}

func TestReportName(t *testing.T) {
	tests := []struct {
		suggested string
		want      string
	}{
		{"", ReportFilename},
		{"solar_report.pdf", "solar_report.pdf"},
		{"../../etc/report.pdf", "report.pdf"},
		{"..", ReportFilename},
		{"/", ReportFilename},
	}

	for _, tt := range tests {
		if got := reportName(tt.suggested); got != tt.want {
			t.Errorf("reportName(%q) = %q, want %q", tt.suggested, got, tt.want)
		}
	}
}

func TestCameraActiveAndReset(t *testing.T) {
	cam := &fakeCamera{}
	state := session.New()
	state.SetResult(sampleResult())
	state.SetRecommendation("Clean panels")
	c := New(&fakeBackend{}, newFakeView(), state, WithCamera(cam))

	if c.CameraActive() {
		t.Error("expected camera inactive before open")
	}
	if err := c.OpenCamera(context.Background()); err != nil {
		t.Fatalf("OpenCamera failed: %v", err)
	}
	if !c.CameraActive() {
		t.Error("expected camera active after open")
	}

	c.Reset()
	if _, ok := state.Result(); ok {
		t.Error("expected result cleared")
	}
	if _, ok := state.Recommendation(); ok {
		t.Error("expected recommendation cleared")
	}

	if New(&fakeBackend{}, newFakeView(), session.New()).CameraActive() {
		t.Error("expected no camera to report inactive")
	}
}
