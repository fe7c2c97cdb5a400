package flow

import (
	"fmt"
	"strconv"
	"strings"

	"ecovision/backend"
	"ecovision/snapshot"
)

// LoadingIndicator toggles the busy overlay
type LoadingIndicator interface {
	ShowLoading(show bool)
}

// View is the surface the flows draw on. Every value it receives is plain text.
type View interface {
	LoadingIndicator

	// SetButton enables or disables a trigger and sets its label
	SetButton(id string, enabled bool, label string)

	// Alert surfaces a user-visible failure
	Alert(msg string)

	// ShowResult fills the result slots and reveals the result panel
	ShowResult(f ResultFields)

	// SetResultImage shows the analyzed image next to the result
	SetResultImage(u snapshot.DataURL)

	// ShowReportAction reveals the report download trigger
	ShowReportAction()

	// ShowRecommendation writes the recommendation panel and reveals it
	ShowRecommendation(text string)
}

// Button is a trigger with its idle label
type Button struct {
	ID    string
	Label string
}

// Triggers driven by the flows
var (
	UploadButton    = Button{ID: "uploadAnalyzeBtn", Label: "Analyze Uploaded Image"}
	CameraButton    = Button{ID: "cameraAnalyzeBtn", Label: "Analyze Captured Image"}
	RecommendButton = Button{ID: "aiRecommenderBtn", Label: "Get AI Recommendations 🤖"}
	ReportButton    = Button{ID: "downloadReportBtn", Label: "Download Report"}
)

// Busy labels
const (
	LabelProcessing  = "Processing..."
	LabelGenerating  = "Generating..."
	LabelDownloading = "Downloading..."
)

// User-facing messages
const (
	MsgAnalyzeFailed     = "Analysis failed. Please try again."
	MsgRecommendFailed   = "Error fetching recommendation."
	MsgReportFailed      = "Failed to generate report."
	MsgNoResult          = "Please analyze an image first!"
	MsgOpenCameraFirst   = "Please open the camera first!"
	MsgCameraUnavailable = "Camera access denied or not available."
	MsgCameraUnsupported = "Camera not supported on this system."
	MsgCaptureFailed     = "Could not capture an image. Please try again."
)

// ResultFields is an AnalysisResult projected to display text
type ResultFields struct {
	FreeArea       string
	Tilt           string
	OrientationDir string
	OrientationDeg string
	Message        string
	Latitude       string
	Longitude      string
	SunPosition    string
	Obstructions   string
}

// FieldsFor projects a result onto display text. Missing optional values become the placeholder.
func FieldsFor(r *backend.AnalysisResult) ResultFields {
	f := ResultFields{
		FreeArea:       formatNumber(r.FreeAreaPercent),
		Tilt:           formatNumber(r.TiltAngle),
		OrientationDir: r.OrientationDir,
		OrientationDeg: formatNumber(r.OrientationDeg),
		Message:        r.Message,
		Latitude:       backend.Coordinate{Value: r.Latitude}.String(),
		Longitude:      backend.Coordinate{Value: r.Longitude}.String(),
		SunPosition:    backend.Placeholder,
		Obstructions:   "none detected",
	}

	if r.SunAltitude != nil && r.SunAzimuth != nil {
		f.SunPosition = fmt.Sprintf("altitude %s°, azimuth %s°", formatNumber(*r.SunAltitude), formatNumber(*r.SunAzimuth))
	}

	if len(r.Obstructions) > 0 {
		counts := make(map[string]int)
		var order []string
		for _, o := range r.Obstructions {
			if counts[o.Label] == 0 {
				order = append(order, o.Label)
			}
			counts[o.Label]++
		}
		parts := make([]string, 0, len(order))
		for _, label := range order {
			parts = append(parts, fmt.Sprintf("%d %s", counts[label], label))
		}
		f.Obstructions = strings.Join(parts, ", ")
	}

	return f
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
