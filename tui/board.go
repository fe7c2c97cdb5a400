package tui

import (
	"sync"

	"ecovision/camera"
	"ecovision/flow"
	"ecovision/snapshot"
)

// ButtonState is the enabled flag and label of a trigger
type ButtonState struct {
	Enabled bool
	Label   string
}

// Board is the mutable screen state the flows draw on. Flows run inside Bubble Tea
// commands, so every method locks.
type Board struct {
	mu sync.Mutex

	loading bool
	buttons map[string]ButtonState
	alert   string

	result        *flow.ResultFields
	resultImage   snapshot.DataURL
	reportVisible bool

	recommendation        string
	recommendationVisible bool

	cameraLive bool
	snapshot   snapshot.DataURL
}

// BoardView is a point-in-time copy of the board for rendering
type BoardView struct {
	Loading bool
	Buttons map[string]ButtonState
	Alert   string

	Result        *flow.ResultFields
	ResultImage   snapshot.DataURL
	ReportVisible bool

	Recommendation        string
	RecommendationVisible bool

	CameraLive bool
	Snapshot   snapshot.DataURL
}

// NewBoard creates a board with every trigger idle
func NewBoard() *Board {
	b := &Board{buttons: make(map[string]ButtonState)}
	for _, btn := range []flow.Button{flow.UploadButton, flow.CameraButton, flow.RecommendButton, flow.ReportButton} {
		b.buttons[btn.ID] = ButtonState{Enabled: true, Label: btn.Label}
	}
	return b
}

// ShowLoading toggles the busy overlay
func (b *Board) ShowLoading(show bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loading = show
}

// SetButton updates a trigger
func (b *Board) SetButton(id string, enabled bool, label string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buttons[id] = ButtonState{Enabled: enabled, Label: label}
}

// Alert shows msg until dismissed
func (b *Board) Alert(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.alert = msg
}

// DismissAlert clears the alert and reports whether one was shown
func (b *Board) DismissAlert() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	had := b.alert != ""
	b.alert = ""
	return had
}

// ShowResult fills and reveals the result panel
func (b *Board) ShowResult(f flow.ResultFields) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.result = &f
}

// SetResultImage sets the image shown with the result
func (b *Board) SetResultImage(u snapshot.DataURL) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resultImage = u
}

// ShowReportAction reveals the report trigger
func (b *Board) ShowReportAction() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reportVisible = true
}

// ShowRecommendation fills and reveals the recommendation panel
func (b *Board) ShowRecommendation(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recommendation = text
	b.recommendationVisible = true
}

// ClearResult hides the result, its image, the recommendation and the report action
func (b *Board) ClearResult() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.result = nil
	b.resultImage = ""
	b.reportVisible = false
	b.recommendation = ""
	b.recommendationVisible = false
	b.snapshot = ""
}

// AttachCamera marks the live preview as running
func (b *Board) AttachCamera(camera.Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cameraLive = true
}

// DetachCamera hides the live preview
func (b *Board) DetachCamera() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cameraLive = false
}

// ShowSnapshot shows a captured frame
func (b *Board) ShowSnapshot(u snapshot.DataURL) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshot = u
}

// Button returns the state of a trigger
func (b *Board) Button(id string) ButtonState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buttons[id]
}

// Snapshot copies the board for rendering
func (b *Board) Snapshot() BoardView {
	b.mu.Lock()
	defer b.mu.Unlock()

	v := BoardView{
		Loading:               b.loading,
		Buttons:               make(map[string]ButtonState, len(b.buttons)),
		Alert:                 b.alert,
		ResultImage:           b.resultImage,
		ReportVisible:         b.reportVisible,
		Recommendation:        b.recommendation,
		RecommendationVisible: b.recommendationVisible,
		CameraLive:            b.cameraLive,
		Snapshot:              b.snapshot,
	}
	for id, s := range b.buttons {
		v.Buttons[id] = s
	}
	if b.result != nil {
		r := *b.result
		v.Result = &r
	}
	return v
}

var (
	_ flow.View      = (*Board)(nil)
	_ camera.Preview = (*Board)(nil)
)
