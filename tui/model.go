package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"ecovision/backend"
	"ecovision/flow"
	"ecovision/snapshot"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// inputMode is what keystrokes currently drive
type inputMode int

const (
	modeMenu inputMode = iota
	modeUploadPath
)

// operation names a flow started from the UI
type operation string

const (
	opOpenCamera     operation = "open camera"
	opCapture        operation = "capture"
	opAnalyzeUpload  operation = "analyze upload"
	opAnalyzeCapture operation = "analyze capture"
	opRecommend      operation = "recommend"
	opReport         operation = "report"
)

// opDoneMsg is sent when a flow command finishes
type opDoneMsg struct {
	op      operation
	err     error
	elapsed time.Duration
	detail  string

	captured   snapshot.DataURL
	reportPath string
}

// Model is the Bubble Tea model for the EcoVision board
type Model struct {
	ctl   *flow.Controller
	board *Board
	feed  *ActivityFeed

	spinner spinner.Model
	input   textinput.Model
	mode    inputMode

	captured   snapshot.DataURL
	reportPath string
	running    int

	latitude  *float64
	longitude *float64
	serverURL string

	width    int
	height   int
	quitting bool

	ctx    context.Context
	cancel context.CancelFunc
}

// ModelOption configures a Model
type ModelOption func(*Model)

// WithLocation sends the site location with every analysis
func WithLocation(lat, lon *float64) ModelOption {
	return func(m *Model) {
		m.latitude = lat
		m.longitude = lon
	}
}

// WithServerURL shows the backend address in the header
func WithServerURL(url string) ModelOption {
	return func(m *Model) {
		m.serverURL = url
	}
}

// NewModel creates the board model. board must be the view ctl draws on.
func NewModel(ctl *flow.Controller, board *Board, opts ...ModelOption) Model {
	ti := textinput.New()
	ti.Placeholder = "./roof.jpg"
	ti.CharLimit = 512
	ti.Width = 60

	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: []string{"[    ]", "[=   ]", "[==  ]", "[=== ]", "[ ===]", "[  ==]", "[   =]"},
		FPS:    time.Second / 8,
	}
	s.Style = lipgloss.NewStyle().Foreground(ColorAccent)

	ctx, cancel := context.WithCancel(context.Background())

	m := Model{
		ctl:     ctl,
		board:   board,
		feed:    NewActivityFeed(74, 6),
		spinner: s,
		input:   ti,
		width:   80,
		height:  24,
		ctx:     ctx,
		cancel:  cancel,
	}

	for _, opt := range opts {
		opt(&m)
	}

	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.feed.SetSize(max(m.width-6, 20), 6)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m.quit()
		}

		// Alerts are modal: the next key only dismisses them
		if m.board.DismissAlert() {
			return m, nil
		}

		if m.mode == modeUploadPath {
			return m.handlePathInput(msg)
		}
		return m.handleMenuKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case opDoneMsg:
		return m.handleDone(msg), nil
	}

	return m, nil
}

func (m Model) handleMenuKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m.quit()
	case "o":
		return m.start(opOpenCamera)
	case "c":
		return m.start(opCapture)
	case "a":
		return m.start(opAnalyzeCapture)
	case "u":
		if !m.board.Button(flow.UploadButton.ID).Enabled {
			return m, nil
		}
		m.mode = modeUploadPath
		m.input.SetValue("")
		m.input.Focus()
		return m, textinput.Blink
	case "r":
		return m.start(opRecommend)
	case "d":
		return m.start(opReport)
	case "s":
		if !m.ctl.CameraActive() {
			m.feed.AddStatus("Camera not open")
			return m, nil
		}
		m.ctl.StopCamera()
		m.feed.AddStatus("Camera stopped")
		return m, nil
	case "n":
		return m.reset(), nil
	}
	return m, nil
}

func (m Model) handlePathInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeMenu
		m.input.Blur()
		return m, nil
	case "enter":
		path := strings.Trim(strings.TrimSpace(m.input.Value()), `"'`)
		if path == "" {
			return m, nil
		}
		m.mode = modeMenu
		m.input.Blur()
		return m.startUpload(path)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.cancel()
	m.ctl.StopCamera()
	return m, tea.Quit
}

// reset forgets the current result and capture. It waits for running requests.
func (m Model) reset() Model {
	if m.running > 0 {
		return m
	}
	m.ctl.Reset()
	m.board.ClearResult()
	m.captured = ""
	m.reportPath = ""
	m.feed.AddStatus("Session cleared")
	return m
}

// triggerFor maps an operation to the button whose busy state gates it and the
// label shown while it runs
func triggerFor(op operation) (flow.Button, string, bool) {
	switch op {
	case opAnalyzeUpload:
		return flow.UploadButton, flow.LabelProcessing, true
	case opAnalyzeCapture:
		return flow.CameraButton, flow.LabelProcessing, true
	case opRecommend:
		return flow.RecommendButton, flow.LabelGenerating, true
	case opReport:
		return flow.ReportButton, flow.LabelDownloading, true
	}
	return flow.Button{}, "", false
}

// claim disables the trigger of op before its command is returned, so a second
// key press arriving ahead of the command is dropped. It reports false when the
// trigger is already busy.
func (m Model) claim(op operation) bool {
	btn, label, ok := triggerFor(op)
	if !ok {
		return true
	}
	if !m.board.Button(btn.ID).Enabled {
		return false
	}
	m.board.SetButton(btn.ID, false, label)
	return true
}

// release re-enables the trigger of op once its command has finished
func (m Model) release(op operation) {
	if btn, _, ok := triggerFor(op); ok {
		m.board.SetButton(btn.ID, true, btn.Label)
	}
}

func (m Model) start(op operation) (tea.Model, tea.Cmd) {
	if !m.claim(op) {
		return m, nil
	}

	ctl, ctx := m.ctl, m.ctx
	m.running++

	switch op {
	case opOpenCamera:
		m.feed.AddStatus("Opening camera")
		return m, timed(op, func(done *opDoneMsg) error {
			return ctl.OpenCamera(ctx)
		})

	case opCapture:
		return m, timed(op, func(done *opDoneMsg) error {
			u, err := ctl.Capture(ctx)
			if err != nil {
				return err
			}
			done.captured = u
			done.detail = describeImage(u)
			return nil
		})

	case opAnalyzeCapture:
		src := flow.CameraSource(m.captured).At(m.latitude, m.longitude)
		m.feed.AddRequest(backend.PathAnalyze, "camera_image "+snapshot.FormatSize(m.captured.Size()))
		return m, timed(op, func(done *opDoneMsg) error {
			r, err := ctl.Analyze(ctx, src, flow.CameraButton, true)
			if err == nil {
				done.detail = fmt.Sprintf("%s%% free, facing %s", formatPercent(r.FreeAreaPercent), r.OrientationDir)
			}
			return err
		})

	case opRecommend:
		m.feed.AddRequest(backend.PathRecommend, "")
		return m, timed(op, func(done *opDoneMsg) error {
			text, err := ctl.Recommend(ctx)
			if err == nil {
				done.detail = text
			}
			return err
		})

	case opReport:
		m.feed.AddRequest(backend.PathDownloadReport, "")
		return m, timed(op, func(done *opDoneMsg) error {
			path, err := ctl.DownloadReport(ctx)
			if err == nil {
				done.reportPath = path
			}
			return err
		})
	}

	m.release(op)
	m.running--
	return m, nil
}

func (m Model) startUpload(path string) (tea.Model, tea.Cmd) {
	if !m.claim(opAnalyzeUpload) {
		return m, nil
	}

	ctl, ctx := m.ctl, m.ctx
	src := flow.UploadSource(path).At(m.latitude, m.longitude)
	m.running++
	m.feed.AddRequest(backend.PathAnalyze, "image "+filepath.Base(path))

	return m, timed(opAnalyzeUpload, func(done *opDoneMsg) error {
		r, err := ctl.Analyze(ctx, src, flow.UploadButton, false)
		if err == nil {
			done.detail = fmt.Sprintf("%s%% free, facing %s", formatPercent(r.FreeAreaPercent), r.OrientationDir)
		}
		return err
	})
}

// timed wraps a flow call into a command reporting its outcome and duration
func timed(op operation, fn func(done *opDoneMsg) error) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		done := opDoneMsg{op: op}
		done.err = fn(&done)
		done.elapsed = time.Since(start)
		return done
	}
}

func (m Model) handleDone(msg opDoneMsg) Model {
	if m.running > 0 {
		m.running--
	}
	m.release(msg.op)

	if msg.err != nil {
		m.feed.AddError(string(msg.op)+" failed", msg.err.Error())
		return m
	}

	switch msg.op {
	case opOpenCamera:
		m.feed.AddStatus("Camera live")
	case opCapture:
		m.captured = msg.captured
		m.feed.AddStatus("Captured", msg.detail)
	case opAnalyzeUpload, opAnalyzeCapture:
		m.feed.AddResponse(backend.PathAnalyze, msg.elapsed, msg.detail)
	case opRecommend:
		m.feed.AddResponse(backend.PathRecommend, msg.elapsed, msg.detail)
	case opReport:
		m.reportPath = msg.reportPath
		m.feed.AddResponse(backend.PathDownloadReport, msg.elapsed, "")
		m.feed.AddComplete("Report saved", msg.reportPath)
	}
	return m
}

// View renders the board
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	v := m.board.Snapshot()
	width := max(m.width-4, 40)

	var b strings.Builder

	b.WriteString(GetHeader())
	b.WriteString("\n")
	sub := "Solar panel site analysis"
	if m.serverURL != "" {
		sub += "  " + MutedStyle.Render("server "+m.serverURL)
	}
	b.WriteString(SubtitleStyle.Render(sub))
	b.WriteString("\n\n")

	b.WriteString(m.renderCamera(v, width))
	b.WriteString("\n")
	b.WriteString(m.renderButtons(v))
	b.WriteString("\n")

	if m.mode == modeUploadPath {
		b.WriteString(BoxStyle.Render(BodyStyle.Render("Image to upload") + "\n" + m.input.View()))
		b.WriteString("\n")
	}

	if v.Loading {
		b.WriteString(BoxStyle.BorderForeground(ColorAccent).Render(m.spinner.View() + " " + BodyStyle.Render("Working...")))
		b.WriteString("\n")
	}

	if v.Alert != "" {
		alert := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorError).
			Padding(0, 2).
			Render(ErrorStyle.Render(v.Alert) + "\n" + MutedStyle.Render("press any key"))
		b.WriteString(alert)
		b.WriteString("\n")
	}

	if v.Result != nil {
		b.WriteString(renderResult(*v.Result, v.ResultImage, width))
		b.WriteString("\n")
	}

	if v.RecommendationVisible {
		b.WriteString(Card("AI Recommendation", v.Recommendation, width))
		b.WriteString("\n")
	}

	if m.reportPath != "" {
		b.WriteString(SuccessStyle.Render("Report saved to " + m.reportPath))
		b.WriteString("\n")
	}

	b.WriteString(RenderFeedBox(m.feed, "Activity", width))
	b.WriteString("\n")
	b.WriteString(m.renderHelp(v))

	return b.String()
}

func (m Model) renderCamera(v BoardView, width int) string {
	if v.CameraLive {
		sub := "no capture yet"
		if !v.Snapshot.IsZero() {
			sub = "captured " + describeImage(v.Snapshot)
		}
		return StatusCard("[o]", "Camera live", sub, StepActive, width)
	}
	return StatusCard("[ ]", "Camera off", "", StepPending, width)
}

// trigger is a keyed button shown in the action row
type trigger struct {
	key string
	btn flow.Button
}

func (m Model) renderButtons(v BoardView) string {
	buttons := []trigger{
		{"u", flow.UploadButton},
		{"a", flow.CameraButton},
		{"r", flow.RecommendButton},
	}
	if v.ReportVisible {
		buttons = append(buttons, trigger{"d", flow.ReportButton})
	}

	parts := make([]string, 0, len(buttons))
	for _, b := range buttons {
		state := v.Buttons[b.btn.ID]
		label := "[" + b.key + "] " + state.Label
		if state.Enabled {
			parts = append(parts, BadgeStyle.Render(label))
		} else {
			parts = append(parts, BadgeMutedStyle.Render(label))
		}
	}
	return strings.Join(parts, " ")
}

func renderResult(f flow.ResultFields, img snapshot.DataURL, width int) string {
	rows := []string{
		Field("Free area", f.FreeArea+"%"),
		Field("Tilt", f.Tilt+"°"),
		Field("Orientation", fmt.Sprintf("%s (%s°)", f.OrientationDir, f.OrientationDeg)),
		Field("Latitude", f.Latitude),
		Field("Longitude", f.Longitude),
		Field("Sun", f.SunPosition),
		Field("Obstructions", f.Obstructions),
	}
	if !img.IsZero() {
		rows = append(rows, Field("Image", describeImage(img)))
	}
	if f.Message != "" {
		rows = append(rows, "", BodyStyle.Render(f.Message))
	}
	return Card("Analysis Result", strings.Join(rows, "\n"), width)
}

func (m Model) renderHelp(v BoardView) string {
	if m.mode == modeUploadPath {
		return KeyHelp("enter", "Analyze", "esc", "Cancel", "ctrl+c", "Quit")
	}

	keys := []string{"o", "Open camera", "c", "Capture", "s", "Stop camera", "u", "Upload", "a", "Analyze capture", "r", "Recommend"}
	if v.ReportVisible {
		keys = append(keys, "d", "Report")
	}
	keys = append(keys, "n", "New", "q", "Quit")
	return KeyHelp(keys...)
}

// describeImage summarizes a data URL as "640x480 image/jpeg, 45.2 KB"
func describeImage(u snapshot.DataURL) string {
	size := snapshot.FormatSize(u.Size())
	w, h, err := snapshot.Dimensions(u)
	if err != nil {
		return u.MIMEType() + ", " + size
	}
	return fmt.Sprintf("%dx%d %s, %s", w, h, u.MIMEType(), size)
}

func formatPercent(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}

// Getter methods for external access
func (m Model) IsQuitting() bool           { return m.quitting }
func (m Model) Running() int               { return m.running }
func (m Model) Captured() snapshot.DataURL { return m.captured }
func (m Model) ReportPath() string         { return m.reportPath }
func (m Model) Feed() *ActivityFeed        { return m.feed }

// RunUI runs the board until the user quits
func RunUI(ctl *flow.Controller, board *Board, opts ...ModelOption) error {
	model := NewModel(ctl, board, opts...)
	p := tea.NewProgram(model, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("ui failed: %w", err)
	}
	return nil
}
