package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"ecovision/backend"
	"ecovision/camera"
	"ecovision/flow"
	"ecovision/logging"
	"ecovision/session"
	"ecovision/snapshot"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/sirupsen/logrus"
)

// AnalyzeOptions holds the arguments of the analyze command
type AnalyzeOptions struct {
	ImagePath string
	Camera    bool
	Recommend bool
	Report    bool
}

// parseAnalyzeArgs accepts flags before or after the image path
func parseAnalyzeArgs(args []string) (AnalyzeOptions, error) {
	var opts AnalyzeOptions

	for _, arg := range args {
		switch arg {
		case "--camera", "-camera":
			opts.Camera = true
		case "--recommend", "-recommend":
			opts.Recommend = true
		case "--report", "-report":
			opts.Report = true
		default:
			if strings.HasPrefix(arg, "-") {
				return opts, fmt.Errorf("unknown flag %s", arg)
			}
			if opts.ImagePath != "" {
				return opts, fmt.Errorf("only one image can be analyzed at a time")
			}
			opts.ImagePath = arg
		}
	}

	if opts.Camera && opts.ImagePath != "" {
		return opts, fmt.Errorf("--camera cannot be combined with an image path")
	}

	return opts, nil
}

// runAnalyze runs the analyze, recommend and report flows once against the console
func runAnalyze(ctx context.Context, cfg *Config, opts AnalyzeOptions) int {
	client, err := backend.NewClientFromEnv()
	if err != nil {
		fmt.Println(errorStyle.Render("Error: " + err.Error()))
		return 1
	}

	view := newConsoleView(os.Stdout)
	state := session.New()
	flowOpts := []flow.Option{
		flow.WithReportDir(cfg.ReportDir),
		flow.WithPreviewMaxDim(cfg.PreviewMaxDim),
	}

	var src flow.Source
	var btn flow.Button

	if opts.Camera {
		cam := camera.NewController(cameraDevice(), state, cfg.CameraOptions()...)
		ctl := flow.New(client, view, state, append(flowOpts, flow.WithCamera(cam))...)
		defer ctl.StopCamera()

		var frame snapshot.DataURL
		var capErr error
		err = spinnerStep("Opening camera...", func() {
			if capErr = ctl.OpenCamera(ctx); capErr != nil {
				return
			}
			frame, capErr = ctl.Capture(ctx)
		})
		if err != nil || capErr != nil {
			return 1
		}

		fmt.Println(infoStyle.Render("Captured " + snapshot.FormatSize(frame.Size()) + " frame"))
		src, btn = flow.CameraSource(frame), flow.CameraButton
		return analyzeAndFollowUp(ctx, spinnerStep, ctl, view, src.At(cfg.Latitude, cfg.Longitude), btn, opts)
	}

	path := opts.ImagePath
	if path == "" {
		if path, err = pickImage(); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return 0
			}
			fmt.Println(errorStyle.Render("Error: " + err.Error()))
			return 1
		}
	}

	if _, err := snapshot.ValidateFile(path); err != nil {
		fmt.Println(errorStyle.Render("Error: " + err.Error()))
		return 1
	}

	ctl := flow.New(client, view, state, flowOpts...)
	src, btn = flow.UploadSource(path), flow.UploadButton
	return analyzeAndFollowUp(ctx, spinnerStep, ctl, view, src.At(cfg.Latitude, cfg.Longitude), btn, opts)
}

// stepRunner runs one blocking flow call while the user waits
type stepRunner func(title string, action func()) error

// spinnerStep shows a spinner around the call
func spinnerStep(title string, action func()) error {
	return spinner.New().
		Title(title).
		Action(action).
		Run()
}

// analyzeAndFollowUp returns a non-zero exit code when any requested step fails
func analyzeAndFollowUp(ctx context.Context, run stepRunner, ctl *flow.Controller, view *consoleView, src flow.Source, btn flow.Button, opts AnalyzeOptions) int {
	var flowErr error
	err := run("Analyzing roof...", func() {
		_, flowErr = ctl.Analyze(ctx, src, btn, opts.Camera)
	})
	if err != nil || flowErr != nil {
		return 1
	}

	failed := false

	if opts.Recommend {
		err = run("Asking for AI recommendations...", func() {
			_, flowErr = ctl.Recommend(ctx)
		})
		if err != nil {
			return 1
		}
		failed = flowErr != nil
	}

	if opts.Report {
		var path string
		err = run("Generating report...", func() {
			path, flowErr = ctl.DownloadReport(ctx)
		})
		if err != nil || flowErr != nil {
			return 1
		}
		fmt.Fprintln(view.out, successStyle.Render("Report saved to "+path))
	}

	if failed || len(view.alerts) > 0 {
		return 1
	}
	return 0
}

// pickImage asks for an image with a file picker
func pickImage() (string, error) {
	var imagePath string
	startDir, _ := os.Getwd()

	filePicker := huh.NewFilePicker().
		Title("Select a roof image").
		Description("Navigate and select the image to analyze").
		Picking(true).
		CurrentDirectory(startDir).
		ShowHidden(false).
		ShowPermissions(false).
		ShowSize(true).
		Height(15).
		AllowedTypes(snapshot.SupportedImageTypes).
		Value(&imagePath)

	err := huh.NewForm(huh.NewGroup(filePicker)).
		WithTheme(huh.ThemeCatppuccin()).
		Run()
	if err != nil {
		return "", err
	}
	return imagePath, nil
}

// consoleView prints what the flows show. The busy overlay is the spinner around each call.
type consoleView struct {
	out    io.Writer
	alerts []string
}

func newConsoleView(out io.Writer) *consoleView {
	return &consoleView{out: out}
}

func (v *consoleView) ShowLoading(show bool) {
	logging.WithField("loading", show).Debug("console busy state")
}

func (v *consoleView) SetButton(id string, enabled bool, label string) {
	logging.WithFields(logrus.Fields{"button": id, "enabled": enabled, "label": label}).Debug("console trigger")
}

func (v *consoleView) Alert(msg string) {
	v.alerts = append(v.alerts, msg)
	fmt.Fprintln(v.out, errorStyle.Render("✗ "+msg))
}

func (v *consoleView) ShowResult(f flow.ResultFields) {
	fmt.Fprintln(v.out, boxStyle.Render(fmt.Sprintf(
		"☀ Analysis Result\n\n"+
			"Free area:    %s%%\n"+
			"Tilt:         %s°\n"+
			"Orientation:  %s (%s°)\n"+
			"Latitude:     %s\n"+
			"Longitude:    %s\n"+
			"Sun:          %s\n"+
			"Obstructions: %s\n\n"+
			"%s",
		f.FreeArea,
		f.Tilt,
		f.OrientationDir, f.OrientationDeg,
		f.Latitude,
		f.Longitude,
		f.SunPosition,
		f.Obstructions,
		f.Message,
	)))
}

func (v *consoleView) SetResultImage(u snapshot.DataURL) {
	fmt.Fprintln(v.out, infoStyle.Render(fmt.Sprintf("Image: %s, %s", u.MIMEType(), snapshot.FormatSize(u.Size()))))
}

func (v *consoleView) ShowReportAction() {}

func (v *consoleView) ShowRecommendation(text string) {
	fmt.Fprintln(v.out, boxStyle.Render("🤖 AI Recommendation\n\n"+text))
}
