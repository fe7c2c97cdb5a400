package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"

	"ecovision/backend"
	"ecovision/camera"
	"ecovision/flow"
	"ecovision/logging"
	"ecovision/session"
	"ecovision/tui"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
)

// Build info - set via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#4ADE80")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#38BDF8")).
			MarginBottom(1)

	successStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8A8A8"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ADE80")).
			Padding(1, 2).
			MarginTop(1).
			MarginBottom(1)

	ecovisionLogo = `
    ╭─────────────────────────────────────╮
    │  ☀ EcoVision - Solar Site Analyzer  │
    ╰─────────────────────────────────────╯`
)

func main() {
	versionFlag := flag.Bool("version", false, "Print version information")
	shortVersionFlag := flag.Bool("v", false, "Print version information (short)")
	flag.Usage = usage
	flag.Parse()

	if *versionFlag || *shortVersionFlag {
		printVersion()
		os.Exit(0)
	}

	os.Exit(run(flag.Args()))
}

func run(args []string) int {
	// Load .env file if it exists (won't error if missing)
	_ = godotenv.Load()

	logCloser, err := logging.SetupFromEnv()
	if err != nil {
		fmt.Println(errorStyle.Render("Error: " + err.Error()))
		return 1
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := ""
	if len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "update":
		if err := runUpdate(ctx); err != nil {
			fmt.Println(errorStyle.Render("Error: " + err.Error()))
			return 1
		}
		return 0
	case "help", "-h", "--help":
		usage()
		return 0
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Println(errorStyle.Render("Error: " + err.Error()))
		fmt.Println(infoStyle.Render(backend.GetServerHelp()))
		return 1
	}

	switch cmd {
	case "analyze":
		opts, err := parseAnalyzeArgs(args[1:])
		if err != nil {
			fmt.Println(errorStyle.Render("Error: " + err.Error()))
			usage()
			return 2
		}
		fmt.Println(titleStyle.Render(ecovisionLogo))
		return runAnalyze(ctx, cfg, opts)
	case "":
		if err := runBoard(cfg); err != nil {
			fmt.Println(errorStyle.Render("Error: " + err.Error()))
			return 1
		}
		fmt.Println(subtitleStyle.Render("\n☀ Thanks for using EcoVision!"))
		return 0
	default:
		fmt.Println(errorStyle.Render("Error: unknown command " + cmd))
		usage()
		return 2
	}
}

// runBoard launches the full-screen UI
func runBoard(cfg *Config) error {
	client, err := backend.NewClientFromEnv()
	if err != nil {
		return err
	}

	state := session.New()
	board := tui.NewBoard()
	cam := camera.NewController(cameraDevice(), state, append(cfg.CameraOptions(), camera.WithPreview(board))...)

	ctl := flow.New(client, board, state,
		flow.WithCamera(cam),
		flow.WithReportDir(cfg.ReportDir),
		flow.WithPreviewMaxDim(cfg.PreviewMaxDim),
	)

	return tui.RunUI(ctl, board,
		tui.WithLocation(cfg.Latitude, cfg.Longitude),
		tui.WithServerURL(client.BaseURL()),
	)
}

// cameraDevice returns the ffmpeg-backed camera, or nil when ffmpeg is missing
func cameraDevice() camera.Device {
	dev := camera.NewFFmpegDeviceFromEnv()
	if err := camera.CheckFFmpeg(dev.Binary); err != nil {
		logging.WithError(err).Warn("camera disabled")
		return nil
	}
	return dev
}

func printVersion() {
	fmt.Printf("ecovision %s\n", version)
	fmt.Printf("  commit: %s\n", commit)
	fmt.Printf("  built:  %s\n", date)
	fmt.Printf("  go:     %s\n", runtime.Version())
	fmt.Printf("  os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `Usage:
  ecovision                 open the interactive board
  ecovision analyze [flags] [image]
                            analyze one image and print the result
      --camera              capture from the camera instead of a file
      --recommend           also fetch an AI recommendation
      --report              also download the PDF report
  ecovision update          update to the latest release
  ecovision -version        print version information
`)
}
