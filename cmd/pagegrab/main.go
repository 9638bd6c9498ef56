package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/pagegrab/pagegrab/internal/config"
	"github.com/pagegrab/pagegrab/internal/detector"
	"github.com/pagegrab/pagegrab/internal/engine"
	"github.com/pagegrab/pagegrab/internal/httpclient"
	"github.com/pagegrab/pagegrab/internal/merge"
	"github.com/pagegrab/pagegrab/internal/models"
	"github.com/pagegrab/pagegrab/internal/parser"
	"github.com/pagegrab/pagegrab/internal/tui"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

// Terminal tasks stay visible this long before the registry drops them.
const terminalGrace = 5 * time.Second

func main() {
	cfg, detect := parseFlags()

	if cfg.ShowVersion {
		fmt.Printf("pagegrab %s (%s)\n", version, commit)
		os.Exit(0)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	var err error
	if detect {
		err = runDetect(ctx, cfg)
	} else {
		err = run(ctx, cfg)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (*config.Config, bool) {
	cfg := config.New()

	var headers headerFlags
	var configFile string
	var detect bool

	flag.StringVar(&cfg.URL, "url", "", "")
	flag.StringVar(&cfg.URL, "u", "", "")
	flag.StringVar(&cfg.FileName, "output", "", "")
	flag.StringVar(&cfg.FileName, "o", "", "")
	flag.StringVar(&cfg.OutputDir, "dir", config.DefaultOutputDir, "")
	flag.StringVar(&cfg.TempDir, "temp-dir", config.DefaultTempDir, "")
	flag.Var(&headers, "header", "")
	flag.Var(&headers, "H", "")
	flag.Int64Var(&cfg.MaxBandwidth, "max-bandwidth", 0, "")
	flag.StringVar(&cfg.MergeCommand, "merge-helper", "", "")
	flag.BoolVar(&detect, "detect", false, "")
	flag.BoolVar(&cfg.NoProgress, "no-progress", false, "")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "")
	flag.BoolVar(&cfg.Verbose, "v", false, "")
	flag.BoolVar(&cfg.ShowVersion, "version", false, "")
	flag.StringVar(&configFile, "config", "pagegrab.yaml", "")

	flag.Usage = printUsage
	flag.Parse()

	if err := cfg.LoadFile(configFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for _, h := range headers {
		parts := strings.SplitN(h, ":", 2)
		if len(parts) == 2 {
			cfg.Headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return cfg, detect
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `pagegrab - Page Video Downloader: HLS stream and media file downloader

Usage: pagegrab [options] -u <URL>

Options:
  -u, --url <URL>            Stream, file or page URL [required]
  -o, --output <name>        Output file name (default: derived from URL)
      --dir <path>           Output directory (default: downloads)
      --temp-dir <path>      Track-file directory shared with the merge helper
  -H, --header <header>      Custom header (repeatable)
      --max-bandwidth <bps>  Bandwidth cap in bytes/sec (default: unlimited)
      --merge-helper <cmd>   External audio/video merge helper command
      --detect               Scan the URL as an HTML page for video sources
      --config <path>        YAML config file (default: pagegrab.yaml)
      --no-progress          Disable TUI progress
  -v, --verbose              Verbose output
      --version              Show version

Examples:
  pagegrab -u https://example.com/stream.m3u8              # HLS capture
  pagegrab -u https://example.com/clip.mp4                 # Direct download
  pagegrab --detect -u https://example.com/watch/12345     # List page videos
`)
}

func runDetect(ctx context.Context, cfg *config.Config) error {
	client := httpclient.New(httpclient.DefaultConfig())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.URL, nil)
	if err != nil {
		return err
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch page: HTTP %d", resp.StatusCode)
	}

	found, err := detector.Detect(resp.Body, cfg.URL)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		fmt.Println("No video sources found")
		return nil
	}

	fmt.Printf("Found %d video source(s):\n", len(found))
	for i, f := range found {
		kind := color.CyanString("%s", f.Format)
		if f.Kind == models.KindSegmented {
			kind = color.YellowString("HLS stream")
		}
		fmt.Printf("  %d. [%s] %s\n", i+1, kind, f.URL)
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config) error {
	client := httpclient.NewWithRateLimit(httpclient.DefaultConfig(), cfg.MaxBandwidth)

	dial := unavailableDialer
	if cfg.MergeCommand != "" {
		pd := &merge.ProcessDialer{Command: cfg.MergeCommand, Args: cfg.MergeArgs}
		dial = pd.Dial
	}
	coordinator := merge.NewCoordinator(dial, &merge.DirMaterializer{Dir: cfg.TempDir})

	tracker := engine.NewTracker(
		parser.New(client, cfg.Headers),
		engine.NewFetcher(client, cfg.Headers),
		coordinator,
		&engine.DirStore{Dir: cfg.OutputDir},
		engine.NewRegistry(terminalGrace),
	)
	defer tracker.Close()

	filename := cfg.FileName
	if filename == "" {
		filename = deriveFilename(cfg.URL)
	}

	segmented := strings.Contains(strings.ToLower(cfg.URL), ".m3u8")
	runTask := func() (*models.DownloadTask, error) {
		if segmented {
			return tracker.RunSegmented(ctx, cfg.URL, filename)
		}
		return tracker.RunDirect(ctx, cfg.URL, filename)
	}

	var err error
	if cfg.NoProgress {
		err = runPlain(tracker, runTask, cfg.Verbose)
	} else {
		err = runTUI(tracker, runTask, cfg.URL)
	}
	if err != nil {
		return err
	}

	if cfg.Verbose {
		artifact := filepath.Join(cfg.OutputDir, engine.SanitizeFilename(filename))
		if data, err := os.ReadFile(artifact); err == nil {
			fmt.Printf("Artifact: %s\n", engine.DescribeArtifact(data))
		}
	}
	return nil
}

// runTUI drives the download under the bubbletea progress view.
func runTUI(tracker *engine.Tracker, runTask func() (*models.DownloadTask, error), streamURL string) error {
	events := tracker.Subscribe()
	model := tui.NewModel(streamURL, events, func() {
		for _, t := range tracker.Registry().Snapshot() {
			tracker.Registry().Cancel(t.ID)
		}
	})
	p := tea.NewProgram(model, tea.WithAltScreen())

	var task *models.DownloadTask
	var taskErr error
	go func() {
		task, taskErr = runTask()
		p.Send(tui.DoneMsg{Err: taskErr})
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	if taskErr != nil {
		return taskErr
	}
	printResult(task)
	return nil
}

// runPlain drives the download with an mpb progress bar, for terminals and
// scripts that cannot host the TUI.
func runPlain(tracker *engine.Tracker, runTask func() (*models.DownloadTask, error), verbose bool) error {
	events := tracker.Subscribe()
	pbp := mpb.New(mpb.WithAutoRefresh(), mpb.WithOutput(color.Output))
	bar := pbp.AddBar(100,
		mpb.PrependDecorators(decor.Name("downloading"), decor.Percentage(decor.WCSyncSpace)),
		mpb.AppendDecorators(decor.Elapsed(decor.ET_STYLE_GO)),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			bar.SetCurrent(int64(ev.Progress))
			if verbose && ev.Message != "" {
				fmt.Fprintln(pbp, ev.Message)
			}
		}
	}()

	task, err := runTask()
	tracker.Close()
	<-done
	if err != nil {
		bar.Abort(true)
	}
	pbp.Shutdown()

	if err != nil {
		return err
	}
	printResult(task)
	return nil
}

func printResult(task *models.DownloadTask) {
	switch task.Stage {
	case models.StageCancelled:
		color.Yellow("Cancelled")
	case models.StageCompleted:
		color.Green("✓ Saved %s (%d bytes)", task.Filename, task.ResultSize)
	}
}

func deriveFilename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || path.Base(u.Path) == "/" || path.Base(u.Path) == "." {
		return "output.mp4"
	}
	name := path.Base(u.Path)
	if strings.HasSuffix(strings.ToLower(name), ".m3u8") {
		name = strings.TrimSuffix(name, path.Ext(name)) + ".mp4"
	}
	return name
}

func unavailableDialer(context.Context) (io.ReadWriteCloser, error) {
	return nil, fmt.Errorf("no merge helper configured")
}

// headerFlags implements flag.Value for repeatable header flags
type headerFlags []string

func (h *headerFlags) String() string {
	return strings.Join(*h, ", ")
}

func (h *headerFlags) Set(value string) error {
	*h = append(*h, value)
	return nil
}
