// Package pagegrab downloads videos discovered on web pages: segmented HLS
// streams with separate audio/video merge support, and plain media files.
//
// Basic usage:
//
//	d, err := pagegrab.New(
//		pagegrab.WithURL("https://example.com/stream.m3u8"),
//		pagegrab.WithFileName("video.mp4"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer d.Close()
//
//	task, err := d.Run(ctx)
//
// Or use the convenience function:
//
//	err := pagegrab.DownloadURL(ctx, "https://example.com/stream.m3u8", "video.mp4")
package pagegrab

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/pagegrab/pagegrab/internal/config"
	"github.com/pagegrab/pagegrab/internal/engine"
	"github.com/pagegrab/pagegrab/internal/httpclient"
	"github.com/pagegrab/pagegrab/internal/merge"
	"github.com/pagegrab/pagegrab/internal/parser"
)

// Terminal tasks stay queryable this long before being discarded.
const terminalGrace = 5 * time.Second

// Downloader is the main API for capturing page videos.
type Downloader struct {
	cfg     *config.Config
	tracker *engine.Tracker
}

// Option configures the downloader.
type Option func(*config.Config)

// New creates a new Downloader with the given options.
func New(opts ...Option) (*Downloader, error) {
	cfg := config.New()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := httpclient.NewWithRateLimit(httpclient.DefaultConfig(), cfg.MaxBandwidth)

	var dial merge.DialFunc
	if cfg.MergeCommand != "" {
		pd := &merge.ProcessDialer{Command: cfg.MergeCommand, Args: cfg.MergeArgs}
		dial = pd.Dial
	} else {
		dial = func(context.Context) (io.ReadWriteCloser, error) { return nil, merge.ErrUnavailable }
	}

	tracker := engine.NewTracker(
		parser.New(client, cfg.Headers),
		engine.NewFetcher(client, cfg.Headers),
		merge.NewCoordinator(dial, &merge.DirMaterializer{Dir: cfg.TempDir}),
		&engine.DirStore{Dir: cfg.OutputDir},
		engine.NewRegistry(terminalGrace),
	)

	return &Downloader{cfg: cfg, tracker: tracker}, nil
}

// WithURL sets the stream, file or page URL (required).
func WithURL(url string) Option {
	return func(c *config.Config) { c.URL = url }
}

// WithFileName sets the output file name.
func WithFileName(filename string) Option {
	return func(c *config.Config) { c.FileName = filename }
}

// WithDir sets the output directory.
func WithDir(dir string) Option {
	return func(c *config.Config) { c.OutputDir = dir }
}

// WithTempDir sets the track-file directory shared with the merge helper.
func WithTempDir(dir string) Option {
	return func(c *config.Config) { c.TempDir = dir }
}

// WithHeaders sets custom HTTP headers for requests.
func WithHeaders(headers map[string]string) Option {
	return func(c *config.Config) {
		for k, v := range headers {
			c.Headers[k] = v
		}
	}
}

// WithHeader adds a single HTTP header.
func WithHeader(key, value string) Option {
	return func(c *config.Config) { c.Headers[key] = value }
}

// WithMaxBandwidth sets maximum download speed in bytes per second.
// Set to 0 for unlimited (default).
func WithMaxBandwidth(bytesPerSec int64) Option {
	return func(c *config.Config) { c.MaxBandwidth = bytesPerSec }
}

// WithMergeHelper configures the external audio/video merge helper command.
// Without one, streams that need a merge fail rather than produce two files.
func WithMergeHelper(command string, args ...string) Option {
	return func(c *config.Config) {
		c.MergeCommand = command
		c.MergeArgs = args
	}
}

// Events returns a channel of task progress events. Subscribe before calling
// Run; slow consumers lose intermediate events rather than stalling downloads.
// The channel closes when the downloader does.
func (d *Downloader) Events() <-chan Event {
	src := d.tracker.Subscribe()
	ch := make(chan Event, 100)
	go func() {
		defer close(ch)
		for ev := range src {
			ch <- newEvent(ev)
		}
	}()
	return ch
}

// Cancel requests cooperative cancellation of a running task. It only takes
// while the task is downloading.
func (d *Downloader) Cancel(taskID string) bool {
	return d.tracker.Registry().Cancel(taskID)
}

// Tasks returns a snapshot of all live tasks. Safe to call while downloads
// are running; each record is copied under the registry lock.
func (d *Downloader) Tasks() []Task {
	live := d.tracker.Registry().Snapshot()
	out := make([]Task, len(live))
	for i, t := range live {
		out[i] = newTask(t)
	}
	return out
}

// Run downloads the configured URL and blocks until the task reaches a
// terminal state. URLs containing ".m3u8" are captured as segmented HLS
// streams; anything else is fetched as a single file.
func (d *Downloader) Run(ctx context.Context) (Task, error) {
	filename := d.cfg.FileName
	if filename == "" {
		filename = "output.mp4"
	}

	if strings.Contains(strings.ToLower(d.cfg.URL), ".m3u8") {
		t, err := d.tracker.RunSegmented(ctx, d.cfg.URL, filename)
		return newTask(*t), err
	}
	t, err := d.tracker.RunDirect(ctx, d.cfg.URL, filename)
	return newTask(*t), err
}

// Close releases the downloader's event bus. Always call Close when done,
// preferably with defer.
func (d *Downloader) Close() error {
	d.tracker.Close()
	return nil
}

// DownloadURL is a convenience function for simple downloads.
func DownloadURL(ctx context.Context, url, filename string, opts ...Option) error {
	allOpts := append([]Option{
		WithURL(url),
		WithFileName(filename),
	}, opts...)

	d, err := New(allOpts...)
	if err != nil {
		return err
	}
	defer d.Close()

	_, err = d.Run(ctx)
	return err
}
