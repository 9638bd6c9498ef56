package merge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pagegrab/pagegrab/internal/models"
)

// Fixed protocol timeouts. Not configurable per task.
const (
	probeTimeout = 3 * time.Second
	mergeTimeout = 300 * time.Second
)

// Sentinel errors. ErrUnavailable is user-actionable (the merge helper needs
// configuring) and must stay distinguishable from transient failures.
var (
	ErrUnavailable = errors.New("merge service unavailable: the native merge helper is not configured")
	ErrTimeout     = errors.New("merge service timed out")
)

// ServiceError is a failure reported by the merge service itself.
type ServiceError struct {
	Reason string
}

func (e *ServiceError) Error() string { return "merge service: " + e.Reason }

// DialFunc opens a fresh bidirectional channel to the merge service. The
// coordinator opens one channel per call and closes it when done; channels
// are never pooled.
type DialFunc func(ctx context.Context) (io.ReadWriteCloser, error)

// Progress checkpoint phases emitted during resolution.
const (
	PhasePreparing = "preparing"
	PhaseMerging   = "merging"
	PhaseCompleted = "completed"
	PhaseError     = "error"
)

// Progress is a fixed checkpoint during merge resolution.
type Progress struct {
	Phase   string
	Percent int
	Message string
}

// ProgressFunc receives resolution checkpoints. It may be nil.
type ProgressFunc func(Progress)

// Outcome is the result of resolving downloaded material into one artifact.
// Either Data holds the artifact bytes (concatenation path) or OutputPath
// points at the file the merge service produced.
type Outcome struct {
	Merged     bool
	Data       []byte
	OutputPath string
	Size       int64
}

// Coordinator resolves downloaded tracks into a single artifact.
type Coordinator struct {
	dial DialFunc
	mat  Materializer

	// overridable in tests
	probeTimeout time.Duration
	mergeTimeout time.Duration
}

// NewCoordinator creates a coordinator that reaches the merge service through
// dial and hands track files over through mat.
func NewCoordinator(dial DialFunc, mat Materializer) *Coordinator {
	return &Coordinator{
		dial:         dial,
		mat:          mat,
		probeTimeout: probeTimeout,
		mergeTimeout: mergeTimeout,
	}
}

// Resolve turns fetched segment bodies into one artifact.
//
// Without audio the video chunks are concatenated in order; that is valid
// only because such streams carry multiplexed audio+video in every segment.
// With a separate audio track the service is probed first and the merge is
// delegated to it; when the service is unavailable the call fails with
// ErrUnavailable — producing two separate files is the caller's decision,
// never this layer's.
func (c *Coordinator) Resolve(ctx context.Context, video, audio [][]byte, outputName string, progress ProgressFunc) (*Outcome, error) {
	if len(audio) == 0 {
		return c.concatenate(video, progress), nil
	}

	report(progress, Progress{Phase: PhasePreparing, Percent: 10, Message: "Checking merge service..."})
	if !c.Probe(ctx) {
		report(progress, Progress{Phase: PhaseError, Percent: 0, Message: ErrUnavailable.Error()})
		return nil, ErrUnavailable
	}

	videoPath, audioPath, err := c.materializeTracks(ctx, video, audio, outputName, progress)
	if err != nil {
		report(progress, Progress{Phase: PhaseError, Percent: 0, Message: err.Error()})
		return nil, err
	}

	report(progress, Progress{Phase: PhaseMerging, Percent: 50, Message: "Merging audio and video..."})
	resp, err := c.callMerge(ctx, videoPath, audioPath, outputName)
	if err != nil {
		report(progress, Progress{Phase: PhaseError, Percent: 0, Message: err.Error()})
		return nil, err
	}

	report(progress, Progress{Phase: PhaseCompleted, Percent: 100, Message: "Merge completed"})
	return &Outcome{
		Merged:     true,
		OutputPath: resp.OutputPath,
		Size:       resp.Size,
	}, nil
}

// Probe asks the service whether it is alive. Any timeout, disconnect or
// negative reply means unavailable.
func (c *Coordinator) Probe(ctx context.Context) bool {
	conn, err := c.dial(ctx)
	if err != nil {
		return false
	}
	defer conn.Close()

	if err := writeFrame(conn, models.MergeRequest{Action: models.MergeActionPing}); err != nil {
		return false
	}

	type reply struct {
		resp models.MergeResponse
		err  error
	}
	ch := make(chan reply, 1)
	go func() {
		var r models.MergeResponse
		err := readFrame(conn, &r)
		ch <- reply{r, err}
	}()

	select {
	case r := <-ch:
		return r.err == nil && r.resp.Success
	case <-time.After(c.probeTimeout):
		return false
	case <-ctx.Done():
		return false
	}
}

func (c *Coordinator) concatenate(video [][]byte, progress ProgressFunc) *Outcome {
	report(progress, Progress{Phase: PhaseMerging, Percent: 50, Message: "Merging segments..."})

	var size int64
	for _, chunk := range video {
		size += int64(len(chunk))
	}
	data := make([]byte, 0, size)
	for _, chunk := range video {
		data = append(data, chunk...)
	}

	report(progress, Progress{Phase: PhaseCompleted, Percent: 100, Message: "Segments merged"})
	return &Outcome{Data: data, Size: size}
}

func (c *Coordinator) materializeTracks(ctx context.Context, video, audio [][]byte, outputName string, progress ProgressFunc) (videoPath, audioPath string, err error) {
	videoPath, err = c.mat.Materialize(ctx, tempName(outputName, "_VIDEO_TEMP.mp4"), flatten(video))
	if err != nil {
		return "", "", fmt.Errorf("materialize video track: %w", err)
	}
	audioPath, err = c.mat.Materialize(ctx, tempName(outputName, "_AUDIO_TEMP.m4a"), flatten(audio))
	if err != nil {
		return "", "", fmt.Errorf("materialize audio track: %w", err)
	}
	return videoPath, audioPath, nil
}

// callMerge opens a fresh channel, sends the merge request and waits for the
// single response. A disconnect before any response becomes a synthetic
// failure reason; silence beyond the merge timeout becomes ErrTimeout.
func (c *Coordinator) callMerge(ctx context.Context, videoPath, audioPath, outputName string) (*models.MergeResponse, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect merge service: %w", err)
	}
	defer conn.Close()

	req := models.MergeRequest{
		Action:         models.MergeActionMerge,
		VideoPath:      videoPath,
		AudioPath:      audioPath,
		OutputFilename: outputName,
	}
	if err := writeFrame(conn, req); err != nil {
		return nil, fmt.Errorf("send merge request: %w", err)
	}

	type reply struct {
		resp models.MergeResponse
		err  error
	}
	ch := make(chan reply, 1)
	go func() {
		var r models.MergeResponse
		err := readFrame(conn, &r)
		ch <- reply{r, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, &ServiceError{Reason: "merge service disconnected"}
		}
		if !r.resp.Success {
			reason := r.resp.Error
			if reason == "" {
				reason = "merge failed"
			}
			return nil, &ServiceError{Reason: reason}
		}
		return &r.resp, nil
	case <-time.After(c.mergeTimeout):
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func report(fn ProgressFunc, p Progress) {
	if fn != nil {
		fn(p)
	}
}

func flatten(chunks [][]byte) []byte {
	var n int
	for _, c := range chunks {
		n += len(c)
	}
	out := make([]byte, 0, n)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// tempName derives a track-file name from the desired output name, mirroring
// the service's expectation that both tracks sit next to the final artifact.
func tempName(outputName, suffix string) string {
	base := outputName
	for _, ext := range []string{".mp4", ".webm", ".mkv", ".ts"} {
		if strings.HasSuffix(strings.ToLower(base), ext) {
			base = base[:len(base)-len(ext)]
			break
		}
	}
	return base + suffix
}
