package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pagegrab/pagegrab/internal/merge"
	"github.com/pagegrab/pagegrab/internal/models"
	"github.com/pagegrab/pagegrab/internal/parser"
)

// ManifestParser turns a playlist URL into a parsed manifest.
type ManifestParser interface {
	Parse(ctx context.Context, manifestURL string) (*models.Manifest, error)
}

// Merger resolves fetched tracks into a single artifact.
type Merger interface {
	Resolve(ctx context.Context, video, audio [][]byte, outputName string, progress merge.ProgressFunc) (*merge.Outcome, error)
}

// ErrNoSegments means a media playlist resolved to an empty segment list.
var ErrNoSegments = errors.New("playlist contains no segments")

// Tracker runs download tasks end-to-end and owns their records. Each task
// moves through parsing, selecting (master manifests only), downloading,
// merging and saving; every transition and progress change is published to
// subscribers as an Event.
type Tracker struct {
	parser  ManifestParser
	fetcher *Fetcher
	merger  Merger
	store   Store
	reg     *Registry
	bus     eventBus
}

// NewTracker wires a tracker from its collaborators.
func NewTracker(p ManifestParser, f *Fetcher, m Merger, s Store, reg *Registry) *Tracker {
	return &Tracker{parser: p, fetcher: f, merger: m, store: s, reg: reg}
}

// Registry exposes the task records for inspection and cancellation.
func (tr *Tracker) Registry() *Registry { return tr.reg }

// Subscribe returns a channel of task events. Slow consumers lose
// intermediate events rather than stalling downloads.
func (tr *Tracker) Subscribe() <-chan Event { return tr.bus.subscribe() }

// Close shuts the event bus down. Pending tasks keep running but their events
// are dropped.
func (tr *Tracker) Close() { tr.bus.close() }

// RunSegmented captures an HLS stream: parse the manifest, pick the best
// variant when it is a master, fetch every segment strictly in order, resolve
// video and audio into one artifact and save it. The returned task is already
// registered; the error mirrors the task's terminal error state.
func (tr *Tracker) RunSegmented(ctx context.Context, manifestURL, filename string) (*models.DownloadTask, error) {
	task := tr.reg.Create(models.KindSegmented, manifestURL, filename)
	tr.emit(task, "Parsing playlist...")

	videoSegs, audioSegs, err := tr.resolveSegments(ctx, task, manifestURL)
	if err != nil {
		return task, tr.fail(task, err)
	}
	if len(videoSegs) == 0 {
		return task, tr.fail(task, ErrNoSegments)
	}

	tr.reg.update(task, func(t *models.DownloadTask) {
		t.VideoSegmentsTotal = len(videoSegs)
		t.AudioSegmentsTotal = len(audioSegs)
	})
	tr.setStage(task, models.StageDownloading, fmt.Sprintf("Downloading %d segments...", task.TotalUnits()))

	video, err := tr.fetcher.FetchAll(ctx, videoSegs, func(completed, _ int) {
		tr.segmentDone(task, completed)
	})
	if err != nil {
		return task, tr.fail(task, err)
	}

	var audio [][]byte
	if len(audioSegs) > 0 {
		audio, err = tr.fetcher.FetchAll(ctx, audioSegs, func(completed, _ int) {
			tr.segmentDone(task, len(videoSegs)+completed)
		})
		if err != nil {
			return task, tr.fail(task, err)
		}
	}

	tr.setStage(task, models.StageMerging, "Merging tracks...")
	outcome, err := tr.merger.Resolve(ctx, video, audio, task.Filename, func(p merge.Progress) {
		if p.Phase == merge.PhaseError {
			return // the terminal error event carries the failure
		}
		tr.emit(task, p.Message)
	})
	if err != nil {
		return task, tr.fail(task, err)
	}

	// Cancellation is cooperative: requests land while downloading and are
	// honored here, before anything is saved.
	if tr.reg.isCancelled(task.ID) {
		tr.finish(task, models.StageCancelled, "Download cancelled")
		return task, nil
	}

	tr.setStage(task, models.StageSaving, "Saving...")
	if outcome.Merged {
		tr.reg.update(task, func(t *models.DownloadTask) { t.ResultSize = outcome.Size })
	} else {
		_, size, err := tr.store.Save(task.Filename, outcome.Data)
		if err != nil {
			return task, tr.fail(task, err)
		}
		tr.reg.update(task, func(t *models.DownloadTask) { t.ResultSize = size })
	}

	tr.reg.update(task, func(t *models.DownloadTask) { t.ProgressPercent = 100 })
	tr.finish(task, models.StageCompleted, "Download completed")
	return task, nil
}

// resolveSegments parses the manifest and, for master playlists, selects the
// variant and resolves its media playlists down to segment lists.
func (tr *Tracker) resolveSegments(ctx context.Context, task *models.DownloadTask, manifestURL string) (video, audio []*models.Segment, err error) {
	manifest, err := tr.parser.Parse(ctx, manifestURL)
	if err != nil {
		return nil, nil, err
	}

	if !manifest.IsMaster() {
		return manifest.Leaf.Segments, nil, nil
	}

	tr.setStage(task, models.StageSelecting, "Selecting quality...")
	variant, audioTrack, err := SelectVariant(manifest.Master)
	if err != nil {
		return nil, nil, err
	}
	tr.emit(task, fmt.Sprintf("Selected %s", variant.ResolutionLabel()))

	variantManifest, err := tr.parser.Parse(ctx, variant.URL)
	if err != nil {
		return nil, nil, err
	}
	if variantManifest.IsMaster() {
		return nil, nil, parser.ErrNestedMaster
	}
	video = variantManifest.Leaf.Segments

	if audioTrack != nil {
		audioManifest, err := tr.parser.Parse(ctx, audioTrack.URL)
		if err != nil {
			return nil, nil, err
		}
		if audioManifest.IsMaster() {
			return nil, nil, parser.ErrNestedMaster
		}
		audio = audioManifest.Leaf.Segments
	}
	return video, audio, nil
}

func (tr *Tracker) segmentDone(task *models.DownloadTask, completed int) {
	tr.reg.update(task, func(t *models.DownloadTask) { t.SegmentsCompleted = completed })
	tr.bumpProgress(task, completed*100/task.TotalUnits())
	tr.bus.publish(Event{
		TaskID:        task.ID,
		Stage:         task.Stage,
		Progress:      task.ProgressPercent,
		Message:       fmt.Sprintf("Segment %d/%d", completed, task.TotalUnits()),
		Segment:       completed,
		TotalSegments: task.TotalUnits(),
	})
}

// bumpProgress enforces the monotonic progress invariant: a task's percent
// never goes backwards, whatever a sub-operation reports.
func (tr *Tracker) bumpProgress(task *models.DownloadTask, percent int) {
	tr.reg.update(task, func(t *models.DownloadTask) {
		if percent > t.ProgressPercent {
			t.ProgressPercent = percent
		}
	})
}

func (tr *Tracker) setStage(task *models.DownloadTask, stage models.Stage, msg string) {
	tr.reg.setStage(task, stage)
	tr.emit(task, msg)
}

func (tr *Tracker) emit(task *models.DownloadTask, msg string) {
	tr.bus.publish(Event{
		TaskID:        task.ID,
		Stage:         task.Stage,
		Progress:      task.ProgressPercent,
		Message:       msg,
		Segment:       task.SegmentsCompleted,
		TotalSegments: task.TotalUnits(),
		Size:          task.ResultSize,
	})
}

func (tr *Tracker) finish(task *models.DownloadTask, stage models.Stage, msg string) {
	tr.reg.update(task, func(t *models.DownloadTask) {
		t.Stage = stage
		t.FinishedAt = time.Now()
	})
	tr.emit(task, msg)
	tr.reg.retire(task.ID)
}

// fail moves the task to the error stage. Progress retains its last good
// value so a UI does not snap a mostly-complete bar back to zero.
func (tr *Tracker) fail(task *models.DownloadTask, err error) error {
	tr.reg.update(task, func(t *models.DownloadTask) { t.ErrorMessage = err.Error() })
	tr.finish(task, models.StageError, err.Error())
	return err
}
