package pagegrab

import (
	"github.com/pagegrab/pagegrab/internal/engine"
	"github.com/pagegrab/pagegrab/internal/models"
)

// Task stages, in lifecycle order.
const (
	StageParsing     = "parsing"
	StageSelecting   = "selecting"
	StageDownloading = "downloading"
	StageMerging     = "merging"
	StageSaving      = "saving"
	StageCompleted   = "completed"
	StageError       = "error"
	StageCancelled   = "cancelled"
)

// Task is a snapshot of one tracked download.
type Task struct {
	ID       string
	URL      string
	Filename string
	Stage    string

	Progress      int // 0-100, monotonic non-decreasing
	SegmentsDone  int
	SegmentsTotal int

	Size int64  // set once completed
	Err  string // set once errored
}

// Terminal reports whether the task has finished, successfully or not.
func (t Task) Terminal() bool {
	return t.Stage == StageCompleted || t.Stage == StageError || t.Stage == StageCancelled
}

// newTask converts a registry record copy to the public snapshot type. The
// caller passes a value copy taken under the registry lock, never a live
// record a run goroutine may still be mutating.
func newTask(t models.DownloadTask) Task {
	return Task{
		ID:            t.ID,
		URL:           t.URL,
		Filename:      t.Filename,
		Stage:         string(t.Stage),
		Progress:      t.ProgressPercent,
		SegmentsDone:  t.SegmentsCompleted,
		SegmentsTotal: t.TotalUnits(),
		Size:          t.ResultSize,
		Err:           t.ErrorMessage,
	}
}

// Event is one progress notification from a running task.
type Event struct {
	TaskID        string
	Stage         string
	Progress      int
	Message       string
	Segment       int
	TotalSegments int
	Size          int64
}

func newEvent(ev engine.Event) Event {
	return Event{
		TaskID:        ev.TaskID,
		Stage:         string(ev.Stage),
		Progress:      ev.Progress,
		Message:       ev.Message,
		Segment:       ev.Segment,
		TotalSegments: ev.TotalSegments,
		Size:          ev.Size,
	}
}
