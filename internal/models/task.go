package models

import "time"

// TaskKind distinguishes single-file downloads from segmented (HLS) captures.
type TaskKind string

const (
	KindDirect    TaskKind = "direct"
	KindSegmented TaskKind = "segmented"
)

// Stage is the lifecycle state of a download task.
type Stage string

const (
	StageParsing     Stage = "parsing"
	StageSelecting   Stage = "selecting"
	StageDownloading Stage = "downloading"
	StageMerging     Stage = "merging"
	StageSaving      Stage = "saving"
	StageCompleted   Stage = "completed"
	StageError       Stage = "error"
	StageCancelled   Stage = "cancelled"
)

func (s Stage) String() string { return string(s) }

// Terminal reports whether no further transitions are possible.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageError || s == StageCancelled
}

// DownloadTask is one end-to-end tracked download. It is owned exclusively by
// the task tracker: created at task start, mutated only through stage
// callbacks of its owned sub-operations, and discarded after a grace period
// once terminal.
type DownloadTask struct {
	ID       string
	Kind     TaskKind
	URL      string
	Filename string
	Stage    Stage

	VideoSegmentsTotal int
	AudioSegmentsTotal int
	SegmentsCompleted  int

	// ProgressPercent is monotonic non-decreasing within a task; on error it
	// retains the last good value.
	ProgressPercent int

	ErrorMessage string // set only in the error stage
	ResultSize   int64  // set only in the completed stage

	StartedAt  time.Time
	FinishedAt time.Time
}

// TotalUnits is the combined count of video and audio segments used for
// progress accounting. Audio units count only when a separate audio track is
// being fetched.
func (t *DownloadTask) TotalUnits() int {
	return t.VideoSegmentsTotal + t.AudioSegmentsTotal
}
