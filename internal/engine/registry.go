package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pagegrab/pagegrab/internal/models"
)

// Registry owns the live task records. It is an explicit object passed to
// collaborators rather than ambient shared state; terminal records linger for
// a grace period so a UI can show the final state, then disappear.
type Registry struct {
	mu        sync.Mutex
	tasks     map[string]*models.DownloadTask
	cancelled map[string]bool
	grace     time.Duration
}

// NewRegistry creates a task registry. Terminal tasks are discarded grace
// after finishing.
func NewRegistry(grace time.Duration) *Registry {
	return &Registry{
		tasks:     make(map[string]*models.DownloadTask),
		cancelled: make(map[string]bool),
		grace:     grace,
	}
}

// Create registers a new task in the parsing stage.
func (r *Registry) Create(kind models.TaskKind, url, filename string) *models.DownloadTask {
	t := &models.DownloadTask{
		ID:        uuid.New().String(),
		Kind:      kind,
		URL:       url,
		Filename:  filename,
		Stage:     models.StageParsing,
		StartedAt: time.Now(),
	}
	r.mu.Lock()
	r.tasks[t.ID] = t
	r.mu.Unlock()
	return t
}

// Get returns the task with the given id, or nil.
func (r *Registry) Get(id string) *models.DownloadTask {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tasks[id]
}

// Cancel requests cooperative cancellation. It only takes when the task is
// downloading; in-flight segment fetches and merge calls run to their own
// completion, and the request is honored at the pre-save boundary.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.Stage != models.StageDownloading {
		return false
	}
	r.cancelled[id] = true
	return true
}

// setStage moves a task to a new stage under the registry lock, so Cancel's
// stage check never races a transition.
func (r *Registry) setStage(t *models.DownloadTask, stage models.Stage) {
	r.mu.Lock()
	t.Stage = stage
	r.mu.Unlock()
}

// update applies a mutation to a task record under the registry lock. All
// field writes after task creation go through here or setStage, so Snapshot
// readers never observe a half-written record.
func (r *Registry) update(t *models.DownloadTask, fn func(*models.DownloadTask)) {
	r.mu.Lock()
	fn(t)
	r.mu.Unlock()
}

// Snapshot returns value copies of all live tasks, taken under the registry
// lock. Safe to call from any goroutine while tasks are running.
func (r *Registry) Snapshot() []models.DownloadTask {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.DownloadTask, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, *t)
	}
	return out
}

func (r *Registry) isCancelled(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled[id]
}

// retire schedules a terminal task's removal after the grace period.
func (r *Registry) retire(id string) {
	time.AfterFunc(r.grace, func() {
		r.mu.Lock()
		delete(r.tasks, id)
		delete(r.cancelled, id)
		r.mu.Unlock()
	})
}
