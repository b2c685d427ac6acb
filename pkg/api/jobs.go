package api

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chenBenjamin97/agrisentry/pkg/dataset"
	"github.com/chenBenjamin97/agrisentry/pkg/failure"
)

//JobStatus is the lifecycle state of a dataset build started through the API
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

//Job is a dataset build started through the API
type Job struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Locator   string          `json:"locator"`
	FramesDir string          `json:"frames_dir"`
	Status    JobStatus       `json:"status"`
	Kind      failure.Kind    `json:"kind,omitempty"`
	Error     string          `json:"error,omitempty"`
	Result    *dataset.Result `json:"result,omitempty"`
	Created   time.Time       `json:"created"`
	Finished  *time.Time      `json:"finished,omitempty"`
}

//jobRegistry keeps every job of the server's lifetime in memory and the frames directories currently being written
type jobRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	busy map[string]string //frames dir -> job id
}

func newJobRegistry() *jobRegistry {
	return &jobRegistry{jobs: make(map[string]*Job), busy: make(map[string]string)}
}

//start registers a new running job, unless another running job writes to the same frames directory
func (r *jobRegistry) start(name, locator, framesDir string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.busy[framesDir]; taken {
		return nil, false
	}

	job := &Job{
		ID:        uuid.NewString(),
		Name:      name,
		Locator:   locator,
		FramesDir: framesDir,
		Status:    JobRunning,
		Created:   time.Now().UTC(),
	}
	r.jobs[job.ID] = job
	r.busy[framesDir] = job.ID
	return job, true
}

func (r *jobRegistry) finish(id string, res *dataset.Result, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return
	}
	now := time.Now().UTC()
	job.Finished = &now
	if err != nil {
		job.Status = JobFailed
		job.Kind = failure.KindOf(err)
		job.Error = err.Error()
	} else {
		job.Status = JobSucceeded
		job.Result = res
	}
	delete(r.busy, job.FramesDir)
}

//get returns a copy of the job so callers can read it without holding the lock
func (r *jobRegistry) get(id string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}
