package domain

import (
	"errors"
	"fmt"
	"time"
)

type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobClaimed JobStatus = "claimed"
	JobDone    JobStatus = "done"

	// The referenced record was gone when the job was claimed.
	// Cancelled jobs are never retried.
	JobCancelled JobStatus = "cancelled"
)

func (js JobStatus) String() string {
	return string(js)
}

func AsJobStatus(s string) (JobStatus, error) {
	switch s {
	case string(JobQueued):
		return JobQueued, nil
	case string(JobClaimed):
		return JobClaimed, nil
	case string(JobDone):
		return JobDone, nil
	case string(JobCancelled):
		return JobCancelled, nil
	default:
		return "", fmt.Errorf("'%s' is not JobStatus", s)
	}
}

func (js JobStatus) Live() bool {
	return js == JobQueued || js == JobClaimed
}

// Job is a claim check: a reference to a WorkRecord queued for execution.
//
// It carries no business payload. Workers re-read the record (and its
// approval) at execution time, so the queue schema never chases the
// business schema.
type Job struct {
	Id       string
	RecordId string
	Kind     RecordType

	Status JobStatus

	// Times this job was handed to a worker so far.
	Attempts int

	// Earliest time a worker may claim this job again.
	NextAttemptAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (j *Job) Equal(o *Job) bool {
	if (j == nil) || (o == nil) {
		return (j == nil) && (o == nil)
	}
	return j.Id == o.Id &&
		j.RecordId == o.RecordId &&
		j.Kind == o.Kind &&
		j.Status == o.Status &&
		j.Attempts == o.Attempts
}

var (
	// a live (queued or claimed) job already references the record.
	ErrJobAlreadyExists = errors.New("a live job already references the work record")

	// enqueue was attempted for a record whose approval is not "approved".
	// This is a programming error: only the approval transition enqueues.
	ErrJobNotApproved = errors.New("cannot enqueue a job for a non-approved record")
)

// JobCursor points the execution loop at its next candidate.
type JobCursor struct {
	// Id of the job picked at last time.
	Head string

	// kinds of jobs to pick. Empty means "any".
	Kind []RecordType
}

func (c JobCursor) Equal(o JobCursor) bool {
	if c.Head != o.Head || len(c.Kind) != len(o.Kind) {
		return false
	}
	for i := range c.Kind {
		if c.Kind[i] != o.Kind[i] {
			return false
		}
	}
	return true
}
