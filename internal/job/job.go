// Package job defines the Job entity and its lifecycle Status, shared
// between the store, worker pool, reaper and HTTP adapter.
package job

import "time"

// Job is a snapshot of one row of the jobs table.
//
// Job values returned by the store represent authoritative state at the
// time of the read; mutating them does not affect storage. All
// transitions go through store.Store.
type Job struct {
	ID string

	Status Status
	Text   string

	ResultChars *int
	Attempts    uint32
	LastError   *string

	ProcessingBy *string
	LeaseUntil   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// View is the user-visible projection of a Job returned to API callers.
// It omits Text (never echoed back) and internal lease bookkeeping.
type View struct {
	ID           string     `json:"job_id"`
	Status       Status     `json:"status"`
	ResultChars  *int       `json:"characters,omitempty"`
	Attempts     uint32     `json:"attempts"`
	LastError    *string    `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// View projects a Job to its API-visible form.
func (j *Job) View() View {
	return View{
		ID:          j.ID,
		Status:      j.Status,
		ResultChars: j.ResultChars,
		Attempts:    j.Attempts,
		LastError:   j.LastError,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}
