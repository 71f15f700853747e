package sqlite

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/charq/charq/internal/job"
)

type jobModel struct {
	bun.BaseModel `bun:"table:jobs"`

	ID   string `bun:"id,pk,type:text"`
	Text string `bun:"text,notnull"`

	Status      job.Status `bun:"status,notnull"`
	ResultChars *int       `bun:"result_chars,nullzero"`
	Attempts    uint32     `bun:"attempts,notnull,default:0"`
	LastError   *string    `bun:"last_error,nullzero"`

	ProcessingBy *string    `bun:"processing_by,nullzero"`
	LeaseUntil   *time.Time `bun:"lease_until,nullzero"`

	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func (m *jobModel) toJob() *job.Job {
	return &job.Job{
		ID:           m.ID,
		Status:       m.Status,
		Text:         m.Text,
		ResultChars:  m.ResultChars,
		Attempts:     m.Attempts,
		LastError:    m.LastError,
		ProcessingBy: m.ProcessingBy,
		LeaseUntil:   m.LeaseUntil,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
