package storage

import (
	"context"
	"time"

	"github.com/FranksOps/howto/internal/domain"
	"github.com/google/uuid"
)

// Record is one delivered result of a query, kept for the history command.
type Record struct {
	ID          string    `json:"id"`
	Query       string    `json:"query"`
	Position    int       `json:"position"`
	Link        string    `json:"link"`
	FullText    string    `json:"full_text"`
	Instruction string    `json:"instruction"`
	Error       string    `json:"error,omitempty"` // non-empty for error items
	CreatedAt   time.Time `json:"created_at"`
}

// NewRecord converts the position-th result of query into a Record. Every
// result of one search shares ranAt, so Position orders them within the run.
func NewRecord(query string, position int, ranAt time.Time, res domain.Result) *Record {
	r := &Record{
		ID:        uuid.New().String(),
		Query:     query,
		Position:  position,
		CreatedAt: ranAt.UTC(),
	}
	if res.Err != nil {
		r.Error = res.Err.Error()
		return r
	}
	r.Link = res.Answer.Link
	r.FullText = res.Answer.FullText
	r.Instruction = res.Answer.Instruction
	return r
}

// Answer returns the record as an Answer. ok is false for error records.
func (r *Record) Answer() (domain.Answer, bool) {
	if r.Error != "" {
		return domain.Answer{}, false
	}
	return domain.Answer{Link: r.Link, FullText: r.FullText, Instruction: r.Instruction}, true
}

// Filter allows querying for specific Records.
type Filter struct {
	Query  string
	Link   string
	Since  *time.Time
	Limit  int
	Offset int
}

// Backend defines the interface for storing and querying records.
// Query returns newest first, ties broken by ascending Position.
type Backend interface {
	Save(ctx context.Context, record *Record) error
	Query(ctx context.Context, filter Filter) ([]*Record, error)
	Close() error
}
