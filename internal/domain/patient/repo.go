package patient

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("patient not found")
	ErrDuplicateKey = errors.New("patient id already exists")
)

// RecordStore holds the current document of every patient, keyed by id.
type RecordStore interface {
	// Insert fails with ErrDuplicateKey when the id is taken.
	Insert(ctx context.Context, p *Patient) error
	// FindOne fails with ErrNotFound when no document has the id.
	FindOne(ctx context.Context, id int64) (*Patient, error)
	// Replace overwrites the document and returns how many documents matched.
	Replace(ctx context.Context, p *Patient) (int64, error)
	// Delete removes the document and returns how many documents were removed.
	Delete(ctx context.Context, id int64) (int64, error)
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
	Stats(ctx context.Context) (*Stats, error)
}

// HistoryStore is the append-only log of patient transitions.
type HistoryStore interface {
	Append(ctx context.Context, e *HistoryEntry) error
	// FindByPatient returns entries oldest first.
	FindByPatient(ctx context.Context, patientID int64) ([]*HistoryEntry, error)
}
