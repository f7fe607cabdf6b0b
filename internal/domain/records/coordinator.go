package records

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/strokecare/records/internal/domain/account"
	"github.com/strokecare/records/internal/domain/audit"
	"github.com/strokecare/records/internal/domain/patient"
	"github.com/strokecare/records/internal/platform/db"
)

// Secondary write steps, in the order they run.
const (
	StepHistory    = "history"
	StepDataChange = "data_change"
	StepAccessLog  = "access_log"
)

const defaultReportLimit = 50

// Stores are the collaborators of the coordinator. Each one is independent;
// no transaction spans them.
type Stores struct {
	Records     patient.RecordStore
	History     patient.HistoryStore
	AccessLogs  audit.AccessLogStore
	DataChanges audit.DataChangeStore
	Users       account.UserStore
	Sessions    account.SessionStore
}

// Invalidator is notified after every successful record write.
type Invalidator interface {
	Invalidate()
}

// StepFailure describes a secondary write that failed.
type StepFailure struct {
	Step    string `json:"step"`
	Message string `json:"message"`
}

// Outcome is the result of a successful primary write.
type Outcome struct {
	Patient  *patient.Patient `json:"patient,omitempty"`
	Failures []StepFailure    `json:"failures,omitempty"`
}

// Partial reports whether any history or audit write failed.
func (o *Outcome) Partial() bool {
	return o != nil && len(o.Failures) > 0
}

// Coordinator sequences patient mutations across the record, history and
// audit stores, and joins reads across them.
//
// The record write comes first and is the only one that can fail an
// operation. History and audit appends follow in program order; each failure
// is logged and reported on the Outcome, and the record write is never
// rolled back. Concurrent mutations of the same id are not serialized.
type Coordinator struct {
	stores      Stores
	log         zerolog.Logger
	now         func() time.Time
	reportLimit int
	invalidate  []Invalidator
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock overrides the time source used for history and audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithReportLimit caps each category of the activity report. Non-positive
// values keep the default.
func WithReportLimit(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.reportLimit = n
		}
	}
}

// WithInvalidator registers a cache to clear after every record write.
func WithInvalidator(inv Invalidator) Option {
	return func(c *Coordinator) { c.invalidate = append(c.invalidate, inv) }
}

// NewCoordinator returns a Coordinator over the given stores.
func NewCoordinator(stores Stores, log zerolog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		stores:      stores,
		log:         log.With().Str("component", "coordinator").Logger(),
		now:         time.Now,
		reportLimit: defaultReportLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create inserts a new patient. A duplicate id aborts the operation before
// anything else is written.
func (c *Coordinator) Create(ctx context.Context, p *patient.Patient, actor string) (out *Outcome, err error) {
	timer := prometheus.NewTimer(operationDuration.WithLabelValues(patient.ActionCreate))
	defer timer.ObserveDuration()
	defer func() { observeOutcome(patient.ActionCreate, out, err) }()

	stored := p.Clone()
	if err := c.stores.Records.Insert(ctx, stored); err != nil {
		if errors.Is(err, patient.ErrDuplicateKey) {
			return nil, duplicateKey(p.ID)
		}
		return nil, unavailable("record store", err)
	}
	c.recordWritten()

	out = &Outcome{Patient: stored}
	c.appendSecondaries(ctx, out, actor, p.ID, audit.OperationCreate, audit.ActionCreatePatient, nil, stored)
	return out, nil
}

// Update replaces the mutable attributes of an existing patient. The id
// never changes.
func (c *Coordinator) Update(ctx context.Context, id int64, attrs patient.Attributes, actor string) (out *Outcome, err error) {
	timer := prometheus.NewTimer(operationDuration.WithLabelValues(patient.ActionUpdate))
	defer timer.ObserveDuration()
	defer func() { observeOutcome(patient.ActionUpdate, out, err) }()

	old, err := c.findCurrent(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := old.WithAttributes(attrs)

	matched, err := c.stores.Records.Replace(ctx, updated)
	if err != nil {
		return nil, unavailable("record store", err)
	}
	if matched == 0 {
		// Deleted between the read and the replace.
		return nil, notFound(id)
	}
	c.recordWritten()

	out = &Outcome{Patient: updated}
	c.appendSecondaries(ctx, out, actor, id, audit.OperationUpdate, audit.ActionUpdatePatient, old, updated)
	return out, nil
}

// Delete physically removes a patient. Its history is kept.
func (c *Coordinator) Delete(ctx context.Context, id int64, actor string) (out *Outcome, err error) {
	timer := prometheus.NewTimer(operationDuration.WithLabelValues(patient.ActionDelete))
	defer timer.ObserveDuration()
	defer func() { observeOutcome(patient.ActionDelete, out, err) }()

	old, err := c.findCurrent(ctx, id)
	if err != nil {
		return nil, err
	}

	removed, err := c.stores.Records.Delete(ctx, id)
	if err != nil {
		return nil, unavailable("record store", err)
	}
	if removed == 0 {
		return nil, notFound(id)
	}
	c.recordWritten()

	out = &Outcome{}
	c.appendSecondaries(ctx, out, actor, id, audit.OperationDelete, audit.ActionDeletePatient, old, nil)
	return out, nil
}

// LogAccess appends a view event. It never fails the caller.
func (c *Coordinator) LogAccess(ctx context.Context, actor, action, resource string, details map[string]any) {
	err := c.stores.AccessLogs.Append(ctx, &audit.AccessLog{
		UserEmail: actor,
		Action:    action,
		Resource:  resource,
		Timestamp: c.now().UTC(),
		Details:   details,
	})
	if err != nil {
		secondaryWriteFailures.WithLabelValues(StepAccessLog).Inc()
		c.log.Error().Err(err).Str("actor", actor).Str("action", action).Str("resource", resource).
			Msg("access log append failed")
	}
}

func (c *Coordinator) findCurrent(ctx context.Context, id int64) (*patient.Patient, error) {
	p, err := c.stores.Records.FindOne(ctx, id)
	if errors.Is(err, patient.ErrNotFound) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, unavailable("record store", err)
	}
	return p, nil
}

func (c *Coordinator) recordWritten() {
	for _, inv := range c.invalidate {
		inv.Invalidate()
	}
}

// appendSecondaries writes the history entry, the data change and the access
// log, in that order. Every step runs even if an earlier one failed.
//
// The record write has already committed, so the steps run on a context that
// a request deadline or client disconnect cannot cancel.
func (c *Coordinator) appendSecondaries(ctx context.Context, out *Outcome, actor string, id int64,
	operation, action string, oldData, newData *patient.Patient) {
	ctx = context.WithoutCancel(ctx)
	now := c.now().UTC()
	recordID := strconv.FormatInt(id, 10)

	c.step(out, StepHistory, actor, id, func() error {
		return c.stores.History.Append(ctx, &patient.HistoryEntry{
			PatientID:  id,
			ModifiedBy: actor,
			ModifiedAt: now,
			OldData:    oldData.Clone(),
			NewData:    newData.Clone(),
		})
	})

	c.step(out, StepDataChange, actor, id, func() error {
		change := &audit.DataChange{
			UserEmail:  actor,
			Operation:  operation,
			Database:   db.PatientsDB,
			Collection: "patients",
			RecordID:   recordID,
			Timestamp:  now,
		}
		var err error
		if oldData != nil {
			if change.OldData, err = audit.Snapshot(oldData); err != nil {
				return fmt.Errorf("encode old snapshot: %w", err)
			}
		}
		if newData != nil {
			if change.NewData, err = audit.Snapshot(newData); err != nil {
				return fmt.Errorf("encode new snapshot: %w", err)
			}
		}
		return c.stores.DataChanges.Append(ctx, change)
	})

	c.step(out, StepAccessLog, actor, id, func() error {
		return c.stores.AccessLogs.Append(ctx, &audit.AccessLog{
			UserEmail: actor,
			Action:    action,
			Resource:  "patient_id:" + recordID,
			Timestamp: now,
			Details:   map[string]any{},
		})
	})
}

func (c *Coordinator) step(out *Outcome, name, actor string, id int64, write func() error) {
	if err := write(); err != nil {
		secondaryWriteFailures.WithLabelValues(name).Inc()
		c.log.Error().Err(err).Str("step", name).Int64("patient_id", id).Str("actor", actor).
			Msg("secondary write failed; record write kept")
		out.Failures = append(out.Failures, StepFailure{Step: name, Message: name + " write failed"})
	}
}
