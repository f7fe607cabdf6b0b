package records

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/strokecare/records/internal/domain/account"
	"github.com/strokecare/records/internal/domain/audit"
	"github.com/strokecare/records/internal/domain/patient"
	"github.com/strokecare/records/internal/platform/db"
)

// Report categories.
const (
	CategoryUser        = "user"
	CategorySessions    = "sessions"
	CategoryAccessLogs  = "access_logs"
	CategoryDataChanges = "data_changes"
	CategoryCurrent     = "current"
	CategoryHistory     = "history"
	CategoryAuditTrail  = "audit_trail"
)

// ActivityReport joins what every store knows about one actor. A category
// whose store failed is empty and its error is listed in Errors.
type ActivityReport struct {
	Actor       string              `json:"actor"`
	User        *account.User       `json:"user"`
	Sessions    []*account.Session  `json:"sessions"`
	AccessLogs  []*audit.AccessLog  `json:"access_logs"`
	DataChanges []*audit.DataChange `json:"data_changes"`
	Errors      map[string]string   `json:"errors,omitempty"`
}

// Partial reports whether any category degraded.
func (r *ActivityReport) Partial() bool { return len(r.Errors) > 0 }

// FullHistory is the current document of a patient, its transitions oldest
// first, and the audit trail newest first. Current is nil once the patient
// is deleted; the history remains.
type FullHistory struct {
	PatientID  int64                   `json:"patient_id"`
	Current    *patient.Patient        `json:"current"`
	History    []*patient.HistoryEntry `json:"history"`
	AuditTrail []*audit.DataChange     `json:"audit_trail"`
	Errors     map[string]string       `json:"errors,omitempty"`
}

func (h *FullHistory) Partial() bool { return len(h.Errors) > 0 }

// categoryReads runs independent reads concurrently and records a failure
// per category instead of aborting.
type categoryReads struct {
	wg     sync.WaitGroup
	mu     sync.Mutex
	errors map[string]string
}

func (r *categoryReads) run(category string, read func() error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := read(); err != nil {
			r.mu.Lock()
			r.errors[category] = category + " unavailable"
			r.mu.Unlock()
			reportCategoryFailures.WithLabelValues(category).Inc()
		}
	}()
}

func (r *categoryReads) wait() map[string]string {
	r.wg.Wait()
	if len(r.errors) == 0 {
		return nil
	}
	return r.errors
}

// ActivityReport reads the actor's profile, sessions, access logs and data
// changes. Each list holds at most the report limit, newest first.
func (c *Coordinator) ActivityReport(ctx context.Context, actor string) *ActivityReport {
	timer := prometheus.NewTimer(operationDuration.WithLabelValues("activity_report"))
	defer timer.ObserveDuration()

	report := &ActivityReport{
		Actor:       actor,
		Sessions:    []*account.Session{},
		AccessLogs:  []*audit.AccessLog{},
		DataChanges: []*audit.DataChange{},
	}
	reads := &categoryReads{errors: make(map[string]string)}

	reads.run(CategoryUser, func() error {
		u, err := c.stores.Users.FindByEmail(ctx, actor)
		if errors.Is(err, account.ErrNotFound) {
			return nil
		}
		if err != nil {
			c.logReadFailure(err, CategoryUser, actor)
			return err
		}
		report.User = u
		return nil
	})
	reads.run(CategorySessions, func() error {
		sessions, err := c.stores.Sessions.FindByUser(ctx, actor, c.reportLimit)
		if err != nil {
			c.logReadFailure(err, CategorySessions, actor)
			return err
		}
		sort.SliceStable(sessions, func(i, j int) bool { return sessions[i].LoginTime.After(sessions[j].LoginTime) })
		report.Sessions = nonNil(sessions)
		return nil
	})
	reads.run(CategoryAccessLogs, func() error {
		logs, err := c.stores.AccessLogs.FindByActor(ctx, actor, c.reportLimit)
		if err != nil {
			c.logReadFailure(err, CategoryAccessLogs, actor)
			return err
		}
		sort.SliceStable(logs, func(i, j int) bool { return logs[i].Timestamp.After(logs[j].Timestamp) })
		report.AccessLogs = nonNil(logs)
		return nil
	})
	reads.run(CategoryDataChanges, func() error {
		changes, err := c.stores.DataChanges.FindByActor(ctx, actor, c.reportLimit)
		if err != nil {
			c.logReadFailure(err, CategoryDataChanges, actor)
			return err
		}
		sort.SliceStable(changes, func(i, j int) bool { return changes[i].Timestamp.After(changes[j].Timestamp) })
		report.DataChanges = nonNil(changes)
		return nil
	})

	report.Errors = reads.wait()
	operationsTotal.WithLabelValues("activity_report", reportOutcome(report.Partial())).Inc()
	return report
}

// PatientFullHistory reads the current document, the history and the audit
// trail of one patient id, whether or not the patient still exists.
func (c *Coordinator) PatientFullHistory(ctx context.Context, id int64) *FullHistory {
	timer := prometheus.NewTimer(operationDuration.WithLabelValues("full_history"))
	defer timer.ObserveDuration()

	fh := &FullHistory{
		PatientID:  id,
		History:    []*patient.HistoryEntry{},
		AuditTrail: []*audit.DataChange{},
	}
	reads := &categoryReads{errors: make(map[string]string)}
	actor := "patient_id:" + strconv.FormatInt(id, 10)

	reads.run(CategoryCurrent, func() error {
		p, err := c.stores.Records.FindOne(ctx, id)
		if errors.Is(err, patient.ErrNotFound) {
			return nil
		}
		if err != nil {
			c.logReadFailure(err, CategoryCurrent, actor)
			return err
		}
		fh.Current = p
		return nil
	})
	reads.run(CategoryHistory, func() error {
		entries, err := c.stores.History.FindByPatient(ctx, id)
		if err != nil {
			c.logReadFailure(err, CategoryHistory, actor)
			return err
		}
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].ModifiedAt.Before(entries[j].ModifiedAt) })
		fh.History = nonNil(entries)
		return nil
	})
	reads.run(CategoryAuditTrail, func() error {
		trail, err := c.stores.DataChanges.FindByRecord(ctx, db.PatientsDB, strconv.FormatInt(id, 10))
		if err != nil {
			c.logReadFailure(err, CategoryAuditTrail, actor)
			return err
		}
		sort.SliceStable(trail, func(i, j int) bool { return trail[i].Timestamp.After(trail[j].Timestamp) })
		fh.AuditTrail = nonNil(trail)
		return nil
	})

	fh.Errors = reads.wait()
	operationsTotal.WithLabelValues("full_history", reportOutcome(fh.Partial())).Inc()
	return fh
}

func (c *Coordinator) logReadFailure(err error, category, subject string) {
	c.log.Warn().Err(err).Str("category", category).Str("subject", subject).Msg("report category degraded")
}

func reportOutcome(partial bool) string {
	if partial {
		return "partial"
	}
	return "success"
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
