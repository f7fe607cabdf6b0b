package audit

import (
	"context"
	"errors"
	"sort"
)

// memAccessLogs and memDataChanges are in-memory streams for handler tests.
type memAccessLogs struct {
	entries   []*AccessLog
	err       error
	appendErr error
}

func (m *memAccessLogs) Append(_ context.Context, e *AccessLog) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memAccessLogs) FindByActor(_ context.Context, actor string, limit int) ([]*AccessLog, error) {
	var out []*AccessLog
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].UserEmail == actor {
			out = append(out, m.entries[i])
		}
	}
	return out, m.err
}

func (m *memAccessLogs) List(_ context.Context, limit, offset int) ([]*AccessLog, int, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	sorted := append([]*AccessLog(nil), m.entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.After(sorted[j].Timestamp) })
	return page(sorted, limit, offset), len(sorted), nil
}

type memDataChanges struct {
	entries []*DataChange
	err     error
}

func (m *memDataChanges) Append(_ context.Context, e *DataChange) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memDataChanges) FindByActor(context.Context, string, int) ([]*DataChange, error) {
	return nil, errors.New("not used")
}

func (m *memDataChanges) FindByRecord(context.Context, string, string) ([]*DataChange, error) {
	return nil, errors.New("not used")
}

func (m *memDataChanges) List(_ context.Context, limit, offset int) ([]*DataChange, int, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	return page(m.entries, limit, offset), len(m.entries), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
