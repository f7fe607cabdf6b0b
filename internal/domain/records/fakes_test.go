package records

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/strokecare/records/internal/domain/account"
	"github.com/strokecare/records/internal/domain/audit"
	"github.com/strokecare/records/internal/domain/patient"
)

var errDown = errors.New("connection refused")

// memRecords is an in-memory record store. Setting down makes every call fail.
type memRecords struct {
	mu       sync.Mutex
	docs     map[int64]*patient.Patient
	down     bool
	statsN   int
	vanishOn int64 // FindOne succeeds, then the row disappears before Replace/Delete
}

func newMemRecords() *memRecords {
	return &memRecords{docs: make(map[int64]*patient.Patient)}
}

func (m *memRecords) Insert(_ context.Context, p *patient.Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return errDown
	}
	if _, ok := m.docs[p.ID]; ok {
		return patient.ErrDuplicateKey
	}
	m.docs[p.ID] = p.Clone()
	return nil
}

func (m *memRecords) FindOne(_ context.Context, id int64) (*patient.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, errDown
	}
	p, ok := m.docs[id]
	if !ok {
		return nil, patient.ErrNotFound
	}
	out := p.Clone()
	if m.vanishOn == id {
		delete(m.docs, id)
	}
	return out, nil
}

func (m *memRecords) Replace(_ context.Context, p *patient.Patient) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return 0, errDown
	}
	if _, ok := m.docs[p.ID]; !ok {
		return 0, nil
	}
	m.docs[p.ID] = p.Clone()
	return 1, nil
}

func (m *memRecords) Delete(_ context.Context, id int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return 0, errDown
	}
	if _, ok := m.docs[id]; !ok {
		return 0, nil
	}
	delete(m.docs, id)
	return 1, nil
}

func (m *memRecords) List(_ context.Context, limit, offset int) ([]*patient.Patient, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, 0, errDown
	}
	var out []*patient.Patient
	for _, p := range m.docs {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := len(out)
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (m *memRecords) Stats(context.Context) (*patient.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, errDown
	}
	m.statsN++
	s := &patient.Stats{GenderDistribution: map[string]int{}}
	for _, p := range m.docs {
		s.TotalPatients++
		s.GenderDistribution[p.Gender]++
	}
	return s, nil
}

func (m *memRecords) get(id int64) *patient.Patient {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs[id]
}

// cancelAfterWrite cancels the caller's context as soon as a record write
// commits, the way a request deadline can expire mid-operation.
type cancelAfterWrite struct {
	*memRecords
	cancel context.CancelFunc
}

func (c *cancelAfterWrite) Insert(ctx context.Context, p *patient.Patient) error {
	err := c.memRecords.Insert(ctx, p)
	c.cancel()
	return err
}

func (c *cancelAfterWrite) Replace(ctx context.Context, p *patient.Patient) (int64, error) {
	n, err := c.memRecords.Replace(ctx, p)
	c.cancel()
	return n, err
}

func (c *cancelAfterWrite) Delete(ctx context.Context, id int64) (int64, error) {
	n, err := c.memRecords.Delete(ctx, id)
	c.cancel()
	return n, err
}

type memHistory struct {
	mu      sync.Mutex
	entries []*patient.HistoryEntry
	down    bool
}

func (m *memHistory) Append(ctx context.Context, e *patient.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return errDown
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	e.ID = uuid.New()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memHistory) FindByPatient(_ context.Context, id int64) ([]*patient.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, errDown
	}
	var out []*patient.HistoryEntry
	for _, e := range m.entries {
		if e.PatientID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memHistory) count(id int64) int {
	entries, _ := m.FindByPatient(context.Background(), id)
	return len(entries)
}

type memAccessLogs struct {
	mu      sync.Mutex
	entries []*audit.AccessLog
	down    bool
}

func (m *memAccessLogs) Append(ctx context.Context, e *audit.AccessLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return errDown
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memAccessLogs) FindByActor(_ context.Context, actor string, limit int) ([]*audit.AccessLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, errDown
	}
	var out []*audit.AccessLog
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].UserEmail == actor {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

func (m *memAccessLogs) List(_ context.Context, limit, offset int) ([]*audit.AccessLog, int, error) {
	return m.entries, len(m.entries), nil
}

func (m *memAccessLogs) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

type memDataChanges struct {
	mu      sync.Mutex
	entries []*audit.DataChange
	down    bool
}

func (m *memDataChanges) Append(ctx context.Context, e *audit.DataChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return errDown
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memDataChanges) FindByActor(_ context.Context, actor string, limit int) ([]*audit.DataChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, errDown
	}
	var out []*audit.DataChange
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].UserEmail == actor {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

func (m *memDataChanges) FindByRecord(_ context.Context, database, recordID string) ([]*audit.DataChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, errDown
	}
	var out []*audit.DataChange
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].Database == database && m.entries[i].RecordID == recordID {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

func (m *memDataChanges) List(_ context.Context, limit, offset int) ([]*audit.DataChange, int, error) {
	return m.entries, len(m.entries), nil
}

type memUsers struct {
	users map[string]*account.User
	down  bool
}

func (m *memUsers) Create(_ context.Context, u *account.User) error {
	if m.down {
		return errDown
	}
	m.users[u.Email] = u
	return nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*account.User, error) {
	if m.down {
		return nil, errDown
	}
	u, ok := m.users[email]
	if !ok {
		return nil, account.ErrNotFound
	}
	return u, nil
}

type memSessions struct {
	sessions []*account.Session
	down     bool
}

func (m *memSessions) Create(_ context.Context, s *account.Session) error {
	m.sessions = append(m.sessions, s)
	return nil
}

func (m *memSessions) Get(_ context.Context, id uuid.UUID) (*account.Session, error) {
	for _, s := range m.sessions {
		if s.SessionID == id {
			return s, nil
		}
	}
	return nil, account.ErrSessionNotFound
}

func (m *memSessions) FindByUser(_ context.Context, email string, limit int) ([]*account.Session, error) {
	if m.down {
		return nil, errDown
	}
	var out []*account.Session
	for _, s := range m.sessions {
		if s.UserEmail == email && len(out) < limit {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSessions) End(context.Context, string, uuid.UUID, time.Time) (int64, error) {
	return 0, nil
}

// fixture wires a coordinator to in-memory stores and a stepping clock.
type fixture struct {
	coord    *Coordinator
	records  *memRecords
	history  *memHistory
	access   *memAccessLogs
	changes  *memDataChanges
	users    *memUsers
	sessions *memSessions
	stores   Stores
	clockMu  sync.Mutex
	clock    time.Time
}

func newFixture(opts ...Option) *fixture {
	f := &fixture{
		records:  newMemRecords(),
		history:  &memHistory{},
		access:   &memAccessLogs{},
		changes:  &memDataChanges{},
		users:    &memUsers{users: make(map[string]*account.User)},
		sessions: &memSessions{},
		clock:    time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	tick := func() time.Time {
		f.clockMu.Lock()
		defer f.clockMu.Unlock()
		f.clock = f.clock.Add(time.Second)
		return f.clock
	}
	stores := Stores{
		Records:     f.records,
		History:     f.history,
		AccessLogs:  f.access,
		DataChanges: f.changes,
		Users:       f.users,
		Sessions:    f.sessions,
	}
	f.stores = stores
	f.coord = NewCoordinator(stores, zerolog.Nop(), append([]Option{WithClock(tick)}, opts...)...)
	return f
}
