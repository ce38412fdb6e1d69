// Package memory provides an in-memory attendance.Store (for testing/dev).
package memory

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/warp/timetrack/attendance"
	"github.com/warp/timetrack/generic"
)

// =============================================================================
// MEMORY STORE - Maps behind one mutex
// =============================================================================

// Store keeps every record in maps. It is safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	data tables
	fail error
}

type tables struct {
	profiles  map[string]attendance.UserProfile
	entries   map[string]attendance.TimeEntry
	leaves    map[string]attendance.SickLeave
	vacations map[string]attendance.VacationRequest
}

func newTables() tables {
	return tables{
		profiles:  make(map[string]attendance.UserProfile),
		entries:   make(map[string]attendance.TimeEntry),
		leaves:    make(map[string]attendance.SickLeave),
		vacations: make(map[string]attendance.VacationRequest),
	}
}

func (t tables) clone() tables {
	return tables{
		profiles:  maps.Clone(t.profiles),
		entries:   maps.Clone(t.entries),
		leaves:    maps.Clone(t.leaves),
		vacations: maps.Clone(t.vacations),
	}
}

// New returns an empty store.
func New() *Store {
	return &Store{data: newTables()}
}

var _ attendance.Store = (*Store)(nil)

// FailWith makes every following operation fail with err wrapped as a store
// error, until called again with nil. Tests use it to simulate an outage.
func (m *Store) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

func (m *Store) check(op string) error {
	return generic.WrapStore(op, m.fail)
}

// Close is a no-op.
func (m *Store) Close() error { return nil }

// Reset drops all records.
func (m *Store) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("reset"); err != nil {
		return err
	}
	m.data = newTables()
	return nil
}

// WithTx runs fn with exclusive access. On error the state before the call
// is restored.
func (m *Store) WithTx(ctx context.Context, fn func(attendance.Records) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("begin transaction"); err != nil {
		return err
	}

	snapshot := m.data.clone()
	if err := fn(&txView{t: &m.data}); err != nil {
		m.data = snapshot
		return err
	}
	return nil
}

// =============================================================================
// LOCKED ACCESSORS - Public methods take the lock and delegate to tables
// =============================================================================

func (m *Store) read(op string, fn func(t *tables) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(op); err != nil {
		return err
	}
	return fn(&m.data)
}

func (m *Store) write(op string, fn func(t *tables) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(op); err != nil {
		return err
	}
	return fn(&m.data)
}

func (m *Store) GetProfile(_ context.Context, id string) (p attendance.UserProfile, err error) {
	err = m.read("get profile", func(t *tables) error { p, err = t.getProfile(id); return err })
	return p, err
}

func (m *Store) GetProfileByEmail(_ context.Context, email string) (p attendance.UserProfile, err error) {
	err = m.read("get profile", func(t *tables) error { p, err = t.getProfileByEmail(email); return err })
	return p, err
}

func (m *Store) ListProfiles(_ context.Context, f attendance.ProfileFilter) (out []attendance.UserProfile, err error) {
	err = m.read("list profiles", func(t *tables) error { out = t.listProfiles(f); return nil })
	return out, err
}

func (m *Store) CreateProfile(_ context.Context, p attendance.UserProfile) error {
	return m.write("create profile", func(t *tables) error { return t.createProfile(p) })
}

func (m *Store) UpdateProfile(_ context.Context, p attendance.UserProfile) error {
	return m.write("update profile", func(t *tables) error { return t.updateProfile(p) })
}

func (m *Store) GetTimeEntry(_ context.Context, id string) (e attendance.TimeEntry, err error) {
	err = m.read("get time entry", func(t *tables) error { e, err = t.getTimeEntry(id); return err })
	return e, err
}

func (m *Store) ListTimeEntries(_ context.Context, f attendance.EntryFilter) (out []attendance.TimeEntry, err error) {
	err = m.read("list time entries", func(t *tables) error { out = t.listTimeEntries(f); return nil })
	return out, err
}

func (m *Store) CreateTimeEntry(_ context.Context, e attendance.TimeEntry) error {
	return m.write("create time entry", func(t *tables) error { return t.createTimeEntry(e) })
}

func (m *Store) UpdateTimeEntry(_ context.Context, e attendance.TimeEntry) error {
	return m.write("update time entry", func(t *tables) error { return t.updateTimeEntry(e) })
}

func (m *Store) DeleteTimeEntry(_ context.Context, id string) error {
	return m.write("delete time entry", func(t *tables) error { return t.deleteTimeEntry(id) })
}

func (m *Store) GetSickLeave(_ context.Context, id string) (l attendance.SickLeave, err error) {
	err = m.read("get sick leave", func(t *tables) error { l, err = t.getSickLeave(id); return err })
	return l, err
}

func (m *Store) ListSickLeaves(_ context.Context, f attendance.LeaveFilter) (out []attendance.SickLeave, err error) {
	err = m.read("list sick leaves", func(t *tables) error { out = t.listSickLeaves(f); return nil })
	return out, err
}

func (m *Store) CreateSickLeave(_ context.Context, l attendance.SickLeave) error {
	return m.write("create sick leave", func(t *tables) error { return t.createSickLeave(l) })
}

func (m *Store) DeleteSickLeave(_ context.Context, id string) error {
	return m.write("delete sick leave", func(t *tables) error { return t.deleteSickLeave(id) })
}

func (m *Store) GetVacationRequest(_ context.Context, id string) (v attendance.VacationRequest, err error) {
	err = m.read("get vacation request", func(t *tables) error { v, err = t.getVacationRequest(id); return err })
	return v, err
}

func (m *Store) ListVacationRequests(_ context.Context, f attendance.VacationFilter) (out []attendance.VacationRequest, err error) {
	err = m.read("list vacation requests", func(t *tables) error { out = t.listVacationRequests(f); return nil })
	return out, err
}

func (m *Store) CreateVacationRequest(_ context.Context, v attendance.VacationRequest) error {
	return m.write("create vacation request", func(t *tables) error { return t.createVacationRequest(v) })
}

func (m *Store) UpdateVacationRequest(_ context.Context, v attendance.VacationRequest) error {
	return m.write("update vacation request", func(t *tables) error { return t.updateVacationRequest(v) })
}

func (m *Store) DeleteVacationRequest(_ context.Context, id string) error {
	return m.write("delete vacation request", func(t *tables) error { return t.deleteVacationRequest(id) })
}

// =============================================================================
// TABLES - Unlocked record access, shared by Store and txView
// =============================================================================

func (t *tables) getProfile(id string) (attendance.UserProfile, error) {
	p, ok := t.profiles[id]
	if !ok {
		return attendance.UserProfile{}, generic.NotFound("profile", id)
	}
	return p, nil
}

func (t *tables) getProfileByEmail(email string) (attendance.UserProfile, error) {
	for _, p := range t.profiles {
		if strings.EqualFold(p.Email, email) {
			return p, nil
		}
	}
	return attendance.UserProfile{}, generic.NotFound("profile", email)
}

func (t *tables) listProfiles(f attendance.ProfileFilter) []attendance.UserProfile {
	out := make([]attendance.UserProfile, 0)
	for _, p := range t.profiles {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FamilyName != out[j].FamilyName {
			return out[i].FamilyName < out[j].FamilyName
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (t *tables) createProfile(p attendance.UserProfile) error {
	if _, ok := t.profiles[p.ID]; ok {
		return &generic.ConflictError{Kind: "profile", ExistingID: p.ID, Reason: "profile id already exists"}
	}
	for _, existing := range t.profiles {
		if strings.EqualFold(existing.Email, p.Email) {
			return &generic.ConflictError{Kind: "profile", ExistingID: existing.ID, Reason: p.Email + " is already registered"}
		}
	}
	t.profiles[p.ID] = p
	return nil
}

func (t *tables) updateProfile(p attendance.UserProfile) error {
	if _, ok := t.profiles[p.ID]; !ok {
		return generic.NotFound("profile", p.ID)
	}
	t.profiles[p.ID] = p
	return nil
}

func (t *tables) getTimeEntry(id string) (attendance.TimeEntry, error) {
	e, ok := t.entries[id]
	if !ok {
		return attendance.TimeEntry{}, generic.NotFound("time entry", id)
	}
	return e, nil
}

func (t *tables) listTimeEntries(f attendance.EntryFilter) []attendance.TimeEntry {
	out := make([]attendance.TimeEntry, 0)
	for _, e := range t.entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (t *tables) createTimeEntry(e attendance.TimeEntry) error {
	for _, existing := range t.entries {
		if existing.UserID == e.UserID && existing.Type == e.Type && existing.Date.Equal(e.Date) {
			return &generic.ConflictError{Kind: "time_entry", ExistingID: existing.ID, Reason: "an entry of this type already exists for " + e.Date.String()}
		}
	}
	t.entries[e.ID] = e
	return nil
}

func (t *tables) updateTimeEntry(e attendance.TimeEntry) error {
	if _, ok := t.entries[e.ID]; !ok {
		return generic.NotFound("time entry", e.ID)
	}
	t.entries[e.ID] = e
	return nil
}

func (t *tables) deleteTimeEntry(id string) error {
	if _, ok := t.entries[id]; !ok {
		return generic.NotFound("time entry", id)
	}
	delete(t.entries, id)
	return nil
}

func (t *tables) getSickLeave(id string) (attendance.SickLeave, error) {
	l, ok := t.leaves[id]
	if !ok {
		return attendance.SickLeave{}, generic.NotFound("sick leave", id)
	}
	return l, nil
}

func (t *tables) listSickLeaves(f attendance.LeaveFilter) []attendance.SickLeave {
	out := make([]attendance.SickLeave, 0)
	for _, l := range t.leaves {
		if f.Match(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (t *tables) createSickLeave(l attendance.SickLeave) error {
	t.leaves[l.ID] = l
	return nil
}

func (t *tables) deleteSickLeave(id string) error {
	if _, ok := t.leaves[id]; !ok {
		return generic.NotFound("sick leave", id)
	}
	delete(t.leaves, id)
	return nil
}

func (t *tables) getVacationRequest(id string) (attendance.VacationRequest, error) {
	v, ok := t.vacations[id]
	if !ok {
		return attendance.VacationRequest{}, generic.NotFound("vacation request", id)
	}
	return v, nil
}

func (t *tables) listVacationRequests(f attendance.VacationFilter) []attendance.VacationRequest {
	out := make([]attendance.VacationRequest, 0)
	for _, v := range t.vacations {
		if f.Match(v) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (t *tables) createVacationRequest(v attendance.VacationRequest) error {
	t.vacations[v.ID] = v
	return nil
}

func (t *tables) updateVacationRequest(v attendance.VacationRequest) error {
	if _, ok := t.vacations[v.ID]; !ok {
		return generic.NotFound("vacation request", v.ID)
	}
	t.vacations[v.ID] = v
	return nil
}

func (t *tables) deleteVacationRequest(id string) error {
	if _, ok := t.vacations[id]; !ok {
		return generic.NotFound("vacation request", id)
	}
	delete(t.vacations, id)
	return nil
}

// =============================================================================
// TRANSACTIONAL VIEW - Used inside WithTx while the write lock is held
// =============================================================================

type txView struct {
	t *tables
}

func (v *txView) GetProfile(_ context.Context, id string) (attendance.UserProfile, error) {
	return v.t.getProfile(id)
}

func (v *txView) GetProfileByEmail(_ context.Context, email string) (attendance.UserProfile, error) {
	return v.t.getProfileByEmail(email)
}

func (v *txView) ListProfiles(_ context.Context, f attendance.ProfileFilter) ([]attendance.UserProfile, error) {
	return v.t.listProfiles(f), nil
}

func (v *txView) CreateProfile(_ context.Context, p attendance.UserProfile) error {
	return v.t.createProfile(p)
}

func (v *txView) UpdateProfile(_ context.Context, p attendance.UserProfile) error {
	return v.t.updateProfile(p)
}

func (v *txView) GetTimeEntry(_ context.Context, id string) (attendance.TimeEntry, error) {
	return v.t.getTimeEntry(id)
}

func (v *txView) ListTimeEntries(_ context.Context, f attendance.EntryFilter) ([]attendance.TimeEntry, error) {
	return v.t.listTimeEntries(f), nil
}

func (v *txView) CreateTimeEntry(_ context.Context, e attendance.TimeEntry) error {
	return v.t.createTimeEntry(e)
}

func (v *txView) UpdateTimeEntry(_ context.Context, e attendance.TimeEntry) error {
	return v.t.updateTimeEntry(e)
}

func (v *txView) DeleteTimeEntry(_ context.Context, id string) error {
	return v.t.deleteTimeEntry(id)
}

func (v *txView) GetSickLeave(_ context.Context, id string) (attendance.SickLeave, error) {
	return v.t.getSickLeave(id)
}

func (v *txView) ListSickLeaves(_ context.Context, f attendance.LeaveFilter) ([]attendance.SickLeave, error) {
	return v.t.listSickLeaves(f), nil
}

func (v *txView) CreateSickLeave(_ context.Context, l attendance.SickLeave) error {
	return v.t.createSickLeave(l)
}

func (v *txView) DeleteSickLeave(_ context.Context, id string) error {
	return v.t.deleteSickLeave(id)
}

func (v *txView) GetVacationRequest(_ context.Context, id string) (attendance.VacationRequest, error) {
	return v.t.getVacationRequest(id)
}

func (v *txView) ListVacationRequests(_ context.Context, f attendance.VacationFilter) ([]attendance.VacationRequest, error) {
	return v.t.listVacationRequests(f), nil
}

func (v *txView) CreateVacationRequest(_ context.Context, r attendance.VacationRequest) error {
	return v.t.createVacationRequest(r)
}

func (v *txView) UpdateVacationRequest(_ context.Context, r attendance.VacationRequest) error {
	return v.t.updateVacationRequest(r)
}

func (v *txView) DeleteVacationRequest(_ context.Context, id string) error {
	return v.t.deleteVacationRequest(id)
}
