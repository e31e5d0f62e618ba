package worklog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fakturio/fakturio/internal/shared"
)

type memoryRepo struct {
	records map[int64]Record
	nextID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{records: map[int64]Record{}, nextID: 1}
}

func (m *memoryRepo) Create(ctx context.Context, rec Record) (Record, error) {
	rec.ID = m.nextID
	m.nextID++
	m.records[rec.ID] = rec
	return rec, nil
}

func (m *memoryRepo) Find(ctx context.Context, id int64) (Record, error) {
	rec, ok := m.records[id]
	if !ok {
		return Record{}, shared.ErrNotFound
	}
	return rec, nil
}

func (m *memoryRepo) Update(ctx context.Context, rec Record) (Record, error) {
	current, ok := m.records[rec.ID]
	if !ok {
		return Record{}, shared.ErrNotFound
	}
	rec.Status = current.Status
	rec.OrganizationID = current.OrganizationID
	m.records[rec.ID] = rec
	return rec, nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.records[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.records, id)
	return nil
}

func (m *memoryRepo) ListForBilling(ctx context.Context, orgID int64, month, year int) ([]Record, error) {
	var out []Record
	for _, rec := range m.records {
		if rec.BillingOrg() != orgID {
			continue
		}
		if int(rec.Date.Month()) == month && rec.Date.Year() == year {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memoryRepo) UpdateStatus(ctx context.Context, id int64, status string) (Record, error) {
	rec, ok := m.records[id]
	if !ok {
		return Record{}, shared.ErrNotFound
	}
	rec.Status = status
	m.records[id] = rec
	return rec, nil
}

func (m *memoryRepo) MarkBilled(ctx context.Context, orgID int64, month, year int) error {
	for id, rec := range m.records {
		if rec.BillingOrg() == orgID && int(rec.Date.Month()) == month && rec.Date.Year() == year {
			rec.Status = StatusBilled
			m.records[id] = rec
		}
	}
	return nil
}

type periodGuard struct {
	locked map[[2]int]bool
}

func (g *periodGuard) AssertUnlocked(ctx context.Context, month, year int) error {
	if g.locked[[2]int{month, year}] {
		return &shared.PeriodLockedError{Month: month, Year: year}
	}
	return nil
}

func lockPeriods(pairs ...[2]int) *periodGuard {
	g := &periodGuard{locked: map[[2]int]bool{}}
	for _, p := range pairs {
		g.locked[p] = true
	}
	return g
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func TestCreateGuardedByRecordDate(t *testing.T) {
	repo := newMemoryRepo()
	// March 2025 is locked; the current calendar month is irrelevant.
	svc := NewService(repo, lockPeriods([2]int{3, 2025}), nil, nil)

	_, err := svc.Create(context.Background(), Record{OrganizationID: 7, Date: day(2025, 3, 15), Minutes: 60})
	require.ErrorIs(t, err, shared.ErrPeriodLocked)

	rec, err := svc.Create(context.Background(), Record{OrganizationID: 7, Date: day(2025, 4, 1), Minutes: 60})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, rec.Status)
}

func TestUpdateGuardsBothPeriods(t *testing.T) {
	repo := newMemoryRepo()
	guard := lockPeriods([2]int{3, 2025})
	svc := NewService(repo, guard, nil, nil)

	rec, err := svc.Create(context.Background(), Record{OrganizationID: 7, Date: day(2025, 4, 10), Minutes: 30})
	require.NoError(t, err)

	// Moving the record into the locked month is rejected.
	rec.Date = day(2025, 3, 10)
	_, err = svc.Update(context.Background(), rec, 1)
	require.ErrorIs(t, err, shared.ErrPeriodLocked)

	// Moving within the open month is fine.
	rec.Date = day(2025, 4, 20)
	updated, err := svc.Update(context.Background(), rec, 1)
	require.NoError(t, err)
	require.Equal(t, day(2025, 4, 20), updated.Date)
}

func TestBilledRecordImmutable(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, lockPeriods(), nil, nil)

	rec, err := svc.Create(context.Background(), Record{OrganizationID: 7, Date: day(2025, 4, 1), Minutes: 45})
	require.NoError(t, err)
	require.NoError(t, repo.MarkBilled(context.Background(), 7, 4, 2025))

	_, err = svc.Update(context.Background(), rec, 1)
	require.ErrorIs(t, err, ErrBilledImmutable)
	err = svc.Delete(context.Background(), rec.ID, 1)
	require.ErrorIs(t, err, ErrBilledImmutable)
}

func TestBillingOrgRemap(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, lockPeriods(), nil, nil)

	billTo := int64(9)
	_, err := svc.Create(context.Background(), Record{OrganizationID: 7, Date: day(2025, 4, 2), Minutes: 60})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), Record{OrganizationID: 7, BillingOrgID: &billTo, Date: day(2025, 4, 3), Minutes: 120})
	require.NoError(t, err)

	own, err := svc.ListForBilling(context.Background(), 7, 4, 2025)
	require.NoError(t, err)
	require.Len(t, own, 1, "redirected record leaves the workplace org's billing")

	redirected, err := svc.ListForBilling(context.Background(), 9, 4, 2025)
	require.NoError(t, err)
	require.Len(t, redirected, 1)
	require.Equal(t, 120, redirected[0].Minutes)
}

func TestStatusTransitions(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, lockPeriods(), nil, nil)

	rec, err := svc.Create(context.Background(), Record{OrganizationID: 7, Date: day(2025, 4, 1), Minutes: 15})
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), rec.ID, 1)
	require.Error(t, err, "DRAFT cannot jump straight to APPROVED")

	submitted, err := svc.Submit(context.Background(), rec.ID, 1)
	require.NoError(t, err)
	require.Equal(t, StatusSubmitted, submitted.Status)

	approved, err := svc.Approve(context.Background(), rec.ID, 1)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
}

func TestValidateRejectsEmptyRecord(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, lockPeriods(), nil, nil)

	_, err := svc.Create(context.Background(), Record{OrganizationID: 7, Date: day(2025, 4, 1)})
	require.ErrorIs(t, err, ErrInvalidRecord, "a record with neither time nor distance is rejected")

	_, err = svc.Create(context.Background(), Record{OrganizationID: 7, Date: day(2025, 4, 1), Minutes: -5})
	require.ErrorIs(t, err, ErrInvalidRecord)
}
