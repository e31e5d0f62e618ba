package periods

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fakturio/fakturio/internal/shared"
)

type memoryPeriodRepo struct {
	periods map[[2]int]*Period
	nextID  int64
}

func newMemoryPeriodRepo() *memoryPeriodRepo {
	return &memoryPeriodRepo{periods: make(map[[2]int]*Period)}
}

func (r *memoryPeriodRepo) key(month, year int) [2]int { return [2]int{month, year} }

func (r *memoryPeriodRepo) Find(ctx context.Context, month, year int) (Period, error) {
	p, ok := r.periods[r.key(month, year)]
	if !ok {
		return Period{}, shared.ErrNotFound
	}
	return *p, nil
}

func (r *memoryPeriodRepo) List(ctx context.Context) ([]Period, error) {
	var out []Period
	for _, p := range r.periods {
		out = append(out, *p)
	}
	return out, nil
}

func (r *memoryPeriodRepo) UpsertLock(ctx context.Context, month, year int, actorID int64, at time.Time) (Period, error) {
	p, ok := r.periods[r.key(month, year)]
	if !ok {
		r.nextID++
		p = &Period{ID: r.nextID, Month: month, Year: year, CreatedAt: at}
		r.periods[r.key(month, year)] = p
	}
	lockedAt := at
	p.LockedAt = &lockedAt
	p.LockedBy = &actorID
	p.UpdatedAt = at
	return *p, nil
}

func (r *memoryPeriodRepo) ClearLock(ctx context.Context, month, year int) (Period, error) {
	p, ok := r.periods[r.key(month, year)]
	if !ok {
		return Period{}, shared.ErrNotFound
	}
	p.LockedAt = nil
	p.LockedBy = nil
	return *p, nil
}

type memoryAudit struct {
	logs []shared.AuditLog
}

func (a *memoryAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func TestLockCreatesPeriodAndGuards(t *testing.T) {
	repo := newMemoryPeriodRepo()
	audit := &memoryAudit{}
	svc := NewService(repo, audit, nil)

	ctx := context.Background()
	require.NoError(t, svc.AssertUnlocked(ctx, 3, 2025), "unknown period is unlocked by default")

	period, err := svc.Lock(ctx, 3, 2025, 42)
	require.NoError(t, err)
	require.True(t, period.Locked())
	require.Equal(t, int64(42), *period.LockedBy)

	err = svc.AssertUnlocked(ctx, 3, 2025)
	require.ErrorIs(t, err, shared.ErrPeriodLocked)

	// Guard is scoped to the entity's own period.
	require.NoError(t, svc.AssertUnlocked(ctx, 4, 2025))

	require.Len(t, audit.logs, 1)
	require.Equal(t, "LOCK", audit.logs[0].Action)
}

func TestLockIsIdempotent(t *testing.T) {
	repo := newMemoryPeriodRepo()
	svc := NewService(repo, &memoryAudit{}, nil)

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return base })

	first, err := svc.Lock(context.Background(), 3, 2025, 1)
	require.NoError(t, err)

	later := base.Add(time.Hour)
	svc.WithNow(func() time.Time { return later })

	second, err := svc.Lock(context.Background(), 3, 2025, 2)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID, "re-lock must not create a second period")
	require.Equal(t, later, *second.LockedAt)
	require.Equal(t, int64(2), *second.LockedBy)
}

func TestUnlockRestoresWrites(t *testing.T) {
	repo := newMemoryPeriodRepo()
	audit := &memoryAudit{}
	svc := NewService(repo, audit, nil)
	ctx := context.Background()

	_, err := svc.Lock(ctx, 6, 2025, 7)
	require.NoError(t, err)
	require.ErrorIs(t, svc.AssertUnlocked(ctx, 6, 2025), shared.ErrPeriodLocked)

	period, err := svc.Unlock(ctx, 6, 2025, 7)
	require.NoError(t, err)
	require.False(t, period.Locked())
	require.NoError(t, svc.AssertUnlocked(ctx, 6, 2025))

	require.Equal(t, "UNLOCK", audit.logs[len(audit.logs)-1].Action)
}

func TestUnlockWithoutLockIsNoop(t *testing.T) {
	repo := newMemoryPeriodRepo()
	audit := &memoryAudit{}
	svc := NewService(repo, audit, nil)

	_, err := svc.Unlock(context.Background(), 1, 2025, 7)
	require.NoError(t, err)
	require.Empty(t, audit.logs, "no-op unlock is not audited")
}

func TestPeriodLockedErrorDetail(t *testing.T) {
	repo := newMemoryPeriodRepo()
	svc := NewService(repo, &memoryAudit{}, nil)
	ctx := context.Background()

	_, err := svc.Lock(ctx, 12, 2024, 1)
	require.NoError(t, err)

	err = svc.AssertUnlocked(ctx, 12, 2024)
	var locked *shared.PeriodLockedError
	require.ErrorAs(t, err, &locked)
	require.Equal(t, 12, locked.Month)
	require.Equal(t, 2024, locked.Year)
}

func TestValidatePeriod(t *testing.T) {
	require.ErrorIs(t, ValidatePeriod(0, 2025), ErrInvalidPeriod)
	require.ErrorIs(t, ValidatePeriod(13, 2025), ErrInvalidPeriod)
	require.ErrorIs(t, ValidatePeriod(1, 1999), ErrInvalidPeriod)
	require.NoError(t, ValidatePeriod(1, 2025))
}
