package inventory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fakturio/fakturio/internal/received"
	"github.com/fakturio/fakturio/internal/shared"
)

type sourceStamp struct {
	organizationID int64
	month, year    int
}

type memoryRepo struct {
	items    map[int64]Item
	lines    map[int64]SourceLine
	stamps   map[int64]sourceStamp
	bySource map[int64]int64
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		items:    map[int64]Item{},
		lines:    map[int64]SourceLine{},
		stamps:   map[int64]sourceStamp{},
		bySource: map[int64]int64{},
		nextID:   1,
	}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, memoryTx{repo: m})
}

type memoryTx struct {
	repo *memoryRepo
}

func (t memoryTx) FindSourceLine(ctx context.Context, lineItemID int64) (SourceLine, error) {
	line, ok := t.repo.lines[lineItemID]
	if !ok {
		return SourceLine{}, shared.ErrNotFound
	}
	return line, nil
}

func (t memoryTx) InsertItem(ctx context.Context, item Item) (Item, error) {
	if item.SourceLineItemID != nil {
		if _, taken := t.repo.bySource[*item.SourceLineItemID]; taken {
			return Item{}, shared.ErrAlreadyAssigned
		}
	}
	item.ID = t.repo.nextID
	t.repo.nextID++
	t.repo.items[item.ID] = item
	if item.SourceLineItemID != nil {
		t.repo.bySource[*item.SourceLineItemID] = item.ID
	}
	return item, nil
}

func (t memoryTx) MarkSourceAssigned(ctx context.Context, lineItemID, organizationID int64, month, year int) error {
	line, ok := t.repo.lines[lineItemID]
	if !ok {
		return shared.ErrNotFound
	}
	line.Status = received.ItemAssigned
	t.repo.lines[lineItemID] = line
	t.repo.stamps[lineItemID] = sourceStamp{organizationID: organizationID, month: month, year: year}
	return nil
}

func (m *memoryRepo) Find(ctx context.Context, id int64) (Item, error) {
	it, ok := m.items[id]
	if !ok {
		return Item{}, shared.ErrNotFound
	}
	return it, nil
}

func (m *memoryRepo) ListForPeriod(ctx context.Context, orgID int64, month, year int) ([]Item, error) {
	var out []Item
	for _, it := range m.items {
		if it.OrganizationID == orgID && it.Month == month && it.Year == year {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *memoryRepo) Update(ctx context.Context, item Item) (Item, error) {
	current, ok := m.items[item.ID]
	if !ok {
		return Item{}, shared.ErrNotFound
	}
	current.Name = item.Name
	current.Quantity = item.Quantity
	current.UnitPriceCents = item.UnitPriceCents
	current.TotalPriceCents = item.TotalPriceCents
	m.items[item.ID] = current
	return current, nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.items[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memoryRepo) MarkInvoiced(ctx context.Context, orgID int64, month, year int) error {
	for id, it := range m.items {
		if it.OrganizationID == orgID && it.Month == month && it.Year == year {
			it.Status = StatusInvoiced
			m.items[id] = it
		}
	}
	return nil
}

type stubGuard struct {
	locked bool
}

func (g stubGuard) AssertUnlocked(ctx context.Context, month, year int) error {
	if g.locked {
		return &shared.PeriodLockedError{Month: month, Year: year}
	}
	return nil
}

func seedLine(repo *memoryRepo, line SourceLine) SourceLine {
	if line.ID == 0 {
		line.ID = repo.nextID
		repo.nextID++
	}
	if line.Status == "" {
		line.Status = "PENDING"
	}
	repo.lines[line.ID] = line
	return line
}

func assignInput(lineID int64) AssignInput {
	return AssignInput{LineItemID: lineID, OrganizationID: 7, Month: 3, Year: 2025, ActorID: 1}
}

func TestAssignDerivesUnitFromTotal(t *testing.T) {
	repo := newMemoryRepo()
	total := int64(30000)
	line := seedLine(repo, SourceLine{Name: "Monitor", Quantity: decimal.NewFromInt(2), TotalPriceCents: &total})
	svc := NewService(repo, stubGuard{}, nil, nil)

	item, err := svc.Assign(context.Background(), assignInput(line.ID))
	require.NoError(t, err)
	require.Equal(t, int64(2), item.Quantity)
	require.Equal(t, int64(15000), item.UnitPriceCents)
	require.Equal(t, int64(30000), item.TotalPriceCents)
	require.Equal(t, StatusAssigned, item.Status)
	require.Equal(t, line.ID, *item.SourceLineItemID)
	require.Equal(t, received.ItemAssigned, repo.lines[line.ID].Status, "source line is stamped in the same write")
}

func TestAssignStampsSourceLineWithOrgAndPeriod(t *testing.T) {
	repo := newMemoryRepo()
	total := int64(8000)
	line := seedLine(repo, SourceLine{Name: "Dokovací stanice", Quantity: decimal.NewFromInt(1), TotalPriceCents: &total})
	svc := NewService(repo, stubGuard{}, nil, nil)

	_, err := svc.Assign(context.Background(), assignInput(line.ID))
	require.NoError(t, err)

	stamp, ok := repo.stamps[line.ID]
	require.True(t, ok, "assignment records where the line went")
	require.Equal(t, int64(7), stamp.organizationID)
	require.Equal(t, 3, stamp.month)
	require.Equal(t, 2025, stamp.year)
}

func TestAssignDerivesTotalFromUnit(t *testing.T) {
	repo := newMemoryRepo()
	unit := int64(10000)
	line := seedLine(repo, SourceLine{Name: "Kabel", Quantity: decimal.NewFromInt(3), UnitPriceCents: &unit})
	svc := NewService(repo, stubGuard{}, nil, nil)

	item, err := svc.Assign(context.Background(), assignInput(line.ID))
	require.NoError(t, err)
	require.Equal(t, int64(3), item.Quantity)
	require.Equal(t, int64(10000), item.UnitPriceCents)
	require.Equal(t, int64(30000), item.TotalPriceCents)
}

func TestAssignWithoutPricesStoresZeros(t *testing.T) {
	repo := newMemoryRepo()
	line := seedLine(repo, SourceLine{Name: "Neoceněno", Quantity: decimal.NewFromInt(1)})
	svc := NewService(repo, stubGuard{}, nil, nil)

	item, err := svc.Assign(context.Background(), assignInput(line.ID))
	require.NoError(t, err, "missing prices never block assignment")
	require.Equal(t, int64(0), item.UnitPriceCents)
	require.Equal(t, int64(0), item.TotalPriceCents)
}

func TestAssignFractionalQuantityFlooredAtOne(t *testing.T) {
	repo := newMemoryRepo()
	total := int64(5000)
	line := seedLine(repo, SourceLine{Name: "Půl hodiny", Quantity: decimal.RequireFromString("0.4"), TotalPriceCents: &total})
	svc := NewService(repo, stubGuard{}, nil, nil)

	item, err := svc.Assign(context.Background(), assignInput(line.ID))
	require.NoError(t, err)
	require.Equal(t, int64(1), item.Quantity)
	require.Equal(t, int64(5000), item.UnitPriceCents)
}

func TestAssignFloorsFractionalQuantity(t *testing.T) {
	repo := newMemoryRepo()
	total := int64(9000)
	line := seedLine(repo, SourceLine{Name: "Licence", Quantity: decimal.RequireFromString("2.5"), TotalPriceCents: &total})
	svc := NewService(repo, stubGuard{}, nil, nil)

	item, err := svc.Assign(context.Background(), assignInput(line.ID))
	require.NoError(t, err)
	require.Equal(t, int64(2), item.Quantity, "2.5 floors to 2, never rounds to 3")
	require.Equal(t, int64(4500), item.UnitPriceCents)
	require.Equal(t, int64(9000), item.TotalPriceCents)
}

func TestAssignErrorOrder(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, stubGuard{locked: true}, nil, nil)

	// Locked period wins even when the line does not exist.
	_, err := svc.Assign(context.Background(), assignInput(999))
	require.ErrorIs(t, err, shared.ErrPeriodLocked)

	svc = NewService(repo, stubGuard{}, nil, nil)
	_, err = svc.Assign(context.Background(), assignInput(999))
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestAssignTwiceFails(t *testing.T) {
	repo := newMemoryRepo()
	total := int64(1000)
	line := seedLine(repo, SourceLine{Name: "Disk", Quantity: decimal.NewFromInt(1), TotalPriceCents: &total})
	svc := NewService(repo, stubGuard{}, nil, nil)

	_, err := svc.Assign(context.Background(), assignInput(line.ID))
	require.NoError(t, err)
	_, err = svc.Assign(context.Background(), assignInput(line.ID))
	require.ErrorIs(t, err, shared.ErrAlreadyAssigned)
	require.Len(t, repo.items, 1, "no second item is created")
}

func TestCreateManualGuarded(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, stubGuard{locked: true}, nil, nil)

	_, err := svc.Create(context.Background(), CreateInput{OrganizationID: 7, Name: "Ručně", Month: 3, Year: 2025})
	require.ErrorIs(t, err, shared.ErrPeriodLocked)
}

func TestCreateManualDerivesTotal(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, stubGuard{}, nil, nil)

	item, err := svc.Create(context.Background(), CreateInput{
		OrganizationID: 7, Name: "Switch", Quantity: 2, UnitPriceCents: 250000, Month: 3, Year: 2025,
	})
	require.NoError(t, err)
	require.Equal(t, StatusManual, item.Status)
	require.Equal(t, int64(500000), item.TotalPriceCents)
	require.Nil(t, item.SourceLineItemID)
}

func TestInvoicedItemImmutable(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, stubGuard{}, nil, nil)

	item, err := svc.Create(context.Background(), CreateInput{OrganizationID: 7, Name: "Router", Quantity: 1, Month: 3, Year: 2025})
	require.NoError(t, err)
	require.NoError(t, repo.MarkInvoiced(context.Background(), 7, 3, 2025))

	_, err = svc.Update(context.Background(), Item{ID: item.ID, Name: "Router v2"}, 1)
	require.ErrorIs(t, err, ErrInvoicedImmutable)
	err = svc.Delete(context.Background(), item.ID, 1)
	require.ErrorIs(t, err, ErrInvoicedImmutable)
}
