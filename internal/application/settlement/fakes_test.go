package settlement

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memStores is the shared backing state for the in-memory repositories. The
// fake transaction scope snapshots and restores it to emulate rollback.
type memStores struct {
	debts       map[uuid.UUID]*settlement.Debt
	payments    map[uuid.UUID]*settlement.Payment
	allocations map[uuid.UUID]*settlement.Allocation
	debtSeq     int
	paymentSeq  int
}

func newMemStores() *memStores {
	return &memStores{
		debts:       make(map[uuid.UUID]*settlement.Debt),
		payments:    make(map[uuid.UUID]*settlement.Payment),
		allocations: make(map[uuid.UUID]*settlement.Allocation),
	}
}

func (m *memStores) snapshot() *memStores {
	snap := newMemStores()
	snap.debtSeq = m.debtSeq
	snap.paymentSeq = m.paymentSeq
	for id, d := range m.debts {
		c := *d
		snap.debts[id] = &c
	}
	for id, p := range m.payments {
		c := *p
		snap.payments[id] = &c
	}
	for id, a := range m.allocations {
		c := *a
		snap.allocations[id] = &c
	}
	return snap
}

func (m *memStores) restore(snap *memStores) {
	m.debts = snap.debts
	m.payments = snap.payments
	m.allocations = snap.allocations
	m.debtSeq = snap.debtSeq
	m.paymentSeq = snap.paymentSeq
}

// memDebtRepo is an in-memory DebtRepository for service tests. sweepErr
// injects per-tenant failures into MarkOverdueSweep.
type memDebtRepo struct {
	s        *memStores
	sweepErr map[uuid.UUID]error
}

func (r *memDebtRepo) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*settlement.Debt, error) {
	d, ok := r.s.debts[id]
	if !ok || d.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	c := *d
	return &c, nil
}

func (r *memDebtRepo) FindByIDsForUpdate(_ context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*settlement.Debt, error) {
	sorted := make([]uuid.UUID, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})

	debts := make([]*settlement.Debt, 0, len(sorted))
	for _, id := range sorted {
		d, ok := r.s.debts[id]
		if !ok || d.TenantID != tenantID {
			continue
		}
		c := *d
		debts = append(debts, &c)
	}
	return debts, nil
}

func (r *memDebtRepo) FindBySourceDocument(_ context.Context, tenantID uuid.UUID, role settlement.PartyRole, sourceDocumentID uuid.UUID) (*settlement.Debt, error) {
	for _, d := range r.s.debts {
		if d.TenantID == tenantID && d.Role == role && d.SourceDocumentID == sourceDocumentID {
			c := *d
			return &c, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memDebtRepo) FindByFilter(_ context.Context, tenantID uuid.UUID, filter settlement.DebtFilter) ([]*settlement.Debt, int64, error) {
	matched := make([]*settlement.Debt, 0)
	for _, d := range r.s.debts {
		if d.TenantID != tenantID {
			continue
		}
		if filter.Role != nil && d.Role != *filter.Role {
			continue
		}
		if filter.Status != nil && d.Status != *filter.Status {
			continue
		}
		if filter.CounterpartyID != nil && d.CounterpartyID != *filter.CounterpartyID {
			continue
		}
		c := *d
		matched = append(matched, &c)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].DebtNumber < matched[j].DebtNumber
	})
	return matched, int64(len(matched)), nil
}

func (r *memDebtRepo) ExistsBySourceDocument(_ context.Context, tenantID uuid.UUID, role settlement.PartyRole, sourceDocumentID uuid.UUID) (bool, error) {
	for _, d := range r.s.debts {
		if d.TenantID == tenantID && d.Role == role && d.SourceDocumentID == sourceDocumentID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memDebtRepo) Save(_ context.Context, debt *settlement.Debt) error {
	c := *debt
	r.s.debts[debt.ID] = &c
	return nil
}

func (r *memDebtRepo) SaveWithLock(_ context.Context, debt *settlement.Debt) error {
	stored, ok := r.s.debts[debt.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != debt.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	c := *debt
	r.s.debts[debt.ID] = &c
	return nil
}

func (r *memDebtRepo) MarkOverdueSweep(_ context.Context, tenantID uuid.UUID, asOf time.Time) (int64, error) {
	if err := r.sweepErr[tenantID]; err != nil {
		return 0, err
	}
	var affected int64
	for _, d := range r.s.debts {
		if d.TenantID != tenantID {
			continue
		}
		if d.MarkOverdue(asOf) {
			d.ClearDomainEvents()
			affected++
		}
	}
	return affected, nil
}

func (r *memDebtRepo) CountByStatus(_ context.Context, tenantID uuid.UUID, role settlement.PartyRole) (map[settlement.DebtStatus]int64, error) {
	counts := make(map[settlement.DebtStatus]int64)
	for _, d := range r.s.debts {
		if d.TenantID == tenantID && d.Role == role {
			counts[d.Status]++
		}
	}
	return counts, nil
}

func (r *memDebtRepo) SumPendingForTenant(_ context.Context, tenantID uuid.UUID, role settlement.PartyRole) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, d := range r.s.debts {
		if d.TenantID == tenantID && d.Role == role && d.Status != settlement.DebtStatusVoid {
			total = total.Add(d.PendingAmount().Amount())
		}
	}
	return total, nil
}

func (r *memDebtRepo) SumPendingForCounterparty(_ context.Context, tenantID uuid.UUID, role settlement.PartyRole, counterpartyID uuid.UUID) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, d := range r.s.debts {
		if d.TenantID == tenantID && d.Role == role && d.CounterpartyID == counterpartyID && d.Status != settlement.DebtStatusVoid {
			total = total.Add(d.PendingAmount().Amount())
		}
	}
	return total, nil
}

func (r *memDebtRepo) ListTenantIDs(_ context.Context) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool)
	ids := make([]uuid.UUID, 0)
	for _, d := range r.s.debts {
		if !seen[d.TenantID] {
			seen[d.TenantID] = true
			ids = append(ids, d.TenantID)
		}
	}
	return ids, nil
}

func (r *memDebtRepo) GenerateDebtNumber(_ context.Context, _ uuid.UUID, role settlement.PartyRole) (string, error) {
	r.s.debtSeq++
	return fmt.Sprintf("%s-%s-%05d", role.DebtNumberPrefix(), time.Now().Format("20060102"), r.s.debtSeq), nil
}

// memPaymentRepo is an in-memory PaymentRepository for service tests
type memPaymentRepo struct {
	s *memStores
}

func (r *memPaymentRepo) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*settlement.Payment, error) {
	p, ok := r.s.payments[id]
	if !ok || p.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (r *memPaymentRepo) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*settlement.Payment, error) {
	return r.FindByIDForTenant(ctx, tenantID, id)
}

func (r *memPaymentRepo) FindByFilter(_ context.Context, tenantID uuid.UUID, filter settlement.PaymentFilter) ([]*settlement.Payment, int64, error) {
	matched := make([]*settlement.Payment, 0)
	for _, p := range r.s.payments {
		if p.TenantID != tenantID {
			continue
		}
		if filter.Role != nil && p.Role != *filter.Role {
			continue
		}
		if filter.Method != nil && p.Method != *filter.Method {
			continue
		}
		if filter.CounterpartyID != nil && p.CounterpartyID != *filter.CounterpartyID {
			continue
		}
		c := *p
		matched = append(matched, &c)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].PaymentNumber < matched[j].PaymentNumber
	})
	return matched, int64(len(matched)), nil
}

func (r *memPaymentRepo) Save(_ context.Context, payment *settlement.Payment) error {
	c := *payment
	r.s.payments[payment.ID] = &c
	return nil
}

func (r *memPaymentRepo) SaveWithLock(_ context.Context, payment *settlement.Payment) error {
	stored, ok := r.s.payments[payment.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != payment.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	c := *payment
	r.s.payments[payment.ID] = &c
	return nil
}

func (r *memPaymentRepo) GeneratePaymentNumber(_ context.Context, _ uuid.UUID, role settlement.PartyRole) (string, error) {
	r.s.paymentSeq++
	return fmt.Sprintf("%s-%s-%05d", role.PaymentNumberPrefix(), time.Now().Format("20060102"), r.s.paymentSeq), nil
}

// memAllocationRepo is an in-memory AllocationRepository for service tests
type memAllocationRepo struct {
	s *memStores
}

func (r *memAllocationRepo) FindByPayment(_ context.Context, tenantID, paymentID uuid.UUID) ([]*settlement.Allocation, error) {
	allocs := make([]*settlement.Allocation, 0)
	for _, a := range r.s.allocations {
		if a.TenantID == tenantID && a.PaymentID == paymentID {
			c := *a
			allocs = append(allocs, &c)
		}
	}
	return allocs, nil
}

func (r *memAllocationRepo) FindByDebt(_ context.Context, tenantID, debtID uuid.UUID) ([]*settlement.Allocation, error) {
	allocs := make([]*settlement.Allocation, 0)
	for _, a := range r.s.allocations {
		if a.TenantID == tenantID && a.DebtID == debtID {
			c := *a
			allocs = append(allocs, &c)
		}
	}
	return allocs, nil
}

func (r *memAllocationRepo) SumByPayment(_ context.Context, tenantID, paymentID uuid.UUID) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, a := range r.s.allocations {
		if a.TenantID == tenantID && a.PaymentID == paymentID {
			total = total.Add(a.AmountApplied.Amount())
		}
	}
	return total, nil
}

func (r *memAllocationRepo) ExistsForPair(_ context.Context, tenantID, paymentID, debtID uuid.UUID) (bool, error) {
	for _, a := range r.s.allocations {
		if a.TenantID == tenantID && a.PaymentID == paymentID && a.DebtID == debtID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memAllocationRepo) Create(_ context.Context, allocation *settlement.Allocation) error {
	c := *allocation
	r.s.allocations[allocation.ID] = &c
	return nil
}

func (r *memAllocationRepo) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	a, ok := r.s.allocations[id]
	if !ok || a.TenantID != tenantID {
		return shared.ErrNotFound
	}
	delete(r.s.allocations, id)
	return nil
}

// memTransactionScope runs operations against the in-memory stores, restoring
// a pre-execution snapshot when the function fails so tests can assert
// all-or-nothing behavior.
type memTransactionScope struct {
	s           *memStores
	debts       *memDebtRepo
	payments    *memPaymentRepo
	allocations *memAllocationRepo
}

func newMemTransactionScope(s *memStores) *memTransactionScope {
	return &memTransactionScope{
		s:           s,
		debts:       &memDebtRepo{s: s},
		payments:    &memPaymentRepo{s: s},
		allocations: &memAllocationRepo{s: s},
	}
}

func (t *memTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	snap := t.s.snapshot()
	if err := fn(t); err != nil {
		t.s.restore(snap)
		return err
	}
	return nil
}

func (t *memTransactionScope) DebtRepo() settlement.DebtRepository             { return t.debts }
func (t *memTransactionScope) PaymentRepo() settlement.PaymentRepository       { return t.payments }
func (t *memTransactionScope) AllocationRepo() settlement.AllocationRepository { return t.allocations }

var _ TransactionScope = (*memTransactionScope)(nil)
var _ TransactionalRepositories = (*memTransactionScope)(nil)
var _ settlement.DebtRepository = (*memDebtRepo)(nil)
var _ settlement.PaymentRepository = (*memPaymentRepo)(nil)
var _ settlement.AllocationRepository = (*memAllocationRepo)(nil)
