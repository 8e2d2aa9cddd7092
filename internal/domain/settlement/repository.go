package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DebtFilter holds query options for listing debts
type DebtFilter struct {
	Role           *PartyRole
	Status         *DebtStatus
	CounterpartyID *uuid.UUID
	DueBefore      *time.Time
	DueAfter       *time.Time
	Page           int
	PageSize       int
}

// PaymentFilter holds query options for listing payments
type PaymentFilter struct {
	Role           *PartyRole
	CounterpartyID *uuid.UUID
	Method         *PaymentMethod
	Page           int
	PageSize       int
}

// DebtRepository persists Debt aggregates
type DebtRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Debt, error)
	// FindByIDsForUpdate loads the given debts in ascending id order, holding
	// a row lock on each until the surrounding transaction completes. The
	// deterministic order is the engine's deadlock-avoidance mechanism and
	// must not change.
	FindByIDsForUpdate(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*Debt, error)
	FindBySourceDocument(ctx context.Context, tenantID uuid.UUID, role PartyRole, sourceDocumentID uuid.UUID) (*Debt, error)
	FindByFilter(ctx context.Context, tenantID uuid.UUID, filter DebtFilter) ([]*Debt, int64, error)
	ExistsBySourceDocument(ctx context.Context, tenantID uuid.UUID, role PartyRole, sourceDocumentID uuid.UUID) (bool, error)
	Save(ctx context.Context, debt *Debt) error
	// SaveWithLock persists the debt only if its stored version matches
	// version-1, failing with a concurrency conflict otherwise.
	SaveWithLock(ctx context.Context, debt *Debt) error
	// MarkOverdueSweep bulk-transitions all open debts past due as of asOf to
	// OVERDUE and returns the number of rows affected. Idempotent: rows
	// already OVERDUE are excluded from the update set.
	MarkOverdueSweep(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (int64, error)
	CountByStatus(ctx context.Context, tenantID uuid.UUID, role PartyRole) (map[DebtStatus]int64, error)
	SumPendingForTenant(ctx context.Context, tenantID uuid.UUID, role PartyRole) (decimal.Decimal, error)
	SumPendingForCounterparty(ctx context.Context, tenantID uuid.UUID, role PartyRole, counterpartyID uuid.UUID) (decimal.Decimal, error)
	ListTenantIDs(ctx context.Context) ([]uuid.UUID, error)
	GenerateDebtNumber(ctx context.Context, tenantID uuid.UUID, role PartyRole) (string, error)
}

// PaymentRepository persists Payment aggregates
type PaymentRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Payment, error)
	// FindByIDForUpdate loads the payment holding a row lock until the
	// surrounding transaction completes. Serializes concurrent apply/reverse
	// calls against the same payment so its capacity cannot be oversubscribed.
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Payment, error)
	FindByFilter(ctx context.Context, tenantID uuid.UUID, filter PaymentFilter) ([]*Payment, int64, error)
	Save(ctx context.Context, payment *Payment) error
	SaveWithLock(ctx context.Context, payment *Payment) error
	GeneratePaymentNumber(ctx context.Context, tenantID uuid.UUID, role PartyRole) (string, error)
}

// AllocationRepository persists Allocation records
type AllocationRepository interface {
	FindByPayment(ctx context.Context, tenantID, paymentID uuid.UUID) ([]*Allocation, error)
	FindByDebt(ctx context.Context, tenantID, debtID uuid.UUID) ([]*Allocation, error)
	// SumByPayment returns the total amount currently allocated from a
	// payment. The payment's available amount is always derived from this,
	// never cached.
	SumByPayment(ctx context.Context, tenantID, paymentID uuid.UUID) (decimal.Decimal, error)
	ExistsForPair(ctx context.Context, tenantID, paymentID, debtID uuid.UUID) (bool, error)
	Create(ctx context.Context, allocation *Allocation) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}
