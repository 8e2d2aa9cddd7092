package settlement

import (
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// DebtStatus represents the lifecycle state of a debt
type DebtStatus string

const (
	DebtStatusPending          DebtStatus = "PENDING"
	DebtStatusPartiallySettled DebtStatus = "PARTIALLY_SETTLED"
	DebtStatusSettled          DebtStatus = "SETTLED"
	DebtStatusOverdue          DebtStatus = "OVERDUE"
	DebtStatusVoid             DebtStatus = "VOID"
)

// IsValid returns true if the status is a known value
func (s DebtStatus) IsValid() bool {
	switch s {
	case DebtStatusPending, DebtStatusPartiallySettled, DebtStatusSettled, DebtStatusOverdue, DebtStatusVoid:
		return true
	}
	return false
}

// IsTerminal returns true for states that never transition further
func (s DebtStatus) IsTerminal() bool {
	return s == DebtStatusSettled || s == DebtStatusVoid
}

// IsAllocatable returns true if a payment may be allocated against a debt in this state
func (s DebtStatus) IsAllocatable() bool {
	return s == DebtStatusPending || s == DebtStatusPartiallySettled || s == DebtStatusOverdue
}

// Debt is one outstanding document owed by a customer (receivable) or to a
// supplier (payable). It owns the settled-amount accumulator; only the
// settlement service mutates it.
type Debt struct {
	shared.TenantAggregateRoot
	DebtNumber           string
	Role                 PartyRole
	CounterpartyID       uuid.UUID
	SourceDocumentID     uuid.UUID
	SourceDocumentNumber string
	DocumentDate         time.Time
	DueDate              time.Time
	OriginalAmount       valueobject.Money
	SettledAmount        valueobject.Money
	Status               DebtStatus
	VoidReason           string
}

// NewDebt creates a new debt in PENDING state.
// The originating document relationship is 1:1 and enforced by the repository.
func NewDebt(
	tenantID uuid.UUID,
	role PartyRole,
	debtNumber string,
	counterpartyID uuid.UUID,
	sourceDocumentID uuid.UUID,
	sourceDocumentNumber string,
	documentDate time.Time,
	dueDate time.Time,
	originalAmount valueobject.Money,
) (*Debt, error) {
	if tenantID == uuid.Nil {
		return nil, NewValidationError("tenant ID is required")
	}
	if !role.IsValid() {
		return nil, NewValidationError("invalid party role")
	}
	if counterpartyID == uuid.Nil {
		return nil, NewValidationError("counterparty ID is required")
	}
	if sourceDocumentID == uuid.Nil {
		return nil, NewValidationError("source document ID is required")
	}
	if originalAmount.IsNegative() {
		return nil, NewValidationError("original amount cannot be negative")
	}
	if dueDate.Before(documentDate) {
		return nil, NewValidationError("due date cannot be before document date")
	}

	debt := &Debt{
		TenantAggregateRoot:  shared.NewTenantAggregateRoot(tenantID),
		DebtNumber:           debtNumber,
		Role:                 role,
		CounterpartyID:       counterpartyID,
		SourceDocumentID:     sourceDocumentID,
		SourceDocumentNumber: sourceDocumentNumber,
		DocumentDate:         documentDate,
		DueDate:              dueDate,
		OriginalAmount:       originalAmount,
		SettledAmount:        valueobject.Zero(originalAmount.Currency()),
		Status:               DebtStatusPending,
	}

	debt.AddDomainEvent(NewDebtCreatedEvent(debt))
	return debt, nil
}

// PendingAmount is the derived outstanding balance. It is never stored or set
// independently of OriginalAmount and SettledAmount.
func (d *Debt) PendingAmount() valueobject.Money {
	return d.OriginalAmount.MustSubtract(d.SettledAmount)
}

// CanSettle returns true if allocations may currently be applied to this debt
func (d *Debt) CanSettle() bool {
	return d.Status.IsAllocatable()
}

// ApplySettlement increments the settled accumulator by amount and recomputes
// the lifecycle state. The amount must not exceed the pending balance at the
// moment of the call; callers hold the row lock while invoking this.
func (d *Debt) ApplySettlement(amount valueobject.Money, asOf time.Time) error {
	if !amount.IsPositive() {
		return NewValidationError("settlement amount must be positive")
	}
	if !d.CanSettle() {
		return ErrDebtNotSettleable
	}

	exceeds, err := amount.GreaterThan(d.PendingAmount())
	if err != nil {
		return NewValidationError(err.Error())
	}
	if exceeds {
		return NewAmountExceedsPendingError(d.ID, d.PendingAmount())
	}

	d.SettledAmount = d.SettledAmount.MustAdd(amount)
	d.RecomputeStatus(asOf)
	d.UpdatedAt = time.Now()
	d.IncrementVersion()
	d.AddDomainEvent(NewDebtSettledEvent(d, amount))
	return nil
}

// ReverseSettlement decrements the settled accumulator by amount, undoing a
// prior allocation. Unlike RecomputeStatus, reversal is the sanctioned inverse
// of settlement and may move a SETTLED debt back to an open state; a VOID debt
// is never touched.
func (d *Debt) ReverseSettlement(amount valueobject.Money, asOf time.Time) error {
	if !amount.IsPositive() {
		return NewValidationError("reversal amount must be positive")
	}
	if d.Status == DebtStatusVoid {
		return ErrReversalNotAllowed
	}

	exceeds, err := amount.GreaterThan(d.SettledAmount)
	if err != nil {
		return NewValidationError(err.Error())
	}
	if exceeds {
		return NewValidationError("reversal amount exceeds settled amount")
	}

	d.SettledAmount = d.SettledAmount.MustSubtract(amount)
	d.Status = d.statusFromAmounts(asOf)
	d.UpdatedAt = time.Now()
	d.IncrementVersion()
	return nil
}

// Void marks the debt as VOID. Only a debt with nothing settled against it can
// be voided; voiding an already-void debt is a no-op success.
func (d *Debt) Void(reason string) error {
	if d.Status == DebtStatusVoid {
		return nil
	}
	if d.SettledAmount.IsPositive() {
		return NewValidationError("cannot void a debt with settled amount")
	}
	if d.Status == DebtStatusSettled {
		return NewValidationError("cannot void a settled debt")
	}

	d.Status = DebtStatusVoid
	d.VoidReason = reason
	d.UpdatedAt = time.Now()
	d.IncrementVersion()
	d.AddDomainEvent(NewDebtVoidedEvent(d, reason))
	return nil
}

// MarkOverdue transitions an open debt past its due date to OVERDUE.
// Returns true if the status changed.
func (d *Debt) MarkOverdue(asOf time.Time) bool {
	if d.Status != DebtStatusPending && d.Status != DebtStatusPartiallySettled {
		return false
	}
	if !d.DueDate.Before(asOf) {
		return false
	}
	d.Status = DebtStatusOverdue
	d.UpdatedAt = time.Now()
	d.IncrementVersion()
	d.AddDomainEvent(NewDebtOverdueEvent(d))
	return true
}

// RecomputeStatus derives the lifecycle state from the current amounts and due
// date. Terminal states are checked first and never transition further, even
// if amounts were mutated out of band. Idempotent.
func (d *Debt) RecomputeStatus(asOf time.Time) {
	if d.Status.IsTerminal() {
		return
	}
	d.Status = d.statusFromAmounts(asOf)
}

// statusFromAmounts computes the open-state machine without the terminal
// short-circuit. Used by RecomputeStatus and by reversal, which is allowed to
// reopen a SETTLED debt.
func (d *Debt) statusFromAmounts(asOf time.Time) DebtStatus {
	pending := d.PendingAmount()
	switch {
	case !pending.IsPositive():
		return DebtStatusSettled
	case d.SettledAmount.IsPositive():
		return DebtStatusPartiallySettled
	case d.DueDate.Before(asOf):
		return DebtStatusOverdue
	default:
		return DebtStatusPending
	}
}
