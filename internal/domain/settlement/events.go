package settlement

import (
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Event types for the settlement engine
const (
	EventTypeDebtCreated     = "settlement.debt.created"
	EventTypeDebtSettled     = "settlement.debt.settled"
	EventTypeDebtVoided      = "settlement.debt.voided"
	EventTypeDebtOverdue     = "settlement.debt.overdue"
	EventTypePaymentApplied  = "settlement.payment.applied"
	EventTypePaymentReversed = "settlement.payment.reversed"
)

// DebtCreatedEvent is emitted when a new debt enters the ledger
type DebtCreatedEvent struct {
	shared.BaseDomainEvent
	DebtNumber     string    `json:"debt_number"`
	Role           PartyRole `json:"role"`
	CounterpartyID uuid.UUID `json:"counterparty_id"`
	OriginalAmount string    `json:"original_amount"`
}

// NewDebtCreatedEvent creates a DebtCreatedEvent
func NewDebtCreatedEvent(d *Debt) *DebtCreatedEvent {
	return &DebtCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDebtCreated, "Debt", d.ID, d.TenantID),
		DebtNumber:      d.DebtNumber,
		Role:            d.Role,
		CounterpartyID:  d.CounterpartyID,
		OriginalAmount:  d.OriginalAmount.StringFixed(2),
	}
}

// DebtSettledEvent is emitted on every settlement applied to a debt
type DebtSettledEvent struct {
	shared.BaseDomainEvent
	DebtNumber    string     `json:"debt_number"`
	AmountApplied string     `json:"amount_applied"`
	PendingAmount string     `json:"pending_amount"`
	NewStatus     DebtStatus `json:"new_status"`
}

// NewDebtSettledEvent creates a DebtSettledEvent
func NewDebtSettledEvent(d *Debt, applied valueobject.Money) *DebtSettledEvent {
	return &DebtSettledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDebtSettled, "Debt", d.ID, d.TenantID),
		DebtNumber:      d.DebtNumber,
		AmountApplied:   applied.StringFixed(2),
		PendingAmount:   d.PendingAmount().StringFixed(2),
		NewStatus:       d.Status,
	}
}

// DebtVoidedEvent is emitted when a debt is voided
type DebtVoidedEvent struct {
	shared.BaseDomainEvent
	DebtNumber string `json:"debt_number"`
	Reason     string `json:"reason"`
}

// NewDebtVoidedEvent creates a DebtVoidedEvent
func NewDebtVoidedEvent(d *Debt, reason string) *DebtVoidedEvent {
	return &DebtVoidedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDebtVoided, "Debt", d.ID, d.TenantID),
		DebtNumber:      d.DebtNumber,
		Reason:          reason,
	}
}

// DebtOverdueEvent is emitted when a debt passes its due date
type DebtOverdueEvent struct {
	shared.BaseDomainEvent
	DebtNumber string `json:"debt_number"`
}

// NewDebtOverdueEvent creates a DebtOverdueEvent
func NewDebtOverdueEvent(d *Debt) *DebtOverdueEvent {
	return &DebtOverdueEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDebtOverdue, "Debt", d.ID, d.TenantID),
		DebtNumber:      d.DebtNumber,
	}
}

// PaymentAppliedEvent is emitted once per successful apply operation
type PaymentAppliedEvent struct {
	shared.BaseDomainEvent
	PaymentNumber   string `json:"payment_number"`
	AllocationCount int    `json:"allocation_count"`
	TotalApplied    string `json:"total_applied"`
}

// NewPaymentAppliedEvent creates a PaymentAppliedEvent
func NewPaymentAppliedEvent(p *Payment, allocationCount int, totalApplied valueobject.Money) *PaymentAppliedEvent {
	return &PaymentAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentApplied, "Payment", p.ID, p.TenantID),
		PaymentNumber:   p.PaymentNumber,
		AllocationCount: allocationCount,
		TotalApplied:    totalApplied.StringFixed(2),
	}
}

// PaymentReversedEvent is emitted once per successful reverse operation
type PaymentReversedEvent struct {
	shared.BaseDomainEvent
	PaymentNumber   string `json:"payment_number"`
	AllocationCount int    `json:"allocation_count"`
	Reason          string `json:"reason"`
}

// NewPaymentReversedEvent creates a PaymentReversedEvent
func NewPaymentReversedEvent(p *Payment, allocationCount int, reason string) *PaymentReversedEvent {
	return &PaymentReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentReversed, "Payment", p.ID, p.TenantID),
		PaymentNumber:   p.PaymentNumber,
		AllocationCount: allocationCount,
		Reason:          reason,
	}
}
