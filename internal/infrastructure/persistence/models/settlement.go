package models

import (
	"time"

	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DebtModel is the persistence model for settlement.Debt.
// The pending balance is never stored; it is always derived from
// original_amount - settled_amount.
type DebtModel struct {
	TenantAggregateModel
	DebtNumber           string          `gorm:"type:varchar(32);not null;index"`
	Role                 string          `gorm:"type:varchar(16);not null;index"`
	CounterpartyID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	SourceDocumentID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	SourceDocumentNumber string          `gorm:"type:varchar(64)"`
	DocumentDate         time.Time       `gorm:"not null"`
	DueDate              time.Time       `gorm:"not null;index"`
	OriginalAmount       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	SettledAmount        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Currency             string          `gorm:"type:varchar(3);not null"`
	Status               string          `gorm:"type:varchar(32);not null;index"`
	VoidReason           string          `gorm:"type:text"`
}

// TableName specifies the table name for DebtModel
func (DebtModel) TableName() string {
	return "settlement_debts"
}

// ToDomain converts the persistence model to a domain Debt
func (m *DebtModel) ToDomain() (*settlement.Debt, error) {
	original, err := valueobject.NewMoney(m.OriginalAmount, valueobject.Currency(m.Currency))
	if err != nil {
		return nil, err
	}
	settled, err := valueobject.NewMoney(m.SettledAmount, valueobject.Currency(m.Currency))
	if err != nil {
		return nil, err
	}

	debt := &settlement.Debt{
		DebtNumber:           m.DebtNumber,
		Role:                 settlement.PartyRole(m.Role),
		CounterpartyID:       m.CounterpartyID,
		SourceDocumentID:     m.SourceDocumentID,
		SourceDocumentNumber: m.SourceDocumentNumber,
		DocumentDate:         m.DocumentDate,
		DueDate:              m.DueDate,
		OriginalAmount:       original,
		SettledAmount:        settled,
		Status:               settlement.DebtStatus(m.Status),
		VoidReason:           m.VoidReason,
	}
	m.PopulateTenantAggregateRoot(&debt.TenantAggregateRoot)
	return debt, nil
}

// DebtModelFromDomain converts a domain Debt to the persistence model
func DebtModelFromDomain(d *settlement.Debt) *DebtModel {
	m := &DebtModel{
		DebtNumber:           d.DebtNumber,
		Role:                 string(d.Role),
		CounterpartyID:       d.CounterpartyID,
		SourceDocumentID:     d.SourceDocumentID,
		SourceDocumentNumber: d.SourceDocumentNumber,
		DocumentDate:         d.DocumentDate,
		DueDate:              d.DueDate,
		OriginalAmount:       d.OriginalAmount.Amount(),
		SettledAmount:        d.SettledAmount.Amount(),
		Currency:             string(d.OriginalAmount.Currency()),
		Status:               string(d.Status),
		VoidReason:           d.VoidReason,
	}
	m.FromDomainTenantAggregateRoot(d.TenantAggregateRoot)
	return m
}

// PaymentModel is the persistence model for settlement.Payment.
// No allocated/available column exists on purpose: the unallocated remainder
// is always recomputed from settlement_allocations.
type PaymentModel struct {
	TenantAggregateModel
	PaymentNumber  string          `gorm:"type:varchar(32);not null;index"`
	Role           string          `gorm:"type:varchar(16);not null;index"`
	CounterpartyID uuid.UUID       `gorm:"type:uuid;not null;index"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Currency       string          `gorm:"type:varchar(3);not null"`
	Method         string          `gorm:"type:varchar(32);not null"`
	Reference      string          `gorm:"type:varchar(128)"`
	PaymentDate    time.Time       `gorm:"not null;index"`
	Note           string          `gorm:"type:text"`
}

// TableName specifies the table name for PaymentModel
func (PaymentModel) TableName() string {
	return "settlement_payments"
}

// ToDomain converts the persistence model to a domain Payment
func (m *PaymentModel) ToDomain() (*settlement.Payment, error) {
	total, err := valueobject.NewMoney(m.TotalAmount, valueobject.Currency(m.Currency))
	if err != nil {
		return nil, err
	}

	payment := &settlement.Payment{
		PaymentNumber:  m.PaymentNumber,
		Role:           settlement.PartyRole(m.Role),
		CounterpartyID: m.CounterpartyID,
		TotalAmount:    total,
		Method:         settlement.PaymentMethod(m.Method),
		Reference:      m.Reference,
		PaymentDate:    m.PaymentDate,
		Note:           m.Note,
	}
	m.PopulateTenantAggregateRoot(&payment.TenantAggregateRoot)
	return payment, nil
}

// PaymentModelFromDomain converts a domain Payment to the persistence model
func PaymentModelFromDomain(p *settlement.Payment) *PaymentModel {
	m := &PaymentModel{
		PaymentNumber:  p.PaymentNumber,
		Role:           string(p.Role),
		CounterpartyID: p.CounterpartyID,
		TotalAmount:    p.TotalAmount.Amount(),
		Currency:       string(p.TotalAmount.Currency()),
		Method:         string(p.Method),
		Reference:      p.Reference,
		PaymentDate:    p.PaymentDate,
		Note:           p.Note,
	}
	m.FromDomainTenantAggregateRoot(p.TenantAggregateRoot)
	return m
}

// AllocationModel is the persistence model for settlement.Allocation.
// The (payment_id, debt_id) pair is unique: a payment may not allocate to the
// same debt twice. Rows cascade-delete with their payment; debts are never
// deleted, only voided.
type AllocationModel struct {
	BaseModel
	TenantID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	PaymentID     uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_allocation_pair,priority:1;constraint:OnDelete:CASCADE"`
	DebtID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_allocation_pair,priority:2;index"`
	AmountApplied decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Currency      string          `gorm:"type:varchar(3);not null"`
	CreatedBy     *uuid.UUID      `gorm:"type:uuid"`
}

// TableName specifies the table name for AllocationModel
func (AllocationModel) TableName() string {
	return "settlement_allocations"
}

// ToDomain converts the persistence model to a domain Allocation
func (m *AllocationModel) ToDomain() (*settlement.Allocation, error) {
	amount, err := valueobject.NewMoney(m.AmountApplied, valueobject.Currency(m.Currency))
	if err != nil {
		return nil, err
	}

	return &settlement.Allocation{
		BaseEntity:    m.BaseModel.ToDomain(),
		TenantID:      m.TenantID,
		PaymentID:     m.PaymentID,
		DebtID:        m.DebtID,
		AmountApplied: amount,
		CreatedBy:     m.CreatedBy,
	}, nil
}

// AllocationModelFromDomain converts a domain Allocation to the persistence model
func AllocationModelFromDomain(a *settlement.Allocation) *AllocationModel {
	m := &AllocationModel{
		TenantID:      a.TenantID,
		PaymentID:     a.PaymentID,
		DebtID:        a.DebtID,
		AmountApplied: a.AmountApplied.Amount(),
		Currency:      string(a.AmountApplied.Currency()),
		CreatedBy:     a.CreatedBy,
	}
	m.FromDomainBaseEntity(a.BaseEntity)
	return m
}
