package persistence

import (
	"context"

	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormAllocationRepository implements settlement.AllocationRepository using GORM
type GormAllocationRepository struct {
	db *gorm.DB
}

// NewGormAllocationRepository creates a new GormAllocationRepository
func NewGormAllocationRepository(db *gorm.DB) *GormAllocationRepository {
	return &GormAllocationRepository{db: db}
}

// FindByPayment returns all allocations of a payment
func (r *GormAllocationRepository) FindByPayment(ctx context.Context, tenantID, paymentID uuid.UUID) ([]*settlement.Allocation, error) {
	var dbModels []models.AllocationModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND payment_id = ?", tenantID, paymentID).
		Order("debt_id ASC").
		Find(&dbModels).Error
	if err != nil {
		return nil, err
	}
	return r.toDomainList(dbModels)
}

// FindByDebt returns all allocations against a debt
func (r *GormAllocationRepository) FindByDebt(ctx context.Context, tenantID, debtID uuid.UUID) ([]*settlement.Allocation, error) {
	var dbModels []models.AllocationModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND debt_id = ?", tenantID, debtID).
		Order("created_at ASC").
		Find(&dbModels).Error
	if err != nil {
		return nil, err
	}
	return r.toDomainList(dbModels)
}

// SumByPayment returns the total amount currently allocated from a payment
func (r *GormAllocationRepository) SumByPayment(ctx context.Context, tenantID, paymentID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&models.AllocationModel{}).
		Select("COALESCE(SUM(amount_applied), 0) as total").
		Where("tenant_id = ? AND payment_id = ?", tenantID, paymentID).
		Scan(&result).Error
	if err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// ExistsForPair checks whether the payment already allocates to the debt
func (r *GormAllocationRepository) ExistsForPair(ctx context.Context, tenantID, paymentID, debtID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AllocationModel{}).
		Where("tenant_id = ? AND payment_id = ? AND debt_id = ?", tenantID, paymentID, debtID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts a new allocation
func (r *GormAllocationRepository) Create(ctx context.Context, allocation *settlement.Allocation) error {
	model := models.AllocationModelFromDomain(allocation)
	return r.db.WithContext(ctx).Create(model).Error
}

// Delete hard-deletes an allocation. Reversal removes rows; there is no
// soft-delete for allocations.
func (r *GormAllocationRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&models.AllocationModel{}).Error
}

func (r *GormAllocationRepository) toDomainList(dbModels []models.AllocationModel) ([]*settlement.Allocation, error) {
	allocations := make([]*settlement.Allocation, 0, len(dbModels))
	for i := range dbModels {
		allocation, err := dbModels[i].ToDomain()
		if err != nil {
			return nil, err
		}
		allocations = append(allocations, allocation)
	}
	return allocations, nil
}

// Ensure GormAllocationRepository implements AllocationRepository
var _ settlement.AllocationRepository = (*GormAllocationRepository)(nil)
