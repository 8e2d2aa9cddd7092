package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPaymentRepository implements settlement.PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// FindByIDForTenant finds a payment by ID scoped to a tenant
func (r *GormPaymentRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*settlement.Payment, error) {
	var model models.PaymentModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindByIDForUpdate loads a payment holding a row lock until the surrounding
// transaction completes. Serializes concurrent apply/reverse calls against the
// same payment.
func (r *GormPaymentRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*settlement.Payment, error) {
	var model models.PaymentModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindByFilter returns payments matching the filter with the total count
func (r *GormPaymentRepository) FindByFilter(ctx context.Context, tenantID uuid.UUID, filter settlement.PaymentFilter) ([]*settlement.Payment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PaymentModel{}).Where("tenant_id = ?", tenantID)
	if filter.Role != nil {
		query = query.Where("role = ?", string(*filter.Role))
	}
	if filter.CounterpartyID != nil {
		query = query.Where("counterparty_id = ?", *filter.CounterpartyID)
	}
	if filter.Method != nil {
		query = query.Where("method = ?", string(*filter.Method))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	var dbModels []models.PaymentModel
	err := query.
		Order("payment_date DESC, id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&dbModels).Error
	if err != nil {
		return nil, 0, err
	}

	payments := make([]*settlement.Payment, 0, len(dbModels))
	for i := range dbModels {
		payment, err := dbModels[i].ToDomain()
		if err != nil {
			return nil, 0, err
		}
		payments = append(payments, payment)
	}
	return payments, total, nil
}

// Save creates or updates a payment
func (r *GormPaymentRepository) Save(ctx context.Context, payment *settlement.Payment) error {
	model := models.PaymentModelFromDomain(payment)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock updates a payment with an optimistic version check
func (r *GormPaymentRepository) SaveWithLock(ctx context.Context, payment *settlement.Payment) error {
	model := models.PaymentModelFromDomain(payment)
	result := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Where("id = ? AND version = ?", payment.ID, payment.Version-1).
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// GeneratePaymentNumber generates the next payment number for a tenant and
// role, e.g. RC-20250901-00001
func (r *GormPaymentRepository) GeneratePaymentNumber(ctx context.Context, tenantID uuid.UUID, role settlement.PartyRole) (string, error) {
	today := time.Now().Format("20060102")
	prefix := fmt.Sprintf("%s-%s-", role.PaymentNumberPrefix(), today)

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Where("tenant_id = ? AND payment_number LIKE ?", tenantID, prefix+"%").
		Count(&count).Error
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%05d", prefix, count+1), nil
}

// Ensure GormPaymentRepository implements PaymentRepository
var _ settlement.PaymentRepository = (*GormPaymentRepository)(nil)
