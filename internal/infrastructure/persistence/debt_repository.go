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
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormDebtRepository implements settlement.DebtRepository using GORM
type GormDebtRepository struct {
	db *gorm.DB
}

// NewGormDebtRepository creates a new GormDebtRepository
func NewGormDebtRepository(db *gorm.DB) *GormDebtRepository {
	return &GormDebtRepository{db: db}
}

// FindByIDForTenant finds a debt by ID scoped to a tenant
func (r *GormDebtRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*settlement.Debt, error) {
	var model models.DebtModel
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

// FindByIDsForUpdate loads the given debts in ascending id order holding row
// locks until the surrounding transaction completes. The ascending order is
// the deadlock-avoidance contract of the settlement service; do not change it.
func (r *GormDebtRepository) FindByIDsForUpdate(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*settlement.Debt, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var dbModels []models.DebtModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Order("id ASC").
		Find(&dbModels).Error
	if err != nil {
		return nil, err
	}

	debts := make([]*settlement.Debt, 0, len(dbModels))
	for i := range dbModels {
		debt, err := dbModels[i].ToDomain()
		if err != nil {
			return nil, err
		}
		debts = append(debts, debt)
	}
	return debts, nil
}

// FindBySourceDocument finds the debt created for an originating document
func (r *GormDebtRepository) FindBySourceDocument(ctx context.Context, tenantID uuid.UUID, role settlement.PartyRole, sourceDocumentID uuid.UUID) (*settlement.Debt, error) {
	var model models.DebtModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND role = ? AND source_document_id = ?", tenantID, string(role), sourceDocumentID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindByFilter returns debts matching the filter with the total count
func (r *GormDebtRepository) FindByFilter(ctx context.Context, tenantID uuid.UUID, filter settlement.DebtFilter) ([]*settlement.Debt, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.DebtModel{}).Where("tenant_id = ?", tenantID)
	query = applyDebtFilter(query, filter)

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

	var dbModels []models.DebtModel
	err := query.
		Order("due_date ASC, id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&dbModels).Error
	if err != nil {
		return nil, 0, err
	}

	debts := make([]*settlement.Debt, 0, len(dbModels))
	for i := range dbModels {
		debt, err := dbModels[i].ToDomain()
		if err != nil {
			return nil, 0, err
		}
		debts = append(debts, debt)
	}
	return debts, total, nil
}

// ExistsBySourceDocument checks the 1:1 origin constraint
func (r *GormDebtRepository) ExistsBySourceDocument(ctx context.Context, tenantID uuid.UUID, role settlement.PartyRole, sourceDocumentID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.DebtModel{}).
		Where("tenant_id = ? AND role = ? AND source_document_id = ?", tenantID, string(role), sourceDocumentID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save creates or updates a debt
func (r *GormDebtRepository) Save(ctx context.Context, debt *settlement.Debt) error {
	model := models.DebtModelFromDomain(debt)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock updates a debt with an optimistic version check. Returns a
// concurrency conflict if the stored version does not match version-1.
func (r *GormDebtRepository) SaveWithLock(ctx context.Context, debt *settlement.Debt) error {
	model := models.DebtModelFromDomain(debt)
	result := r.db.WithContext(ctx).
		Model(&models.DebtModel{}).
		Where("id = ? AND version = ?", debt.ID, debt.Version-1).
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// MarkOverdueSweep bulk-transitions open debts past due to OVERDUE and returns
// the number of rows affected. Already-OVERDUE rows are excluded, which makes
// repeated runs report zero.
func (r *GormDebtRepository) MarkOverdueSweep(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.DebtModel{}).
		Where("tenant_id = ? AND status IN ? AND due_date < ?",
			tenantID,
			[]string{string(settlement.DebtStatusPending), string(settlement.DebtStatusPartiallySettled)},
			asOf,
		).
		Updates(map[string]any{
			"status":     string(settlement.DebtStatusOverdue),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// CountByStatus returns debt counts grouped by status for one role
func (r *GormDebtRepository) CountByStatus(ctx context.Context, tenantID uuid.UUID, role settlement.PartyRole) (map[settlement.DebtStatus]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.DebtModel{}).
		Select("status, COUNT(*) as count").
		Where("tenant_id = ? AND role = ?", tenantID, string(role)).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[settlement.DebtStatus]int64, len(rows))
	for _, r := range rows {
		counts[settlement.DebtStatus(r.Status)] = r.Count
	}
	return counts, nil
}

// SumPendingForTenant returns the total pending balance for one role,
// excluding voided debts
func (r *GormDebtRepository) SumPendingForTenant(ctx context.Context, tenantID uuid.UUID, role settlement.PartyRole) (decimal.Decimal, error) {
	return r.sumPending(ctx, r.db.WithContext(ctx).
		Model(&models.DebtModel{}).
		Where("tenant_id = ? AND role = ?", tenantID, string(role)))
}

// SumPendingForCounterparty returns the pending balance owed by or to one counterparty
func (r *GormDebtRepository) SumPendingForCounterparty(ctx context.Context, tenantID uuid.UUID, role settlement.PartyRole, counterpartyID uuid.UUID) (decimal.Decimal, error) {
	return r.sumPending(ctx, r.db.WithContext(ctx).
		Model(&models.DebtModel{}).
		Where("tenant_id = ? AND role = ? AND counterparty_id = ?", tenantID, string(role), counterpartyID))
}

func (r *GormDebtRepository) sumPending(_ context.Context, query *gorm.DB) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	err := query.
		Select("COALESCE(SUM(original_amount - settled_amount), 0) as total").
		Where("status NOT IN ?", []string{string(settlement.DebtStatusVoid)}).
		Scan(&result).Error
	if err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// ListTenantIDs returns the distinct tenants that own debts. Used by the
// overdue sweep scheduler to iterate tenants without a tenant registry.
func (r *GormDebtRepository) ListTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.DebtModel{}).
		Distinct("tenant_id").
		Pluck("tenant_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// GenerateDebtNumber generates the next debt number for a tenant and role,
// e.g. AR-20250901-00001
func (r *GormDebtRepository) GenerateDebtNumber(ctx context.Context, tenantID uuid.UUID, role settlement.PartyRole) (string, error) {
	today := time.Now().Format("20060102")
	prefix := fmt.Sprintf("%s-%s-", role.DebtNumberPrefix(), today)

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.DebtModel{}).
		Where("tenant_id = ? AND debt_number LIKE ?", tenantID, prefix+"%").
		Count(&count).Error
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%05d", prefix, count+1), nil
}

// applyDebtFilter applies DebtFilter conditions to a query
func applyDebtFilter(query *gorm.DB, filter settlement.DebtFilter) *gorm.DB {
	if filter.Role != nil {
		query = query.Where("role = ?", string(*filter.Role))
	}
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}
	if filter.CounterpartyID != nil {
		query = query.Where("counterparty_id = ?", *filter.CounterpartyID)
	}
	if filter.DueBefore != nil {
		query = query.Where("due_date < ?", *filter.DueBefore)
	}
	if filter.DueAfter != nil {
		query = query.Where("due_date >= ?", *filter.DueAfter)
	}
	return query
}

// Ensure GormDebtRepository implements DebtRepository
var _ settlement.DebtRepository = (*GormDebtRepository)(nil)
