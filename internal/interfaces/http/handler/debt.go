package handler

import (
	"time"

	appsettlement "github.com/erp/settlement/internal/application/settlement"
	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DebtHandler handles debt ledger API endpoints
type DebtHandler struct {
	BaseHandler
	service *appsettlement.SettlementService
}

// NewDebtHandler creates a new DebtHandler
func NewDebtHandler(service *appsettlement.SettlementService) *DebtHandler {
	return &DebtHandler{service: service}
}

// CreateDebtRequest represents a request to register a new debt.
// Amounts are decimal strings to avoid float rounding on the wire.
type CreateDebtRequest struct {
	Role                 string    `json:"role" binding:"required,oneof=RECEIVABLE PAYABLE"`
	CounterpartyID       string    `json:"counterparty_id" binding:"required,uuid"`
	SourceDocumentID     string    `json:"source_document_id" binding:"required,uuid"`
	SourceDocumentNumber string    `json:"source_document_number" binding:"max=64"`
	DocumentDate         time.Time `json:"document_date" binding:"required"`
	DueDate              time.Time `json:"due_date" binding:"required"`
	OriginalAmount       string    `json:"original_amount" binding:"required,money"`
	Currency             string    `json:"currency" binding:"omitempty,len=3"`
}

// VoidDebtRequest represents a request to void a debt
type VoidDebtRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// DebtListFilter represents debt list query parameters
type DebtListFilter struct {
	Role           string `form:"role" binding:"omitempty,oneof=RECEIVABLE PAYABLE"`
	Status         string `form:"status" binding:"omitempty,oneof=PENDING PARTIALLY_SETTLED SETTLED OVERDUE VOID"`
	CounterpartyID string `form:"counterparty_id" binding:"omitempty,uuid"`
	DueBefore      string `form:"due_before" binding:"omitempty"`
	DueAfter       string `form:"due_after" binding:"omitempty"`
	Page           int    `form:"page"`
	PageSize       int    `form:"page_size" binding:"omitempty,max=100"`
}

// Create registers a new debt against a source document
func (h *DebtHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req CreateDebtRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	actor, _ := getUserID(c)

	counterpartyID, err := uuid.Parse(req.CounterpartyID)
	if err != nil {
		h.BadRequest(c, "Invalid counterparty ID format")
		return
	}
	sourceDocumentID, err := uuid.Parse(req.SourceDocumentID)
	if err != nil {
		h.BadRequest(c, "Invalid source document ID format")
		return
	}
	amount, err := decimal.NewFromString(req.OriginalAmount)
	if err != nil {
		h.BadRequest(c, "Invalid original amount")
		return
	}

	appReq := appsettlement.CreateDebtRequest{
		Role:                 settlement.PartyRole(req.Role),
		CounterpartyID:       counterpartyID,
		SourceDocumentID:     sourceDocumentID,
		SourceDocumentNumber: req.SourceDocumentNumber,
		DocumentDate:         req.DocumentDate,
		DueDate:              req.DueDate,
		OriginalAmount:       amount,
		Currency:             req.Currency,
	}

	debt, err := h.service.CreateDebt(c.Request.Context(), tenantID, appReq, actor)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, debt)
}

// GetByID retrieves a debt by its ID
func (h *DebtHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	debtID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid debt ID format")
		return
	}

	debt, err := h.service.GetDebt(c.Request.Context(), tenantID, debtID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, debt)
}

// List retrieves a paginated list of debts with optional filtering
func (h *DebtHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var query DebtListFilter
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.PageSize <= 0 {
		query.PageSize = 20
	}

	filter := settlement.DebtFilter{
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if query.Role != "" {
		role := settlement.PartyRole(query.Role)
		filter.Role = &role
	}
	if query.Status != "" {
		status := settlement.DebtStatus(query.Status)
		filter.Status = &status
	}
	if query.CounterpartyID != "" {
		id, err := uuid.Parse(query.CounterpartyID)
		if err != nil {
			h.BadRequest(c, "Invalid counterparty ID format")
			return
		}
		filter.CounterpartyID = &id
	}
	if query.DueBefore != "" {
		t, err := time.Parse(time.RFC3339, query.DueBefore)
		if err != nil {
			h.BadRequest(c, "Invalid due_before timestamp")
			return
		}
		filter.DueBefore = &t
	}
	if query.DueAfter != "" {
		t, err := time.Parse(time.RFC3339, query.DueAfter)
		if err != nil {
			h.BadRequest(c, "Invalid due_after timestamp")
			return
		}
		filter.DueAfter = &t
	}

	debts, total, err := h.service.ListDebts(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, debts, total, query.Page, query.PageSize)
}

// Void voids a debt that has no settlements applied
func (h *DebtHandler) Void(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	debtID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid debt ID format")
		return
	}

	var req VoidDebtRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	actor, _ := getUserID(c)

	debt, err := h.service.VoidDebt(c.Request.Context(), tenantID, debtID, actor, req.Reason)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, debt)
}

// Summary returns pending totals and per-status counts for one ledger side
func (h *DebtHandler) Summary(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	role := settlement.PartyRole(c.Query("role"))
	if !role.IsValid() {
		h.BadRequest(c, "Query parameter 'role' must be RECEIVABLE or PAYABLE")
		return
	}

	summary, err := h.service.GetDebtSummary(c.Request.Context(), tenantID, role)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, summary)
}

// Sweep marks all past-due open debts for the tenant as OVERDUE
func (h *DebtHandler) Sweep(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	result, err := h.service.MarkOverdueSweep(c.Request.Context(), tenantID, time.Now())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}
