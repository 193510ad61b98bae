package handler

import (
	"nusd-wallet/internal/adapter/http/dto"
	"nusd-wallet/internal/adapter/http/middleware"
	"nusd-wallet/internal/core/domain"
	"nusd-wallet/internal/core/ports"
	"nusd-wallet/pkg/apperror"
	"nusd-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// AccountHandler serves balances, history and business accounts.
type AccountHandler struct {
	accountSvc ports.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountSvc ports.AccountService) *AccountHandler {
	return &AccountHandler{accountSvc: accountSvc}
}

// List handles GET /api/v1/accounts.
func (h *AccountHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	accounts, err := h.accountSvc.ListAccounts(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.AccountResponse, 0, len(accounts))
	for i := range accounts {
		items = append(items, dto.FromAccount(&accounts[i]))
	}
	response.OK(c, items)
}

// CreateBusiness handles POST /api/v1/accounts/business.
func (h *AccountHandler) CreateBusiness(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.CreateBusinessAccountRequest
	if !bindJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	acc, err := h.accountSvc.CreateBusinessAccount(c.Request.Context(), userID, req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxAuditResourceID, acc.ID.String())
	response.Created(c, dto.FromAccount(acc))
}

// Get handles GET /api/v1/accounts/:id.
func (h *AccountHandler) Get(c *gin.Context) {
	acc, ok := ownedAccount(c, h.accountSvc)
	if !ok {
		return
	}
	response.OK(c, dto.FromAccount(acc))
}

// ListEntries handles GET /api/v1/accounts/:id/entries.
func (h *AccountHandler) ListEntries(c *gin.Context) {
	acc, ok := ownedAccount(c, h.accountSvc)
	if !ok {
		return
	}

	var q dto.EntryListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	page, pageSize := normalizePage(q.Page, q.PageSize)

	params := ports.EntryListParams{
		AccountID: &acc.ID,
		Page:      page,
		PageSize:  pageSize,
	}
	if q.Kind != "" {
		kind := domain.EntryKind(q.Kind)
		params.Kind = &kind
	}
	if q.Status != "" {
		status := domain.EntryStatus(q.Status)
		params.Status = &status
	}

	entries, total, err := h.accountSvc.ListEntries(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	entryList(c, entries, total, page, pageSize)
}
