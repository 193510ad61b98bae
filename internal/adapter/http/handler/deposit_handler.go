package handler

import (
	"nusd-wallet/internal/adapter/http/dto"
	"nusd-wallet/internal/adapter/http/middleware"
	"nusd-wallet/internal/core/ports"
	"nusd-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// DepositHandler handles deposit verification, claims and the approval queue.
type DepositHandler struct {
	accountSvc ports.AccountService
	depositSvc ports.DepositService
}

// NewDepositHandler creates a new DepositHandler.
func NewDepositHandler(accountSvc ports.AccountService, depositSvc ports.DepositService) *DepositHandler {
	return &DepositHandler{accountSvc: accountSvc, depositSvc: depositSvc}
}

// Verify handles GET /api/v1/deposits/verify/:ref. It reports, it never credits.
func (h *DepositHandler) Verify(c *gin.Context) {
	v, err := h.depositSvc.Verify(c.Request.Context(), c.Param("ref"))
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.DepositVerificationResponse{
		Transaction: dto.FromChainTransaction(&v.Transaction),
		VaultMatch:  v.VaultMatch,
	}
	if v.Vault != nil {
		id := v.Vault.ID.String()
		resp.VaultID = &id
	}
	if v.RecordedEntryID != nil {
		id := v.RecordedEntryID.String()
		resp.RecordedEntryID = &id
	}
	response.OK(c, resp)
}

// Submit handles POST /api/v1/accounts/:id/deposits.
func (h *DepositHandler) Submit(c *gin.Context) {
	acc, ok := ownedAccount(c, h.accountSvc)
	if !ok {
		return
	}

	var req dto.DepositRequest
	if !bindJSON(c, &req) {
		return
	}

	entry, err := h.depositSvc.Submit(c.Request.Context(), acc.ID, req.TxID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxAuditResourceID, entry.ID.String())
	response.Accepted(c, dto.FromEntry(entry))
}

// ListPending handles GET /api/v1/admin/deposits/pending.
func (h *DepositHandler) ListPending(c *gin.Context) {
	page, pageSize, ok := bindPage(c)
	if !ok {
		return
	}

	entries, total, err := h.depositSvc.ListPending(c.Request.Context(), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	entryList(c, entries, total, page, pageSize)
}

// Approve handles POST /api/v1/admin/deposits/:entry_id/approve.
func (h *DepositHandler) Approve(c *gin.Context) {
	entryID, ok := uuidParam(c, "entry_id", "deposit")
	if !ok {
		return
	}

	entry, err := h.depositSvc.Approve(c.Request.Context(), entryID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromEntry(entry))
}

// Reject handles POST /api/v1/admin/deposits/:entry_id/reject.
func (h *DepositHandler) Reject(c *gin.Context) {
	entryID, ok := uuidParam(c, "entry_id", "deposit")
	if !ok {
		return
	}

	entry, err := h.depositSvc.Reject(c.Request.Context(), entryID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromEntry(entry))
}
