package handler

import (
	"strings"

	"nusd-wallet/internal/adapter/http/dto"
	"nusd-wallet/internal/adapter/http/middleware"
	"nusd-wallet/internal/core/ports"
	"nusd-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WithdrawalHandler handles payout reservations and their operator queue.
type WithdrawalHandler struct {
	accountSvc    ports.AccountService
	withdrawalSvc ports.WithdrawalService
}

// NewWithdrawalHandler creates a new WithdrawalHandler.
func NewWithdrawalHandler(accountSvc ports.AccountService, withdrawalSvc ports.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{accountSvc: accountSvc, withdrawalSvc: withdrawalSvc}
}

// Request handles POST /api/v1/accounts/:id/withdrawals.
func (h *WithdrawalHandler) Request(c *gin.Context) {
	acc, ok := ownedAccount(c, h.accountSvc)
	if !ok {
		return
	}

	var req dto.WithdrawalRequest
	if !bindJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	amount, err := parseAmount(req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	entry, err := h.withdrawalSvc.Request(c.Request.Context(), ports.WithdrawalRequest{
		AccountID:          acc.ID,
		Amount:             amount,
		DestinationAddress: strings.TrimSpace(req.DestinationAddress),
		Network:            req.Network,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxAuditResourceID, entry.ID.String())
	response.Accepted(c, dto.FromEntry(entry))
}

// Cancel handles POST /api/v1/accounts/:id/withdrawals/:entry_id/cancel.
func (h *WithdrawalHandler) Cancel(c *gin.Context) {
	acc, ok := ownedAccount(c, h.accountSvc)
	if !ok {
		return
	}
	entryID, ok := uuidParam(c, "entry_id", "withdrawal")
	if !ok {
		return
	}

	entry, err := h.withdrawalSvc.Cancel(c.Request.Context(), acc.ID, entryID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromEntry(entry))
}

// ListPending handles GET /api/v1/admin/withdrawals/pending.
func (h *WithdrawalHandler) ListPending(c *gin.Context) {
	page, pageSize, ok := bindPage(c)
	if !ok {
		return
	}

	entries, total, err := h.withdrawalSvc.ListPending(c.Request.Context(), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	entryList(c, entries, total, page, pageSize)
}

// Settle handles POST /api/v1/admin/withdrawals/:entry_id/settle.
func (h *WithdrawalHandler) Settle(c *gin.Context) {
	entryID, ok := uuidParam(c, "entry_id", "withdrawal")
	if !ok {
		return
	}

	var req dto.SettleRequest
	if !bindJSON(c, &req) {
		return
	}
	vaultID := uuid.MustParse(req.VaultID) // validated by the uuid binding rule

	entry, err := h.withdrawalSvc.Settle(c.Request.Context(), entryID, vaultID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromEntry(entry))
}
