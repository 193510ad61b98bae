package handler

import (
	"strings"

	"nusd-wallet/internal/adapter/http/dto"
	"nusd-wallet/internal/adapter/http/middleware"
	"nusd-wallet/internal/core/domain"
	"nusd-wallet/internal/core/ports"
	"nusd-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// AdminHandler serves the vault registry and account administration.
type AdminHandler struct {
	vaultSvc   ports.VaultService
	accountSvc ports.AccountService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(vaultSvc ports.VaultService, accountSvc ports.AccountService) *AdminHandler {
	return &AdminHandler{vaultSvc: vaultSvc, accountSvc: accountSvc}
}

// ListVaults handles GET /api/v1/admin/vaults.
func (h *AdminHandler) ListVaults(c *gin.Context) {
	vaults, err := h.vaultSvc.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.VaultResponse, 0, len(vaults))
	for i := range vaults {
		items = append(items, dto.FromVault(&vaults[i]))
	}
	response.OK(c, items)
}

// CreateVault handles POST /api/v1/admin/vaults.
func (h *AdminHandler) CreateVault(c *gin.Context) {
	var req dto.CreateVaultRequest
	if !bindJSON(c, &req) {
		return
	}
	// Key material is opaque and must not be escaped.
	privateKey := req.PrivateKey
	req.PrivateKey = nil
	dto.SanitizeStruct(&req)

	var initial int64
	if req.InitialBalance != "" {
		amount, err := parseAmount(req.InitialBalance)
		if err != nil {
			response.Error(c, err)
			return
		}
		initial = amount
	}
	if privateKey != nil {
		trimmed := strings.TrimSpace(*privateKey)
		privateKey = &trimmed
	}

	vault, err := h.vaultSvc.Create(c.Request.Context(), ports.CreateVaultRequest{
		Address:        req.Address,
		PrivateKey:     privateKey,
		Department:     req.Department,
		InitialBalance: initial,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxAuditResourceID, vault.ID.String())
	response.Created(c, dto.FromVault(vault))
}

// SetAccountStatus handles POST /api/v1/admin/accounts/:id/status.
func (h *AdminHandler) SetAccountStatus(c *gin.Context) {
	accountID, ok := uuidParam(c, "id", "account")
	if !ok {
		return
	}

	var req dto.SetAccountStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	acc, err := h.accountSvc.SetStatus(c.Request.Context(), accountID, domain.AccountStatus(req.Status))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromAccount(acc))
}
