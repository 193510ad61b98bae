package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"nusd-wallet/internal/core/domain"
	"nusd-wallet/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CtxAuditResourceID lets a handler name the resource it created, e.g. the
// new entry id, when the route has no id parameter for it.
const CtxAuditResourceID = "audit_resource_id"

type auditRoute struct {
	action       domain.AuditAction
	resourceType string
	param        string // route param naming the resource, if any
}

// auditRoutes maps "METHOD route-template" to the recorded action.
var auditRoutes = map[string]auditRoute{
	"POST /api/v1/auth/register":                             {domain.AuditActionRegister, "user", ""},
	"POST /api/v1/auth/login":                                {domain.AuditActionLogin, "session", ""},
	"POST /api/v1/accounts/business":                         {domain.AuditActionCreateAccount, "account", ""},
	"POST /api/v1/accounts/:id/transfers":                    {domain.AuditActionTransfer, "transfer", ""},
	"POST /api/v1/accounts/:id/withdrawals":                  {domain.AuditActionWithdrawalRequest, "ledger_entry", ""},
	"POST /api/v1/accounts/:id/withdrawals/:entry_id/cancel": {domain.AuditActionWithdrawalCancel, "ledger_entry", "entry_id"},
	"POST /api/v1/accounts/:id/deposits":                     {domain.AuditActionDepositSubmit, "ledger_entry", ""},
	"POST /api/v1/admin/withdrawals/:entry_id/settle":        {domain.AuditActionWithdrawalSettle, "ledger_entry", "entry_id"},
	"POST /api/v1/admin/deposits/:entry_id/approve":          {domain.AuditActionDepositApprove, "ledger_entry", "entry_id"},
	"POST /api/v1/admin/deposits/:entry_id/reject":           {domain.AuditActionDepositReject, "ledger_entry", "entry_id"},
	"POST /api/v1/admin/vaults":                              {domain.AuditActionCreateVault, "vault", ""},
	"POST /api/v1/admin/accounts/:id/status":                 {domain.AuditActionSetAccountStatus, "account", "id"},
}

// AuditLog creates an audit middleware that logs successful write operations.
// It maps the matched route to an audit action.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}

		route, ok := auditRoutes[c.Request.Method+" "+c.FullPath()]
		if !ok {
			return
		}

		var userID *uuid.UUID
		if id, ok := UserID(c); ok {
			userID = &id
		}

		resourceID := c.GetString(CtxAuditResourceID)
		if resourceID == "" && route.param != "" {
			resourceID = c.Param(route.param)
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"account_id": c.Param("id"),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			UserID:       userID,
			Action:       route.action,
			ResourceType: route.resourceType,
			ResourceID:   resourceID,
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}
