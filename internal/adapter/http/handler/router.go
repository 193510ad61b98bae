package handler

import (
	"nusd-wallet/internal/adapter/http/middleware"
	"nusd-wallet/internal/core/ports"
	"nusd-wallet/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 1 << 20

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	AccountSvc     ports.AccountService
	TransferSvc    ports.TransferService
	WithdrawalSvc  ports.WithdrawalService
	DepositSvc     ports.DepositService
	VaultSvc       ports.VaultService
	TokenSvc       ports.TokenService
	RateLimitStore middleware.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	Metrics        *metrics.Metrics   // nil = no /metrics endpoint
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}
	r.Use(middleware.MaxBodySize(maxBodyBytes))

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	authHandler := NewAuthHandler(deps.AuthSvc)
	accountHandler := NewAccountHandler(deps.AccountSvc)
	transferHandler := NewTransferHandler(deps.AccountSvc, deps.TransferSvc)
	withdrawalHandler := NewWithdrawalHandler(deps.AccountSvc, deps.WithdrawalSvc)
	depositHandler := NewDepositHandler(deps.AccountSvc, deps.DepositSvc)
	adminHandler := NewAdminHandler(deps.VaultSvc, deps.AccountSvc)

	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	// --- Account holders ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	accounts := v1.Group("/accounts", jwtAuth)
	{
		accounts.GET("", rl("accounts"), accountHandler.List)
		accounts.POST("/business", rl("accounts"), accountHandler.CreateBusiness)
		accounts.GET("/:id", rl("accounts"), accountHandler.Get)
		accounts.GET("/:id/entries", rl("accounts"), accountHandler.ListEntries)
		accounts.POST("/:id/transfers", rl("transfers"), transferHandler.Transfer)
		accounts.POST("/:id/withdrawals", rl("withdrawals"), withdrawalHandler.Request)
		accounts.POST("/:id/withdrawals/:entry_id/cancel", rl("withdrawals"), withdrawalHandler.Cancel)
		accounts.POST("/:id/deposits", rl("deposits"), depositHandler.Submit)
	}

	deposits := v1.Group("/deposits", jwtAuth)
	{
		deposits.GET("/verify/:ref", rl("deposits"), depositHandler.Verify)
	}

	// --- Operators ---
	admin := v1.Group("/admin", jwtAuth, middleware.RequireAdmin(), rl("admin"))
	{
		admin.GET("/withdrawals/pending", withdrawalHandler.ListPending)
		admin.POST("/withdrawals/:entry_id/settle", withdrawalHandler.Settle)
		admin.GET("/deposits/pending", depositHandler.ListPending)
		admin.POST("/deposits/:entry_id/approve", depositHandler.Approve)
		admin.POST("/deposits/:entry_id/reject", depositHandler.Reject)
		admin.GET("/vaults", adminHandler.ListVaults)
		admin.POST("/vaults", adminHandler.CreateVault)
		admin.POST("/accounts/:id/status", adminHandler.SetAccountStatus)
	}

	return r
}
