package handler

import (
	"gamecafe-wallet/internal/adapter/http/middleware"
	"gamecafe-wallet/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	WalletSvc      ports.WalletService
	ReportingSvc   ports.ReportingService
	AuditSvc       ports.AuditRecorder
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestMetadata())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check verifies PostgreSQL and Redis connectivity
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	v1 := r.Group("/api/v1")

	walletHandler := NewWalletHandler(deps.WalletSvc, deps.ReportingSvc)
	ledgerHandler := NewLedgerHandler(deps.ReportingSvc)

	wallets := v1.Group("/wallets")
	{
		wallets.POST("/deposit", walletHandler.Deposit)
		wallets.POST("/withdraw", walletHandler.Withdraw)
		wallets.POST("/transfer", walletHandler.Transfer)
		wallets.GET("/:id", walletHandler.GetWallet)
		wallets.GET("/:id/transactions", ledgerHandler.ListTransactions)
		wallets.PUT("/:id/active", walletHandler.SetActive)
	}

	reports := v1.Group("/reports")
	{
		reports.GET("/total-balance", ledgerHandler.TotalBalance)
	}

	auditHandler := NewAuditHandler(deps.AuditSvc)
	v1.GET("/audit-logs", auditHandler.List)

	return r
}
