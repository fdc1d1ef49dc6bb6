package handler

import (
	"github.com/gin-gonic/gin"
)

// SetupRouter 配置路由
func SetupRouter(h *Handler) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 认证相关（无需登录）
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Register)
			auth.POST("/login", h.Login)
		}

		// 客户相关（需要登录）
		customer := api.Group("")
		customer.Use(AuthMiddleware(h.authService))
		{
			customer.POST("/auth/logout", h.Logout)

			customer.GET("/accounts", h.ListAccounts)
			customer.POST("/accounts", h.OpenAccount)
			customer.POST("/accounts/:id/deactivate", h.DeactivateAccount)
			customer.GET("/accounts/:id/transactions", h.AccountTransactions)

			customer.POST("/deposit", h.Deposit)
			customer.POST("/withdraw", h.Withdraw)
			customer.POST("/transfer", h.Transfer)

			customer.GET("/transactions", h.ListTransactions)
		}

		// 管理端（需要管理员角色）
		admin := api.Group("/admin")
		admin.Use(AuthMiddleware(h.authService), AdminMiddleware())
		{
			admin.GET("/stats", h.AdminStats)
			admin.GET("/users", h.AdminUsers)
			admin.GET("/accounts", h.AdminAccounts)
			admin.GET("/transactions", h.AdminTransactions)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
