package handler

import (
	"time"

	"fastpay/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, rdb, cfg)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 用户相关
		users := api.Group("/users")
		{
			users.POST("/register", h.RegisterUser)
			users.POST("/me/freeze", h.FreezeAccount)
			users.GET("/me/status", h.AccountStatus)
			users.POST("/me/device-token", h.RegisterDeviceToken)
		}

		// 交易相关
		transactions := api.Group("/transactions")
		{
			transactions.POST("/online", h.SubmitOnline)
			transactions.GET("/online", h.ListTransactions)
			transactions.POST("/offline/sync", h.SyncOffline)
			transactions.POST("/verify-id", h.VerifyTransactionID)
		}

		// 健康检查
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{"status": "healthy", "timestamp": time.Now().UTC().Format(time.RFC3339)})
		})
	}

	// 根路径状态
	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "FastPay Relay", "database": "connected"})
	})

	return r
}
