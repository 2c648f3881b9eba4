package api

import (
	"github.com/safecommunity/guardianai/api/handlers"
	"github.com/safecommunity/guardianai/api/middleware"
	"github.com/safecommunity/guardianai/pkg/moderation"
	"github.com/safecommunity/guardianai/pkg/trust"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SetupRouter 设置API路由
func SetupRouter(router *gin.Engine, orchestrator *moderation.Orchestrator, ledger *trust.Ledger) {
	router.Use(cors.Default())

	postHandler := handlers.NewPostHandler(orchestrator)
	dashboardHandler := handlers.NewDashboardHandler(ledger)

	// 公共API
	public := router.Group("/api")
	{
		public.POST("/auth/login", handlers.Login)
		public.POST("/auth/register", handlers.Register)
	}

	// 需要认证的API
	authorized := router.Group("/api")
	authorized.Use(middleware.Auth())
	{
		// 用户相关
		authorized.GET("/user", handlers.GetCurrentUser)
		authorized.POST("/auth/logout", handlers.Logout)
		authorized.GET("/user/trust", postHandler.GetTrustStatus)
		authorized.GET("/user/notifications", postHandler.GetNotifications)

		// 内容相关
		authorized.POST("/posts", postHandler.SubmitPost)
		authorized.GET("/posts", postHandler.ListPosts)
	}

	// 版主后台
	dashboard := router.Group("/api/dashboard")
	dashboard.Use(middleware.Auth(), middleware.RequireModerator())
	{
		dashboard.GET("/review", handlers.GetReviewQueue)
		dashboard.POST("/review", handlers.ReviewPost)
		dashboard.GET("/users", handlers.ListUsers)
		dashboard.POST("/users/:id/ban", dashboardHandler.UpdateUserBan)
	}
}
